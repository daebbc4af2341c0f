package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/scottthomaswx/cloud-radar-server/internal/config"
	"github.com/scottthomaswx/cloud-radar-server/internal/playback"
	kafkago "github.com/segmentio/kafka-go"
)

// messageWriter is the subset of *kafkago.Writer used by ClockPublisher.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// ClockPublisher produces playback state changes to a Kafka topic.
// It implements playback.ClockPublisher.
type ClockPublisher struct {
	writer  messageWriter
	session string
	logger  *slog.Logger
}

// NewClockPublisher creates a Kafka producer for the configured clock topic.
// Messages are keyed by session so a consumer sees one session's updates in order.
func NewClockPublisher(cfg *config.Config, session string, logger *slog.Logger) *ClockPublisher {
	w := &kafkago.Writer{
		Addr:                   kafkago.TCP(cfg.KafkaBrokers...),
		Topic:                  cfg.KafkaClockTopic,
		Balancer:               &kafkago.Hash{},
		RequiredAcks:           kafkago.RequireOne,
		AllowAutoTopicCreation: true,
		BatchTimeout:           50 * time.Millisecond,
	}
	return &ClockPublisher{writer: w, session: session, logger: logger}
}

// PublishClock serializes the snapshot and writes it to the clock topic.
func (p *ClockPublisher) PublishClock(ctx context.Context, snap playback.Snapshot) error {
	msg, err := serializeToMessage(p.session, snap)
	if err != nil {
		return err
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish clock: %w", err)
	}
	p.logger.Debug("clock published", "session", p.session, "clock", snap.ClockLabel, "status", snap.Status.String())
	return nil
}

func (p *ClockPublisher) Close() error {
	return p.writer.Close()
}

// serializeToMessage marshals a playback snapshot into a Kafka message.
func serializeToMessage(session string, snap playback.Snapshot) (kafkago.Message, error) {
	data, err := json.Marshal(snap)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize playback snapshot: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(session),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "status", Value: []byte(snap.Status.String())},
			{Key: "clock", Value: []byte(snap.Clock.UTC().Format(time.RFC3339))},
			{Key: "speed", Value: []byte(strconv.FormatFloat(snap.Speed, 'f', -1, 64))},
		},
	}, nil
}
