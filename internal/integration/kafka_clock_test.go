//go:build integration

package integration_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net"
	"strconv"
	"testing"
	"time"

	"github.com/scottthomaswx/cloud-radar-server/internal/adapter/kafka"
	"github.com/scottthomaswx/cloud-radar-server/internal/config"
	"github.com/scottthomaswx/cloud-radar-server/internal/domain"
	"github.com/scottthomaswx/cloud-radar-server/internal/observability"
	"github.com/scottthomaswx/cloud-radar-server/internal/playback"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tckafka "github.com/testcontainers/testcontainers-go/modules/kafka"
)

const testClockTopic = "test-playback-clock"

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// startKafka runs a single-node Kafka container and returns its broker address.
func startKafka(ctx context.Context, t *testing.T) string {
	t.Helper()
	container, err := tckafka.Run(ctx, "confluentinc/confluent-local:7.5.0", tckafka.WithClusterID("radar-replay-test"))
	require.NoError(t, err, "start kafka container")
	t.Cleanup(func() { _ = testcontainers.TerminateContainer(container) })

	brokers, err := container.Brokers(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, brokers)
	return brokers[0]
}

func createTopic(t *testing.T, broker, topic string) {
	t.Helper()
	conn, err := kafkago.Dial("tcp", broker)
	require.NoError(t, err)
	defer conn.Close()

	controller, err := conn.Controller()
	require.NoError(t, err)
	cc, err := kafkago.Dial("tcp", net.JoinHostPort(controller.Host, strconv.Itoa(controller.Port)))
	require.NoError(t, err)
	defer cc.Close()

	require.NoError(t, cc.CreateTopics(kafkago.TopicConfig{Topic: topic, NumPartitions: 1, ReplicationFactor: 1}))
}

// TestPlayerPublishesClock drives a player through start, pause and a jump
// and reads the resulting clock messages back from Kafka.
func TestPlayerPublishesClock(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 120*time.Second)
	defer cancel()

	broker := startKafka(ctx, t)
	createTopic(t, broker, testClockTopic)

	cfg := &config.Config{KafkaBrokers: []string{broker}, KafkaClockTopic: testClockTopic}
	publisher := kafka.NewClockPublisher(cfg, "KTLX", discardLogger())
	t.Cleanup(func() { _ = publisher.Close() })

	player := playback.New(
		playback.Options{Targets: []string{"KTLX"}, Speed: 1},
		playback.Sinks{Publisher: publisher},
		discardLogger(),
		observability.NewMetricsForTesting(),
	)
	runCtx, stop := context.WithCancel(ctx)
	defer stop()
	go func() { _ = player.Run(runCtx) }()

	w, err := domain.ComputeWindow(time.Date(2024, time.July, 16, 0, 30, 0, 0, time.UTC), 60, time.Now())
	require.NoError(t, err)
	target := w.PlaybackStart.Add(30 * time.Minute)

	_, err = player.Send(ctx, domain.Start{Window: w})
	require.NoError(t, err)
	_, err = player.Send(ctx, domain.Pause{})
	require.NoError(t, err)
	_, err = player.Send(ctx, domain.JumpTo{Time: target})
	require.NoError(t, err)

	reader := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:   []string{broker},
		Topic:     testClockTopic,
		Partition: 0,
		MaxWait:   500 * time.Millisecond,
	})
	t.Cleanup(func() { _ = reader.Close() })

	type clockMessage struct {
		Status string    `json:"status"`
		Clock  time.Time `json:"clock"`
		Paused bool      `json:"paused"`
	}
	var got []clockMessage
	for len(got) < 3 {
		readCtx, readCancel := context.WithTimeout(ctx, 30*time.Second)
		msg, err := reader.ReadMessage(readCtx)
		readCancel()
		require.NoError(t, err, "read from clock topic")
		assert.Equal(t, []byte("KTLX"), msg.Key)

		var m clockMessage
		require.NoError(t, json.Unmarshal(msg.Value, &m))
		got = append(got, m)
	}

	assert.Equal(t, "Running", got[0].Status)
	assert.True(t, got[0].Clock.Equal(w.InitialClock))
	assert.Equal(t, "Paused", got[1].Status)
	assert.True(t, got[2].Paused)
	assert.True(t, got[2].Clock.Equal(target))
}
