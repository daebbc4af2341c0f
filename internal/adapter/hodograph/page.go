// Package hodograph renders the HTML page that shows hodograph images up to
// the playback clock.
package hodograph

import (
	"bytes"
	"context"
	_ "embed"
	"fmt"
	"html/template"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/scottthomaswx/cloud-radar-server/internal/domain"
	"github.com/scottthomaswx/cloud-radar-server/internal/fsutil"
)

//go:embed page.html.tmpl
var pageTemplate string

var tmpl = template.Must(template.New("hodographs").Parse(pageTemplate))

// Placeholder is shown before playback starts.
const Placeholder = "Hodographs will appear here once playback starts."

type image struct {
	Src   string
	Name  string
	Label string
	at    time.Time
}

type pageData struct {
	Clock       string
	Images      []image
	Placeholder string
}

// Updater writes the hodograph page. It implements playback.HodographUpdater.
type Updater struct {
	imagesDir string
	page      string
	logger    *slog.Logger
}

// New creates an Updater reading PNGs from imagesDir and writing page.
func New(imagesDir, page string, logger *slog.Logger) *Updater {
	return &Updater{imagesDir: imagesDir, page: page, logger: logger}
}

// UpdateHodographPage renders every hodograph whose file name timestamp is not
// after simTime, newest first. A zero simTime renders the placeholder page.
func (u *Updater) UpdateHodographPage(ctx context.Context, simTime time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data := pageData{Placeholder: Placeholder}
	if !simTime.IsZero() {
		data.Clock = domain.FormatClock(simTime)
		images, err := u.collect(simTime)
		if err != nil {
			return err
		}
		data.Images = images
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return fmt.Errorf("render hodograph page: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(u.page), 0o755); err != nil {
		return fmt.Errorf("create page dir: %w", err)
	}
	if err := fsutil.WriteFile(u.page, buf.Bytes(), 0o644); err != nil {
		return err
	}
	u.logger.Debug("hodograph page updated", "images", len(data.Images), "clock", data.Clock)
	return nil
}

func (u *Updater) collect(simTime time.Time) ([]image, error) {
	paths, err := filepath.Glob(filepath.Join(u.imagesDir, "*.png"))
	if err != nil {
		return nil, fmt.Errorf("list hodographs: %w", err)
	}
	pageDir := filepath.Dir(u.page)

	var images []image
	for _, p := range paths {
		name := filepath.Base(p)
		ts, ok := domain.FileTime(name)
		if !ok || ts.After(simTime) {
			continue
		}
		src, err := filepath.Rel(pageDir, p)
		if err != nil {
			src = p
		}
		images = append(images, image{
			Src:   filepath.ToSlash(src),
			Name:  name,
			Label: strings.TrimSuffix(name, ".png") + " (" + domain.FormatClock(ts) + "Z)",
			at:    ts,
		})
	}
	slices.SortStableFunc(images, func(a, b image) int {
		if c := b.at.Compare(a.at); c != 0 {
			return c
		}
		return strings.Compare(a.Name, b.Name)
	})
	return images, nil
}
