// Package dirlist maintains the dir.list index that polling radar clients read
// to discover Level-II volumes.
package dirlist

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/scottthomaswx/cloud-radar-server/internal/domain"
	"github.com/scottthomaswx/cloud-radar-server/internal/fsutil"
)

// FileName is the listing file inside each radar's polling directory.
const FileName = "dir.list"

// Updater writes <root>/<RADAR>/dir.list. It implements playback.DirListUpdater.
type Updater struct {
	root   string
	logger *slog.Logger
}

// New creates an Updater rooted at the polling directory.
func New(root string, logger *slog.Logger) *Updater {
	return &Updater{root: root, logger: logger}
}

// Path returns the listing file for radar.
func (u *Updater) Path(radar string) string {
	return filepath.Join(u.root, strings.ToUpper(radar), FileName)
}

// UpdateDirList lists every volume in the radar's polling directory whose
// file name timestamp is not after simTime, one "<size> <name>" line each.
// A zero simTime writes an empty listing, hiding all data until playback starts.
func (u *Updater) UpdateDirList(ctx context.Context, radar string, simTime time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	dir := filepath.Join(u.root, strings.ToUpper(radar))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create polling dir: %w", err)
	}

	var buf bytes.Buffer
	volumes := 0
	if !simTime.IsZero() {
		entries, err := os.ReadDir(dir)
		if err != nil {
			return fmt.Errorf("read polling dir: %w", err)
		}
		for _, e := range entries {
			if e.IsDir() || e.Name() == FileName || strings.HasPrefix(e.Name(), ".") {
				continue
			}
			ts, ok := domain.FileTime(e.Name())
			if !ok || ts.After(simTime) {
				continue
			}
			info, err := e.Info()
			if err != nil {
				// Removed between ReadDir and Info.
				continue
			}
			fmt.Fprintf(&buf, "%d %s\n", info.Size(), e.Name())
			volumes++
		}
	}

	if err := fsutil.WriteFile(filepath.Join(dir, FileName), buf.Bytes(), 0o644); err != nil {
		return err
	}
	u.logger.Debug("dir.list updated", "radar", strings.ToUpper(radar), "volumes", volumes, "clock", simTime)
	return nil
}
