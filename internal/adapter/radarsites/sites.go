// Package radarsites resolves WSR-88D radar identifiers to site coordinates.
package radarsites

import (
	_ "embed"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"slices"
	"strconv"
	"strings"
	"sync"

	"github.com/scottthomaswx/cloud-radar-server/internal/domain"
)

//go:embed sites.csv
var sitesCSV string

// Table is an immutable radar site lookup.
type Table struct {
	sites map[string]domain.Site
}

// Default returns the table of sites bundled with the service.
var Default = sync.OnceValue(func() *Table {
	t, err := Load(strings.NewReader(sitesCSV))
	if err != nil {
		panic(fmt.Sprintf("radarsites: bundled table: %v", err))
	}
	return t
})

// Load parses a "radar,lat,lon[,...]" CSV with a header row.
func Load(r io.Reader) (*Table, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	if _, err := cr.Read(); err != nil {
		return nil, fmt.Errorf("read site header: %w", err)
	}

	t := &Table{sites: make(map[string]domain.Site)}
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read site row: %w", err)
		}
		if len(rec) < 3 {
			line, _ := cr.FieldPos(0)
			return nil, fmt.Errorf("site row %d: want at least 3 fields, got %d", line, len(rec))
		}
		lat, err := strconv.ParseFloat(rec[1], 64)
		if err != nil {
			return nil, fmt.Errorf("site %s latitude: %w", rec[0], err)
		}
		lon, err := strconv.ParseFloat(rec[2], 64)
		if err != nil {
			return nil, fmt.Errorf("site %s longitude: %w", rec[0], err)
		}
		id := strings.ToUpper(strings.TrimSpace(rec[0]))
		t.sites[id] = domain.Site{ID: id, Point: domain.Point{Lat: lat, Lon: lon}}
	}
	return t, nil
}

// Lookup returns the site for a radar identifier, case-insensitively.
func (t *Table) Lookup(id string) (domain.Site, error) {
	s, ok := t.sites[strings.ToUpper(strings.TrimSpace(id))]
	if !ok {
		return domain.Site{}, fmt.Errorf("%w: %q", domain.ErrUnknownRadar, id)
	}
	return s, nil
}

// IDs lists every known radar in sorted order.
func (t *Table) IDs() []string {
	ids := make([]string, 0, len(t.sites))
	for id := range t.sites {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}
