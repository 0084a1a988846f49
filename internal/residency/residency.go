// Package residency loads the static table of domains whose database is hosted
// on customer-managed infrastructure.
package residency

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"github.com/edvin/envdash/internal/model"
)

// Map is a read-only domain to database identifier table. Lookups are
// case-insensitive.
type Map struct {
	entries map[string]string
	source  string
}

// Load reads the map file at path. The file is a JSON (or YAML) object of
// domain to database identifier. A missing or malformed file yields an empty
// map and a warning; it never fails startup.
func Load(path string, logger zerolog.Logger) *Map {
	logger = logger.With().Str("component", "residency").Str("path", path).Logger()

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			logger.Warn().Msg("resident hosting map not found, no resident-hosted customer will be available")
		} else {
			logger.Warn().Err(err).Msg("failed to read resident hosting map")
		}
		return &Map{entries: map[string]string{}, source: path}
	}

	m, err := Parse(data)
	if err != nil {
		logger.Warn().Err(err).Msg("failed to parse resident hosting map")
		return &Map{entries: map[string]string{}, source: path}
	}
	m.source = path

	logger.Info().Int("entries", m.Len()).Msg("resident hosting map loaded")
	return m
}

// Parse decodes a map from raw bytes. JSON input is accepted because it is
// valid YAML.
func Parse(data []byte) (*Map, error) {
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse resident hosting map: %w", err)
	}

	entries := make(map[string]string, len(raw))
	for domain, v := range raw {
		key := model.NormalizeDomain(domain)
		if key == "" || v == nil {
			continue
		}
		entries[key] = fmt.Sprint(v)
	}
	return &Map{entries: entries}, nil
}

// FromEntries builds a map from an in-memory table.
func FromEntries(entries map[string]string) *Map {
	m := &Map{entries: make(map[string]string, len(entries))}
	for domain, db := range entries {
		m.entries[model.NormalizeDomain(domain)] = db
	}
	return m
}

// Lookup returns the database identifier for domain.
func (m *Map) Lookup(domain string) (string, bool) {
	if m == nil {
		return "", false
	}
	db, ok := m.entries[model.NormalizeDomain(domain)]
	return db, ok
}

func (m *Map) Len() int {
	if m == nil {
		return 0
	}
	return len(m.entries)
}

// Source returns the path the map was loaded from, if any.
func (m *Map) Source() string {
	if m == nil {
		return ""
	}
	return m.source
}
