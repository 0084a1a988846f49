// Package pullstore persists the time of the last backup pull per customer in
// a flat JSON file.
package pullstore

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/edvin/envdash/internal/model"
)

// TimestampLayout is ISO-8601 UTC with millisecond precision.
const TimestampLayout = "2006-01-02T15:04:05.000Z"

// Entry is the persisted record for one customer.
type Entry struct {
	LastPulledAt string `json:"last_pulled_at"`
}

// UnmarshalJSON accepts both the object form and a bare timestamp string.
func (e *Entry) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		e.LastPulledAt = s
		return nil
	}
	type plain Entry
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*e = Entry(p)
	return nil
}

// Timestamps maps customer ID to its last pull time.
type Timestamps map[int]string

// Store reads and rewrites the whole file on every call. There is no lock:
// concurrent records for different customers are last-writer-wins on the
// file, and two records for the same customer in quick succession may lose
// one update.
type Store struct {
	path   string
	logger zerolog.Logger
}

func New(path string, logger zerolog.Logger) *Store {
	return &Store{
		path:   path,
		logger: logger.With().Str("component", "pullstore").Logger(),
	}
}

func (s *Store) Path() string {
	return s.path
}

// Load returns every recorded timestamp. A missing or corrupt file yields an
// empty map.
func (s *Store) Load() Timestamps {
	raw, err := s.readRaw()
	if err != nil {
		s.logger.Warn().Err(err).Str("path", s.path).Msg("failed to read pull timestamps, treating as empty")
		return Timestamps{}
	}

	out := make(Timestamps, len(raw))
	for key, entry := range raw {
		id, err := model.ParseCustomerID(key)
		if err != nil || entry.LastPulledAt == "" {
			continue
		}
		out[id] = entry.LastPulledAt
	}
	return out
}

// LastPulled returns the recorded timestamp for a customer.
func (s *Store) LastPulled(customerID int) (string, bool) {
	ts, ok := s.Load()[customerID]
	return ts, ok
}

// Record stores at as the last pull time for customerID and returns the
// formatted timestamp.
func (s *Store) Record(customerID int, at time.Time) (string, error) {
	ts := at.UTC().Format(TimestampLayout)

	raw, err := s.readRaw()
	if err != nil {
		s.logger.Warn().Err(err).Str("path", s.path).Msg("discarding unreadable pull timestamps")
		raw = map[string]Entry{}
	}

	// Drop aliases such as "42.0" so the file keeps one key per customer.
	for key := range raw {
		if id, err := model.ParseCustomerID(key); err == nil && id == customerID {
			delete(raw, key)
		}
	}
	raw[strconv.Itoa(customerID)] = Entry{LastPulledAt: ts}

	if err := s.write(raw); err != nil {
		return ts, err
	}
	return ts, nil
}

func (s *Store) readRaw() (map[string]Entry, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return map[string]Entry{}, nil
		}
		return nil, fmt.Errorf("read %s: %w", s.path, err)
	}
	if len(data) == 0 {
		return map[string]Entry{}, nil
	}

	raw := map[string]Entry{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decode %s: %w", s.path, err)
	}
	return raw, nil
}

// write replaces the file through a temp file and rename so a crash mid-write
// leaves either the old or the new content.
func (s *Store) write(raw map[string]Entry) error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("create dir %s: %w", dir, err)
	}

	data, err := json.MarshalIndent(raw, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal timestamps: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() {
		// no-op once the rename succeeded
		_ = os.Remove(tmpName)
	}()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("rename temp file: %w", err)
	}
	return nil
}

// Check reports whether the store's directory exists or can be created.
func (s *Store) Check() error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("create dir %s: %w", dir, err)
	}
	info, err := os.Stat(dir)
	if err != nil {
		return fmt.Errorf("stat %s: %w", dir, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", dir)
	}
	return nil
}
