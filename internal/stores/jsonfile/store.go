// Package jsonfile persists the entry collection as one pretty-printed JSON document,
// replaced atomically on every save
package jsonfile

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/ethanbaker/riskwatch/pkg/entry"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// ErrStoreUnavailable means the store could neither be read nor moved aside. Runs must stop
// rather than overwrite data they could not load
var ErrStoreUnavailable = errors.New("store unavailable")

// Store reads and writes the knowledge base file
type Store struct {
	path   string
	logger *zap.Logger

	now    func() time.Time
	rename func(oldpath, newpath string) error
}

// New creates a store for the file at path. The file does not have to exist
func New(path string, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		path:   path,
		logger: logger.Named("jsonfile"),
		now:    time.Now,
		rename: os.Rename,
	}
}

// Path returns the file the store manages
func (s *Store) Path() string {
	return s.path
}

// Load reads every entry. A missing file is an empty store. A file that cannot be read or
// parsed is moved aside to <path>.corrupt-<timestamp> and the store starts empty
func (s *Store) Load(ctx context.Context) ([]entry.Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		s.logger.Info("store file not found, starting empty", zap.String("path", s.path))
		return []entry.Entry{}, nil
	}
	if err != nil {
		return s.quarantine(fmt.Errorf("read: %w", err))
	}

	if len(bytes.TrimSpace(data)) == 0 {
		return []entry.Entry{}, nil
	}

	var entries []entry.Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		return s.quarantine(fmt.Errorf("parse: %w", err))
	}

	collection, dropped := entry.NewCollection(entries)
	for _, term := range dropped {
		s.logger.Warn("dropped duplicate entry from store", zap.String("term", term))
	}

	return collection.Entries(), nil
}

// quarantine moves an unusable store file aside so the run can start from an empty store
func (s *Store) quarantine(cause error) ([]entry.Entry, error) {
	aside := fmt.Sprintf("%s.corrupt-%s", s.path, s.now().UTC().Format("20060102T150405Z"))

	if err := s.rename(s.path, aside); err != nil {
		s.logger.Error("failed to quarantine unusable store", zap.String("path", s.path), zap.Error(err))
		return nil, fmt.Errorf("%w: %s: %w", ErrStoreUnavailable, s.path, multierr.Append(cause, err))
	}

	s.logger.Warn("moved unusable store aside, starting empty",
		zap.String("path", s.path),
		zap.String("quarantined", aside),
		zap.Error(cause),
	)
	return []entry.Entry{}, nil
}

// Save replaces the file with entries. The document is written to a temporary file in the
// same directory, synced, and renamed over the target, so readers only ever see the old or
// the new document
func (s *Store) Save(ctx context.Context, entries []entry.Entry) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if entries == nil {
		entries = []entry.Entry{}
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetIndent("", "    ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(entries); err != nil {
		return fmt.Errorf("failed to encode entries: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create store directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	fail := func(err error) error {
		return multierr.Combine(err, tmp.Close(), removeIfExists(tmpPath))
	}

	if _, err := tmp.Write(buf.Bytes()); err != nil {
		return fail(fmt.Errorf("failed to write temp file: %w", err))
	}
	if err := tmp.Chmod(0o644); err != nil {
		return fail(fmt.Errorf("failed to set permissions: %w", err))
	}
	if err := tmp.Sync(); err != nil {
		return fail(fmt.Errorf("failed to sync temp file: %w", err))
	}

	if err := tmp.Close(); err != nil {
		return multierr.Append(fmt.Errorf("failed to close temp file: %w", err), removeIfExists(tmpPath))
	}

	if err := s.rename(tmpPath, s.path); err != nil {
		return multierr.Append(fmt.Errorf("failed to replace store file: %w", err), removeIfExists(tmpPath))
	}

	s.logger.Debug("saved store", zap.String("path", s.path), zap.Int("entries", len(entries)))
	return nil
}

func removeIfExists(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}
