// Package state persists the watch state between runs.
package state

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"go.uber.org/zap"

	"github.com/JakeFAU/page-watcher/internal/hash/sha256"
	"github.com/JakeFAU/page-watcher/internal/storage"
	"github.com/JakeFAU/page-watcher/internal/watch"
)

// ErrCorrupt marks a stored record that cannot be decoded.
var ErrCorrupt = errors.New("state: corrupt record")

// Store encodes watch.State as JSON over a storage.Backend.
type Store struct {
	backend storage.Backend
	logger  *zap.Logger
}

var _ watch.StateStore = (*Store)(nil)

// New creates a store over backend.
func New(backend storage.Backend, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{backend: backend, logger: logger}
}

// Load returns the persisted state. Missing, unreadable, or corrupt records
// yield an empty state so the next run re-establishes a baseline.
func (s *Store) Load(ctx context.Context) (watch.State, error) {
	data, err := s.backend.Read(ctx)
	if errors.Is(err, storage.ErrNotFound) {
		s.logger.Info("no previous state found", zap.String("location", s.backend.Location()))
		return watch.State{}, nil
	}
	if err != nil {
		if ctx.Err() != nil {
			return watch.State{}, fmt.Errorf("load state: %w", ctx.Err())
		}
		s.logger.Warn("state unreadable, starting fresh",
			zap.String("location", s.backend.Location()),
			zap.Error(err),
		)
		return watch.State{}, nil
	}

	st, err := Decode(data)
	if err != nil {
		s.logger.Warn("state corrupt, starting fresh",
			zap.String("location", s.backend.Location()),
			zap.Error(err),
		)
		return watch.State{}, nil
	}
	s.logger.Debug("state loaded",
		zap.String("location", s.backend.Location()),
		zap.Bool("has_baseline", st.HasBaseline()),
	)
	return st, nil
}

// Save persists st through the backend's atomic replace.
func (s *Store) Save(ctx context.Context, st watch.State) error {
	data, err := Encode(st)
	if err != nil {
		return err
	}
	if err := s.backend.Write(ctx, data); err != nil {
		return fmt.Errorf("save state to %s: %w", s.backend.Location(), err)
	}
	s.logger.Debug("state saved", zap.String("location", s.backend.Location()))
	return nil
}

// Location describes where the state lives.
func (s *Store) Location() string {
	return s.backend.Location()
}

// Close releases the backend when it holds a client.
func (s *Store) Close() error {
	if closer, ok := s.backend.(io.Closer); ok {
		return closer.Close() //nolint:wrapcheck
	}
	return nil
}

// Encode renders st as two-space indented JSON.
func Encode(st watch.State) ([]byte, error) {
	if st.LastChecked != nil {
		utc := st.LastChecked.UTC()
		st.LastChecked = &utc
	}
	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode state: %w", err)
	}
	return append(data, '\n'), nil
}

// Decode parses a stored record, rejecting fingerprints that could not have
// been produced by this program.
func Decode(data []byte) (watch.State, error) {
	var st watch.State
	if err := json.Unmarshal(data, &st); err != nil {
		return watch.State{}, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	if st.LastHash != nil && !sha256.Valid(*st.LastHash) {
		return watch.State{}, fmt.Errorf("%w: invalid last_hash %q", ErrCorrupt, *st.LastHash)
	}
	return st, nil
}
