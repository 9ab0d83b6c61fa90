// Package store owns the authoritative in-memory state document and its
// write-behind persistence. All operations are linearized behind one mutex;
// flushes serialize the document under that mutex but perform file I/O
// outside it, so a slow disk never stalls the event path.
package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/irc-ultra/ircultra/internal/domain"
)

// Store is the single-writer state container. A dirty document is flushed
// once per flush delay, however many mutations landed in between.
type Store struct {
	path       string
	flushDelay time.Duration
	log        zerolog.Logger

	// now is swappable in tests.
	now func() time.Time

	mu     sync.Mutex
	doc    *document
	dirty  bool
	timer  *time.Timer
	closed bool

	// flushMu serializes whole flushes so an older snapshot can never
	// overwrite a newer one on disk.
	flushMu sync.Mutex
}

// Open loads the state document at path, creating directories and an empty
// document as needed. A corrupt file is logged and replaced by a fresh
// document rather than refusing to boot. Sessions that were live when the
// previous process died are closed, and the default bot set is seeded on
// first run.
func Open(path string, flushDelay time.Duration, logger zerolog.Logger) (*Store, error) {
	s := &Store{
		path:       path,
		flushDelay: flushDelay,
		log:        logger.With().Str("component", "store").Logger(),
		now:        time.Now,
		doc:        newDocument(),
	}

	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create state directory: %w", err)
		}
	}

	data, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
		s.log.Info().Str("path", path).Msg("No state file, starting empty")
	case err != nil:
		return nil, fmt.Errorf("read state file: %w", err)
	default:
		var doc document
		if jsonErr := json.Unmarshal(data, &doc); jsonErr != nil {
			s.log.Error().Err(jsonErr).Str("path", path).
				Msg("State file is corrupt, starting empty")
		} else {
			doc.normalize()
			s.doc = &doc
		}
	}

	s.mu.Lock()
	s.releaseStaleSessions()
	s.seedBots()
	s.dirty = true
	s.mu.Unlock()

	if err := s.Flush(); err != nil {
		return nil, fmt.Errorf("initial state write: %w", err)
	}

	s.log.Info().
		Str("path", path).
		Int("aliases", len(s.doc.Aliases)).
		Int("channels", len(s.doc.Channels)).
		Int("messages", len(s.doc.Messages)).
		Msg("State loaded")
	return s, nil
}

// releaseStaleSessions clears liveness left over from a previous process:
// no alias is held and no session is connected when this one starts.
// Callers must hold mu.
func (s *Store) releaseStaleSessions() {
	nowMS := s.now().UnixMilli()
	for _, a := range s.doc.Aliases {
		a.ActiveSessionID = ""
	}
	for _, sess := range s.doc.Sessions {
		if sess.DisconnectedAt == 0 {
			sess.DisconnectedAt = nowMS
		}
	}
}

// seedBots installs the built-in echo bot when no bots exist yet. Callers
// must hold mu.
func (s *Store) seedBots() {
	if len(s.doc.BotApps) > 0 {
		return
	}
	s.doc.BotApps = append(s.doc.BotApps, &domain.Bot{
		BotID:       newID(),
		Name:        "echo",
		Version:     "1.0.0",
		Permissions: []string{"message.write"},
		CreatedAt:   s.now().UnixMilli(),
	})
}

// markDirty flags the document changed and arms the flush timer if idle.
// Callers must hold mu.
func (s *Store) markDirty() {
	s.dirty = true
	if s.timer == nil && !s.closed {
		s.timer = time.AfterFunc(s.flushDelay, s.flushFromTimer)
	}
}

func (s *Store) flushFromTimer() {
	s.mu.Lock()
	s.timer = nil
	s.mu.Unlock()

	if err := s.Flush(); err != nil {
		s.log.Error().Err(err).Msg("Write-behind flush failed")
	}
}

// Flush writes the document to disk if it is dirty. On failure the document
// stays dirty so the next mutation or Close retries.
func (s *Store) Flush() error {
	s.flushMu.Lock()
	defer s.flushMu.Unlock()

	s.mu.Lock()
	if !s.dirty {
		s.mu.Unlock()
		return nil
	}
	data, err := json.MarshalIndent(s.doc, "", "  ")
	if err != nil {
		s.mu.Unlock()
		return fmt.Errorf("marshal state: %w", err)
	}
	s.dirty = false
	s.mu.Unlock()

	if err := writeAtomic(s.path, data); err != nil {
		s.mu.Lock()
		s.dirty = true
		s.mu.Unlock()
		return fmt.Errorf("write state: %w", err)
	}
	return nil
}

// Close stops the flush timer and writes any pending state.
func (s *Store) Close() error {
	s.mu.Lock()
	s.closed = true
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.mu.Unlock()

	return s.Flush()
}

// writeAtomic writes data through a temp file in the target directory and
// renames it into place, so readers never observe a half-written document.
func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".irc-ultra-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	return nil
}

// nowMillis returns the injected clock's time in Unix milliseconds.
func (s *Store) nowMillis() int64 {
	return s.now().UnixMilli()
}
