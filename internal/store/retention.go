package store

import (
	"time"

	"github.com/irc-ultra/ircultra/internal/domain"
)

// RunRetentionCleanup tombstones live messages older than the retention
// window. Rows stay addressable by ID with their deletion time set, exactly
// like an author delete. It returns the number of messages swept.
func (s *Store) RunRetentionCleanup(days int) int {
	if days <= 0 {
		return 0
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	cutoff := now.Add(-time.Duration(days) * 24 * time.Hour).UnixMilli()
	deletedAt := now.UnixMilli()

	swept := 0
	for _, m := range s.doc.Messages {
		if m.Deleted() || m.Timestamp >= cutoff {
			continue
		}
		m.Body = ""
		m.EncryptedPayload = nil
		m.Reactions = nil
		m.DeletedAt = deletedAt
		swept++
	}

	if swept > 0 {
		s.markDirty()
	}
	return swept
}

// messagesSnapshot is a test hook returning copies of every stored message.
func (s *Store) messagesSnapshot() []domain.Message {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]domain.Message, 0, len(s.doc.Messages))
	for _, m := range s.doc.Messages {
		out = append(out, *m)
	}
	return out
}
