package store

import (
	"strings"

	"github.com/irc-ultra/ircultra/internal/domain"
)

// InsertMessageParams carries a new message. Exactly one of Body or
// EncryptedPayload must be set; plaintext rides Body, direct messages ride
// EncryptedPayload untouched.
type InsertMessageParams struct {
	Scope            domain.Scope
	SenderAlias      string
	SenderDeviceID   string
	Kind             domain.MessageKind
	Body             string
	EncryptedPayload []byte
	ReplyTo          string
	ThreadID         string
}

// InsertMessage appends a message to the log, assigning a time-ordered ID
// and the server timestamp.
func (s *Store) InsertMessage(p InsertMessageParams) (domain.Message, error) {
	hasBody := p.Body != ""
	hasPayload := len(p.EncryptedPayload) > 0
	if hasBody == hasPayload {
		return domain.Message{}, ErrMessagePayload
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	kind := p.Kind
	if kind == "" {
		kind = domain.KindText
	}
	msg := &domain.Message{
		MessageID:        NewMessageID(),
		Scope:            p.Scope,
		SenderAlias:      p.SenderAlias,
		SenderDeviceID:   p.SenderDeviceID,
		Kind:             kind,
		Body:             p.Body,
		EncryptedPayload: p.EncryptedPayload,
		Timestamp:        s.nowMillis(),
		ReplyTo:          p.ReplyTo,
		ThreadID:         p.ThreadID,
	}
	s.doc.Messages = append(s.doc.Messages, msg)
	s.markDirty()
	return *msg, nil
}

// Message returns a copy of the message, tombstones included.
func (s *Store) Message(id string) (domain.Message, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m := s.findLocked(id)
	if m == nil {
		return domain.Message{}, false
	}
	return *m, true
}

// EditMessage replaces the body of the author's own plaintext message.
// Deleted messages edit like missing ones, encrypted ones cannot be edited
// at all because the server never sees their content.
func (s *Store) EditMessage(id, editorAlias, body string) (domain.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m := s.findLocked(id)
	if m == nil || m.Deleted() {
		return domain.Message{}, ErrMessageNotFound
	}
	if m.SenderAlias != editorAlias {
		return domain.Message{}, ErrNotAuthor
	}
	if len(m.EncryptedPayload) > 0 {
		return domain.Message{}, ErrNotEditable
	}
	m.Body = body
	s.markDirty()
	return *m, nil
}

// DeleteMessage turns the author's message into a tombstone: content and
// reactions are dropped, the row and its timestamp stay. Deleting twice
// reports the message as missing.
func (s *Store) DeleteMessage(id, actorAlias string) (domain.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m := s.findLocked(id)
	if m == nil || m.Deleted() {
		return domain.Message{}, ErrMessageNotFound
	}
	if m.SenderAlias != actorAlias {
		return domain.Message{}, ErrNotAuthor
	}
	m.Body = ""
	m.EncryptedPayload = nil
	m.Reactions = nil
	m.DeletedAt = s.nowMillis()
	s.markDirty()
	return *m, nil
}

// ToggleReaction adds alias under the emoji, or removes it when already
// present. The second return reports whether the toggle added.
func (s *Store) ToggleReaction(id, emoji, alias string) (domain.Message, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m := s.findLocked(id)
	if m == nil || m.Deleted() {
		return domain.Message{}, false, ErrMessageNotFound
	}
	added := m.ToggleReaction(emoji, alias)
	s.markDirty()
	return *m, added, nil
}

// ListHistory returns up to limit live messages in the scope, oldest first,
// all strictly older than before. A before of zero means no upper bound.
func (s *Store) ListHistory(scope domain.Scope, before int64, limit int) []domain.Message {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := scope.Key()
	var matched []*domain.Message
	for _, m := range s.doc.Messages {
		if m.Deleted() || m.Scope.Key() != key {
			continue
		}
		if before > 0 && m.Timestamp >= before {
			continue
		}
		matched = append(matched, m)
	}
	if limit > 0 && len(matched) > limit {
		matched = matched[len(matched)-limit:]
	}
	out := make([]domain.Message, len(matched))
	for i, m := range matched {
		out[i] = *m
	}
	return out
}

// SearchChannelMessages scans the channel's live plaintext bodies for the
// query, case-insensitively, returning the most recent limit hits oldest
// first.
func (s *Store) SearchChannelMessages(channel, query string, limit int) []domain.Message {
	s.mu.Lock()
	defer s.mu.Unlock()

	needle := strings.ToLower(query)
	key := domain.Scope{Kind: domain.ScopeChannel, Channel: channel}.Key()
	var matched []*domain.Message
	for _, m := range s.doc.Messages {
		if m.Deleted() || m.Scope.Key() != key {
			continue
		}
		if !strings.Contains(strings.ToLower(m.Body), needle) {
			continue
		}
		matched = append(matched, m)
	}
	if limit > 0 && len(matched) > limit {
		matched = matched[len(matched)-limit:]
	}
	out := make([]domain.Message, len(matched))
	for i, m := range matched {
		out[i] = *m
	}
	return out
}

// findLocked returns the message pointer for id. Callers must hold mu.
func (s *Store) findLocked(id string) *domain.Message {
	for _, m := range s.doc.Messages {
		if m.MessageID == id {
			return m
		}
	}
	return nil
}
