package store

import (
	"github.com/irc-ultra/ircultra/internal/domain"
)

// InsertModerationAction appends a moderation record to the durable trail.
func (s *Store) InsertModerationAction(actor, target, channel string, action domain.ModerationType, reason string) domain.ModerationAction {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec := &domain.ModerationAction{
		ActionID:    newID(),
		ActorAlias:  actor,
		TargetAlias: target,
		Channel:     channel,
		ActionType:  action,
		Reason:      reason,
		CreatedAt:   s.nowMillis(),
	}
	s.doc.ModerationActions = append(s.doc.ModerationActions, rec)
	s.markDirty()
	return *rec
}

// ModerationActions returns the trail for a channel, oldest first. An empty
// channel returns everything.
func (s *Store) ModerationActions(channel string) []domain.ModerationAction {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []domain.ModerationAction
	for _, rec := range s.doc.ModerationActions {
		if channel != "" && rec.Channel != channel {
			continue
		}
		out = append(out, *rec)
	}
	return out
}

// InsertAuditEvent appends a structured audit record.
func (s *Store) InsertAuditEvent(category, actor string, payload map[string]any) domain.AuditEvent {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec := &domain.AuditEvent{
		EventID:   newID(),
		Category:  category,
		Actor:     actor,
		Payload:   payload,
		CreatedAt: s.nowMillis(),
	}
	s.doc.AuditEvents = append(s.doc.AuditEvents, rec)
	s.markDirty()
	return *rec
}
