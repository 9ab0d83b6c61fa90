package store

import (
	"sort"

	"github.com/irc-ultra/ircultra/internal/domain"
)

// GetOrCreateDMConversation resolves the conversation between two aliases,
// creating it on first contact. The pair is unordered, so either side gets
// the same conversation back.
func (s *Store) GetOrCreateDMConversation(aliasA, aliasB string) (domain.DMConversation, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, b := domain.DMPair(aliasA, aliasB)
	id := domain.DMConvoID(a, b)
	if c, ok := s.doc.DMConversations[id]; ok {
		return *c, false
	}

	c := &domain.DMConversation{
		ConvoID:   id,
		AliasA:    a,
		AliasB:    b,
		CreatedAt: s.nowMillis(),
	}
	s.doc.DMConversations[id] = c
	s.markDirty()
	return *c, true
}

// DMConversation returns a copy of the conversation with the given ID.
func (s *Store) DMConversation(convoID string) (domain.DMConversation, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.doc.DMConversations[convoID]
	if !ok {
		return domain.DMConversation{}, false
	}
	return *c, true
}

// DMConversationsFor returns every conversation alias takes part in,
// oldest first.
func (s *Store) DMConversationsFor(alias string) []domain.DMConversation {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []domain.DMConversation
	for _, c := range s.doc.DMConversations {
		if c.Involves(alias) {
			out = append(out, *c)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt != out[j].CreatedAt {
			return out[i].CreatedAt < out[j].CreatedAt
		}
		return out[i].ConvoID < out[j].ConvoID
	})
	return out
}
