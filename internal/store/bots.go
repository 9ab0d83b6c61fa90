package store

import (
	"sort"
	"strings"

	"github.com/irc-ultra/ircultra/internal/domain"
)

// Bots returns every registered bot application, sorted by name.
func (s *Store) Bots() []domain.Bot {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]domain.Bot, 0, len(s.doc.BotApps))
	for _, b := range s.doc.BotApps {
		out = append(out, *b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// BotByID looks a bot up by its ID.
func (s *Store) BotByID(botID string) (domain.Bot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, b := range s.doc.BotApps {
		if b.BotID == botID {
			return *b, nil
		}
	}
	return domain.Bot{}, ErrBotNotFound
}

// BotByName looks a bot up by name, case-insensitively.
func (s *Store) BotByName(name string) (domain.Bot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, b := range s.doc.BotApps {
		if strings.EqualFold(b.Name, name) {
			return *b, nil
		}
	}
	return domain.Bot{}, ErrBotNotFound
}
