// Package sweeper expires old messages on a fixed cadence.
package sweeper

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// interval is how often the cleanup runs after the startup pass.
const interval = 6 * time.Hour

// Cleaner is the slice of the store the sweeper drives.
type Cleaner interface {
	RunRetentionCleanup(days int) int
}

// Sweeper tombstones messages older than the retention horizon. Tombstoned
// messages stay fetchable by ID but drop out of history, search, and replay.
type Sweeper struct {
	store Cleaner
	days  int
	every time.Duration
	log   zerolog.Logger
}

// New builds a sweeper on the normal cadence.
func New(store Cleaner, days int, logger zerolog.Logger) *Sweeper {
	return &Sweeper{
		store: store,
		days:  days,
		every: interval,
		log:   logger.With().Str("component", "sweeper").Logger(),
	}
}

// Run sweeps once immediately, then on every tick until the context is
// cancelled. It blocks and should be called in a goroutine.
func (s *Sweeper) Run(ctx context.Context) error {
	s.sweep()

	ticker := time.NewTicker(s.every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.sweep()
		}
	}
}

func (s *Sweeper) sweep() {
	removed := s.store.RunRetentionCleanup(s.days)
	if removed > 0 {
		s.log.Info().
			Int("messages", removed).
			Int("retention_days", s.days).
			Msg("Retention cleanup expired messages")
	}
}
