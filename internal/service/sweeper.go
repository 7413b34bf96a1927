package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/modvault/session-security/internal/observability"
	"github.com/modvault/session-security/internal/repository"
)

// Sweeper periodically deactivates sessions whose expiry has passed. The
// store only compares timestamps at read time; this is the scheduled sweep
// that turns stale rows into terminated sessions.
type Sweeper struct {
	sessions repository.SessionRepository
	interval time.Duration
	logger   *slog.Logger
}

func NewSweeper(sessions repository.SessionRepository, interval time.Duration, logger *slog.Logger) *Sweeper {
	if interval <= 0 {
		interval = time.Hour
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Sweeper{sessions: sessions, interval: interval, logger: logger}
}

func (s *Sweeper) RunOnce() (int64, error) {
	expired, err := s.sessions.ExpireStale()
	if err != nil {
		return 0, err
	}
	if expired > 0 {
		observability.RecordSweep(expired)
		s.logger.Info("expired stale sessions", "count", expired)
	}
	return expired, nil
}

// Run sweeps on the configured interval until the context ends.
func (s *Sweeper) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if _, err := s.RunOnce(); err != nil {
				s.logger.Error("session sweep failed", "error", err)
			}
		}
	}
}
