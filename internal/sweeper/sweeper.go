package sweeper

import (
	"context"
	"log/slog"
	"time"

	"github.com/nurdaulet-ab/account-service/internal/metrics"
	"github.com/nurdaulet-ab/account-service/internal/repository"
	"github.com/robfig/cron/v3"
)

// Sweeper periodically bulk-expires overdue ACTIVE codes in the store.
// It never touches the cache mirror: stale entries are corrected by the
// next validation's expiry check or fall out on their own TTL. The sweep
// and the per-request check reconcile the same invariant from two angles
// on purpose — the sweep covers codes nobody ever re-validates.
type Sweeper struct {
	codes    repository.VerificationCodeRepository
	schedule cron.Schedule
	logger   *slog.Logger
}

// New parses a standard cron expression ("* * * * *" for every minute).
func New(codes repository.VerificationCodeRepository, cronExpr string, logger *slog.Logger) (*Sweeper, error) {
	schedule, err := cron.ParseStandard(cronExpr)
	if err != nil {
		return nil, err
	}
	return &Sweeper{
		codes:    codes,
		schedule: schedule,
		logger:   logger.With("component", "sweeper"),
	}, nil
}

func (s *Sweeper) Start(ctx context.Context) {
	s.logger.Info("sweeper started")

	for {
		next := s.schedule.Next(time.Now())
		timer := time.NewTimer(time.Until(next))
		select {
		case <-ctx.Done():
			timer.Stop()
			s.logger.Info("sweeper shut down")
			return
		case <-timer.C:
			s.sweep(ctx)
		}
	}
}

// sweep is safe to overlap with itself: the store-side WHERE clause
// matches nothing on already-EXPIRED rows.
func (s *Sweeper) sweep(ctx context.Context) {
	started := time.Now()

	expired, err := s.codes.ExpireOverdue(ctx, started)
	metrics.SweepDuration.Observe(time.Since(started).Seconds())
	if err != nil {
		s.logger.Error("expire overdue codes", "error", err)
		return
	}
	if expired > 0 {
		metrics.SweepExpiredTotal.Add(float64(expired))
		s.logger.Info("expired overdue codes", "count", expired)
	}
}
