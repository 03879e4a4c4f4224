package jobs

import (
	"context"
	"log/slog"
	"time"

	repo "infostore/internal/domain/repositories/infostore"
)

var _ CronJob = (*ReservationSweeper)(nil)

// ReservationSweeper deletes filename reservations left behind by writers
// that never released them.
type ReservationSweeper struct {
	reservations repo.ReservationRepository
	schedule     string
	ttl          time.Duration
	timeout      time.Duration
	now          func() time.Time
	logger       *slog.Logger
}

func NewReservationSweeper(reservations repo.ReservationRepository, schedule string, ttl time.Duration, logger *slog.Logger) *ReservationSweeper {
	return &ReservationSweeper{
		reservations: reservations,
		schedule:     schedule,
		ttl:          ttl,
		timeout:      30 * time.Second,
		now:          time.Now,
		logger:       logger,
	}
}

func (s *ReservationSweeper) Schedule() string { return s.schedule }

// Run performs one sweep; errors are logged.
func (s *ReservationSweeper) Run() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	if _, err := s.Sweep(ctx); err != nil {
		s.logger.Error("reservation sweep failed", "error", err)
	}
}

// Sweep deletes reservations older than the TTL and returns the count.
func (s *ReservationSweeper) Sweep(ctx context.Context) (int64, error) {
	cutoff := s.now().Add(-s.ttl)
	n, err := s.reservations.SweepExpired(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.logger.Info("expired reservations removed", "count", n, "cutoff", cutoff)
	}
	return n, nil
}
