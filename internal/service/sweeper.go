package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/mahmoodamara/storefront/internal/repository"
)

// SweeperConfig holds the expiry sweep schedule.
type SweeperConfig struct {
	Interval  time.Duration
	BatchSize int
}

// Sweeper periodically flips lapsed stock holds to expired, returning their
// quantity to the sellable pool. Expiry is lazy everywhere else; the sweeper
// just keeps the table tidy and the sellable numbers honest.
type Sweeper struct {
	inventory repository.InventoryRepository
	logger    *slog.Logger
	cfg       SweeperConfig
}

// NewSweeper creates a new reservation sweeper.
func NewSweeper(inventory repository.InventoryRepository, logger *slog.Logger, cfg SweeperConfig) *Sweeper {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Minute
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 500
	}
	return &Sweeper{
		inventory: inventory,
		logger:    logger,
		cfg:       cfg,
	}
}

// Run sweeps on a ticker until the context is cancelled.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	s.logger.Info("reservation sweeper started",
		slog.Duration("interval", s.cfg.Interval),
		slog.Int("batch_size", s.cfg.BatchSize),
	)

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("reservation sweeper stopped")
			return
		case <-ticker.C:
			s.SweepOnce(ctx)
		}
	}
}

// SweepOnce expires lapsed holds in batches until a sweep comes back short.
func (s *Sweeper) SweepOnce(ctx context.Context) {
	for {
		n, err := s.inventory.ExpireSweep(ctx, time.Now().UTC(), s.cfg.BatchSize)
		if err != nil {
			s.logger.ErrorContext(ctx, "reservation sweep failed",
				slog.String("error", err.Error()),
			)
			return
		}
		if n > 0 {
			s.logger.InfoContext(ctx, "expired lapsed reservations",
				slog.Int("count", n),
			)
		}
		if n < s.cfg.BatchSize {
			return
		}
	}
}
