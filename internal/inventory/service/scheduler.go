package service

import (
	"context"
	"time"

	"github.com/farmflow/farmflow-backend/pkg/logger"
)

// Scheduler runs the expiry scan and the recovery cleanup on their own
// intervals in a background goroutine.
type Scheduler struct {
	scanner         *AlertScanner
	scanInterval    time.Duration
	cleanupInterval time.Duration
	logger          *logger.Logger
	cancel          context.CancelFunc
}

// NewScheduler creates a new scheduler
func NewScheduler(scanner *AlertScanner, scanInterval, cleanupInterval time.Duration, log *logger.Logger) *Scheduler {
	return &Scheduler{
		scanner:         scanner,
		scanInterval:    scanInterval,
		cleanupInterval: cleanupInterval,
		logger:          log,
	}
}

// Start starts the scheduler in a background goroutine.
// An initial scan runs immediately so a restarted service does not wait
// a full interval before refreshing alerts.
func (s *Scheduler) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)

	go func() {
		s.logger.Info().
			Dur("scan_interval", s.scanInterval).
			Dur("cleanup_interval", s.cleanupInterval).
			Msg("expiry scheduler started")

		s.runScan(ctx)

		scanTicker := time.NewTicker(s.scanInterval)
		defer scanTicker.Stop()

		cleanupTicker := time.NewTicker(s.cleanupInterval)
		defer cleanupTicker.Stop()

		for {
			select {
			case <-ctx.Done():
				s.logger.Info().Msg("expiry scheduler stopped")
				return
			case <-scanTicker.C:
				s.runScan(ctx)
			case <-cleanupTicker.C:
				s.runCleanup(ctx)
			}
		}
	}()
}

// Stop stops the scheduler goroutine
func (s *Scheduler) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
}

func (s *Scheduler) runScan(ctx context.Context) {
	start := time.Now()

	stats, err := s.scanner.Scan(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("scheduled expiry scan failed")
		return
	}

	s.logger.Info().
		Dur("duration", time.Since(start)).
		Int("scanned", stats.Scanned).
		Int("created", stats.Created).
		Msg("scheduled expiry scan completed")
}

func (s *Scheduler) runCleanup(ctx context.Context) {
	cleared, err := s.scanner.Cleanup(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("scheduled alert cleanup failed")
		return
	}

	if cleared > 0 {
		s.logger.Info().Int("cleared", cleared).Msg("scheduled alert cleanup completed")
	}
}
