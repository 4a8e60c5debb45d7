package service

import (
	"context"
	"time"

	"github.com/farmflow/farmflow-backend/internal/inventory/events"
	"github.com/farmflow/farmflow-backend/internal/inventory/repository"
	"github.com/farmflow/farmflow-backend/pkg/logger"
)

// ScannerLotStore is the lot access the scanner needs
type ScannerLotStore interface {
	ListWithStock(ctx context.Context) ([]*repository.Lot, error)
}

// AlertStore is the alert access the scanner needs
type AlertStore interface {
	Create(ctx context.Context, alert *repository.ExpiryAlert) error
	ExistsForLotAtTier(ctx context.Context, lotID, tier string) (bool, error)
	DeleteForLot(ctx context.Context, lotID string) (int64, error)
	DeleteRecovered(ctx context.Context, horizon time.Time) ([]*repository.ClearedAlert, error)
}

// ScanStats summarizes one scan pass
type ScanStats struct {
	Scanned  int `json:"scanned"`
	Watch    int `json:"watch"`
	Elevated int `json:"elevated"`
	Critical int `json:"critical"`
	Expired  int `json:"expired"`
	Created  int `json:"created"`
	Deleted  int `json:"deleted"`
	Failed   int `json:"failed"`
}

// AlertScanner walks lots with remaining stock and keeps their expiry
// alerts in sync with the classification tiers. Per-lot failures are
// logged and tallied without aborting the pass.
type AlertScanner struct {
	lots      ScannerLotStore
	alerts    AlertStore
	publisher *events.InventoryEventPublisher
	logger    *logger.Logger
	now       func() time.Time
}

// NewAlertScanner creates a new alert scanner
func NewAlertScanner(
	lots ScannerLotStore,
	alerts AlertStore,
	publisher *events.InventoryEventPublisher,
	log *logger.Logger,
) *AlertScanner {
	return &AlertScanner{
		lots:      lots,
		alerts:    alerts,
		publisher: publisher,
		logger:    log,
		now:       time.Now,
	}
}

// Scan classifies every lot that still holds stock and reconciles its
// alert. A lot carries at most one active alert: when its tier moves,
// the old alert is deleted and a fresh one created. Re-running a scan
// on unchanged data is a no-op.
func (s *AlertScanner) Scan(ctx context.Context) (*ScanStats, error) {
	lots, err := s.lots.ListWithStock(ctx)
	if err != nil {
		return nil, err
	}

	now := s.now()
	stats := &ScanStats{}

	for _, lot := range lots {
		stats.Scanned++

		days := DaysUntil(now, lot.ExpiryDate)
		tier := Classify(days)

		switch tier {
		case TierWatch:
			stats.Watch++
		case TierElevated:
			stats.Elevated++
		case TierCritical:
			stats.Critical++
		case TierExpired:
			stats.Expired++
		case TierNormal:
			continue
		}

		exists, err := s.alerts.ExistsForLotAtTier(ctx, lot.ID, string(tier))
		if err != nil {
			s.logger.Error().Err(err).Str("lot_id", lot.ID).Msg("scan: failed to check existing alert")
			stats.Failed++
			continue
		}
		if exists {
			continue
		}

		deleted, err := s.alerts.DeleteForLot(ctx, lot.ID)
		if err != nil {
			s.logger.Error().Err(err).Str("lot_id", lot.ID).Msg("scan: failed to clear stale alert")
			stats.Failed++
			continue
		}
		stats.Deleted += int(deleted)

		alert := &repository.ExpiryAlert{
			LotID:           lot.ID,
			Tier:            string(tier),
			DaysUntilExpiry: days,
		}
		if err := s.alerts.Create(ctx, alert); err != nil {
			s.logger.Error().Err(err).Str("lot_id", lot.ID).Str("tier", string(tier)).Msg("scan: failed to create alert")
			stats.Failed++
			continue
		}
		stats.Created++

		s.publisher.PublishAlertGenerated(ctx, alert, lot, lot.ExpiryDate)
	}

	s.logger.Info().
		Int("scanned", stats.Scanned).
		Int("created", stats.Created).
		Int("deleted", stats.Deleted).
		Int("failed", stats.Failed).
		Msg("expiry scan completed")

	return stats, nil
}

// Cleanup removes alerts whose lot has moved back beyond the watch
// horizon, which happens when a mislabeled expiry date is corrected.
func (s *AlertScanner) Cleanup(ctx context.Context) (int, error) {
	horizon := s.now().UTC().AddDate(0, 0, watchThresholdDays)

	cleared, err := s.alerts.DeleteRecovered(ctx, horizon)
	if err != nil {
		return 0, err
	}

	for _, c := range cleared {
		s.publisher.PublishAlertCleared(ctx, c)
	}

	if len(cleared) > 0 {
		s.logger.Info().Int("cleared", len(cleared)).Msg("recovered alerts cleaned up")
	}

	return len(cleared), nil
}
