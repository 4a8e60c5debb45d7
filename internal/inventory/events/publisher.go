package events

import (
	"context"
	"time"

	"github.com/farmflow/farmflow-backend/internal/inventory/repository"
	"github.com/farmflow/farmflow-backend/pkg/logger"
	"github.com/farmflow/farmflow-backend/pkg/messaging"
)

// Publisher is the minimal publishing surface the event wrappers need.
// Satisfied by messaging.Publisher in production and by test doubles.
type Publisher interface {
	Publish(ctx context.Context, eventType string, data interface{}) error
}

// InventoryEventPublisher publishes inventory-related events
type InventoryEventPublisher struct {
	publisher Publisher
	logger    *logger.Logger
}

// NewInventoryEventPublisher creates a new inventory event publisher
func NewInventoryEventPublisher(rmq *messaging.RabbitMQ, log *logger.Logger) (*InventoryEventPublisher, error) {
	publisher, err := messaging.NewPublisher(rmq, messaging.ExchangeInventoryEvents, "inventory-service", log)
	if err != nil {
		return nil, err
	}

	return &InventoryEventPublisher{
		publisher: publisher,
		logger:    log,
	}, nil
}

// NewWithPublisher wraps an existing publisher. Used by tests.
func NewWithPublisher(p Publisher, log *logger.Logger) *InventoryEventPublisher {
	return &InventoryEventPublisher{
		publisher: p,
		logger:    log,
	}
}

// PublishLotReceived publishes a lot received event
func (p *InventoryEventPublisher) PublishLotReceived(ctx context.Context, lot *repository.Lot) {
	if p == nil {
		return
	}

	data := messaging.LotReceivedEvent{
		LotID:           lot.ID,
		ProductID:       lot.ProductID,
		LotNumber:       lot.LotNumber,
		Quantity:        lot.InitialQuantity,
		ManufactureDate: lot.ManufactureDate,
		ExpiryDate:      lot.ExpiryDate,
	}

	if err := p.publisher.Publish(ctx, messaging.EventLotReceived, data); err != nil {
		p.logger.Error().Err(err).Str("lot_id", lot.ID).Msg("failed to publish lot received event")
	}
}

// PublishLotDeleted publishes a lot deleted event
func (p *InventoryEventPublisher) PublishLotDeleted(ctx context.Context, lot *repository.Lot) {
	if p == nil {
		return
	}

	data := messaging.LotDeletedEvent{
		LotID:     lot.ID,
		ProductID: lot.ProductID,
		LotNumber: lot.LotNumber,
	}

	if err := p.publisher.Publish(ctx, messaging.EventLotDeleted, data); err != nil {
		p.logger.Error().Err(err).Str("lot_id", lot.ID).Msg("failed to publish lot deleted event")
	}
}

// PublishStockDeducted publishes a stock deducted event for a committed plan
func (p *InventoryEventPublisher) PublishStockDeducted(ctx context.Context, planID, productID string, total int, lines []messaging.DeductionLine) {
	if p == nil {
		return
	}

	data := messaging.StockDeductedEvent{
		PlanID:    planID,
		ProductID: productID,
		Total:     total,
		Lines:     lines,
	}

	if err := p.publisher.Publish(ctx, messaging.EventStockDeducted, data); err != nil {
		p.logger.Error().Err(err).Str("plan_id", planID).Msg("failed to publish stock deducted event")
	}
}

// PublishAlertGenerated publishes an alert generated event
func (p *InventoryEventPublisher) PublishAlertGenerated(ctx context.Context, alert *repository.ExpiryAlert, lot *repository.Lot, expiry time.Time) {
	if p == nil {
		return
	}

	data := messaging.AlertGeneratedEvent{
		AlertID:    alert.ID,
		LotID:      alert.LotID,
		ProductID:  lot.ProductID,
		LotNumber:  lot.LotNumber,
		Tier:       alert.Tier,
		ExpiryDate: expiry,
		DaysUntil:  alert.DaysUntilExpiry,
		Quantity:   lot.RemainingQuantity,
	}

	if err := p.publisher.Publish(ctx, messaging.EventAlertGenerated, data); err != nil {
		p.logger.Error().Err(err).Str("alert_id", alert.ID).Msg("failed to publish alert generated event")
	}
}

// PublishAlertCleared publishes an alert cleared event
func (p *InventoryEventPublisher) PublishAlertCleared(ctx context.Context, cleared *repository.ClearedAlert) {
	if p == nil {
		return
	}

	data := messaging.AlertClearedEvent{
		LotID:     cleared.LotID,
		ProductID: cleared.ProductID,
		Tier:      cleared.Tier,
	}

	if err := p.publisher.Publish(ctx, messaging.EventAlertCleared, data); err != nil {
		p.logger.Error().Err(err).Str("lot_id", cleared.LotID).Msg("failed to publish alert cleared event")
	}
}
