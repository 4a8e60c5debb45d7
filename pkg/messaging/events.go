package messaging

import (
	"encoding/json"
	"fmt"
	"time"
)

// Event types
const (
	// Lot events
	EventLotReceived = "inventory.lot.received"
	EventLotDeleted  = "inventory.lot.deleted"

	// Allocation events
	EventStockDeducted = "inventory.stock.deducted"

	// Alert events
	EventAlertGenerated = "inventory.alert.generated"
	EventAlertCleared   = "inventory.alert.cleared"
)

// Exchange names
const (
	ExchangeInventoryEvents = "inventory.events"
)

// Event is the base event structure
type Event struct {
	ID            string          `json:"id"`
	Type          string          `json:"type"`
	Source        string          `json:"source"`
	Timestamp     time.Time       `json:"timestamp"`
	CorrelationID string          `json:"correlation_id"`
	Data          json.RawMessage `json:"data"`
}

// NewEvent creates a new event with the given type and data
func NewEvent(eventType, source, correlationID string, data interface{}) (*Event, error) {
	dataBytes, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}

	return &Event{
		ID:            GenerateEventID(),
		Type:          eventType,
		Source:        source,
		Timestamp:     time.Now().UTC(),
		CorrelationID: correlationID,
		Data:          dataBytes,
	}, nil
}

// UnmarshalData unmarshals the event data into the provided struct
func (e *Event) UnmarshalData(v interface{}) error {
	return json.Unmarshal(e.Data, v)
}

// Lot Events

// LotReceivedEvent is published when a new lot enters the warehouse
type LotReceivedEvent struct {
	LotID           string    `json:"lot_id"`
	ProductID       string    `json:"product_id"`
	LotNumber       string    `json:"lot_number"`
	Quantity        int       `json:"quantity"`
	ManufactureDate time.Time `json:"manufacture_date"`
	ExpiryDate      time.Time `json:"expiry_date"`
}

// LotDeletedEvent is published when a lot is removed from the warehouse
type LotDeletedEvent struct {
	LotID     string `json:"lot_id"`
	ProductID string `json:"product_id"`
	LotNumber string `json:"lot_number"`
}

// Allocation Events

// StockDeductedEvent is published when an allocation plan is committed
// and stock is drawn down across one or more lots
type StockDeductedEvent struct {
	PlanID    string          `json:"plan_id"`
	ProductID string          `json:"product_id"`
	Total     int             `json:"total"`
	Lines     []DeductionLine `json:"lines"`
}

// DeductionLine is a single lot draw within a committed allocation
type DeductionLine struct {
	LotID     string `json:"lot_id"`
	LotNumber string `json:"lot_number"`
	Quantity  int    `json:"quantity"`
}

// Alert Events

// AlertGeneratedEvent is published when the expiry scanner raises an alert
type AlertGeneratedEvent struct {
	AlertID    string    `json:"alert_id"`
	LotID      string    `json:"lot_id"`
	ProductID  string    `json:"product_id"`
	LotNumber  string    `json:"lot_number"`
	Tier       string    `json:"tier"`
	ExpiryDate time.Time `json:"expiry_date"`
	DaysUntil  int       `json:"days_until"`
	Quantity   int       `json:"quantity"`
}

// AlertClearedEvent is published when the cleanup pass removes alerts
// for lots that have recovered beyond the watch horizon
type AlertClearedEvent struct {
	LotID     string `json:"lot_id"`
	ProductID string `json:"product_id"`
	Tier      string `json:"tier"`
}

// GenerateEventID generates a unique event ID
func GenerateEventID() string {
	return fmt.Sprintf("%d-%d", time.Now().UnixNano(), time.Now().Nanosecond()%10000)
}
