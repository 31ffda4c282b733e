// Package events defines the envelope and payloads published after cart and
// order mutations commit.
package events

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

const (
	EventCartItemsReserved  = "CartItemsReserved"
	EventCartItemRemoved    = "CartItemRemoved"
	EventCartCleared        = "CartCleared"
	EventOrderPlaced        = "OrderPlaced"
	EventOrderStatusChanged = "OrderStatusChanged"
)

const (
	TopicCartChanged        = "cart.changed"
	TopicOrderPlaced        = "order.placed"
	TopicOrderStatusChanged = "order.status.changed"
)

// Envelope wraps every payload on the wire.
type Envelope struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	EventVersion  int             `json:"event_version"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Producer      string          `json:"producer"`
	TraceID       string          `json:"trace_id,omitempty"`
	CorrelationID string          `json:"correlation_id,omitempty"` // cart or order id
	Payload       json.RawMessage `json:"payload"`
}

// NewEnvelope stamps a fresh event id and time on payload.
func NewEnvelope(producer, eventType, correlationID string, payload any) (Envelope, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{
		EventID:       uuid.NewString(),
		EventType:     eventType,
		EventVersion:  1,
		OccurredAt:    time.Now().UTC(),
		Producer:      producer,
		CorrelationID: correlationID,
		Payload:       b,
	}, nil
}

// ---- payloads ----

// CartRef is the part every cart event carries; consumers that only need to
// know which cart changed decode into it.
type CartRef struct {
	CartID string `json:"cart_id"`
	UserID string `json:"user_id"`
}

type ItemQty struct {
	ProductID string `json:"product_id"`
	Qty       int    `json:"qty"`
	// Delta is the stock taken (positive) or given back (negative).
	Delta int `json:"delta"`
}

type CartItemsReservedPayload struct {
	CartRef
	Items []ItemQty `json:"items"`
}

type CartItemRemovedPayload struct {
	CartRef
	ProductID string `json:"product_id"`
	Released  int    `json:"released"`
}

type CartClearedPayload struct {
	CartRef
	Items []ItemQty `json:"items"`
}

type OrderPlacedPayload struct {
	OrderID     string    `json:"order_id"`
	OrderNumber string    `json:"order_number"`
	CartID      string    `json:"cart_id"`
	UserID      string    `json:"user_id"`
	TotalAmount string    `json:"total_amount"`
	Items       []ItemQty `json:"items"`
}

type OrderStatusChangedPayload struct {
	OrderID string `json:"order_id"`
	From    string `json:"from"`
	To      string `json:"to"`
}

// PartitionKey keeps every event of one cart or order on one partition.
func PartitionKey(id string) []byte { return []byte(id) }
