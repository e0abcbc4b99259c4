package domain

import "time"

type EventType string

const (
	EventOrdersAccepted     EventType = "orders.accepted"
	EventOrderStatusChanged EventType = "order.status_changed"
)

// OrderEvent announces orders created by an accepted plan or an order whose
// status changed.
type OrderEvent struct {
	Type          EventType `json:"type"`
	RequisitionID string    `json:"requisitionId"`
	ItemID        string    `json:"itemId"`
	Orders        []Order   `json:"orders"`
	At            time.Time `json:"at"`
}
