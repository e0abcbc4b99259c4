package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	OrderStatusAccepted  OrderStatus = "Accepted"
	OrderStatusPreparing OrderStatus = "Preparing"
	OrderStatusInTransit OrderStatus = "In Transit"
	OrderStatusDelivered OrderStatus = "Delivered"
	OrderStatusCancelled OrderStatus = "Cancelled"
)

var OrderStatuses = []OrderStatus{
	OrderStatusAccepted,
	OrderStatusPreparing,
	OrderStatusInTransit,
	OrderStatusDelivered,
	OrderStatusCancelled,
}

func (s OrderStatus) Valid() bool {
	for _, v := range OrderStatuses {
		if s == v {
			return true
		}
	}
	return false
}

type Order struct {
	ID               string          `json:"id"`
	RequisitionID    string          `json:"requisitionId"`
	ItemID           string          `json:"itemId"`
	SupplierName     string          `json:"supplierName"`
	ItemName         string          `json:"itemName"`
	Brand            string          `json:"brand"`
	Quantity         int             `json:"quantity"`
	UnitPrice        decimal.Decimal `json:"unitPrice"`
	LineCost         decimal.Decimal `json:"lineCost"`
	DeliveryLocation string          `json:"deliveryLocation"`
	NeededBy         string          `json:"neededBy"`
	Urgency          Urgency         `json:"urgency"`
	Status           OrderStatus     `json:"status"`
	CreatedAt        time.Time       `json:"createdAt"`
	UpdatedAt        time.Time       `json:"updatedAt"`
}

// TransitionPolicy decides whether an order may move from one status to
// another. A nil error allows the change.
type TransitionPolicy func(from, to OrderStatus) error

// PermissiveTransitions accepts any status assignment.
func PermissiveTransitions(from, to OrderStatus) error {
	return nil
}

var statusRank = map[OrderStatus]int{
	OrderStatusAccepted:  0,
	OrderStatusPreparing: 1,
	OrderStatusInTransit: 2,
	OrderStatusDelivered: 3,
}

// ForwardOnlyTransitions lets an order advance along
// Accepted → Preparing → In Transit → Delivered, or be cancelled before it is
// delivered. Setting the current status again is allowed.
func ForwardOnlyTransitions(from, to OrderStatus) error {
	if from == to {
		return nil
	}
	if from == OrderStatusCancelled || from == OrderStatusDelivered {
		return ErrInvalidTransition
	}
	if to == OrderStatusCancelled {
		return nil
	}
	if statusRank[to] < statusRank[from] {
		return ErrInvalidTransition
	}
	return nil
}

// TransitionPolicyByName resolves "permissive" (or empty) and "forward".
func TransitionPolicyByName(name string) (TransitionPolicy, error) {
	switch name {
	case "", "permissive":
		return PermissiveTransitions, nil
	case "forward":
		return ForwardOnlyTransitions, nil
	default:
		return nil, fmt.Errorf("unknown order transition policy %q", name)
	}
}
