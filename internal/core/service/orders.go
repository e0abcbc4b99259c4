package service

import (
	"context"

	"github.com/rl1809/procurematch/internal/core/domain"
)

// UpdateOrderStatus sets the order's status and touches updatedAt. Which
// transitions are allowed is decided by the configured TransitionPolicy;
// the default allows any value of the status enum.
func (s *Store) UpdateOrderStatus(ctx context.Context, orderID string, status domain.OrderStatus) (domain.Order, error) {
	if !status.Valid() {
		return domain.Order{}, domain.NewValidationError(domain.FieldError{
			Field:  "status",
			Reason: "is not a known order status",
		})
	}

	s.mu.Lock()
	idx := s.orderIndex(orderID)
	if idx < 0 {
		s.mu.Unlock()
		return domain.Order{}, domain.NotFound("order", orderID)
	}
	current := s.orders[idx]
	if err := s.transitions(current.Status, status); err != nil {
		s.mu.Unlock()
		return domain.Order{}, domain.Conflict("order", orderID, err)
	}
	current.Status = status
	current.UpdatedAt = s.now()
	s.orders[idx] = current
	s.mu.Unlock()

	s.publish(ctx, domain.OrderEvent{
		Type:          domain.EventOrderStatusChanged,
		RequisitionID: current.RequisitionID,
		ItemID:        current.ItemID,
		Orders:        []domain.Order{current},
		At:            current.UpdatedAt,
	})
	return current, nil
}

// Orders returns every order, most recent batch first.
func (s *Store) Orders() []domain.Order {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.Order(nil), s.orders...)
}

func (s *Store) OrdersBySupplier(supplier string) []domain.Order {
	s.mu.Lock()
	defer s.mu.Unlock()

	var orders []domain.Order
	for _, o := range s.orders {
		if domain.SameText(o.SupplierName, supplier) {
			orders = append(orders, o)
		}
	}
	return orders
}

type SupplierSummary struct {
	Supplier       string `json:"supplier"`
	SKUs           int    `json:"skus"`
	InventoryQty   int    `json:"inventoryQty"`
	AssignedOrders int    `json:"assignedOrders"`
	OrderQty       int    `json:"orderQty"`
}

// SupplierSummary totals the supplier's inventory rows and assigned orders.
func (s *Store) SupplierSummary(supplier string) SupplierSummary {
	s.mu.Lock()
	defer s.mu.Unlock()

	sum := SupplierSummary{Supplier: supplier}
	for _, r := range s.inventory {
		if domain.SameText(r.SupplierName, supplier) {
			sum.SKUs++
			sum.InventoryQty += r.Quantity
		}
	}
	for _, o := range s.orders {
		if domain.SameText(o.SupplierName, supplier) {
			sum.AssignedOrders++
			sum.OrderQty += o.Quantity
		}
	}
	return sum
}

type ComplianceLog struct {
	Orders           []domain.Order        `json:"orders"`
	OpenRequisitions []domain.Requisition  `json:"openRequisitions"`
	Inventory        []domain.InventoryRow `json:"inventory"`
}

// ComplianceLog gathers all orders, the open requisitions and the first
// inventoryLimit inventory rows. A limit of zero or less returns all rows.
func (s *Store) ComplianceLog(inventoryLimit int) ComplianceLog {
	s.mu.Lock()
	defer s.mu.Unlock()

	log := ComplianceLog{
		Orders:           append([]domain.Order(nil), s.orders...),
		OpenRequisitions: []domain.Requisition{},
	}
	for _, r := range s.requisitions {
		if r.Status == domain.RequisitionOpen {
			log.OpenRequisitions = append(log.OpenRequisitions, r.Clone())
		}
	}

	rows := s.inventory
	if inventoryLimit > 0 && len(rows) > inventoryLimit {
		rows = rows[:inventoryLimit]
	}
	log.Inventory = append([]domain.InventoryRow(nil), rows...)
	return log
}

func (s *Store) orderIndex(id string) int {
	for i, o := range s.orders {
		if o.ID == id {
			return i
		}
	}
	return -1
}
