package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/rl1809/procurematch/internal/core/domain"
	"github.com/rl1809/procurematch/internal/port"
)

const lockKeyPrefix = "lock:requisition-item:"

// PlanFor computes a plan for one requisition item against the current
// inventory. The item's status is not checked here; AcceptAllocationPlan is
// where an already accepted item is refused.
func (s *Store) PlanFor(requisitionID, itemID string) (domain.AllocationPlan, error) {
	s.mu.Lock()
	req, item, err := s.findItem(requisitionID, itemID)
	inventory := append([]domain.InventoryRow(nil), s.inventory...)
	s.mu.Unlock()

	if err != nil {
		return domain.AllocationPlan{}, err
	}

	plan := s.engine.Plan(req.Demand(item), inventory)
	s.recorder.PlanComputed(plan.Status)
	return plan, nil
}

// AcceptAllocationPlan commits plan as one unit: one Accepted order per
// allocation line, the consumed inventory decremented (never below zero), and
// the requisition item marked Accepted, closing its requisition when it was
// the last open item.
//
// The plan is refused without any change when it has no allocations, when it
// allocates more than the item requested, when the item is unknown, or when
// the item was already accepted.
func (s *Store) AcceptAllocationPlan(ctx context.Context, plan domain.AllocationPlan) ([]domain.Order, error) {
	if err := checkPlan(plan); err != nil {
		s.recorder.AcceptRejected("invalid")
		return nil, err
	}
	return s.accept(ctx, plan.Demand.ItemID, func() (domain.AllocationPlan, error) {
		return plan, nil
	})
}

// AcceptItem plans one requisition item against the current inventory and
// commits that plan while the Store is still locked, so no other acceptance
// can consume the same rows in between.
func (s *Store) AcceptItem(ctx context.Context, requisitionID, itemID string) (domain.AllocationPlan, []domain.Order, error) {
	var plan domain.AllocationPlan
	orders, err := s.accept(ctx, itemID, func() (domain.AllocationPlan, error) {
		req, item, err := s.findItem(requisitionID, itemID)
		if err != nil {
			return domain.AllocationPlan{}, err
		}
		if item.Status == domain.ItemAccepted {
			s.recorder.AcceptRejected("already_accepted")
			return domain.AllocationPlan{}, domain.Conflict("requisition item", itemID, domain.ErrAlreadyAccepted)
		}
		plan = s.engine.Plan(req.Demand(item), s.inventory)
		s.recorder.PlanComputed(plan.Status)
		if err := checkPlan(plan); err != nil {
			s.recorder.AcceptRejected("invalid")
			return domain.AllocationPlan{}, err
		}
		return plan, nil
	})
	return plan, orders, err
}

// accept runs one acceptance for itemID. build is called with s.mu held and
// returns the plan to commit.
func (s *Store) accept(ctx context.Context, itemID string, build func() (domain.AllocationPlan, error)) ([]domain.Order, error) {
	if s.locker != nil {
		lock, err := s.locker.Obtain(ctx, lockKeyPrefix+itemID)
		if err != nil {
			if errors.Is(err, port.ErrLockNotObtained) {
				s.recorder.AcceptRejected("locked")
				return nil, domain.Conflict("requisition item", itemID, err)
			}
			return nil, fmt.Errorf("lock requisition item: %w", err)
		}
		defer func() {
			if err := lock.Release(context.WithoutCancel(ctx)); err != nil {
				s.log.WithField("itemId", itemID).WithError(err).Warn("release acceptance lock")
			}
		}()
	}

	if s.guard != nil {
		ok, err := s.guard.Claim(ctx, itemID)
		if err != nil {
			return nil, fmt.Errorf("claim requisition item: %w", err)
		}
		if !ok {
			s.recorder.AcceptRejected("already_accepted")
			return nil, domain.Conflict("requisition item", itemID, domain.ErrAlreadyAccepted)
		}
	}

	event, plan, err := s.commit(build)
	if err != nil {
		s.releaseClaim(ctx, itemID)
		return nil, err
	}

	s.recorder.PlanAccepted(len(event.Orders), plan.AllocatedQty(), plan.TotalCost)
	s.log.WithFields(logrus.Fields{
		"module":        "store",
		"requisitionId": event.RequisitionID,
		"itemId":        event.ItemID,
		"orders":        len(event.Orders),
	}).Info("allocation plan accepted")

	s.publish(ctx, event)
	return append([]domain.Order(nil), event.Orders...), nil
}

// releaseClaim drops a claim taken for an acceptance that was then refused.
func (s *Store) releaseClaim(ctx context.Context, itemID string) {
	if s.guard == nil {
		return
	}
	if err := s.guard.Release(context.WithoutCancel(ctx), itemID); err != nil {
		s.log.WithField("itemId", itemID).WithError(err).Error("release acceptance claim")
	}
}

func checkPlan(plan domain.AllocationPlan) error {
	if len(plan.Allocations) == 0 {
		return &domain.ValidationError{
			Fields: []domain.FieldError{{Field: "allocations", Reason: "must not be empty"}},
			Err:    domain.ErrEmptyPlan,
		}
	}

	var fields []domain.FieldError
	for i, a := range plan.Allocations {
		if a.AllocatedQty <= 0 {
			fields = append(fields, domain.FieldError{Field: fmt.Sprintf("allocations[%d].allocatedQty", i), Reason: "must be > 0"})
		}
		if a.UnitPrice.IsNegative() {
			fields = append(fields, domain.FieldError{Field: fmt.Sprintf("allocations[%d].unitPrice", i), Reason: "must be >= 0"})
		}
	}
	if len(fields) > 0 {
		return domain.NewValidationError(fields...)
	}
	return nil
}

func (s *Store) commit(build func() (domain.AllocationPlan, error)) (domain.OrderEvent, domain.AllocationPlan, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	plan, err := build()
	if err != nil {
		return domain.OrderEvent{}, plan, err
	}

	requisitionID, itemID := plan.Demand.RequisitionID, plan.Demand.ItemID
	req, item, err := s.findItem(requisitionID, itemID)
	if err != nil {
		s.recorder.AcceptRejected("not_found")
		return domain.OrderEvent{}, plan, err
	}
	if item.Status == domain.ItemAccepted {
		s.recorder.AcceptRejected("already_accepted")
		s.log.WithField("itemId", itemID).Warn("plan refused, item already accepted")
		return domain.OrderEvent{}, plan, domain.Conflict("requisition item", itemID, domain.ErrAlreadyAccepted)
	}
	if allocated := plan.AllocatedQty(); allocated > item.Quantity {
		s.recorder.AcceptRejected("over_allocated")
		return domain.OrderEvent{}, plan, domain.NewValidationError(domain.FieldError{
			Field:  "allocations",
			Reason: fmt.Sprintf("allocate %d but item requests %d", allocated, item.Quantity),
		})
	}

	now := s.now()
	orders := make([]domain.Order, len(plan.Allocations))
	for i, a := range plan.Allocations {
		orders[i] = domain.Order{
			ID:               s.newID(),
			RequisitionID:    req.ID,
			ItemID:           item.ID,
			SupplierName:     a.SupplierName,
			ItemName:         a.ItemName,
			Brand:            a.Brand,
			Quantity:         a.AllocatedQty,
			UnitPrice:        a.UnitPrice,
			LineCost:         a.UnitPrice.Mul(decimal.NewFromInt(int64(a.AllocatedQty))),
			DeliveryLocation: req.DeliveryLocation,
			NeededBy:         req.DeliveryDate,
			Urgency:          req.Urgency,
			Status:           domain.OrderStatusAccepted,
			CreatedAt:        now,
			UpdatedAt:        now,
		}
	}

	s.inventory = consume(s.inventory, plan.Allocations, now)
	s.orders = append(append([]domain.Order(nil), orders...), s.orders...)
	s.requisitions[s.requisitionIndex(req.ID)] = req.WithItemAccepted(item.ID)

	return domain.OrderEvent{
		Type:          domain.EventOrdersAccepted,
		RequisitionID: req.ID,
		ItemID:        item.ID,
		Orders:        orders,
		At:            now,
	}, plan, nil
}

// consume returns a copy of rows with each allocation subtracted from the row
// it names, or from the first row offering the same supplier, item and brand
// when that row is gone or no longer matches. Quantities stop at zero.
func consume(rows []domain.InventoryRow, lines []domain.AllocationLine, now time.Time) []domain.InventoryRow {
	next := append([]domain.InventoryRow(nil), rows...)
	for _, line := range lines {
		idx := allocationSource(next, line)
		if idx < 0 {
			continue
		}
		next[idx].Quantity = max(0, next[idx].Quantity-line.AllocatedQty)
		next[idx].UpdatedAt = now
	}
	return next
}

func allocationSource(rows []domain.InventoryRow, line domain.AllocationLine) int {
	if line.InventoryID != "" {
		for i, r := range rows {
			if r.ID == line.InventoryID && r.Offers(line.SupplierName, line.ItemName, line.Brand) {
				return i
			}
		}
	}
	for i, r := range rows {
		if r.Offers(line.SupplierName, line.ItemName, line.Brand) {
			return i
		}
	}
	return -1
}

func (s *Store) findItem(requisitionID, itemID string) (domain.Requisition, domain.RequisitionItem, error) {
	idx := s.requisitionIndex(requisitionID)
	if idx < 0 {
		return domain.Requisition{}, domain.RequisitionItem{}, domain.NotFound("requisition", requisitionID)
	}
	req := s.requisitions[idx]
	item, _, ok := req.Item(itemID)
	if !ok {
		return domain.Requisition{}, domain.RequisitionItem{}, domain.NotFound("requisition item", itemID)
	}
	return req.Clone(), item, nil
}
