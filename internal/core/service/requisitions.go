package service

import (
	"github.com/sirupsen/logrus"

	"github.com/rl1809/procurematch/internal/core/domain"
)

// CreateRequisition validates the header and items, assigns fresh ids, and
// places the new requisition first. Nothing is stored when validation fails.
func (s *Store) CreateRequisition(header domain.RequisitionHeader, items []domain.ItemInput) (string, error) {
	header, items, err := domain.NormalizeRequisition(header, items)
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	req := domain.Requisition{
		ID:               s.newID(),
		CreatedAt:        s.now(),
		DeliveryDate:     header.DeliveryDate,
		DeliveryLocation: header.DeliveryLocation,
		Urgency:          header.Urgency,
		Status:           domain.RequisitionOpen,
		Items:            make([]domain.RequisitionItem, len(items)),
	}
	for i, it := range items {
		req.Items[i] = domain.RequisitionItem{
			ID:       s.newID(),
			ItemName: it.ItemName,
			Brand:    it.Brand,
			Quantity: it.Quantity,
			Status:   domain.ItemOpen,
		}
	}

	s.requisitions = append([]domain.Requisition{req}, s.requisitions...)

	s.log.WithFields(logrus.Fields{
		"module":        "store",
		"requisitionId": req.ID,
		"items":         len(req.Items),
	}).Info("requisition created")

	return req.ID, nil
}

// Requisitions returns all requisitions, most recent first.
func (s *Store) Requisitions() []domain.Requisition {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.copyRequisitions()
}

func (s *Store) Requisition(id string) (domain.Requisition, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.requisitionIndex(id)
	if idx < 0 {
		return domain.Requisition{}, domain.NotFound("requisition", id)
	}
	return s.requisitions[idx].Clone(), nil
}

// OpenItem is a requisition item still waiting for a plan, with the delivery
// terms of its requisition.
type OpenItem struct {
	Demand domain.DemandLine `json:"demand"`
}

// OpenItems lists every Open item, most recent requisition first.
func (s *Store) OpenItems() []OpenItem {
	s.mu.Lock()
	defer s.mu.Unlock()

	var items []OpenItem
	for _, r := range s.requisitions {
		for _, it := range r.Items {
			if it.Status == domain.ItemOpen {
				items = append(items, OpenItem{Demand: r.Demand(it)})
			}
		}
	}
	return items
}

func (s *Store) requisitionIndex(id string) int {
	for i, r := range s.requisitions {
		if r.ID == id {
			return i
		}
	}
	return -1
}
