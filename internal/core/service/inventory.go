package service

import (
	"github.com/sirupsen/logrus"

	"github.com/rl1809/procurematch/internal/core/domain"
)

// AddInventoryItem validates one row and places it first.
func (s *Store) AddInventoryItem(in domain.InventoryInput) (string, error) {
	in = in.Normalized()
	if err := in.Validate(); err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	row := s.newRow(in)
	s.inventory = append([]domain.InventoryRow{row}, s.inventory...)
	return row.ID, nil
}

type BulkResult struct {
	IDs     []string `json:"ids"`
	Dropped int      `json:"dropped"`
}

// AddInventoryBulk imports every row that passes the row-level rule and
// silently drops the rest. The imported rows keep their batch order and are
// placed ahead of existing inventory.
func (s *Store) AddInventoryBulk(rows []domain.InventoryInput) BulkResult {
	valid := make([]domain.InventoryInput, 0, len(rows))
	for _, in := range rows {
		in = in.Normalized()
		if in.Validate() != nil {
			continue
		}
		valid = append(valid, in)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	result := BulkResult{IDs: make([]string, 0, len(valid)), Dropped: len(rows) - len(valid)}
	batch := make([]domain.InventoryRow, 0, len(valid)+len(s.inventory))
	for _, in := range valid {
		row := s.newRow(in)
		batch = append(batch, row)
		result.IDs = append(result.IDs, row.ID)
	}
	s.inventory = append(batch, s.inventory...)

	s.log.WithFields(logrus.Fields{
		"module":   "store",
		"imported": len(result.IDs),
		"dropped":  result.Dropped,
	}).Info("inventory imported")

	return result
}

func (s *Store) newRow(in domain.InventoryInput) domain.InventoryRow {
	now := s.now()
	return domain.InventoryRow{
		ID:              s.newID(),
		SupplierName:    in.SupplierName,
		ItemName:        in.ItemName,
		Brand:           in.Brand,
		Quantity:        in.Quantity,
		Price:           in.Price,
		DeliveryRegions: in.DeliveryRegions,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

// UpdateInventoryItem merges patch into the row and re-validates the result
// with the row-level rule.
func (s *Store) UpdateInventoryItem(id string, patch domain.InventoryPatch) (domain.InventoryRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.inventoryIndex(id)
	if idx < 0 {
		return domain.InventoryRow{}, domain.NotFound("inventory row", id)
	}

	merged := s.inventory[idx].Apply(patch)
	in := merged.Input().Normalized()
	if err := in.Validate(); err != nil {
		return domain.InventoryRow{}, err
	}

	merged.SupplierName = in.SupplierName
	merged.ItemName = in.ItemName
	merged.Brand = in.Brand
	merged.DeliveryRegions = in.DeliveryRegions
	merged.UpdatedAt = s.now()
	s.inventory[idx] = merged
	return merged, nil
}

// DeleteInventoryItem removes the row and reports whether it existed.
func (s *Store) DeleteInventoryItem(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.inventoryIndex(id)
	if idx < 0 {
		return false
	}
	next := make([]domain.InventoryRow, 0, len(s.inventory)-1)
	next = append(next, s.inventory[:idx]...)
	s.inventory = append(next, s.inventory[idx+1:]...)
	return true
}

func (s *Store) Inventory() []domain.InventoryRow {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.InventoryRow(nil), s.inventory...)
}

// InventoryBySupplier returns the rows owned by supplier, compared
// case-insensitively.
func (s *Store) InventoryBySupplier(supplier string) []domain.InventoryRow {
	s.mu.Lock()
	defer s.mu.Unlock()

	var rows []domain.InventoryRow
	for _, r := range s.inventory {
		if domain.SameText(r.SupplierName, supplier) {
			rows = append(rows, r)
		}
	}
	return rows
}

func (s *Store) inventoryIndex(id string) int {
	for i, r := range s.inventory {
		if r.ID == id {
			return i
		}
	}
	return -1
}
