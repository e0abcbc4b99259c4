package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type InventoryRow struct {
	ID              string          `json:"id"`
	SupplierName    string          `json:"supplierName"`
	ItemName        string          `json:"itemName"`
	Brand           string          `json:"brand"`
	Quantity        int             `json:"quantity"`
	Price           decimal.Decimal `json:"price"`
	DeliveryRegions string          `json:"deliveryRegions"`
	CreatedAt       time.Time       `json:"createdAt"`
	UpdatedAt       time.Time       `json:"updatedAt"`
}

// Offers reports whether the row sells the given supplier/item/brand triple,
// compared case-insensitively.
func (r InventoryRow) Offers(supplier, itemName, brand string) bool {
	return SameText(r.SupplierName, supplier) &&
		SameText(r.ItemName, itemName) &&
		SameText(r.Brand, brand)
}

func (r InventoryRow) Input() InventoryInput {
	return InventoryInput{
		SupplierName:    r.SupplierName,
		ItemName:        r.ItemName,
		Brand:           r.Brand,
		Quantity:        r.Quantity,
		Price:           r.Price,
		DeliveryRegions: r.DeliveryRegions,
	}
}

// Apply merges the non-nil fields of p into r.
func (r InventoryRow) Apply(p InventoryPatch) InventoryRow {
	if p.SupplierName != nil {
		r.SupplierName = *p.SupplierName
	}
	if p.ItemName != nil {
		r.ItemName = *p.ItemName
	}
	if p.Brand != nil {
		r.Brand = *p.Brand
	}
	if p.Quantity != nil {
		r.Quantity = *p.Quantity
	}
	if p.Price != nil {
		r.Price = *p.Price
	}
	if p.DeliveryRegions != nil {
		r.DeliveryRegions = *p.DeliveryRegions
	}
	return r
}

type InventoryInput struct {
	SupplierName    string          `json:"supplierName"`
	ItemName        string          `json:"itemName" validate:"required"`
	Brand           string          `json:"brand" validate:"required"`
	Quantity        int             `json:"quantity" validate:"gt=0"`
	Price           decimal.Decimal `json:"price" validate:"gte=0"`
	DeliveryRegions string          `json:"deliveryRegions" validate:"required"`
}

// Normalized trims the text fields and fills in the default supplier name.
func (in InventoryInput) Normalized() InventoryInput {
	in.SupplierName = strings.TrimSpace(in.SupplierName)
	if in.SupplierName == "" {
		in.SupplierName = DefaultSupplierName
	}
	in.ItemName = strings.TrimSpace(in.ItemName)
	in.Brand = strings.TrimSpace(in.Brand)
	in.DeliveryRegions = strings.TrimSpace(in.DeliveryRegions)
	return in
}

// Validate applies the row-level import rule: item and brand present,
// quantity > 0, price >= 0 and at least one delivery region.
func (in InventoryInput) Validate() error {
	if fields := Check("", in); len(fields) > 0 {
		return NewValidationError(fields...)
	}
	return nil
}

type InventoryPatch struct {
	SupplierName    *string          `json:"supplierName,omitempty"`
	ItemName        *string          `json:"itemName,omitempty"`
	Brand           *string          `json:"brand,omitempty"`
	Quantity        *int             `json:"quantity,omitempty"`
	Price           *decimal.Decimal `json:"price,omitempty"`
	DeliveryRegions *string          `json:"deliveryRegions,omitempty"`
}
