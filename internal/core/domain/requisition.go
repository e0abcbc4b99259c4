package domain

import (
	"fmt"
	"strings"
	"time"
)

type Urgency string

const (
	UrgencyNormal   Urgency = "Normal"
	UrgencyCritical Urgency = "Critical"
)

type RequisitionStatus string

const (
	RequisitionOpen   RequisitionStatus = "Open"
	RequisitionClosed RequisitionStatus = "Closed"
)

type ItemStatus string

const (
	ItemOpen     ItemStatus = "Open"
	ItemAccepted ItemStatus = "Accepted"
)

type Requisition struct {
	ID               string            `json:"id"`
	CreatedAt        time.Time         `json:"createdAt"`
	DeliveryDate     string            `json:"deliveryDate"`
	DeliveryLocation string            `json:"deliveryLocation"`
	Urgency          Urgency           `json:"urgency"`
	Status           RequisitionStatus `json:"status"`
	Items            []RequisitionItem `json:"items"`
}

type RequisitionItem struct {
	ID       string     `json:"id"`
	ItemName string     `json:"itemName"`
	Brand    string     `json:"brand"`
	Quantity int        `json:"quantity"`
	Status   ItemStatus `json:"status"`
}

// Item returns the line item with the given id.
func (r Requisition) Item(itemID string) (RequisitionItem, int, bool) {
	for i, it := range r.Items {
		if it.ID == itemID {
			return it, i, true
		}
	}
	return RequisitionItem{}, -1, false
}

// Clone copies r including its items slice.
func (r Requisition) Clone() Requisition {
	out := r
	out.Items = append([]RequisitionItem(nil), r.Items...)
	return out
}

// WithItemAccepted marks itemID Accepted and closes the requisition once no
// open item remains.
func (r Requisition) WithItemAccepted(itemID string) Requisition {
	out := r.Clone()
	allAccepted := true
	for i := range out.Items {
		if out.Items[i].ID == itemID {
			out.Items[i].Status = ItemAccepted
		}
		if out.Items[i].Status != ItemAccepted {
			allAccepted = false
		}
	}
	if allAccepted {
		out.Status = RequisitionClosed
	}
	return out
}

// Demand builds the matching input for one of the requisition's items.
func (r Requisition) Demand(item RequisitionItem) DemandLine {
	return DemandLine{
		RequisitionID:    r.ID,
		ItemID:           item.ID,
		ItemName:         item.ItemName,
		Brand:            item.Brand,
		Quantity:         item.Quantity,
		DeliveryLocation: r.DeliveryLocation,
		NeededBy:         r.DeliveryDate,
		Urgency:          r.Urgency,
	}
}

type RequisitionHeader struct {
	DeliveryDate     string  `json:"deliveryDate" validate:"required"`
	DeliveryLocation string  `json:"deliveryLocation" validate:"required"`
	Urgency          Urgency `json:"urgency" validate:"omitempty,oneof=Normal Critical"`
}

type ItemInput struct {
	ItemName string `json:"itemName" validate:"required"`
	Brand    string `json:"brand" validate:"required"`
	Quantity int    `json:"quantity" validate:"gt=0"`
}

// NormalizeRequisition trims the header and items and defaults urgency to
// Normal, then validates every field. All failing fields are reported at once.
func NormalizeRequisition(header RequisitionHeader, items []ItemInput) (RequisitionHeader, []ItemInput, error) {
	header.DeliveryDate = strings.TrimSpace(header.DeliveryDate)
	header.DeliveryLocation = strings.TrimSpace(header.DeliveryLocation)
	if header.Urgency == "" {
		header.Urgency = UrgencyNormal
	}

	fields := Check("", header)
	if len(items) == 0 {
		fields = append(fields, FieldError{Field: "items", Reason: "must contain at least one item"})
	}

	cleaned := make([]ItemInput, len(items))
	for i, it := range items {
		it.ItemName = strings.TrimSpace(it.ItemName)
		it.Brand = strings.TrimSpace(it.Brand)
		cleaned[i] = it
		fields = append(fields, Check(fmt.Sprintf("items[%d]", i), it)...)
	}

	if len(fields) > 0 {
		return header, nil, NewValidationError(fields...)
	}
	return header, cleaned, nil
}
