package domain

import "github.com/shopspring/decimal"

type PlanStatus string

const (
	PlanFullyMatched     PlanStatus = "Fully Matched"
	PlanPartiallyMatched PlanStatus = "Partially Matched"
	PlanNoMatch          PlanStatus = "No Match"
)

// DemandLine is one requisition item together with the delivery terms of its
// requisition, the unit the matching engine plans for.
type DemandLine struct {
	RequisitionID    string  `json:"requisitionId"`
	ItemID           string  `json:"itemId"`
	ItemName         string  `json:"itemName"`
	Brand            string  `json:"brand"`
	Quantity         int     `json:"quantity"`
	DeliveryLocation string  `json:"deliveryLocation"`
	NeededBy         string  `json:"neededBy"`
	Urgency          Urgency `json:"urgency"`
}

type AllocationLine struct {
	InventoryID  string          `json:"inventoryId"`
	SupplierName string          `json:"supplierName"`
	ItemName     string          `json:"itemName"`
	Brand        string          `json:"brand"`
	UnitPrice    decimal.Decimal `json:"unitPrice"`
	AllocatedQty int             `json:"allocatedQty"`
	LineCost     decimal.Decimal `json:"lineCost"`
}

type AllocationPlan struct {
	Demand       DemandLine       `json:"demand"`
	Allocations  []AllocationLine `json:"allocations"`
	TotalCost    decimal.Decimal  `json:"totalCost"`
	MatchedQty   int              `json:"matchedQty"`
	RemainingQty int              `json:"remainingQty"`
	Status       PlanStatus       `json:"status"`
}

func (p AllocationPlan) AllocatedQty() int {
	total := 0
	for _, a := range p.Allocations {
		total += a.AllocatedQty
	}
	return total
}
