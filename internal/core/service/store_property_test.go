package service

import (
	"context"
	"fmt"
	"testing"

	"pgregory.net/rapid"

	"github.com/rl1809/procurematch/internal/core/domain"
)

// Accepting any generated plan keeps inventory non-negative, creates one order
// per allocation line, and a second accept of the same item changes nothing.
func TestAccept_Properties(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		s := newTestStore()
		demand := rapid.IntRange(1, 200).Draw(t, "demand")

		reqID, err := s.CreateRequisition(header(), []domain.ItemInput{
			{ItemName: "Saline 1L", Brand: "Baxter", Quantity: demand},
		})
		if err != nil {
			t.Fatalf("create: %v", err)
		}
		req, _ := s.Requisition(reqID)

		n := rapid.IntRange(0, 6).Draw(t, "rows")
		rows := make([]domain.InventoryInput, n)
		for i := range rows {
			rows[i] = stock(
				fmt.Sprintf("Supplier %d", rapid.IntRange(0, 3).Draw(t, "supplier")),
				"Saline 1L",
				rapid.SampledFrom([]string{"Baxter", "baxter", "Other"}).Draw(t, "brand"),
				rapid.IntRange(1, 120).Draw(t, "qty"),
				fmt.Sprintf("%d.%02d", rapid.IntRange(0, 20).Draw(t, "units"), rapid.IntRange(0, 99).Draw(t, "cents")),
				rapid.SampledFrom([]string{"Region I", "Region II", "Region I, Region III"}).Draw(t, "regions"),
			)
		}
		s.AddInventoryBulk(rows)

		plan, err := s.PlanFor(reqID, req.Items[0].ID)
		if err != nil {
			t.Fatalf("plan: %v", err)
		}

		orders, err := s.AcceptAllocationPlan(context.Background(), plan)
		if len(plan.Allocations) == 0 {
			if err == nil {
				t.Fatalf("empty plan was accepted")
			}
			return
		}
		if err != nil {
			t.Fatalf("accept: %v", err)
		}
		if len(orders) != len(plan.Allocations) {
			t.Fatalf("orders %d != allocations %d", len(orders), len(plan.Allocations))
		}

		for _, row := range s.Inventory() {
			if row.Quantity < 0 {
				t.Fatalf("row %s went negative: %d", row.ID, row.Quantity)
			}
		}

		before := s.Snapshot()
		if _, err := s.AcceptAllocationPlan(context.Background(), plan); err == nil {
			t.Fatalf("second accept succeeded")
		}
		after := s.Snapshot()
		if len(after.Orders) != len(before.Orders) {
			t.Fatalf("second accept added orders")
		}
		for i := range after.Inventory {
			if after.Inventory[i].Quantity != before.Inventory[i].Quantity {
				t.Fatalf("second accept changed inventory")
			}
		}
	})
}
