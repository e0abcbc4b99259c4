package matching

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/rl1809/procurematch/internal/core/domain"
)

// Engine computes allocation plans. It never modifies the inventory it is
// given, so plans can be computed from any snapshot as often as needed.
type Engine struct {
	regions RegionMatcher
}

type Option func(*Engine)

func WithRegionMatcher(m RegionMatcher) Option {
	return func(e *Engine) {
		if m != nil {
			e.regions = m
		}
	}
}

func NewEngine(opts ...Option) *Engine {
	e := &Engine{regions: SubstringRegions}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

var defaultEngine = NewEngine()

// Plan runs the default engine, which uses substring region matching.
func Plan(demand domain.DemandLine, inventory []domain.InventoryRow) domain.AllocationPlan {
	return defaultEngine.Plan(demand, inventory)
}

// Plan fills demand greedily from the cheapest eligible rows. At equal price
// the larger lot is used first; rows that still tie keep their inventory order.
func (e *Engine) Plan(demand domain.DemandLine, inventory []domain.InventoryRow) domain.AllocationPlan {
	eligible := e.eligible(demand, inventory)

	sort.SliceStable(eligible, func(i, j int) bool {
		if c := eligible[i].Price.Cmp(eligible[j].Price); c != 0 {
			return c < 0
		}
		return eligible[i].Quantity > eligible[j].Quantity
	})

	plan := domain.AllocationPlan{
		Demand:      demand,
		Allocations: []domain.AllocationLine{},
		TotalCost:   decimal.Zero,
	}

	remaining := demand.Quantity
	matched := 0
	for _, row := range eligible {
		if remaining <= 0 {
			break
		}

		take := min(row.Quantity, remaining)
		lineCost := row.Price.Mul(decimal.NewFromInt(int64(take)))

		supplier := row.SupplierName
		if supplier == "" {
			supplier = domain.DefaultSupplierName
		}

		plan.Allocations = append(plan.Allocations, domain.AllocationLine{
			InventoryID:  row.ID,
			SupplierName: supplier,
			ItemName:     row.ItemName,
			Brand:        row.Brand,
			UnitPrice:    row.Price,
			AllocatedQty: take,
			LineCost:     lineCost,
		})
		plan.TotalCost = plan.TotalCost.Add(lineCost)
		remaining -= take
		matched += take
	}

	plan.RemainingQty = max(remaining, 0)
	plan.MatchedQty = matched
	plan.Status = status(plan.RemainingQty, len(plan.Allocations))

	return plan
}

func (e *Engine) eligible(demand domain.DemandLine, inventory []domain.InventoryRow) []domain.InventoryRow {
	name := domain.Normalize(demand.ItemName)
	brand := domain.Normalize(demand.Brand)

	var rows []domain.InventoryRow
	for _, row := range inventory {
		if row.Quantity <= 0 {
			continue
		}
		if domain.Normalize(row.ItemName) != name {
			continue
		}
		if brand != "" && domain.Normalize(row.Brand) != brand {
			continue
		}
		if !e.regions.Covers(row.DeliveryRegions, demand.DeliveryLocation) {
			continue
		}
		rows = append(rows, row)
	}
	return rows
}

func status(remaining, allocations int) domain.PlanStatus {
	switch {
	case remaining == 0:
		return domain.PlanFullyMatched
	case allocations > 0:
		return domain.PlanPartiallyMatched
	default:
		return domain.PlanNoMatch
	}
}
