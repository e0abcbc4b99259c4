package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/rl1809/procurematch/internal/adapter/importer"
	"github.com/rl1809/procurematch/internal/core/domain"
	"github.com/rl1809/procurematch/internal/core/matching"
	"github.com/rl1809/procurematch/internal/core/service"
)

type PlanOptions struct {
	Inventory string
	Supplier  string
	Item      string
	Brand     string
	Quantity  int
	Location  string
	Regions   string
	Currency  string
}

// PlanResult is the JSON shape of the plan command.
type PlanResult struct {
	domain.AllocationPlan
	TotalCostDisplay string `json:"totalCostDisplay"`
	Imported         int    `json:"imported"`
	Dropped          int    `json:"dropped"`
	Skipped          int    `json:"skipped"`
}

// NewPlanCommand creates the plan command.
func NewPlanCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &PlanOptions{}

	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Compute an allocation plan against an inventory file",
		Long: `Load inventory from a CSV or XLSX file and compute the cheapest-first
allocation plan for one demand line. Nothing is committed.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPlan(rootOpts, opts, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVarP(&opts.Inventory, "inventory", "i", "", "inventory file (.csv or .xlsx)")
	cmd.Flags().StringVar(&opts.Supplier, "supplier", "", "supplier for rows without a supplier column")
	cmd.Flags().StringVar(&opts.Item, "item", "", "item name")
	cmd.Flags().StringVar(&opts.Brand, "brand", "", "brand (empty matches any brand)")
	cmd.Flags().IntVar(&opts.Quantity, "qty", 0, "requested quantity")
	cmd.Flags().StringVar(&opts.Location, "location", "", "delivery location")
	cmd.Flags().StringVar(&opts.Regions, "regions", "substring", "region matching (substring|token)")
	cmd.Flags().StringVar(&opts.Currency, "currency", "₱", "currency prefix for text output")
	_ = cmd.MarkFlagRequired("inventory")
	_ = cmd.MarkFlagRequired("item")
	_ = cmd.MarkFlagRequired("qty")

	return cmd
}

func runPlan(rootOpts *RootOptions, opts *PlanOptions, w io.Writer) error {
	if opts.Quantity <= 0 {
		return fmt.Errorf("--qty must be positive, got %d", opts.Quantity)
	}
	regions, err := matching.RegionMatcherByName(opts.Regions)
	if err != nil {
		return err
	}

	parsed, err := importer.ParseFile(opts.Inventory, opts.Supplier)
	if err != nil {
		return err
	}

	engine := matching.NewEngine(matching.WithRegionMatcher(regions))
	store := service.NewStore(service.WithEngine(engine), service.WithIDGenerator(sequence("row")))
	bulk := store.AddInventoryBulk(parsed.Rows)

	plan := engine.Plan(domain.DemandLine{
		ItemName:         opts.Item,
		Brand:            opts.Brand,
		Quantity:         opts.Quantity,
		DeliveryLocation: opts.Location,
	}, store.Inventory())

	result := PlanResult{
		AllocationPlan:   plan,
		TotalCostDisplay: domain.FormatMoney(opts.Currency, plan.TotalCost),
		Imported:         len(bulk.IDs),
		Dropped:          bulk.Dropped,
		Skipped:          parsed.Skipped,
	}

	p := newPrinter(rootOpts, w)
	if p.json() {
		return p.writeJSON(result)
	}
	return writePlanText(p, result)
}

func writePlanText(p printer, r PlanResult) error {
	d := r.Demand
	demand := fmt.Sprintf("%s x%d", d.ItemName, d.Quantity)
	if d.Brand != "" {
		demand = fmt.Sprintf("%s (%s) x%d", d.ItemName, d.Brand, d.Quantity)
	}
	if d.DeliveryLocation != "" {
		demand += " to " + d.DeliveryLocation
	}

	p.field("Demand", demand)
	p.field("Inventory", fmt.Sprintf("%d rows (%d dropped, %d skipped)", r.Imported, r.Dropped, r.Skipped))
	p.field("Status", r.Status)
	p.field("Matched", r.MatchedQty)
	p.field("Remaining", r.RemainingQty)
	p.field("Total cost", r.TotalCostDisplay)

	if len(r.Allocations) == 0 {
		return nil
	}
	fmt.Fprintln(p.w)
	return p.table(
		[]string{"SUPPLIER", "ITEM", "BRAND", "QTY", "UNIT PRICE", "LINE COST"},
		allocationRows(r.Allocations),
	)
}

// sequence returns an id generator yielding prefix-1, prefix-2, ...
func sequence(prefix string) func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("%s-%d", prefix, n)
	}
}
