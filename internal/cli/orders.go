package cli

import (
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/rl1809/procurematch/internal/adapter/storage"
	"github.com/rl1809/procurematch/internal/config"
	"github.com/rl1809/procurematch/internal/core/domain"
)

type OrdersOptions struct {
	Supplier string
	Item     string
}

// OrdersReport lists journaled orders. Accepted is only set when an item id
// was asked for.
type OrdersReport struct {
	Orders   []domain.Order `json:"orders"`
	Item     string         `json:"item,omitempty"`
	Accepted *bool          `json:"accepted,omitempty"`
}

// NewOrdersCommand creates the orders command.
func NewOrdersCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &OrdersOptions{}

	cmd := &cobra.Command{
		Use:   "orders",
		Short: "List orders recorded in the order journal",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(rootOpts.Config)
			if err != nil {
				return err
			}
			return runOrders(cmd, rootOpts, opts, cfg, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVar(&opts.Supplier, "supplier", "", "only orders assigned to this supplier")
	cmd.Flags().StringVar(&opts.Item, "item", "", "also report whether this requisition item was accepted")

	return cmd
}

func runOrders(cmd *cobra.Command, rootOpts *RootOptions, opts *OrdersOptions, cfg config.Config, w io.Writer) error {
	if cfg.Database.DSN == "" {
		return errors.New("no order journal configured: set database.dsn")
	}

	db, err := storage.OpenDB(cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		return err
	}
	defer db.Close()

	ctx := cmd.Context()
	journal := storage.NewSQLJournal(db, cfg.Database.Driver)
	if err := journal.Migrate(ctx); err != nil {
		return err
	}

	report := OrdersReport{Item: opts.Item}
	if opts.Item != "" {
		accepted, err := journal.Accepted(ctx, opts.Item)
		if err != nil {
			return err
		}
		report.Accepted = &accepted
	}
	if report.Orders, err = journal.ListOrders(ctx, opts.Supplier); err != nil {
		return err
	}

	p := newPrinter(rootOpts, w)
	if p.json() {
		return p.writeJSON(report)
	}

	if report.Accepted != nil {
		p.field("Item", fmt.Sprintf("%s accepted=%t", report.Item, *report.Accepted))
	}
	p.field("Orders", len(report.Orders))
	if len(report.Orders) == 0 {
		return nil
	}

	rows := make([][]string, 0, len(report.Orders))
	for _, o := range report.Orders {
		rows = append(rows, []string{
			o.ID, o.SupplierName, o.ItemName, o.Brand,
			strconv.Itoa(o.Quantity), o.LineCost.StringFixed(2), string(o.Status),
		})
	}
	fmt.Fprintln(w)
	return p.table([]string{"ID", "SUPPLIER", "ITEM", "BRAND", "QTY", "COST", "STATUS"}, rows)
}
