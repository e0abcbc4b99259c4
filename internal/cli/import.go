package cli

import (
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/rl1809/procurematch/internal/adapter/importer"
	"github.com/rl1809/procurematch/internal/core/domain"
	"github.com/rl1809/procurematch/internal/core/service"
)

type ImportOptions struct {
	File     string
	Supplier string
}

// ImportReport is a dry run of a bulk inventory upload.
type ImportReport struct {
	File     string                `json:"file"`
	Imported int                   `json:"imported"`
	Dropped  int                   `json:"dropped"`
	Skipped  int                   `json:"skipped"`
	Rows     []domain.InventoryRow `json:"rows"`
}

// NewImportCommand creates the import command.
func NewImportCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ImportOptions{}

	cmd := &cobra.Command{
		Use:   "import",
		Short: "Check an inventory file without uploading it",
		Long: `Parse a CSV or XLSX inventory file with the same column aliases and
row filter as the upload endpoint, and report what would be imported.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runImport(rootOpts, opts, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVarP(&opts.File, "file", "f", "", "inventory file (.csv or .xlsx)")
	cmd.Flags().StringVar(&opts.Supplier, "supplier", "", "supplier for rows without a supplier column")
	_ = cmd.MarkFlagRequired("file")

	return cmd
}

func runImport(rootOpts *RootOptions, opts *ImportOptions, w io.Writer) error {
	parsed, err := importer.ParseFile(opts.File, opts.Supplier)
	if err != nil {
		return err
	}

	store := service.NewStore(service.WithIDGenerator(sequence("row")))
	bulk := store.AddInventoryBulk(parsed.Rows)

	report := ImportReport{
		File:     opts.File,
		Imported: len(bulk.IDs),
		Dropped:  bulk.Dropped,
		Skipped:  parsed.Skipped,
		Rows:     store.Inventory(),
	}

	p := newPrinter(rootOpts, w)
	if p.json() {
		return p.writeJSON(report)
	}

	p.field("File", report.File)
	p.field("Imported", report.Imported)
	p.field("Dropped", report.Dropped)
	p.field("Skipped", report.Skipped)
	if len(report.Rows) == 0 {
		return nil
	}

	rows := make([][]string, 0, len(report.Rows))
	for _, r := range report.Rows {
		rows = append(rows, []string{
			r.SupplierName, r.ItemName, r.Brand,
			strconv.Itoa(r.Quantity), r.Price.StringFixed(2), r.DeliveryRegions,
		})
	}
	io.WriteString(w, "\n")
	return p.table([]string{"SUPPLIER", "ITEM", "BRAND", "QTY", "PRICE", "REGIONS"}, rows)
}
