package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/rl1809/procurematch/internal/core/domain"
)

// printer writes command results as text tables or indented JSON.
type printer struct {
	format string
	w      io.Writer
}

func newPrinter(opts *RootOptions, w io.Writer) printer {
	return printer{format: opts.Format, w: w}
}

func (p printer) json() bool { return p.format == "json" }

func (p printer) writeJSON(v any) error {
	enc := json.NewEncoder(p.w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func (p printer) table(header []string, rows [][]string) error {
	tw := tabwriter.NewWriter(p.w, 0, 0, 2, ' ', 0)
	writeRow(tw, header)
	for _, r := range rows {
		writeRow(tw, r)
	}
	return tw.Flush()
}

func writeRow(w io.Writer, cells []string) {
	for i, c := range cells {
		if i > 0 {
			fmt.Fprint(w, "\t")
		}
		fmt.Fprint(w, c)
	}
	fmt.Fprintln(w)
}

func (p printer) field(label string, value any) {
	fmt.Fprintf(p.w, "%-12s%v\n", label+":", value)
}

func allocationRows(lines []domain.AllocationLine) [][]string {
	rows := make([][]string, 0, len(lines))
	for _, a := range lines {
		rows = append(rows, []string{
			a.SupplierName,
			a.ItemName,
			a.Brand,
			fmt.Sprint(a.AllocatedQty),
			a.UnitPrice.StringFixed(2),
			a.LineCost.StringFixed(2),
		})
	}
	return rows
}
