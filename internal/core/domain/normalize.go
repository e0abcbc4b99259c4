package domain

import (
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/cases"
)

// DefaultSupplierName is used for inventory rows that arrive without a supplier.
const DefaultSupplierName = "Supplier"

// Normalize trims and case-folds s so that comparisons ignore case and
// surrounding whitespace.
func Normalize(s string) string {
	// A Caser is stateful, so one is built per call.
	return cases.Fold().String(strings.TrimSpace(s))
}

func SameText(a, b string) bool {
	return Normalize(a) == Normalize(b)
}

// FormatMoney renders d with two decimals behind the currency prefix.
func FormatMoney(prefix string, d decimal.Decimal) string {
	return prefix + d.StringFixed(2)
}
