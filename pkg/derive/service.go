package derive

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"recordcore/pkg/domain"
)

// LineInput is a consumed product as entered for a service visit.
type LineInput struct {
	Name      string
	UnitPrice decimal.Decimal
	Quantity  int
}

// Totals is the priced result of a service visit.
type Totals struct {
	Items         []domain.LineItem
	TotalProducts decimal.Decimal
	GrandTotal    decimal.Decimal
}

// ServiceTotals prices each line (unit price × quantity) and sums them with
// the consultation fee. Lines must have a name, a positive quantity and a
// non-negative price.
func ServiceTotals(fee decimal.Decimal, lines []LineInput) (Totals, error) {
	if fee.IsNegative() {
		return Totals{}, domain.InvalidInputError{Field: "consultation_fee", Reason: "must not be negative"}
	}
	out := Totals{Items: make([]domain.LineItem, 0, len(lines)), TotalProducts: decimal.Zero}
	for i, line := range lines {
		name := strings.TrimSpace(line.Name)
		if name == "" {
			return Totals{}, domain.InvalidInputError{Field: fmt.Sprintf("line_items[%d].name", i), Reason: "is required"}
		}
		if line.Quantity <= 0 {
			return Totals{}, domain.InvalidInputError{Field: fmt.Sprintf("line_items[%d].quantity", i), Reason: "must be positive"}
		}
		if line.UnitPrice.IsNegative() {
			return Totals{}, domain.InvalidInputError{Field: fmt.Sprintf("line_items[%d].unit_price", i), Reason: "must not be negative"}
		}
		subtotal := line.UnitPrice.Mul(decimal.NewFromInt(int64(line.Quantity)))
		out.Items = append(out.Items, domain.LineItem{
			Name:      name,
			UnitPrice: line.UnitPrice,
			Quantity:  line.Quantity,
			Subtotal:  subtotal,
		})
		out.TotalProducts = out.TotalProducts.Add(subtotal)
	}
	out.GrandTotal = fee.Add(out.TotalProducts)
	return out, nil
}

// FormatMoney renders an amount with two fractional digits.
func FormatMoney(d decimal.Decimal) string {
	return d.StringFixed(2)
}
