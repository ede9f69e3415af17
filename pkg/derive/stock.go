package derive

import (
	"fmt"
	"strings"
)

// StockLevel is the current quantity of a named product.
type StockLevel struct {
	ProductID string
	Name      string
	Quantity  int
}

// Movement is the draw-down computed for one consumed line.
type Movement struct {
	Line    int
	Product StockLevel
	Used    int
	Before  int
	After   int
}

// Negative reports whether the draw-down left the product below zero.
func (m Movement) Negative() bool { return m.After < 0 }

// DrawDownResult separates lines that matched a product from lines that did not.
type DrawDownResult struct {
	Movements []Movement
	Missing   []string
}

// DrawDown applies each consumed line to the product with the same name
// (case-insensitive). Lines on the same product accumulate in order. A result
// below zero is still returned so that the movement can be recorded.
func DrawDown(levels []StockLevel, lines []LineInput) DrawDownResult {
	byName := make(map[string]*StockLevel, len(levels))
	for i := range levels {
		lv := levels[i]
		key := productKey(lv.Name)
		if _, dup := byName[key]; dup {
			continue
		}
		byName[key] = &lv
	}
	var res DrawDownResult
	for i, line := range lines {
		lv, ok := byName[productKey(line.Name)]
		if !ok {
			res.Missing = append(res.Missing, line.Name)
			continue
		}
		before := lv.Quantity
		lv.Quantity -= line.Quantity
		res.Movements = append(res.Movements, Movement{
			Line:    i,
			Product: *lv,
			Used:    line.Quantity,
			Before:  before,
			After:   lv.Quantity,
		})
	}
	return res
}

// StockWarning describes a quantity that fell below threshold. The default
// threshold of 0 warns only on negative stock.
func StockWarning(name string, quantity, threshold int) (string, bool) {
	switch {
	case quantity < 0:
		return fmt.Sprintf("stock of %s is negative (%d)", name, quantity), true
	case quantity < threshold:
		return fmt.Sprintf("stock of %s is low (%d, threshold %d)", name, quantity, threshold), true
	default:
		return "", false
	}
}

// SameProduct reports whether two product names refer to the same stock item.
func SameProduct(a, b string) bool {
	return productKey(a) == productKey(b)
}

func productKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
