package cli

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/shopspring/decimal"

	"recordcore/internal/core"
	"recordcore/pkg/derive"
	"recordcore/pkg/domain"
)

// PrintTable writes t as aligned columns.
func PrintTable(w io.Writer, t core.Table) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	if len(t.Headers) > 0 {
		if _, err := fmt.Fprintln(tw, strings.Join(t.Headers, "\t")); err != nil {
			return err
		}
	}
	for _, row := range t.Rows {
		if _, err := fmt.Fprintln(tw, strings.Join(row, "\t")); err != nil {
			return err
		}
	}
	return tw.Flush()
}

// PrintAdvisories writes one warning line per advisory.
func PrintAdvisories(w io.Writer, advisories []core.Advisory) error {
	for _, a := range advisories {
		if _, err := fmt.Fprintf(w, "warning: %s\n", a); err != nil {
			return err
		}
	}
	return nil
}

// ParseMoney parses an amount written with either a dot or a comma as the
// decimal separator.
func ParseMoney(field, raw string) (decimal.Decimal, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(strings.ReplaceAll(raw, ",", "."))
	if err != nil {
		return decimal.Zero, domain.InvalidInputError{Field: field, Reason: fmt.Sprintf("invalid amount %q", raw)}
	}
	return d, nil
}

// ParseItem parses a consumed product written as name:quantity:unit_price.
// Quantity and price are taken from the right, so the name may contain ':'.
func ParseItem(raw string) (derive.LineInput, error) {
	rest, priceRaw, ok := cutLast(raw, ":")
	if !ok {
		return derive.LineInput{}, domain.InvalidInputError{Field: "item", Reason: fmt.Sprintf("%q is not name:quantity:price", raw)}
	}
	name, qtyRaw, ok := cutLast(rest, ":")
	if !ok || strings.TrimSpace(name) == "" {
		return derive.LineInput{}, domain.InvalidInputError{Field: "item", Reason: fmt.Sprintf("%q is not name:quantity:price", raw)}
	}
	qty, err := strconv.Atoi(strings.TrimSpace(qtyRaw))
	if err != nil {
		return derive.LineInput{}, domain.InvalidInputError{Field: "item", Reason: fmt.Sprintf("invalid quantity in %q", raw)}
	}
	price, err := ParseMoney("item", priceRaw)
	if err != nil {
		return derive.LineInput{}, err
	}
	return derive.LineInput{Name: strings.TrimSpace(name), Quantity: qty, UnitPrice: price}, nil
}

func cutLast(s, sep string) (before, after string, found bool) {
	i := strings.LastIndex(s, sep)
	if i < 0 {
		return s, "", false
	}
	return s[:i], s[i+len(sep):], true
}

// ParseTime accepts RFC 3339, "2006-01-02 15:04" or a bare date. An empty
// value is the zero time.
func ParseTime(field, raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, nil
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02 15:04", time.DateOnly} {
		if t, err := time.ParseInLocation(layout, raw, time.UTC); err == nil {
			return t, nil
		}
	}
	return time.Time{}, domain.InvalidInputError{Field: field, Reason: fmt.Sprintf("invalid time %q", raw)}
}

// EndOfDay moves a bare date to its last instant so that date ranges include
// the whole day.
func EndOfDay(t time.Time) time.Time {
	if t.IsZero() || t.Hour() != 0 || t.Minute() != 0 || t.Second() != 0 {
		return t
	}
	return t.Add(24*time.Hour - time.Nanosecond)
}
