// Package locale formats money and grades for reports and documents using the
// configured language and currency.
package locale

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

const (
	DefaultLocale   = "pt-BR"
	DefaultCurrency = "BRL"
)

// Formatter renders amounts and grades for one locale.
type Formatter struct {
	tag     language.Tag
	unit    currency.Unit
	printer *message.Printer
}

// New parses a BCP 47 tag and an ISO 4217 currency code. Empty values fall back
// to pt-BR and BRL.
func New(tag, code string) (*Formatter, error) {
	if strings.TrimSpace(tag) == "" {
		tag = DefaultLocale
	}
	if strings.TrimSpace(code) == "" {
		code = DefaultCurrency
	}
	lang, err := language.Parse(tag)
	if err != nil {
		return nil, fmt.Errorf("parse locale %q: %w", tag, err)
	}
	unit, err := currency.ParseISO(code)
	if err != nil {
		return nil, fmt.Errorf("parse currency %q: %w", code, err)
	}
	return &Formatter{tag: lang, unit: unit, printer: message.NewPrinter(lang)}, nil
}

// MustNew is New for constants known to be valid.
func MustNew(tag, code string) *Formatter {
	f, err := New(tag, code)
	if err != nil {
		panic(err)
	}
	return f
}

// Tag returns the language tag.
func (f *Formatter) Tag() language.Tag { return f.tag }

// Currency returns the currency unit.
func (f *Formatter) Currency() currency.Unit { return f.unit }

// Symbol returns the currency symbol for the locale, e.g. R$.
func (f *Formatter) Symbol() string {
	return f.printer.Sprint(currency.Symbol(f.unit))
}

// Money renders an amount with the currency symbol and two fractional digits,
// using the locale's separators.
func (f *Formatter) Money(d decimal.Decimal) string {
	return f.Symbol() + " " + f.Number(d)
}

// Number renders an amount with two fractional digits without a symbol.
func (f *Formatter) Number(d decimal.Decimal) string {
	return f.printer.Sprint(number.Decimal(d.Round(2).InexactFloat64(), number.Scale(2)))
}

// Grade renders an average or bimester grade with two decimals.
func (f *Formatter) Grade(v float64) string {
	return f.printer.Sprint(number.Decimal(v, number.Scale(2)))
}
