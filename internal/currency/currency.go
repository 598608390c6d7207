// Package currency carries the presentation currency of a configuration
// session: its ISO code, exchange rate from the package base currency, symbol
// and number formatting.
package currency

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

var knownSymbols = map[string]string{
	"USD": "$",
	"EUR": "€",
	"GBP": "£",
	"JPY": "¥",
	"CAD": "CA$",
	"AUD": "A$",
	"MXN": "MX$",
	"INR": "₹",
	"CHF": "CHF ",
	"BRL": "R$",
}

// Context is immutable once built.
type Context struct {
	code    string
	rate    decimal.Decimal
	symbol  string
	scale   int
	printer *message.Printer
}

type Option func(*Context)

// WithSymbol overrides the display symbol.
func WithSymbol(symbol string) Option {
	return func(c *Context) {
		if symbol != "" {
			c.symbol = symbol
		}
	}
}

// WithLocale sets the locale used for digit grouping.
func WithLocale(tag language.Tag) Option {
	return func(c *Context) {
		c.printer = message.NewPrinter(tag)
	}
}

// New validates code as an ISO 4217 currency. A zero rate means the session
// currency is the package base currency.
func New(code string, rate decimal.Decimal, opts ...Option) (Context, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	unit, err := currency.ParseISO(code)
	if err != nil {
		return Context{}, fmt.Errorf("unknown currency %q: %w", code, err)
	}
	if rate.IsNegative() {
		return Context{}, fmt.Errorf("exchange rate for %s must not be negative", code)
	}
	if rate.IsZero() {
		rate = decimal.NewFromInt(1)
	}

	scale, _ := currency.Standard.Rounding(unit)
	ctx := Context{
		code:    unit.String(),
		rate:    rate,
		symbol:  defaultSymbol(unit.String()),
		scale:   scale,
		printer: message.NewPrinter(language.English),
	}
	for _, opt := range opts {
		opt(&ctx)
	}
	return ctx, nil
}

// MustNew is New for static defaults; it panics on an invalid code.
func MustNew(code string) Context {
	ctx, err := New(code, decimal.NewFromInt(1))
	if err != nil {
		panic(err)
	}
	return ctx
}

func defaultSymbol(code string) string {
	if s, ok := knownSymbols[code]; ok {
		return s
	}
	return code + " "
}

func (c Context) Code() string { return c.code }

func (c Context) Rate() decimal.Decimal { return c.rate }

func (c Context) Symbol() string { return c.symbol }

// Scale is the number of minor digits shown for the currency.
func (c Context) Scale() int { return c.scale }

// Convert applies the exchange rate to an amount in the package base
// currency. The pricing engine never calls this itself.
func (c Context) Convert(base decimal.Decimal) decimal.Decimal {
	return base.Mul(c.rate)
}

// Round rounds amount to the currency's minor unit for presentation.
func (c Context) Round(amount decimal.Decimal) decimal.Decimal {
	return amount.Round(int32(c.scale))
}

// Format renders amount with symbol and locale grouping, e.g. "$1,234.50".
func (c Context) Format(amount decimal.Decimal) string {
	printer := c.printer
	if printer == nil {
		printer = message.NewPrinter(language.English)
	}
	rounded := c.Round(amount)
	sign := ""
	if rounded.IsNegative() {
		sign = "-"
		rounded = rounded.Abs()
	}
	value := printer.Sprint(number.Decimal(rounded.InexactFloat64(), number.Scale(c.scale)))
	return sign + c.symbol + value
}
