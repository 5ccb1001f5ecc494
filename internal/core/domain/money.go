package domain

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Currency describes how amounts in one ISO currency are rounded and gated.
type Currency struct {
	Code          string
	Decimals      int32
	MinimumCharge decimal.Decimal
	FallbackRate  decimal.Decimal // units of Code per 1 USD
}

var currencies = map[string]Currency{
	"ARS": {Code: "ARS", Decimals: 0, MinimumCharge: decimal.NewFromInt(100), FallbackRate: decimal.NewFromInt(1000)},
	"BRL": {Code: "BRL", Decimals: 2, MinimumCharge: decimal.NewFromInt(1), FallbackRate: decimal.RequireFromString("5.00")},
	"CLP": {Code: "CLP", Decimals: 0, MinimumCharge: decimal.NewFromInt(1000), FallbackRate: decimal.NewFromInt(950)},
	"COP": {Code: "COP", Decimals: 0, MinimumCharge: decimal.NewFromInt(1000), FallbackRate: decimal.NewFromInt(4000)},
	"MXN": {Code: "MXN", Decimals: 2, MinimumCharge: decimal.NewFromInt(10), FallbackRate: decimal.RequireFromString("17.00")},
	"PEN": {Code: "PEN", Decimals: 2, MinimumCharge: decimal.NewFromInt(2), FallbackRate: decimal.RequireFromString("3.75")},
	"UYU": {Code: "UYU", Decimals: 0, MinimumCharge: decimal.NewFromInt(15), FallbackRate: decimal.NewFromInt(40)},
	"USD": {Code: "USD", Decimals: 2, MinimumCharge: decimal.NewFromInt(1), FallbackRate: decimal.NewFromInt(1)},
}

var countryCurrency = map[string]string{
	"AR": "ARS",
	"BR": "BRL",
	"CL": "CLP",
	"CO": "COP",
	"MX": "MXN",
	"PE": "PEN",
	"UY": "UYU",
}

// LookupCurrency returns the rules for code. Unknown codes report false.
func LookupCurrency(code string) (Currency, bool) {
	c, ok := currencies[strings.ToUpper(code)]
	return c, ok
}

// CurrencyForCountry maps an ISO country code to its settlement currency.
// Countries outside the table settle in USD.
func CurrencyForCountry(country string) string {
	if cur, ok := countryCurrency[strings.ToUpper(country)]; ok {
		return cur
	}
	return "USD"
}

// Precision returns the number of decimals for code, defaulting to 2.
func Precision(code string) int32 {
	if c, ok := LookupCurrency(code); ok {
		return c.Decimals
	}
	return 2
}

// Round rounds amount to the precision of code, half away from zero.
func Round(amount decimal.Decimal, code string) decimal.Decimal {
	return amount.Round(Precision(code))
}

// GetMinimumChargeable returns the smallest total the gateway accepts for code.
func GetMinimumChargeable(code string) decimal.Decimal {
	if c, ok := LookupCurrency(code); ok {
		return c.MinimumCharge
	}
	return decimal.NewFromInt(1)
}

// CheckMinimumCharge fails when total is below the floor for code.
func CheckMinimumCharge(total decimal.Decimal, code string) error {
	floor := GetMinimumChargeable(code)
	if total.LessThan(floor) {
		return &ValidationError{
			Field:  "total_amount",
			Reason: fmt.Sprintf("%s %s is below the minimum of %s", total.String(), strings.ToUpper(code), floor.String()),
		}
	}
	return nil
}

// BuildLineItems spreads total evenly over lines and corrects the last line so
// that the sum of unit price times quantity equals total exactly. Unit prices
// are rounded down, so any residual is positive and lands on the last line;
// when it cannot be absorbed by that line's unit price, the line is split into
// one line at the even price and one line of quantity one carrying the rest.
func BuildLineItems(lines []LineItem, total decimal.Decimal, code string) ([]LineItem, error) {
	if len(lines) == 0 {
		return nil, &ValidationError{Field: "lines", Reason: "at least one line is required"}
	}

	qty := 0
	for _, l := range lines {
		if l.Quantity <= 0 {
			return nil, &ValidationError{Field: "quantity", Reason: "must be positive"}
		}
		qty += l.Quantity
	}

	prec := Precision(code)
	total = total.Round(prec)
	unit := total.Div(decimal.NewFromInt(int64(qty))).RoundFloor(prec)
	if !unit.IsPositive() {
		return nil, &ValidationError{
			Field:  "total_amount",
			Reason: fmt.Sprintf("%s %s cannot be split over %d units", total.String(), strings.ToUpper(code), qty),
		}
	}

	out := make([]LineItem, 0, len(lines)+1)
	sum := decimal.Zero
	for _, l := range lines[:len(lines)-1] {
		l.UnitPrice = unit
		sum = sum.Add(l.Subtotal())
		out = append(out, l)
	}

	last := lines[len(lines)-1]
	remaining := total.Sub(sum)
	lastQty := decimal.NewFromInt(int64(last.Quantity))
	lastUnit := remaining.Div(lastQty).RoundFloor(prec)

	if lastUnit.Mul(lastQty).Equal(remaining) {
		last.UnitPrice = lastUnit
		return append(out, last), nil
	}

	// remaining >= lastQty*lastUnit, so the tail is never below lastUnit.
	head := last
	head.Quantity = last.Quantity - 1
	head.UnitPrice = lastUnit
	tail := last
	tail.Quantity = 1
	tail.UnitPrice = remaining.Sub(head.Subtotal())
	return append(out, head, tail), nil
}

// SumLineItems returns the sum of unit price times quantity.
func SumLineItems(lines []LineItem) decimal.Decimal {
	sum := decimal.Zero
	for _, l := range lines {
		sum = sum.Add(l.Subtotal())
	}
	return sum
}
