package models

import (
	"fmt"
	"strings"
)

// Money is an amount in the currency's minor unit (whole dong for VND, cents for USD).
type Money int64

// minorDigits lists the minor-unit exponent of the currencies the catalog uses.
var minorDigits = map[string]int{
	"VND": 0,
	"JPY": 0,
	"KRW": 0,
	"USD": 2,
	"EUR": 2,
	"THB": 2,
}

// MinorDigits returns the number of decimal places of the currency, 0 when unknown.
func MinorDigits(currency string) int {
	return minorDigits[strings.ToUpper(currency)]
}

// Format renders the amount with thousands separators, e.g. "3,600,000 VND".
func (m Money) Format(currency string) string {
	digits := MinorDigits(currency)
	neg := m < 0
	v := int64(m)
	if neg {
		v = -v
	}

	scale := int64(1)
	for i := 0; i < digits; i++ {
		scale *= 10
	}
	whole, frac := v/scale, v%scale

	raw := fmt.Sprintf("%d", whole)
	var b strings.Builder
	for i, r := range raw {
		if i > 0 && (len(raw)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	out := b.String()
	if digits > 0 {
		out = fmt.Sprintf("%s.%0*d", out, digits, frac)
	}
	if neg {
		out = "-" + out
	}
	if currency != "" {
		out += " " + strings.ToUpper(currency)
	}
	return out
}
