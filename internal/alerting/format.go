package alerting

import (
	"strings"

	"github.com/shopspring/decimal"
)

// FormatRupiah renders an amount as Rp with dot thousand separators, e.g. Rp2.950.000.
// Fractions are kept to two places after a comma only when present.
func FormatRupiah(d decimal.Decimal) string {
	sign := ""
	if d.IsNegative() {
		sign = "-"
	}
	return sign + "Rp" + GroupThousands(d.Abs())
}

// GroupThousands formats a decimal with Indonesian separators and no currency prefix.
func GroupThousands(d decimal.Decimal) string {
	sign := ""
	if d.IsNegative() {
		sign = "-"
		d = d.Abs()
	}

	fixed := d.StringFixed(2)
	whole, frac, _ := strings.Cut(fixed, ".")

	var b strings.Builder
	for i, r := range whole {
		if i > 0 && (len(whole)-i)%3 == 0 {
			b.WriteByte('.')
		}
		b.WriteRune(r)
	}
	if frac != "" && frac != "00" {
		b.WriteByte(',')
		b.WriteString(frac)
	}
	return sign + b.String()
}
