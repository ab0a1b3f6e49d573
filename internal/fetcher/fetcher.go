package fetcher

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Reading is one attempt to observe the live price.
// Signal is false when the source had nothing usable this attempt.
type Reading struct {
	Price  decimal.Decimal
	Signal bool
	Reason string
}

// NoSignal builds the "no data this attempt" reading.
func NoSignal(format string, args ...any) Reading {
	return Reading{Reason: fmt.Sprintf(format, args...)}
}

// Price builds a reading carrying a value.
func Price(p decimal.Decimal) Reading {
	return Reading{Price: p, Signal: true}
}

// PriceSource returns a live price or NoSignal.
// Errors are reserved for misconfiguration, never for ordinary network failures.
type PriceSource interface {
	Fetch(ctx context.Context) (Reading, error)
}

// ParseRupiah parses "2.950.000", "Rp 2.950.000" or "2.950.000,50".
func ParseRupiah(raw string) (decimal.Decimal, error) {
	cleaned := strings.TrimSpace(raw)
	cleaned = strings.TrimPrefix(cleaned, "Rp")
	cleaned = strings.ReplaceAll(cleaned, " ", "")
	cleaned = strings.ReplaceAll(cleaned, ".", "")
	cleaned = strings.ReplaceAll(cleaned, ",", ".")
	if cleaned == "" {
		return decimal.Decimal{}, fmt.Errorf("empty price text %q", raw)
	}

	value, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("parse price %q: %w", raw, err)
	}
	return value, nil
}

// ParseAmount reads a price typed by a person or found in a file. Plain
// decimals such as "2950000" or "2950000.50" are taken as written. Text with
// an Rp prefix, a comma, several dots, or one dot followed by exactly three
// digits ("2.950") uses Rupiah grouping and goes through ParseRupiah.
func ParseAmount(raw string) (decimal.Decimal, error) {
	raw = strings.TrimSpace(raw)
	if looksGrouped(raw) {
		return ParseRupiah(raw)
	}
	value, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("parse price %q: %w", raw, err)
	}
	return value, nil
}

func looksGrouped(raw string) bool {
	if strings.HasPrefix(raw, "Rp") || strings.Contains(raw, ",") {
		return true
	}
	switch strings.Count(raw, ".") {
	case 0:
		return false
	case 1:
		whole, frac, _ := strings.Cut(raw, ".")
		return whole != "" && len(frac) == 3
	default:
		return true
	}
}

// Static always reports the same price. Used for simulations and tests.
type Static struct {
	Value decimal.Decimal
}

// Fetch returns the fixed value, or NoSignal when it is not positive.
func (s Static) Fetch(ctx context.Context) (Reading, error) {
	if !s.Value.IsPositive() {
		return NoSignal("static price not set"), nil
	}
	return Price(s.Value), nil
}

var _ PriceSource = Static{}
