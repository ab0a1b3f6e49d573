package app

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/shopspring/decimal"

	"goldwatch/internal/alerting"
	"goldwatch/internal/monitor"
)

const displayTimeLayout = "2006-01-02 15:04:05"

// Show prints recent samples with the change against the previous row.
func (a *App) Show(ctx context.Context, opts ShowOptions) error {
	store, closeStore, err := a.requireStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	limit := opts.Limit
	if limit <= 0 {
		limit = a.Config.History.Capacity
	}

	samples, err := store.LoadRecentSamples(ctx, limit)
	if err != nil {
		return err
	}
	if len(samples) == 0 {
		fmt.Fprintln(a.Out, "no samples found")
		return nil
	}

	loc, err := a.location()
	if err != nil {
		return err
	}

	writer := tabwriter.NewWriter(a.Out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "Waktu\tHarga\tPerubahan\tPerubahan%")

	// newest first, like the dashboard table
	for i := len(samples) - 1; i >= 0; i-- {
		sample := samples[i]
		change, pct := "-", "-"
		if i > 0 {
			prev := samples[i-1].Price
			diff := sample.Price.Sub(prev)
			change = signedRupiah(diff)
			if prev.IsPositive() {
				pct = diff.Div(prev).Mul(decimal.NewFromInt(100)).StringFixed(2)
			}
		}
		fmt.Fprintf(writer, "%s\t%s\t%s\t%s\n",
			sample.Timestamp.In(loc).Format(displayTimeLayout),
			alerting.FormatRupiah(sample.Price),
			change,
			pct,
		)
	}

	if err := writer.Flush(); err != nil {
		return err
	}

	if opts.Stats {
		stats := monitor.Summarise(samples)
		fmt.Fprintf(a.Out, "\nmax %s  min %s  rata-rata %s  (%d data)\n",
			alerting.FormatRupiah(stats.Max),
			alerting.FormatRupiah(stats.Min),
			alerting.FormatRupiah(stats.Mean),
			stats.Count,
		)
	}
	return nil
}

func signedRupiah(d decimal.Decimal) string {
	if d.IsNegative() {
		return "-" + alerting.FormatRupiah(d.Abs())
	}
	return "+" + alerting.FormatRupiah(d)
}
