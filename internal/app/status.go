package app

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"goldwatch/internal/alerting"
	"goldwatch/internal/monitor"
	"goldwatch/internal/schedule"
	"goldwatch/internal/service"
)

func (a *App) location() (*time.Location, error) {
	rule, err := a.Config.Rule()
	if err != nil {
		return nil, err
	}
	return rule.Location, nil
}

// Status prints the schedule gate and a snapshot of the persisted window.
func (a *App) Status(ctx context.Context) error {
	engine, err := a.newEngine()
	if err != nil {
		return err
	}

	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if closeStore != nil {
		defer closeStore()
	}
	if store != nil {
		samples, err := store.LoadRecentSamples(ctx, engine.Capacity())
		if err != nil {
			return err
		}
		engine.RestoreHistory(samples)
	}

	view := engine.Snapshot()
	writeStatus(a.Out, view)
	return nil
}

func writeStatus(out io.Writer, view monitor.SnapshotView) {
	writer := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	defer writer.Flush()

	sched := view.Schedule
	state := "OPERASIONAL"
	if !sched.IsOpen {
		state = "TUTUP"
	}
	fmt.Fprintf(writer, "Status\t%s\t%s\n", state, sched.Message)
	fmt.Fprintf(writer, "Waktu\t%s %s\t%s\n", sched.Weekday, sched.TimeOfDay, sched.Now.Format("2006-01-02 MST"))
	if !sched.IsOpen && !sched.ReopensAt.IsZero() {
		fmt.Fprintf(writer, "Buka lagi\t%s %s\t\n", schedule.WeekdayName(sched.ReopensAt.Weekday()), sched.ReopensAt.Format(displayTimeLayout))
	}

	if view.Latest == nil {
		fmt.Fprintf(writer, "Harga\t-\t\n")
		return
	}
	fmt.Fprintf(writer, "Harga\t%s\t%s\n", alerting.FormatRupiah(view.Latest.Price), view.Latest.Timestamp.In(sched.Now.Location()).Format(displayTimeLayout))
	fmt.Fprintf(writer, "Perubahan\t%s\t\n", formatDelta(view.Delta))
	fmt.Fprintf(writer, "Sejak awal jendela\t%s\t\n", formatDelta(view.WindowChange))
	fmt.Fprintf(writer, "Statistik\tmax %s  min %s  rata-rata %s\t%d data\n",
		alerting.FormatRupiah(view.Stats.Max),
		alerting.FormatRupiah(view.Stats.Min),
		alerting.FormatRupiah(view.Stats.Mean),
		view.Stats.Count,
	)
}

func formatDelta(d monitor.Delta) string {
	if !d.Available {
		return "-"
	}
	return fmt.Sprintf("%s (%s%%)", signedRupiah(d.Change), d.ChangePct.StringFixed(2))
}

// writeReport prints the outcome of a single sampling tick.
func writeReport(out io.Writer, report service.Report, loc *time.Location) {
	if report.Skipped != "" {
		reason := report.Reason
		if reason == "" {
			reason = "-"
		}
		fmt.Fprintf(out, "tick skipped (%s): %s\n", report.Skipped, reason)
		return
	}
	if report.Sample == nil {
		fmt.Fprintln(out, "no sample recorded")
		return
	}

	fmt.Fprintf(out, "%s  %s  %s\n",
		report.Sample.Timestamp.In(loc).Format(displayTimeLayout),
		alerting.FormatRupiah(report.Sample.Price),
		formatDelta(report.Delta),
	)
	for _, ev := range report.Triggers {
		fmt.Fprintf(out, "[%s] %s\n", ev.Kind, ev.Message)
	}
	if len(report.Triggers) > 0 {
		fmt.Fprintf(out, "%d of %d triggers dispatched\n", report.Dispatched, len(report.Triggers))
	}
}
