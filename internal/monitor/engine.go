package monitor

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"goldwatch/internal/alerting"
	"goldwatch/internal/schedule"
	"goldwatch/internal/timeseries"
)

// ErrIngest marks a sample rejected by Ingest.
var ErrIngest = errors.New("monitor: sample rejected")

var hundred = decimal.NewFromInt(100)

// Clock supplies the current instant in the operating timezone.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock.
type SystemClock struct {
	Location *time.Location
}

// Now returns time.Now in the configured location.
func (c SystemClock) Now() time.Time {
	if c.Location == nil {
		return time.Now()
	}
	return time.Now().In(c.Location)
}

// Options configure an Engine.
type Options struct {
	Capacity int
	Rule     schedule.Rule
	Clock    Clock
	FireOnce bool
}

// Delta compares a price against a reference sample.
type Delta struct {
	Available bool            `json:"available"`
	Reference decimal.Decimal `json:"reference"`
	Change    decimal.Decimal `json:"change"`
	ChangePct decimal.Decimal `json:"change_pct"`
}

// Stats summarise the retained window.
type Stats struct {
	Count int             `json:"count"`
	Max   decimal.Decimal `json:"max"`
	Min   decimal.Decimal `json:"min"`
	Mean  decimal.Decimal `json:"mean"`
}

// SnapshotView is everything a dashboard needs in one consistent read.
type SnapshotView struct {
	GeneratedAt  time.Time           `json:"generated_at"`
	History      []timeseries.Sample `json:"history"`
	Latest       *timeseries.Sample  `json:"latest"`
	Delta        Delta               `json:"delta"`
	WindowChange Delta               `json:"window_change"`
	Stats        Stats               `json:"stats"`
	Schedule     schedule.Status     `json:"schedule"`
}

// Engine composes the series, the alert registry and the schedule gate.
type Engine struct {
	series *timeseries.Store
	alerts *alerting.Registry
	gate   *schedule.Gate
	clock  Clock

	ingestMu sync.Mutex
}

// New constructs an engine. It is created once at startup and shared by pointer.
func New(opts Options) *Engine {
	gate := schedule.NewGate(opts.Rule)

	clock := opts.Clock
	if clock == nil {
		clock = SystemClock{Location: gate.Location()}
	}

	return &Engine{
		series: timeseries.NewStore(opts.Capacity),
		alerts: alerting.NewRegistry(
			alerting.WithFireOnce(opts.FireOnce),
			alerting.WithClock(clock.Now),
		),
		gate:  gate,
		clock: clock,
	}
}

// Now exposes the engine clock.
func (e *Engine) Now() time.Time {
	return e.clock.Now()
}

// Capacity returns the history window size.
func (e *Engine) Capacity() int {
	return e.series.Capacity()
}

// Ingest appends a sample and reports its change against the previous latest sample.
func (e *Engine) Ingest(sample timeseries.Sample) (Delta, error) {
	if sample.Timestamp.IsZero() {
		return Delta{}, fmt.Errorf("%w: missing timestamp", ErrIngest)
	}
	if !sample.Price.IsPositive() {
		return Delta{}, fmt.Errorf("%w: price %s must be positive", ErrIngest, sample.Price.String())
	}

	e.ingestMu.Lock()
	defer e.ingestMu.Unlock()

	prev, err := e.series.Latest()
	hasPrev := err == nil
	if hasPrev && sample.Timestamp.Before(prev.Timestamp) {
		return Delta{}, fmt.Errorf("%w: timestamp %s precedes latest %s", ErrIngest,
			sample.Timestamp.Format(time.RFC3339), prev.Timestamp.Format(time.RFC3339))
	}

	e.series.Append(sample)

	if !hasPrev {
		return Delta{}, nil
	}
	return deltaBetween(prev, sample), nil
}

// IngestPrice stamps price with the engine clock and ingests it.
func (e *Engine) IngestPrice(price decimal.Decimal) (timeseries.Sample, Delta, error) {
	sample := timeseries.Sample{Timestamp: e.clock.Now(), Price: price}
	delta, err := e.Ingest(sample)
	return sample, delta, err
}

// History returns up to n recent samples, oldest first.
func (e *Engine) History(n int) []timeseries.Sample {
	return e.series.Recent(n)
}

// Latest returns the newest sample or timeseries.ErrEmptyStore.
func (e *Engine) Latest() (timeseries.Sample, error) {
	return e.series.Latest()
}

// Snapshot reads the store once and derives every field from that copy and one instant.
func (e *Engine) Snapshot() SnapshotView {
	now := e.clock.Now()
	history := e.series.Snapshot()

	view := SnapshotView{
		GeneratedAt: now,
		History:     history,
		Stats:       Summarise(history),
		Schedule:    e.gate.Status(now),
	}

	n := len(history)
	if n == 0 {
		return view
	}

	latest := history[n-1]
	view.Latest = &latest
	if n > 1 {
		view.Delta = deltaBetween(history[n-2], latest)
		view.WindowChange = deltaBetween(history[0], latest)
	}
	return view
}

// RegisterAlert creates an ACTIVE alert.
func (e *Engine) RegisterAlert(owner string, buy, sell decimal.Decimal) (int64, error) {
	return e.alerts.Register(owner, buy, sell)
}

// RemoveAlert drops an alert from the registry.
func (e *Engine) RemoveAlert(id int64) bool {
	return e.alerts.Remove(id)
}

// ListAlerts returns alerts in creation order.
func (e *Engine) ListAlerts() []alerting.Alert {
	return e.alerts.List()
}

// Alert looks up a single alert.
func (e *Engine) Alert(id int64) (alerting.Alert, bool) {
	return e.alerts.Get(id)
}

// FireOnce reports whether evaluation advances alert status.
func (e *Engine) FireOnce() bool {
	return e.alerts.FireOnce()
}

// EvaluateAlerts checks every active alert against price.
func (e *Engine) EvaluateAlerts(price decimal.Decimal) []alerting.TriggerEvent {
	return e.alerts.Evaluate(price)
}

// PreviewAlerts is EvaluateAlerts without side effects, even in fire-once mode.
func (e *Engine) PreviewAlerts(price decimal.Decimal) []alerting.TriggerEvent {
	return e.alerts.Preview(price)
}

// ScheduleStatus evaluates the weekly rule at now.
func (e *Engine) ScheduleStatus(now time.Time) schedule.Status {
	return e.gate.Status(now)
}

// IsOperational reports the gate decision at now.
func (e *Engine) IsOperational(now time.Time) (bool, string) {
	return e.gate.IsOperational(now)
}

// RestoreHistory seeds the window from persisted samples, sorted by timestamp.
func (e *Engine) RestoreHistory(samples []timeseries.Sample) int {
	sorted := make([]timeseries.Sample, len(samples))
	copy(sorted, samples)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Timestamp.Before(sorted[j].Timestamp)
	})

	restored := 0
	for _, s := range sorted {
		if _, err := e.Ingest(s); err == nil {
			restored++
		}
	}
	return restored
}

// RestoreAlerts merges persisted alerts into the registry.
func (e *Engine) RestoreAlerts(alerts []alerting.Alert) {
	e.alerts.Restore(alerts)
}

func deltaBetween(ref, cur timeseries.Sample) Delta {
	change := cur.Price.Sub(ref.Price)
	pct := decimal.Zero
	if !ref.Price.IsZero() {
		pct = change.Div(ref.Price).Mul(hundred).Round(4)
	}
	return Delta{
		Available: true,
		Reference: ref.Price,
		Change:    change,
		ChangePct: pct,
	}
}

// Summarise computes count, extremes and the mean price (2 decimals) of samples.
func Summarise(history []timeseries.Sample) Stats {
	stats := Stats{Count: len(history)}
	if len(history) == 0 {
		return stats
	}

	sum := decimal.Zero
	stats.Max = history[0].Price
	stats.Min = history[0].Price
	for _, s := range history {
		sum = sum.Add(s.Price)
		stats.Max = decimal.Max(stats.Max, s.Price)
		stats.Min = decimal.Min(stats.Min, s.Price)
	}
	stats.Mean = sum.Div(decimal.NewFromInt(int64(len(history)))).Round(2)
	return stats
}
