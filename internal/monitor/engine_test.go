package monitor

import (
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"goldwatch/internal/alerting"
	"goldwatch/internal/schedule"
	"goldwatch/internal/timeseries"
)

var wib = time.FixedZone("WIB", 7*60*60)

type fixedClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fixedClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fixedClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newTestEngine(capacity int, start time.Time) (*Engine, *fixedClock) {
	clock := &fixedClock{now: start}
	rule := schedule.DefaultRule()
	rule.Location = wib
	return New(Options{Capacity: capacity, Rule: rule, Clock: clock}), clock
}

func price(v int64) decimal.Decimal {
	return decimal.NewFromInt(v)
}

func TestIngestOrdering(t *testing.T) {
	start := time.Date(2026, 10, 20, 10, 0, 0, 0, wib)
	engine, _ := newTestEngine(10, start)

	delta, err := engine.Ingest(timeseries.Sample{Timestamp: start, Price: price(2_950_000)})
	require.NoError(t, err)
	assert.False(t, delta.Available)

	_, err = engine.Ingest(timeseries.Sample{Timestamp: start.Add(-time.Second), Price: price(2_951_000)})
	assert.ErrorIs(t, err, ErrIngest)

	delta, err = engine.Ingest(timeseries.Sample{Timestamp: start, Price: price(2_960_000)})
	require.NoError(t, err)
	assert.True(t, delta.Available)
	assert.True(t, delta.Change.Equal(price(10_000)))

	_, err = engine.Ingest(timeseries.Sample{Timestamp: start.Add(time.Minute), Price: price(2_940_000)})
	require.NoError(t, err)

	assert.Len(t, engine.History(10), 3)
}

func TestIngestRejectsMalformedSamples(t *testing.T) {
	engine, _ := newTestEngine(10, time.Date(2026, 10, 20, 10, 0, 0, 0, wib))

	_, err := engine.Ingest(timeseries.Sample{Price: price(1)})
	assert.ErrorIs(t, err, ErrIngest)

	_, err = engine.Ingest(timeseries.Sample{Timestamp: engine.Now(), Price: decimal.Zero})
	assert.ErrorIs(t, err, ErrIngest)

	assert.Empty(t, engine.History(10))
}

func TestIngestDeltaPercent(t *testing.T) {
	start := time.Date(2026, 10, 20, 10, 0, 0, 0, wib)
	engine, clock := newTestEngine(10, start)

	_, _, err := engine.IngestPrice(price(2_000_000))
	require.NoError(t, err)
	clock.Advance(time.Minute)

	sample, delta, err := engine.IngestPrice(price(2_050_000))
	require.NoError(t, err)
	assert.Equal(t, start.Add(time.Minute), sample.Timestamp)
	assert.True(t, delta.Change.Equal(price(50_000)))
	assert.Equal(t, "2.5", delta.ChangePct.String())
}

func TestSnapshotEmpty(t *testing.T) {
	engine, _ := newTestEngine(10, time.Date(2026, 10, 17, 12, 0, 0, 0, wib))

	view := engine.Snapshot()
	assert.Nil(t, view.Latest)
	assert.Empty(t, view.History)
	assert.False(t, view.Delta.Available)
	assert.Equal(t, 0, view.Stats.Count)
	assert.False(t, view.Schedule.IsOpen)
	assert.Equal(t, view.GeneratedAt, view.Schedule.Now)

	_, err := engine.Latest()
	assert.ErrorIs(t, err, timeseries.ErrEmptyStore)
}

func TestSnapshotConsistency(t *testing.T) {
	start := time.Date(2026, 10, 20, 10, 0, 0, 0, wib)
	engine, clock := newTestEngine(3, start)

	for _, p := range []int64{2_900_000, 2_950_000, 3_000_000, 2_980_000} {
		_, _, err := engine.IngestPrice(price(p))
		require.NoError(t, err)
		clock.Advance(time.Minute)
	}

	view := engine.Snapshot()
	require.Len(t, view.History, 3)
	require.NotNil(t, view.Latest)
	assert.True(t, view.Latest.Price.Equal(price(2_980_000)))

	assert.True(t, view.Delta.Available)
	assert.True(t, view.Delta.Change.Equal(price(-20_000)))
	assert.True(t, view.WindowChange.Reference.Equal(price(2_950_000)))
	assert.True(t, view.WindowChange.Change.Equal(price(30_000)))

	assert.Equal(t, 3, view.Stats.Count)
	assert.True(t, view.Stats.Max.Equal(price(3_000_000)))
	assert.True(t, view.Stats.Min.Equal(price(2_950_000)))
	assert.True(t, view.Stats.Mean.Equal(decimal.RequireFromString("2976666.67")))

	assert.True(t, view.Schedule.IsOpen)
	assert.Equal(t, "Selasa", view.Schedule.Weekday)
}

func TestEndToEndCapacity(t *testing.T) {
	start := time.Date(2026, 10, 20, 0, 0, 0, 0, wib)
	engine, _ := newTestEngine(100, start)

	var stamps []time.Time
	for i := 0; i < 120; i++ {
		ts := start.Add(time.Duration(i) * time.Minute)
		stamps = append(stamps, ts)
		_, err := engine.Ingest(timeseries.Sample{Timestamp: ts, Price: price(int64(2_900_000 + i))})
		require.NoError(t, err)
	}

	got := engine.History(200)
	require.Len(t, got, 100)
	for i, s := range got {
		assert.True(t, s.Timestamp.Equal(stamps[20+i]))
	}
}

func TestAlertsThroughEngine(t *testing.T) {
	engine, _ := newTestEngine(10, time.Date(2026, 10, 20, 10, 0, 0, 0, wib))

	_, err := engine.RegisterAlert("gita", decimal.Zero, price(1))
	assert.ErrorIs(t, err, alerting.ErrInvalidThreshold)

	id, err := engine.RegisterAlert("gita", price(3_000_000), price(3_200_000))
	require.NoError(t, err)

	events := engine.EvaluateAlerts(price(2_990_000))
	require.Len(t, events, 1)
	assert.Equal(t, id, events[0].AlertID)
	assert.Equal(t, alerting.KindBuy, events[0].Kind)

	alerts := engine.ListAlerts()
	require.Len(t, alerts, 1)
	assert.Equal(t, engine.Now(), alerts[0].CreatedAt)
}

func TestRestore(t *testing.T) {
	start := time.Date(2026, 10, 20, 10, 0, 0, 0, wib)
	engine, _ := newTestEngine(2, start)

	restored := engine.RestoreHistory([]timeseries.Sample{
		{Timestamp: start.Add(2 * time.Minute), Price: price(3)},
		{Timestamp: start, Price: price(1)},
		{Timestamp: start.Add(time.Minute), Price: price(2)},
	})
	assert.Equal(t, 3, restored)

	got := engine.History(5)
	require.Len(t, got, 2)
	assert.True(t, got[0].Price.Equal(price(2)))
	assert.True(t, got[1].Price.Equal(price(3)))

	engine.RestoreAlerts([]alerting.Alert{{ID: 4, Owner: "hadi", BuyThreshold: price(1), SellThreshold: price(2)}})
	id, err := engine.RegisterAlert("indah", price(1), price(2))
	require.NoError(t, err)
	assert.Equal(t, int64(5), id)
}

func TestConcurrentIngestAndSnapshot(t *testing.T) {
	start := time.Date(2026, 10, 20, 10, 0, 0, 0, wib)
	engine, clock := newTestEngine(20, start)
	var wg sync.WaitGroup

	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			clock.Advance(time.Second)
			_, _, _ = engine.IngestPrice(price(int64(2_900_000 + i)))
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			view := engine.Snapshot()
			if view.Latest != nil {
				assert.True(t, view.Latest.Price.Equal(view.History[len(view.History)-1].Price))
			}
		}
	}()
	wg.Wait()

	assert.Len(t, engine.History(100), 20)
}
