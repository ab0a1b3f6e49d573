package storage

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"goldwatch/internal/alerting"
	"goldwatch/internal/timeseries"
)

var (
	// ErrNotConfigured indicates the backing database was not initialised.
	ErrNotConfigured = errors.New("storage: database not configured")
	// ErrAlertExists is returned by InsertAlert when the id is already taken.
	ErrAlertExists = errors.New("storage: alert id already exists")
)

// Persistence is the durable write-through and bootstrap layer behind the engine.
type Persistence interface {
	AppendSample(ctx context.Context, sample timeseries.Sample) error
	// LoadRecentSamples returns up to limit samples in arrival order, oldest first.
	LoadRecentSamples(ctx context.Context, limit int) ([]timeseries.Sample, error)
	// InsertAlert stores a new alert and fails with ErrAlertExists if its id is taken.
	InsertAlert(ctx context.Context, alert alerting.Alert) error
	// SaveAlert inserts or updates an alert keyed by its id; used for status changes.
	SaveAlert(ctx context.Context, alert alerting.Alert) error
	// LoadAlerts returns all alerts ordered by id.
	LoadAlerts(ctx context.Context) ([]alerting.Alert, error)
	Close() error
}

// HistoryReader serves export and reporting queries.
type HistoryReader interface {
	ListSamplesBetween(ctx context.Context, from, to time.Time) ([]timeseries.Sample, error)
	CountSamples(ctx context.Context) (int64, error)
}

// TriggerRecord is an audited alert dispatch.
type TriggerRecord struct {
	ID        int64
	AlertID   int64
	Kind      alerting.Kind
	Threshold decimal.Decimal
	Price     decimal.Decimal
	Message   string
	CreatedAt time.Time
}

// TriggerLog keeps an audit trail of dispatched triggers.
type TriggerLog interface {
	RecordTrigger(ctx context.Context, event alerting.TriggerEvent, at time.Time) error
	ListRecentTriggers(ctx context.Context, limit int) ([]TriggerRecord, error)
}

// AdvisoryLocker exposes advisory lock helpers.
type AdvisoryLocker interface {
	TryAdvisoryLock(ctx context.Context, key int64) (unlock func(), acquired bool, err error)
}

func reverseSamples(samples []timeseries.Sample) {
	for i, j := 0, len(samples)-1; i < j; i, j = i+1, j-1 {
		samples[i], samples[j] = samples[j], samples[i]
	}
}
