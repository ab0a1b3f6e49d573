package storage

import (
	"context"
	"io/fs"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"goldwatch/internal/alerting"
	"goldwatch/internal/timeseries"
)

func openTestSQLite(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "data", "emas.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestSQLiteSamplesRoundTripOldestFirst(t *testing.T) {
	ctx := context.Background()
	store := openTestSQLite(t)

	base := time.Date(2026, 10, 20, 3, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		require.NoError(t, store.AppendSample(ctx, timeseries.Sample{
			Timestamp: base.Add(time.Duration(i) * time.Minute),
			Price:     decimal.NewFromInt(int64(2_950_000 + i*1000)),
		}))
	}

	recent, err := store.LoadRecentSamples(ctx, 3)
	require.NoError(t, err)
	require.Len(t, recent, 3)
	assert.True(t, recent[0].Price.Equal(decimal.NewFromInt(2_952_000)))
	assert.True(t, recent[2].Price.Equal(decimal.NewFromInt(2_954_000)))
	assert.True(t, recent[2].Timestamp.Equal(base.Add(4*time.Minute)))

	count, err := store.CountSamples(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 5, count)

	between, err := store.ListSamplesBetween(ctx, base.Add(time.Minute), base.Add(3*time.Minute))
	require.NoError(t, err)
	require.Len(t, between, 2)
	assert.True(t, between[0].Timestamp.Equal(base.Add(time.Minute)))
}

func TestSQLiteSaveAlertUpserts(t *testing.T) {
	ctx := context.Background()
	store := openTestSQLite(t)

	alert := alerting.Alert{
		ID:            1,
		Owner:         "budi",
		BuyThreshold:  decimal.NewFromInt(2_900_000),
		SellThreshold: decimal.NewFromInt(3_000_000),
		Status:        alerting.StatusActive,
		CreatedAt:     time.Date(2026, 10, 20, 1, 0, 0, 0, time.UTC),
	}
	require.NoError(t, store.SaveAlert(ctx, alert))

	alert.Status = alerting.StatusTriggeredBuy
	require.NoError(t, store.SaveAlert(ctx, alert))

	alerts, err := store.LoadAlerts(ctx)
	require.NoError(t, err)
	require.Len(t, alerts, 1)
	assert.Equal(t, "budi", alerts[0].Owner)
	assert.Equal(t, alerting.StatusTriggeredBuy, alerts[0].Status)
	assert.True(t, alerts[0].BuyThreshold.Equal(alert.BuyThreshold))
	assert.True(t, alerts[0].SellThreshold.Equal(alert.SellThreshold))
}

func TestSQLiteInsertAlertRejectsTakenID(t *testing.T) {
	ctx := context.Background()
	store := openTestSQLite(t)

	first := alerting.Alert{
		ID:            4,
		Owner:         "budi",
		BuyThreshold:  decimal.NewFromInt(3_000_000),
		SellThreshold: decimal.NewFromInt(3_200_000),
		Status:        alerting.StatusActive,
		CreatedAt:     time.Date(2026, 10, 20, 1, 0, 0, 0, time.UTC),
	}
	require.NoError(t, store.InsertAlert(ctx, first))

	second := first
	second.Owner = "sari"
	second.BuyThreshold = decimal.NewFromInt(2_900_000)
	err := store.InsertAlert(ctx, second)
	require.ErrorIs(t, err, ErrAlertExists)

	alerts, err := store.LoadAlerts(ctx)
	require.NoError(t, err)
	require.Len(t, alerts, 1)
	assert.Equal(t, "budi", alerts[0].Owner)
	assert.True(t, alerts[0].BuyThreshold.Equal(first.BuyThreshold))
}

func TestSQLiteTriggerLog(t *testing.T) {
	ctx := context.Background()
	store := openTestSQLite(t)

	at := time.Date(2026, 10, 20, 2, 0, 0, 0, time.UTC)
	events := []alerting.TriggerEvent{
		{AlertID: 1, Owner: "budi", Kind: alerting.KindBuy, Threshold: decimal.NewFromInt(2_900_000), Price: decimal.NewFromInt(2_890_000), Message: "first"},
		{AlertID: 2, Owner: "sari", Kind: alerting.KindSell, Threshold: decimal.NewFromInt(3_000_000), Price: decimal.NewFromInt(3_010_000), Message: "second"},
	}
	for i, ev := range events {
		require.NoError(t, store.RecordTrigger(ctx, ev, at.Add(time.Duration(i)*time.Second)))
	}

	records, err := store.ListRecentTriggers(ctx, 10)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "second", records[0].Message)
	assert.Equal(t, alerting.KindSell, records[0].Kind)
	assert.True(t, records[0].Price.Equal(decimal.NewFromInt(3_010_000)))
	assert.EqualValues(t, 1, records[1].AlertID)
}

func TestNilSQLiteStoreNotConfigured(t *testing.T) {
	var store *SQLiteStore
	_, err := store.LoadAlerts(context.Background())
	assert.ErrorIs(t, err, ErrNotConfigured)
	assert.NoError(t, store.Close())
}

func TestEmbeddedMigrations(t *testing.T) {
	names, err := fs.Glob(migrationsFS, "migrations/*.sql")
	require.NoError(t, err)
	assert.Contains(t, names, "migrations/00001_init.sql")
	assert.Contains(t, names, "migrations/00002_trigger_log.sql")
}
