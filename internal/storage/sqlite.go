package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"goldwatch/internal/alerting"
	"goldwatch/internal/timeseries"
)

// DefaultSQLitePath is the history database file name the dashboard used.
const DefaultSQLitePath = "riwayat_emas.db"

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS harga_emas (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	waktu TIMESTAMP NOT NULL,
	harga NUMERIC NOT NULL
);

CREATE TABLE IF NOT EXISTS price_alerts (
	id INTEGER PRIMARY KEY,
	owner TEXT NOT NULL,
	buy_threshold TEXT NOT NULL,
	sell_threshold TEXT NOT NULL,
	status TEXT NOT NULL DEFAULT 'ACTIVE',
	created_at TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS trigger_log (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	alert_id INTEGER NOT NULL,
	kind TEXT NOT NULL,
	threshold TEXT NOT NULL,
	price TEXT NOT NULL,
	message TEXT NOT NULL,
	created_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_harga_emas_waktu ON harga_emas (waktu);
CREATE INDEX IF NOT EXISTS idx_trigger_log_created ON trigger_log (created_at);
`

// SQLiteStore persists samples and alerts in a local SQLite file.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens (and if needed creates) the database file and its schema.
func OpenSQLite(ctx context.Context, path string) (*SQLiteStore, error) {
	if path == "" {
		path = DefaultSQLitePath
	}

	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create data directory %q: %w", dir, err)
		}
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open sqlite database %q: %w", path, err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite database %q: %w", path, err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("initialise sqlite schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Close closes the database handle.
func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *SQLiteStore) getDB() (*sql.DB, error) {
	if s == nil || s.db == nil {
		return nil, ErrNotConfigured
	}
	return s.db, nil
}

// AppendSample writes one observation.
func (s *SQLiteStore) AppendSample(ctx context.Context, sample timeseries.Sample) error {
	db, err := s.getDB()
	if err != nil {
		return err
	}
	const query = `INSERT INTO harga_emas (waktu, harga) VALUES (?, ?)`
	if _, err := db.ExecContext(ctx, query, sample.Timestamp.UTC(), sample.Price.String()); err != nil {
		return fmt.Errorf("insert price sample: %w", err)
	}
	return nil
}

// LoadRecentSamples returns the newest rows by id, oldest first.
func (s *SQLiteStore) LoadRecentSamples(ctx context.Context, limit int) ([]timeseries.Sample, error) {
	db, err := s.getDB()
	if err != nil {
		return nil, err
	}

	const query = `SELECT waktu, harga FROM harga_emas ORDER BY id DESC LIMIT ?`
	rows, err := db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("list recent samples: %w", err)
	}
	samples, err := scanSQLiteSamples(rows)
	if err != nil {
		return nil, err
	}
	reverseSamples(samples)
	return samples, nil
}

// ListSamplesBetween lists samples within [from, to) ordered by time.
func (s *SQLiteStore) ListSamplesBetween(ctx context.Context, from, to time.Time) ([]timeseries.Sample, error) {
	db, err := s.getDB()
	if err != nil {
		return nil, err
	}

	const query = `SELECT waktu, harga FROM harga_emas WHERE waktu >= ? AND waktu < ? ORDER BY waktu, id`
	rows, err := db.QueryContext(ctx, query, from.UTC(), to.UTC())
	if err != nil {
		return nil, fmt.Errorf("list samples between: %w", err)
	}
	return scanSQLiteSamples(rows)
}

// CountSamples counts stored samples.
func (s *SQLiteStore) CountSamples(ctx context.Context) (int64, error) {
	db, err := s.getDB()
	if err != nil {
		return 0, err
	}
	var count int64
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM harga_emas`).Scan(&count); err != nil {
		return 0, fmt.Errorf("count samples: %w", err)
	}
	return count, nil
}

// InsertAlert stores a newly registered alert.
func (s *SQLiteStore) InsertAlert(ctx context.Context, alert alerting.Alert) error {
	db, err := s.getDB()
	if err != nil {
		return err
	}

	const query = `
	INSERT INTO price_alerts (id, owner, buy_threshold, sell_threshold, status, created_at)
	VALUES (?, ?, ?, ?, ?, ?)`

	_, err = db.ExecContext(ctx, query,
		alert.ID,
		alert.Owner,
		alert.BuyThreshold.String(),
		alert.SellThreshold.String(),
		string(alert.Status),
		alert.CreatedAt.UTC(),
	)
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) && sqliteErr.Code == sqlite3.ErrConstraint {
		return fmt.Errorf("insert alert %d: %w", alert.ID, ErrAlertExists)
	}
	if err != nil {
		return fmt.Errorf("insert alert %d: %w", alert.ID, err)
	}
	return nil
}

// SaveAlert upserts an alert by id.
func (s *SQLiteStore) SaveAlert(ctx context.Context, alert alerting.Alert) error {
	db, err := s.getDB()
	if err != nil {
		return err
	}

	const query = `
	INSERT INTO price_alerts (id, owner, buy_threshold, sell_threshold, status, created_at)
	VALUES (?, ?, ?, ?, ?, ?)
	ON CONFLICT (id) DO UPDATE SET
		owner = excluded.owner,
		buy_threshold = excluded.buy_threshold,
		sell_threshold = excluded.sell_threshold,
		status = excluded.status`

	_, err = db.ExecContext(ctx, query,
		alert.ID,
		alert.Owner,
		alert.BuyThreshold.String(),
		alert.SellThreshold.String(),
		string(alert.Status),
		alert.CreatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("save alert %d: %w", alert.ID, err)
	}
	return nil
}

// LoadAlerts lists all alerts by id.
func (s *SQLiteStore) LoadAlerts(ctx context.Context) ([]alerting.Alert, error) {
	db, err := s.getDB()
	if err != nil {
		return nil, err
	}

	const query = `SELECT id, owner, buy_threshold, sell_threshold, status, created_at FROM price_alerts ORDER BY id`
	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list alerts: %w", err)
	}
	defer rows.Close()

	alerts := make([]alerting.Alert, 0)
	for rows.Next() {
		var (
			alert   alerting.Alert
			buyStr  string
			sellStr string
			status  string
		)
		if err := rows.Scan(&alert.ID, &alert.Owner, &buyStr, &sellStr, &status, &alert.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan alert: %w", err)
		}
		if alert.BuyThreshold, err = decimal.NewFromString(buyStr); err != nil {
			return nil, fmt.Errorf("parse buy threshold: %w", err)
		}
		if alert.SellThreshold, err = decimal.NewFromString(sellStr); err != nil {
			return nil, fmt.Errorf("parse sell threshold: %w", err)
		}
		alert.Status = alerting.Status(status)
		alerts = append(alerts, alert)
	}
	return alerts, rows.Err()
}

// RecordTrigger audits a dispatched trigger.
func (s *SQLiteStore) RecordTrigger(ctx context.Context, event alerting.TriggerEvent, at time.Time) error {
	db, err := s.getDB()
	if err != nil {
		return err
	}

	const query = `INSERT INTO trigger_log (alert_id, kind, threshold, price, message, created_at) VALUES (?, ?, ?, ?, ?, ?)`
	_, err = db.ExecContext(ctx, query,
		event.AlertID,
		string(event.Kind),
		event.Threshold.String(),
		event.Price.String(),
		event.Message,
		at.UTC(),
	)
	if err != nil {
		return fmt.Errorf("record trigger: %w", err)
	}
	return nil
}

// ListRecentTriggers lists the newest audited triggers first.
func (s *SQLiteStore) ListRecentTriggers(ctx context.Context, limit int) ([]TriggerRecord, error) {
	db, err := s.getDB()
	if err != nil {
		return nil, err
	}

	const query = `SELECT id, alert_id, kind, threshold, price, message, created_at
	FROM trigger_log ORDER BY created_at DESC, id DESC LIMIT ?`
	rows, err := db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("list recent triggers: %w", err)
	}
	defer rows.Close()

	records := make([]TriggerRecord, 0, limit)
	for rows.Next() {
		var (
			rec          TriggerRecord
			kind         string
			thresholdStr string
			priceStr     string
		)
		if err := rows.Scan(&rec.ID, &rec.AlertID, &kind, &thresholdStr, &priceStr, &rec.Message, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan trigger: %w", err)
		}
		rec.Kind = alerting.Kind(kind)
		if rec.Threshold, err = decimal.NewFromString(thresholdStr); err != nil {
			return nil, fmt.Errorf("parse threshold: %w", err)
		}
		if rec.Price, err = decimal.NewFromString(priceStr); err != nil {
			return nil, fmt.Errorf("parse price: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

func scanSQLiteSamples(rows *sql.Rows) ([]timeseries.Sample, error) {
	defer rows.Close()

	samples := make([]timeseries.Sample, 0)
	for rows.Next() {
		var (
			ts       time.Time
			priceStr string
		)
		if err := rows.Scan(&ts, &priceStr); err != nil {
			return nil, fmt.Errorf("scan sample: %w", err)
		}
		price, err := decimal.NewFromString(priceStr)
		if err != nil {
			return nil, fmt.Errorf("parse price: %w", err)
		}
		samples = append(samples, timeseries.Sample{Timestamp: ts, Price: price})
	}
	return samples, rows.Err()
}

var (
	_ Persistence   = (*SQLiteStore)(nil)
	_ HistoryReader = (*SQLiteStore)(nil)
	_ TriggerLog    = (*SQLiteStore)(nil)
)
