package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"goldwatch/internal/alerting"
	"goldwatch/internal/timeseries"
)

// uniqueViolation is the SQLSTATE for a duplicate key.
const uniqueViolation = "23505"

const (
	insertSamplePGSQL = `INSERT INTO price_samples (sampled_at, price) VALUES ($1, $2);`

	listRecentSamplesPGSQL = `SELECT sampled_at, price::text
    FROM price_samples
    ORDER BY id DESC
    LIMIT $1;`

	listSamplesBetweenPGSQL = `SELECT sampled_at, price::text
    FROM price_samples
    WHERE sampled_at >= $1
      AND sampled_at < $2
    ORDER BY sampled_at, id;`

	countSamplesPGSQL = `SELECT COUNT(*) FROM price_samples;`

	insertAlertPGSQL = `INSERT INTO price_alerts (id, owner, buy_threshold, sell_threshold, status, created_at)
    VALUES ($1,$2,$3,$4,$5,$6);`

	upsertAlertPGSQL = `INSERT INTO price_alerts (
        id,
        owner,
        buy_threshold,
        sell_threshold,
        status,
        created_at
    ) VALUES (
        $1,$2,$3,$4,$5,$6
    )
    ON CONFLICT (id) DO UPDATE
    SET owner          = EXCLUDED.owner,
        buy_threshold  = EXCLUDED.buy_threshold,
        sell_threshold = EXCLUDED.sell_threshold,
        status         = EXCLUDED.status;`

	listAlertsPGSQL = `SELECT id, owner, buy_threshold::text, sell_threshold::text, status, created_at
    FROM price_alerts
    ORDER BY id;`

	insertTriggerPGSQL = `INSERT INTO trigger_log (alert_id, kind, threshold, price, message, created_at)
    VALUES ($1,$2,$3,$4,$5,$6);`

	listRecentTriggersPGSQL = `SELECT id, alert_id, kind, threshold::text, price::text, message, created_at
    FROM trigger_log
    ORDER BY created_at DESC, id DESC
    LIMIT $1;`

	tryAdvisoryLockSQL = `SELECT pg_try_advisory_lock($1);`
	advisoryUnlockSQL  = `SELECT pg_advisory_unlock($1);`
)

// PostgresStore persists samples, alerts and trigger audits in PostgreSQL.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore wires a pgx pool into a store.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Close releases the underlying pool resources.
func (s *PostgresStore) Close() error {
	if s == nil || s.pool == nil {
		return nil
	}
	s.pool.Close()
	return nil
}

func (s *PostgresStore) getPool() (*pgxpool.Pool, error) {
	if s == nil || s.pool == nil {
		return nil, ErrNotConfigured
	}
	return s.pool, nil
}

// TryAdvisoryLock attempts to acquire a postgres advisory lock and returns a release func.
func (s *PostgresStore) TryAdvisoryLock(ctx context.Context, key int64) (func(), bool, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, false, err
	}

	conn, err := pool.Acquire(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("acquire connection: %w", err)
	}

	var acquired bool
	if err := conn.QueryRow(ctx, tryAdvisoryLockSQL, key).Scan(&acquired); err != nil {
		conn.Release()
		return nil, false, fmt.Errorf("try advisory lock: %w", err)
	}
	if !acquired {
		conn.Release()
		return nil, false, nil
	}

	unlock := func() {
		ctxUnlock, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_, _ = conn.Exec(ctxUnlock, advisoryUnlockSQL, key)
		conn.Release()
	}
	return unlock, true, nil
}

// AppendSample writes one observation.
func (s *PostgresStore) AppendSample(ctx context.Context, sample timeseries.Sample) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}
	if _, err := pool.Exec(ctx, insertSamplePGSQL, sample.Timestamp.UTC(), sample.Price.String()); err != nil {
		return fmt.Errorf("insert price sample: %w", err)
	}
	return nil
}

// LoadRecentSamples returns the newest samples by arrival, oldest first.
func (s *PostgresStore) LoadRecentSamples(ctx context.Context, limit int) ([]timeseries.Sample, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, err := pool.Query(ctx, listRecentSamplesPGSQL, limit)
	if err != nil {
		return nil, fmt.Errorf("list recent samples: %w", err)
	}
	samples, err := collectSamples(rows)
	if err != nil {
		return nil, err
	}
	reverseSamples(samples)
	return samples, nil
}

// ListSamplesBetween lists samples within [from, to).
func (s *PostgresStore) ListSamplesBetween(ctx context.Context, from, to time.Time) ([]timeseries.Sample, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, err := pool.Query(ctx, listSamplesBetweenPGSQL, from.UTC(), to.UTC())
	if err != nil {
		return nil, fmt.Errorf("list samples between: %w", err)
	}
	return collectSamples(rows)
}

// CountSamples counts stored samples.
func (s *PostgresStore) CountSamples(ctx context.Context) (int64, error) {
	pool, err := s.getPool()
	if err != nil {
		return 0, err
	}
	var count int64
	if err := pool.QueryRow(ctx, countSamplesPGSQL).Scan(&count); err != nil {
		return 0, fmt.Errorf("count samples: %w", err)
	}
	return count, nil
}

// InsertAlert stores a newly registered alert.
func (s *PostgresStore) InsertAlert(ctx context.Context, alert alerting.Alert) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}
	_, err = pool.Exec(ctx, insertAlertPGSQL,
		alert.ID,
		alert.Owner,
		alert.BuyThreshold.String(),
		alert.SellThreshold.String(),
		string(alert.Status),
		alert.CreatedAt.UTC(),
	)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return fmt.Errorf("insert alert %d: %w", alert.ID, ErrAlertExists)
	}
	if err != nil {
		return fmt.Errorf("insert alert %d: %w", alert.ID, err)
	}
	return nil
}

// SaveAlert upserts an alert by id.
func (s *PostgresStore) SaveAlert(ctx context.Context, alert alerting.Alert) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}
	_, err = pool.Exec(ctx, upsertAlertPGSQL,
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
func (s *PostgresStore) LoadAlerts(ctx context.Context) ([]alerting.Alert, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, err := pool.Query(ctx, listAlertsPGSQL)
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
			return nil, err
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
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return alerts, nil
}

// RecordTrigger audits a dispatched trigger.
func (s *PostgresStore) RecordTrigger(ctx context.Context, event alerting.TriggerEvent, at time.Time) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}
	_, err = pool.Exec(ctx, insertTriggerPGSQL,
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
func (s *PostgresStore) ListRecentTriggers(ctx context.Context, limit int) ([]TriggerRecord, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, err := pool.Query(ctx, listRecentTriggersPGSQL, limit)
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
			return nil, err
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
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return records, nil
}

func collectSamples(rows pgx.Rows) ([]timeseries.Sample, error) {
	defer rows.Close()

	samples := make([]timeseries.Sample, 0)
	for rows.Next() {
		var (
			ts       time.Time
			priceStr string
		)
		if err := rows.Scan(&ts, &priceStr); err != nil {
			return nil, err
		}
		price, err := decimal.NewFromString(priceStr)
		if err != nil {
			return nil, fmt.Errorf("parse price: %w", err)
		}
		samples = append(samples, timeseries.Sample{Timestamp: ts, Price: price})
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return samples, nil
}

var (
	_ Persistence    = (*PostgresStore)(nil)
	_ HistoryReader  = (*PostgresStore)(nil)
	_ TriggerLog     = (*PostgresStore)(nil)
	_ AdvisoryLocker = (*PostgresStore)(nil)
)
