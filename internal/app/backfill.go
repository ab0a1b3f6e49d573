package app

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"goldwatch/internal/fetcher"
	"goldwatch/internal/timeseries"
)

var importLayouts = []string{displayTimeLayout, time.RFC3339, "2006-01-02T15:04:05", "2006-01-02 15:04", "2006-01-02"}

// Import backfills history from a waktu,harga CSV such as the dashboard download.
// Rows at or before the newest stored sample are skipped so re-imports are harmless.
func (a *App) Import(ctx context.Context, opts ImportOptions) error {
	if opts.CSVPath == "" {
		return errors.New("--csv is required")
	}

	loc, err := a.location()
	if err != nil {
		return err
	}

	file, err := os.Open(opts.CSVPath)
	if err != nil {
		return fmt.Errorf("open import file: %w", err)
	}
	defer file.Close()

	samples, failed, err := readSamplesCSV(file, loc)
	if err != nil {
		return err
	}
	if failed > 0 {
		a.Logger.Warn().Int("rows", failed).Msg("skipped unparseable rows")
	}

	if opts.DryRun {
		a.Logger.Warn().Msg("import dry-run: nothing will be written")
		fmt.Fprintf(a.Out, "%d samples parsed, %d rows skipped\n", len(samples), failed)
		return nil
	}

	store, closeStore, err := a.requireStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	var newest time.Time
	if latest, err := store.LoadRecentSamples(ctx, 1); err != nil {
		return err
	} else if len(latest) == 1 {
		newest = latest[0].Timestamp
	}

	imported, skipped := 0, 0
	for _, sample := range samples {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if !newest.IsZero() && !sample.Timestamp.After(newest) {
			skipped++
			continue
		}
		if err := store.AppendSample(ctx, sample); err != nil {
			return fmt.Errorf("import sample at %s: %w", sample.Timestamp.Format(time.RFC3339), err)
		}
		imported++
	}

	a.Logger.Info().Int("imported", imported).Int("skipped", skipped).Int("failed", failed).Msg("import finished")
	fmt.Fprintf(a.Out, "%d samples imported, %d already present, %d rows skipped\n", imported, skipped, failed)
	return nil
}

// readSamplesCSV parses rows in file order and returns them sorted by time.
func readSamplesCSV(r io.Reader, loc *time.Location) ([]timeseries.Sample, int, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	var (
		samples []timeseries.Sample
		failed  int
		line    int
	)
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, 0, fmt.Errorf("read csv: %w", err)
		}
		line++
		if len(record) < 2 {
			failed++
			continue
		}
		if line == 1 && strings.EqualFold(strings.TrimSpace(record[0]), csvHeader[0]) {
			continue
		}

		ts, err := parseTimestamp(record[0], loc)
		if err != nil {
			failed++
			continue
		}
		price, err := parsePrice(record[1])
		if err != nil || !price.IsPositive() {
			failed++
			continue
		}
		samples = append(samples, timeseries.Sample{Timestamp: ts, Price: price})
	}

	sort.SliceStable(samples, func(i, j int) bool { return samples[i].Timestamp.Before(samples[j].Timestamp) })
	return samples, failed, nil
}

// ParseTime reads a command-line timestamp. Values without an offset are taken
// in the schedule's timezone.
func (a *App) ParseTime(raw string) (time.Time, error) {
	loc, err := a.location()
	if err != nil {
		return time.Time{}, err
	}
	return parseTimestamp(raw, loc)
}

func parseTimestamp(raw string, loc *time.Location) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	for _, layout := range importLayouts {
		if ts, err := time.ParseInLocation(layout, raw, loc); err == nil {
			return ts, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised timestamp %q", raw)
}

// parsePrice accepts plain decimals (2950000.00) and Rupiah grouping
// (2.950.000, 2.950).
func parsePrice(raw string) (decimal.Decimal, error) {
	return fetcher.ParseAmount(raw)
}
