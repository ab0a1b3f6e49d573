package app

import (
	"bytes"
	"context"
	"encoding/csv"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"goldwatch/internal/config"
	"goldwatch/internal/timeseries"
)

func testApp(t *testing.T, driver string) (*App, *bytes.Buffer) {
	t.Helper()
	dir := t.TempDir()
	cfg := &config.Config{
		Schedule: config.ScheduleConfig{
			Timezone:      "Asia/Jakarta",
			ClosedDays:    []string{"saturday", "sunday"},
			ReopenWeekday: "monday",
		},
		History:  config.HistoryConfig{Capacity: 100},
		Sampler:  config.SamplerConfig{Interval: time.Minute},
		Alerting: config.AlertingConfig{Enabled: true, Channels: []string{"log"}},
		Storage: config.StorageConfig{
			Driver: driver,
			SQLite: config.SQLiteConfig{Path: filepath.Join(dir, "riwayat_emas.db")},
		},
		Export: config.ExportConfig{MaxDataPoints: 1000},
	}
	require.NoError(t, cfg.Validate())

	out := &bytes.Buffer{}
	a := NewApp(cfg, zerolog.Nop())
	a.Out = out
	return a, out
}

func writeImportFile(t *testing.T, rows ...string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "data_emas.csv")
	body := "waktu,harga\n" + strings.Join(rows, "\n") + "\n"
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestAlertCommandsRoundTrip(t *testing.T) {
	ctx := context.Background()
	a, out := testApp(t, config.DriverSQLite)

	require.NoError(t, a.AddAlert(ctx, "budi", decimal.NewFromInt(3_000_000), decimal.NewFromInt(3_200_000)))
	assert.Contains(t, out.String(), "alert 1 created for budi")

	out.Reset()
	require.NoError(t, a.AddAlert(ctx, "sari", decimal.NewFromInt(2_900_000), decimal.NewFromInt(3_100_000)))
	assert.Contains(t, out.String(), "alert 2 created", "ids continue across processes")

	out.Reset()
	require.NoError(t, a.ListAlerts(ctx))
	assert.Contains(t, out.String(), "Rp3.000.000")
	assert.Contains(t, out.String(), "ACTIVE")

	out.Reset()
	require.NoError(t, a.CheckAlerts(ctx, decimal.NewFromInt(2_990_000)))
	assert.Contains(t, out.String(), "budi: target BELI Rp3.000.000 tercapai (harga sekarang Rp2.990.000)")

	out.Reset()
	require.NoError(t, a.CheckAlerts(ctx, decimal.NewFromInt(3_050_000)))
	assert.Contains(t, out.String(), "no alert triggered")
}

func TestSimulateAlertUsesPersistedAlerts(t *testing.T) {
	ctx := context.Background()
	a, out := testApp(t, config.DriverSQLite)
	require.NoError(t, a.AddAlert(ctx, "dewi", decimal.NewFromInt(3_000_000), decimal.NewFromInt(3_200_000)))

	out.Reset()
	require.NoError(t, a.SimulateAlert(ctx, decimal.NewFromInt(3_210_000)))
	assert.Contains(t, out.String(), "[JUAL] dewi: target JUAL Rp3.200.000 tercapai")

	require.NoError(t, a.Show(ctx, ShowOptions{Limit: 10}))
	assert.Contains(t, out.String(), "no samples found", "simulation writes nothing back")
}

func TestImportShowAndExport(t *testing.T) {
	ctx := context.Background()
	a, out := testApp(t, config.DriverSQLite)

	path := writeImportFile(t,
		"2026-10-20 09:02:00,2.952.000",
		"2026-10-20 09:00:00,2950000",
		"not-a-time,1",
		"2026-10-20 09:01:00,2951000.00",
	)
	require.NoError(t, a.Import(ctx, ImportOptions{CSVPath: path}))
	assert.Contains(t, out.String(), "3 samples imported, 0 already present, 1 rows skipped")

	out.Reset()
	require.NoError(t, a.Import(ctx, ImportOptions{CSVPath: path}))
	assert.Contains(t, out.String(), "0 samples imported, 3 already present")

	out.Reset()
	require.NoError(t, a.Show(ctx, ShowOptions{Limit: 10}))
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 4)
	assert.Contains(t, lines[1], "2026-10-20 09:02:00")
	assert.Contains(t, lines[1], "+Rp1.000")
	assert.Contains(t, lines[3], "Rp2.950.000")

	csvPath := filepath.Join(t.TempDir(), "out", "harga.csv")
	pngPath := filepath.Join(t.TempDir(), "out", "harga.png")
	from := time.Date(2026, 10, 20, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, 10, 21, 0, 0, 0, 0, time.UTC)
	require.NoError(t, a.Export(ctx, ExportOptions{From: &from, To: &to, CSVPath: csvPath, PNGPath: pngPath}))

	file, err := os.Open(csvPath)
	require.NoError(t, err)
	defer file.Close()
	records, err := csv.NewReader(file).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 4)
	assert.Equal(t, []string{"waktu", "harga"}, records[0])
	assert.Equal(t, []string{"2026-10-20 09:00:00", "2950000"}, records[1])

	info, err := os.Stat(pngPath)
	require.NoError(t, err)
	assert.Positive(t, info.Size())
}

func TestStatusWithoutData(t *testing.T) {
	a, out := testApp(t, config.DriverSQLite)
	require.NoError(t, a.Status(context.Background()))
	assert.Contains(t, out.String(), "Harga")
	assert.Contains(t, out.String(), "-")
}

func TestCommandsNeedStorage(t *testing.T) {
	ctx := context.Background()
	a, _ := testApp(t, config.DriverNone)

	assert.ErrorIs(t, a.Show(ctx, ShowOptions{}), ErrStorageDisabled)
	assert.ErrorIs(t, a.ListAlerts(ctx), ErrStorageDisabled)
	assert.ErrorIs(t, a.TriggerLog(ctx, 5), ErrStorageDisabled)
	assert.NoError(t, a.Status(ctx))
}

func TestTriggerLogEmpty(t *testing.T) {
	a, out := testApp(t, config.DriverSQLite)
	require.NoError(t, a.TriggerLog(context.Background(), 5))
	assert.Contains(t, out.String(), "no triggers recorded")
}

func TestDownsampleSamples(t *testing.T) {
	samples := make([]timeseries.Sample, 10)
	for i := range samples {
		samples[i] = timeseries.Sample{Price: decimal.NewFromInt(int64(i))}
	}

	got := downsampleSamples(samples, 4)
	require.Len(t, got, 4)
	assert.True(t, got[0].Price.Equal(decimal.NewFromInt(0)))
	assert.True(t, got[3].Price.Equal(decimal.NewFromInt(9)))

	assert.Len(t, downsampleSamples(samples, 20), 10)
	assert.Len(t, downsampleSamples(samples, 1), 1)
}

func TestParsePrice(t *testing.T) {
	v, err := parsePrice("2.950.000")
	require.NoError(t, err)
	assert.True(t, v.Equal(decimal.NewFromInt(2_950_000)))

	v, err = parsePrice("2950000.50")
	require.NoError(t, err)
	assert.Equal(t, "2950000.5", v.String())

	v, err = parsePrice("2.950")
	require.NoError(t, err)
	assert.True(t, v.Equal(decimal.NewFromInt(2_950)), "one dot and three digits is Rupiah grouping")
}

func TestRunOnceSamplesJSONSource(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data":{"harga":"2.990.000"}}`))
	}))
	defer srv.Close()

	ctx := context.Background()
	a, out := testApp(t, config.DriverSQLite)
	a.Config.Source = config.SourceConfig{Kind: config.SourceJSON, URL: srv.URL, Field: "data.harga", Timeout: time.Second}
	require.NoError(t, a.AddAlert(ctx, "budi", decimal.NewFromInt(3_000_000), decimal.NewFromInt(3_200_000)))

	out.Reset()
	require.NoError(t, a.Run(ctx, RunOptions{Once: true}))
	assert.Contains(t, out.String(), "Rp2.990.000")
	assert.Contains(t, out.String(), "[BELI] budi: target BELI Rp3.000.000 tercapai")
	assert.Contains(t, out.String(), "1 of 1 triggers dispatched")

	out.Reset()
	require.NoError(t, a.Show(ctx, ShowOptions{Limit: 5, Stats: true}))
	assert.Contains(t, out.String(), "Rp2.990.000")
	assert.Contains(t, out.String(), "(1 data)")

	out.Reset()
	require.NoError(t, a.TriggerLog(ctx, 5))
	assert.Contains(t, out.String(), "budi")
}

func TestParseTimeUsesScheduleZone(t *testing.T) {
	a, _ := testApp(t, config.DriverNone)

	got, err := a.ParseTime("2026-10-20")
	require.NoError(t, err)
	assert.Equal(t, "2026-10-19T17:00:00Z", got.UTC().Format(time.RFC3339))

	got, err = a.ParseTime("2026-10-20T10:00:00Z")
	require.NoError(t, err)
	assert.Equal(t, 10, got.UTC().Hour())

	_, err = a.ParseTime("kemarin")
	assert.Error(t, err)
}
