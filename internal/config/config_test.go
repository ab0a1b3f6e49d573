package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, "app:\n  name: goldwatch\n"))
	require.NoError(t, err)

	assert.Equal(t, 100, cfg.History.Capacity)
	assert.Equal(t, time.Minute, cfg.Sampler.Interval)
	assert.True(t, cfg.Sampler.SkipWhenClosed)
	assert.Equal(t, "https://www.hargaemas.com/", cfg.Source.URL)
	assert.Equal(t, 5*time.Second, cfg.Source.Timeout)
	assert.Equal(t, SourceScrape, cfg.Source.Kind)
	assert.Equal(t, DriverSQLite, cfg.Storage.Driver)
	assert.Equal(t, "riwayat_emas.db", cfg.Storage.SQLite.Path)
	assert.Equal(t, ":8000", cfg.API.Listen)
	assert.False(t, cfg.Alerting.FireOnce)

	rule, err := cfg.Rule()
	require.NoError(t, err)
	assert.Equal(t, []time.Weekday{time.Saturday, time.Sunday}, rule.ClosedDays)
	assert.Equal(t, time.Monday, rule.ReopenWeekday)
	assert.Equal(t, "Asia/Jakarta", rule.Location.String())
}

func TestLoadFromFileAndEnv(t *testing.T) {
	path := writeConfig(t, `
history:
  capacity: 50
schedule:
  closed_days: [jumat]
  reopen_weekday: sabtu
  reopen_hour: 6
alerting:
  fire_once: true
  cooldown: 5m
storage:
  driver: none
`)
	t.Setenv("GOLDWATCH_SAMPLER_INTERVAL", "30s")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 50, cfg.History.Capacity)
	assert.Equal(t, 30*time.Second, cfg.Sampler.Interval)
	assert.True(t, cfg.Alerting.FireOnce)
	assert.Equal(t, 5*time.Minute, cfg.Alerting.Cooldown)

	rule, err := cfg.Rule()
	require.NoError(t, err)
	assert.Equal(t, []time.Weekday{time.Friday}, rule.ClosedDays)
	assert.Equal(t, time.Saturday, rule.ReopenWeekday)
	assert.Equal(t, 6, rule.ReopenHour)
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := map[string]string{
		"capacity":  "history:\n  capacity: 0\n",
		"weekday":   "schedule:\n  closed_days: [someday]\n",
		"timezone":  "schedule:\n  timezone: Mars/Olympus\n",
		"driver":    "storage:\n  driver: mongo\n",
		"postgres":  "storage:\n  driver: postgres\n",
		"pattern":   "source:\n  pattern: \"(\"\n",
		"telegram":  "alerting:\n  telegram:\n    enabled: true\n",
		"interval":  "sampler:\n  interval: 0s\n",
		"reopen_hr": "schedule:\n  reopen_hour: 24\n",
		"kind":      "source:\n  kind: rss\n",
		"json":      "source:\n  kind: json\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeConfig(t, body))
			assert.Error(t, err)
		})
	}
}

func TestResolveMaxPoints(t *testing.T) {
	cfg := &Config{Export: ExportConfig{MaxDataPoints: 500}}
	assert.Equal(t, 500, cfg.ResolveMaxPoints(0))
	assert.Equal(t, 20, cfg.ResolveMaxPoints(20))
}
