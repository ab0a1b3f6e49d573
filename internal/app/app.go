package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"goldwatch/internal/alerting"
	"goldwatch/internal/api"
	"goldwatch/internal/config"
	"goldwatch/internal/fetcher"
	"goldwatch/internal/monitor"
	"goldwatch/internal/scheduler"
	"goldwatch/internal/service"
	"goldwatch/internal/storage"
)

// ErrStorageDisabled is returned by commands that need persistence when storage.driver is none.
var ErrStorageDisabled = errors.New("storage.driver is none; this command needs a database")

// App aggregates configuration and shared dependencies for the CLI commands.
type App struct {
	Config *config.Config
	Logger zerolog.Logger
	Out    io.Writer
}

// NewApp constructs a new application handle.
func NewApp(cfg *config.Config, logger zerolog.Logger) *App {
	return &App{Config: cfg, Logger: logger.With().Str("component", "app").Logger(), Out: os.Stdout}
}

func (a *App) newEngine() (*monitor.Engine, error) {
	rule, err := a.Config.Rule()
	if err != nil {
		return nil, err
	}
	return monitor.New(monitor.Options{
		Capacity: a.Config.History.Capacity,
		Rule:     rule,
		FireOnce: a.Config.Alerting.FireOnce,
	}), nil
}

func (a *App) newSource() (fetcher.PriceSource, error) {
	src := a.Config.Source
	if strings.EqualFold(src.Kind, config.SourceJSON) {
		return fetcher.NewQuote(fetcher.QuoteOptions{
			URL:         src.URL,
			Field:       src.Field,
			Timeout:     src.Timeout,
			UserAgent:   src.UserAgent,
			MinInterval: src.MinInterval,
		}, a.Logger)
	}
	return fetcher.NewScraper(fetcher.ScraperOptions{
		URL:         src.URL,
		Pattern:     src.Pattern,
		Timeout:     src.Timeout,
		UserAgent:   src.UserAgent,
		MinInterval: src.MinInterval,
	}, a.Logger)
}

// newNotifier builds the fan-out for alerting.channels. The hub is used for
// the websocket channel and may be nil when the API is off.
func (a *App) newNotifier(hub *api.Hub) alerting.Notifier {
	var notifiers alerting.MultiNotifier
	for _, channel := range a.Config.Alerting.Channels {
		switch strings.ToLower(strings.TrimSpace(channel)) {
		case "telegram":
			cfg := a.Config.Alerting.Telegram
			if !cfg.Enabled {
				a.Logger.Warn().Msg("telegram channel listed but alerting.telegram.enabled is false")
				continue
			}
			notifiers = append(notifiers, alerting.NewTelegramNotifier(cfg.BotToken, cfg.ChatID, cfg.APIBase, cfg.Timeout, a.Logger))
		case "websocket":
			if hub != nil {
				notifiers = append(notifiers, hub)
			}
		case "log":
			notifiers = append(notifiers, alerting.NewLogNotifier(a.Logger))
		case "":
		default:
			a.Logger.Warn().Str("channel", channel).Msg("unknown alert channel ignored")
		}
	}
	if len(notifiers) == 0 {
		return nil
	}
	return notifiers
}

// openStore opens the configured persistence. A nil store with a nil error means storage is off.
func (a *App) openStore(ctx context.Context) (storage.Persistence, func(), error) {
	cfg := a.Config.Storage
	switch strings.ToLower(cfg.Driver) {
	case config.DriverNone:
		return nil, nil, nil

	case config.DriverSQLite:
		store, err := storage.OpenSQLite(ctx, cfg.SQLite.Path)
		if err != nil {
			return nil, nil, err
		}
		return store, func() { _ = store.Close() }, nil

	case config.DriverPostgres:
		if cfg.Postgres.AutoMigrate {
			if err := storage.Migrate(ctx, cfg.Postgres.DSN); err != nil {
				return nil, nil, err
			}
		}
		pool, err := storage.NewPool(ctx, cfg.Postgres)
		if err != nil {
			return nil, nil, err
		}
		store := storage.NewPostgresStore(pool)
		return store, func() { _ = store.Close() }, nil

	default:
		return nil, nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
}

func (a *App) requireStore(ctx context.Context) (storage.Persistence, func(), error) {
	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return nil, nil, err
	}
	if store == nil {
		return nil, nil, ErrStorageDisabled
	}
	return store, closeStore, nil
}

// Run executes the long-running sampler and, when enabled, the HTTP API.
// With opts.Once a single tick is sampled, reported and the call returns.
func (a *App) Run(ctx context.Context, opts RunOptions) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if store == nil {
		a.Logger.Warn().Msg("storage.driver is none; persistence disabled")
	}
	if closeStore != nil {
		defer closeStore()
	}

	engine, err := a.newEngine()
	if err != nil {
		return err
	}
	source, err := a.newSource()
	if err != nil {
		return err
	}

	sched, err := scheduler.New(scheduler.Options{
		Interval:     a.Config.Sampler.Interval,
		AlignToStart: a.Config.Sampler.AlignToBucket,
		StartupDelay: a.Config.Sampler.StartupDelay,
		Immediate:    true,
	}, a.Logger)
	if err != nil {
		return err
	}

	serveAPI := a.Config.API.Enabled && !opts.NoAPI && !opts.Once

	var hub *api.Hub
	if serveAPI {
		hub = api.NewHub(a.Logger)
		defer hub.Shutdown()
	}

	sampler := service.New(a.Config, sched, engine, source, store, a.newNotifier(hub), a.Logger)
	if err := sampler.Bootstrap(ctx); err != nil {
		a.Logger.Warn().Err(err).Msg("could not restore state; starting empty")
	}

	if opts.Once {
		report, err := sampler.Tick(ctx, engine.Now())
		if err != nil {
			return err
		}
		writeReport(a.Out, report, engine.ScheduleStatus(engine.Now()).Now.Location())
		return nil
	}

	group, gctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		a.Logger.Info().Dur("interval", a.Config.Sampler.Interval).Msg("starting sampler")
		err := sampler.Run(gctx)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})

	if serveAPI {
		var triggers storage.TriggerLog
		if t, ok := store.(storage.TriggerLog); ok {
			triggers = t
		}
		router := api.NewRouter(api.Config{
			Engine:   engine,
			Alerts:   service.NewAlerts(engine, store, a.Logger),
			Triggers: triggers,
			Hub:      hub,
			Logger:   a.Logger,
		})
		server := api.NewServer(a.Config.API.Listen, a.Config.API.ShutdownTimeout, router, a.Logger)
		group.Go(func() error { return server.Run(gctx) })
	}

	if err := group.Wait(); err != nil {
		a.Logger.Error().Err(err).Msg("service terminated with error")
		return err
	}

	a.Logger.Info().Msg("goldwatch stopped")
	return nil
}

// RunOptions adjust the run command.
type RunOptions struct {
	NoAPI bool
	Once  bool
}

// ExportOptions hold parameters for exporting historical samples.
type ExportOptions struct {
	From      *time.Time
	To        *time.Time
	PNGPath   string
	CSVPath   string
	MaxPoints int
}

// ShowOptions configure the show command.
type ShowOptions struct {
	Limit int
	Stats bool
}

// ImportOptions configure a history backfill from a CSV download.
type ImportOptions struct {
	CSVPath string
	DryRun  bool
}
