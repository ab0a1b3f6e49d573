package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"goldwatch/internal/alerting"
	"goldwatch/internal/fetcher"
	"goldwatch/internal/service"
)

// SimulateAlert pushes one fixed price through the sampling pipeline and the
// configured channels. Persisted alerts are read but nothing is written back.
func (a *App) SimulateAlert(ctx context.Context, price decimal.Decimal) error {
	if !a.Config.Alerting.Enabled {
		return errors.New("alerting is disabled")
	}
	if !price.IsPositive() {
		return fmt.Errorf("price must be positive, got %s", price.String())
	}

	engine, err := a.newEngine()
	if err != nil {
		return err
	}

	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if closeStore != nil {
		defer closeStore()
	}
	if err := service.NewAlerts(engine, store, a.Logger).Refresh(ctx); err != nil {
		return err
	}

	notifier := a.newNotifier(nil)
	if notifier == nil {
		notifier = alerting.NewLogNotifier(a.Logger)
	}

	cfg := *a.Config
	cfg.Sampler.SkipWhenClosed = false
	cfg.Alerting.Cooldown = 0

	svc := service.New(&cfg, nil, engine, fetcher.Static{Value: price}, nil, notifier, a.Logger)
	report, err := svc.Tick(ctx, engine.Now())
	if err != nil {
		return err
	}

	writeTriggers(a, price, report.Triggers)
	return nil
}
