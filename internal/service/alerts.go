package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"goldwatch/internal/alerting"
	"goldwatch/internal/monitor"
	"goldwatch/internal/storage"
)

// Alerts registers and inspects alerts with write-through persistence.
type Alerts struct {
	engine *monitor.Engine
	store  storage.Persistence
	logger zerolog.Logger
}

// NewAlerts wires the alert book; store may be nil.
func NewAlerts(engine *monitor.Engine, store storage.Persistence, logger zerolog.Logger) *Alerts {
	return &Alerts{
		engine: engine,
		store:  store,
		logger: logger.With().Str("component", "alerts").Logger(),
	}
}

// ErrOwnerRequired is returned when an alert is registered without a name.
var ErrOwnerRequired = errors.New("alert owner must not be empty")

// insertAttempts bounds retries when another process claims the same id.
const insertAttempts = 5

// Add registers an alert and saves it. Persisted alerts are merged first so
// the new id lands past every id already stored; if another writer takes the
// id in between, the alert is dropped and registered again on a fresh id.
// An alert that could not be saved is not kept in the engine.
func (a *Alerts) Add(ctx context.Context, owner string, buy, sell decimal.Decimal) (alerting.Alert, error) {
	owner = strings.TrimSpace(owner)
	if owner == "" {
		return alerting.Alert{}, ErrOwnerRequired
	}

	for attempt := 1; ; attempt++ {
		if err := a.Refresh(ctx); err != nil {
			return alerting.Alert{}, err
		}

		id, err := a.engine.RegisterAlert(owner, buy, sell)
		if err != nil {
			return alerting.Alert{}, err
		}
		alert, _ := a.engine.Alert(id)

		if a.store != nil {
			err := a.store.InsertAlert(ctx, alert)
			if err != nil {
				a.engine.RemoveAlert(id)
			}
			if errors.Is(err, storage.ErrAlertExists) && attempt < insertAttempts {
				a.logger.Debug().Int64("alert_id", id).Msg("alert id taken by another writer; retrying")
				continue
			}
			if err != nil {
				return alerting.Alert{}, fmt.Errorf("persist alert %d: %w", id, err)
			}
		}

		a.logger.Info().Int64("alert_id", id).Str("owner", alert.Owner).
			Str("buy", buy.String()).Str("sell", sell.String()).Msg("alert registered")
		return alert, nil
	}
}

// List returns every alert in creation order.
func (a *Alerts) List(ctx context.Context) ([]alerting.Alert, error) {
	if err := a.Refresh(ctx); err != nil {
		return nil, err
	}
	return a.engine.ListAlerts(), nil
}

// Check previews alerts against price; nothing is dispatched or advanced.
func (a *Alerts) Check(ctx context.Context, price decimal.Decimal) ([]alerting.TriggerEvent, error) {
	if err := a.Refresh(ctx); err != nil {
		return nil, err
	}
	return a.engine.PreviewAlerts(price), nil
}

// Refresh merges persisted alerts into the engine.
func (a *Alerts) Refresh(ctx context.Context) error {
	if a.store == nil {
		return nil
	}
	alerts, err := a.store.LoadAlerts(ctx)
	if err != nil {
		return fmt.Errorf("load alerts: %w", err)
	}
	a.engine.RestoreAlerts(alerts)
	return nil
}
