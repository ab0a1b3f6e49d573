package app

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/shopspring/decimal"

	"goldwatch/internal/alerting"
	"goldwatch/internal/service"
	"goldwatch/internal/storage"
)

// AddAlert registers and persists a new alert.
func (a *App) AddAlert(ctx context.Context, owner string, buy, sell decimal.Decimal) error {
	book, closeStore, err := a.alertBook(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	alert, err := book.Add(ctx, owner, buy, sell)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.Out, "alert %d created for %s: beli <= %s, jual >= %s\n",
		alert.ID, alert.Owner, alerting.FormatRupiah(alert.BuyThreshold), alerting.FormatRupiah(alert.SellThreshold))
	return nil
}

// ListAlerts prints every persisted alert.
func (a *App) ListAlerts(ctx context.Context) error {
	book, closeStore, err := a.alertBook(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	alerts, err := book.List(ctx)
	if err != nil {
		return err
	}
	if len(alerts) == 0 {
		fmt.Fprintln(a.Out, "no alerts registered")
		return nil
	}

	loc, err := a.location()
	if err != nil {
		return err
	}

	writer := tabwriter.NewWriter(a.Out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "ID\tOwner\tBeli\tJual\tStatus\tDibuat")
	for _, alert := range alerts {
		fmt.Fprintf(writer, "%d\t%s\t%s\t%s\t%s\t%s\n",
			alert.ID,
			alert.Owner,
			alerting.FormatRupiah(alert.BuyThreshold),
			alerting.FormatRupiah(alert.SellThreshold),
			alert.Status,
			alert.CreatedAt.In(loc).Format(displayTimeLayout),
		)
	}
	return writer.Flush()
}

// CheckAlerts previews which alerts a price would trigger.
func (a *App) CheckAlerts(ctx context.Context, price decimal.Decimal) error {
	book, closeStore, err := a.alertBook(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	events, err := book.Check(ctx, price)
	if err != nil {
		return err
	}
	writeTriggers(a, price, events)
	return nil
}

// TriggerLog prints the most recent dispatched triggers.
func (a *App) TriggerLog(ctx context.Context, limit int) error {
	store, closeStore, err := a.requireStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	log, ok := store.(storage.TriggerLog)
	if !ok {
		return fmt.Errorf("storage driver %q keeps no trigger log", a.Config.Storage.Driver)
	}
	if limit <= 0 {
		limit = 20
	}

	records, err := log.ListRecentTriggers(ctx, limit)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		fmt.Fprintln(a.Out, "no triggers recorded")
		return nil
	}

	loc, err := a.location()
	if err != nil {
		return err
	}

	writer := tabwriter.NewWriter(a.Out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "Waktu\tAlert\tTipe\tPesan")
	for _, rec := range records {
		fmt.Fprintf(writer, "%s\t%d\t%s\t%s\n", rec.CreatedAt.In(loc).Format(displayTimeLayout), rec.AlertID, rec.Kind, rec.Message)
	}
	return writer.Flush()
}

func (a *App) alertBook(ctx context.Context) (*service.Alerts, func(), error) {
	engine, err := a.newEngine()
	if err != nil {
		return nil, nil, err
	}
	store, closeStore, err := a.requireStore(ctx)
	if err != nil {
		return nil, nil, err
	}
	return service.NewAlerts(engine, store, a.Logger), closeStore, nil
}

func writeTriggers(a *App, price decimal.Decimal, events []alerting.TriggerEvent) {
	if len(events) == 0 {
		fmt.Fprintf(a.Out, "no alert triggered at %s\n", alerting.FormatRupiah(price))
		return
	}
	for _, ev := range events {
		fmt.Fprintf(a.Out, "[%s] %s\n", ev.Kind, ev.Message)
	}
}
