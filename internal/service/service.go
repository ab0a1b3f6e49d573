package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"goldwatch/internal/alerting"
	"goldwatch/internal/config"
	"goldwatch/internal/fetcher"
	"goldwatch/internal/metrics"
	"goldwatch/internal/monitor"
	"goldwatch/internal/scheduler"
	"goldwatch/internal/storage"
	"goldwatch/internal/timeseries"
)

// Skip reasons reported by a tick.
const (
	SkipClosed   = "closed"
	SkipLocked   = "locked"
	SkipNoSignal = "no_signal"
)

// Report describes what a single tick did.
type Report struct {
	Bucket     time.Time
	Skipped    string
	Reason     string
	Sample     *timeseries.Sample
	Delta      monitor.Delta
	Triggers   []alerting.TriggerEvent
	Dispatched int
}

type cooldownKey struct {
	alertID int64
	kind    alerting.Kind
}

// Sampler orchestrates fetching, ingesting, persistence and alerting.
type Sampler struct {
	scheduler *scheduler.Scheduler
	engine    *monitor.Engine
	source    fetcher.PriceSource
	store     storage.Persistence
	triggers  storage.TriggerLog
	notifier  alerting.Notifier
	logger    zerolog.Logger

	skipWhenClosed bool
	alertsOn       bool
	cooldown       time.Duration
	channels       []string
	locker         storage.AdvisoryLocker
	lockKey        int64

	mu       sync.Mutex
	lastSent map[cooldownKey]time.Time
	// alert ids whose fire-once status still has to reach the store
	pending map[int64]struct{}
}

// New constructs the sampling service. store and notifier may be nil.
func New(cfg *config.Config, sched *scheduler.Scheduler, engine *monitor.Engine, source fetcher.PriceSource, store storage.Persistence, notifier alerting.Notifier, logger zerolog.Logger) *Sampler {
	var (
		locker   storage.AdvisoryLocker
		triggers storage.TriggerLog
	)
	if l, ok := store.(storage.AdvisoryLocker); ok {
		locker = l
	}
	if t, ok := store.(storage.TriggerLog); ok {
		triggers = t
	}

	return &Sampler{
		scheduler:      sched,
		engine:         engine,
		source:         source,
		store:          store,
		triggers:       triggers,
		notifier:       notifier,
		logger:         logger.With().Str("component", "sampler").Logger(),
		skipWhenClosed: cfg.Sampler.SkipWhenClosed,
		alertsOn:       cfg.Alerting.Enabled,
		cooldown:       cfg.Alerting.Cooldown,
		channels:       cfg.Alerting.Channels,
		locker:         locker,
		lockKey:        cfg.Sampler.AdvisoryLockKey,
		lastSent:       make(map[cooldownKey]time.Time),
		pending:        make(map[int64]struct{}),
	}
}

// Bootstrap seeds the engine from persistence: the newest window of samples and every alert.
func (s *Sampler) Bootstrap(ctx context.Context) error {
	if s.store == nil {
		return nil
	}

	samples, err := s.store.LoadRecentSamples(ctx, s.engine.Capacity())
	if err != nil {
		return fmt.Errorf("load recent samples: %w", err)
	}
	restored := s.engine.RestoreHistory(samples)

	alerts, err := s.store.LoadAlerts(ctx)
	if err != nil {
		return fmt.Errorf("load alerts: %w", err)
	}
	s.engine.RestoreAlerts(alerts)

	s.logger.Info().Int("samples", restored).Int("alerts", len(alerts)).Msg("state restored from storage")
	return nil
}

// Run begins the sampling loop.
func (s *Sampler) Run(ctx context.Context) error {
	if s.scheduler == nil {
		return fmt.Errorf("scheduler not configured")
	}
	return s.scheduler.Run(ctx, s.ProcessBucket)
}

// ProcessBucket executes one scheduled tick.
func (s *Sampler) ProcessBucket(ctx context.Context, bucket time.Time) error {
	_, err := s.Tick(ctx, bucket)
	return err
}

// Tick runs the sampling pipeline once and reports the outcome.
func (s *Sampler) Tick(ctx context.Context, bucket time.Time) (Report, error) {
	report := Report{Bucket: bucket}

	if s.skipWhenClosed {
		if open, message := s.engine.IsOperational(s.engine.Now()); !open {
			metrics.TicksSkipped.WithLabelValues(SkipClosed).Inc()
			s.logger.Debug().Time("bucket", bucket).Str("message", message).Msg("skip tick outside operating days")
			report.Skipped, report.Reason = SkipClosed, message
			return report, nil
		}
	}

	unlock, proceed, err := s.acquireLock(ctx)
	if err != nil {
		return report, err
	}
	if !proceed {
		metrics.TicksSkipped.WithLabelValues(SkipLocked).Inc()
		s.logger.Debug().Time("bucket", bucket).Msg("skip bucket because advisory lock held elsewhere")
		report.Skipped = SkipLocked
		return report, nil
	}
	if unlock != nil {
		defer unlock()
	}

	return s.executeBucket(ctx, report)
}

func (s *Sampler) executeBucket(ctx context.Context, report Report) (Report, error) {
	reading, err := s.source.Fetch(ctx)
	if err != nil {
		return report, fmt.Errorf("fetch price: %w", err)
	}
	if !reading.Signal {
		metrics.NoSignal.Inc()
		s.logger.Warn().Time("bucket", report.Bucket).Str("reason", reading.Reason).Msg("no price signal this tick")
		report.Skipped, report.Reason = SkipNoSignal, reading.Reason
		return report, nil
	}

	sample, delta, err := s.engine.IngestPrice(reading.Price)
	if err != nil {
		metrics.IngestErrors.WithLabelValues("engine").Inc()
		return report, fmt.Errorf("ingest price: %w", err)
	}
	report.Sample, report.Delta = &sample, delta
	metrics.SamplesIngested.Inc()
	metrics.LatestPrice.Set(sample.Price.InexactFloat64())

	if s.store != nil {
		if err := s.store.AppendSample(ctx, sample); err != nil {
			metrics.IngestErrors.WithLabelValues("store").Inc()
			s.logger.Error().Err(err).Time("timestamp", sample.Timestamp).Msg("failed to persist sample")
		}
	}

	event := s.logger.Info().Time("timestamp", sample.Timestamp).Str("price", sample.Price.String())
	if delta.Available {
		event = event.Str("change", delta.Change.String()).Str("change_pct", delta.ChangePct.String())
	}
	event.Msg("sample recorded")

	if !s.alertsOn {
		return report, nil
	}

	s.refreshAlerts(ctx)
	report.Triggers = s.engine.EvaluateAlerts(sample.Price)
	if s.engine.FireOnce() {
		s.persistStatusChanges(ctx, report.Triggers)
	}
	if len(report.Triggers) == 0 {
		return report, nil
	}

	report.Dispatched = s.dispatch(ctx, report.Triggers, sample.Timestamp)
	return report, nil
}

// refreshAlerts merges alerts written by other processes since the last tick.
func (s *Sampler) refreshAlerts(ctx context.Context) {
	if s.store == nil {
		return
	}
	alerts, err := s.store.LoadAlerts(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to refresh alerts from storage")
		return
	}
	s.engine.RestoreAlerts(alerts)
}

// persistStatusChanges saves the status of alerts that just fired. Saves that
// fail stay pending and are retried on later ticks.
func (s *Sampler) persistStatusChanges(ctx context.Context, events []alerting.TriggerEvent) {
	if s.store == nil {
		return
	}

	s.mu.Lock()
	for _, ev := range events {
		s.pending[ev.AlertID] = struct{}{}
	}
	ids := make([]int64, 0, len(s.pending))
	for id := range s.pending {
		ids = append(ids, id)
	}
	s.mu.Unlock()

	for _, id := range ids {
		alert, ok := s.engine.Alert(id)
		if ok {
			if err := s.store.SaveAlert(ctx, alert); err != nil {
				s.logger.Error().Err(err).Int64("alert_id", id).Msg("failed to persist alert status; will retry")
				continue
			}
		}
		s.mu.Lock()
		delete(s.pending, id)
		s.mu.Unlock()
	}
}

func (s *Sampler) dispatch(ctx context.Context, events []alerting.TriggerEvent, at time.Time) int {
	sent := 0
	for _, ev := range events {
		metrics.AlertsTriggered.WithLabelValues(string(ev.Kind)).Inc()

		if !s.admit(ev, at) {
			metrics.AlertsSuppressed.Inc()
			s.logger.Debug().Int64("alert_id", ev.AlertID).Str("kind", string(ev.Kind)).Msg("trigger suppressed by cooldown")
			continue
		}

		if s.triggers != nil {
			if err := s.triggers.RecordTrigger(ctx, ev, at); err != nil {
				s.logger.Error().Err(err).Int64("alert_id", ev.AlertID).Msg("failed to record trigger")
			}
		}

		if s.notifier != nil {
			note := alerting.Notification{Event: ev, At: at, Channels: s.channels}
			if err := s.notifier.Notify(ctx, note); err != nil && !errors.Is(err, context.Canceled) {
				s.logger.Error().Err(err).Int64("alert_id", ev.AlertID).Msg("failed to dispatch alert")
			}
		}
		sent++
	}
	return sent
}

// admit applies the per-alert, per-side cooldown.
func (s *Sampler) admit(ev alerting.TriggerEvent, at time.Time) bool {
	if s.cooldown <= 0 {
		return true
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := cooldownKey{alertID: ev.AlertID, kind: ev.Kind}
	if last, ok := s.lastSent[key]; ok && at.Sub(last) < s.cooldown {
		return false
	}
	s.lastSent[key] = at
	return true
}

func (s *Sampler) acquireLock(ctx context.Context) (func(), bool, error) {
	if s.lockKey == 0 || s.locker == nil {
		return nil, true, nil
	}
	unlock, acquired, err := s.locker.TryAdvisoryLock(ctx, s.lockKey)
	if err != nil {
		return nil, false, fmt.Errorf("acquire advisory lock: %w", err)
	}
	if !acquired {
		return nil, false, nil
	}
	return unlock, true, nil
}
