package alerting

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// ErrInvalidThreshold is returned when a buy or sell threshold is not positive.
var ErrInvalidThreshold = errors.New("alerting: threshold must be greater than zero")

// Status describes an alert's lifecycle state.
type Status string

const (
	StatusActive        Status = "ACTIVE"
	StatusTriggeredBuy  Status = "TRIGGERED_BUY"
	StatusTriggeredSell Status = "TRIGGERED_SELL"
)

// Kind tells which side of an alert fired.
type Kind string

const (
	KindBuy  Kind = "BELI"
	KindSell Kind = "JUAL"
)

// Alert is a user-defined pair of buy/sell targets.
type Alert struct {
	ID            int64           `json:"id"`
	Owner         string          `json:"owner"`
	BuyThreshold  decimal.Decimal `json:"buy_threshold"`
	SellThreshold decimal.Decimal `json:"sell_threshold"`
	Status        Status          `json:"status"`
	CreatedAt     time.Time       `json:"created_at"`
}

// TriggerEvent is produced when a live price satisfies an alert.
type TriggerEvent struct {
	AlertID   int64           `json:"alert_id"`
	Owner     string          `json:"owner"`
	Kind      Kind            `json:"tipe"`
	Threshold decimal.Decimal `json:"threshold"`
	Price     decimal.Decimal `json:"price"`
	Message   string          `json:"pesan"`
}

// Option tunes a Registry.
type Option func(*Registry)

// WithFireOnce makes a triggered alert leave ACTIVE so it fires a single time.
func WithFireOnce(enabled bool) Option {
	return func(r *Registry) { r.fireOnce = enabled }
}

// WithClock overrides the creation timestamp source.
func WithClock(now func() time.Time) Option {
	return func(r *Registry) { r.now = now }
}

// Registry owns alert definitions and evaluates them against a price.
type Registry struct {
	mu       sync.RWMutex
	alerts   []Alert
	index    map[int64]int
	nextID   int64
	fireOnce bool
	now      func() time.Time
}

// NewRegistry builds an empty registry; ids start at 1.
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		index:  make(map[int64]int),
		nextID: 1,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// FireOnce reports whether evaluation advances alert status.
func (r *Registry) FireOnce() bool {
	return r.fireOnce
}

// Register validates thresholds and stores a new ACTIVE alert.
func (r *Registry) Register(owner string, buy, sell decimal.Decimal) (int64, error) {
	if !buy.IsPositive() || !sell.IsPositive() {
		return 0, fmt.Errorf("%w: buy=%s sell=%s", ErrInvalidThreshold, buy.String(), sell.String())
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	id := r.nextID
	r.nextID++
	r.index[id] = len(r.alerts)
	r.alerts = append(r.alerts, Alert{
		ID:            id,
		Owner:         strings.TrimSpace(owner),
		BuyThreshold:  buy,
		SellThreshold: sell,
		Status:        StatusActive,
		CreatedAt:     r.now(),
	})
	return id, nil
}

// Restore merges previously persisted alerts by id and moves the id counter past them.
// A triggered status held in memory is never reset to ACTIVE by an older stored row.
func (r *Registry) Restore(alerts []Alert) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, a := range alerts {
		if a.Status == "" {
			a.Status = StatusActive
		}
		if pos, ok := r.index[a.ID]; ok {
			if cur := r.alerts[pos].Status; cur != StatusActive && a.Status == StatusActive {
				a.Status = cur
			}
			r.alerts[pos] = a
		} else {
			r.index[a.ID] = len(r.alerts)
			r.alerts = append(r.alerts, a)
		}
		if a.ID >= r.nextID {
			r.nextID = a.ID + 1
		}
	}

	sort.SliceStable(r.alerts, func(i, j int) bool { return r.alerts[i].ID < r.alerts[j].ID })
	for i, a := range r.alerts {
		r.index[a.ID] = i
	}
}

// Remove drops an alert, typically one whose registration could not be persisted.
// The id counter is not rewound.
func (r *Registry) Remove(id int64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	pos, ok := r.index[id]
	if !ok {
		return false
	}
	r.alerts = append(r.alerts[:pos], r.alerts[pos+1:]...)
	delete(r.index, id)
	for i := pos; i < len(r.alerts); i++ {
		r.index[r.alerts[i].ID] = i
	}
	return true
}

// List returns all alerts in creation order.
func (r *Registry) List() []Alert {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Alert, len(r.alerts))
	copy(out, r.alerts)
	return out
}

// Get looks an alert up by id.
func (r *Registry) Get(id int64) (Alert, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	pos, ok := r.index[id]
	if !ok {
		return Alert{}, false
	}
	return r.alerts[pos], true
}

// Evaluate reports every ACTIVE alert whose threshold the price satisfies.
// BUY (price <= buy) is checked before SELL (price >= sell).
func (r *Registry) Evaluate(price decimal.Decimal) []TriggerEvent {
	if r.fireOnce {
		r.mu.Lock()
		defer r.mu.Unlock()
	} else {
		r.mu.RLock()
		defer r.mu.RUnlock()
	}
	return r.matchLocked(price, r.fireOnce)
}

// Preview reports what Evaluate would return without advancing any status.
func (r *Registry) Preview(price decimal.Decimal) []TriggerEvent {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.matchLocked(price, false)
}

func (r *Registry) matchLocked(price decimal.Decimal, advance bool) []TriggerEvent {
	events := make([]TriggerEvent, 0)
	for i := range r.alerts {
		alert := &r.alerts[i]
		if alert.Status != StatusActive {
			continue
		}

		var (
			kind      Kind
			threshold decimal.Decimal
			next      Status
		)
		switch {
		case price.LessThanOrEqual(alert.BuyThreshold):
			kind, threshold, next = KindBuy, alert.BuyThreshold, StatusTriggeredBuy
		case price.GreaterThanOrEqual(alert.SellThreshold):
			kind, threshold, next = KindSell, alert.SellThreshold, StatusTriggeredSell
		default:
			continue
		}

		events = append(events, TriggerEvent{
			AlertID:   alert.ID,
			Owner:     alert.Owner,
			Kind:      kind,
			Threshold: threshold,
			Price:     price,
			Message:   triggerMessage(alert.Owner, kind, threshold, price),
		})
		if advance {
			alert.Status = next
		}
	}
	return events
}

func triggerMessage(owner string, kind Kind, threshold, price decimal.Decimal) string {
	return fmt.Sprintf("%s: target %s %s tercapai (harga sekarang %s)",
		owner, kind, FormatRupiah(threshold), FormatRupiah(price))
}
