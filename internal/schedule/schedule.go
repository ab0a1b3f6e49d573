package schedule

import (
	"fmt"
	"strings"
	"time"
)

const (
	// DefaultOpenMessage is shown while the service is operational.
	DefaultOpenMessage = "Website OPERASIONAL"
	// DefaultClosedMessage is shown on closed weekdays.
	DefaultClosedMessage = "Website TUTUP - Hari Libur. Buka lagi Senin jam 00:00 WIB"
)

var weekdayNames = [...]string{"Minggu", "Senin", "Selasa", "Rabu", "Kamis", "Jumat", "Sabtu"}

// Rule is the static weekly operating rule.
type Rule struct {
	ClosedDays    []time.Weekday
	ReopenWeekday time.Weekday
	ReopenHour    int
	ReopenMinute  int
	Location      *time.Location
	OpenMessage   string
	ClosedMessage string
}

// DefaultRule closes the service on weekends and reopens Monday at midnight, Jakarta time.
func DefaultRule() Rule {
	loc, err := time.LoadLocation("Asia/Jakarta")
	if err != nil {
		loc = time.FixedZone("WIB", 7*60*60)
	}
	return Rule{
		ClosedDays:    []time.Weekday{time.Saturday, time.Sunday},
		ReopenWeekday: time.Monday,
		Location:      loc,
		OpenMessage:   DefaultOpenMessage,
		ClosedMessage: DefaultClosedMessage,
	}
}

// Status is recomputed on every query and never stored.
type Status struct {
	IsOpen    bool      `json:"is_open"`
	Message   string    `json:"message"`
	Now       time.Time `json:"now"`
	Weekday   string    `json:"weekday"`
	TimeOfDay string    `json:"time_of_day"`
	ReopensAt time.Time `json:"reopens_at,omitempty"`
}

// Gate decides OPEN or CLOSED from wall-clock time alone.
type Gate struct {
	rule   Rule
	closed [7]bool
}

// NewGate builds a gate; a nil location means UTC and empty messages fall back to defaults.
func NewGate(rule Rule) *Gate {
	if rule.Location == nil {
		rule.Location = time.UTC
	}
	if rule.OpenMessage == "" {
		rule.OpenMessage = DefaultOpenMessage
	}
	if rule.ClosedMessage == "" {
		rule.ClosedMessage = DefaultClosedMessage
	}

	g := &Gate{rule: rule}
	for _, day := range rule.ClosedDays {
		g.closed[day] = true
	}
	return g
}

// Location returns the operating timezone.
func (g *Gate) Location() *time.Location {
	return g.rule.Location
}

// IsOperational reports whether now falls outside the closed weekdays.
func (g *Gate) IsOperational(now time.Time) (bool, string) {
	local := now.In(g.rule.Location)
	if g.closed[local.Weekday()] {
		return false, g.rule.ClosedMessage
	}
	return true, g.rule.OpenMessage
}

// Status surfaces the open flag together with display fields.
func (g *Gate) Status(now time.Time) Status {
	local := now.In(g.rule.Location)
	open, msg := g.IsOperational(local)

	status := Status{
		IsOpen:    open,
		Message:   msg,
		Now:       local,
		Weekday:   WeekdayName(local.Weekday()),
		TimeOfDay: local.Format("15:04:05"),
	}
	if !open {
		status.ReopensAt = g.NextReopen(local)
	}
	return status
}

// NextReopen returns the first reopen instant strictly after now.
func (g *Gate) NextReopen(now time.Time) time.Time {
	local := now.In(g.rule.Location)
	days := (int(g.rule.ReopenWeekday) - int(local.Weekday()) + 7) % 7
	candidate := time.Date(local.Year(), local.Month(), local.Day()+days,
		g.rule.ReopenHour, g.rule.ReopenMinute, 0, 0, g.rule.Location)
	if !candidate.After(local) {
		candidate = candidate.AddDate(0, 0, 7)
	}
	return candidate
}

// WeekdayName renders a weekday the way the dashboard shows it.
func WeekdayName(d time.Weekday) string {
	return weekdayNames[d]
}

// ParseWeekday accepts English or Indonesian day names, case-insensitive.
func ParseWeekday(name string) (time.Weekday, error) {
	needle := strings.ToLower(strings.TrimSpace(name))
	for i, id := range weekdayNames {
		if strings.ToLower(id) == needle || strings.ToLower(time.Weekday(i).String()) == needle {
			return time.Weekday(i), nil
		}
	}
	return 0, fmt.Errorf("unknown weekday %q", name)
}
