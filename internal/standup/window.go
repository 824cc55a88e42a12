package standup

import (
	"fmt"
	"strings"
	"time"

	"standupbot/internal/db/models"
)

// Clock is a wall-clock time of day in minute precision.
type Clock struct {
	Hour   int
	Minute int
}

// ParseClock parses a 24-hour "HH:MM" value.
func ParseClock(s string) (Clock, error) {
	t, err := time.Parse("15:04", strings.TrimSpace(s))
	if err != nil {
		return Clock{}, &ValidationError{Field: "time", Reason: fmt.Sprintf("%q is not a valid HH:MM time", s)}
	}
	return Clock{Hour: t.Hour(), Minute: t.Minute()}, nil
}

func (c Clock) String() string {
	return fmt.Sprintf("%02d:%02d", c.Hour, c.Minute)
}

func (c Clock) minutes() int {
	return c.Hour*60 + c.Minute
}

type Phase int

const (
	PhaseBeforeWindow Phase = iota
	PhaseCollecting
	PhasePastMidpoint
	PhaseClosed
)

func (p Phase) String() string {
	switch p {
	case PhaseBeforeWindow:
		return "before-window"
	case PhaseCollecting:
		return "collecting"
	case PhasePastMidpoint:
		return "past-midpoint"
	case PhaseClosed:
		return "closed"
	}
	return "unknown"
}

// PhaseAt reports where t falls relative to day's frozen instants.
func PhaseAt(day models.StandupDay, t time.Time) Phase {
	switch {
	case t.Before(day.StartsAt):
		return PhaseBeforeWindow
	case t.Before(day.MidpointAt):
		return PhaseCollecting
	case t.Before(day.EndsAt):
		return PhasePastMidpoint
	default:
		return PhaseClosed
	}
}

// Window is a validated daily collection window in a time zone.
// A window whose start is later than its end runs past local midnight
// and belongs to the day it opened on.
type Window struct {
	Start    Clock
	End      Clock
	Location *time.Location
}

// NewWindow validates a start/end pair and a time zone name.
func NewWindow(start, end, timezone string) (Window, error) {
	s, err := ParseClock(start)
	if err != nil {
		return Window{}, err
	}
	e, err := ParseClock(end)
	if err != nil {
		return Window{}, err
	}
	if s == e {
		return Window{}, &ValidationError{Field: "window", Reason: "start and end time must differ"}
	}
	loc, err := LoadTimezone(timezone)
	if err != nil {
		return Window{}, err
	}
	return Window{Start: s, End: e, Location: loc}, nil
}

// WindowFromSettings builds the window described by a settings snapshot.
func WindowFromSettings(s models.Settings) (Window, error) {
	return NewWindow(s.StartTime, s.EndTime, s.Timezone)
}

// LoadTimezone resolves an IANA zone name. The empty name is rejected
// instead of silently meaning UTC.
func LoadTimezone(name string) (*time.Location, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, &ValidationError{Field: "timezone", Reason: "timezone must not be empty"}
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, &ValidationError{Field: "timezone", Reason: fmt.Sprintf("unknown timezone %q", name)}
	}
	return loc, nil
}

// SpansMidnight reports whether the window ends on the next calendar day.
func (w Window) SpansMidnight() bool {
	return w.Start.minutes() > w.End.minutes()
}

// Duration is the length of the window on a day without clock changes.
func (w Window) Duration() time.Duration {
	m := w.End.minutes() - w.Start.minutes()
	if m < 0 {
		m += 24 * 60
	}
	return time.Duration(m) * time.Minute
}

func (w Window) dayOn(year int, month time.Month, date int) models.StandupDay {
	start := time.Date(year, month, date, w.Start.Hour, w.Start.Minute, 0, 0, w.Location)
	endDate := date
	if w.SpansMidnight() {
		endDate++
	}
	end := time.Date(year, month, endDate, w.End.Hour, w.End.Minute, 0, 0, w.Location)

	return models.StandupDay{
		Key:        start.Format(models.DayKeyLayout),
		Timezone:   w.Location.String(),
		StartsAt:   start,
		MidpointAt: start.Add((end.Sub(start) / 2).Round(time.Second)),
		EndsAt:     end,
	}
}

// Day resolves the window for an explicit day key.
func (w Window) Day(key string) (models.StandupDay, error) {
	d, err := time.ParseInLocation(models.DayKeyLayout, strings.TrimSpace(key), w.Location)
	if err != nil {
		return models.StandupDay{}, &ValidationError{Field: "date", Reason: fmt.Sprintf("%q is not a YYYY-MM-DD date", key)}
	}
	return w.dayOn(d.Year(), d.Month(), d.Day()), nil
}

// Resolve returns the standup-day that now belongs to. Before the window
// of the current local date opens, a midnight-spanning window from the
// previous date may still be running and takes precedence.
func (w Window) Resolve(now time.Time) models.StandupDay {
	local := now.In(w.Location)
	y, m, d := local.Date()

	if w.SpansMidnight() {
		prev := w.dayOn(y, m, d-1)
		if now.Before(prev.EndsAt) {
			return prev
		}
	}
	return w.dayOn(y, m, d)
}
