package models

import "time"

// DayKeyLayout is the format of a standup-day key.
const DayKeyLayout = "2006-01-02"

// StandupDay is the resolved window of one standup-day, frozen when the day is opened.
type StandupDay struct {
	Key        string     `db:"day_key"`
	Timezone   string     `db:"timezone"`
	StartsAt   time.Time  `db:"starts_at"`
	MidpointAt time.Time  `db:"midpoint_at"`
	EndsAt     time.Time  `db:"ends_at"`
	OpenedAt   time.Time  `db:"opened_at"`
	RemindedAt *time.Time `db:"reminded_at"`
}

// Contains reports whether t falls inside [StartsAt, EndsAt).
func (d StandupDay) Contains(t time.Time) bool {
	return !t.Before(d.StartsAt) && t.Before(d.EndsAt)
}

// Pinned reports whether the day was loaded from storage rather than computed.
func (d StandupDay) Pinned() bool {
	return !d.OpenedAt.IsZero()
}
