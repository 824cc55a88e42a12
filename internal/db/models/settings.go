package models

import "time"

// Settings is the single process-wide configuration row.
type Settings struct {
	StartTime        string    `db:"start_time"`
	EndTime          string    `db:"end_time"`
	Timezone         string    `db:"timezone"`
	SummaryChannelID string    `db:"summary_channel_id"`
	RemindersEnabled bool      `db:"reminders_enabled"`
	UpdatedAt        time.Time `db:"updated_at"`
}
