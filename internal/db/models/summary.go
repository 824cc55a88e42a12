package models

import (
	"time"

	"github.com/lib/pq"
)

type SummaryStatus string

const (
	SummaryPending SummaryStatus = "pending"
	SummaryDone    SummaryStatus = "done"
	SummaryFailed  SummaryStatus = "failed"
)

// Summary is the per-day summary record. At most one reaches SummaryDone.
type Summary struct {
	DayKey        string         `db:"day_key"`
	Status        SummaryStatus  `db:"status"`
	Text          string         `db:"text"`
	Error         string         `db:"error"`
	NonResponders pq.StringArray `db:"non_responders"`
	Attempts      int            `db:"attempts"`
	ChannelID     string         `db:"channel_id"`
	PostedAt      *time.Time     `db:"posted_at"`
	PostError     string         `db:"post_error"`
	CreatedAt     time.Time      `db:"created_at"`
	UpdatedAt     time.Time      `db:"updated_at"`
}

// Reminder marks that a user was reminded for a day.
type Reminder struct {
	DayKey string    `db:"day_key"`
	UserID string    `db:"user_id"`
	SentAt time.Time `db:"sent_at"`
}
