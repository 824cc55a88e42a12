package db

import (
	"context"
	"time"

	"standupbot/internal/db/models"

	"github.com/jackc/pgx/v5"
	"github.com/lib/pq"
)

// stringArray keeps an empty list from being written as NULL.
func stringArray(list []string) pq.StringArray {
	if list == nil {
		return pq.StringArray{}
	}
	return pq.StringArray(list)
}

const summaryColumns = `day_key, status, text, error, non_responders, attempts, channel_id, posted_at, post_error, created_at, updated_at`

func scanSummary(row pgx.Row) (*models.Summary, error) {
	s := &models.Summary{}
	var status string
	err := row.Scan(
		&s.DayKey,
		&status,
		&s.Text,
		&s.Error,
		&s.NonResponders,
		&s.Attempts,
		&s.ChannelID,
		&s.PostedAt,
		&s.PostError,
		&s.CreatedAt,
		&s.UpdatedAt,
	)
	if isNoRows(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	s.Status = models.SummaryStatus(status)
	return s, nil
}

func (db *DB) GetSummary(ctx context.Context, dayKey string) (*models.Summary, error) {
	return scanSummary(db.QueryRow(ctx,
		`SELECT `+summaryColumns+` FROM summaries WHERE day_key = $1`,
		dayKey,
	))
}

// BeginSummary takes the summary slot of a day. The upsert only fires over
// failed rows and pending rows last touched before staleBefore.
func (db *DB) BeginSummary(ctx context.Context, dayKey string, nonResponders []string, staleBefore, at time.Time) (*models.Summary, bool, error) {
	query := `
		INSERT INTO summaries (day_key, status, non_responders, attempts, created_at, updated_at)
		VALUES ($1::text, 'pending', $2::text[], 1, $3::timestamptz, $3::timestamptz)
		ON CONFLICT (day_key) DO UPDATE
		SET status = 'pending',
			non_responders = EXCLUDED.non_responders,
			attempts = summaries.attempts + 1,
			error = '',
			updated_at = EXCLUDED.updated_at
		WHERE summaries.status = 'failed'
			OR (summaries.status = 'pending' AND summaries.updated_at < $4::timestamptz)
		RETURNING ` + summaryColumns

	s, err := scanSummary(db.QueryRow(ctx, query, dayKey, stringArray(nonResponders), at, staleBefore))
	if err != nil {
		return nil, false, err
	}
	if s == nil {
		return nil, false, nil
	}
	return s, true, nil
}

func (db *DB) UpdateSummary(ctx context.Context, s *models.Summary) error {
	query := `
		UPDATE summaries
		SET status = $2,
			text = $3,
			error = $4,
			non_responders = $5,
			attempts = $6,
			channel_id = $7,
			posted_at = $8,
			post_error = $9,
			updated_at = $10
		WHERE day_key = $1`

	_, err := db.Exec(ctx, query,
		s.DayKey,
		string(s.Status),
		s.Text,
		s.Error,
		stringArray(s.NonResponders),
		s.Attempts,
		s.ChannelID,
		s.PostedAt,
		s.PostError,
		s.UpdatedAt,
	)
	return err
}
