package db

import (
	"context"
	"time"

	"standupbot/internal/db/models"

	"github.com/jackc/pgx/v5"
)

const dayColumns = `day_key, timezone, starts_at, midpoint_at, ends_at, opened_at, reminded_at`

func scanDay(row pgx.Row) (*models.StandupDay, error) {
	d := &models.StandupDay{}
	err := row.Scan(&d.Key, &d.Timezone, &d.StartsAt, &d.MidpointAt, &d.EndsAt, &d.OpenedAt, &d.RemindedAt)
	if isNoRows(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return d, nil
}

// PinDay freezes a day's window. An existing row wins.
func (db *DB) PinDay(ctx context.Context, day models.StandupDay) (models.StandupDay, bool, error) {
	tag, err := db.Exec(ctx, `
		INSERT INTO standup_days (`+dayColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (day_key) DO NOTHING`,
		day.Key, day.Timezone, day.StartsAt, day.MidpointAt, day.EndsAt, day.OpenedAt, day.RemindedAt,
	)
	if err != nil {
		return models.StandupDay{}, false, err
	}

	stored, err := db.GetDay(ctx, day.Key)
	if err != nil {
		return models.StandupDay{}, false, err
	}
	if stored == nil {
		return day, tag.RowsAffected() == 1, nil
	}
	return *stored, tag.RowsAffected() == 1, nil
}

func (db *DB) GetDay(ctx context.Context, key string) (*models.StandupDay, error) {
	return scanDay(db.QueryRow(ctx, `SELECT `+dayColumns+` FROM standup_days WHERE day_key = $1`, key))
}

func (db *DB) LatestDay(ctx context.Context) (*models.StandupDay, error) {
	return scanDay(db.QueryRow(ctx, `SELECT `+dayColumns+` FROM standup_days ORDER BY starts_at DESC LIMIT 1`))
}

func (db *DB) MarkDayReminded(ctx context.Context, key string, at time.Time) (bool, error) {
	tag, err := db.Exec(ctx, `
		UPDATE standup_days
		SET reminded_at = $2
		WHERE day_key = $1 AND reminded_at IS NULL`,
		key, at,
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (db *DB) ListUnsummarizedDays(ctx context.Context, before time.Time) ([]models.StandupDay, error) {
	rows, err := db.Query(ctx, `
		SELECT d.day_key, d.timezone, d.starts_at, d.midpoint_at, d.ends_at, d.opened_at, d.reminded_at
		FROM standup_days d
		LEFT JOIN summaries s ON s.day_key = d.day_key
		WHERE d.ends_at <= $1 AND s.day_key IS NULL
		ORDER BY d.starts_at`,
		before,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var days []models.StandupDay
	for rows.Next() {
		d, err := scanDay(rows)
		if err != nil {
			return nil, err
		}
		days = append(days, *d)
	}
	return days, rows.Err()
}

func (db *DB) ClaimReminder(ctx context.Context, dayKey, userID string, at time.Time) (bool, error) {
	tag, err := db.Exec(ctx, `
		INSERT INTO reminders (day_key, user_id, sent_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (day_key, user_id) DO NOTHING`,
		dayKey, userID, at,
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}
