package db

import (
	"context"

	"standupbot/internal/db/models"
)

func (db *DB) LoadSettings(ctx context.Context) (*models.Settings, error) {
	query := `
		SELECT start_time, end_time, timezone, summary_channel_id, reminders_enabled, updated_at
		FROM settings
		WHERE id = 1`

	s := &models.Settings{}
	err := db.QueryRow(ctx, query).Scan(
		&s.StartTime,
		&s.EndTime,
		&s.Timezone,
		&s.SummaryChannelID,
		&s.RemindersEnabled,
		&s.UpdatedAt,
	)
	if isNoRows(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return s, nil
}

func (db *DB) SaveSettings(ctx context.Context, s models.Settings) error {
	query := `
		INSERT INTO settings (id, start_time, end_time, timezone, summary_channel_id, reminders_enabled, updated_at)
		VALUES (1, $1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE
		SET start_time = EXCLUDED.start_time,
			end_time = EXCLUDED.end_time,
			timezone = EXCLUDED.timezone,
			summary_channel_id = EXCLUDED.summary_channel_id,
			reminders_enabled = EXCLUDED.reminders_enabled,
			updated_at = EXCLUDED.updated_at`

	_, err := db.Exec(ctx, query,
		s.StartTime,
		s.EndTime,
		s.Timezone,
		s.SummaryChannelID,
		s.RemindersEnabled,
		s.UpdatedAt,
	)
	return err
}
