package db

import (
	"context"

	"standupbot/internal/db/models"

	"github.com/jackc/pgx/v5"
)

const partialColumns = `id, user_id, username, day_key, yesterday, today, blockers, mood, next_question, started_at, updated_at`

const responseColumns = `id, user_id, username, day_key, yesterday, today, blockers, mood, no_update, submitted_at, edited_at`

func scanPartial(row pgx.Row) (*models.PartialResponse, error) {
	p := &models.PartialResponse{}
	var next int16
	err := row.Scan(
		&p.ID,
		&p.UserID,
		&p.Username,
		&p.DayKey,
		&p.Answers.Yesterday,
		&p.Answers.Today,
		&p.Answers.Blockers,
		&p.Answers.Mood,
		&next,
		&p.StartedAt,
		&p.UpdatedAt,
	)
	if isNoRows(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	p.Cursor = models.Question(next)
	return p, nil
}

func scanResponse(row pgx.Row) (*models.Response, error) {
	r := &models.Response{}
	err := row.Scan(
		&r.ID,
		&r.UserID,
		&r.Username,
		&r.DayKey,
		&r.Answers.Yesterday,
		&r.Answers.Today,
		&r.Answers.Blockers,
		&r.Answers.Mood,
		&r.NoUpdate,
		&r.SubmittedAt,
		&r.EditedAt,
	)
	if isNoRows(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return r, nil
}

func (db *DB) GetPartial(ctx context.Context, dayKey, userID string) (*models.PartialResponse, error) {
	return scanPartial(db.QueryRow(ctx,
		`SELECT `+partialColumns+` FROM partial_responses WHERE day_key = $1 AND user_id = $2`,
		dayKey, userID,
	))
}

func (db *DB) ListPartials(ctx context.Context, dayKey string) ([]models.PartialResponse, error) {
	rows, err := db.Query(ctx,
		`SELECT `+partialColumns+` FROM partial_responses WHERE day_key = $1 ORDER BY started_at`,
		dayKey,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var partials []models.PartialResponse
	for rows.Next() {
		p, err := scanPartial(rows)
		if err != nil {
			return nil, err
		}
		partials = append(partials, *p)
	}
	return partials, rows.Err()
}

// ClaimPartial inserts p when the user has neither a partial nor a
// response for the day.
func (db *DB) ClaimPartial(ctx context.Context, p *models.PartialResponse) (bool, error) {
	query := `
		INSERT INTO partial_responses (` + partialColumns + `)
		SELECT $1::uuid, $2::text, $3::text, $4::text, $5::text, $6::text, $7::text, $8::smallint, $9::smallint, $10::timestamptz, $11::timestamptz
		WHERE NOT EXISTS (
			SELECT 1 FROM responses WHERE day_key = $4::text AND user_id = $2::text
		)
		ON CONFLICT (user_id, day_key) DO NOTHING`

	tag, err := db.Exec(ctx, query,
		p.ID.String(),
		p.UserID,
		p.Username,
		p.DayKey,
		p.Answers.Yesterday,
		p.Answers.Today,
		p.Answers.Blockers,
		p.Answers.Mood,
		int16(p.Cursor),
		p.StartedAt,
		p.UpdatedAt,
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (db *DB) SavePartial(ctx context.Context, p *models.PartialResponse) error {
	query := `
		UPDATE partial_responses
		SET yesterday = $3,
			today = $4,
			blockers = $5,
			mood = $6,
			next_question = $7,
			updated_at = $8
		WHERE day_key = $1 AND user_id = $2`

	_, err := db.Exec(ctx, query,
		p.DayKey,
		p.UserID,
		p.Answers.Yesterday,
		p.Answers.Today,
		p.Answers.Blockers,
		p.Answers.Mood,
		int16(p.Cursor),
		p.UpdatedAt,
	)
	return err
}

func (db *DB) SubmitResponse(ctx context.Context, r *models.Response) (bool, error) {
	tx, err := db.Begin(ctx)
	if err != nil {
		return false, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	tag, err := tx.Exec(ctx, `
		INSERT INTO responses (`+responseColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (user_id, day_key) DO NOTHING`,
		r.ID.String(),
		r.UserID,
		r.Username,
		r.DayKey,
		r.Answers.Yesterday,
		r.Answers.Today,
		r.Answers.Blockers,
		r.Answers.Mood,
		r.NoUpdate,
		r.SubmittedAt,
		r.EditedAt,
	)
	if err != nil {
		return false, err
	}
	if tag.RowsAffected() == 0 {
		return false, nil
	}

	if _, err := tx.Exec(ctx,
		`DELETE FROM partial_responses WHERE day_key = $1 AND user_id = $2`,
		r.DayKey, r.UserID,
	); err != nil {
		return false, err
	}

	if err := tx.Commit(ctx); err != nil {
		return false, err
	}
	return true, nil
}

func (db *DB) GetResponse(ctx context.Context, dayKey, userID string) (*models.Response, error) {
	return scanResponse(db.QueryRow(ctx,
		`SELECT `+responseColumns+` FROM responses WHERE day_key = $1 AND user_id = $2`,
		dayKey, userID,
	))
}

func (db *DB) UpdateResponse(ctx context.Context, r *models.Response) error {
	query := `
		UPDATE responses
		SET yesterday = $3,
			today = $4,
			blockers = $5,
			mood = $6,
			no_update = $7,
			edited_at = $8
		WHERE day_key = $1 AND user_id = $2`

	_, err := db.Exec(ctx, query,
		r.DayKey,
		r.UserID,
		r.Answers.Yesterday,
		r.Answers.Today,
		r.Answers.Blockers,
		r.Answers.Mood,
		r.NoUpdate,
		r.EditedAt,
	)
	return err
}

func (db *DB) ListResponses(ctx context.Context, dayKey string) ([]models.Response, error) {
	rows, err := db.Query(ctx,
		`SELECT `+responseColumns+` FROM responses WHERE day_key = $1 ORDER BY submitted_at`,
		dayKey,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var responses []models.Response
	for rows.Next() {
		r, err := scanResponse(rows)
		if err != nil {
			return nil, err
		}
		responses = append(responses, *r)
	}
	return responses, rows.Err()
}
