package db

import (
	"context"
	"time"

	"standupbot/internal/db/models"
	"standupbot/internal/standup"

	"github.com/jackc/pgx/v5"
)

var _ standup.Store = (*DB)(nil)

const userColumns = `id, discord_id, username, active, registered_at, unregistered_at, updated_at`

func scanUser(row pgx.Row) (*models.User, error) {
	u := &models.User{}
	err := row.Scan(
		&u.ID,
		&u.DiscordID,
		&u.Username,
		&u.Active,
		&u.RegisteredAt,
		&u.UnregisteredAt,
		&u.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return u, nil
}

// GetUser looks a roster entry up by Discord id.
func (db *DB) GetUser(ctx context.Context, discordID string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE discord_id = $1`

	user, err := scanUser(db.QueryRow(ctx, query, discordID))
	if isNoRows(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return user, nil
}

// SaveUser inserts or updates a roster entry keyed by Discord id.
func (db *DB) SaveUser(ctx context.Context, user *models.User) error {
	query := `
		INSERT INTO users (` + userColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (discord_id) DO UPDATE
		SET username = EXCLUDED.username,
			active = EXCLUDED.active,
			registered_at = EXCLUDED.registered_at,
			unregistered_at = EXCLUDED.unregistered_at,
			updated_at = EXCLUDED.updated_at`

	_, err := db.Exec(ctx, query,
		user.ID.String(),
		user.DiscordID,
		user.Username,
		user.Active,
		user.RegisteredAt,
		user.UnregisteredAt,
		user.UpdatedAt,
	)
	return err
}

func (db *DB) ListActiveUsers(ctx context.Context) ([]models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE active ORDER BY username`
	return db.listUsers(ctx, query)
}

// ListRoster returns the users registered at the instant at, including
// those who unregistered later.
func (db *DB) ListRoster(ctx context.Context, at time.Time) ([]models.User, error) {
	query := `
		SELECT ` + userColumns + `
		FROM users
		WHERE registered_at <= $1
			AND (active OR unregistered_at > $1)
		ORDER BY username`
	return db.listUsers(ctx, query, at)
}

func (db *DB) listUsers(ctx context.Context, query string, args ...any) ([]models.User, error) {
	rows, err := db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []models.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, *u)
	}
	return users, rows.Err()
}
