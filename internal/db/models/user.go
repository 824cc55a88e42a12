package models

import (
	"time"

	"github.com/google/uuid"
)

// User is a roster entry. Unregistering clears Active instead of deleting the row.
type User struct {
	ID             uuid.UUID  `db:"id"`
	DiscordID      string     `db:"discord_id"`
	Username       string     `db:"username"`
	Active         bool       `db:"active"`
	RegisteredAt   time.Time  `db:"registered_at"`
	UnregisteredAt *time.Time `db:"unregistered_at"`
	UpdatedAt      time.Time  `db:"updated_at"`
}

// OnRosterAt reports whether the user was registered at t.
func (u User) OnRosterAt(t time.Time) bool {
	if u.RegisteredAt.After(t) {
		return false
	}
	return u.Active || (u.UnregisteredAt != nil && u.UnregisteredAt.After(t))
}
