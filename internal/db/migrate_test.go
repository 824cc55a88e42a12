package db

import (
	"io/fs"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrationsAreEmbeddedInOrder(t *testing.T) {
	names, err := migrationNames()
	require.NoError(t, err)
	require.NotEmpty(t, names)
	assert.Equal(t, "001_initial_schema.sql", names[0])
	assert.IsIncreasing(t, names)
}

func TestInitialSchemaDefinesEngineTables(t *testing.T) {
	data, err := fs.ReadFile(migrationsFS, "migrations/001_initial_schema.sql")
	require.NoError(t, err)
	schema := string(data)
	for _, table := range []string{"users", "settings", "standup_days", "partial_responses", "responses", "reminders", "summaries"} {
		assert.True(t, strings.Contains(schema, "CREATE TABLE IF NOT EXISTS "+table+" ("), table)
	}
	assert.Contains(t, schema, "UNIQUE (user_id, day_key)")
}

func TestUsersTrackUnregistration(t *testing.T) {
	data, err := fs.ReadFile(migrationsFS, "migrations/002_users_unregistered_at.sql")
	require.NoError(t, err)
	assert.Contains(t, string(data), "ADD COLUMN IF NOT EXISTS unregistered_at TIMESTAMPTZ")
}
