package db

import (
	"context"
	"os"
	"testing"
	"time"

	"standupbot/internal/db/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestDB connects to STANDUP_TEST_DATABASE_URL and resets the schema.
func newTestDB(t *testing.T) *DB {
	t.Helper()
	dsn := os.Getenv("STANDUP_TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("STANDUP_TEST_DATABASE_URL not set")
	}
	ctx := context.Background()
	pool, err := pgxpool.New(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	db := &DB{pool}
	_, err = db.Migrate(ctx)
	require.NoError(t, err)
	_, err = db.Exec(ctx, `TRUNCATE summaries, reminders, responses, partial_responses, standup_days, users, settings`)
	require.NoError(t, err)
	return db
}

func testDay(key string, start time.Time) models.StandupDay {
	return models.StandupDay{
		Key:        key,
		Timezone:   "UTC",
		StartsAt:   start,
		MidpointAt: start.Add(4 * time.Hour),
		EndsAt:     start.Add(8 * time.Hour),
		OpenedAt:   start,
	}
}

func TestStoreUsersAndSettings(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)

	got, err := db.GetUser(ctx, "42")
	require.NoError(t, err)
	assert.Nil(t, got)

	user := &models.User{ID: uuid.New(), DiscordID: "42", Username: "alice", Active: true, RegisteredAt: now, UpdatedAt: now}
	require.NoError(t, db.SaveUser(ctx, user))
	left := now.Add(2 * time.Hour)
	user.Active = false
	user.UnregisteredAt = &left
	require.NoError(t, db.SaveUser(ctx, user))

	got, err = db.GetUser(ctx, "42")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.False(t, got.Active)
	require.NotNil(t, got.UnregisteredAt)
	assert.True(t, got.UnregisteredAt.Equal(left))

	active, err := db.ListActiveUsers(ctx)
	require.NoError(t, err)
	assert.Empty(t, active)

	roster, err := db.ListRoster(ctx, now.Add(time.Hour))
	require.NoError(t, err)
	require.Len(t, roster, 1)
	assert.Equal(t, "42", roster[0].DiscordID)
	roster, err = db.ListRoster(ctx, left.Add(time.Minute))
	require.NoError(t, err)
	assert.Empty(t, roster)
	roster, err = db.ListRoster(ctx, now.Add(-time.Minute))
	require.NoError(t, err)
	assert.Empty(t, roster)

	settings, err := db.LoadSettings(ctx)
	require.NoError(t, err)
	assert.Nil(t, settings)

	require.NoError(t, db.SaveSettings(ctx, models.Settings{StartTime: "09:00", EndTime: "17:00", Timezone: "UTC", RemindersEnabled: true, UpdatedAt: now}))
	require.NoError(t, db.SaveSettings(ctx, models.Settings{StartTime: "22:00", EndTime: "02:00", Timezone: "Asia/Tokyo", UpdatedAt: now}))
	settings, err = db.LoadSettings(ctx)
	require.NoError(t, err)
	require.NotNil(t, settings)
	assert.Equal(t, "22:00", settings.StartTime)
	assert.False(t, settings.RemindersEnabled)
}

func TestStoreCollectionCheckAndSet(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	start := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

	day, created, err := db.PinDay(ctx, testDay("2026-03-02", start))
	require.NoError(t, err)
	assert.True(t, created)

	moved := testDay("2026-03-02", start.Add(time.Hour))
	again, created, err := db.PinDay(ctx, moved)
	require.NoError(t, err)
	assert.False(t, created)
	assert.True(t, again.StartsAt.Equal(day.StartsAt))

	partial := &models.PartialResponse{ID: uuid.New(), UserID: "42", Username: "alice", DayKey: day.Key, StartedAt: start, UpdatedAt: start}
	ok, err := db.ClaimPartial(ctx, partial)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = db.ClaimPartial(ctx, &models.PartialResponse{ID: uuid.New(), UserID: "42", Username: "alice", DayKey: day.Key, StartedAt: start, UpdatedAt: start})
	require.NoError(t, err)
	assert.False(t, ok)

	mood := 4
	partial.Answers = models.Answers{Yesterday: "billing", Today: "payments", Blockers: "none", Mood: &mood}
	partial.Cursor = models.QuestionMood
	require.NoError(t, db.SavePartial(ctx, partial))
	stored, err := db.GetPartial(ctx, day.Key, "42")
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, models.QuestionMood, stored.Cursor)
	require.NotNil(t, stored.Answers.Mood)
	assert.Equal(t, 4, *stored.Answers.Mood)

	resp := &models.Response{ID: uuid.New(), UserID: "42", Username: "alice", DayKey: day.Key, Answers: partial.Answers, SubmittedAt: start.Add(time.Minute)}
	ok, err = db.SubmitResponse(ctx, resp)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = db.SubmitResponse(ctx, resp)
	require.NoError(t, err)
	assert.False(t, ok)

	stored, err = db.GetPartial(ctx, day.Key, "42")
	require.NoError(t, err)
	assert.Nil(t, stored)

	ok, err = db.ClaimPartial(ctx, &models.PartialResponse{ID: uuid.New(), UserID: "42", Username: "alice", DayKey: day.Key, StartedAt: start, UpdatedAt: start})
	require.NoError(t, err)
	assert.False(t, ok, "a submitted user cannot be claimed again")

	ok, err = db.ClaimReminder(ctx, day.Key, "7", start)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = db.ClaimReminder(ctx, day.Key, "7", start)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = db.MarkDayReminded(ctx, day.Key, start.Add(4*time.Hour))
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = db.MarkDayReminded(ctx, day.Key, start.Add(5*time.Hour))
	require.NoError(t, err)
	assert.False(t, ok)

	latest, err := db.LatestDay(ctx)
	require.NoError(t, err)
	require.NotNil(t, latest)
	require.NotNil(t, latest.RemindedAt)
}

func TestStoreSummaryClaims(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	start := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	day, _, err := db.PinDay(ctx, testDay("2026-03-02", start))
	require.NoError(t, err)

	closed := day.EndsAt.Add(time.Minute)
	pending, err := db.ListUnsummarizedDays(ctx, closed)
	require.NoError(t, err)
	require.Len(t, pending, 1)

	rec, ok, err := db.BeginSummary(ctx, day.Key, nil, closed.Add(-15*time.Minute), closed)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, models.SummaryPending, rec.Status)
	assert.Equal(t, 1, rec.Attempts)
	assert.Empty(t, rec.NonResponders)

	_, ok, err = db.BeginSummary(ctx, day.Key, nil, closed.Add(-15*time.Minute), closed)
	require.NoError(t, err)
	assert.False(t, ok, "a fresh pending summary blocks a second claim")

	rec.Status = models.SummaryFailed
	rec.Error = "quota"
	require.NoError(t, db.UpdateSummary(ctx, rec))

	rec, ok, err = db.BeginSummary(ctx, day.Key, []string{"bob"}, closed, closed.Add(time.Minute))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 2, rec.Attempts)
	assert.Empty(t, rec.Error)
	assert.Equal(t, []string{"bob"}, []string(rec.NonResponders))

	rec.Status = models.SummaryDone
	rec.Text = "report"
	require.NoError(t, db.UpdateSummary(ctx, rec))
	_, ok, err = db.BeginSummary(ctx, day.Key, nil, closed.Add(time.Hour), closed.Add(time.Hour))
	require.NoError(t, err)
	assert.False(t, ok, "a done summary is final")

	pending, err = db.ListUnsummarizedDays(ctx, closed)
	require.NoError(t, err)
	assert.Empty(t, pending)
}
