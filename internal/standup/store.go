package standup

import (
	"context"
	"time"

	"standupbot/internal/db/models"
)

// Store is the persistence contract of the engine. Lookups return nil and
// no error when a row is absent. Methods returning a bool are atomic
// check-and-set operations; false means another caller got there first.
type Store interface {
	GetUser(ctx context.Context, userID string) (*models.User, error)
	SaveUser(ctx context.Context, user *models.User) error
	ListActiveUsers(ctx context.Context) ([]models.User, error)
	// ListRoster returns the users registered at the instant at, including
	// those who unregistered after it.
	ListRoster(ctx context.Context, at time.Time) ([]models.User, error)

	LoadSettings(ctx context.Context) (*models.Settings, error)
	SaveSettings(ctx context.Context, settings models.Settings) error

	// PinDay stores day unless a row for its key exists and returns the stored row.
	PinDay(ctx context.Context, day models.StandupDay) (models.StandupDay, bool, error)
	GetDay(ctx context.Context, key string) (*models.StandupDay, error)
	LatestDay(ctx context.Context) (*models.StandupDay, error)
	// MarkDayReminded sets reminded_at if it is still unset.
	MarkDayReminded(ctx context.Context, key string, at time.Time) (bool, error)
	// ListUnsummarizedDays returns pinned days ended by before that have no summary record.
	ListUnsummarizedDays(ctx context.Context, before time.Time) ([]models.StandupDay, error)

	GetPartial(ctx context.Context, dayKey, userID string) (*models.PartialResponse, error)
	ListPartials(ctx context.Context, dayKey string) ([]models.PartialResponse, error)
	// ClaimPartial inserts p unless a partial or a response exists for its user and day.
	ClaimPartial(ctx context.Context, p *models.PartialResponse) (bool, error)
	SavePartial(ctx context.Context, p *models.PartialResponse) error

	// SubmitResponse inserts r and deletes the matching partial in one
	// transaction. It returns false when a response already exists.
	SubmitResponse(ctx context.Context, r *models.Response) (bool, error)
	GetResponse(ctx context.Context, dayKey, userID string) (*models.Response, error)
	UpdateResponse(ctx context.Context, r *models.Response) error
	ListResponses(ctx context.Context, dayKey string) ([]models.Response, error)

	// ClaimReminder records a reminder for the user unless one exists.
	ClaimReminder(ctx context.Context, dayKey, userID string, at time.Time) (bool, error)

	GetSummary(ctx context.Context, dayKey string) (*models.Summary, error)
	// BeginSummary moves the day's summary to pending when it is absent,
	// failed, or pending since before staleBefore.
	BeginSummary(ctx context.Context, dayKey string, nonResponders []string, staleBefore, at time.Time) (*models.Summary, bool, error)
	UpdateSummary(ctx context.Context, s *models.Summary) error
}
