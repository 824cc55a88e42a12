package standup

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"standupbot/internal/db/models"
	"standupbot/internal/lock"
	"standupbot/internal/metrics"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

var errNotInitialized = errors.New("standup engine is not initialized")

// Option configures an Engine.
type Option func(*Engine)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithDeliveryLimiter paces batch direct messages.
func WithDeliveryLimiter(l *rate.Limiter) Option {
	return func(e *Engine) { e.limiter = l }
}

// WithSummaryStaleAfter sets how long a pending summary blocks new attempts.
func WithSummaryStaleAfter(d time.Duration) Option {
	return func(e *Engine) { e.staleAfter = d }
}

type snapshot struct {
	settings models.Settings
	window   Window
}

// Engine runs the daily collection cycle. All triggers, manual or
// scheduled, go through the same guarded operations.
type Engine struct {
	store      Store
	messenger  Messenger
	summarizer Summarizer
	locks      lock.Locker
	metrics    *metrics.Metrics
	log        zerolog.Logger

	now        func() time.Time
	limiter    *rate.Limiter
	staleAfter time.Duration

	settingsMu sync.Mutex
	snap       atomic.Pointer[snapshot]
}

func NewEngine(
	store Store,
	messenger Messenger,
	summarizer Summarizer,
	locks lock.Locker,
	m *metrics.Metrics,
	logger *zerolog.Logger,
	opts ...Option,
) *Engine {
	if m == nil {
		m = metrics.New(prometheus.NewRegistry())
	}
	e := &Engine{
		store:      store,
		messenger:  messenger,
		summarizer: summarizer,
		locks:      locks,
		metrics:    m,
		log:        logger.With().Str("component", "standup").Logger(),
		now:        time.Now,
		limiter:    rate.NewLimiter(rate.Inf, 1),
		staleAfter: 15 * time.Minute,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Init loads the stored settings, seeding them from defaults on first start.
func (e *Engine) Init(ctx context.Context, defaults models.Settings) error {
	e.settingsMu.Lock()
	defer e.settingsMu.Unlock()

	stored, err := e.store.LoadSettings(ctx)
	if err != nil {
		return storageErr("load settings", err)
	}

	settings := defaults
	if stored != nil {
		settings = *stored
	}
	w, err := WindowFromSettings(settings)
	if err != nil {
		return fmt.Errorf("settings: %w", err)
	}

	if stored == nil {
		settings.UpdatedAt = e.now()
		if err := e.store.SaveSettings(ctx, settings); err != nil {
			return storageErr("save settings", err)
		}
		e.log.Info().Str("window", settings.StartTime+"-"+settings.EndTime).Str("timezone", settings.Timezone).Msg("seeded default settings")
	}

	e.snap.Store(&snapshot{settings: settings, window: w})
	return nil
}

// Settings returns the current settings snapshot.
func (e *Engine) Settings() models.Settings {
	if s := e.snap.Load(); s != nil {
		return s.settings
	}
	return models.Settings{}
}

func (e *Engine) current() (*snapshot, error) {
	s := e.snap.Load()
	if s == nil {
		return nil, errNotInitialized
	}
	return s, nil
}

// updateSettings validates and persists a change. The snapshot is swapped
// only after a successful save, so a rejected change leaves the old one.
func (e *Engine) updateSettings(ctx context.Context, change func(*models.Settings) error) error {
	e.settingsMu.Lock()
	defer e.settingsMu.Unlock()

	cur, err := e.current()
	if err != nil {
		return err
	}
	next := cur.settings
	if err := change(&next); err != nil {
		return err
	}
	w, err := WindowFromSettings(next)
	if err != nil {
		return err
	}
	next.UpdatedAt = e.now()
	if err := e.store.SaveSettings(ctx, next); err != nil {
		return storageErr("save settings", err)
	}
	e.snap.Store(&snapshot{settings: next, window: w})
	return nil
}

// SetWindow changes the daily window. Days already opened keep theirs.
func (e *Engine) SetWindow(ctx context.Context, start, end string) error {
	s, err := ParseClock(start)
	if err != nil {
		return err
	}
	en, err := ParseClock(end)
	if err != nil {
		return err
	}
	return e.updateSettings(ctx, func(st *models.Settings) error {
		st.StartTime, st.EndTime = s.String(), en.String()
		return nil
	})
}

func (e *Engine) SetTimezone(ctx context.Context, tz string) error {
	loc, err := LoadTimezone(tz)
	if err != nil {
		return err
	}
	return e.updateSettings(ctx, func(st *models.Settings) error {
		st.Timezone = loc.String()
		return nil
	})
}

func (e *Engine) SetSummaryChannel(ctx context.Context, channelID string) error {
	channelID = strings.TrimSpace(channelID)
	if channelID == "" || strings.ContainsAny(channelID, " \t\n") {
		return &ValidationError{Field: "channel", Reason: fmt.Sprintf("%q is not a channel id", channelID)}
	}
	return e.updateSettings(ctx, func(st *models.Settings) error {
		st.SummaryChannelID = channelID
		return nil
	})
}

func (e *Engine) SetRemindersEnabled(ctx context.Context, enabled bool) error {
	return e.updateSettings(ctx, func(st *models.Settings) error {
		st.RemindersEnabled = enabled
		return nil
	})
}

// ActiveDay returns the standup-day the current instant belongs to and its phase.
func (e *Engine) ActiveDay(ctx context.Context) (models.StandupDay, Phase, error) {
	snap, err := e.current()
	if err != nil {
		return models.StandupDay{}, 0, err
	}
	now := e.now()
	day, err := e.activeDay(ctx, snap, now)
	if err != nil {
		return models.StandupDay{}, 0, err
	}
	return day, PhaseAt(day, now), nil
}

// activeDay prefers a pinned day whose window is still running, then the
// pinned copy of the resolved day, then the day resolved from settings.
// Until the resolved day opens, a closed pinned day without a done summary
// stays active so that undated commands still reach it.
func (e *Engine) activeDay(ctx context.Context, snap *snapshot, now time.Time) (models.StandupDay, error) {
	latest, err := e.store.LatestDay(ctx)
	if err != nil {
		return models.StandupDay{}, storageErr("latest day", err)
	}
	if latest != nil && latest.Contains(now) {
		return *latest, nil
	}

	day := snap.window.Resolve(now)
	if latest != nil && latest.Key == day.Key {
		return *latest, nil
	}
	pinned, err := e.store.GetDay(ctx, day.Key)
	if err != nil {
		return models.StandupDay{}, storageErr("get day", err)
	}
	if pinned != nil {
		day = *pinned
	}

	if latest != nil && PhaseAt(day, now) == PhaseBeforeWindow && !now.Before(latest.EndsAt) {
		summary, err := e.store.GetSummary(ctx, latest.Key)
		if err != nil {
			return models.StandupDay{}, storageErr("get summary", err)
		}
		if summary == nil || summary.Status != models.SummaryDone {
			return *latest, nil
		}
	}
	return day, nil
}

// resolveDay maps an optional day key to a day. The empty key means the active day.
func (e *Engine) resolveDay(ctx context.Context, dayKey string) (models.StandupDay, error) {
	snap, err := e.current()
	if err != nil {
		return models.StandupDay{}, err
	}
	if strings.TrimSpace(dayKey) == "" {
		return e.activeDay(ctx, snap, e.now())
	}

	day, err := snap.window.Day(dayKey)
	if err != nil {
		return models.StandupDay{}, err
	}
	pinned, err := e.store.GetDay(ctx, day.Key)
	if err != nil {
		return models.StandupDay{}, storageErr("get day", err)
	}
	if pinned != nil {
		return *pinned, nil
	}
	return day, nil
}

func (e *Engine) guard(ctx context.Context, key string) (func(), error) {
	unlock, err := e.locks.Lock(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("acquire %s: %w", key, err)
	}
	return unlock, nil
}

func dayLockKey(dayKey, op string) string {
	return "standup:day:" + dayKey + ":" + op
}

func recordLockKey(dayKey, userID string) string {
	return "standup:record:" + dayKey + ":" + userID
}

func userLockKey(userID string) string {
	return "standup:user:" + userID
}

// Register adds a user to the roster or reactivates them. It reports
// whether the roster changed.
func (e *Engine) Register(ctx context.Context, userID, username string) (bool, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return false, &ValidationError{Field: "user", Reason: "user id must not be empty"}
	}
	unlock, err := e.guard(ctx, userLockKey(userID))
	if err != nil {
		return false, err
	}
	defer unlock()

	now := e.now()
	user, err := e.store.GetUser(ctx, userID)
	if err != nil {
		return false, storageErr("get user", err)
	}

	changed := true
	switch {
	case user == nil:
		user = &models.User{
			ID:           uuid.New(),
			DiscordID:    userID,
			Username:     username,
			Active:       true,
			RegisteredAt: now,
		}
	case user.Active:
		changed = false
		if user.Username == username {
			return false, nil
		}
		user.Username = username
	default:
		user.Active = true
		user.Username = username
		user.RegisteredAt = now
		user.UnregisteredAt = nil
	}
	user.UpdatedAt = now

	if err := e.store.SaveUser(ctx, user); err != nil {
		return false, storageErr("save user", err)
	}
	if changed {
		e.log.Info().Str("user_id", userID).Str("username", username).Msg("user registered")
	}
	return changed, nil
}

// Unregister opts a user out. Past responses are kept.
func (e *Engine) Unregister(ctx context.Context, userID string) (bool, error) {
	unlock, err := e.guard(ctx, userLockKey(userID))
	if err != nil {
		return false, err
	}
	defer unlock()

	user, err := e.store.GetUser(ctx, userID)
	if err != nil {
		return false, storageErr("get user", err)
	}
	if user == nil || !user.Active {
		return false, nil
	}
	now := e.now()
	user.Active = false
	user.UnregisteredAt = &now
	user.UpdatedAt = now
	if err := e.store.SaveUser(ctx, user); err != nil {
		return false, storageErr("save user", err)
	}
	e.log.Info().Str("user_id", userID).Msg("user unregistered")
	return true, nil
}

func (e *Engine) activeUser(ctx context.Context, userID string) (*models.User, error) {
	user, err := e.store.GetUser(ctx, userID)
	if err != nil {
		return nil, storageErr("get user", err)
	}
	if user == nil || !user.Active {
		return nil, &ValidationError{Field: "user", Reason: "you are not registered for standups, use /register first"}
	}
	return user, nil
}

// GetStatus reports a user's state on the active day.
func (e *Engine) GetStatus(ctx context.Context, userID string) (*UserStatus, error) {
	user, err := e.store.GetUser(ctx, userID)
	if err != nil {
		return nil, storageErr("get user", err)
	}
	if user == nil {
		return nil, &ValidationError{Field: "user", Reason: "unknown user"}
	}
	day, err := e.resolveDay(ctx, "")
	if err != nil {
		return nil, err
	}
	rec, err := e.loadRecord(ctx, day.Key, userID)
	if err != nil {
		return nil, err
	}
	return statusOf(*user, day, PhaseAt(day, e.now()), rec), nil
}

// Missing is an active user without a response on a day.
type Missing struct {
	UserID   string
	Username string
	State    State
	Answered int
}

// ListMissing returns active users with no response for the day, by username.
func (e *Engine) ListMissing(ctx context.Context, dayKey string) ([]Missing, error) {
	day, err := e.resolveDay(ctx, dayKey)
	if err != nil {
		return nil, err
	}
	users, err := e.store.ListActiveUsers(ctx)
	if err != nil {
		return nil, storageErr("list users", err)
	}
	records, err := e.dayRecords(ctx, day.Key)
	if err != nil {
		return nil, err
	}

	var missing []Missing
	for _, u := range users {
		rec := records[u.DiscordID]
		if rec.state.Terminal() {
			continue
		}
		m := Missing{UserID: u.DiscordID, Username: u.Username, State: rec.state}
		if rec.state == StateCollecting {
			m.Answered = int(rec.partial.Cursor)
		}
		missing = append(missing, m)
	}
	sort.Slice(missing, func(i, j int) bool { return missing[i].Username < missing[j].Username })
	return missing, nil
}

// ListResponses returns the day's responses ordered by submission time.
func (e *Engine) ListResponses(ctx context.Context, dayKey string) ([]models.Response, error) {
	day, err := e.resolveDay(ctx, dayKey)
	if err != nil {
		return nil, err
	}
	responses, err := e.store.ListResponses(ctx, day.Key)
	if err != nil {
		return nil, storageErr("list responses", err)
	}
	sort.SliceStable(responses, func(i, j int) bool { return responses[i].SubmittedAt.Before(responses[j].SubmittedAt) })
	return responses, nil
}

// DayStats are aggregate counts for one standup-day.
type DayStats struct {
	Day        models.StandupDay
	Phase      Phase
	Registered int
	Submitted  int
	NoUpdate   int
	Collecting int
	NotStarted int
	Blocked    []string
	Missing    []string
	Reminded   bool
	Summary    *models.Summary
}

// Responded counts users with a submitted response or an explicit no update.
func (s DayStats) Responded() int {
	return s.Submitted + s.NoUpdate
}

func (e *Engine) Stats(ctx context.Context, dayKey string) (*DayStats, error) {
	day, err := e.resolveDay(ctx, dayKey)
	if err != nil {
		return nil, err
	}
	users, err := e.store.ListActiveUsers(ctx)
	if err != nil {
		return nil, storageErr("list users", err)
	}
	records, err := e.dayRecords(ctx, day.Key)
	if err != nil {
		return nil, err
	}
	summary, err := e.store.GetSummary(ctx, day.Key)
	if err != nil {
		return nil, storageErr("get summary", err)
	}

	st := &DayStats{
		Day:        day,
		Phase:      PhaseAt(day, e.now()),
		Registered: len(users),
		Reminded:   day.RemindedAt != nil,
		Summary:    summary,
	}
	for _, u := range users {
		rec := records[u.DiscordID]
		switch rec.state {
		case StateSubmitted:
			st.Submitted++
			if rec.response.Answers.HasBlocker() {
				st.Blocked = append(st.Blocked, u.Username)
			}
		case StateNoUpdate:
			st.NoUpdate++
		case StateCollecting:
			st.Collecting++
			st.Missing = append(st.Missing, u.Username)
		default:
			st.NotStarted++
			st.Missing = append(st.Missing, u.Username)
		}
	}
	sort.Strings(st.Blocked)
	sort.Strings(st.Missing)
	return st, nil
}
