package standup

import (
	"context"
	"sort"
	"sync"
	"time"

	"standupbot/internal/db/models"
)

// memStore is an in-memory Store. Values are copied in and out so callers
// cannot mutate stored rows.
type memStore struct {
	mu        sync.Mutex
	users     map[string]models.User
	settings  *models.Settings
	days      map[string]models.StandupDay
	partials  map[string]models.PartialResponse
	responses map[string]models.Response
	reminders map[string]time.Time
	summaries map[string]models.Summary

	failSubmit error
}

func newMemStore() *memStore {
	return &memStore{
		users:     make(map[string]models.User),
		days:      make(map[string]models.StandupDay),
		partials:  make(map[string]models.PartialResponse),
		responses: make(map[string]models.Response),
		reminders: make(map[string]time.Time),
		summaries: make(map[string]models.Summary),
	}
}

func recKey(dayKey, userID string) string { return dayKey + "/" + userID }

func (m *memStore) GetUser(_ context.Context, userID string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[userID]
	if !ok {
		return nil, nil
	}
	return &u, nil
}

func (m *memStore) SaveUser(_ context.Context, user *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[user.DiscordID] = *user
	return nil
}

func (m *memStore) ListActiveUsers(context.Context) ([]models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.User
	for _, u := range m.users {
		if u.Active {
			out = append(out, u)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DiscordID < out[j].DiscordID })
	return out, nil
}

func (m *memStore) ListRoster(_ context.Context, at time.Time) ([]models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.User
	for _, u := range m.users {
		if u.OnRosterAt(at) {
			out = append(out, u)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DiscordID < out[j].DiscordID })
	return out, nil
}

func (m *memStore) LoadSettings(context.Context) (*models.Settings, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.settings == nil {
		return nil, nil
	}
	s := *m.settings
	return &s, nil
}

func (m *memStore) SaveSettings(_ context.Context, s models.Settings) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.settings = &s
	return nil
}

func (m *memStore) PinDay(_ context.Context, day models.StandupDay) (models.StandupDay, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if d, ok := m.days[day.Key]; ok {
		return d, false, nil
	}
	m.days[day.Key] = day
	return day, true, nil
}

func (m *memStore) GetDay(_ context.Context, key string) (*models.StandupDay, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.days[key]
	if !ok {
		return nil, nil
	}
	return &d, nil
}

func (m *memStore) LatestDay(context.Context) (*models.StandupDay, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var latest *models.StandupDay
	for _, d := range m.days {
		if latest == nil || d.StartsAt.After(latest.StartsAt) {
			d := d
			latest = &d
		}
	}
	return latest, nil
}

func (m *memStore) MarkDayReminded(_ context.Context, key string, at time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.days[key]
	if !ok || d.RemindedAt != nil {
		return false, nil
	}
	d.RemindedAt = &at
	m.days[key] = d
	return true, nil
}

func (m *memStore) ListUnsummarizedDays(_ context.Context, before time.Time) ([]models.StandupDay, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.StandupDay
	for k, d := range m.days {
		if _, ok := m.summaries[k]; ok || d.EndsAt.After(before) {
			continue
		}
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartsAt.Before(out[j].StartsAt) })
	return out, nil
}

func (m *memStore) GetPartial(_ context.Context, dayKey, userID string) (*models.PartialResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.partials[recKey(dayKey, userID)]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (m *memStore) ListPartials(_ context.Context, dayKey string) ([]models.PartialResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.PartialResponse
	for _, p := range m.partials {
		if p.DayKey == dayKey {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *memStore) ClaimPartial(_ context.Context, p *models.PartialResponse) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := recKey(p.DayKey, p.UserID)
	if _, ok := m.partials[k]; ok {
		return false, nil
	}
	if _, ok := m.responses[k]; ok {
		return false, nil
	}
	m.partials[k] = *p
	return true, nil
}

func (m *memStore) SavePartial(_ context.Context, p *models.PartialResponse) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.partials[recKey(p.DayKey, p.UserID)] = *p
	return nil
}

func (m *memStore) SubmitResponse(_ context.Context, r *models.Response) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failSubmit != nil {
		return false, m.failSubmit
	}
	k := recKey(r.DayKey, r.UserID)
	if _, ok := m.responses[k]; ok {
		return false, nil
	}
	m.responses[k] = *r
	delete(m.partials, k)
	return true, nil
}

func (m *memStore) GetResponse(_ context.Context, dayKey, userID string) (*models.Response, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.responses[recKey(dayKey, userID)]
	if !ok {
		return nil, nil
	}
	return &r, nil
}

func (m *memStore) UpdateResponse(_ context.Context, r *models.Response) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses[recKey(r.DayKey, r.UserID)] = *r
	return nil
}

func (m *memStore) ListResponses(_ context.Context, dayKey string) ([]models.Response, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Response
	for _, r := range m.responses {
		if r.DayKey == dayKey {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out, nil
}

func (m *memStore) ClaimReminder(_ context.Context, dayKey, userID string, at time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := recKey(dayKey, userID)
	if _, ok := m.reminders[k]; ok {
		return false, nil
	}
	m.reminders[k] = at
	return true, nil
}

func (m *memStore) GetSummary(_ context.Context, dayKey string) (*models.Summary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.summaries[dayKey]
	if !ok {
		return nil, nil
	}
	return &s, nil
}

func (m *memStore) BeginSummary(_ context.Context, dayKey string, nonResponders []string, staleBefore, at time.Time) (*models.Summary, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.summaries[dayKey]
	if ok {
		stale := s.Status == models.SummaryPending && s.UpdatedAt.Before(staleBefore)
		if s.Status != models.SummaryFailed && !stale {
			return nil, false, nil
		}
	} else {
		s = models.Summary{DayKey: dayKey, CreatedAt: at}
	}
	s.Status = models.SummaryPending
	s.NonResponders = append([]string(nil), nonResponders...)
	s.Attempts++
	s.Error = ""
	s.UpdatedAt = at
	m.summaries[dayKey] = s
	return &s, true, nil
}

func (m *memStore) UpdateSummary(_ context.Context, s *models.Summary) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.summaries[s.DayKey] = *s
	return nil
}
