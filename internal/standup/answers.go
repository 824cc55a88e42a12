package standup

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"standupbot/internal/db/models"

	"github.com/google/uuid"
)

var moodSkipValues = map[string]bool{"": true, "skip": true, "-": true}

// parseMood returns nil for a skipped mood.
func parseMood(value string) (*int, error) {
	v := strings.ToLower(strings.TrimSpace(value))
	if moodSkipValues[v] {
		return nil, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 1 || n > 5 {
		return nil, &ValidationError{Field: "mood", Reason: "mood must be a number from 1 to 5, or skip"}
	}
	return &n, nil
}

// applyAnswer writes value for q into answers.
func applyAnswer(answers *models.Answers, q models.Question, value string) error {
	if q == models.QuestionMood {
		mood, err := parseMood(value)
		if err != nil {
			return err
		}
		answers.Mood = mood
		return nil
	}
	value = strings.TrimSpace(value)
	if value == "" {
		return &ValidationError{Field: "answer", Reason: fmt.Sprintf("the %s answer must not be empty", q)}
	}
	answers.SetText(q, value)
	return nil
}

// openRecord locks the user's record on the active day and loads it.
// It fails with ErrWindowClosed outside the day's window.
func (e *Engine) openRecord(ctx context.Context, userID string) (*models.User, models.StandupDay, record, func(), error) {
	snap, err := e.current()
	if err != nil {
		return nil, models.StandupDay{}, record{}, nil, err
	}
	user, err := e.activeUser(ctx, userID)
	if err != nil {
		return nil, models.StandupDay{}, record{}, nil, err
	}
	now := e.now()
	day, err := e.activeDay(ctx, snap, now)
	if err != nil {
		return nil, models.StandupDay{}, record{}, nil, err
	}
	if !day.Contains(now) {
		return nil, day, record{}, nil, ErrWindowClosed
	}

	unlock, err := e.guard(ctx, recordLockKey(day.Key, userID))
	if err != nil {
		return nil, day, record{}, nil, err
	}
	rec, err := e.loadRecord(ctx, day.Key, userID)
	if err != nil {
		unlock()
		return nil, day, record{}, nil, err
	}
	return user, day, rec, unlock, nil
}

// startCollecting moves a NotStarted record into Collecting. The day is
// pinned first so an out-of-band answer freezes the window like a delivery does.
func (e *Engine) startCollecting(ctx context.Context, user *models.User, day models.StandupDay, now time.Time) (record, error) {
	if _, _, err := e.store.PinDay(ctx, e.pinnable(day, now)); err != nil {
		return record{}, storageErr("pin day", err)
	}
	p := &models.PartialResponse{
		ID:        uuid.New(),
		UserID:    user.DiscordID,
		Username:  user.Username,
		DayKey:    day.Key,
		Cursor:    models.QuestionYesterday,
		StartedAt: now,
		UpdatedAt: now,
	}
	if _, err := e.store.ClaimPartial(ctx, p); err != nil {
		return record{}, storageErr("claim partial", err)
	}
	rec, err := e.loadRecord(ctx, day.Key, user.DiscordID)
	if err != nil {
		return record{}, err
	}
	if rec.state == StateNotStarted {
		return record{}, &StorageError{Op: "claim partial", Err: errors.New("claimed partial response is missing")}
	}
	return rec, nil
}

func (e *Engine) pinnable(day models.StandupDay, now time.Time) models.StandupDay {
	if day.OpenedAt.IsZero() {
		day.OpenedAt = now
	}
	return day
}

// SubmitAnswer answers question q. Earlier questions may be overwritten,
// later ones must wait for the cursor. Answering or skipping mood submits.
func (e *Engine) SubmitAnswer(ctx context.Context, userID string, q models.Question, value string) (*UserStatus, error) {
	if !q.Valid() {
		return nil, &ValidationError{Field: "question", Reason: fmt.Sprintf("%d is not a question index", int(q))}
	}
	return e.answer(ctx, userID, func(models.Question) models.Question { return q }, value)
}

// AnswerNext answers whichever question the user's cursor points at.
func (e *Engine) AnswerNext(ctx context.Context, userID, value string) (*UserStatus, error) {
	return e.answer(ctx, userID, func(cursor models.Question) models.Question { return cursor }, value)
}

func (e *Engine) answer(ctx context.Context, userID string, pick func(models.Question) models.Question, value string) (*UserStatus, error) {
	user, day, rec, unlock, err := e.openRecord(ctx, userID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	now := e.now()
	if rec.state == StateNotStarted {
		// Reject a bad first answer before the record leaves NotStarted.
		if q := pick(models.QuestionYesterday); q > models.QuestionYesterday {
			return nil, &ValidationError{Field: "question", Reason: fmt.Sprintf("answer %q first", models.QuestionYesterday.String())}
		} else if err := applyAnswer(&models.Answers{}, q, value); err != nil {
			return nil, err
		}
		if rec, err = e.startCollecting(ctx, user, day, now); err != nil {
			return nil, err
		}
	}
	if rec.state.Terminal() {
		return nil, &ValidationError{Field: "state", Reason: fmt.Sprintf("your standup for %s is already %s, use /edit_standup to change an answer", day.Key, rec.state)}
	}

	p := rec.partial
	q := pick(p.Cursor)
	if q > p.Cursor {
		return nil, &ValidationError{Field: "question", Reason: fmt.Sprintf("answer %q first", p.Cursor.String())}
	}
	if err := applyAnswer(&p.Answers, q, value); err != nil {
		return nil, err
	}
	if q == p.Cursor {
		p.Cursor++
	}
	p.UpdatedAt = now
	e.metrics.AnswersTotal.WithLabelValues("answer").Inc()

	if int(p.Cursor) >= models.QuestionCount {
		resp := &models.Response{
			ID:          uuid.New(),
			UserID:      p.UserID,
			Username:    user.Username,
			DayKey:      day.Key,
			Answers:     p.Answers,
			SubmittedAt: now,
		}
		if err := e.submit(ctx, resp); err != nil {
			return nil, err
		}
		e.metrics.AnswersTotal.WithLabelValues("submitted").Inc()
		e.log.Info().Str("day", day.Key).Str("user_id", userID).Msg("standup submitted")
		return statusOf(*user, day, PhaseAt(day, now), recordOf(nil, resp)), nil
	}

	if err := e.store.SavePartial(ctx, p); err != nil {
		return nil, storageErr("save partial", err)
	}
	return statusOf(*user, day, PhaseAt(day, now), rec), nil
}

func (e *Engine) submit(ctx context.Context, resp *models.Response) error {
	ok, err := e.store.SubmitResponse(ctx, resp)
	if err != nil {
		return storageErr("submit response", err)
	}
	if !ok {
		return &ValidationError{Field: "state", Reason: fmt.Sprintf("a standup for %s was already submitted", resp.DayKey)}
	}
	return nil
}

// MarkNoUpdate records an explicit "no update" for the active day.
// Repeating it is a no-op.
func (e *Engine) MarkNoUpdate(ctx context.Context, userID string) (*UserStatus, error) {
	user, day, rec, unlock, err := e.openRecord(ctx, userID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	now := e.now()
	switch rec.state {
	case StateNoUpdate:
		return statusOf(*user, day, PhaseAt(day, now), rec), nil
	case StateSubmitted:
		return nil, &ValidationError{Field: "state", Reason: fmt.Sprintf("your standup for %s is already submitted", day.Key)}
	}

	if _, _, err := e.store.PinDay(ctx, e.pinnable(day, now)); err != nil {
		return nil, storageErr("pin day", err)
	}
	resp := &models.Response{
		ID:          uuid.New(),
		UserID:      user.DiscordID,
		Username:    user.Username,
		DayKey:      day.Key,
		NoUpdate:    true,
		SubmittedAt: now,
	}
	if err := e.submit(ctx, resp); err != nil {
		return nil, err
	}
	e.metrics.AnswersTotal.WithLabelValues("no_update").Inc()
	e.log.Info().Str("day", day.Key).Str("user_id", userID).Msg("no update today")
	return statusOf(*user, day, PhaseAt(day, now), recordOf(nil, resp)), nil
}

// EditAnswer changes an already given answer while the window is open.
// A collecting record keeps its cursor. A terminal record takes the edit and
// ends submitted, so editing a "no update" turns it into an answered standup.
func (e *Engine) EditAnswer(ctx context.Context, userID string, q models.Question, value string) (*UserStatus, error) {
	if !q.Valid() {
		return nil, &ValidationError{Field: "question", Reason: fmt.Sprintf("%d is not a question index", int(q))}
	}
	user, day, rec, unlock, err := e.openRecord(ctx, userID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	now := e.now()
	switch rec.state {
	case StateNotStarted:
		return nil, &ValidationError{Field: "state", Reason: fmt.Sprintf("you have no standup for %s to edit yet", day.Key)}
	case StateCollecting:
		p := rec.partial
		if q >= p.Cursor {
			return nil, &ValidationError{Field: "question", Reason: fmt.Sprintf("%q has not been answered yet", q.String())}
		}
		if err := applyAnswer(&p.Answers, q, value); err != nil {
			return nil, err
		}
		p.UpdatedAt = now
		if err := e.store.SavePartial(ctx, p); err != nil {
			return nil, storageErr("save partial", err)
		}
	case StateSubmitted, StateNoUpdate:
		edited := *rec.response
		if err := applyAnswer(&edited.Answers, q, value); err != nil {
			return nil, err
		}
		edited.NoUpdate = false
		edited.EditedAt = &now
		if err := e.store.UpdateResponse(ctx, &edited); err != nil {
			return nil, storageErr("update response", err)
		}
		rec = recordOf(nil, &edited)
	}

	e.metrics.AnswersTotal.WithLabelValues("edit").Inc()
	e.log.Info().Str("day", day.Key).Str("user_id", userID).Str("question", q.String()).Msg("answer edited")
	return statusOf(*user, day, PhaseAt(day, now), rec), nil
}
