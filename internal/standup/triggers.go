package standup

import (
	"context"
	"errors"
	"time"

	"standupbot/internal/db/models"

	"github.com/google/uuid"
)

// Outcome is the result of a trigger. AlreadyDone is not an error.
type Outcome string

const (
	OutcomePerformed   Outcome = "performed"
	OutcomeAlreadyDone Outcome = "already-done"
	OutcomeNotYetTime  Outcome = "not-yet-time"
)

// TriggerResult describes what a trigger did for a standup-day.
type TriggerResult struct {
	Outcome   Outcome
	Day       models.StandupDay
	Phase     Phase
	Delivered int
	Failures  []DeliveryFailure
	Summary   *models.Summary
}

// Err aggregates the batch's delivery failures, or returns nil.
func (r *TriggerResult) Err() error {
	if len(r.Failures) == 0 {
		return nil
	}
	return &DeliveryError{Failures: r.Failures}
}

type delivery struct {
	user   models.User
	prompt Prompt
}

// deliver sends every prompt, pacing them through the limiter. A failed
// user is recorded and the batch continues.
func (e *Engine) deliver(ctx context.Context, kind string, batch []delivery) (int, []DeliveryFailure) {
	var (
		sent     int
		failures []DeliveryFailure
	)
	for _, d := range batch {
		if err := e.limiter.Wait(ctx); err != nil {
			failures = append(failures, DeliveryFailure{UserID: d.user.DiscordID, Username: d.user.Username, Err: err})
			continue
		}
		if err := e.messenger.SendDirect(ctx, d.user.DiscordID, d.prompt); err != nil {
			result := "error"
			if errors.Is(err, ErrUndeliverable) {
				result = "undeliverable"
			}
			e.metrics.DeliveriesTotal.WithLabelValues(kind, result).Inc()
			e.log.Warn().Err(err).Str("kind", kind).Str("user_id", d.user.DiscordID).Str("day", d.prompt.DayKey).Msg("direct message failed")
			failures = append(failures, DeliveryFailure{UserID: d.user.DiscordID, Username: d.user.Username, Err: err})
			continue
		}
		e.metrics.DeliveriesTotal.WithLabelValues(kind, "ok").Inc()
		sent++
	}
	return sent, failures
}

func (e *Engine) report(op string, res *TriggerResult) {
	e.metrics.TriggersTotal.WithLabelValues(op, string(res.Outcome)).Inc()
	e.log.Info().
		Str("op", op).
		Str("day", res.Day.Key).
		Str("phase", res.Phase.String()).
		Str("outcome", string(res.Outcome)).
		Int("delivered", res.Delivered).
		Int("failed", len(res.Failures)).
		Msg("trigger finished")
}

// CollectNow opens collection for the active day.
func (e *Engine) CollectNow(ctx context.Context) (*TriggerResult, error) {
	return e.OpenCollection(ctx)
}

// OpenCollection pins the active day and sends the first question to every
// active user who has not started. Users are claimed under the day guard,
// so concurrent calls never prompt the same user twice.
func (e *Engine) OpenCollection(ctx context.Context) (*TriggerResult, error) {
	snap, err := e.current()
	if err != nil {
		return nil, err
	}
	now := e.now()
	day, err := e.activeDay(ctx, snap, now)
	if err != nil {
		return nil, err
	}
	res := &TriggerResult{Day: day, Phase: PhaseAt(day, now)}
	switch res.Phase {
	case PhaseBeforeWindow:
		res.Outcome = OutcomeNotYetTime
		e.report("open", res)
		return res, nil
	case PhaseClosed:
		return res, ErrWindowClosed
	}

	batch, opened, created, err := e.claimForOpen(ctx, day, now)
	if err != nil {
		return nil, err
	}
	res.Day = opened
	if len(batch) == 0 && !created {
		res.Outcome = OutcomeAlreadyDone
		e.report("open", res)
		return res, nil
	}

	res.Outcome = OutcomePerformed
	res.Delivered, res.Failures = e.deliver(ctx, "prompt", batch)
	e.report("open", res)
	return res, nil
}

// claimForOpen reports whether this call pinned the day.
func (e *Engine) claimForOpen(ctx context.Context, day models.StandupDay, now time.Time) ([]delivery, models.StandupDay, bool, error) {
	unlock, err := e.guard(ctx, dayLockKey(day.Key, "open"))
	if err != nil {
		return nil, day, false, err
	}
	defer unlock()

	pinned, created, err := e.store.PinDay(ctx, e.pinnable(day, now))
	if err != nil {
		return nil, day, false, storageErr("pin day", err)
	}
	users, err := e.store.ListActiveUsers(ctx)
	if err != nil {
		return nil, pinned, false, storageErr("list users", err)
	}
	records, err := e.dayRecords(ctx, pinned.Key)
	if err != nil {
		return nil, pinned, false, err
	}

	prompt := openPrompt(pinned)
	var batch []delivery
	for _, u := range users {
		if records[u.DiscordID].state != StateNotStarted {
			continue
		}
		claimed, err := e.store.ClaimPartial(ctx, &models.PartialResponse{
			ID:        uuid.New(),
			UserID:    u.DiscordID,
			Username:  u.Username,
			DayKey:    pinned.Key,
			Cursor:    models.QuestionYesterday,
			StartedAt: now,
			UpdatedAt: now,
		})
		if err != nil {
			return nil, pinned, false, storageErr("claim partial", err)
		}
		if claimed {
			batch = append(batch, delivery{user: u, prompt: prompt})
		}
	}
	return batch, pinned, created, nil
}

// RemindNow sends the midpoint reminder for the active day.
func (e *Engine) RemindNow(ctx context.Context) (*TriggerResult, error) {
	return e.SendReminders(ctx)
}

// SendReminders reminds every active user without a response, once per
// day, at or after the midpoint. The day flag and per-user records are set
// under the day guard before any message goes out.
func (e *Engine) SendReminders(ctx context.Context) (*TriggerResult, error) {
	snap, err := e.current()
	if err != nil {
		return nil, err
	}
	now := e.now()
	day, err := e.activeDay(ctx, snap, now)
	if err != nil {
		return nil, err
	}
	res := &TriggerResult{Day: day, Phase: PhaseAt(day, now)}
	switch res.Phase {
	case PhaseBeforeWindow, PhaseCollecting:
		res.Outcome = OutcomeNotYetTime
		e.report("remind", res)
		return res, nil
	case PhaseClosed:
		return res, ErrWindowClosed
	}

	batch, pinned, done, err := e.claimForRemind(ctx, day, now)
	if err != nil {
		return nil, err
	}
	res.Day = pinned
	if done {
		res.Outcome = OutcomeAlreadyDone
		e.report("remind", res)
		return res, nil
	}

	res.Outcome = OutcomePerformed
	res.Delivered, res.Failures = e.deliver(ctx, "reminder", batch)
	e.report("remind", res)
	return res, nil
}

func (e *Engine) claimForRemind(ctx context.Context, day models.StandupDay, now time.Time) ([]delivery, models.StandupDay, bool, error) {
	unlock, err := e.guard(ctx, dayLockKey(day.Key, "remind"))
	if err != nil {
		return nil, day, false, err
	}
	defer unlock()

	pinned, _, err := e.store.PinDay(ctx, e.pinnable(day, now))
	if err != nil {
		return nil, day, false, storageErr("pin day", err)
	}
	if pinned.RemindedAt != nil {
		return nil, pinned, true, nil
	}

	users, err := e.store.ListActiveUsers(ctx)
	if err != nil {
		return nil, pinned, false, storageErr("list users", err)
	}
	records, err := e.dayRecords(ctx, pinned.Key)
	if err != nil {
		return nil, pinned, false, err
	}

	var batch []delivery
	for _, u := range users {
		rec := records[u.DiscordID]
		if rec.state.Terminal() {
			continue
		}
		claimed, err := e.store.ClaimReminder(ctx, pinned.Key, u.DiscordID, now)
		if err != nil {
			return nil, pinned, false, storageErr("claim reminder", err)
		}
		if claimed {
			batch = append(batch, delivery{user: u, prompt: reminderPrompt(pinned, rec)})
		}
	}

	marked, err := e.store.MarkDayReminded(ctx, pinned.Key, now)
	if err != nil {
		return nil, pinned, false, storageErr("mark reminded", err)
	}
	if marked {
		pinned.RemindedAt = &now
	}
	// Per-user claims are exclusive, so claimed users are sent even if
	// another process set the day flag first.
	return batch, pinned, !marked && len(batch) == 0, nil
}

// ResumeCollection sends the next question again to every active user who
// stopped partway through the active day. The scheduler calls it once after
// start so answers interrupted by a restart carry on from the same cursor.
func (e *Engine) ResumeCollection(ctx context.Context) (*TriggerResult, error) {
	snap, err := e.current()
	if err != nil {
		return nil, err
	}
	now := e.now()
	day, err := e.activeDay(ctx, snap, now)
	if err != nil {
		return nil, err
	}
	res := &TriggerResult{Day: day, Phase: PhaseAt(day, now)}
	switch res.Phase {
	case PhaseBeforeWindow:
		res.Outcome = OutcomeNotYetTime
		e.report("resume", res)
		return res, nil
	case PhaseClosed:
		return res, ErrWindowClosed
	}

	users, err := e.store.ListActiveUsers(ctx)
	if err != nil {
		return nil, storageErr("list users", err)
	}
	records, err := e.dayRecords(ctx, day.Key)
	if err != nil {
		return nil, err
	}

	var batch []delivery
	for _, u := range users {
		rec := records[u.DiscordID]
		if rec.state != StateCollecting || rec.partial.Cursor == models.QuestionYesterday {
			continue
		}
		st := statusOf(u, day, res.Phase, rec)
		batch = append(batch, delivery{user: u, prompt: ResumePrompt(st)})
	}
	if len(batch) == 0 {
		res.Outcome = OutcomeAlreadyDone
		e.report("resume", res)
		return res, nil
	}

	res.Outcome = OutcomePerformed
	res.Delivered, res.Failures = e.deliver(ctx, "resume", batch)
	e.report("resume", res)
	return res, nil
}
