package standup

import (
	"context"
	"sort"
	"time"

	"standupbot/internal/db/models"
)

// SummarizeNow closes and summarizes a day. The empty key means the active day.
func (e *Engine) SummarizeNow(ctx context.Context, dayKey string) (*TriggerResult, error) {
	return e.CloseAndSummarize(ctx, dayKey)
}

// CloseAndSummarize summarizes a closed day at most once. Users on the
// roster when the window ended without a response are recorded as
// non-responders. A failed attempt may be retried;
// a done summary blocks further attempts.
func (e *Engine) CloseAndSummarize(ctx context.Context, dayKey string) (*TriggerResult, error) {
	day, err := e.resolveDay(ctx, dayKey)
	if err != nil {
		return nil, err
	}
	now := e.now()
	res := &TriggerResult{Day: day, Phase: PhaseAt(day, now)}
	if res.Phase != PhaseClosed {
		res.Outcome = OutcomeNotYetTime
		e.report("summarize", res)
		return res, nil
	}

	rec, in, err := e.claimSummary(ctx, day, now)
	if err != nil {
		return nil, err
	}
	if in == nil {
		res.Outcome = OutcomeAlreadyDone
		res.Summary = rec
		e.report("summarize", res)
		return res, nil
	}

	res.Outcome = OutcomePerformed
	res.Summary = rec
	text, err := e.generate(ctx, *in)
	if err != nil {
		rec.Status = models.SummaryFailed
		rec.Error = err.Error()
		rec.UpdatedAt = e.now()
		e.metrics.SummariesTotal.WithLabelValues(string(models.SummaryFailed)).Inc()
		e.log.Error().Err(err).Str("day", day.Key).Int("attempt", rec.Attempts).Msg("summarization failed")
		if uerr := e.store.UpdateSummary(ctx, rec); uerr != nil {
			return nil, storageErr("update summary", uerr)
		}
		e.report("summarize", res)
		return res, &SummarizationError{DayKey: day.Key, Err: err}
	}

	rec.Status = models.SummaryDone
	rec.Text = text
	rec.Error = ""
	rec.UpdatedAt = e.now()
	if err := e.store.UpdateSummary(ctx, rec); err != nil {
		return nil, storageErr("update summary", err)
	}
	e.metrics.SummariesTotal.WithLabelValues(string(models.SummaryDone)).Inc()

	e.post(ctx, rec)
	e.report("summarize", res)
	return res, nil
}

// claimSummary moves the day's record to pending and assembles the input.
// A nil input means another attempt is running or already finished.
func (e *Engine) claimSummary(ctx context.Context, day models.StandupDay, now time.Time) (*models.Summary, *SummaryInput, error) {
	unlock, err := e.guard(ctx, dayLockKey(day.Key, "summary"))
	if err != nil {
		return nil, nil, err
	}
	defer unlock()

	existing, err := e.store.GetSummary(ctx, day.Key)
	if err != nil {
		return nil, nil, storageErr("get summary", err)
	}
	staleBefore := now.Add(-e.staleAfter)
	if existing != nil {
		if existing.Status == models.SummaryDone ||
			(existing.Status == models.SummaryPending && !existing.UpdatedAt.Before(staleBefore)) {
			return existing, nil, nil
		}
	}

	users, err := e.store.ListRoster(ctx, day.EndsAt)
	if err != nil {
		return nil, nil, storageErr("list roster", err)
	}
	responses, err := e.store.ListResponses(ctx, day.Key)
	if err != nil {
		return nil, nil, storageErr("list responses", err)
	}
	sort.SliceStable(responses, func(i, j int) bool { return responses[i].SubmittedAt.Before(responses[j].SubmittedAt) })

	responded := make(map[string]bool, len(responses))
	for _, r := range responses {
		responded[r.UserID] = true
	}
	nonResponders := []string{}
	for _, u := range users {
		if !responded[u.DiscordID] {
			nonResponders = append(nonResponders, u.Username)
		}
	}
	sort.Strings(nonResponders)

	rec, ok, err := e.store.BeginSummary(ctx, day.Key, nonResponders, staleBefore, now)
	if err != nil {
		return nil, nil, storageErr("begin summary", err)
	}
	if !ok {
		return rec, nil, nil
	}
	return rec, &SummaryInput{Day: day, Responses: responses, NonResponders: nonResponders}, nil
}

// generate runs the summarization call outside any guard. A day without
// responses gets fixed text and no call.
func (e *Engine) generate(ctx context.Context, in SummaryInput) (string, error) {
	if len(in.Responses) == 0 {
		return noResponsesText(in.Day.Key), nil
	}
	start := time.Now()
	defer func() { e.metrics.SummaryDuration.Observe(time.Since(start).Seconds()) }()
	return e.summarizer.Summarize(ctx, in)
}

// post sends a done summary to the configured channel once. Without a
// channel the text stays on the record for the status query.
func (e *Engine) post(ctx context.Context, rec *models.Summary) {
	channelID := e.Settings().SummaryChannelID
	if channelID == "" {
		e.log.Warn().Str("day", rec.DayKey).Msg("no summary channel configured, summary kept on record")
		return
	}

	rec.ChannelID = channelID
	if err := e.messenger.SendToChannel(ctx, channelID, rec.Text); err != nil {
		rec.PostError = err.Error()
		e.metrics.DeliveriesTotal.WithLabelValues("summary", "error").Inc()
		e.log.Error().Err(err).Str("day", rec.DayKey).Str("channel_id", channelID).Msg("posting summary failed")
	} else {
		posted := e.now()
		rec.PostedAt = &posted
		rec.PostError = ""
		e.metrics.DeliveriesTotal.WithLabelValues("summary", "ok").Inc()
	}
	rec.UpdatedAt = e.now()
	if err := e.store.UpdateSummary(ctx, rec); err != nil {
		e.log.Error().Err(err).Str("day", rec.DayKey).Msg("recording summary post failed")
	}
}

// Summary returns the summary record of a day, or nil.
func (e *Engine) Summary(ctx context.Context, dayKey string) (*models.Summary, error) {
	day, err := e.resolveDay(ctx, dayKey)
	if err != nil {
		return nil, err
	}
	rec, err := e.store.GetSummary(ctx, day.Key)
	if err != nil {
		return nil, storageErr("get summary", err)
	}
	return rec, nil
}

// PendingSummaries lists opened days that have ended without any summary attempt.
func (e *Engine) PendingSummaries(ctx context.Context) ([]models.StandupDay, error) {
	days, err := e.store.ListUnsummarizedDays(ctx, e.now())
	if err != nil {
		return nil, storageErr("list unsummarized days", err)
	}
	return days, nil
}
