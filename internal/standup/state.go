package standup

import (
	"context"

	"standupbot/internal/db/models"
)

// State is the collection state of one user on one standup-day.
type State int

const (
	StateNotStarted State = iota
	StateCollecting
	StateSubmitted
	StateNoUpdate
)

func (s State) String() string {
	switch s {
	case StateNotStarted:
		return "not started"
	case StateCollecting:
		return "in progress"
	case StateSubmitted:
		return "submitted"
	case StateNoUpdate:
		return "no update"
	}
	return "unknown"
}

// Terminal reports whether the state only changes through edits.
func (s State) Terminal() bool {
	return s == StateSubmitted || s == StateNoUpdate
}

// record is the tagged state of a (user, day) pair. Partial is set only
// while Collecting, Response only in a terminal state.
type record struct {
	state    State
	partial  *models.PartialResponse
	response *models.Response
}

func recordOf(p *models.PartialResponse, r *models.Response) record {
	switch {
	case r != nil && r.NoUpdate:
		return record{state: StateNoUpdate, response: r}
	case r != nil:
		return record{state: StateSubmitted, response: r}
	case p != nil:
		return record{state: StateCollecting, partial: p}
	}
	return record{state: StateNotStarted}
}

func (e *Engine) loadRecord(ctx context.Context, dayKey, userID string) (record, error) {
	resp, err := e.store.GetResponse(ctx, dayKey, userID)
	if err != nil {
		return record{}, storageErr("get response", err)
	}
	if resp != nil {
		return recordOf(nil, resp), nil
	}
	partial, err := e.store.GetPartial(ctx, dayKey, userID)
	if err != nil {
		return record{}, storageErr("get partial", err)
	}
	return recordOf(partial, nil), nil
}

// dayRecords loads every record of a day keyed by user id.
func (e *Engine) dayRecords(ctx context.Context, dayKey string) (map[string]record, error) {
	responses, err := e.store.ListResponses(ctx, dayKey)
	if err != nil {
		return nil, storageErr("list responses", err)
	}
	partials, err := e.store.ListPartials(ctx, dayKey)
	if err != nil {
		return nil, storageErr("list partials", err)
	}

	records := make(map[string]record, len(responses)+len(partials))
	for i := range partials {
		records[partials[i].UserID] = recordOf(&partials[i], nil)
	}
	for i := range responses {
		records[responses[i].UserID] = recordOf(nil, &responses[i])
	}
	return records, nil
}

// UserStatus is the read-only view of a user's standup for a day.
type UserStatus struct {
	UserID   string
	Username string
	Active   bool
	Day      models.StandupDay
	Phase    Phase
	State    State
	Answers  models.Answers
	// Next is the question awaiting an answer while Collecting.
	Next     models.Question
	Answered int
	Response *models.Response
}

func statusOf(user models.User, day models.StandupDay, phase Phase, rec record) *UserStatus {
	st := &UserStatus{
		UserID:   user.DiscordID,
		Username: user.Username,
		Active:   user.Active,
		Day:      day,
		Phase:    phase,
		State:    rec.state,
	}
	switch rec.state {
	case StateCollecting:
		st.Answers = rec.partial.Answers
		st.Next = rec.partial.Cursor
		st.Answered = int(rec.partial.Cursor)
	case StateSubmitted, StateNoUpdate:
		st.Answers = rec.response.Answers
		st.Response = rec.response
		st.Next = models.QuestionCount
		st.Answered = models.QuestionCount
	}
	return st
}
