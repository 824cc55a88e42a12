package standup

import (
	"context"

	"standupbot/internal/db/models"
)

// Prompt is a direct message asking a user for an answer.
type Prompt struct {
	DayKey   string
	Question models.Question
	Text     string
	// OfferNoUpdate asks the channel to attach a one-click "no update" action.
	OfferNoUpdate bool
}

// Messenger delivers messages to users and channels. SendDirect returns an
// error wrapping ErrUndeliverable when the user cannot be reached.
type Messenger interface {
	SendDirect(ctx context.Context, userID string, p Prompt) error
	SendToChannel(ctx context.Context, channelID, text string) error
}

// SummaryInput is everything a summary of one standup-day is built from.
type SummaryInput struct {
	Day           models.StandupDay
	Responses     []models.Response
	NonResponders []string
}

// Summarizer turns a day's responses into report text.
type Summarizer interface {
	Summarize(ctx context.Context, in SummaryInput) (string, error)
}
