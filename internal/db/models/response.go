package models

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

type Question int

const (
	QuestionYesterday Question = iota
	QuestionToday
	QuestionBlockers
	QuestionMood
)

// QuestionCount is the length of the fixed question list.
const QuestionCount = 4

var questionNames = [QuestionCount]string{"yesterday", "today", "blockers", "mood"}

var questionPrompts = [QuestionCount]string{
	"📋 **What did you work on yesterday?**\n(Describe completed tasks)",
	"🎯 **What are you working on today?**\n(Describe your plans)",
	"🚧 **Any blockers?**\n(Type `none` if nothing is in your way)",
	"📊 **Rate your confidence/mood (1-5)**\n(Optional, type `skip` to leave it out)",
}

func (q Question) Valid() bool {
	return q >= QuestionYesterday && q <= QuestionMood
}

func (q Question) String() string {
	if !q.Valid() {
		return fmt.Sprintf("question(%d)", int(q))
	}
	return questionNames[q]
}

// Prompt returns the text shown to the user for q.
func (q Question) Prompt() string {
	if !q.Valid() {
		return ""
	}
	return questionPrompts[q]
}

// Optional reports whether q may be skipped.
func (q Question) Optional() bool {
	return q == QuestionMood
}

// ParseQuestion accepts a question name or its index.
func ParseQuestion(s string) (Question, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for i, name := range questionNames {
		if s == name {
			return Question(i), nil
		}
	}
	if n, err := strconv.Atoi(s); err == nil && Question(n).Valid() {
		return Question(n), nil
	}
	return 0, fmt.Errorf("unknown question %q", s)
}

// Answers holds the four standup answers. Mood is nil when skipped.
type Answers struct {
	Yesterday string `db:"yesterday"`
	Today     string `db:"today"`
	Blockers  string `db:"blockers"`
	Mood      *int   `db:"mood"`
}

// Get returns the answer to q as text.
func (a Answers) Get(q Question) string {
	switch q {
	case QuestionYesterday:
		return a.Yesterday
	case QuestionToday:
		return a.Today
	case QuestionBlockers:
		return a.Blockers
	case QuestionMood:
		if a.Mood == nil {
			return ""
		}
		return strconv.Itoa(*a.Mood)
	}
	return ""
}

// SetText stores a free-text answer. Mood is set directly.
func (a *Answers) SetText(q Question, value string) {
	switch q {
	case QuestionYesterday:
		a.Yesterday = value
	case QuestionToday:
		a.Today = value
	case QuestionBlockers:
		a.Blockers = value
	}
}

var noBlockerValues = map[string]bool{"": true, "none": true, "no": true, "n/a": true, "na": true, "nothing": true}

// HasBlocker reports whether the blockers answer names an actual blocker.
func (a Answers) HasBlocker() bool {
	return !noBlockerValues[strings.ToLower(strings.TrimSpace(a.Blockers))]
}

// PartialResponse is an in-progress answer set. Cursor is the next unanswered question.
type PartialResponse struct {
	ID        uuid.UUID `db:"id"`
	UserID    string    `db:"user_id"`
	Username  string    `db:"username"`
	DayKey    string    `db:"day_key"`
	Answers   Answers
	Cursor    Question  `db:"cursor"`
	StartedAt time.Time `db:"started_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

// Response is a submitted standup, answered or explicitly "no update".
type Response struct {
	ID          uuid.UUID  `db:"id"`
	UserID      string     `db:"user_id"`
	Username    string     `db:"username"`
	DayKey      string     `db:"day_key"`
	Answers     Answers
	NoUpdate    bool       `db:"no_update"`
	SubmittedAt time.Time  `db:"submitted_at"`
	EditedAt    *time.Time `db:"edited_at"`
}
