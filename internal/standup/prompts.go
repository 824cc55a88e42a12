package standup

import (
	"fmt"
	"strings"
	"time"

	"standupbot/internal/db/models"
)

func progressLine(answered int) string {
	return fmt.Sprintf("📊 Progress: %d/%d questions answered", answered, models.QuestionCount)
}

// localClock renders t as HH:MM in the day's own time zone.
func localClock(day models.StandupDay, t time.Time) string {
	loc, err := time.LoadLocation(day.Timezone)
	if err != nil {
		loc = time.UTC
	}
	return t.In(loc).Format("15:04")
}

// WindowLabel renders the day's window as "HH:MM-HH:MM Zone".
func WindowLabel(day models.StandupDay) string {
	return fmt.Sprintf("%s-%s %s", localClock(day, day.StartsAt), localClock(day, day.EndsAt), day.Timezone)
}

// QuestionPrompt is the prompt for the next unanswered question of a
// user who is collecting or has not started.
func QuestionPrompt(st *UserStatus) Prompt {
	q := st.Next
	if st.State == StateNotStarted {
		q = models.QuestionYesterday
	}
	return Prompt{
		DayKey:        st.Day.Key,
		Question:      q,
		Text:          progressLine(st.Answered) + "\n\n" + q.Prompt(),
		OfferNoUpdate: st.Answered == 0,
	}
}

func openPrompt(day models.StandupDay) Prompt {
	var b strings.Builder
	fmt.Fprintf(&b, "☀️ **Time for the daily standup (%s).**\n", day.Key)
	fmt.Fprintf(&b, "Answers are collected %s. Reply to each question here.\n\n", WindowLabel(day))
	b.WriteString(progressLine(0))
	b.WriteString("\n\n")
	b.WriteString(models.QuestionYesterday.Prompt())

	return Prompt{
		DayKey:        day.Key,
		Question:      models.QuestionYesterday,
		Text:          b.String(),
		OfferNoUpdate: true,
	}
}

func reminderPrompt(day models.StandupDay, rec record) Prompt {
	var b strings.Builder
	fmt.Fprintf(&b, "⏰ **Reminder:** your standup for %s is still open until %s.\n",
		day.Key, localClock(day, day.EndsAt))

	p := Prompt{DayKey: day.Key, Question: models.QuestionYesterday, OfferNoUpdate: true}
	if rec.state == StateCollecting && rec.partial.Cursor > 0 {
		p.Question = rec.partial.Cursor
		p.OfferNoUpdate = false
		b.WriteString("👋 **Welcome back!** Let's continue where you left off.\n")
		b.WriteString(progressLine(int(rec.partial.Cursor)))
	} else {
		b.WriteString(progressLine(0))
	}
	b.WriteString("\n\n")
	b.WriteString(p.Question.Prompt())
	p.Text = b.String()
	return p
}

// ResumePrompt greets a user returning to an unfinished standup.
func ResumePrompt(st *UserStatus) Prompt {
	p := QuestionPrompt(st)
	if st.State == StateCollecting && st.Answered > 0 {
		p.Text = fmt.Sprintf("👋 **Welcome back!** Let's continue your standup for %s.\n", st.Day.Key) + p.Text
	}
	return p
}

func noResponsesText(dayKey string) string {
	return fmt.Sprintf("📋 **No responses collected for %s**", dayKey)
}
