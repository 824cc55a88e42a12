package bot

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"standupbot/internal/db/models"
	"standupbot/internal/standup"
)

func onOff(v bool) string {
	if v {
		return "on"
	}
	return "off"
}

func moodText(a models.Answers) string {
	if a.Mood == nil {
		return "-"
	}
	return strconv.Itoa(*a.Mood) + "/5"
}

func statusText(st *standup.UserStatus) string {
	var b strings.Builder
	fmt.Fprintf(&b, "**Standup %s** (%s, %s)\n", st.Day.Key, standup.WindowLabel(st.Day), st.Phase)
	fmt.Fprintf(&b, "State: **%s** (%d/%d answered)\n", st.State, st.Answered, models.QuestionCount)

	switch st.State {
	case standup.StateNoUpdate:
		b.WriteString("You reported no update for this day.\n")
	case standup.StateCollecting, standup.StateSubmitted:
		for q := models.QuestionYesterday; q < models.Question(st.Answered); q++ {
			answer := st.Answers.Get(q)
			if q == models.QuestionMood {
				answer = moodText(st.Answers)
			}
			fmt.Fprintf(&b, "- %s: %s\n", q, answer)
		}
		if st.State == standup.StateCollecting {
			fmt.Fprintf(&b, "Next: %s\n", st.Next.Prompt())
		}
	}
	if st.Response != nil && st.Response.EditedAt != nil {
		b.WriteString("_(edited)_\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func noUpdateText(st *standup.UserStatus) string {
	return fmt.Sprintf("✅ Recorded: no update for %s. Thanks!", st.Day.Key)
}

func completionText(st *standup.UserStatus) string {
	return fmt.Sprintf("🎉 **Standup submitted for %s!** Use `/edit_standup` to change an answer while the window (%s) is open.",
		st.Day.Key, standup.WindowLabel(st.Day))
}

func helpText(admin bool) string {
	var b strings.Builder
	b.WriteString("**Daily standup**\n")
	b.WriteString("`/register` join the standup\n")
	b.WriteString("`/unregister` leave the standup\n")
	b.WriteString("`/my_status` show your progress\n")
	b.WriteString("`/no_update` report nothing to share today\n")
	b.WriteString("`/edit_standup` change an answer while the window is open\n")
	b.WriteString("Answer the questions by replying to the bot's direct messages.")
	if admin {
		b.WriteString("\n\n**Admin**\n")
		b.WriteString("`/config` `/status` `/missing` `/responses` `/summary` `/export`\n")
		b.WriteString("`/collect_now` `/remind_now` `/summarize_now`\n")
		b.WriteString("`/set_time` `/set_timezone` `/set_summary_channel` `/set_reminders`")
	}
	return b.String()
}

func configText(s models.Settings, stats *standup.DayStats) string {
	channel := "not set"
	if s.SummaryChannelID != "" {
		channel = "<#" + s.SummaryChannelID + ">"
	}
	return fmt.Sprintf(
		"**Standup settings**\nWindow: %s-%s\nTimezone: %s\nReminders: %s\nSummary channel: %s\nRegistered users: %d\nCurrent day: %s (%s)",
		s.StartTime, s.EndTime, s.Timezone, onOff(s.RemindersEnabled), channel,
		stats.Registered, stats.Day.Key, stats.Phase,
	)
}

func statsText(st *standup.DayStats) string {
	rows := [][]string{
		{"Registered", strconv.Itoa(st.Registered)},
		{"Submitted", strconv.Itoa(st.Submitted)},
		{"No update", strconv.Itoa(st.NoUpdate)},
		{"In progress", strconv.Itoa(st.Collecting)},
		{"Not started", strconv.Itoa(st.NotStarted)},
		{"Blocked", strconv.Itoa(len(st.Blocked))},
	}

	var b strings.Builder
	fmt.Fprintf(&b, "**Standup %s** (%s, %s)\n", st.Day.Key, standup.WindowLabel(st.Day), st.Phase)
	b.WriteString(formatTable([]string{"METRIC", "COUNT"}, rows))
	fmt.Fprintf(&b, "\nReminder sent: %s\n", onOff(st.Reminded))
	if len(st.Blocked) > 0 {
		fmt.Fprintf(&b, "🚧 Blocked: %s\n", strings.Join(st.Blocked, ", "))
	}
	if len(st.Missing) > 0 {
		fmt.Fprintf(&b, "❌ Missing: %s\n", strings.Join(st.Missing, ", "))
	}
	b.WriteString(summaryState(st.Summary))
	return b.String()
}

func summaryState(rec *models.Summary) string {
	if rec == nil {
		return "Summary: not generated"
	}
	line := fmt.Sprintf("Summary: %s (attempts %d, posted=%t)", rec.Status, rec.Attempts, rec.PostedAt != nil)
	if rec.Status == models.SummaryFailed && rec.Error != "" {
		line += "\nLast error: " + rec.Error
	}
	if rec.PostError != "" {
		line += "\nPost error: " + rec.PostError
	}
	return line
}

func missingText(dayKey string, missing []standup.Missing) string {
	if len(missing) == 0 {
		return fmt.Sprintf("✅ Everyone has finished their standup for %s", dayKey)
	}
	rows := make([][]string, 0, len(missing))
	for _, m := range missing {
		rows = append(rows, []string{
			truncateString(m.Username, 20),
			m.State.String(),
			fmt.Sprintf("%d/%d", m.Answered, models.QuestionCount),
		})
	}
	return fmt.Sprintf("**Missing standups for %s** (%d)\n%s", dayKey, len(missing),
		formatTable([]string{"USER", "STATE", "ANSWERED"}, rows))
}

func responsesText(dayKey string, responses []models.Response) string {
	if len(responses) == 0 {
		return fmt.Sprintf("📋 No responses for %s yet", dayKey)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "**Standup responses for %s** (%d)\n", dayKey, len(responses))
	for _, r := range responses {
		if r.NoUpdate {
			fmt.Fprintf(&b, "\n**%s**: no update\n", r.Username)
			continue
		}
		fmt.Fprintf(&b, "\n**%s** [Mood: %s]\n", r.Username, moodText(r.Answers))
		fmt.Fprintf(&b, "- Yesterday: %s\n", r.Answers.Yesterday)
		fmt.Fprintf(&b, "- Today: %s\n", r.Answers.Today)
		fmt.Fprintf(&b, "- Blockers: %s\n", r.Answers.Blockers)
	}
	return strings.TrimRight(b.String(), "\n")
}

func summaryText(dayKey string, rec *models.Summary) string {
	if rec == nil {
		return fmt.Sprintf("No summary for %s yet. It is generated once the window closes.", dayKey)
	}
	switch rec.Status {
	case models.SummaryPending:
		return fmt.Sprintf("⏳ The summary for %s is being generated.", dayKey)
	case models.SummaryFailed:
		return fmt.Sprintf("⚠️ The summary for %s failed: %s\nUse `/summarize_now date:%s` to retry.", dayKey, rec.Error, dayKey)
	}
	var b strings.Builder
	b.WriteString(rec.Text)
	switch {
	case rec.PostedAt != nil:
		fmt.Fprintf(&b, "\n\n_Posted to <#%s>_", rec.ChannelID)
	case rec.PostError != "":
		fmt.Fprintf(&b, "\n\n_Posting failed: %s_", rec.PostError)
	default:
		b.WriteString("\n\n_Not posted: no summary channel configured_")
	}
	return b.String()
}

// triggerText reports the outcome of a manual trigger.
func triggerText(what string, res *standup.TriggerResult, err error) string {
	var serr *standup.SummarizationError
	switch {
	case errors.Is(err, standup.ErrWindowClosed) && res != nil:
		return fmt.Sprintf("⏹️ %s skipped: the window for %s is closed.", what, res.Day.Key)
	case errors.As(err, &serr):
		return fmt.Sprintf("⚠️ %s failed for %s: %v\nRun it again to retry.", what, serr.DayKey, serr.Err)
	case err != nil:
		return "❌ Error: " + errorText(err)
	}

	switch res.Outcome {
	case standup.OutcomeNotYetTime:
		return fmt.Sprintf("⏳ %s not due yet for %s (%s, %s).", what, res.Day.Key, standup.WindowLabel(res.Day), res.Phase)
	case standup.OutcomeAlreadyDone:
		return fmt.Sprintf("✅ %s already done for %s.", what, res.Day.Key)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "✅ %s done for %s.", what, res.Day.Key)
	if res.Summary == nil {
		fmt.Fprintf(&b, " Delivered to %d user(s).", res.Delivered)
	}
	if len(res.Failures) > 0 {
		names := make([]string, 0, len(res.Failures))
		for _, f := range res.Failures {
			names = append(names, f.Username)
		}
		fmt.Fprintf(&b, "\n⚠️ Could not reach %d user(s): %s", len(res.Failures), strings.Join(names, ", "))
	}
	if res.Summary != nil {
		b.WriteString("\n")
		b.WriteString(summaryState(res.Summary))
	}
	return b.String()
}
