package bot

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"testing"
	"time"

	"standupbot/internal/db/models"
	"standupbot/internal/standup"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestSplitMessage(t *testing.T) {
	assert.Equal(t, []string{"short"}, splitMessage("short", 10))

	chunks := splitMessage("line one\nline two\nline three", 12)
	assert.Equal(t, []string{"line one", "line two", "line three"}, chunks)

	long := strings.Repeat("é", 30)
	chunks = splitMessage(long, 11)
	for _, c := range chunks {
		assert.LessOrEqual(t, len(c), 11)
		assert.True(t, strings.HasPrefix(c, "é"))
	}
	assert.Equal(t, long, strings.Join(chunks, ""))
}

func TestFormatTable(t *testing.T) {
	out := formatTable([]string{"USER", "STATE"}, [][]string{{"alice", "submitted"}, {"bob", "no update"}})

	lines := strings.Split(out, "\n")
	require.Len(t, lines, 6)
	assert.Equal(t, "```", lines[0])
	assert.Equal(t, "USER   STATE      ", lines[1])
	assert.Equal(t, "alice  submitted  ", lines[3])
	assert.Equal(t, "```", lines[5])
}

func TestTruncateString(t *testing.T) {
	assert.Equal(t, "alice", truncateString("alice", 10))
	assert.Equal(t, "abcdefg...", truncateString("abcdefghijklmnop", 10))
	assert.Equal(t, "ééé...", truncateString("éééééééé", 6))
}

func TestIsAdmin(t *testing.T) {
	assert.False(t, isAdmin(nil))
	assert.False(t, isAdmin(&discordgo.Member{Permissions: discordgo.PermissionSendMessages}))
	assert.True(t, isAdmin(&discordgo.Member{Permissions: discordgo.PermissionManageServer}))
	assert.True(t, isAdmin(&discordgo.Member{Permissions: discordgo.PermissionAdministrator}))
}

func TestErrorText(t *testing.T) {
	assert.Contains(t, errorText(&standup.ValidationError{Field: "user", Reason: "not registered"}), "/register")
	assert.Equal(t, "mood must be 1-5", errorText(&standup.ValidationError{Field: "mood", Reason: "mood must be 1-5"}))
	assert.Contains(t, errorText(fmt.Errorf("answer: %w", standup.ErrWindowClosed)), "closed")
	assert.Contains(t, errorText(&standup.StorageError{Op: "get user", Err: errors.New("conn refused")}), "unavailable")
}

func TestClassifyDeliveryError(t *testing.T) {
	closedDMs := &discordgo.RESTError{
		Response: &http.Response{StatusCode: http.StatusBadRequest, Status: "400 Bad Request"},
		Message:  &discordgo.APIErrorMessage{Code: discordgo.ErrCodeCannotSendMessagesToThisUser},
	}
	assert.ErrorIs(t, classifyDeliveryError(closedDMs), standup.ErrUndeliverable)

	forbidden := &discordgo.RESTError{Response: &http.Response{StatusCode: http.StatusForbidden, Status: "403 Forbidden"}}
	assert.ErrorIs(t, classifyDeliveryError(forbidden), standup.ErrUndeliverable)

	transient := errors.New("connection reset")
	err := classifyDeliveryError(transient)
	assert.Equal(t, transient, err)
	assert.NotErrorIs(t, err, standup.ErrUndeliverable)
}

func customIDs(rows []discordgo.MessageComponent) []string {
	var ids []string
	for _, row := range rows {
		for _, c := range row.(discordgo.ActionsRow).Components {
			ids = append(ids, c.(discordgo.Button).CustomID)
		}
	}
	return ids
}

func TestPromptComponents(t *testing.T) {
	first := standup.Prompt{Question: models.QuestionYesterday, OfferNoUpdate: true}
	assert.Equal(t, []string{noUpdateButtonID}, customIDs(promptComponents(first)))

	today := standup.Prompt{Question: models.QuestionToday}
	assert.Empty(t, promptComponents(today))

	mood := standup.Prompt{Question: models.QuestionMood}
	assert.Equal(t, []string{
		"standup_mood_1", "standup_mood_2", "standup_mood_3", "standup_mood_4", "standup_mood_5", "standup_mood_skip",
	}, customIDs(promptComponents(mood)))
}

func TestTimezoneChoices(t *testing.T) {
	choices := timezoneChoices("europe/l")
	require.Len(t, choices, 1)
	assert.Equal(t, "Europe/London", choices[0].Value)

	assert.Len(t, timezoneChoices(""), len(commonTimezones))

	choices = timezoneChoices("Asia/Kathmandu")
	require.NotEmpty(t, choices)
	assert.Equal(t, "Asia/Kathmandu", choices[0].Value)

	assert.Empty(t, timezoneChoices("Mars/Olympus"))
}

func TestCommandsHaveHandlers(t *testing.T) {
	b := &Bot{}
	handlers := b.handlers()
	for _, cmd := range commands {
		assert.Contains(t, handlers, cmd.Name)
		if adminCommands[cmd.Name] {
			require.NotNil(t, cmd.DefaultMemberPermissions, cmd.Name)
		}
	}
	assert.Len(t, handlers, len(commands))
}

func testDay() models.StandupDay {
	start := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	return models.StandupDay{
		Key:        "2026-03-02",
		Timezone:   "UTC",
		StartsAt:   start,
		MidpointAt: start.Add(4 * time.Hour),
		EndsAt:     start.Add(8 * time.Hour),
		OpenedAt:   start,
	}
}

func TestStatusText(t *testing.T) {
	st := &standup.UserStatus{
		Day:      testDay(),
		Phase:    standup.PhaseCollecting,
		State:    standup.StateCollecting,
		Answers:  models.Answers{Yesterday: "fixed the login bug"},
		Next:     models.QuestionToday,
		Answered: 1,
	}
	out := statusText(st)
	assert.Contains(t, out, "09:00-17:00 UTC")
	assert.Contains(t, out, "in progress")
	assert.Contains(t, out, "- yesterday: fixed the login bug")
	assert.Contains(t, out, models.QuestionToday.Prompt())
}

func TestTriggerText(t *testing.T) {
	res := &standup.TriggerResult{
		Outcome:   standup.OutcomePerformed,
		Day:       testDay(),
		Delivered: 2,
		Failures:  []standup.DeliveryFailure{{UserID: "3", Username: "carol", Err: standup.ErrUndeliverable}},
	}
	out := triggerText("Collection", res, nil)
	assert.Contains(t, out, "Delivered to 2 user(s)")
	assert.Contains(t, out, "Could not reach 1 user(s): carol")

	res = &standup.TriggerResult{Outcome: standup.OutcomeAlreadyDone, Day: testDay()}
	assert.Contains(t, triggerText("Reminder", res, nil), "already done")

	assert.Contains(t, triggerText("Collection", res, standup.ErrWindowClosed), "closed")

	serr := &standup.SummarizationError{DayKey: "2026-03-02", Err: errors.New("quota")}
	assert.Contains(t, triggerText("Summary", res, serr), "Run it again")
}

func TestSummaryText(t *testing.T) {
	assert.Contains(t, summaryText("2026-03-02", nil), "No summary")

	failed := &models.Summary{Status: models.SummaryFailed, Error: "quota"}
	assert.Contains(t, summaryText("2026-03-02", failed), "/summarize_now date:2026-03-02")

	kept := &models.Summary{Status: models.SummaryDone, Text: "📅 report"}
	out := summaryText("2026-03-02", kept)
	assert.True(t, strings.HasPrefix(out, "📅 report"))
	assert.Contains(t, out, "no summary channel configured")

	now := time.Now()
	posted := &models.Summary{Status: models.SummaryDone, Text: "📅 report", ChannelID: "42", PostedAt: &now}
	assert.Contains(t, summaryText("2026-03-02", posted), "<#42>")
}

func TestBuildExport(t *testing.T) {
	mood := 4
	edited := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)
	responses := []models.Response{
		{
			UserID:      "1",
			Username:    "alice",
			Answers:     models.Answers{Yesterday: "billing", Today: "payments", Blockers: "none", Mood: &mood},
			SubmittedAt: time.Date(2026, 3, 2, 9, 30, 0, 0, time.UTC),
			EditedAt:    &edited,
		},
		{UserID: "2", Username: "bob", NoUpdate: true, SubmittedAt: time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)},
	}
	missing := []standup.Missing{{UserID: "3", Username: "carol", State: standup.StateCollecting, Answered: 2}}

	buf, err := buildExport("2026-03-02", responses, missing)
	require.NoError(t, err)

	f, err := excelize.OpenReader(buf)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{"Responses 2026-03-02", "Missing 2026-03-02"}, f.GetSheetList())

	rows, err := f.GetRows("Responses 2026-03-02")
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, responseColumns, rows[0])
	assert.Equal(t, []string{"alice", "1", "FALSE", "billing", "payments", "none", "4", "2026-03-02 09:30:00", "2026-03-02 12:00:00"}, rows[1])
	assert.Equal(t, "TRUE", rows[2][2])

	rows, err = f.GetRows("Missing 2026-03-02")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, []string{"carol", "3", "in progress", "2"}, rows[1])
}
