package bot

import (
	"context"
	"fmt"
	"strings"

	"standupbot/internal/db/models"
	"standupbot/internal/standup"

	"github.com/bwmarrin/discordgo"
)

type commandHandler func(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate)

var (
	dateOption = &discordgo.ApplicationCommandOption{
		Type:        discordgo.ApplicationCommandOptionString,
		Name:        "date",
		Description: "Standup day (YYYY-MM-DD), defaults to the current one",
		Required:    false,
	}

	questionChoices = []*discordgo.ApplicationCommandOptionChoice{
		{Name: "Yesterday", Value: models.QuestionYesterday.String()},
		{Name: "Today", Value: models.QuestionToday.String()},
		{Name: "Blockers", Value: models.QuestionBlockers.String()},
		{Name: "Mood", Value: models.QuestionMood.String()},
	}

	commands = []*discordgo.ApplicationCommand{
		{
			Name:        "register",
			Description: "Join the daily standup",
		},
		{
			Name:        "unregister",
			Description: "Stop receiving daily standup questions",
		},
		{
			Name:        "my_status",
			Description: "Show your standup progress for the current day",
		},
		{
			Name:        "no_update",
			Description: "Report that you have nothing to share today",
		},
		{
			Name:        "edit_standup",
			Description: "Change one of today's answers",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "question",
					Description: "Question to change",
					Required:    true,
					Choices:     questionChoices,
				},
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "answer",
					Description: "New answer (mood: 1-5 or skip)",
					Required:    true,
				},
			},
		},
		{
			Name:        "standup_help",
			Description: "List standup commands",
		},
		{
			Name:                     "config",
			Description:              "Show standup settings",
			DefaultMemberPermissions: &adminPermission,
		},
		{
			Name:                     "status",
			Description:              "Show standup stats for a day",
			DefaultMemberPermissions: &adminPermission,
			Options:                  []*discordgo.ApplicationCommandOption{dateOption},
		},
		{
			Name:                     "missing",
			Description:              "List users who have not finished their standup",
			DefaultMemberPermissions: &adminPermission,
			Options:                  []*discordgo.ApplicationCommandOption{dateOption},
		},
		{
			Name:                     "responses",
			Description:              "Show the submitted standups of a day",
			DefaultMemberPermissions: &adminPermission,
			Options:                  []*discordgo.ApplicationCommandOption{dateOption},
		},
		{
			Name:                     "summary",
			Description:              "Show the summary of a day",
			DefaultMemberPermissions: &adminPermission,
			Options:                  []*discordgo.ApplicationCommandOption{dateOption},
		},
		{
			Name:                     "collect_now",
			Description:              "Send the standup questions now",
			DefaultMemberPermissions: &adminPermission,
		},
		{
			Name:                     "remind_now",
			Description:              "Send the standup reminder now",
			DefaultMemberPermissions: &adminPermission,
		},
		{
			Name:                     "summarize_now",
			Description:              "Generate and post the summary of a closed day",
			DefaultMemberPermissions: &adminPermission,
			Options:                  []*discordgo.ApplicationCommandOption{dateOption},
		},
		{
			Name:                     "set_time",
			Description:              "Set the standup window",
			DefaultMemberPermissions: &adminPermission,
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "start",
					Description: "Window start (HH:MM)",
					Required:    true,
				},
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "end",
					Description: "Window end (HH:MM)",
					Required:    true,
				},
			},
		},
		{
			Name:                     "set_timezone",
			Description:              "Set the standup timezone",
			DefaultMemberPermissions: &adminPermission,
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:         discordgo.ApplicationCommandOptionString,
					Name:         "zone",
					Description:  "Timezone (e.g., America/New_York, Europe/London)",
					Required:     true,
					Autocomplete: true,
				},
			},
		},
		{
			Name:                     "set_summary_channel",
			Description:              "Set the channel summaries are posted to",
			DefaultMemberPermissions: &adminPermission,
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:         discordgo.ApplicationCommandOptionChannel,
					Name:         "channel",
					Description:  "Summary channel",
					Required:     true,
					ChannelTypes: []discordgo.ChannelType{discordgo.ChannelTypeGuildText},
				},
			},
		},
		{
			Name:                     "set_reminders",
			Description:              "Turn the midpoint reminder on or off",
			DefaultMemberPermissions: &adminPermission,
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionBoolean,
					Name:        "enabled",
					Description: "Send reminders",
					Required:    true,
				},
			},
		},
		{
			Name:                     "export",
			Description:              "Download a day's standups as a spreadsheet",
			DefaultMemberPermissions: &adminPermission,
			Options:                  []*discordgo.ApplicationCommandOption{dateOption},
		},
	}

	adminCommands = map[string]bool{
		"config":              true,
		"status":              true,
		"missing":             true,
		"responses":           true,
		"summary":             true,
		"collect_now":         true,
		"remind_now":          true,
		"summarize_now":       true,
		"set_time":            true,
		"set_timezone":        true,
		"set_summary_channel": true,
		"set_reminders":       true,
		"export":              true,
	}

	// Permission for admin commands (Manage Server permission)
	adminPermission = int64(discordgo.PermissionManageServer)

	commonTimezones = []string{
		"UTC",
		"Africa/Cairo",
		"Africa/Lagos",
		"America/Chicago",
		"America/Denver",
		"America/Los_Angeles",
		"America/New_York",
		"America/Sao_Paulo",
		"America/Toronto",
		"Asia/Dubai",
		"Asia/Kolkata",
		"Asia/Shanghai",
		"Asia/Singapore",
		"Asia/Tokyo",
		"Australia/Sydney",
		"Europe/Berlin",
		"Europe/Istanbul",
		"Europe/London",
		"Europe/Madrid",
		"Europe/Moscow",
		"Europe/Paris",
		"Pacific/Auckland",
	}
)

func (b *Bot) handlers() map[string]commandHandler {
	return map[string]commandHandler{
		"register":            b.handleRegister,
		"unregister":          b.handleUnregister,
		"my_status":           b.handleMyStatus,
		"no_update":           b.handleNoUpdate,
		"edit_standup":        b.handleEditStandup,
		"standup_help":        b.handleHelp,
		"config":              b.handleConfig,
		"status":              b.handleStatus,
		"missing":             b.handleMissing,
		"responses":           b.handleResponses,
		"summary":             b.handleSummary,
		"collect_now":         b.handleCollectNow,
		"remind_now":          b.handleRemindNow,
		"summarize_now":       b.handleSummarizeNow,
		"set_time":            b.handleSetTime,
		"set_timezone":        b.handleSetTimezone,
		"set_summary_channel": b.handleSetSummaryChannel,
		"set_reminders":       b.handleSetReminders,
		"export":              b.handleExport,
	}
}

func (b *Bot) handleAutocomplete(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if i.ApplicationCommandData().Name != "set_timezone" {
		return
	}

	var input string
	for _, opt := range i.ApplicationCommandData().Options {
		if opt.Name == "zone" && opt.Focused {
			input = opt.StringValue()
		}
	}

	err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionApplicationCommandAutocompleteResult,
		Data: &discordgo.InteractionResponseData{
			Choices: timezoneChoices(input),
		},
	})
	if err != nil {
		b.log.Warn().Err(err).Msg("error responding to autocomplete")
	}
}

// timezoneChoices filters the suggested zones by input. A valid zone typed
// in full is offered even when it is not in the list.
func timezoneChoices(input string) []*discordgo.ApplicationCommandOptionChoice {
	input = strings.TrimSpace(input)
	needle := strings.ToLower(input)

	var choices []*discordgo.ApplicationCommandOptionChoice
	seen := false
	for _, tz := range commonTimezones {
		if strings.Contains(strings.ToLower(tz), needle) {
			choices = append(choices, &discordgo.ApplicationCommandOptionChoice{Name: tz, Value: tz})
			if tz == input {
				seen = true
			}
		}
		if len(choices) >= 25 { // Discord limit
			break
		}
	}
	if !seen && input != "" && len(choices) < 25 {
		if _, err := standup.LoadTimezone(input); err == nil {
			choices = append([]*discordgo.ApplicationCommandOptionChoice{{Name: input, Value: input}}, choices...)
		}
	}
	return choices
}

func (b *Bot) handleRegister(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate) {
	userID, username := interactionUser(i)
	changed, err := b.engine.Register(ctx, userID, username)
	if err != nil {
		respondWithError(s, i, errorText(err))
		return
	}
	if !changed {
		respondWithSuccess(s, i, "✅ You're already registered for the daily standup.")
		return
	}

	day, _, err := b.engine.ActiveDay(ctx)
	if err != nil {
		respondWithSuccess(s, i, "✅ You're registered for the daily standup.")
		return
	}
	respondWithSuccess(s, i, fmt.Sprintf(
		"✅ You're registered for the daily standup.\nQuestions arrive by direct message at the start of each window (%s).",
		standup.WindowLabel(day),
	))
}

func (b *Bot) handleUnregister(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate) {
	userID, _ := interactionUser(i)
	changed, err := b.engine.Unregister(ctx, userID)
	if err != nil {
		respondWithError(s, i, errorText(err))
		return
	}
	if !changed {
		respondWithSuccess(s, i, "You're not registered for the daily standup.")
		return
	}
	respondWithSuccess(s, i, "👋 You've been removed from the daily standup. Use `/register` to rejoin.")
}

func (b *Bot) handleMyStatus(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate) {
	userID, _ := interactionUser(i)
	st, err := b.engine.GetStatus(ctx, userID)
	if err != nil {
		respondWithError(s, i, errorText(err))
		return
	}
	open := st.Phase == standup.PhaseCollecting || st.Phase == standup.PhasePastMidpoint
	if st.State != standup.StateCollecting || !open {
		respondWithSuccess(s, i, statusText(st))
		return
	}
	if err := b.messenger.SendDirect(ctx, userID, standup.ResumePrompt(st)); err != nil {
		b.log.Warn().Err(err).Str("user", userID).Msg("error resending standup question")
		respondWithSuccess(s, i, statusText(st))
		return
	}
	respondWithSuccess(s, i, statusText(st)+"\n\n📬 Sent your next question to your DMs.")
}

func (b *Bot) handleNoUpdate(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate) {
	userID, _ := interactionUser(i)
	st, err := b.engine.MarkNoUpdate(ctx, userID)
	if err != nil {
		respondWithError(s, i, errorText(err))
		return
	}
	respondWithSuccess(s, i, noUpdateText(st))
}

func (b *Bot) handleEditStandup(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate) {
	opts := options(i)
	q, err := models.ParseQuestion(stringOption(opts, "question"))
	if err != nil {
		respondWithError(s, i, err.Error())
		return
	}

	userID, _ := interactionUser(i)
	st, err := b.engine.EditAnswer(ctx, userID, q, stringOption(opts, "answer"))
	if err != nil {
		respondWithError(s, i, errorText(err))
		return
	}
	respondWithSuccess(s, i, fmt.Sprintf("✏️ Updated your %s answer.\n\n%s", q, statusText(st)))
}

func (b *Bot) handleHelp(_ context.Context, s *discordgo.Session, i *discordgo.InteractionCreate) {
	respondWithSuccess(s, i, helpText(isAdmin(i.Member)))
}

func (b *Bot) handleConfig(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate) {
	stats, err := b.engine.Stats(ctx, "")
	if err != nil {
		respondWithError(s, i, errorText(err))
		return
	}
	respondWithSuccess(s, i, configText(b.engine.Settings(), stats))
}

func (b *Bot) handleStatus(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate) {
	stats, err := b.engine.Stats(ctx, stringOption(options(i), "date"))
	if err != nil {
		respondWithError(s, i, errorText(err))
		return
	}
	respondWithSuccess(s, i, statsText(stats))
}

func (b *Bot) handleMissing(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate) {
	date := stringOption(options(i), "date")
	missing, err := b.engine.ListMissing(ctx, date)
	if err != nil {
		respondWithError(s, i, errorText(err))
		return
	}
	respondWithSuccess(s, i, missingText(b.dayLabel(ctx, date), missing))
}

func (b *Bot) handleResponses(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate) {
	date := stringOption(options(i), "date")
	responses, err := b.engine.ListResponses(ctx, date)
	if err != nil {
		respondWithError(s, i, errorText(err))
		return
	}
	respondWithSuccess(s, i, responsesText(b.dayLabel(ctx, date), responses))
}

func (b *Bot) handleSummary(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate) {
	date := stringOption(options(i), "date")
	rec, err := b.engine.Summary(ctx, date)
	if err != nil {
		respondWithError(s, i, errorText(err))
		return
	}
	respondWithSuccess(s, i, summaryText(b.dayLabel(ctx, date), rec))
}

func (b *Bot) handleCollectNow(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate) {
	res, err := b.engine.CollectNow(ctx)
	respondWithSuccess(s, i, triggerText("Collection", res, err))
}

func (b *Bot) handleRemindNow(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate) {
	res, err := b.engine.RemindNow(ctx)
	respondWithSuccess(s, i, triggerText("Reminder", res, err))
}

func (b *Bot) handleSummarizeNow(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate) {
	res, err := b.engine.SummarizeNow(ctx, stringOption(options(i), "date"))
	respondWithSuccess(s, i, triggerText("Summary", res, err))
}

func (b *Bot) handleSetTime(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate) {
	opts := options(i)
	start, end := stringOption(opts, "start"), stringOption(opts, "end")
	if err := b.engine.SetWindow(ctx, start, end); err != nil {
		respondWithError(s, i, errorText(err))
		return
	}
	settings := b.engine.Settings()
	respondWithSuccess(s, i, fmt.Sprintf("🕘 Standup window set to %s-%s %s. Days already open keep their window.",
		settings.StartTime, settings.EndTime, settings.Timezone))
}

func (b *Bot) handleSetTimezone(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate) {
	zone := stringOption(options(i), "zone")
	if err := b.engine.SetTimezone(ctx, zone); err != nil {
		if standup.IsValidation(err) {
			respondWithError(s, i, "Invalid timezone. Please use a valid timezone like 'America/New_York' or 'Europe/London'")
			return
		}
		respondWithError(s, i, errorText(err))
		return
	}
	respondWithSuccess(s, i, fmt.Sprintf("🌍 Standup timezone set to %s", zone))
}

func (b *Bot) handleSetSummaryChannel(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate) {
	opt, ok := options(i)["channel"]
	if !ok {
		respondWithError(s, i, "Missing channel")
		return
	}
	ch := opt.ChannelValue(nil)
	if err := b.engine.SetSummaryChannel(ctx, ch.ID); err != nil {
		respondWithError(s, i, errorText(err))
		return
	}
	respondWithSuccess(s, i, fmt.Sprintf("📣 Summaries will be posted to <#%s>", ch.ID))
}

func (b *Bot) handleSetReminders(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate) {
	opt, ok := options(i)["enabled"]
	if !ok {
		respondWithError(s, i, "Missing enabled flag")
		return
	}
	enabled := opt.BoolValue()
	if err := b.engine.SetRemindersEnabled(ctx, enabled); err != nil {
		respondWithError(s, i, errorText(err))
		return
	}
	respondWithSuccess(s, i, fmt.Sprintf("⏰ Midpoint reminders %s", onOff(enabled)))
}

func (b *Bot) handleExport(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate) {
	date := stringOption(options(i), "date")
	responses, err := b.engine.ListResponses(ctx, date)
	if err != nil {
		respondWithError(s, i, errorText(err))
		return
	}
	missing, err := b.engine.ListMissing(ctx, date)
	if err != nil {
		respondWithError(s, i, errorText(err))
		return
	}

	label := b.dayLabel(ctx, date)
	buf, err := buildExport(label, responses, missing)
	if err != nil {
		b.log.Error().Err(err).Str("day", label).Msg("export failed")
		respondWithError(s, i, "Could not build the export")
		return
	}

	file := &discordgo.File{
		Name:        fmt.Sprintf("standup_%s.xlsx", label),
		ContentType: xlsxContentType,
		Reader:      buf,
	}
	if err := respondWithFile(s, i, fmt.Sprintf("📎 Standup export for %s", label), file); err != nil {
		b.log.Error().Err(err).Str("day", label).Msg("sending export failed")
	}
}

// dayLabel is the key of the day a date option refers to.
func (b *Bot) dayLabel(ctx context.Context, date string) string {
	if date != "" {
		return date
	}
	day, _, err := b.engine.ActiveDay(ctx)
	if err != nil {
		return "today"
	}
	return day.Key
}

// handleComponent answers the buttons attached to standup prompts.
func (b *Bot) handleComponent(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate) {
	defer b.recoverPanic(s, i)

	userID, _ := interactionUser(i)
	customID := i.MessageComponentData().CustomID

	var (
		st  *standup.UserStatus
		err error
	)
	switch {
	case customID == noUpdateButtonID:
		st, err = b.engine.MarkNoUpdate(ctx, userID)
	case strings.HasPrefix(customID, moodButtonPrefix):
		st, err = b.engine.SubmitAnswer(ctx, userID, models.QuestionMood, strings.TrimPrefix(customID, moodButtonPrefix))
	default:
		return
	}

	reply := ""
	var components []discordgo.MessageComponent
	switch {
	case err != nil:
		reply = "❌ " + errorText(err)
	case st.State == standup.StateNoUpdate:
		reply = noUpdateText(st)
	case st.State.Terminal():
		reply = completionText(st)
	default:
		p := standup.QuestionPrompt(st)
		reply = p.Text
		components = promptComponents(p)
	}

	if err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content:    reply,
			Components: components,
		},
	}); err != nil {
		b.log.Warn().Err(err).Str("user", userID).Msg("error responding to component")
	}
}

// handleMessage feeds direct messages into the answer flow.
func (b *Bot) handleMessage(s *discordgo.Session, m *discordgo.MessageCreate) {
	if m.GuildID != "" || m.Author == nil || m.Author.Bot {
		return
	}
	if s.State != nil && s.State.User != nil && m.Author.ID == s.State.User.ID {
		return
	}

	ctx, done, ok := b.track()
	if !ok {
		return
	}
	defer done()

	st, err := b.engine.AnswerNext(ctx, m.Author.ID, m.Content)
	if err != nil {
		b.log.Debug().Err(err).Str("user", m.Author.ID).Msg("answer rejected")
		if _, err := s.ChannelMessageSend(m.ChannelID, "❌ "+errorText(err)); err != nil {
			b.log.Warn().Err(err).Str("user", m.Author.ID).Msg("error replying to answer")
		}
		return
	}

	if st.State.Terminal() {
		if _, err := s.ChannelMessageSend(m.ChannelID, completionText(st)); err != nil {
			b.log.Warn().Err(err).Str("user", m.Author.ID).Msg("error sending completion")
		}
		return
	}
	if err := b.messenger.SendDirect(ctx, m.Author.ID, standup.QuestionPrompt(st)); err != nil {
		b.log.Warn().Err(err).Str("user", m.Author.ID).Msg("error sending next question")
	}
}
