package bot

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"standupbot/internal/standup"

	"github.com/bwmarrin/discordgo"
)

// Discord rejects message content longer than this.
const messageLimit = 2000

// respondWithError edits the deferred response into an error message.
func respondWithError(s *discordgo.Session, i *discordgo.InteractionCreate, errMsg string) {
	respondWithSuccess(s, i, "❌ Error: "+errMsg)
}

// respondWithSuccess edits the deferred response. Content over the message
// limit continues in ephemeral follow-ups.
func respondWithSuccess(s *discordgo.Session, i *discordgo.InteractionCreate, msg string) {
	chunks := splitMessage(msg, messageLimit)
	first := chunks[0]
	if _, err := s.InteractionResponseEdit(i.Interaction, &discordgo.WebhookEdit{Content: &first}); err != nil {
		return
	}
	for _, chunk := range chunks[1:] {
		if _, err := s.FollowupMessageCreate(i.Interaction, true, &discordgo.WebhookParams{
			Content: chunk,
			Flags:   discordgo.MessageFlagsEphemeral,
		}); err != nil {
			return
		}
	}
}

func respondWithFile(s *discordgo.Session, i *discordgo.InteractionCreate, msg string, file *discordgo.File) error {
	_, err := s.InteractionResponseEdit(i.Interaction, &discordgo.WebhookEdit{
		Content: &msg,
		Files:   []*discordgo.File{file},
	})
	return err
}

// interactionUser returns the id and username behind a guild or DM interaction.
func interactionUser(i *discordgo.InteractionCreate) (string, string) {
	if i.Member != nil && i.Member.User != nil {
		return i.Member.User.ID, i.Member.User.Username
	}
	if i.User != nil {
		return i.User.ID, i.User.Username
	}
	return "", ""
}

// isAdmin reports whether the member may run admin commands.
func isAdmin(member *discordgo.Member) bool {
	if member == nil {
		return false
	}
	return member.Permissions&(discordgo.PermissionAdministrator|discordgo.PermissionManageServer) != 0
}

func (b *Bot) logCommand(i *discordgo.InteractionCreate, commandName string) {
	id, name := interactionUser(i)

	var params []string
	for _, opt := range i.ApplicationCommandData().Options {
		params = append(params, fmt.Sprintf("%s:%v", opt.Name, opt.Value))
	}

	b.log.Info().
		Str("user", id).
		Str("username", name).
		Str("guild", i.GuildID).
		Str("command", commandName).
		Strs("params", params).
		Msg("command executed")
}

// options indexes the top-level options of a command by name.
func options(i *discordgo.InteractionCreate) map[string]*discordgo.ApplicationCommandInteractionDataOption {
	opts := make(map[string]*discordgo.ApplicationCommandInteractionDataOption)
	for _, opt := range i.ApplicationCommandData().Options {
		opts[opt.Name] = opt
	}
	return opts
}

func stringOption(opts map[string]*discordgo.ApplicationCommandInteractionDataOption, name string) string {
	if opt, ok := opts[name]; ok {
		return strings.TrimSpace(opt.StringValue())
	}
	return ""
}

// errorText turns an engine error into a message for the user.
func errorText(err error) string {
	var verr *standup.ValidationError
	switch {
	case errors.As(err, &verr):
		if verr.Field == "user" {
			return "You're not registered for standups. Use `/register` first."
		}
		return verr.Reason
	case errors.Is(err, standup.ErrWindowClosed):
		return "The standup window is closed right now."
	default:
		var serr *standup.StorageError
		if errors.As(err, &serr) {
			return "The standup store is unavailable, please try again later."
		}
		return err.Error()
	}
}

// splitMessage cuts text into chunks of at most limit bytes, preferring
// line breaks and never splitting a rune.
func splitMessage(text string, limit int) []string {
	if len(text) <= limit {
		return []string{text}
	}
	var chunks []string
	for len(text) > limit {
		cut := strings.LastIndex(text[:limit], "\n")
		if cut <= 0 {
			cut = limit
			for cut > 0 && !utf8.RuneStart(text[cut]) {
				cut--
			}
		}
		chunks = append(chunks, text[:cut])
		text = strings.TrimPrefix(text[cut:], "\n")
	}
	if text != "" {
		chunks = append(chunks, text)
	}
	return chunks
}

// formatTable creates a Discord-friendly table with fixed-width columns
func formatTable(headers []string, rows [][]string) string {
	widths := make([]int, len(headers))
	for i, header := range headers {
		widths[i] = utf8.RuneCountInString(header)
	}

	for _, row := range rows {
		for i, cell := range row {
			if n := utf8.RuneCountInString(cell); n > widths[i] {
				widths[i] = n
			}
		}
	}

	var result strings.Builder

	result.WriteString("```\n")
	for i, header := range headers {
		result.WriteString(fmt.Sprintf("%-*s", widths[i]+2, header))
	}
	result.WriteString("\n")

	for _, width := range widths {
		result.WriteString(strings.Repeat("-", width+2))
	}
	result.WriteString("\n")

	for _, row := range rows {
		for i, cell := range row {
			result.WriteString(fmt.Sprintf("%-*s", widths[i]+2, cell))
		}
		result.WriteString("\n")
	}
	result.WriteString("```")

	return result.String()
}

// Helper function to truncate strings that are too long
func truncateString(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	return string(r[:maxLen-3]) + "..."
}
