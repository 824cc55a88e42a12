package bot

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"standupbot/internal/db/models"
	"standupbot/internal/standup"

	"github.com/bwmarrin/discordgo"
)

const (
	noUpdateButtonID = "standup_noupdate"
	moodButtonPrefix = "standup_mood_"
	moodSkipValue    = "skip"
)

// Messenger delivers standup prompts as direct messages and summaries to
// a guild channel.
type Messenger struct {
	session *discordgo.Session
}

var _ standup.Messenger = (*Messenger)(nil)

func NewMessenger(session *discordgo.Session) *Messenger {
	return &Messenger{session: session}
}

func (m *Messenger) SendDirect(ctx context.Context, userID string, p standup.Prompt) error {
	ch, err := m.session.UserChannelCreate(userID, discordgo.WithContext(ctx))
	if err != nil {
		return classifyDeliveryError(err)
	}
	_, err = m.session.ChannelMessageSendComplex(ch.ID, &discordgo.MessageSend{
		Content:    p.Text,
		Components: promptComponents(p),
	}, discordgo.WithContext(ctx))
	if err != nil {
		return classifyDeliveryError(err)
	}
	return nil
}

func (m *Messenger) SendToChannel(ctx context.Context, channelID, text string) error {
	for _, chunk := range splitMessage(text, messageLimit) {
		if _, err := m.session.ChannelMessageSend(channelID, chunk, discordgo.WithContext(ctx)); err != nil {
			return fmt.Errorf("send to channel %s: %w", channelID, err)
		}
	}
	return nil
}

// classifyDeliveryError marks closed DMs and blocked bots as undeliverable.
func classifyDeliveryError(err error) error {
	var rest *discordgo.RESTError
	if errors.As(err, &rest) {
		if rest.Message != nil && rest.Message.Code == discordgo.ErrCodeCannotSendMessagesToThisUser {
			return fmt.Errorf("%w: %v", standup.ErrUndeliverable, err)
		}
		if rest.Response != nil && rest.Response.StatusCode == http.StatusForbidden {
			return fmt.Errorf("%w: %v", standup.ErrUndeliverable, err)
		}
	}
	return err
}

// promptComponents attaches the one-click actions a prompt offers.
func promptComponents(p standup.Prompt) []discordgo.MessageComponent {
	var rows []discordgo.MessageComponent

	if p.Question == models.QuestionMood {
		buttons := make([]discordgo.MessageComponent, 0, 6)
		for n := 1; n <= 5; n++ {
			buttons = append(buttons, discordgo.Button{
				Label:    strconv.Itoa(n),
				Style:    discordgo.PrimaryButton,
				CustomID: moodButtonPrefix + strconv.Itoa(n),
			})
		}
		buttons = append(buttons, discordgo.Button{
			Label:    "Skip",
			Style:    discordgo.SecondaryButton,
			CustomID: moodButtonPrefix + moodSkipValue,
		})
		rows = append(rows, discordgo.ActionsRow{Components: buttons})
	}

	if p.OfferNoUpdate {
		rows = append(rows, discordgo.ActionsRow{Components: []discordgo.MessageComponent{
			discordgo.Button{
				Label:    "No update today",
				Style:    discordgo.SecondaryButton,
				CustomID: noUpdateButtonID,
			},
		}})
	}

	return rows
}
