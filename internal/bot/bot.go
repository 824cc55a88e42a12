package bot

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"time"

	"standupbot/internal/config"
	"standupbot/internal/standup"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog"
)

const handlerTimeout = 30 * time.Second

type Bot struct {
	config     config.DiscordConfig
	session    *discordgo.Session
	engine     *standup.Engine
	messenger  *Messenger
	log        zerolog.Logger
	shutdownCh chan struct{}
	isShutdown bool
	mu         sync.Mutex
	wg         sync.WaitGroup
}

// NewSession creates the Discord session with the intents the standup flow
// needs: guild slash commands and direct message answers.
func NewSession(token string) (*discordgo.Session, error) {
	session, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("error creating Discord session: %w", err)
	}
	session.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildMessages |
		discordgo.IntentsDirectMessages |
		discordgo.IntentsMessageContent
	return session, nil
}

func New(cfg config.DiscordConfig, session *discordgo.Session, engine *standup.Engine, messenger *Messenger, logger *zerolog.Logger) *Bot {
	return &Bot{
		config:     cfg,
		session:    session,
		engine:     engine,
		messenger:  messenger,
		log:        logger.With().Str("component", "bot").Logger(),
		shutdownCh: make(chan struct{}),
	}
}

// Helper function to register commands for a guild
func (b *Bot) registerGuildCommands(guildID string) error {
	maxRetries := 3
	var lastErr error

	for i := 0; i < maxRetries; i++ {
		err := b.registerGuildCommandsOnce(guildID)
		if err == nil {
			return nil
		}
		lastErr = err
		b.log.Warn().Err(err).Str("guild", guildID).Int("attempt", i+1).Msg("registering commands failed")
		time.Sleep(time.Second * time.Duration(i+1))
	}
	return fmt.Errorf("failed to register commands after %d attempts: %w", maxRetries, lastErr)
}

func (b *Bot) registerGuildCommandsOnce(guildID string) error {
	existing, err := b.session.ApplicationCommands(b.config.ClientID, guildID)
	if err != nil {
		return fmt.Errorf("error getting existing commands: %w", err)
	}

	for _, v := range existing {
		if err := b.session.ApplicationCommandDelete(b.config.ClientID, guildID, v.ID); err != nil {
			b.log.Warn().Err(err).Str("guild", guildID).Str("command", v.Name).Msg("failed to delete command")
		}
	}

	for _, v := range commands {
		if _, err := b.session.ApplicationCommandCreate(b.config.ClientID, guildID, v); err != nil {
			return fmt.Errorf("error creating command %s: %w", v.Name, err)
		}
	}

	b.log.Info().Str("guild", guildID).Int("commands", len(commands)).Msg("registered commands")
	return nil
}

// guildIDs lists the guilds commands go to: the configured one, or every
// guild the session is in.
func (b *Bot) guildIDs() []string {
	if b.config.GuildID != "" {
		return []string{b.config.GuildID}
	}
	ids := make([]string, 0, len(b.session.State.Guilds))
	for _, g := range b.session.State.Guilds {
		ids = append(ids, g.ID)
	}
	return ids
}

// Start connects to Discord and serves interactions until ctx is done.
func (b *Bot) Start(ctx context.Context) error {
	b.log.Info().Msg("starting standup bot")

	for {
		if _, err := b.session.User("@me"); err != nil {
			b.log.Warn().Err(err).Msg("failed to reach Discord API, retrying in 5 seconds")
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(5 * time.Second):
			}
			continue
		}
		break
	}

	b.session.AddHandler(b.handleReady)
	b.session.AddHandler(b.handleInteraction)
	b.session.AddHandler(b.handleMessage)

	for {
		if err := b.session.Open(); err != nil {
			b.log.Warn().Err(err).Msg("error opening Discord session, retrying in 5 seconds")
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(5 * time.Second):
			}
			continue
		}
		b.log.Info().Str("session", b.session.State.SessionID).Msg("session opened")
		break
	}

	for _, id := range b.guildIDs() {
		if err := b.registerGuildCommands(id); err != nil {
			b.log.Error().Err(err).Str("guild", id).Msg("error registering commands")
		}
	}

	if b.config.GuildID == "" {
		b.session.AddHandler(b.handleGuildCreate)
	}

	b.log.Info().Msg("bot is now running")

	<-ctx.Done()
	return b.Shutdown()
}

// Shutdown performs a graceful shutdown of the bot
func (b *Bot) Shutdown() error {
	b.mu.Lock()
	if b.isShutdown {
		b.mu.Unlock()
		return nil
	}
	b.isShutdown = true
	close(b.shutdownCh)
	b.mu.Unlock()

	b.log.Info().Msg("waiting for active handlers to complete")
	b.wg.Wait()

	for _, id := range b.guildIDs() {
		registered, err := b.session.ApplicationCommands(b.config.ClientID, id)
		if err != nil {
			b.log.Warn().Err(err).Str("guild", id).Msg("error getting commands")
			continue
		}
		for _, cmd := range registered {
			if err := b.session.ApplicationCommandDelete(b.config.ClientID, id, cmd.ID); err != nil {
				b.log.Warn().Err(err).Str("guild", id).Str("command", cmd.Name).Msg("failed to remove command")
			}
		}
	}

	if err := b.session.Close(); err != nil {
		return fmt.Errorf("error closing Discord session: %w", err)
	}
	b.log.Info().Msg("shutdown completed")
	return nil
}

// track registers a running handler and returns its context. It reports
// false once shutdown has begun.
func (b *Bot) track() (context.Context, func(), bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.isShutdown {
		return nil, nil, false
	}
	b.wg.Add(1)
	ctx, cancel := context.WithTimeout(context.Background(), handlerTimeout)
	return ctx, func() {
		cancel()
		b.wg.Done()
	}, true
}

func (b *Bot) handleReady(_ *discordgo.Session, r *discordgo.Ready) {
	b.log.Info().Int("guilds", len(r.Guilds)).Str("user", r.User.Username).Msg("bot is ready")
}

func (b *Bot) handleGuildCreate(_ *discordgo.Session, g *discordgo.GuildCreate) {
	if err := b.registerGuildCommands(g.ID); err != nil {
		b.log.Error().Err(err).Str("guild", g.ID).Str("name", g.Name).Msg("error registering commands")
	}
}

func (b *Bot) recoverPanic(s *discordgo.Session, i *discordgo.InteractionCreate) {
	r := recover()
	if r == nil {
		return
	}
	buf := make([]byte, 4096)
	n := runtime.Stack(buf, false)
	id, name := interactionUser(i)
	b.log.Error().
		Str("user", id).
		Str("username", name).
		Str("guild", i.GuildID).
		Interface("panic", r).
		Str("stack", string(buf[:n])).
		Msg("panic in interaction handler")
	respondWithError(s, i, "An internal error occurred")
}

func (b *Bot) handleInteraction(s *discordgo.Session, i *discordgo.InteractionCreate) {
	ctx, done, ok := b.track()
	if !ok {
		return
	}
	defer done()

	switch i.Type {
	case discordgo.InteractionApplicationCommand:
		b.handleCommand(ctx, s, i)
	case discordgo.InteractionApplicationCommandAutocomplete:
		b.handleAutocomplete(s, i)
	case discordgo.InteractionMessageComponent:
		b.handleComponent(ctx, s, i)
	}
}

func (b *Bot) handleCommand(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate) {
	defer b.recoverPanic(s, i)

	commandName := i.ApplicationCommandData().Name

	err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Flags: discordgo.MessageFlagsEphemeral,
		},
	})
	if err != nil {
		b.log.Error().Err(err).Str("command", commandName).Msg("error acknowledging interaction")
		return
	}

	if adminCommands[commandName] {
		if i.GuildID == "" {
			respondWithError(s, i, fmt.Sprintf("The `/%s` command can only be used in a server", commandName))
			return
		}
		if !isAdmin(i.Member) {
			respondWithError(s, i, "This command requires the Manage Server permission")
			return
		}
	}

	b.logCommand(i, commandName)

	handler, ok := b.handlers()[commandName]
	if !ok {
		b.log.Warn().Str("command", commandName).Msg("unknown command")
		respondWithError(s, i, "Unknown command")
		return
	}
	handler(ctx, s, i)
}
