package gateway

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"

	"github.com/nidhogg/nuka-bot/internal/command"
	"github.com/nidhogg/nuka-bot/internal/dispatch"
	"github.com/nidhogg/nuka-bot/internal/interaction"
)

// DiscordAdapter connects the bot to Discord through the bot gateway.
type DiscordAdapter struct {
	token       string
	guildID     string
	session     *discordgo.Session
	handlers    Handlers
	connected   bool
	connectedAt time.Time
	lastError   string
	mu          sync.RWMutex
	logger      *zap.Logger
}

// NewDiscordAdapter creates a Discord gateway adapter. guildID scopes slash
// command publishing; empty publishes globally.
func NewDiscordAdapter(token, guildID string, logger *zap.Logger) *DiscordAdapter {
	return &DiscordAdapter{
		token:   token,
		guildID: guildID,
		logger:  logger,
	}
}

func (a *DiscordAdapter) Platform() string { return "discord" }

func (a *DiscordAdapter) Bind(h Handlers) { a.handlers = h }

// Connect opens the Discord gateway websocket.
func (a *DiscordAdapter) Connect(_ context.Context) error {
	session, err := discordgo.New("Bot " + a.token)
	if err != nil {
		a.setError(fmt.Sprintf("session create: %v", err))
		return fmt.Errorf("discord session: %w", err)
	}
	a.session = session

	a.session.Identify.Intents = discordgo.IntentsGuildMessages |
		discordgo.IntentsDirectMessages |
		discordgo.IntentsMessageContent
	a.session.AddHandler(a.onMessageCreate)
	a.session.AddHandler(a.onInteractionCreate)

	if err := a.session.Open(); err != nil {
		a.setError(fmt.Sprintf("open failed: %v", err))
		return fmt.Errorf("discord open: %w", err)
	}

	a.mu.Lock()
	a.connected = true
	a.connectedAt = time.Now()
	a.lastError = ""
	a.mu.Unlock()

	guildCount := len(a.session.State.Guilds)
	if guildCount == 0 {
		a.logger.Warn("discord bot not added to any server, invite it first")
	}
	a.logger.Info("discord adapter connected",
		zap.String("user", a.session.State.User.Username),
		zap.Int("guilds", guildCount))
	return nil
}

func (a *DiscordAdapter) setError(msg string) {
	a.mu.Lock()
	a.lastError = msg
	a.connected = false
	a.mu.Unlock()
}

// PublishCommands replaces the application's slash commands with cmds.
func (a *DiscordAdapter) PublishCommands(cmds []interaction.SlashCommand) error {
	if a.session == nil || a.session.State.User == nil {
		return fmt.Errorf("discord: publish before connect")
	}
	defs := applicationCommands(cmds)
	if _, err := a.session.ApplicationCommandBulkOverwrite(a.session.State.User.ID, a.guildID, defs); err != nil {
		return fmt.Errorf("discord publish commands: %w", err)
	}
	a.logger.Info("discord slash commands published",
		zap.Int("count", len(defs)), zap.String("guild", a.guildID))
	return nil
}

func applicationCommands(cmds []interaction.SlashCommand) []*discordgo.ApplicationCommand {
	defs := make([]*discordgo.ApplicationCommand, 0, len(cmds))
	for _, c := range cmds {
		def := &discordgo.ApplicationCommand{
			Name:        c.Name,
			Description: c.Description,
			Type:        discordgo.ChatApplicationCommand,
		}
		for _, o := range c.Options {
			def.Options = append(def.Options, &discordgo.ApplicationCommandOption{
				Type:        discordgo.ApplicationCommandOptionString,
				Name:        o.Name,
				Description: o.Description,
				Required:    o.Required,
			})
		}
		defs = append(defs, def)
	}
	return defs
}

func (a *DiscordAdapter) onMessageCreate(s *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Author == nil || m.Author.Bot || m.Author.ID == s.State.User.ID {
		return
	}
	if a.handlers.Messages == nil {
		return
	}

	ev := messageEvent(m)
	ev.Responder = &discordReply{session: s, channelID: m.ChannelID}
	if ev.Channel == command.ChannelGuild {
		ev.UserPerms = a.channelPermissions(s, m.Author.ID, m.ChannelID)
		ev.BotPerms = a.channelPermissions(s, s.State.User.ID, m.ChannelID)
	}
	a.handlers.Messages.Handle(context.Background(), ev)
}

// channelPermissions snapshots what userID may do in channelID. Lookup
// failures yield an empty set.
func (a *DiscordAdapter) channelPermissions(s *discordgo.Session, userID, channelID string) command.PermissionSet {
	bits, err := s.UserChannelPermissions(userID, channelID)
	if err != nil {
		a.logger.Warn("discord permission lookup failed",
			zap.String("user", userID), zap.String("channel", channelID), zap.Error(err))
		return command.NewPermissionSet()
	}
	return permissionSet(bits)
}

// messageEvent normalizes a message. Direct messages get full permission
// snapshots; guild snapshots are filled in by the caller.
func messageEvent(m *discordgo.MessageCreate) *dispatch.Event {
	ev := &dispatch.Event{
		Platform:  "discord",
		ChannelID: m.ChannelID,
		Channel:   command.ChannelGuild,
		UserID:    m.Author.ID,
		Author:    m.Author.Mention(),
		Content:   m.Content,
	}
	if m.GuildID == "" {
		ev.Channel = command.ChannelDirect
		ev.UserPerms = fullPermissions()
		ev.BotPerms = fullPermissions()
	}
	return ev
}

func (a *DiscordAdapter) onInteractionCreate(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if a.handlers.Interactions == nil {
		return
	}
	in, ok := discordInteraction(i)
	if !ok {
		a.logger.Debug("discord interaction type not routed", zap.Stringer("type", i.Type))
		return
	}
	in.Responder = &discordInteractionReply{session: s, interaction: i.Interaction}
	a.handlers.Interactions.Route(context.Background(), in)
}

// discordInteraction normalizes slash commands and message components.
func discordInteraction(i *discordgo.InteractionCreate) (*interaction.Interaction, bool) {
	in := &interaction.Interaction{
		Platform:  "discord",
		ChannelID: i.ChannelID,
		Channel:   command.ChannelGuild,
	}
	if i.GuildID == "" {
		in.Channel = command.ChannelDirect
	}
	user := i.User
	if i.Member != nil && i.Member.User != nil {
		user = i.Member.User
	}
	if user != nil {
		in.UserID = user.ID
		in.Author = user.Mention()
	}

	switch i.Type {
	case discordgo.InteractionApplicationCommand:
		data := i.ApplicationCommandData()
		in.Kind = interaction.KindCommand
		in.Name = data.Name
		in.Options = make(map[string]string, len(data.Options))
		for _, opt := range data.Options {
			in.Options[opt.Name] = fmt.Sprint(opt.Value)
		}
	case discordgo.InteractionMessageComponent:
		data := i.MessageComponentData()
		in.Kind = interaction.KindSelect
		if data.ComponentType == discordgo.ButtonComponent {
			in.Kind = interaction.KindButton
		}
		in.CustomID = data.CustomID
		in.Values = data.Values
	default:
		return nil, false
	}
	return in, true
}

// discordReply posts into the channel a message came from.
type discordReply struct {
	session   *discordgo.Session
	channelID string
}

func (r *discordReply) Reply(_ context.Context, content string) error {
	if _, err := r.session.ChannelMessageSend(r.channelID, content); err != nil {
		return fmt.Errorf("discord send: %w", err)
	}
	return nil
}

// discordInteractionReply answers an interaction. The first reply is the
// interaction response; later ones are follow-ups.
type discordInteractionReply struct {
	session     *discordgo.Session
	interaction *discordgo.Interaction
	responded   bool
	mu          sync.Mutex
}

func (r *discordInteractionReply) Reply(_ context.Context, content string) error {
	return r.respond(content, 0)
}

func (r *discordInteractionReply) ReplyPrivate(_ context.Context, content string) error {
	return r.respond(content, discordgo.MessageFlagsEphemeral)
}

func (r *discordInteractionReply) respond(content string, flags discordgo.MessageFlags) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.responded {
		_, err := r.session.FollowupMessageCreate(r.interaction, true, &discordgo.WebhookParams{
			Content: content,
			Flags:   flags,
		})
		if err != nil {
			return fmt.Errorf("discord followup: %w", err)
		}
		return nil
	}

	err := r.session.InteractionRespond(r.interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{Content: content, Flags: flags},
	})
	if err != nil {
		return fmt.Errorf("discord respond: %w", err)
	}
	r.responded = true
	return nil
}

// Close shuts down the Discord session.
func (a *DiscordAdapter) Close() error {
	if a.session != nil {
		return a.session.Close()
	}
	return nil
}

func (a *DiscordAdapter) Status() AdapterStatus {
	a.mu.RLock()
	defer a.mu.RUnlock()
	s := AdapterStatus{
		Platform:  "discord",
		Connected: a.connected,
		Error:     a.lastError,
	}
	if a.connected {
		t := a.connectedAt
		s.ConnectedAt = &t
		guildCount := 0
		if a.session != nil && a.session.State != nil {
			guildCount = len(a.session.State.Guilds)
		}
		s.Details = fmt.Sprintf("bot=%s, guilds=%d",
			a.session.State.User.Username, guildCount)
	}
	return s
}
