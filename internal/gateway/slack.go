package gateway

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/slack-go/slack"
	"github.com/slack-go/slack/slackevents"
	"github.com/slack-go/slack/socketmode"
	"go.uber.org/zap"

	"github.com/nidhogg/nuka-bot/internal/command"
	"github.com/nidhogg/nuka-bot/internal/dispatch"
	"github.com/nidhogg/nuka-bot/internal/interaction"
)

// SlackAdapter connects the bot to Slack using Socket Mode.
type SlackAdapter struct {
	client      *slack.Client
	socket      *socketmode.Client
	handlers    Handlers
	connected   bool
	connectedAt time.Time
	mu          sync.RWMutex
	logger      *zap.Logger
}

// NewSlackAdapter creates a Slack gateway adapter.
// botToken is the Bot User OAuth Token (xoxb-...).
// appToken is the App-Level Token (xapp-...) for Socket Mode.
func NewSlackAdapter(botToken, appToken string, logger *zap.Logger) *SlackAdapter {
	client := slack.New(botToken,
		slack.OptionAppLevelToken(appToken),
	)

	socket := socketmode.New(client,
		socketmode.OptionLog(zap.NewStdLog(logger)),
	)

	return &SlackAdapter{
		client: client,
		socket: socket,
		logger: logger,
	}
}

func (a *SlackAdapter) Platform() string { return "slack" }

func (a *SlackAdapter) Bind(h Handlers) { a.handlers = h }

// Connect starts the Socket Mode event loop in a background goroutine.
func (a *SlackAdapter) Connect(ctx context.Context) error {
	go a.handleEvents(ctx)
	go func() {
		if err := a.socket.RunContext(ctx); err != nil {
			a.logger.Error("slack socket mode error", zap.Error(err))
		}
	}()

	a.mu.Lock()
	a.connected = true
	a.connectedAt = time.Now()
	a.mu.Unlock()
	a.logger.Info("slack adapter connected via socket mode")
	return nil
}

func (a *SlackAdapter) handleEvents(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case evt, ok := <-a.socket.Events:
			if !ok {
				return
			}
			a.processEvent(ctx, evt)
		}
	}
}

// processEvent acknowledges evt and hands it off. Each event is handled on
// its own goroutine so a slow handler does not stall the socket.
func (a *SlackAdapter) processEvent(ctx context.Context, evt socketmode.Event) {
	switch evt.Type {
	case socketmode.EventTypeEventsAPI:
		eventsAPI, ok := evt.Data.(slackevents.EventsAPIEvent)
		if !ok {
			return
		}
		a.socket.Ack(*evt.Request)

		if eventsAPI.Type != slackevents.CallbackEvent {
			return
		}
		if msg, ok := eventsAPI.InnerEvent.Data.(*slackevents.MessageEvent); ok {
			go a.handleMessage(ctx, msg)
		}

	case socketmode.EventTypeInteractive:
		callback, ok := evt.Data.(slack.InteractionCallback)
		if !ok {
			return
		}
		a.socket.Ack(*evt.Request)
		for _, in := range blockActions(callback) {
			in.Responder = &slackReply{client: a.client, channelID: in.ChannelID, userID: in.UserID}
			go a.route(ctx, in)
		}

	case socketmode.EventTypeSlashCommand:
		cmd, ok := evt.Data.(slack.SlashCommand)
		if !ok {
			return
		}
		a.socket.Ack(*evt.Request)
		in := slashInteraction(cmd)
		in.Responder = &slackReply{client: a.client, channelID: cmd.ChannelID, userID: cmd.UserID}
		go a.route(ctx, in)
	}
}

func (a *SlackAdapter) handleMessage(ctx context.Context, msg *slackevents.MessageEvent) {
	if a.handlers.Messages == nil {
		return
	}
	ev, ok := slackMessageEvent(msg)
	if !ok {
		return
	}
	ev.Responder = &slackReply{client: a.client, channelID: msg.Channel, userID: msg.User, threadTS: msg.ThreadTimeStamp}
	if ev.Channel == command.ChannelGuild {
		ev.UserPerms = a.userPermissions(ctx, msg.User)
	}
	a.handlers.Messages.Handle(ctx, ev)
}

func (a *SlackAdapter) route(ctx context.Context, in *interaction.Interaction) {
	if a.handlers.Interactions == nil {
		return
	}
	a.handlers.Interactions.Route(ctx, in)
}

// userPermissions maps Slack workspace roles onto permission names. Admins
// and owners hold every permission, other members a basic messaging set.
func (a *SlackAdapter) userPermissions(ctx context.Context, userID string) command.PermissionSet {
	user, err := a.client.GetUserInfoContext(ctx, userID)
	if err != nil {
		a.logger.Warn("slack user lookup failed", zap.String("user", userID), zap.Error(err))
		return command.NewPermissionSet()
	}
	if user.IsAdmin || user.IsOwner || user.IsPrimaryOwner {
		return fullPermissions()
	}
	return memberPermissions()
}

// slackMessageEvent normalizes a message. Bot messages and edits are
// dropped. The bot itself holds every permission it can be granted.
func slackMessageEvent(msg *slackevents.MessageEvent) (*dispatch.Event, bool) {
	if msg.BotID != "" || msg.SubType != "" || msg.User == "" {
		return nil, false
	}
	ev := &dispatch.Event{
		Platform:  "slack",
		ChannelID: msg.Channel,
		Channel:   command.ChannelGuild,
		UserID:    msg.User,
		Author:    fmt.Sprintf("<@%s>", msg.User),
		Content:   msg.Text,
		BotPerms:  fullPermissions(),
	}
	if msg.ChannelType == "im" {
		ev.Channel = command.ChannelDirect
		ev.UserPerms = fullPermissions()
	}
	return ev, true
}

// blockActions turns every button press or menu selection in callback into
// an interaction.
func blockActions(callback slack.InteractionCallback) []*interaction.Interaction {
	if callback.Type != slack.InteractionTypeBlockActions {
		return nil
	}
	var out []*interaction.Interaction
	for _, action := range callback.ActionCallback.BlockActions {
		in := &interaction.Interaction{
			Kind:      interaction.KindSelect,
			CustomID:  action.ActionID,
			Platform:  "slack",
			ChannelID: callback.Channel.ID,
			Channel:   command.ChannelGuild,
			UserID:    callback.User.ID,
			Author:    fmt.Sprintf("<@%s>", callback.User.ID),
		}
		if strings.HasPrefix(callback.Channel.ID, "D") {
			in.Channel = command.ChannelDirect
		}
		switch {
		case action.Type == "button":
			in.Kind = interaction.KindButton
			if action.Value != "" {
				in.Values = []string{action.Value}
			}
		case len(action.SelectedOptions) > 0:
			for _, o := range action.SelectedOptions {
				in.Values = append(in.Values, o.Value)
			}
		case action.SelectedOption.Value != "":
			in.Values = []string{action.SelectedOption.Value}
		}
		out = append(out, in)
	}
	return out
}

// slashInteraction normalizes a slash command. The raw argument text is
// exposed as the "text" option.
func slashInteraction(cmd slack.SlashCommand) *interaction.Interaction {
	in := &interaction.Interaction{
		Kind:      interaction.KindCommand,
		Name:      strings.TrimPrefix(cmd.Command, "/"),
		Options:   map[string]string{},
		Platform:  "slack",
		ChannelID: cmd.ChannelID,
		Channel:   command.ChannelGuild,
		UserID:    cmd.UserID,
		Author:    fmt.Sprintf("<@%s>", cmd.UserID),
	}
	if text := strings.TrimSpace(cmd.Text); text != "" {
		in.Options["text"] = text
	}
	if cmd.ChannelName == "directmessage" {
		in.Channel = command.ChannelDirect
	}
	return in
}

// slackReply posts into a channel, threading when the source was threaded.
type slackReply struct {
	client    *slack.Client
	channelID string
	userID    string
	threadTS  string
}

func (r *slackReply) Reply(ctx context.Context, content string) error {
	opts := []slack.MsgOption{slack.MsgOptionText(content, false)}
	if r.threadTS != "" {
		opts = append(opts, slack.MsgOptionTS(r.threadTS))
	}
	if _, _, err := r.client.PostMessageContext(ctx, r.channelID, opts...); err != nil {
		return fmt.Errorf("slack send: %w", err)
	}
	return nil
}

func (r *slackReply) ReplyPrivate(ctx context.Context, content string) error {
	if _, err := r.client.PostEphemeralContext(ctx, r.channelID, r.userID, slack.MsgOptionText(content, false)); err != nil {
		return fmt.Errorf("slack ephemeral: %w", err)
	}
	return nil
}

// Close is a no-op; the socket context cancellation handles shutdown.
func (a *SlackAdapter) Close() error {
	a.mu.Lock()
	a.connected = false
	a.mu.Unlock()
	return nil
}

func (a *SlackAdapter) Status() AdapterStatus {
	a.mu.RLock()
	defer a.mu.RUnlock()
	s := AdapterStatus{Platform: "slack", Connected: a.connected, Details: "socket mode"}
	if a.connected {
		t := a.connectedAt
		s.ConnectedAt = &t
	}
	return s
}
