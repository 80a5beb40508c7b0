// Package interaction routes structured platform events (slash commands,
// buttons, select menus) to their handlers.
package interaction

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/nidhogg/nuka-bot/internal/command"
	"github.com/nidhogg/nuka-bot/internal/response"
)

// Kind discriminates interactions.
type Kind int

const (
	KindCommand Kind = iota
	KindButton
	KindSelect
)

func (k Kind) String() string {
	switch k {
	case KindCommand:
		return "command"
	case KindButton:
		return "button"
	case KindSelect:
		return "select"
	}
	return "unknown"
}

// Responder answers an interaction either publicly or only to the invoker.
type Responder interface {
	Reply(ctx context.Context, content string) error
	ReplyPrivate(ctx context.Context, content string) error
}

// Interaction is a normalized structured event.
type Interaction struct {
	Kind      Kind
	Name      string
	CustomID  string
	Options   map[string]string
	Values    []string
	Platform  string
	ChannelID string
	Channel   command.ChannelKind
	UserID    string
	Author    string
	Responder Responder
}

// Key is the identifier used to look the handler up.
func (in *Interaction) Key() string {
	if in.Kind == KindCommand {
		return in.Name
	}
	return in.CustomID
}

// Handler processes one interaction.
type Handler func(ctx context.Context, in *Interaction) error

// SlashOption describes one string option of a slash command.
type SlashOption struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Required    bool   `json:"required,omitempty"`
}

// SlashCommand is the metadata published for a command interaction.
type SlashCommand struct {
	Name        string        `json:"name"`
	Description string        `json:"description"`
	Options     []SlashOption `json:"options,omitempty"`
	handler     Handler
}

// Result tells what Route did.
type Result int

const (
	Ignored Result = iota
	Handled
	Failed
)

// Router holds three disjoint handler tables.
type Router struct {
	commands map[string]*SlashCommand
	buttons  map[string]Handler
	selects  map[string]Handler
	resolver *response.Resolver
	mu       sync.RWMutex
	logger   *zap.Logger
}

// NewRouter creates an empty router. resolver renders the private error reply
// of failed command interactions.
func NewRouter(resolver *response.Resolver, logger *zap.Logger) *Router {
	return &Router{
		commands: make(map[string]*SlashCommand),
		buttons:  make(map[string]Handler),
		selects:  make(map[string]Handler),
		resolver: resolver,
		logger:   logger,
	}
}

// RegisterCommand adds a slash command handler.
func (r *Router) RegisterCommand(name, description string, h Handler, opts ...SlashOption) error {
	if name == "" || h == nil {
		return fmt.Errorf("%w: command needs a name and a handler", command.ErrInvalidDescriptor)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.commands[name]; ok {
		return fmt.Errorf("%w: command %q", command.ErrDuplicateName, name)
	}
	r.commands[name] = &SlashCommand{Name: name, Description: description, Options: opts, handler: h}
	return nil
}

// RegisterButton adds a button handler keyed by custom id.
func (r *Router) RegisterButton(customID string, h Handler) error {
	return r.register(r.buttons, KindButton, customID, h)
}

// RegisterSelect adds a select menu handler keyed by custom id.
func (r *Router) RegisterSelect(customID string, h Handler) error {
	return r.register(r.selects, KindSelect, customID, h)
}

func (r *Router) register(table map[string]Handler, kind Kind, id string, h Handler) error {
	if id == "" || h == nil {
		return fmt.Errorf("%w: %s needs an id and a handler", command.ErrInvalidDescriptor, kind)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := table[id]; ok {
		return fmt.Errorf("%w: %s %q", command.ErrDuplicateName, kind, id)
	}
	table[id] = h
	return nil
}

// Commands returns the slash command metadata sorted by name.
func (r *Router) Commands() []SlashCommand {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]SlashCommand, 0, len(r.commands))
	for _, c := range r.commands {
		out = append(out, SlashCommand{Name: c.Name, Description: c.Description, Options: c.Options})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (r *Router) lookup(in *Interaction) Handler {
	r.mu.RLock()
	defer r.mu.RUnlock()
	switch in.Kind {
	case KindCommand:
		if c, ok := r.commands[in.Name]; ok {
			return c.handler
		}
	case KindButton:
		return r.buttons[in.CustomID]
	case KindSelect:
		return r.selects[in.CustomID]
	}
	return nil
}

// Route runs the handler registered for in. Unregistered ids are ignored since
// other integrations may share the id space. A failing command handler gets a
// private error reply; failing button and select handlers are only logged.
func (r *Router) Route(ctx context.Context, in *Interaction) Result {
	h := r.lookup(in)
	if h == nil {
		r.logger.Debug("no interaction handler",
			zap.Stringer("kind", in.Kind), zap.String("id", in.Key()))
		return Ignored
	}

	err := command.Safely(in.Key(), func() error { return h(ctx, in) })
	if err == nil {
		return Handled
	}

	r.logger.Error("interaction handler failed",
		zap.Stringer("kind", in.Kind),
		zap.String("id", in.Key()),
		zap.String("user", in.UserID),
		zap.Error(err))

	if in.Kind != KindCommand || in.Responder == nil {
		return Failed
	}

	cause := err
	var he *command.HandlerError
	if errors.As(err, &he) {
		cause = he.Err
	}
	msg := r.resolver.Resolve(response.CommandError, map[string]string{
		"error":   cause.Error(),
		"author":  in.Author,
		"command": in.Name,
	})
	if rerr := in.Responder.ReplyPrivate(ctx, msg); rerr != nil {
		r.logger.Error("send interaction error reply failed", zap.String("id", in.Key()), zap.Error(rerr))
	}
	return Failed
}
