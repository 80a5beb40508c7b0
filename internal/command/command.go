package command

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

// DefaultCooldown is applied to descriptors that leave Cooldown at zero.
const DefaultCooldown = 1

var (
	// ErrDuplicateName is returned when a name or alias is already taken.
	ErrDuplicateName = errors.New("duplicate command name")
	// ErrInvalidDescriptor is returned for descriptors without a name or handler.
	ErrInvalidDescriptor = errors.New("invalid command descriptor")
)

// ChannelKind tells where an event originated.
type ChannelKind int

const (
	ChannelGuild ChannelKind = iota
	ChannelDirect
)

func (k ChannelKind) String() string {
	if k == ChannelDirect {
		return "direct"
	}
	return "guild"
}

// Responder delivers a reply back to wherever the event came from.
type Responder interface {
	Reply(ctx context.Context, content string) error
}

// ResponderFunc adapts a plain function to Responder.
type ResponderFunc func(ctx context.Context, content string) error

func (f ResponderFunc) Reply(ctx context.Context, content string) error { return f(ctx, content) }

// Invocation is what an authorized handler receives.
type Invocation struct {
	Command   *Descriptor
	Args      []string
	Prefix    string
	Platform  string
	ChannelID string
	Channel   ChannelKind
	UserID    string
	Author    string
	Responder Responder
}

// Reply answers the invoking user through the originating platform.
func (inv *Invocation) Reply(ctx context.Context, content string) error {
	if inv.Responder == nil {
		return fmt.Errorf("no responder for %s", inv.Command.Name)
	}
	return inv.Responder.Reply(ctx, content)
}

// Handler is the function signature for command execution.
type Handler func(ctx context.Context, inv *Invocation) error

// Descriptor describes a text command. Only Blocked and Unblocked may change
// after registration.
type Descriptor struct {
	Name           string
	Aliases        []string
	Description    string
	Args           int
	Usage          string
	Cooldown       int
	GuildOnly      bool
	DMsOnly        bool
	OwnersOnly     bool
	Permissions    []string
	BotPermissions []string
	Blocked        *UserSet
	Unblocked      *UserSet
	Handler        Handler
}

// CooldownDuration returns the cooldown as a duration.
func (d *Descriptor) CooldownDuration() time.Duration {
	return time.Duration(d.Cooldown) * time.Second
}

// Registry maps command names and aliases to descriptors.
type Registry struct {
	commands map[string]*Descriptor
	aliases  map[string]*Descriptor
	mu       sync.RWMutex
}

// NewRegistry creates an empty command registry.
func NewRegistry() *Registry {
	return &Registry{
		commands: make(map[string]*Descriptor),
		aliases:  make(map[string]*Descriptor),
	}
}

// Register adds a command to the registry. Names and aliases are case-folded
// and must be unique across both namespaces.
func (r *Registry) Register(d *Descriptor) error {
	if d == nil || strings.TrimSpace(d.Name) == "" {
		return fmt.Errorf("%w: missing name", ErrInvalidDescriptor)
	}
	if d.Handler == nil {
		return fmt.Errorf("%w: %s has no handler", ErrInvalidDescriptor, d.Name)
	}

	// d is only touched once every key is known to be free.
	name := strings.ToLower(d.Name)
	aliases := make([]string, len(d.Aliases))
	keys := []string{name}
	seen := map[string]bool{name: true}
	for i, a := range d.Aliases {
		a = strings.ToLower(a)
		if seen[a] {
			return fmt.Errorf("%w: %q repeated in %s", ErrDuplicateName, a, name)
		}
		seen[a] = true
		aliases[i] = a
		keys = append(keys, a)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for _, k := range keys {
		if r.taken(k) {
			return fmt.Errorf("%w: %q", ErrDuplicateName, k)
		}
	}

	d.Name = name
	d.Aliases = aliases
	if d.Cooldown <= 0 {
		d.Cooldown = DefaultCooldown
	}
	if d.Blocked == nil {
		d.Blocked = NewUserSet()
	}
	if d.Unblocked == nil {
		d.Unblocked = NewUserSet()
	}

	r.commands[d.Name] = d
	for _, a := range d.Aliases {
		r.aliases[a] = d
	}
	return nil
}

func (r *Registry) taken(key string) bool {
	if _, ok := r.commands[key]; ok {
		return true
	}
	_, ok := r.aliases[key]
	return ok
}

// Resolve looks a token up by name, then by alias.
func (r *Registry) Resolve(token string) (*Descriptor, bool) {
	token = strings.ToLower(token)
	r.mu.RLock()
	defer r.mu.RUnlock()
	if d, ok := r.commands[token]; ok {
		return d, true
	}
	d, ok := r.aliases[token]
	return d, ok
}

// List returns all registered commands sorted by name.
func (r *Registry) List() []*Descriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	result := make([]*Descriptor, 0, len(r.commands))
	for _, d := range r.commands {
		result = append(result, d)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Name < result[j].Name
	})
	return result
}
