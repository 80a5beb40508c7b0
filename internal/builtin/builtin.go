// Package builtin provides the commands every bot ships with.
package builtin

import (
	"context"
	"fmt"
	"strings"

	"github.com/nidhogg/nuka-bot/internal/blocklist"
	"github.com/nidhogg/nuka-bot/internal/command"
	"github.com/nidhogg/nuka-bot/internal/gateway"
	"github.com/nidhogg/nuka-bot/internal/interaction"
)

// ---------------------------------------------------------------------------
// Interfaces
// ---------------------------------------------------------------------------

// StatusProvider reports adapter connection state.
type StatusProvider interface {
	Statuses() []gateway.AdapterStatus
}

// ---------------------------------------------------------------------------
// Registration
// ---------------------------------------------------------------------------

// Commands returns the builtin descriptors. status may be nil; the status
// command is left out then.
func Commands(reg *command.Registry, lists *blocklist.Manager, status StatusProvider) []*command.Descriptor {
	descs := []*command.Descriptor{
		helpCommand(reg),
		pingCommand(),
		blockCommand(lists, true),
		blockCommand(lists, false),
	}
	if status != nil {
		descs = append(descs, statusCommand(status))
	}
	return descs
}

// Register applies per-command overrides from specs to the builtins and adds
// them to reg.
func Register(reg *command.Registry, specs map[string]command.Spec, lists *blocklist.Manager, status StatusProvider) error {
	for _, d := range Commands(reg, lists, status) {
		if spec, ok := specs[d.Name]; ok {
			spec.Apply(d)
		}
		if err := reg.Register(d); err != nil {
			return fmt.Errorf("register builtin %s: %w", d.Name, err)
		}
	}
	return nil
}

// RegisterInteractions adds the slash command counterparts of the builtins.
func RegisterInteractions(router *interaction.Router, reg *command.Registry, status StatusProvider) error {
	err := router.RegisterCommand("help", "List available commands",
		func(ctx context.Context, in *interaction.Interaction) error {
			name := in.Options["command"]
			if name == "" {
				name = in.Options["text"]
			}
			return in.Responder.ReplyPrivate(ctx, helpText(reg, "/", strings.Fields(name)))
		},
		interaction.SlashOption{Name: "command", Description: "Show details for one command"},
	)
	if err != nil {
		return err
	}
	err = router.RegisterCommand("ping", "Check that the bot is alive",
		func(ctx context.Context, in *interaction.Interaction) error {
			return in.Responder.Reply(ctx, "Pong!")
		})
	if err != nil {
		return err
	}
	if status == nil {
		return nil
	}
	return router.RegisterCommand("status", "Show adapter connection status",
		func(ctx context.Context, in *interaction.Interaction) error {
			return in.Responder.ReplyPrivate(ctx, statusText(status))
		})
}

// ---------------------------------------------------------------------------
// help
// ---------------------------------------------------------------------------

func helpCommand(reg *command.Registry) *command.Descriptor {
	return &command.Descriptor{
		Name:        "help",
		Aliases:     []string{"commands"},
		Description: "List all available commands",
		Usage:       "[command]",
		Handler: func(ctx context.Context, inv *command.Invocation) error {
			return inv.Reply(ctx, helpText(reg, inv.Prefix, inv.Args))
		},
	}
}

func helpText(reg *command.Registry, prefix string, args []string) string {
	var b strings.Builder
	if len(args) > 0 {
		d, ok := reg.Resolve(args[0])
		if !ok {
			return fmt.Sprintf("No command named %q.", args[0])
		}
		fmt.Fprintf(&b, "%s%s", prefix, d.Name)
		if d.Usage != "" {
			fmt.Fprintf(&b, " %s", d.Usage)
		}
		if d.Description != "" {
			fmt.Fprintf(&b, "\n  %s", d.Description)
		}
		if len(d.Aliases) > 0 {
			fmt.Fprintf(&b, "\n  Aliases: %s", strings.Join(d.Aliases, ", "))
		}
		fmt.Fprintf(&b, "\n  Cooldown: %d second%s", d.Cooldown, plural(d.Cooldown))
		return b.String()
	}

	b.WriteString("Available commands:\n")
	for _, d := range reg.List() {
		fmt.Fprintf(&b, "  %s%s", prefix, d.Name)
		if d.Description != "" {
			fmt.Fprintf(&b, " - %s", d.Description)
		}
		b.WriteString("\n")
	}
	fmt.Fprintf(&b, "Use %shelp <command> for details.", prefix)
	return b.String()
}

func plural(n int) string {
	if n == 1 {
		return ""
	}
	return "s"
}

// ---------------------------------------------------------------------------
// ping
// ---------------------------------------------------------------------------

func pingCommand() *command.Descriptor {
	return &command.Descriptor{
		Name:        "ping",
		Description: "Check that the bot is alive",
		Cooldown:    3,
		Handler: func(ctx context.Context, inv *command.Invocation) error {
			return inv.Reply(ctx, "Pong!")
		},
	}
}

// ---------------------------------------------------------------------------
// status
// ---------------------------------------------------------------------------

func statusCommand(provider StatusProvider) *command.Descriptor {
	return &command.Descriptor{
		Name:        "status",
		Description: "Show adapter connection status",
		OwnersOnly:  true,
		Handler: func(ctx context.Context, inv *command.Invocation) error {
			return inv.Reply(ctx, statusText(provider))
		},
	}
}

func statusText(provider StatusProvider) string {
	adapters := provider.Statuses()
	if len(adapters) == 0 {
		return "No adapters configured."
	}
	var b strings.Builder
	b.WriteString("Adapter status:")
	for _, a := range adapters {
		state := "disconnected"
		if a.Connected {
			state = "connected"
		}
		fmt.Fprintf(&b, "\n  %s: %s", a.Platform, state)
		if a.Details != "" {
			fmt.Fprintf(&b, " (%s)", a.Details)
		}
	}
	return b.String()
}

// ---------------------------------------------------------------------------
// block / unblock
// ---------------------------------------------------------------------------

func blockCommand(lists *blocklist.Manager, block bool) *command.Descriptor {
	name, verb := "unblock", "Unblocked"
	if block {
		name, verb = "block", "Blocked"
	}
	return &command.Descriptor{
		Name:        name,
		Description: verb + " a user bot-wide or for one command",
		Usage:       "<user> [command]",
		OwnersOnly:  true,
		Handler: func(ctx context.Context, inv *command.Invocation) error {
			if len(inv.Args) < 1 || len(inv.Args) > 2 {
				return inv.Reply(ctx, fmt.Sprintf("Usage: %s%s %s", inv.Prefix, name, inv.Command.Usage))
			}
			user := UserID(inv.Args[0])
			var scope blocklist.Scope
			if len(inv.Args) == 2 {
				scope.Command = inv.Args[1]
			}

			var err error
			if block {
				err = lists.Add(ctx, scope, user)
			} else {
				err = lists.Remove(ctx, scope, user)
			}
			if err != nil {
				return err
			}
			if scope.Command == "" {
				return inv.Reply(ctx, fmt.Sprintf("%s %s bot-wide.", verb, user))
			}
			return inv.Reply(ctx, fmt.Sprintf("%s %s from %s.", verb, user, strings.ToLower(scope.Command)))
		},
	}
}

// UserID strips platform mention markup such as <@123>, <@!123> or
// <@U123|bob> down to the bare id.
func UserID(s string) string {
	if !strings.HasPrefix(s, "<@") || !strings.HasSuffix(s, ">") {
		return s
	}
	id := strings.TrimSuffix(strings.TrimPrefix(s, "<@"), ">")
	id = strings.TrimPrefix(id, "!")
	if i := strings.IndexByte(id, '|'); i >= 0 {
		id = id[:i]
	}
	return id
}
