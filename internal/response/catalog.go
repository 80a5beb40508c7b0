package response

import (
	"fmt"
	"strings"
)

// Key names one entry of the response catalog.
type Key string

const (
	CommandUnknown         Key = "command_unknown"
	CommandError           Key = "command_error"
	CommandCooldown        Key = "command_cooldown"
	CommandGuildOnly       Key = "command_guild_only"
	CommandDMsOnly         Key = "command_dms_only"
	CommandOwnersOnly      Key = "command_owners_only"
	CommandBlocked         Key = "command_blocked"
	CommandNoPermission    Key = "command_no_permission"
	CommandNoBotPermission Key = "command_no_bot_permission"
	CommandIncorrectUsage  Key = "command_incorrect_usage"
)

// Keys lists every catalog key in a stable order.
var Keys = []Key{
	CommandUnknown, CommandError, CommandCooldown, CommandGuildOnly,
	CommandDMsOnly, CommandOwnersOnly, CommandBlocked, CommandNoPermission,
	CommandNoBotPermission, CommandIncorrectUsage,
}

// Catalog maps each key to its ordered template list.
type Catalog map[Key][]string

// DefaultCatalog returns the built-in templates.
func DefaultCatalog() Catalog {
	return Catalog{
		CommandUnknown: {
			"`{{prefix}}{{command}}` isn't a command I know. Try `{{prefix}}help`.",
			"I don't have a `{{command}}` command. `{{prefix}}help` lists what I can do.",
		},
		CommandError: {
			"{{author}}, something went wrong while running `{{command}}`: {{error}}",
			"Sorry {{author}}, `{{command}}` failed: {{error}}",
		},
		CommandCooldown: {
			"{{author}}, please wait {{cooldown}} more second{{s}} before using `{{command}}` again.",
			"Slow down {{author}}! `{{command}}` is available again in {{cooldown}} second{{s}}.",
		},
		CommandGuildOnly: {
			"{{author}}, `{{command}}` can only be used in a server.",
		},
		CommandDMsOnly: {
			"{{author}}, `{{command}}` only works in direct messages.",
		},
		CommandOwnersOnly: {
			"{{author}}, `{{command}}` is reserved for the bot owner{{s}}.",
		},
		CommandBlocked: {
			"{{author}}, you are not allowed to use `{{command}}`.",
		},
		CommandNoPermission: {
			"{{author}}, you need the {{permissions}} permission{{s}} to use `{{command}}`.",
		},
		CommandNoBotPermission: {
			"{{author}}, I need the {{permissions}} permission{{s}} to run `{{command}}` here.",
		},
		CommandIncorrectUsage: {
			"{{author}}, usage: `{{command}} {{usage}}`",
		},
	}
}

// Merge returns a copy of c with the entries of overrides replacing the
// matching keys. Unknown keys, empty template lists and blank templates are
// rejected.
func (c Catalog) Merge(overrides map[string][]string) (Catalog, error) {
	known := make(map[Key]bool, len(Keys))
	for _, k := range Keys {
		known[k] = true
	}

	out := make(Catalog, len(c))
	for k, v := range c {
		out[k] = v
	}
	for name, templates := range overrides {
		k := Key(name)
		if !known[k] {
			return nil, fmt.Errorf("unknown response key %q", name)
		}
		if len(templates) == 0 {
			return nil, fmt.Errorf("response key %q has no templates", name)
		}
		for i, tmpl := range templates {
			if strings.TrimSpace(tmpl) == "" {
				return nil, fmt.Errorf("response key %q: template %d is blank", name, i)
			}
		}
		out[k] = append([]string(nil), templates...)
	}
	return out, nil
}
