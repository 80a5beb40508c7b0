package guard

import (
	"strings"

	"github.com/nidhogg/nuka-bot/internal/command"
	"github.com/nidhogg/nuka-bot/internal/response"
)

// Vars carries the event details a rejection message may mention.
type Vars struct {
	Token  string
	Prefix string
	Author string
}

// Key maps a rejection to its catalog entry. Authorized has no key.
func (d Decision) Key() (response.Key, bool) {
	switch d.Kind {
	case Unknown:
		return response.CommandUnknown, true
	case Blocked:
		return response.CommandBlocked, true
	case Cooldown:
		return response.CommandCooldown, true
	case WrongContext:
		if d.Want == command.ChannelDirect {
			return response.CommandDMsOnly, true
		}
		return response.CommandGuildOnly, true
	case OwnersOnly:
		return response.CommandOwnersOnly, true
	case MissingUserPermission:
		return response.CommandNoPermission, true
	case MissingBotPermission:
		return response.CommandNoBotPermission, true
	case UsageMismatch:
		return response.CommandIncorrectUsage, true
	}
	return "", false
}

// Placeholders builds the values recognised by the decision's catalog key.
func (d Decision) Placeholders(v Vars, owners int) map[string]string {
	name := v.Token
	if d.Command != nil {
		name = d.Command.Name
	}
	vars := map[string]string{"command": name}

	switch d.Kind {
	case Unknown:
		vars["prefix"] = v.Prefix
		return vars
	case Cooldown:
		secs := response.FormatSeconds(d.Remaining.Seconds())
		vars["cooldown"] = secs
		if secs == "1" {
			vars["s"] = response.Plural(1)
		} else {
			vars["s"] = response.Plural(0)
		}
	case OwnersOnly:
		vars["s"] = response.Plural(owners)
	case MissingUserPermission, MissingBotPermission:
		vars["permissions"] = strings.Join(d.Missing, ", ")
		vars["s"] = response.Plural(len(d.Missing))
	case UsageMismatch:
		vars["usage"] = d.Command.Usage
	}
	vars["author"] = v.Author
	return vars
}

// Render produces the single rejection message for d. It returns "" for
// Authorized decisions.
func (p *Pipeline) Render(d Decision, r *response.Resolver, v Vars) string {
	key, ok := d.Key()
	if !ok {
		return ""
	}
	return r.Resolve(key, d.Placeholders(v, len(p.owners.Members())))
}
