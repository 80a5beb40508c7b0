// Package guard implements the authorization pipeline that sits between a
// parsed command and its handler. Guards run in a fixed order and the first
// failure decides the rejection.
package guard

import (
	"time"

	"github.com/nidhogg/nuka-bot/internal/command"
	"github.com/nidhogg/nuka-bot/internal/cooldown"
)

// Kind is the outcome of authorization.
type Kind int

const (
	Authorized Kind = iota
	Unknown
	Blocked
	Cooldown
	WrongContext
	OwnersOnly
	MissingUserPermission
	MissingBotPermission
	UsageMismatch
)

var kindNames = [...]string{
	Authorized:            "authorized",
	Unknown:               "unknown",
	Blocked:               "blocked",
	Cooldown:              "cooldown",
	WrongContext:          "wrong_context",
	OwnersOnly:            "owners_only",
	MissingUserPermission: "missing_user_permission",
	MissingBotPermission:  "missing_bot_permission",
	UsageMismatch:         "usage_mismatch",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "invalid"
}

// Request is one parsed invocation to authorize.
type Request struct {
	Token     string
	Args      []string
	UserID    string
	Channel   command.ChannelKind
	UserPerms command.PermissionSet
	BotPerms  command.PermissionSet
	Now       time.Time
}

// Decision is the result of Authorize. Command is nil only for Unknown.
type Decision struct {
	Kind      Kind
	Command   *command.Descriptor
	Args      []string
	Remaining time.Duration
	Missing   []string
	Want      command.ChannelKind
}

// Pipeline runs the guard chain.
type Pipeline struct {
	registry  *command.Registry
	cooldowns *cooldown.Tracker
	blocked   *command.UserSet
	owners    *command.UserSet
}

// NewPipeline wires a pipeline. blocked is the bot-wide block-list and may be
// mutated concurrently by its owner.
func NewPipeline(reg *command.Registry, cooldowns *cooldown.Tracker, blocked, owners *command.UserSet) *Pipeline {
	if blocked == nil {
		blocked = command.NewUserSet()
	}
	if owners == nil {
		owners = command.NewUserSet()
	}
	return &Pipeline{registry: reg, cooldowns: cooldowns, blocked: blocked, owners: owners}
}

// Owners returns the owner set.
func (p *Pipeline) Owners() *command.UserSet { return p.owners }

type check func(p *Pipeline, req *Request, d *command.Descriptor) (Decision, bool)

// chain order defines precedence between rejections.
var chain = []check{
	checkBlocked,
	checkCooldown,
	checkContext,
	checkOwners,
	checkUserPermissions,
	checkBotPermissions,
	checkArity,
}

// Authorize runs every guard in order. On success a cooldown for
// (command, user) is recorded, expiring at req.Now plus the command cooldown.
func (p *Pipeline) Authorize(req Request) Decision {
	d, ok := p.registry.Resolve(req.Token)
	if !ok {
		return Decision{Kind: Unknown, Args: req.Args}
	}
	for _, c := range chain {
		if dec, failed := c(p, &req, d); failed {
			dec.Command = d
			dec.Args = req.Args
			return dec
		}
	}
	p.cooldowns.Record(d.Name, req.UserID, req.Now, d.CooldownDuration())
	return Decision{Kind: Authorized, Command: d, Args: req.Args}
}

func checkBlocked(p *Pipeline, req *Request, d *command.Descriptor) (Decision, bool) {
	if d.Unblocked.Has(req.UserID) {
		return Decision{}, false
	}
	if p.blocked.Has(req.UserID) || d.Blocked.Has(req.UserID) {
		return Decision{Kind: Blocked}, true
	}
	return Decision{}, false
}

func checkCooldown(p *Pipeline, req *Request, d *command.Descriptor) (Decision, bool) {
	if left, ok := p.cooldowns.Remaining(d.Name, req.UserID, req.Now); ok {
		return Decision{Kind: Cooldown, Remaining: left}, true
	}
	return Decision{}, false
}

func checkContext(_ *Pipeline, req *Request, d *command.Descriptor) (Decision, bool) {
	if d.GuildOnly && req.Channel != command.ChannelGuild {
		return Decision{Kind: WrongContext, Want: command.ChannelGuild}, true
	}
	if d.DMsOnly && req.Channel != command.ChannelDirect {
		return Decision{Kind: WrongContext, Want: command.ChannelDirect}, true
	}
	return Decision{}, false
}

func checkOwners(p *Pipeline, req *Request, d *command.Descriptor) (Decision, bool) {
	if d.OwnersOnly && !p.owners.Has(req.UserID) {
		return Decision{Kind: OwnersOnly}, true
	}
	return Decision{}, false
}

func checkUserPermissions(_ *Pipeline, req *Request, d *command.Descriptor) (Decision, bool) {
	if missing := req.UserPerms.Missing(d.Permissions); len(missing) > 0 {
		return Decision{Kind: MissingUserPermission, Missing: missing}, true
	}
	return Decision{}, false
}

func checkBotPermissions(_ *Pipeline, req *Request, d *command.Descriptor) (Decision, bool) {
	if missing := req.BotPerms.Missing(d.BotPermissions); len(missing) > 0 {
		return Decision{Kind: MissingBotPermission, Missing: missing}, true
	}
	return Decision{}, false
}

func checkArity(_ *Pipeline, req *Request, d *command.Descriptor) (Decision, bool) {
	if d.Args != 0 && d.Args != len(req.Args) {
		return Decision{Kind: UsageMismatch}, true
	}
	return Decision{}, false
}
