// Package dispatch turns inbound text messages into at most one handler run or
// one rejection reply.
package dispatch

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/nidhogg/nuka-bot/internal/command"
	"github.com/nidhogg/nuka-bot/internal/cooldown"
	"github.com/nidhogg/nuka-bot/internal/guard"
	"github.com/nidhogg/nuka-bot/internal/response"
)

// Event is a normalized text message from any platform.
type Event struct {
	ID        string
	Platform  string
	ChannelID string
	Channel   command.ChannelKind
	UserID    string
	Author    string
	Content   string
	UserPerms command.PermissionSet
	BotPerms  command.PermissionSet
	Responder command.Responder
}

// Status is the terminal action taken for an event.
type Status string

const (
	StatusIgnored  Status = "ignored"
	StatusExecuted Status = "executed"
	StatusRejected Status = "rejected"
	StatusFailed   Status = "failed"
)

// Outcome reports what Handle did with an event.
type Outcome struct {
	EventID  string
	Status   Status
	Prefix   string
	Token    string
	Decision guard.Decision
	Response string
	Err      error
}

// AuditRecord is one terminal action, as handed to an AuditSink.
type AuditRecord struct {
	EventID   string
	Platform  string
	ChannelID string
	UserID    string
	Command   string
	Status    Status
	Rejection string
	Error     string
	At        time.Time
}

// AuditSink persists terminal actions.
type AuditSink interface {
	Record(ctx context.Context, rec AuditRecord) error
}

// Config is the static part of an engine.
type Config struct {
	Prefixes []string
	Owners   []string
	Blocked  []string
}

// Engine parses, authorizes and executes text commands.
type Engine struct {
	prefixes  []string
	registry  *command.Registry
	cooldowns *cooldown.Tracker
	pipeline  *guard.Pipeline
	resolver  *response.Resolver
	blocked   *command.UserSet
	audit     AuditSink
	now       func() time.Time
	logger    *zap.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock replaces time.Now, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithAudit sends every terminal action except ignores to sink.
func WithAudit(sink AuditSink) Option {
	return func(e *Engine) { e.audit = sink }
}

// NewEngine creates an engine over a populated registry.
func NewEngine(cfg Config, reg *command.Registry, resolver *response.Resolver, logger *zap.Logger, opts ...Option) *Engine {
	e := &Engine{
		prefixes:  append([]string(nil), cfg.Prefixes...),
		registry:  reg,
		cooldowns: cooldown.NewTracker(logger),
		resolver:  resolver,
		blocked:   command.NewUserSet(cfg.Blocked...),
		now:       time.Now,
		logger:    logger,
	}
	e.pipeline = guard.NewPipeline(reg, e.cooldowns, e.blocked, command.NewUserSet(cfg.Owners...))
	for _, o := range opts {
		o(e)
	}
	return e
}

// Registry returns the command registry.
func (e *Engine) Registry() *command.Registry { return e.registry }

// Cooldowns returns the cooldown tracker.
func (e *Engine) Cooldowns() *cooldown.Tracker { return e.cooldowns }

// Prefixes returns the configured prefixes in match order.
func (e *Engine) Prefixes() []string { return append([]string(nil), e.prefixes...) }

// Blocked returns the bot-wide block-list. Writes are last-write-wins with
// respect to in-flight events.
func (e *Engine) Blocked() *command.UserSet { return e.blocked }

// Owners returns the owner set.
func (e *Engine) Owners() *command.UserSet { return e.pipeline.Owners() }

// Stop releases cooldown timers.
func (e *Engine) Stop() { e.cooldowns.Stop() }

// Handle runs one event to completion: it is ignored, rejected with exactly
// one reply, or its handler runs exactly once.
func (e *Engine) Handle(ctx context.Context, ev *Event) *Outcome {
	if ev.ID == "" {
		ev.ID = uuid.New().String()
	}
	out := &Outcome{EventID: ev.ID}

	parsed, ok := Parse(e.prefixes, ev.Content)
	if !ok {
		out.Status = StatusIgnored
		return out
	}
	out.Prefix = parsed.Prefix
	out.Token = parsed.Token

	dec := e.pipeline.Authorize(guard.Request{
		Token:     parsed.Token,
		Args:      parsed.Args,
		UserID:    ev.UserID,
		Channel:   ev.Channel,
		UserPerms: ev.UserPerms,
		BotPerms:  ev.BotPerms,
		Now:       e.now(),
	})
	out.Decision = dec

	if dec.Kind != guard.Authorized {
		out.Status = StatusRejected
		out.Response = e.pipeline.Render(dec, e.resolver, guard.Vars{
			Token: parsed.Token, Prefix: parsed.Prefix, Author: ev.Author,
		})
		e.logger.Debug("command rejected",
			zap.String("event", ev.ID),
			zap.String("platform", ev.Platform),
			zap.String("user", ev.UserID),
			zap.String("command", parsed.Token),
			zap.Stringer("reason", dec.Kind))
		e.reply(ctx, ev, out.Response)
		e.record(ctx, ev, out)
		return out
	}

	inv := &command.Invocation{
		Command:   dec.Command,
		Args:      dec.Args,
		Prefix:    parsed.Prefix,
		Platform:  ev.Platform,
		ChannelID: ev.ChannelID,
		Channel:   ev.Channel,
		UserID:    ev.UserID,
		Author:    ev.Author,
		Responder: ev.Responder,
	}
	err := command.Safely(dec.Command.Name, func() error {
		return dec.Command.Handler(ctx, inv)
	})
	if err == nil {
		out.Status = StatusExecuted
		e.record(ctx, ev, out)
		return out
	}

	out.Status = StatusFailed
	out.Err = err
	e.logger.Error("command handler failed",
		zap.String("event", ev.ID),
		zap.String("command", dec.Command.Name),
		zap.String("user", ev.UserID),
		zap.Error(err))

	cause := err
	var he *command.HandlerError
	if errors.As(err, &he) {
		cause = he.Err
	}
	out.Response = e.resolver.Resolve(response.CommandError, map[string]string{
		"error":   cause.Error(),
		"author":  ev.Author,
		"command": dec.Command.Name,
	})
	e.reply(ctx, ev, out.Response)
	e.record(ctx, ev, out)
	return out
}

func (e *Engine) reply(ctx context.Context, ev *Event, content string) {
	if ev.Responder == nil || content == "" {
		return
	}
	if err := ev.Responder.Reply(ctx, content); err != nil {
		e.logger.Error("send reply failed",
			zap.String("event", ev.ID),
			zap.String("platform", ev.Platform),
			zap.String("channel", ev.ChannelID),
			zap.Error(err))
	}
}

func (e *Engine) record(ctx context.Context, ev *Event, out *Outcome) {
	if e.audit == nil {
		return
	}
	rec := AuditRecord{
		EventID:   ev.ID,
		Platform:  ev.Platform,
		ChannelID: ev.ChannelID,
		UserID:    ev.UserID,
		Command:   out.Token,
		Status:    out.Status,
		At:        e.now(),
	}
	if out.Decision.Command != nil {
		rec.Command = out.Decision.Command.Name
	}
	if out.Status == StatusRejected {
		rec.Rejection = out.Decision.Kind.String()
	}
	if out.Err != nil {
		rec.Error = out.Err.Error()
	}
	if err := e.audit.Record(ctx, rec); err != nil {
		e.logger.Warn("audit record failed", zap.String("event", ev.ID), zap.Error(err))
	}
}
