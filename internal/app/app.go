// Package app wires configuration into a running bot.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/nidhogg/nuka-bot/internal/api"
	"github.com/nidhogg/nuka-bot/internal/blocklist"
	"github.com/nidhogg/nuka-bot/internal/builtin"
	"github.com/nidhogg/nuka-bot/internal/command"
	"github.com/nidhogg/nuka-bot/internal/config"
	"github.com/nidhogg/nuka-bot/internal/dispatch"
	"github.com/nidhogg/nuka-bot/internal/gateway"
	"github.com/nidhogg/nuka-bot/internal/interaction"
	"github.com/nidhogg/nuka-bot/internal/response"
	pgstore "github.com/nidhogg/nuka-bot/internal/store"
)

// App is the assembled bot.
type App struct {
	Engine  *dispatch.Engine
	Router  *interaction.Router
	Lists   *blocklist.Manager
	Gateway *gateway.Gateway

	handler    http.Handler
	discord    *gateway.DiscordAdapter
	pgStore    *pgstore.Store
	redisStore *blocklist.RedisStore
	logger     *zap.Logger
}

// New builds the bot from cfg. Unreachable databases are logged and skipped;
// invalid configuration is an error.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	if cfg.Gateway.REST.Enabled && cfg.Server.APIToken == "" {
		return nil, errors.New("gateway.rest requires server.api_token")
	}
	a := &App{logger: logger}

	// Response catalog
	catalog, err := response.DefaultCatalog().Merge(cfg.Responses)
	if err != nil {
		return nil, fmt.Errorf("response overrides: %w", err)
	}
	resolver := response.NewResolver(catalog, logger)

	// Initialize PostgreSQL audit log
	var engineOpts []dispatch.Option
	if cfg.Database.Postgres.DSN != "" {
		ps, pgErr := pgstore.New(ctx, cfg.Database.Postgres.DSN, logger)
		if pgErr != nil {
			logger.Warn("PostgreSQL unavailable, running without audit log", zap.Error(pgErr))
		} else {
			if mErr := ps.Migrate(ctx); mErr != nil {
				ps.Close()
				return nil, fmt.Errorf("migrate: %w", mErr)
			}
			a.pgStore = ps
			engineOpts = append(engineOpts, dispatch.WithAudit(ps))
		}
	}

	// Dispatch engine and interaction router
	registry := command.NewRegistry()
	a.Engine = dispatch.NewEngine(dispatch.Config{
		Prefixes: cfg.Dispatch.Prefixes,
		Owners:   cfg.Dispatch.Owners,
		Blocked:  cfg.Dispatch.BlockedUsers,
	}, registry, resolver, logger, engineOpts...)
	a.Router = interaction.NewRouter(resolver, logger)

	// Initialize gateway
	a.Gateway = gateway.NewGateway(gateway.Handlers{Messages: a.Engine, Interactions: a.Router}, logger)

	var restAdapter *gateway.RESTAdapter
	if cfg.Gateway.REST.Enabled {
		restAdapter = gateway.NewRESTAdapter(time.Duration(cfg.Gateway.REST.TimeoutSeconds)*time.Second, logger)
		a.Gateway.Register(restAdapter)
	}
	if cfg.Gateway.Slack.Enabled && cfg.Gateway.Slack.BotToken != "" {
		a.Gateway.Register(gateway.NewSlackAdapter(cfg.Gateway.Slack.BotToken, cfg.Gateway.Slack.AppToken, logger))
	}
	if cfg.Gateway.Discord.Enabled && cfg.Gateway.Discord.BotToken != "" {
		a.discord = gateway.NewDiscordAdapter(cfg.Gateway.Discord.BotToken, cfg.Gateway.Discord.GuildID, logger)
		a.Gateway.Register(a.discord)
	}

	// Block-lists, optionally persisted in Redis
	var listStore blocklist.Store
	if cfg.Database.Redis.URL != "" {
		rs, rErr := blocklist.NewRedisStore(cfg.Database.Redis.URL, logger)
		if rErr != nil {
			logger.Warn("Redis unavailable, block-lists will not persist", zap.Error(rErr))
		} else {
			a.redisStore = rs
			listStore = rs
		}
	}
	a.Lists = blocklist.NewManager(a.Engine.Blocked(), registry, listStore, logger)

	// Commands
	if err := builtin.Register(registry, cfg.Dispatch.Commands, a.Lists, a.Gateway); err != nil {
		a.Close()
		return nil, err
	}
	for name := range cfg.Dispatch.Commands {
		if _, ok := registry.Resolve(name); !ok {
			logger.Warn("config names an unknown command", zap.String("command", name))
		}
	}
	if err := builtin.RegisterInteractions(a.Router, registry, a.Gateway); err != nil {
		a.Close()
		return nil, err
	}
	if err := a.Lists.Hydrate(ctx); err != nil {
		logger.Warn("failed to load persisted block-lists", zap.Error(err))
	}
	logger.Info("Commands registered",
		zap.Int("commands", len(registry.List())),
		zap.Int("interactions", len(a.Router.Commands())),
		zap.Strings("prefixes", a.Engine.Prefixes()))

	// Build HTTP handler
	var audit api.InvocationLister
	if a.pgStore != nil {
		audit = a.pgStore
	}
	a.handler = api.NewHandler(a.Engine, a.Lists, a.Router, audit, restAdapter, a.Gateway, cfg.Server.APIToken, logger).Router()
	return a, nil
}

// Handler returns the HTTP API.
func (a *App) Handler() http.Handler { return a.handler }

// Connect starts every platform adapter and publishes slash commands.
// Adapter failures are logged, not fatal.
func (a *App) Connect(ctx context.Context) {
	if err := a.Gateway.ConnectAll(ctx); err != nil {
		a.logger.Warn("some gateway adapters failed to connect", zap.Error(err))
	}
	if a.discord == nil {
		return
	}
	if err := a.discord.PublishCommands(a.Router.Commands()); err != nil {
		a.logger.Warn("failed to publish slash commands", zap.Error(err))
	}
}

// Close releases adapters, timers and database connections.
func (a *App) Close() {
	if a.Gateway != nil {
		a.Gateway.Close()
	}
	if a.Engine != nil {
		a.Engine.Stop()
	}
	if a.redisStore != nil {
		a.redisStore.Close()
	}
	if a.pgStore != nil {
		a.pgStore.Close()
	}
}
