package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/nidhogg/nuka-bot/internal/blocklist"
	"github.com/nidhogg/nuka-bot/internal/command"
	"github.com/nidhogg/nuka-bot/internal/dispatch"
	"github.com/nidhogg/nuka-bot/internal/gateway"
	"github.com/nidhogg/nuka-bot/internal/interaction"
	"github.com/nidhogg/nuka-bot/internal/store"
)

// InvocationLister reads the audit log. *store.Store implements it.
type InvocationLister interface {
	Recent(ctx context.Context, userID string, limit int) ([]store.Invocation, error)
}

// Handler holds dependencies for HTTP handlers.
type Handler struct {
	engine *dispatch.Engine
	lists  *blocklist.Manager
	router *interaction.Router
	audit  InvocationLister
	restGW *gateway.RESTAdapter
	gw     *gateway.Gateway
	token  string
	logger *zap.Logger
}

// NewHandler creates a new API handler. audit may be nil when no database is
// configured. token protects the REST gateway and the list mutation routes.
func NewHandler(
	engine *dispatch.Engine,
	lists *blocklist.Manager,
	router *interaction.Router,
	audit InvocationLister,
	restGW *gateway.RESTAdapter,
	gw *gateway.Gateway,
	token string,
	logger *zap.Logger,
) *Handler {
	return &Handler{
		engine: engine,
		lists:  lists,
		router: router,
		audit:  audit,
		restGW: restGW,
		gw:     gw,
		token:  token,
		logger: logger,
	}
}

// Router builds the chi router with all routes.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-API-Key"},
		AllowCredentials: true,
	}))

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", h.healthCheck)

		// Command routes
		r.Get("/commands", h.listCommands)
		r.Get("/commands/{name}", h.getCommand)
		r.Get("/interactions", h.listInteractions)
		r.Get("/blocklist", h.listBlocked)
		r.Get("/cooldowns", h.cooldownStats)
		r.Get("/invocations", h.listInvocations)
		r.Get("/gateway/status", h.gatewayStatus)

		// Routes that change lists or speak for a user need the API token
		r.Group(func(r chi.Router) {
			r.Use(requireToken(h.token))

			r.Put("/commands/{name}/blocked/{user}", h.updateList(true, false))
			r.Delete("/commands/{name}/blocked/{user}", h.updateList(false, false))
			r.Put("/commands/{name}/allowed/{user}", h.updateList(true, true))
			r.Delete("/commands/{name}/allowed/{user}", h.updateList(false, true))

			r.Put("/blocklist/{user}", h.updateList(true, false))
			r.Delete("/blocklist/{user}", h.updateList(false, false))

			if h.restGW != nil {
				r.Mount("/gateway/rest", h.restGW.Routes())
			}
		})
	})

	return r
}

func (h *Handler) healthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"commands": len(h.engine.Registry().List()),
		"prefixes": h.engine.Prefixes(),
	})
}

// commandInfo is the JSON view of a descriptor.
type commandInfo struct {
	Name           string   `json:"name"`
	Aliases        []string `json:"aliases,omitempty"`
	Description    string   `json:"description,omitempty"`
	Usage          string   `json:"usage,omitempty"`
	Args           int      `json:"args"`
	Cooldown       int      `json:"cooldown"`
	GuildOnly      bool     `json:"guild_only"`
	DMsOnly        bool     `json:"dms_only"`
	OwnersOnly     bool     `json:"owners_only"`
	Permissions    []string `json:"permissions,omitempty"`
	BotPermissions []string `json:"bot_permissions,omitempty"`
	Blocked        []string `json:"blocked,omitempty"`
	Allowed        []string `json:"allowed,omitempty"`
}

func describe(d *command.Descriptor, lists bool) commandInfo {
	info := commandInfo{
		Name:           d.Name,
		Aliases:        d.Aliases,
		Description:    d.Description,
		Usage:          d.Usage,
		Args:           d.Args,
		Cooldown:       d.Cooldown,
		GuildOnly:      d.GuildOnly,
		DMsOnly:        d.DMsOnly,
		OwnersOnly:     d.OwnersOnly,
		Permissions:    d.Permissions,
		BotPermissions: d.BotPermissions,
	}
	if lists {
		info.Blocked = d.Blocked.Members()
		info.Allowed = d.Unblocked.Members()
	}
	return info
}

func (h *Handler) listCommands(w http.ResponseWriter, r *http.Request) {
	descs := h.engine.Registry().List()
	out := make([]commandInfo, 0, len(descs))
	for _, d := range descs {
		out = append(out, describe(d, false))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) getCommand(w http.ResponseWriter, r *http.Request) {
	d, ok := h.engine.Registry().Resolve(chi.URLParam(r, "name"))
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "command not found"})
		return
	}
	writeJSON(w, http.StatusOK, describe(d, true))
}

func (h *Handler) listInteractions(w http.ResponseWriter, r *http.Request) {
	if h.router == nil {
		writeJSON(w, http.StatusOK, []interaction.SlashCommand{})
		return
	}
	writeJSON(w, http.StatusOK, h.router.Commands())
}

func (h *Handler) listBlocked(w http.ResponseWriter, r *http.Request) {
	members, err := h.lists.Members(blocklist.Scope{})
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"users": members})
}

// updateList serves PUT (add) and DELETE (remove) on one list. The command
// name is taken from the route when present.
func (h *Handler) updateList(add, allow bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		scope := blocklist.Scope{Command: chi.URLParam(r, "name"), Allow: allow}
		user := chi.URLParam(r, "user")

		var err error
		if add {
			err = h.lists.Add(r.Context(), scope, user)
		} else {
			err = h.lists.Remove(r.Context(), scope, user)
		}
		if errors.Is(err, blocklist.ErrUnknownCommand) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
			return
		}
		if err != nil {
			h.logger.Error("update list failed", zap.Stringer("list", scope), zap.Error(err))
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
			return
		}

		members, _ := h.lists.Members(scope)
		writeJSON(w, http.StatusOK, map[string]any{"list": scope.String(), "users": members})
	}
}

func (h *Handler) cooldownStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]int{"active": h.engine.Cooldowns().Len()})
}

func (h *Handler) listInvocations(w http.ResponseWriter, r *http.Request) {
	if h.audit == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "audit log disabled"})
		return
	}
	limit := 50
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "limit must be a positive integer"})
			return
		}
		limit = n
	}

	invs, err := h.audit.Recent(r.Context(), r.URL.Query().Get("user"), limit)
	if err != nil {
		h.logger.Error("list invocations failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	if invs == nil {
		invs = []store.Invocation{}
	}
	writeJSON(w, http.StatusOK, invs)
}

func (h *Handler) gatewayStatus(w http.ResponseWriter, r *http.Request) {
	if h.gw == nil {
		writeJSON(w, http.StatusOK, []gateway.AdapterStatus{})
		return
	}
	writeJSON(w, http.StatusOK, h.gw.Statuses())
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
