package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/nidhogg/nuka-bot/internal/command"
	"github.com/nidhogg/nuka-bot/internal/dispatch"
	"github.com/nidhogg/nuka-bot/internal/interaction"
)

// RESTAdapter accepts messages and interactions over HTTP and answers with
// the replies they produced.
type RESTAdapter struct {
	handlers Handlers
	timeout  time.Duration
	inflight int
	mu       sync.Mutex
	logger   *zap.Logger
}

// NewRESTAdapter creates a REST gateway adapter. timeout bounds how long a
// request waits for its handler.
func NewRESTAdapter(timeout time.Duration, logger *zap.Logger) *RESTAdapter {
	return &RESTAdapter{timeout: timeout, logger: logger}
}

func (a *RESTAdapter) Platform() string { return "rest" }

func (a *RESTAdapter) Bind(h Handlers) { a.handlers = h }

func (a *RESTAdapter) Connect(_ context.Context) error { return nil }

func (a *RESTAdapter) Close() error { return nil }

func (a *RESTAdapter) Status() AdapterStatus {
	a.mu.Lock()
	defer a.mu.Unlock()
	return AdapterStatus{Platform: "rest", Connected: true, Details: "inflight=" + strconv.Itoa(a.inflight)}
}

// Routes returns a chi router with REST gateway endpoints.
func (a *RESTAdapter) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/message", a.handleMessage)
	r.Post("/interaction", a.handleInteraction)
	return r
}

// Reply is one message produced while handling a request.
type Reply struct {
	Content string `json:"content"`
	Private bool   `json:"private,omitempty"`
}

// collector gathers replies for a single request.
type collector struct {
	mu      sync.Mutex
	replies []Reply
}

func (c *collector) add(content string, private bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.replies = append(c.replies, Reply{Content: content, Private: private})
	return nil
}

func (c *collector) Reply(_ context.Context, content string) error { return c.add(content, false) }

func (c *collector) ReplyPrivate(_ context.Context, content string) error { return c.add(content, true) }

func (c *collector) snapshot() []Reply {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Reply{}, c.replies...)
}

// MessageRequest is the body of POST /message.
type MessageRequest struct {
	UserID      string   `json:"user_id"`
	UserName    string   `json:"user_name"`
	Content     string   `json:"content"`
	Direct      bool     `json:"direct"`
	Permissions []string `json:"permissions"`
}

// MessageResponse reports how a message was handled.
type MessageResponse struct {
	EventID   string  `json:"event_id"`
	ChannelID string  `json:"channel_id"`
	Status    string  `json:"status"`
	Command   string  `json:"command,omitempty"`
	Rejection string  `json:"rejection,omitempty"`
	Replies   []Reply `json:"replies"`
}

func (a *RESTAdapter) handleMessage(w http.ResponseWriter, r *http.Request) {
	var req MessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Content == "" || req.UserID == "" {
		writeError(w, http.StatusBadRequest, "user_id and content are required")
		return
	}
	if a.handlers.Messages == nil {
		writeError(w, http.StatusServiceUnavailable, "no message handler")
		return
	}

	replies := &collector{}
	ev := &dispatch.Event{
		ID:        uuid.New().String(),
		Platform:  "rest",
		ChannelID: uuid.New().String(),
		Channel:   command.ChannelGuild,
		UserID:    req.UserID,
		Author:    req.UserName,
		Content:   req.Content,
		UserPerms: command.NewPermissionSet(req.Permissions...),
		BotPerms:  fullPermissions(),
		Responder: replies,
	}
	if ev.Author == "" {
		ev.Author = req.UserID
	}
	if req.Direct {
		ev.Channel = command.ChannelDirect
		ev.UserPerms = fullPermissions()
	}

	var out *dispatch.Outcome
	if !a.run(r.Context(), w, func(ctx context.Context) { out = a.handlers.Messages.Handle(ctx, ev) }) {
		return
	}

	resp := MessageResponse{
		EventID:   out.EventID,
		ChannelID: ev.ChannelID,
		Status:    string(out.Status),
		Command:   out.Token,
		Replies:   replies.snapshot(),
	}
	if out.Decision.Command != nil {
		resp.Command = out.Decision.Command.Name
	}
	if out.Status == dispatch.StatusRejected {
		resp.Rejection = out.Decision.Kind.String()
	}
	writeJSON(w, http.StatusOK, resp)
}

// InteractionRequest is the body of POST /interaction.
type InteractionRequest struct {
	Kind     string            `json:"kind"`
	Name     string            `json:"name"`
	CustomID string            `json:"custom_id"`
	Options  map[string]string `json:"options"`
	Values   []string          `json:"values"`
	UserID   string            `json:"user_id"`
	UserName string            `json:"user_name"`
	Direct   bool              `json:"direct"`
}

// InteractionResponse reports how an interaction was handled.
type InteractionResponse struct {
	Result  string  `json:"result"`
	Replies []Reply `json:"replies"`
}

var interactionKinds = map[string]interaction.Kind{
	"command": interaction.KindCommand,
	"button":  interaction.KindButton,
	"select":  interaction.KindSelect,
}

var interactionResults = map[interaction.Result]string{
	interaction.Ignored: "ignored",
	interaction.Handled: "handled",
	interaction.Failed:  "failed",
}

func (a *RESTAdapter) handleInteraction(w http.ResponseWriter, r *http.Request) {
	var req InteractionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	kind, ok := interactionKinds[req.Kind]
	if !ok || req.UserID == "" {
		writeError(w, http.StatusBadRequest, "kind must be command, button or select and user_id is required")
		return
	}
	if a.handlers.Interactions == nil {
		writeError(w, http.StatusServiceUnavailable, "no interaction handler")
		return
	}

	replies := &collector{}
	in := &interaction.Interaction{
		Kind:      kind,
		Name:      req.Name,
		CustomID:  req.CustomID,
		Options:   req.Options,
		Values:    req.Values,
		Platform:  "rest",
		ChannelID: uuid.New().String(),
		Channel:   command.ChannelGuild,
		UserID:    req.UserID,
		Author:    req.UserName,
		Responder: replies,
	}
	if in.Author == "" {
		in.Author = req.UserID
	}
	if req.Direct {
		in.Channel = command.ChannelDirect
	}

	var res interaction.Result
	if !a.run(r.Context(), w, func(ctx context.Context) { res = a.handlers.Interactions.Route(ctx, in) }) {
		return
	}
	writeJSON(w, http.StatusOK, InteractionResponse{Result: interactionResults[res], Replies: replies.snapshot()})
}

// run executes fn bounded by the adapter timeout. It writes the error
// response itself and reports false when fn did not finish.
func (a *RESTAdapter) run(ctx context.Context, w http.ResponseWriter, fn func(ctx context.Context)) bool {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	a.mu.Lock()
	a.inflight++
	a.mu.Unlock()
	done := make(chan struct{})
	go func() {
		defer func() {
			a.mu.Lock()
			a.inflight--
			a.mu.Unlock()
			close(done)
		}()
		fn(ctx)
	}()

	select {
	case <-done:
		return true
	case <-ctx.Done():
		a.logger.Warn("rest gateway request timed out", zap.Duration("timeout", a.timeout))
		writeError(w, http.StatusGatewayTimeout, "response timeout")
		return false
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
