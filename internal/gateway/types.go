package gateway

import (
	"context"
	"time"

	"github.com/nidhogg/nuka-bot/internal/dispatch"
	"github.com/nidhogg/nuka-bot/internal/interaction"
)

// Adapter is one platform connection. Adapters normalize platform traffic into
// dispatch events and interactions and hand them to the bound Handlers.
type Adapter interface {
	Platform() string
	Bind(h Handlers)
	Connect(ctx context.Context) error
	Close() error
	Status() AdapterStatus
}

// MessageHandler consumes text messages. *dispatch.Engine implements it.
type MessageHandler interface {
	Handle(ctx context.Context, ev *dispatch.Event) *dispatch.Outcome
}

// InteractionHandler consumes structured events. *interaction.Router
// implements it.
type InteractionHandler interface {
	Route(ctx context.Context, in *interaction.Interaction) interaction.Result
}

// Handlers is what every adapter feeds.
type Handlers struct {
	Messages     MessageHandler
	Interactions InteractionHandler
}

// AdapterStatus reports the connection state of an adapter.
type AdapterStatus struct {
	Platform    string     `json:"platform"`
	Connected   bool       `json:"connected"`
	ConnectedAt *time.Time `json:"connected_at,omitempty"`
	Error       string     `json:"error,omitempty"`
	Details     string     `json:"details,omitempty"`
}
