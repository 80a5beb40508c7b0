// Package blocklist manages the bot-wide and per-command user lists at
// runtime and optionally persists them.
package blocklist

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/nidhogg/nuka-bot/internal/command"
)

// ErrUnknownCommand is returned when a scope names an unregistered command.
var ErrUnknownCommand = errors.New("unknown command")

// Scope selects one list: the global block-list when Command is empty,
// otherwise the command's block-list or, with Allow, its allow-list.
type Scope struct {
	Command string
	Allow   bool
}

func (s Scope) String() string {
	switch {
	case s.Command == "":
		return "global block-list"
	case s.Allow:
		return s.Command + " allow-list"
	default:
		return s.Command + " block-list"
	}
}

// Store persists lists.
type Store interface {
	Add(ctx context.Context, scope Scope, userID string) error
	Remove(ctx context.Context, scope Scope, userID string) error
	Members(ctx context.Context, scope Scope) ([]string, error)
}

// Manager applies list changes to the in-memory sets used by the dispatch
// pipeline and writes them through to an optional Store. Changes race with
// in-flight events; the last write wins.
type Manager struct {
	global   *command.UserSet
	registry *command.Registry
	store    Store
	logger   *zap.Logger
}

// NewManager creates a manager. store may be nil.
func NewManager(global *command.UserSet, reg *command.Registry, store Store, logger *zap.Logger) *Manager {
	return &Manager{global: global, registry: reg, store: store, logger: logger}
}

func (m *Manager) set(scope Scope) (*command.UserSet, error) {
	if scope.Command == "" {
		if scope.Allow {
			return nil, fmt.Errorf("the global scope has no allow-list")
		}
		return m.global, nil
	}
	d, ok := m.registry.Resolve(scope.Command)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownCommand, scope.Command)
	}
	if scope.Allow {
		return d.Unblocked, nil
	}
	return d.Blocked, nil
}

// canonical resolves aliases so persisted keys always use the command name.
func (m *Manager) canonical(scope Scope) Scope {
	if scope.Command == "" {
		return scope
	}
	if d, ok := m.registry.Resolve(scope.Command); ok {
		scope.Command = d.Name
	}
	return scope
}

// Add puts userID on the list selected by scope.
func (m *Manager) Add(ctx context.Context, scope Scope, userID string) error {
	set, err := m.set(scope)
	if err != nil {
		return err
	}
	set.Add(userID)
	m.logger.Info("user added", zap.Stringer("list", scope), zap.String("user", userID))
	if m.store == nil {
		return nil
	}
	return m.store.Add(ctx, m.canonical(scope), userID)
}

// Remove takes userID off the list selected by scope.
func (m *Manager) Remove(ctx context.Context, scope Scope, userID string) error {
	set, err := m.set(scope)
	if err != nil {
		return err
	}
	set.Remove(userID)
	m.logger.Info("user removed", zap.Stringer("list", scope), zap.String("user", userID))
	if m.store == nil {
		return nil
	}
	return m.store.Remove(ctx, m.canonical(scope), userID)
}

// Members lists the in-memory content of scope.
func (m *Manager) Members(scope Scope) ([]string, error) {
	set, err := m.set(scope)
	if err != nil {
		return nil, err
	}
	return set.Members(), nil
}

// Hydrate merges persisted lists into the in-memory sets. Entries from the
// config file are kept and written back so both sides agree.
func (m *Manager) Hydrate(ctx context.Context) error {
	if m.store == nil {
		return nil
	}
	scopes := []Scope{{}}
	for _, d := range m.registry.List() {
		scopes = append(scopes, Scope{Command: d.Name}, Scope{Command: d.Name, Allow: true})
	}
	for _, scope := range scopes {
		set, err := m.set(scope)
		if err != nil {
			return err
		}
		stored, err := m.store.Members(ctx, scope)
		if err != nil {
			return err
		}
		for _, id := range set.Members() {
			if err := m.store.Add(ctx, scope, id); err != nil {
				return err
			}
		}
		for _, id := range stored {
			set.Add(id)
		}
	}
	m.logger.Info("block-lists hydrated", zap.Int("scopes", len(scopes)))
	return nil
}
