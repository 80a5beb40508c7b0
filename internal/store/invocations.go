package store

import (
	"context"
	"fmt"
	"time"

	"github.com/nidhogg/nuka-bot/internal/dispatch"
)

// Invocation is one stored terminal action of the dispatch engine.
type Invocation struct {
	EventID   string    `json:"event_id"`
	Platform  string    `json:"platform"`
	ChannelID string    `json:"channel_id"`
	UserID    string    `json:"user_id"`
	Command   string    `json:"command"`
	Status    string    `json:"status"`
	Rejection string    `json:"rejection,omitempty"`
	Error     string    `json:"error,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Record implements dispatch.AuditSink.
func (s *Store) Record(ctx context.Context, rec dispatch.AuditRecord) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO invocations (event_id, platform, channel_id, user_id, command, status, rejection, error, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (event_id) DO NOTHING`,
		rec.EventID, rec.Platform, rec.ChannelID, rec.UserID, rec.Command,
		string(rec.Status), rec.Rejection, rec.Error, rec.At,
	)
	if err != nil {
		return fmt.Errorf("record invocation %s: %w", rec.EventID, err)
	}
	return nil
}

// Recent returns the latest invocations, newest first. userID filters when
// not empty.
func (s *Store) Recent(ctx context.Context, userID string, limit int) ([]Invocation, error) {
	if limit <= 0 || limit > 500 {
		limit = 50
	}

	rows, err := s.db.Query(ctx, `
		SELECT event_id::text, platform, channel_id, user_id, command, status, rejection, error, created_at
		FROM invocations
		WHERE $1 = '' OR user_id = $1
		ORDER BY created_at DESC
		LIMIT $2`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("recent invocations: %w", err)
	}
	defer rows.Close()

	var out []Invocation
	for rows.Next() {
		var inv Invocation
		if err := rows.Scan(&inv.EventID, &inv.Platform, &inv.ChannelID, &inv.UserID,
			&inv.Command, &inv.Status, &inv.Rejection, &inv.Error, &inv.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan invocation: %w", err)
		}
		out = append(out, inv)
	}
	return out, rows.Err()
}
