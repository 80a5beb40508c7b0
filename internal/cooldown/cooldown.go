// Package cooldown tracks per-command, per-user cooldown windows. Records evict
// themselves once their window elapses so memory stays bounded to users that
// are currently cooling down.
package cooldown

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

type record struct {
	expires time.Time
	timer   *time.Timer
}

// Tracker holds one bucket per command, keyed by user id.
type Tracker struct {
	buckets map[string]map[string]*record
	mu      sync.Mutex
	logger  *zap.Logger
}

// NewTracker creates an empty tracker.
func NewTracker(logger *zap.Logger) *Tracker {
	return &Tracker{
		buckets: make(map[string]map[string]*record),
		logger:  logger,
	}
}

// Record starts (or restarts) the cooldown of user on command, expiring at
// now+d. The eviction timer of an overwritten record is stopped.
func (t *Tracker) Record(command, user string, now time.Time, d time.Duration) {
	rec := &record{expires: now.Add(d)}

	t.mu.Lock()
	defer t.mu.Unlock()

	bucket, ok := t.buckets[command]
	if !ok {
		bucket = make(map[string]*record)
		t.buckets[command] = bucket
	}
	if old, ok := bucket[user]; ok && old.timer != nil {
		old.timer.Stop()
	}
	rec.timer = time.AfterFunc(d, func() { t.evict(command, user, rec) })
	bucket[user] = rec
}

func (t *Tracker) evict(command, user string, rec *record) {
	t.mu.Lock()
	defer t.mu.Unlock()
	bucket := t.buckets[command]
	if bucket[user] != rec {
		return
	}
	delete(bucket, user)
	if len(bucket) == 0 {
		delete(t.buckets, command)
	}
	t.logger.Debug("cooldown evicted",
		zap.String("command", command), zap.String("user", user))
}

// Remaining reports how long user still has to wait for command. ok is false
// when there is no record or it has already expired.
func (t *Tracker) Remaining(command, user string, now time.Time) (left time.Duration, ok bool) {
	t.mu.Lock()
	rec, found := t.buckets[command][user]
	t.mu.Unlock()
	if !found {
		return 0, false
	}
	left = rec.expires.Sub(now)
	if left <= 0 {
		return 0, false
	}
	return left, true
}

// Len returns the number of live records across all commands.
func (t *Tracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	n := 0
	for _, b := range t.buckets {
		n += len(b)
	}
	return n
}

// Stop cancels all pending evictions and drops every record.
func (t *Tracker) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, b := range t.buckets {
		for _, rec := range b {
			rec.timer.Stop()
		}
	}
	t.buckets = make(map[string]map[string]*record)
}
