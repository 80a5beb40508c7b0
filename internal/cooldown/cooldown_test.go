package cooldown

import (
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
)

func TestRemainingWindow(t *testing.T) {
	tr := NewTracker(zap.NewNop())
	defer tr.Stop()
	now := time.Now()
	tr.Record("ping", "u1", now, time.Second)

	left, ok := tr.Remaining("ping", "u1", now.Add(300*time.Millisecond))
	if !ok || left != 700*time.Millisecond {
		t.Errorf("inside window: got %v, %v", left, ok)
	}
	if _, ok := tr.Remaining("ping", "u1", now.Add(time.Second+time.Millisecond)); ok {
		t.Error("expected no cooldown after the window")
	}
	if _, ok := tr.Remaining("ping", "u2", now); ok {
		t.Error("other user must not be on cooldown")
	}
	if _, ok := tr.Remaining("pong", "u1", now); ok {
		t.Error("other command must not be on cooldown")
	}
}

func TestOverwriteKeepsSingleRecord(t *testing.T) {
	tr := NewTracker(zap.NewNop())
	defer tr.Stop()
	now := time.Now()
	tr.Record("ping", "u1", now, time.Minute)
	tr.Record("ping", "u1", now, 2*time.Minute)

	if tr.Len() != 1 {
		t.Fatalf("got %d records, want 1", tr.Len())
	}
	left, ok := tr.Remaining("ping", "u1", now)
	if !ok || left != 2*time.Minute {
		t.Errorf("last write should win: got %v, %v", left, ok)
	}
}

func TestEviction(t *testing.T) {
	tr := NewTracker(zap.NewNop())
	defer tr.Stop()
	tr.Record("ping", "u1", time.Now(), 20*time.Millisecond)
	tr.Record("ping", "u2", time.Now(), time.Hour)

	deadline := time.Now().Add(2 * time.Second)
	for tr.Len() != 1 {
		if time.Now().After(deadline) {
			t.Fatalf("record not evicted, %d left", tr.Len())
		}
		time.Sleep(5 * time.Millisecond)
	}
	if _, ok := tr.Remaining("ping", "u2", time.Now()); !ok {
		t.Error("long record must survive")
	}
}

func TestStaleTimerDoesNotEvictNewerRecord(t *testing.T) {
	tr := NewTracker(zap.NewNop())
	defer tr.Stop()
	now := time.Now()
	tr.Record("ping", "u1", now, 10*time.Millisecond)
	tr.Record("ping", "u1", now, time.Hour)

	time.Sleep(50 * time.Millisecond)
	if _, ok := tr.Remaining("ping", "u1", time.Now()); !ok {
		t.Error("newer record was evicted by the old timer")
	}
}

func TestConcurrentRecord(t *testing.T) {
	tr := NewTracker(zap.NewNop())
	defer tr.Stop()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tr.Record("ping", "u1", time.Now(), time.Minute)
			tr.Remaining("ping", "u1", time.Now())
		}()
	}
	wg.Wait()
	if tr.Len() != 1 {
		t.Errorf("got %d records, want 1", tr.Len())
	}
}
