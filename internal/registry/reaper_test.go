package registry

import (
	"context"
	"testing"
	"time"
)

func TestRunReaperEvictsOnTicker(t *testing.T) {
	r := NewWithTimeout(10 * time.Millisecond)
	r.Register("10.0.0.9")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go RunReaper(ctx, r, 10*time.Millisecond)

	deadline := time.Now().Add(200 * time.Millisecond)
	for time.Now().Before(deadline) {
		r.mu.RLock()
		_, stillTracked := r.lastSeen["10.0.0.9"]
		r.mu.RUnlock()
		if !stillTracked {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Error("expected reaper to evict the stale peer within the deadline")
}

func TestRunReaperStopsOnCancel(t *testing.T) {
	r := New()
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		RunReaper(ctx, r, 5*time.Millisecond)
		close(done)
	}()

	cancel()

	select {
	case <-done:
	case <-time.After(500 * time.Millisecond):
		t.Error("expected RunReaper to return promptly after cancellation")
	}
}
