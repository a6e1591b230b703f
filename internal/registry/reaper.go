package registry

import (
	"context"
	"time"
)

// RunReaper evicts stale entries from reg every timeout/2, until ctx is
// canceled. Runs forever otherwise; eviction logging happens inside
// Registry.Expire.
func RunReaper(ctx context.Context, reg *Registry, timeout time.Duration) {
	interval := timeout / 2
	if interval <= 0 {
		interval = DefaultPeerTimeout / 2
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			reg.Expire()
		}
	}
}
