package mesh

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"meshsentinel/pkg/logger"
)

// syncTimeout bounds the HTTP push issued after a manual verify. It runs
// in its own goroutine per peer already, so a slow peer never blocks the
// verify call itself.
const syncTimeout = 3 * time.Second

// HTTPSyncPusher implements SyncPusher over plain HTTP, posting to each
// peer's own HTTP surface. Redsskull-p2pchat has no HTTP layer of its
// own, so this is built directly on net/http per spec §6's route table.
type HTTPSyncPusher struct {
	Port   int
	Client *http.Client
}

// NewHTTPSyncPusher constructs a pusher targeting the given HTTP port on
// every peer (all nodes in a mesh run the same configured port).
func NewHTTPSyncPusher(port int) *HTTPSyncPusher {
	return &HTTPSyncPusher{
		Port:   port,
		Client: &http.Client{Timeout: syncTimeout},
	}
}

// PushSync posts payload to peerIP's /api/events/{id}/sync endpoint. Any
// failure is logged and otherwise swallowed — sync pushes are best-effort
// convergence, not a reliability guarantee.
func (p *HTTPSyncPusher) PushSync(peerIP string, eventID string, payload SyncPayload) {
	body, err := json.Marshal(payload)
	if err != nil {
		logger.Error("sync push: failed to marshal payload: %v", err)
		return
	}

	url := fmt.Sprintf("http://%s:%d/api/events/%s/sync", peerIP, p.Port, eventID)
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		logger.Debug("sync push: bad request for %s: %v", peerIP, err)
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.Client.Do(req)
	if err != nil {
		logger.Debug("sync push to %s failed: %v", peerIP, err)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		logger.Debug("sync push to %s returned status %d", peerIP, resp.StatusCode)
	}
}
