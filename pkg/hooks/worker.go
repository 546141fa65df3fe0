package hooks

import (
	"bytes"
	"fmt"
	"net/http"
	"time"

	"github.com/goccy/go-json"
)

// workerTimeout bounds every call to the daemon. A slow or absent daemon
// must never stall a hook invocation; callers fall back to the shared store.
const workerTimeout = 500 * time.Millisecond

// IsWorkerRunning reports whether hooktraild answers its health check on the
// given port.
func IsWorkerRunning(port int) bool {
	client := &http.Client{Timeout: workerTimeout}
	resp, err := client.Get(fmt.Sprintf("http://127.0.0.1:%d/api/health", port))
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

// WorkerLimiter delegates rate-limit decisions to a running hooktraild,
// whose long-lived in-memory counters actually accumulate across the
// short-lived hook processes.
type WorkerLimiter struct {
	port   int
	client *http.Client
}

// NewWorkerLimiter returns a limiter talking to the daemon on port.
func NewWorkerLimiter(port int) *WorkerLimiter {
	return &WorkerLimiter{
		port:   port,
		client: &http.Client{Timeout: workerTimeout},
	}
}

// Allow asks the daemon to record one call for hookName.
func (w *WorkerLimiter) Allow(hookName string) (bool, error) {
	body, err := json.Marshal(map[string]string{"hook": hookName})
	if err != nil {
		return false, err
	}
	url := fmt.Sprintf("http://127.0.0.1:%d/api/ratelimit/check", w.port)
	resp, err := w.client.Post(url, "application/json", bytes.NewReader(body))
	if err != nil {
		return false, fmt.Errorf("worker rate-limit check: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return false, fmt.Errorf("worker rate-limit check: status %d", resp.StatusCode)
	}

	var result struct {
		Allowed bool `json:"allowed"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return false, fmt.Errorf("worker rate-limit check: %w", err)
	}
	return result.Allowed, nil
}
