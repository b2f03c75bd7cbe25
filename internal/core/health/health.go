// Package health serves liveness and readiness endpoints.
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"time"
)

func Liveness() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	}
}

type ReadinessReporter interface {
	Readiness() (ready bool, partitions []int32)
}

// Check is a named dependency check run on every readiness request.
type Check struct {
	Name string
	Ping func(ctx context.Context) error
}

// Readiness reports ready when rr (if any) owns partitions and every check
// passes within timeout.
func Readiness(rr ReadinessReporter, timeout time.Duration, checks ...Check) http.HandlerFunc {
	if timeout <= 0 {
		timeout = time.Second
	}
	return func(w http.ResponseWriter, r *http.Request) {
		type resp struct {
			Status     string            `json:"status"`
			Partitions []int32           `json:"partitions,omitempty"`
			Failed     map[string]string `json:"failed,omitempty"`
		}
		ready := true
		var parts []int32
		if rr != nil {
			ready, parts = rr.Readiness()
		}

		out := resp{}
		if len(checks) > 0 {
			ctx, cancel := context.WithTimeout(r.Context(), timeout)
			defer cancel()
			for _, c := range checks {
				if err := c.Ping(ctx); err != nil {
					if out.Failed == nil {
						out.Failed = map[string]string{}
					}
					out.Failed[c.Name] = err.Error()
					ready = false
				}
			}
		}

		out.Status = "not_ready"
		if ready {
			out.Status = "ready"
			out.Partitions = parts
		}
		w.Header().Set("Content-Type", "application/json")
		if !ready {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		_ = json.NewEncoder(w).Encode(out)
	}
}
