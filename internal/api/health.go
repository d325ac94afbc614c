package api

import (
	"context"
	"net/http"
	"time"

	"github.com/atelierhq/loom-core/internal/httputil"
)

const readinessTimeout = 5 * time.Second

// Health handles GET /loom/v1/health (liveness only).
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"version": h.version,
	})
}

// Ready handles GET /loom/v1/ready. The service is ready when both context
// sources answer and at least one provider is routable; otherwise 503 with
// per-dependency detail.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
	defer cancel()

	checks := make(map[string]string)
	ready := true

	if err := h.knowledge.Ping(ctx); err != nil {
		checks["knowledge_store"] = "unreachable: " + err.Error()
		ready = false
	} else {
		checks["knowledge_store"] = "ok"
	}

	if err := h.repo.Ping(ctx); err != nil {
		checks["repository_host"] = "unreachable: " + err.Error()
		ready = false
	} else {
		checks["repository_host"] = "ok"
	}

	healthy := 0
	for _, snap := range h.engine.Snapshots() {
		if snap.Enabled && snap.Available {
			healthy++
		}
	}
	if healthy == 0 {
		checks["providers"] = "no healthy provider"
		ready = false
	} else {
		checks["providers"] = "ok"
	}

	status := http.StatusOK
	body := map[string]any{
		"status":  "ready",
		"version": h.version,
		"checks":  checks,
	}
	if !ready {
		status = http.StatusServiceUnavailable
		body["status"] = "not ready"
	}
	httputil.WriteJSON(w, status, body)
}
