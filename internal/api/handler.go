// Package api exposes the compiler and routing engine over HTTP, following
// the platform's service API conventions: Bearer-authenticated JSON
// endpoints, X-Request-ID propagation, typed error envelopes.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/atelierhq/loom-core/internal/compiler"
	"github.com/atelierhq/loom-core/internal/httputil"
	"github.com/atelierhq/loom-core/internal/router"
	"github.com/atelierhq/loom-core/internal/types"
)

// headerTrace carries a caller-supplied correlation id across service hops.
const headerTrace = "X-Loom-Trace"

// Handler holds dependencies for the service's HTTP handlers.
type Handler struct {
	compiler  *compiler.Compiler
	engine    *router.Engine
	knowledge Pinger
	repo      Pinger
	logger    *slog.Logger
	version   string
}

// Pinger is a reachability check against one collaborator.
type Pinger interface {
	Ping(ctx context.Context) error
}

func NewHandler(c *compiler.Compiler, e *router.Engine, knowledge, repo Pinger, logger *slog.Logger, version string) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		compiler:  c,
		engine:    e,
		knowledge: knowledge,
		repo:      repo,
		logger:    logger,
		version:   version,
	}
}

// CompileContext handles POST /v1/context/compile.
func (h *Handler) CompileContext(w http.ResponseWriter, r *http.Request) {
	reqID := w.Header().Get("X-Request-ID")

	req, ok := h.decodeCompileRequest(w, r, reqID)
	if !ok {
		return
	}
	req.TraceID = r.Header.Get(headerTrace)
	req.ReceivedAt = time.Now()

	compiled, err := h.compiler.Compile(r.Context(), req)
	if err != nil {
		if errors.Is(err, compiler.ErrSystemPromptTooLarge) {
			httputil.WriteConfigurationError(w,
				"System prompt exceeds the token budget for this model/task combination", reqID)
			return
		}
		h.logger.Error("compile failed", "request_id", reqID, "task_id", req.TaskID, "error", err)
		httputil.WriteInternalError(w, reqID)
		return
	}

	h.logger.Info("context compiled",
		"request_id", reqID,
		"task_id", req.TaskID,
		"trace_id", compiled.TraceID,
		"model", compiled.ModelRecommendation,
		"token_count", compiled.TokenCount,
		"token_budget", compiled.TokenBudget,
		"blocks", len(compiled.Blocks),
		"degraded_sources", len(compiled.DegradedSources),
	)
	httputil.WriteJSON(w, http.StatusOK, compiled)
}

// EstimateContext handles POST /v1/context/estimate. No external fetches.
func (h *Handler) EstimateContext(w http.ResponseWriter, r *http.Request) {
	reqID := w.Header().Get("X-Request-ID")

	req, ok := h.decodeCompileRequest(w, r, reqID)
	if !ok {
		return
	}

	httputil.WriteJSON(w, http.StatusOK, h.compiler.Estimate(req))
}

// Budget handles GET /v1/context/budget/{model}. Model names may carry a
// vendor prefix ("deepseek/deepseek-r1"), so the segment arrives
// percent-encoded.
func (h *Handler) Budget(w http.ResponseWriter, r *http.Request) {
	reqID := w.Header().Get("X-Request-ID")

	model, err := url.PathUnescape(chi.URLParam(r, "model"))
	if err != nil || model == "" {
		httputil.WriteBadRequestError(w, "model is required", reqID)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, budgetResponse{
		Model:         model,
		ContextWindow: compiler.ContextWindow(model),
		Budgets:       compiler.BudgetFor(model),
	})
}

type budgetResponse struct {
	Model         string                 `json:"model"`
	ContextWindow int                    `json:"context_window"`
	Budgets       map[types.TaskType]int `json:"budgets"`
}

// RouteTask handles POST /v1/route.
func (h *Handler) RouteTask(w http.ResponseWriter, r *http.Request) {
	reqID := w.Header().Get("X-Request-ID")

	body, err := io.ReadAll(r.Body)
	if err != nil {
		httputil.WriteBadRequestError(w, "Failed to read request body", reqID)
		return
	}
	defer r.Body.Close()

	var req types.RouteRequest
	if err := json.Unmarshal(body, &req); err != nil {
		httputil.WriteBadRequestError(w, "Invalid JSON: "+err.Error(), reqID)
		return
	}
	if _, ok := types.ParseComplexity(string(req.Complexity)); !ok {
		httputil.WriteBadRequestError(w, invalidEnumMessage("complexity", complexityValues()), reqID)
		return
	}
	if _, ok := types.ParseTaskType(string(req.TaskType)); !ok {
		httputil.WriteBadRequestError(w, invalidEnumMessage("task_type", taskTypeValues()), reqID)
		return
	}

	decision, err := h.engine.Route(r.Context(), &req)
	if err != nil {
		if errors.Is(err, router.ErrNoHealthyProvider) {
			httputil.WriteNoProviderError(w,
				"No healthy provider satisfies the request constraints", reqID)
			return
		}
		h.logger.Error("route failed", "request_id", reqID, "error", err)
		httputil.WriteInternalError(w, reqID)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, decision)
}

// ReportOutcome handles POST /v1/providers/{name}/outcome.
func (h *Handler) ReportOutcome(w http.ResponseWriter, r *http.Request) {
	reqID := w.Header().Get("X-Request-ID")
	name := chi.URLParam(r, "name")

	body, err := io.ReadAll(r.Body)
	if err != nil {
		httputil.WriteBadRequestError(w, "Failed to read request body", reqID)
		return
	}
	defer r.Body.Close()

	var report types.OutcomeReport
	if err := json.Unmarshal(body, &report); err != nil {
		httputil.WriteBadRequestError(w, "Invalid JSON: "+err.Error(), reqID)
		return
	}
	if report.LatencyMs < 0 {
		httputil.WriteBadRequestError(w, "latency_ms must not be negative", reqID)
		return
	}

	if err := h.engine.RecordOutcome(name, report.Success, report.LatencyMs); err != nil {
		if errors.Is(err, router.ErrUnknownProvider) {
			httputil.WriteNotFoundError(w, "Unknown provider: "+name, reqID)
			return
		}
		h.logger.Error("record outcome failed", "request_id", reqID, "provider", name, "error", err)
		httputil.WriteInternalError(w, reqID)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"provider": name,
		"recorded": true,
	})
}

// ListProviders handles GET /v1/providers.
func (h *Handler) ListProviders(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"providers": h.engine.Snapshots(),
	})
}

// ProviderHealth handles GET /v1/providers/{name}/health.
func (h *Handler) ProviderHealth(w http.ResponseWriter, r *http.Request) {
	reqID := w.Header().Get("X-Request-ID")
	name := chi.URLParam(r, "name")

	snap, err := h.engine.Snapshot(name)
	if err != nil {
		if errors.Is(err, router.ErrUnknownProvider) {
			httputil.WriteNotFoundError(w, "Unknown provider: "+name, reqID)
			return
		}
		h.logger.Error("health snapshot failed", "request_id", reqID, "provider", name, "error", err)
		httputil.WriteInternalError(w, reqID)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, snap)
}

// EnableProvider handles POST /v1/providers/{name}/enable.
func (h *Handler) EnableProvider(w http.ResponseWriter, r *http.Request) {
	h.setProviderEnabled(w, r, true)
}

// DisableProvider handles POST /v1/providers/{name}/disable.
func (h *Handler) DisableProvider(w http.ResponseWriter, r *http.Request) {
	h.setProviderEnabled(w, r, false)
}

func (h *Handler) setProviderEnabled(w http.ResponseWriter, r *http.Request, enabled bool) {
	reqID := w.Header().Get("X-Request-ID")
	name := chi.URLParam(r, "name")

	if err := h.engine.SetEnabled(name, enabled); err != nil {
		if errors.Is(err, router.ErrUnknownProvider) {
			httputil.WriteNotFoundError(w, "Unknown provider: "+name, reqID)
			return
		}
		h.logger.Error("set enabled failed", "request_id", reqID, "provider", name, "error", err)
		httputil.WriteInternalError(w, reqID)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"provider": name,
		"enabled":  enabled,
	})
}

// RoutingStats handles GET /v1/stats?hours=N.
func (h *Handler) RoutingStats(w http.ResponseWriter, r *http.Request) {
	reqID := w.Header().Get("X-Request-ID")

	hours := 24
	if raw := r.URL.Query().Get("hours"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			httputil.WriteBadRequestError(w, "hours must be a positive integer", reqID)
			return
		}
		hours = parsed
	}

	httputil.WriteJSON(w, http.StatusOK, h.engine.Stats(hours))
}

// ListModels handles GET /v1/models.
func (h *Handler) ListModels(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"models": compiler.ModelCatalog(),
	})
}

// decodeCompileRequest parses and validates the shared compile/estimate
// request shape, writing the error response itself on failure.
func (h *Handler) decodeCompileRequest(w http.ResponseWriter, r *http.Request, reqID string) (*types.CompileRequest, bool) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		httputil.WriteBadRequestError(w, "Failed to read request body", reqID)
		return nil, false
	}
	defer r.Body.Close()

	var req types.CompileRequest
	if err := json.Unmarshal(body, &req); err != nil {
		httputil.WriteBadRequestError(w, "Invalid JSON: "+err.Error(), reqID)
		return nil, false
	}

	if strings.TrimSpace(req.TaskDescription) == "" {
		httputil.WriteBadRequestError(w, "task_description is required", reqID)
		return nil, false
	}
	if _, ok := types.ParseTaskType(string(req.TaskType)); !ok {
		httputil.WriteBadRequestError(w, invalidEnumMessage("task_type", taskTypeValues()), reqID)
		return nil, false
	}
	if _, ok := types.ParseComplexity(string(req.Complexity)); !ok {
		httputil.WriteBadRequestError(w, invalidEnumMessage("complexity", complexityValues()), reqID)
		return nil, false
	}
	if req.MaxTokens < 0 {
		httputil.WriteBadRequestError(w, "max_tokens must not be negative", reqID)
		return nil, false
	}
	if len(req.ReferencedFiles) > 0 && req.ProjectID == "" {
		httputil.WriteBadRequestError(w, "referenced_files requires project_id", reqID)
		return nil, false
	}

	return &req, true
}

func invalidEnumMessage(field string, allowed []string) string {
	return fmt.Sprintf("%s must be one of: %s", field, strings.Join(allowed, ", "))
}

func taskTypeValues() []string {
	all := types.AllTaskTypes()
	out := make([]string, len(all))
	for i, t := range all {
		out[i] = string(t)
	}
	return out
}

func complexityValues() []string {
	return []string{
		string(types.ComplexityLow),
		string(types.ComplexityMedium),
		string(types.ComplexityHigh),
		string(types.ComplexityCritical),
	}
}
