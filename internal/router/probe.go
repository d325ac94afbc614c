package router

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/atelierhq/loom-core/internal/config"
	"github.com/atelierhq/loom-core/internal/telemetry"
	"github.com/atelierhq/loom-core/internal/types"
)

// ModelHost reports local model availability for the self-hosted tier.
type ModelHost interface {
	LoadedModels(ctx context.Context) ([]string, error)
	Alive(ctx context.Context) error
}

// Prober drives the background liveness loop. It runs on its own schedule,
// fully decoupled from request traffic, and touches shared state only
// through the tracker's locked accessors.
type Prober struct {
	registry  *Registry
	tracker   *HealthTracker
	modelHost ModelHost
	client    *http.Client
	cfg       func() config.RoutingConfig
	metrics   *telemetry.Metrics
	logger    *slog.Logger
}

// NewProber creates a prober. client may be nil (a default client with the
// probe timeout is used per request via context deadlines).
func NewProber(registry *Registry, tracker *HealthTracker, modelHost ModelHost, client *http.Client, cfg func() config.RoutingConfig, metrics *telemetry.Metrics, logger *slog.Logger) *Prober {
	if client == nil {
		client = http.DefaultClient
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Prober{
		registry:  registry,
		tracker:   tracker,
		modelHost: modelHost,
		client:    client,
		cfg:       cfg,
		metrics:   metrics,
		logger:    logger,
	}
}

// Run probes all providers once immediately, then on every interval tick
// until ctx is cancelled.
func (p *Prober) Run(ctx context.Context) {
	interval := p.cfg().ProbeInterval
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	p.ProbeAll(ctx)
	for {
		select {
		case <-ctx.Done():
			p.logger.Info("health prober stopped")
			return
		case <-ticker.C:
			p.ProbeAll(ctx)
		}
	}
}

// ProbeAll performs one liveness sweep over every registered provider.
func (p *Prober) ProbeAll(ctx context.Context) {
	threshold := p.cfg().UnhealthyThreshold

	for _, desc := range p.registry.List() {
		if !desc.Enabled {
			p.tracker.ForceUnavailable(desc.Name)
			continue
		}

		alive := p.probe(ctx, desc)
		available, score, err := p.tracker.ApplyProbe(desc.Name, alive, threshold)
		if err != nil {
			continue
		}

		if p.metrics != nil {
			p.metrics.RecordProbe(desc.Name, alive)
		}
		if !available {
			p.logger.Warn("provider excluded from routing",
				"provider", desc.Name, "alive", alive, "score", score)
		}
	}
}

// probe checks one provider's underlying dependency: the local model host
// for the self-hosted tier, the provider's HTTP probe path otherwise.
func (p *Prober) probe(ctx context.Context, desc config.ProviderDescriptor) bool {
	timeout := p.cfg().ProbeTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if desc.Tier == types.TierSelfHosted {
		if p.modelHost == nil {
			return false
		}
		if err := p.modelHost.Alive(ctx); err != nil {
			p.logger.Warn("model host probe failed", "provider", desc.Name, "error", err)
			return false
		}
		return true
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, desc.Endpoint+desc.ProbePath, nil)
	if err != nil {
		return false
	}
	resp, err := p.client.Do(req)
	if err != nil {
		p.logger.Warn("provider probe failed", "provider", desc.Name, "error", err)
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode < http.StatusInternalServerError
}
