// Package modelhost wraps the local model host's API for the routing
// engine: which models are currently loaded, and whether the host is
// alive at all.
package modelhost

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	ollama "github.com/ollama/ollama/api"

	"github.com/atelierhq/loom-core/internal/config"
)

// Client reports model availability from the local host. Self-hosted
// providers are only routable for models this client reports as loaded.
type Client struct {
	cfg        func() config.ModelHostConfig
	httpClient *http.Client
}

// New creates a model host client.
func New(cfg func() config.ModelHostConfig, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{cfg: cfg, httpClient: httpClient}
}

func (c *Client) api() (*ollama.Client, error) {
	cfg := c.cfg()
	if cfg.Host == "" {
		client, err := ollama.ClientFromEnvironment()
		if err != nil {
			return nil, fmt.Errorf("could not create model host client: %w", err)
		}
		return client, nil
	}
	u, err := url.Parse(cfg.Host)
	if err != nil {
		return nil, fmt.Errorf("invalid model host %q: %w", cfg.Host, err)
	}
	return ollama.NewClient(u, c.httpClient), nil
}

// LoadedModels returns the names of models currently resident on the host.
func (c *Client) LoadedModels(ctx context.Context) ([]string, error) {
	client, err := c.api()
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg().Timeout)
	defer cancel()

	resp, err := client.ListRunning(ctx)
	if err != nil {
		return nil, fmt.Errorf("list running models: %w", err)
	}

	names := make([]string, 0, len(resp.Models))
	for _, m := range resp.Models {
		names = append(names, m.Name)
	}
	return names, nil
}

// Alive reports whether the model host answers its heartbeat.
func (c *Client) Alive(ctx context.Context) error {
	client, err := c.api()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg().Timeout)
	defer cancel()

	if err := client.Heartbeat(ctx); err != nil {
		return fmt.Errorf("model host unreachable: %w", err)
	}
	return nil
}
