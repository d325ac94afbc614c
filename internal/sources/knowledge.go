package sources

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/atelierhq/loom-core/internal/config"
)

// KnowledgeClient talks to the Knowledge Store's search API.
type KnowledgeClient struct {
	cfg    func() config.KnowledgeConfig
	client *http.Client
}

// NewKnowledgeClient creates a Knowledge Store client. The config accessor
// is consulted on every call so hot reloads take effect without restart.
func NewKnowledgeClient(cfg func() config.KnowledgeConfig, client *http.Client) *KnowledgeClient {
	if client == nil {
		client = http.DefaultClient
	}
	return &KnowledgeClient{cfg: cfg, client: client}
}

type searchRequest struct {
	Collection string `json:"collection"`
	Query      string `json:"query"`
	TopK       int    `json:"top_k"`
}

type searchResponse struct {
	Results []Entry `json:"results"`
}

// Search returns the top-K entries for a free-text query against one
// collection. A non-2xx response or transport error is returned as-is;
// callers decide how to degrade.
func (c *KnowledgeClient) Search(ctx context.Context, collection, query string, topK int) ([]Entry, error) {
	cfg := c.cfg()
	if topK <= 0 {
		topK = cfg.TopK
	}

	body, err := json.Marshal(searchRequest{Collection: collection, Query: query, TopK: topK})
	if err != nil {
		return nil, fmt.Errorf("marshal search request: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()

	url := cfg.BaseURL + "/api/v1/search"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create search request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("knowledge search %s: %w", collection, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("knowledge search %s returned status %d: %s", collection, resp.StatusCode, snippet)
	}

	var out searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}
	return out.Results, nil
}

// Ping checks that the Knowledge Store is reachable.
func (c *KnowledgeClient) Ping(ctx context.Context) error {
	cfg := c.cfg()
	ctx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, cfg.BaseURL+"/health", nil)
	if err != nil {
		return fmt.Errorf("create ping request: %w", err)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("knowledge store unreachable: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("knowledge store returned status %d", resp.StatusCode)
	}
	return nil
}
