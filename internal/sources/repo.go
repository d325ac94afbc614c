package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/atelierhq/loom-core/internal/config"
)

// RepoClient talks to the Repository Host's file and tree APIs.
type RepoClient struct {
	cfg    func() config.RepositoryConfig
	client *http.Client
}

// NewRepoClient creates a Repository Host client.
func NewRepoClient(cfg func() config.RepositoryConfig, client *http.Client) *RepoClient {
	if client == nil {
		client = http.DefaultClient
	}
	return &RepoClient{cfg: cfg, client: client}
}

type fileResponse struct {
	Path    string `json:"path"`
	Content string `json:"content"`
}

type treeResponse struct {
	Files []string `json:"files"`
}

// File fetches the raw content of one file in a project.
func (c *RepoClient) File(ctx context.Context, projectID, path string) (string, error) {
	cfg := c.cfg()
	ctx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()

	u := fmt.Sprintf("%s/api/v1/projects/%s/file?path=%s",
		cfg.BaseURL, url.PathEscape(projectID), url.QueryEscape(path))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return "", fmt.Errorf("create file request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("repo file %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("repo file %s returned status %d: %s", path, resp.StatusCode, snippet)
	}

	var out fileResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode file response: %w", err)
	}
	return out.Content, nil
}

// Tree fetches the recursive file listing of a project.
func (c *RepoClient) Tree(ctx context.Context, projectID string) ([]string, error) {
	cfg := c.cfg()
	ctx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()

	u := fmt.Sprintf("%s/api/v1/projects/%s/tree", cfg.BaseURL, url.PathEscape(projectID))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("create tree request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("repo tree %s: %w", projectID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("repo tree %s returned status %d: %s", projectID, resp.StatusCode, snippet)
	}

	var out treeResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode tree response: %w", err)
	}
	return out.Files, nil
}

// Ping checks that the Repository Host is reachable.
func (c *RepoClient) Ping(ctx context.Context) error {
	cfg := c.cfg()
	ctx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, cfg.BaseURL+"/health", nil)
	if err != nil {
		return fmt.Errorf("create ping request: %w", err)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("repository host unreachable: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("repository host returned status %d", resp.StatusCode)
	}
	return nil
}
