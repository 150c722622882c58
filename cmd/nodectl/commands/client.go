package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

// statusClient is a thin HTTP client for the daemon's read-only status API.
type statusClient struct {
	baseURL string
	http    *http.Client
}

func newStatusClient(baseURL string, hc *http.Client) *statusClient {
	return &statusClient{baseURL: baseURL, http: hc}
}

type healthzView struct {
	Status string `json:"status"`
	DID    string `json:"did"`
}

type servicesView struct {
	TCP  []string `json:"tcp"`
	HTTP []string `json:"http"`
}

type tunnelView struct {
	Tid   string `json:"tid"`
	Peer  string `json:"peer"`
	State string `json:"state"`
}

func (c *statusClient) healthz(ctx context.Context) (healthzView, error) {
	var v healthzView
	err := c.get(ctx, "/v1/healthz", &v)
	return v, err
}

func (c *statusClient) services(ctx context.Context) (servicesView, error) {
	var v servicesView
	err := c.get(ctx, "/v1/services", &v)
	return v, err
}

func (c *statusClient) tunnels(ctx context.Context) ([]tunnelView, error) {
	var v []tunnelView
	err := c.get(ctx, "/v1/tunnels", &v)
	return v, err
}

func (c *statusClient) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("request %s: unexpected status %s", path, resp.Status)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}

	return nil
}
