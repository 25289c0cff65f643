// Package dns talks to the upstream DNS filtering vendor. Profile calls are
// best-effort from the caller's point of view: a vendor failure is logged and
// never blocks an entitlement write.
package dns

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Profile is the vendor's per-user filtering profile.
type Profile struct {
	ID       string `json:"id"`
	Endpoint string `json:"endpoint"`
}

type Client interface {
	CreateProfile(ctx context.Context, userEmail string) (*Profile, error)
	DeleteProfile(ctx context.Context, profileID string) error
}

// NoOpClient is used when the DNS provider integration is disabled.
type NoOpClient struct{}

func (c *NoOpClient) CreateProfile(ctx context.Context, userEmail string) (*Profile, error) {
	return nil, nil
}

func (c *NoOpClient) DeleteProfile(ctx context.Context, profileID string) error {
	return nil
}

type HTTPClient struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

func NewHTTPClient(baseURL, apiKey string) *HTTPClient {
	return &HTTPClient{
		baseURL: baseURL,
		apiKey:  apiKey,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

func (c *HTTPClient) CreateProfile(ctx context.Context, userEmail string) (*Profile, error) {
	body, err := json.Marshal(map[string]string{"name": userEmail})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/profiles", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("X-Api-Key", c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("dns provider: create profile returned %d: %s", resp.StatusCode, payload)
	}

	var parsed struct {
		Data Profile `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, err
	}
	return &parsed.Data, nil
}

func (c *HTTPClient) DeleteProfile(ctx context.Context, profileID string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.baseURL+"/profiles/"+profileID, nil)
	if err != nil {
		return err
	}
	req.Header.Set("X-Api-Key", c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	// A missing profile counts as deleted.
	if resp.StatusCode == http.StatusNotFound {
		return nil
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("dns provider: delete profile returned %d", resp.StatusCode)
	}
	return nil
}
