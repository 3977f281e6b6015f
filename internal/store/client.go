// Package store is the persistence gateway for gain vectors: a remote
// keyed REST store, fronted by a per-identity gateway that serializes
// load/save traffic.
package store

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/marselab/equalizerd/internal/eq"
)

// SchemaVersion is written with every saved vector so later readers can
// tell what they are looking at.
const SchemaVersion = 1

// ErrNotFound means no vector was ever saved under the key. Absence is a
// valid state, distinct from an all-zero vector.
var ErrNotFound = errors.New("store: no saved gains for key")

// Client talks to the remote gain store's REST API. Keys are account
// uuids; values are versioned 28-element gain arrays.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	log        *zap.SugaredLogger
}

// NewClient creates a store client.
func NewClient(baseURL, apiKey string, log *zap.SugaredLogger) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		log:        log,
	}
}

type payload struct {
	Schema int       `json:"schema"`
	Gains  []float64 `json:"gains"`
}

// Load fetches the vector stored under key. Returns ErrNotFound when the
// key has never been saved, and rejects corrupt vectors so callers fall
// back to defaults.
func (c *Client) Load(ctx context.Context, key uuid.UUID) (eq.GainVector, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", c.gainsURL(key), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	c.authorize(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("load gains: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, ErrNotFound
	case resp.StatusCode != http.StatusOK:
		b, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("store status %d: %s", resp.StatusCode, string(b))
	}

	var p payload
	if err := json.NewDecoder(resp.Body).Decode(&p); err != nil {
		return nil, fmt.Errorf("decode gains: %w", err)
	}
	if p.Schema != SchemaVersion {
		return nil, fmt.Errorf("store: unsupported schema %d (want %d)", p.Schema, SchemaVersion)
	}
	v := eq.GainVector(p.Gains)
	if !v.Valid() {
		return nil, fmt.Errorf("%w: stored vector has %d elements", eq.ErrBadVectorLength, len(v))
	}
	return v, nil
}

// Save writes the vector under key.
func (c *Client) Save(ctx context.Context, key uuid.UUID, v eq.GainVector) error {
	if !v.Valid() {
		return fmt.Errorf("%w: refusing to save %d elements", eq.ErrBadVectorLength, len(v))
	}

	body, err := json.Marshal(payload{Schema: SchemaVersion, Gains: v})
	if err != nil {
		return fmt.Errorf("marshal gains: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "PUT", c.gainsURL(key), bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	c.authorize(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("save gains: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		b, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("store status %d: %s", resp.StatusCode, string(b))
	}
	return nil
}

// WaitForHealthy blocks until the store responds to health checks.
func (c *Client) WaitForHealthy(ctx context.Context) error {
	c.log.Infow("waiting for gain store", "url", c.baseURL)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		req, err := http.NewRequestWithContext(ctx, "GET", c.baseURL+"/health", nil)
		if err != nil {
			return err
		}
		resp, err := c.httpClient.Do(req)
		if err == nil && resp.StatusCode == http.StatusOK {
			resp.Body.Close()
			c.log.Infow("gain store healthy")
			return nil
		}
		if resp != nil {
			resp.Body.Close()
		}

		c.log.Infow("gain store not ready, retrying in 5s")
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(5 * time.Second):
		}
	}
}

func (c *Client) gainsURL(key uuid.UUID) string {
	return c.baseURL + "/v1/gains/" + key.String()
}

func (c *Client) authorize(req *http.Request) {
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
}
