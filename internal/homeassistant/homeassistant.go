// Package homeassistant provides the home-automation actuator backed by a
// Home Assistant instance via its REST API. It implements the
// command.Actuator interface.
//
// Service calls are performed via POST /api/services/{domain}/{service} with
// a long-lived access token. The client owns no retry logic; the entry panel
// treats a failed actuation as a logged, user-visible error and moves on.
//
// Typical usage:
//
//	ha, err := homeassistant.New("http://homeassistant.local:8123", token,
//	    homeassistant.WithTimeout(5*time.Second),
//	)
//	err = ha.Call(ctx, command.Action{Domain: "cover", Service: "open_cover", EntityID: "cover.garage_door"})
package homeassistant

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

	"github.com/MrWong99/entryhub/internal/command"
)

// Compile-time interface assertion.
var _ command.Actuator = (*Client)(nil)

const (
	defaultTimeout   = 10 * time.Second
	servicesEndpoint = "/api/services"
	statesEndpoint   = "/api/states"
	pingEndpoint     = "/api/"
)

// Option is a functional option for configuring a [Client].
type Option func(*Client)

// WithTimeout sets the per-request HTTP timeout. Defaults to 10 s.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.httpClient.Timeout = d
	}
}

// WithHTTPClient replaces the underlying HTTP client entirely. Overrides any
// timeout set before this option.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// Client is a Home Assistant REST client. It is safe for concurrent use.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// New creates a Client targeting the Home Assistant instance at baseURL
// (e.g. "http://homeassistant.local:8123") with a long-lived access token.
// Both must be non-empty.
func New(baseURL, token string, opts ...Option) (*Client, error) {
	if baseURL == "" {
		return nil, errors.New("homeassistant: baseURL must not be empty")
	}
	if token == "" {
		return nil, errors.New("homeassistant: token must not be empty")
	}
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		httpClient: &http.Client{
			Timeout: defaultTimeout,
		},
	}
	for _, o := range opts {
		o(c)
	}
	return c, nil
}

// serviceRequest is the JSON body sent to POST /api/services/{domain}/{service}.
type serviceRequest struct {
	EntityID string `json:"entity_id"`
}

// stateResponse is the subset of GET /api/states/{entity_id} the panel reads.
type stateResponse struct {
	EntityID string `json:"entity_id"`
	State    string `json:"state"`
}

// Call invokes domain.service on the action's entity.
func (c *Client) Call(ctx context.Context, action command.Action) error {
	if action.Domain == "" || action.Service == "" {
		return errors.New("homeassistant: action domain and service must not be empty")
	}

	data, err := json.Marshal(serviceRequest{EntityID: action.EntityID})
	if err != nil {
		return fmt.Errorf("homeassistant: marshal service request: %w", err)
	}

	endpoint := fmt.Sprintf("%s%s/%s/%s", c.baseURL, servicesEndpoint, action.Domain, action.Service)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("homeassistant: create service request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("homeassistant: POST %s/%s: %w", action.Domain, action.Service, err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("homeassistant: POST %s/%s returned status %d", action.Domain, action.Service, resp.StatusCode)
	}
	return nil
}

// State fetches the current state string of an entity, e.g. "open" for a
// cover or "locked" for a lock.
func (c *Client) State(ctx context.Context, entityID string) (string, error) {
	if entityID == "" {
		return "", errors.New("homeassistant: entityID must not be empty")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+statesEndpoint+"/"+entityID, nil)
	if err != nil {
		return "", fmt.Errorf("homeassistant: create state request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("homeassistant: GET state of %s: %w", entityID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("homeassistant: GET state of %s returned status %d", entityID, resp.StatusCode)
	}

	var st stateResponse
	if err := json.NewDecoder(resp.Body).Decode(&st); err != nil {
		return "", fmt.Errorf("homeassistant: decode state response: %w", err)
	}
	return st.State, nil
}

// Ping checks API reachability and token validity via GET /api/. Used by the
// readiness probe.
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+pingEndpoint, nil)
	if err != nil {
		return fmt.Errorf("homeassistant: create ping request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("homeassistant: ping: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("homeassistant: ping returned status %d", resp.StatusCode)
	}
	return nil
}
