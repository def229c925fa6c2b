package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/dennisdiepolder/monti/orchestrator/internal/types"
)

// Client talks to the orchestrator HTTP API
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// Ticket is a ticket submitted through the full pipeline
type Ticket struct {
	TicketID string `json:"ticketId,omitempty"`
	Text     string `json:"text"`
	UserID   string `json:"userId,omitempty"`
}

// RouteTicket is a pre-classified ticket for batch routing
type RouteTicket struct {
	TicketID     string   `json:"ticketId"`
	Category     string   `json:"category"`
	UrgencyScore *float64 `json:"urgencyScore,omitempty"`
}

// BatchResult lists assignments and the tickets left without an agent
type BatchResult struct {
	Assignments []types.Assignment `json:"assignments"`
	Unassigned  []string           `json:"unassigned"`
}

// StatusError is returned for any non-2xx response
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status code: %d, body: %s", e.StatusCode, e.Body)
}

// NewClient creates a new orchestrator client
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// WithToken sets the bearer token sent with every request
func (c *Client) WithToken(token string) *Client {
	c.token = token
	return c
}

// SubmitTicket runs a ticket through storm detection, classification and routing
func (c *Client) SubmitTicket(ctx context.Context, t Ticket) (*types.Decision, error) {
	var d types.Decision
	if err := c.do(ctx, http.MethodPost, "/api/tickets", t, &d); err != nil {
		return nil, err
	}
	return &d, nil
}

// RouteBatch assigns pre-classified tickets jointly
func (c *Client) RouteBatch(ctx context.Context, tickets []RouteTicket) (*BatchResult, error) {
	var res BatchResult
	body := map[string][]RouteTicket{"tickets": tickets}
	if err := c.do(ctx, http.MethodPost, "/api/tickets/batch", body, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// Agents lists every agent with its current load
func (c *Client) Agents(ctx context.Context) ([]types.AgentStatus, error) {
	var res struct {
		Agents []types.AgentStatus `json:"agents"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/agents", nil, &res); err != nil {
		return nil, err
	}
	return res.Agents, nil
}

// Release returns count slots to an agent
func (c *Client) Release(ctx context.Context, agentID string, count int) error {
	path := fmt.Sprintf("/api/agents/%s/release?count=%s", url.PathEscape(agentID), strconv.Itoa(count))
	return c.do(ctx, http.MethodPost, path, nil, nil)
}

// CircuitStatus retrieves the failover controller state
func (c *Client) CircuitStatus(ctx context.Context) (*types.CircuitStatus, error) {
	var s types.CircuitStatus
	if err := c.do(ctx, http.MethodGet, "/api/circuit-breaker/status", nil, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// MasterIncidents retrieves the storm detector registry
func (c *Client) MasterIncidents(ctx context.Context) (*types.IncidentSnapshot, error) {
	var s types.IncidentSnapshot
	if err := c.do(ctx, http.MethodGet, "/api/master-incidents", nil, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// Health checks if the service is healthy
func (c *Client) Health(ctx context.Context) error {
	if err := c.do(ctx, http.MethodGet, "/health", nil, nil); err != nil {
		return fmt.Errorf("unhealthy: %w", err)
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, in, out interface{}) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		data, _ := io.ReadAll(resp.Body)
		return &StatusError{StatusCode: resp.StatusCode, Body: string(bytes.TrimSpace(data))}
	}

	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
