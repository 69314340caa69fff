// Package client provides a Go SDK for the anmar engine HTTP API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/williamfrack18-alt/anmar-engine/pkg/models"
)

// Client calls the engine HTTP API. It is safe for concurrent use.
type Client struct {
	BaseURL    string       // e.g. "http://localhost:3647"
	APIKey     string       // optional; set for X-API-Key
	HTTPClient *http.Client // optional; nil uses http.DefaultClient
}

// New returns a client for the given base URL (e.g. "http://localhost:3647").
// APIKey is optional; when set, requests carry the X-API-Key header.
func New(baseURL, apiKey string) *Client {
	return &Client{BaseURL: baseURL, APIKey: apiKey}
}

func (c *Client) client() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return http.DefaultClient
}

func (c *Client) do(ctx context.Context, method, path string, body any) (*http.Response, error) {
	var bodyReader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		bodyReader = bytes.NewReader(b)
	}
	u := c.BaseURL + path
	req, err := http.NewRequestWithContext(ctx, method, u, bodyReader)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.APIKey != "" {
		req.Header.Set("X-API-Key", c.APIKey)
	}
	return c.client().Do(req)
}

func (c *Client) doJSON(ctx context.Context, method, path string, body any, out any) error {
	resp, err := c.do(ctx, method, path, body)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var errBody struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&errBody)
		if errBody.Error != "" {
			return fmt.Errorf("api %s %s: %s", method, path, errBody.Error)
		}
		return fmt.Errorf("api %s %s: status %d", method, path, resp.StatusCode)
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

func convQuery(identity, project string) string {
	q := url.Values{"identity": {identity}}
	if project != "" {
		q.Set("project", project)
	}
	return "?" + q.Encode()
}

// Health returns the /health response (ok: true).
func (c *Client) Health(ctx context.Context) (ok bool, err error) {
	var out struct {
		OK bool `json:"ok"`
	}
	err = c.doJSON(ctx, http.MethodGet, "/health", nil, &out)
	return out.OK, err
}

// TurnOutcome is the /api/turn response: the turn result plus the ticket a
// confirmed handoff opened, if any.
type TurnOutcome struct {
	models.TurnResult
	Ticket        *models.Ticket `json:"ticket,omitempty"`
	QuotaExceeded bool           `json:"quota_exceeded,omitempty"`
}

// Turn sends one consultation message and returns the engine's reply.
func (c *Client) Turn(ctx context.Context, identity, project, message string) (*TurnOutcome, error) {
	var out TurnOutcome
	err := c.doJSON(ctx, http.MethodPost, "/api/turn", map[string]string{
		"identity": identity, "project": project, "message": message,
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// MemoryView is the /api/memory response.
type MemoryView struct {
	Memory        models.MemorySnapshot `json:"memory"`
	MissingFields []string              `json:"missing_fields"`
	BriefScore    int                   `json:"brief_score"`
}

// Memory returns the reconciled memory for a conversation.
func (c *Client) Memory(ctx context.Context, identity, project string) (*MemoryView, error) {
	var out MemoryView
	err := c.doJSON(ctx, http.MethodGet, "/api/memory"+convQuery(identity, project), nil, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// ResetMemory clears the memory and transcript for a conversation.
func (c *Client) ResetMemory(ctx context.Context, identity, project string) error {
	return c.doJSON(ctx, http.MethodPost, "/api/memory/reset", map[string]string{
		"identity": identity, "project": project,
	}, nil)
}

// History returns the stored transcript for a conversation.
func (c *Client) History(ctx context.Context, identity, project string) ([]models.Message, error) {
	var out struct {
		History []models.Message `json:"history"`
	}
	err := c.doJSON(ctx, http.MethodGet, "/api/history"+convQuery(identity, project), nil, &out)
	return out.History, err
}

// Tickets lists every ticket.
func (c *Client) Tickets(ctx context.Context) ([]*models.Ticket, error) {
	var out []*models.Ticket
	err := c.doJSON(ctx, http.MethodGet, "/api/tickets", nil, &out)
	return out, err
}

// CreateTicket hands the stored conversation off as a ticket.
func (c *Client) CreateTicket(ctx context.Context, identity, project, priority string) (*models.Ticket, error) {
	var out models.Ticket
	err := c.doJSON(ctx, http.MethodPost, "/api/tickets", map[string]string{
		"identity": identity, "project": project, "priority": priority,
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// AcceptTicket accepts a ticket for an engineer. Use "auto" (or empty) to let
// the dispatch balancer choose.
func (c *Client) AcceptTicket(ctx context.Context, ticketID, engineer string) (*models.Ticket, error) {
	var out models.Ticket
	err := c.doJSON(ctx, http.MethodPost, "/api/tickets/accept", map[string]string{
		"ticket_id": ticketID, "engineer": engineer,
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// DeliverTicket marks a ticket completed with an optional preview URL and note.
func (c *Client) DeliverTicket(ctx context.Context, ticketID, previewURL, note string) (*models.Ticket, error) {
	var out models.Ticket
	err := c.doJSON(ctx, http.MethodPost, "/api/tickets/deliver", map[string]string{
		"ticket_id": ticketID, "preview_url": previewURL, "delivery_note": note,
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateTicket sets an arbitrary status (legacy aliases accepted).
func (c *Client) UpdateTicket(ctx context.Context, ticketID, status, engineer string) (*models.Ticket, error) {
	var out models.Ticket
	err := c.doJSON(ctx, http.MethodPost, "/api/tickets/update", map[string]string{
		"ticket_id": ticketID, "status": status, "engineer": engineer,
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// QueueFilter narrows a Queue listing. Zero value lists everything.
type QueueFilter struct {
	Engineer string
	Status   string
	Priority string
	Mode     string // "mine" keeps pending plus the engineer's own tickets
}

// Queue returns the ticket queue in display order.
func (c *Client) Queue(ctx context.Context, f QueueFilter) (*models.Queue, error) {
	q := url.Values{}
	if f.Engineer != "" {
		q.Set("engineer", f.Engineer)
	}
	if f.Status != "" {
		q.Set("status", f.Status)
	}
	if f.Priority != "" {
		q.Set("priority", f.Priority)
	}
	if f.Mode != "" {
		q.Set("mode", f.Mode)
	}
	path := "/api/queue"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}
	var out models.Queue
	err := c.doJSON(ctx, http.MethodGet, path, nil, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// AutoAssign dispatches up to limit pending tickets across the engineer pool.
func (c *Client) AutoAssign(ctx context.Context, limit int) ([]models.Assignment, error) {
	var out struct {
		Assignments []models.Assignment `json:"assignments"`
	}
	err := c.doJSON(ctx, http.MethodPost, "/api/dispatch/auto-assign", map[string]int{"limit": limit}, &out)
	return out.Assignments, err
}

// ProjectStatus returns the fulfillment state for a project.
func (c *Client) ProjectStatus(ctx context.Context, projectID string) (*models.ProjectStatus, error) {
	var out models.ProjectStatus
	err := c.doJSON(ctx, http.MethodGet, "/api/projects/"+url.PathEscape(projectID)+"/status", nil, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}
