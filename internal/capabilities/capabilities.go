// Package capabilities holds the optional outward integrations: webhook
// notifiers for handoff and delivery events, and the quota gate consulted
// before a handoff opens a ticket.
package capabilities

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/williamfrack18-alt/anmar-engine/pkg/models"
)

// Capability is an integration that can receive a notification (e.g. Slack).
type Capability interface {
	Name() string
	Notify(ctx context.Context, message string) error
}

// Registry holds loaded capabilities by name.
type Registry struct {
	mu   sync.RWMutex
	caps map[string]Capability
}

func NewRegistry() *Registry {
	return &Registry{caps: make(map[string]Capability)}
}

func (r *Registry) Register(name string, c Capability) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.caps[name] = c
}

func (r *Registry) Get(name string) Capability {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.caps[name]
}

// Notify sends to one named capability; unknown names are an error.
func (r *Registry) Notify(ctx context.Context, name, message string) error {
	c := r.Get(name)
	if c == nil {
		return fmt.Errorf("capability %q not found", name)
	}
	return c.Notify(ctx, message)
}

// NotifyAll fans a message out to every registered capability and returns the
// first error. Used for ticket lifecycle announcements where a dead webhook
// must not block the transition.
func (r *Registry) NotifyAll(ctx context.Context, message string) error {
	r.mu.RLock()
	caps := make([]Capability, 0, len(r.caps))
	for _, c := range r.caps {
		caps = append(caps, c)
	}
	r.mu.RUnlock()

	var first error
	for _, c := range caps {
		if err := c.Notify(ctx, message); err != nil && first == nil {
			first = fmt.Errorf("%s: %w", c.Name(), err)
		}
	}
	return first
}

// SlackWebhook sends messages to a Slack channel via incoming webhook URL.
type SlackWebhook struct {
	WebhookURL string
	Channel    string // optional override
	Username   string // optional
}

func (s SlackWebhook) Name() string { return "slack" }

func (s SlackWebhook) Notify(ctx context.Context, message string) error {
	if s.WebhookURL == "" {
		return fmt.Errorf("slack webhook URL not set")
	}
	payload := map[string]any{"text": message}
	if s.Channel != "" {
		payload["channel"] = s.Channel
	}
	if s.Username != "" {
		payload["username"] = s.Username
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.WebhookURL, strings.NewReader(string(body)))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("slack webhook returned %d", resp.StatusCode)
	}
	return nil
}

// Quota decides whether a client may open another ticket. It is a plain
// boolean gate; accounting and billing live outside the engine.
type Quota interface {
	MayProceed(ctx context.Context, clientEmail string) (bool, error)
}

// OpenQuota allows everything. The default when no quota is configured.
type OpenQuota struct{}

func (OpenQuota) MayProceed(context.Context, string) (bool, error) { return true, nil }

// TicketLister is the slice of the store the active-ticket quota reads.
type TicketLister interface {
	ListTickets(ctx context.Context) ([]*models.Ticket, error)
}

// ActiveTicketQuota allows a handoff while the client has fewer than Max
// tickets still in flight. Completed tickets do not count.
type ActiveTicketQuota struct {
	Store TicketLister
	Max   int
}

func (q ActiveTicketQuota) MayProceed(ctx context.Context, clientEmail string) (bool, error) {
	if q.Max <= 0 || clientEmail == "" {
		return true, nil
	}
	tickets, err := q.Store.ListTickets(ctx)
	if err != nil {
		return false, err
	}
	active := 0
	for _, t := range tickets {
		if t.Status == models.StatusCompleted {
			continue
		}
		if strings.EqualFold(t.ClientEmail, clientEmail) {
			active++
		}
	}
	return active < q.Max, nil
}
