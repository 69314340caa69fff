package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/williamfrack18-alt/anmar-engine/pkg/models"
)

// Mem is an in-memory Store used by tests and by doctor-style dry runs.
// It applies the same not-found semantics as the SQL implementations.
type Mem struct {
	mu            sync.RWMutex
	conversations map[string]Conversation
	tickets       map[string]models.Ticket
	order         []string // ticket ids in creation order
	cursor        int
}

// NewMem returns an empty in-memory store.
func NewMem() *Mem {
	return &Mem{
		conversations: make(map[string]Conversation),
		tickets:       make(map[string]models.Ticket),
	}
}

func (m *Mem) GetConversation(_ context.Context, key string) (*Conversation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.conversations[key]
	if !ok {
		return nil, fmt.Errorf("conversation %q: %w", key, ErrNotFound)
	}
	out := c
	return &out, nil
}

func (m *Mem) PutConversation(_ context.Context, c *Conversation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored := *c
	if stored.UpdatedAt.IsZero() {
		stored.UpdatedAt = time.Now()
	}
	m.conversations[c.Key] = stored
	return nil
}

func (m *Mem) DeleteConversation(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.conversations, key)
	return nil
}

func (m *Mem) CreateTicket(_ context.Context, t *models.Ticket) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.tickets[t.ID]; ok {
		return fmt.Errorf("ticket %q already exists", t.ID)
	}
	m.tickets[t.ID] = cloneTicket(t)
	m.order = append(m.order, t.ID)
	return nil
}

func (m *Mem) GetTicket(_ context.Context, id string) (*models.Ticket, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.tickets[id]
	if !ok {
		return nil, fmt.Errorf("ticket %q: %w", id, ErrNotFound)
	}
	out := cloneTicket(&t)
	return &out, nil
}

func (m *Mem) UpdateTicket(_ context.Context, t *models.Ticket) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.tickets[t.ID]; !ok {
		return fmt.Errorf("ticket %q: %w", t.ID, ErrNotFound)
	}
	m.tickets[t.ID] = cloneTicket(t)
	return nil
}

func (m *Mem) ListTickets(_ context.Context) ([]*models.Ticket, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*models.Ticket, 0, len(m.order))
	for _, id := range m.order {
		t := cloneTicket(ptr(m.tickets[id]))
		out = append(out, &t)
	}
	return out, nil
}

func (m *Mem) LatestTicketForProject(_ context.Context, projectID string) (*models.Ticket, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var candidates []models.Ticket
	for _, t := range m.tickets {
		if t.ProjectID == projectID {
			candidates = append(candidates, t)
		}
	}
	if len(candidates) == 0 {
		return nil, fmt.Errorf("project %q: %w", projectID, ErrNotFound)
	}
	sort.Slice(candidates, func(i, j int) bool {
		if !candidates[i].CreatedAt.Equal(candidates[j].CreatedAt) {
			return candidates[i].CreatedAt.After(candidates[j].CreatedAt)
		}
		return candidates[i].ID > candidates[j].ID
	})
	out := cloneTicket(&candidates[0])
	return &out, nil
}

func (m *Mem) GetDispatchCursor(_ context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.cursor, nil
}

func (m *Mem) PutDispatchCursor(_ context.Context, cursor int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cursor = cursor
	return nil
}

func (m *Mem) Close() error { return nil }

func ptr(t models.Ticket) *models.Ticket { return &t }

// cloneTicket deep-copies the slices and pointer fields so callers can
// mutate their copy freely.
func cloneTicket(t *models.Ticket) models.Ticket {
	out := *t
	if t.TechStack != nil {
		out.TechStack = append([]string(nil), t.TechStack...)
	}
	if t.Events != nil {
		out.Events = append([]models.TicketEvent(nil), t.Events...)
	}
	if t.Brief != nil {
		b := *t.Brief
		if t.Brief.MustHaveFeatures != nil {
			b.MustHaveFeatures = append([]string(nil), t.Brief.MustHaveFeatures...)
		}
		if t.Brief.ClientHighlights != nil {
			b.ClientHighlights = append([]string(nil), t.Brief.ClientHighlights...)
		}
		out.Brief = &b
	}
	if t.CompletedAt != nil {
		ct := *t.CompletedAt
		out.CompletedAt = &ct
	}
	return out
}
