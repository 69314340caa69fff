// Package dispatch assigns pending tickets to engineers. Selection is
// least-load first, with a rotation cursor breaking ties so equally loaded
// engineers alternate across assignments.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/williamfrack18-alt/anmar-engine/internal/ticket"
	"github.com/williamfrack18-alt/anmar-engine/pkg/models"
)

// ErrEmptyPool is returned when no engineers are configured.
var ErrEmptyPool = errors.New("dispatch: engineer pool is empty")

const (
	// DefaultBatchLimit is used when auto-assign gets no explicit limit.
	DefaultBatchLimit = 5
	maxBatchLimit     = 20
)

// Store is the persistence surface the balancer needs beyond the ticket
// manager: the full ticket list for load counting and the rotation cursor.
type Store interface {
	ListTickets(ctx context.Context) ([]*models.Ticket, error)
	GetDispatchCursor(ctx context.Context) (int, error)
	PutDispatchCursor(ctx context.Context, cursor int) error
}

// Tickets is the slice of the ticket manager dispatch drives.
type Tickets interface {
	PendingSorted(ctx context.Context) ([]*models.Ticket, error)
	SetStatus(ctx context.Context, id, status string, u ticket.StatusUpdate) (*models.Ticket, error)
}

// Balancer owns the engineer pool and serializes all assignment decisions.
type Balancer struct {
	mu      sync.Mutex
	pool    []string
	store   Store
	tickets Tickets
	logger  *slog.Logger
}

// NewBalancer builds a balancer over a fixed pool. The pool order matters:
// the rotation cursor walks it in configuration order.
func NewBalancer(pool []string, store Store, tickets Tickets, logger *slog.Logger) *Balancer {
	if logger == nil {
		logger = slog.Default()
	}
	cleaned := make([]string, 0, len(pool))
	for _, e := range pool {
		if e = strings.TrimSpace(e); e != "" {
			cleaned = append(cleaned, e)
		}
	}
	return &Balancer{pool: cleaned, store: store, tickets: tickets, logger: logger}
}

// Pool returns a copy of the configured engineer pool.
func (b *Balancer) Pool() []string {
	out := make([]string, len(b.pool))
	copy(out, b.pool)
	return out
}

// Loads counts active work per engineer. Only accepted and developing
// tickets count; pending, blocked and completed ones do not occupy anyone.
func (b *Balancer) Loads(ctx context.Context) (map[string]int, error) {
	tickets, err := b.store.ListTickets(ctx)
	if err != nil {
		return nil, fmt.Errorf("list tickets: %w", err)
	}
	loads := make(map[string]int, len(b.pool))
	for _, e := range b.pool {
		loads[e] = 0
	}
	for _, t := range tickets {
		status := ticket.NormalizeStatus(t.Status)
		if status != models.StatusAccepted && status != models.StatusDeveloping {
			continue
		}
		for _, e := range b.pool {
			if strings.EqualFold(e, t.Engineer) {
				loads[e]++
				break
			}
		}
	}
	return loads, nil
}

// pick chooses the next engineer: among those at the minimum load, the first
// one at or after the cursor in pool order. The returned cursor points just
// past the chosen engineer so ties rotate on the next call.
func (b *Balancer) pick(loads map[string]int, cursor int) (engineer string, next int) {
	n := len(b.pool)
	minLoad := loads[b.pool[0]]
	for _, e := range b.pool[1:] {
		if loads[e] < minLoad {
			minLoad = loads[e]
		}
	}
	if cursor < 0 || cursor >= n {
		cursor = 0
	}
	for i := 0; i < n; i++ {
		idx := (cursor + i) % n
		if loads[b.pool[idx]] == minLoad {
			return b.pool[idx], (idx + 1) % n
		}
	}
	return b.pool[cursor], (cursor + 1) % n
}

// Next returns the engineer an assignment would go to without assigning
// anything. The cursor still advances so repeated previews rotate.
func (b *Balancer) Next(ctx context.Context) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.pool) == 0 {
		return "", ErrEmptyPool
	}
	loads, err := b.Loads(ctx)
	if err != nil {
		return "", err
	}
	cursor, err := b.store.GetDispatchCursor(ctx)
	if err != nil {
		return "", fmt.Errorf("load dispatch cursor: %w", err)
	}
	engineer, next := b.pick(loads, cursor)
	if err := b.store.PutDispatchCursor(ctx, next); err != nil {
		return "", fmt.Errorf("save dispatch cursor: %w", err)
	}
	return engineer, nil
}

// Assign accepts one ticket on behalf of the chosen engineer.
func (b *Balancer) Assign(ctx context.Context, ticketID string) (*models.Ticket, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.pool) == 0 {
		return nil, ErrEmptyPool
	}
	loads, err := b.Loads(ctx)
	if err != nil {
		return nil, err
	}
	cursor, err := b.store.GetDispatchCursor(ctx)
	if err != nil {
		return nil, fmt.Errorf("load dispatch cursor: %w", err)
	}
	engineer, next := b.pick(loads, cursor)
	t, err := b.tickets.SetStatus(ctx, ticketID, models.StatusAccepted,
		ticket.StatusUpdate{Engineer: engineer, Actor: "dispatch"})
	if err != nil {
		return nil, err
	}
	if err := b.store.PutDispatchCursor(ctx, next); err != nil {
		return nil, fmt.Errorf("save dispatch cursor: %w", err)
	}
	b.logger.Info("ticket dispatched", "ticket_id", t.ID, "engineer", engineer)
	return t, nil
}

// AutoAssign drains up to limit pending tickets, highest priority and oldest
// first. The load snapshot is updated between picks so a batch spreads work
// instead of stacking it on whoever started least loaded. The whole batch
// runs under the dispatch lock.
func (b *Balancer) AutoAssign(ctx context.Context, limit int) ([]models.Assignment, error) {
	if limit <= 0 {
		limit = DefaultBatchLimit
	}
	if limit > maxBatchLimit {
		limit = maxBatchLimit
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.pool) == 0 {
		return nil, ErrEmptyPool
	}

	pending, err := b.tickets.PendingSorted(ctx)
	if err != nil {
		return nil, err
	}
	if len(pending) > limit {
		pending = pending[:limit]
	}
	if len(pending) == 0 {
		return nil, nil
	}

	loads, err := b.Loads(ctx)
	if err != nil {
		return nil, err
	}
	cursor, err := b.store.GetDispatchCursor(ctx)
	if err != nil {
		return nil, fmt.Errorf("load dispatch cursor: %w", err)
	}

	assignments := make([]models.Assignment, 0, len(pending))
	for _, p := range pending {
		var engineer string
		engineer, cursor = b.pick(loads, cursor)
		t, err := b.tickets.SetStatus(ctx, p.ID, models.StatusAccepted,
			ticket.StatusUpdate{Engineer: engineer, Actor: "dispatch"})
		if err != nil {
			return assignments, err
		}
		loads[engineer]++
		assignments = append(assignments, models.Assignment{
			TicketID: t.ID, ProjectID: t.ProjectID, Engineer: engineer, Priority: t.Priority,
		})
	}
	if err := b.store.PutDispatchCursor(ctx, cursor); err != nil {
		return assignments, fmt.Errorf("save dispatch cursor: %w", err)
	}
	b.logger.Info("auto-assign batch dispatched", "count", len(assignments))
	return assignments, nil
}
