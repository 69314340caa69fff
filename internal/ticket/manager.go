package ticket

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/bwmarrin/snowflake"

	"github.com/williamfrack18-alt/anmar-engine/pkg/models"
)

// Store is the persistence surface the manager needs. The full engine store
// satisfies it; tests use the in-memory implementation.
type Store interface {
	CreateTicket(ctx context.Context, t *models.Ticket) error
	GetTicket(ctx context.Context, id string) (*models.Ticket, error)
	UpdateTicket(ctx context.Context, t *models.Ticket) error
	ListTickets(ctx context.Context) ([]*models.Ticket, error)
	LatestTicketForProject(ctx context.Context, projectID string) (*models.Ticket, error)
}

// Manager serializes all mutating ticket operations and owns id generation.
type Manager struct {
	mu     sync.Mutex
	store  Store
	node   *snowflake.Node
	logger *slog.Logger
	now    func() time.Time
}

// NewManager builds a manager. Ticket ids are time-ordered snowflakes so
// creation order survives any storage backend.
func NewManager(store Store, logger *slog.Logger) (*Manager, error) {
	node, err := snowflake.NewNode(1)
	if err != nil {
		return nil, fmt.Errorf("snowflake node: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{store: store, node: node, logger: logger, now: time.Now}, nil
}

// CreateParams describes a handoff-time ticket.
type CreateParams struct {
	ProjectID   string
	ClientEmail string
	Summary     string
	Priority    string
	Brief       *models.EngineerBrief
	BlueprintMD string
	TechStack   []string
	Actor       string
}

// Create opens a pending ticket. Priority defaults to an inference over the
// summary when absent; the SLA due time is computed here once and never
// mutated by later transitions.
func (m *Manager) Create(ctx context.Context, p CreateParams) (*models.Ticket, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	priority := strings.TrimSpace(p.Priority)
	if priority == "" {
		priority = InferPriority(p.Summary)
	}
	priority = NormalizePriority(priority)

	now := m.now()
	actor := p.Actor
	if actor == "" {
		actor = "system"
	}
	t := &models.Ticket{
		ID:          "TKT-" + m.node.Generate().String(),
		ProjectID:   p.ProjectID,
		ClientEmail: p.ClientEmail,
		Summary:     p.Summary,
		Status:      models.StatusPending,
		Priority:    priority,
		Progress:    Progress(models.StatusPending),
		Brief:       p.Brief,
		BlueprintMD: p.BlueprintMD,
		TechStack:   p.TechStack,
		SLADueAt:    SLADueAt(priority, now),
		CreatedAt:   now,
		UpdatedAt:   now,
		Events: []models.TicketEvent{{
			Timestamp: now,
			Status:    models.StatusPending,
			Actor:     actor,
			Message:   StatusMessage(models.StatusPending, ""),
		}},
	}
	if err := m.store.CreateTicket(ctx, t); err != nil {
		return nil, fmt.Errorf("create ticket: %w", err)
	}
	m.logger.Info("ticket created",
		"ticket_id", t.ID, "project_id", t.ProjectID, "priority", t.Priority, "sla_due_at", t.SLADueAt)
	return t, nil
}

// StatusUpdate carries the optional attachments of a transition.
type StatusUpdate struct {
	Engineer     string
	PreviewURL   string
	DeliveryNote string
	Actor        string
}

// SetStatus transitions a ticket. Unknown target statuses are rejected with
// ErrUnknownStatus before anything is read or written. Reaching completed
// stamps the completion time and whether the SLA was breached.
func (m *Manager) SetStatus(ctx context.Context, id, status string, u StatusUpdate) (*models.Ticket, error) {
	target, ok := CanonicalStatus(status)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownStatus, status)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	t, err := m.store.GetTicket(ctx, id)
	if err != nil {
		return nil, err
	}
	now := m.now()
	t.Status = target
	t.Progress = Progress(target)
	if u.Engineer != "" {
		t.Engineer = u.Engineer
	}
	if u.PreviewURL != "" {
		t.PreviewURL = NormalizePreviewURL(u.PreviewURL, t.ProjectID)
	}
	if u.DeliveryNote != "" {
		t.DeliveryNote = u.DeliveryNote
	}
	t.UpdatedAt = now
	if target == models.StatusCompleted {
		completed := now
		t.CompletedAt = &completed
		t.SLABreached = now.After(t.SLADueAt)
		if t.PreviewURL == "" {
			t.PreviewURL = fmt.Sprintf("/projects/%s/index.html", t.ProjectID)
		}
	}
	t.SLAOverdue = Overdue(t, now)

	actor := u.Actor
	if actor == "" {
		actor = "system"
	}
	t.Events = append(t.Events, models.TicketEvent{
		Timestamp: now,
		Status:    target,
		Actor:     actor,
		Message:   StatusMessage(target, u.Engineer),
	})
	if err := m.store.UpdateTicket(ctx, t); err != nil {
		return nil, fmt.Errorf("update ticket %s: %w", id, err)
	}
	m.logger.Info("ticket status changed",
		"ticket_id", t.ID, "status", target, "actor", actor, "engineer", t.Engineer)
	return t, nil
}

// Get returns one ticket with its overdue flag refreshed.
func (m *Manager) Get(ctx context.Context, id string) (*models.Ticket, error) {
	t, err := m.store.GetTicket(ctx, id)
	if err != nil {
		return nil, err
	}
	m.refresh(t)
	return t, nil
}

// refresh folds stored legacy spellings onto the canonical set and
// recomputes the volatile overdue flag.
func (m *Manager) refresh(t *models.Ticket) {
	t.Status = NormalizeStatus(t.Status)
	t.Priority = NormalizePriority(t.Priority)
	if t.SLADueAt.IsZero() {
		t.SLADueAt = SLADueAt(t.Priority, t.CreatedAt)
	}
	t.SLAOverdue = Overdue(t, m.now())
}

// QueueFilter narrows the queue listing. Mode "mine" keeps pending tickets
// plus the ones assigned to Engineer.
type QueueFilter struct {
	Engineer string
	Status   string
	Priority string
	Mode     string
}

// Queue lists tickets in display order with the listing counts.
func (m *Manager) Queue(ctx context.Context, f QueueFilter) (*models.Queue, error) {
	tickets, err := m.store.ListTickets(ctx)
	if err != nil {
		return nil, fmt.Errorf("list tickets: %w", err)
	}
	items := make([]models.Ticket, 0, len(tickets))
	for _, t := range tickets {
		m.refresh(t)
		items = append(items, *t)
	}

	if f.Mode == "mine" && f.Engineer != "" {
		eng := strings.ToLower(f.Engineer)
		kept := items[:0]
		for _, t := range items {
			if t.Status == models.StatusPending || strings.ToLower(t.Engineer) == eng {
				kept = append(kept, t)
			}
		}
		items = kept
	}
	if f.Status != "" && f.Status != "all" {
		want := NormalizeStatus(f.Status)
		kept := items[:0]
		for _, t := range items {
			if t.Status == want {
				kept = append(kept, t)
			}
		}
		items = kept
	}
	if f.Priority != "" && f.Priority != "all" {
		want := NormalizePriority(f.Priority)
		kept := items[:0]
		for _, t := range items {
			if t.Priority == want {
				kept = append(kept, t)
			}
		}
		items = kept
	}

	SortQueue(items)
	q := &models.Queue{Items: items}
	q.Meta.Total = len(items)
	for _, t := range items {
		if t.SLAOverdue {
			q.Meta.Overdue++
		}
		if t.Status == models.StatusPending {
			q.Meta.Pending++
		}
	}
	return q, nil
}

// PendingSorted returns pending tickets by priority rank then creation time,
// the order batch dispatch consumes.
func (m *Manager) PendingSorted(ctx context.Context) ([]*models.Ticket, error) {
	tickets, err := m.store.ListTickets(ctx)
	if err != nil {
		return nil, fmt.Errorf("list tickets: %w", err)
	}
	var pending []*models.Ticket
	for _, t := range tickets {
		m.refresh(t)
		if t.Status == models.StatusPending {
			pending = append(pending, t)
		}
	}
	sortPending(pending)
	return pending, nil
}

func sortPending(items []*models.Ticket) {
	sort.SliceStable(items, func(i, j int) bool {
		a, b := items[i], items[j]
		if ar, br := PriorityRank(a.Priority), PriorityRank(b.Priority); ar != br {
			return ar < br
		}
		return a.CreatedAt.Before(b.CreatedAt)
	})
}

// ProjectStatus derives the client-facing fulfillment view from the most
// recent ticket of a project.
func (m *Manager) ProjectStatus(ctx context.Context, projectID string) (*models.ProjectStatus, error) {
	t, err := m.store.LatestTicketForProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	m.refresh(t)
	return &models.ProjectStatus{
		ProjectID:   projectID,
		Status:      t.Status,
		Progress:    t.Progress,
		Message:     StatusMessage(t.Status, t.Engineer),
		Engineer:    t.Engineer,
		DeployedURL: t.PreviewURL,
		UpdatedAt:   t.UpdatedAt,
	}, nil
}
