package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/williamfrack18-alt/anmar-engine/internal/store"
	"github.com/williamfrack18-alt/anmar-engine/pkg/models"
)

const ticketSelect = `SELECT id, project_id, client_email, summary, status, priority, progress, engineer,
preview_url, delivery_note, tech_stack_json, brief_json, blueprint_md,
sla_due_at, sla_breached, events_json, created_at, updated_at, completed_at FROM tickets`

func (s *Store) GetConversation(ctx context.Context, key string) (*store.Conversation, error) {
	var c store.Conversation
	var memoryJSON, historyJSON string
	err := s.Pool.QueryRow(ctx,
		`SELECT key, memory_json, history_json, updated_at FROM conversations WHERE key = $1`, key).
		Scan(&c.Key, &memoryJSON, &historyJSON, &c.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("conversation %q: %w", key, store.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	c.Memory = json.RawMessage(memoryJSON)
	c.History = json.RawMessage(historyJSON)
	return &c, nil
}

func (s *Store) PutConversation(ctx context.Context, c *store.Conversation) error {
	mem, hist := c.Memory, c.History
	if len(mem) == 0 {
		mem = json.RawMessage("{}")
	}
	if len(hist) == 0 {
		hist = json.RawMessage("[]")
	}
	updated := c.UpdatedAt
	if updated.IsZero() {
		updated = time.Now()
	}
	_, err := s.Pool.Exec(ctx, `INSERT INTO conversations(key, memory_json, history_json, updated_at)
VALUES($1, $2, $3, $4)
ON CONFLICT(key) DO UPDATE SET memory_json = EXCLUDED.memory_json, history_json = EXCLUDED.history_json, updated_at = EXCLUDED.updated_at`,
		c.Key, string(mem), string(hist), updated)
	return err
}

func (s *Store) DeleteConversation(ctx context.Context, key string) error {
	_, err := s.Pool.Exec(ctx, `DELETE FROM conversations WHERE key = $1`, key)
	return err
}

func (s *Store) CreateTicket(ctx context.Context, t *models.Ticket) error {
	techJSON, briefJSON, eventsJSON := encodeTicketBlobs(t)
	_, err := s.Pool.Exec(ctx, `INSERT INTO tickets(id, project_id, client_email, summary, status, priority, progress, engineer,
preview_url, delivery_note, tech_stack_json, brief_json, blueprint_md,
sla_due_at, sla_breached, events_json, created_at, updated_at, completed_at)
VALUES($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)`,
		t.ID, t.ProjectID, t.ClientEmail, t.Summary, t.Status, t.Priority, t.Progress, t.Engineer,
		t.PreviewURL, t.DeliveryNote, techJSON, briefJSON, t.BlueprintMD,
		t.SLADueAt, t.SLABreached, eventsJSON, t.CreatedAt, t.UpdatedAt, t.CompletedAt)
	return err
}

func (s *Store) UpdateTicket(ctx context.Context, t *models.Ticket) error {
	techJSON, briefJSON, eventsJSON := encodeTicketBlobs(t)
	tag, err := s.Pool.Exec(ctx, `UPDATE tickets SET status = $1, priority = $2, progress = $3, engineer = $4,
preview_url = $5, delivery_note = $6, tech_stack_json = $7, brief_json = $8, blueprint_md = $9,
sla_due_at = $10, sla_breached = $11, events_json = $12, updated_at = $13, completed_at = $14
WHERE id = $15`,
		t.Status, t.Priority, t.Progress, t.Engineer,
		t.PreviewURL, t.DeliveryNote, techJSON, briefJSON, t.BlueprintMD,
		t.SLADueAt, t.SLABreached, eventsJSON, t.UpdatedAt, t.CompletedAt, t.ID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("ticket %q: %w", t.ID, store.ErrNotFound)
	}
	return nil
}

func (s *Store) GetTicket(ctx context.Context, id string) (*models.Ticket, error) {
	t, err := scanTicket(s.Pool.QueryRow(ctx, ticketSelect+` WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("ticket %q: %w", id, store.ErrNotFound)
	}
	return t, err
}

func (s *Store) ListTickets(ctx context.Context) ([]*models.Ticket, error) {
	rows, err := s.Pool.Query(ctx, ticketSelect+` ORDER BY created_at ASC, id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*models.Ticket
	for rows.Next() {
		t, err := scanTicket(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (s *Store) LatestTicketForProject(ctx context.Context, projectID string) (*models.Ticket, error) {
	t, err := scanTicket(s.Pool.QueryRow(ctx,
		ticketSelect+` WHERE project_id = $1 ORDER BY created_at DESC, id DESC LIMIT 1`, projectID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("project %q: %w", projectID, store.ErrNotFound)
	}
	return t, err
}

func (s *Store) GetDispatchCursor(ctx context.Context) (int, error) {
	var cursor int
	err := s.Pool.QueryRow(ctx, `SELECT rr_cursor FROM dispatch_state WHERE id = 1`).Scan(&cursor)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return cursor, nil
}

func (s *Store) PutDispatchCursor(ctx context.Context, cursor int) error {
	_, err := s.Pool.Exec(ctx, `INSERT INTO dispatch_state(id, rr_cursor, updated_at) VALUES(1, $1, $2)
ON CONFLICT(id) DO UPDATE SET rr_cursor = EXCLUDED.rr_cursor, updated_at = EXCLUDED.updated_at`,
		cursor, time.Now())
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTicket(row rowScanner) (*models.Ticket, error) {
	var t models.Ticket
	var techJSON, eventsJSON string
	var briefJSON *string
	var completed *time.Time
	if err := row.Scan(
		&t.ID, &t.ProjectID, &t.ClientEmail, &t.Summary, &t.Status, &t.Priority, &t.Progress, &t.Engineer,
		&t.PreviewURL, &t.DeliveryNote, &techJSON, &briefJSON, &t.BlueprintMD,
		&t.SLADueAt, &t.SLABreached, &eventsJSON, &t.CreatedAt, &t.UpdatedAt, &completed,
	); err != nil {
		return nil, err
	}
	t.CompletedAt = completed
	// Malformed blobs decode to empty defaults rather than failing the read.
	if err := json.Unmarshal([]byte(techJSON), &t.TechStack); err != nil {
		t.TechStack = nil
	}
	if err := json.Unmarshal([]byte(eventsJSON), &t.Events); err != nil {
		t.Events = nil
	}
	if briefJSON != nil && *briefJSON != "" {
		var b models.EngineerBrief
		if err := json.Unmarshal([]byte(*briefJSON), &b); err == nil {
			t.Brief = &b
		}
	}
	return &t, nil
}

func encodeTicketBlobs(t *models.Ticket) (techJSON string, briefJSON *string, eventsJSON string) {
	tech, err := json.Marshal(t.TechStack)
	if err != nil || t.TechStack == nil {
		tech = []byte("[]")
	}
	events, err := json.Marshal(t.Events)
	if err != nil || t.Events == nil {
		events = []byte("[]")
	}
	if t.Brief != nil {
		if b, err := json.Marshal(t.Brief); err == nil {
			s := string(b)
			briefJSON = &s
		}
	}
	return string(tech), briefJSON, string(events)
}
