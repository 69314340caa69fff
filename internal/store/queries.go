package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/williamfrack18-alt/anmar-engine/pkg/models"
)

const ticketSelect = `SELECT id, project_id, client_email, summary, status, priority, progress, engineer,
preview_url, delivery_note, tech_stack_json, brief_json, blueprint_md,
sla_due_at, sla_breached, events_json, created_at, updated_at, completed_at FROM tickets`

const ticketInsert = `INSERT INTO tickets(id, project_id, client_email, summary, status, priority, progress, engineer,
preview_url, delivery_note, tech_stack_json, brief_json, blueprint_md,
sla_due_at, sla_breached, events_json, created_at, updated_at, completed_at)
VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

const ticketUpdate = `UPDATE tickets SET status = ?, priority = ?, progress = ?, engineer = ?,
preview_url = ?, delivery_note = ?, tech_stack_json = ?, brief_json = ?, blueprint_md = ?,
sla_due_at = ?, sla_breached = ?, events_json = ?, updated_at = ?, completed_at = ?
WHERE id = ?`

func (s *sqliteStore) GetConversation(ctx context.Context, key string) (*Conversation, error) {
	var c Conversation
	var memoryJSON, historyJSON string
	var updated int64
	err := s.stmtGetConversation.QueryRowContext(ctx, key).Scan(&c.Key, &memoryJSON, &historyJSON, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("conversation %q: %w", key, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	c.Memory = json.RawMessage(memoryJSON)
	c.History = json.RawMessage(historyJSON)
	c.UpdatedAt = time.Unix(updated, 0).UTC()
	return &c, nil
}

func (s *sqliteStore) PutConversation(ctx context.Context, c *Conversation) error {
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
	_, err := s.stmtPutConversation.ExecContext(ctx, c.Key, string(mem), string(hist), updated.Unix())
	return err
}

func (s *sqliteStore) DeleteConversation(ctx context.Context, key string) error {
	_, err := s.DB.ExecContext(ctx, `DELETE FROM conversations WHERE key = ?`, key)
	return err
}

func (s *sqliteStore) CreateTicket(ctx context.Context, t *models.Ticket) error {
	techJSON, briefJSON, eventsJSON := encodeTicketBlobs(t)
	_, err := s.stmtCreateTicket.ExecContext(ctx,
		t.ID, t.ProjectID, t.ClientEmail, t.Summary, t.Status, t.Priority, t.Progress, t.Engineer,
		t.PreviewURL, t.DeliveryNote, techJSON, briefJSON, t.BlueprintMD,
		t.SLADueAt.Unix(), boolInt(t.SLABreached), eventsJSON,
		t.CreatedAt.Unix(), t.UpdatedAt.Unix(), nullUnix(t.CompletedAt))
	return err
}

func (s *sqliteStore) UpdateTicket(ctx context.Context, t *models.Ticket) error {
	techJSON, briefJSON, eventsJSON := encodeTicketBlobs(t)
	res, err := s.stmtUpdateTicket.ExecContext(ctx,
		t.Status, t.Priority, t.Progress, t.Engineer,
		t.PreviewURL, t.DeliveryNote, techJSON, briefJSON, t.BlueprintMD,
		t.SLADueAt.Unix(), boolInt(t.SLABreached), eventsJSON,
		t.UpdatedAt.Unix(), nullUnix(t.CompletedAt), t.ID)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("ticket %q: %w", t.ID, ErrNotFound)
	}
	return nil
}

func (s *sqliteStore) GetTicket(ctx context.Context, id string) (*models.Ticket, error) {
	t, err := scanTicket(s.stmtGetTicket.QueryRowContext(ctx, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("ticket %q: %w", id, ErrNotFound)
	}
	return t, err
}

func (s *sqliteStore) ListTickets(ctx context.Context) ([]*models.Ticket, error) {
	rows, err := s.DB.QueryContext(ctx, ticketSelect+` ORDER BY created_at ASC, id ASC`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

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

func (s *sqliteStore) LatestTicketForProject(ctx context.Context, projectID string) (*models.Ticket, error) {
	t, err := scanTicket(s.stmtLatestForProj.QueryRowContext(ctx, projectID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("project %q: %w", projectID, ErrNotFound)
	}
	return t, err
}

func (s *sqliteStore) GetDispatchCursor(ctx context.Context) (int, error) {
	var cursor int
	err := s.stmtGetCursor.QueryRowContext(ctx).Scan(&cursor)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return cursor, nil
}

func (s *sqliteStore) PutDispatchCursor(ctx context.Context, cursor int) error {
	_, err := s.stmtPutCursor.ExecContext(ctx, cursor, time.Now().Unix())
	return err
}

// rowScanner covers *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanTicket(row rowScanner) (*models.Ticket, error) {
	var t models.Ticket
	var techJSON, eventsJSON string
	var briefJSON sql.NullString
	var slaDue, created, updated int64
	var completed sql.NullInt64
	var breached int
	if err := row.Scan(
		&t.ID, &t.ProjectID, &t.ClientEmail, &t.Summary, &t.Status, &t.Priority, &t.Progress, &t.Engineer,
		&t.PreviewURL, &t.DeliveryNote, &techJSON, &briefJSON, &t.BlueprintMD,
		&slaDue, &breached, &eventsJSON, &created, &updated, &completed,
	); err != nil {
		return nil, err
	}
	t.SLADueAt = time.Unix(slaDue, 0).UTC()
	t.SLABreached = breached != 0
	t.CreatedAt = time.Unix(created, 0).UTC()
	t.UpdatedAt = time.Unix(updated, 0).UTC()
	if completed.Valid {
		ct := time.Unix(completed.Int64, 0).UTC()
		t.CompletedAt = &ct
	}
	// Malformed blobs decode to empty defaults rather than failing the read.
	if err := json.Unmarshal([]byte(techJSON), &t.TechStack); err != nil {
		t.TechStack = nil
	}
	if err := json.Unmarshal([]byte(eventsJSON), &t.Events); err != nil {
		t.Events = nil
	}
	if briefJSON.Valid && briefJSON.String != "" {
		var b models.EngineerBrief
		if err := json.Unmarshal([]byte(briefJSON.String), &b); err == nil {
			t.Brief = &b
		}
	}
	return &t, nil
}

func encodeTicketBlobs(t *models.Ticket) (techJSON, briefJSON, eventsJSON any) {
	tech, err := json.Marshal(t.TechStack)
	if err != nil || t.TechStack == nil {
		tech = []byte("[]")
	}
	events, err := json.Marshal(t.Events)
	if err != nil || t.Events == nil {
		events = []byte("[]")
	}
	var brief any
	if t.Brief != nil {
		if b, err := json.Marshal(t.Brief); err == nil {
			brief = string(b)
		}
	}
	return string(tech), brief, string(events)
}

func boolInt(v bool) int {
	if v {
		return 1
	}
	return 0
}

func nullUnix(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.Unix()
}
