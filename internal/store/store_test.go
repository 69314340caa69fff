package store

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/williamfrack18-alt/anmar-engine/pkg/models"
)

func TestSQLiteStore(t *testing.T) {
	t.Parallel()
	s, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	exerciseStore(t, s)
}

func TestMemStore(t *testing.T) {
	t.Parallel()
	exerciseStore(t, NewMem())
}

// exerciseStore runs the contract every implementation must satisfy.
func exerciseStore(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()

	// Conversations.
	if _, err := s.GetConversation(ctx, "nobody@example.com"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("missing conversation error = %v", err)
	}
	key := MemoryKey("Client@Example.com", "Pet App")
	if key != "client@example.com::project::pet app" {
		t.Fatalf("memory key = %q", key)
	}
	conv := &Conversation{
		Key:    key,
		Memory: json.RawMessage(`{"summary":"a booking app"}`),
		History: json.RawMessage(
			`[{"role":"user","content":"I want a booking app"}]`),
	}
	if err := s.PutConversation(ctx, conv); err != nil {
		t.Fatalf("put conversation: %v", err)
	}
	got, err := s.GetConversation(ctx, key)
	if err != nil {
		t.Fatalf("get conversation: %v", err)
	}
	if string(got.Memory) != string(conv.Memory) {
		t.Fatalf("memory = %s", got.Memory)
	}
	// Overwrite is an upsert.
	conv.Memory = json.RawMessage(`{"summary":"a bigger booking app"}`)
	if err := s.PutConversation(ctx, conv); err != nil {
		t.Fatalf("upsert conversation: %v", err)
	}
	if err := s.DeleteConversation(ctx, key); err != nil {
		t.Fatalf("delete conversation: %v", err)
	}
	if _, err := s.GetConversation(ctx, key); !errors.Is(err, ErrNotFound) {
		t.Fatalf("deleted conversation still present: %v", err)
	}

	// Tickets.
	now := time.Now().Truncate(time.Second).UTC()
	completedAt := now.Add(3 * time.Hour)
	first := &models.Ticket{
		ID:        "TKT-1",
		ProjectID: "pet_app",
		Summary:   "a booking app",
		Status:    models.StatusPending,
		Priority:  models.PriorityHigh,
		Progress:  15,
		SLADueAt:  now.Add(24 * time.Hour),
		CreatedAt: now,
		UpdatedAt: now,
		TechStack: []string{"React", "Go"},
		Brief:     &models.EngineerBrief{Vision: "a booking app", MustHaveFeatures: []string{"booking calendar"}},
		Events: []models.TicketEvent{{
			Timestamp: now, Status: models.StatusPending, Actor: "system", Message: "created",
		}},
	}
	if err := s.CreateTicket(ctx, first); err != nil {
		t.Fatalf("create ticket: %v", err)
	}
	second := &models.Ticket{
		ID: "TKT-2", ProjectID: "pet_app", Status: models.StatusPending,
		Priority: models.PriorityLow, SLADueAt: now.Add(72 * time.Hour),
		CreatedAt: now.Add(time.Minute), UpdatedAt: now.Add(time.Minute),
	}
	if err := s.CreateTicket(ctx, second); err != nil {
		t.Fatalf("create second ticket: %v", err)
	}

	got2, err := s.GetTicket(ctx, "TKT-1")
	if err != nil {
		t.Fatalf("get ticket: %v", err)
	}
	if got2.Brief == nil || got2.Brief.Vision != "a booking app" {
		t.Fatalf("brief lost: %+v", got2.Brief)
	}
	if len(got2.Events) != 1 || got2.Events[0].Actor != "system" {
		t.Fatalf("events lost: %+v", got2.Events)
	}
	if !got2.SLADueAt.Equal(first.SLADueAt) {
		t.Fatalf("sla_due_at = %v, want %v", got2.SLADueAt, first.SLADueAt)
	}

	got2.Status = models.StatusCompleted
	got2.Progress = 100
	got2.Engineer = "Maria P."
	got2.CompletedAt = &completedAt
	got2.UpdatedAt = completedAt
	if err := s.UpdateTicket(ctx, got2); err != nil {
		t.Fatalf("update ticket: %v", err)
	}
	back, err := s.GetTicket(ctx, "TKT-1")
	if err != nil {
		t.Fatalf("get after update: %v", err)
	}
	if back.Status != models.StatusCompleted || back.CompletedAt == nil || !back.CompletedAt.Equal(completedAt) {
		t.Fatalf("update lost: %+v", back)
	}

	if err := s.UpdateTicket(ctx, &models.Ticket{ID: "TKT-404", SLADueAt: now, UpdatedAt: now}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("update of missing ticket = %v", err)
	}
	if _, err := s.GetTicket(ctx, "TKT-404"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("get of missing ticket = %v", err)
	}

	list, err := s.ListTickets(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 2 || list[0].ID != "TKT-1" || list[1].ID != "TKT-2" {
		t.Fatalf("list order = %v", ids(list))
	}

	latest, err := s.LatestTicketForProject(ctx, "pet_app")
	if err != nil {
		t.Fatalf("latest: %v", err)
	}
	if latest.ID != "TKT-2" {
		t.Fatalf("latest = %s", latest.ID)
	}
	if _, err := s.LatestTicketForProject(ctx, "ghost"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("latest for missing project = %v", err)
	}

	// Dispatch cursor: zero before first write, then round trips.
	cur, err := s.GetDispatchCursor(ctx)
	if err != nil || cur != 0 {
		t.Fatalf("initial cursor = %d, %v", cur, err)
	}
	if err := s.PutDispatchCursor(ctx, 1); err != nil {
		t.Fatalf("put cursor: %v", err)
	}
	if err := s.PutDispatchCursor(ctx, 0); err != nil {
		t.Fatalf("overwrite cursor: %v", err)
	}
	cur, err = s.GetDispatchCursor(ctx)
	if err != nil || cur != 0 {
		t.Fatalf("cursor = %d, %v", cur, err)
	}
}

func TestSQLiteMigrateIdempotent(t *testing.T) {
	t.Parallel()
	home := t.TempDir()
	s, err := Open(home)
	if err != nil {
		t.Fatalf("first open: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	s, err = Open(home)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	_ = s.Close()
}

func TestSQLiteMalformedBlobsDecodeToDefaults(t *testing.T) {
	t.Parallel()
	s, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })

	sq := s.(*sqliteStore)
	now := time.Now().Unix()
	_, err = sq.DB.Exec(`INSERT INTO tickets(id, project_id, tech_stack_json, brief_json, events_json, sla_due_at, created_at, updated_at)
VALUES('TKT-BAD', 'p', '{broken', '{broken', 'not json', ?, ?, ?)`, now, now, now)
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	got, err := s.GetTicket(context.Background(), "TKT-BAD")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.TechStack != nil || got.Events != nil || got.Brief != nil {
		t.Fatalf("malformed blobs not defaulted: %+v", got)
	}
}

func ids(list []*models.Ticket) []string {
	out := make([]string, len(list))
	for i, t := range list {
		out[i] = t.ID
	}
	return out
}
