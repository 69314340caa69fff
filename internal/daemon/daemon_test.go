package daemon

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/williamfrack18-alt/anmar-engine/internal/httpapi"
	"github.com/williamfrack18-alt/anmar-engine/internal/ticket"
	"github.com/williamfrack18-alt/anmar-engine/pkg/models"
)

func TestStartForeground_emptyHome(t *testing.T) {
	ctx := context.Background()
	err := StartForeground(ctx, StartOptions{Home: ""})
	if err == nil {
		t.Fatal("StartForeground empty home: expected error")
	}
}

func testApp(t *testing.T) (*httpapi.App, context.Context) {
	t.Helper()
	home := filepath.Join(t.TempDir(), "home")
	app, err := httpapi.NewApp(httpapi.ServerOptions{Home: home, Addr: ":0"})
	if err != nil {
		t.Fatalf("NewApp: %v", err)
	}
	t.Cleanup(func() { _ = app.Store.Close() })
	return app, context.Background()
}

func TestSweepOnce_flagsOverdueTicketOnce(t *testing.T) {
	app, ctx := testApp(t)

	tk, err := app.Tickets.Create(ctx, ticket.CreateParams{
		ProjectID: "p1", Summary: "overdue seed", Priority: models.PriorityHigh, Actor: "test",
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	tk.SLADueAt = time.Now().Add(-time.Hour)
	if err := app.Store.UpdateTicket(ctx, tk); err != nil {
		t.Fatalf("UpdateTicket: %v", err)
	}

	ch := app.Hub.Subscribe()
	defer app.Hub.Unsubscribe(ch)

	flagged := make(map[string]bool)
	sweepOnce(ctx, StartOptions{}, app, flagged)

	select {
	case raw := <-ch:
		var payload map[string]any
		if err := json.Unmarshal(raw, &payload); err != nil {
			t.Fatalf("Unmarshal: %v", err)
		}
		if payload["type"] != "sla_overdue" || payload["ticket_id"] != tk.ID {
			t.Errorf("payload = %v", payload)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no sla_overdue event")
	}

	// Second sweep must not re-announce the same ticket.
	sweepOnce(ctx, StartOptions{}, app, flagged)
	select {
	case raw := <-ch:
		t.Fatalf("duplicate announcement: %s", raw)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestSweepOnce_autoDispatchAssignsPending(t *testing.T) {
	app, ctx := testApp(t)

	first, err := app.Tickets.Create(ctx, ticket.CreateParams{
		ProjectID: "p1", Summary: "urgent build", Priority: models.PriorityHigh, Actor: "test",
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	second, err := app.Tickets.Create(ctx, ticket.CreateParams{
		ProjectID: "p2", Summary: "later build", Priority: models.PriorityLow, Actor: "test",
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	sweepOnce(ctx, StartOptions{AutoDispatch: true}, app, make(map[string]bool))

	for _, id := range []string{first.ID, second.ID} {
		got, err := app.Store.GetTicket(ctx, id)
		if err != nil {
			t.Fatalf("GetTicket %s: %v", id, err)
		}
		if got.Status != models.StatusAccepted || got.Engineer == "" {
			t.Errorf("ticket %s = %s/%q, want accepted with engineer", id, got.Status, got.Engineer)
		}
	}
}

func TestStatus_noPidFile(t *testing.T) {
	st, err := Status(context.Background(), t.TempDir())
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if st.Running {
		t.Fatal("expected not running")
	}
}
