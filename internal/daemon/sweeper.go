package daemon

import (
	"context"
	"log/slog"
	"time"

	"github.com/williamfrack18-alt/anmar-engine/internal/httpapi"
	"github.com/williamfrack18-alt/anmar-engine/internal/otel"
	"github.com/williamfrack18-alt/anmar-engine/internal/ticket"
)

// runSweeper periodically flags tickets that crossed their SLA due time and,
// when enabled, auto-assigns the pending queue. Every finding goes out on the
// SSE stream so dashboards track it live.
func runSweeper(ctx context.Context, opts StartOptions, app *httpapi.App) {
	interval := time.Duration(opts.SweepIntervalSec * float64(time.Second))
	if interval <= 0 {
		interval = 30 * time.Second
	}

	// Each overdue ticket is announced once per daemon lifetime.
	flagged := make(map[string]bool)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			sweepOnce(ctx, opts, app, flagged)
		}
	}
}

func sweepOnce(ctx context.Context, opts StartOptions, app *httpapi.App, flagged map[string]bool) {
	tickets, err := app.Store.ListTickets(ctx)
	if err != nil {
		slog.Error("sweep list tickets failed", "err", err)
		return
	}
	now := time.Now()
	for _, t := range tickets {
		if flagged[t.ID] || !ticket.Overdue(t, now) {
			continue
		}
		flagged[t.ID] = true
		slog.Warn("ticket overdue", "ticket_id", t.ID, "priority", t.Priority, "due_at", t.SLADueAt)
		app.Hub.PublishJSON(map[string]any{
			"type":      "sla_overdue",
			"ticket_id": t.ID,
			"priority":  t.Priority,
			"due_at":    t.SLADueAt.Format(time.RFC3339),
		})
		notifyOverdue(app, t.ID, t.Summary)
	}

	if opts.AutoDispatch {
		assignments, err := app.Dispatch.AutoAssign(ctx, opts.AutoDispatchLimit)
		if err != nil {
			slog.Error("sweep auto-assign failed", "err", err)
			return
		}
		for _, as := range assignments {
			otel.RecordDispatch(ctx, as.Engineer)
			app.Hub.PublishJSON(map[string]any{
				"type":      "ticket_update",
				"ticket_id": as.TicketID,
				"engineer":  as.Engineer,
			})
		}
	}
}

func notifyOverdue(app *httpapi.App, ticketID, summary string) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := app.Capabilities.NotifyAll(ctx, "Ticket "+ticketID+" is past its SLA: "+summary); err != nil {
			slog.Warn("overdue notification failed", "ticket_id", ticketID, "err", err)
		}
	}()
}
