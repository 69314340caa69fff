package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/williamfrack18-alt/anmar-engine/internal/brief"
	"github.com/williamfrack18-alt/anmar-engine/internal/dispatch"
	"github.com/williamfrack18-alt/anmar-engine/internal/extract"
	"github.com/williamfrack18-alt/anmar-engine/internal/memory"
	"github.com/williamfrack18-alt/anmar-engine/internal/otel"
	"github.com/williamfrack18-alt/anmar-engine/internal/store"
	"github.com/williamfrack18-alt/anmar-engine/internal/ticket"
	"github.com/williamfrack18-alt/anmar-engine/internal/turn"
	"github.com/williamfrack18-alt/anmar-engine/pkg/models"
)

const resetReply = "Done, starting fresh. Tell me your idea and we build the brief from zero."

// turnResponse is the /api/turn payload: the turn result plus the ticket a
// confirmed handoff opened, if any.
type turnResponse struct {
	models.TurnResult
	Ticket        *models.Ticket `json:"ticket,omitempty"`
	QuotaExceeded bool           `json:"quota_exceeded,omitempty"`
}

func (a *App) handleTurn(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Identity string `json:"identity"`
		Project  string `json:"project"`
		Message  string `json:"message"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if strings.TrimSpace(body.Identity) == "" || strings.TrimSpace(body.Message) == "" {
		writeJSONError(w, http.StatusBadRequest, "identity and message required")
		return
	}

	key := store.MemoryKey(body.Identity, body.Project)
	unlock := a.convLocks.Lock(key)
	defer unlock()

	ctx := r.Context()
	mem, history, err := a.loadConversation(ctx, key)
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}

	if extract.HasResetIntent(body.Message) {
		mem.Reset()
		if err := a.saveConversation(ctx, key, mem, nil); err != nil {
			writeJSONError(w, http.StatusInternalServerError, err.Error())
			return
		}
		a.Hub.PublishJSON(map[string]any{"type": "turn", "key": key, "action": "reset"})
		writeJSON(w, turnResponse{TurnResult: models.TurnResult{
			Reply:         resetReply,
			Action:        "reset",
			Phase:         turn.PhaseDiscovery,
			MissingFields: mem.MissingFields(),
			BriefScore:    brief.Score(mem.MissingFields()),
			Memory:        mem.Snapshot(),
		}})
		return
	}

	start := time.Now()
	analysis := turn.Analyze(mem, history, body.Message)
	action := turn.NextAction(analysis, body.Message)
	reply := a.Advisor.Reply(ctx, analysis, body.Message, history)

	history = append(history,
		models.Message{Role: "user", Content: body.Message},
		models.Message{Role: "assistant", Content: reply},
	)
	if err := a.saveConversation(ctx, key, mem, history); err != nil {
		writeJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	otel.RecordTurn(ctx, action, analysis.Phase, time.Since(start))

	resp := turnResponse{TurnResult: models.TurnResult{
		Reply:         reply,
		Action:        action,
		Phase:         analysis.Phase,
		ReadyToBuild:  analysis.ReadyToBuild,
		ReadyByData:   analysis.ReadyByData,
		MissingFields: analysis.MissingFields,
		NextQuestion:  analysis.NextQuestion,
		BriefScore:    analysis.BriefScore,
		Memory:        mem.Snapshot(),
	}}

	// A confirmed order opens the ticket inside the same turn.
	if action == turn.ActionHandoffConfirmed {
		t, allowed, err := a.openHandoffTicket(ctx, body.Identity, body.Project, "", mem, history)
		switch {
		case err != nil:
			writeJSONError(w, http.StatusInternalServerError, err.Error())
			return
		case !allowed:
			resp.QuotaExceeded = true
		default:
			resp.Ticket = t
		}
	}

	a.Hub.PublishJSON(map[string]any{"type": "turn", "key": key, "action": action, "phase": analysis.Phase})
	writeJSON(w, resp)
}

func (a *App) handleGetMemory(w http.ResponseWriter, r *http.Request) {
	key := store.MemoryKey(r.URL.Query().Get("identity"), r.URL.Query().Get("project"))
	mem, _, err := a.loadConversation(r.Context(), key)
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, map[string]any{
		"memory":         mem.Snapshot(),
		"missing_fields": mem.MissingFields(),
		"brief_score":    brief.Score(mem.MissingFields()),
	})
}

func (a *App) handleResetMemory(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Identity string `json:"identity"`
		Project  string `json:"project"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid json")
		return
	}
	key := store.MemoryKey(body.Identity, body.Project)
	unlock := a.convLocks.Lock(key)
	defer unlock()

	mem := memory.New()
	if err := a.saveConversation(r.Context(), key, mem, nil); err != nil {
		writeJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	a.Hub.PublishJSON(map[string]any{"type": "memory_reset", "key": key})
	writeJSON(w, map[string]any{"ok": true, "memory": mem.Snapshot()})
}

func (a *App) handleHistory(w http.ResponseWriter, r *http.Request) {
	key := store.MemoryKey(r.URL.Query().Get("identity"), r.URL.Query().Get("project"))
	_, history, err := a.loadConversation(r.Context(), key)
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if history == nil {
		history = []models.Message{}
	}
	writeJSON(w, map[string]any{"history": history})
}

func (a *App) handleTickets(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		tickets, err := a.Store.ListTickets(r.Context())
		if err != nil {
			writeJSONError(w, http.StatusInternalServerError, err.Error())
			return
		}
		if tickets == nil {
			tickets = []*models.Ticket{}
		}
		writeJSON(w, tickets)
	case http.MethodPost:
		a.handleCreateTicket(w, r)
	default:
		writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

// handleCreateTicket is the explicit handoff: it packages the stored
// conversation into a ticket without waiting for a confirmed turn.
func (a *App) handleCreateTicket(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Identity string `json:"identity"`
		Project  string `json:"project"`
		Priority string `json:"priority"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if strings.TrimSpace(body.Identity) == "" {
		writeJSONError(w, http.StatusBadRequest, "identity required")
		return
	}
	key := store.MemoryKey(body.Identity, body.Project)
	unlock := a.convLocks.Lock(key)
	defer unlock()

	ctx := r.Context()
	mem, history, err := a.loadConversation(ctx, key)
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if mem.Summary == "" && len(history) == 0 {
		writeJSONError(w, http.StatusBadRequest, "no conversation to hand off")
		return
	}
	t, allowed, err := a.openHandoffTicket(ctx, body.Identity, body.Project, body.Priority, mem, history)
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if !allowed {
		writeJSONError(w, http.StatusForbidden, "active ticket quota reached")
		return
	}
	writeJSON(w, t)
}

// openHandoffTicket packages memory and transcript into a ticket. The second
// return is false when the quota gate denies the client.
func (a *App) openHandoffTicket(ctx context.Context, identity, project, priority string, mem *memory.Memory, history []models.Message) (*models.Ticket, bool, error) {
	allowed, err := a.Quota.MayProceed(ctx, identity)
	if err != nil {
		return nil, false, err
	}
	if !allowed {
		return nil, false, nil
	}

	d := brief.FromHistory(history)
	b := brief.Build(d, history, mem)
	stack := brief.TechStack(d.RawText)

	projectID := brief.Slugify(project)
	if project == "" {
		projectID = brief.Slugify(d.ProjectNameSeed)
	}
	summary := mem.Summary
	if summary == "" {
		summary = b.Vision
	}
	if priority == "" {
		priority = ticket.InferPriority(summary + " " + mem.Timeline)
	}

	t, err := a.Tickets.Create(ctx, ticket.CreateParams{
		ProjectID:   projectID,
		ClientEmail: identity,
		Summary:     summary,
		Priority:    priority,
		Brief:       &b,
		BlueprintMD: brief.Blueprint(b, stack),
		TechStack:   stack,
		Actor:       "consultation",
	})
	if err != nil {
		return nil, true, err
	}
	otel.RecordTicketOp(ctx, "create", t.Status, t.Priority)
	a.notifyAsync("New ticket " + t.ID + " (" + t.Priority + "): " + t.Summary)
	a.Hub.PublishJSON(map[string]any{"type": "ticket_update", "ticket_id": t.ID, "status": t.Status})
	return t, true, nil
}

func (a *App) handleAcceptTicket(w http.ResponseWriter, r *http.Request) {
	var body struct {
		TicketID string `json:"ticket_id"`
		Engineer string `json:"engineer"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if body.TicketID == "" {
		writeJSONError(w, http.StatusBadRequest, "ticket_id required")
		return
	}
	ctx := r.Context()

	engineer := strings.TrimSpace(body.Engineer)
	var t *models.Ticket
	var err error
	switch strings.ToLower(engineer) {
	case "", "auto", "dispatch", "smart":
		t, err = a.Dispatch.Assign(ctx, body.TicketID)
		if err == nil {
			engineer = t.Engineer
			otel.RecordDispatch(ctx, engineer)
		}
	default:
		t, err = a.Tickets.SetStatus(ctx, body.TicketID, models.StatusAccepted,
			ticket.StatusUpdate{Engineer: engineer, Actor: engineer})
	}
	if err != nil {
		writeJSONError(w, errStatus(err), err.Error())
		return
	}

	// Accepting rolls straight into development.
	t, err = a.Tickets.SetStatus(ctx, body.TicketID, models.StatusDeveloping,
		ticket.StatusUpdate{Engineer: engineer, Actor: engineer})
	if err != nil {
		writeJSONError(w, errStatus(err), err.Error())
		return
	}
	otel.RecordTicketOp(ctx, "accept", t.Status, t.Priority)
	a.Hub.PublishJSON(map[string]any{"type": "ticket_update", "ticket_id": t.ID, "status": t.Status, "engineer": t.Engineer})
	writeJSON(w, t)
}

func (a *App) handleDeliverTicket(w http.ResponseWriter, r *http.Request) {
	var body struct {
		TicketID     string `json:"ticket_id"`
		PreviewURL   string `json:"preview_url"`
		DeliveryNote string `json:"delivery_note"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if body.TicketID == "" {
		writeJSONError(w, http.StatusBadRequest, "ticket_id required")
		return
	}
	t, err := a.Tickets.SetStatus(r.Context(), body.TicketID, models.StatusCompleted, ticket.StatusUpdate{
		PreviewURL:   body.PreviewURL,
		DeliveryNote: body.DeliveryNote,
		Actor:        "engineer",
	})
	if err != nil {
		writeJSONError(w, errStatus(err), err.Error())
		return
	}
	otel.RecordTicketOp(r.Context(), "deliver", t.Status, t.Priority)
	a.notifyAsync("Ticket " + t.ID + " delivered: " + t.PreviewURL)
	a.Hub.PublishJSON(map[string]any{"type": "ticket_update", "ticket_id": t.ID, "status": t.Status})
	writeJSON(w, t)
}

func (a *App) handleUpdateTicket(w http.ResponseWriter, r *http.Request) {
	var body struct {
		TicketID     string `json:"ticket_id"`
		Status       string `json:"status"`
		Engineer     string `json:"engineer"`
		PreviewURL   string `json:"preview_url"`
		DeliveryNote string `json:"delivery_note"`
		Actor        string `json:"actor"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if body.TicketID == "" || body.Status == "" {
		writeJSONError(w, http.StatusBadRequest, "ticket_id and status required")
		return
	}
	actor := body.Actor
	if actor == "" {
		actor = "admin"
	}
	t, err := a.Tickets.SetStatus(r.Context(), body.TicketID, body.Status, ticket.StatusUpdate{
		Engineer:     body.Engineer,
		PreviewURL:   body.PreviewURL,
		DeliveryNote: body.DeliveryNote,
		Actor:        actor,
	})
	if err != nil {
		writeJSONError(w, errStatus(err), err.Error())
		return
	}
	otel.RecordTicketOp(r.Context(), "update", t.Status, t.Priority)
	a.Hub.PublishJSON(map[string]any{"type": "ticket_update", "ticket_id": t.ID, "status": t.Status})
	writeJSON(w, t)
}

func (a *App) handleQueue(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	queue, err := a.Tickets.Queue(r.Context(), ticket.QueueFilter{
		Engineer: q.Get("engineer"),
		Status:   q.Get("status"),
		Priority: q.Get("priority"),
		Mode:     q.Get("mode"),
	})
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, queue)
}

func (a *App) handleAutoAssign(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Limit int `json:"limit"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid json")
		return
	}
	assignments, err := a.Dispatch.AutoAssign(r.Context(), body.Limit)
	if err != nil {
		if errors.Is(err, dispatch.ErrEmptyPool) {
			writeJSONError(w, http.StatusConflict, err.Error())
			return
		}
		writeJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	for _, as := range assignments {
		otel.RecordDispatch(r.Context(), as.Engineer)
		a.Hub.PublishJSON(map[string]any{"type": "ticket_update", "ticket_id": as.TicketID, "engineer": as.Engineer})
	}
	if assignments == nil {
		assignments = []models.Assignment{}
	}
	writeJSON(w, map[string]any{"assignments": assignments})
}

// handleProjectStatus serves GET /api/projects/{id}/status.
func (a *App) handleProjectStatus(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/projects/")
	parts := strings.Split(rest, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] != "status" {
		writeJSONError(w, http.StatusNotFound, "not found")
		return
	}
	ps, err := a.Tickets.ProjectStatus(r.Context(), parts[0])
	if err != nil {
		writeJSONError(w, errStatus(err), err.Error())
		return
	}
	writeJSON(w, ps)
}

func (a *App) loadConversation(ctx context.Context, key string) (*memory.Memory, []models.Message, error) {
	conv, err := a.Store.GetConversation(ctx, key)
	if errors.Is(err, store.ErrNotFound) {
		return memory.New(), nil, nil
	}
	if err != nil {
		return nil, nil, err
	}
	var history []models.Message
	if err := json.Unmarshal(conv.History, &history); err != nil {
		history = nil
	}
	return memory.Decode(conv.Memory), history, nil
}

func (a *App) saveConversation(ctx context.Context, key string, mem *memory.Memory, history []models.Message) error {
	memJSON, err := mem.Encode()
	if err != nil {
		return err
	}
	histJSON, err := json.Marshal(history)
	if err != nil {
		return err
	}
	if history == nil {
		histJSON = []byte("[]")
	}
	return a.Store.PutConversation(ctx, &store.Conversation{
		Key:       key,
		Memory:    memJSON,
		History:   histJSON,
		UpdatedAt: time.Now(),
	})
}

// notifyAsync fans a message out to the registered capabilities without
// blocking the request. Failures are logged and otherwise ignored.
func (a *App) notifyAsync(message string) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := a.Capabilities.NotifyAll(ctx, message); err != nil {
			a.logger.Warn("capability notification failed", "err", err)
		}
	}()
}

func errStatus(err error) int {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ticket.ErrUnknownStatus):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
