// Package models provides shared types for the Anmar engine HTTP API and external tools.
// These types mirror the API JSON and are stable for use by pkg/client and other consumers.
package models

import "time"

// Ticket lifecycle statuses. Completed is terminal.
const (
	StatusPending    = "pending"
	StatusAccepted   = "accepted"
	StatusDeveloping = "developing"
	StatusBlocked    = "blocked"
	StatusCompleted  = "completed"
)

// Ticket priorities. Each maps to a fixed SLA window at creation time.
const (
	PriorityHigh   = "high"
	PriorityMedium = "medium"
	PriorityLow    = "low"
)

// Message is one turn of a consultation transcript.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// TicketEvent is one immutable entry in a ticket's audit trail.
type TicketEvent struct {
	Timestamp time.Time `json:"timestamp"`
	Status    string    `json:"status"`
	Actor     string    `json:"actor"`
	Message   string    `json:"message"`
}

// Ticket is a durable work item created when a consultation reaches handoff readiness.
type Ticket struct {
	ID           string         `json:"id"`
	ProjectID    string         `json:"project_id"`
	ClientEmail  string         `json:"client_email,omitempty"`
	Summary      string         `json:"summary"`
	Status       string         `json:"status"`
	Priority     string         `json:"priority"`
	Progress     int            `json:"progress"`
	Engineer     string         `json:"engineer,omitempty"`
	PreviewURL   string         `json:"preview_url,omitempty"`
	DeliveryNote string         `json:"delivery_note,omitempty"`
	TechStack    []string       `json:"tech_stack,omitempty"`
	Brief        *EngineerBrief `json:"brief,omitempty"`
	BlueprintMD  string         `json:"blueprint_md,omitempty"`
	SLADueAt     time.Time      `json:"sla_due_at"`
	SLAOverdue   bool           `json:"sla_overdue"`
	SLABreached  bool           `json:"sla_breached,omitempty"`
	Events       []TicketEvent  `json:"events"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
	CompletedAt  *time.Time     `json:"completed_at,omitempty"`
}

// EngineerBrief is the structured handoff brief attached to a ticket.
type EngineerBrief struct {
	Vision           string   `json:"vision"`
	TargetAudience   string   `json:"target_audience"`
	BusinessModel    string   `json:"business_model"`
	Timeline         string   `json:"timeline"`
	MustHaveFeatures []string `json:"must_have_features"`
	ClientHighlights []string `json:"client_highlights,omitempty"`
	Domain           string   `json:"domain,omitempty"`
}

// MemorySnapshot is the API view of a conversation's structured memory.
type MemorySnapshot struct {
	Summary       string   `json:"summary"`
	Audience      string   `json:"audience"`
	BusinessModel string   `json:"business_model"`
	Timeline      string   `json:"timeline"`
	Features      []string `json:"features"`
	Domain        string   `json:"domain"`
}

// TurnResult is the response to one consultation turn.
type TurnResult struct {
	Reply         string         `json:"reply"`
	Action        string         `json:"action"`
	Phase         string         `json:"phase"`
	ReadyToBuild  bool           `json:"ready_to_build"`
	ReadyByData   bool           `json:"ready_by_data"`
	MissingFields []string       `json:"missing_fields"`
	NextQuestion  string         `json:"next_question,omitempty"`
	BriefScore    int            `json:"brief_score"`
	Memory        MemorySnapshot `json:"memory"`
}

// Assignment records one auto-dispatch decision.
type Assignment struct {
	TicketID  string `json:"ticket_id"`
	ProjectID string `json:"project_id"`
	Engineer  string `json:"engineer"`
	Priority  string `json:"priority"`
}

// QueueMeta summarizes a queue listing.
type QueueMeta struct {
	Total   int `json:"total"`
	Overdue int `json:"overdue"`
	Pending int `json:"pending"`
}

// Queue is the /api/queue response: filtered tickets in display order plus counts.
type Queue struct {
	Items []Ticket  `json:"items"`
	Meta  QueueMeta `json:"meta"`
}

// ProjectStatus is the client-facing view of a project's fulfillment state,
// derived from the most recent ticket for the project.
type ProjectStatus struct {
	ProjectID   string    `json:"project_id"`
	Status      string    `json:"status"`
	Progress    int       `json:"progress"`
	Message     string    `json:"message"`
	Engineer    string    `json:"engineer,omitempty"`
	DeployedURL string    `json:"deployed_url,omitempty"`
	UpdatedAt   time.Time `json:"updated_at"`
}
