package store

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/williamfrack18-alt/anmar-engine/pkg/models"
)

// ErrNotFound is returned when a key or id resolves to no record.
var ErrNotFound = errors.New("record not found")

// Conversation is one persisted consultation: the reconciled memory and the
// transcript, both opaque JSON at this layer so the store stays decoupled
// from their shape.
type Conversation struct {
	Key       string
	Memory    json.RawMessage
	History   json.RawMessage
	UpdatedAt time.Time
}

// Store is the persistence interface for conversations, tickets, and the
// dispatch rotation state.
// Implementations: the SQLite default, *postgres.Store, and the in-memory Mem.
type Store interface {
	// Conversations
	GetConversation(ctx context.Context, key string) (*Conversation, error)
	PutConversation(ctx context.Context, c *Conversation) error
	DeleteConversation(ctx context.Context, key string) error

	// Tickets
	CreateTicket(ctx context.Context, t *models.Ticket) error
	GetTicket(ctx context.Context, id string) (*models.Ticket, error)
	UpdateTicket(ctx context.Context, t *models.Ticket) error
	ListTickets(ctx context.Context) ([]*models.Ticket, error)
	LatestTicketForProject(ctx context.Context, projectID string) (*models.Ticket, error)

	// Dispatch rotation state, a single record. The cursor reads as 0
	// before the first dispatch.
	GetDispatchCursor(ctx context.Context) (int, error)
	PutDispatchCursor(ctx context.Context, cursor int) error

	// Lifecycle
	Close() error
}

// MemoryKey builds the conversation key: the identity alone, or scoped to a
// normalized project name.
func MemoryKey(identity, project string) string {
	id := strings.ToLower(strings.TrimSpace(identity))
	p := strings.ToLower(strings.TrimSpace(project))
	if p == "" {
		return id
	}
	return id + "::project::" + p
}
