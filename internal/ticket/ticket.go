// Package ticket implements the work-item lifecycle: canonical statuses and
// their legacy spellings, priority and SLA policy, the append-only event
// trail, and the queue ordering contract consumers rely on.
package ticket

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/williamfrack18-alt/anmar-engine/pkg/models"
)

// ErrUnknownStatus rejects transitions to statuses outside the canonical set
// and its known legacy spellings.
var ErrUnknownStatus = errors.New("unknown ticket status")

// statusAliases maps raw status spellings, legacy ones included, onto the
// canonical set.
var statusAliases = map[string]string{
	models.StatusPending:    models.StatusPending,
	"pending_assignment":    models.StatusPending,
	"new":                   models.StatusPending,
	models.StatusAccepted:   models.StatusAccepted,
	"assigned":              models.StatusAccepted,
	models.StatusDeveloping: models.StatusDeveloping,
	"in_progress":           models.StatusDeveloping,
	models.StatusBlocked:    models.StatusBlocked,
	models.StatusCompleted:  models.StatusCompleted,
	"delivered":             models.StatusCompleted,
}

// progressByStatus is the coarse client-facing progress percentage.
var progressByStatus = map[string]int{
	models.StatusPending:    15,
	models.StatusAccepted:   25,
	models.StatusDeveloping: 60,
	models.StatusBlocked:    45,
	models.StatusCompleted:  100,
}

// slaWindows by priority, fixed at creation.
var slaWindows = map[string]time.Duration{
	models.PriorityHigh:   24 * time.Hour,
	models.PriorityMedium: 48 * time.Hour,
	models.PriorityLow:    72 * time.Hour,
}

// CanonicalStatus resolves a raw spelling to its canonical status. ok is
// false when the spelling is not recognized at all.
func CanonicalStatus(raw string) (status string, ok bool) {
	s, ok := statusAliases[strings.ToLower(strings.TrimSpace(raw))]
	if !ok {
		return models.StatusPending, false
	}
	return s, true
}

// NormalizeStatus maps any raw spelling onto the canonical set, defaulting
// unrecognized values to pending. Used when reading stored tickets; writes
// go through CanonicalStatus and reject the unknown.
func NormalizeStatus(raw string) string {
	s, _ := CanonicalStatus(raw)
	return s
}

// Progress returns the display progress for a canonical status.
func Progress(status string) int {
	return progressByStatus[NormalizeStatus(status)]
}

// NormalizePriority folds any input onto high/medium/low, defaulting medium.
func NormalizePriority(raw string) string {
	p := strings.ToLower(strings.TrimSpace(raw))
	if _, ok := slaWindows[p]; !ok {
		return models.PriorityMedium
	}
	return p
}

// SLAWindow returns the delivery window for a priority.
func SLAWindow(priority string) time.Duration {
	return slaWindows[NormalizePriority(priority)]
}

// SLADueAt computes the due time for a ticket created at t. Called once at
// creation; the result is never recomputed on later transitions.
func SLADueAt(priority string, t time.Time) time.Time {
	return t.Add(SLAWindow(priority))
}

// PriorityRank orders priorities for queue display: high first.
func PriorityRank(priority string) int {
	switch NormalizePriority(priority) {
	case models.PriorityHigh:
		return 0
	case models.PriorityMedium:
		return 1
	default:
		return 2
	}
}

var urgentTerms = []string{"urgente", "urgent", "asap", "hoy", "today", "48h", "24h", "inversionista", "investor", "demo"}
var lowTerms = []string{"idea inicial", "initial idea", "research", "investigar", "explorar", "explore", "simple prototype", "prototipo simple"}

// InferPriority derives a priority from the raw brief text: urgency
// vocabulary wins, exploratory vocabulary lowers, default medium.
func InferPriority(text string) string {
	t := strings.ToLower(text)
	for _, term := range urgentTerms {
		if strings.Contains(t, term) {
			return models.PriorityHigh
		}
	}
	for _, term := range lowTerms {
		if strings.Contains(t, term) {
			return models.PriorityLow
		}
	}
	return models.PriorityMedium
}

// Overdue reports whether the ticket has passed its SLA window. Completed
// tickets are never overdue; breach at completion is recorded separately.
func Overdue(t *models.Ticket, now time.Time) bool {
	if t.Status == models.StatusCompleted || t.SLADueAt.IsZero() {
		return false
	}
	return now.After(t.SLADueAt)
}

// StatusMessage is the client-facing one-liner for a status.
func StatusMessage(status, engineer string) string {
	switch NormalizeStatus(status) {
	case models.StatusPending:
		return "Waiting for an engineer to pick up the order."
	case models.StatusAccepted:
		if engineer != "" {
			return fmt.Sprintf("%s accepted the project. Preparing the development environment.", engineer)
		}
		return "An engineer accepted the project. Preparing the development environment."
	case models.StatusDeveloping:
		if engineer != "" {
			return fmt.Sprintf("%s is building the MVP.", engineer)
		}
		return "The team is building the MVP."
	case models.StatusBlocked:
		return "Order temporarily blocked. Waiting on internal resolution."
	case models.StatusCompleted:
		return "Project completed and deployed."
	}
	return "Status updated: " + status
}

// NormalizePreviewURL resolves a delivery URL: absolute and rooted paths
// pass through, bare html files are rooted under the project, anything else
// falls back to the project index page.
func NormalizePreviewURL(raw, projectID string) string {
	v := strings.TrimSpace(raw)
	switch {
	case v == "":
		return ""
	case strings.HasPrefix(v, "http://"), strings.HasPrefix(v, "https://"), strings.HasPrefix(v, "/"):
		return v
	case strings.HasSuffix(v, ".html"):
		return fmt.Sprintf("/projects/%s/%s", projectID, v)
	}
	return fmt.Sprintf("/projects/%s/index.html", projectID)
}

// SortQueue orders tickets for display: pending first, then priority rank,
// then overdue before on-time, then oldest update first. The sort is stable;
// callers must have refreshed SLAOverdue against the same clock.
func SortQueue(items []models.Ticket) {
	sort.SliceStable(items, func(i, j int) bool {
		a, b := &items[i], &items[j]
		ap, bp := boolRank(a.Status == models.StatusPending), boolRank(b.Status == models.StatusPending)
		if ap != bp {
			return ap < bp
		}
		if ar, br := PriorityRank(a.Priority), PriorityRank(b.Priority); ar != br {
			return ar < br
		}
		if ao, bo := boolRank(a.SLAOverdue), boolRank(b.SLAOverdue); ao != bo {
			return ao < bo
		}
		return a.UpdatedAt.Before(b.UpdatedAt)
	})
}

// boolRank sorts true before false.
func boolRank(v bool) int {
	if v {
		return 0
	}
	return 1
}
