package ticket

import (
	"testing"
	"time"

	"github.com/williamfrack18-alt/anmar-engine/pkg/models"
)

func TestCanonicalStatus(t *testing.T) {
	t.Parallel()
	cases := []struct {
		in     string
		want   string
		wantOK bool
	}{
		{"pending", models.StatusPending, true},
		{"pending_assignment", models.StatusPending, true},
		{"new", models.StatusPending, true},
		{"Assigned", models.StatusAccepted, true},
		{"in_progress", models.StatusDeveloping, true},
		{"delivered", models.StatusCompleted, true},
		{"blocked", models.StatusBlocked, true},
		{"on_fire", models.StatusPending, false},
		{"", models.StatusPending, false},
	}
	for _, tc := range cases {
		got, ok := CanonicalStatus(tc.in)
		if got != tc.want || ok != tc.wantOK {
			t.Fatalf("CanonicalStatus(%q) = %q,%v want %q,%v", tc.in, got, ok, tc.want, tc.wantOK)
		}
	}
}

func TestProgressPerStatus(t *testing.T) {
	t.Parallel()
	want := map[string]int{
		models.StatusPending:    15,
		models.StatusAccepted:   25,
		models.StatusDeveloping: 60,
		models.StatusBlocked:    45,
		models.StatusCompleted:  100,
	}
	for status, pct := range want {
		if got := Progress(status); got != pct {
			t.Fatalf("Progress(%s) = %d, want %d", status, got, pct)
		}
	}
}

func TestSLADueAtDeterminism(t *testing.T) {
	t.Parallel()
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	cases := map[string]time.Duration{
		models.PriorityHigh:   24 * time.Hour,
		models.PriorityMedium: 48 * time.Hour,
		models.PriorityLow:    72 * time.Hour,
		"nonsense":            48 * time.Hour,
	}
	for priority, window := range cases {
		if got := SLADueAt(priority, at); !got.Equal(at.Add(window)) {
			t.Fatalf("SLADueAt(%s) = %v", priority, got)
		}
	}
}

func TestInferPriority(t *testing.T) {
	t.Parallel()
	if got := InferPriority("need a demo for an investor ASAP"); got != models.PriorityHigh {
		t.Fatalf("urgent = %q", got)
	}
	if got := InferPriority("just research, a simple prototype to explore"); got != models.PriorityLow {
		t.Fatalf("low = %q", got)
	}
	if got := InferPriority("a booking app"); got != models.PriorityMedium {
		t.Fatalf("default = %q", got)
	}
}

func TestOverdue(t *testing.T) {
	t.Parallel()
	now := time.Now()
	tk := &models.Ticket{Status: models.StatusDeveloping, SLADueAt: now.Add(-time.Hour)}
	if !Overdue(tk, now) {
		t.Fatal("past due not overdue")
	}
	tk.Status = models.StatusCompleted
	if Overdue(tk, now) {
		t.Fatal("completed ticket overdue")
	}
	tk.Status = models.StatusPending
	tk.SLADueAt = now.Add(time.Hour)
	if Overdue(tk, now) {
		t.Fatal("future due overdue")
	}
}

func TestNormalizePreviewURL(t *testing.T) {
	t.Parallel()
	cases := map[string]string{
		"https://demo.example.com": "https://demo.example.com",
		"/projects/p1/index.html":  "/projects/p1/index.html",
		"landing.html":             "/projects/p1/landing.html",
		"something weird":          "/projects/p1/index.html",
		"  ":                       "",
	}
	for in, want := range cases {
		if got := NormalizePreviewURL(in, "p1"); got != want {
			t.Fatalf("NormalizePreviewURL(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestSortQueueContract(t *testing.T) {
	t.Parallel()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	items := []models.Ticket{
		{ID: "accepted-low", Status: models.StatusAccepted, Priority: models.PriorityLow, UpdatedAt: base},
		{ID: "pending-high", Status: models.StatusPending, Priority: models.PriorityHigh, UpdatedAt: base.Add(time.Hour)},
		{ID: "pending-high-overdue", Status: models.StatusPending, Priority: models.PriorityHigh, SLAOverdue: true, UpdatedAt: base.Add(2 * time.Hour)},
		{ID: "pending-low", Status: models.StatusPending, Priority: models.PriorityLow, UpdatedAt: base},
		{ID: "developing-high", Status: models.StatusDeveloping, Priority: models.PriorityHigh, UpdatedAt: base},
	}
	SortQueue(items)
	want := []string{"pending-high-overdue", "pending-high", "pending-low", "developing-high", "accepted-low"}
	for i, id := range want {
		if items[i].ID != id {
			t.Fatalf("order[%d] = %s, want %s (full: %v)", i, items[i].ID, id, queueIDs(items))
		}
	}
}

func queueIDs(items []models.Ticket) []string {
	out := make([]string, len(items))
	for i := range items {
		out[i] = items[i].ID
	}
	return out
}
