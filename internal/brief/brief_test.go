package brief

import (
	"strings"
	"testing"

	"github.com/williamfrack18-alt/anmar-engine/internal/extract"
	"github.com/williamfrack18-alt/anmar-engine/internal/memory"
	"github.com/williamfrack18-alt/anmar-engine/pkg/models"
)

func history(contents ...string) []models.Message {
	msgs := make([]models.Message, 0, len(contents))
	for _, c := range contents {
		msgs = append(msgs, models.Message{Role: "user", Content: c})
	}
	return msgs
}

func TestFromHistorySkipsGreetings(t *testing.T) {
	t.Parallel()
	d := FromHistory(history("hola", "I want a pet grooming booking app for busy pet owners"))
	if d.Summary != "I want a pet grooming booking app for busy pet owners" {
		t.Fatalf("summary = %q", d.Summary)
	}
	if d.Domain != extract.DomainPetShop {
		t.Fatalf("domain = %q", d.Domain)
	}
	if d.Audience == "" {
		t.Fatal("audience not detected from owners marker")
	}
}

func TestFromHistoryPrefersSubstantialSummary(t *testing.T) {
	t.Parallel()
	d := FromHistory(history("2 weeks", "a subscription service for office plant care with weekly visits"))
	if !strings.Contains(d.Summary, "office plant care") {
		t.Fatalf("summary picked short followup: %q", d.Summary)
	}
	if d.BusinessModel != extract.ModelSubscription {
		t.Fatalf("business model = %q", d.BusinessModel)
	}
}

func TestFromHistoryRequirementFeatures(t *testing.T) {
	t.Parallel()
	d := FromHistory(history(
		"the app must send appointment reminders",
		"it should have a booking calendar",
	))
	if len(d.Features) != 2 {
		t.Fatalf("features = %v", d.Features)
	}
}

func TestHighlightsDedupeAndOrder(t *testing.T) {
	t.Parallel()
	h := history(
		"hola",
		"first real message about the product",
		"first real message about the product",
		"second message with more detail",
	)
	got := Highlights(h, 5)
	if len(got) != 2 {
		t.Fatalf("highlights = %v", got)
	}
	if got[0] != "first real message about the product" {
		t.Fatalf("order lost: %v", got)
	}
}

func TestBuildAssumptionsAndPadding(t *testing.T) {
	t.Parallel()
	mem := memory.New()
	mem.Summary = "a booking app for groomers"
	b := Build(Digest{Domain: extract.DomainPetShop}, nil, mem)
	if b.Vision != "a booking app for groomers" {
		t.Fatalf("vision = %q", b.Vision)
	}
	if b.TargetAudience != toBeConfirmed || b.BusinessModel != toBeConfirmed || b.Timeline != toBeConfirmed {
		t.Fatalf("advisory defaults missing: %+v", b)
	}
	if len(b.MustHaveFeatures) < 3 {
		t.Fatalf("thin feature list not padded: %v", b.MustHaveFeatures)
	}
}

func TestBuildMemoryWinsOverDigest(t *testing.T) {
	t.Parallel()
	mem := memory.New()
	mem.Audience = "busy pet owners"
	mem.AddFeatures([]string{"booking calendar", "reminders"})
	d := Digest{Audience: "everyone", Features: []string{"booking calendar", "payments feature"}}
	b := Build(d, nil, mem)
	if b.TargetAudience != "busy pet owners" {
		t.Fatalf("audience = %q", b.TargetAudience)
	}
	want := []string{"booking calendar", "reminders", "payments feature"}
	if len(b.MustHaveFeatures) != 3 {
		t.Fatalf("features = %v, want %v", b.MustHaveFeatures, want)
	}
	for i, f := range want {
		if b.MustHaveFeatures[i] != f {
			t.Fatalf("features = %v, want %v", b.MustHaveFeatures, want)
		}
	}
}

func TestSlugify(t *testing.T) {
	t.Parallel()
	cases := map[string]string{
		"Pet Grooming App!": "pet_grooming_app",
		"  Ya--Existe  ":    "ya_existe",
	}
	for in, want := range cases {
		if got := Slugify(in); got != want {
			t.Fatalf("Slugify(%q) = %q, want %q", in, got, want)
		}
	}
	if got := Slugify("!!!"); !strings.HasPrefix(got, "project_") {
		t.Fatalf("empty slug fallback = %q", got)
	}
}

func TestBlueprintSections(t *testing.T) {
	t.Parallel()
	b := models.EngineerBrief{
		Vision:           "a booking app",
		TargetAudience:   "pet owners",
		BusinessModel:    extract.ModelSubscription,
		Timeline:         "2 weeks",
		MustHaveFeatures: []string{"booking calendar"},
	}
	md := Blueprint(b, []string{"React", "Go"})
	for _, section := range []string{"# Technical Blueprint", "## 4. Core Features", "- booking calendar", "React, Go", "2 weeks"} {
		if !strings.Contains(md, section) {
			t.Fatalf("blueprint missing %q:\n%s", section, md)
		}
	}
}

func TestScore(t *testing.T) {
	t.Parallel()
	if got := Score(nil); got != 100 {
		t.Fatalf("score = %d", got)
	}
	if got := Score([]string{memory.FieldSummary}); got != 50 {
		t.Fatalf("score = %d", got)
	}
	if got := Score([]string{memory.FieldSummary, memory.FieldFeatures}); got != 0 {
		t.Fatalf("score = %d", got)
	}
}
