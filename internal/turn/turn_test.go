package turn

import (
	"testing"

	"github.com/williamfrack18-alt/anmar-engine/internal/extract"
	"github.com/williamfrack18-alt/anmar-engine/internal/memory"
	"github.com/williamfrack18-alt/anmar-engine/pkg/models"
)

func userMsg(c string) models.Message { return models.Message{Role: "user", Content: c} }

func TestAnalyzeFirstTurnDiscovery(t *testing.T) {
	t.Parallel()
	mem := memory.New()
	a := Analyze(mem, nil, "I want a pet grooming booking app for busy pet owners")

	if mem.Summary == "" {
		t.Fatal("summary not captured")
	}
	if mem.Domain != extract.DomainPetShop {
		t.Fatalf("domain = %q", mem.Domain)
	}
	if a.ReadyByData {
		t.Fatal("ready with no features")
	}
	if a.Phase != PhaseDiscovery {
		t.Fatalf("phase = %q", a.Phase)
	}
	if a.NextQuestion == "" {
		t.Fatal("no next question while fields missing")
	}
	if mem.LastQuestionKey != memory.FieldFeatures {
		t.Fatalf("last question key = %q", mem.LastQuestionKey)
	}
}

func TestAnalyzeAntiRepetition(t *testing.T) {
	t.Parallel()
	mem := memory.New()
	history := []models.Message{userMsg("I want a pet grooming booking app for busy pet owners")}
	Analyze(mem, nil, history[0].Content)

	// A terse reply answers the last question even without the field's
	// characteristic keywords.
	mem.RecordAsked(memory.FieldTimeline)
	Analyze(mem, history, "2 weeks")
	if mem.Timeline != "2 weeks" {
		t.Fatalf("timeline not inferred from short reply: %q", mem.Timeline)
	}

	mem.RecordAsked(memory.FieldTimeline)
	mem.Timeline = ""
	Analyze(mem, history, "before the trade show")
	if mem.Timeline != "before the trade show" {
		t.Fatalf("keyword-free reply not mapped to last question: %q", mem.Timeline)
	}
}

func TestAnalyzeEndToEndGrooming(t *testing.T) {
	t.Parallel()
	mem := memory.New()
	var history []models.Message

	step := func(input string) Analysis {
		a := Analyze(mem, history, input)
		history = append(history, userMsg(input))
		return a
	}

	step("I want a pet grooming booking app for busy pet owners")
	step("features: booking calendar, reminders, payment")
	if len(mem.Features) != 3 {
		t.Fatalf("features = %v", mem.Features)
	}
	a := step("charging a flat fee per visit, MVP in 2 weeks")
	if mem.BusinessModel != extract.ModelUsageBased {
		t.Fatalf("business model = %q", mem.BusinessModel)
	}
	if mem.Timeline == "" {
		t.Fatal("timeline not captured")
	}
	if !a.ReadyByData {
		t.Fatalf("not ready by data: missing=%v pending=%v", a.MissingFields, mem.Pending)
	}
	if a.ReadyToBuild {
		t.Fatal("ready to build without explicit confirmation")
	}
	if got := NextAction(a, "charging a flat fee per visit, MVP in 2 weeks"); got != ActionHandoffReady {
		t.Fatalf("action = %q", got)
	}

	a = step("ok, go ahead and build it")
	if !a.ReadyToBuild {
		t.Fatalf("explicit confirmation not honored: %+v", a)
	}
	if got := NextAction(a, "ok, go ahead and build it"); got != ActionHandoffConfirmed {
		t.Fatalf("action = %q", got)
	}
	if a.Phase != PhaseHandoff {
		t.Fatalf("phase = %q", a.Phase)
	}
}

func TestAnalyzeSummaryStability(t *testing.T) {
	t.Parallel()
	mem := memory.New()
	first := "I want a pet grooming booking app for busy pet owners"
	Analyze(mem, nil, first)
	summary := mem.Summary

	// A second pass marks the summary trusted; later product-sounding
	// messages no longer replace it.
	Analyze(mem, []models.Message{userMsg(first)}, "the app must send reminders")
	if mem.Confidence[memory.FieldSummary] != memory.ConfidenceHigh {
		t.Fatalf("summary confidence = %q", mem.Confidence[memory.FieldSummary])
	}
	Analyze(mem, []models.Message{userMsg(first)}, "an app with many extra modules for everything")
	if mem.Summary != summary {
		t.Fatalf("trusted summary replaced: %q", mem.Summary)
	}
}

func TestNextActionPriorityOrder(t *testing.T) {
	t.Parallel()
	a := Analysis{ReadyToBuild: true, ReadyByData: true}
	if got := NextAction(a, "ya te dije, this is repetitive"); got != ActionRecover {
		t.Fatalf("frustration not first: %q", got)
	}
	if got := NextAction(Analysis{ReadyByData: true}, "anything"); got != ActionHandoffReady {
		t.Fatalf("action = %q", got)
	}
	if got := NextAction(Analysis{MissingFields: []string{memory.FieldSummary}}, "x"); got != ActionRefine {
		t.Fatalf("action = %q", got)
	}
	three := []string{memory.FieldSummary, memory.FieldFeatures, memory.FieldTimeline}
	if got := NextAction(Analysis{MissingFields: three}, "x"); got != ActionDiscovery {
		t.Fatalf("action = %q", got)
	}
}

func TestInferPhase(t *testing.T) {
	t.Parallel()
	mem := memory.New()
	if got := inferPhase(mem); got != PhaseDiscovery {
		t.Fatalf("phase = %q", got)
	}
	mem.Summary = "an app"
	mem.Audience = "pet owners"
	mem.BusinessModel = extract.ModelSubscription
	if got := inferPhase(mem); got != PhaseRefinement {
		t.Fatalf("phase = %q", got)
	}
	mem.Timeline = "2 weeks"
	mem.AddFeatures([]string{"booking calendar"})
	if got := inferPhase(mem); got != PhaseHandoff {
		t.Fatalf("phase = %q", got)
	}
}

func TestTrimHistoryAfterReset(t *testing.T) {
	t.Parallel()
	h := []models.Message{
		userMsg("I want an app for dog walkers"),
		userMsg("let's start over from scratch"),
		userMsg("a new marketplace idea"),
	}
	got := TrimHistoryAfterReset(h)
	if len(got) != 1 || got[0].Content != "a new marketplace idea" {
		t.Fatalf("trim = %v", got)
	}
	if got := TrimHistoryAfterReset(h[:1]); len(got) != 1 {
		t.Fatalf("no-reset trim = %v", got)
	}
}

func TestStrategyTip(t *testing.T) {
	t.Parallel()
	mem := memory.New()
	tip := StrategyTip(mem, []string{memory.FieldSummary, memory.FieldFeatures})
	if tip == "" {
		t.Fatal("no tip")
	}
	mem.Audience = "pet owners"
	mem.BusinessModel = extract.ModelSubscription
	mem.Timeline = "2 weeks"
	mem.Domain = extract.DomainMarketplace
	if tip := StrategyTip(mem, nil); tip == "" {
		t.Fatal("no domain tip")
	}
}
