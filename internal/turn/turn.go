// Package turn orchestrates one consultation turn: it runs the fact
// extractor over the latest utterance, merges the results into conversation
// memory, and derives phase, readiness, and the next action. The output is
// fully deterministic; the generative reply layer only decorates it.
package turn

import (
	"strings"

	"github.com/williamfrack18-alt/anmar-engine/internal/brief"
	"github.com/williamfrack18-alt/anmar-engine/internal/extract"
	"github.com/williamfrack18-alt/anmar-engine/internal/memory"
	"github.com/williamfrack18-alt/anmar-engine/pkg/models"
)

// Conversation phases, in order of progression.
const (
	PhaseDiscovery  = "discovery"
	PhaseRefinement = "refinement"
	PhaseHandoff    = "handoff"
)

// Actions, the only signal the reply generator needs.
const (
	ActionRecover          = "recover"
	ActionHandoffConfirmed = "handoff_confirmed"
	ActionHandoffReady     = "handoff_ready"
	ActionRefine           = "refine_with_tradeoffs"
	ActionDiscovery        = "discovery"
)

// Analysis is the derived view of one turn. It is never persisted; only the
// memory it was computed from is.
type Analysis struct {
	Memory        *memory.Memory
	Digest        brief.Digest
	MissingFields []string
	ReadyByData   bool
	ReadyToBuild  bool
	ExplicitReady bool
	Phase         string
	NextQuestion  string
	BriefScore    int
}

// summaryVocab marks utterances that plausibly restate the product itself;
// only those may refresh an already captured summary.
var summaryVocab = []string{
	"app", "aplic", "software", "platform", "plataforma",
	"marketplace", "saas", "crear", "create", "build",
}

// Analyze merges one utterance into memory and derives the turn analysis.
// history holds the prior transcript, without the current input. The memory
// is mutated in place; callers persist it after the turn.
func Analyze(mem *memory.Memory, history []models.Message, input string) Analysis {
	input = strings.TrimSpace(input)
	full := make([]models.Message, 0, len(history)+1)
	full = append(full, history...)
	if input != "" {
		full = append(full, models.Message{Role: "user", Content: input})
	}
	d := brief.FromHistory(full)
	mem.Domain = d.Domain

	// Summary is sticky once captured: refresh only when the new message
	// clearly restates the product and the stored one is not yet trusted.
	canRefresh := input != "" &&
		!extract.IsGreeting(input) &&
		!extract.HasReadyIntent(input) &&
		len(input) > 18 &&
		matchesSummaryVocab(input)
	candidate := mem.Summary
	conf := memory.ConfidenceHigh
	if mem.Summary == "" {
		candidate = d.Summary
		conf = memory.ConfidenceMedium
	} else if canRefresh && mem.Confidence[memory.FieldSummary] != memory.ConfidenceHigh {
		candidate = input
	}
	mem.MergeField(memory.FieldSummary, candidate, conf)
	mem.MergeField(memory.FieldAudience, d.Audience, memory.ConfidenceHigh)
	mem.MergeField(memory.FieldBusinessModel, d.BusinessModel, memory.ConfidenceHigh)
	mem.MergeField(memory.FieldTimeline, d.Timeline, memory.ConfidenceHigh)

	// Short replies answer whatever we asked last.
	inferredField, inferredValues := mem.InferContextualAnswer(input)
	var inferredFeatures []string
	switch inferredField {
	case memory.FieldFeatures:
		inferredFeatures = inferredValues
	case "":
	default:
		mem.MergeField(inferredField, inferredValues[0], memory.ConfidenceMedium)
	}

	mem.AddFeatures(d.Features)
	mem.AddFeatures(extract.Features(input))
	mem.AddFeatures(inferredFeatures)
	mem.CompactPending()

	missing := mem.MissingFields()
	explicitReady := extract.HasReadyIntent(input)
	readyByData := len(missing) == 0 && len(mem.Pending) == 0
	readyToBuild := explicitReady && readyByData

	nextQuestion := ""
	if !readyByData {
		nextQuestion = mem.ChooseNextQuestion()
	}

	a := Analysis{
		Memory:        mem,
		Digest:        d,
		MissingFields: missing,
		ReadyByData:   readyByData,
		ReadyToBuild:  readyToBuild,
		ExplicitReady: explicitReady,
		Phase:         inferPhase(mem),
		NextQuestion:  nextQuestion,
		BriefScore:    brief.Score(missing),
	}

	if len(missing) > 0 {
		mem.RecordAsked(missing[0])
	} else {
		mem.RecordAsked("")
	}
	return a
}

func matchesSummaryVocab(input string) bool {
	lower := strings.ToLower(input)
	for _, v := range summaryVocab {
		if strings.Contains(lower, v) {
			return true
		}
	}
	return false
}

// inferPhase is a pure function of memory state.
func inferPhase(mem *memory.Memory) string {
	if mem.Summary == "" || mem.Audience == "" || mem.BusinessModel == "" {
		return PhaseDiscovery
	}
	if mem.Timeline == "" || len(mem.Features) == 0 {
		return PhaseRefinement
	}
	return PhaseHandoff
}

// TrimHistoryAfterReset drops everything up to and including the last user
// message carrying reset intent, so a restarted conversation digests only
// what came after.
func TrimHistoryAfterReset(history []models.Message) []models.Message {
	last := -1
	for i, m := range history {
		if m.Role == "user" && extract.HasResetIntent(m.Content) {
			last = i
		}
	}
	if last == -1 {
		return history
	}
	return history[last+1:]
}

// NextAction maps an analysis to the action tag, first match wins.
func NextAction(a Analysis, input string) string {
	switch {
	case extract.IsFrustrated(input):
		return ActionRecover
	case a.ReadyToBuild:
		return ActionHandoffConfirmed
	case a.ReadyByData:
		return ActionHandoffReady
	case len(a.MissingFields) <= 2:
		return ActionRefine
	default:
		return ActionDiscovery
	}
}

// StrategyTip returns a short domain-aware nudge appended to deterministic
// replies: the most valuable missing advisory field first, then a
// domain-specific next move once the core data exists.
func StrategyTip(mem *memory.Memory, missing []string) string {
	has := func(f string) bool {
		for _, m := range missing {
			if m == f {
				return true
			}
		}
		return false
	}
	switch {
	case mem.Audience == "":
		return "Tip: pick a narrow initial niche; targeting everyone lowers conversion."
	case mem.BusinessModel == "":
		return "Tip: validate one simple monetization model in V1."
	case mem.Timeline == "":
		return "Tip: set a concrete date; without a deadline the MVP drags."
	case has(memory.FieldFeatures):
		return "Tip: V1 with 2-3 critical features, no more."
	}
	switch mem.Domain {
	case extract.DomainMarketplace:
		return "Tip: in a marketplace, prioritize liquidity on the harder side (supply or demand)."
	case extract.DomainEcommerce:
		return "Tip: optimize checkout first; it usually moves more revenue than redesigning the catalog."
	case extract.DomainPetShop:
		return "Tip: combine recurring revenue (subscriptions) with one-off sales to improve LTV."
	case extract.DomainSaaS:
		return "Tip: define a north-star metric (activation or retention) before scaling features."
	}
	return "Tip: validate one primary use case before widening scope."
}
