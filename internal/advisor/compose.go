package advisor

import (
	"fmt"
	"strings"

	"github.com/williamfrack18-alt/anmar-engine/internal/extract"
	"github.com/williamfrack18-alt/anmar-engine/internal/memory"
	"github.com/williamfrack18-alt/anmar-engine/internal/turn"
)

const (
	greetingReply = "Hello! Tell me your idea and I will turn it into an engineering-ready technical brief."

	confirmedReply = "Perfect. Order confirmed. Execution is now live with our engineering network."

	// handoffPrompt is the exact readiness sentence; clients and tests key on it.
	handoffPrompt = "We are ready. The technical blueprint is prepared. Shall I hand it to our engineering network?"
)

// exampleByDomain seeds a concrete V1 scope suggestion per detected domain.
var exampleByDomain = map[string]string{
	extract.DomainMarketplace: "V1 example: onboarding, matching and payments.",
	extract.DomainEcommerce:   "V1 example: catalog, checkout and order tracking.",
	extract.DomainPetShop:     "V1 example: catalog, bookings and reminders.",
	extract.DomainSaaS:        "V1 example: dashboard, roles and key metrics.",
	extract.DomainGeneral:     "V1 example: login, main flow and an admin panel.",
}

// fixedReply handles the turns that never consult the model: greetings and a
// confirmed build order. The second return reports whether the reply is final.
func fixedReply(a turn.Analysis, input string) (string, bool) {
	if extract.IsGreeting(input) {
		return greetingReply, true
	}
	if a.ReadyToBuild {
		return confirmedReply, true
	}
	return "", false
}

// Compose renders the deterministic reply for one analyzed turn, keyed on the
// decided action. It is the fallback when generation is disabled or fails.
func Compose(a turn.Analysis, input string) string {
	if text, done := fixedReply(a, input); done {
		return text
	}

	summary := strings.TrimSpace(a.Memory.Summary)
	if summary == "" {
		summary = "Idea still taking shape."
	}
	missing := missingText(a)

	switch turn.NextAction(a, input) {
	case turn.ActionRecover:
		return "## What I Heard\nFair point. Dropping the questionnaire, switching to execution.\n\n" +
			"## Polished Proposal (MVP)\n" +
			fmt.Sprintf("- Product: %s\n", summary) +
			"- Focus: version 1 with the main flow, operations and one key metric.\n" +
			"- Assumption: standard paid plan to ship sooner.\n\n" +
			"## Internal Blueprint\n" +
			"- Ticket drafted for engineering with scope, priority and deliverables.\n\n" +
			"## Next Step\n" +
			"If that works, reply `send to engineering` and I dispatch it."

	case turn.ActionHandoffConfirmed:
		return "## What I Heard\nPerfect, decision made.\n\n" +
			"## Polished Proposal (MVP)\n" +
			"- Brief complete and consistent for kickoff.\n" +
			"- Main risk contained: no scope growth in V1.\n\n" +
			"## Internal Blueprint\n" +
			"- Technical package prepared with vision, stack and critical requirements.\n\n" +
			"## Next Step\n" +
			"Execution is now live with our engineering network."

	case turn.ActionHandoffReady:
		return "## What I Heard\nYour project is mature enough to execute.\n\n" +
			"## Polished Proposal (MVP)\n" +
			fmt.Sprintf("- Summary: %s\n", summary) +
			"- User, revenue model, timeline and core features are all defined.\n\n" +
			"## Internal Blueprint\n" +
			"- Handoff prepared for the internal engineering team.\n\n" +
			"## Next Step\n" +
			handoffPrompt

	case turn.ActionRefine:
		return "## What I Heard\nGood progress: there is a real base to execute on.\n\n" +
			"## Polished Proposal (MVP)\n" +
			fmt.Sprintf("- Current summary: %s\n", summary) +
			fmt.Sprintf("- Pending adjustments: %s\n", missing) +
			"- Tradeoff applied: controlled scope to launch earlier.\n\n" +
			"## Internal Blueprint\n" +
			fmt.Sprintf("- Initial backlog: main flow, operations panel and metrics. %s\n", domainExample(a)) +
			"- Stack suggested by domain and delivery speed.\n\n" +
			"## Next Step\n" +
			"If you agree with this direction, reply `send to engineering`."
	}

	blocker := a.NextQuestion
	if blocker == "" {
		blocker = "Confirm in one sentence the main outcome you want."
	}
	return "## What I Heard\nI have your general direction.\n\n" +
		"## Polished Proposal (MVP)\n" +
		fmt.Sprintf("- Current context: %s\n", summary) +
		fmt.Sprintf("- Still weak: %s\n", missing) +
		fmt.Sprintf("- Recommendation applied: %s\n", turn.StrategyTip(a.Memory, a.MissingFields)) +
		"\n## Internal Blueprint\n" +
		fmt.Sprintf("- I can proceed on assumptions and leave a usable internal ticket today. %s\n", domainExample(a)) +
		"\n## Next Step\n" +
		blocker
}

func domainExample(a turn.Analysis) string {
	if hint, ok := exampleByDomain[a.Memory.Domain]; ok {
		return hint
	}
	return exampleByDomain[extract.DomainGeneral]
}

func contextLine(a turn.Analysis) string {
	var known []string
	if a.Memory.Audience != "" {
		known = append(known, "audience: "+a.Memory.Audience)
	}
	if a.Memory.BusinessModel != "" {
		known = append(known, "revenue: "+a.Memory.BusinessModel)
	}
	if a.Memory.Timeline != "" {
		known = append(known, "timeline: "+a.Memory.Timeline)
	}
	if len(known) == 0 {
		return "no firm data yet"
	}
	return strings.Join(known, " | ")
}

func missingText(a turn.Analysis) string {
	if len(a.MissingFields) == 0 {
		return "none"
	}
	labels := make([]string, len(a.MissingFields))
	for i, f := range a.MissingFields {
		labels[i] = memory.FieldLabel(f)
	}
	return strings.Join(labels, ", ")
}
