// Package brief turns a consultation transcript and its reconciled memory
// into the artifacts the engineering side consumes: a transcript digest, the
// engineer brief with stated assumptions, a deterministic blueprint document,
// and the brief completeness score.
package brief

import (
	"fmt"
	"strings"
	"time"

	"github.com/williamfrack18-alt/anmar-engine/internal/extract"
	"github.com/williamfrack18-alt/anmar-engine/internal/memory"
	"github.com/williamfrack18-alt/anmar-engine/pkg/models"
)

const (
	toBeConfirmed = "To be confirmed with client"
	maxHighlights = 6
)

// Digest is the field view of a transcript: the first substantial user
// message seeds the summary, the earliest marker match wins each scalar
// field, and requirement-sounding messages become feature candidates.
type Digest struct {
	RawText         string
	ProjectNameSeed string
	Summary         string
	Audience        string
	BusinessModel   string
	Timeline        string
	Features        []string
	Domain          string
}

// requirementMarkers flag messages that state an obligation; those messages
// are carried into the digest as feature candidates.
var requirementMarkers = []string{
	"must", "should",
	"debe", "necesita", "quiero", "tiene que",
}

// FromHistory digests the user side of a transcript.
func FromHistory(history []models.Message) Digest {
	var raw, meaningful []string
	for _, m := range history {
		c := strings.TrimSpace(m.Content)
		if m.Role != "user" || c == "" {
			continue
		}
		raw = append(raw, c)
		if !extract.IsGreeting(c) {
			meaningful = append(meaningful, c)
		}
	}
	msgs := meaningful
	if len(msgs) == 0 {
		msgs = raw
	}

	d := Digest{RawText: strings.Join(msgs, "\n")}
	d.Domain = extract.Domain(d.RawText)

	var first, last string
	if len(msgs) > 0 {
		first, last = msgs[0], msgs[len(msgs)-1]
	}
	if first != "" {
		seed := strings.SplitN(first, ".", 2)[0]
		if len(seed) > 60 {
			seed = seed[:60]
		}
		d.ProjectNameSeed = seed
	} else {
		d.ProjectNameSeed = "New Project"
	}

	for _, msg := range msgs {
		// Explicit scope lists contribute their parsed items; otherwise a
		// requirement-sounding message is carried whole as a candidate.
		if fs := extract.Features(msg); len(fs) > 0 {
			d.Features = append(d.Features, fs...)
		} else if containsAny(strings.ToLower(msg), requirementMarkers...) {
			f := msg
			if len(f) > 180 {
				f = f[:180]
			}
			d.Features = append(d.Features, f)
		}
		if d.Audience == "" {
			d.Audience = extract.Audience(msg)
		}
		if d.BusinessModel == "" {
			d.BusinessModel = extract.BusinessModel(msg)
		}
		if d.Timeline == "" {
			d.Timeline = extract.Timeline(msg)
		}
	}
	if len(d.Features) > 6 {
		d.Features = d.Features[:6]
	}

	// Summary prefers the first substantial description over terse followups.
	summary := first
	if extract.IsShortFollowup(summary) && len(msgs) > 1 {
		for _, msg := range msgs {
			if !extract.IsShortFollowup(msg) {
				summary = msg
				break
			}
		}
	}
	if summary == "" {
		summary = last
	}
	d.Summary = summary
	return d
}

// Highlights returns the most recent distinct substantial user messages,
// oldest first, each clipped to 180 chars.
func Highlights(history []models.Message, max int) []string {
	if max <= 0 {
		max = maxHighlights
	}
	var cleaned []string
	for _, m := range history {
		c := strings.TrimSpace(m.Content)
		if m.Role != "user" || c == "" || extract.IsGreeting(c) || len(c) < 8 {
			continue
		}
		cleaned = append(cleaned, c)
	}
	seen := make(map[string]bool, len(cleaned))
	var out []string
	for i := len(cleaned) - 1; i >= 0 && len(out) < max; i-- {
		key := extract.Normalize(cleaned[i])
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		h := cleaned[i]
		if len(h) > 180 {
			h = h[:180]
		}
		out = append(out, h)
	}
	// Restore chronological order.
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out
}

// TechStack infers a pragmatic default stack from the project description.
func TechStack(text string) []string {
	t := strings.ToLower(text)
	var stack []string
	if containsAny(t, "mobile", "ios", "android", "react native", "flutter") {
		stack = append(stack, "React Native", "Expo")
	} else {
		stack = append(stack, "React", "TypeScript")
	}
	if containsAny(t, "marketplace", "payment", "pagos", "stripe", "subscription", "suscripcion", "saas", "api") {
		stack = append(stack, "Go", "PostgreSQL", "Stripe")
	} else {
		stack = append(stack, "Go", "SQLite")
	}
	if containsAny(t, "real-time", "tiempo real", "chat", "websocket") {
		stack = append(stack, "WebSockets")
	}
	return stack
}

func containsAny(text string, markers ...string) bool {
	for _, m := range markers {
		if strings.Contains(text, m) {
			return true
		}
	}
	return false
}

// Slugify reduces a project name seed to a stable snake_case identifier.
func Slugify(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	var b strings.Builder
	lastUnderscore := true
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastUnderscore = false
		default:
			if !lastUnderscore {
				b.WriteByte('_')
				lastUnderscore = true
			}
		}
	}
	slug := strings.Trim(b.String(), "_")
	if slug == "" {
		return fmt.Sprintf("project_%s", time.Now().Format("150405"))
	}
	return slug
}

// Build assembles the engineer brief. Memory values win over the transcript
// digest; absent advisory fields become explicit assumptions rather than
// blockers, and thin feature lists are padded with operational defaults.
func Build(d Digest, history []models.Message, mem *memory.Memory) models.EngineerBrief {
	if mem == nil {
		mem = memory.New()
	}
	b := models.EngineerBrief{
		Vision:         firstNonEmpty(mem.Summary, d.Summary, "Project under definition"),
		TargetAudience: firstNonEmpty(mem.Audience, d.Audience, toBeConfirmed),
		BusinessModel:  firstNonEmpty(mem.BusinessModel, d.BusinessModel, toBeConfirmed),
		Timeline:       firstNonEmpty(mem.Timeline, d.Timeline, toBeConfirmed),
		Domain:         d.Domain,
	}

	var features []string
	seen := make(map[string]bool)
	add := func(items []string) {
		for _, f := range items {
			f = strings.TrimSpace(f)
			key := extract.Normalize(f)
			if key == "" || seen[key] {
				continue
			}
			seen[key] = true
			features = append(features, f)
		}
	}
	add(mem.Features)
	add(d.Features)
	if len(features) < 2 {
		add([]string{"Main user flow", "Operations panel", "Basic metrics"})
		if len(features) > 3 {
			features = features[:3]
		}
	}
	if len(features) > 6 {
		features = features[:6]
	}
	b.MustHaveFeatures = features
	b.ClientHighlights = Highlights(history, maxHighlights)
	return b
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

// Blueprint renders the deterministic technical blueprint document.
func Blueprint(b models.EngineerBrief, stack []string) string {
	features := "- Main user flow\n- Admin panel\n- Initial conversion metrics"
	if len(b.MustHaveFeatures) > 0 {
		lines := make([]string, len(b.MustHaveFeatures))
		for i, f := range b.MustHaveFeatures {
			lines[i] = "- " + f
		}
		features = strings.Join(lines, "\n")
	}
	timeline := b.Timeline
	if timeline == "" || timeline == toBeConfirmed {
		timeline = "Recommended MVP window: 2-4 weeks."
	}
	return fmt.Sprintf(`# Technical Blueprint

## 1. Product Summary
%s

## 2. Target Audience
%s

## 3. Business Model
%s

## 4. Core Features
%s

## 5. Recommended Tech Stack
%s

## 6. Delivery Plan
%s

## 7. Operational Handoff
- The ticket enters the internal dispatch queue.
- An engineer accepts the order and moves it to `+"`accepted`"+`.
- Progress is reported under `+"`developing`"+`.
- Delivery closes the ticket as `+"`completed`"+` with a preview URL.
`, b.Vision, b.TargetAudience, b.BusinessModel, features, strings.Join(stack, ", "), timeline)
}

// Score is the brief completeness percentage. Only blocking fields count:
// an execution-first flow ships with stated assumptions for the rest.
func Score(missingFields []string) int {
	blocking := []string{memory.FieldSummary, memory.FieldFeatures}
	missing := make(map[string]bool, len(missingFields))
	for _, f := range missingFields {
		missing[f] = true
	}
	complete := 0
	for _, f := range blocking {
		if !missing[f] {
			complete++
		}
	}
	return complete * 100 / len(blocking)
}
