// Package memory owns the per-conversation structured memory and its
// reconciliation rules: how a newly extracted fact merges with stored state,
// how contradictions are queued and resolved, and which question to ask next
// without repeating ourselves.
package memory

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/williamfrack18-alt/anmar-engine/internal/extract"
	"github.com/williamfrack18-alt/anmar-engine/pkg/models"
)

// Confidence levels attached to each scalar field.
const (
	ConfidenceLow    = "low"
	ConfidenceMedium = "medium"
	ConfidenceHigh   = "high"
)

const (
	maxPending   = 3
	maxAskedKeys = 10
	maxFeatures  = 6
)

// Scalar field names. Features are a list and merge through AddFeatures.
const (
	FieldSummary       = "summary"
	FieldAudience      = "audience"
	FieldBusinessModel = "business_model"
	FieldTimeline      = "timeline"
	FieldFeatures      = "features"
)

// blockingFields are the only fields that gate handoff. Audience, business
// model, and timeline are advisory and degrade to stated assumptions.
var blockingFields = []string{FieldSummary, FieldFeatures}

// Clarification records one detected contradiction awaiting confirmation.
type Clarification struct {
	Field  string `json:"field"`
	Old    string `json:"old"`
	New    string `json:"new"`
	Reason string `json:"reason"`
}

// Memory is the durable slot-filling state for one conversation. It is
// persisted as JSON; a malformed payload decodes to empty defaults rather
// than failing the turn.
type Memory struct {
	Summary       string            `json:"summary"`
	Audience      string            `json:"audience"`
	BusinessModel string            `json:"business_model"`
	Timeline      string            `json:"timeline"`
	Features      []string          `json:"features"`
	Domain        string            `json:"domain"`
	Confidence    map[string]string `json:"confidence"`

	Pending           []Clarification `json:"pending_clarifications"`
	LastQuestionKey   string          `json:"last_question_key"`
	AskedQuestionKeys []string        `json:"asked_question_keys"`
}

// New returns an empty memory with default confidence levels.
func New() *Memory {
	m := &Memory{Domain: extract.DomainGeneral}
	m.normalize()
	return m
}

// Decode restores a memory from its persisted JSON form. Malformed or empty
// payloads yield a fresh default memory.
func Decode(data []byte) *Memory {
	if len(data) == 0 {
		return New()
	}
	var m Memory
	if err := json.Unmarshal(data, &m); err != nil {
		return New()
	}
	m.normalize()
	return &m
}

// Encode serializes the memory for persistence.
func (m *Memory) Encode() ([]byte, error) {
	return json.Marshal(m)
}

// normalize fills defaults so decoded legacy payloads behave like fresh ones.
func (m *Memory) normalize() {
	if m.Confidence == nil {
		m.Confidence = make(map[string]string, 4)
	}
	for _, f := range []string{FieldSummary, FieldAudience, FieldBusinessModel, FieldTimeline} {
		if m.Confidence[f] == "" {
			m.Confidence[f] = ConfidenceLow
		}
	}
	if m.Domain == "" {
		m.Domain = extract.DomainGeneral
	}
	if len(m.Pending) > maxPending {
		m.Pending = m.Pending[len(m.Pending)-maxPending:]
	}
	if len(m.AskedQuestionKeys) > maxAskedKeys {
		m.AskedQuestionKeys = m.AskedQuestionKeys[len(m.AskedQuestionKeys)-maxAskedKeys:]
	}
}

// Reset restores empty defaults. Used when the user explicitly starts over.
func (m *Memory) Reset() {
	*m = *New()
}

func (m *Memory) field(name string) string {
	switch name {
	case FieldSummary:
		return m.Summary
	case FieldAudience:
		return m.Audience
	case FieldBusinessModel:
		return m.BusinessModel
	case FieldTimeline:
		return m.Timeline
	}
	return ""
}

func (m *Memory) setField(name, value string) {
	switch name {
	case FieldSummary:
		m.Summary = value
	case FieldAudience:
		m.Audience = value
	case FieldBusinessModel:
		m.BusinessModel = value
	case FieldTimeline:
		m.Timeline = value
	}
}

// MergeField reconciles a newly extracted value with the stored one.
// Summary is refinable prose: it never flags a contradiction and is replaced
// only by an at-least-as-long phrasing. Discrete fields keep the stored value
// on near-equality (confidence bump only); a genuine contradiction queues a
// clarification, takes the latest statement, and downgrades confidence.
func (m *Memory) MergeField(name, value, confidence string) {
	value = trim(value)
	if value == "" {
		return
	}
	old := trim(m.field(name))
	if old == "" {
		m.setField(name, value)
		m.Confidence[name] = confidence
		return
	}
	if name == FieldSummary {
		if len(value) >= len(old) {
			m.Summary = value
		}
		m.Confidence[name] = confidence
		return
	}
	if extract.MostlySame(old, value) {
		m.Confidence[name] = confidence
		return
	}

	// Contradiction: keep one open clarification per field, favor the
	// latest user statement, and mark it untrusted.
	kept := m.Pending[:0]
	for _, c := range m.Pending {
		if c.Field != name {
			kept = append(kept, c)
		}
	}
	kept = append(kept, Clarification{
		Field:  name,
		Old:    old,
		New:    value,
		Reason: fmt.Sprintf("change detected in %s", name),
	})
	if len(kept) > maxPending {
		kept = kept[len(kept)-maxPending:]
	}
	m.Pending = kept
	m.setField(name, value)
	m.Confidence[name] = ConfidenceLow
}

// AddFeatures appends features, deduplicating by normalized text, capped.
func (m *Memory) AddFeatures(items []string) {
	if len(items) == 0 {
		return
	}
	seen := make(map[string]bool, len(m.Features)+len(items))
	for _, f := range m.Features {
		seen[extract.Normalize(f)] = true
	}
	for _, f := range items {
		f = trim(f)
		key := extract.Normalize(f)
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		m.Features = append(m.Features, f)
		if len(m.Features) >= maxFeatures {
			break
		}
	}
}

// CompactPending drops clarifications whose proposed value now matches the
// stored value: a later consistent turn resolved them.
func (m *Memory) CompactPending() {
	kept := m.Pending[:0]
	for _, c := range m.Pending {
		cur := m.field(c.Field)
		if cur != "" && extract.MostlySame(cur, c.New) {
			continue
		}
		kept = append(kept, c)
	}
	if len(kept) > maxPending {
		kept = kept[len(kept)-maxPending:]
	}
	m.Pending = kept
}

// InferContextualAnswer maps a short reply to the field we last asked about,
// so "2 weeks" after a timeline question lands as the timeline even without
// timeline keywords. Greetings and bare acknowledgments are ignored. The
// returned field is "" when nothing can be inferred.
func (m *Memory) InferContextualAnswer(input string) (field string, values []string) {
	text := trim(input)
	if text == "" || len(text) > 90 {
		return "", nil
	}
	if extract.IsGreeting(text) || extract.IsAcknowledgment(text) {
		return "", nil
	}
	switch m.LastQuestionKey {
	case FieldAudience:
		return FieldAudience, []string{text}
	case FieldBusinessModel:
		if bm := extract.BusinessModel(text); bm != "" {
			return FieldBusinessModel, []string{bm}
		}
		return FieldBusinessModel, []string{text}
	case FieldTimeline:
		if tl := extract.Timeline(text); tl != "" {
			return FieldTimeline, []string{tl}
		}
		return FieldTimeline, []string{text}
	case FieldFeatures:
		if fs := extract.Features(text); len(fs) > 0 {
			return FieldFeatures, fs
		}
		return FieldFeatures, []string{text}
	case FieldSummary:
		return FieldSummary, []string{text}
	}
	return "", nil
}

// MissingFields returns the blocking fields still empty. Only these gate
// handoff readiness.
func (m *Memory) MissingFields() []string {
	var missing []string
	for _, f := range blockingFields {
		switch f {
		case FieldSummary:
			if m.Summary == "" {
				missing = append(missing, f)
			}
		case FieldFeatures:
			if len(m.Features) == 0 {
				missing = append(missing, f)
			}
		}
	}
	return missing
}

// FieldLabel returns the human label used when talking about a field.
func FieldLabel(name string) string {
	switch name {
	case FieldSummary:
		return "value proposition"
	case FieldAudience:
		return "target user"
	case FieldBusinessModel:
		return "revenue model"
	case FieldTimeline:
		return "delivery window"
	case FieldFeatures:
		return "MVP scope"
	}
	return name
}

const genericQuestion = "What key detail is still missing to close the brief?"

// ChooseNextQuestion picks the next prompt: an open clarification first
// (phrased as a confirmation), then the first unasked blocking field with a
// domain-specific variant when one exists, then a generic fallback.
func (m *Memory) ChooseNextQuestion() string {
	if len(m.Pending) > 0 {
		c := m.Pending[len(m.Pending)-1]
		return fmt.Sprintf("I noticed a change in the %s. Should we lock in %q as final?", FieldLabel(c.Field), c.New)
	}

	questions := map[string]string{
		FieldSummary:  "In one sentence, what is the main outcome the product must deliver for its user?",
		FieldFeatures: "Name at least one must-have feature for version 1.",
	}
	switch m.Domain {
	case extract.DomainPetShop:
		questions[FieldFeatures] = "For a pet business, what is the key initial function (for example catalog, bookings, or reminders)?"
	case extract.DomainMarketplace:
		questions[FieldFeatures] = "For a marketplace, which module is mandatory first (matching, listings, or payments)?"
	}

	missing := m.MissingFields()
	if len(missing) == 0 {
		return ""
	}
	asked := make(map[string]bool, len(m.AskedQuestionKeys))
	for _, k := range m.AskedQuestionKeys {
		asked[k] = true
	}
	for _, f := range missing {
		if !asked[f] {
			return questionFor(questions, f)
		}
	}
	return questionFor(questions, missing[0])
}

func questionFor(questions map[string]string, field string) string {
	if q, ok := questions[field]; ok {
		return q
	}
	return genericQuestion
}

// RecordAsked notes which blocking field the chosen question targets; this is
// the anti-repetition state consumed by InferContextualAnswer next turn.
// An empty field clears the marker (nothing left to ask).
func (m *Memory) RecordAsked(field string) {
	m.LastQuestionKey = field
	if field == "" {
		return
	}
	for _, k := range m.AskedQuestionKeys {
		if k == field {
			return
		}
	}
	m.AskedQuestionKeys = append(m.AskedQuestionKeys, field)
	if len(m.AskedQuestionKeys) > maxAskedKeys {
		m.AskedQuestionKeys = m.AskedQuestionKeys[len(m.AskedQuestionKeys)-maxAskedKeys:]
	}
}

// Snapshot returns the API view of the memory.
func (m *Memory) Snapshot() models.MemorySnapshot {
	feats := make([]string, len(m.Features))
	copy(feats, m.Features)
	return models.MemorySnapshot{
		Summary:       m.Summary,
		Audience:      m.Audience,
		BusinessModel: m.BusinessModel,
		Timeline:      m.Timeline,
		Features:      feats,
		Domain:        m.Domain,
	}
}

func trim(s string) string { return strings.TrimSpace(s) }
