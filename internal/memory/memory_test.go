package memory

import (
	"testing"

	"github.com/williamfrack18-alt/anmar-engine/internal/extract"
)

func TestMergeFieldFirstWrite(t *testing.T) {
	t.Parallel()
	m := New()
	m.MergeField(FieldBusinessModel, extract.ModelSubscription, ConfidenceMedium)
	if m.BusinessModel != extract.ModelSubscription {
		t.Fatalf("business model = %q", m.BusinessModel)
	}
	if m.Confidence[FieldBusinessModel] != ConfidenceMedium {
		t.Fatalf("confidence = %q", m.Confidence[FieldBusinessModel])
	}
	if len(m.Pending) != 0 {
		t.Fatalf("unexpected clarifications: %v", m.Pending)
	}
}

func TestMergeFieldIdempotent(t *testing.T) {
	t.Parallel()
	m := New()
	m.MergeField(FieldAudience, "busy pet owners", ConfidenceMedium)
	m.MergeField(FieldAudience, "busy pet owners", ConfidenceHigh)
	m.MergeField(FieldAudience, "busy pet owners", ConfidenceHigh)
	if m.Audience != "busy pet owners" {
		t.Fatalf("audience = %q", m.Audience)
	}
	if m.Confidence[FieldAudience] != ConfidenceHigh {
		t.Fatalf("confidence = %q", m.Confidence[FieldAudience])
	}
	if len(m.Pending) != 0 {
		t.Fatalf("idempotent merge created clarifications: %v", m.Pending)
	}
}

func TestMergeFieldNearEqualKeepsExisting(t *testing.T) {
	t.Parallel()
	m := New()
	m.MergeField(FieldTimeline, "2 weeks", ConfidenceMedium)
	m.MergeField(FieldTimeline, "in 2 weeks please", ConfidenceHigh)
	if m.Timeline != "2 weeks" {
		t.Fatalf("near-equal merge replaced value: %q", m.Timeline)
	}
	if m.Confidence[FieldTimeline] != ConfidenceHigh {
		t.Fatalf("confidence not bumped: %q", m.Confidence[FieldTimeline])
	}
}

func TestMergeFieldContradictionRoundTrip(t *testing.T) {
	t.Parallel()
	m := New()
	m.MergeField(FieldBusinessModel, extract.ModelSubscription, ConfidenceMedium)
	m.MergeField(FieldBusinessModel, extract.ModelCommission, ConfidenceMedium)

	if m.BusinessModel != extract.ModelCommission {
		t.Fatalf("latest statement not favored: %q", m.BusinessModel)
	}
	if m.Confidence[FieldBusinessModel] != ConfidenceLow {
		t.Fatalf("confidence not downgraded: %q", m.Confidence[FieldBusinessModel])
	}
	if len(m.Pending) != 1 || m.Pending[0].Field != FieldBusinessModel {
		t.Fatalf("clarification not queued: %v", m.Pending)
	}
	if m.Pending[0].Old != extract.ModelSubscription || m.Pending[0].New != extract.ModelCommission {
		t.Fatalf("clarification payload wrong: %+v", m.Pending[0])
	}

	// A later turn confirming Commission resolves the clarification.
	m.MergeField(FieldBusinessModel, extract.ModelCommission, ConfidenceHigh)
	m.CompactPending()
	if len(m.Pending) != 0 {
		t.Fatalf("confirmed clarification not compacted: %v", m.Pending)
	}
}

func TestMergeFieldReplacesPendingPerField(t *testing.T) {
	t.Parallel()
	m := New()
	m.MergeField(FieldBusinessModel, extract.ModelSubscription, ConfidenceMedium)
	m.MergeField(FieldBusinessModel, extract.ModelCommission, ConfidenceMedium)
	m.MergeField(FieldBusinessModel, extract.ModelFreemium, ConfidenceMedium)
	if len(m.Pending) != 1 {
		t.Fatalf("expected single clarification for the field, got %v", m.Pending)
	}
	if m.Pending[0].New != extract.ModelFreemium {
		t.Fatalf("clarification not updated: %+v", m.Pending[0])
	}
}

func TestPendingCap(t *testing.T) {
	t.Parallel()
	m := New()
	fields := []string{FieldAudience, FieldBusinessModel, FieldTimeline}
	for _, f := range fields {
		m.MergeField(f, "first value here", ConfidenceMedium)
		m.MergeField(f, "completely different", ConfidenceMedium)
	}
	// One more contradiction on audience still keeps the list at the cap.
	m.MergeField(FieldAudience, "yet another segment", ConfidenceMedium)
	if len(m.Pending) > maxPending {
		t.Fatalf("pending exceeds cap: %d", len(m.Pending))
	}
}

func TestSummaryLengthRefinement(t *testing.T) {
	t.Parallel()
	m := New()
	m.MergeField(FieldSummary, "an app for booking pet grooming appointments", ConfidenceMedium)
	m.MergeField(FieldSummary, "a pet app", ConfidenceMedium)
	if m.Summary != "an app for booking pet grooming appointments" {
		t.Fatalf("shorter summary replaced longer one: %q", m.Summary)
	}
	m.MergeField(FieldSummary, "a mobile app for booking and paying for pet grooming appointments", ConfidenceHigh)
	if m.Summary != "a mobile app for booking and paying for pet grooming appointments" {
		t.Fatalf("longer summary not taken: %q", m.Summary)
	}
	if len(m.Pending) != 0 {
		t.Fatalf("summary merge flagged contradiction: %v", m.Pending)
	}
}

func TestInferContextualAnswer(t *testing.T) {
	t.Parallel()
	m := New()
	m.RecordAsked(FieldTimeline)

	field, values := m.InferContextualAnswer("2 weeks")
	if field != FieldTimeline || len(values) != 1 || values[0] != "2 weeks" {
		t.Fatalf("timeline inference = %q %v", field, values)
	}

	// Greetings and acknowledgments are not answers.
	if f, _ := m.InferContextualAnswer("hola"); f != "" {
		t.Fatalf("greeting inferred as answer: %q", f)
	}
	if f, _ := m.InferContextualAnswer("ok"); f != "" {
		t.Fatalf("acknowledgment inferred as answer: %q", f)
	}

	// Long messages carry their own signal; no contextual mapping.
	long := "I want to completely change direction and build something else entirely different from before, with many modules"
	if f, _ := m.InferContextualAnswer(long); f != "" {
		t.Fatalf("long input inferred as answer: %q", f)
	}

	m.RecordAsked(FieldFeatures)
	field, values = m.InferContextualAnswer("booking calendar")
	if field != FieldFeatures || len(values) != 1 || values[0] != "booking calendar" {
		t.Fatalf("features inference = %q %v", field, values)
	}
}

func TestMissingFieldsBlockingOnly(t *testing.T) {
	t.Parallel()
	m := New()
	got := m.MissingFields()
	if len(got) != 2 || got[0] != FieldSummary || got[1] != FieldFeatures {
		t.Fatalf("missing = %v", got)
	}
	m.Summary = "a scheduling app"
	m.AddFeatures([]string{"booking calendar"})
	if got := m.MissingFields(); len(got) != 0 {
		t.Fatalf("missing after fill = %v", got)
	}
	// Advisory fields never block.
	if m.Audience != "" || m.BusinessModel != "" || m.Timeline != "" {
		t.Fatal("advisory fields unexpectedly set")
	}
}

func TestAddFeaturesDedupeAndCap(t *testing.T) {
	t.Parallel()
	m := New()
	m.AddFeatures([]string{"Booking Calendar", "booking calendar.", "reminders"})
	if len(m.Features) != 2 {
		t.Fatalf("features = %v", m.Features)
	}
	m.AddFeatures([]string{"a", "bb-long-enough", "cc-long-enough", "dd-long-enough", "ee-long-enough", "ff-long-enough", "gg-long-enough"})
	if len(m.Features) > maxFeatures {
		t.Fatalf("features exceed cap: %v", m.Features)
	}
}

func TestChooseNextQuestion(t *testing.T) {
	t.Parallel()
	m := New()
	q := m.ChooseNextQuestion()
	if q == "" {
		t.Fatal("no question for empty memory")
	}
	m.RecordAsked(FieldSummary)
	m.Summary = "a grooming app"
	m.Domain = extract.DomainMarketplace
	q = m.ChooseNextQuestion()
	if q == "" || q == genericQuestion {
		t.Fatalf("expected domain feature question, got %q", q)
	}

	// A pending clarification takes precedence over any field question.
	m.MergeField(FieldBusinessModel, extract.ModelSubscription, ConfidenceMedium)
	m.MergeField(FieldBusinessModel, extract.ModelCommission, ConfidenceMedium)
	q = m.ChooseNextQuestion()
	if q == "" || m.Pending[0].New != extract.ModelCommission {
		t.Fatalf("clarification question missing: %q", q)
	}
}

func TestRecordAsked(t *testing.T) {
	t.Parallel()
	m := New()
	for i := 0; i < 5; i++ {
		m.RecordAsked(FieldSummary)
	}
	m.RecordAsked(FieldFeatures)
	if len(m.AskedQuestionKeys) != 2 {
		t.Fatalf("asked keys = %v", m.AskedQuestionKeys)
	}
	if m.LastQuestionKey != FieldFeatures {
		t.Fatalf("last question key = %q", m.LastQuestionKey)
	}
	m.RecordAsked("")
	if m.LastQuestionKey != "" || len(m.AskedQuestionKeys) != 2 {
		t.Fatalf("clearing last question key failed: %q %v", m.LastQuestionKey, m.AskedQuestionKeys)
	}
}

func TestDecodeMalformedPayload(t *testing.T) {
	t.Parallel()
	m := Decode([]byte("{not json"))
	if m.Summary != "" || m.Domain != extract.DomainGeneral {
		t.Fatalf("malformed payload did not reset: %+v", m)
	}
	if m.Confidence[FieldSummary] != ConfidenceLow {
		t.Fatalf("default confidence missing: %v", m.Confidence)
	}

	// Round trip keeps state.
	m.Summary = "an app"
	m.AddFeatures([]string{"booking calendar"})
	data, err := m.Encode()
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	back := Decode(data)
	if back.Summary != "an app" || len(back.Features) != 1 {
		t.Fatalf("round trip lost state: %+v", back)
	}
}
