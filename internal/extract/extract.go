// Package extract implements the deterministic fact extractor: pure functions
// mapping a raw utterance to candidate structured fields (audience, business
// model, timeline, features, domain). Classification is table-driven: each
// category is an ordered list of marker sets evaluated uniformly, so rules can
// be added and unit-tested independently. Every function returns the empty
// value when no marker matches; callers rely on emptiness to mean "no new
// information". The marker tables carry both English and Spanish vocabulary.
package extract

import (
	"strings"
)

// maxFeatures caps how many features a single utterance can contribute.
const maxFeatures = 4

// Business model labels. An utterance maps to at most one of these.
const (
	ModelSubscription = "Subscription"
	ModelCommission   = "Commission"
	ModelOneTime      = "One-time payment"
	ModelUsageBased   = "Usage-based"
	ModelFreemium     = "Freemium"
)

// Domain categories, most specific first; the first matching family wins.
const (
	DomainPetShop     = "pet_shop"
	DomainMarketplace = "marketplace"
	DomainEcommerce   = "ecommerce"
	DomainSaaS        = "saas"
	DomainGeneral     = "general"
)

// rule is one (label, marker-set) pair. Single-word markers match any token
// by prefix ("veterin" matches "veterinary"); markers containing a space are
// matched as substrings of the normalized text.
type rule struct {
	label   string
	markers []string
}

var audienceMarkers = []string{
	"user", "usuario", "customer", "client", "audience", "audiencia",
	"target", "persona", "business", "negocios", "empresas", "companies",
	"owner", "dueños", "duenos",
	// Concise segmentation answers common in discovery.
	"home", "hogar", "office", "oficina", "industrial", "residential",
	"residencial", "corporate", "corporativo", "pyme", "smb", "b2b", "b2c",
	"latam", "latino", "new york", "miami", "bogota", "madrid",
}

// paymentNegations guard against classifying "without needing to pay" as a model.
var paymentNegations = []string{
	"without needing to pay", "without paying", "no need to pay",
	"sin necesidad de pagar", "sin pagar",
}

var businessModelRules = []rule{
	{ModelSubscription, []string{"suscri", "subscription", "monthly plan"}},
	{ModelCommission, []string{"comision", "commission"}},
	{ModelOneTime, []string{"one-time", "one time payment", "pago unico", "lifetime deal"}},
	{ModelUsageBased, []string{
		"fee", "fijo", "cobran", "cobrar", "charging", "charge",
		"per visit", "per use", "per event", "por uso", "por evento",
		"pay per", "usage-based", "pay-as-you-go",
	}},
	{ModelFreemium, []string{"freemium", "gratis", "free"}},
}

// paidMarker catches colloquial statements like "los clientes pagan" /
// "customers pay for each report" that carry no other monetization keyword.
var paidMarkers = []string{"pagan", "they pay", "users pay", "customers pay"}

var timelineMarkers = []string{
	"week", "semana", "month", "mes", "meses",
	"24h", "48h", "today", "hoy", "deadline", "fecha",
}

var featureRules = []rule{
	{"dashboard", []string{"dashboard", "panel"}},
	{"real-time map", []string{"map", "mapa", "tiempo real", "real-time map", "live tracking"}},
	{"alerts", []string{"alert", "alerta", "notification", "notificacion"}},
	{"reports", []string{"report", "reporte", "analytics", "metric", "metrica"}},
	{"auth and roles", []string{"login", "role", "rol", "permission", "permisos", "auth"}},
	{"catalog", []string{"catalog", "catalogo"}},
	{"checkout", []string{"checkout", "stripe", "pasarela", "payment gateway"}},
}

// scopeMarkers indicate the utterance enumerates V1 scope; combined with a
// colon the remainder is parsed as an explicit feature list.
var scopeMarkers = []string{"feature", "features", "funciones", "funcionalidades", "v1", "mvp"}

var domainRules = []rule{
	{DomainPetShop, []string{"pet", "mascota", "veterin", "grooming", "perro", "gato", "puppy"}},
	{DomainMarketplace, []string{"marketplace", "market place", "uber", "freelanc"}},
	{DomainEcommerce, []string{"ecommerce", "e-commerce", "online store", "tienda", "shop", "carrito", "cart", "catalog"}},
	{DomainSaaS, []string{"saas", "suscri", "subscription"}},
}

var greetings = map[string]bool{
	"hola": true, "holi": true, "hello": true, "hi": true, "hey": true,
	"buenas": true, "buenos dias": true, "buen dia": true,
	"buenas tardes": true, "buenas noches": true,
	"good morning": true, "good afternoon": true,
}

var acknowledgments = map[string]bool{
	"ok": true, "okay": true, "dale": true, "si": true, "yes": true,
	"sure": true, "listo": true, "perfect": true,
}

var readyMarkers = []string{
	"build", "execute", "ready", "listo", "enviar", "manda",
	"procede", "proceed", "arranca", "construye", "go ahead", "ship it",
}

var resetMarkers = []string{
	"start over", "from scratch", "reset",
	"empecemos de cero", "empezar de cero", "empezamos de cero", "desde cero",
	"reinicia", "reiniciar", "borrar contexto", "borra contexto",
	"olvida todo", "nuevo proyecto",
}

var frustrationMarkers = []string{
	"no entiendes", "ya te dije", "repetitivo", "otra vez", "de nuevo",
	"no funciona", "cansa",
	"you don't understand", "i already told", "already said", "repetitive",
	"not working", "again and again", "useless",
}

// Audience returns the text verbatim when it contains an audience or
// segmentation marker, else "".
func Audience(text string) string {
	t := strings.TrimSpace(text)
	if t == "" {
		return ""
	}
	if matchAny(t, audienceMarkers) {
		return t
	}
	return ""
}

// BusinessModel classifies monetization vocabulary into one of the fixed
// model labels. Utterances that negate payment return "".
func BusinessModel(text string) string {
	t := strings.TrimSpace(text)
	if t == "" {
		return ""
	}
	norm := Normalize(t)
	for _, neg := range paymentNegations {
		if strings.Contains(norm, Normalize(neg)) {
			return ""
		}
	}
	for _, r := range businessModelRules[:4] {
		if matchAny(t, r.markers) {
			return r.label
		}
	}
	if matchAny(t, paidMarkers) {
		return ModelUsageBased
	}
	if matchAny(t, businessModelRules[4].markers) {
		return ModelFreemium
	}
	return ""
}

// Timeline returns the text verbatim when it contains duration or deadline
// vocabulary, else "".
func Timeline(text string) string {
	t := strings.TrimSpace(text)
	if t == "" {
		return ""
	}
	if matchAny(t, timelineMarkers) {
		return t
	}
	return ""
}

// Features extracts candidate feature names: taxonomy matches first, then an
// explicit list when the utterance has a scope indicator and a colon
// ("features: booking calendar, reminders, payment"). Output is deduplicated
// by normalized text and capped at maxFeatures.
func Features(text string) []string {
	t := strings.TrimSpace(text)
	if t == "" {
		return nil
	}
	var out []string
	for _, r := range featureRules {
		if matchAny(t, r.markers) {
			out = append(out, r.label)
		}
	}
	if matchAny(t, scopeMarkers) {
		if i := strings.Index(t, ":"); i >= 0 {
			out = append(out, parseFeatureList(t[i+1:])...)
		}
	}
	return dedupeFeatures(out)
}

func parseFeatureList(raw string) []string {
	var items []string
	for _, chunk := range strings.FieldsFunc(raw, func(r rune) bool {
		return r == ',' || r == ';' || r == '\n'
	}) {
		for _, part := range splitConjunctions(chunk) {
			f := strings.Trim(part, " .-")
			if len(f) < 6 {
				continue
			}
			if matchAny(f, scopeMarkers) && len(strings.Fields(f)) == 1 {
				continue
			}
			if len(f) > 80 {
				f = f[:80]
			}
			items = append(items, f)
		}
	}
	return items
}

func splitConjunctions(chunk string) []string {
	parts := []string{chunk}
	for _, sep := range []string{" and ", " y "} {
		var next []string
		for _, p := range parts {
			next = append(next, strings.Split(p, sep)...)
		}
		parts = next
	}
	return parts
}

func dedupeFeatures(items []string) []string {
	var out []string
	seen := make(map[string]bool)
	for _, it := range items {
		key := Normalize(it)
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, it)
		if len(out) == maxFeatures {
			break
		}
	}
	return out
}

// Domain classifies the cumulative conversation text into a product domain.
// Families are evaluated in order; the first match wins, default general.
func Domain(text string) string {
	for _, r := range domainRules {
		if matchAny(text, r.markers) {
			return r.label
		}
	}
	return DomainGeneral
}

// IsGreeting reports whether the text is a pure greeting.
func IsGreeting(text string) bool {
	return greetings[Normalize(text)]
}

// IsAcknowledgment reports whether the text is a bare "ok"-style reply that
// should not be treated as an answer to the previous question.
func IsAcknowledgment(text string) bool {
	return acknowledgments[Normalize(text)]
}

// IsShortFollowup reports whether the text is a short fragment like
// "2 weeks" or "yes" rather than a full product description.
func IsShortFollowup(text string) bool {
	t := strings.TrimSpace(text)
	if t == "" {
		return true
	}
	return len(strings.Fields(t)) <= 4 && len(t) < 30
}

// HasReadyIntent reports whether the text carries an explicit build/ship
// affirmation.
func HasReadyIntent(text string) bool {
	return matchAny(text, readyMarkers)
}

// HasResetIntent reports whether the text asks to start the consultation over.
func HasResetIntent(text string) bool {
	norm := Normalize(text)
	for _, m := range resetMarkers {
		if strings.Contains(norm, Normalize(m)) {
			return true
		}
	}
	return false
}

// IsFrustrated reports whether the text contains user-frustration markers.
func IsFrustrated(text string) bool {
	norm := Normalize(text)
	for _, m := range frustrationMarkers {
		if strings.Contains(norm, Normalize(m)) {
			return true
		}
	}
	return false
}

// Normalize lowercases, folds common diacritics, and strips everything but
// letters, digits, and spaces. Used for dedup keys and near-equality checks.
func Normalize(text string) string {
	var b strings.Builder
	b.Grow(len(text))
	lastSpace := false
	for _, r := range strings.ToLower(text) {
		if folded, ok := diacritics[r]; ok {
			r = folded
		}
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastSpace = false
		case r == ' ' || r == '\t' || r == '\n':
			if !lastSpace && b.Len() > 0 {
				b.WriteByte(' ')
				lastSpace = true
			}
		}
	}
	return strings.TrimSpace(b.String())
}

var diacritics = map[rune]rune{
	'á': 'a', 'é': 'e', 'í': 'i', 'ó': 'o', 'ú': 'u', 'ñ': 'n', 'ü': 'u',
}

// MostlySame reports whether two values are close enough phrasings to be the
// same fact: after normalization, equal or one contains the other. Used to
// avoid flagging fake contradictions.
func MostlySame(a, b string) bool {
	na, nb := Normalize(a), Normalize(b)
	if na == "" || nb == "" {
		return false
	}
	return na == nb || strings.Contains(na, nb) || strings.Contains(nb, na)
}

// matchAny applies the marker matching convention: markers with a space are
// substring matches on the normalized text; single-word markers match any
// token by prefix.
func matchAny(text string, markers []string) bool {
	norm := Normalize(text)
	var tokens []string
	for _, m := range markers {
		if strings.ContainsRune(m, ' ') {
			if strings.Contains(norm, Normalize(m)) {
				return true
			}
			continue
		}
		if tokens == nil {
			tokens = strings.Fields(norm)
		}
		nm := Normalize(m)
		for _, tok := range tokens {
			if strings.HasPrefix(tok, nm) {
				return true
			}
		}
	}
	return false
}
