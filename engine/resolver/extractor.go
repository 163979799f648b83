package resolver

import (
	"regexp"
	"strings"

	"github.com/arunmenon/text2sql/engine/core"
)

// Extractor proposes candidate mentions from raw query text without
// resolving them.
type Extractor interface {
	Name() string
	Extract(text string) []core.Candidate
}

// ExtractCandidates unions the candidates of all extractors, deduplicated
// by text. The returned confidence scores the extraction step itself:
// min(0.6 + 0.1 x extractors_that_fired, 0.9).
func ExtractCandidates(extractors []Extractor, text string) ([]core.Candidate, float64) {
	var candidates []core.Candidate
	seen := make(map[string]bool)
	fired := 0
	for _, extractor := range extractors {
		found := extractor.Extract(text)
		if len(found) > 0 {
			fired++
		}
		for _, c := range found {
			key := strings.ToLower(strings.TrimSpace(c.Text))
			if key == "" || seen[key] {
				continue
			}
			seen[key] = true
			candidates = append(candidates, c)
		}
	}
	confidence := 0.6 + 0.1*float64(fired)
	if confidence > 0.9 {
		confidence = 0.9
	}
	return candidates, confidence
}

// queryVerbs are sentence starters that look like capitalized mentions
// but never name schema entities.
var queryVerbs = map[string]bool{
	"show": true, "list": true, "find": true, "get": true, "give": true,
	"display": true, "what": true, "which": true, "who": true, "how": true,
	"count": true, "compare": true, "tell": true, "select": true,
}

// -----------------------------------------------------------------------------
// Capitalization extractor
// -----------------------------------------------------------------------------

var capitalizedSpan = regexp.MustCompile(`\b[A-Z][A-Za-z0-9_]*(?:\s+[A-Z][A-Za-z0-9_]*)*\b`)

// CapitalizationExtractor proposes capitalized spans as entity mentions.
type CapitalizationExtractor struct{}

func (CapitalizationExtractor) Name() string { return "capitalization" }

func (e CapitalizationExtractor) Extract(text string) []core.Candidate {
	var out []core.Candidate
	for _, span := range capitalizedSpan.FindAllString(text, -1) {
		words := strings.Fields(span)
		// Drop leading query verbs picked up from sentence starts.
		for len(words) > 0 && queryVerbs[strings.ToLower(words[0])] {
			words = words[1:]
		}
		if len(words) == 0 {
			continue
		}
		out = append(out, core.Candidate{Text: strings.Join(words, " "), Source: e.Name()})
	}
	return out
}

// -----------------------------------------------------------------------------
// Keyword extractor
// -----------------------------------------------------------------------------

var keywordFollow = regexp.MustCompile(`(?i)\b(?:show|find|list|get|display|about|count)\s+(?:me\s+)?(?:all\s+|the\s+|every\s+)?([A-Za-z_][\w]*(?:\s+[A-Za-z_][\w]*)?)`)

// trailingNoise are words that end a keyword-following span early.
var trailingNoise = map[string]bool{
	"with": true, "where": true, "that": true, "from": true, "in": true,
	"by": true, "for": true, "and": true, "or": true, "of": true,
	"per": true, "over": true, "during": true, "last": true,
}

// KeywordExtractor proposes the span following query verbs such as
// "show", "find", and "list".
type KeywordExtractor struct{}

func (KeywordExtractor) Name() string { return "keyword" }

func (e KeywordExtractor) Extract(text string) []core.Candidate {
	var out []core.Candidate
	for _, match := range keywordFollow.FindAllStringSubmatch(text, -1) {
		words := strings.Fields(match[1])
		for len(words) > 0 && trailingNoise[strings.ToLower(words[len(words)-1])] {
			words = words[:len(words)-1]
		}
		if len(words) == 0 {
			continue
		}
		out = append(out, core.Candidate{Text: strings.Join(words, " "), Source: e.Name()})
	}
	return out
}

// -----------------------------------------------------------------------------
// Noun-phrase extractor
// -----------------------------------------------------------------------------

var nounPhrase = regexp.MustCompile(`(?i)\b(?:total|average|top|recent|new|active|monthly|annual|pending|completed|highest|lowest)\s+([A-Za-z_][\w]*)`)

// NounPhraseExtractor proposes the noun of adjective+noun phrases such as
// "total sales" or "active customers".
type NounPhraseExtractor struct{}

func (NounPhraseExtractor) Name() string { return "noun_phrase" }

func (e NounPhraseExtractor) Extract(text string) []core.Candidate {
	var out []core.Candidate
	for _, match := range nounPhrase.FindAllStringSubmatch(text, -1) {
		out = append(out, core.Candidate{Text: match[1], Source: e.Name()})
	}
	return out
}

// DefaultExtractors returns the built-in extractors in registration order.
func DefaultExtractors() []Extractor {
	return []Extractor{
		CapitalizationExtractor{},
		KeywordExtractor{},
		NounPhraseExtractor{},
	}
}
