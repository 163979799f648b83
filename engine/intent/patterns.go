package intent

import (
	"regexp"
	"strings"

	"github.com/arunmenon/text2sql/engine/core"
)

// patternFamily groups the keyword patterns that signal one intent.
type patternFamily struct {
	intent   core.IntentType
	patterns []*regexp.Regexp
}

func compileFamily(intent core.IntentType, exprs ...string) patternFamily {
	patterns := make([]*regexp.Regexp, len(exprs))
	for i, expr := range exprs {
		patterns[i] = regexp.MustCompile(`(?i)\b` + expr + `\b`)
	}
	return patternFamily{intent: intent, patterns: patterns}
}

var families = []patternFamily{
	compileFamily(core.IntentSelection,
		"show", "list", "find", "display", "get", "which", "who", "select", "give me"),
	compileFamily(core.IntentAggregation,
		"total", "sum", "count", "average", "avg", "maximum", "minimum", "how many", "number of"),
	compileFamily(core.IntentComparison,
		"compare", "versus", "vs", "difference", "more than", "less than", "higher", "lower", "between"),
	compileFamily(core.IntentTrend,
		"trend", "over time", "monthly", "weekly", "yearly", "growth", "by month", "by year", "change"),
}

// patternResult is the outcome of keyword-family analysis.
type patternResult struct {
	Intent     core.IntentType
	Confidence float64
	Matches    int
	Total      int
}

// analyzePatterns picks the keyword family with the most matches.
// Confidence is 0.5 + 0.2*match_share + 0.3*min(matches/3, 1).
func analyzePatterns(query string) patternResult {
	best := patternResult{Intent: core.IntentSelection}
	total := 0
	for _, family := range families {
		matches := 0
		for _, pattern := range family.patterns {
			matches += len(pattern.FindAllStringIndex(query, -1))
		}
		total += matches
		if matches > best.Matches {
			best.Intent = family.intent
			best.Matches = matches
		}
	}
	best.Total = total
	if best.Matches == 0 {
		best.Confidence = 0.5
		return best
	}
	share := float64(best.Matches) / float64(total)
	density := float64(best.Matches) / 3
	if density > 1 {
		density = 1
	}
	best.Confidence = 0.5 + 0.2*share + 0.3*density
	return best
}

var multiIntentVerbs = regexp.MustCompile(`(?i)\b(show|list|find|display|compare|count|sum|average|get)\b`)

// looksMultiIntent is the cheap gate before the generation-service
// multi-intent check: conjunctions, several verb phrases, or length.
func looksMultiIntent(query string) bool {
	lowered := strings.ToLower(query)
	if strings.Contains(lowered, " and also ") || strings.Contains(lowered, "; ") {
		return true
	}
	conjunctions := strings.Count(lowered, " and ") + strings.Count(lowered, " as well as ")
	verbs := len(multiIntentVerbs.FindAllString(query, -1))
	if conjunctions >= 1 && verbs >= 2 {
		return true
	}
	return len(strings.Fields(query)) > 20
}
