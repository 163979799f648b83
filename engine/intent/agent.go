package intent

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/arunmenon/text2sql/engine/core"
	"github.com/arunmenon/text2sql/engine/llm"
	"github.com/arunmenon/text2sql/engine/reasoning"
	"github.com/arunmenon/text2sql/pkg/logger"
)

// StageName identifies this agent's stage in the reasoning trace.
const StageName = "intent_analysis"

// Result is the intent stage's conclusion.
type Result struct {
	Intent                core.IntentType    `json:"intent"`
	Confidence            float64            `json:"confidence"`
	MultiIntent           bool               `json:"multi_intent"`
	SecondaryIntents      []core.IntentType  `json:"secondary_intents,omitempty"`
	Alternatives          []core.Alternative `json:"alternatives,omitempty"`
	RequiresClarification bool               `json:"requires_clarification"`
}

// Config tunes the intent agent.
type Config struct {
	// ClarificationThreshold gates the alternative-intent request.
	ClarificationThreshold float64
	// AmbiguityHigh is the confidence two intents must both exceed for
	// an ambiguous-intent boundary.
	AmbiguityHigh float64
}

// Agent classifies the query's purpose and flags multi-intent queries.
type Agent struct {
	generator llm.Generator
	cfg       Config
}

// NewAgent creates the intent agent.
func NewAgent(generator llm.Generator, cfg Config) *Agent {
	if cfg.ClarificationThreshold <= 0 {
		cfg.ClarificationThreshold = 0.8
	}
	if cfg.AmbiguityHigh <= 0 {
		cfg.AmbiguityHigh = 0.6
	}
	return &Agent{generator: generator, cfg: cfg}
}

type classifyOutput struct {
	Intent     string  `json:"intent"`
	Confidence float64 `json:"confidence"`
	Reasoning  string  `json:"reasoning,omitempty"`
}

type multiIntentOutput struct {
	Intents               []string `json:"intents"`
	Primary               string   `json:"primary"`
	RequiresClarification bool     `json:"requires_clarification"`
	Questions             []string `json:"clarification_questions,omitempty"`
}

type alternativeIntent struct {
	Intent     string  `json:"intent"`
	Confidence float64 `json:"confidence"`
	Reason     string  `json:"reason,omitempty"`
}

type alternativesOutput struct {
	Alternatives []alternativeIntent `json:"alternatives"`
}

// Classify runs pattern analysis, the optional multi-intent check, and
// the generation-service classification, then combines them.
func (a *Agent) Classify(
	ctx context.Context,
	query string,
	stream *reasoning.Stream,
	boundaries *reasoning.BoundaryRegistry,
) (*Result, error) {
	log := logger.FromContext(ctx)
	if err := stream.BeginStage(StageName); err != nil {
		return nil, err
	}

	pattern := analyzePatterns(query)
	_ = stream.AddStep("keyword pattern analysis", pattern.Confidence, map[string]any{
		"intent":        string(pattern.Intent),
		"matches":       pattern.Matches,
		"total_matches": pattern.Total,
	})

	result := &Result{Intent: pattern.Intent, Confidence: pattern.Confidence}
	a.checkMultiIntent(ctx, query, stream, boundaries, result)
	a.classifyWithService(ctx, query, stream, pattern, result)

	if result.Confidence < a.cfg.ClarificationThreshold {
		a.collectAlternatives(ctx, query, stream, result)
	}

	log.Debug("Intent classified",
		"intent", result.Intent,
		"confidence", result.Confidence,
		"multi_intent", result.MultiIntent)
	conclusion := fmt.Sprintf("classified as %s (confidence %.2f)", result.Intent, result.Confidence)
	if err := stream.ConcludeStage(conclusion, result); err != nil {
		return nil, err
	}
	return result, nil
}

// checkMultiIntent runs the generation-service multi-intent probe when
// the cheap heuristic fires. An ambiguous-intent boundary is raised only
// when the service reports several intents and asks for clarification.
func (a *Agent) checkMultiIntent(
	ctx context.Context,
	query string,
	stream *reasoning.Stream,
	boundaries *reasoning.BoundaryRegistry,
	result *Result,
) {
	if !looksMultiIntent(query) {
		return
	}
	_ = stream.AddStep("multi-intent heuristic fired", 0.5, nil)

	var out multiIntentOutput
	prompt := fmt.Sprintf(
		"Analyze this database question for multiple distinct intents.\nQuestion: %s\n"+
			"Report every intent (selection, aggregation, comparison, trend, complex), the primary one, "+
			"and whether the user must clarify before a single SQL query can be written.",
		query)
	if err := a.generator.GenerateStructured(ctx, prompt, &out, "intents", "primary"); err != nil {
		_ = stream.AddStep("multi-intent service check failed", 0, map[string]any{"error": err.Error()})
		return
	}
	if len(out.Intents) < 2 {
		return
	}
	result.MultiIntent = true
	for _, name := range out.Intents {
		it := core.IntentType(strings.ToLower(name))
		if it.Valid() && it != core.IntentType(strings.ToLower(out.Primary)) {
			result.SecondaryIntents = append(result.SecondaryIntents, it)
		}
	}
	_ = stream.AddStep("service reported multiple intents", a.cfg.AmbiguityHigh, map[string]any{
		"intents": out.Intents,
		"primary": out.Primary,
	})
	if out.RequiresClarification {
		result.RequiresClarification = true
		boundaries.Add(reasoning.Boundary{
			Kind:        core.BoundaryAmbiguousIntent,
			Component:   StageName,
			Subject:     query,
			Confidence:  a.cfg.AmbiguityHigh,
			Explanation: fmt.Sprintf("query carries %d distinct intents", len(out.Intents)),
			Suggestions: out.Questions,
		})
	}
}

// classifyWithService asks the generation service for a classification
// and combines it with the pattern result. On agreement the confidence
// is boosted; on disagreement the service wins with a damped blend.
func (a *Agent) classifyWithService(
	ctx context.Context,
	query string,
	stream *reasoning.Stream,
	pattern patternResult,
	result *Result,
) {
	var out classifyOutput
	prompt := fmt.Sprintf(
		"Classify this database question into exactly one intent: "+
			"selection, aggregation, comparison, trend, or complex.\nQuestion: %s",
		query)
	if err := a.generator.GenerateStructured(ctx, prompt, &out, "intent", "confidence"); err != nil {
		_ = stream.AddStep("service classification unavailable, keeping pattern result", pattern.Confidence,
			map[string]any{"error": err.Error()})
		return
	}
	serviceIntent := core.IntentType(strings.ToLower(out.Intent))
	if !serviceIntent.Valid() {
		_ = stream.AddStep("service returned unknown intent, keeping pattern result", pattern.Confidence,
			map[string]any{"intent": out.Intent})
		return
	}
	serviceConfidence := core.ClampConfidence(out.Confidence)

	evidence := map[string]any{
		"service_intent":     string(serviceIntent),
		"service_confidence": serviceConfidence,
		"pattern_intent":     string(pattern.Intent),
	}
	if serviceIntent == pattern.Intent {
		result.Confidence = serviceConfidence + 0.1
		if result.Confidence > 0.98 {
			result.Confidence = 0.98
		}
	} else {
		result.Confidence = 0.9 * (0.7*serviceConfidence + 0.3*pattern.Confidence)
		evidence["disagreement"] = true
	}
	result.Intent = serviceIntent
	_ = stream.AddStep("combined pattern and service classification", result.Confidence, evidence)
}

// collectAlternatives asks for up to three alternative intents for the
// trace when the final confidence is below the clarification threshold.
func (a *Agent) collectAlternatives(ctx context.Context, query string, stream *reasoning.Stream, result *Result) {
	var out alternativesOutput
	prompt := fmt.Sprintf(
		"The question below was classified as %s but with low confidence. "+
			"Propose up to 3 alternative intent classifications with confidence and a short reason.\nQuestion: %s",
		result.Intent, query)
	if err := a.generator.GenerateStructured(ctx, prompt, &out, "alternatives"); err != nil {
		return
	}
	for _, alt := range out.Alternatives {
		it := core.IntentType(strings.ToLower(alt.Intent))
		if !it.Valid() || it == result.Intent {
			continue
		}
		result.Alternatives = append(result.Alternatives, core.Alternative{
			Description: string(it),
			Confidence:  core.ClampConfidence(alt.Confidence),
			Reason:      alt.Reason,
		})
	}
	sort.SliceStable(result.Alternatives, func(i, j int) bool {
		return result.Alternatives[i].Confidence > result.Alternatives[j].Confidence
	})
	if len(result.Alternatives) > 3 {
		result.Alternatives = result.Alternatives[:3]
	}
	if len(result.Alternatives) > 0 {
		_ = stream.AddAlternatives(result.Alternatives...)
	}
}
