package entity

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/arunmenon/text2sql/engine/core"
	"github.com/arunmenon/text2sql/engine/graph"
	"github.com/arunmenon/text2sql/engine/llm"
	"github.com/arunmenon/text2sql/engine/reasoning"
	"github.com/arunmenon/text2sql/engine/resolver"
	"github.com/arunmenon/text2sql/pkg/logger"
	"golang.org/x/sync/errgroup"
)

// StageName identifies this agent's stage in the reasoning trace.
const StageName = "entity_resolution"

// Config tunes the entity agent.
type Config struct {
	// BoundaryLow is the confidence below which a candidate becomes an
	// unknown-entity boundary.
	BoundaryLow float64
	// AlternativeHigh is the upper bound of the confidence band
	// [BoundaryLow, AlternativeHigh) that triggers alternative synthesis.
	AlternativeHigh float64
	// MaxAlternatives caps the alternatives kept per resolution.
	MaxAlternatives int
	// MaxConcurrency bounds the per-candidate resolution fan-out.
	MaxConcurrency int
}

func (c *Config) applyDefaults() {
	if c.BoundaryLow <= 0 {
		c.BoundaryLow = 0.4
	}
	if c.AlternativeHigh <= 0 {
		c.AlternativeHigh = 0.7
	}
	if c.MaxAlternatives <= 0 {
		c.MaxAlternatives = 3
	}
	if c.MaxConcurrency <= 0 {
		c.MaxConcurrency = 4
	}
}

// Result is the entity stage's conclusion. Entities holds only resolved
// candidates; unresolved ones surface as boundaries instead.
type Result struct {
	Resolutions       []core.ResolutionResult `json:"resolutions"`
	Entities          map[string]string       `json:"entities"`
	AverageConfidence float64                 `json:"average_confidence"`
	MaxConfidence     float64                 `json:"max_confidence"`
	Extraction        float64                 `json:"extraction_confidence"`
}

// Tables returns the distinct resolved table names in resolution order.
func (r *Result) Tables() []string {
	seen := make(map[string]bool)
	var out []string
	for i := range r.Resolutions {
		table := r.Resolutions[i].ResolvedTo
		if table == "" || seen[table] {
			continue
		}
		seen[table] = true
		out = append(out, table)
	}
	return out
}

// Agent extracts entity mentions and resolves them against the graph.
type Agent struct {
	chain      *resolver.Chain
	extractors []resolver.Extractor
	generator  llm.Generator
	cfg        Config
}

// NewAgent creates the entity agent with the default extractor set.
func NewAgent(chain *resolver.Chain, generator llm.Generator, cfg Config) *Agent {
	cfg.applyDefaults()
	return &Agent{
		chain:      chain,
		extractors: resolver.DefaultExtractors(),
		generator:  generator,
		cfg:        cfg,
	}
}

// Resolve extracts candidates, filters them by intent, resolves each one
// through the strategy chain, and raises boundaries for candidates the
// graph does not know.
func (a *Agent) Resolve(
	ctx context.Context,
	query string,
	rc *resolver.Context,
	stream *reasoning.Stream,
	boundaries *reasoning.BoundaryRegistry,
) (*Result, error) {
	log := logger.FromContext(ctx)
	if err := stream.BeginStage(StageName); err != nil {
		return nil, err
	}

	candidates, extraction := resolver.ExtractCandidates(a.extractors, query)
	_ = stream.AddStep("extracted candidate mentions", extraction, map[string]any{
		"candidates": candidateTexts(candidates),
	})

	filtered, applied := filterByIntent(candidates, rc.Intent)
	if applied {
		_ = stream.AddStep("filtered candidates by intent", extraction, map[string]any{
			"intent": string(rc.Intent),
			"kept":   candidateTexts(filtered),
		})
	}

	resolutions := a.resolveAll(ctx, filtered, rc)
	result := &Result{Entities: make(map[string]string), Extraction: extraction}
	sum := 0.0
	for i, res := range resolutions {
		candidate := filtered[i]
		if !res.Resolved() || res.Confidence < a.cfg.BoundaryLow {
			a.raiseUnknownEntity(candidate, res, rc.Schema, boundaries, stream)
			continue
		}
		if res.Confidence < a.cfg.AlternativeHigh {
			a.synthesizeAlternatives(ctx, res, rc, stream)
		}
		_ = stream.AddStep(fmt.Sprintf("resolved %q to %s", candidate.Text, res.ResolvedTo),
			res.Confidence, map[string]any{
				"strategy": res.Strategy,
				"kind":     string(res.Kind),
			})
		result.Resolutions = append(result.Resolutions, *res)
		result.Entities[candidate.Text] = res.ResolvedTo
		sum += res.Confidence
		if res.Confidence > result.MaxConfidence {
			result.MaxConfidence = res.Confidence
		}
	}
	if len(result.Resolutions) > 0 {
		result.AverageConfidence = sum / float64(len(result.Resolutions))
	}

	log.Debug("Entities resolved",
		"candidates", len(filtered),
		"resolved", len(result.Resolutions),
		"max_confidence", result.MaxConfidence)
	conclusion := fmt.Sprintf("resolved %d of %d candidates", len(result.Resolutions), len(filtered))
	if err := stream.ConcludeStage(conclusion, result); err != nil {
		return nil, err
	}
	return result, nil
}

// resolveAll fans the candidates out over the strategy chain. Candidates
// are independent; each slot of the result slice is written exactly once.
func (a *Agent) resolveAll(
	ctx context.Context,
	candidates []core.Candidate,
	rc *resolver.Context,
) []*core.ResolutionResult {
	results := make([]*core.ResolutionResult, len(candidates))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.cfg.MaxConcurrency)
	for i, candidate := range candidates {
		g.Go(func() error {
			results[i] = a.chain.Resolve(gctx, candidate, rc)
			return nil
		})
	}
	_ = g.Wait()
	return results
}

// raiseUnknownEntity records the boundary for a candidate the graph does
// not recognize, with generic clarification suggestions.
func (a *Agent) raiseUnknownEntity(
	candidate core.Candidate,
	res *core.ResolutionResult,
	schema *graph.SchemaContext,
	boundaries *reasoning.BoundaryRegistry,
	stream *reasoning.Stream,
) {
	suggestions := []string{
		fmt.Sprintf("Check the spelling of %q", candidate.Text),
		"Rephrase using a business term from the glossary",
	}
	if nearest := nearestTable(schema, candidate.Text); nearest != "" {
		suggestions = append(suggestions, fmt.Sprintf("Did you mean the %s table?", nearest))
	}
	boundaries.Add(reasoning.Boundary{
		Kind:        core.BoundaryUnknownEntity,
		Component:   StageName,
		Subject:     candidate.Text,
		Confidence:  res.Confidence,
		Explanation: fmt.Sprintf("no strategy resolved %q above the boundary threshold", candidate.Text),
		Suggestions: suggestions,
	})
	_ = stream.AddStep(fmt.Sprintf("could not resolve %q", candidate.Text), res.Confidence, nil)
}

// synthesizeAlternatives attaches alternatives to a mid-confidence
// resolution: heuristics from the winning kind first, then generated
// table suggestions when fewer than two exist.
func (a *Agent) synthesizeAlternatives(
	ctx context.Context,
	res *core.ResolutionResult,
	rc *resolver.Context,
	stream *reasoning.Stream,
) {
	var alts []core.Alternative
	switch evidence := res.Evidence.(type) {
	case core.GlossaryMatchEvidence:
		alts = append(alts, core.Alternative{
			Description: fmt.Sprintf("%q as literal data rather than the glossary term %q", res.Candidate.Text, evidence.Term),
			Confidence:  core.ClampConfidence(res.Confidence - 0.2),
			Reason:      "glossary terms can shadow literal column values",
		})
	case core.ConceptMatchEvidence:
		if len(evidence.AllTables) > 1 {
			alts = append(alts, core.Alternative{
				Description: evidence.AllTables[1],
				Confidence:  core.ClampConfidence(res.Confidence - 0.1),
				Reason:      fmt.Sprintf("also part of the %s concept", evidence.ConceptName),
			})
		}
	}
	if len(alts) < 2 {
		alts = append(alts, a.generatedAlternatives(ctx, res, rc)...)
	}
	sort.SliceStable(alts, func(i, j int) bool { return alts[i].Confidence > alts[j].Confidence })
	if len(alts) > a.cfg.MaxAlternatives {
		alts = alts[:a.cfg.MaxAlternatives]
	}
	if len(alts) > 0 {
		_ = stream.AddAlternatives(alts...)
	}
}

type alternativeTable struct {
	Table      string  `json:"table"`
	Confidence float64 `json:"confidence"`
	Reason     string  `json:"reason,omitempty"`
}

type alternativeTablesOutput struct {
	Alternatives []alternativeTable `json:"alternatives"`
}

func (a *Agent) generatedAlternatives(
	ctx context.Context,
	res *core.ResolutionResult,
	rc *resolver.Context,
) []core.Alternative {
	if rc.Schema == nil || len(rc.Schema.Tables) == 0 {
		return nil
	}
	prompt := fmt.Sprintf(
		"The phrase %q was mapped to table %s with modest confidence. "+
			"Rank up to 2 alternative tables from this list that could also match, "+
			"with confidence and a short reason.\nTables: %s",
		res.Candidate.Text, res.ResolvedTo, strings.Join(rc.Schema.TableNames(), ", "))
	var out alternativeTablesOutput
	if err := a.generator.GenerateStructured(ctx, prompt, &out, "alternatives"); err != nil {
		return nil
	}
	var alts []core.Alternative
	for _, alt := range out.Alternatives {
		table, ok := rc.Schema.FindTable(alt.Table)
		if !ok || strings.EqualFold(table.Name, res.ResolvedTo) {
			continue
		}
		confidence := core.ClampConfidence(alt.Confidence)
		if confidence >= res.Confidence {
			confidence = core.ClampConfidence(res.Confidence - 0.05)
		}
		alts = append(alts, core.Alternative{
			Description: table.Name,
			Confidence:  confidence,
			Reason:      alt.Reason,
		})
	}
	return alts
}

// nearestTable picks the schema table whose name shares the most leading
// characters with the candidate, preferring substring containment.
func nearestTable(schema *graph.SchemaContext, text string) string {
	if schema == nil {
		return ""
	}
	lowered := strings.ToLower(text)
	best, bestScore := "", 0
	for _, name := range schema.TableNames() {
		score := 0
		loweredName := strings.ToLower(name)
		if strings.Contains(loweredName, lowered) || strings.Contains(lowered, loweredName) {
			score += 10
		}
		for i := 0; i < len(lowered) && i < len(loweredName); i++ {
			if lowered[i] != loweredName[i] {
				break
			}
			score++
		}
		if score > bestScore {
			best, bestScore = name, score
		}
	}
	if bestScore < 3 {
		return ""
	}
	return best
}

func candidateTexts(candidates []core.Candidate) []string {
	out := make([]string, len(candidates))
	for i := range candidates {
		out[i] = candidates[i].Text
	}
	return out
}
