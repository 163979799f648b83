package entity

import (
	"context"
	"fmt"
	"strings"

	"github.com/arunmenon/text2sql/engine/core"
	"github.com/arunmenon/text2sql/engine/graph"
	"github.com/arunmenon/text2sql/engine/llm"
	"github.com/arunmenon/text2sql/engine/resolver"
)

// Strategy identifiers, as referenced from configuration.
const (
	StrategyDirectMatch     = "direct_match"
	StrategyGlossaryTerm    = "glossary_term"
	StrategySemanticConcept = "semantic_concept"
	StrategyLLMGenerated    = "llm_generated"
)

// RegisterStrategies adds the built-in entity strategies to the registry.
func RegisterStrategies(r *resolver.Registry) error {
	entries := map[string]resolver.Constructor{
		StrategyDirectMatch:     func(d *resolver.Deps) resolver.Strategy { return &directMatchStrategy{store: d.Store} },
		StrategyGlossaryTerm:    func(d *resolver.Deps) resolver.Strategy { return &glossaryStrategy{store: d.Store} },
		StrategySemanticConcept: func(d *resolver.Deps) resolver.Strategy { return &conceptStrategy{store: d.Store} },
		StrategyLLMGenerated:    func(d *resolver.Deps) resolver.Strategy { return &generatedStrategy{generator: d.Generator} },
	}
	for name, ctor := range entries {
		if err := r.Register(name, ctor); err != nil {
			return err
		}
	}
	return nil
}

// nameVariants returns the lookup forms for a candidate: the name itself,
// then its singular and plural counterparts.
func nameVariants(name string) []string {
	lowered := strings.ToLower(strings.TrimSpace(name))
	variants := []string{lowered}
	for _, v := range []string{singularize(lowered), pluralize(lowered)} {
		if v != "" && v != lowered {
			variants = append(variants, v)
		}
	}
	return variants
}

func singularize(word string) string {
	switch {
	case strings.HasSuffix(word, "ies") && len(word) > 3:
		return word[:len(word)-3] + "y"
	case strings.HasSuffix(word, "ses") || strings.HasSuffix(word, "xes") ||
		strings.HasSuffix(word, "ches") || strings.HasSuffix(word, "shes"):
		return word[:len(word)-2]
	case strings.HasSuffix(word, "s") && !strings.HasSuffix(word, "ss") && len(word) > 1:
		return word[:len(word)-1]
	}
	return word
}

func pluralize(word string) string {
	switch {
	case strings.HasSuffix(word, "y") && len(word) > 1:
		return word[:len(word)-1] + "ies"
	case strings.HasSuffix(word, "s") || strings.HasSuffix(word, "x") ||
		strings.HasSuffix(word, "ch") || strings.HasSuffix(word, "sh"):
		return word + "es"
	default:
		return word + "s"
	}
}

// -----------------------------------------------------------------------------
// Direct table-name match
// -----------------------------------------------------------------------------

type directMatchStrategy struct {
	store graph.Store
}

func (s *directMatchStrategy) Name() string { return StrategyDirectMatch }

// Resolve matches the candidate against table names: 0.9 on the exact
// name, 0.85 on a singular or plural variant.
func (s *directMatchStrategy) Resolve(
	ctx context.Context,
	candidate core.Candidate,
	_ *resolver.Context,
) (*core.ResolutionResult, error) {
	normalized := strings.ReplaceAll(strings.TrimSpace(candidate.Text), " ", "_")
	for i, variant := range nameVariants(normalized) {
		tables, err := s.store.LookupTable(ctx, variant)
		if err != nil {
			return nil, fmt.Errorf("entity: direct match lookup for %q: %w", candidate.Text, err)
		}
		if len(tables) == 0 {
			continue
		}
		exact := i == 0
		confidence := 0.9
		if !exact {
			confidence = 0.85
		}
		return &core.ResolutionResult{
			Candidate:  candidate,
			ResolvedTo: tables[0].Name,
			Kind:       core.KindTableMatch,
			Confidence: confidence,
			Strategy:   s.Name(),
			Evidence:   core.TableMatchEvidence{TableName: tables[0].Name, Exact: exact},
		}, nil
	}
	return core.Unresolved(candidate), nil
}

// -----------------------------------------------------------------------------
// Business-glossary term
// -----------------------------------------------------------------------------

type glossaryStrategy struct {
	store graph.Store
}

func (s *glossaryStrategy) Name() string { return StrategyGlossaryTerm }

func (s *glossaryStrategy) Resolve(
	ctx context.Context,
	candidate core.Candidate,
	_ *resolver.Context,
) (*core.ResolutionResult, error) {
	for _, variant := range nameVariants(candidate.Text) {
		term, err := s.store.LookupGlossaryTerm(ctx, variant)
		if err != nil {
			return nil, fmt.Errorf("entity: glossary lookup for %q: %w", candidate.Text, err)
		}
		if term == nil || term.MappedTable == "" {
			continue
		}
		return &core.ResolutionResult{
			Candidate:  candidate,
			ResolvedTo: term.MappedTable,
			Kind:       core.KindGlossaryMatch,
			Confidence: 0.85,
			Strategy:   s.Name(),
			Evidence: core.GlossaryMatchEvidence{
				Term:        term.Term,
				MappedTable: term.MappedTable,
				Definition:  term.Definition,
			},
		}, nil
	}
	return core.Unresolved(candidate), nil
}

// -----------------------------------------------------------------------------
// Semantic concept
// -----------------------------------------------------------------------------

type conceptStrategy struct {
	store graph.Store
}

func (s *conceptStrategy) Name() string { return StrategySemanticConcept }

// Resolve maps the candidate to a semantic concept's first table. Every
// table the concept spans is kept as evidence so the agent can offer the
// others as alternatives.
func (s *conceptStrategy) Resolve(
	ctx context.Context,
	candidate core.Candidate,
	_ *resolver.Context,
) (*core.ResolutionResult, error) {
	for _, variant := range nameVariants(candidate.Text) {
		concept, err := s.store.LookupSemanticConcept(ctx, variant)
		if err != nil {
			return nil, fmt.Errorf("entity: concept lookup for %q: %w", candidate.Text, err)
		}
		if concept == nil || len(concept.Tables) == 0 {
			continue
		}
		return &core.ResolutionResult{
			Candidate:  candidate,
			ResolvedTo: concept.Tables[0],
			Kind:       core.KindConceptMatch,
			Confidence: 0.8,
			Strategy:   s.Name(),
			Evidence: core.ConceptMatchEvidence{
				ConceptName: concept.Name,
				ConceptType: concept.Type,
				AllTables:   append([]string(nil), concept.Tables...),
			},
		}, nil
	}
	return core.Unresolved(candidate), nil
}

// -----------------------------------------------------------------------------
// Generation-service resolution
// -----------------------------------------------------------------------------

type generatedStrategy struct {
	generator llm.Generator
}

func (s *generatedStrategy) Name() string { return StrategyLLMGenerated }

type generatedOutput struct {
	Table      string  `json:"table"`
	Confidence float64 `json:"confidence"`
	Rationale  string  `json:"rationale,omitempty"`
}

// Resolve asks the generation service to map the candidate onto one of
// the schema's tables. The service's self-reported confidence is kept;
// a table outside the schema snapshot is rejected.
func (s *generatedStrategy) Resolve(
	ctx context.Context,
	candidate core.Candidate,
	rc *resolver.Context,
) (*core.ResolutionResult, error) {
	if rc == nil || rc.Schema == nil || len(rc.Schema.Tables) == 0 {
		return core.Unresolved(candidate), nil
	}
	prompt := fmt.Sprintf(
		"Map the phrase %q from a database question onto exactly one of these tables, "+
			"or report an empty table name if none fits.\nTables: %s\n"+
			"Report the table, your confidence between 0 and 1, and a one-line rationale.",
		candidate.Text, strings.Join(rc.Schema.TableNames(), ", "))
	var out generatedOutput
	if err := s.generator.GenerateStructured(ctx, prompt, &out, "table", "confidence"); err != nil {
		return nil, fmt.Errorf("entity: generated resolution for %q: %w", candidate.Text, err)
	}
	if out.Table == "" {
		return core.Unresolved(candidate), nil
	}
	table, ok := rc.Schema.FindTable(out.Table)
	if !ok {
		return core.Unresolved(candidate), nil
	}
	return &core.ResolutionResult{
		Candidate:  candidate,
		ResolvedTo: table.Name,
		Kind:       core.KindGenerated,
		Confidence: core.ClampConfidence(out.Confidence),
		Strategy:   s.Name(),
		Evidence:   core.GeneratedEvidence{Rationale: out.Rationale},
	}, nil
}
