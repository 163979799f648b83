package sqlgen

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/arunmenon/text2sql/engine/core"
	"github.com/arunmenon/text2sql/engine/graph"
	"github.com/arunmenon/text2sql/engine/llm"
	"github.com/arunmenon/text2sql/engine/reasoning"
	"github.com/arunmenon/text2sql/pkg/logger"
)

// StageName identifies this agent's stage in the reasoning trace.
const StageName = "sql_generation"

// Config tunes the SQL agent.
type Config struct {
	// MaxAlternatives caps the alternative generations requested when
	// the primary confidence is below AlternativeHigh.
	MaxAlternatives int
	// AlternativeHigh is the confidence below which alternatives are
	// requested.
	AlternativeHigh float64
	// FallbackLimit is the row limit of the last-resort query.
	FallbackLimit int
	// FallbackConfidence is the confidence of the last-resort query.
	FallbackConfidence float64
}

func (c *Config) applyDefaults() {
	if c.MaxAlternatives <= 0 {
		c.MaxAlternatives = 2
	}
	if c.AlternativeHigh <= 0 {
		c.AlternativeHigh = 0.8
	}
	if c.FallbackLimit <= 0 {
		c.FallbackLimit = 10
	}
	if c.FallbackConfidence <= 0 {
		c.FallbackConfidence = 0.3
	}
}

// SQLResult is one generated interpretation of the query.
type SQLResult struct {
	SQL         string  `json:"sql"`
	Explanation string  `json:"explanation,omitempty"`
	Confidence  float64 `json:"confidence"`
	Approach    string  `json:"approach,omitempty"`
}

// Result is the SQL stage's conclusion.
type Result struct {
	Primary      SQLResult   `json:"primary"`
	Alternatives []SQLResult `json:"alternatives,omitempty"`
	Attributes   Attributes  `json:"attributes"`
}

// Input is everything the upstream stages resolved for generation.
type Input struct {
	Intent   core.IntentType
	Entities map[string]string
	Tables   []string
	Paths    []graph.JoinPath
	Schema   *graph.SchemaContext
}

// Agent turns the resolved interpretation into SQL.
type Agent struct {
	generator llm.Generator
	cfg       Config
}

// NewAgent creates the SQL agent.
func NewAgent(generator llm.Generator, cfg Config) *Agent {
	cfg.applyDefaults()
	return &Agent{generator: generator, cfg: cfg}
}

type genOutput struct {
	SQL         string  `json:"sql"`
	Explanation string  `json:"explanation"`
	Confidence  float64 `json:"confidence"`
	Approach    string  `json:"approach,omitempty"`
}

// Generate produces the primary SQL plus alternatives. It refuses with
// an unmappable-concept boundary when no entities were resolved, and it
// always returns a result; the only errors are reasoning-stream misuse.
func (a *Agent) Generate(
	ctx context.Context,
	query string,
	in Input,
	stream *reasoning.Stream,
	boundaries *reasoning.BoundaryRegistry,
) (*Result, error) {
	log := logger.FromContext(ctx)
	if err := stream.BeginStage(StageName); err != nil {
		return nil, err
	}

	if len(in.Entities) == 0 || len(in.Tables) == 0 {
		return a.refuse(query, stream, boundaries)
	}

	tables := a.minimalSchema(in)
	attrs := ExtractAttributes(query)
	if !attrs.Empty() {
		_ = stream.AddStep("extracted query attributes", 0.7, map[string]any{
			"filters":  attrs.Filters,
			"group_by": attrs.GroupBy,
			"limit":    attrs.Limit,
		})
	}
	for _, term := range UncertainGroupings(attrs, tables) {
		boundaries.Add(reasoning.Boundary{
			Kind:        core.BoundaryUncertainAttribute,
			Component:   StageName,
			Subject:     term,
			Confidence:  0.3,
			Explanation: fmt.Sprintf("grouping term %q matches no known column", term),
			Suggestions: []string{fmt.Sprintf("Name the column to group by instead of %q", term)},
		})
	}

	result := &Result{Attributes: attrs}
	result.Primary = a.generateValidated(ctx, query, in, tables, attrs, stream, boundaries)

	if result.Primary.Confidence < a.cfg.AlternativeHigh && result.Primary.SQL != "" {
		result.Alternatives = a.generateAlternatives(ctx, query, in, tables, result.Primary, stream)
	}

	log.Debug("SQL generated",
		"confidence", result.Primary.Confidence,
		"approach", result.Primary.Approach,
		"alternatives", len(result.Alternatives))
	conclusion := fmt.Sprintf("generated SQL with confidence %.2f", result.Primary.Confidence)
	if err := stream.ConcludeStage(conclusion, result); err != nil {
		return nil, err
	}
	return result, nil
}

func (a *Agent) refuse(
	query string,
	stream *reasoning.Stream,
	boundaries *reasoning.BoundaryRegistry,
) (*Result, error) {
	boundaries.Add(reasoning.Boundary{
		Kind:        core.BoundaryUnmappableConcept,
		Component:   StageName,
		Subject:     query,
		Explanation: "no entity in the question maps to a known table",
		Suggestions: []string{
			"Mention a table or business term from the data model",
			"Rephrase the question with more specific nouns",
		},
	})
	result := &Result{Primary: SQLResult{
		Explanation: "The question mentions no recognizable data entity, so no SQL was generated.",
	}}
	_ = stream.AddStep("refused: no resolved entities", 0, nil)
	if err := stream.ConcludeStage("refused to generate SQL", result); err != nil {
		return nil, err
	}
	return result, nil
}

// generateValidated runs the generate-validate loop: primary attempt,
// then a simplified regeneration on validation failure, then the
// last-resort literal query.
func (a *Agent) generateValidated(
	ctx context.Context,
	query string,
	in Input,
	tables []graph.TableInfo,
	attrs Attributes,
	stream *reasoning.Stream,
	boundaries *reasoning.BoundaryRegistry,
) SQLResult {
	primary, err := a.requestSQL(ctx, a.buildPrompt(query, in, tables, attrs, ""))
	if err == nil && primary.SQL != "" {
		validation := ValidateSQL(ctx, a.generator, primary.SQL)
		_ = stream.AddStep("validated generated SQL", validation.Confidence, map[string]any{
			"valid":  validation.Valid,
			"local":  validation.Local,
			"issues": validation.Issues,
		})
		if validation.Valid {
			_ = stream.AddStep("generated primary SQL", primary.Confidence, map[string]any{
				"approach": primary.Approach,
			})
			return primary
		}
		a.addComplexBoundary(boundaries, query, validation.Issues)
	} else {
		_ = stream.AddStep("primary generation failed", 0, nil)
		a.addComplexBoundary(boundaries, query, []string{"generation service produced no usable statement"})
	}

	if simplified, ok := a.regenerateSimplified(ctx, query, in, tables, attrs, stream); ok {
		return simplified
	}
	return a.fallback(in, stream)
}

// regenerateSimplified retries generation restricted to at most two
// anchor tables.
func (a *Agent) regenerateSimplified(
	ctx context.Context,
	query string,
	in Input,
	tables []graph.TableInfo,
	attrs Attributes,
	stream *reasoning.Stream,
) (SQLResult, bool) {
	anchors := in.Tables
	if len(anchors) > 2 {
		anchors = anchors[:2]
	}
	simplified := in
	simplified.Tables = anchors
	simplified.Paths = pathsWithin(in.Paths, anchors)

	instruction := fmt.Sprintf(
		"Keep the query simple: use only the tables %s, no subqueries, at most one join.",
		strings.Join(anchors, " and "))
	result, err := a.requestSQL(ctx, a.buildPrompt(query, simplified, tables, attrs, instruction))
	if err != nil || result.SQL == "" {
		_ = stream.AddStep("simplified regeneration failed", 0, nil)
		return SQLResult{}, false
	}
	validation := ValidateSQL(ctx, a.generator, result.SQL)
	if !validation.Valid {
		_ = stream.AddStep("simplified regeneration invalid", 0, map[string]any{"issues": validation.Issues})
		return SQLResult{}, false
	}
	result.Approach = "simplified"
	_ = stream.AddStep("regenerated simplified SQL", result.Confidence, map[string]any{
		"anchors": anchors,
	})
	return result, true
}

// fallback returns the degraded but safe last-resort query.
func (a *Agent) fallback(in Input, stream *reasoning.Stream) SQLResult {
	result := SQLResult{
		SQL:         fmt.Sprintf("SELECT * FROM %s LIMIT %d", in.Tables[0], a.cfg.FallbackLimit),
		Explanation: fmt.Sprintf("Degraded fallback: a sample of %s rows.", in.Tables[0]),
		Confidence:  a.cfg.FallbackConfidence,
		Approach:    "fallback",
	}
	_ = stream.AddStep("fell back to sample query", result.Confidence, map[string]any{
		"table": in.Tables[0],
	})
	return result
}

func (a *Agent) addComplexBoundary(boundaries *reasoning.BoundaryRegistry, query string, issues []string) {
	boundaries.Add(reasoning.Boundary{
		Kind:        core.BoundaryComplexImplementation,
		Component:   StageName,
		Subject:     query,
		Explanation: "generated SQL failed validation: " + strings.Join(issues, "; "),
		Suggestions: []string{"Simplify the question or split it into parts"},
	})
}

// generateAlternatives requests alternative generations under different
// interpretations, dropping ones identical to the primary.
func (a *Agent) generateAlternatives(
	ctx context.Context,
	query string,
	in Input,
	tables []graph.TableInfo,
	primary SQLResult,
	stream *reasoning.Stream,
) []SQLResult {
	instructions := []string{
		fmt.Sprintf("Interpret the question differently than %q intent if plausible.", in.Intent),
		"Use the minimum possible set of joins, even if some detail is lost.",
	}
	var alternatives []SQLResult
	for _, instruction := range instructions {
		if len(alternatives) >= a.cfg.MaxAlternatives {
			break
		}
		alt, err := a.requestSQL(ctx, a.buildPrompt(query, in, tables, Attributes{}, instruction))
		if err != nil || alt.SQL == "" {
			continue
		}
		if sameSQL(alt.SQL, primary.SQL) {
			continue
		}
		duplicate := false
		for _, existing := range alternatives {
			if sameSQL(alt.SQL, existing.SQL) {
				duplicate = true
				break
			}
		}
		if duplicate {
			continue
		}
		alternatives = append(alternatives, alt)
	}
	if len(alternatives) > 0 {
		_ = stream.AddStep("generated alternative interpretations", primary.Confidence, map[string]any{
			"count": len(alternatives),
		})
	}
	return alternatives
}

func (a *Agent) requestSQL(ctx context.Context, prompt string) (SQLResult, error) {
	var out genOutput
	if err := a.generator.GenerateStructured(ctx, prompt, &out, "sql", "confidence"); err != nil {
		return SQLResult{}, err
	}
	return SQLResult{
		SQL:         strings.TrimSpace(out.SQL),
		Explanation: out.Explanation,
		Confidence:  core.ClampConfidence(out.Confidence),
		Approach:    out.Approach,
	}, nil
}

// buildPrompt assembles the generation request from the resolved
// interpretation and the minimal schema context.
func (a *Agent) buildPrompt(
	query string,
	in Input,
	tables []graph.TableInfo,
	attrs Attributes,
	instruction string,
) string {
	var b strings.Builder
	b.WriteString("Write a single SQL SELECT statement answering this question.\n")
	fmt.Fprintf(&b, "Question: %s\nIntent: %s\n", query, in.Intent)

	b.WriteString("Entity mapping:\n")
	for candidate, table := range in.Entities {
		fmt.Fprintf(&b, "  %q -> %s\n", candidate, table)
	}

	b.WriteString("Schema:\n")
	for i := range tables {
		fmt.Fprintf(&b, "  %s(%s)\n", tables[i].Name, columnList(&tables[i]))
	}

	if len(in.Paths) > 0 {
		b.WriteString("Join paths:\n")
		for i := range in.Paths {
			for _, hop := range in.Paths[i].Hops {
				fmt.Fprintf(&b, "  %s.%s = %s.%s\n",
					hop.FromTable, hop.FromColumn, hop.ToTable, hop.ToColumn)
			}
		}
	}

	if !attrs.Empty() {
		encoded, _ := json.Marshal(attrs)
		fmt.Fprintf(&b, "Attributes: %s\n", encoded)
	}
	if instruction != "" {
		fmt.Fprintf(&b, "Constraint: %s\n", instruction)
	}
	b.WriteString("Report the sql, an explanation, your confidence between 0 and 1, and an approach label.")
	return b.String()
}

// minimalSchema collects the tables referenced by resolved entities plus
// any intermediate tables the join paths traverse.
func (a *Agent) minimalSchema(in Input) []graph.TableInfo {
	names := append([]string(nil), in.Tables...)
	for i := range in.Paths {
		names = append(names, in.Paths[i].Tables()...)
	}
	seen := make(map[string]bool)
	var tables []graph.TableInfo
	for _, name := range names {
		key := strings.ToLower(name)
		if seen[key] {
			continue
		}
		seen[key] = true
		if in.Schema != nil {
			if table, ok := in.Schema.FindTable(name); ok {
				tables = append(tables, table)
				continue
			}
		}
		tables = append(tables, graph.TableInfo{Name: name})
	}
	return tables
}

// pathsWithin keeps the paths that only traverse the given tables.
func pathsWithin(paths []graph.JoinPath, tables []string) []graph.JoinPath {
	allowed := make(map[string]bool)
	for _, table := range tables {
		allowed[strings.ToLower(table)] = true
	}
	var kept []graph.JoinPath
	for i := range paths {
		inside := true
		for _, table := range paths[i].Tables() {
			if !allowed[strings.ToLower(table)] {
				inside = false
				break
			}
		}
		if inside {
			kept = append(kept, paths[i])
		}
	}
	return kept
}

func columnList(table *graph.TableInfo) string {
	if len(table.Columns) == 0 {
		return "..."
	}
	names := make([]string, len(table.Columns))
	for i := range table.Columns {
		names[i] = table.Columns[i].Name
	}
	return strings.Join(names, ", ")
}

func sameSQL(a, b string) bool {
	normalize := func(s string) string {
		return strings.Join(strings.Fields(strings.ToLower(strings.TrimRight(strings.TrimSpace(s), ";"))), " ")
	}
	return normalize(a) == normalize(b)
}
