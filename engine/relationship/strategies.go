package relationship

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/arunmenon/text2sql/engine/graph"
	"github.com/arunmenon/text2sql/engine/llm"
	"github.com/arunmenon/text2sql/pkg/logger"
)

// Pair is an unordered table pair needing a join path. Source and Target
// are kept in canonical (lexical) order.
type Pair struct {
	Source string
	Target string
}

// NewPair canonicalizes a table pair.
func NewPair(a, b string) Pair {
	if strings.ToLower(a) > strings.ToLower(b) {
		a, b = b, a
	}
	return Pair{Source: a, Target: b}
}

func (p Pair) String() string {
	return p.Source + "-" + p.Target
}

// Context carries the shared per-query state join strategies read.
type Context struct {
	Schema        *graph.SchemaContext
	PathStrategy  graph.PathStrategy
	MaxHops       int
	MaxPaths      int
	MinConfidence float64
}

// PairStrategy discovers a join path for one table pair. A strategy that
// finds nothing returns (nil, nil); errors are store or service failures
// the chain degrades silently.
type PairStrategy interface {
	Name() string
	Discover(ctx context.Context, pair Pair, rc *Context) (*graph.JoinPath, error)
}

// discoverBest runs every strategy and keeps the strictly highest
// confidence path; ties keep the earliest strategy's path.
func discoverBest(ctx context.Context, strategies []PairStrategy, pair Pair, rc *Context) *graph.JoinPath {
	log := logger.FromContext(ctx)
	var best *graph.JoinPath
	for _, strategy := range strategies {
		path, err := strategy.Discover(ctx, pair, rc)
		if err != nil {
			log.Debug("Join strategy failed",
				"strategy", strategy.Name(),
				"pair", pair.String(),
				"error", err)
			continue
		}
		if path == nil || len(path.Hops) == 0 {
			continue
		}
		if path.Strategy == "" {
			path.Strategy = strategy.Name()
		}
		if best == nil || path.Confidence > best.Confidence {
			best = path
		}
	}
	return best
}

// -----------------------------------------------------------------------------
// Direct foreign-key lookup
// -----------------------------------------------------------------------------

// DirectFKStrategy asks the store for single-hop foreign-key paths.
type DirectFKStrategy struct {
	Store graph.Store
}

func (s *DirectFKStrategy) Name() string { return "direct_fk" }

func (s *DirectFKStrategy) Discover(ctx context.Context, pair Pair, rc *Context) (*graph.JoinPath, error) {
	paths, err := s.Store.FindJoinPaths(ctx, graph.PathRequest{
		Source:        pair.Source,
		Target:        pair.Target,
		MinConfidence: rc.MinConfidence,
		Strategy:      rc.PathStrategy,
		MaxHops:       1,
		MaxPaths:      rc.MaxPaths,
	})
	if err != nil {
		return nil, fmt.Errorf("relationship: direct fk lookup %s: %w", pair.String(), err)
	}
	best, ok := graph.SelectPath(paths, rc.PathStrategy, 2)
	if !ok {
		return nil, nil
	}
	best.Strategy = s.Name()
	return &best, nil
}

// -----------------------------------------------------------------------------
// Common-column heuristic
// -----------------------------------------------------------------------------

// CommonColumnStrategy proposes a single-hop join on a shared column
// name. Purely schema-driven; confidence is capped at 0.8.
type CommonColumnStrategy struct{}

func (s *CommonColumnStrategy) Name() string { return "common_column" }

// joinableColumn reports whether a shared column name plausibly joins
// two tables: key-like suffixes, or a primary key on either side.
func joinableColumn(name string, a, b graph.ColumnInfo) bool {
	lowered := strings.ToLower(name)
	if strings.HasSuffix(lowered, "_id") || strings.HasSuffix(lowered, "_key") ||
		strings.HasSuffix(lowered, "_code") || lowered == "id" {
		return true
	}
	return a.PrimaryKey || b.PrimaryKey
}

func (s *CommonColumnStrategy) Discover(_ context.Context, pair Pair, rc *Context) (*graph.JoinPath, error) {
	if rc.Schema == nil {
		return nil, nil
	}
	source, ok := rc.Schema.FindTable(pair.Source)
	if !ok {
		return nil, nil
	}
	target, ok := rc.Schema.FindTable(pair.Target)
	if !ok {
		return nil, nil
	}
	for _, sc := range source.Columns {
		for _, tc := range target.Columns {
			if !strings.EqualFold(sc.Name, tc.Name) || !joinableColumn(sc.Name, sc, tc) {
				continue
			}
			path := &graph.JoinPath{
				Source: pair.Source,
				Target: pair.Target,
				Hops: []graph.JoinHop{{
					FromTable:  source.Name,
					FromColumn: sc.Name,
					ToTable:    target.Name,
					ToColumn:   tc.Name,
					Confidence: 0.8,
				}},
				Strategy: s.Name(),
			}
			path.Normalize()
			return path, nil
		}
	}
	return nil, nil
}

// -----------------------------------------------------------------------------
// Concept-mediated path
// -----------------------------------------------------------------------------

// ConceptMediatedStrategy follows a semantic concept spanning both
// tables and searches for a multi-hop path inside it. Confidence is
// capped at 0.85 and the path carries the concept name.
type ConceptMediatedStrategy struct {
	Store graph.Store
}

func (s *ConceptMediatedStrategy) Name() string { return "concept_mediated" }

func (s *ConceptMediatedStrategy) Discover(ctx context.Context, pair Pair, rc *Context) (*graph.JoinPath, error) {
	concept, err := s.lookupSpanningConcept(ctx, pair)
	if err != nil {
		return nil, err
	}
	if concept == nil {
		return nil, nil
	}
	paths, err := s.Store.FindJoinPaths(ctx, graph.PathRequest{
		Source:        pair.Source,
		Target:        pair.Target,
		MinConfidence: rc.MinConfidence,
		Strategy:      rc.PathStrategy,
		MaxHops:       rc.MaxHops,
		MaxPaths:      rc.MaxPaths,
	})
	if err != nil {
		return nil, fmt.Errorf("relationship: concept path lookup %s: %w", pair.String(), err)
	}
	best, ok := graph.SelectPath(paths, rc.PathStrategy, 2)
	if !ok {
		return nil, nil
	}
	best.Strategy = s.Name()
	best.Concept = concept.Name
	if best.Confidence > 0.85 {
		best.Confidence = 0.85
	}
	return &best, nil
}

func (s *ConceptMediatedStrategy) lookupSpanningConcept(ctx context.Context, pair Pair) (*graph.ConceptInfo, error) {
	for _, table := range []string{pair.Source, pair.Target} {
		concept, err := s.Store.LookupSemanticConcept(ctx, table)
		if err != nil {
			return nil, fmt.Errorf("relationship: concept lookup for %s: %w", table, err)
		}
		if concept != nil && containsFold(concept.Tables, pair.Source) && containsFold(concept.Tables, pair.Target) {
			return concept, nil
		}
	}
	return nil, nil
}

func containsFold(list []string, needle string) bool {
	for _, item := range list {
		if strings.EqualFold(item, needle) {
			return true
		}
	}
	return false
}

// -----------------------------------------------------------------------------
// Generation-service-proposed path
// -----------------------------------------------------------------------------

// GeneratedPathStrategy asks the generation service to propose join
// hops. Last resort; confidence is the service's own.
type GeneratedPathStrategy struct {
	Generator llm.Generator
}

func (s *GeneratedPathStrategy) Name() string { return "llm_proposed" }

type proposedHop struct {
	FromTable  string `json:"from_table"`
	FromColumn string `json:"from_column"`
	ToTable    string `json:"to_table"`
	ToColumn   string `json:"to_column"`
}

type proposedPathOutput struct {
	Hops       []proposedHop `json:"hops"`
	Confidence float64       `json:"confidence"`
	Rationale  string        `json:"rationale,omitempty"`
}

func (s *GeneratedPathStrategy) Discover(ctx context.Context, pair Pair, rc *Context) (*graph.JoinPath, error) {
	var schemaHint string
	if rc.Schema != nil {
		schemaHint = strings.Join(rc.Schema.TableNames(), ", ")
	}
	prompt := fmt.Sprintf(
		"Propose a SQL join path from table %s to table %s as an ordered list of hops "+
			"(from_table, from_column, to_table, to_column), with your confidence between 0 and 1.\n"+
			"Known tables: %s",
		pair.Source, pair.Target, schemaHint)
	var out proposedPathOutput
	if err := s.Generator.GenerateStructured(ctx, prompt, &out, "hops", "confidence"); err != nil {
		return nil, fmt.Errorf("relationship: proposed path %s: %w", pair.String(), err)
	}
	if len(out.Hops) == 0 || rc.MaxHops > 0 && len(out.Hops) > rc.MaxHops {
		return nil, nil
	}
	perHop := perHopConfidence(out.Confidence, len(out.Hops))
	path := &graph.JoinPath{Source: pair.Source, Target: pair.Target, Strategy: s.Name()}
	for _, hop := range out.Hops {
		if hop.FromTable == "" || hop.FromColumn == "" || hop.ToTable == "" || hop.ToColumn == "" {
			return nil, nil
		}
		path.Hops = append(path.Hops, graph.JoinHop{
			FromTable:  hop.FromTable,
			FromColumn: hop.FromColumn,
			ToTable:    hop.ToTable,
			ToColumn:   hop.ToColumn,
			Confidence: perHop,
		})
	}
	path.Normalize()
	return path, nil
}

// perHopConfidence spreads a whole-path confidence over its hops so the
// product-of-hops invariant reproduces the service's estimate.
func perHopConfidence(total float64, hops int) float64 {
	if total <= 0 || hops == 0 {
		return 0
	}
	if total > 1 {
		total = 1
	}
	return math.Pow(total, 1/float64(hops))
}

// DefaultStrategies returns the built-in join strategies in priority
// order.
func DefaultStrategies(store graph.Store, generator llm.Generator) []PairStrategy {
	return []PairStrategy{
		&DirectFKStrategy{Store: store},
		&CommonColumnStrategy{},
		&ConceptMediatedStrategy{Store: store},
		&GeneratedPathStrategy{Generator: generator},
	}
}
