package relationship

import (
	"context"
	"fmt"
	"strings"

	"github.com/arunmenon/text2sql/engine/core"
	"github.com/arunmenon/text2sql/engine/graph"
	"github.com/arunmenon/text2sql/engine/llm"
	"github.com/arunmenon/text2sql/engine/reasoning"
	"github.com/arunmenon/text2sql/pkg/logger"
	"golang.org/x/sync/errgroup"
)

// StageName identifies this agent's stage in the reasoning trace.
const StageName = "relationship_discovery"

// Config tunes the relationship agent.
type Config struct {
	// PathStrategy selects among multiple store-returned paths.
	PathStrategy graph.PathStrategy
	// TreeStrategy selects join-tree assembly.
	TreeStrategy TreeStrategy
	MaxHops       int
	MaxPaths      int
	MinConfidence float64
	// AlternativeLow and AlternativeHigh bound the winning-path
	// confidence band that collects alternative paths.
	AlternativeLow  float64
	AlternativeHigh float64
	// MaxConcurrency bounds the per-pair discovery fan-out.
	MaxConcurrency int
}

func (c *Config) applyDefaults() {
	if c.PathStrategy == "" {
		c.PathStrategy = graph.StrategyDefault
	}
	if c.TreeStrategy == "" {
		c.TreeStrategy = TreeGreedy
	}
	if c.MaxHops <= 0 {
		c.MaxHops = 4
	}
	if c.MaxPaths <= 0 {
		c.MaxPaths = 5
	}
	if c.AlternativeLow <= 0 {
		c.AlternativeLow = 0.4
	}
	if c.AlternativeHigh <= 0 {
		c.AlternativeHigh = 0.8
	}
	if c.MaxConcurrency <= 0 {
		c.MaxConcurrency = 4
	}
}

// Result is the relationship stage's conclusion. Paths holds the
// winning path per connected pair; Tree is the acyclic subset chosen
// for SQL generation.
type Result struct {
	RequiresJoins bool             `json:"requires_joins"`
	Paths         []graph.JoinPath `json:"paths,omitempty"`
	Tree          JoinTree         `json:"tree"`
}

// MinPathConfidence returns the weakest winning-path confidence, or 1
// when no joins are required.
func (r *Result) MinPathConfidence() float64 {
	min := 1.0
	for i := range r.Paths {
		if r.Paths[i].Confidence < min {
			min = r.Paths[i].Confidence
		}
	}
	return min
}

// Agent discovers join paths between resolved tables and assembles the
// join tree SQL generation will follow.
type Agent struct {
	strategies []PairStrategy
	cfg        Config
}

// NewAgent creates the relationship agent with the built-in strategy
// order: direct FK, common column, concept-mediated, service-proposed.
func NewAgent(store graph.Store, generator llm.Generator, cfg Config) *Agent {
	cfg.applyDefaults()
	return &Agent{strategies: DefaultStrategies(store, generator), cfg: cfg}
}

// Discover finds a join path for every unordered pair of resolved
// tables. Pairs without a path become missing-relationship boundaries
// unless the join tree already connects them transitively.
func (a *Agent) Discover(
	ctx context.Context,
	tables []string,
	schema *graph.SchemaContext,
	stream *reasoning.Stream,
	boundaries *reasoning.BoundaryRegistry,
) (*Result, error) {
	log := logger.FromContext(ctx)
	if err := stream.BeginStage(StageName); err != nil {
		return nil, err
	}

	if len(tables) < 2 {
		_ = stream.AddStep("single table resolved, no joins required", 1, nil)
		result := &Result{RequiresJoins: false}
		if err := stream.ConcludeStage("no joins required", result); err != nil {
			return nil, err
		}
		return result, nil
	}

	pairs := pairTables(tables)
	rc := &Context{
		Schema:        schema,
		PathStrategy:  a.cfg.PathStrategy,
		MaxHops:       a.cfg.MaxHops,
		MaxPaths:      a.cfg.MaxPaths,
		MinConfidence: a.cfg.MinConfidence,
	}
	found := a.discoverAll(ctx, pairs, rc)

	result := &Result{RequiresJoins: true}
	var unconnected []Pair
	for i, pair := range pairs {
		path := found[i]
		if path == nil {
			unconnected = append(unconnected, pair)
			continue
		}
		_ = stream.AddStep(fmt.Sprintf("found join path %s", describePath(path)),
			path.Confidence, map[string]any{
				"strategy": path.Strategy,
				"hops":     len(path.Hops),
				"concept":  path.Concept,
			})
		if path.Confidence >= a.cfg.AlternativeLow && path.Confidence < a.cfg.AlternativeHigh {
			a.recordAlternatives(path, stream)
		}
		result.Paths = append(result.Paths, *path)
	}

	result.Tree = BuildTree(result.Paths, a.cfg.TreeStrategy)
	for _, pair := range unconnected {
		// A pair both of whose tables the tree reaches is already
		// joined transitively; no boundary for it.
		if result.Tree.Contains(pair.Source) && result.Tree.Contains(pair.Target) {
			continue
		}
		boundaries.Add(reasoning.Boundary{
			Kind:      core.BoundaryMissingRelationship,
			Component: StageName,
			Subject:   pair.String(),
			Explanation: fmt.Sprintf("no join path found between %s and %s",
				pair.Source, pair.Target),
			Suggestions: []string{
				fmt.Sprintf("Mention an entity related to both %s and %s", pair.Source, pair.Target),
				"Split the question into two simpler ones",
			},
		})
		_ = stream.AddStep(fmt.Sprintf("no join path between %s and %s", pair.Source, pair.Target), 0, nil)
	}

	log.Debug("Join discovery finished",
		"pairs", len(pairs),
		"connected", len(result.Paths),
		"tree_edges", len(result.Tree.Edges))
	conclusion := fmt.Sprintf("connected %d of %d table pairs", len(result.Paths), len(pairs))
	if err := stream.ConcludeStage(conclusion, result); err != nil {
		return nil, err
	}
	return result, nil
}

// discoverAll fans the pairs out over the strategy chain. Each slot of
// the result slice is written exactly once.
func (a *Agent) discoverAll(ctx context.Context, pairs []Pair, rc *Context) []*graph.JoinPath {
	found := make([]*graph.JoinPath, len(pairs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.cfg.MaxConcurrency)
	for i, pair := range pairs {
		g.Go(func() error {
			found[i] = discoverBest(gctx, a.strategies, pair, rc)
			return nil
		})
	}
	_ = g.Wait()
	return found
}

func (a *Agent) recordAlternatives(path *graph.JoinPath, stream *reasoning.Stream) {
	var alts []core.Alternative
	for _, alt := range path.Alternatives {
		alts = append(alts, core.Alternative{
			Description: fmt.Sprintf("join via %s", strings.Join(alt.Tables(), " -> ")),
			Confidence:  alt.Confidence,
			Reason:      fmt.Sprintf("alternative path for %s-%s", path.Source, path.Target),
		})
	}
	if len(alts) > 0 {
		_ = stream.AddAlternatives(alts...)
	}
}

// pairTables lists the unordered pairs of distinct tables, skipping
// self-pairs.
func pairTables(tables []string) []Pair {
	seen := make(map[string]bool)
	var pairs []Pair
	for i := 0; i < len(tables); i++ {
		for j := i + 1; j < len(tables); j++ {
			if strings.EqualFold(tables[i], tables[j]) {
				continue
			}
			pair := NewPair(tables[i], tables[j])
			key := strings.ToLower(pair.String())
			if seen[key] {
				continue
			}
			seen[key] = true
			pairs = append(pairs, pair)
		}
	}
	return pairs
}

func describePath(path *graph.JoinPath) string {
	return strings.Join(path.Tables(), " -> ")
}
