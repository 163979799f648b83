package entity

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/arunmenon/text2sql/engine/core"
	"github.com/arunmenon/text2sql/engine/graph"
	"github.com/arunmenon/text2sql/engine/reasoning"
	"github.com/arunmenon/text2sql/engine/resolver"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildChain(t *testing.T, store graph.Store, gen *fakeGenerator, names ...string) *resolver.Chain {
	t.Helper()
	r := resolver.NewRegistry()
	require.NoError(t, RegisterStrategies(r))
	if len(names) == 0 {
		names = []string{StrategyDirectMatch, StrategyGlossaryTerm, StrategySemanticConcept, StrategyLLMGenerated}
	}
	chain, err := r.Build(names, &resolver.Deps{Store: store, Generator: gen})
	require.NoError(t, err)
	return chain
}

func testSchema() *graph.SchemaContext {
	return &graph.SchemaContext{
		TenantID: "t1",
		Tables: []graph.TableInfo{
			{Name: "customers"},
			{Name: "orders"},
			{Name: "sc_walmart_proposals"},
		},
	}
}

func TestFilterByIntent(t *testing.T) {
	candidates := []core.Candidate{
		{Text: "revenue"}, {Text: "widgets"},
	}

	t.Run("Should keep aggregable nouns for aggregation intent", func(t *testing.T) {
		kept, applied := filterByIntent(candidates, core.IntentAggregation)
		assert.True(t, applied)
		require.Len(t, kept, 1)
		assert.Equal(t, "revenue", kept[0].Text)
	})

	t.Run("Should fall back to the unfiltered set when nothing survives", func(t *testing.T) {
		kept, applied := filterByIntent([]core.Candidate{{Text: "widgets"}}, core.IntentAggregation)
		assert.False(t, applied)
		assert.Len(t, kept, 1)
	})

	t.Run("Should leave selection intent unfiltered", func(t *testing.T) {
		kept, applied := filterByIntent(candidates, core.IntentSelection)
		assert.False(t, applied)
		assert.Len(t, kept, 2)
	})
}

func TestAgent_Resolve(t *testing.T) {
	t.Run("Should resolve a known table with high confidence", func(t *testing.T) {
		store := &fakeStore{
			tables: map[string][]graph.TableInfo{"customers": {{Name: "customers"}}},
			schema: testSchema(),
		}
		gen := &fakeGenerator{structured: func(string, any) error { return errors.New("unused") }}
		agent := NewAgent(buildChain(t, store, gen), gen, Config{})
		stream := reasoning.NewStream(core.NewID(), "show customers")
		boundaries := reasoning.NewBoundaryRegistry()

		result, err := agent.Resolve(context.Background(), "show customers",
			&resolver.Context{TenantID: "t1", Schema: store.schema, Intent: core.IntentSelection},
			stream, boundaries)
		require.NoError(t, err)
		assert.Equal(t, "customers", result.Entities["customers"])
		assert.InDelta(t, 0.9, result.MaxConfidence, 1e-9)
		assert.Zero(t, boundaries.Len())
		assert.Equal(t, []string{"customers"}, result.Tables())
	})

	t.Run("Should resolve glossary terms through the chain", func(t *testing.T) {
		store := &fakeStore{
			terms: map[string]*graph.TermInfo{
				"proposal": {Term: "Proposal", MappedTable: "sc_walmart_proposals"},
			},
			schema: testSchema(),
		}
		gen := &fakeGenerator{structured: func(string, any) error { return errors.New("unused") }}
		agent := NewAgent(buildChain(t, store, gen), gen, Config{})
		stream := reasoning.NewStream(core.NewID(), "list proposals")
		boundaries := reasoning.NewBoundaryRegistry()

		result, err := agent.Resolve(context.Background(), "list proposals",
			&resolver.Context{Schema: store.schema, Intent: core.IntentSelection},
			stream, boundaries)
		require.NoError(t, err)
		assert.Equal(t, "sc_walmart_proposals", result.Entities["proposals"])
		assert.InDelta(t, 0.85, result.MaxConfidence, 1e-9)
	})

	t.Run("Should raise an unknown-entity boundary when nothing resolves", func(t *testing.T) {
		store := &fakeStore{schema: testSchema()}
		gen := &fakeGenerator{structured: func(string, any) error { return errors.New("service down") }}
		agent := NewAgent(buildChain(t, store, gen), gen, Config{})
		stream := reasoning.NewStream(core.NewID(), "show widgets")
		boundaries := reasoning.NewBoundaryRegistry()

		result, err := agent.Resolve(context.Background(), "show widgets",
			&resolver.Context{Schema: store.schema, Intent: core.IntentSelection},
			stream, boundaries)
		require.NoError(t, err)
		assert.Empty(t, result.Entities)
		require.True(t, boundaries.HasKind(core.BoundaryUnknownEntity))
		boundary := boundaries.All()[0]
		assert.Equal(t, "widgets", boundary.Subject)
		assert.GreaterOrEqual(t, len(boundary.Suggestions), 2)
		assert.LessOrEqual(t, len(boundary.Suggestions), 3)
	})

	t.Run("Should synthesize concept alternatives in the mid-confidence band", func(t *testing.T) {
		store := &fakeStore{
			concepts: map[string]*graph.ConceptInfo{
				"sales": {Name: "sales", Type: "process", Tables: []string{"orders", "order_items"}},
			},
			schema: testSchema(),
		}
		gen := &fakeGenerator{structured: func(prompt string, out any) error {
			if strings.Contains(prompt, "alternative tables") {
				return fill(out, alternativeTablesOutput{})
			}
			return errors.New("unused")
		}}
		agent := NewAgent(buildChain(t, store, gen), gen, Config{AlternativeHigh: 0.85})
		stream := reasoning.NewStream(core.NewID(), "show sales")
		boundaries := reasoning.NewBoundaryRegistry()

		result, err := agent.Resolve(context.Background(), "show sales",
			&resolver.Context{Schema: store.schema, Intent: core.IntentSelection},
			stream, boundaries)
		require.NoError(t, err)
		assert.Equal(t, "orders", result.Entities["sales"])

		stages := stream.Stages()
		require.Len(t, stages, 1)
		var descriptions []string
		for _, alt := range stages[0].Alternatives {
			descriptions = append(descriptions, alt.Description)
		}
		assert.Contains(t, descriptions, "order_items")
	})

	t.Run("Should top up alternatives from the generation service", func(t *testing.T) {
		store := &fakeStore{schema: testSchema()}
		gen := &fakeGenerator{structured: func(prompt string, out any) error {
			switch {
			case strings.Contains(prompt, "Map the phrase"):
				return fill(out, generatedOutput{Table: "orders", Confidence: 0.55})
			case strings.Contains(prompt, "alternative tables"):
				return fill(out, alternativeTablesOutput{Alternatives: []alternativeTable{
					{Table: "customers", Confidence: 0.45, Reason: "buyers could be meant"},
					{Table: "orders", Confidence: 0.4},
				}})
			default:
				return errors.New("unexpected prompt")
			}
		}}
		agent := NewAgent(buildChain(t, store, gen, StrategyLLMGenerated), gen, Config{})
		stream := reasoning.NewStream(core.NewID(), "show purchases")
		boundaries := reasoning.NewBoundaryRegistry()

		result, err := agent.Resolve(context.Background(), "show purchases",
			&resolver.Context{Schema: store.schema, Intent: core.IntentSelection},
			stream, boundaries)
		require.NoError(t, err)
		assert.Equal(t, "orders", result.Entities["purchases"])

		stages := stream.Stages()
		require.Len(t, stages, 1)
		require.Len(t, stages[0].Alternatives, 1)
		assert.Equal(t, "customers", stages[0].Alternatives[0].Description)
		assert.Less(t, stages[0].Alternatives[0].Confidence, result.MaxConfidence)
	})

	t.Run("Should compute average and max confidence over resolved candidates", func(t *testing.T) {
		store := &fakeStore{
			tables: map[string][]graph.TableInfo{
				"customers": {{Name: "customers"}},
				"order":     {{Name: "order"}},
			},
			schema: testSchema(),
		}
		gen := &fakeGenerator{structured: func(string, any) error { return errors.New("unused") }}
		agent := NewAgent(buildChain(t, store, gen), gen, Config{})
		stream := reasoning.NewStream(core.NewID(), "Customers with recent Orders")
		boundaries := reasoning.NewBoundaryRegistry()

		result, err := agent.Resolve(context.Background(), "Customers with recent Orders",
			&resolver.Context{Schema: store.schema, Intent: core.IntentSelection},
			stream, boundaries)
		require.NoError(t, err)
		require.Len(t, result.Resolutions, 2)
		assert.InDelta(t, 0.9, result.MaxConfidence, 1e-9)
		assert.InDelta(t, (0.9+0.85)/2, result.AverageConfidence, 1e-9)
	})
}
