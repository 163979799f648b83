package relationship

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/arunmenon/text2sql/engine/graph"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	paths    map[string][]graph.JoinPath
	concepts map[string]*graph.ConceptInfo
	err      error
}

func (f *fakeStore) LookupTable(_ context.Context, _ string) ([]graph.TableInfo, error) {
	return nil, f.err
}

func (f *fakeStore) LookupGlossaryTerm(_ context.Context, _ string) (*graph.TermInfo, error) {
	return nil, f.err
}

func (f *fakeStore) LookupSemanticConcept(_ context.Context, name string) (*graph.ConceptInfo, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.concepts[strings.ToLower(name)], nil
}

func (f *fakeStore) FindJoinPaths(_ context.Context, req graph.PathRequest) ([]graph.JoinPath, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.paths[strings.ToLower(req.Source+"-"+req.Target)], nil
}

func (f *fakeStore) GetSchemaContext(_ context.Context, _ string) (*graph.SchemaContext, error) {
	return nil, f.err
}

type fakeGenerator struct {
	structured func(prompt string, out any) error
}

func (f *fakeGenerator) GenerateText(_ context.Context, _ string) (string, error) {
	return "", errors.New("no text handler")
}

func (f *fakeGenerator) GenerateStructured(_ context.Context, prompt string, out any, _ ...string) error {
	if f.structured == nil {
		return errors.New("no structured handler")
	}
	return f.structured(prompt, out)
}

func fill(out, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, out)
}

func joinSchema() *graph.SchemaContext {
	return &graph.SchemaContext{
		Tables: []graph.TableInfo{
			{Name: "customers", Columns: []graph.ColumnInfo{
				{Name: "id", PrimaryKey: true}, {Name: "region"},
			}},
			{Name: "orders", Columns: []graph.ColumnInfo{
				{Name: "id", PrimaryKey: true}, {Name: "customer_id"}, {Name: "status"},
			}},
			{Name: "payments", Columns: []graph.ColumnInfo{
				{Name: "id", PrimaryKey: true}, {Name: "order_id"},
			}},
		},
	}
}

func TestDirectFKStrategy(t *testing.T) {
	store := &fakeStore{paths: map[string][]graph.JoinPath{
		"customers-orders": {
			edge("customers", "orders", 0.9),
			edge("customers", "orders", 0.6),
		},
	}}
	strategy := &DirectFKStrategy{Store: store}
	rc := &Context{PathStrategy: graph.StrategyDefault, MaxPaths: 5}

	t.Run("Should return the best path with runner-ups attached", func(t *testing.T) {
		path, err := strategy.Discover(context.Background(), NewPair("customers", "orders"), rc)
		require.NoError(t, err)
		require.NotNil(t, path)
		assert.InDelta(t, 0.9, path.Confidence, 1e-9)
		assert.Equal(t, "direct_fk", path.Strategy)
		require.Len(t, path.Alternatives, 1)
		assert.InDelta(t, 0.6, path.Alternatives[0].Confidence, 1e-9)
	})

	t.Run("Should return nothing for unknown pairs", func(t *testing.T) {
		path, err := strategy.Discover(context.Background(), NewPair("customers", "payments"), rc)
		require.NoError(t, err)
		assert.Nil(t, path)
	})

	t.Run("Should surface store failures as errors", func(t *testing.T) {
		broken := &DirectFKStrategy{Store: &fakeStore{err: graph.ErrStoreUnavailable}}
		_, err := broken.Discover(context.Background(), NewPair("a", "b"), rc)
		require.ErrorIs(t, err, graph.ErrStoreUnavailable)
	})
}

func TestCommonColumnStrategy(t *testing.T) {
	strategy := &CommonColumnStrategy{}
	rc := &Context{Schema: joinSchema()}

	t.Run("Should join tables sharing a key-like column", func(t *testing.T) {
		path, err := strategy.Discover(context.Background(), NewPair("customers", "orders"), rc)
		require.NoError(t, err)
		require.NotNil(t, path)
		require.Len(t, path.Hops, 1)
		assert.Equal(t, "id", path.Hops[0].FromColumn)
		assert.InDelta(t, 0.8, path.Confidence, 1e-9)
	})

	t.Run("Should ignore shared non-key columns", func(t *testing.T) {
		schema := &graph.SchemaContext{Tables: []graph.TableInfo{
			{Name: "a", Columns: []graph.ColumnInfo{{Name: "notes"}}},
			{Name: "b", Columns: []graph.ColumnInfo{{Name: "notes"}}},
		}}
		path, err := strategy.Discover(context.Background(), NewPair("a", "b"), &Context{Schema: schema})
		require.NoError(t, err)
		assert.Nil(t, path)
	})

	t.Run("Should return nothing without a schema snapshot", func(t *testing.T) {
		path, err := strategy.Discover(context.Background(), NewPair("a", "b"), &Context{})
		require.NoError(t, err)
		assert.Nil(t, path)
	})
}

func TestConceptMediatedStrategy(t *testing.T) {
	store := &fakeStore{
		concepts: map[string]*graph.ConceptInfo{
			"customers": {Name: "customer_journey", Type: "process",
				Tables: []string{"customers", "orders", "payments"}},
		},
		paths: map[string][]graph.JoinPath{
			"customers-payments": {{
				Source: "customers", Target: "payments",
				Hops: []graph.JoinHop{
					{FromTable: "customers", FromColumn: "id", ToTable: "orders", ToColumn: "customer_id", Confidence: 0.95},
					{FromTable: "orders", FromColumn: "id", ToTable: "payments", ToColumn: "order_id", Confidence: 0.95},
				},
			}},
		},
	}
	strategy := &ConceptMediatedStrategy{Store: store}
	rc := &Context{PathStrategy: graph.StrategyDefault, MaxHops: 4, MaxPaths: 5}

	t.Run("Should annotate the path with the mediating concept and cap at 0.85", func(t *testing.T) {
		path, err := strategy.Discover(context.Background(), NewPair("customers", "payments"), rc)
		require.NoError(t, err)
		require.NotNil(t, path)
		assert.Equal(t, "customer_journey", path.Concept)
		assert.LessOrEqual(t, path.Confidence, 0.85)
	})

	t.Run("Should return nothing when no concept spans both tables", func(t *testing.T) {
		path, err := strategy.Discover(context.Background(), NewPair("orders", "products"), rc)
		require.NoError(t, err)
		assert.Nil(t, path)
	})
}

func TestGeneratedPathStrategy(t *testing.T) {
	rc := &Context{Schema: joinSchema(), MaxHops: 4}

	t.Run("Should spread the service confidence over the hops", func(t *testing.T) {
		gen := &fakeGenerator{structured: func(_ string, out any) error {
			return fill(out, proposedPathOutput{
				Hops: []proposedHop{
					{FromTable: "customers", FromColumn: "id", ToTable: "orders", ToColumn: "customer_id"},
					{FromTable: "orders", FromColumn: "id", ToTable: "payments", ToColumn: "order_id"},
				},
				Confidence: 0.64,
			})
		}}
		strategy := &GeneratedPathStrategy{Generator: gen}
		path, err := strategy.Discover(context.Background(), NewPair("customers", "payments"), rc)
		require.NoError(t, err)
		require.NotNil(t, path)
		assert.InDelta(t, 0.64, path.Confidence, 1e-6)
		require.Len(t, path.Hops, 2)
		assert.InDelta(t, 0.8, path.Hops[0].Confidence, 1e-6)
	})

	t.Run("Should reject incomplete hops", func(t *testing.T) {
		gen := &fakeGenerator{structured: func(_ string, out any) error {
			return fill(out, proposedPathOutput{
				Hops:       []proposedHop{{FromTable: "customers", ToTable: "orders"}},
				Confidence: 0.7,
			})
		}}
		strategy := &GeneratedPathStrategy{Generator: gen}
		path, err := strategy.Discover(context.Background(), NewPair("customers", "orders"), rc)
		require.NoError(t, err)
		assert.Nil(t, path)
	})

	t.Run("Should reject paths exceeding the hop limit", func(t *testing.T) {
		hops := make([]proposedHop, 6)
		for i := range hops {
			hops[i] = proposedHop{FromTable: "a", FromColumn: "x", ToTable: "b", ToColumn: "y"}
		}
		gen := &fakeGenerator{structured: func(_ string, out any) error {
			return fill(out, proposedPathOutput{Hops: hops, Confidence: 0.7})
		}}
		strategy := &GeneratedPathStrategy{Generator: gen}
		path, err := strategy.Discover(context.Background(), NewPair("a", "b"), rc)
		require.NoError(t, err)
		assert.Nil(t, path)
	})
}

func TestDiscoverBest(t *testing.T) {
	t.Run("Should keep the highest-confidence path across strategies", func(t *testing.T) {
		store := &fakeStore{paths: map[string][]graph.JoinPath{
			"customers-orders": {edge("customers", "orders", 0.9)},
		}}
		strategies := []PairStrategy{
			&CommonColumnStrategy{},
			&DirectFKStrategy{Store: store},
		}
		rc := &Context{Schema: joinSchema(), PathStrategy: graph.StrategyDefault, MaxPaths: 5}
		best := discoverBest(context.Background(), strategies, NewPair("customers", "orders"), rc)
		require.NotNil(t, best)
		assert.Equal(t, "direct_fk", best.Strategy)
	})

	t.Run("Should degrade strategy errors to no result", func(t *testing.T) {
		strategies := []PairStrategy{
			&DirectFKStrategy{Store: &fakeStore{err: graph.ErrStoreUnavailable}},
			&CommonColumnStrategy{},
		}
		rc := &Context{Schema: joinSchema()}
		best := discoverBest(context.Background(), strategies, NewPair("customers", "orders"), rc)
		require.NotNil(t, best)
		assert.Equal(t, "common_column", best.Strategy)
	})
}
