package relationship

import (
	"context"
	"errors"
	"testing"

	"github.com/arunmenon/text2sql/engine/core"
	"github.com/arunmenon/text2sql/engine/graph"
	"github.com/arunmenon/text2sql/engine/reasoning"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRun(query string) (*reasoning.Stream, *reasoning.BoundaryRegistry) {
	return reasoning.NewStream(core.NewID(), query), reasoning.NewBoundaryRegistry()
}

func failingGenerator() *fakeGenerator {
	return &fakeGenerator{structured: func(string, any) error { return errors.New("service down") }}
}

func TestAgent_Discover(t *testing.T) {
	t.Run("Should short-circuit below two tables", func(t *testing.T) {
		agent := NewAgent(&fakeStore{}, failingGenerator(), Config{})
		stream, boundaries := newRun("show customers")

		result, err := agent.Discover(context.Background(), []string{"customers"}, nil, stream, boundaries)
		require.NoError(t, err)
		assert.False(t, result.RequiresJoins)
		assert.Empty(t, result.Paths)
		assert.Zero(t, boundaries.Len())

		stages := stream.Stages()
		require.Len(t, stages, 1)
		assert.True(t, stages[0].Completed)
	})

	t.Run("Should connect pairs and skip boundaries covered by the tree", func(t *testing.T) {
		store := &fakeStore{paths: map[string][]graph.JoinPath{
			"a-b": {edge("a", "b", 0.9)},
			"b-c": {edge("b", "c", 0.7)},
		}}
		agent := NewAgent(store, failingGenerator(), Config{})
		stream, boundaries := newRun("a b c")

		result, err := agent.Discover(context.Background(), []string{"a", "b", "c"}, nil, stream, boundaries)
		require.NoError(t, err)
		assert.True(t, result.RequiresJoins)
		require.Len(t, result.Paths, 2)
		require.Len(t, result.Tree.Edges, 2)
		// a-c has no direct path but the tree reaches both tables.
		assert.Zero(t, boundaries.Len())
		assert.InDelta(t, 0.7, result.MinPathConfidence(), 1e-9)
	})

	t.Run("Should raise a missing-relationship boundary for unreachable pairs", func(t *testing.T) {
		store := &fakeStore{paths: map[string][]graph.JoinPath{
			"a-b": {edge("a", "b", 0.9)},
		}}
		agent := NewAgent(store, failingGenerator(), Config{})
		stream, boundaries := newRun("a b d")

		result, err := agent.Discover(context.Background(), []string{"a", "b", "d"}, nil, stream, boundaries)
		require.NoError(t, err)
		require.Len(t, result.Paths, 1)
		require.True(t, boundaries.HasKind(core.BoundaryMissingRelationship))

		var subjects []string
		for _, b := range boundaries.All() {
			subjects = append(subjects, b.Subject)
			assert.NotEmpty(t, b.Suggestions)
		}
		assert.Contains(t, subjects, "a-d")
		assert.Contains(t, subjects, "b-d")
	})

	t.Run("Should record alternative paths in the mid-confidence band", func(t *testing.T) {
		store := &fakeStore{paths: map[string][]graph.JoinPath{
			"a-b": {edge("a", "b", 0.6), edge("a", "b", 0.5)},
		}}
		agent := NewAgent(store, failingGenerator(), Config{})
		stream, boundaries := newRun("a b")

		result, err := agent.Discover(context.Background(), []string{"a", "b"}, nil, stream, boundaries)
		require.NoError(t, err)
		require.Len(t, result.Paths, 1)

		stages := stream.Stages()
		require.Len(t, stages, 1)
		require.NotEmpty(t, stages[0].Alternatives)
		assert.InDelta(t, 0.5, stages[0].Alternatives[0].Confidence, 1e-9)
	})

	t.Run("Should not record alternatives for high-confidence paths", func(t *testing.T) {
		store := &fakeStore{paths: map[string][]graph.JoinPath{
			"a-b": {edge("a", "b", 0.9), edge("a", "b", 0.5)},
		}}
		agent := NewAgent(store, failingGenerator(), Config{})
		stream, boundaries := newRun("a b")

		_, err := agent.Discover(context.Background(), []string{"a", "b"}, nil, stream, boundaries)
		require.NoError(t, err)
		stages := stream.Stages()
		require.Len(t, stages, 1)
		assert.Empty(t, stages[0].Alternatives)
	})

	t.Run("Should fall back to the common-column heuristic when the store has no paths", func(t *testing.T) {
		agent := NewAgent(&fakeStore{}, failingGenerator(), Config{})
		stream, boundaries := newRun("customers orders")

		result, err := agent.Discover(context.Background(),
			[]string{"customers", "orders"}, joinSchema(), stream, boundaries)
		require.NoError(t, err)
		require.Len(t, result.Paths, 1)
		assert.Equal(t, "common_column", result.Paths[0].Strategy)
		assert.InDelta(t, 0.8, result.Paths[0].Confidence, 1e-9)
	})

	t.Run("Should deduplicate repeated tables into one pair set", func(t *testing.T) {
		pairs := pairTables([]string{"a", "b", "a", "B"})
		require.Len(t, pairs, 1)
		assert.Equal(t, "a-b", pairs[0].String())
	})
}
