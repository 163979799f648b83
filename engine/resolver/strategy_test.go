package resolver

import (
	"context"
	"errors"
	"testing"

	"github.com/arunmenon/text2sql/engine/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubStrategy struct {
	name       string
	resolvedTo string
	confidence float64
	err        error
}

func (s stubStrategy) Name() string { return s.name }

func (s stubStrategy) Resolve(_ context.Context, candidate core.Candidate, _ *Context) (*core.ResolutionResult, error) {
	if s.err != nil {
		return nil, s.err
	}
	if s.resolvedTo == "" {
		return core.Unresolved(candidate), nil
	}
	return &core.ResolutionResult{
		Candidate:  candidate,
		ResolvedTo: s.resolvedTo,
		Kind:       core.KindTableMatch,
		Confidence: s.confidence,
		Strategy:   s.name,
	}, nil
}

func TestChain_Resolve(t *testing.T) {
	candidate := core.Candidate{Text: "Customer", Source: "capitalization"}

	t.Run("Should keep the strictly highest confidence result", func(t *testing.T) {
		chain := NewChain(
			stubStrategy{name: "low", resolvedTo: "a", confidence: 0.5},
			stubStrategy{name: "high", resolvedTo: "b", confidence: 0.9},
		)
		result := chain.Resolve(context.Background(), candidate, &Context{})
		assert.Equal(t, "b", result.ResolvedTo)
		assert.Equal(t, "high", result.Strategy)
	})

	t.Run("Should break ties by registration order", func(t *testing.T) {
		chain := NewChain(
			stubStrategy{name: "first", resolvedTo: "a", confidence: 0.8},
			stubStrategy{name: "second", resolvedTo: "b", confidence: 0.8},
		)
		result := chain.Resolve(context.Background(), candidate, &Context{})
		assert.Equal(t, "first", result.Strategy)
		assert.Equal(t, "a", result.ResolvedTo)
	})

	t.Run("Should be deterministic across repeated runs", func(t *testing.T) {
		chain := NewChain(
			stubStrategy{name: "first", resolvedTo: "a", confidence: 0.8},
			stubStrategy{name: "second", resolvedTo: "b", confidence: 0.8},
			stubStrategy{name: "third", resolvedTo: "c", confidence: 0.7},
		)
		for i := 0; i < 10; i++ {
			result := chain.Resolve(context.Background(), candidate, &Context{})
			require.Equal(t, "first", result.Strategy)
		}
	})

	t.Run("Should degrade strategy errors to no result", func(t *testing.T) {
		chain := NewChain(
			stubStrategy{name: "broken", err: errors.New("store down")},
			stubStrategy{name: "ok", resolvedTo: "a", confidence: 0.6},
		)
		result := chain.Resolve(context.Background(), candidate, &Context{})
		assert.Equal(t, "ok", result.Strategy)
	})

	t.Run("Should return unresolved when no strategy produces a result", func(t *testing.T) {
		chain := NewChain(
			stubStrategy{name: "broken", err: errors.New("store down")},
			stubStrategy{name: "empty"},
		)
		result := chain.Resolve(context.Background(), candidate, &Context{})
		assert.False(t, result.Resolved())
		assert.Zero(t, result.Confidence)
		assert.Empty(t, result.ResolvedTo)
	})

	t.Run("Should discard zero-confidence results with targets", func(t *testing.T) {
		chain := NewChain(stubStrategy{name: "zero", resolvedTo: "a", confidence: 0})
		result := chain.Resolve(context.Background(), candidate, &Context{})
		assert.False(t, result.Resolved())
	})
}

func TestRegistry(t *testing.T) {
	ctor := func(name string) Constructor {
		return func(_ *Deps) Strategy { return stubStrategy{name: name} }
	}

	t.Run("Should build a chain in the requested priority order", func(t *testing.T) {
		r := NewRegistry()
		require.NoError(t, r.Register("direct_match", ctor("direct_match")))
		require.NoError(t, r.Register("glossary_term", ctor("glossary_term")))

		chain, err := r.Build([]string{"glossary_term", "direct_match"}, &Deps{})
		require.NoError(t, err)
		strategies := chain.Strategies()
		require.Len(t, strategies, 2)
		assert.Equal(t, "glossary_term", strategies[0].Name())
		assert.Equal(t, "direct_match", strategies[1].Name())
	})

	t.Run("Should reject duplicate registrations", func(t *testing.T) {
		r := NewRegistry()
		require.NoError(t, r.Register("direct_match", ctor("direct_match")))
		err := r.Register("Direct_Match", ctor("direct_match"))
		require.ErrorIs(t, err, ErrAlreadyRegistered)
	})

	t.Run("Should reject unknown identifiers at build time", func(t *testing.T) {
		r := NewRegistry()
		_, err := r.Build([]string{"nope"}, &Deps{})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "not registered")
	})

	t.Run("Should reject empty names and nil constructors", func(t *testing.T) {
		r := NewRegistry()
		assert.ErrorIs(t, r.Register("", ctor("x")), ErrNameEmpty)
		assert.ErrorIs(t, r.Register("x", nil), ErrConstructorNil)
	})
}
