package resolver

import (
	"context"

	"github.com/arunmenon/text2sql/engine/core"
	"github.com/arunmenon/text2sql/engine/graph"
	"github.com/arunmenon/text2sql/pkg/logger"
)

// Context carries the shared, immutable per-query state strategies read.
// Strategies must not communicate through it.
type Context struct {
	TenantID string
	Schema   *graph.SchemaContext
	Intent   core.IntentType
}

// Strategy attempts to resolve one candidate. A strategy that cannot
// resolve returns an unresolved (zero-confidence) result; errors are
// reserved for store or service failures the chain degrades silently.
type Strategy interface {
	Name() string
	Resolve(ctx context.Context, candidate core.Candidate, rc *Context) (*core.ResolutionResult, error)
}

// Chain runs an ordered list of strategies for a candidate and keeps the
// highest-confidence usable result. Order is priority: ties keep the
// earliest-registered strategy's result.
type Chain struct {
	strategies []Strategy
}

// NewChain creates a chain with the given priority order.
func NewChain(strategies ...Strategy) *Chain {
	return &Chain{strategies: strategies}
}

// Strategies returns the chain's strategies in priority order.
func (c *Chain) Strategies() []Strategy {
	return append([]Strategy(nil), c.strategies...)
}

// Resolve runs every strategy against the candidate. Failed or empty
// results are discarded; the winner is the strictly highest confidence.
// When nothing usable is produced, an unresolved result is returned.
func (c *Chain) Resolve(ctx context.Context, candidate core.Candidate, rc *Context) *core.ResolutionResult {
	log := logger.FromContext(ctx)
	best := core.Unresolved(candidate)
	for _, strategy := range c.strategies {
		result, err := strategy.Resolve(ctx, candidate, rc)
		if err != nil {
			log.Debug("Resolution strategy failed",
				"strategy", strategy.Name(),
				"candidate", candidate.Text,
				"error", err)
			continue
		}
		if !result.Resolved() {
			continue
		}
		result.Confidence = core.ClampConfidence(result.Confidence)
		if result.Strategy == "" {
			result.Strategy = strategy.Name()
		}
		if result.Confidence > best.Confidence {
			best = result
		}
	}
	return best
}
