package graph

import "sort"

// PathStrategy names a selection policy applied when the store returns
// several candidate paths for the same table pair.
type PathStrategy string

const (
	// StrategyDefault prefers the shortest path, tie-broken by the
	// highest product of hop confidences.
	StrategyDefault PathStrategy = "default"
	// StrategyWeighted maximizes the sum of per-hop weights.
	StrategyWeighted PathStrategy = "weighted"
	// StrategyUsage maximizes the sum of historical traversal counts.
	StrategyUsage PathStrategy = "usage"
	// StrategyVerified maximizes the count of human-verified hops.
	StrategyVerified PathStrategy = "verified"
	// StrategyAll runs every policy and re-ranks the union by a blended
	// score.
	StrategyAll PathStrategy = "all"
)

// Valid reports whether the strategy is a known policy name.
func (s PathStrategy) Valid() bool {
	switch s {
	case StrategyDefault, StrategyWeighted, StrategyUsage, StrategyVerified, StrategyAll:
		return true
	default:
		return false
	}
}

func totalWeight(p *JoinPath) float64 {
	sum := 0.0
	for i := range p.Hops {
		sum += p.Hops[i].EffectiveWeight()
	}
	return sum
}

func totalUsage(p *JoinPath) int {
	sum := 0
	for i := range p.Hops {
		sum += p.Hops[i].UsageCount
	}
	return sum
}

func verifiedCount(p *JoinPath) int {
	count := 0
	for i := range p.Hops {
		if p.Hops[i].Verified {
			count++
		}
	}
	return count
}

// blendedScore ranks paths for the "all" strategy.
func blendedScore(p *JoinPath) float64 {
	return 10*float64(verifiedCount(p)) + 5*totalWeight(p) + 3*PathConfidence(p.Hops) - float64(len(p.Hops))
}

// RankPaths orders candidate paths best-first according to the selection
// strategy. Path confidence is always recomputed as the product of hop
// confidences; the strategy only changes the ordering.
func RankPaths(paths []JoinPath, strategy PathStrategy) []JoinPath {
	ranked := make([]JoinPath, len(paths))
	copy(ranked, paths)
	for i := range ranked {
		ranked[i].Normalize()
	}
	less := lessFunc(strategy)
	sort.SliceStable(ranked, func(i, j int) bool {
		return less(&ranked[i], &ranked[j])
	})
	return ranked
}

func lessFunc(strategy PathStrategy) func(a, b *JoinPath) bool {
	switch strategy {
	case StrategyWeighted:
		return func(a, b *JoinPath) bool { return totalWeight(a) > totalWeight(b) }
	case StrategyUsage:
		return func(a, b *JoinPath) bool { return totalUsage(a) > totalUsage(b) }
	case StrategyVerified:
		return func(a, b *JoinPath) bool { return verifiedCount(a) > verifiedCount(b) }
	case StrategyAll:
		return func(a, b *JoinPath) bool { return blendedScore(a) > blendedScore(b) }
	default:
		return func(a, b *JoinPath) bool {
			if len(a.Hops) != len(b.Hops) {
				return len(a.Hops) < len(b.Hops)
			}
			return a.Confidence > b.Confidence
		}
	}
}

// SelectPath returns the best path under the strategy plus up to
// maxAlternatives runner-ups. Returns false when no paths are available.
func SelectPath(paths []JoinPath, strategy PathStrategy, maxAlternatives int) (JoinPath, bool) {
	if len(paths) == 0 {
		return JoinPath{}, false
	}
	ranked := RankPaths(paths, strategy)
	best := ranked[0]
	best.Alternatives = nil
	for _, alt := range ranked[1:] {
		if len(best.Alternatives) >= maxAlternatives {
			break
		}
		alt.Alternatives = nil
		best.Alternatives = append(best.Alternatives, alt)
	}
	return best, true
}
