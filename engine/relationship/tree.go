package relationship

import (
	"sort"
	"strings"

	"github.com/arunmenon/text2sql/engine/graph"
)

// TreeStrategy selects how per-pair edges are assembled into a join
// tree. The choice is configuration, not a runtime decision.
type TreeStrategy string

const (
	// TreeGreedy grows the tree from the strongest edge outward.
	TreeGreedy TreeStrategy = "greedy"
	// TreeStar attaches every table directly to the best-connected hub.
	TreeStar TreeStrategy = "star"
)

// JoinTree is an acyclic subset of the per-pair edges covering the
// resolved tables. A table the edges cannot reach is omitted, not an
// error.
type JoinTree struct {
	Edges  []graph.JoinPath `json:"edges"`
	Tables []string         `json:"tables"`
}

// Contains reports whether the tree connects the given table.
func (t *JoinTree) Contains(table string) bool {
	for _, name := range t.Tables {
		if strings.EqualFold(name, table) {
			return true
		}
	}
	return false
}

// BuildTree assembles a join tree from per-pair winning paths.
func BuildTree(edges []graph.JoinPath, strategy TreeStrategy) JoinTree {
	if strategy == TreeStar {
		return buildStarTree(edges)
	}
	return buildGreedyTree(edges)
}

// buildGreedyTree starts from the single highest-confidence edge and
// repeatedly attaches the highest-confidence edge connecting an included
// table to a new one, until nothing attaches.
func buildGreedyTree(edges []graph.JoinPath) JoinTree {
	if len(edges) == 0 {
		return JoinTree{}
	}
	sorted := make([]graph.JoinPath, len(edges))
	copy(sorted, edges)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Confidence > sorted[j].Confidence
	})

	tree := JoinTree{}
	included := make(map[string]bool)
	add := func(edge graph.JoinPath) {
		tree.Edges = append(tree.Edges, edge)
		for _, table := range []string{edge.Source, edge.Target} {
			key := strings.ToLower(table)
			if !included[key] {
				included[key] = true
				tree.Tables = append(tree.Tables, table)
			}
		}
	}
	add(sorted[0])
	used := map[int]bool{0: true}

	for {
		attached := false
		for i, edge := range sorted {
			if used[i] {
				continue
			}
			hasSource := included[strings.ToLower(edge.Source)]
			hasTarget := included[strings.ToLower(edge.Target)]
			// Exactly one endpoint included keeps the tree acyclic.
			if hasSource == hasTarget {
				continue
			}
			add(edge)
			used[i] = true
			attached = true
			break
		}
		if !attached {
			return tree
		}
	}
}

// buildStarTree picks the table with the most incident edges as the hub
// and keeps only edges touching it.
func buildStarTree(edges []graph.JoinPath) JoinTree {
	if len(edges) == 0 {
		return JoinTree{}
	}
	degree := make(map[string]int)
	for _, edge := range edges {
		degree[strings.ToLower(edge.Source)]++
		degree[strings.ToLower(edge.Target)]++
	}
	hub := ""
	for table, count := range degree {
		if hub == "" || count > degree[hub] || (count == degree[hub] && table < hub) {
			hub = table
		}
	}

	tree := JoinTree{}
	included := make(map[string]bool)
	for _, edge := range edges {
		if strings.ToLower(edge.Source) != hub && strings.ToLower(edge.Target) != hub {
			continue
		}
		tree.Edges = append(tree.Edges, edge)
		for _, table := range []string{edge.Source, edge.Target} {
			key := strings.ToLower(table)
			if !included[key] {
				included[key] = true
				tree.Tables = append(tree.Tables, table)
			}
		}
	}
	return tree
}
