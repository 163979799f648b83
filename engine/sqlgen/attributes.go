package sqlgen

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/arunmenon/text2sql/engine/graph"
)

// Attributes are the query modifiers recovered from the text before
// generation: filters, grouping, ordering, and row limits.
type Attributes struct {
	Filters []string `json:"filters,omitempty"`
	GroupBy []string `json:"group_by,omitempty"`
	OrderBy string   `json:"order_by,omitempty"`
	Desc    bool     `json:"desc,omitempty"`
	Limit   int      `json:"limit,omitempty"`
}

// Empty reports whether no attribute was recovered.
func (a *Attributes) Empty() bool {
	return len(a.Filters) == 0 && len(a.GroupBy) == 0 && a.OrderBy == "" && a.Limit == 0
}

var (
	limitPattern  = regexp.MustCompile(`(?i)\b(?:top|first|limit)\s+(\d+)\b`)
	groupPattern  = regexp.MustCompile(`(?i)\b(?:by|per|for each)\s+([a-z_][\w]*)\b`)
	filterPattern = regexp.MustCompile(`(?i)\b(?:for|where|with)\s+([A-Za-z_][\w]*(?:\s+[A-Za-z0-9_'%-]+)?)`)
	descWords     = regexp.MustCompile(`(?i)\b(?:highest|most|largest|biggest|top)\b`)
	ascWords      = regexp.MustCompile(`(?i)\b(?:lowest|least|smallest|bottom)\b`)
)

// groupNoise are words the grouping pattern captures that never name a
// grouping dimension.
var groupNoise = map[string]bool{
	"the": true, "a": true, "an": true, "each": true, "all": true,
}

// ExtractAttributes recovers filter, grouping, ordering, and limit hints
// from the raw query text. Heuristic and best-effort: anything missed
// here is left for the generation service to infer.
func ExtractAttributes(query string) Attributes {
	attrs := Attributes{}
	if m := limitPattern.FindStringSubmatch(query); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil && n > 0 {
			attrs.Limit = n
		}
	}
	for _, m := range groupPattern.FindAllStringSubmatch(query, -1) {
		word := strings.ToLower(m[1])
		if groupNoise[word] {
			continue
		}
		attrs.GroupBy = append(attrs.GroupBy, word)
	}
	for _, m := range filterPattern.FindAllStringSubmatch(query, -1) {
		attrs.Filters = append(attrs.Filters, strings.TrimSpace(m[1]))
	}
	switch {
	case descWords.MatchString(query):
		attrs.Desc = true
	case ascWords.MatchString(query):
		attrs.Desc = false
	}
	return attrs
}

// UncertainGroupings returns the grouping terms that match no column in
// the given tables. Callers turn them into uncertain-attribute
// boundaries rather than silently dropping them.
func UncertainGroupings(attrs Attributes, tables []graph.TableInfo) []string {
	if len(attrs.GroupBy) == 0 {
		return nil
	}
	columns := make(map[string]bool)
	for i := range tables {
		for _, col := range tables[i].Columns {
			columns[strings.ToLower(col.Name)] = true
		}
	}
	if len(columns) == 0 {
		return nil
	}
	var uncertain []string
	for _, term := range attrs.GroupBy {
		if !columns[strings.ToLower(term)] {
			uncertain = append(uncertain, term)
		}
	}
	return uncertain
}
