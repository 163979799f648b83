package graph

import "strings"

// -----------------------------------------------------------------------------
// Schema entities
// -----------------------------------------------------------------------------

// ColumnInfo describes one column of a modeled table.
type ColumnInfo struct {
	Name       string `json:"name"`
	Type       string `json:"type,omitempty"`
	PrimaryKey bool   `json:"primary_key,omitempty"`
}

// TableInfo describes a table node in the schema graph.
type TableInfo struct {
	Name        string       `json:"name"`
	Description string       `json:"description,omitempty"`
	Columns     []ColumnInfo `json:"columns,omitempty"`
}

// TermInfo describes a business-glossary term and the table it maps to.
type TermInfo struct {
	Term        string   `json:"term"`
	Definition  string   `json:"definition,omitempty"`
	MappedTable string   `json:"mapped_table"`
	Synonyms    []string `json:"synonyms,omitempty"`
}

// ConceptInfo describes a semantic concept spanning one or more tables.
// Type is one of composite, process, relationship, or hierarchical.
type ConceptInfo struct {
	Name        string   `json:"name"`
	Type        string   `json:"type,omitempty"`
	Tables      []string `json:"tables"`
	Description string   `json:"description,omitempty"`
}

// SchemaContext is the read-only schema snapshot a query runs against.
// It is fetched once per query and shared by every stage.
type SchemaContext struct {
	TenantID      string      `json:"tenant_id"`
	Tables        []TableInfo `json:"tables"`
	GlossaryTerms []TermInfo  `json:"glossary_terms,omitempty"`
}

// TableNames lists the table names in the snapshot.
func (s *SchemaContext) TableNames() []string {
	names := make([]string, len(s.Tables))
	for i := range s.Tables {
		names[i] = s.Tables[i].Name
	}
	return names
}

// FindTable returns the table with the given name, case-insensitively.
func (s *SchemaContext) FindTable(name string) (TableInfo, bool) {
	for i := range s.Tables {
		if strings.EqualFold(s.Tables[i].Name, name) {
			return s.Tables[i], true
		}
	}
	return TableInfo{}, false
}

// -----------------------------------------------------------------------------
// Join paths
// -----------------------------------------------------------------------------

// JoinHop is one column-to-column traversal between two tables.
type JoinHop struct {
	FromTable  string  `json:"from_table"`
	FromColumn string  `json:"from_column"`
	ToTable    string  `json:"to_table"`
	ToColumn   string  `json:"to_column"`
	Confidence float64 `json:"confidence"`
	// Weight defaults to the hop confidence and grows with historical
	// usage; zero means "use the confidence".
	Weight float64 `json:"weight,omitempty"`
	// UsageCount is the historical traversal count for the hop.
	UsageCount int `json:"usage_count,omitempty"`
	// Verified marks hops confirmed by a human.
	Verified bool `json:"verified,omitempty"`
}

// EffectiveWeight returns the hop weight, falling back to confidence.
func (h *JoinHop) EffectiveWeight() float64 {
	if h.Weight > 0 {
		return h.Weight
	}
	return h.Confidence
}

// JoinPath is an ordered sequence of hops connecting a source table to a
// target table. Confidence is always the product of hop confidences,
// regardless of which selection strategy chose the path.
type JoinPath struct {
	Source     string    `json:"source"`
	Target     string    `json:"target"`
	Hops       []JoinHop `json:"hops"`
	Confidence float64   `json:"confidence"`
	// Strategy identifies the resolution strategy that produced the path.
	Strategy string `json:"strategy,omitempty"`
	// Concept is set when the path was mediated by a semantic concept.
	Concept string `json:"concept,omitempty"`
	// Alternatives holds up to two runner-up paths for the same pair.
	Alternatives []JoinPath `json:"alternatives,omitempty"`
}

// PathConfidence computes the product of hop confidences. An empty hop
// list yields zero.
func PathConfidence(hops []JoinHop) float64 {
	if len(hops) == 0 {
		return 0
	}
	product := 1.0
	for i := range hops {
		product *= hops[i].Confidence
	}
	return product
}

// Normalize recomputes the path confidence from its hops.
func (p *JoinPath) Normalize() {
	p.Confidence = PathConfidence(p.Hops)
}

// Tables returns every table the path touches, source first.
func (p *JoinPath) Tables() []string {
	if len(p.Hops) == 0 {
		return nil
	}
	tables := make([]string, 0, len(p.Hops)+1)
	tables = append(tables, p.Hops[0].FromTable)
	for i := range p.Hops {
		tables = append(tables, p.Hops[i].ToTable)
	}
	return tables
}
