package core

// -----------------------------------------------------------------------------
// Intent Type
// -----------------------------------------------------------------------------

// IntentType classifies the purpose of an incoming query.
type IntentType string

const (
	IntentSelection   IntentType = "selection"
	IntentAggregation IntentType = "aggregation"
	IntentComparison  IntentType = "comparison"
	IntentTrend       IntentType = "trend"
	IntentComplex     IntentType = "complex"
)

// Valid reports whether the intent is one of the known classifications.
func (i IntentType) Valid() bool {
	switch i {
	case IntentSelection, IntentAggregation, IntentComparison, IntentTrend, IntentComplex:
		return true
	default:
		return false
	}
}

// -----------------------------------------------------------------------------
// Resolution Kind
// -----------------------------------------------------------------------------

// ResolutionKind tags how a candidate was resolved to a graph target.
type ResolutionKind string

const (
	KindTableMatch    ResolutionKind = "table_match"
	KindGlossaryMatch ResolutionKind = "glossary_match"
	KindConceptMatch  ResolutionKind = "concept_match"
	KindGenerated     ResolutionKind = "generated"
)

// -----------------------------------------------------------------------------
// Boundary Kind
// -----------------------------------------------------------------------------

// BoundaryKind types the ways the pipeline can decline to guess.
type BoundaryKind string

const (
	BoundaryUnknownEntity         BoundaryKind = "unknown_entity"
	BoundaryAmbiguousIntent       BoundaryKind = "ambiguous_intent"
	BoundaryMissingRelationship   BoundaryKind = "missing_relationship"
	BoundaryUncertainAttribute    BoundaryKind = "uncertain_attribute"
	BoundaryUnmappableConcept     BoundaryKind = "unmappable_concept"
	BoundaryComplexImplementation BoundaryKind = "complex_implementation"
)

// -----------------------------------------------------------------------------
// Candidate
// -----------------------------------------------------------------------------

// Candidate is a span of query text proposed as an entity or relationship
// mention, not yet resolved.
type Candidate struct {
	Text   string `json:"text"`
	Source string `json:"source"`
}

// -----------------------------------------------------------------------------
// Evidence
// -----------------------------------------------------------------------------

// Evidence is the kind-specific payload attached to a resolution result.
// Each resolution kind carries only the fields it needs.
type Evidence interface {
	Kind() ResolutionKind
}

// TableMatchEvidence records a direct match against a table name.
type TableMatchEvidence struct {
	TableName string `json:"table_name"`
	Exact     bool   `json:"exact"`
}

func (TableMatchEvidence) Kind() ResolutionKind { return KindTableMatch }

// GlossaryMatchEvidence records a business-glossary term hit.
type GlossaryMatchEvidence struct {
	Term        string `json:"term"`
	MappedTable string `json:"mapped_table"`
	Definition  string `json:"definition,omitempty"`
}

func (GlossaryMatchEvidence) Kind() ResolutionKind { return KindGlossaryMatch }

// ConceptMatchEvidence records a semantic-concept hit. AllTables keeps
// every table the concept spans so alternatives can be synthesized later.
type ConceptMatchEvidence struct {
	ConceptName string   `json:"concept_name"`
	ConceptType string   `json:"concept_type,omitempty"`
	AllTables   []string `json:"all_tables,omitempty"`
}

func (ConceptMatchEvidence) Kind() ResolutionKind { return KindConceptMatch }

// GeneratedEvidence records a generation-service resolution.
type GeneratedEvidence struct {
	Rationale string `json:"rationale,omitempty"`
	Model     string `json:"model,omitempty"`
}

func (GeneratedEvidence) Kind() ResolutionKind { return KindGenerated }

// -----------------------------------------------------------------------------
// Resolution Result
// -----------------------------------------------------------------------------

// ResolutionResult is the output of one strategy for one candidate.
// Confidence 0 means the target is empty and the candidate unresolved.
type ResolutionResult struct {
	Candidate  Candidate      `json:"candidate"`
	ResolvedTo string         `json:"resolved_to,omitempty"`
	Kind       ResolutionKind `json:"kind,omitempty"`
	Confidence float64        `json:"confidence"`
	Strategy   string         `json:"strategy,omitempty"`
	Evidence   Evidence       `json:"evidence,omitempty"`
}

// Resolved reports whether the result carries a usable target.
func (r *ResolutionResult) Resolved() bool {
	return r != nil && r.Confidence > 0 && r.ResolvedTo != ""
}

// Unresolved returns the canonical zero-confidence result for a candidate.
func Unresolved(candidate Candidate) *ResolutionResult {
	return &ResolutionResult{Candidate: candidate, Confidence: 0}
}

// -----------------------------------------------------------------------------
// Alternative
// -----------------------------------------------------------------------------

// Alternative is a secondary interpretation for an ambiguous decision.
type Alternative struct {
	Description string  `json:"description"`
	Confidence  float64 `json:"confidence"`
	Reason      string  `json:"reason,omitempty"`
}

// ClampConfidence bounds a confidence value to [0, 1].
func ClampConfidence(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
