package graph

import (
	"context"
	"errors"
)

var (
	// ErrSchemaUnavailable indicates the initial schema-context fetch
	// failed. This is the only store error that is fatal for a query.
	ErrSchemaUnavailable = errors.New("graph: schema context unavailable")
	// ErrStoreUnavailable indicates a transient store failure. Callers
	// treat it as "strategy produced no result".
	ErrStoreUnavailable = errors.New("graph: store unavailable")
)

// PathRequest describes a join-path search between two tables.
type PathRequest struct {
	Source        string       `json:"source"`
	Target        string       `json:"target"`
	MinConfidence float64      `json:"min_confidence"`
	Strategy      PathStrategy `json:"strategy"`
	MaxHops       int          `json:"max_hops"`
	MaxPaths      int          `json:"max_paths"`
}

// Store is the query surface of the schema knowledge graph. Lookup
// misses return nil results, not errors; errors signal store failures.
type Store interface {
	// LookupTable returns tables matching the given name.
	LookupTable(ctx context.Context, name string) ([]TableInfo, error)
	// LookupGlossaryTerm returns the glossary term, or nil when unknown.
	LookupGlossaryTerm(ctx context.Context, name string) (*TermInfo, error)
	// LookupSemanticConcept returns the concept, or nil when unknown.
	LookupSemanticConcept(ctx context.Context, name string) (*ConceptInfo, error)
	// FindJoinPaths returns candidate paths between two tables, already
	// ranked by the requested selection strategy.
	FindJoinPaths(ctx context.Context, req PathRequest) ([]JoinPath, error)
	// GetSchemaContext fetches the tenant's schema snapshot.
	GetSchemaContext(ctx context.Context, tenantID string) (*SchemaContext, error)
}
