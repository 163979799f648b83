package reasoning

import (
	"sync"
	"time"

	"github.com/arunmenon/text2sql/engine/core"
)

// Boundary is an explicit record that the pipeline could not confidently
// resolve something. Boundaries are carried to the final response rather
// than raised as errors.
type Boundary struct {
	Kind         core.BoundaryKind  `json:"kind"`
	Component    string             `json:"component"`
	Subject      string             `json:"subject,omitempty"`
	Confidence   float64            `json:"confidence"`
	Explanation  string             `json:"explanation"`
	Suggestions  []string           `json:"suggestions,omitempty"`
	Alternatives []core.Alternative `json:"alternatives,omitempty"`
	CreatedAt    time.Time          `json:"created_at"`
}

// BoundaryRegistry collects boundaries during a run. It never fails the
// run; callers inspect it once the pipeline finishes. Safe for
// concurrent appends.
type BoundaryRegistry struct {
	mu         sync.Mutex
	boundaries []Boundary
}

// NewBoundaryRegistry creates an empty registry for one query run.
func NewBoundaryRegistry() *BoundaryRegistry {
	return &BoundaryRegistry{}
}

// Add records a boundary, stamping creation time and clamping confidence.
func (r *BoundaryRegistry) Add(b Boundary) {
	b.Confidence = core.ClampConfidence(b.Confidence)
	if b.CreatedAt.IsZero() {
		b.CreatedAt = time.Now()
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.boundaries = append(r.boundaries, b)
}

// All returns a snapshot copy of the recorded boundaries.
func (r *BoundaryRegistry) All() []Boundary {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Boundary(nil), r.boundaries...)
}

// Len returns the number of recorded boundaries.
func (r *BoundaryRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.boundaries)
}

// HasKind reports whether a boundary of the given kind was recorded.
func (r *BoundaryRegistry) HasKind(kind core.BoundaryKind) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.boundaries {
		if r.boundaries[i].Kind == kind {
			return true
		}
	}
	return false
}
