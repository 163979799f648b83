package reasoning

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/arunmenon/text2sql/engine/core"
)

var (
	// ErrStageActive indicates a stage was opened while another is active.
	ErrStageActive = errors.New("reasoning: a stage is already active")
	// ErrNoActiveStage indicates a step or conclusion with no open stage.
	ErrNoActiveStage = errors.New("reasoning: no active stage")
)

// Step is one evidence-bearing action inside a stage. Steps are
// append-only; they are never mutated after being recorded.
type Step struct {
	Description string         `json:"description"`
	Evidence    map[string]any `json:"evidence,omitempty"`
	Confidence  float64        `json:"confidence"`
	Timestamp   time.Time      `json:"timestamp"`
}

// Stage groups the steps of one pipeline phase. A stage becomes
// immutable once concluded.
type Stage struct {
	Name         string             `json:"name"`
	Steps        []Step             `json:"steps"`
	Conclusion   string             `json:"conclusion,omitempty"`
	Output       any                `json:"output,omitempty"`
	Alternatives []core.Alternative `json:"alternatives,omitempty"`
	Completed    bool               `json:"completed"`
	StartedAt    time.Time          `json:"started_at"`
	ConcludedAt  time.Time          `json:"concluded_at,omitempty"`
}

// Stream is the append-only, per-query reasoning trace. At most one
// stage is active at a time; appends are safe for concurrent use.
type Stream struct {
	mu      sync.Mutex
	queryID core.ID
	query   string
	stages  []*Stage
	active  *Stage
	clock   func() time.Time
}

// NewStream creates a trace for a single query run.
func NewStream(queryID core.ID, query string) *Stream {
	return &Stream{
		queryID: queryID,
		query:   query,
		clock:   time.Now,
	}
}

// QueryID returns the identifier of the traced run.
func (s *Stream) QueryID() core.ID {
	return s.queryID
}

// Query returns the original query text.
func (s *Stream) Query() string {
	return s.query
}

// BeginStage opens a new stage. It fails when another stage is active.
func (s *Stream) BeginStage(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active != nil {
		return fmt.Errorf("%w: cannot begin %q while %q is open", ErrStageActive, name, s.active.Name)
	}
	stage := &Stage{Name: name, StartedAt: s.clock()}
	s.stages = append(s.stages, stage)
	s.active = stage
	return nil
}

// AddStep appends a step to the active stage.
func (s *Stream) AddStep(description string, confidence float64, evidence map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active == nil {
		return fmt.Errorf("%w: step %q dropped", ErrNoActiveStage, description)
	}
	s.active.Steps = append(s.active.Steps, Step{
		Description: description,
		Evidence:    core.CloneMap(evidence),
		Confidence:  core.ClampConfidence(confidence),
		Timestamp:   s.clock(),
	})
	return nil
}

// AddAlternatives records alternative interpretations on the active stage.
func (s *Stream) AddAlternatives(alts ...core.Alternative) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active == nil {
		return ErrNoActiveStage
	}
	s.active.Alternatives = append(s.active.Alternatives, alts...)
	return nil
}

// ConcludeStage closes the active stage with a conclusion and its final
// output. The stage is immutable afterwards.
func (s *Stream) ConcludeStage(conclusion string, output any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active == nil {
		return ErrNoActiveStage
	}
	s.active.Conclusion = conclusion
	s.active.Output = output
	s.active.Completed = true
	s.active.ConcludedAt = s.clock()
	s.active = nil
	return nil
}

// AbandonStage closes the active stage without a conclusion, keeping the
// steps recorded so far. Used when a stage deadline fires.
func (s *Stream) AbandonStage(reason string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active == nil {
		return
	}
	s.active.Conclusion = reason
	s.active.Completed = false
	s.active.ConcludedAt = s.clock()
	s.active = nil
}

// Stages returns a snapshot copy of the recorded stages.
func (s *Stream) Stages() []Stage {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Stage, len(s.stages))
	for i, stage := range s.stages {
		copied := *stage
		copied.Steps = append([]Step(nil), stage.Steps...)
		copied.Alternatives = append([]core.Alternative(nil), stage.Alternatives...)
		out[i] = copied
	}
	return out
}
