package pipeline

import (
	"fmt"

	"oops/internal/exercise"
	"oops/internal/store"
)

// State is a record's position in the per-run state machine.
type State string

const (
	StatePending    State = "PENDING"
	StateSkipped    State = "SKIPPED"
	StateGenerating State = "GENERATING"
	StateGenerated  State = "GENERATED"
	StateFailed     State = "FAILED"
)

// RecordError is a per-record failure. It never aborts the batch.
type RecordError struct {
	ID  string
	Err error
}

func (e *RecordError) Error() string {
	return fmt.Sprintf("%s: %v", e.ID, e.Err)
}

func (e *RecordError) Unwrap() error {
	return e.Err
}

// Outcome is what happened to one record.
type Outcome struct {
	ID       string
	Category exercise.Category
	State    State
	Forced   bool
	// Healed is set when an asset already in storage was re-linked without a service call.
	Healed   bool
	HintUsed bool
	// Prompt is kept in dry runs so callers can show it.
	Prompt   string
	ImageURL string
	Err      error
}

// Summary aggregates a run. Outcomes and Errors follow load order.
type Summary struct {
	RunID     string
	DryRun    bool
	Generated int
	Skipped   int
	Failed    int
	Healed    int
	Pending   int
	Errors    []*RecordError
	Outcomes  []Outcome
	Written   []store.FileReport
}

// String renders the classic one-line tally.
func (s *Summary) String() string {
	return fmt.Sprintf("Generated: %d, Skipped: %d, Errors: %d", s.Generated, s.Skipped, s.Failed)
}

func (s *Summary) tally(outcomes []Outcome) {
	s.Outcomes = outcomes
	for _, o := range outcomes {
		switch o.State {
		case StateGenerated:
			s.Generated++
		case StateSkipped:
			s.Skipped++
			if o.Healed {
				s.Healed++
			}
		case StateFailed:
			s.Failed++
			s.Errors = append(s.Errors, &RecordError{ID: o.ID, Err: o.Err})
		default:
			s.Pending++
		}
	}
}
