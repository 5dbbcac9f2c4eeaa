package progression

import (
	"fmt"
	"strings"
)

// DanglingReferenceError reports a successor id that names no record.
type DanglingReferenceError struct {
	From string
	To   string
}

func (e *DanglingReferenceError) Error() string {
	return fmt.Sprintf("progression %s -> %s: %s is not a known exercise", e.From, e.To, e.To)
}

// CycleDetectedError reports a chain that revisits a node. Path starts and ends
// with the revisited id, e.g. [a b a].
type CycleDetectedError struct {
	Path []string
}

func (e *CycleDetectedError) Error() string {
	return fmt.Sprintf("progression cycle: %s", strings.Join(e.Path, " -> "))
}

// UnknownSourceIDError reports a mapping key that names no record. Advisory only.
type UnknownSourceIDError struct {
	ID string
}

func (e *UnknownSourceIDError) Error() string {
	return fmt.Sprintf("progression mapping entry %s is not a known exercise", e.ID)
}
