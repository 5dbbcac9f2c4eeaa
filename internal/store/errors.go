package store

import (
	"errors"
	"fmt"
)

// ErrUnknownCategory is returned when a category filter matches no source file.
var ErrUnknownCategory = errors.New("no record collection for category")

// MalformedSourceError reports a source file that is not a well-formed record collection.
// It aborts the run: cross-file referential integrity cannot be checked on a partial load.
type MalformedSourceError struct {
	Path   string
	Index  int // record position, -1 when the whole file is at fault
	Reason string
	Err    error
}

func (e *MalformedSourceError) Error() string {
	msg := fmt.Sprintf("malformed source %s", e.Path)
	if e.Index >= 0 {
		msg += fmt.Sprintf(" (record %d)", e.Index)
	}
	msg += ": " + e.Reason
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *MalformedSourceError) Unwrap() error {
	return e.Err
}

// DuplicateIDError reports an id present more than once in the working set.
type DuplicateIDError struct {
	ID     string
	First  string // path of the first occurrence
	Second string // path of the conflicting occurrence
}

func (e *DuplicateIDError) Error() string {
	return fmt.Sprintf("duplicate exercise id %q in %s and %s", e.ID, e.First, e.Second)
}

// IncompleteWriteBackError reports a write-back group that does not cover every record
// loaded from its file. Writing it would silently drop or duplicate records.
type IncompleteWriteBackError struct {
	Path     string
	Loaded   int
	Provided int
}

func (e *IncompleteWriteBackError) Error() string {
	return fmt.Sprintf("refusing to rewrite %s: loaded %d records, write-back covers %d", e.Path, e.Loaded, e.Provided)
}
