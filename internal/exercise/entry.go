package exercise

// Provenance records where a record was loaded from. It is pipeline-internal and
// never serialized into the record body.
type Provenance struct {
	Path     string   // source file
	Category Category // file stem
	Index    int      // position within the source file at load time
}

// Entry pairs a record with its provenance for the duration of a run.
type Entry struct {
	Record     *Record
	Provenance Provenance
}

// ID is shorthand for e.Record.ID.
func (e *Entry) ID() string {
	return e.Record.ID
}

// Index builds an id -> entry lookup over a working set.
func Index(entries []*Entry) map[string]*Entry {
	byID := make(map[string]*Entry, len(entries))
	for _, e := range entries {
		byID[e.Record.ID] = e
	}
	return byID
}
