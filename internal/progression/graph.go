package progression

import (
	"errors"
	"sort"

	"oops/internal/exercise"
	"oops/internal/logging"
)

// Graph exposes the successor relation of a Mapping. Every node has at most one
// outgoing edge; several nodes may share a successor.
type Graph struct {
	mapping Mapping
}

// NewGraph wraps an immutable mapping.
func NewGraph(m Mapping) *Graph {
	return &Graph{mapping: m}
}

// Mapping returns the underlying mapping.
func (g *Graph) Mapping() Mapping {
	return g.mapping
}

// Successor returns the next id in the chain. ok is false for terminal or unmapped ids.
func (g *Graph) Successor(id string) (string, bool) {
	to, mapped := g.mapping.Lookup(id)
	if !mapped || to == "" {
		return "", false
	}
	return to, true
}

// Chain follows successors from root to the end of its chain. The walk is bounded by
// the mapping size, so a cycle surfaces as a CycleDetectedError instead of a hang.
func (g *Graph) Chain(root string) ([]string, error) {
	chain := []string{root}
	pos := map[string]int{root: 0}
	cur := root
	for steps := 0; steps <= g.mapping.Len(); steps++ {
		next, ok := g.Successor(cur)
		if !ok {
			return chain, nil
		}
		if i, seen := pos[next]; seen {
			path := append(append([]string{}, chain[i:]...), next)
			return chain, &CycleDetectedError{Path: path}
		}
		pos[next] = len(chain)
		chain = append(chain, next)
		cur = next
	}
	return chain, &CycleDetectedError{Path: chain}
}

// Roots returns mapped ids that no other id points to, sorted.
func (g *Graph) Roots() []string {
	pointedTo := make(map[string]bool)
	for _, id := range g.mapping.ids {
		if to := g.mapping.next[id]; to != "" && to != id {
			pointedTo[to] = true
		}
	}
	var roots []string
	for _, id := range g.mapping.ids {
		if !pointedTo[id] {
			roots = append(roots, id)
		}
	}
	return roots
}

// =============================================================================
// VALIDATION
// =============================================================================

// Report collects validation findings. Dangling references and cycles are fatal;
// unknown source ids are advisory.
type Report struct {
	UnknownSourceIDs []*UnknownSourceIDError
	Dangling         []*DanglingReferenceError
	Cycles           []*CycleDetectedError
}

// OK reports whether there are no fatal findings.
func (r Report) OK() bool {
	return len(r.Dangling) == 0 && len(r.Cycles) == 0
}

// Err joins the fatal findings, or returns nil.
func (r Report) Err() error {
	var errs []error
	for _, e := range r.Dangling {
		errs = append(errs, e)
	}
	for _, e := range r.Cycles {
		errs = append(errs, e)
	}
	return errors.Join(errs...)
}

// Validate checks the mapping against the working set: keys and successors must name
// records, and no chain may revisit a node.
func (g *Graph) Validate(entries []*exercise.Entry) Report {
	timer := logging.StartTimer(logging.CategoryGraph, "Graph.Validate")
	defer timer.Stop()

	log := logging.Get(logging.CategoryGraph)
	known := exercise.Index(entries)

	var report Report
	for _, id := range g.mapping.ids {
		if _, ok := known[id]; !ok {
			report.UnknownSourceIDs = append(report.UnknownSourceIDs, &UnknownSourceIDError{ID: id})
			log.Warn("Mapping entry %s has no matching exercise", id)
		}
		if to := g.mapping.next[id]; to != "" {
			if _, ok := known[to]; !ok {
				report.Dangling = append(report.Dangling, &DanglingReferenceError{From: id, To: to})
			}
		}
	}
	report.Cycles = g.detectCycles()

	log.Info("Validated %d mapping entries against %d exercises: %d unknown, %d dangling, %d cycles",
		g.mapping.Len(), len(entries), len(report.UnknownSourceIDs), len(report.Dangling), len(report.Cycles))
	return report
}

// detectCycles walks every chain once with color marking
// (white = unvisited, gray = on the current walk, black = done).
func (g *Graph) detectCycles() []*CycleDetectedError {
	const (
		white = 0
		gray  = 1
		black = 2
	)

	color := make(map[string]int, g.mapping.Len())
	var cycles []*CycleDetectedError

	for _, start := range g.mapping.ids {
		if color[start] != white {
			continue
		}

		var path []string
		pos := make(map[string]int)
		cur := start
		for {
			if color[cur] == gray {
				cyc := append(append([]string{}, path[pos[cur]:]...), cur)
				cycles = append(cycles, &CycleDetectedError{Path: cyc})
				break
			}
			if color[cur] == black {
				break
			}
			color[cur] = gray
			pos[cur] = len(path)
			path = append(path, cur)

			next, ok := g.Successor(cur)
			if !ok {
				break
			}
			cur = next
		}

		for _, id := range path {
			color[id] = black
		}
	}

	sort.Slice(cycles, func(i, j int) bool { return cycles[i].Path[0] < cycles[j].Path[0] })
	return cycles
}

// =============================================================================
// APPLICATION
// =============================================================================

// Apply sets every record's progression_to from the mapping; unmapped ids become
// terminal (explicit null). Returns how many record bodies changed.
func (g *Graph) Apply(entries []*exercise.Entry) (int, error) {
	changed := 0
	for _, e := range entries {
		to, _ := g.mapping.Lookup(e.ID())
		did, err := e.Record.SetProgressionTo(to)
		if err != nil {
			return changed, err
		}
		if did {
			changed++
		}
	}
	logging.Get(logging.CategoryGraph).Info("Applied progression mapping: %d of %d records changed", changed, len(entries))
	return changed, nil
}
