package btf

import (
	"fmt"
	"sort"
)

// orderResult is the cached output of Universe.Order(): a flat topological
// sequence over every id (including void and inline-only kinds), plus the
// index of each id's SCC in the condensation order.
type orderResult struct {
	sequence []TypeID
	scc      map[TypeID]int // id -> index of its SCC in the condensation order
}

// tarjanState carries Tarjan's strongly-connected-components algorithm over
// the strong-edge subgraph of a Universe.
type tarjanState struct {
	u        *Universe
	index    map[TypeID]int
	lowlink  map[TypeID]int
	onStack  map[TypeID]bool
	stack    []TypeID
	counter  int
	sccs     [][]TypeID
}

// Order computes (and caches) a topological sequence of every type id in the
// Universe, 0 (void) included, respecting strong edges only. It fails with
// ErrBadStrongCycle if any strongly-connected component of the strong-edge
// subgraph is non-trivial (size > 1, or a single id with a self-loop) —
// i.e. a struct/union/array/typedef chain that contains itself by value
// (spec.md §4.6).
func (u *Universe) Order() ([]TypeID, error) {
	if u.order != nil {
		return u.order.sequence, nil
	}
	if u.orderErr != nil {
		return nil, u.orderErr
	}

	ts := &tarjanState{
		u:       u,
		index:   make(map[TypeID]int),
		lowlink: make(map[TypeID]int),
		onStack: make(map[TypeID]bool),
	}
	ids := make([]TypeID, 0, len(u.types)+1)
	ids = append(ids, 0)
	for _, t := range u.types {
		ids = append(ids, t.ID())
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	for _, id := range ids {
		if _, seen := ts.index[id]; !seen {
			ts.strongconnect(id)
		}
	}

	for _, scc := range ts.sccs {
		if len(scc) > 1 {
			err := fmt.Errorf("%w: ids %v form a by-value containment cycle", ErrBadStrongCycle, sortedIDs(scc))
			u.orderErr = err
			return nil, err
		}
		id := scc[0]
		if hasSelfLoop(u, id) {
			err := fmt.Errorf("%w: id %d contains itself by value", ErrBadStrongCycle, id)
			u.orderErr = err
			return nil, err
		}
	}

	seq, sccIdx := condense(ts.sccs)
	u.order = &orderResult{sequence: seq, scc: sccIdx}
	return seq, nil
}

func hasSelfLoop(u *Universe, id TypeID) bool {
	for _, e := range u.Edges(id) {
		if e.Strong && e.Target == id {
			return true
		}
	}
	return false
}

func sortedIDs(ids []TypeID) []TypeID {
	out := append([]TypeID(nil), ids...)
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// strongconnect is Tarjan's algorithm, iterative over out-edges via explicit
// recursion (the graphs here are small enough that stack depth is not a
// practical concern).
func (ts *tarjanState) strongconnect(v TypeID) {
	ts.index[v] = ts.counter
	ts.lowlink[v] = ts.counter
	ts.counter++
	ts.stack = append(ts.stack, v)
	ts.onStack[v] = true

	for _, e := range ts.u.Edges(v) {
		if !e.Strong {
			continue
		}
		w := e.Target
		if _, seen := ts.index[w]; !seen {
			ts.strongconnect(w)
			if ts.lowlink[w] < ts.lowlink[v] {
				ts.lowlink[v] = ts.lowlink[w]
			}
		} else if ts.onStack[w] {
			if ts.index[w] < ts.lowlink[v] {
				ts.lowlink[v] = ts.index[w]
			}
		}
	}

	if ts.lowlink[v] == ts.index[v] {
		var scc []TypeID
		for {
			n := len(ts.stack) - 1
			w := ts.stack[n]
			ts.stack = ts.stack[:n]
			ts.onStack[w] = false
			scc = append(scc, w)
			if w == v {
				break
			}
		}
		ts.sccs = append(ts.sccs, scc)
	}
}

// condense turns Tarjan's SCCs into a forward topological sequence, with
// ties within a component broken by ascending id. strongconnect finishes
// (appends to sccs) a component only once every component it strongly
// depends on has already finished, so sccs itself is already a
// dependencies-first order — it must be walked forward, not reversed.
func condense(sccs [][]TypeID) ([]TypeID, map[TypeID]int) {
	seq := make([]TypeID, 0, len(sccs))
	idx := make(map[TypeID]int, len(sccs))
	for i := 0; i < len(sccs); i++ {
		scc := sortedIDs(sccs[i])
		for _, id := range scc {
			seq = append(seq, id)
			idx[id] = i
		}
	}
	return seq, idx
}

// DeclarableOrder returns Order()'s sequence filtered down to the ids that
// are ever rendered as their own top-level C declaration (§4.8). Relative
// order is preserved.
func (u *Universe) DeclarableOrder() ([]TypeID, error) {
	full, err := u.Order()
	if err != nil {
		return nil, err
	}
	out := make([]TypeID, 0, len(full))
	for _, id := range full {
		if id == 0 {
			continue
		}
		if isDeclarable(u.Get(id).Kind()) {
			out = append(out, id)
		}
	}
	return out, nil
}
