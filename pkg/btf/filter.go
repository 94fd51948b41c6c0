package btf

import "sort"

// Filter narrows a Universe down to a subset of types for emission, per
// spec.md §6.3. An empty Filter selects everything. IncludeExt is carried
// as decoded from a filter config; selection ignores it, and nothing in
// this module reads it (the Filter itself only ever deals with pkg/btf ids).
type Filter struct {
	IDs        []TypeID
	Names      []string
	Kinds      []Kind
	IncludeExt bool
}

func (f *Filter) isEmpty() bool {
	return f == nil || (len(f.IDs) == 0 && len(f.Names) == 0 && len(f.Kinds) == 0)
}

// matches reports whether id passes the filter's direct (non-closure)
// criteria. A type matches if it satisfies ANY configured criterion;
// criteria left unset are ignored.
func (f *Filter) matches(u *Universe, id TypeID) bool {
	if f.isEmpty() {
		return true
	}
	for _, want := range f.IDs {
		if want == id {
			return true
		}
	}
	if len(f.Names) > 0 {
		name := typeName(u.Get(id))
		for _, want := range f.Names {
			if want == name {
				return true
			}
		}
	}
	if len(f.Kinds) > 0 {
		k := u.Get(id).Kind()
		for _, want := range f.Kinds {
			if want == k {
				return true
			}
		}
	}
	return false
}

// Selected returns every id in u that matches f, in ascending id order. It
// does not include the strong closure; EmitC layers the closure on top for
// C reconstruction, while DumpHuman prints the direct matches only.
func (f *Filter) Selected(u *Universe) ([]TypeID, error) {
	return f.selected(u)
}

// selected returns every id in u that matches f, in ascending id order. It
// does not include the strong closure; use closure for that.
func (f *Filter) selected(u *Universe) ([]TypeID, error) {
	var out []TypeID
	for _, t := range u.All() {
		if f.matches(u, t.ID()) {
			out = append(out, t.ID())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}

// closure returns the direct matches plus their transitive strong-edge
// reachable set (§6.3: "filters restrict output to the matched ids plus
// their transitive strong-reachable closure"). Weak-reachable ids are
// deliberately excluded here; the C emitter forward-declares those instead
// of pulling them fully into scope.
func (f *Filter) closure(u *Universe) (map[TypeID]bool, error) {
	matched, err := f.selected(u)
	if err != nil {
		return nil, err
	}
	in := make(map[TypeID]bool, len(matched)*2)
	var stack []TypeID
	for _, id := range matched {
		if !in[id] {
			in[id] = true
			stack = append(stack, id)
		}
	}
	for len(stack) > 0 {
		n := len(stack) - 1
		id := stack[n]
		stack = stack[:n]
		for _, e := range u.Edges(id) {
			if !e.Strong || e.Target == 0 {
				continue
			}
			if !in[e.Target] {
				in[e.Target] = true
				stack = append(stack, e.Target)
			}
		}
	}
	return in, nil
}
