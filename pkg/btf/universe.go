package btf

import "fmt"

// DefaultPointerSize is the pointer width, in bytes, assumed for Ptr layout
// when a Universe is constructed without an explicit override (§4.7).
const DefaultPointerSize = 8

// Universe is an indexed collection of all decoded types. Id 0 is the
// implicit void; ids 1..N-1 are the declared types in decode order. All
// allocations (the type slice, caches below) are owned by the Universe and
// released together when it is dropped (§5 resource scoping).
type Universe struct {
	types   []Type // types[i] is the type with id i+1
	strtab  *stringTable
	byName  map[string][]TypeID
	ptrSize uint32

	// Lazily computed, cached per Universe (§3.3, §6.2 "(cached)").
	edges      map[TypeID][]Edge
	order      *orderResult
	orderErr   error
	layouts    map[TypeID]Layout
	layoutErrs map[TypeID]error
}

func newUniverse(types []Type, strtab *stringTable) *Universe {
	u := &Universe{
		types:   types,
		strtab:  strtab,
		byName:  make(map[string][]TypeID),
		ptrSize: DefaultPointerSize,
		layouts: make(map[TypeID]Layout),
		layoutErrs: make(map[TypeID]error),
	}
	for _, t := range types {
		if name := typeName(t); name != "" {
			u.byName[name] = append(u.byName[name], t.ID())
		}
	}
	return u
}

// LookupString resolves a raw .BTF string-table offset, for consumers (such
// as pkg/btfext) that decode auxiliary sections sharing the same string
// table but not represented as Type records.
func (u *Universe) LookupString(off uint32) (string, error) {
	return u.strtab.lookup(off)
}

// SetPointerSize overrides the pointer width used by layout computation.
// Must be called before Layout()/Order() are first invoked for the change
// to take effect, since results are cached.
func (u *Universe) SetPointerSize(n uint32) {
	u.ptrSize = n
}

// NumTypes returns the number of declared types (excluding the synthetic void).
func (u *Universe) NumTypes() int {
	return len(u.types)
}

// Get returns the type for id, Void{} for id 0, or nil for an id outside the
// universe; it never panics. Callers that accept untrusted ids should check
// against NumTypes first.
func (u *Universe) Get(id TypeID) Type {
	if id == 0 {
		return Void{}
	}
	idx := int(id) - 1
	if idx < 0 || idx >= len(u.types) {
		return nil
	}
	return u.types[idx]
}

// All returns every declared type (excluding void) in id order.
func (u *Universe) All() []Type {
	return u.types
}

// FindByName returns every declared type (any kind) with the given name.
func (u *Universe) FindByName(name string) []TypeID {
	return u.byName[name]
}

// FindByNameKind returns every declared type of the given kind with the
// given name.
func (u *Universe) FindByNameKind(kind Kind, name string) []TypeID {
	var out []TypeID
	for _, id := range u.byName[name] {
		if u.Get(id).Kind() == kind {
			out = append(out, id)
		}
	}
	return out
}

func typeName(t Type) string {
	switch v := t.(type) {
	case *Int:
		return v.Name
	case *Struct:
		return v.Name
	case *Union:
		return v.Name
	case *Enum:
		return v.Name
	case *Enum64:
		return v.Name
	case *Fwd:
		return v.Name
	case *Typedef:
		return v.Name
	case *Func:
		return v.Name
	case *Var:
		return v.Name
	case *Datasec:
		return v.Name
	case *Float:
		return v.Name
	case *DeclTag:
		return v.Name
	case *TypeTag:
		return v.Name
	default:
		return ""
	}
}

// Resolve strips Const/Volatile/Restrict/TypeTag/Typedef wrappers until it
// reaches a non-modifier kind, detecting cycles per spec.md §4.4.
func (u *Universe) Resolve(id TypeID) (TypeID, error) {
	seen := make(map[TypeID]bool)
	for {
		if seen[id] {
			return 0, fmt.Errorf("%w: at type id %d", ErrBadTypedefCycle, id)
		}
		seen[id] = true

		t := u.Get(id)
		if t == nil {
			return 0, fmt.Errorf("%w: id %d", ErrBadTypeRef, id)
		}
		next, ok := modifierTarget(t)
		if !ok {
			return id, nil
		}
		id = next
	}
}

// ResolveArrayElem behaves like Resolve but also strips Array wrappers, for
// callers that need the ultimate by-value element type.
func (u *Universe) ResolveArrayElem(id TypeID) (TypeID, error) {
	seen := make(map[TypeID]bool)
	for {
		if seen[id] {
			return 0, fmt.Errorf("%w: at type id %d", ErrBadTypedefCycle, id)
		}
		seen[id] = true

		t := u.Get(id)
		if t == nil {
			return 0, fmt.Errorf("%w: id %d", ErrBadTypeRef, id)
		}
		if arr, ok := t.(*Array); ok {
			id = arr.Type
			continue
		}
		next, ok := modifierTarget(t)
		if !ok {
			return id, nil
		}
		id = next
	}
}

// modifierTarget returns the wrapped type id for transparent modifier
// kinds, or ok=false for anything else.
func modifierTarget(t Type) (TypeID, bool) {
	switch v := t.(type) {
	case *Const:
		return v.Type, true
	case *Volatile:
		return v.Type, true
	case *Restrict:
		return v.Type, true
	case *TypeTag:
		return v.Type, true
	case *Typedef:
		return v.Type, true
	default:
		return 0, false
	}
}

// validateReferences checks spec.md §3.1's decode-time invariants that do
// not require the full graph/order/layout machinery: every referenced id is
// in range, Fwd records carry no members (structural by construction here),
// and member bit offsets are monotonic for non-bitfield struct members.
func (u *Universe) validateReferences() error {
	for _, t := range u.types {
		for _, ref := range referencedIDs(t) {
			if ref != 0 && (ref < 1 || int(ref) > len(u.types)) {
				return fmt.Errorf("%w: type id %d references out-of-range id %d", ErrBadTypeRef, t.ID(), ref)
			}
		}
		if s, ok := t.(*Struct); ok {
			if err := checkMonotonicOffsets(s.Id, s.Members, s.KFlagged); err != nil {
				return err
			}
		}
	}
	return nil
}

func checkMonotonicOffsets(id TypeID, members []Member, kflagged bool) error {
	prev := int64(-1)
	for _, m := range members {
		if m.BitfieldSize > 0 {
			// Bitfields may share or reorder offsets with their neighbors.
			continue
		}
		off := int64(m.Offset)
		if off <= prev {
			return fmt.Errorf("%w: struct id %d member '%s' offset %d is not strictly monotonic (prev %d)", ErrBadTypeRef, id, m.Name, off, prev)
		}
		prev = off
	}
	_ = kflagged
	return nil
}

// referencedIDs lists every type id a record names, for reference
// validation. This is deliberately looser than the strong/weak edge
// classification in graph.go: it exists only to catch out-of-range ids.
func referencedIDs(t Type) []TypeID {
	switch v := t.(type) {
	case *Pointer:
		return []TypeID{v.Type}
	case *Array:
		return []TypeID{v.Type, v.IndexType}
	case *Struct:
		ids := make([]TypeID, len(v.Members))
		for i, m := range v.Members {
			ids[i] = m.Type
		}
		return ids
	case *Union:
		ids := make([]TypeID, len(v.Members))
		for i, m := range v.Members {
			ids[i] = m.Type
		}
		return ids
	case *Typedef:
		return []TypeID{v.Type}
	case *Volatile:
		return []TypeID{v.Type}
	case *Const:
		return []TypeID{v.Type}
	case *Restrict:
		return []TypeID{v.Type}
	case *TypeTag:
		return []TypeID{v.Type}
	case *Func:
		return []TypeID{v.Type}
	case *FuncProto:
		ids := make([]TypeID, 0, len(v.Params)+1)
		ids = append(ids, v.Return)
		for _, p := range v.Params {
			ids = append(ids, p.Type)
		}
		return ids
	case *Var:
		return []TypeID{v.Type}
	case *Datasec:
		ids := make([]TypeID, len(v.Vars))
		for i, vi := range v.Vars {
			ids[i] = vi.Type
		}
		return ids
	case *DeclTag:
		return []TypeID{v.Type}
	default:
		return nil
	}
}
