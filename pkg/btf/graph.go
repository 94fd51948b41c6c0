package btf

// Edge is one outgoing reference from a type to another, labeled per the
// strength rules of spec.md §3.2.
type Edge struct {
	Target TypeID
	Strong bool
}

// isDeclarable reports whether a kind is ever rendered as its own top-level
// C declaration. Int/Float/Ptr/Array/Const/Volatile/Restrict/TypeTag/
// FuncProto/DeclTag are always inlined at their point of use; they still
// occupy a position in the topological order (so their edges can trigger
// forward declarations and participate in cycle detection) but never emit
// standalone text.
func isDeclarable(k Kind) bool {
	switch k {
	case KindStruct, KindUnion, KindEnum, KindEnum64, KindFwd,
		KindTypedef, KindFunc, KindVar, KindDatasec:
		return true
	default:
		return false
	}
}

// edgesOf computes the direct (one-hop, unresolved) outgoing edges of a
// type per the §3.2 table. Strength is classified purely by the source
// node's own kind: a Ptr's edge is always weak, a Struct/Union member's
// edge is always strong, and so on. Multi-hop strength (e.g. "does this
// struct need type X fully defined") falls out of transitive closure over
// these direct edges during ordering (order.go) rather than being computed
// here by walking chains by hand.
func edgesOf(t Type) []Edge {
	switch v := t.(type) {
	case *Pointer:
		return []Edge{{Target: v.Type, Strong: false}}

	case *Array:
		// IndexType is decoded but ignored for both layout and ordering
		// purposes (spec.md §3.1, §4.4).
		return []Edge{{Target: v.Type, Strong: true}}

	case *Struct:
		edges := make([]Edge, len(v.Members))
		for i, m := range v.Members {
			edges[i] = Edge{Target: m.Type, Strong: true}
		}
		return edges

	case *Union:
		edges := make([]Edge, len(v.Members))
		for i, m := range v.Members {
			edges[i] = Edge{Target: m.Type, Strong: true}
		}
		return edges

	case *Const:
		return []Edge{{Target: v.Type, Strong: true}}
	case *Volatile:
		return []Edge{{Target: v.Type, Strong: true}}
	case *Restrict:
		return []Edge{{Target: v.Type, Strong: true}}
	case *TypeTag:
		return []Edge{{Target: v.Type, Strong: true}}
	case *Typedef:
		return []Edge{{Target: v.Type, Strong: true}}

	case *Func:
		return []Edge{{Target: v.Type, Strong: true}}

	case *FuncProto:
		edges := make([]Edge, 0, len(v.Params)+1)
		edges = append(edges, Edge{Target: v.Return, Strong: false})
		for _, p := range v.Params {
			edges = append(edges, Edge{Target: p.Type, Strong: false})
		}
		return edges

	case *Var:
		return []Edge{{Target: v.Type, Strong: true}}

	case *Datasec:
		edges := make([]Edge, len(v.Vars))
		for i, vi := range v.Vars {
			edges[i] = Edge{Target: vi.Type, Strong: true}
		}
		return edges

	case *DeclTag:
		return []Edge{{Target: v.Type, Strong: true}}

	case Void, *Fwd, *Int, *Float, *Enum, *Enum64:
		return nil

	default:
		return nil
	}
}

// Edges returns the cached outgoing edges of id.
func (u *Universe) Edges(id TypeID) []Edge {
	if u.edges == nil {
		u.edges = make(map[TypeID][]Edge, len(u.types)+1)
	}
	if e, ok := u.edges[id]; ok {
		return e
	}
	e := edgesOf(u.Get(id))
	u.edges[id] = e
	return e
}
