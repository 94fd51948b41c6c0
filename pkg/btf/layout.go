package btf

import "fmt"

// Layout is the computed size and alignment, in bytes, of a type.
type Layout struct {
	Size  uint32
	Align uint32
}

// Layout computes (and caches) the size/alignment of id, reconciling
// composite types against their BTF-declared size per spec.md §4.7. A
// mismatch that cannot be explained by either natural or packed layout is
// reported as ErrBadSize; the caller decides (via lenient mode in the C
// emitter) whether to treat that as fatal.
func (u *Universe) Layout(id TypeID) (Layout, error) {
	if l, ok := u.layouts[id]; ok {
		return l, nil
	}
	if err, ok := u.layoutErrs[id]; ok {
		return Layout{}, err
	}

	l, err := u.computeLayout(id)
	if err != nil {
		u.layoutErrs[id] = err
		return Layout{}, err
	}
	u.layouts[id] = l
	return l, nil
}

func clampAlign(size uint32) uint32 {
	switch {
	case size == 0:
		return 1
	case size >= 8:
		return 8
	default:
		return size
	}
}

func (u *Universe) computeLayout(id TypeID) (Layout, error) {
	t := u.Get(id)
	switch v := t.(type) {
	case Void:
		return Layout{Size: 0, Align: 1}, nil

	case *Int:
		return Layout{Size: v.Size, Align: clampAlign(v.Size)}, nil

	case *Float:
		return Layout{Size: v.Size, Align: clampAlign(v.Size)}, nil

	case *Enum:
		return Layout{Size: v.Size, Align: clampAlign(v.Size)}, nil

	case *Enum64:
		return Layout{Size: v.Size, Align: clampAlign(v.Size)}, nil

	case *Pointer:
		return Layout{Size: u.ptrSize, Align: u.ptrSize}, nil

	case *Array:
		elem, err := u.Layout(v.Type)
		if err != nil {
			return Layout{}, fmt.Errorf("array id %d: %w", id, err)
		}
		return Layout{Size: elem.Size * v.Nelems, Align: elem.Align}, nil

	case *Typedef:
		return u.Layout(v.Type)
	case *Volatile:
		return u.Layout(v.Type)
	case *Const:
		return u.Layout(v.Type)
	case *Restrict:
		return u.Layout(v.Type)
	case *TypeTag:
		return u.Layout(v.Type)

	case *Struct:
		return u.compositeLayout(id, v.Name, v.Size, v.Members, false)
	case *Union:
		return u.compositeLayout(id, v.Name, v.Size, v.Members, true)

	case *Fwd:
		// Incomplete type: size/alignment are unknowable from here. Only
		// reachable directly (not through a Ptr, which never calls Layout
		// on its referent), so this should not normally participate in a
		// real size computation.
		return Layout{Size: 0, Align: 1}, nil

	case *Func, *FuncProto, *Var, *Datasec, *DeclTag:
		return Layout{Size: 0, Align: 1}, nil

	default:
		return Layout{Size: 0, Align: 1}, nil
	}
}

// compositeLayout validates a Struct/Union's declared size against its
// members' offsets and sizes. Bitfield members are checked only for gross
// overrun (their exact bit packing is trusted from BTF, since kflagged
// composites encode bit width explicitly rather than requiring inference).
func (u *Universe) compositeLayout(id TypeID, name string, declared uint32, members []Member, isUnion bool) (Layout, error) {
	var maxAlign uint32 = 1
	var maxEndByte uint32

	for _, m := range members {
		ml, err := u.Layout(m.Type)
		if err != nil {
			return Layout{}, fmt.Errorf("composite id %d member '%s': %w", id, m.Name, err)
		}
		if ml.Align > maxAlign {
			maxAlign = ml.Align
		}

		var endByte uint32
		if m.BitfieldSize > 0 {
			endBit := m.Offset + uint32(m.BitfieldSize)
			endByte = (endBit + 7) / 8
		} else {
			startByte := m.Offset / 8
			endByte = startByte + ml.Size
		}
		if endByte > maxEndByte {
			maxEndByte = endByte
		}
		if endByte > declared {
			return Layout{}, fmt.Errorf("%w: %s id %d member '%s' ends at byte %d past declared size %d",
				ErrBadSize, kindWord(isUnion), id, m.Name, endByte, declared)
		}
	}

	natural := roundUp(maxEndByte, maxAlign)
	if declared == natural {
		return Layout{Size: declared, Align: maxAlign}, nil
	}
	// Packed: no trailing padding, but still at least as large as the
	// widest member's own footprint.
	if declared == maxEndByte {
		return Layout{Size: declared, Align: 1}, nil
	}
	return Layout{}, fmt.Errorf("%w: %s '%s' (id %d) declares size %d, computed natural %d / packed %d",
		ErrBadSize, kindWord(isUnion), name, id, declared, natural, maxEndByte)
}

func kindWord(isUnion bool) string {
	if isUnion {
		return "union"
	}
	return "struct"
}

func roundUp(n, align uint32) uint32 {
	if align <= 1 {
		return n
	}
	rem := n % align
	if rem == 0 {
		return n
	}
	return n + (align - rem)
}
