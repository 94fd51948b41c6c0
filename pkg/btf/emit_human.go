package btf

import (
	"fmt"
	"io"
)

// DumpHuman writes a one-line-per-declaration summary of every type selected
// by f, in id order, in the format described by spec.md §4.8's example
// ("[12] STRUCT 'foo' size=16 vlen=2" followed by indented member lines).
// This mirrors the teacher's flat TypeInfo dump rather than the full C
// reconstruction, and does not require Order()/Layout() to succeed: it is
// the format an operator reaches for first, when the BTF itself might be
// malformed and a compilable translation isn't the goal.
func (u *Universe) DumpHuman(w io.Writer, f *Filter) error {
	ids, err := f.selected(u)
	if err != nil {
		return err
	}
	for _, id := range ids {
		t := u.Get(id)
		if t == nil {
			continue
		}
		if _, err := fmt.Fprintf(w, "[%d] %s\n", id, t.String()); err != nil {
			return fmt.Errorf("%w: %v", ErrEmitIO, err)
		}
		if err := dumpMembers(w, t); err != nil {
			return err
		}
	}
	return nil
}

func dumpMembers(w io.Writer, t Type) error {
	var members []Member
	switch v := t.(type) {
	case *Struct:
		members = v.Members
	case *Union:
		members = v.Members
	}
	for _, m := range members {
		if m.BitfieldSize > 0 {
			if _, err := fmt.Fprintf(w, "\t'%s' type_id=%d bits_offset=%d bitfield_size=%d\n",
				m.Name, m.Type, m.Offset, m.BitfieldSize); err != nil {
				return fmt.Errorf("%w: %v", ErrEmitIO, err)
			}
			continue
		}
		if _, err := fmt.Fprintf(w, "\t'%s' type_id=%d bits_offset=%d\n", m.Name, m.Type, m.Offset); err != nil {
			return fmt.Errorf("%w: %v", ErrEmitIO, err)
		}
	}
	if e, ok := t.(*Enum); ok {
		for _, v := range e.Values {
			if _, err := fmt.Fprintf(w, "\t'%s' val=%d\n", v.Name, v.Value); err != nil {
				return fmt.Errorf("%w: %v", ErrEmitIO, err)
			}
		}
	}
	if e, ok := t.(*Enum64); ok {
		for _, v := range e.Values {
			if _, err := fmt.Fprintf(w, "\t'%s' val=%d\n", v.Name, v.Value()); err != nil {
				return fmt.Errorf("%w: %v", ErrEmitIO, err)
			}
		}
	}
	return nil
}
