package btf

import (
	"fmt"
	"io"
	"strings"
)

// EmitOptions configures EmitC.
type EmitOptions struct {
	// Lenient lets emission continue past a strong-cycle or layout anomaly
	// by annotating the offending type with a comment instead of aborting
	// the whole run (spec.md §6.4).
	Lenient bool
}

// EmitC writes a best-effort, compilable C reconstruction of the types
// selected by f (or everything, if f is nil/empty), in dependency order,
// with forward declarations inserted wherever a weak reference to a not-yet-
// defined struct/union is encountered (§4.8).
func (u *Universe) EmitC(w io.Writer, f *Filter, opts EmitOptions) error {
	closure, err := f.closure(u)
	if err != nil {
		return err
	}

	order, orderErr := u.Order()
	if orderErr != nil {
		if !opts.Lenient {
			return orderErr
		}
		if _, err := fmt.Fprintf(w, "/* ordering failed: %v */\n", orderErr); err != nil {
			return fmt.Errorf("%w: %v", ErrEmitIO, err)
		}
		order = idsInDeclOrder(u)
	}

	emitted := make(map[TypeID]bool, len(order))
	forwardDeclared := make(map[TypeID]bool)
	var pending []TypeID

	for _, id := range order {
		if id == 0 || !closure[id] {
			continue
		}
		for _, e := range u.Edges(id) {
			if e.Strong || e.Target == 0 {
				continue
			}
			tk := u.Get(e.Target).Kind()
			if (tk == KindStruct || tk == KindUnion) && !emitted[e.Target] && !forwardDeclared[e.Target] {
				forwardDeclared[e.Target] = true
				pending = append(pending, e.Target)
			}
		}

		t := u.Get(id)
		if !isDeclarable(t.Kind()) {
			continue
		}
		if anon, ok := isAnonymousComposite(t); ok && anon {
			// Anonymous structs/unions are only ever inlined at their point
			// of use; they never get their own top-level line.
			continue
		}

		for _, fw := range pending {
			if emitted[fw] {
				continue
			}
			if err := writeForward(w, u, fw); err != nil {
				return err
			}
		}
		pending = pending[:0]

		// Composites are reconciled against their declared size first. This
		// is skipped when ordering failed: Layout on a by-value cycle would
		// recurse without end.
		var declErr error
		if isComp, _ := isAnonymousComposite(t); isComp && orderErr == nil {
			_, declErr = u.Layout(id)
		}
		if declErr == nil {
			declErr = u.writeDecl(w, id, opts)
		}
		if declErr != nil {
			if !opts.Lenient {
				return declErr
			}
			if _, werr := fmt.Fprintf(w, "/* invalid type %d: %v */\n", id, declErr); werr != nil {
				return fmt.Errorf("%w: %v", ErrEmitIO, werr)
			}
		}
		emitted[id] = true
	}
	return nil
}

func idsInDeclOrder(u *Universe) []TypeID {
	ids := make([]TypeID, 0, len(u.types)+1)
	ids = append(ids, 0)
	for _, t := range u.types {
		ids = append(ids, t.ID())
	}
	return ids
}

func isAnonymousComposite(t Type) (isComposite bool, anon bool) {
	switch v := t.(type) {
	case *Struct:
		return true, v.Name == ""
	case *Union:
		return true, v.Name == ""
	}
	return false, false
}

func writeForward(w io.Writer, u *Universe, id TypeID) error {
	t := u.Get(id)
	var kw, name string
	switch v := t.(type) {
	case *Struct:
		kw, name = "struct", v.Name
	case *Union:
		kw, name = "union", v.Name
	default:
		return nil
	}
	if name == "" {
		return nil
	}
	if _, err := fmt.Fprintf(w, "%s %s;\n\n", kw, name); err != nil {
		return fmt.Errorf("%w: %v", ErrEmitIO, err)
	}
	return nil
}

// writeDecl renders the top-level C declaration for a single declarable id.
func (u *Universe) writeDecl(w io.Writer, id TypeID, opts EmitOptions) error {
	t := u.Get(id)
	switch v := t.(type) {
	case *Struct:
		return u.writeComposite(w, "struct", v.Name, v.Members)
	case *Union:
		return u.writeComposite(w, "union", v.Name, v.Members)
	case *Enum:
		return writeEnum(w, v.Name, v.Values)
	case *Enum64:
		return writeEnum64(w, v.Name, v.Values)
	case *Fwd:
		_, err := fmt.Fprintf(w, "%s %s;\n\n", v.Kind_.String(), v.Name)
		return wrapIOErr(err)
	case *Typedef:
		decl, err := u.declarator(v.Type, v.Name, nil)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintf(w, "typedef %s;\n\n", decl)
		return wrapIOErr(err)
	case *Func:
		decl, err := u.declarator(v.Type, v.Name, nil)
		if err != nil {
			return err
		}
		prefix := ""
		switch v.Linkage {
		case LinkageExtern:
			prefix = "extern "
		case LinkageStatic:
			prefix = "static "
		}
		_, err = fmt.Fprintf(w, "%s%s;\n\n", prefix, decl)
		return wrapIOErr(err)
	case *Var:
		decl, err := u.declarator(v.Type, v.Name, nil)
		if err != nil {
			return err
		}
		prefix := ""
		if v.Linkage == LinkageExtern {
			prefix = "extern "
		} else if v.Linkage == LinkageStatic {
			prefix = "static "
		}
		_, err = fmt.Fprintf(w, "%s%s;\n\n", prefix, decl)
		return wrapIOErr(err)
	case *Datasec:
		_, err := fmt.Fprintf(w, "/* datasec '%s' size=%d */\n\n", v.Name, v.Size)
		return wrapIOErr(err)
	default:
		return nil
	}
}

func wrapIOErr(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %v", ErrEmitIO, err)
}

func (u *Universe) writeComposite(w io.Writer, kw, name string, members []Member) error {
	body, err := u.renderCompositeBody(kw, members)
	if err != nil {
		return err
	}
	tag := name
	if tag != "" {
		tag = " " + tag
	}
	_, err = fmt.Fprintf(w, "%s%s %s;\n\n", kw, tag, body)
	return wrapIOErr(err)
}

func (u *Universe) renderCompositeBody(kw string, members []Member) (string, error) {
	var b strings.Builder
	b.WriteString("{\n")
	for _, m := range members {
		decl, err := u.renderMember(m)
		if err != nil {
			return "", err
		}
		b.WriteString("\t")
		b.WriteString(decl)
		b.WriteString(";\n")
	}
	b.WriteString("}")
	return b.String(), nil
}

func (u *Universe) renderMember(m Member) (string, error) {
	name := m.Name
	suffix := ""
	if m.BitfieldSize > 0 {
		suffix = fmt.Sprintf(" : %d", m.BitfieldSize)
	}
	decl, err := u.declarator(m.Type, name+suffix, nil)
	if err != nil {
		return "", err
	}
	return decl, nil
}

func writeEnum(w io.Writer, name string, values []EnumValue) error {
	tag := name
	if tag != "" {
		tag = " " + tag
	}
	var b strings.Builder
	fmt.Fprintf(&b, "enum%s {\n", tag)
	for i, v := range values {
		sep := ","
		if i == len(values)-1 {
			sep = ""
		}
		fmt.Fprintf(&b, "\t%s = %d%s\n", v.Name, v.Value, sep)
	}
	b.WriteString("};\n\n")
	_, err := io.WriteString(w, b.String())
	return wrapIOErr(err)
}

func writeEnum64(w io.Writer, name string, values []EnumValue64) error {
	tag := name
	if tag != "" {
		tag = " " + tag
	}
	var b strings.Builder
	fmt.Fprintf(&b, "enum%s {\n", tag)
	for i, v := range values {
		sep := ","
		if i == len(values)-1 {
			sep = ""
		}
		fmt.Fprintf(&b, "\t%s = %d%s\n", v.Name, v.Value(), sep)
	}
	b.WriteString("};\n\n")
	_, err := io.WriteString(w, b.String())
	return wrapIOErr(err)
}

// declarator recursively builds a C declarator for id, wrapping decl (which
// starts as the bare identifier, optionally with a bitfield suffix) per the
// usual pointer/array/function-pointer composition rules, and collecting
// const/volatile/restrict qualifiers along the way.
func (u *Universe) declarator(id TypeID, decl string, quals []string) (string, error) {
	t := u.Get(id)
	if t == nil {
		return "", fmt.Errorf("%w: id %d", ErrBadTypeRef, id)
	}

	switch v := t.(type) {
	case Void:
		return joinBase(withQuals("void", quals), decl), nil
	case *Int:
		return joinBase(withQuals(v.Name, quals), decl), nil
	case *Float:
		return joinBase(withQuals(v.Name, quals), decl), nil
	case *Enum:
		return joinBase(withQuals(enumTag(v.Name), quals), decl), nil
	case *Enum64:
		return joinBase(withQuals(enumTag(v.Name), quals), decl), nil
	case *Fwd:
		return joinBase(withQuals(v.Kind_.String()+" "+v.Name, quals), decl), nil
	case *Typedef:
		return joinBase(withQuals(v.Name, quals), decl), nil

	case *Struct:
		base, err := u.compositeBase(v.Name, "struct", v.Members)
		if err != nil {
			return "", err
		}
		return joinBase(withQuals(base, quals), decl), nil
	case *Union:
		base, err := u.compositeBase(v.Name, "union", v.Members)
		if err != nil {
			return "", err
		}
		return joinBase(withQuals(base, quals), decl), nil

	case *Const:
		return u.qualify("const", v.Type, decl, quals)
	case *Volatile:
		return u.qualify("volatile", v.Type, decl, quals)
	case *Restrict:
		return u.qualify("restrict", v.Type, decl, quals)
	case *TypeTag:
		return u.declarator(v.Type, decl, quals)

	case *Pointer:
		return u.declarator(v.Type, "*"+decl, nil)

	case *Array:
		d := decl
		if needsParens(d) {
			d = "(" + d + ")"
		}
		d = fmt.Sprintf("%s[%d]", d, v.Nelems)
		return u.declarator(v.Type, d, quals)

	case *FuncProto:
		params := u.renderParams(v.Params)
		d := decl
		if needsParens(d) {
			d = "(" + d + ")"
		}
		d = d + "(" + params + ")"
		return u.declarator(v.Return, d, quals)

	default:
		return "", fmt.Errorf("%w: kind %s cannot appear in a declarator", ErrBadKind, t.Kind())
	}
}

// qualify handles a Const/Volatile/Restrict wrapper. When it directly wraps
// a pointer, the qualifier binds to the pointer itself ("T *const name");
// otherwise it qualifies the base type ("const T name").
func (u *Universe) qualify(word string, inner TypeID, decl string, quals []string) (string, error) {
	if _, ok := u.Get(inner).(*Pointer); ok {
		return u.declarator(inner, word+" "+decl, quals)
	}
	return u.declarator(inner, decl, append(append([]string{}, quals...), word))
}

func withQuals(base string, quals []string) string {
	if len(quals) == 0 {
		return base
	}
	return strings.Join(quals, " ") + " " + base
}

func joinBase(base, decl string) string {
	if decl == "" {
		return base
	}
	return base + " " + decl
}

func needsParens(decl string) bool {
	return strings.HasPrefix(decl, "*")
}

func enumTag(name string) string {
	if name == "" {
		return "enum"
	}
	return "enum " + name
}

func (u *Universe) compositeBase(name, kw string, members []Member) (string, error) {
	if name != "" {
		return kw + " " + name, nil
	}
	body, err := u.renderCompositeBody(kw, members)
	if err != nil {
		return "", err
	}
	return kw + " " + body, nil
}

func (u *Universe) renderParams(params []FuncParam) string {
	if len(params) == 0 {
		return "void"
	}
	parts := make([]string, len(params))
	for i, p := range params {
		decl, err := u.declarator(p.Type, p.Name, nil)
		if err != nil {
			parts[i] = fmt.Sprintf("/* invalid param %d */", i)
			continue
		}
		parts[i] = decl
	}
	return strings.Join(parts, ", ")
}
