package btf

import "errors"

// Sentinel errors for the closed taxonomy of spec.md §7. Each is wrapped
// with fmt.Errorf("%w: ...", errX) at the point of detection so callers can
// use errors.Is to recover the category and errors.As/Unwrap for detail.
var (
	ErrBadMagic        = errors.New("btf: bad magic")
	ErrBadKind         = errors.New("btf: bad kind")
	ErrBadTypeRef      = errors.New("btf: bad type reference")
	ErrBadTypedefCycle = errors.New("btf: cycle through typedefs/modifiers")
	ErrBadStrongCycle  = errors.New("btf: by-value containment cycle")
	ErrBadSize         = errors.New("btf: declared size disagrees with computed layout")
	ErrBadEnumValue    = errors.New("btf: enum value does not fit declared size")
	ErrEmitIO          = errors.New("btf: emit writer failed")
)
