package btf

import "fmt"

// Kind is the variant tag of a BTF type record. The set is closed; adding a
// new BTF kind is an additive change handled by the type switches in
// decode.go, graph.go, layout.go, and the emitters.
type Kind uint8

// Published BTF_KIND_* on-disk values (include/uapi/linux/btf.h).
const (
	KindUnknown   Kind = 0
	KindInt       Kind = 1
	KindPointer   Kind = 2
	KindArray     Kind = 3
	KindStruct    Kind = 4
	KindUnion     Kind = 5
	KindEnum      Kind = 6
	KindFwd       Kind = 7
	KindTypedef   Kind = 8
	KindVolatile  Kind = 9
	KindConst     Kind = 10
	KindRestrict  Kind = 11
	KindFunc      Kind = 12
	KindFuncProto Kind = 13
	KindVar       Kind = 14
	KindDatasec   Kind = 15
	KindFloat     Kind = 16
	KindDeclTag   Kind = 17
	KindTypeTag   Kind = 18
	KindEnum64    Kind = 19

	kindMax = KindEnum64
)

func (k Kind) String() string {
	switch k {
	case KindUnknown:
		return "UNKNOWN"
	case KindInt:
		return "INT"
	case KindPointer:
		return "PTR"
	case KindArray:
		return "ARRAY"
	case KindStruct:
		return "STRUCT"
	case KindUnion:
		return "UNION"
	case KindEnum:
		return "ENUM"
	case KindFwd:
		return "FWD"
	case KindTypedef:
		return "TYPEDEF"
	case KindVolatile:
		return "VOLATILE"
	case KindConst:
		return "CONST"
	case KindRestrict:
		return "RESTRICT"
	case KindFunc:
		return "FUNC"
	case KindFuncProto:
		return "FUNC_PROTO"
	case KindVar:
		return "VAR"
	case KindDatasec:
		return "DATASEC"
	case KindFloat:
		return "FLOAT"
	case KindDeclTag:
		return "DECL_TAG"
	case KindTypeTag:
		return "TYPE_TAG"
	case KindEnum64:
		return "ENUM64"
	default:
		return fmt.Sprintf("KIND(%d)", uint8(k))
	}
}

// isModifier reports whether the kind is a transparent, single-child
// modifier per spec.md §3.2 (Const/Volatile/Restrict/Typedef/TypeTag).
func (k Kind) isModifier() bool {
	switch k {
	case KindConst, KindVolatile, KindRestrict, KindTypedef, KindTypeTag:
		return true
	default:
		return false
	}
}
