package btf

import (
	"encoding/binary"
	"fmt"
)

// btfMagic is the canonical (little-endian-on-the-wire) BTF magic value.
const btfMagic = 0xeB9F

// header mirrors struct btf_header from include/uapi/linux/btf.h. All
// offsets are relative to the byte immediately following HdrLen bytes of
// header (i.e. the base for TypeOff/StrOff is len(header-bytes), not 0).
type header struct {
	Magic   uint16
	Version uint8
	Flags   uint8
	HdrLen  uint32
	TypeOff uint32
	TypeLen uint32
	StrOff  uint32
	StrLen  uint32
}

const headerSize = 2 + 1 + 1 + 4 + 4 + 4 + 4 + 4 // 24 bytes

// detectByteOrder inspects the raw magic halfword and returns the byte
// order the rest of the stream must be decoded with. Per spec.md §4.3, if
// the magic reads as 0x9FEB the stream is big-endian.
func detectByteOrder(data []byte) (binary.ByteOrder, error) {
	if len(data) < 2 {
		return nil, fmt.Errorf("%w: stream too short for magic", ErrTruncated)
	}
	le := binary.LittleEndian.Uint16(data)
	if le == btfMagic {
		return binary.LittleEndian, nil
	}
	be := binary.BigEndian.Uint16(data)
	if be == btfMagic {
		return binary.BigEndian, nil
	}
	return nil, fmt.Errorf("%w: neither byte order yields 0x%04x (got LE=0x%04x BE=0x%04x)", ErrBadMagic, btfMagic, le, be)
}

func readHeader(r *reader) (header, error) {
	var h header
	var err error
	if h.Magic, err = r.readU16(); err != nil {
		return h, err
	}
	if h.Magic != btfMagic {
		return h, fmt.Errorf("%w: got 0x%04x want 0x%04x", ErrBadMagic, h.Magic, btfMagic)
	}
	if h.Version, err = r.readU8(); err != nil {
		return h, err
	}
	if h.Version != 1 {
		return h, fmt.Errorf("%w: unsupported version %d", ErrBadMagic, h.Version)
	}
	if h.Flags, err = r.readU8(); err != nil {
		return h, err
	}
	if h.HdrLen, err = r.readU32(); err != nil {
		return h, err
	}
	if h.TypeOff, err = r.readU32(); err != nil {
		return h, err
	}
	if h.TypeLen, err = r.readU32(); err != nil {
		return h, err
	}
	if h.StrOff, err = r.readU32(); err != nil {
		return h, err
	}
	if h.StrLen, err = r.readU32(); err != nil {
		return h, err
	}
	return h, nil
}

// unpackInfo unpacks the btf_type.info word per spec.md §4.3:
// {vlen:16, kind:5, reserved:7, kind_flag:1, padding:3}.
func unpackInfo(info uint32) (vlen uint16, kind Kind, kindFlag bool) {
	vlen = uint16(info & 0xFFFF)
	kind = Kind((info >> 16) & 0x1F)
	kindFlag = (info>>28)&0x1 != 0
	return
}

// Parse decodes a .BTF section into a Universe. It is a pure function of
// btfBytes: identical input always yields an identical Universe (spec.md §5).
func Parse(btfBytes []byte) (*Universe, error) {
	order, err := detectByteOrder(btfBytes)
	if err != nil {
		return nil, err
	}

	r := newReader(btfBytes, order)
	hdr, err := readHeader(r)
	if err != nil {
		return nil, fmt.Errorf("header: %w", err)
	}

	base := int(hdr.HdrLen)
	strBytes, err := r.subslice(base+int(hdr.StrOff), int(hdr.StrLen))
	if err != nil {
		return nil, fmt.Errorf("string section: %w", err)
	}
	strtab := newStringTable(strBytes)

	typeBytes, err := r.subslice(base+int(hdr.TypeOff), int(hdr.TypeLen))
	if err != nil {
		return nil, fmt.Errorf("type section: %w", err)
	}

	tr := newReader(typeBytes, order)
	var types []Type // types[0] corresponds to id 1, etc. (no entry for id 0)
	for tr.remaining() > 0 {
		id := TypeID(len(types) + 1)
		t, err := decodeOneType(tr, strtab, id)
		if err != nil {
			return nil, fmt.Errorf("type id %d: %w", id, err)
		}
		types = append(types, t)
	}

	u := newUniverse(types, strtab)
	if err := u.validateReferences(); err != nil {
		return nil, err
	}
	return u, nil
}

func decodeOneType(r *reader, strtab *stringTable, id TypeID) (Type, error) {
	nameOff, err := r.readU32()
	if err != nil {
		return nil, err
	}
	info, err := r.readU32()
	if err != nil {
		return nil, err
	}
	sizeOrType, err := r.readU32()
	if err != nil {
		return nil, err
	}

	vlen, kind, kindFlag := unpackInfo(info)
	name, err := strtab.lookup(nameOff)
	if err != nil {
		return nil, err
	}

	switch kind {
	case KindInt:
		return decodeInt(r, id, name, sizeOrType)
	case KindPointer:
		return &Pointer{Id: id, Type: TypeID(sizeOrType)}, nil
	case KindArray:
		return decodeArray(r, id)
	case KindStruct:
		return decodeStruct(r, strtab, id, name, sizeOrType, vlen, kindFlag)
	case KindUnion:
		return decodeUnion(r, strtab, id, name, sizeOrType, vlen, kindFlag)
	case KindEnum:
		return decodeEnum(r, strtab, id, name, sizeOrType, vlen, kindFlag)
	case KindFwd:
		k := FwdStruct
		if kindFlag {
			k = FwdUnion
		}
		return &Fwd{Id: id, Name: name, Kind_: k}, nil
	case KindTypedef:
		return &Typedef{Id: id, Name: name, Type: TypeID(sizeOrType)}, nil
	case KindVolatile:
		return &Volatile{Id: id, Type: TypeID(sizeOrType)}, nil
	case KindConst:
		return &Const{Id: id, Type: TypeID(sizeOrType)}, nil
	case KindRestrict:
		return &Restrict{Id: id, Type: TypeID(sizeOrType)}, nil
	case KindFunc:
		return &Func{Id: id, Name: name, Type: TypeID(sizeOrType), Linkage: Linkage(vlen)}, nil
	case KindFuncProto:
		return decodeFuncProto(r, strtab, id, sizeOrType, vlen)
	case KindVar:
		return decodeVar(r, id, name, sizeOrType)
	case KindDatasec:
		return decodeDatasec(r, id, name, sizeOrType, vlen)
	case KindFloat:
		return &Float{Id: id, Name: name, Size: sizeOrType}, nil
	case KindDeclTag:
		return decodeDeclTag(r, id, name, sizeOrType)
	case KindTypeTag:
		return &TypeTag{Id: id, Name: name, Type: TypeID(sizeOrType)}, nil
	case KindEnum64:
		return decodeEnum64(r, strtab, id, name, sizeOrType, vlen, kindFlag)
	default:
		return nil, fmt.Errorf("%w: kind %d", ErrBadKind, kind)
	}
}

func decodeInt(r *reader, id TypeID, name string, size uint32) (*Int, error) {
	raw, err := r.readU32()
	if err != nil {
		return nil, err
	}
	encoding := IntEncoding((raw >> 24) & 0x0f)
	offset := uint8((raw >> 16) & 0xff)
	bits := uint8(raw & 0xff)
	return &Int{Id: id, Name: name, Size: size, Encoding: encoding, Offset: offset, Bits: bits}, nil
}

func decodeArray(r *reader, id TypeID) (*Array, error) {
	elem, err := r.readU32()
	if err != nil {
		return nil, err
	}
	idx, err := r.readU32()
	if err != nil {
		return nil, err
	}
	n, err := r.readU32()
	if err != nil {
		return nil, err
	}
	return &Array{Id: id, Type: TypeID(elem), IndexType: TypeID(idx), Nelems: n}, nil
}

func decodeMembers(r *reader, strtab *stringTable, vlen uint16, kindFlag bool) ([]Member, error) {
	members := make([]Member, 0, vlen)
	for i := uint16(0); i < vlen; i++ {
		nameOff, err := r.readU32()
		if err != nil {
			return nil, err
		}
		typ, err := r.readU32()
		if err != nil {
			return nil, err
		}
		off, err := r.readU32()
		if err != nil {
			return nil, err
		}
		name, err := strtab.lookup(nameOff)
		if err != nil {
			return nil, err
		}
		m := Member{Name: name, Type: TypeID(typ)}
		if kindFlag {
			m.BitfieldSize = uint8(off >> 24)
			m.Offset = off & 0x00ffffff
		} else {
			m.Offset = off
		}
		members = append(members, m)
	}
	return members, nil
}

func decodeStruct(r *reader, strtab *stringTable, id TypeID, name string, size uint32, vlen uint16, kindFlag bool) (*Struct, error) {
	members, err := decodeMembers(r, strtab, vlen, kindFlag)
	if err != nil {
		return nil, err
	}
	return &Struct{Id: id, Name: name, Size: size, Members: members, KFlagged: kindFlag}, nil
}

func decodeUnion(r *reader, strtab *stringTable, id TypeID, name string, size uint32, vlen uint16, kindFlag bool) (*Union, error) {
	members, err := decodeMembers(r, strtab, vlen, kindFlag)
	if err != nil {
		return nil, err
	}
	return &Union{Id: id, Name: name, Size: size, Members: members, KFlagged: kindFlag}, nil
}

func decodeEnum(r *reader, strtab *stringTable, id TypeID, name string, size uint32, vlen uint16, kindFlag bool) (*Enum, error) {
	values := make([]EnumValue, 0, vlen)
	for i := uint16(0); i < vlen; i++ {
		nameOff, err := r.readU32()
		if err != nil {
			return nil, err
		}
		val, err := r.readI32()
		if err != nil {
			return nil, err
		}
		vname, err := strtab.lookup(nameOff)
		if err != nil {
			return nil, err
		}
		if err := checkEnumFits(int64(val), size, kindFlag); err != nil {
			return nil, err
		}
		values = append(values, EnumValue{Name: vname, Value: val})
	}
	return &Enum{Id: id, Name: name, Size: size, Signed: kindFlag, Values: values}, nil
}

func decodeEnum64(r *reader, strtab *stringTable, id TypeID, name string, size uint32, vlen uint16, kindFlag bool) (*Enum64, error) {
	values := make([]EnumValue64, 0, vlen)
	for i := uint16(0); i < vlen; i++ {
		nameOff, err := r.readU32()
		if err != nil {
			return nil, err
		}
		lo, err := r.readU32()
		if err != nil {
			return nil, err
		}
		hi, err := r.readU32()
		if err != nil {
			return nil, err
		}
		vname, err := strtab.lookup(nameOff)
		if err != nil {
			return nil, err
		}
		values = append(values, EnumValue64{Name: vname, ValueLo: lo, ValueHi: hi})
	}
	return &Enum64{Id: id, Name: name, Size: size, Signed: kindFlag, Values: values}, nil
}

// checkEnumFits validates spec.md's invariant that an enum value fits its
// declared byte size.
func checkEnumFits(val int64, size uint32, signed bool) error {
	if size >= 8 {
		return nil
	}
	bits := size * 8
	if signed {
		lo := -(int64(1) << (bits - 1))
		hi := int64(1)<<(bits-1) - 1
		if val < lo || val > hi {
			return fmt.Errorf("%w: value %d does not fit signed %d-byte enum", ErrBadEnumValue, val, size)
		}
		return nil
	}
	if val < 0 || uint64(val) > (uint64(1)<<bits)-1 {
		return fmt.Errorf("%w: value %d does not fit unsigned %d-byte enum", ErrBadEnumValue, val, size)
	}
	return nil
}

func decodeFuncProto(r *reader, strtab *stringTable, id TypeID, ret uint32, vlen uint16) (*FuncProto, error) {
	params := make([]FuncParam, 0, vlen)
	for i := uint16(0); i < vlen; i++ {
		nameOff, err := r.readU32()
		if err != nil {
			return nil, err
		}
		typ, err := r.readU32()
		if err != nil {
			return nil, err
		}
		name, err := strtab.lookup(nameOff)
		if err != nil {
			return nil, err
		}
		params = append(params, FuncParam{Name: name, Type: TypeID(typ)})
	}
	return &FuncProto{Id: id, Return: TypeID(ret), Params: params}, nil
}

func decodeVar(r *reader, id TypeID, name string, typ uint32) (*Var, error) {
	linkage, err := r.readU32()
	if err != nil {
		return nil, err
	}
	return &Var{Id: id, Name: name, Type: TypeID(typ), Linkage: Linkage(linkage)}, nil
}

func decodeDatasec(r *reader, id TypeID, name string, size uint32, vlen uint16) (*Datasec, error) {
	vars := make([]VarSecinfo, 0, vlen)
	for i := uint16(0); i < vlen; i++ {
		typ, err := r.readU32()
		if err != nil {
			return nil, err
		}
		off, err := r.readU32()
		if err != nil {
			return nil, err
		}
		sz, err := r.readU32()
		if err != nil {
			return nil, err
		}
		vars = append(vars, VarSecinfo{Type: TypeID(typ), Offset: off, Size: sz})
	}
	return &Datasec{Id: id, Name: name, Size: size, Vars: vars}, nil
}

func decodeDeclTag(r *reader, id TypeID, name string, typ uint32) (*DeclTag, error) {
	idx, err := r.readI32()
	if err != nil {
		return nil, err
	}
	return &DeclTag{Id: id, Name: name, Type: TypeID(typ), ComponentIdx: idx}, nil
}
