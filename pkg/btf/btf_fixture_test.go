package btf

import "encoding/binary"

// btfBuilder assembles a synthetic .BTF byte stream one type record at a
// time, mirroring decode.go's record layouts exactly. It exists only for
// tests: production code always starts from real bytes via Parse.
type btfBuilder struct {
	order  binary.ByteOrder
	types  []byte
	strs   []byte
	strOff map[string]uint32
	nextID uint32
}

func newBTFBuilder() *btfBuilder {
	return newBTFBuilderOrder(binary.LittleEndian)
}

func newBTFBuilderOrder(order binary.ByteOrder) *btfBuilder {
	return &btfBuilder{
		order:  order,
		strs:   []byte{0},
		strOff: map[string]uint32{"": 0},
		nextID: 1,
	}
}

func (b *btfBuilder) str(s string) uint32 {
	if off, ok := b.strOff[s]; ok {
		return off
	}
	off := uint32(len(b.strs))
	b.strs = append(b.strs, []byte(s)...)
	b.strs = append(b.strs, 0)
	b.strOff[s] = off
	return off
}

func (b *btfBuilder) putU32(v uint32) {
	var buf [4]byte
	b.order.PutUint32(buf[:], v)
	b.types = append(b.types, buf[:]...)
}

func (b *btfBuilder) putI32(v int32) { b.putU32(uint32(v)) }

// emit writes the common 12-byte prefix and advances the id counter.
func (b *btfBuilder) emit(name string, kind Kind, vlen uint16, kindFlag bool, sizeOrType uint32) TypeID {
	id := TypeID(b.nextID)
	b.nextID++
	info := uint32(vlen) | uint32(kind)<<16
	if kindFlag {
		info |= 1 << 28
	}
	b.putU32(b.str(name))
	b.putU32(info)
	b.putU32(sizeOrType)
	return id
}

func (b *btfBuilder) addInt(name string, size uint32, enc IntEncoding, offset, bits uint8) TypeID {
	id := b.emit(name, KindInt, 0, false, size)
	b.putU32(uint32(enc)<<24 | uint32(offset)<<16 | uint32(bits))
	return id
}

func (b *btfBuilder) addPointer(target TypeID) TypeID {
	return b.emit("", KindPointer, 0, false, uint32(target))
}

func (b *btfBuilder) addArray(elem, index TypeID, nelems uint32) TypeID {
	id := b.emit("", KindArray, 0, false, 0)
	b.putU32(uint32(elem))
	b.putU32(uint32(index))
	b.putU32(nelems)
	return id
}

type memberSpec struct {
	Name         string
	Type         TypeID
	Offset       uint32
	BitfieldSize uint8
}

func (b *btfBuilder) putMembers(members []memberSpec, kflag bool) {
	for _, m := range members {
		b.putU32(b.str(m.Name))
		b.putU32(uint32(m.Type))
		if kflag {
			b.putU32(uint32(m.BitfieldSize)<<24 | (m.Offset & 0x00ffffff))
		} else {
			b.putU32(m.Offset)
		}
	}
}

func (b *btfBuilder) addStruct(name string, size uint32, members []memberSpec, kflag bool) TypeID {
	id := b.emit(name, KindStruct, uint16(len(members)), kflag, size)
	b.putMembers(members, kflag)
	return id
}

func (b *btfBuilder) addUnion(name string, size uint32, members []memberSpec, kflag bool) TypeID {
	id := b.emit(name, KindUnion, uint16(len(members)), kflag, size)
	b.putMembers(members, kflag)
	return id
}

type enumValSpec struct {
	Name  string
	Value int32
}

func (b *btfBuilder) addEnum(name string, size uint32, signed bool, values []enumValSpec) TypeID {
	id := b.emit(name, KindEnum, uint16(len(values)), signed, size)
	for _, v := range values {
		b.putU32(b.str(v.Name))
		b.putI32(v.Value)
	}
	return id
}

type enumVal64Spec struct {
	Name string
	Lo   uint32
	Hi   uint32
}

func (b *btfBuilder) addEnum64(name string, size uint32, signed bool, values []enumVal64Spec) TypeID {
	id := b.emit(name, KindEnum64, uint16(len(values)), signed, size)
	for _, v := range values {
		b.putU32(b.str(v.Name))
		b.putU32(v.Lo)
		b.putU32(v.Hi)
	}
	return id
}

func (b *btfBuilder) addFwd(name string, kind FwdKind) TypeID {
	return b.emit(name, KindFwd, 0, kind == FwdUnion, 0)
}

func (b *btfBuilder) addTypedef(name string, target TypeID) TypeID {
	return b.emit(name, KindTypedef, 0, false, uint32(target))
}

func (b *btfBuilder) addConst(target TypeID) TypeID    { return b.emit("", KindConst, 0, false, uint32(target)) }
func (b *btfBuilder) addVolatile(target TypeID) TypeID { return b.emit("", KindVolatile, 0, false, uint32(target)) }
func (b *btfBuilder) addRestrict(target TypeID) TypeID { return b.emit("", KindRestrict, 0, false, uint32(target)) }

func (b *btfBuilder) addTypeTag(name string, target TypeID) TypeID {
	return b.emit(name, KindTypeTag, 0, false, uint32(target))
}

func (b *btfBuilder) addFunc(name string, proto TypeID, linkage Linkage) TypeID {
	return b.emit(name, KindFunc, uint16(linkage), false, uint32(proto))
}

type paramSpec struct {
	Name string
	Type TypeID
}

func (b *btfBuilder) addFuncProto(ret TypeID, params []paramSpec) TypeID {
	id := b.emit("", KindFuncProto, uint16(len(params)), false, uint32(ret))
	for _, p := range params {
		b.putU32(b.str(p.Name))
		b.putU32(uint32(p.Type))
	}
	return id
}

func (b *btfBuilder) addVar(name string, target TypeID, linkage Linkage) TypeID {
	id := b.emit(name, KindVar, 0, false, uint32(target))
	b.putU32(uint32(linkage))
	return id
}

type secVarSpec struct {
	Type   TypeID
	Offset uint32
	Size   uint32
}

func (b *btfBuilder) addDatasec(name string, size uint32, vars []secVarSpec) TypeID {
	id := b.emit(name, KindDatasec, uint16(len(vars)), false, size)
	for _, v := range vars {
		b.putU32(uint32(v.Type))
		b.putU32(v.Offset)
		b.putU32(v.Size)
	}
	return id
}

func (b *btfBuilder) addFloat(name string, size uint32) TypeID {
	return b.emit(name, KindFloat, 0, false, size)
}

func (b *btfBuilder) addDeclTag(name string, target TypeID, componentIdx int32) TypeID {
	id := b.emit(name, KindDeclTag, 0, false, uint32(target))
	b.putI32(componentIdx)
	return id
}

// bytes assembles the full .BTF blob: header, type section, string section.
func (b *btfBuilder) bytes() []byte {
	const hdrLen = headerSize
	var hdr [hdrLen]byte
	b.order.PutUint16(hdr[0:2], btfMagic)
	hdr[2] = 1 // version
	hdr[3] = 0 // flags
	b.order.PutUint32(hdr[4:8], hdrLen)
	b.order.PutUint32(hdr[8:12], 0)
	b.order.PutUint32(hdr[12:16], uint32(len(b.types)))
	b.order.PutUint32(hdr[16:20], uint32(len(b.types)))
	b.order.PutUint32(hdr[20:24], uint32(len(b.strs)))

	out := make([]byte, 0, hdrLen+len(b.types)+len(b.strs))
	out = append(out, hdr[:]...)
	out = append(out, b.types...)
	out = append(out, b.strs...)
	return out
}
