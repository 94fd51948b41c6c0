package btf

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_SimpleStruct(t *testing.T) {
	b := newBTFBuilder()
	intID := b.addInt("int", 4, intEncSigned, 0, 32)
	ptrID := b.addPointer(intID)
	structID := b.addStruct("point", 8, []memberSpec{
		{Name: "x", Type: intID, Offset: 0},
		{Name: "y", Type: intID, Offset: 32},
	}, false)

	u, err := Parse(b.bytes())
	require.NoError(t, err)
	require.Equal(t, 3, u.NumTypes())

	got, ok := u.Get(structID).(*Struct)
	require.True(t, ok)
	assert.Equal(t, "point", got.Name)
	assert.Equal(t, uint32(8), got.Size)
	assert.Len(t, got.Members, 2)
	assert.Equal(t, "x", got.Members[0].Name)
	assert.Equal(t, intID, got.Members[0].Type)

	p, ok := u.Get(ptrID).(*Pointer)
	require.True(t, ok)
	assert.Equal(t, intID, p.Type)
}

func TestParse_BadMagic(t *testing.T) {
	_, err := Parse([]byte{0x00, 0x00, 1, 0, 0, 0, 0, 0})
	assert.ErrorIs(t, err, ErrBadMagic)
}

func TestParse_Truncated(t *testing.T) {
	b := newBTFBuilder()
	b.addInt("int", 4, intEncSigned, 0, 32)
	full := b.bytes()
	_, err := Parse(full[:len(full)-2])
	assert.ErrorIs(t, err, ErrTruncated)
}

func TestParse_BigEndianStream(t *testing.T) {
	b := newBTFBuilderOrder(binary.BigEndian)
	intID := b.addInt("int", 4, intEncSigned, 0, 32)

	u, err := Parse(b.bytes())
	require.NoError(t, err)
	got, ok := u.Get(intID).(*Int)
	require.True(t, ok)
	assert.Equal(t, "int", got.Name)
	assert.Equal(t, uint32(4), got.Size)
}

func TestParse_EnumValueOutOfRange(t *testing.T) {
	b := newBTFBuilder()
	b.addEnum("small", 1, false, []enumValSpec{{Name: "TOO_BIG", Value: 1000}})
	_, err := Parse(b.bytes())
	assert.ErrorIs(t, err, ErrBadEnumValue)
}

func TestParse_OutOfRangeTypeRef(t *testing.T) {
	b := newBTFBuilder()
	b.addPointer(TypeID(99))
	_, err := Parse(b.bytes())
	assert.ErrorIs(t, err, ErrBadTypeRef)
}

func TestParse_UnknownKind(t *testing.T) {
	b := newBTFBuilder()
	b.emit("mystery", Kind(31), 0, false, 0)
	_, err := Parse(b.bytes())
	assert.ErrorIs(t, err, ErrBadKind)
}

func TestUniverse_Resolve(t *testing.T) {
	b := newBTFBuilder()
	intID := b.addInt("int", 4, intEncSigned, 0, 32)
	cv := b.addConst(intID)
	vv := b.addVolatile(cv)
	td := b.addTypedef("myint", vv)

	u, err := Parse(b.bytes())
	require.NoError(t, err)

	resolved, err := u.Resolve(td)
	require.NoError(t, err)
	assert.Equal(t, intID, resolved)
}

func TestUniverse_ResolveCycle(t *testing.T) {
	// Typedef "a" -> "b" -> "a" is impossible to express with increasing ids
	// using decode order alone, so build it directly against the Universe
	// rather than through the byte encoder.
	a := &Typedef{Id: 1, Name: "a", Type: 2}
	c := &Typedef{Id: 2, Name: "b", Type: 1}
	u := newUniverse([]Type{a, c}, newStringTable(nil))

	_, err := u.Resolve(1)
	assert.ErrorIs(t, err, ErrBadTypedefCycle)
}

func TestUniverse_FindByName(t *testing.T) {
	b := newBTFBuilder()
	sID := b.addStruct("widget", 0, nil, false)

	u, err := Parse(b.bytes())
	require.NoError(t, err)

	ids := u.FindByNameKind(KindStruct, "widget")
	require.Len(t, ids, 1)
	assert.Equal(t, sID, ids[0])

	assert.Empty(t, u.FindByNameKind(KindUnion, "widget"))
}

func TestUniverse_GetVoid(t *testing.T) {
	u, err := Parse(newBTFBuilder().bytes())
	require.NoError(t, err)
	assert.Equal(t, KindUnknown, u.Get(0).Kind())
	assert.Equal(t, "void", u.Get(0).String())
}
