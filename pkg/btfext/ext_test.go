package btfext

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_FuncAndLineInfo(t *testing.T) {
	strtab := fakeStrtab{10: ".text", 20: "prog.c"}
	b := newExtBuilder()
	b.addFuncInfoSection(10, []FuncInfoRec{{InsnOff: 0, TypeID: 5}, {InsnOff: 8, TypeID: 6}})
	b.addLineInfoSection(10, []LineInfoRec{{InsnOff: 0, FileNameOff: 20, LineOff: 0, LineCol: (42 << 10) | 3}})

	d, err := Parse(b.bytes(), strtab)
	require.NoError(t, err)
	require.Contains(t, d.Sections, ".text")

	sec := d.Sections[".text"]
	require.Len(t, sec.FuncInfo, 2)
	assert.Equal(t, uint32(5), sec.FuncInfo[0].TypeID)
	assert.Equal(t, uint32(8), sec.FuncInfo[1].InsnOff)

	require.Len(t, sec.LineInfo, 1)
	assert.Equal(t, uint32(42), sec.LineInfo[0].LineCol>>10)
	assert.Equal(t, uint32(3), sec.LineInfo[0].LineCol&0x3ff)
}

func TestParse_CoreRelo(t *testing.T) {
	strtab := fakeStrtab{10: "tp/sys_enter", 30: "x:0:1"}
	b := newExtBuilder()
	b.addFuncInfoSection(10, nil)
	b.addLineInfoSection(10, nil)
	b.addCoreReloSection(10, []CoreReloRec{{InsnOff: 16, TypeID: 9, AccessStrOff: 30, Kind: CoreFieldByteOffset}})

	d, err := Parse(b.bytes(), strtab)
	require.NoError(t, err)
	sec := d.Sections["tp/sys_enter"]
	require.Len(t, sec.CoreRelos, 1)
	assert.Equal(t, CoreFieldByteOffset, sec.CoreRelos[0].Kind)
	assert.Equal(t, "FIELD_BYTE_OFFSET", sec.CoreRelos[0].Kind.String())
}

func TestParse_BadMagic(t *testing.T) {
	data := []byte{0, 0, 1, 0, 0, 0, 0, 0}
	_, err := Parse(data, fakeStrtab{})
	assert.ErrorIs(t, err, ErrBadMagic)
}

func TestParse_Truncated(t *testing.T) {
	b := newExtBuilder()
	b.addFuncInfoSection(10, []FuncInfoRec{{InsnOff: 0, TypeID: 1}})
	b.addLineInfoSection(10, nil)
	full := b.bytes()
	// Cut below the fixed header size itself, not just the tail of a
	// sub-section, so this exercises the header-truncation check rather
	// than a sub-section bounds check (that path is ErrBadExtLayout, see
	// TestParse_OverlappingSubsections).
	_, err := Parse(full[:20], fakeStrtab{10: "x"})
	assert.ErrorIs(t, err, ErrTruncated)
}

func TestParse_RecSizeMismatch(t *testing.T) {
	b := newExtBuilder()
	b.funcRecSize = 12 // wrong; decoder requires exactly 8
	b.addFuncInfoSection(10, []FuncInfoRec{{InsnOff: 0, TypeID: 1}})
	b.addLineInfoSection(10, nil)

	_, err := Parse(b.bytes(), fakeStrtab{10: "x"})
	assert.ErrorIs(t, err, ErrBadExtLayout)
}

func TestParse_OverlappingSubsections(t *testing.T) {
	b := newExtBuilder()
	b.addFuncInfoSection(10, []FuncInfoRec{{InsnOff: 0, TypeID: 1}})
	b.addLineInfoSection(10, nil)
	data := b.bytes()

	// Corrupt the header in place so line_info's declared offset aliases
	// func_info's range, which must be rejected as malformed layout.
	// line_info_off lives right after func_info_off/func_info_len in the
	// fixed header: Magic(2) Version(1) Flags(1) HdrLen(4) FuncInfoOff(4)
	// FuncInfoLen(4) LineInfoOff(4) LineInfoLen(4).
	const lineInfoOffPos = 2 + 1 + 1 + 4 + 4 + 4
	data[lineInfoOffPos] = 0
	data[lineInfoOffPos+1] = 0
	data[lineInfoOffPos+2] = 0
	data[lineInfoOffPos+3] = 0 // alias func_info's own offset (0)

	_, err := Parse(data, fakeStrtab{10: "x"})
	assert.ErrorIs(t, err, ErrBadExtLayout)
}

func TestDump(t *testing.T) {
	strtab := fakeStrtab{10: ".text"}
	b := newExtBuilder()
	b.addFuncInfoSection(10, []FuncInfoRec{{InsnOff: 0, TypeID: 5}})
	b.addLineInfoSection(10, []LineInfoRec{{InsnOff: 0, FileNameOff: 10, LineOff: 0, LineCol: (7 << 10) | 1}})
	b.addCoreReloSection(10, []CoreReloRec{{InsnOff: 0, TypeID: 9, AccessStrOff: 10, Kind: CoreTypeIDLocal}})

	d, err := Parse(b.bytes(), strtab)
	require.NoError(t, err)

	var out strings.Builder
	require.NoError(t, d.Dump(&out))
	got := out.String()
	assert.Contains(t, got, "[sec] '.text' func_info=1 line_info=1 core_relo=1")
	assert.Contains(t, got, "func_info insn_off=0 type_id=5")
	assert.Contains(t, got, "line=7 col=1")
	assert.Contains(t, got, "kind=TYPE_ID_LOCAL")
}
