package btfext

import (
	"encoding/binary"
	"fmt"
)

// fakeStrtab is a minimal StringLookup backed by a fixed offset->name map,
// standing in for a real *btf.Universe in tests.
type fakeStrtab map[uint32]string

func (f fakeStrtab) LookupString(off uint32) (string, error) {
	if s, ok := f[off]; ok {
		return s, nil
	}
	return "", fmt.Errorf("fakeStrtab: unknown offset %d", off)
}

// extBuilder assembles a synthetic .BTF.ext byte stream, mirroring ext.go's
// record layouts exactly.
type extBuilder struct {
	order        binary.ByteOrder
	withCore     bool
	funcRecs     []byte
	lineRecs     []byte
	coreRecs     []byte
	funcRecSize  uint32
	lineRecSize  uint32
	coreRecSize  uint32
}

func newExtBuilder() *extBuilder {
	return &extBuilder{order: binary.LittleEndian, funcRecSize: 8, lineRecSize: 16, coreRecSize: 16}
}

func (b *extBuilder) putU32(dst *[]byte, v uint32) {
	var buf [4]byte
	b.order.PutUint32(buf[:], v)
	*dst = append(*dst, buf[:]...)
}

func (b *extBuilder) addFuncInfoSection(secNameOff uint32, recs []FuncInfoRec) {
	b.putU32(&b.funcRecs, secNameOff)
	b.putU32(&b.funcRecs, uint32(len(recs)))
	for _, r := range recs {
		b.putU32(&b.funcRecs, r.InsnOff)
		b.putU32(&b.funcRecs, r.TypeID)
	}
}

func (b *extBuilder) addLineInfoSection(secNameOff uint32, recs []LineInfoRec) {
	b.putU32(&b.lineRecs, secNameOff)
	b.putU32(&b.lineRecs, uint32(len(recs)))
	for _, r := range recs {
		b.putU32(&b.lineRecs, r.InsnOff)
		b.putU32(&b.lineRecs, r.FileNameOff)
		b.putU32(&b.lineRecs, r.LineOff)
		b.putU32(&b.lineRecs, r.LineCol)
	}
}

func (b *extBuilder) addCoreReloSection(secNameOff uint32, recs []CoreReloRec) {
	b.withCore = true
	b.putU32(&b.coreRecs, secNameOff)
	b.putU32(&b.coreRecs, uint32(len(recs)))
	for _, r := range recs {
		b.putU32(&b.coreRecs, r.InsnOff)
		b.putU32(&b.coreRecs, r.TypeID)
		b.putU32(&b.coreRecs, r.AccessStrOff)
		b.putU32(&b.coreRecs, uint32(r.Kind))
	}
}

// bytes assembles the full .BTF.ext blob. Tests that need a malformed
// stream (truncation, forced overlap) perturb the returned buffer
// themselves, leaving the builder's own bookkeeping untouched.
func (b *extBuilder) bytes() []byte {
	var funcSection, lineSection, coreSection []byte
	b.putU32(&funcSection, b.funcRecSize)
	funcSection = append(funcSection, b.funcRecs...)
	b.putU32(&lineSection, b.lineRecSize)
	lineSection = append(lineSection, b.lineRecs...)
	if b.withCore {
		b.putU32(&coreSection, b.coreRecSize)
		coreSection = append(coreSection, b.coreRecs...)
	}

	hdrLen := uint32(headerFixedSize)
	if b.withCore {
		hdrLen = headerWithCoreSize
	}

	funcOff := uint32(0)
	funcLen := uint32(len(funcSection))
	lineOff := funcLen
	lineLen := uint32(len(lineSection))
	coreOff := lineOff + lineLen
	coreLen := uint32(len(coreSection))

	var hdr []byte
	var magicBuf [2]byte
	b.order.PutUint16(magicBuf[:], extMagic)
	hdr = append(hdr, magicBuf[:]...)
	hdr = append(hdr, 1, 0) // version, flags
	b.putU32(&hdr, hdrLen)
	b.putU32(&hdr, funcOff)
	b.putU32(&hdr, funcLen)
	b.putU32(&hdr, lineOff)
	b.putU32(&hdr, lineLen)
	if b.withCore {
		b.putU32(&hdr, coreOff)
		b.putU32(&hdr, coreLen)
	}

	out := make([]byte, 0, len(hdr)+len(funcSection)+len(lineSection)+len(coreSection))
	out = append(out, hdr...)
	out = append(out, funcSection...)
	out = append(out, lineSection...)
	out = append(out, coreSection...)
	return out
}
