package btfext

import (
	"encoding/binary"
	"fmt"
)

const extMagic = 0xeB9F

// header is the fixed prefix of a .BTF.ext section.
type header struct {
	Magic   uint16
	Version uint8
	Flags   uint8
	HdrLen  uint32

	FuncInfoOff uint32
	FuncInfoLen uint32
	LineInfoOff uint32
	LineInfoLen uint32

	// Present only when HdrLen is large enough to include them.
	CoreReloOff uint32
	CoreReloLen uint32
}

const headerFixedSize = 2 + 1 + 1 + 4 + 4 + 4 + 4 + 4 // up to and including LineInfoLen
const headerWithCoreSize = headerFixedSize + 4 + 4

// FuncInfoRec associates an instruction offset (in bytes, within its ELF
// section) with the BTF id of the Func type describing it.
type FuncInfoRec struct {
	InsnOff uint32
	TypeID  uint32
}

// LineInfoRec associates an instruction offset with source line metadata.
type LineInfoRec struct {
	InsnOff     uint32
	FileNameOff uint32
	LineOff     uint32
	LineCol     uint32
}

// CoreReloKind identifies the kind of CO-RE relocation a record describes
// (kernel bpf_core_relo_kind).
type CoreReloKind uint32

const (
	CoreFieldByteOffset CoreReloKind = 0
	CoreFieldByteSize   CoreReloKind = 1
	CoreFieldExists     CoreReloKind = 2
	CoreFieldSigned     CoreReloKind = 3
	CoreFieldLShiftU64  CoreReloKind = 4
	CoreFieldRShiftU64  CoreReloKind = 5
	CoreTypeIDLocal     CoreReloKind = 6
	CoreTypeIDTarget    CoreReloKind = 7
	CoreTypeExists      CoreReloKind = 8
	CoreTypeSize        CoreReloKind = 9
	CoreTypeMatches     CoreReloKind = 12
	CoreEnumvalExists   CoreReloKind = 10
	CoreEnumvalValue    CoreReloKind = 11
)

func (k CoreReloKind) String() string {
	switch k {
	case CoreFieldByteOffset:
		return "FIELD_BYTE_OFFSET"
	case CoreFieldByteSize:
		return "FIELD_BYTE_SIZE"
	case CoreFieldExists:
		return "FIELD_EXISTS"
	case CoreFieldSigned:
		return "FIELD_SIGNED"
	case CoreFieldLShiftU64:
		return "FIELD_LSHIFT_U64"
	case CoreFieldRShiftU64:
		return "FIELD_RSHIFT_U64"
	case CoreTypeIDLocal:
		return "TYPE_ID_LOCAL"
	case CoreTypeIDTarget:
		return "TYPE_ID_TARGET"
	case CoreTypeExists:
		return "TYPE_EXISTS"
	case CoreTypeSize:
		return "TYPE_SIZE"
	case CoreTypeMatches:
		return "TYPE_MATCHES"
	case CoreEnumvalExists:
		return "ENUMVAL_EXISTS"
	case CoreEnumvalValue:
		return "ENUMVAL_VALUE"
	default:
		return fmt.Sprintf("CORE_RELO(%d)", uint32(k))
	}
}

// CoreReloRec is one CO-RE relocation site.
type CoreReloRec struct {
	InsnOff       uint32
	TypeID        uint32
	AccessStrOff  uint32
	Kind          CoreReloKind
}

// Section groups every func/line/core-relo record belonging to one ELF
// section (e.g. ".text", "tp/sys_enter").
type Section struct {
	Name      string
	FuncInfo  []FuncInfoRec
	LineInfo  []LineInfoRec
	CoreRelos []CoreReloRec
}

// Data is the fully decoded .BTF.ext section.
type Data struct {
	Sections map[string]*Section
	// Order preserves the sequence sections first appeared in, since
	// map iteration order is not stable and Dump should be deterministic.
	Order []string
}

func (d *Data) section(name string) *Section {
	if s, ok := d.Sections[name]; ok {
		return s
	}
	s := &Section{Name: name}
	d.Sections[name] = s
	d.Order = append(d.Order, name)
	return s
}

// StringLookup resolves a .BTF string-table offset. Implemented by
// *btf.Universe; kept as a narrow interface so this package does not import
// pkg/btf.
type StringLookup interface {
	LookupString(off uint32) (string, error)
}

// Parse decodes a .BTF.ext section. strtab resolves each sec_name_off
// against the companion .BTF section's string table; line_info's
// file_name_off and line_off are kept as raw offsets.
func Parse(data []byte, strtab StringLookup) (*Data, error) {
	order, err := detectOrder(data)
	if err != nil {
		return nil, err
	}

	var hdr header
	if len(data) < headerFixedSize {
		return nil, fmt.Errorf("%w: section is %d bytes, need at least %d for the header", ErrTruncated, len(data), headerFixedSize)
	}
	hdr.Magic = order.Uint16(data[0:2])
	hdr.Version = data[2]
	hdr.Flags = data[3]
	hdr.HdrLen = order.Uint32(data[4:8])
	hdr.FuncInfoOff = order.Uint32(data[8:12])
	hdr.FuncInfoLen = order.Uint32(data[12:16])
	hdr.LineInfoOff = order.Uint32(data[16:20])
	hdr.LineInfoLen = order.Uint32(data[20:24])
	if hdr.HdrLen >= headerWithCoreSize && len(data) >= headerWithCoreSize {
		hdr.CoreReloOff = order.Uint32(data[24:28])
		hdr.CoreReloLen = order.Uint32(data[28:32])
	}

	if int(hdr.HdrLen) > len(data) {
		return nil, fmt.Errorf("%w: hdr_len %d exceeds section length %d", ErrTruncated, hdr.HdrLen, len(data))
	}
	base := int(hdr.HdrLen)

	d := &Data{Sections: make(map[string]*Section)}

	funcBytes, err := subsection(data, base, hdr.FuncInfoOff, hdr.FuncInfoLen, "func_info")
	if err != nil {
		return nil, err
	}
	if err := parseFuncInfo(funcBytes, order, strtab, d); err != nil {
		return nil, err
	}

	lineBytes, err := subsection(data, base, hdr.LineInfoOff, hdr.LineInfoLen, "line_info")
	if err != nil {
		return nil, err
	}
	if err := parseLineInfo(lineBytes, order, strtab, d); err != nil {
		return nil, err
	}

	if hdr.CoreReloLen > 0 {
		coreBytes, err := subsection(data, base, hdr.CoreReloOff, hdr.CoreReloLen, "core_relo")
		if err != nil {
			return nil, err
		}
		if err := parseCoreRelo(coreBytes, order, strtab, d); err != nil {
			return nil, err
		}
	}

	if err := checkOverlap(hdr); err != nil {
		return nil, err
	}

	return d, nil
}

func detectOrder(data []byte) (binary.ByteOrder, error) {
	if len(data) < 2 {
		return nil, fmt.Errorf("%w: section is only %d bytes", ErrTruncated, len(data))
	}
	if binary.LittleEndian.Uint16(data[0:2]) == extMagic {
		return binary.LittleEndian, nil
	}
	if binary.BigEndian.Uint16(data[0:2]) == extMagic {
		return binary.BigEndian, nil
	}
	return nil, fmt.Errorf("%w: first two bytes are not 0xeB9F in either byte order", ErrBadMagic)
}

func subsection(data []byte, base int, off, length uint32, name string) ([]byte, error) {
	if length == 0 {
		return nil, nil
	}
	start := base + int(off)
	end := start + int(length)
	if start < base || end > len(data) || end < start {
		return nil, fmt.Errorf("%w: %s sub-section [%d,%d) falls outside the section (base %d, len %d)",
			ErrBadExtLayout, name, start, end, base, len(data))
	}
	return data[start:end], nil
}

// checkOverlap re-derives each declared sub-section's absolute byte range
// and rejects any pairwise overlap. Parsing above already bounds-checks
// each range individually; this catches cases where ranges are each
// individually in-bounds but alias one another.
func checkOverlap(hdr header) error {
	type span struct {
		name       string
		start, end uint32
	}
	base := hdr.HdrLen
	spans := []span{
		{"func_info", base + hdr.FuncInfoOff, base + hdr.FuncInfoOff + hdr.FuncInfoLen},
		{"line_info", base + hdr.LineInfoOff, base + hdr.LineInfoOff + hdr.LineInfoLen},
	}
	if hdr.CoreReloLen > 0 {
		spans = append(spans, span{"core_relo", base + hdr.CoreReloOff, base + hdr.CoreReloOff + hdr.CoreReloLen})
	}
	for i := 0; i < len(spans); i++ {
		for j := i + 1; j < len(spans); j++ {
			a, b := spans[i], spans[j]
			if a.start < b.end && b.start < a.end {
				return fmt.Errorf("%w: %s and %s sub-sections overlap", ErrBadExtLayout, a.name, b.name)
			}
		}
	}
	return nil
}

// parseFuncInfo and friends consume the common "rec_size then repeated
// {sec_name_off, num_info, records...}" shape shared by all three
// sub-sections.

func parseFuncInfo(data []byte, order binary.ByteOrder, strtab StringLookup, d *Data) error {
	return walkSecInfo(data, order, "func_info", func(name string, rec []byte, recSize uint32) error {
		if recSize != 8 {
			return fmt.Errorf("%w: func_info rec_size %d, want 8", ErrBadExtLayout, recSize)
		}
		sec := d.section(name)
		sec.FuncInfo = append(sec.FuncInfo, FuncInfoRec{
			InsnOff: order.Uint32(rec[0:4]),
			TypeID:  order.Uint32(rec[4:8]),
		})
		return nil
	}, resolveName(strtab))
}

func parseLineInfo(data []byte, order binary.ByteOrder, strtab StringLookup, d *Data) error {
	return walkSecInfo(data, order, "line_info", func(name string, rec []byte, recSize uint32) error {
		if recSize != 16 {
			return fmt.Errorf("%w: line_info rec_size %d, want 16", ErrBadExtLayout, recSize)
		}
		sec := d.section(name)
		sec.LineInfo = append(sec.LineInfo, LineInfoRec{
			InsnOff:     order.Uint32(rec[0:4]),
			FileNameOff: order.Uint32(rec[4:8]),
			LineOff:     order.Uint32(rec[8:12]),
			LineCol:     order.Uint32(rec[12:16]),
		})
		return nil
	}, resolveName(strtab))
}

func parseCoreRelo(data []byte, order binary.ByteOrder, strtab StringLookup, d *Data) error {
	return walkSecInfo(data, order, "core_relo", func(name string, rec []byte, recSize uint32) error {
		if recSize != 16 {
			return fmt.Errorf("%w: core_relo rec_size %d, want 16", ErrBadExtLayout, recSize)
		}
		sec := d.section(name)
		sec.CoreRelos = append(sec.CoreRelos, CoreReloRec{
			InsnOff:      order.Uint32(rec[0:4]),
			TypeID:       order.Uint32(rec[4:8]),
			AccessStrOff: order.Uint32(rec[8:12]),
			Kind:         CoreReloKind(order.Uint32(rec[12:16])),
		})
		return nil
	}, resolveName(strtab))
}

func resolveName(strtab StringLookup) func(uint32) (string, error) {
	return func(off uint32) (string, error) {
		if strtab == nil {
			return fmt.Sprintf("(offset %d)", off), nil
		}
		return strtab.LookupString(off)
	}
}

// walkSecInfo parses the generic "u32 rec_size; { u32 sec_name_off; u32
// num_info; num_info * rec_size bytes }*" layout shared by func_info,
// line_info and core_relo.
func walkSecInfo(data []byte, order binary.ByteOrder, label string, each func(name string, rec []byte, recSize uint32) error, name func(uint32) (string, error)) error {
	if data == nil {
		return nil
	}
	if len(data) < 4 {
		return fmt.Errorf("%w: %s sub-section too short for rec_size", ErrTruncated, label)
	}
	recSize := order.Uint32(data[0:4])
	pos := 4
	for pos < len(data) {
		if pos+8 > len(data) {
			return fmt.Errorf("%w: %s section header truncated at offset %d", ErrTruncated, label, pos)
		}
		secNameOff := order.Uint32(data[pos : pos+4])
		numInfo := order.Uint32(data[pos+4 : pos+8])
		pos += 8

		secName, err := name(secNameOff)
		if err != nil {
			return fmt.Errorf("%s: %w", label, err)
		}

		need := int(numInfo) * int(recSize)
		if pos+need > len(data) {
			return fmt.Errorf("%w: %s section '%s' declares %d records of %d bytes, exceeding remaining %d",
				ErrBadExtLayout, label, secName, numInfo, recSize, len(data)-pos)
		}
		for i := uint32(0); i < numInfo; i++ {
			rec := data[pos : pos+int(recSize)]
			if err := each(secName, rec, recSize); err != nil {
				return err
			}
			pos += int(recSize)
		}
	}
	return nil
}
