package btfext

import (
	"fmt"
	"io"
)

// Dump writes a line-oriented summary of every decoded sub-section, in the
// order sections first appeared, mirroring pkg/btf's DumpHuman format.
func (d *Data) Dump(w io.Writer) error {
	for _, name := range d.Order {
		sec := d.Sections[name]
		if _, err := fmt.Fprintf(w, "[sec] '%s' func_info=%d line_info=%d core_relo=%d\n",
			name, len(sec.FuncInfo), len(sec.LineInfo), len(sec.CoreRelos)); err != nil {
			return wrapIOErr(err)
		}
		for _, fi := range sec.FuncInfo {
			if _, err := fmt.Fprintf(w, "\tfunc_info insn_off=%d type_id=%d\n", fi.InsnOff, fi.TypeID); err != nil {
				return wrapIOErr(err)
			}
		}
		for _, li := range sec.LineInfo {
			if _, err := fmt.Fprintf(w, "\tline_info insn_off=%d file_name_off=%d line_off=%d line=%d col=%d\n",
				li.InsnOff, li.FileNameOff, li.LineOff, li.LineCol>>10, li.LineCol&0x3ff); err != nil {
				return wrapIOErr(err)
			}
		}
		for _, cr := range sec.CoreRelos {
			if _, err := fmt.Fprintf(w, "\tcore_relo insn_off=%d type_id=%d kind=%s\n",
				cr.InsnOff, cr.TypeID, cr.Kind); err != nil {
				return wrapIOErr(err)
			}
		}
	}
	return nil
}

func wrapIOErr(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("btfext: emit writer failed: %w", err)
}
