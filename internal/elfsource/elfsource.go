// Package elfsource locates the .BTF and .BTF.ext sections of an input
// file. Most BTF blobs in the wild are embedded in an ELF object (a kernel
// module, vmlinux, or a compiled BPF program); a bare .btf dump produced by
// `bpftool btf dump file ... format raw` is also accepted directly.
package elfsource

import (
	"bytes"
	"debug/elf"
	"fmt"
	"os"
)

// Sections holds the raw bytes of whichever of .BTF/.BTF.ext were found.
type Sections struct {
	BTF    []byte
	BTFExt []byte
}

const btfMagicLE = 0x9F
const btfMagicLE2 = 0xeB

// Load reads path and extracts its BTF sections. A file that does not start
// with the ELF magic but starts with the BTF magic (in either byte order) is
// treated as a raw .BTF section (no .BTF.ext is possible in that case); any
// other non-ELF file, or an ELF object without a .BTF section, is an error.
func Load(path string) (*Sections, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("elfsource: %w", err)
	}

	if !bytes.HasPrefix(raw, []byte(elf.ELFMAG)) {
		if len(raw) >= 2 && raw[0] == btfMagicLE && raw[1] == btfMagicLE2 ||
			len(raw) >= 2 && raw[0] == btfMagicLE2 && raw[1] == btfMagicLE {
			return &Sections{BTF: raw}, nil
		}
		return nil, fmt.Errorf("elfsource: %s is neither an ELF object nor a raw .BTF blob", path)
	}

	f, err := elf.NewFile(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("elfsource: %w", err)
	}
	defer f.Close()

	out := &Sections{}
	if sec := f.Section(".BTF"); sec != nil {
		data, err := sec.Data()
		if err != nil {
			return nil, fmt.Errorf("elfsource: reading .BTF: %w", err)
		}
		out.BTF = data
	}
	if sec := f.Section(".BTF.ext"); sec != nil {
		data, err := sec.Data()
		if err != nil {
			return nil, fmt.Errorf("elfsource: reading .BTF.ext: %w", err)
		}
		out.BTFExt = data
	}
	if out.BTF == nil {
		return nil, fmt.Errorf("elfsource: %s has no .BTF section", path)
	}
	return out, nil
}
