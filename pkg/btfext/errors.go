// Package btfext decodes the .BTF.ext ELF section: per-function BTF type
// annotations, per-instruction line info, and CO-RE relocation records.
// It shares the string table of a parsed .BTF section (pkg/btf) but is
// otherwise independent of it.
package btfext

import "errors"

// ErrTruncated is returned when the section is too short for its header or
// for hdr_len, or a sub-section ends inside its rec_size field or inside a
// per-section {sec_name_off, num_info} header.
var ErrTruncated = errors.New("btfext: truncated")

// ErrBadMagic is returned when the 16-bit magic at the start of the section
// does not match either byte order's encoding of 0xeB9F.
var ErrBadMagic = errors.New("btfext: bad magic")

// ErrBadExtLayout is returned when a sub-section's declared offset/length
// overlaps another or runs past the section end, when a section's declared
// records run past the end of their sub-section, or when a sub-section's
// rec_size is not the record size this decoder reads.
var ErrBadExtLayout = errors.New("btfext: bad sub-section layout")
