package btf

import (
	"bytes"
	"errors"
	"fmt"
)

// ErrBadStrOff is returned when a string-table offset is out of range or
// does not terminate before the end of the string section.
var ErrBadStrOff = errors.New("btf: bad string offset")

// stringTable is an offset-indexed lookup of NUL-terminated names into a
// byte region borrowed from the original .BTF bytes.
type stringTable struct {
	data []byte
}

func newStringTable(data []byte) *stringTable {
	return &stringTable{data: data}
}

// lookup returns the string at the given byte offset. Offset 0 is the
// canonical "anonymous" name and always resolves to "".
func (s *stringTable) lookup(off uint32) (string, error) {
	if off == 0 {
		return "", nil
	}
	if int(off) >= len(s.data) {
		return "", fmt.Errorf("%w: offset %d exceeds string section of length %d", ErrBadStrOff, off, len(s.data))
	}
	rest := s.data[off:]
	idx := bytes.IndexByte(rest, 0)
	if idx == -1 {
		return "", fmt.Errorf("%w: no NUL terminator found from offset %d", ErrBadStrOff, off)
	}
	return string(rest[:idx]), nil
}
