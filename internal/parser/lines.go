package parser

import (
	"sort"
	"unicode/utf8"

	"markexpr/internal/marker"
)

// LineIndex resolves byte offsets to 1-based line and column positions.
// Lines end at \n, \r\n or a lone \r; columns count code points.
type LineIndex struct {
	file   string
	src    []byte
	starts []uint32
}

// NewLineIndex indexes the line starts of src.
func NewLineIndex(file string, src []byte) *LineIndex {
	starts := []uint32{0}
	for i := 0; i < len(src); i++ {
		switch src[i] {
		case '\n':
			starts = append(starts, uint32(i+1))
		case '\r':
			if i+1 < len(src) && src[i+1] == '\n' {
				continue
			}
			starts = append(starts, uint32(i+1))
		}
	}
	return &LineIndex{file: file, src: src, starts: starts}
}

// Resolve implements marker.PositionResolver. Offsets past the end resolve
// to the end of the source.
func (l *LineIndex) Resolve(offset uint32) marker.Position {
	if int(offset) > len(l.src) {
		offset = uint32(len(l.src))
	}
	line := sort.Search(len(l.starts), func(i int) bool {
		return l.starts[i] > offset
	}) - 1
	start := l.starts[line]
	return marker.Position{
		File:   l.file,
		Line:   line + 1,
		Column: utf8.RuneCount(l.src[start:offset]) + 1,
	}
}

// LineCount returns the number of lines in the source.
func (l *LineIndex) LineCount() int {
	return len(l.starts)
}
