package parser

import (
	"bytes"

	"markexpr/internal/marker"
)

// Print returns src with every comment added to cm written before its
// offset, each on its own line. Source comments are already part of src.
// When nothing was added the result equals src.
func Print(src []byte, cm *CommentMap) []byte {
	added := cm.Added()
	if len(added) == 0 {
		out := make([]byte, len(src))
		copy(out, src)
		return out
	}

	var buf bytes.Buffer
	buf.Grow(len(src))
	last := 0
	for _, p := range added {
		at := int(p.Offset)
		if at > len(src) {
			at = len(src)
		}
		buf.Write(src[last:at])
		writeComment(&buf, p.Comment)
		last = at
	}
	buf.Write(src[last:])
	return buf.Bytes()
}

func writeComment(buf *bytes.Buffer, c marker.Comment) {
	if c.Kind == marker.LineComment {
		buf.WriteString("//")
		buf.WriteString(c.Text)
		buf.WriteByte('\n')
		return
	}
	buf.WriteString("/*")
	buf.WriteString(c.Text)
	buf.WriteString("*/\n")
}
