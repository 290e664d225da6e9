package parser

import (
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	sitter "github.com/smacker/go-tree-sitter"

	"markexpr/internal/marker"
)

// Placed is a comment attached by the marker, with the byte offset it leads.
type Placed struct {
	Offset  uint32
	Comment marker.Comment
}

// CommentMap implements marker.Comments over a parsed module. A source
// comment leads the first byte after it that is neither whitespace nor part
// of another comment, so consecutive comments share one position. Comments
// that end a line of code trail it and lead nothing.
type CommentMap struct {
	leading map[uint32][]marker.Comment
	added   []Placed
}

// NewCommentMap collects the comments of the tree rooted at root.
func NewCommentMap(root *sitter.Node, src []byte) *CommentMap {
	cm := &CommentMap{leading: make(map[uint32][]marker.Comment)}
	if root == nil {
		return cm
	}

	var nodes []*sitter.Node
	collectComments(root, &nodes)
	sort.SliceStable(nodes, func(i, j int) bool {
		return nodes[i].StartByte() < nodes[j].StartByte()
	})

	targets := make([]uint32, len(nodes))
	breaks := make([]bool, len(nodes))
	for i := len(nodes) - 1; i >= 0; i-- {
		end := nodes[i].EndByte()
		next := skipSpace(src, end)
		gap := hasLineBreak(src[end:next])
		if i+1 < len(nodes) && next == nodes[i+1].StartByte() {
			targets[i] = targets[i+1]
			breaks[i] = gap || breaks[i+1]
		} else {
			targets[i] = next
			breaks[i] = gap
		}
	}
	for i, n := range nodes {
		// A comment ending a line of code trails that code.
		if breaks[i] && endsCodeLine(src, nodes, i) {
			continue
		}
		cm.leading[targets[i]] = append(cm.leading[targets[i]], toComment(n.Content(src)))
	}
	return cm
}

// endsCodeLine reports whether nodes[i] is preceded on its line by code that
// can carry a trailing comment, looking through comments on the same line.
// Openers and operators expect an operand, so comments after them still lead
// the next token.
func endsCodeLine(src []byte, nodes []*sitter.Node, i int) bool {
	pos := int(nodes[i].StartByte())
	for {
		j := pos - 1
		for j >= 0 && (src[j] == ' ' || src[j] == '\t') {
			j--
		}
		if j < 0 || src[j] == '\n' || src[j] == '\r' {
			return false
		}
		if i > 0 && uint32(j+1) == nodes[i-1].EndByte() {
			i--
			pos = int(nodes[i].StartByte())
			continue
		}
		return !strings.ContainsRune("([,=:?!&|+-*/%<>^~", rune(src[j]))
	}
}

func hasLineBreak(b []byte) bool {
	for _, c := range b {
		if c == '\n' || c == '\r' {
			return true
		}
	}
	return false
}

// Leading returns the comments attached before pos: those added through
// AddLeading first, then the source comments.
func (cm *CommentMap) Leading(pos uint32) []marker.Comment {
	var out []marker.Comment
	for _, p := range cm.added {
		if p.Offset == pos {
			out = append(out, p.Comment)
		}
	}
	return append(out, cm.leading[pos]...)
}

// AddLeading attaches c before pos.
func (cm *CommentMap) AddLeading(pos uint32, c marker.Comment) {
	cm.added = append(cm.added, Placed{Offset: pos, Comment: c})
}

// Added returns the attached comments ordered by offset, keeping insertion
// order for equal offsets.
func (cm *CommentMap) Added() []Placed {
	out := make([]Placed, len(cm.added))
	copy(out, cm.added)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Offset < out[j].Offset
	})
	return out
}

func collectComments(n *sitter.Node, out *[]*sitter.Node) {
	switch n.Type() {
	case "comment", "html_comment":
		*out = append(*out, n)
		return
	}
	for i := 0; i < int(n.NamedChildCount()); i++ {
		if child := n.NamedChild(i); child != nil {
			collectComments(child, out)
		}
	}
}

func toComment(text string) marker.Comment {
	switch {
	case strings.HasPrefix(text, "/*"):
		return marker.Comment{
			Kind: marker.BlockComment,
			Text: strings.TrimSuffix(strings.TrimPrefix(text, "/*"), "*/"),
		}
	case strings.HasPrefix(text, "//"):
		return marker.Comment{Kind: marker.LineComment, Text: strings.TrimPrefix(text, "//")}
	case strings.HasPrefix(text, "<!--"):
		return marker.Comment{Kind: marker.LineComment, Text: strings.TrimPrefix(text, "<!--")}
	default:
		return marker.Comment{Kind: marker.LineComment, Text: strings.TrimPrefix(text, "-->")}
	}
}

// skipSpace returns the offset of the first non-whitespace byte at or after
// from, or len(src).
func skipSpace(src []byte, from uint32) uint32 {
	i := int(from)
	for i < len(src) {
		r, size := utf8.DecodeRune(src[i:])
		if !isSpace(r) {
			break
		}
		i += size
	}
	return uint32(i)
}

func isSpace(r rune) bool {
	return r == '\uFEFF' || unicode.IsSpace(r) || unicode.Is(unicode.Zs, r)
}
