package marker

import "fmt"

// CommentKind distinguishes // comments from /* */ comments.
type CommentKind uint8

const (
	LineComment CommentKind = iota + 1
	BlockComment
)

// Comment is a source comment without its delimiters.
type Comment struct {
	Kind CommentKind
	Text string
}

// Comments is the comment store of the host. Positions are byte offsets into
// the module source.
type Comments interface {
	// Leading returns, in source order, the comments attached before pos.
	Leading(pos uint32) []Comment
	// AddLeading attaches c before pos.
	AddLeading(pos uint32, c Comment)
}

// Position is a resolved source location. Line and Column are 1-based; the
// column counts Unicode code points.
type Position struct {
	File   string
	Line   int
	Column int
}

func (p Position) String() string {
	return fmt.Sprintf("%s:%d:%d", p.File, p.Line, p.Column)
}

// PositionResolver maps byte offsets of the module source to positions.
type PositionResolver interface {
	Resolve(offset uint32) Position
}
