// Package marker finds calls that match configured patterns in a JavaScript
// or TypeScript syntax tree, records their literal arguments, and attaches a
// single annotation comment summarising every match to the module.
package marker

import (
	"fmt"

	sitter "github.com/smacker/go-tree-sitter"
	"go.uber.org/zap"

	"markexpr/internal/config"
)

// Option configures a Marker.
type Option func(*Marker)

// WithLogger sets the logger used for debug output. The default is a no-op
// logger.
func WithLogger(logger *zap.Logger) Option {
	return func(m *Marker) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// Marker runs one pattern set over modules. It is not safe for concurrent
// use; create one per goroutine.
type Marker struct {
	patterns  *Patterns
	comments  Comments
	positions PositionResolver
	extractor extractor
	logger    *zap.Logger

	records []Record
}

// New returns a Marker reading and writing comments through comments and
// stamping records with positions.
func New(patterns *Patterns, comments Comments, positions PositionResolver, opts ...Option) *Marker {
	m := &Marker{
		patterns:  patterns,
		comments:  comments,
		positions: positions,
		extractor: extractor{shallow: patterns.shallow},
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Transform validates cfg and runs a fresh Marker over the module rooted at
// root. The tree is only changed through comments.
func Transform(root *sitter.Node, src []byte, cfg config.Config, comments Comments, positions PositionResolver, opts ...Option) ([]Record, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return New(NewPatterns(cfg), comments, positions, opts...).Transform(root, src)
}

// Transform walks the module rooted at root, whose source is src, and
// returns the matched records in post-order. When there is at least one
// record the annotation comment is attached before the module.
func (m *Marker) Transform(root *sitter.Node, src []byte) ([]Record, error) {
	if root == nil {
		return nil, fmt.Errorf("marker: nil syntax tree")
	}
	m.records = nil
	m.extractor.src = src

	m.visit(root)
	if err := m.emit(root); err != nil {
		return nil, err
	}

	m.logger.Debug("module transformed",
		zap.String("root", root.Type()),
		zap.Int("records", len(m.records)),
	)
	records := m.records
	m.records = nil
	return records, nil
}

// visit is a post-order walk: nested calls are classified before the calls
// that contain them.
func (m *Marker) visit(n *sitter.Node) {
	for i := 0; i < int(n.NamedChildCount()); i++ {
		if child := n.NamedChild(i); child != nil {
			m.visit(child)
		}
	}
	if n.Type() == nodeCall {
		m.classify(n)
	}
}

func (m *Marker) classify(call *sitter.Node) {
	args := call.ChildByFieldName("arguments")
	if args == nil || args.Type() != nodeArguments || hasChild(call, nodeOptionalChain) {
		// tagged template or optional call
		return
	}
	callee := call.ChildByFieldName("function")
	if callee == nil {
		return
	}

	switch callee.Type() {
	case nodeIdentifier:
		name := callee.Content(m.extractor.src)
		if !m.patterns.IsTrackedFunction(name) {
			return
		}
		m.records = append(m.records, Record{
			Kind:     FunctionCall,
			Name:     name,
			Args:     m.extractor.arguments(args),
			Position: m.position(call.StartByte()),
		})

	case nodeMember, nodeSubscript:
		recv, method, ok := m.methodCallee(callee)
		if !ok || !m.patterns.IsTrackedMethod(recv, method) {
			return
		}
		m.records = append(m.records, Record{
			Kind:     MethodCall,
			Object:   recv,
			Method:   method,
			Args:     m.extractor.arguments(args),
			Position: m.position(call.StartByte()),
		})

	case nodeImport:
		// Magic comments may lead either the import keyword or the first
		// argument; the record points at the argument when there is one.
		pos := callee.StartByte()
		at := []uint32{pos}
		if first := firstArgument(args); first != nil {
			pos = first.StartByte()
			at = append(at, pos)
		}
		comments, ok := m.magicComments(at...)
		if !ok {
			return
		}
		m.records = append(m.records, Record{
			Kind:          DynamicImport,
			MagicComments: comments,
			Args:          m.extractor.arguments(args),
			Position:      m.position(pos),
		})
	}
}

// methodCallee resolves obj.method and obj["method"] where obj is an
// identifier or this.
func (m *Marker) methodCallee(callee *sitter.Node) (Receiver, string, bool) {
	if hasChild(callee, nodeOptionalChain) {
		return Receiver{}, "", false
	}

	var recv Receiver
	object := callee.ChildByFieldName("object")
	if object == nil {
		return Receiver{}, "", false
	}
	switch object.Type() {
	case nodeIdentifier:
		recv = Ident(object.Content(m.extractor.src))
	case nodeThis:
		recv = This()
	default:
		return Receiver{}, "", false
	}

	if callee.Type() == nodeMember {
		prop := callee.ChildByFieldName("property")
		if prop == nil || prop.Type() != nodePropertyIdent {
			return Receiver{}, "", false
		}
		return recv, prop.Content(m.extractor.src), true
	}

	index := callee.ChildByFieldName("index")
	if index == nil || index.Type() != nodeString {
		return Receiver{}, "", false
	}
	return recv, decodeString(index.Content(m.extractor.src)), true
}

func (m *Marker) position(offset uint32) string {
	return m.positions.Resolve(offset).String()
}

// hasChild reports whether n has a direct child of type typ. Older grammars
// expose optional chaining as an anonymous "?." token.
func hasChild(n *sitter.Node, typ string) bool {
	for i := 0; i < int(n.ChildCount()); i++ {
		child := n.Child(i)
		if child == nil {
			continue
		}
		if t := child.Type(); t == typ || (typ == nodeOptionalChain && t == "?.") {
			return true
		}
	}
	return false
}
