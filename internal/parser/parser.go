package parser

import (
	"context"
	"fmt"

	sitter "github.com/smacker/go-tree-sitter"

	"markexpr/internal/config"
	"markexpr/internal/marker"
)

// Module is a parsed source file together with its comment store and
// position resolver.
type Module struct {
	Path     string
	Language Language
	Source   []byte
	Comments *CommentMap
	Lines    *LineIndex

	tree *sitter.Tree
}

// Parse parses src, choosing the grammar from the extension of path. path is
// also the file name used in positions.
func Parse(ctx context.Context, path string, src []byte) (*Module, error) {
	lang := DetectLanguage(path)
	if lang == "" {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedLanguage, path)
	}
	return ParseLanguage(ctx, lang, path, src)
}

// ParseLanguage parses src with the grammar of lang. Sources containing
// syntax errors are rejected with ErrSyntax.
func ParseLanguage(ctx context.Context, lang Language, path string, src []byte) (*Module, error) {
	g := grammar(lang)
	if g == nil {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedLanguage, lang)
	}

	p := sitter.NewParser()
	defer p.Close()
	p.SetLanguage(g)

	tree, err := p.ParseCtx(ctx, nil, src)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	lines := NewLineIndex(path, src)
	root := tree.RootNode()
	if root.HasError() {
		offset := firstErrorOffset(root)
		tree.Close()
		return nil, fmt.Errorf("%w at %s", ErrSyntax, lines.Resolve(offset))
	}

	return &Module{
		Path:     path,
		Language: lang,
		Source:   src,
		Comments: NewCommentMap(root, src),
		Lines:    lines,
		tree:     tree,
	}, nil
}

// Root returns the program node.
func (m *Module) Root() *sitter.Node {
	return m.tree.RootNode()
}

// Close releases the syntax tree.
func (m *Module) Close() {
	if m.tree != nil {
		m.tree.Close()
		m.tree = nil
	}
}

// Annotate runs the marker over the module and returns the records and the
// printed source. The printed source equals Source when nothing matched.
// Annotate attaches a comment each time it matches, so call it once.
func (m *Module) Annotate(cfg config.Config, opts ...marker.Option) ([]marker.Record, []byte, error) {
	records, err := marker.Transform(m.Root(), m.Source, cfg, m.Comments, m.Lines, opts...)
	if err != nil {
		return nil, nil, err
	}
	return records, Print(m.Source, m.Comments), nil
}

func firstErrorOffset(n *sitter.Node) uint32 {
	if n.Type() == "ERROR" || n.IsMissing() {
		return n.StartByte()
	}
	for i := 0; i < int(n.ChildCount()); i++ {
		child := n.Child(i)
		if child == nil {
			continue
		}
		if child.HasError() || child.IsMissing() {
			return firstErrorOffset(child)
		}
	}
	return n.StartByte()
}
