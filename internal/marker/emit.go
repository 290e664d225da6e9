package marker

import (
	"errors"
	"fmt"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
)

// ErrNoAnnotation is returned by ParseAnnotations when the text holds no
// annotation with the requested title.
var ErrNoAnnotation = errors.New("no annotation found")

func beginMarker(title string) string { return "---BEGIN " + title + "---" }

func endMarker(title string) string { return "---END " + title + "---" }

// Annotation renders the comment body that wraps an encoded record array.
// A "*/" in the body would close the comment, so it is written as "*\/",
// which JSON reads back as the same string.
func Annotation(title string, body []byte) string {
	text := beginMarker(title) + "\n" + string(body) + "\n" + endMarker(title)
	return strings.ReplaceAll(text, "*/", `*\/`)
}

// ParseAnnotations decodes every annotation with the given title found in
// text, in order, and concatenates their records. A bundle holds one
// annotation per annotated module.
func ParseAnnotations(text, title string) ([]Record, error) {
	begin, end := beginMarker(title), endMarker(title)

	var records []Record
	found := false
	for {
		start := strings.Index(text, begin)
		if start < 0 {
			break
		}
		text = text[start+len(begin):]
		stop := strings.Index(text, end)
		if stop < 0 {
			return nil, fmt.Errorf("%w: %q is not terminated", ErrMalformedRecord, begin)
		}
		decoded, err := DecodeRecords([]byte(strings.TrimSpace(text[:stop])))
		if err != nil {
			return nil, err
		}
		records = append(records, decoded...)
		found = true
		text = text[stop+len(end):]
	}
	if !found {
		return nil, fmt.Errorf("%w: title %q", ErrNoAnnotation, title)
	}
	return records, nil
}

// emit attaches the annotation for the collected records to the module.
func (m *Marker) emit(root *sitter.Node) error {
	if len(m.records) == 0 {
		return nil
	}
	body, err := EncodeRecords(m.records, m.patterns.Format(), m.patterns.Pretty())
	if err != nil {
		return fmt.Errorf("failed to encode records: %w", err)
	}
	m.comments.AddLeading(moduleStart(root), Comment{
		Kind: BlockComment,
		Text: Annotation(m.patterns.Title(), body),
	})
	return nil
}

// moduleStart is the start of the module's leading comment range: its first
// child after an optional hashbang line.
func moduleStart(root *sitter.Node) uint32 {
	for i := 0; i < int(root.ChildCount()); i++ {
		child := root.Child(i)
		if child == nil || child.Type() == nodeHashBang {
			continue
		}
		return child.StartByte()
	}
	return root.StartByte()
}
