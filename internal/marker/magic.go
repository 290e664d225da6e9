package marker

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/yosuke-furukawa/json5/encoding/json5"
	"go.uber.org/zap"
)

// magicComments evaluates the block comments leading each of positions, in
// order. It returns the retained values in source order and whether any
// comment was retained.
func (m *Marker) magicComments(positions ...uint32) ([]Value, bool) {
	var leading []Comment
	for _, pos := range positions {
		leading = append(leading, m.comments.Leading(pos)...)
	}

	var retained []Value
	for _, c := range leading {
		if c.Kind != BlockComment {
			continue
		}
		parsed, err := ParseMagicComment(c.Text)
		if err != nil {
			m.logger.Debug("skipping magic comment",
				zap.String("comment", c.Text),
				zap.Error(err),
			)
			continue
		}
		if !m.patterns.admits(parsed) {
			continue
		}
		if m.patterns.rawComments {
			retained = append(retained, String(strings.TrimSpace(c.Text)))
		} else {
			retained = append(retained, parsed)
		}
	}
	return retained, len(retained) > 0
}

// ParseMagicComment reads the body of a block comment as the members of a
// JSON5 object, e.g. ` webpackChunkName: "a", lazy: true `.
func ParseMagicComment(text string) (Value, error) {
	r := bytes.NewReader([]byte("{" + text + "}"))
	dec := json5.NewDecoder(r)
	dec.UseNumber()
	var raw any
	if err := dec.Decode(&raw); err != nil {
		return Null(), err
	}
	rest, err := io.ReadAll(io.MultiReader(dec.Buffered(), r))
	if err != nil {
		return Null(), err
	}
	if len(bytes.TrimSpace(rest)) > 0 {
		return Null(), fmt.Errorf("unexpected data after magic comment object: %q", rest)
	}
	return FromJSON(raw), nil
}
