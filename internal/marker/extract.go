package marker

import (
	"math"
	"strconv"
	"strings"
	"unicode/utf8"

	sitter "github.com/smacker/go-tree-sitter"
)

// Node type names shared by the javascript, typescript and tsx grammars.
const (
	nodeProgram       = "program"
	nodeHashBang      = "hash_bang_line"
	nodeComment       = "comment"
	nodeCall          = "call_expression"
	nodeArguments     = "arguments"
	nodeIdentifier    = "identifier"
	nodeThis          = "this"
	nodeImport        = "import"
	nodeMember        = "member_expression"
	nodeSubscript     = "subscript_expression"
	nodeOptionalChain = "optional_chain"
	nodePropertyIdent = "property_identifier"
	nodeString        = "string"
	nodeNumber        = "number"
	nodeTrue          = "true"
	nodeFalse         = "false"
	nodeArray         = "array"
	nodeObject        = "object"
	nodePair          = "pair"
)

// extractor converts argument expressions into Values.
type extractor struct {
	src     []byte
	shallow bool
}

// ExtractValue converts the expression node n of src into a Value.
func ExtractValue(n *sitter.Node, src []byte) Value {
	return extractor{src: src}.value(n)
}

// ExtractArguments converts every argument of an `arguments` node.
func ExtractArguments(args *sitter.Node, src []byte) []Value {
	return extractor{src: src}.arguments(args)
}

func (e extractor) arguments(args *sitter.Node) []Value {
	values := make([]Value, 0, argumentCount(args))
	if args == nil {
		return values
	}
	for i := 0; i < int(args.NamedChildCount()); i++ {
		child := args.NamedChild(i)
		if child == nil || child.Type() == nodeComment {
			continue
		}
		values = append(values, e.value(child))
	}
	return values
}

func argumentCount(args *sitter.Node) int {
	if args == nil {
		return 0
	}
	return int(args.NamedChildCount())
}

// firstArgument returns the first non-comment argument, or nil.
func firstArgument(args *sitter.Node) *sitter.Node {
	if args == nil {
		return nil
	}
	for i := 0; i < int(args.NamedChildCount()); i++ {
		child := args.NamedChild(i)
		if child != nil && child.Type() != nodeComment {
			return child
		}
	}
	return nil
}

func (e extractor) value(n *sitter.Node) Value {
	if n == nil {
		return Null()
	}
	switch n.Type() {
	case nodeString:
		return String(decodeString(n.Content(e.src)))
	case nodeNumber:
		return parseNumber(n.Content(e.src))
	case nodeTrue:
		return Bool(true)
	case nodeFalse:
		return Bool(false)
	case nodeArray:
		if e.shallow {
			return Null()
		}
		return e.array(n)
	case nodeObject:
		if e.shallow {
			return Null()
		}
		return e.object(n)
	default:
		return Null()
	}
}

// array keeps element positions: spreads and holes become null.
func (e extractor) array(n *sitter.Node) Value {
	elems := make([]Value, 0, n.NamedChildCount())
	filled := false
	for i := 0; i < int(n.ChildCount()); i++ {
		child := n.Child(i)
		if child == nil {
			continue
		}
		switch child.Type() {
		case "[", "]", nodeComment:
		case ",":
			if !filled {
				elems = append(elems, Null())
			}
			filled = false
		default:
			elems = append(elems, e.value(child))
			filled = true
		}
	}
	return Value{kind: KindArray, arr: elems}
}

// object keeps `key: value` pairs with a static key. Shorthand, spread,
// method and computed entries are dropped.
func (e extractor) object(n *sitter.Node) Value {
	fields := make(map[string]Value, n.NamedChildCount())
	for i := 0; i < int(n.NamedChildCount()); i++ {
		child := n.NamedChild(i)
		if child == nil || child.Type() != nodePair {
			continue
		}
		key, ok := e.propertyKey(child.ChildByFieldName("key"))
		if !ok {
			continue
		}
		fields[key] = e.value(child.ChildByFieldName("value"))
	}
	return Value{kind: KindObject, obj: fields}
}

func (e extractor) propertyKey(n *sitter.Node) (string, bool) {
	if n == nil {
		return "", false
	}
	switch n.Type() {
	case nodePropertyIdent, nodeIdentifier:
		return n.Content(e.src), true
	case nodeString:
		return decodeString(n.Content(e.src)), true
	case nodeNumber:
		return numberKey(parseNumber(n.Content(e.src)))
	default:
		return "", false
	}
}

func numberKey(v Value) (string, bool) {
	switch v.Kind() {
	case KindInt:
		return strconv.FormatInt(v.AsInt(), 10), true
	case KindFloat:
		f := v.AsFloat()
		if f == math.Trunc(f) && math.Abs(f) < 1e21 {
			return strconv.FormatFloat(f, 'f', -1, 64), true
		}
		return strconv.FormatFloat(f, 'g', -1, 64), true
	default:
		return "", false
	}
}

// parseNumber follows the literal's lexical form: a fraction or exponent
// makes a float, everything else must fit int32 or uint32.
func parseNumber(text string) Value {
	t := strings.ReplaceAll(strings.TrimSpace(text), "_", "")
	if t == "" {
		return Null()
	}
	lower := strings.ToLower(t)

	base := 10
	digits := t
	switch {
	case strings.HasPrefix(lower, "0x"):
		base, digits = 16, t[2:]
	case strings.HasPrefix(lower, "0o"):
		base, digits = 8, t[2:]
	case strings.HasPrefix(lower, "0b"):
		base, digits = 2, t[2:]
	case strings.ContainsAny(lower, ".e"):
		f, err := strconv.ParseFloat(t, 64)
		if err != nil {
			return Null()
		}
		return Float(f)
	case len(t) > 1 && t[0] == '0' && !strings.ContainsAny(t, "89"):
		// legacy octal: 017
		base, digits = 8, t[1:]
	}

	if i, err := strconv.ParseInt(digits, base, 32); err == nil {
		return Int(i)
	}
	if u, err := strconv.ParseUint(digits, base, 32); err == nil {
		return Int(int64(u))
	}
	return Null()
}

// decodeString strips the quotes of a string literal and resolves its
// escape sequences.
func decodeString(raw string) string {
	if len(raw) >= 2 {
		raw = raw[1 : len(raw)-1]
	}
	if !strings.ContainsRune(raw, '\\') {
		return raw
	}

	var b strings.Builder
	b.Grow(len(raw))
	for i := 0; i < len(raw); {
		if raw[i] != '\\' {
			b.WriteByte(raw[i])
			i++
			continue
		}
		i++
		if i >= len(raw) {
			break
		}
		r, size := utf8.DecodeRuneInString(raw[i:])
		i += size
		switch r {
		case 'n':
			b.WriteByte('\n')
		case 't':
			b.WriteByte('\t')
		case 'r':
			b.WriteByte('\r')
		case 'b':
			b.WriteByte('\b')
		case 'f':
			b.WriteByte('\f')
		case 'v':
			b.WriteByte('\v')
		case 'x':
			if code, ok := parseHex(raw, i, 2); ok {
				b.WriteRune(rune(code))
				i += 2
			} else {
				b.WriteByte('x')
			}
		case 'u':
			code, n := decodeUnicodeEscape(raw, i)
			if n == 0 {
				b.WriteByte('u')
				continue
			}
			i += n
			if isHighSurrogate(code) && strings.HasPrefix(raw[i:], `\u`) {
				if low, m := decodeUnicodeEscape(raw, i+2); m > 0 && isLowSurrogate(low) {
					code = 0x10000 + (code-0xD800)<<10 + (low - 0xDC00)
					i += 2 + m
				}
			}
			b.WriteRune(rune(code))
		case '\r':
			if i < len(raw) && raw[i] == '\n' {
				i++
			}
		case '\n', '\u2028', '\u2029':
			// line continuation
		case '0', '1', '2', '3', '4', '5', '6', '7':
			code := int(r - '0')
			limit := 2
			if r >= '4' {
				limit = 1
			}
			for ; limit > 0 && i < len(raw) && raw[i] >= '0' && raw[i] <= '7'; limit-- {
				code = code*8 + int(raw[i]-'0')
				i++
			}
			b.WriteRune(rune(code))
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// decodeUnicodeEscape reads the part after `\u` at raw[i:]: either four hex
// digits or a braced code point. It returns the code and bytes consumed.
func decodeUnicodeEscape(raw string, i int) (int, int) {
	if i < len(raw) && raw[i] == '{' {
		end := strings.IndexByte(raw[i:], '}')
		if end < 2 {
			return 0, 0
		}
		code, err := strconv.ParseUint(raw[i+1:i+end], 16, 32)
		if err != nil || code > utf8.MaxRune {
			return 0, 0
		}
		return int(code), end + 1
	}
	code, ok := parseHex(raw, i, 4)
	if !ok {
		return 0, 0
	}
	return code, 4
}

func parseHex(raw string, i, n int) (int, bool) {
	if i+n > len(raw) {
		return 0, false
	}
	code, err := strconv.ParseUint(raw[i:i+n], 16, 32)
	if err != nil {
		return 0, false
	}
	return int(code), true
}

func isHighSurrogate(code int) bool { return code >= 0xD800 && code <= 0xDBFF }

func isLowSurrogate(code int) bool { return code >= 0xDC00 && code <= 0xDFFF }
