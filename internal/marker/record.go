package marker

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"markexpr/internal/config"
)

// RecordKind tags which pattern produced a Record.
type RecordKind uint8

const (
	FunctionCall RecordKind = iota + 1
	MethodCall
	DynamicImport
)

func (k RecordKind) String() string {
	switch k {
	case FunctionCall:
		return "function"
	case MethodCall:
		return "method"
	case DynamicImport:
		return "import"
	default:
		return fmt.Sprintf("RecordKind(%d)", uint8(k))
	}
}

func parseRecordKind(s string) (RecordKind, error) {
	switch s {
	case "function":
		return FunctionCall, nil
	case "method":
		return MethodCall, nil
	case "import":
		return DynamicImport, nil
	default:
		return 0, fmt.Errorf("unknown record type %q", s)
	}
}

// Record describes one matched call.
type Record struct {
	Kind RecordKind

	// Name is set for FunctionCall.
	Name string
	// Object and Method are set for MethodCall.
	Object Receiver
	Method string
	// MagicComments is set for DynamicImport and is never empty there.
	MagicComments []Value

	Args     []Value
	Position string
}

// ErrMalformedRecord is returned when an encoded record cannot be decoded.
var ErrMalformedRecord = errors.New("malformed record")

type objectRecord struct {
	Type          string  `json:"type"`
	Name          string  `json:"name,omitempty"`
	Object        string  `json:"object,omitempty"`
	Method        string  `json:"method,omitempty"`
	MagicComments []Value `json:"magicComments,omitempty"`
	Args          []Value `json:"args"`
	Position      string  `json:"position"`
}

// MarshalJSON uses the object encoding.
func (r Record) MarshalJSON() ([]byte, error) {
	out := objectRecord{
		Type:     r.Kind.String(),
		Args:     nonNil(r.Args),
		Position: r.Position,
	}
	switch r.Kind {
	case FunctionCall:
		out.Name = r.Name
	case MethodCall:
		out.Object = r.Object.String()
		out.Method = r.Method
	case DynamicImport:
		out.MagicComments = r.MagicComments
	default:
		return nil, fmt.Errorf("%w: kind %s", ErrMalformedRecord, r.Kind)
	}
	return marshalNoEscape(out)
}

// UnmarshalJSON accepts both the object and the tuple encoding.
func (r *Record) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '[' {
		return r.unmarshalTuple(data)
	}

	var in objectRecord
	if err := json.Unmarshal(data, &in); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedRecord, err)
	}
	kind, err := parseRecordKind(in.Type)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedRecord, err)
	}
	*r = Record{Kind: kind, Args: nonNil(in.Args), Position: in.Position}
	switch kind {
	case FunctionCall:
		r.Name = in.Name
	case MethodCall:
		r.Object = ParseReceiver(in.Object)
		r.Method = in.Method
	case DynamicImport:
		r.MagicComments = in.MagicComments
	}
	return nil
}

// tuple returns the positional encoding: [name, args, pos],
// [object, method, args, pos] or ["import", comments, args, pos].
func (r Record) tuple() []any {
	args := nonNil(r.Args)
	switch r.Kind {
	case FunctionCall:
		return []any{r.Name, args, r.Position}
	case MethodCall:
		return []any{r.Object.String(), r.Method, args, r.Position}
	default:
		return []any{"import", r.MagicComments, args, r.Position}
	}
}

func (r *Record) unmarshalTuple(data []byte) error {
	var parts []json.RawMessage
	if err := json.Unmarshal(data, &parts); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedRecord, err)
	}

	var out Record
	var err error
	switch {
	case len(parts) == 3:
		out.Kind = FunctionCall
		err = decodeParts(parts, &out.Name, &out.Args, &out.Position)
	case len(parts) == 4 && firstByte(parts[1]) == '"':
		var object string
		out.Kind = MethodCall
		err = decodeParts(parts, &object, &out.Method, &out.Args, &out.Position)
		out.Object = ParseReceiver(object)
	case len(parts) == 4 && firstByte(parts[1]) == '[':
		var tag string
		out.Kind = DynamicImport
		err = decodeParts(parts, &tag, &out.MagicComments, &out.Args, &out.Position)
		if err == nil && tag != "import" {
			err = fmt.Errorf("unexpected tag %q", tag)
		}
	default:
		err = fmt.Errorf("unexpected tuple of %d elements", len(parts))
	}
	if err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedRecord, err)
	}
	out.Args = nonNil(out.Args)
	*r = out
	return nil
}

func decodeParts(parts []json.RawMessage, targets ...any) error {
	for i, target := range targets {
		if err := json.Unmarshal(parts[i], target); err != nil {
			return err
		}
	}
	return nil
}

func firstByte(raw json.RawMessage) byte {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return 0
	}
	return raw[0]
}

func nonNil(values []Value) []Value {
	if values == nil {
		return []Value{}
	}
	return values
}

// EncodeRecords serializes records as one JSON array in the given format.
func EncodeRecords(records []Record, format config.Format, pretty bool) ([]byte, error) {
	items := make([]any, len(records))
	for i, r := range records {
		if format == config.FormatTuple {
			items[i] = r.tuple()
		} else {
			items[i] = r
		}
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if pretty {
		enc.SetIndent("", "  ")
	}
	if err := enc.Encode(items); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// DecodeRecords parses an array produced by EncodeRecords.
func DecodeRecords(data []byte) ([]Record, error) {
	var records []Record
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, err
	}
	return records, nil
}

func marshalNoEscape(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}
