package marker

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/yosuke-furukawa/json5/encoding/json5"
)

// Kind tags the variant held by a Value.
type Kind uint8

const (
	KindNull Kind = iota
	KindBool
	KindInt
	KindFloat
	KindString
	KindArray
	KindObject
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "bool"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindString:
		return "string"
	case KindArray:
		return "array"
	case KindObject:
		return "object"
	default:
		return fmt.Sprintf("Kind(%d)", uint8(k))
	}
}

// Value is a JSON compatible structured value. The zero Value is null.
type Value struct {
	kind Kind
	b    bool
	i    int64
	f    float64
	s    string
	arr  []Value
	obj  map[string]Value
}

func Null() Value { return Value{} }

func Bool(b bool) Value { return Value{kind: KindBool, b: b} }

func Int(i int64) Value { return Value{kind: KindInt, i: i} }

// Float returns a float Value. NaN and infinities have no JSON form and
// become null.
func Float(f float64) Value {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return Null()
	}
	return Value{kind: KindFloat, f: f}
}

func String(s string) Value { return Value{kind: KindString, s: s} }

func Array(elems ...Value) Value {
	arr := make([]Value, len(elems))
	copy(arr, elems)
	return Value{kind: KindArray, arr: arr}
}

func Object(fields map[string]Value) Value {
	obj := make(map[string]Value, len(fields))
	for k, v := range fields {
		obj[k] = v
	}
	return Value{kind: KindObject, obj: obj}
}

func (v Value) Kind() Kind { return v.kind }

func (v Value) IsNull() bool { return v.kind == KindNull }

func (v Value) AsBool() bool { return v.b }

func (v Value) AsInt() int64 { return v.i }

func (v Value) AsFloat() float64 {
	if v.kind == KindInt {
		return float64(v.i)
	}
	return v.f
}

func (v Value) AsString() string { return v.s }

// Elems returns the elements of an array Value.
func (v Value) Elems() []Value { return v.arr }

// Field looks up key in an object Value.
func (v Value) Field(key string) (Value, bool) {
	if v.kind != KindObject {
		return Value{}, false
	}
	field, ok := v.obj[key]
	return field, ok
}

// Keys returns the keys of an object Value in sorted order.
func (v Value) Keys() []string {
	keys := make([]string, 0, len(v.obj))
	for k := range v.obj {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Truthy reports whether v counts as set in a magic comment: true, a
// non-zero number, a non-empty string, or any array or object.
func (v Value) Truthy() bool {
	switch v.kind {
	case KindBool:
		return v.b
	case KindInt:
		return v.i != 0
	case KindFloat:
		return v.f != 0
	case KindString:
		return v.s != ""
	case KindArray, KindObject:
		return true
	default:
		return false
	}
}

// Equal reports deep equality. An int and a float holding the same number
// are different values.
func (v Value) Equal(other Value) bool {
	if v.kind != other.kind {
		return false
	}
	switch v.kind {
	case KindNull:
		return true
	case KindBool:
		return v.b == other.b
	case KindInt:
		return v.i == other.i
	case KindFloat:
		return v.f == other.f
	case KindString:
		return v.s == other.s
	case KindArray:
		if len(v.arr) != len(other.arr) {
			return false
		}
		for i := range v.arr {
			if !v.arr[i].Equal(other.arr[i]) {
				return false
			}
		}
		return true
	case KindObject:
		if len(v.obj) != len(other.obj) {
			return false
		}
		for k, field := range v.obj {
			o, ok := other.obj[k]
			if !ok || !field.Equal(o) {
				return false
			}
		}
		return true
	}
	return false
}

func (v Value) String() string {
	data, err := v.MarshalJSON()
	if err != nil {
		return "<" + err.Error() + ">"
	}
	return string(data)
}

// MarshalJSON writes v as JSON. Object keys are sorted and floats always
// carry a fraction or an exponent so they decode back as floats.
func (v Value) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	if err := v.encode(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (v Value) encode(buf *bytes.Buffer) error {
	switch v.kind {
	case KindNull:
		buf.WriteString("null")
	case KindBool:
		buf.WriteString(strconv.FormatBool(v.b))
	case KindInt:
		buf.WriteString(strconv.FormatInt(v.i, 10))
	case KindFloat:
		buf.WriteString(formatFloat(v.f))
	case KindString:
		return encodeString(buf, v.s)
	case KindArray:
		buf.WriteByte('[')
		for i, elem := range v.arr {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := elem.encode(buf); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
	case KindObject:
		buf.WriteByte('{')
		for i, key := range v.Keys() {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := encodeString(buf, key); err != nil {
				return err
			}
			buf.WriteByte(':')
			if err := v.obj[key].encode(buf); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
	default:
		return fmt.Errorf("marker: cannot encode value of kind %s", v.kind)
	}
	return nil
}

func encodeString(buf *bytes.Buffer, s string) error {
	enc := json.NewEncoder(buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(s); err != nil {
		return err
	}
	// Encode terminates with a newline.
	buf.Truncate(buf.Len() - 1)
	return nil
}

func formatFloat(f float64) string {
	abs := math.Abs(f)
	var s string
	if abs != 0 && (abs < 1e-6 || abs >= 1e21) {
		s = strconv.FormatFloat(f, 'e', -1, 64)
	} else {
		s = strconv.FormatFloat(f, 'f', -1, 64)
	}
	if !strings.ContainsAny(s, ".e") {
		s += ".0"
	}
	return s
}

// UnmarshalJSON decodes any JSON document into v. Numbers written with a
// fraction or exponent decode as floats, all others as ints.
func (v *Value) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var raw any
	if err := dec.Decode(&raw); err != nil {
		return err
	}
	*v = FromJSON(raw)
	return nil
}

// FromJSON converts a generic decoded JSON value (as produced by
// encoding/json or a JSON5 decoder) into a Value.
func FromJSON(raw any) Value {
	switch x := raw.(type) {
	case nil:
		return Null()
	case bool:
		return Bool(x)
	case string:
		return String(x)
	case json5.Number:
		return FromJSON(json.Number(x))
	case json.Number:
		text := x.String()
		if !strings.ContainsAny(text, ".eE") {
			if i, err := strconv.ParseInt(text, 10, 64); err == nil {
				return Int(i)
			}
		}
		f, err := strconv.ParseFloat(text, 64)
		if err != nil {
			return Null()
		}
		return Float(f)
	case float64:
		if x == math.Trunc(x) && math.Abs(x) <= 1<<53 {
			return Int(int64(x))
		}
		return Float(x)
	case float32:
		return FromJSON(float64(x))
	case int:
		return Int(int64(x))
	case int64:
		return Int(x)
	case uint64:
		if x > math.MaxInt64 {
			return Float(float64(x))
		}
		return Int(int64(x))
	case []any:
		elems := make([]Value, len(x))
		for i, elem := range x {
			elems[i] = FromJSON(elem)
		}
		return Value{kind: KindArray, arr: elems}
	case map[string]any:
		fields := make(map[string]Value, len(x))
		for k, field := range x {
			fields[k] = FromJSON(field)
		}
		return Value{kind: KindObject, obj: fields}
	default:
		return Null()
	}
}
