package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// ErrInvalidConfig is returned when a configuration value does not have the
// expected shape.
var ErrInvalidConfig = errors.New("invalid config")

// ThisReceiver is the methods key that selects calls on the implicit
// receiver (this.method()).
const ThisReceiver = "this"

// Format names the encoding of records inside the emitted annotation.
type Format string

const (
	FormatObject Format = "object"
	FormatTuple  Format = "tuple"
)

// Config is the user facing configuration of a transform.
type Config struct {
	Title          string              `json:"title" yaml:"title"`
	Functions      []string            `json:"functions" yaml:"functions"`
	Methods        map[string][]string `json:"methods" yaml:"methods"`
	DynamicImports []string            `json:"dynamicImports" yaml:"dynamicImports"`
	Pretty         bool                `json:"pretty" yaml:"pretty"`

	// Format selects the record encoding. Empty means FormatObject.
	Format Format `json:"format,omitempty" yaml:"format,omitempty"`
	// ShallowArguments collapses array and object arguments to null.
	ShallowArguments bool `json:"shallowArguments,omitempty" yaml:"shallowArguments,omitempty"`
	// RawMagicComments keeps the matched comment text instead of the parsed value.
	RawMagicComments bool `json:"rawMagicComments,omitempty" yaml:"rawMagicComments,omitempty"`
}

// RecordFormat returns the effective record format.
func (c Config) RecordFormat() Format {
	if c.Format == "" {
		return FormatObject
	}
	return c.Format
}

// Empty reports whether no pattern is configured at all.
func (c Config) Empty() bool {
	return len(c.Functions) == 0 && len(c.Methods) == 0 && len(c.DynamicImports) == 0
}

// Merge overlays the non-zero fields of other onto c. Slices are appended,
// method lists are appended per object.
func (c Config) Merge(other Config) Config {
	out := c
	if other.Title != "" {
		out.Title = other.Title
	}
	out.Functions = append(append([]string(nil), c.Functions...), other.Functions...)
	out.DynamicImports = append(append([]string(nil), c.DynamicImports...), other.DynamicImports...)
	if len(c.Methods) > 0 || len(other.Methods) > 0 {
		out.Methods = make(map[string][]string, len(c.Methods)+len(other.Methods))
		for obj, names := range c.Methods {
			out.Methods[obj] = append([]string(nil), names...)
		}
		for obj, names := range other.Methods {
			out.Methods[obj] = append(out.Methods[obj], names...)
		}
	}
	if other.Pretty {
		out.Pretty = true
	}
	if other.Format != "" {
		out.Format = other.Format
	}
	if other.ShallowArguments {
		out.ShallowArguments = true
	}
	if other.RawMagicComments {
		out.RawMagicComments = true
	}
	return out
}

// Validate checks the fields whose domain is narrower than their Go type.
func (c Config) Validate() error {
	switch c.Format {
	case "", FormatObject, FormatTuple:
	default:
		return fmt.Errorf("%w: unknown format %q", ErrInvalidConfig, c.Format)
	}
	// The title is written verbatim into a block comment.
	if strings.Contains(c.Title, "*/") {
		return fmt.Errorf("%w: title %q contains \"*/\"", ErrInvalidConfig, c.Title)
	}
	return nil
}

// Parse decodes a configuration document. format is "json" or "yaml"; YAML
// documents are normalised through JSON so both share the same type checks.
func Parse(data []byte, format string) (Config, error) {
	var raw any
	switch strings.ToLower(format) {
	case "json", "":
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.UseNumber()
		if err := dec.Decode(&raw); err != nil {
			return Config{}, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
		}
	case "yaml", "yml":
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return Config{}, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
		}
	default:
		return Config{}, fmt.Errorf("%w: unsupported config format %q", ErrInvalidConfig, format)
	}
	return Decode(raw)
}

// Decode converts an already parsed generic value into a Config. Missing
// fields keep their zero value; a value that is not an object, or a field of
// the wrong type, is an error.
func Decode(raw any) (Config, error) {
	if _, ok := raw.(map[string]any); !ok {
		return Config{}, fmt.Errorf("%w: expected an object, got %s", ErrInvalidConfig, describe(raw))
	}
	data, err := json.Marshal(raw)
	if err != nil {
		return Config{}, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			return Config{}, fmt.Errorf("%w: field %q must not be %s", ErrInvalidConfig, typeErr.Field, typeErr.Value)
		}
		return Config{}, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func describe(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case []any:
		return "an array"
	case string:
		return "a string"
	case bool:
		return "a boolean"
	case json.Number, float64, int, int64, uint64:
		return "a number"
	default:
		return fmt.Sprintf("%T", v)
	}
}
