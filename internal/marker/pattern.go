package marker

import (
	"sort"

	"markexpr/internal/config"
)

// ReceiverKind separates named objects from the implicit receiver.
type ReceiverKind uint8

const (
	ReceiverIdent ReceiverKind = iota
	ReceiverThis
)

// Receiver is the object of a method call: a plain identifier or `this`.
type Receiver struct {
	Kind ReceiverKind
	Name string
}

func Ident(name string) Receiver { return Receiver{Kind: ReceiverIdent, Name: name} }

func This() Receiver { return Receiver{Kind: ReceiverThis} }

// ParseReceiver maps a config key to a Receiver; "this" selects the implicit
// receiver.
func ParseReceiver(key string) Receiver {
	if key == config.ThisReceiver {
		return This()
	}
	return Ident(key)
}

func (r Receiver) String() string {
	if r.Kind == ReceiverThis {
		return config.ThisReceiver
	}
	return r.Name
}

// Patterns is the compiled, read-only form of a config.Config.
type Patterns struct {
	title       string
	pretty      bool
	format      config.Format
	shallow     bool
	rawComments bool

	functions  map[string]struct{}
	methods    map[Receiver]map[string]struct{}
	importKeys map[string]struct{}
	sortedKeys []string
}

// NewPatterns compiles cfg. Missing lists simply match nothing.
func NewPatterns(cfg config.Config) *Patterns {
	p := &Patterns{
		title:       cfg.Title,
		pretty:      cfg.Pretty,
		format:      cfg.RecordFormat(),
		shallow:     cfg.ShallowArguments,
		rawComments: cfg.RawMagicComments,
		functions:   toSet(cfg.Functions),
		methods:     make(map[Receiver]map[string]struct{}, len(cfg.Methods)),
		importKeys:  toSet(cfg.DynamicImports),
	}
	for obj, names := range cfg.Methods {
		recv := ParseReceiver(obj)
		set, ok := p.methods[recv]
		if !ok {
			set = make(map[string]struct{}, len(names))
			p.methods[recv] = set
		}
		for _, name := range names {
			set[name] = struct{}{}
		}
	}
	p.sortedKeys = make([]string, 0, len(p.importKeys))
	for key := range p.importKeys {
		p.sortedKeys = append(p.sortedKeys, key)
	}
	sort.Strings(p.sortedKeys)
	return p
}

func toSet(items []string) map[string]struct{} {
	set := make(map[string]struct{}, len(items))
	for _, item := range items {
		set[item] = struct{}{}
	}
	return set
}

func (p *Patterns) Title() string { return p.title }

func (p *Patterns) Pretty() bool { return p.pretty }

func (p *Patterns) Format() config.Format { return p.format }

func (p *Patterns) IsTrackedFunction(name string) bool {
	_, ok := p.functions[name]
	return ok
}

// TrackedMethods returns the sorted method names tracked on recv.
func (p *Patterns) TrackedMethods(recv Receiver) []string {
	set := p.methods[recv]
	names := make([]string, 0, len(set))
	for name := range set {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (p *Patterns) IsTrackedMethod(recv Receiver, method string) bool {
	_, ok := p.methods[recv][method]
	return ok
}

func (p *Patterns) IsDynamicImportKey(key string) bool {
	_, ok := p.importKeys[key]
	return ok
}

// DynamicImportKeys returns the configured magic comment keys, sorted.
func (p *Patterns) DynamicImportKeys() []string {
	return append([]string(nil), p.sortedKeys...)
}

// admits decides whether a parsed magic comment selects its import. With no
// keys configured every object is admitted.
func (p *Patterns) admits(v Value) bool {
	if v.Kind() != KindObject {
		return false
	}
	if len(p.importKeys) == 0 {
		return true
	}
	for _, key := range v.Keys() {
		if !p.IsDynamicImportKey(key) {
			continue
		}
		if field, _ := v.Field(key); field.Truthy() {
			return true
		}
	}
	return false
}
