package typed

import (
	"fmt"
	"strings"
)

// Variable is an identifier paired with its static type.
type Variable struct {
	ID   Identifier
	Type Type
}

func NewVariable(name string, t Type) Variable {
	return Variable{ID: NewIdentifier(name), Type: t}
}

func (v Variable) WithVersion(version int) Variable {
	return Variable{ID: v.ID.WithVersion(version), Type: v.Type}
}

// FunctionKey fully qualifies a function: its module and name, plus either
// a declaration signature (when the owning Function declares generics, its
// Inputs/Outputs carry GenericRef lengths) or a concrete signature (all
// generics substituted). Lookup only ever uses Module+Name: one name
// names one declaration in a module, exactly as each call site in this IR
// references a callee purely by name. The Signature field exists for
// display (error messages render both the declared and concrete key) and
// is not part of map identity, since Type/Signature embed slices and so
// are not Go-comparable.
type FunctionKey struct {
	Module    string
	Name      string
	Signature Signature
}

func (k FunctionKey) String() string {
	generics := genericNamesIn(k.Signature)
	name := k.Name
	if len(generics) > 0 {
		name = fmt.Sprintf("%s<%s>", name, strings.Join(generics, ","))
	}
	return fmt.Sprintf("%s/%s: %s", k.Module, name, k.Signature)
}

// genericNamesIn collects, in first-appearance order, every generic
// parameter name referenced by an array length within sig.
func genericNamesIn(sig Signature) []string {
	var names []string
	seen := map[string]bool{}
	visit := func(t Type) {
		var walk func(Type)
		walk = func(t Type) {
			if t.Kind == KindArray {
				if name, ok := t.GenericName(); ok && !seen[name] {
					seen[name] = true
					names = append(names, name)
				}
				walk(*t.Of)
			}
		}
		walk(t)
	}
	for _, t := range sig.Inputs {
		visit(t)
	}
	for _, t := range sig.Outputs {
		visit(t)
	}
	return names
}

// Function is a declared-generic header, typed arguments, a body, and the
// declaration signature under which it is registered in its module.
type Function struct {
	Generics  []string
	Arguments []Variable
	Statements []Statement
	Signature Signature
}

// EmbedKind enumerates the opaque flat-embed primitives materialised
// directly as circuit gates by a later pass. They are never reduced
// further; the reducer only needs their key and concrete signature.
type EmbedKind int

const (
	EmbedUnpack EmbedKind = iota
	EmbedU8ToBits
	EmbedU16ToBits
	EmbedU32ToBits
	EmbedU8FromBits
	EmbedU16FromBits
	EmbedU32FromBits
)

func (k EmbedKind) String() string {
	switch k {
	case EmbedUnpack:
		return "Unpack"
	case EmbedU8ToBits:
		return "U8ToBits"
	case EmbedU16ToBits:
		return "U16ToBits"
	case EmbedU32ToBits:
		return "U32ToBits"
	case EmbedU8FromBits:
		return "U8FromBits"
	case EmbedU16FromBits:
		return "U16FromBits"
	case EmbedU32FromBits:
		return "U32FromBits"
	default:
		return "?"
	}
}

// FunctionSymbol is what a module maps a function key to: either a
// user-defined function body (Here) or an opaque flat embed (Flat).
type FunctionSymbol struct {
	Here *Function
	Flat *EmbedKind
}

func HereSymbol(f *Function) FunctionSymbol { return FunctionSymbol{Here: f} }
func FlatSymbol(k EmbedKind) FunctionSymbol { return FunctionSymbol{Flat: &k} }

func (s FunctionSymbol) IsFlat() bool { return s.Flat != nil }

// Module maps a function name to its symbol. Lookup by name alone is
// sufficient: see FunctionKey's doc comment.
type Module struct {
	Functions map[string]FunctionSymbol
}

func NewModule() *Module {
	return &Module{Functions: make(map[string]FunctionSymbol)}
}

// Resolve looks up name in m, reporting ok=false if undeclared.
func (m *Module) Resolve(name string) (FunctionSymbol, bool) {
	sym, ok := m.Functions[name]
	return sym, ok
}

// Program is a root module id plus every module reachable from it.
type Program struct {
	Main    string
	Modules map[string]*Module
}

func NewProgram(main string) *Program {
	return &Program{Main: main, Modules: map[string]*Module{main: NewModule()}}
}

// MainModule returns the designated entry module.
func (p *Program) MainModule() *Module {
	return p.Modules[p.Main]
}
