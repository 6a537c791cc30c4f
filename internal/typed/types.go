package typed

import (
	"fmt"
	"sort"
)

// TypeKind enumerates the static type categories the reducer understands.
type TypeKind int

const (
	KindField TypeKind = iota
	KindBool
	KindUint
	KindArray
	KindStruct
)

// Type is shared between declaration signatures (where an array length may
// still reference a generic parameter name) and concrete signatures (where
// it has resolved to a literal). Len carries an Expression rather than a
// bare int so a length that is a symbolic value (e.g. "n-1" before
// propagation, or a generic name before unification) can be represented
// without a separate declared/concrete type hierarchy.
type Type struct {
	Kind   TypeKind
	Bits   int    // KindUint: 8, 16, or 32
	Of     *Type  // KindArray: element type
	Len    UExpr  // KindArray: length, literal or symbolic
	Struct string // KindStruct: struct name
}

func Field() Type { return Type{Kind: KindField} }
func Bool() Type  { return Type{Kind: KindBool} }
func Uint(bits int) Type {
	return Type{Kind: KindUint, Bits: bits}
}
func Array(of Type, length UExpr) Type {
	return Type{Kind: KindArray, Of: &of, Len: length}
}
func ArrayOfLen(of Type, length int) Type {
	return Array(of, ULit(length))
}
func Struct(name string) Type {
	return Type{Kind: KindStruct, Struct: name}
}

// LenLiteral reports the array's length if Len has already resolved to an
// integer literal.
func (t Type) LenLiteral() (int, bool) {
	if t.Kind != KindArray {
		return 0, false
	}
	return t.Len.Literal()
}

// GenericName reports the generic parameter name this type's array length
// refers to, when the length is a bare generic reference (as it is in a
// declaration signature before unification).
func (t Type) GenericName() (string, bool) {
	if t.Kind != KindArray {
		return "", false
	}
	if g, ok := t.Len.(GenericRef); ok {
		return g.Name, true
	}
	return "", false
}

func (t Type) String() string {
	switch t.Kind {
	case KindField:
		return "field"
	case KindBool:
		return "bool"
	case KindUint:
		return fmt.Sprintf("u%d", t.Bits)
	case KindArray:
		return fmt.Sprintf("%s[%s]", t.Of.String(), t.Len.String())
	case KindStruct:
		return t.Struct
	default:
		return "?"
	}
}

// Equal compares two types structurally. Array lengths compare by literal
// value when both are literal, otherwise by generic name, otherwise
// structurally unequal (conservative: an unresolved symbolic length is
// never considered equal to anything but itself).
func (t Type) Equal(o Type) bool {
	if t.Kind != o.Kind {
		return false
	}
	switch t.Kind {
	case KindUint:
		return t.Bits == o.Bits
	case KindArray:
		if !t.Of.Equal(*o.Of) {
			return false
		}
		if tl, ok := t.Len.Literal(); ok {
			if ol, ok2 := o.Len.Literal(); ok2 {
				return tl == ol
			}
			return false
		}
		if tg, ok := t.GenericName(); ok {
			og, ok2 := o.GenericName()
			return ok2 && tg == og
		}
		return t.Len.String() == o.Len.String()
	case KindStruct:
		return t.Struct == o.Struct
	default:
		return true
	}
}

// Signature is a function's typed interface. The same struct serves as
// both declaration signature (array lengths may be GenericRef) and
// concrete signature (array lengths are literal), matching the original
// ZoKrates representation where unification mutates one into the other in
// place rather than via distinct types.
type Signature struct {
	Inputs  []Type
	Outputs []Type
}

func (s Signature) String() string {
	return fmt.Sprintf("%s -> %s", joinTypes(s.Inputs), joinTypes(s.Outputs))
}

func joinTypes(ts []Type) string {
	out := ""
	for i, t := range ts {
		if i > 0 {
			out += ", "
		}
		out += t.String()
	}
	return out
}

// GenericsAssignment maps a function's declared generic parameter names to
// the literal values inferred for one concrete call.
type GenericsAssignment map[string]int

func (g GenericsAssignment) String() string {
	names := make([]string, 0, len(g))
	for k := range g {
		names = append(names, k)
	}
	sort.Strings(names)

	out := "<"
	for i, k := range names {
		if i > 0 {
			out += ", "
		}
		out += fmt.Sprintf("%s=%d", k, g[k])
	}
	return out + ">"
}
