package typed

import (
	"fmt"
	"strings"
)

// Expression is implemented by every node in the typed expression tree.
// The sum-over-categories shape described by the IR (field, boolean,
// unsigned-integer, array, struct) is carried by each node's own ExprType,
// not by five parallel Go types: the fold performed by the reducer is
// identical across categories (rename identifier reads, recurse into
// sub-expressions, special-case calls), so one family of node kinds
// serves all five.
type Expression interface {
	ExprType() Type
	String() string
}

// UExpr narrows Expression to nodes usable as an array length or a loop
// bound: anything of Uint type, plus the bare GenericRef that appears only
// in declaration signatures before unification.
type UExpr interface {
	Expression
	Literal() (int, bool)
}

// IdentExpr reads an identifier's current SSA version.
type IdentExpr struct {
	ID Identifier
	Ty Type
}

func (e IdentExpr) ExprType() Type { return e.Ty }
func (e IdentExpr) String() string { return e.ID.String() }
func (e IdentExpr) Literal() (int, bool) {
	return 0, false
}

// LitExpr is an integer, field, or boolean literal.
type LitExpr struct {
	Ty    Type
	Int   int
	Bool  bool
	IsInt bool
}

func ULit(n int) LitExpr   { return LitExpr{Ty: Uint(32), Int: n, IsInt: true} }
func FieldLit(n int) LitExpr { return LitExpr{Ty: Field(), Int: n, IsInt: true} }
func BoolLit(b bool) LitExpr { return LitExpr{Ty: Bool(), Bool: b} }

func (e LitExpr) ExprType() Type { return e.Ty }
func (e LitExpr) String() string {
	if e.Ty.Kind == KindBool {
		return fmt.Sprintf("%v", e.Bool)
	}
	return fmt.Sprintf("%d", e.Int)
}
func (e LitExpr) Literal() (int, bool) {
	if e.IsInt {
		return e.Int, true
	}
	return 0, false
}

// GenericRef appears only as an array's Len in a declaration signature: a
// bare reference to one of the callee's declared generic parameter names,
// not yet bound to a value.
type GenericRef struct {
	Name string
}

func (e GenericRef) ExprType() Type        { return Uint(32) }
func (e GenericRef) String() string        { return e.Name }
func (e GenericRef) Literal() (int, bool)  { return 0, false }

// BinaryExpr covers the arithmetic/boolean operators the propagator folds
// (e.g. "n-1" in an array-length position, "s+i" in a loop body).
type BinaryExpr struct {
	Ty       Type
	Op       string
	Lhs, Rhs Expression
}

func (e BinaryExpr) ExprType() Type { return e.Ty }
func (e BinaryExpr) String() string {
	return fmt.Sprintf("(%s %s %s)", e.Lhs.String(), e.Op, e.Rhs.String())
}
func (e BinaryExpr) Literal() (int, bool) { return 0, false }

// ArrayValueExpr is an array literal.
type ArrayValueExpr struct {
	Ty       Type
	Elements []Expression
}

func (e ArrayValueExpr) ExprType() Type { return e.Ty }
func (e ArrayValueExpr) String() string {
	parts := make([]string, len(e.Elements))
	for i, el := range e.Elements {
		parts[i] = el.String()
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

// StructValueExpr is a struct literal, field name to value.
type StructValueExpr struct {
	Ty     Type
	Fields []StructField
}

type StructField struct {
	Name  string
	Value Expression
}

func (e StructValueExpr) ExprType() Type { return e.Ty }
func (e StructValueExpr) String() string {
	parts := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		parts[i] = fmt.Sprintf("%s: %s", f.Name, f.Value.String())
	}
	return e.Ty.Struct + "{" + strings.Join(parts, ", ") + "}"
}

// CallExpr is a user or flat-embed function call occurring in expression
// position. The shallow SSA transformer leaves it in place; the driver
// replaces it with a Call(0) identifier read once inlined.
type CallExpr struct {
	Ty   Type
	Key  FunctionKey
	Args []Expression
}

func (e CallExpr) ExprType() Type { return e.Ty }
func (e CallExpr) String() string {
	parts := make([]string, len(e.Args))
	for i, a := range e.Args {
		parts[i] = a.String()
	}
	return fmt.Sprintf("%s(%s)", e.Key.Name, strings.Join(parts, ", "))
}
