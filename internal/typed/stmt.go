package typed

import (
	"fmt"
	"strings"
)

// Statement is implemented by every node in a function body.
type Statement interface {
	String() string
	isStatement()
}

// Definition assigns the result of a single expression to one variable.
type Definition struct {
	Var  Variable
	Expr Expression
}

func (Definition) isStatement() {}
func (d Definition) String() string {
	return fmt.Sprintf("%s = %s", d.Var.ID, d.Expr.String())
}

// CallList is a call that returns zero or more values, used as the
// right-hand side of a MultipleDefinition.
type CallList struct {
	Key         FunctionKey
	Args        []Expression
	OutputTypes []Type
}

func (c CallList) String() string {
	parts := make([]string, len(c.Args))
	for i, a := range c.Args {
		parts[i] = a.String()
	}
	return fmt.Sprintf("%s(%s)", c.Key.Name, strings.Join(parts, ", "))
}

// MultipleDefinition assigns every output of a call to its own variable.
type MultipleDefinition struct {
	Vars []Variable
	Call CallList
}

func (MultipleDefinition) isStatement() {}
func (m MultipleDefinition) String() string {
	names := make([]string, len(m.Vars))
	for i, v := range m.Vars {
		names[i] = v.ID.String()
	}
	return fmt.Sprintf("%s = %s", strings.Join(names, ", "), m.Call.String())
}

// Return yields the function's result expressions.
type Return struct {
	Exprs []Expression
}

func (Return) isStatement() {}
func (r Return) String() string {
	parts := make([]string, len(r.Exprs))
	for i, e := range r.Exprs {
		parts[i] = e.String()
	}
	return "return " + strings.Join(parts, ", ")
}

// For is a loop over a literal or symbolic integer range, unrolled by the
// reducer once From and To are both literal.
type For struct {
	Var  Variable
	From UExpr
	To   UExpr
	Body []Statement
}

func (For) isStatement() {}
func (f For) String() string {
	return fmt.Sprintf("for %s in %s..%s { %d stmts }", f.Var.ID, f.From, f.To, len(f.Body))
}

// PushCallLog and PopCallLog bracket an inlined call's statements. They
// carry no semantics; downstream consumers use them for source-location
// attribution.
type PushCallLog struct {
	Key      FunctionKey
	Generics GenericsAssignment
}

func (PushCallLog) isStatement() {}
func (p PushCallLog) String() string {
	return fmt.Sprintf("# PUSH %s %s", p.Key.Name, p.Generics.String())
}

type PopCallLog struct{}

func (PopCallLog) isStatement() {}
func (PopCallLog) String() string { return "# POP" }
