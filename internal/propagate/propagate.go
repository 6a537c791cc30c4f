// Package propagate implements the constant-folding pass the reducer
// treats as a black box between fixed-point iterations. It substitutes
// literal-valued definitions (Call(i) return-slot temporaries included)
// into later reads, collapses arithmetic on literals, and may turn a
// symbolic loop bound or generic binding into a literal the next driver
// pass can act on. A variable bound to a non-literal expression, Call(i)
// temporaries included, is not substituted.
package propagate

import "sentra/internal/typed"

// Fold returns a copy of f with every statement's expressions constant
// folded. It is a single forward pass: once a variable's defining
// expression resolves to a literal, every later read of that exact
// (core-id, version) is replaced with the literal inline, so a chain like
// "n := 2; field[n-1] b" folds "n-1" to "1" in one call.
func Fold(f typed.Function) typed.Function {
	env := map[typed.Identifier]typed.Expression{}
	stmts := make([]typed.Statement, len(f.Statements))
	for i, s := range f.Statements {
		stmts[i] = foldStatement(s, env)
	}
	f.Statements = stmts
	return f
}

func foldStatement(s typed.Statement, env map[typed.Identifier]typed.Expression) typed.Statement {
	switch n := s.(type) {
	case typed.Definition:
		n.Expr = foldExpr(n.Expr, env)
		if isLiteral(n.Expr) {
			env[n.Var.ID] = n.Expr
		}
		return n
	case typed.MultipleDefinition:
		args := make([]typed.Expression, len(n.Call.Args))
		for i, a := range n.Call.Args {
			args[i] = foldExpr(a, env)
		}
		n.Call.Args = args
		return n
	case typed.Return:
		exprs := make([]typed.Expression, len(n.Exprs))
		for i, e := range n.Exprs {
			exprs[i] = foldExpr(e, env)
		}
		n.Exprs = exprs
		return n
	case typed.For:
		n.From = foldExpr(n.From, env).(typed.UExpr)
		n.To = foldExpr(n.To, env).(typed.UExpr)
		// A loop body is a private scope the outer propagation pass does
		// not see into (mirrors the reducer's own shallow-SSA boundary):
		// folding only the bounds is enough to unblock unrolling.
		return n
	default:
		return s
	}
}

func foldExpr(e typed.Expression, env map[typed.Identifier]typed.Expression) typed.Expression {
	switch n := e.(type) {
	case typed.IdentExpr:
		if v, ok := env[n.ID]; ok {
			return v
		}
		return n
	case typed.BinaryExpr:
		n.Lhs = foldExpr(n.Lhs, env)
		n.Rhs = foldExpr(n.Rhs, env)
		if l, lok := litInt(n.Lhs); lok {
			if r, rok := litInt(n.Rhs); rok {
				if v, ok := evalBinary(n.Op, l, r); ok {
					return typed.LitExpr{Ty: n.Ty, Int: v, IsInt: true}
				}
			}
		}
		return n
	case typed.ArrayValueExpr:
		elems := make([]typed.Expression, len(n.Elements))
		for i, el := range n.Elements {
			elems[i] = foldExpr(el, env)
		}
		n.Elements = elems
		if n.Ty.Len != nil {
			n.Ty.Len = foldExpr(n.Ty.Len, env).(typed.UExpr)
		}
		return n
	case typed.StructValueExpr:
		fields := make([]typed.StructField, len(n.Fields))
		for i, f := range n.Fields {
			fields[i] = typed.StructField{Name: f.Name, Value: foldExpr(f.Value, env)}
		}
		n.Fields = fields
		return n
	case typed.CallExpr:
		args := make([]typed.Expression, len(n.Args))
		for i, a := range n.Args {
			args[i] = foldExpr(a, env)
		}
		n.Args = args
		return n
	default:
		return e
	}
}

func isLiteral(e typed.Expression) bool {
	_, ok := e.(typed.LitExpr)
	return ok
}

func litInt(e typed.Expression) (int, bool) {
	if l, ok := e.(typed.LitExpr); ok && l.IsInt {
		return l.Int, true
	}
	return 0, false
}

func evalBinary(op string, l, r int) (int, bool) {
	switch op {
	case "+":
		return l + r, true
	case "-":
		return l - r, true
	case "*":
		return l * r, true
	case "/":
		if r == 0 {
			return 0, false
		}
		return l / r, true
	default:
		return 0, false
	}
}
