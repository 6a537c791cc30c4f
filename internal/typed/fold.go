package typed

// IdentRewriter is applied to every identifier occurrence (both
// definitions and reads) during a full-function rewrite. It is the
// generic fold substitution map application is built on.
type IdentRewriter func(Identifier) Identifier

// RewriteExpr returns a copy of e with every identifier occurrence passed
// through rw. Calls are rewritten structurally (their arguments are
// expressions like any other); the call's own key is untouched.
func RewriteExpr(e Expression, rw IdentRewriter) Expression {
	switch n := e.(type) {
	case IdentExpr:
		n.ID = rw(n.ID)
		return n
	case LitExpr:
		return n
	case GenericRef:
		return n
	case BinaryExpr:
		n.Lhs = RewriteExpr(n.Lhs, rw)
		n.Rhs = RewriteExpr(n.Rhs, rw)
		return n
	case ArrayValueExpr:
		elems := make([]Expression, len(n.Elements))
		for i, el := range n.Elements {
			elems[i] = RewriteExpr(el, rw)
		}
		n.Elements = elems
		if n.Ty.Len != nil {
			n.Ty.Len = rewriteUExpr(n.Ty.Len, rw)
		}
		return n
	case StructValueExpr:
		fields := make([]StructField, len(n.Fields))
		for i, f := range n.Fields {
			fields[i] = StructField{Name: f.Name, Value: RewriteExpr(f.Value, rw)}
		}
		n.Fields = fields
		return n
	case CallExpr:
		args := make([]Expression, len(n.Args))
		for i, a := range n.Args {
			args[i] = RewriteExpr(a, rw)
		}
		n.Args = args
		return n
	default:
		return e
	}
}

func rewriteUExpr(e UExpr, rw IdentRewriter) UExpr {
	return RewriteExpr(e, rw).(UExpr)
}

// RewriteStatement returns a copy of s with every identifier read passed
// through rw. LHS variables (of a Definition, MultipleDefinition or For)
// are left untouched; RewriteStatementFull rewrites those too.
func RewriteStatement(s Statement, rw IdentRewriter) Statement {
	switch n := s.(type) {
	case Definition:
		n.Var = n.Var // LHS rewritten by caller when that's the intent; see RewriteStatementFull
		n.Expr = RewriteExpr(n.Expr, rw)
		return n
	case MultipleDefinition:
		args := make([]Expression, len(n.Call.Args))
		for i, a := range n.Call.Args {
			args[i] = RewriteExpr(a, rw)
		}
		n.Call.Args = args
		return n
	case Return:
		exprs := make([]Expression, len(n.Exprs))
		for i, e := range n.Exprs {
			exprs[i] = RewriteExpr(e, rw)
		}
		n.Exprs = exprs
		return n
	case For:
		n.From = rewriteUExpr(n.From, rw)
		n.To = rewriteUExpr(n.To, rw)
		body := make([]Statement, len(n.Body))
		for i, st := range n.Body {
			body[i] = RewriteStatement(st, rw)
		}
		n.Body = body
		return n
	default:
		return s
	}
}

// RewriteStatementFull additionally rewrites every Variable on the LHS of
// a Definition/MultipleDefinition/For through rw. This is what applying a
// version substitution map needs (both reads and definitions can be
// redirected). Shallow SSA does not go through this fold at all: it
// assigns LHS variables a brand new version directly, in its own walk.
func RewriteStatementFull(s Statement, rw IdentRewriter) Statement {
	s = RewriteStatement(s, rw)
	switch n := s.(type) {
	case Definition:
		n.Var.ID = rw(n.Var.ID)
		return n
	case MultipleDefinition:
		vars := make([]Variable, len(n.Vars))
		for i, v := range n.Vars {
			v.ID = rw(v.ID)
			vars[i] = v
		}
		n.Vars = vars
		return n
	case For:
		n.Var.ID = rw(n.Var.ID)
		return n
	default:
		return s
	}
}

// RewriteFunction applies RewriteStatementFull to every statement of f's
// body, in place (returning a copy with a new Statements slice).
func RewriteFunction(f Function, rw IdentRewriter) Function {
	stmts := make([]Statement, len(f.Statements))
	for i, s := range f.Statements {
		stmts[i] = RewriteStatementFull(s, rw)
	}
	f.Statements = stmts
	return f
}
