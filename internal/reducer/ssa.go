package reducer

import "sentra/internal/typed"

// SSAOutput is the Complete/Incomplete envelope every SSA/inline/unroll
// step returns.
type SSAOutput struct {
	Function typed.Function
	Complete bool
	// Backups is the stack of loop-entry version snapshots the driver
	// must consume on its next pass, one per For left un-descended.
	Backups []map[typed.CoreIdentifier]int
}

// transformer renames definitions and uses in a single function body. It
// records, but does not descend into, calls and loops.
type transformer struct {
	versions *Versions
	blocked  bool
	backups  []map[typed.CoreIdentifier]int
}

// ShallowSSA runs the shallow SSA transformer on f: it prepends one
// Definition per generic parameter binding, then walks the body renaming
// reads to their current version and allocating a fresh version for every
// LHS, without descending into loop bodies or callees.
func ShallowSSA(f typed.Function, generics typed.GenericsAssignment, v *Versions) SSAOutput {
	t := &transformer{versions: v}

	for _, arg := range f.Arguments {
		v.MarkArgument(arg.ID.Core)
	}

	var stmts []typed.Statement
	for _, name := range f.Generics {
		val := generics[name]
		core := typed.UserIdentifier(name)
		version := v.Fresh(core)
		id := typed.Identifier{Core: core, Version: version}
		stmts = append(stmts, typed.Definition{
			Var:  typed.Variable{ID: id, Type: typed.Uint(32)},
			Expr: typed.ULit(val),
		})
	}

	for _, s := range f.Statements {
		stmts = append(stmts, t.foldStatement(s)...)
	}

	f.Statements = stmts
	return SSAOutput{Function: f, Complete: !t.blocked, Backups: t.backups}
}

func (t *transformer) foldExpr(e typed.Expression) typed.Expression {
	switch n := e.(type) {
	case typed.IdentExpr:
		n.ID = n.ID.WithVersion(t.versions.Current(n.ID.Core))
		return n
	case typed.LitExpr:
		return n
	case typed.GenericRef:
		return n
	case typed.BinaryExpr:
		n.Lhs = t.foldExpr(n.Lhs)
		n.Rhs = t.foldExpr(n.Rhs)
		return n
	case typed.ArrayValueExpr:
		elems := make([]typed.Expression, len(n.Elements))
		for i, el := range n.Elements {
			elems[i] = t.foldExpr(el)
		}
		n.Elements = elems
		if n.Ty.Len != nil {
			n.Ty.Len = t.foldUExpr(n.Ty.Len)
		}
		return n
	case typed.StructValueExpr:
		fields := make([]typed.StructField, len(n.Fields))
		for i, f := range n.Fields {
			fields[i] = typed.StructField{Name: f.Name, Value: t.foldExpr(f.Value)}
		}
		n.Fields = fields
		return n
	case typed.CallExpr:
		// A user (or not-yet-resolved) call in expression position is
		// left in place: we still rename its arguments, but the callee
		// itself is untouched and the transform is marked incomplete.
		args := make([]typed.Expression, len(n.Args))
		for i, a := range n.Args {
			args[i] = t.foldExpr(a)
		}
		n.Args = args
		t.blocked = true
		return n
	default:
		return e
	}
}

func (t *transformer) foldUExpr(e typed.UExpr) typed.UExpr {
	return t.foldExpr(e).(typed.UExpr)
}

func (t *transformer) freshVar(v typed.Variable) typed.Variable {
	v.ID.Version = t.versions.Fresh(v.ID.Core)
	return v
}

func (t *transformer) foldStatement(s typed.Statement) []typed.Statement {
	switch n := s.(type) {
	case typed.Definition:
		n.Expr = t.foldExpr(n.Expr)
		n.Var = t.freshVar(n.Var)
		return []typed.Statement{n}

	case typed.MultipleDefinition:
		args := make([]typed.Expression, len(n.Call.Args))
		for i, a := range n.Call.Args {
			args[i] = t.foldExpr(a)
		}
		n.Call.Args = args
		t.blocked = true

		vars := make([]typed.Variable, len(n.Vars))
		for i, v := range n.Vars {
			vars[i] = t.freshVar(v)
		}
		n.Vars = vars
		return []typed.Statement{n}

	case typed.Return:
		exprs := make([]typed.Expression, len(n.Exprs))
		for i, e := range n.Exprs {
			exprs[i] = t.foldExpr(e)
		}
		n.Exprs = exprs
		return []typed.Statement{n}

	case typed.For:
		t.backups = append(t.backups, t.versions.Snapshot())
		// Reserve the "+2" floor (version.go's offsetSnapshot convention)
		// immediately: one slot the unrolled body's first iteration reads
		// as its carried-in value, one slot code after the loop reads as
		// the carried-out value. Without this, a read after the loop
		// would resolve via Current() to the pre-loop version and never
		// match either substitution foldFor registers.
		t.versions.BumpAll()
		t.versions.BumpAll()
		t.blocked = true
		n.From = t.foldUExpr(n.From)
		n.To = t.foldUExpr(n.To)
		return []typed.Statement{n}

	case typed.PushCallLog, typed.PopCallLog:
		return []typed.Statement{s}

	default:
		return []typed.Statement{s}
	}
}
