package reducer

import (
	humanize "github.com/dustin/go-humanize"

	"sentra/internal/embed"
	"sentra/internal/propagate"
	"sentra/internal/typed"
)

// Driver runs the top-level fixed-point loop: it repeatedly shallow-SSAs,
// inlines, and unrolls a function's body until no residual work remains,
// invoking the external propagator between passes.
type Driver struct {
	program *typed.Program
	opts    Options

	versions      *Versions
	substitutions *Substitutions
	cache         *callCache
}

func newDriver(program *typed.Program, opts Options, versions *Versions) *Driver {
	return &Driver{
		program:       program,
		opts:          opts,
		versions:      versions,
		substitutions: NewSubstitutions(),
		cache:         newCallCache(),
	}
}

// Reduce runs the whole algorithm for one function: first shallow SSA; if
// that alone completes the function, return immediately;
// otherwise iterate the statement folder, applying substitutions and the
// external propagator between passes, until the body is call-free and
// loop-free or the iteration bound is exceeded.
func Reduce(f typed.Function, generics typed.GenericsAssignment, program *typed.Program, opts Options) (typed.Function, error) {
	opts = opts.withDefaults()
	versions := NewVersions()

	ssaOut := ShallowSSA(f, generics, versions)
	if ssaOut.Complete {
		return ssaOut.Function, nil
	}

	d := newDriver(program, opts, versions)
	if opts.Cache != nil {
		preload, err := opts.Cache.Load()
		if err != nil {
			return typed.Function{}, err
		}
		for k, v := range preload {
			d.cache.entries[k] = v
		}
	}
	stack := reverseStack(ssaOut.Backups)
	body := ssaOut.Function

	for pass := 0; ; pass++ {
		if pass >= opts.MaxIterations {
			return typed.Function{}, &iterationLimitError{limit: opts.MaxIterations}
		}

		if fatal := d.inliner().resolveSiblingSignatures(body.Statements); fatal != nil {
			return typed.Function{}, fatal
		}

		pr := &passRun{driver: d, stack: stack, complete: true}
		stmts, err := pr.foldStatements(body.Statements)
		if err != nil {
			return typed.Function{}, err
		}
		if len(pr.stack) != 0 {
			panic("reducer: loop-entry stack not fully consumed")
		}
		body.Statements = stmts

		opts.logf("pass %d: %s statements, complete=%v", pass, humanize.Comma(int64(len(stmts))), pr.complete)
		if opts.Watch != nil {
			opts.Watch.Broadcast(stmts)
		}

		if pr.complete {
			if opts.Cache != nil {
				if err := opts.Cache.SaveAll(d.cache); err != nil {
					return typed.Function{}, err
				}
			}
			final := d.substitutions.Canonicalize()
			return final.Apply(body), nil
		}

		body = d.substitutions.Apply(body)
		body = propagate.Fold(body)
		stack = reverseStack(pr.nextStack)
	}
}

func reverseStack(in []map[typed.CoreIdentifier]int) []map[typed.CoreIdentifier]int {
	out := make([]map[typed.CoreIdentifier]int, len(in))
	for i, v := range in {
		out[len(in)-1-i] = v
	}
	return out
}

// passRun folds every statement of a function body exactly once. It
// threads a linear statement buffer that inlined preambles drain into
// immediately before the statement that caused them.
type passRun struct {
	driver   *Driver
	stack    []map[typed.CoreIdentifier]int // L: consumed top-first by For
	nextStack []map[typed.CoreIdentifier]int // L': built for the next pass
	complete bool
}

func (p *passRun) popLoopVersions() map[typed.CoreIdentifier]int {
	n := len(p.stack)
	v := p.stack[n-1]
	p.stack = p.stack[:n-1]
	return v
}

func (p *passRun) foldStatements(stmts []typed.Statement) ([]typed.Statement, error) {
	var out []typed.Statement
	for _, s := range stmts {
		folded, err := p.foldStatement(s)
		if err != nil {
			return nil, err
		}
		out = append(out, folded...)
	}
	return out, nil
}

func (p *passRun) foldStatement(s typed.Statement) ([]typed.Statement, error) {
	var buffer []typed.Statement
	res, err := p.foldStatementInner(s, &buffer)
	if err != nil {
		return nil, err
	}
	return append(buffer, res...), nil
}

func (p *passRun) foldStatementInner(s typed.Statement, buffer *[]typed.Statement) ([]typed.Statement, error) {
	switch n := s.(type) {
	case typed.MultipleDefinition:
		return p.foldMultipleDefinition(n, buffer)
	case typed.For:
		return p.foldFor(n)
	case typed.Definition:
		e, err := p.foldExpr(n.Expr, buffer)
		if err != nil {
			return nil, err
		}
		n.Expr = e
		return []typed.Statement{n}, nil
	case typed.Return:
		exprs := make([]typed.Expression, len(n.Exprs))
		for i, e := range n.Exprs {
			folded, err := p.foldExpr(e, buffer)
			if err != nil {
				return nil, err
			}
			exprs[i] = folded
		}
		n.Exprs = exprs
		return []typed.Statement{n}, nil
	default:
		return []typed.Statement{s}, nil
	}
}

func (p *passRun) foldExprList(es []typed.Expression, buffer *[]typed.Statement) ([]typed.Expression, error) {
	out := make([]typed.Expression, len(es))
	for i, e := range es {
		folded, err := p.foldExpr(e, buffer)
		if err != nil {
			return nil, err
		}
		out[i] = folded
	}
	return out, nil
}

func (p *passRun) foldExpr(e typed.Expression, buffer *[]typed.Statement) (typed.Expression, error) {
	switch n := e.(type) {
	case typed.CallExpr:
		args, err := p.foldExprList(n.Args, buffer)
		if err != nil {
			return nil, err
		}
		return p.foldCall(n.Key, args, []typed.Type{n.Ty}, buffer)
	case typed.BinaryExpr:
		lhs, err := p.foldExpr(n.Lhs, buffer)
		if err != nil {
			return nil, err
		}
		rhs, err := p.foldExpr(n.Rhs, buffer)
		if err != nil {
			return nil, err
		}
		n.Lhs, n.Rhs = lhs, rhs
		return n, nil
	case typed.ArrayValueExpr:
		elems, err := p.foldExprList(n.Elements, buffer)
		if err != nil {
			return nil, err
		}
		n.Elements = elems
		return n, nil
	case typed.StructValueExpr:
		fields := make([]typed.StructField, len(n.Fields))
		for i, f := range n.Fields {
			v, err := p.foldExpr(f.Value, buffer)
			if err != nil {
				return nil, err
			}
			fields[i] = typed.StructField{Name: f.Name, Value: v}
		}
		n.Fields = fields
		return n, nil
	default:
		return e, nil
	}
}

// foldCall handles a call occurring in expression position: it is treated
// identically to a MultipleDefinition call, but synthesises a
// single-return Definition through a Call(0) temporary and returns that
// temporary in the call's place.
func (p *passRun) foldCall(key typed.FunctionKey, args []typed.Expression, outputTypes []typed.Type, buffer *[]typed.Statement) (typed.Expression, error) {
	in := p.driver.inliner()
	res := in.inline(key, args, outputTypes)

	switch res.outcome {
	case outcomeComplete:
		*buffer = append(*buffer, res.statements...)
		return res.expressions[0], nil
	case outcomeIncomplete:
		*buffer = append(*buffer, res.statements...)
		p.complete = false
		p.nextStack = append(p.nextStack, res.backups...)
		return res.expressions[0], nil
	case outcomeFlat:
		id := typed.Identifier{Core: typed.CallIdentifier(0), Version: p.driver.versions.Fresh(typed.CallIdentifier(0))}
		ty := outputTypes[0]
		embedKey := embed.KeyFor(res.embed, p.driver.program.Main, p.driver.opts.FieldModulusBits)
		v := typed.Variable{ID: id, Type: ty}
		*buffer = append(*buffer, typed.MultipleDefinition{
			Vars: []typed.Variable{v},
			Call: typed.CallList{Key: embedKey, Args: args, OutputTypes: outputTypes},
		})
		return typed.IdentExpr{ID: id, Ty: ty}, nil
	case outcomeNonConstant:
		p.complete = false
		return typed.CallExpr{Ty: outputTypes[0], Key: key, Args: args}, nil
	default: // outcomeGeneric: fatal
		return nil, res.fatal
	}
}

func (p *passRun) foldMultipleDefinition(s typed.MultipleDefinition, buffer *[]typed.Statement) ([]typed.Statement, error) {
	args, err := p.foldExprList(s.Call.Args, buffer)
	if err != nil {
		return nil, err
	}

	in := p.driver.inliner()
	res := in.inline(s.Call.Key, args, s.Call.OutputTypes)

	switch res.outcome {
	case outcomeComplete, outcomeIncomplete:
		if res.outcome == outcomeIncomplete {
			p.complete = false
			p.nextStack = append(p.nextStack, res.backups...)
		}
		out := append([]typed.Statement{}, res.statements...)
		for i, v := range s.Vars {
			out = append(out, typed.Definition{Var: v, Expr: res.expressions[i]})
		}
		return out, nil
	case outcomeFlat:
		embedKey := embed.KeyFor(res.embed, p.driver.program.Main, p.driver.opts.FieldModulusBits)
		return []typed.Statement{typed.MultipleDefinition{
			Vars: s.Vars,
			Call: typed.CallList{Key: embedKey, Args: args, OutputTypes: s.Call.OutputTypes},
		}}, nil
	case outcomeNonConstant:
		p.complete = false
		return []typed.Statement{typed.MultipleDefinition{
			Vars: s.Vars,
			Call: typed.CallList{Key: s.Call.Key, Args: args, OutputTypes: s.Call.OutputTypes},
		}}, nil
	default: // outcomeGeneric: fatal
		return nil, res.fatal
	}
}

func (p *passRun) foldFor(f typed.For) ([]typed.Statement, error) {
	versionsBefore := p.popLoopVersions()

	fromLit, fromOK := f.From.Literal()
	toLit, toOK := f.To.Literal()
	if !fromOK || !toOK {
		p.complete = false
		p.nextStack = append(p.nextStack, versionsBefore)
		return []typed.Statement{f}, nil
	}

	v := p.driver.versions
	v.BumpAll()
	p.driver.substitutions.Register(v.Snapshot(), versionsBefore)
	versionsAfter := offsetSnapshot(versionsBefore, 2)

	tr := &transformer{versions: v}
	var out []typed.Statement
	for idx := fromLit; idx < toLit; idx++ {
		iter := make([]typed.Statement, 0, len(f.Body)+1)
		iter = append(iter, typed.Definition{Var: f.Var, Expr: typed.ULit(idx)})
		iter = append(iter, f.Body...)
		for _, s := range iter {
			out = append(out, tr.foldStatement(s)...)
		}
	}

	p.driver.substitutions.Register(versionsAfter, v.Snapshot())
	p.nextStack = append(p.nextStack, tr.backups...)
	p.complete = p.complete && !tr.blocked
	return out, nil
}

func (d *Driver) inliner() *inliner {
	return &inliner{program: d.program, versions: d.versions, cache: d.cache, fieldBits: d.opts.FieldModulusBits}
}

// iterationLimitError is the safety-net error raised when the driver
// cannot be shown to terminate.
type iterationLimitError struct {
	limit int
}

func (e *iterationLimitError) Error() string {
	return "reducer: exceeded maximum fixed-point iterations without reaching a fixed point"
}
