package reducer

import (
	"strings"

	"golang.org/x/sync/errgroup"

	"sentra/internal/typed"
)

// inlineOutcome tags what inline() discovered about a call site.
type inlineOutcome int

const (
	outcomeComplete inlineOutcome = iota
	outcomeIncomplete
	outcomeFlat
	outcomeNonConstant
	outcomeGeneric // fatal, reported to the caller as Error(KindIncompatible)
)

// inlineResult is the inliner's report for one call site.
type inlineResult struct {
	outcome     inlineOutcome
	statements  []typed.Statement
	expressions []typed.Expression
	backups     []map[typed.CoreIdentifier]int

	embed typed.EmbedKind

	fatal *Error
}

// callCache memoises (concrete function, argument list) -> result
// expressions, keyed by string rendering since Type/Expression embed
// slices and are not Go-comparable.
type callCache struct {
	entries map[string][]typed.Expression
}

func newCallCache() *callCache {
	return &callCache{entries: make(map[string][]typed.Expression)}
}

func cacheKey(key typed.FunctionKey, args []typed.Expression) string {
	var b strings.Builder
	b.WriteString(key.String())
	for _, a := range args {
		b.WriteByte('|')
		b.WriteString(a.String())
	}
	return b.String()
}

// inliner runs the inliner algorithm against one program, sharing a
// version map and call cache across every call site in a reduction.
type inliner struct {
	program   *typed.Program
	versions  *Versions
	cache     *callCache
	fieldBits int
}

// inline resolves declKey against the program, unifies its declared
// argument types with args' actual types, and either returns the embed
// directive, the fatal incompatibility, the recoverable non-constant
// directive, or the specialised+renamed callee body.
func (in *inliner) inline(declKey typed.FunctionKey, args []typed.Expression, outputTypes []typed.Type) inlineResult {
	module, ok := in.program.Modules[declKey.Module]
	if !ok {
		return inlineResult{outcome: outcomeGeneric, fatal: incompatible(declKey.String(), concreteSigString(declKey, args, outputTypes))}
	}
	sym, ok := module.Resolve(declKey.Name)
	if !ok {
		return inlineResult{outcome: outcomeGeneric, fatal: incompatible(declKey.String(), concreteSigString(declKey, args, outputTypes))}
	}

	if sym.IsFlat() {
		return inlineResult{outcome: outcomeFlat, embed: *sym.Flat}
	}

	callee := sym.Here

	generics := typed.GenericsAssignment{}
	nonConstant := false
	argTypes := make([]typed.Type, len(args))
	for i, a := range args {
		argTypes[i] = a.ExprType()
	}
	for i, declared := range signatureInputs(callee) {
		if i >= len(argTypes) {
			break
		}
		nc, ok := unifyType(declared, argTypes[i], generics)
		if !ok {
			return inlineResult{
				outcome: outcomeGeneric,
				fatal:   incompatible(declKey.String(), concreteSigString(declKey, args, outputTypes)),
			}
		}
		nonConstant = nonConstant || nc
	}
	for i, declared := range callee.Signature.Outputs {
		if i >= len(outputTypes) {
			break
		}
		nc, ok := unifyType(declared, outputTypes[i], generics)
		if !ok {
			return inlineResult{
				outcome: outcomeGeneric,
				fatal:   incompatible(declKey.String(), concreteSigString(declKey, args, outputTypes)),
			}
		}
		nonConstant = nonConstant || nc
	}
	for _, name := range callee.Generics {
		if _, bound := generics[name]; !bound {
			nonConstant = true
		}
	}

	if nonConstant {
		return inlineResult{outcome: outcomeNonConstant}
	}

	concreteKey := typed.FunctionKey{
		Module:    declKey.Module,
		Name:      declKey.Name,
		Signature: substituteSignature(callee.Signature, generics),
	}

	ck := cacheKey(concreteKey, args)
	if cached, ok := in.cache.entries[ck]; ok {
		return inlineResult{outcome: outcomeComplete, expressions: cached}
	}

	bindings := buildCalleeBindings(*callee, args, in.versions)
	body := typed.Function{
		Generics:   callee.Generics,
		Arguments:  callee.Arguments,
		Statements: callee.Statements,
		Signature:  callee.Signature,
	}
	out := ShallowSSA(body, generics, in.versions)

	stmts, returns := splitReturn(out.Function.Statements)
	stmts = append(append([]typed.Statement{}, bindings...), stmts...)

	results := make([]typed.Expression, len(returns))
	var trailer []typed.Statement
	for i, e := range returns {
		core := typed.CallIdentifier(i)
		version := in.versions.Fresh(core)
		id := typed.Identifier{Core: core, Version: version}
		ty := outputTypes[i]
		trailer = append(trailer, typed.Definition{Var: typed.Variable{ID: id, Type: ty}, Expr: e})
		results[i] = typed.IdentExpr{ID: id, Ty: ty}
	}

	all := make([]typed.Statement, 0, len(stmts)+len(trailer)+2)
	all = append(all, typed.PushCallLog{Key: declKey, Generics: generics})
	all = append(all, stmts...)
	all = append(all, trailer...)
	all = append(all, typed.PopCallLog{})

	if out.Complete {
		in.cache.entries[ck] = results
		return inlineResult{outcome: outcomeComplete, statements: all, expressions: results}
	}
	return inlineResult{outcome: outcomeIncomplete, statements: all, expressions: results, backups: out.Backups}
}

// sibling is one call site's declaration-resolution inputs, gathered from
// a single pass's statement list ahead of the sequential fold.
type sibling struct {
	stmtIndex   int
	key         typed.FunctionKey
	argTypes    []typed.Type
	outputTypes []typed.Type
}

// resolveSiblingSignatures runs signature unification for every top-level
// MultipleDefinition call in stmts concurrently via errgroup.Group,
// surfacing the first Incompatible error in statement order. With fewer
// than two such calls it checks nothing and returns nil. Concurrency
// is confined to pure, cacheable unification; statement ordering and
// mutation of the version/substitution maps stay strictly sequential,
// performed afterwards by the normal fold. It never mutates in.versions
// or in.cache, so it is safe to run ahead of, and concurrently with
// respect to, each other.
func (in *inliner) resolveSiblingSignatures(stmts []typed.Statement) *Error {
	var siblings []sibling
	for i, s := range stmts {
		md, ok := s.(typed.MultipleDefinition)
		if !ok {
			continue
		}
		argTypes := make([]typed.Type, len(md.Call.Args))
		for j, a := range md.Call.Args {
			argTypes[j] = a.ExprType()
		}
		siblings = append(siblings, sibling{
			stmtIndex:   i,
			key:         md.Call.Key,
			argTypes:    argTypes,
			outputTypes: md.Call.OutputTypes,
		})
	}
	if len(siblings) < 2 {
		return nil
	}

	fatals := make([]*Error, len(siblings))
	var g errgroup.Group
	for i, sib := range siblings {
		i, sib := i, sib
		g.Go(func() error {
			fatals[i] = in.resolveSignatureOnly(sib.key, sib.argTypes, sib.outputTypes)
			return nil
		})
	}
	_ = g.Wait() // resolveSignatureOnly never returns a Go error, only *Error results

	for _, f := range fatals {
		if f != nil {
			return f
		}
	}
	return nil
}

// resolveSignatureOnly runs the declaration-lookup and unification half of
// inline() without specialising or inlining the callee body: it exists
// purely so resolveSiblingSignatures can run it across goroutines without
// touching in.versions or in.cache.
func (in *inliner) resolveSignatureOnly(declKey typed.FunctionKey, argTypes, outputTypes []typed.Type) *Error {
	module, ok := in.program.Modules[declKey.Module]
	if !ok {
		return incompatible(declKey.String(), concreteSigStringFromTypes(declKey, argTypes, outputTypes))
	}
	sym, ok := module.Resolve(declKey.Name)
	if !ok {
		return incompatible(declKey.String(), concreteSigStringFromTypes(declKey, argTypes, outputTypes))
	}
	if sym.IsFlat() {
		return nil
	}
	callee := sym.Here

	generics := typed.GenericsAssignment{}
	for i, declared := range signatureInputs(callee) {
		if i >= len(argTypes) {
			break
		}
		if _, ok := unifyType(declared, argTypes[i], generics); !ok {
			return incompatible(declKey.String(), concreteSigStringFromTypes(declKey, argTypes, outputTypes))
		}
	}
	for i, declared := range callee.Signature.Outputs {
		if i >= len(outputTypes) {
			break
		}
		if _, ok := unifyType(declared, outputTypes[i], generics); !ok {
			return incompatible(declKey.String(), concreteSigStringFromTypes(declKey, argTypes, outputTypes))
		}
	}
	return nil
}

// buildCalleeBindings allocates one fresh version per formal parameter and
// binds it directly to the already-resolved actual argument expression
// (e.g. "a_3=a_1"). The binding is constructed directly rather than run
// through ShallowSSA's transformer:
// the argument expression is already in final SSA form from the caller's
// scope, so re-folding it would incorrectly rename its identifiers to
// whatever version they have grown to by the time the callee runs,
// including when the callee happens to reuse one of the caller's names.
// Only the callee's own body (passed separately to ShallowSSA) needs
// renaming, and its first read of each parameter resolves correctly
// because Fresh was just called for it here, immediately before.
func buildCalleeBindings(f typed.Function, args []typed.Expression, v *Versions) []typed.Statement {
	bindings := make([]typed.Statement, 0, len(f.Arguments))
	for i, param := range f.Arguments {
		if i >= len(args) {
			break
		}
		version := v.Fresh(param.ID.Core)
		bound := typed.Variable{ID: typed.Identifier{Core: param.ID.Core, Version: version}, Type: param.Type}
		bindings = append(bindings, typed.Definition{Var: bound, Expr: args[i]})
	}
	return bindings
}

// splitReturn separates a trailing Return statement (if any) from the
// rest of the body, returning its expressions.
func splitReturn(stmts []typed.Statement) ([]typed.Statement, []typed.Expression) {
	if len(stmts) == 0 {
		return stmts, nil
	}
	last, ok := stmts[len(stmts)-1].(typed.Return)
	if !ok {
		return stmts, nil
	}
	return stmts[:len(stmts)-1], last.Exprs
}

func signatureInputs(f *typed.Function) []typed.Type {
	if len(f.Signature.Inputs) > 0 {
		return f.Signature.Inputs
	}
	ts := make([]typed.Type, len(f.Arguments))
	for i, a := range f.Arguments {
		ts[i] = a.Type
	}
	return ts
}

// unifyType unifies a declared type (whose array lengths may be
// GenericRef) against an actual type, recording generic bindings. It
// returns nonConstant=true when unification cannot yet complete because
// an actual array length is not itself a literal (recoverable: retry
// after propagation), and ok=false when the declared and actual shapes
// are fundamentally incompatible (fatal).
func unifyType(declared, actual typed.Type, generics typed.GenericsAssignment) (nonConstant bool, ok bool) {
	if declared.Kind != actual.Kind {
		return false, false
	}
	switch declared.Kind {
	case typed.KindUint:
		return false, declared.Bits == actual.Bits
	case typed.KindArray:
		if name, isGeneric := declared.GenericName(); isGeneric {
			lit, litOK := actual.Len.Literal()
			if !litOK {
				return true, true
			}
			if existing, bound := generics[name]; bound {
				if existing != lit {
					return false, false
				}
			} else {
				generics[name] = lit
			}
			return unifyType(*declared.Of, *actual.Of, generics)
		}
		declLit, declOK := declared.Len.Literal()
		actLit, actOK := actual.Len.Literal()
		if declOK && actOK {
			if declLit != actLit {
				return false, false
			}
		} else if !actOK {
			return true, true
		}
		return unifyType(*declared.Of, *actual.Of, generics)
	case typed.KindStruct:
		return false, declared.Struct == actual.Struct
	default:
		return false, true
	}
}

// substituteSignature replaces every GenericRef array length in sig with
// its bound literal value, producing a concrete signature.
func substituteSignature(sig typed.Signature, generics typed.GenericsAssignment) typed.Signature {
	subst := func(ts []typed.Type) []typed.Type {
		out := make([]typed.Type, len(ts))
		for i, t := range ts {
			out[i] = substituteType(t, generics)
		}
		return out
	}
	return typed.Signature{Inputs: subst(sig.Inputs), Outputs: subst(sig.Outputs)}
}

func substituteType(t typed.Type, generics typed.GenericsAssignment) typed.Type {
	if t.Kind != typed.KindArray {
		return t
	}
	of := substituteType(*t.Of, generics)
	if name, ok := t.GenericName(); ok {
		if v, bound := generics[name]; bound {
			return typed.ArrayOfLen(of, v)
		}
		return typed.Array(of, t.Len)
	}
	return typed.Array(of, t.Len)
}

// concreteSigString renders the best-effort concrete signature for an
// Incompatible error: the actual argument types as seen, juxtaposed with
// the output types the call site expected, with no generic substitution
// applied (none could be consistently resolved).
func concreteSigString(declKey typed.FunctionKey, args []typed.Expression, outputTypes []typed.Type) string {
	argTypes := make([]typed.Type, len(args))
	for i, a := range args {
		argTypes[i] = a.ExprType()
	}
	return concreteSigStringFromTypes(declKey, argTypes, outputTypes)
}

func concreteSigStringFromTypes(declKey typed.FunctionKey, argTypes, outputTypes []typed.Type) string {
	concrete := typed.FunctionKey{
		Module:    declKey.Module,
		Name:      declKey.Name,
		Signature: typed.Signature{Inputs: argTypes, Outputs: outputTypes},
	}
	return concrete.String()
}
