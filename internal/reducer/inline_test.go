package reducer

import (
	"testing"

	"sentra/internal/embed"
	"sentra/internal/typed"
)

func TestUnifyTypeBindsGenericFromLiteralLength(t *testing.T) {
	field := typed.Field()
	declared := typed.Array(field, typed.GenericRef{Name: "K"})
	actual := typed.ArrayOfLen(field, 5)

	generics := typed.GenericsAssignment{}
	nonConstant, ok := unifyType(declared, actual, generics)
	if !ok {
		t.Fatalf("expected unification to succeed")
	}
	if nonConstant {
		t.Fatalf("expected nonConstant=false: the actual length is a literal")
	}
	if generics["K"] != 5 {
		t.Fatalf("K bound to %d, want 5", generics["K"])
	}
}

// A second occurrence of the same generic name must agree with the first
// binding, or unification fails outright (not recoverable via propagation).
func TestUnifyTypeRejectsConflictingGenericBinding(t *testing.T) {
	field := typed.Field()
	declared := typed.Array(field, typed.GenericRef{Name: "K"})
	generics := typed.GenericsAssignment{"K": 5}

	_, ok := unifyType(declared, typed.ArrayOfLen(field, 6), generics)
	if ok {
		t.Fatalf("expected unification to fail: K already bound to 5, actual length is 6")
	}
}

// When the actual array length is not yet a literal (still symbolic, e.g.
// mid-propagation), unification reports nonConstant rather than failing.
func TestUnifyTypeSymbolicLengthIsNonConstant(t *testing.T) {
	field := typed.Field()
	declared := typed.Array(field, typed.GenericRef{Name: "K"})
	symbolic := typed.Array(field, typed.BinaryExpr{Ty: u32(), Op: "-", Lhs: typed.IdentExpr{ID: typed.NewIdentifier("n"), Ty: u32()}, Rhs: typed.ULit(1)})

	generics := typed.GenericsAssignment{}
	nonConstant, ok := unifyType(declared, symbolic, generics)
	if !ok {
		t.Fatalf("a symbolic length should defer, not fail")
	}
	if !nonConstant {
		t.Fatalf("expected nonConstant=true for an unresolved symbolic length")
	}
	if _, bound := generics["K"]; bound {
		t.Fatalf("K should not be bound yet: its length is still symbolic")
	}
}

func TestUnifyTypeMismatchedKindsFail(t *testing.T) {
	_, ok := unifyType(typed.Uint(32), typed.Field(), typed.GenericsAssignment{})
	if ok {
		t.Fatalf("expected a u32/field kind mismatch to fail unification")
	}
}

func TestBuildCalleeBindingsBindsFreshVersionToCallerArgument(t *testing.T) {
	callee := typed.Function{
		Arguments: []typed.Variable{typed.NewVariable("a", u32())},
	}
	callerArg := typed.IdentExpr{ID: typed.Identifier{Core: typed.UserIdentifier("a"), Version: 4}, Ty: u32()}

	v := NewVersions()
	v.MarkArgument(typed.UserIdentifier("a")) // caller's own "a" already occupies version 0
	v.Fresh(typed.UserIdentifier("a"))        // ... and has since been redefined once, at 1

	bindings := buildCalleeBindings(callee, []typed.Expression{callerArg}, v)
	if len(bindings) != 1 {
		t.Fatalf("expected exactly one binding, got %d", len(bindings))
	}
	def := bindings[0].(typed.Definition)
	if def.Var.ID.Core != typed.UserIdentifier("a") {
		t.Fatalf("expected the binding to define core id \"a\", got %s", def.Var.ID.Core)
	}
	if def.Var.ID.Version != 2 {
		t.Fatalf("callee parameter version = %d, want 2 (next Fresh after MarkArgument+one prior Fresh call)", def.Var.ID.Version)
	}
	if def.Expr != typed.Expression(callerArg) {
		t.Fatalf("binding must read the caller's argument expression verbatim, got %v", def.Expr)
	}
}

func TestSplitReturnSeparatesTrailingReturn(t *testing.T) {
	ret := typed.Return{Exprs: []typed.Expression{typed.ULit(1)}}
	stmts := []typed.Statement{
		typed.Definition{Var: typed.NewVariable("n", u32()), Expr: typed.ULit(0)},
		ret,
	}
	rest, exprs := splitReturn(stmts)
	if len(rest) != 1 {
		t.Fatalf("expected the Return to be stripped, %d statements left", len(rest))
	}
	if len(exprs) != 1 {
		t.Fatalf("expected one return expression, got %d", len(exprs))
	}
}

func TestSplitReturnNoTrailingReturnIsNoop(t *testing.T) {
	stmts := []typed.Statement{
		typed.Definition{Var: typed.NewVariable("n", u32()), Expr: typed.ULit(0)},
	}
	rest, exprs := splitReturn(stmts)
	if len(rest) != 1 || exprs != nil {
		t.Fatalf("expected stmts unchanged and no return expressions, got rest=%v exprs=%v", rest, exprs)
	}
}

// A call to a flat embed resolves to outcomeFlat without ever touching the
// version map or call cache: flat embeds are materialised, never inlined.
func TestInlineResolvesFlatEmbed(t *testing.T) {
	program := typed.NewProgram("main")
	mod := program.MainModule()
	embed.RegisterAll(mod, program.Main, embed.BN254FieldModulusBits)

	in := &inliner{program: program, versions: NewVersions(), cache: newCallCache(), fieldBits: embed.BN254FieldModulusBits}
	key := typed.FunctionKey{Module: "main", Name: typed.EmbedU8ToBits.String()}
	args := []typed.Expression{typed.IdentExpr{ID: typed.NewIdentifier("x"), Ty: typed.Uint(8)}}
	outputTypes := []typed.Type{typed.ArrayOfLen(typed.Bool(), 8)}

	res := in.inline(key, args, outputTypes)
	if res.outcome != outcomeFlat {
		t.Fatalf("expected outcomeFlat, got %v", res.outcome)
	}
	if res.embed != typed.EmbedU8ToBits {
		t.Fatalf("expected embed kind U8ToBits, got %v", res.embed)
	}
}

// A call to an undeclared function name is reported as outcomeGeneric
// (fatal), since no declaration exists to unify against.
func TestInlineUndeclaredFunctionIsFatal(t *testing.T) {
	program := typed.NewProgram("main")
	in := &inliner{program: program, versions: NewVersions(), cache: newCallCache()}

	res := in.inline(typed.FunctionKey{Module: "main", Name: "missing"}, nil, nil)
	if res.outcome != outcomeGeneric {
		t.Fatalf("expected outcomeGeneric for an undeclared callee, got %v", res.outcome)
	}
	if res.fatal == nil || res.fatal.Kind != KindIncompatible {
		t.Fatalf("expected a KindIncompatible fatal error, got %v", res.fatal)
	}
}
