package reducer

import (
	"testing"

	"sentra/internal/typed"
)

func u32() typed.Type { return typed.Uint(32) }

func mustRenderStatements(t *testing.T, stmts []typed.Statement) []string {
	t.Helper()
	out := make([]string, len(stmts))
	for i, s := range stmts {
		out[i] = s.String()
	}
	return out
}

func assertEqualSequence(t *testing.T, got, want []string) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("statement count mismatch\n got: %v\nwant: %v", got, want)
	}
	for i := range got {
		if got[i] != want[i] {
			t.Fatalf("statement %d mismatch\n got: %s\nwant: %s", i, got[i], want[i])
		}
	}
}

// assertSSA checks that every (core-id, version) pair is defined at most
// once across Definition and MultipleDefinition LHSs, loop bodies
// included. Call(i) variables are skipped on the MultipleDefinition side
// only; a Call(i) temporary defined by a Definition is checked too.
func assertSSA(t *testing.T, stmts []typed.Statement) {
	t.Helper()
	seen := map[typed.Identifier]bool{}
	var walk func([]typed.Statement)
	walk = func(stmts []typed.Statement) {
		for _, s := range stmts {
			var def *typed.Identifier
			switch n := s.(type) {
			case typed.Definition:
				id := n.Var.ID
				def = &id
			case typed.MultipleDefinition:
				for _, v := range n.Vars {
					id := v.ID
					if id.Core.Kind == typed.CoreCall {
						continue
					}
					if seen[id] {
						t.Fatalf("identifier %s defined more than once", id)
					}
					seen[id] = true
				}
			case typed.For:
				walk(n.Body)
			}
			if def != nil {
				if seen[*def] {
					t.Fatalf("identifier %s defined more than once", *def)
				}
				seen[*def] = true
			}
		}
	}
	walk(stmts)
}

func assertCallFree(t *testing.T, stmts []typed.Statement, modules map[string]*typed.Module) {
	t.Helper()
	for _, s := range stmts {
		md, ok := s.(typed.MultipleDefinition)
		if !ok {
			continue
		}
		mod, ok := modules[md.Call.Key.Module]
		if !ok {
			continue
		}
		if sym, ok := mod.Resolve(md.Call.Key.Name); ok && !sym.IsFlat() {
			t.Fatalf("body still calls Here symbol %s", md.Call.Key)
		}
	}
}

func assertLoopFree(t *testing.T, stmts []typed.Statement) {
	t.Helper()
	for _, s := range stmts {
		if _, ok := s.(typed.For); ok {
			t.Fatalf("body still contains a For loop")
		}
	}
}

func assertBracketsBalanced(t *testing.T, stmts []typed.Statement) {
	t.Helper()
	depth := 0
	for _, s := range stmts {
		switch s.(type) {
		case typed.PushCallLog:
			depth++
		case typed.PopCallLog:
			depth--
			if depth < 0 {
				t.Fatalf("PopCallLog without matching PushCallLog")
			}
		}
	}
	if depth != 0 {
		t.Fatalf("unbalanced PushCallLog/PopCallLog brackets, depth=%d", depth)
	}
}

// scenario 1: foo(a) = a; main(a) { u32 n=42; n=n; a=a;
// a=foo(a); n=n; return a }
func fooIdentityProgram() (*typed.Program, typed.Function) {
	foo := &typed.Function{
		Arguments:  []typed.Variable{typed.NewVariable("a", u32())},
		Statements: []typed.Statement{typed.Return{Exprs: []typed.Expression{typed.IdentExpr{ID: typed.NewIdentifier("a"), Ty: u32()}}}},
		Signature:  typed.Signature{Inputs: []typed.Type{u32()}, Outputs: []typed.Type{u32()}},
	}

	program := typed.NewProgram("main")
	mod := program.MainModule()
	mod.Functions["foo"] = typed.HereSymbol(foo)

	a := func(v int) typed.Expression { return typed.IdentExpr{ID: typed.Identifier{Core: typed.UserIdentifier("a"), Version: v}, Ty: u32()} }
	n := func(v int) typed.Expression { return typed.IdentExpr{ID: typed.Identifier{Core: typed.UserIdentifier("n"), Version: v}, Ty: u32()} }

	main := typed.Function{
		Arguments: []typed.Variable{typed.NewVariable("a", u32())},
		Statements: []typed.Statement{
			typed.Definition{Var: typed.NewVariable("n", u32()), Expr: typed.ULit(42)},
			typed.Definition{Var: typed.NewVariable("n", u32()), Expr: n(0)},
			typed.Definition{Var: typed.NewVariable("a", u32()), Expr: a(0)},
			typed.MultipleDefinition{
				Vars: []typed.Variable{typed.NewVariable("a", u32())},
				Call: typed.CallList{
					Key:         typed.FunctionKey{Module: "main", Name: "foo"},
					Args:        []typed.Expression{a(0)},
					OutputTypes: []typed.Type{u32()},
				},
			},
			typed.Definition{Var: typed.NewVariable("n", u32()), Expr: n(0)},
			typed.Return{Exprs: []typed.Expression{a(0)}},
		},
	}
	mod.Functions["main"] = typed.HereSymbol(&main)
	return program, main
}

func TestReduceNoGenerics(t *testing.T) {
	program, main := fooIdentityProgram()

	reduced, err := ReduceProgram(program, Options{})
	if err != nil {
		t.Fatalf("ReduceProgram: %v", err)
	}
	_ = main

	out := reduced.MainModule().Functions["main"].Here
	assertSSA(t, out.Statements)
	assertCallFree(t, out.Statements, reduced.Modules)
	assertLoopFree(t, out.Statements)
	assertBracketsBalanced(t, out.Statements)

	want := []string{
		"n_0 = 42",
		"n_1 = n_0",
		"a_1 = a_0",
		"# PUSH foo <>",
		"a_3 = a_1",
		"Call(0)_0 = a_3",
		"# POP",
		"a_2 = Call(0)_0",
		"n_2 = n_1",
		"return a_2",
	}
	assertEqualSequence(t, mustRenderStatements(t, out.Statements), want)
}

// scenario 2: foo<K>(field[K] a) = a; main(a) { u32 n=42; n=n;
// field[1] b=[1]; b=foo(b); n=n; return a }
func fooGenericProgram() *typed.Program {
	field := typed.Field()
	fieldArr := func(n int) typed.Type { return typed.ArrayOfLen(field, n) }

	foo := &typed.Function{
		Generics:  []string{"K"},
		Arguments: []typed.Variable{typed.NewVariable("a", typed.Array(field, typed.GenericRef{Name: "K"}))},
		Statements: []typed.Statement{
			typed.Return{Exprs: []typed.Expression{typed.IdentExpr{ID: typed.NewIdentifier("a"), Ty: typed.Array(field, typed.GenericRef{Name: "K"})}}},
		},
		Signature: typed.Signature{
			Inputs:  []typed.Type{typed.Array(field, typed.GenericRef{Name: "K"})},
			Outputs: []typed.Type{typed.Array(field, typed.GenericRef{Name: "K"})},
		},
	}

	program := typed.NewProgram("main")
	mod := program.MainModule()
	mod.Functions["foo"] = typed.HereSymbol(foo)

	b := func(v int) typed.Expression {
		return typed.IdentExpr{ID: typed.Identifier{Core: typed.UserIdentifier("b"), Version: v}, Ty: fieldArr(1)}
	}
	n := func(v int) typed.Expression { return typed.IdentExpr{ID: typed.Identifier{Core: typed.UserIdentifier("n"), Version: v}, Ty: u32()} }
	a := func(v int) typed.Expression { return typed.IdentExpr{ID: typed.Identifier{Core: typed.UserIdentifier("a"), Version: v}, Ty: u32()} }

	main := typed.Function{
		Arguments: []typed.Variable{typed.NewVariable("a", u32())},
		Statements: []typed.Statement{
			typed.Definition{Var: typed.NewVariable("n", u32()), Expr: typed.ULit(42)},
			typed.Definition{Var: typed.NewVariable("n", u32()), Expr: n(0)},
			typed.Definition{Var: typed.NewVariable("b", fieldArr(1)), Expr: typed.ArrayValueExpr{Ty: fieldArr(1), Elements: []typed.Expression{typed.FieldLit(1)}}},
			typed.MultipleDefinition{
				Vars: []typed.Variable{typed.NewVariable("b", fieldArr(1))},
				Call: typed.CallList{
					Key:         typed.FunctionKey{Module: "main", Name: "foo"},
					Args:        []typed.Expression{b(0)},
					OutputTypes: []typed.Type{fieldArr(1)},
				},
			},
			typed.Definition{Var: typed.NewVariable("n", u32()), Expr: n(0)},
			typed.Return{Exprs: []typed.Expression{a(0)}},
		},
	}
	mod.Functions["main"] = typed.HereSymbol(&main)
	return program
}

func TestReduceWithGenerics(t *testing.T) {
	program := fooGenericProgram()

	reduced, err := ReduceProgram(program, Options{})
	if err != nil {
		t.Fatalf("ReduceProgram: %v", err)
	}

	out := reduced.MainModule().Functions["main"].Here
	assertSSA(t, out.Statements)
	assertCallFree(t, out.Statements, reduced.Modules)
	assertLoopFree(t, out.Statements)
	assertBracketsBalanced(t, out.Statements)

	foundBinding := false
	foundResult := false
	for _, s := range out.Statements {
		switch n := s.(type) {
		case typed.Definition:
			if n.Var.ID.Core == typed.UserIdentifier("K") {
				foundBinding = true
				lit, ok := n.Expr.(typed.LitExpr)
				if !ok || lit.Int != 1 {
					t.Errorf("K binding = %v, want literal 1", n.Expr)
				}
			}
			if n.Var.ID.Core == typed.UserIdentifier("b") && n.Var.ID.Version == 1 {
				foundResult = true
			}
		}
	}
	if !foundBinding {
		t.Errorf("expected a K=1 generic binding inside the inlined call, got %v", mustRenderStatements(t, out.Statements))
	}
	if !foundResult {
		t.Errorf("expected b_1 to be assigned from the call result, got %v", mustRenderStatements(t, out.Statements))
	}
}

// scenario 3: as scenario 2 but with `u32 n=2; field[n-1] b=[1]`: the
// inliner must see NonConstant on pass one because the array-literal
// argument's length n-1 is still symbolic, the propagator must fold n-1 -> 1 on the pass
// boundary, and pass two must then succeed identically to scenario 2.
func fooGenericPropagationProgram() *typed.Program {
	field := typed.Field()

	foo := &typed.Function{
		Generics:  []string{"K"},
		Arguments: []typed.Variable{typed.NewVariable("a", typed.Array(field, typed.GenericRef{Name: "K"}))},
		Statements: []typed.Statement{
			typed.Return{Exprs: []typed.Expression{typed.IdentExpr{ID: typed.NewIdentifier("a"), Ty: typed.Array(field, typed.GenericRef{Name: "K"})}}},
		},
		Signature: typed.Signature{
			Inputs:  []typed.Type{typed.Array(field, typed.GenericRef{Name: "K"})},
			Outputs: []typed.Type{typed.Array(field, typed.GenericRef{Name: "K"})},
		},
	}

	program := typed.NewProgram("main")
	mod := program.MainModule()
	mod.Functions["foo"] = typed.HereSymbol(foo)

	n := func(v int) typed.Expression { return typed.IdentExpr{ID: typed.Identifier{Core: typed.UserIdentifier("n"), Version: v}, Ty: u32()} }
	a := func(v int) typed.Expression { return typed.IdentExpr{ID: typed.Identifier{Core: typed.UserIdentifier("a"), Version: v}, Ty: u32()} }

	// n-1: read at the unrenamed placeholder version (0); shallow SSA
	// resolves it to whichever version "n" has reached in program order.
	// This is passed straight as the call's argument expression (rather
	// than through an intermediate variable read) so the array-length
	// folding both shallow SSA and the propagator apply to ArrayValueExpr
	// nodes actually reaches it.
	nMinus1 := typed.BinaryExpr{Ty: u32(), Op: "-", Lhs: typed.IdentExpr{ID: typed.NewIdentifier("n"), Ty: u32()}, Rhs: typed.ULit(1)}
	symbolicArg := typed.ArrayValueExpr{Ty: typed.Array(field, nMinus1), Elements: []typed.Expression{typed.FieldLit(1)}}

	main := typed.Function{
		Arguments: []typed.Variable{typed.NewVariable("a", u32())},
		Statements: []typed.Statement{
			typed.Definition{Var: typed.NewVariable("n", u32()), Expr: typed.ULit(2)},
			typed.Definition{Var: typed.NewVariable("n", u32()), Expr: n(0)},
			typed.MultipleDefinition{
				Vars: []typed.Variable{typed.NewVariable("b", typed.ArrayOfLen(field, 1))},
				Call: typed.CallList{
					Key:         typed.FunctionKey{Module: "main", Name: "foo"},
					Args:        []typed.Expression{symbolicArg},
					OutputTypes: []typed.Type{typed.ArrayOfLen(field, 1)},
				},
			},
			typed.Definition{Var: typed.NewVariable("n", u32()), Expr: n(0)},
			typed.Return{Exprs: []typed.Expression{a(0)}},
		},
	}
	mod.Functions["main"] = typed.HereSymbol(&main)
	return program
}

func TestReduceGenericsWithPropagation(t *testing.T) {
	program := fooGenericPropagationProgram()

	reduced, err := ReduceProgram(program, Options{})
	if err != nil {
		t.Fatalf("ReduceProgram: %v", err)
	}

	out := reduced.MainModule().Functions["main"].Here
	assertSSA(t, out.Statements)
	assertCallFree(t, out.Statements, reduced.Modules)
	assertLoopFree(t, out.Statements)
	assertBracketsBalanced(t, out.Statements)

	foundBinding := false
	for _, s := range out.Statements {
		if d, ok := s.(typed.Definition); ok && d.Var.ID.Core == typed.UserIdentifier("K") {
			foundBinding = true
			lit, ok := d.Expr.(typed.LitExpr)
			if !ok || lit.Int != 1 {
				t.Errorf("K binding = %v, want literal 1 (n-1 with n=2)", d.Expr)
			}
		}
	}
	if !foundBinding {
		t.Errorf("expected a K=1 generic binding once n-1 propagates to a literal, got %v", mustRenderStatements(t, out.Statements))
	}
}

// scenario 4: for i in 0..3 { s = s + i } unrolls to three copies with
// literal i=0,1,2; s's version jumps by +1 per iteration from a fresh
// floor; the post-loop reader reads the final version via substitution.
func loopProgram() *typed.Program {
	s := func(v int) typed.Expression { return typed.IdentExpr{ID: typed.Identifier{Core: typed.UserIdentifier("s"), Version: v}, Ty: u32()} }
	i := func(v int) typed.Expression { return typed.IdentExpr{ID: typed.Identifier{Core: typed.UserIdentifier("i"), Version: v}, Ty: u32()} }

	main := typed.Function{
		Statements: []typed.Statement{
			typed.Definition{Var: typed.NewVariable("s", u32()), Expr: typed.ULit(0)},
			typed.For{
				Var:  typed.NewVariable("i", u32()),
				From: typed.ULit(0),
				To:   typed.ULit(3),
				Body: []typed.Statement{
					typed.Definition{Var: typed.NewVariable("s", u32()), Expr: typed.BinaryExpr{Ty: u32(), Op: "+", Lhs: s(0), Rhs: i(0)}},
				},
			},
			typed.Return{Exprs: []typed.Expression{s(0)}},
		},
	}

	program := typed.NewProgram("main")
	program.MainModule().Functions["main"] = typed.HereSymbol(&main)
	return program
}

func TestReduceLoop(t *testing.T) {
	program := loopProgram()

	reduced, err := ReduceProgram(program, Options{})
	if err != nil {
		t.Fatalf("ReduceProgram: %v", err)
	}

	out := reduced.MainModule().Functions["main"].Here
	assertSSA(t, out.Statements)
	assertLoopFree(t, out.Statements)
	assertBracketsBalanced(t, out.Statements)

	sDefs := 0
	for _, st := range out.Statements {
		if d, ok := st.(typed.Definition); ok && d.Var.ID.Core == typed.UserIdentifier("s") {
			sDefs++
		}
	}
	if sDefs != 4 { // the s=0 preamble plus one per unrolled iteration
		t.Errorf("expected 4 definitions of s (preamble + 3 iterations), got %d: %v", sDefs, mustRenderStatements(t, out.Statements))
	}

	last, ok := out.Statements[len(out.Statements)-1].(typed.Return)
	if !ok {
		t.Fatalf("expected body to end in a Return, got %T", out.Statements[len(out.Statements)-1])
	}
	read, ok := last.Exprs[0].(typed.IdentExpr)
	if !ok || read.ID.Core != typed.UserIdentifier("s") {
		t.Fatalf("expected final return to read s, got %v", last)
	}
}

// scenario 5: foo<K>(field[K] a) -> field[K] called with an empty array
// where the call site expects field[1] fails with Incompatible, whose
// message renders both signatures by string.
func TestReduceIncompatibleCall(t *testing.T) {
	field := typed.Field()
	foo := &typed.Function{
		Generics:  []string{"K"},
		Arguments: []typed.Variable{typed.NewVariable("a", typed.Array(field, typed.GenericRef{Name: "K"}))},
		Statements: []typed.Statement{
			typed.Return{Exprs: []typed.Expression{typed.IdentExpr{ID: typed.NewIdentifier("a"), Ty: typed.Array(field, typed.GenericRef{Name: "K"})}}},
		},
		Signature: typed.Signature{
			Inputs:  []typed.Type{typed.Array(field, typed.GenericRef{Name: "K"})},
			Outputs: []typed.Type{typed.Array(field, typed.GenericRef{Name: "K"})},
		},
	}

	program := typed.NewProgram("main")
	mod := program.MainModule()
	mod.Functions["foo"] = typed.HereSymbol(foo)

	declaredSig := typed.Signature{
		Inputs:  []typed.Type{typed.Array(field, typed.GenericRef{Name: "K"})},
		Outputs: []typed.Type{typed.Array(field, typed.GenericRef{Name: "K"})},
	}
	main := typed.Function{
		Statements: []typed.Statement{
			typed.MultipleDefinition{
				Vars: []typed.Variable{typed.NewVariable("b", typed.ArrayOfLen(field, 1))},
				Call: typed.CallList{
					Key:         typed.FunctionKey{Module: "main", Name: "foo", Signature: declaredSig},
					Args:        []typed.Expression{typed.ArrayValueExpr{Ty: typed.ArrayOfLen(field, 0), Elements: nil}},
					OutputTypes: []typed.Type{typed.ArrayOfLen(field, 1)},
				},
			},
			typed.Return{},
		},
	}
	mod.Functions["main"] = typed.HereSymbol(&main)

	_, err := ReduceProgram(program, Options{})
	if err == nil {
		t.Fatalf("expected Incompatible error, got nil")
	}
	re, ok := err.(*Error)
	if !ok {
		t.Fatalf("expected *reducer.Error, got %T: %v", err, err)
	}
	if re.Kind != KindIncompatible {
		t.Fatalf("expected KindIncompatible, got %v", re.Kind)
	}
	want := "call site `main/foo: field[0] -> field[1]` incompatible with declaration `main/foo<K>: field[K] -> field[K]`"
	if re.Error() != want {
		t.Errorf("error message = %q, want %q", re.Error(), want)
	}
}

// scenario 6: an entry function declaring generics is rejected outright.
func TestReduceGenericsInMain(t *testing.T) {
	program := typed.NewProgram("main")
	main := typed.Function{Generics: []string{"N"}}
	program.MainModule().Functions["main"] = typed.HereSymbol(&main)

	_, err := ReduceProgram(program, Options{})
	if err == nil {
		t.Fatalf("expected GenericsInMain error, got nil")
	}
	re, ok := err.(*Error)
	if !ok || re.Kind != KindGenericsInMain {
		t.Fatalf("expected KindGenericsInMain, got %v (%T)", err, err)
	}
}

func TestReduceIsDeterministic(t *testing.T) {
	p1, _ := fooIdentityProgram()
	p2, _ := fooIdentityProgram()

	r1, err := ReduceProgram(p1, Options{})
	if err != nil {
		t.Fatalf("first reduction: %v", err)
	}
	r2, err := ReduceProgram(p2, Options{})
	if err != nil {
		t.Fatalf("second reduction: %v", err)
	}

	out1 := mustRenderStatements(t, r1.MainModule().Functions["main"].Here.Statements)
	out2 := mustRenderStatements(t, r2.MainModule().Functions["main"].Here.Statements)
	assertEqualSequence(t, out1, out2)
}
