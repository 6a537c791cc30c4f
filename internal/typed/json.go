package typed

import (
	"encoding/json"
	"fmt"
)

// This file implements a JSON encoding for the IR so cmd/sentra-reduce can
// read a Program fixture from stdin and write the reduced Program back
// out. Expression and Statement are interfaces, so each node kind is
// tagged with a "kind" discriminator on the wire; MarshalJSON/UnmarshalJSON
// dispatch on it by hand.

type wireType struct {
	Kind   string     `json:"kind"`
	Bits   int        `json:"bits,omitempty"`
	Of     *wireType  `json:"of,omitempty"`
	Len    *wireExpr  `json:"len,omitempty"`
	Struct string     `json:"struct,omitempty"`
}

func (t Type) toWire() *wireType {
	w := &wireType{Bits: t.Bits, Struct: t.Struct}
	switch t.Kind {
	case KindField:
		w.Kind = "field"
	case KindBool:
		w.Kind = "bool"
	case KindUint:
		w.Kind = "uint"
	case KindArray:
		w.Kind = "array"
		of := t.Of.toWire()
		w.Of = of
		if t.Len != nil {
			le := exprToWire(t.Len)
			w.Len = &le
		}
	case KindStruct:
		w.Kind = "struct"
	}
	return w
}

func (w *wireType) toType() (Type, error) {
	if w == nil {
		return Type{}, nil
	}
	switch w.Kind {
	case "field":
		return Field(), nil
	case "bool":
		return Bool(), nil
	case "uint":
		return Uint(w.Bits), nil
	case "array":
		of, err := w.Of.toType()
		if err != nil {
			return Type{}, err
		}
		var length UExpr
		if w.Len != nil {
			e, err := w.Len.toExpr()
			if err != nil {
				return Type{}, err
			}
			var ok bool
			length, ok = e.(UExpr)
			if !ok {
				return Type{}, fmt.Errorf("typed: array length %T is not a UExpr", e)
			}
		}
		return Array(of, length), nil
	case "struct":
		return Struct(w.Struct), nil
	default:
		return Type{}, fmt.Errorf("typed: unknown type kind %q", w.Kind)
	}
}

func (t Type) MarshalJSON() ([]byte, error)    { return json.Marshal(t.toWire()) }
func (t *Type) UnmarshalJSON(b []byte) error {
	var w wireType
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}
	parsed, err := w.toType()
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// wireExpr is the tagged union for every Expression (and UExpr) kind.
type wireExpr struct {
	Kind string `json:"kind"`

	// IdentExpr / CallExpr identifier
	Name    string `json:"name,omitempty"`
	Version int    `json:"version,omitempty"`
	IsCall  bool   `json:"is_call,omitempty"`
	CallIdx int    `json:"call_idx,omitempty"`

	Ty *wireType `json:"ty,omitempty"`

	// LitExpr
	Int   int  `json:"int,omitempty"`
	Bool  bool `json:"bool,omitempty"`
	IsInt bool `json:"is_int,omitempty"`

	// BinaryExpr
	Op  string    `json:"op,omitempty"`
	Lhs *wireExpr `json:"lhs,omitempty"`
	Rhs *wireExpr `json:"rhs,omitempty"`

	// ArrayValueExpr
	Elements []wireExpr `json:"elements,omitempty"`

	// StructValueExpr
	Fields []wireField `json:"fields,omitempty"`

	// CallExpr
	Module string     `json:"module,omitempty"`
	Args   []wireExpr `json:"args,omitempty"`
}

type wireField struct {
	Name  string   `json:"name"`
	Value wireExpr `json:"value"`
}

func exprToWire(e Expression) wireExpr {
	switch n := e.(type) {
	case IdentExpr:
		w := wireExpr{Kind: "ident", Version: n.ID.Version, Ty: n.Ty.toWire()}
		if n.ID.Core.Kind == CoreCall {
			w.IsCall = true
			w.CallIdx = n.ID.Core.Call
		} else {
			w.Name = n.ID.Core.Name
		}
		return w
	case LitExpr:
		return wireExpr{Kind: "lit", Ty: n.Ty.toWire(), Int: n.Int, Bool: n.Bool, IsInt: n.IsInt}
	case GenericRef:
		return wireExpr{Kind: "generic_ref", Name: n.Name}
	case BinaryExpr:
		lhs := exprToWire(n.Lhs)
		rhs := exprToWire(n.Rhs)
		return wireExpr{Kind: "binary", Ty: n.Ty.toWire(), Op: n.Op, Lhs: &lhs, Rhs: &rhs}
	case ArrayValueExpr:
		elems := make([]wireExpr, len(n.Elements))
		for i, el := range n.Elements {
			elems[i] = exprToWire(el)
		}
		return wireExpr{Kind: "array", Ty: n.Ty.toWire(), Elements: elems}
	case StructValueExpr:
		fields := make([]wireField, len(n.Fields))
		for i, f := range n.Fields {
			fields[i] = wireField{Name: f.Name, Value: exprToWire(f.Value)}
		}
		return wireExpr{Kind: "struct", Ty: n.Ty.toWire(), Fields: fields}
	case CallExpr:
		args := make([]wireExpr, len(n.Args))
		for i, a := range n.Args {
			args[i] = exprToWire(a)
		}
		return wireExpr{Kind: "call", Ty: n.Ty.toWire(), Module: n.Key.Module, Name: n.Key.Name, Args: args}
	default:
		panic(fmt.Sprintf("typed: unknown expression type %T", e))
	}
}

func (w *wireExpr) toExpr() (Expression, error) {
	switch w.Kind {
	case "ident":
		ty, err := w.Ty.toType()
		if err != nil {
			return nil, err
		}
		core := UserIdentifier(w.Name)
		if w.IsCall {
			core = CallIdentifier(w.CallIdx)
		}
		return IdentExpr{ID: Identifier{Core: core, Version: w.Version}, Ty: ty}, nil
	case "lit":
		ty, err := w.Ty.toType()
		if err != nil {
			return nil, err
		}
		return LitExpr{Ty: ty, Int: w.Int, Bool: w.Bool, IsInt: w.IsInt}, nil
	case "generic_ref":
		return GenericRef{Name: w.Name}, nil
	case "binary":
		ty, err := w.Ty.toType()
		if err != nil {
			return nil, err
		}
		lhs, err := w.Lhs.toExpr()
		if err != nil {
			return nil, err
		}
		rhs, err := w.Rhs.toExpr()
		if err != nil {
			return nil, err
		}
		return BinaryExpr{Ty: ty, Op: w.Op, Lhs: lhs, Rhs: rhs}, nil
	case "array":
		ty, err := w.Ty.toType()
		if err != nil {
			return nil, err
		}
		elems := make([]Expression, len(w.Elements))
		for i := range w.Elements {
			e, err := w.Elements[i].toExpr()
			if err != nil {
				return nil, err
			}
			elems[i] = e
		}
		return ArrayValueExpr{Ty: ty, Elements: elems}, nil
	case "struct":
		ty, err := w.Ty.toType()
		if err != nil {
			return nil, err
		}
		fields := make([]StructField, len(w.Fields))
		for i := range w.Fields {
			v, err := w.Fields[i].Value.toExpr()
			if err != nil {
				return nil, err
			}
			fields[i] = StructField{Name: w.Fields[i].Name, Value: v}
		}
		return StructValueExpr{Ty: ty, Fields: fields}, nil
	case "call":
		ty, err := w.Ty.toType()
		if err != nil {
			return nil, err
		}
		args := make([]Expression, len(w.Args))
		for i := range w.Args {
			a, err := w.Args[i].toExpr()
			if err != nil {
				return nil, err
			}
			args[i] = a
		}
		key := FunctionKey{Module: w.Module, Name: w.Name}
		return CallExpr{Ty: ty, Key: key, Args: args}, nil
	default:
		return nil, fmt.Errorf("typed: unknown expression kind %q", w.Kind)
	}
}

// EncodeExpression renders a single expression through the same
// tagged-union wire format Function/Program use, for callers that persist
// expressions outside a full program (the reducer's call-cache store).
func EncodeExpression(e Expression) ([]byte, error) {
	return json.Marshal(exprToWire(e))
}

// DecodeExpression parses an expression previously rendered by
// EncodeExpression.
func DecodeExpression(b []byte) (Expression, error) {
	var w wireExpr
	if err := json.Unmarshal(b, &w); err != nil {
		return nil, err
	}
	return w.toExpr()
}

// wireVariable carries a Variable on the wire.
type wireVariable struct {
	Name    string    `json:"name"`
	Version int       `json:"version"`
	Ty      *wireType `json:"ty"`
}

func varToWire(v Variable) wireVariable {
	return wireVariable{Name: v.ID.Core.Name, Version: v.ID.Version, Ty: v.Type.toWire()}
}

func (w wireVariable) toVariable() (Variable, error) {
	ty, err := w.Ty.toType()
	if err != nil {
		return Variable{}, err
	}
	return Variable{ID: Identifier{Core: UserIdentifier(w.Name), Version: w.Version}, Type: ty}, nil
}

// wireStatement is the tagged union for every Statement kind.
type wireStatement struct {
	Kind string `json:"kind"`

	Var  *wireVariable `json:"var,omitempty"`
	Expr *wireExpr     `json:"expr,omitempty"`

	Vars        []wireVariable `json:"vars,omitempty"`
	Module      string         `json:"module,omitempty"`
	Name        string         `json:"name,omitempty"`
	Args        []wireExpr     `json:"args,omitempty"`
	OutputTypes []wireType     `json:"output_types,omitempty"`

	Exprs []wireExpr `json:"exprs,omitempty"`

	From *wireExpr       `json:"from,omitempty"`
	To   *wireExpr       `json:"to,omitempty"`
	Body []wireStatement `json:"body,omitempty"`

	Generics map[string]int `json:"generics,omitempty"`
}

func stmtToWire(s Statement) wireStatement {
	switch n := s.(type) {
	case Definition:
		v := varToWire(n.Var)
		e := exprToWire(n.Expr)
		return wireStatement{Kind: "def", Var: &v, Expr: &e}
	case MultipleDefinition:
		vars := make([]wireVariable, len(n.Vars))
		for i, v := range n.Vars {
			vars[i] = varToWire(v)
		}
		args := make([]wireExpr, len(n.Call.Args))
		for i, a := range n.Call.Args {
			args[i] = exprToWire(a)
		}
		outs := make([]wireType, len(n.Call.OutputTypes))
		for i, t := range n.Call.OutputTypes {
			outs[i] = *t.toWire()
		}
		return wireStatement{
			Kind: "multi_def", Vars: vars,
			Module: n.Call.Key.Module, Name: n.Call.Key.Name,
			Args: args, OutputTypes: outs,
		}
	case Return:
		exprs := make([]wireExpr, len(n.Exprs))
		for i, e := range n.Exprs {
			exprs[i] = exprToWire(e)
		}
		return wireStatement{Kind: "return", Exprs: exprs}
	case For:
		v := varToWire(n.Var)
		from := exprToWire(n.From)
		to := exprToWire(n.To)
		body := make([]wireStatement, len(n.Body))
		for i, bs := range n.Body {
			body[i] = stmtToWire(bs)
		}
		return wireStatement{Kind: "for", Var: &v, From: &from, To: &to, Body: body}
	case PushCallLog:
		return wireStatement{Kind: "push", Module: n.Key.Module, Name: n.Key.Name, Generics: n.Generics}
	case PopCallLog:
		return wireStatement{Kind: "pop"}
	default:
		panic(fmt.Sprintf("typed: unknown statement type %T", s))
	}
}

func (w *wireStatement) toStatement() (Statement, error) {
	switch w.Kind {
	case "def":
		v, err := w.Var.toVariable()
		if err != nil {
			return nil, err
		}
		e, err := w.Expr.toExpr()
		if err != nil {
			return nil, err
		}
		return Definition{Var: v, Expr: e}, nil
	case "multi_def":
		vars := make([]Variable, len(w.Vars))
		for i := range w.Vars {
			v, err := w.Vars[i].toVariable()
			if err != nil {
				return nil, err
			}
			vars[i] = v
		}
		args := make([]Expression, len(w.Args))
		for i := range w.Args {
			a, err := w.Args[i].toExpr()
			if err != nil {
				return nil, err
			}
			args[i] = a
		}
		outs := make([]Type, len(w.OutputTypes))
		for i := range w.OutputTypes {
			t, err := (&w.OutputTypes[i]).toType()
			if err != nil {
				return nil, err
			}
			outs[i] = t
		}
		key := FunctionKey{Module: w.Module, Name: w.Name}
		return MultipleDefinition{Vars: vars, Call: CallList{Key: key, Args: args, OutputTypes: outs}}, nil
	case "return":
		exprs := make([]Expression, len(w.Exprs))
		for i := range w.Exprs {
			e, err := w.Exprs[i].toExpr()
			if err != nil {
				return nil, err
			}
			exprs[i] = e
		}
		return Return{Exprs: exprs}, nil
	case "for":
		v, err := w.Var.toVariable()
		if err != nil {
			return nil, err
		}
		from, err := w.From.toExpr()
		if err != nil {
			return nil, err
		}
		to, err := w.To.toExpr()
		if err != nil {
			return nil, err
		}
		fromU, ok := from.(UExpr)
		if !ok {
			return nil, fmt.Errorf("typed: for-loop from is not a UExpr")
		}
		toU, ok := to.(UExpr)
		if !ok {
			return nil, fmt.Errorf("typed: for-loop to is not a UExpr")
		}
		body := make([]Statement, len(w.Body))
		for i := range w.Body {
			bs, err := (&w.Body[i]).toStatement()
			if err != nil {
				return nil, err
			}
			body[i] = bs
		}
		return For{Var: v, From: fromU, To: toU, Body: body}, nil
	case "push":
		return PushCallLog{Key: FunctionKey{Module: w.Module, Name: w.Name}, Generics: GenericsAssignment(w.Generics)}, nil
	case "pop":
		return PopCallLog{}, nil
	default:
		return nil, fmt.Errorf("typed: unknown statement kind %q", w.Kind)
	}
}

// wireFunction carries a Function on the wire.
type wireFunction struct {
	Generics  []string        `json:"generics,omitempty"`
	Arguments []wireVariable  `json:"arguments"`
	Body      []wireStatement `json:"body"`
	Inputs    []wireType      `json:"inputs,omitempty"`
	Outputs   []wireType      `json:"outputs,omitempty"`
}

func (f Function) MarshalJSON() ([]byte, error) {
	args := make([]wireVariable, len(f.Arguments))
	for i, a := range f.Arguments {
		args[i] = varToWire(a)
	}
	body := make([]wireStatement, len(f.Statements))
	for i, s := range f.Statements {
		body[i] = stmtToWire(s)
	}
	ins := make([]wireType, len(f.Signature.Inputs))
	for i, t := range f.Signature.Inputs {
		ins[i] = *t.toWire()
	}
	outs := make([]wireType, len(f.Signature.Outputs))
	for i, t := range f.Signature.Outputs {
		outs[i] = *t.toWire()
	}
	return json.Marshal(wireFunction{Generics: f.Generics, Arguments: args, Body: body, Inputs: ins, Outputs: outs})
}

func (f *Function) UnmarshalJSON(b []byte) error {
	var w wireFunction
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}
	args := make([]Variable, len(w.Arguments))
	for i := range w.Arguments {
		v, err := w.Arguments[i].toVariable()
		if err != nil {
			return err
		}
		args[i] = v
	}
	body := make([]Statement, len(w.Body))
	for i := range w.Body {
		s, err := (&w.Body[i]).toStatement()
		if err != nil {
			return err
		}
		body[i] = s
	}
	ins := make([]Type, len(w.Inputs))
	for i := range w.Inputs {
		t, err := (&w.Inputs[i]).toType()
		if err != nil {
			return err
		}
		ins[i] = t
	}
	outs := make([]Type, len(w.Outputs))
	for i := range w.Outputs {
		t, err := (&w.Outputs[i]).toType()
		if err != nil {
			return err
		}
		outs[i] = t
	}
	f.Generics = w.Generics
	f.Arguments = args
	f.Statements = body
	f.Signature = Signature{Inputs: ins, Outputs: outs}
	return nil
}

// wireProgram carries a Program on the wire: Here functions are serialised
// in full, flat embeds carry no body and are written by name only, then
// reconstructed from that name on decode.
type wireProgram struct {
	Main    string                        `json:"main"`
	Modules map[string]map[string]*wireFunctionOrEmbed `json:"modules"`
}

type wireFunctionOrEmbed struct {
	Function *wireFunction `json:"function,omitempty"`
	Embed    string        `json:"embed,omitempty"`
}

func (p *Program) MarshalJSON() ([]byte, error) {
	w := wireProgram{Main: p.Main, Modules: map[string]map[string]*wireFunctionOrEmbed{}}
	for modName, mod := range p.Modules {
		entries := map[string]*wireFunctionOrEmbed{}
		for name, sym := range mod.Functions {
			if sym.IsFlat() {
				entries[name] = &wireFunctionOrEmbed{Embed: sym.Flat.String()}
				continue
			}
			raw, err := sym.Here.MarshalJSON()
			if err != nil {
				return nil, err
			}
			var wf wireFunction
			if err := json.Unmarshal(raw, &wf); err != nil {
				return nil, err
			}
			entries[name] = &wireFunctionOrEmbed{Function: &wf}
		}
		w.Modules[modName] = entries
	}
	return json.Marshal(w)
}

func (p *Program) UnmarshalJSON(b []byte) error {
	var w wireProgram
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}
	p.Main = w.Main
	p.Modules = map[string]*Module{}
	for modName, entries := range w.Modules {
		mod := NewModule()
		for name, fe := range entries {
			if fe.Embed != "" {
				kind, err := embedKindFromString(fe.Embed)
				if err != nil {
					return err
				}
				mod.Functions[name] = FlatSymbol(kind)
				continue
			}
			raw, err := json.Marshal(fe.Function)
			if err != nil {
				return err
			}
			var f Function
			if err := f.UnmarshalJSON(raw); err != nil {
				return err
			}
			mod.Functions[name] = HereSymbol(&f)
		}
		p.Modules[modName] = mod
	}
	return nil
}

func embedKindFromString(s string) (EmbedKind, error) {
	for _, k := range []EmbedKind{
		EmbedUnpack, EmbedU8ToBits, EmbedU16ToBits, EmbedU32ToBits,
		EmbedU8FromBits, EmbedU16FromBits, EmbedU32FromBits,
	} {
		if k.String() == s {
			return k, nil
		}
	}
	return 0, fmt.Errorf("typed: unknown embed kind %q", s)
}
