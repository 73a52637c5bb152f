package hir

import (
	"github.com/jimd-den/onu-prog/internal/ast"
	"github.com/jimd-den/onu-prog/internal/diag"
	"github.com/jimd-den/onu-prog/internal/onutype"
)

// Lower desugars a parsed program into HIR. The two dual spellings
// (receiving/takes, returning/delivers, let/derivation, emit/broadcasts)
// are already unified by the parser, which only ever produces one AST node
// shape for each; lowering's remaining work is literal-width
// normalization, the tuple-index canonicalization, type-environment
// propagation, and the purity check (Invariant 3) that spec.md §4.5 does
// not list as one of its five named validators but §8's I3 still requires.
func Lower(units []ast.Discourse) ([]Discourse, error) {
	out := make([]Discourse, 0, len(units))
	for _, u := range units {
		d, err := lowerDiscourse(u)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, nil
}

func lowerDiscourse(d ast.Discourse) (Discourse, error) {
	switch v := d.(type) {
	case *ast.Module:
		return &Module{Name: v.Name, Concern: v.Concern}, nil
	case *ast.Shape:
		headers := make([]Header, 0, len(v.Behaviors))
		for _, h := range v.Behaviors {
			headers = append(headers, lowerHeader(h))
		}
		return &Shape{Name: v.Name, Behaviors: headers}, nil
	case *ast.Behavior:
		return lowerBehavior(v)
	default:
		return nil, nil
	}
}

func lowerHeader(h ast.BehaviorHeader) Header {
	params := make([]Param, 0, len(h.Params))
	for _, p := range h.Params {
		params = append(params, Param{Name: p.Name, Type: p.Type.Type, ShapeBound: p.Type.RoleShape})
	}
	return Header{
		Name:              h.Name,
		IsEffect:          h.IsEffect,
		Params:            params,
		Return:            h.Return.Type,
		Diminishing:       h.Diminishing,
		WaivesTermination: h.WaivesTermination,
	}
}

func lowerBehavior(b *ast.Behavior) (*Behavior, error) {
	header := lowerHeader(b.Header)
	env := make(map[string]onutype.OnuType, len(header.Params))
	for _, p := range header.Params {
		env[p.Name] = p.Type
	}
	body, err := lowerExpr(b.Body, env)
	if err != nil {
		return nil, err
	}
	if !header.IsEffect && hasEmit(body) {
		return nil, diag.PurityViolation(b.Span, header.Name)
	}
	return &Behavior{Header: header, Body: body}, nil
}

func hasEmit(e Expression) bool {
	switch v := e.(type) {
	case *Emit:
		return true
	case *Derivation:
		return hasEmit(v.Value) || hasEmit(v.Body)
	case *If:
		return hasEmit(v.Cond) || hasEmit(v.Then) || hasEmit(v.Else)
	case *Block:
		for _, sub := range v.Exprs {
			if hasEmit(sub) {
				return true
			}
		}
		return false
	case *Call:
		for _, a := range v.Args {
			if hasEmit(a) {
				return true
			}
		}
		return false
	case *ActsAs:
		return hasEmit(v.Subject)
	case *Index:
		return hasEmit(v.Subject)
	default:
		return false
	}
}

func lowerExpr(e ast.Expression, env map[string]onutype.OnuType) (Expression, error) {
	switch v := e.(type) {
	case *ast.IntLit:
		return &IntLit{typed{onutype.I64}, v.Value}, nil
	case *ast.FloatLit:
		return &FloatLit{typed{onutype.F64}, v.Value}, nil
	case *ast.TextLit:
		return &TextLit{typed{onutype.Text}, v.Value}, nil
	case *ast.BoolLit:
		return &BoolLit{typed{onutype.Bool}, v.Value}, nil
	case *ast.NothingLit:
		return &NothingLit{typed{onutype.Nothing}}, nil
	case *ast.Identifier:
		t, ok := env[v.Name]
		if !ok {
			t = onutype.Nothing // type-environment gap; spec.md §9 flags, does not require fixing
		}
		return &Identifier{typed{t}, v.Name}, nil
	case *ast.TupleLit:
		elems, elemTypes, err := lowerExprList(v.Elems, env)
		if err != nil {
			return nil, err
		}
		return &TupleLit{typed{onutype.Tuple(elemTypes...)}, elems}, nil
	case *ast.ArrayLit:
		elems, elemTypes, err := lowerExprList(v.Elems, env)
		if err != nil {
			return nil, err
		}
		elemType := onutype.Nothing
		if len(elemTypes) > 0 {
			elemType = elemTypes[0]
		}
		return &ArrayLit{typed{onutype.Array(elemType)}, elems}, nil
	case *ast.MatrixLit:
		return &MatrixLit{typed{onutype.Matrix}, v.Rows, v.Cols, v.Data}, nil
	case *ast.Emit:
		val, err := lowerExpr(v.Value, env)
		if err != nil {
			return nil, err
		}
		return &Emit{typed{onutype.Nothing}, val}, nil
	case *ast.Derivation:
		val, err := lowerExpr(v.Value, env)
		if err != nil {
			return nil, err
		}
		inner := make(map[string]onutype.OnuType, len(env)+1)
		for k, t := range env {
			inner[k] = t
		}
		declared := val.StaticType()
		if v.Type != nil {
			declared = v.Type.Type
		}
		inner[v.Name] = declared
		body, err := lowerExpr(v.Body, inner)
		if err != nil {
			return nil, err
		}
		return &Derivation{typed{body.StaticType()}, v.Name, val, body}, nil
	case *ast.If:
		cond, err := lowerExpr(v.Cond, env)
		if err != nil {
			return nil, err
		}
		then, err := lowerExpr(v.Then, env)
		if err != nil {
			return nil, err
		}
		els, err := lowerExpr(v.Else, env)
		if err != nil {
			return nil, err
		}
		return &If{typed{then.StaticType()}, cond, then, els}, nil
	case *ast.Block:
		exprs, types, err := lowerExprList(v.Exprs, env)
		if err != nil {
			return nil, err
		}
		t := onutype.Nothing
		if len(types) > 0 {
			t = types[len(types)-1]
		}
		return &Block{typed{t}, exprs}, nil
	case *ast.BehaviorCall:
		args, _, err := lowerExprList(v.Args, env)
		if err != nil {
			return nil, err
		}
		return canonicalizeCall(v.Name, args), nil
	case *ast.ActsAs:
		subj, err := lowerExpr(v.Subject, env)
		if err != nil {
			return nil, err
		}
		return &ActsAs{typed{subj.StaticType()}, subj, v.ShapeName}, nil
	case *ast.Index:
		subj, err := lowerExpr(v.Subject, env)
		if err != nil {
			return nil, err
		}
		return &Index{typed{onutype.Nothing}, subj, v.Const}, nil
	default:
		return &NothingLit{typed{onutype.Nothing}}, nil
	}
}

func lowerExprList(exprs []ast.Expression, env map[string]onutype.OnuType) ([]Expression, []onutype.OnuType, error) {
	out := make([]Expression, 0, len(exprs))
	types := make([]onutype.OnuType, 0, len(exprs))
	for _, sub := range exprs {
		lowered, err := lowerExpr(sub, env)
		if err != nil {
			return nil, nil, err
		}
		out = append(out, lowered)
		types = append(types, lowered.StaticType())
	}
	return out, types, nil
}

// canonicalizeCall rewrites a literal-indexed char-at call into an
// explicit Index node only when the subject's static type is a tuple —
// the conservative resolution DESIGN.md records for the ambiguity
// between tuple projection and a user-defined text char-at.
func canonicalizeCall(name string, args []Expression) Expression {
	if name == "char-at" && len(args) == 2 {
		if args[0].StaticType().Kind == onutype.KindTuple {
			if idx, ok := args[1].(*IntLit); ok {
				return &Index{typed{onutype.Nothing}, args[0], int(idx.Value)}
			}
		}
	}
	return &Call{typed{onutype.Nothing}, name, args}
}
