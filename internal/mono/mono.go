// Package mono monomorphizes shape-bounded behaviors. A behavior that
// declares a "via the role R" parameter is generic over any type
// satisfying R; every call site that supplies a concrete subject through
// "acts-as R" gets its own specialized copy of the callee, named
// "<name>_<typesuffix>", with the role-bound parameter narrowed to that
// concrete type. The call site is rewritten to call the specialization
// directly and the acts-as wrapper is erased.
package mono

import (
	"github.com/jimd-den/onu-prog/internal/diag"
	"github.com/jimd-den/onu-prog/internal/hir"
	"github.com/jimd-den/onu-prog/internal/onutype"
)

type ctx struct {
	behaviors map[string]*hir.Behavior
	generated map[string]*hir.Behavior
	order     []string
}

// Run specializes units in place where possible and returns the original
// discourse units plus every generated specialization, appended in the
// order their first call site demanded them.
func Run(units []hir.Discourse) ([]hir.Discourse, error) {
	c := &ctx{
		behaviors: make(map[string]*hir.Behavior),
		generated: make(map[string]*hir.Behavior),
	}
	for _, u := range units {
		if b, ok := u.(*hir.Behavior); ok {
			c.behaviors[b.Header.Name] = b
		}
	}
	for _, u := range units {
		b, ok := u.(*hir.Behavior)
		if !ok {
			continue
		}
		newBody, err := c.rewrite(b.Body)
		if err != nil {
			return nil, err
		}
		b.Body = newBody
	}
	out := make([]hir.Discourse, 0, len(units)+len(c.order))
	out = append(out, units...)
	for _, name := range c.order {
		out = append(out, c.generated[name])
	}
	return out, nil
}

func (c *ctx) rewrite(e hir.Expression) (hir.Expression, error) {
	switch v := e.(type) {
	case *hir.Call:
		return c.rewriteCall(v)
	case *hir.Derivation:
		val, err := c.rewrite(v.Value)
		if err != nil {
			return nil, err
		}
		body, err := c.rewrite(v.Body)
		if err != nil {
			return nil, err
		}
		return hir.NewDerivation(v.StaticType(), v.Name, val, body), nil
	case *hir.If:
		cond, err := c.rewrite(v.Cond)
		if err != nil {
			return nil, err
		}
		then, err := c.rewrite(v.Then)
		if err != nil {
			return nil, err
		}
		els, err := c.rewrite(v.Else)
		if err != nil {
			return nil, err
		}
		return hir.NewIf(v.StaticType(), cond, then, els), nil
	case *hir.Block:
		exprs := make([]hir.Expression, len(v.Exprs))
		for i, sub := range v.Exprs {
			rw, err := c.rewrite(sub)
			if err != nil {
				return nil, err
			}
			exprs[i] = rw
		}
		return hir.NewBlock(v.StaticType(), exprs), nil
	case *hir.Emit:
		val, err := c.rewrite(v.Value)
		if err != nil {
			return nil, err
		}
		return hir.NewEmit(val), nil
	case *hir.ActsAs:
		subj, err := c.rewrite(v.Subject)
		if err != nil {
			return nil, err
		}
		return hir.NewActsAs(subj, v.ShapeName), nil
	case *hir.Index:
		subj, err := c.rewrite(v.Subject)
		if err != nil {
			return nil, err
		}
		return hir.NewIndex(v.StaticType(), subj, v.Const), nil
	case *hir.TupleLit:
		elems := make([]hir.Expression, len(v.Elems))
		for i, sub := range v.Elems {
			rw, err := c.rewrite(sub)
			if err != nil {
				return nil, err
			}
			elems[i] = rw
		}
		return hir.NewTupleLit(v.StaticType(), elems), nil
	case *hir.ArrayLit:
		elems := make([]hir.Expression, len(v.Elems))
		for i, sub := range v.Elems {
			rw, err := c.rewrite(sub)
			if err != nil {
				return nil, err
			}
			elems[i] = rw
		}
		return hir.NewArrayLit(v.StaticType(), elems), nil
	default:
		// Literals and identifiers carry no sub-expressions to specialize.
		return e, nil
	}
}

func (c *ctx) rewriteCall(call *hir.Call) (hir.Expression, error) {
	callee, hasCallee := c.behaviors[call.Name]
	name := call.Name
	args := make([]hir.Expression, len(call.Args))
	for i, a := range call.Args {
		aa, isActsAs := a.(*hir.ActsAs)
		if !isActsAs || !hasCallee || i >= len(callee.Header.Params) || callee.Header.Params[i].ShapeBound == "" {
			rw, err := c.rewrite(a)
			if err != nil {
				return nil, err
			}
			args[i] = rw
			continue
		}
		concrete := aa.Subject.StaticType()
		if concrete.Kind == onutype.KindShape {
			return nil, diag.Monomorphization(diag.Span{}, call.Name)
		}
		specName := call.Name + "_" + concrete.TypeSuffix()
		if _, ok := c.generated[specName]; !ok {
			spec, err := c.specialize(callee, specName, i, concrete)
			if err != nil {
				return nil, err
			}
			c.generated[specName] = spec
			c.order = append(c.order, specName)
			// Recurse into the specialization's own body once registered,
			// so nested acts-as calls specialize transitively.
			rebodied, err := c.rewrite(spec.Body)
			if err != nil {
				return nil, err
			}
			spec.Body = rebodied
		}
		name = specName
		rw, err := c.rewrite(aa.Subject)
		if err != nil {
			return nil, err
		}
		args[i] = rw
	}
	return hir.NewCall(call.StaticType(), name, args), nil
}

// specialize clones callee into a new behavior named newName, narrowing
// parameter index paramIdx from its shape bound to concrete.
func (c *ctx) specialize(callee *hir.Behavior, newName string, paramIdx int, concrete onutype.OnuType) (*hir.Behavior, error) {
	params := make([]hir.Param, len(callee.Header.Params))
	copy(params, callee.Header.Params)
	params[paramIdx] = hir.Param{Name: params[paramIdx].Name, Type: concrete}

	header := hir.Header{
		Name:              newName,
		IsEffect:          callee.Header.IsEffect,
		Params:            params,
		Return:            callee.Header.Return,
		Diminishing:       callee.Header.Diminishing,
		WaivesTermination: callee.Header.WaivesTermination,
	}
	return &hir.Behavior{Header: header, Body: callee.Body}, nil
}
