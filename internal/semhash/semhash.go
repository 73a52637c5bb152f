// Package semhash computes the deterministic structural digest the DRY
// validator uses to detect two behaviors that would compile to
// indistinguishable bodies. Grounded on the teacher's
// canonicalize-then-CBOR-then-SHA-256 pipeline for hashing execution
// plans, adapted with a fixed-key HMAC in place of a bare digest — the
// "SipHash-like with a fixed key" construction spec.md calls for.
package semhash

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"

	"github.com/fxamacker/cbor/v2"
	"github.com/jimd-den/onu-prog/internal/ast"
	"github.com/jimd-den/onu-prog/internal/onutype"
)

// fixedKey is a compile-time constant, not a secret: it exists only to
// pick one member of the HMAC family so the digest is reproducible across
// runs and platforms, per spec.md §4.4's "fixed key" requirement.
var fixedKey = []byte("onu-prog/semhash/v1-fixed-domain-separation-key")

var encMode, _ = cbor.CanonicalEncOptions().EncMode()

// Of computes the semantic hash of a behavior's (body, parameter types,
// return type) as a hex string. It deliberately excludes spans, TypeInfo
// display names, and which surface spelling (receiving/takes,
// let/derivation, emit/broadcasts) produced the AST — the Expression tree
// is already desugared of those by the time it reaches here, so two
// spelling variants of the same program collide by construction.
func Of(header ast.BehaviorHeader, body ast.Expression) (string, error) {
	doc := map[string]interface{}{
		"params": paramTypes(header),
		"return": canonType(header.Return.Type),
		"body":   canonExpr(body),
	}
	enc, err := encMode.Marshal(doc)
	if err != nil {
		return "", err
	}
	mac := hmac.New(sha256.New, fixedKey)
	mac.Write(enc)
	return hex.EncodeToString(mac.Sum(nil)), nil
}

func paramTypes(header ast.BehaviorHeader) []interface{} {
	out := make([]interface{}, 0, len(header.Params))
	for _, p := range header.Params {
		out = append(out, canonType(p.Type.Type))
	}
	return out
}

func canonType(t onutype.OnuType) map[string]interface{} {
	m := map[string]interface{}{"kind": int(t.Kind), "width": t.Width}
	if t.Kind == onutype.KindShape {
		m["shape"] = t.ShapeName
	}
	if t.Elem != nil {
		m["elem"] = canonType(*t.Elem)
	}
	if len(t.Elems) > 0 {
		elems := make([]interface{}, len(t.Elems))
		for i, e := range t.Elems {
			elems[i] = canonType(e)
		}
		m["elems"] = elems
	}
	return m
}

func canonExpr(e ast.Expression) map[string]interface{} {
	switch v := e.(type) {
	case *ast.IntLit:
		return map[string]interface{}{"op": "int", "v": v.Value}
	case *ast.FloatLit:
		return map[string]interface{}{"op": "float", "v": v.Value}
	case *ast.TextLit:
		return map[string]interface{}{"op": "text", "v": v.Value}
	case *ast.BoolLit:
		return map[string]interface{}{"op": "bool", "v": v.Value}
	case *ast.Identifier:
		return map[string]interface{}{"op": "ident", "name": v.Name}
	case *ast.NothingLit:
		return map[string]interface{}{"op": "nothing"}
	case *ast.TupleLit:
		return map[string]interface{}{"op": "tuple", "elems": canonExprList(v.Elems)}
	case *ast.ArrayLit:
		return map[string]interface{}{"op": "array", "elems": canonExprList(v.Elems)}
	case *ast.MatrixLit:
		return map[string]interface{}{"op": "matrix", "rows": v.Rows, "cols": v.Cols, "data": v.Data}
	case *ast.Emit:
		return map[string]interface{}{"op": "emit", "value": canonExpr(v.Value)}
	case *ast.Derivation:
		return map[string]interface{}{"op": "let", "name": v.Name, "value": canonExpr(v.Value), "body": canonExpr(v.Body)}
	case *ast.If:
		return map[string]interface{}{"op": "if", "cond": canonExpr(v.Cond), "then": canonExpr(v.Then), "else": canonExpr(v.Else)}
	case *ast.Block:
		return map[string]interface{}{"op": "block", "exprs": canonExprList(v.Exprs)}
	case *ast.BehaviorCall:
		return map[string]interface{}{"op": "call", "name": v.Name, "args": canonExprList(v.Args)}
	case *ast.ActsAs:
		return map[string]interface{}{"op": "acts-as", "subject": canonExpr(v.Subject), "shape": v.ShapeName}
	case *ast.Index:
		return map[string]interface{}{"op": "index", "subject": canonExpr(v.Subject), "const": v.Const}
	default:
		return map[string]interface{}{"op": "unknown"}
	}
}

func canonExprList(exprs []ast.Expression) []interface{} {
	out := make([]interface{}, len(exprs))
	for i, e := range exprs {
		out[i] = canonExpr(e)
	}
	return out
}
