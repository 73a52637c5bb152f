package hir

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/jimd-den/onu-prog/internal/ast"
	"github.com/jimd-den/onu-prog/internal/diag"
	"github.com/jimd-den/onu-prog/internal/onutype"
)

func behaviorUnit(header ast.BehaviorHeader, body ast.Expression) []ast.Discourse {
	return []ast.Discourse{&ast.Behavior{Header: header, Body: body}}
}

// cmpOpt lets structural diffs reach into the unexported typed field that
// every HIR node embeds, since this test file lives inside the package.
var cmpOpt = cmp.AllowUnexported(typed{})

func TestLowerProducesExactDerivationShape(t *testing.T) {
	h := ast.BehaviorHeader{
		Name:   "twice",
		Params: []ast.Param{{Name: "n", Type: onutype.TypeInfo{Type: onutype.I64}}},
		Return: onutype.TypeInfo{Type: onutype.I64},
	}
	body := &ast.Derivation{
		Name:  "doubled",
		Value: &ast.BehaviorCall{Name: "added-to", Args: []ast.Expression{ast.NewIdentifier(diag.Span{}, "n"), ast.NewIdentifier(diag.Span{}, "n")}},
		Body:  ast.NewIdentifier(diag.Span{}, "doubled"),
	}
	units, err := Lower(behaviorUnit(h, body))
	if err != nil {
		t.Fatalf("Lower() error = %v", err)
	}

	// canonicalizeCall always types a non-char-at Call as Nothing, so the
	// derivation and the trailing identifier reference inherit Nothing too.
	want := NewDerivation(onutype.Nothing, "doubled",
		NewCall(onutype.Nothing, "added-to", []Expression{NewIdentifier(onutype.I64, "n"), NewIdentifier(onutype.I64, "n")}),
		NewIdentifier(onutype.Nothing, "doubled"),
	)
	got := units[0].(*Behavior).Body
	if diff := cmp.Diff(want, got, cmpOpt); diff != "" {
		t.Fatalf("lowered derivation mismatch (-want +got):\n%s", diff)
	}
}

func TestLowerNormalizesLiteralWidths(t *testing.T) {
	h := ast.BehaviorHeader{Name: "one", Return: onutype.TypeInfo{Type: onutype.I64}}
	units, err := Lower(behaviorUnit(h, ast.NewIntLit(diag.Span{}, 42)))
	if err != nil {
		t.Fatalf("Lower() error = %v", err)
	}
	b := units[0].(*Behavior)
	lit, ok := b.Body.(*IntLit)
	if !ok || lit.StaticType().Kind != onutype.KindInt || lit.StaticType().Width != 64 {
		t.Fatalf("expected an I64 IntLit, got %#v", b.Body)
	}
}

func TestLowerPropagatesParamTypeIntoBody(t *testing.T) {
	h := ast.BehaviorHeader{
		Name:   "id",
		Params: []ast.Param{{Name: "n", Type: onutype.TypeInfo{Type: onutype.F64}}},
		Return: onutype.TypeInfo{Type: onutype.F64},
	}
	units, err := Lower(behaviorUnit(h, ast.NewIdentifier(diag.Span{}, "n")))
	if err != nil {
		t.Fatalf("Lower() error = %v", err)
	}
	b := units[0].(*Behavior)
	ident, ok := b.Body.(*Identifier)
	if !ok || !ident.StaticType().Equal(onutype.F64) {
		t.Fatalf("expected the identifier to carry the parameter's declared type, got %#v", b.Body)
	}
}

func TestLowerRejectsEmitInPureBehavior(t *testing.T) {
	h := ast.BehaviorHeader{Name: "quiet", Return: onutype.TypeInfo{Type: onutype.Nothing}}
	body := &ast.Emit{Value: ast.NewIntLit(diag.Span{}, 1)}
	_, err := Lower(behaviorUnit(h, body))
	if err == nil {
		t.Fatal("expected a purity violation when a non-effect behavior emits")
	}
	if d, ok := err.(*diag.Diagnostic); !ok || !strings.Contains(d.Render(), "pure behavior") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestLowerAllowsEmitInEffectBehavior(t *testing.T) {
	h := ast.BehaviorHeader{Name: "announce", IsEffect: true, Return: onutype.TypeInfo{Type: onutype.Nothing}}
	body := &ast.Emit{Value: ast.NewIntLit(diag.Span{}, 1)}
	units, err := Lower(behaviorUnit(h, body))
	if err != nil {
		t.Fatalf("an effect behavior must be allowed to emit: %v", err)
	}
	if _, ok := units[0].(*Behavior).Body.(*Emit); !ok {
		t.Fatalf("expected the body to remain an Emit node")
	}
}

func TestLowerRejectsEmitNestedInsideDerivation(t *testing.T) {
	h := ast.BehaviorHeader{Name: "quiet", Return: onutype.TypeInfo{Type: onutype.Nothing}}
	body := &ast.Derivation{
		Name:  "x",
		Value: ast.NewIntLit(diag.Span{}, 1),
		Body:  &ast.Emit{Value: ast.NewIdentifier(diag.Span{}, "x")},
	}
	_, err := Lower(behaviorUnit(h, body))
	if err == nil {
		t.Fatal("expected the purity check to see through a derivation body")
	}
}

func TestLowerCanonicalizesTupleCharAtToIndex(t *testing.T) {
	h := ast.BehaviorHeader{
		Name:   "project",
		Params: []ast.Param{{Name: "t", Type: onutype.TypeInfo{Type: onutype.Tuple(onutype.I64, onutype.Text)}}},
		Return: onutype.TypeInfo{Type: onutype.I64},
	}
	body := &ast.BehaviorCall{Name: "char-at", Args: []ast.Expression{
		ast.NewIdentifier(diag.Span{}, "t"), ast.NewIntLit(diag.Span{}, 0),
	}}
	units, err := Lower(behaviorUnit(h, body))
	if err != nil {
		t.Fatalf("Lower() error = %v", err)
	}
	idx, ok := units[0].(*Behavior).Body.(*Index)
	if !ok || idx.Const != 0 {
		t.Fatalf("expected a tuple char-at to canonicalize into an Index node, got %#v", units[0].(*Behavior).Body)
	}
}

func TestLowerLeavesTextCharAtAsCall(t *testing.T) {
	h := ast.BehaviorHeader{
		Name:   "project",
		Params: []ast.Param{{Name: "s", Type: onutype.TypeInfo{Type: onutype.Text}}},
		Return: onutype.TypeInfo{Type: onutype.Text},
	}
	body := &ast.BehaviorCall{Name: "char-at", Args: []ast.Expression{
		ast.NewIdentifier(diag.Span{}, "s"), ast.NewIntLit(diag.Span{}, 0),
	}}
	units, err := Lower(behaviorUnit(h, body))
	if err != nil {
		t.Fatalf("Lower() error = %v", err)
	}
	call, ok := units[0].(*Behavior).Body.(*Call)
	if !ok || call.Name != "char-at" {
		t.Fatalf("expected char-at over text to remain a Call, got %#v", units[0].(*Behavior).Body)
	}
}

func TestLowerShapeCarriesBehaviorHeaders(t *testing.T) {
	ast1 := &ast.Shape{Name: "Measurable", Behaviors: []ast.BehaviorHeader{
		{Name: "magnitude", Params: []ast.Param{{Name: "self", Type: onutype.TypeInfo{Type: onutype.F64}}}, Return: onutype.TypeInfo{Type: onutype.F64}},
	}}
	units, err := Lower([]ast.Discourse{ast1})
	if err != nil {
		t.Fatalf("Lower() error = %v", err)
	}
	shape, ok := units[0].(*Shape)
	if !ok || len(shape.Behaviors) != 1 || shape.Behaviors[0].Name != "magnitude" {
		t.Fatalf("unexpected lowered shape: %#v", units[0])
	}
}
