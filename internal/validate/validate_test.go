package validate

import (
	"testing"

	"github.com/jimd-den/onu-prog/internal/ast"
	"github.com/jimd-den/onu-prog/internal/diag"
	"github.com/jimd-den/onu-prog/internal/onutype"
	"github.com/jimd-den/onu-prog/internal/registry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func i64Param(name string) ast.Param {
	return ast.Param{Name: name, Type: onutype.TypeInfo{Type: onutype.I64, DisplayName: "integer64", Article: onutype.ArticleAn}}
}

func TestLinguisticRejectsArticleMismatch(t *testing.T) {
	h := ast.BehaviorHeader{
		Name:   "broken",
		Params: []ast.Param{{Name: "n", Type: onutype.TypeInfo{Type: onutype.I64, DisplayName: "integer64", Article: onutype.ArticleA}}},
		Return: onutype.TypeInfo{Type: onutype.Nothing, Article: onutype.ArticleNothing},
	}
	err := linguistic([]ast.Discourse{&ast.Behavior{Header: h}})
	require.Error(t, err, "expected a linguistic violation for 'a integer64' (integer64 starts with a vowel, requires 'an')")
	assert.Contains(t, err.(*diag.Diagnostic).Render(), "LINGUISTIC VIOLATION")
}

func TestLinguisticAcceptsCorrectArticle(t *testing.T) {
	h := ast.BehaviorHeader{
		Name:   "fine",
		Params: []ast.Param{i64Param("n")},
		Return: onutype.TypeInfo{Type: onutype.Nothing, Article: onutype.ArticleNothing},
	}
	assert.NoError(t, linguistic([]ast.Discourse{&ast.Behavior{Header: h}}))
}

func TestConcernRejectsSecondModule(t *testing.T) {
	units := []ast.Discourse{
		&ast.Module{Name: "First"},
		&ast.Module{Name: "Second"},
	}
	err := concern(units)
	require.Error(t, err, "expected a concern violation for a second module")
	assert.Contains(t, err.(*diag.Diagnostic).Render(), "Concern Error (SRP Violation)")
}

func TestConcernAcceptsSingleModule(t *testing.T) {
	units := []ast.Discourse{&ast.Module{Name: "Only"}}
	assert.NoError(t, concern(units))
}

func TestTerminationAcceptsDecreasingRecursion(t *testing.T) {
	h := ast.BehaviorHeader{Name: "factorial", Diminishing: "n", Params: []ast.Param{i64Param("n")}}
	body := &ast.Derivation{
		Name:  "smaller",
		Value: &ast.BehaviorCall{Name: "decreased-by", Args: []ast.Expression{ast.NewIdentifier(diag.Span{}, "n"), ast.NewIntLit(diag.Span{}, 1)}},
		Body:  &ast.BehaviorCall{Name: "factorial", Args: []ast.Expression{ast.NewIdentifier(diag.Span{}, "smaller")}},
	}
	units := []ast.Discourse{&ast.Behavior{Header: h, Body: body}}
	assert.NoError(t, termination(units))
}

func TestTerminationRejectsNonDecreasingRecursion(t *testing.T) {
	h := ast.BehaviorHeader{Name: "loop", Diminishing: "n", Params: []ast.Param{i64Param("n")}}
	body := &ast.BehaviorCall{Name: "loop", Args: []ast.Expression{ast.NewIdentifier(diag.Span{}, "n")}}
	units := []ast.Discourse{&ast.Behavior{Header: h, Body: body}}
	err := termination(units)
	require.Error(t, err, "expected a termination violation when no decreasing argument is passed")
	assert.Contains(t, err.(*diag.Diagnostic).Render(), "TERMINATION VIOLATION")
}

func TestTerminationRequiresDiminishingClause(t *testing.T) {
	h := ast.BehaviorHeader{Name: "loop", Params: []ast.Param{i64Param("n")}}
	body := &ast.BehaviorCall{Name: "loop", Args: []ast.Expression{ast.NewIdentifier(diag.Span{}, "n")}}
	units := []ast.Discourse{&ast.Behavior{Header: h, Body: body}}
	err := termination(units)
	require.Error(t, err, "expected a missing-clause violation for a self-call with no diminishing parameter")
}

func TestTerminationWaiverAllowsUnboundedRecursion(t *testing.T) {
	h := ast.BehaviorHeader{Name: "loop", Params: []ast.Param{i64Param("n")}, WaivesTermination: true}
	body := &ast.BehaviorCall{Name: "loop", Args: []ast.Expression{ast.NewIdentifier(diag.Span{}, "n")}}
	units := []ast.Discourse{&ast.Behavior{Header: h, Body: body}}
	assert.NoError(t, termination(units), "a waived behavior must not be rejected")
}

func TestShapeRejectsUnsatisfiedRoleBound(t *testing.T) {
	reg := registry.New()
	param := ast.Param{Name: "w", Type: onutype.TypeInfo{Type: onutype.Shape("Widget"), DisplayName: "Widget", RoleShape: "Measurable"}}
	h := ast.BehaviorHeader{Name: "use", Params: []ast.Param{param}}
	units := []ast.Discourse{&ast.Behavior{Header: h}}
	err := shape(reg, units)
	require.Error(t, err, "expected a shape violation against an unregistered shape")
	assert.Contains(t, err.(*diag.Diagnostic).Render(), "SHAPE VIOLATION")
}

func TestShapeAcceptsSatisfiedRoleBound(t *testing.T) {
	reg := registry.New()
	reg.AddSignature("magnitude", registry.Signature{Params: []onutype.TypeInfo{{Type: onutype.F64}}, Return: onutype.F64})
	reg.MarkImplemented("magnitude")
	reg.AddShape("Measurable", []registry.Promise{{Name: "magnitude"}})
	param := ast.Param{Name: "w", Type: onutype.TypeInfo{Type: onutype.F64, DisplayName: "double", RoleShape: "Measurable"}}
	h := ast.BehaviorHeader{Name: "use", Params: []ast.Param{param}}
	units := []ast.Discourse{&ast.Behavior{Header: h}}
	assert.NoError(t, shape(reg, units))
}

func TestDryDetectsDuplicateImplementation(t *testing.T) {
	reg := registry.New()
	h1 := ast.BehaviorHeader{Name: "double", Params: []ast.Param{i64Param("n")}, Return: onutype.TypeInfo{Type: onutype.I64}}
	h2 := ast.BehaviorHeader{Name: "twice", Params: []ast.Param{i64Param("n")}, Return: onutype.TypeInfo{Type: onutype.I64}}
	body := &ast.BehaviorCall{Name: "added-to", Args: []ast.Expression{ast.NewIdentifier(diag.Span{}, "n"), ast.NewIdentifier(diag.Span{}, "n")}}
	units := []ast.Discourse{
		&ast.Behavior{Header: h1, Body: body},
		&ast.Behavior{Header: h2, Body: body},
	}
	err := dry(reg, units)
	require.Error(t, err, "expected a DRY conflict for two identical implementations")
	assert.Contains(t, err.(*diag.Diagnostic).Render(), "Duplicate semantic implementation detected")
}

func TestDryAcceptsDistinctImplementations(t *testing.T) {
	reg := registry.New()
	h1 := ast.BehaviorHeader{Name: "double", Params: []ast.Param{i64Param("n")}, Return: onutype.TypeInfo{Type: onutype.I64}}
	h2 := ast.BehaviorHeader{Name: "triple", Params: []ast.Param{i64Param("n")}, Return: onutype.TypeInfo{Type: onutype.I64}}
	body1 := &ast.BehaviorCall{Name: "added-to", Args: []ast.Expression{ast.NewIdentifier(diag.Span{}, "n"), ast.NewIdentifier(diag.Span{}, "n")}}
	body2 := &ast.BehaviorCall{Name: "scales-by", Args: []ast.Expression{ast.NewIdentifier(diag.Span{}, "n"), ast.NewIntLit(diag.Span{}, 3)}}
	units := []ast.Discourse{
		&ast.Behavior{Header: h1, Body: body1},
		&ast.Behavior{Header: h2, Body: body2},
	}
	require.NoError(t, dry(reg, units))
	assert.True(t, reg.IsImplemented("double"))
	assert.True(t, reg.IsImplemented("triple"))
}

func TestRunAllStopsAtFirstFailureInFixedOrder(t *testing.T) {
	reg := registry.New()
	// A linguistic violation and a concern violation both present; the
	// fixed order (linguistic before concern) means linguistic must fire.
	badHeader := ast.BehaviorHeader{
		Name:   "broken",
		Params: []ast.Param{{Name: "n", Type: onutype.TypeInfo{Type: onutype.I64, DisplayName: "integer64", Article: onutype.ArticleA}}},
		Return: onutype.TypeInfo{Type: onutype.Nothing, Article: onutype.ArticleNothing},
	}
	units := []ast.Discourse{
		&ast.Module{Name: "First"},
		&ast.Module{Name: "Second"},
		&ast.Behavior{Header: badHeader},
	}
	err := RunAll(reg, units)
	require.Error(t, err, "expected RunAll to fail")
	assert.Contains(t, err.(*diag.Diagnostic).Render(), "LINGUISTIC VIOLATION", "expected the linguistic validator to fire first")
}
