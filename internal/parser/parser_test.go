package parser

import (
	"testing"

	"github.com/jimd-den/onu-prog/internal/ast"
	"github.com/jimd-den/onu-prog/internal/diag"
	"github.com/jimd-den/onu-prog/internal/lexer"
	"github.com/jimd-den/onu-prog/internal/registry"
	"github.com/jimd-den/onu-prog/internal/registry/builtins"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seededRegistry(t *testing.T) *registry.Registry {
	t.Helper()
	r := registry.New()
	require.NoError(t, builtins.Seed(r))
	return r
}

func mustParse(t *testing.T, src string) []ast.Discourse {
	t.Helper()
	reg := seededRegistry(t)
	toks := lexer.All(src, nil)
	units, err := ParseProgram(toks, reg)
	require.NoError(t, err, "source:\n%s", src)
	return units
}

func TestParseBehaviorHeaderAndSVOBody(t *testing.T) {
	src := `the behavior called double receiving: a integer64 called n returning: a integer64 as:
n added-to n`
	units := mustParse(t, src)
	require.Len(t, units, 1)
	b, ok := units[0].(*ast.Behavior)
	require.True(t, ok, "expected *ast.Behavior, got %T", units[0])
	assert.Equal(t, "double", b.Header.Name)
	require.Len(t, b.Header.Params, 1)
	call, ok := b.Body.(*ast.BehaviorCall)
	require.True(t, ok, "expected a *ast.BehaviorCall, got %#v", b.Body)
	assert.Equal(t, "added-to", call.Name)
	assert.Len(t, call.Args, 2)
}

func TestParseSVOChainIsLeftAssociative(t *testing.T) {
	src := `the behavior called combine receiving: a integer64 called n returning: a integer64 as:
n added-to n scales-by n`
	units := mustParse(t, src)
	b := units[0].(*ast.Behavior)
	outer, ok := b.Body.(*ast.BehaviorCall)
	require.True(t, ok, "expected a *ast.BehaviorCall, got %#v", b.Body)
	assert.Equal(t, "scales-by", outer.Name, "expected the outermost call to be scales-by")
	inner, ok := outer.Args[0].(*ast.BehaviorCall)
	require.True(t, ok, "expected the left operand to be a BehaviorCall, got %#v", outer.Args[0])
	assert.Equal(t, "added-to", inner.Name)
}

func TestParseModule(t *testing.T) {
	src := `the module called Arithmetic with concern: basic arithmetic`
	units := mustParse(t, src)
	m, ok := units[0].(*ast.Module)
	require.True(t, ok, "expected *ast.Module, got %#v", units[0])
	assert.Equal(t, "Arithmetic", m.Name)
}

func TestParseShapeRegistersPromises(t *testing.T) {
	src := `the shape Countable promises:
the behavior called magnitude receiving: a double called self returning: a double as:`
	reg := seededRegistry(t)
	toks := lexer.All(src, nil)
	units, err := ParseProgram(toks, reg)
	require.NoError(t, err)
	shape, ok := units[0].(*ast.Shape)
	require.True(t, ok, "expected *ast.Shape, got %#v", units[0])
	assert.Equal(t, "Countable", shape.Name)
	got, ok := reg.GetShape("Countable")
	require.True(t, ok, "expected Countable to be registered")
	assert.Len(t, got.Promises, 1)
}

func TestSVORejectionWhenVerbUsedAsPrefix(t *testing.T) {
	src := `the behavior called broken receiving: a integer64 called n returning: a integer64 as:
added-to n n`
	reg := seededRegistry(t)
	toks := lexer.All(src, nil)
	_, err := ParseProgram(toks, reg)
	require.Error(t, err, "expected an error when a verb is used in subject position")
	d, ok := err.(*diag.Diagnostic)
	require.True(t, ok, "expected *diag.Diagnostic, got %T", err)
	assert.Contains(t, d.Render(), "refuses to be used as a prefix")
}

func TestShadowingRejectionOnDerivationName(t *testing.T) {
	src := `the behavior called broken receiving: a integer64 called n returning: a integer64 as:
let added-to is n
n`
	reg := seededRegistry(t)
	toks := lexer.All(src, nil)
	_, err := ParseProgram(toks, reg)
	require.Error(t, err, "expected a shadowing rejection when a derivation reuses a registered name")
	d := err.(*diag.Diagnostic)
	assert.Contains(t, d.Render(), "violates the grammatical covenant")
}

func TestUnresolvedIdentifierViaUtilizesSuggestsClosestName(t *testing.T) {
	src := `the behavior called broken receiving: a integer64 called n returning: a integer64 as:
n utilizes addedto`
	reg := seededRegistry(t)
	toks := lexer.All(src, nil)
	_, err := ParseProgram(toks, reg)
	require.Error(t, err, "expected an error for an unregistered behavior name reached via utilizes")
	d := err.(*diag.Diagnostic)
	assert.Contains(t, d.Render(), "not a registered behavior")
}

func TestDepthExceededOnDeeplyNestedParens(t *testing.T) {
	src := "the behavior called deep receiving: a integer64 called n returning: a integer64 as:\n"
	for i := 0; i < 20; i++ {
		src += "("
	}
	src += "n"
	for i := 0; i < 20; i++ {
		src += ")"
	}
	reg := seededRegistry(t)
	toks := lexer.All(src, nil)
	_, err := ParseProgram(toks, reg)
	require.Error(t, err, "expected a KISS depth violation on 20 levels of parenthesis nesting")
	d := err.(*diag.Diagnostic)
	assert.Contains(t, d.Render(), "KISS VIOLATION")
}

func TestIfExpressionParses(t *testing.T) {
	src := `the behavior called pick receiving: a integer64 called n returning: a integer64 as:
if n exceeds n then n else n`
	units := mustParse(t, src)
	b := units[0].(*ast.Behavior)
	_, ok := b.Body.(*ast.If)
	assert.True(t, ok, "expected an *ast.If body, got %#v", b.Body)
}

func TestDerivationParses(t *testing.T) {
	src := `the behavior called named receiving: a integer64 called n returning: a integer64 as:
let twice is n added-to n
twice`
	units := mustParse(t, src)
	b := units[0].(*ast.Behavior)
	d, ok := b.Body.(*ast.Derivation)
	require.True(t, ok, "expected a *ast.Derivation, got %#v", b.Body)
	assert.Equal(t, "twice", d.Name)
}

func TestDerivationAcceptsDerivesFromSpelling(t *testing.T) {
	src := `the behavior called named receiving: a integer64 called n returning: a integer64 as:
derivation twice derives-from n added-to n
twice`
	units := mustParse(t, src)
	b := units[0].(*ast.Behavior)
	d, ok := b.Body.(*ast.Derivation)
	require.True(t, ok, "expected a *ast.Derivation, got %#v", b.Body)
	assert.Equal(t, "twice", d.Name, "'derivation ... derives-from' must parse identically to 'let ... is'")
}

func TestMatrixLiteralParses(t *testing.T) {
	src := `the behavior called identity receiving: a matrix called m returning: a matrix as:
matrix[2 2] [1 0 0 1]`
	units := mustParse(t, src)
	b := units[0].(*ast.Behavior)
	m, ok := b.Body.(*ast.MatrixLit)
	require.True(t, ok, "expected a *ast.MatrixLit, got %#v", b.Body)
	assert.Equal(t, 2, m.Rows)
	assert.Equal(t, 2, m.Cols)
	assert.Equal(t, []float64{1, 0, 0, 1}, m.Data)
}

func TestMatrixLiteralRejectsMismatchedEntryCount(t *testing.T) {
	src := `the behavior called broken receiving: a matrix called m returning: a matrix as:
matrix[2 2] [1 0 0]`
	reg := seededRegistry(t)
	toks := lexer.All(src, nil)
	_, err := ParseProgram(toks, reg)
	require.Error(t, err)
}
