package builtins

import (
	"testing"

	"github.com/jimd-den/onu-prog/internal/onutype"
	"github.com/jimd-den/onu-prog/internal/registry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateSucceedsAgainstEmbeddedSuite(t *testing.T) {
	require.NoError(t, Validate(), "the embedded suite must validate against its own schema")
}

func TestSeedRegistersCoreArithmetic(t *testing.T) {
	r := registry.New()
	require.NoError(t, Seed(r))
	arity, ok := r.GetArity("added-to")
	require.True(t, ok)
	assert.Equal(t, 2, arity)
	assert.True(t, r.IsImplemented("added-to"), "builtin behaviors must be marked implemented on seed")
}

func TestSeedRegistersMeasurableShape(t *testing.T) {
	r := registry.New()
	require.NoError(t, Seed(r))
	shape, ok := r.GetShape("Measurable")
	require.True(t, ok, "expected Measurable to be registered")
	require.Len(t, shape.Promises, 1)
	assert.Equal(t, "magnitude", shape.Promises[0].Name)
	ok, failed := r.Satisfies(onutype.F64, "Measurable")
	assert.True(t, ok, "F64 must satisfy Measurable, failed promise %q", failed)
}

func TestSeedIsIdempotentAcrossRepeatedCalls(t *testing.T) {
	r := registry.New()
	require.NoError(t, Seed(r), "first Seed() call")
	require.NoError(t, Seed(r), "second Seed() call")
	arity, ok := r.GetArity("added-to")
	require.True(t, ok)
	assert.Equal(t, 2, arity, "repeated seeding must not corrupt arities")
}

func TestResolveTypeUnknownKindErrors(t *testing.T) {
	_, err := resolveType(jsonType{Kind: "nonexistent"})
	require.Error(t, err, "expected an error for an unresolvable type kind")
}

func TestResolveSignatureReturnsI64Arithmetic(t *testing.T) {
	sig, err := resolveSignature(jsonSignature{
		Params: []jsonType{{Kind: "i64"}, {Kind: "i64"}},
		Return: jsonType{Kind: "i64"},
	})
	require.NoError(t, err)
	require.Len(t, sig.Params, 2)
	assert.True(t, sig.Params[0].Type.Equal(onutype.I64))
	assert.True(t, sig.Return.Equal(onutype.I64))
}

func TestResolveTypeArrayResolvesElem(t *testing.T) {
	elem := jsonType{Kind: "i64"}
	typ, err := resolveType(jsonType{Kind: "array", Elem: &elem})
	require.NoError(t, err)
	assert.True(t, typ.Equal(onutype.Array(onutype.I64)))
}

func TestResolveTypeArrayMissingElemErrors(t *testing.T) {
	_, err := resolveType(jsonType{Kind: "array"})
	require.Error(t, err, "an array type kind with no elem must be rejected")
}

func TestSeedRegistersF64AndMatrixOverloads(t *testing.T) {
	r := registry.New()
	require.NoError(t, Seed(r))

	overloads, ok := r.GetOverloads("added-to")
	require.True(t, ok, "expected added-to to carry an overload list")
	require.Len(t, overloads, 2, "expected an I64 and an F64 overload of added-to")
	assert.True(t, overloads[1].Params[0].Type.Equal(onutype.F64))

	partitionOverloads, ok := r.GetOverloads("partitions-by")
	require.True(t, ok)
	require.Len(t, partitionOverloads, 3, "expected I64, F64, and Matrix overloads of partitions-by")
	assert.True(t, partitionOverloads[2].Params[0].Type.Equal(onutype.Matrix))
	assert.True(t, partitionOverloads[2].Return.Equal(onutype.Matrix))
}

func TestSeedRegistersUnitesWithOverArrays(t *testing.T) {
	r := registry.New()
	require.NoError(t, Seed(r))
	arity, ok := r.GetArity("unites-with")
	require.True(t, ok, "expected unites-with to be registered")
	assert.Equal(t, 2, arity)
	sig, ok := r.GetSignature("unites-with")
	require.True(t, ok)
	assert.True(t, sig.Params[0].Type.Equal(onutype.Array(onutype.I64)))
	assert.True(t, sig.Return.Equal(onutype.Array(onutype.I64)))
}
