// Package builtins embeds the "core" suite — the arithmetic, comparison,
// string, collection, math and shape signatures every session seeds before
// parsing begins. The suite is JSON so it can be validated against a
// schema before it ever reaches the registry: a malformed suite fails at
// the compiler's own build/test time, not silently at a user's session
// start.
package builtins

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"io"

	"github.com/jimd-den/onu-prog/internal/onutype"
	"github.com/jimd-den/onu-prog/internal/registry"
	"github.com/santhosh-tekuri/jsonschema/v5"
)

func bytesReader(b []byte) io.Reader { return bytes.NewReader(b) }

//go:embed suite.json
var suiteJSON []byte

//go:embed suite.schema.json
var suiteSchemaJSON []byte

type jsonType struct {
	Kind string    `json:"kind"`
	Elem *jsonType `json:"elem,omitempty"`
}

type jsonSignature struct {
	Params []jsonType `json:"params"`
	Return jsonType   `json:"return"`
}

type jsonPromise struct {
	Name   string        `json:"name"`
	Signature jsonSignature `json:"signature"`
}

type jsonSuite struct {
	Signatures map[string][]jsonSignature `json:"signatures"`
	Shapes     map[string][]jsonPromise   `json:"shapes"`
}

func resolveType(t jsonType) (onutype.OnuType, error) {
	switch t.Kind {
	case "i64":
		return onutype.I64, nil
	case "f64":
		return onutype.F64, nil
	case "bool":
		return onutype.Bool, nil
	case "text":
		return onutype.Text, nil
	case "matrix":
		return onutype.Matrix, nil
	case "array":
		if t.Elem == nil {
			return onutype.OnuType{}, fmt.Errorf("builtins: array type kind missing \"elem\"")
		}
		elem, err := resolveType(*t.Elem)
		if err != nil {
			return onutype.OnuType{}, err
		}
		return onutype.Array(elem), nil
	case "nothing":
		return onutype.Nothing, nil
	default:
		return onutype.OnuType{}, fmt.Errorf("builtins: unknown type kind %q", t.Kind)
	}
}

func resolveSignature(js jsonSignature) (registry.Signature, error) {
	sig := registry.Signature{}
	for _, p := range js.Params {
		typ, err := resolveType(p)
		if err != nil {
			return sig, err
		}
		sig.Params = append(sig.Params, onutype.TypeInfo{Type: typ, DisplayName: typ.DisplayName()})
	}
	ret, err := resolveType(js.Return)
	if err != nil {
		return sig, err
	}
	sig.Return = ret
	return sig, nil
}

// Validate compiles the embedded schema and validates the embedded suite
// document against it. Called once from Seed; split out so tests can
// exercise schema validation on its own.
func Validate() error {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("suite.schema.json", bytesReader(suiteSchemaJSON)); err != nil {
		return fmt.Errorf("builtins: loading schema: %w", err)
	}
	schema, err := compiler.Compile("suite.schema.json")
	if err != nil {
		return fmt.Errorf("builtins: compiling schema: %w", err)
	}
	var doc interface{}
	if err := json.Unmarshal(suiteJSON, &doc); err != nil {
		return fmt.Errorf("builtins: parsing suite document: %w", err)
	}
	if err := schema.Validate(doc); err != nil {
		return fmt.Errorf("builtins: suite document fails schema: %w", err)
	}
	return nil
}

// Seed validates then registers the "core" suite into r. Safe to call
// multiple times across sessions: AddSuite is idempotent per suite name.
func Seed(r *registry.Registry) error {
	if err := Validate(); err != nil {
		return err
	}
	var suite jsonSuite
	if err := json.Unmarshal(suiteJSON, &suite); err != nil {
		return fmt.Errorf("builtins: parsing suite document: %w", err)
	}

	sigs := make(map[string]registry.Signature, len(suite.Signatures))
	overloads := make(map[string][]registry.Signature, len(suite.Signatures))
	for name, jsOverloads := range suite.Signatures {
		if len(jsOverloads) == 0 {
			return fmt.Errorf("builtins: signature %q: no overloads given", name)
		}
		resolved := make([]registry.Signature, 0, len(jsOverloads))
		for i, js := range jsOverloads {
			sig, err := resolveSignature(js)
			if err != nil {
				return fmt.Errorf("builtins: signature %q overload %d: %w", name, i, err)
			}
			resolved = append(resolved, sig)
		}
		// The first overload is the primary signature: what GetArity,
		// GetSignature, and shape satisfaction see. Arity is identical
		// across a name's overloads, so this choice is only ever visible
		// through the concrete parameter/return types those calls expose.
		sigs[name] = resolved[0]
		overloads[name] = resolved
	}

	shapes := make(map[string][]registry.Promise, len(suite.Shapes))
	for shapeName, promises := range suite.Shapes {
		var resolved []registry.Promise
		for _, p := range promises {
			sig, err := resolveSignature(p.Signature)
			if err != nil {
				return fmt.Errorf("builtins: shape %q promise %q: %w", shapeName, p.Name, err)
			}
			resolved = append(resolved, registry.Promise{Name: p.Name, Signature: sig})
		}
		shapes[shapeName] = resolved
	}

	r.AddSuite("core", sigs, shapes)
	for name, sigList := range overloads {
		r.AddOverloads(name, sigList)
	}
	return nil
}
