package validate

import (
	"github.com/jimd-den/onu-prog/internal/ast"
	"github.com/jimd-den/onu-prog/internal/diag"
	"github.com/jimd-den/onu-prog/internal/registry"
)

// shape checks every "via the role R" parameter against the Registry:
// every behavior R promises must exist, be implemented, and accept the
// parameter's concrete type in its self position.
func shape(reg *registry.Registry, units []ast.Discourse) error {
	for _, u := range units {
		b, ok := u.(*ast.Behavior)
		if !ok {
			continue
		}
		for _, p := range b.Header.Params {
			if p.Type.RoleShape == "" {
				continue
			}
			ok, missing := reg.Satisfies(p.Type.Type, p.Type.RoleShape)
			if !ok {
				return diag.ShapeViolation(b.Header.Span, p.Type.DisplayName, p.Type.RoleShape, missing)
			}
		}
	}
	return nil
}
