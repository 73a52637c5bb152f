// Package validate runs the AST validators spec.md fixes in order:
// linguistic, concern, termination, shape, DRY. The first failure aborts
// the whole session; there is no error aggregation or recovery.
package validate

import (
	"github.com/jimd-den/onu-prog/internal/ast"
	"github.com/jimd-den/onu-prog/internal/registry"
)

// RunAll validates units against reg in the fixed order, returning the
// first error encountered.
func RunAll(reg *registry.Registry, units []ast.Discourse) error {
	if err := linguistic(units); err != nil {
		return err
	}
	if err := concern(units); err != nil {
		return err
	}
	if err := termination(units); err != nil {
		return err
	}
	if err := shape(reg, units); err != nil {
		return err
	}
	if err := dry(reg, units); err != nil {
		return err
	}
	return nil
}
