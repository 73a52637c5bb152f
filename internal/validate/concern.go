package validate

import (
	"github.com/jimd-den/onu-prog/internal/ast"
	"github.com/jimd-den/onu-prog/internal/diag"
)

// concern enforces that a session declares at most one Module. Behavior
// intent phrases are not checked against the module's concern phrase for
// textual overlap.
func concern(units []ast.Discourse) error {
	seen := false
	for _, u := range units {
		m, ok := u.(*ast.Module)
		if !ok {
			continue
		}
		if seen {
			return diag.ConcernViolation(m.Span, m.Name)
		}
		seen = true
	}
	return nil
}
