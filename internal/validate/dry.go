package validate

import (
	"github.com/jimd-den/onu-prog/internal/ast"
	"github.com/jimd-den/onu-prog/internal/diag"
	"github.com/jimd-den/onu-prog/internal/registry"
	"github.com/jimd-den/onu-prog/internal/semhash"
)

// dry computes each behavior's semantic hash and registers it, failing on
// the first collision. A behavior that registers successfully is marked
// implemented, making it eligible to satisfy shape promises.
func dry(reg *registry.Registry, units []ast.Discourse) error {
	for _, u := range units {
		b, ok := u.(*ast.Behavior)
		if !ok || b.Body == nil {
			continue
		}
		hash, err := semhash.Of(b.Header, b.Body)
		if err != nil {
			return err
		}
		if rErr := reg.Register(b.Header.Name, hash); rErr != nil {
			if conflict, ok := rErr.(*registry.ConflictError); ok {
				return diag.DRYConflict(b.Span, conflict.Name, conflict.OtherName)
			}
			return rErr
		}
		reg.MarkImplemented(b.Header.Name)
	}
	return nil
}
