package validate

import (
	"github.com/jimd-den/onu-prog/internal/ast"
	"github.com/jimd-den/onu-prog/internal/diag"
)

// termination scans each behavior's body for self-calls. A self-call is
// accepted if the behavior carries the "no guaranteed termination" waiver,
// or if the header names a "diminishing" parameter and the argument in the
// recursive call's first position is, transitively through a chain of
// derivation bindings, defined as "<diminishing> decreased-by <k>" for a
// positive integer literal k.
func termination(units []ast.Discourse) error {
	for _, u := range units {
		b, ok := u.(*ast.Behavior)
		if !ok || b.Body == nil {
			continue
		}
		if err := checkBehaviorTermination(b); err != nil {
			return err
		}
	}
	return nil
}

func checkBehaviorTermination(b *ast.Behavior) error {
	bindings := map[string]ast.Expression{}
	return walkForSelfCalls(b.Body, b.Header, bindings)
}

func walkForSelfCalls(e ast.Expression, header ast.BehaviorHeader, bindings map[string]ast.Expression) error {
	switch v := e.(type) {
	case *ast.BehaviorCall:
		if v.Name == header.Name {
			if err := checkSelfCall(v, header, bindings); err != nil {
				return err
			}
		}
		for _, arg := range v.Args {
			if err := walkForSelfCalls(arg, header, bindings); err != nil {
				return err
			}
		}
	case *ast.Derivation:
		if err := walkForSelfCalls(v.Value, header, bindings); err != nil {
			return err
		}
		inner := cloneBindings(bindings)
		inner[v.Name] = v.Value
		if err := walkForSelfCalls(v.Body, header, inner); err != nil {
			return err
		}
	case *ast.If:
		if err := walkForSelfCalls(v.Cond, header, bindings); err != nil {
			return err
		}
		if err := walkForSelfCalls(v.Then, header, bindings); err != nil {
			return err
		}
		if err := walkForSelfCalls(v.Else, header, bindings); err != nil {
			return err
		}
	case *ast.Block:
		for _, sub := range v.Exprs {
			if err := walkForSelfCalls(sub, header, bindings); err != nil {
				return err
			}
		}
	case *ast.Emit:
		return walkForSelfCalls(v.Value, header, bindings)
	case *ast.ActsAs:
		return walkForSelfCalls(v.Subject, header, bindings)
	case *ast.Index:
		return walkForSelfCalls(v.Subject, header, bindings)
	}
	return nil
}

func cloneBindings(b map[string]ast.Expression) map[string]ast.Expression {
	out := make(map[string]ast.Expression, len(b)+1)
	for k, v := range b {
		out[k] = v
	}
	return out
}

func checkSelfCall(call *ast.BehaviorCall, header ast.BehaviorHeader, bindings map[string]ast.Expression) error {
	if header.WaivesTermination {
		return nil
	}
	if header.Diminishing == "" {
		return diag.TerminationMissingClause(call.Span(), header.Name)
	}
	if len(call.Args) == 0 {
		return diag.TerminationViolation(call.Span(), header.Name, header.Diminishing)
	}
	ident, ok := call.Args[0].(*ast.Identifier)
	if !ok || !isDecreasingChain(ident.Name, header.Diminishing, bindings, map[string]bool{}) {
		return diag.TerminationViolation(call.Span(), header.Name, header.Diminishing)
	}
	return nil
}

// isDecreasingChain follows derivation bindings transitively: varName is
// accepted only if it is bound to "<diminishing> decreased-by <positive
// literal>" directly, or to "<other> decreased-by <positive literal>"
// where other itself chains back to diminishing. Passing the diminishing
// parameter itself straight through, unbound, proves nothing and must be
// rejected (Invariant I6).
func isDecreasingChain(varName, diminishing string, bindings map[string]ast.Expression, seen map[string]bool) bool {
	if seen[varName] {
		return false
	}
	seen[varName] = true
	value, ok := bindings[varName]
	if !ok {
		return false
	}
	call, ok := value.(*ast.BehaviorCall)
	if !ok || call.Name != "decreased-by" || len(call.Args) != 2 {
		return false
	}
	lit, ok := call.Args[1].(*ast.IntLit)
	if !ok || lit.Value <= 0 {
		return false
	}
	base, ok := call.Args[0].(*ast.Identifier)
	if !ok {
		return false
	}
	if base.Name == diminishing {
		return true
	}
	return isDecreasingChain(base.Name, diminishing, bindings, seen)
}
