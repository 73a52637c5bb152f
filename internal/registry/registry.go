// Package registry implements the session-scoped semantic registry the
// parser consults while building the AST: behavior arities and signatures,
// shape promises, suite seeding, and the semantic-hash DRY ledger.
//
// The registry is deliberately NOT a process-wide singleton (unlike the
// decorator registry this package's design borrows its shape from) — each
// compile session owns one, created empty and populated additively during
// parser pass 1. Pass 2 re-records the same signatures and shapes, and the
// DRY validator later records semantic hashes and implemented flags.
package registry

import (
	"sort"
	"sync"

	"github.com/jimd-den/onu-prog/internal/onutype"
	"github.com/lithammer/fuzzysearch/fuzzy"
)

// Signature is a behavior's full type contract.
type Signature struct {
	Params []onutype.TypeInfo
	Return onutype.OnuType
}

func (s Signature) Arity() int { return len(s.Params) }

// Promise is one (behavior-name, signature) entry a shape requires its
// implementers to fulfill.
type Promise struct {
	Name      string
	Signature Signature
}

// Shape is an ordered list of promises; order is preserved for diagnostic
// stability but is not semantically significant.
type Shape struct {
	Name     string
	Promises []Promise
}

// Registry is the session's table of known names, written by the parser's
// two passes and by the DRY validator.
type Registry struct {
	mu sync.RWMutex

	behaviors   map[string]Signature
	overloads   map[string][]Signature
	implemented map[string]bool
	shapes      map[string]Shape
	suitesSeen  map[string]bool
	hashes      map[string]string // semantic hash (hex) -> first holder's name
}

// New returns an empty Registry, ready for a single compile session.
func New() *Registry {
	return &Registry{
		behaviors:   make(map[string]Signature),
		overloads:   make(map[string][]Signature),
		implemented: make(map[string]bool),
		shapes:      make(map[string]Shape),
		suitesSeen:  make(map[string]bool),
		hashes:      make(map[string]string),
	}
}

// AddSignature registers a behavior's name and signature. Idempotent: a
// second call with the same name simply overwrites the signature (parser
// pass 2 re-adds every header pass 1 added, with the same signature, and a
// user behavior named like a built-in replaces the built-in's signature).
func (r *Registry) AddSignature(name string, sig Signature) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.behaviors[name] = sig
}

// MarkImplemented flags name as having passed all validators, making its
// signature eligible to satisfy shape promises.
func (r *Registry) MarkImplemented(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.implemented[name] = true
}

// AddShape stores the ordered promise list for a shape name.
func (r *Registry) AddShape(name string, promises []Promise) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.shapes[name] = Shape{Name: name, Promises: promises}
}

// AddSuite bulk-registers a named collection of signatures and shapes. A
// second call with the same suite name is a no-op, so re-seeding the
// built-in suite across repeated Session construction in tests never
// double-registers anything.
func (r *Registry) AddSuite(name string, sigs map[string]Signature, shapes map[string][]Promise) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.suitesSeen[name] {
		return
	}
	r.suitesSeen[name] = true
	for n, sig := range sigs {
		r.behaviors[n] = sig
		r.implemented[n] = true
	}
	for n, promises := range shapes {
		r.shapes[n] = Shape{Name: n, Promises: promises}
	}
}

// AddOverloads registers the full set of argument-type overloads a built-in
// verb accepts, beyond the single primary Signature AddSuite/AddSignature
// track for arity and shape-satisfaction purposes (e.g. the I64 and F64
// forms of "added-to"). The list is exposed only through GetOverloads; no
// pipeline phase checks call sites against it. GetSignature/GetArity remain
// single-signature lookups, since every overload of a name shares the same
// arity.
func (r *Registry) AddOverloads(name string, sigs []Signature) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.overloads[name] = sigs
}

// GetOverloads returns every registered overload of name, in declaration
// order, or ok=false if name carries no overload list (e.g. a user-defined
// behavior, which has exactly one signature by construction).
func (r *Registry) GetOverloads(name string) ([]Signature, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	sigs, ok := r.overloads[name]
	return sigs, ok
}

// ConflictError reports that a semantic hash is already held by another
// behavior.
type ConflictError struct {
	Name      string
	OtherName string
}

func (e *ConflictError) Error() string {
	return "duplicate semantic hash: " + e.Name + " collides with " + e.OtherName
}

// Register inserts the semantic hash of a completed behavior, returning a
// *ConflictError naming the earlier holder if the hash is already taken.
func (r *Registry) Register(name, hash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if other, ok := r.hashes[hash]; ok && other != name {
		return &ConflictError{Name: name, OtherName: other}
	}
	r.hashes[hash] = name
	return nil
}

func (r *Registry) GetArity(name string) (int, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	sig, ok := r.behaviors[name]
	if !ok {
		return 0, false
	}
	return sig.Arity(), true
}

func (r *Registry) GetSignature(name string) (Signature, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	sig, ok := r.behaviors[name]
	return sig, ok
}

func (r *Registry) IsRegistered(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.behaviors[name]
	return ok
}

func (r *Registry) IsImplemented(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.implemented[name]
}

func (r *Registry) GetShape(name string) (Shape, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.shapes[name]
	return s, ok
}

// Satisfies reports whether subjectType structurally fulfills every
// promise of shapeName: for each promised (behavior-name, signature), a
// behavior of that name must exist, be implemented, and accept subjectType
// in its first (self) parameter position — either by exact structural
// equality or, per the eased satisfaction rule in SPEC_FULL.md §4, by both
// sides being some numeric width (so Measurable.magnitude can be satisfied
// by I64 one time and F64 another without declaring two distinct shapes).
// On failure, the name of the first unsatisfied promise is returned.
func (r *Registry) Satisfies(subjectType onutype.OnuType, shapeName string) (bool, string) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	shape, ok := r.shapes[shapeName]
	if !ok {
		return false, ""
	}
	for _, p := range shape.Promises {
		if !r.implemented[p.Name] {
			return false, p.Name
		}
		sig, ok := r.behaviors[p.Name]
		if !ok || len(sig.Params) == 0 {
			return false, p.Name
		}
		selfType := sig.Params[0].Type
		if !typeAssignable(selfType, subjectType) {
			return false, p.Name
		}
	}
	return true, ""
}

func typeAssignable(declared, actual onutype.OnuType) bool {
	if declared.Equal(actual) {
		return true
	}
	return declared.IsNumeric() && actual.IsNumeric()
}

// SuggestName returns the closest registered behavior name to a misspelled
// or unresolved identifier, for "did you mean" diagnostics. Returns "" if
// no registered name is a plausible match.
func (r *Registry) SuggestName(unresolved string) string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.behaviors))
	for n := range r.behaviors {
		names = append(names, n)
	}
	sort.Strings(names) // deterministic tie-breaking
	ranked := fuzzy.RankFindNormalizedFold(unresolved, names)
	if len(ranked) == 0 {
		return ""
	}
	sort.Sort(ranked)
	return ranked[0].Target
}
