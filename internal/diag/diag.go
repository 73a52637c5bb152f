// Package diag defines the closed diagnostic taxonomy for the onu-prog
// compiler pipeline and the "peer review memo" rendering every phase uses
// to report its first (and only) failure.
package diag

import "fmt"

// Span locates a token or diagnostic in the source text. Byte offsets are
// not tracked; line/column is sufficient for the memo format.
type Span struct {
	Line   int
	Column int
}

func (s Span) String() string {
	return fmt.Sprintf("line %d, column %d", s.Line, s.Column)
}

// Category is the closed set of diagnostic kinds a phase can raise.
type Category int

const (
	LexicalError Category = iota
	ParseError
	RuntimeError
	BehaviorConflict
	MonomorphizationError
	CodeGenError
)

func (c Category) String() string {
	switch c {
	case LexicalError:
		return "LexicalError"
	case ParseError:
		return "ParseError"
	case RuntimeError:
		return "RuntimeError"
	case BehaviorConflict:
		return "BehaviorConflict"
	case MonomorphizationError:
		return "MonomorphizationError"
	case CodeGenError:
		return "CodeGenError"
	default:
		return "UnknownError"
	}
}

// Diagnostic is the single error type the pipeline produces. It satisfies
// the standard error interface and renders as a three-section peer review
// memo: Observation states where and what was noticed, Assessment restates
// the offense in the project's domain register, Conclusion states the
// refusal. Downstream test suites grep for these headings verbatim, so the
// renderer must never reshape them.
type Diagnostic struct {
	Category    Category
	Observation string
	Assessment  string
	Conclusion  string
	Span        Span
	HasSpan     bool
	Wrapped     error
}

func (d *Diagnostic) Error() string {
	return d.Render()
}

func (d *Diagnostic) Unwrap() error {
	return d.Wrapped
}

// Render produces the peer review memo text.
func (d *Diagnostic) Render() string {
	obs := d.Observation
	if d.HasSpan {
		obs = fmt.Sprintf("at %s, %s", d.Span, obs)
	}
	return fmt.Sprintf(
		"PEER REVIEW MEMO\nObservation: %s\nAssessment: %s\nConclusion: %s",
		obs, d.Assessment, d.Conclusion,
	)
}

// New constructs a bare diagnostic. Most callers prefer one of the typed
// constructors below, which fill in the exact domain wording the test
// suites match against.
func New(cat Category, observation, assessment, conclusion string) *Diagnostic {
	return &Diagnostic{Category: cat, Observation: observation, Assessment: assessment, Conclusion: conclusion}
}

// WithSpan attaches a source position to a diagnostic under construction.
func (d *Diagnostic) WithSpan(s Span) *Diagnostic {
	d.Span = s
	d.HasSpan = true
	return d
}

// Lexical reports an unterminated string or a lone trailing hyphen.
func Lexical(span Span, observation string) *Diagnostic {
	return New(LexicalError, observation,
		"the source stream ends mid-token, which the lexer cannot silently paper over",
		"tokenization stops here; the parser will surface the gap").WithSpan(span)
}

// Parse reports a generic grammar violation.
func Parse(span Span, observation string) *Diagnostic {
	return New(ParseError, observation,
		"this does not conform to the discourse grammar",
		"the pipeline stops at the first malformed production").WithSpan(span)
}

// SVORejection reports a verb used without a subject.
func SVORejection(span Span, name string) *Diagnostic {
	return New(ParseError,
		fmt.Sprintf("the behavior '%s' appears without a preceding subject", name),
		fmt.Sprintf("a verb of arity one or more refuses to be used as a prefix; subject-verb-object order is mandatory"),
		"parsing stops; restate the expression with an explicit subject before the verb").WithSpan(span)
}

// ShadowingRejection reports a binding that collides with a registered behavior name.
func ShadowingRejection(span Span, name string) *Diagnostic {
	return New(ParseError,
		fmt.Sprintf("the name '%s' is bound here, but it already names a registered behavior", name),
		fmt.Sprintf("a binding that reuses a behavior's name violates the grammatical covenant that names mean one thing"),
		"parsing stops; choose a distinct name for the binding").WithSpan(span)
}

// DepthExceeded reports the KISS depth-bound violation.
func DepthExceeded(span Span, limit int) *Diagnostic {
	return New(ParseError,
		fmt.Sprintf("the discourse nests expressions past the permitted depth of %d", limit),
		"KISS VIOLATION: a discourse is too deep to be read as a single, simple thought",
		"parsing stops; restructure the expression with intermediate derivations").WithSpan(span)
}

// LinguisticViolation reports an article/type agreement failure.
func LinguisticViolation(span Span, article, required, typeName string) *Diagnostic {
	return New(ParseError,
		fmt.Sprintf("the parameter is introduced with '%s' before '%s'", article, typeName),
		fmt.Sprintf("LINGUISTIC VIOLATION: the discourse demands '%s' before '%s'", required, typeName),
		"parsing stops; correct the grammatical article").WithSpan(span)
}

// ConcernViolation reports a second Module declaration within a session.
func ConcernViolation(span Span, name string) *Diagnostic {
	return New(ParseError,
		fmt.Sprintf("a second module, '%s', is declared in this discourse", name),
		"Concern Error (SRP Violation): a session may declare at most one module",
		"parsing stops; split the discourse across separate sessions").WithSpan(span)
}

// TerminationViolation reports a self-call lacking a proof of decrease.
func TerminationViolation(span Span, behaviorName, diminishing string) *Diagnostic {
	return New(ParseError,
		fmt.Sprintf("the behavior '%s' calls itself", behaviorName),
		fmt.Sprintf("TERMINATION VIOLATION: Termination Error: must pass a strictly smaller argument than %s", diminishing),
		"parsing stops; derive the recursive argument via a decreased-by step or declare the waiver").WithSpan(span)
}

// TerminationMissingClause reports recursion with no diminishing clause and no waiver.
func TerminationMissingClause(span Span, behaviorName string) *Diagnostic {
	return New(ParseError,
		fmt.Sprintf("the behavior '%s' calls itself with no 'with diminishing' clause and no waiver", behaviorName),
		"TERMINATION VIOLATION: a self-call requires a proof of decrease or an explicit waiver",
		"parsing stops; add 'with diminishing: <param>' or 'no guaranteed termination'").WithSpan(span)
}

// ShapeViolation reports a missing promised behavior for a role-bound parameter.
func ShapeViolation(span Span, subjectType, shapeName, missingBehavior string) *Diagnostic {
	return New(ParseError,
		fmt.Sprintf("'%s' is bound via the role %s", subjectType, shapeName),
		fmt.Sprintf("SHAPE VIOLATION: %s does not implement the promised behavior '%s'", subjectType, missingBehavior),
		"parsing stops; implement the missing behavior or choose a different role").WithSpan(span)
}

// DRYConflict reports a semantic-hash collision between two behaviors.
func DRYConflict(span Span, name, otherName string) *Diagnostic {
	return New(BehaviorConflict,
		fmt.Sprintf("the behavior '%s' registers the same semantic hash as '%s'", name, otherName),
		fmt.Sprintf("Duplicate semantic implementation detected: '%s' already holds this implementation", otherName),
		"registration stops; consolidate the two behaviors or distinguish their signatures").WithSpan(span)
}

// NothingReturnViolation reports a "nothing"-returning behavior whose tail yields a value.
func NothingReturnViolation(span Span, behaviorName string) *Diagnostic {
	return New(ParseError,
		fmt.Sprintf("behavior '%s' declares return type 'nothing' but its body's tail yields a value", behaviorName),
		"a literal or bare identifier tail implicitly produces a value the declared return type forbids",
		"parsing stops; end the body with 'nothing', an emit, or a block ending in one of those").WithSpan(span)
}

// PurityViolation reports an emit/broadcasts node reachable from a pure
// (non-effect) behavior's body.
func PurityViolation(span Span, behaviorName string) *Diagnostic {
	return New(ParseError,
		fmt.Sprintf("the pure behavior '%s' contains an emit/broadcasts node", behaviorName),
		"a behavior not declared 'the effect behavior called' may not announce anything",
		"lowering stops; declare the behavior as an effect behavior or remove the emit").WithSpan(span)
}

// Monomorphization reports an unresolvable acts-as subject.
func Monomorphization(span Span, calleeName string) *Diagnostic {
	return New(MonomorphizationError,
		fmt.Sprintf("a call to '%s' carries an acts-as subject with no resolvable concrete type", calleeName),
		"the subject is itself shape-typed, so no concrete specialization can be emitted",
		"monomorphization stops; supply a concrete-typed subject at the call site").WithSpan(span)
}
