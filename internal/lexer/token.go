package lexer

import (
	"fmt"

	"github.com/jimd-den/onu-prog/internal/diag"
	"github.com/jimd-den/onu-prog/internal/onutype"
)

// Kind is the closed tagged union of token categories the lexer produces.
type Kind int

const (
	// Primitives
	KindColon Kind = iota
	KindLParen
	KindRParen
	KindLBracket
	KindRBracket
	KindIs
	KindArticleA
	KindArticleAn
	KindArticleThe

	// Literals
	KindIntLiteral
	KindFloatLiteral
	KindTextLiteral
	KindBoolLiteral

	// Composite keywords (multi-word, recognized by speculative lookahead)
	KindTheModuleCalled
	KindTheShape
	KindTheBehaviorCalled
	KindTheEffectBehaviorCalled
	KindWithIntent
	KindWithConcern
	KindWithDiminishing
	KindNoGuaranteedTermination
	KindKeepsInternal

	// Structural keywords
	KindReceiving
	KindTakes
	KindReturning
	KindDelivers
	KindAs
	KindCalled
	KindVia
	KindRole
	KindPromises
	KindIf
	KindThen
	KindElse
	KindNothing
	KindEmit
	KindBroadcasts
	KindLet
	KindDerivation
	KindDerivesFrom

	// Fixed-meaning bridge verbs
	KindUtilizes
	KindActsAs

	// Type keywords
	KindTypeKeyword

	// Identifier (also carries verb names: matches, exceeds, scales-by, ...)
	KindIdentifier

	// Illegal marks a character the lexer does not recognize, such as a lone
	// hyphen that cannot start a comment and cannot be completed into an
	// identifier; see the lexer's comment on skipCommentOrIllegal.
	KindIllegal
)

// Token is a single span-tagged lexical unit.
type Token struct {
	Kind  Kind
	Span  diag.Span
	Text  string // original lexeme, for identifiers and type keywords
	Int   int64
	Float float64
	Bool  bool
	Type  onutype.OnuType // resolved for KindTypeKeyword
}

func (t Token) String() string {
	switch t.Kind {
	case KindIdentifier:
		return fmt.Sprintf("Identifier(%s)", t.Text)
	case KindIntLiteral:
		return fmt.Sprintf("IntLiteral(%d)", t.Int)
	case KindFloatLiteral:
		return fmt.Sprintf("FloatLiteral(%g)", t.Float)
	case KindTextLiteral:
		return fmt.Sprintf("TextLiteral(%q)", t.Text)
	case KindBoolLiteral:
		return fmt.Sprintf("BoolLiteral(%v)", t.Bool)
	case KindTypeKeyword:
		return fmt.Sprintf("TypeKeyword(%s)", t.Text)
	default:
		return kindNames[t.Kind]
	}
}

var kindNames = map[Kind]string{
	KindColon:                   "Colon",
	KindLParen:                  "LParen",
	KindRParen:                  "RParen",
	KindLBracket:                "LBracket",
	KindRBracket:                "RBracket",
	KindIs:                      "Is",
	KindArticleA:                "A",
	KindArticleAn:               "An",
	KindArticleThe:              "The",
	KindIllegal:                 "Illegal",
	KindTheModuleCalled:         "TheModuleCalled",
	KindTheShape:                "TheShape",
	KindTheBehaviorCalled:       "TheBehaviorCalled",
	KindTheEffectBehaviorCalled: "TheEffectBehaviorCalled",
	KindWithIntent:              "WithIntent",
	KindWithConcern:             "WithConcern",
	KindWithDiminishing:         "WithDiminishing",
	KindNoGuaranteedTermination: "NoGuaranteedTermination",
	KindKeepsInternal:           "KeepsInternal",
	KindReceiving:               "Receiving",
	KindTakes:                   "Takes",
	KindReturning:               "Returning",
	KindDelivers:                "Delivers",
	KindAs:                      "As",
	KindCalled:                  "Called",
	KindVia:                     "Via",
	KindRole:                    "Role",
	KindPromises:                "Promises",
	KindIf:                      "If",
	KindThen:                    "Then",
	KindElse:                    "Else",
	KindNothing:                 "Nothing",
	KindEmit:                    "Emit",
	KindBroadcasts:              "Broadcasts",
	KindLet:                     "Let",
	KindDerivation:              "Derivation",
	KindDerivesFrom:             "DerivesFrom",
	KindUtilizes:                "Utilizes",
	KindActsAs:                  "ActsAs",
}

// IsDiscourseMarker reports whether this token begins a new top-level
// discourse unit: module, shape, behavior, or effect behavior.
func (t Token) IsDiscourseMarker() bool {
	switch t.Kind {
	case KindTheModuleCalled, KindTheShape, KindTheBehaviorCalled, KindTheEffectBehaviorCalled:
		return true
	default:
		return false
	}
}
