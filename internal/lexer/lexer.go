package lexer

import (
	"log/slog"
	"strconv"
	"strings"

	"github.com/jimd-den/onu-prog/internal/diag"
	"github.com/jimd-den/onu-prog/internal/onutype"
)

// ASCII classification tables, in the teacher's style: cheap array lookups
// instead of per-rune branching in the hot scanning loop.
var (
	isIdentStartTable [128]bool
	isIdentPartTable  [128]bool
	isDigitTable      [128]bool
	isSpaceTable      [128]bool
)

func init() {
	for c := 'a'; c <= 'z'; c++ {
		isIdentStartTable[c] = true
		isIdentPartTable[c] = true
	}
	for c := 'A'; c <= 'Z'; c++ {
		isIdentStartTable[c] = true
		isIdentPartTable[c] = true
	}
	for c := '0'; c <= '9'; c++ {
		isIdentPartTable[c] = true
		isDigitTable[c] = true
	}
	isIdentPartTable['-'] = true
	isSpaceTable[' '] = true
	isSpaceTable['\t'] = true
	isSpaceTable['\n'] = true
	isSpaceTable['\r'] = true
}

func isIdentStart(r rune) bool { return r < 128 && isIdentStartTable[r] }
func isIdentPart(r rune) bool  { return r < 128 && isIdentPartTable[r] }
func isDigit(r rune) bool      { return r < 128 && isDigitTable[r] }
func isSpace(r rune) bool      { return r < 128 && isSpaceTable[r] }

var singleWordKeywords = map[string]Kind{
	"is":           KindIs,
	"a":            KindArticleA,
	"an":           KindArticleAn,
	"the":          KindArticleThe,
	"receiving":    KindReceiving,
	"takes":        KindTakes,
	"returning":    KindReturning,
	"delivers":     KindDelivers,
	"as":           KindAs,
	"called":       KindCalled,
	"via":          KindVia,
	"role":         KindRole,
	"promises":     KindPromises,
	"if":           KindIf,
	"then":         KindThen,
	"else":         KindElse,
	"nothing":      KindNothing,
	"emit":         KindEmit,
	"broadcasts":   KindBroadcasts,
	"let":          KindLet,
	"derivation":   KindDerivation,
	"derives-from": KindDerivesFrom,
	"utilizes":     KindUtilizes,
	"acts-as":      KindActsAs,
}

var typeKeywords = map[string]onutype.OnuType{
	"integer":            onutype.I64,
	"integer8":           onutype.I8,
	"integer16":          onutype.I16,
	"integer32":          onutype.I32,
	"integer64":          onutype.I64,
	"integer128":         onutype.I128,
	"unsigned-integer8":  onutype.U8,
	"unsigned-integer16": onutype.U16,
	"unsigned-integer32": onutype.U32,
	"unsigned-integer64": onutype.U64,
	"unsigned-integer128": onutype.U128,
	"float":              onutype.F32,
	"double":             onutype.F64,
	"boolean":            onutype.Bool,
	"text":               onutype.Text,
	"matrix":             onutype.Matrix,
	"tuple":              {Kind: onutype.KindTuple},
	"array":              {Kind: onutype.KindArray},
}

// compositeKeyword is one entry in the fixed set of multi-word keywords the
// lexer recognizes by speculative lookahead. Entries are tried longest
// first so "the effect behavior called" never loses to "the shape".
type compositeKeyword struct {
	words []string
	kind  Kind
}

var compositeKeywords = []compositeKeyword{
	{[]string{"the", "effect", "behavior", "called"}, KindTheEffectBehaviorCalled},
	{[]string{"the", "behavior", "called"}, KindTheBehaviorCalled},
	{[]string{"the", "module", "called"}, KindTheModuleCalled},
	{[]string{"the", "shape"}, KindTheShape},
	{[]string{"with", "intent"}, KindWithIntent},
	{[]string{"with", "concern"}, KindWithConcern},
	{[]string{"with", "diminishing"}, KindWithDiminishing},
	{[]string{"no", "guaranteed", "termination"}, KindNoGuaranteedTermination},
	{[]string{"keeps", "internal"}, KindKeepsInternal},
}

// checkpoint is the undoable snapshot the composite-keyword probe rewinds
// to on a failed match. No token is ever emitted for a word consumed only
// during a probe that ultimately fails.
type checkpoint struct {
	pos    int
	line   int
	column int
}

// Lexer turns onu-prog source text into a stream of span-tagged tokens.
type Lexer struct {
	src    []rune
	pos    int
	line   int
	column int
	log    *slog.Logger
}

// New constructs a Lexer over src. A nil logger disables lexer tracing.
func New(src string, log *slog.Logger) *Lexer {
	if log == nil {
		log = slog.New(slog.NewTextHandler(discardWriter{}, nil))
	}
	return &Lexer{src: []rune(src), pos: 0, line: 1, column: 1, log: log}
}

type discardWriter struct{}

func (discardWriter) Write(p []byte) (int, error) { return len(p), nil }

func (l *Lexer) checkpoint() checkpoint {
	return checkpoint{pos: l.pos, line: l.line, column: l.column}
}

func (l *Lexer) restore(c checkpoint) {
	l.pos = c.pos
	l.line = c.line
	l.column = c.column
}

func (l *Lexer) peek() (rune, bool) {
	if l.pos >= len(l.src) {
		return 0, false
	}
	return l.src[l.pos], true
}

func (l *Lexer) peekAt(offset int) (rune, bool) {
	p := l.pos + offset
	if p >= len(l.src) {
		return 0, false
	}
	return l.src[p], true
}

func (l *Lexer) advance() rune {
	r := l.src[l.pos]
	l.pos++
	if r == '\n' {
		l.line++
		l.column = 1
	} else {
		l.column++
	}
	return r
}

func (l *Lexer) span() diag.Span {
	return diag.Span{Line: l.line, Column: l.column}
}

// Next returns the next token, or ok=false when the input is exhausted.
func (l *Lexer) Next() (Token, bool) {
	for {
		l.skipSpace()
		if !l.skipCommentOrIllegal() {
			break
		}
	}
	r, ok := l.peek()
	if !ok {
		return Token{}, false
	}
	start := l.span()

	switch {
	case r == ':':
		l.advance()
		return Token{Kind: KindColon, Span: start}, true
	case r == '(':
		l.advance()
		return Token{Kind: KindLParen, Span: start}, true
	case r == ')':
		l.advance()
		return Token{Kind: KindRParen, Span: start}, true
	case r == '[':
		l.advance()
		return Token{Kind: KindLBracket, Span: start}, true
	case r == ']':
		l.advance()
		return Token{Kind: KindRBracket, Span: start}, true
	case r == '"':
		return l.lexText(start)
	case isDigit(r):
		return l.lexNumber(start)
	case isIdentStart(r):
		return l.lexWordOrComposite(start)
	default:
		l.advance()
		return Token{Kind: KindIllegal, Span: start, Text: string(r)}, true
	}
}

func (l *Lexer) skipSpace() {
	for {
		r, ok := l.peek()
		if !ok || !isSpace(r) {
			return
		}
		l.advance()
	}
}

// skipCommentOrIllegal consumes a "--"-to-end-of-line comment when present
// and reports whether it consumed anything (the caller loops to also skip
// any whitespace that follows). A lone '-' that is not immediately followed
// by a second '-' is not a token per the lexer's own grammar and is not a
// comment either; it is left in place for the caller to lex as KindIllegal,
// giving the compiler something concrete to report a ParseError against
// instead of silently truncating the token stream.
func (l *Lexer) skipCommentOrIllegal() bool {
	r, ok := l.peek()
	if !ok || r != '-' {
		return false
	}
	next, ok2 := l.peekAt(1)
	if !ok2 || next != '-' {
		return false
	}
	l.advance()
	l.advance()
	for {
		r, ok := l.peek()
		if !ok || r == '\n' {
			return true
		}
		l.advance()
	}
}

func (l *Lexer) lexText(start diag.Span) (Token, bool) {
	l.advance() // opening quote
	var sb strings.Builder
	for {
		r, ok := l.peek()
		if !ok {
			// Unterminated string: per the lexer's contract this ends the
			// token stream; the parser surfaces the resulting ParseError.
			return Token{}, false
		}
		if r == '"' {
			l.advance()
			return Token{Kind: KindTextLiteral, Span: start, Text: sb.String()}, true
		}
		sb.WriteRune(l.advance())
	}
}

func (l *Lexer) lexNumber(start diag.Span) (Token, bool) {
	var sb strings.Builder
	isFloat := false
	for {
		r, ok := l.peek()
		if !ok {
			break
		}
		if isDigit(r) {
			sb.WriteRune(l.advance())
			continue
		}
		if r == '.' && !isFloat {
			if next, ok2 := l.peekAt(1); ok2 && isDigit(next) {
				isFloat = true
				sb.WriteRune(l.advance())
				continue
			}
		}
		break
	}
	if isFloat {
		f, _ := strconv.ParseFloat(sb.String(), 64)
		return Token{Kind: KindFloatLiteral, Span: start, Float: f}, true
	}
	n, _ := strconv.ParseInt(sb.String(), 10, 64)
	return Token{Kind: KindIntLiteral, Span: start, Int: n}, true
}

// scanRawWord reads one identifier-shaped word (letters, digits, hyphens)
// starting at the current position without interpreting it. It is used
// both for ordinary identifier lexing and for the composite-keyword probe,
// where the caller decides afterwards whether the word was "real" or only
// part of a speculative, possibly-rewound read.
func (l *Lexer) scanRawWord() string {
	var sb strings.Builder
	for {
		r, ok := l.peek()
		if !ok || !isIdentPart(r) {
			break
		}
		sb.WriteRune(l.advance())
	}
	return sb.String()
}

func (l *Lexer) lexWordOrComposite(start diag.Span) (Token, bool) {
	word := l.scanRawWord()

	if tok, ok := l.tryComposite(word, start); ok {
		l.log.Debug("lexer: composite keyword", "kind", kindNames[tok.Kind])
		return tok, true
	}

	if word == "true" {
		return Token{Kind: KindBoolLiteral, Span: start, Bool: true}, true
	}
	if word == "false" {
		return Token{Kind: KindBoolLiteral, Span: start, Bool: false}, true
	}
	if kind, ok := singleWordKeywords[word]; ok {
		return Token{Kind: kind, Span: start, Text: word}, true
	}
	if typ, ok := typeKeywords[word]; ok {
		return Token{Kind: KindTypeKeyword, Span: start, Text: word, Type: typ}, true
	}
	return Token{Kind: KindIdentifier, Span: start, Text: word}, true
}

// tryComposite attempts to extend the already-consumed first word into the
// longest matching multi-word keyword. It snapshots the lexer state before
// each candidate and restores it on a mismatch, so a failed probe leaves no
// trace in the emitted token stream — only the final committed match (or
// none) is ever observed by the caller.
func (l *Lexer) tryComposite(firstWord string, start diag.Span) (Token, bool) {
	var best *compositeKeyword
	bestLen := 0
	snapshot := l.checkpoint()

	for i := range compositeKeywords {
		cand := &compositeKeywords[i]
		if cand.words[0] != firstWord {
			continue
		}
		if len(cand.words) <= bestLen {
			continue
		}
		if l.matchesRemainder(cand.words[1:]) {
			best = cand
			bestLen = len(cand.words)
		}
		l.restore(snapshot)
	}

	if best == nil {
		return Token{}, false
	}
	// Commit: replay the winning candidate's remainder for real.
	l.matchesRemainder(best.words[1:])
	return Token{Kind: best.kind, Span: start}, true
}

// matchesRemainder consumes whitespace-separated words from the current
// position and reports whether they equal, in order, the expected
// remainder. It always leaves the lexer positioned just past the last
// matched word on success; callers that only want to probe must restore
// the lexer's checkpoint themselves afterward.
func (l *Lexer) matchesRemainder(expected []string) bool {
	for _, want := range expected {
		l.skipSpace()
		r, ok := l.peek()
		if !ok || !isIdentStart(r) {
			return false
		}
		got := l.scanRawWord()
		if got != want {
			return false
		}
	}
	return true
}

// All tokenizes the full input, stopping at the first illegal token or
// end of input. Illegal tokens are included in the result so the compiler
// can surface the corresponding ParseError at the right span.
func All(src string, log *slog.Logger) []Token {
	l := New(src, log)
	var toks []Token
	for {
		tok, ok := l.Next()
		if !ok {
			return toks
		}
		toks = append(toks, tok)
		if tok.Kind == KindIllegal {
			return toks
		}
	}
}
