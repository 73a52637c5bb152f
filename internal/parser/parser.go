// Package parser implements the two-pass, arity-driven Subject-Verb-Object
// recursive descent parser: pass 1 harvests behavior/shape headers into the
// Registry without descending into bodies, pass 2 re-parses from the start
// using the now-populated Registry to drive call-argument arity.
package parser

import (
	"fmt"
	"log/slog"

	"github.com/jimd-den/onu-prog/internal/ast"
	"github.com/jimd-den/onu-prog/internal/diag"
	"github.com/jimd-den/onu-prog/internal/lexer"
	"github.com/jimd-den/onu-prog/internal/onutype"
	"github.com/jimd-den/onu-prog/internal/registry"
)

const defaultMaxDepth = 16

// Parser holds the token cursor, the shared Registry, and the recursion
// depth counter the KISS bound enforces against.
type Parser struct {
	tokens   []lexer.Token
	pos      int
	reg      *registry.Registry
	depth    int
	maxDepth int
	pass1    bool // true while harvesting headers only
	log      *slog.Logger
}

// Option configures a Parser run.
type Option func(*Parser)

// WithMaxDepth overrides the default KISS recursion bound of 16.
func WithMaxDepth(n int) Option {
	return func(p *Parser) { p.maxDepth = n }
}

// WithLogger attaches a tracing logger.
func WithLogger(l *slog.Logger) Option {
	return func(p *Parser) { p.log = l }
}

func newParser(tokens []lexer.Token, reg *registry.Registry, pass1 bool, opts ...Option) *Parser {
	p := &Parser{tokens: tokens, reg: reg, maxDepth: defaultMaxDepth, pass1: pass1, log: slog.Default()}
	for _, o := range opts {
		o(p)
	}
	return p
}

// ParseProgram runs both passes and returns the full Discourse list from
// pass 2. Pass 1 records every behavior signature and shape in the
// Registry; pass 2 records the same headers and shapes again with identical
// values, matching the session's single-threaded, non-suspending
// concurrency model.
func ParseProgram(tokens []lexer.Token, reg *registry.Registry, opts ...Option) ([]ast.Discourse, error) {
	p1 := newParser(tokens, reg, true, opts...)
	if err := p1.runPass1(); err != nil {
		return nil, err
	}
	p2 := newParser(tokens, reg, false, opts...)
	return p2.runPass2()
}

func (p *Parser) runPass1() error {
	for !p.isEOF() {
		if _, err := p.parseDiscourseUnit(); err != nil {
			return err
		}
	}
	return nil
}

func (p *Parser) runPass2() ([]ast.Discourse, error) {
	var units []ast.Discourse
	for !p.isEOF() {
		d, err := p.parseDiscourseUnit()
		if err != nil {
			return nil, err
		}
		units = append(units, d)
	}
	return units, nil
}

// --- token cursor helpers ---

func (p *Parser) isEOF() bool { return p.pos >= len(p.tokens) }

func (p *Parser) peek() (lexer.Token, bool) {
	if p.isEOF() {
		return lexer.Token{}, false
	}
	return p.tokens[p.pos], true
}

func (p *Parser) peekKind() (lexer.Kind, bool) {
	t, ok := p.peek()
	if !ok {
		return 0, false
	}
	return t.Kind, true
}

func (p *Parser) currentSpan() diag.Span {
	if t, ok := p.peek(); ok {
		return t.Span
	}
	if len(p.tokens) > 0 {
		return p.tokens[len(p.tokens)-1].Span
	}
	return diag.Span{Line: 1, Column: 1}
}

func (p *Parser) advance() lexer.Token {
	t := p.tokens[p.pos]
	p.pos++
	return t
}

func (p *Parser) consume(kind lexer.Kind, what string) (lexer.Token, error) {
	t, ok := p.peek()
	if !ok {
		return lexer.Token{}, diag.Parse(p.currentSpan(), fmt.Sprintf("expected %s, found end of input", what))
	}
	if t.Kind != kind {
		return lexer.Token{}, diag.Parse(t.Span, fmt.Sprintf("expected %s, found %s", what, t.String()))
	}
	return p.advance(), nil
}

// consumeWordLike accepts an identifier or a keyword token standing for its
// own lexeme, so free-text phrases (intent, concern) and header names can
// be built from ordinary words without every structural keyword needing a
// bespoke "also valid as a word" case at every call site.
func (p *Parser) consumeWordLike() (string, error) {
	t, ok := p.peek()
	if !ok {
		return "", diag.Parse(p.currentSpan(), "expected a word, found end of input")
	}
	switch t.Kind {
	case lexer.KindIdentifier:
		p.advance()
		return t.Text, nil
	case lexer.KindTypeKeyword:
		p.advance()
		return t.Text, nil
	case lexer.KindNothing:
		p.advance()
		return "nothing", nil
	case lexer.KindIntLiteral:
		p.advance()
		return fmt.Sprintf("%d", t.Int), nil
	default:
		return "", diag.Parse(t.Span, fmt.Sprintf("expected a word, found %s", t.String()))
	}
}

func (p *Parser) isDiscourseBoundary() bool {
	t, ok := p.peek()
	return ok && t.IsDiscourseMarker()
}

// --- top-level discourse ---

func (p *Parser) parseDiscourseUnit() (ast.Discourse, error) {
	kind, ok := p.peekKind()
	if !ok {
		return nil, diag.Parse(p.currentSpan(), "expected a discourse unit, found end of input")
	}
	switch kind {
	case lexer.KindTheModuleCalled:
		return p.parseModule()
	case lexer.KindTheShape:
		return p.parseShape()
	case lexer.KindTheBehaviorCalled, lexer.KindTheEffectBehaviorCalled:
		return p.parseBehavior()
	default:
		t, _ := p.peek()
		return nil, diag.Parse(t.Span, fmt.Sprintf("unexpected token %s at top level", t.String()))
	}
}

func (p *Parser) parseModule() (*ast.Module, error) {
	start := p.currentSpan()
	if _, err := p.consume(lexer.KindTheModuleCalled, "'the module called'"); err != nil {
		return nil, err
	}
	name, err := p.bindingName()
	if err != nil {
		return nil, err
	}
	if _, err := p.consume(lexer.KindWithConcern, "'with concern'"); err != nil {
		return nil, err
	}
	if _, err := p.consume(lexer.KindColon, "':'"); err != nil {
		return nil, err
	}
	concern := ""
	for !p.isEOF() && !p.isDiscourseBoundary() {
		w, err := p.consumeWordLike()
		if err != nil {
			return nil, err
		}
		if concern != "" {
			concern += " "
		}
		concern += w
	}
	return &ast.Module{Name: name, Concern: concern, Span: start}, nil
}

func (p *Parser) parseShape() (*ast.Shape, error) {
	start := p.currentSpan()
	if _, err := p.consume(lexer.KindTheShape, "'the shape'"); err != nil {
		return nil, err
	}
	name, err := p.bindingName()
	if err != nil {
		return nil, err
	}
	if _, err := p.consume(lexer.KindPromises, "'promises'"); err != nil {
		return nil, err
	}
	if _, err := p.consume(lexer.KindColon, "':'"); err != nil {
		return nil, err
	}
	var headers []ast.BehaviorHeader
	for {
		kind, ok := p.peekKind()
		if !ok || kind != lexer.KindTheBehaviorCalled {
			break
		}
		saved := p.pos
		h, err := p.parseBehaviorHeader(false)
		if err != nil {
			return nil, err
		}
		// A promise may close with an empty "as:"; a header whose "as:" is
		// followed by a body is the next top-level behavior, not a promise.
		if k, _ := p.peekKind(); k == lexer.KindAs {
			p.advance()
			if k2, _ := p.peekKind(); k2 == lexer.KindColon {
				p.advance()
			}
			if !p.isEOF() && !p.isDiscourseBoundary() {
				p.pos = saved
				break
			}
		}
		headers = append(headers, h)
	}
	var promises []registry.Promise
	for _, h := range headers {
		promises = append(promises, registry.Promise{Name: h.Name, Signature: headerSignature(h)})
	}
	p.reg.AddShape(name, promises)
	return &ast.Shape{Name: name, Behaviors: headers, Span: start}, nil
}

func headerSignature(h ast.BehaviorHeader) registry.Signature {
	sig := registry.Signature{Return: h.Return.Type}
	for _, prm := range h.Params {
		sig.Params = append(sig.Params, prm.Type)
	}
	return sig
}

func (p *Parser) parseBehavior() (*ast.Behavior, error) {
	start := p.currentSpan()
	header, err := p.parseBehaviorHeader(true)
	if err != nil {
		return nil, err
	}
	if _, err := p.consume(lexer.KindAs, "'as'"); err != nil {
		return nil, err
	}
	if _, err := p.consume(lexer.KindColon, "':'"); err != nil {
		return nil, err
	}

	if p.pass1 {
		p.skipToNextBoundary()
		p.reg.AddSignature(header.Name, headerSignature(header))
		return &ast.Behavior{Header: header, Span: start}, nil
	}

	var exprs []ast.Expression
	for !p.isEOF() && !p.isDiscourseBoundary() {
		e, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		exprs = append(exprs, e)
	}
	body := bodyOf(exprs, start)

	if err := checkNothingReturn(header, body); err != nil {
		return nil, err
	}

	p.reg.AddSignature(header.Name, headerSignature(header))
	return &ast.Behavior{Header: header, Body: body, Span: start}, nil
}

func bodyOf(exprs []ast.Expression, span diag.Span) ast.Expression {
	switch len(exprs) {
	case 0:
		return ast.NewNothingLit(span)
	case 1:
		return exprs[0]
	default:
		return &ast.Block{Exprs: exprs}
	}
}

// checkNothingReturn implements the return-type/value consistency rule
// (spec.md §4.3, extended per Design Notes to also reject a bare tail
// identifier, not only a bare literal).
func checkNothingReturn(header ast.BehaviorHeader, body ast.Expression) error {
	if header.Return.Type.Kind != onutype.KindNothing {
		return nil
	}
	tail := tailOf(body)
	switch tail.(type) {
	case *ast.IntLit, *ast.FloatLit, *ast.TextLit, *ast.BoolLit, *ast.Identifier:
		return diag.NothingReturnViolation(body.Span(), header.Name)
	default:
		return nil
	}
}

func tailOf(e ast.Expression) ast.Expression {
	if b, ok := e.(*ast.Block); ok && len(b.Exprs) > 0 {
		return tailOf(b.Exprs[len(b.Exprs)-1])
	}
	return e
}

func (p *Parser) skipToNextBoundary() {
	for !p.isEOF() && !p.isDiscourseBoundary() {
		p.advance()
	}
}

// bindingName consumes a name in a binding position (module/shape name) and
// rejects shadowing a Registry-known behavior name. A behavior's own header
// name is not checked here: pass 1 has already registered it.
func (p *Parser) bindingName() (string, error) {
	t, ok := p.peek()
	if !ok {
		return "", diag.Parse(p.currentSpan(), "expected a name, found end of input")
	}
	name, err := p.consumeWordLike()
	if err != nil {
		return "", err
	}
	if !p.pass1 && p.reg.IsRegistered(name) {
		return "", diag.ShadowingRejection(t.Span, name)
	}
	return name, nil
}

func (p *Parser) parseBehaviorHeader(topLevel bool) (ast.BehaviorHeader, error) {
	start := p.currentSpan()
	isEffect := false
	if kind, _ := p.peekKind(); kind == lexer.KindTheEffectBehaviorCalled {
		p.advance()
		isEffect = true
	} else {
		if _, err := p.consume(lexer.KindTheBehaviorCalled, "'the behavior called'"); err != nil {
			return ast.BehaviorHeader{}, err
		}
	}
	name, err := p.consumeWordLike()
	if err != nil {
		return ast.BehaviorHeader{}, err
	}

	header := ast.BehaviorHeader{Name: name, IsEffect: isEffect, Span: start, Return: onutype.TypeInfo{Type: onutype.Nothing, Article: onutype.ArticleNothing, DisplayName: "nothing"}}

	if kind, _ := p.peekKind(); kind == lexer.KindWithIntent {
		p.advance()
		if _, err := p.consume(lexer.KindColon, "':'"); err != nil {
			return header, err
		}
		intent := ""
		for {
			kind, ok := p.peekKind()
			if !ok {
				break
			}
			if kind == lexer.KindReceiving || kind == lexer.KindTakes || kind == lexer.KindReturning || kind == lexer.KindDelivers || kind == lexer.KindWithDiminishing || kind == lexer.KindAs {
				break
			}
			w, err := p.consumeWordLike()
			if err != nil {
				return header, err
			}
			if intent != "" {
				intent += " "
			}
			intent += w
		}
		header.Intent = intent
	}

	if kind, _ := p.peekKind(); kind == lexer.KindReceiving || kind == lexer.KindTakes {
		p.advance()
		if _, err := p.consume(lexer.KindColon, "':'"); err != nil {
			return header, err
		}
		for {
			kind, ok := p.peekKind()
			if !ok || kind == lexer.KindReturning || kind == lexer.KindDelivers || kind == lexer.KindAs || kind == lexer.KindWithDiminishing {
				break
			}
			param, err := p.parseParam()
			if err != nil {
				return header, err
			}
			header.Params = append(header.Params, param)
		}
	}

	if kind, _ := p.peekKind(); kind == lexer.KindReturning || kind == lexer.KindDelivers {
		p.advance()
		if kind2, _ := p.peekKind(); kind2 == lexer.KindColon {
			p.advance()
		}
		ti, err := p.parseTypeInfo()
		if err != nil {
			return header, err
		}
		header.Return = ti
	}

	if kind, _ := p.peekKind(); kind == lexer.KindWithDiminishing {
		p.advance()
		if _, err := p.consume(lexer.KindColon, "':'"); err != nil {
			return header, err
		}
		dim, err := p.consumeWordLike()
		if err != nil {
			return header, err
		}
		header.Diminishing = dim
	}

	if kind, _ := p.peekKind(); kind == lexer.KindNoGuaranteedTermination {
		p.advance()
		header.WaivesTermination = true
	}

	_ = topLevel
	return header, nil
}

// parseParam reads "[article] Type [called] name" where both the article
// and the "called" linking word are checked/consumed per the grammar; the
// linguistic validator re-examines the article against Type's display name.
func (p *Parser) parseParam() (ast.Param, error) {
	ti, err := p.parseTypeInfo()
	if err != nil {
		return ast.Param{}, err
	}
	if kind, _ := p.peekKind(); kind == lexer.KindCalled {
		p.advance()
	}
	t, ok := p.peek()
	if !ok {
		return ast.Param{}, diag.Parse(p.currentSpan(), "expected a parameter name, found end of input")
	}
	name, err := p.consumeWordLike()
	if err != nil {
		return ast.Param{}, err
	}
	if !p.pass1 && p.reg.IsRegistered(name) {
		return ast.Param{}, diag.ShadowingRejection(t.Span, name)
	}
	return ast.Param{Name: name, Type: ti}, nil
}

// parseTypeInfo reads an optional grammatical article, the type keyword
// (or a shape reference introduced by "via the role R"), producing a
// TypeInfo the linguistic validator will later check article agreement on.
func (p *Parser) parseTypeInfo() (onutype.TypeInfo, error) {
	article := onutype.ArticleNone
	switch k, _ := p.peekKind(); k {
	case lexer.KindArticleA:
		p.advance()
		article = onutype.ArticleA
	case lexer.KindArticleAn:
		p.advance()
		article = onutype.ArticleAn
	case lexer.KindArticleThe:
		p.advance()
		article = onutype.ArticleThe
	case lexer.KindNothing:
		p.advance()
		return onutype.TypeInfo{Type: onutype.Nothing, DisplayName: "nothing", Article: onutype.ArticleNothing}, nil
	}

	t, ok := p.peek()
	if !ok {
		return onutype.TypeInfo{}, diag.Parse(p.currentSpan(), "expected a type, found end of input")
	}
	if t.Kind != lexer.KindTypeKeyword && t.Kind != lexer.KindIdentifier {
		return onutype.TypeInfo{}, diag.Parse(t.Span, fmt.Sprintf("expected a type, found %s", t.String()))
	}
	p.advance()

	ti := onutype.TypeInfo{DisplayName: t.Text, Article: article}
	if t.Kind == lexer.KindTypeKeyword {
		ti.Type = t.Type
	} else {
		ti.Type = onutype.Shape(t.Text)
	}

	if kind, _ := p.peekKind(); kind == lexer.KindVia {
		p.advance()
		if k, _ := p.peekKind(); k == lexer.KindArticleThe {
			p.advance()
		}
		if _, err := p.consume(lexer.KindRole, "'role'"); err != nil {
			return ti, err
		}
		roleName, err := p.consumeWordLike()
		if err != nil {
			return ti, err
		}
		ti.RoleShape = roleName
	}
	return ti, nil
}
