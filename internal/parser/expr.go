package parser

import (
	"fmt"

	"github.com/jimd-den/onu-prog/internal/ast"
	"github.com/jimd-den/onu-prog/internal/diag"
	"github.com/jimd-den/onu-prog/internal/lexer"
)

// parseExpr is the depth-guarded entry point for expression parsing. Every
// call increments the per-parser depth counter; exceeding maxDepth raises
// the KISS VIOLATION. A derivation body parses as an independent "budget"
// by resetting and restoring this counter around its own recursion
// (parseDerivation below), encoding the project's intentional simplicity
// bound per sub-thought rather than one global ceiling for the whole file.
func (p *Parser) parseExpr() (ast.Expression, error) {
	p.depth++
	defer func() { p.depth-- }()
	if p.depth > p.maxDepth {
		return nil, diag.DepthExceeded(p.currentSpan(), p.maxDepth)
	}
	return p.parseSVOChain()
}

// parseSVOChain reads one primary and then loops, extending it into a
// BehaviorCall for every verb continuation that follows, left-associatively:
// "5 added-to 2 scales-by 3" parses as "(5 added-to 2) scales-by 3".
func (p *Parser) parseSVOChain() (ast.Expression, error) {
	current, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	for {
		next, consumed, err := p.tryVerbContinuation(current)
		if err != nil {
			return nil, err
		}
		if !consumed {
			return current, nil
		}
		current = next
	}
}

// tryVerbContinuation inspects the next token and, if it introduces a verb
// (a registered behavior name of arity >= 1, the `utilizes` bridge, or
// `acts-as`), consumes it and whatever arguments it needs, returning the
// extended expression. consumed is false when no continuation applies, in
// which case the token stream is left untouched.
func (p *Parser) tryVerbContinuation(subject ast.Expression) (ast.Expression, bool, error) {
	t, ok := p.peek()
	if !ok {
		return nil, false, nil
	}

	switch t.Kind {
	case lexer.KindActsAs:
		p.advance()
		switch k, _ := p.peekKind(); k {
		case lexer.KindArticleA, lexer.KindArticleAn, lexer.KindArticleThe:
			p.advance()
		}
		shapeName, err := p.consumeWordLike()
		if err != nil {
			return nil, false, err
		}
		return &ast.ActsAs{Subject: subject, ShapeName: shapeName}, true, nil

	case lexer.KindUtilizes:
		p.advance()
		calleeTok, err := p.consume(lexer.KindIdentifier, "a behavior name")
		if err != nil {
			return nil, false, err
		}
		call, err := p.buildCall(calleeTok, subject)
		if err != nil {
			return nil, false, err
		}
		return call, true, nil

	case lexer.KindIdentifier:
		if p.pass1 {
			return nil, false, nil
		}
		arity, registered := p.reg.GetArity(t.Text)
		if !registered || arity < 1 {
			return nil, false, nil
		}
		p.advance()
		call, err := p.buildCall(t, subject)
		if err != nil {
			return nil, false, err
		}
		return call, true, nil

	default:
		return nil, false, nil
	}
}

// buildCall forms a BehaviorCall naming calleeTok's behavior, with subject
// as the first argument and (arity-1) further primaries parsed
// left-to-right as the rest. During pass 1 (where the Registry is still
// being populated) arity is unknown, so pass 1 never calls this path —
// bodies are skipped entirely, per parseBehavior.
func (p *Parser) buildCall(calleeTok lexer.Token, subject ast.Expression) (ast.Expression, error) {
	arity, ok := p.reg.GetArity(calleeTok.Text)
	if !ok {
		suggestion := p.reg.SuggestName(calleeTok.Text)
		msg := fmt.Sprintf("'%s' is not a registered behavior", calleeTok.Text)
		if suggestion != "" {
			msg += fmt.Sprintf(" (did you mean '%s'?)", suggestion)
		}
		return nil, diag.Parse(calleeTok.Span, msg)
	}
	args := []ast.Expression{subject}
	for len(args) < arity {
		arg, err := p.parsePrimary()
		if err != nil {
			return nil, err
		}
		args = append(args, arg)
	}
	return &ast.BehaviorCall{Name: calleeTok.Text, Args: args}, nil
}

// parsePrimary parses one primary expression: a literal, identifier,
// parenthesized sub-expression, array/tuple literal, if/then/else,
// derivation, or emit. It never itself looks for a trailing verb — that is
// parseSVOChain's job — so an identifier naming an arity>=1 behavior found
// here (i.e. in primary/subject position with nothing preceding it) is the
// SVO violation: a verb used as a prefix.
func (p *Parser) parsePrimary() (ast.Expression, error) {
	t, ok := p.peek()
	if !ok {
		return nil, diag.Parse(p.currentSpan(), "expected an expression, found end of input")
	}

	switch t.Kind {
	case lexer.KindIntLiteral:
		p.advance()
		return ast.NewIntLit(t.Span, t.Int), nil
	case lexer.KindFloatLiteral:
		p.advance()
		return ast.NewFloatLit(t.Span, t.Float), nil
	case lexer.KindTextLiteral:
		p.advance()
		return ast.NewTextLit(t.Span, t.Text), nil
	case lexer.KindBoolLiteral:
		p.advance()
		return ast.NewBoolLit(t.Span, t.Bool), nil
	case lexer.KindNothing:
		p.advance()
		return ast.NewNothingLit(t.Span), nil
	case lexer.KindLParen:
		p.advance()
		inner, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if _, err := p.consume(lexer.KindRParen, "')'"); err != nil {
			return nil, err
		}
		return inner, nil
	case lexer.KindLBracket:
		return p.parseArrayLiteral()
	case lexer.KindTypeKeyword:
		if t.Text == "tuple" {
			p.advance()
			if _, err := p.consume(lexer.KindLBracket, "'['"); err != nil {
				return nil, err
			}
			var elems []ast.Expression
			for {
				k, ok := p.peekKind()
				if !ok || k == lexer.KindRBracket {
					break
				}
				e, err := p.parsePrimary()
				if err != nil {
					return nil, err
				}
				elems = append(elems, e)
			}
			if _, err := p.consume(lexer.KindRBracket, "']'"); err != nil {
				return nil, err
			}
			return &ast.TupleLit{Elems: elems}, nil
		}
		if t.Text == "matrix" {
			return p.parseMatrixLiteral(t)
		}
		return nil, diag.Parse(t.Span, fmt.Sprintf("unexpected type keyword %q in expression position", t.Text))
	case lexer.KindIf:
		return p.parseIf()
	case lexer.KindLet, lexer.KindDerivation:
		return p.parseDerivation()
	case lexer.KindEmit, lexer.KindBroadcasts:
		p.advance()
		value, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		return &ast.Emit{Value: value}, nil
	case lexer.KindIdentifier:
		p.advance()
		if !p.pass1 {
			if arity, registered := p.reg.GetArity(t.Text); registered {
				if arity == 0 {
					return &ast.BehaviorCall{Name: t.Text}, nil
				}
				return nil, diag.SVORejection(t.Span, t.Text)
			}
		}
		return ast.NewIdentifier(t.Span, t.Text), nil
	default:
		return nil, diag.Parse(t.Span, fmt.Sprintf("expected an expression, found %s", t.String()))
	}
}

func (p *Parser) parseArrayLiteral() (ast.Expression, error) {
	p.advance() // '['
	var elems []ast.Expression
	for {
		k, ok := p.peekKind()
		if !ok || k == lexer.KindRBracket {
			break
		}
		e, err := p.parsePrimary()
		if err != nil {
			return nil, err
		}
		elems = append(elems, e)
	}
	if _, err := p.consume(lexer.KindRBracket, "']'"); err != nil {
		return nil, err
	}
	return &ast.ArrayLit{Elems: elems}, nil
}

// parseMatrixLiteral reads "matrix [ rows cols ] [ data... ]": a dimension
// bracket holding exactly two integer literals, then a row-major data
// bracket holding exactly rows*cols numeric literals. Dimensions are
// compile-time constants, matching the parser's other constant-shaped
// literals (tuple arity, index position).
func (p *Parser) parseMatrixLiteral(t lexer.Token) (ast.Expression, error) {
	p.advance() // 'matrix'
	if _, err := p.consume(lexer.KindLBracket, "'['"); err != nil {
		return nil, err
	}
	rowsTok, err := p.consume(lexer.KindIntLiteral, "a row count")
	if err != nil {
		return nil, err
	}
	colsTok, err := p.consume(lexer.KindIntLiteral, "a column count")
	if err != nil {
		return nil, err
	}
	if _, err := p.consume(lexer.KindRBracket, "']'"); err != nil {
		return nil, err
	}
	rows, cols := int(rowsTok.Int), int(colsTok.Int)

	if _, err := p.consume(lexer.KindLBracket, "'['"); err != nil {
		return nil, err
	}
	var data []float64
	for {
		k, ok := p.peekKind()
		if !ok || k == lexer.KindRBracket {
			break
		}
		v, err := p.parseNumericLiteral()
		if err != nil {
			return nil, err
		}
		data = append(data, v)
	}
	dataSpan := p.currentSpan()
	if _, err := p.consume(lexer.KindRBracket, "']'"); err != nil {
		return nil, err
	}
	if want := rows * cols; len(data) != want {
		return nil, diag.Parse(dataSpan, fmt.Sprintf("matrix literal declares %d entries but %d were given", want, len(data)))
	}
	return &ast.MatrixLit{Rows: rows, Cols: cols, Data: data}, nil
}

func (p *Parser) parseNumericLiteral() (float64, error) {
	tok, ok := p.peek()
	if !ok {
		return 0, diag.Parse(p.currentSpan(), "expected a matrix entry, found end of input")
	}
	switch tok.Kind {
	case lexer.KindIntLiteral:
		p.advance()
		return float64(tok.Int), nil
	case lexer.KindFloatLiteral:
		p.advance()
		return tok.Float, nil
	default:
		return 0, diag.Parse(tok.Span, fmt.Sprintf("expected a matrix entry, found %s", tok.String()))
	}
}

func (p *Parser) parseIf() (ast.Expression, error) {
	p.advance() // if
	cond, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if _, err := p.consume(lexer.KindThen, "'then'"); err != nil {
		return nil, err
	}
	thenBranch, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if _, err := p.consume(lexer.KindElse, "'else'"); err != nil {
		return nil, err
	}
	elseBranch, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	return &ast.If{Cond: cond, Then: thenBranch, Else: elseBranch}, nil
}

// parseDerivation handles both spellings (let/derivation are equivalent to
// the parser). Its body resets the KISS depth budget: a named intermediate
// starts a fresh, independently-bounded thought, and the prior counter is
// restored on exit so sibling derivations don't share one global ceiling.
func (p *Parser) parseDerivation() (ast.Expression, error) {
	start := p.currentSpan()
	p.advance() // let / derivation
	nameTok, ok := p.peek()
	if !ok {
		return nil, diag.Parse(p.currentSpan(), "expected a derivation name, found end of input")
	}
	name, err := p.consumeWordLike()
	if err != nil {
		return nil, err
	}
	if !p.pass1 && p.reg.IsRegistered(name) {
		return nil, diag.ShadowingRejection(nameTok.Span, name)
	}
	if k, ok := p.peekKind(); ok && k == lexer.KindDerivesFrom {
		p.advance()
	} else if _, err := p.consume(lexer.KindIs, "'is' or 'derives-from'"); err != nil {
		return nil, err
	}
	value, err := p.parseExpr()
	if err != nil {
		return nil, err
	}

	savedDepth := p.depth
	p.depth = 0
	var bodyExprs []ast.Expression
	for {
		k, ok := p.peekKind()
		if !ok || isBodyBoundary(k) {
			break
		}
		e, err := p.parseExpr()
		if err != nil {
			p.depth = savedDepth
			return nil, err
		}
		bodyExprs = append(bodyExprs, e)
	}
	p.depth = savedDepth

	body := bodyOf(bodyExprs, start)
	return &ast.Derivation{Name: name, Value: value, Body: body}, nil
}

func isBodyBoundary(k lexer.Kind) bool {
	switch k {
	case lexer.KindTheModuleCalled, lexer.KindTheShape, lexer.KindTheBehaviorCalled, lexer.KindTheEffectBehaviorCalled,
		lexer.KindRParen, lexer.KindRBracket, lexer.KindThen, lexer.KindElse:
		return true
	default:
		return false
	}
}
