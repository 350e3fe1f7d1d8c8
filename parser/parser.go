// Package parser builds the expression tree (package ast) from a token
// stream produced by the lexer. The grammar is expression-oriented: every
// construct, including blocks, if/else, loops and match, is an expression
// that yields a value.
package parser

import (
	"fmt"
	"strings"

	"evalscript/ast"
	"evalscript/token"
)

// SyntaxError is a user-facing parse error, spanned in the source text.
type SyntaxError struct {
	Message string
	Start   int
	End     int
	Line    int32
	Column  int
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("💥 SyntaxError: %s", e.Message)
}

type Parser struct {
	tokens []token.Token
	pos    int
}

func New(tokens []token.Token) *Parser {
	return &Parser{tokens: tokens}
}

// Parse parses a whole program: a semicolon-separated sequence of top-level
// expressions, returned as a single ast.Sequence.
func Parse(tokens []token.Token) (ast.Expr, error) {
	p := New(tokens)
	exprs, err := p.exprList(token.EOF)
	if err != nil {
		return nil, err
	}
	if !p.check(token.EOF) {
		return nil, p.errAt(p.cur(), "unexpected trailing input %q", p.cur().Lexeme)
	}
	if len(exprs) == 1 {
		return exprs[0], nil
	}
	sp := ast.Span{Start: 0, End: p.cur().End}
	return ast.Sequence{Node: ast.N(sp), Exprs: exprs}, nil
}

func (p *Parser) cur() token.Token  { return p.tokens[p.pos] }
func (p *Parser) prev() token.Token { return p.tokens[p.pos-1] }

func (p *Parser) check(tt token.TokenType) bool { return p.cur().Type == tt }

func (p *Parser) advance() token.Token {
	t := p.cur()
	if t.Type != token.EOF {
		p.pos++
	}
	return t
}

func (p *Parser) match(types ...token.TokenType) bool {
	for _, tt := range types {
		if p.check(tt) {
			p.advance()
			return true
		}
	}
	return false
}

func (p *Parser) expect(tt token.TokenType, what string) (token.Token, error) {
	if p.check(tt) {
		return p.advance(), nil
	}
	return token.Token{}, p.errAt(p.cur(), "expected %s, found %q", what, p.cur().Lexeme)
}

func (p *Parser) errAt(t token.Token, format string, args ...any) error {
	return &SyntaxError{
		Message: fmt.Sprintf(format, args...),
		Start:   t.Start, End: t.End, Line: t.Line, Column: t.Column,
	}
}

func span(start token.Token, end token.Token) ast.Span {
	return ast.Span{Start: start.Start, End: end.End}
}

// exprList parses a ';'-separated list of expressions until `end` is seen, a
// trailing ';' is permitted.
func (p *Parser) exprList(end token.TokenType) ([]ast.Expr, error) {
	var exprs []ast.Expr
	for !p.check(end) && !p.check(token.EOF) {
		e, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		exprs = append(exprs, e)
		if !p.match(token.SEMI) {
			break
		}
	}
	return exprs, nil
}

// parseExpr parses a full expression, including the trailing postfix `if`
// modifier (`expr if cond`, meaning "expr when cond is truthy, else null")
// supplemented from the original source's idiom of guard clauses (e.g.
// `continue if i % 2 == 1`).
func (p *Parser) parseExpr() (ast.Expr, error) {
	e, err := p.parseAssignment()
	if err != nil {
		return nil, err
	}
	if p.check(token.IF) {
		p.advance()
		cond, err := p.parseAssignment()
		if err != nil {
			return nil, err
		}
		return ast.If{Node: ast.N(ast.Span{Start: e.Span().Start, End: cond.Span().End}), Cond: cond, Then: e}, nil
	}
	return e, nil
}

func (p *Parser) parseAssignment() (ast.Expr, error) {
	left, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if p.check(token.ASSIGN) {
		eq := p.advance()
		pat, err := exprToPattern(left)
		if err != nil {
			return nil, p.errAt(eq, "%s", err.Error())
		}
		value, err := p.parseAssignment()
		if err != nil {
			return nil, err
		}
		return ast.Assign{
			Node:   ast.N(ast.Span{Start: left.Span().Start, End: value.Span().End}),
			Target: pat,
			Value:  value,
		}, nil
	}
	return left, nil
}

func (p *Parser) parseOr() (ast.Expr, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.check(token.OR) {
		op := p.advance()
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = mkBinary(left, "or", right, op)
	}
	return left, nil
}

func (p *Parser) parseAnd() (ast.Expr, error) {
	left, err := p.parseNot()
	if err != nil {
		return nil, err
	}
	for p.check(token.AND) {
		op := p.advance()
		right, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		left = mkBinary(left, "and", right, op)
	}
	return left, nil
}

func (p *Parser) parseNot() (ast.Expr, error) {
	if p.check(token.NOT) {
		op := p.advance()
		operand, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		return ast.Unary{Node: ast.N(ast.Span{Start: op.Start, End: operand.Span().End}), Op: "not", Operand: operand}, nil
	}
	return p.parseComparison()
}

func (p *Parser) parseComparison() (ast.Expr, error) {
	left, err := p.parseIn()
	if err != nil {
		return nil, err
	}
	for {
		var opStr string
		switch p.cur().Type {
		case token.EQ_EQ:
			opStr = "=="
		case token.BANG_EQ:
			opStr = "!="
		case token.LT:
			opStr = "<"
		case token.LT_EQ:
			opStr = "<="
		case token.GT:
			opStr = ">"
		case token.GT_EQ:
			opStr = ">="
		default:
			return left, nil
		}
		op := p.advance()
		right, err := p.parseIn()
		if err != nil {
			return nil, err
		}
		left = mkBinary(left, opStr, right, op)
	}
}

func (p *Parser) parseIn() (ast.Expr, error) {
	left, err := p.parseRange()
	if err != nil {
		return nil, err
	}
	for p.check(token.IN) {
		op := p.advance()
		right, err := p.parseRange()
		if err != nil {
			return nil, err
		}
		left = mkBinary(left, "in", right, op)
	}
	return left, nil
}

// parseRange handles `a..b`, the open-start form `..b`, and the open-end
// form `a..`: either operand may be absent, per spec.md §3's "optional
// start, optional end, signed direction".
func (p *Parser) parseRange() (ast.Expr, error) {
	if p.check(token.DOTDOT) {
		op := p.advance()
		if !p.exprStarts() {
			return nil, p.errAt(p.cur(), "range is missing both a start and an end")
		}
		end, err := p.parseAdd()
		if err != nil {
			return nil, err
		}
		return ast.Range{Node: ast.N(ast.Span{Start: op.Start, End: end.Span().End}), Start: nil, End: end}, nil
	}
	left, err := p.parseAdd()
	if err != nil {
		return nil, err
	}
	if p.check(token.DOTDOT) {
		op := p.advance()
		if !p.exprStarts() {
			return ast.Range{Node: ast.N(ast.Span{Start: left.Span().Start, End: op.End}), Start: left, End: nil}, nil
		}
		end, err := p.parseAdd()
		if err != nil {
			return nil, err
		}
		return ast.Range{Node: ast.N(ast.Span{Start: left.Span().Start, End: end.Span().End}), Start: left, End: end}, nil
	}
	return left, nil
}

func (p *Parser) parseAdd() (ast.Expr, error) {
	left, err := p.parseMul()
	if err != nil {
		return nil, err
	}
	for p.check(token.PLUS) || p.check(token.MINUS) {
		op := p.advance()
		right, err := p.parseMul()
		if err != nil {
			return nil, err
		}
		left = mkBinary(left, op.Lexeme, right, op)
	}
	return left, nil
}

func (p *Parser) parseMul() (ast.Expr, error) {
	left, err := p.parsePow()
	if err != nil {
		return nil, err
	}
	for p.check(token.STAR) || p.check(token.SLASH) || p.check(token.SLASHSLASH) || p.check(token.PERCENT) || p.check(token.AMP) {
		op := p.advance()
		right, err := p.parsePow()
		if err != nil {
			return nil, err
		}
		left = mkBinary(left, op.Lexeme, right, op)
	}
	return left, nil
}

func (p *Parser) parsePow() (ast.Expr, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	if p.check(token.CARET) {
		op := p.advance()
		right, err := p.parsePow()
		if err != nil {
			return nil, err
		}
		left = mkBinary(left, "^", right, op)
	}
	return left, nil
}

func (p *Parser) parseUnary() (ast.Expr, error) {
	if p.check(token.MINUS) || p.check(token.BANG) {
		op := p.advance()
		operand, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return ast.Unary{Node: ast.N(ast.Span{Start: op.Start, End: operand.Span().End}), Op: op.Lexeme, Operand: operand}, nil
	}
	return p.parsePostfix()
}

func (p *Parser) parsePostfix() (ast.Expr, error) {
	e, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	for {
		switch {
		case p.check(token.LPAREN):
			p.advance()
			args, err := p.parseArgs(token.RPAREN)
			if err != nil {
				return nil, err
			}
			closeT, err := p.expect(token.RPAREN, "')'")
			if err != nil {
				return nil, err
			}
			e = ast.Call{Node: ast.N(ast.Span{Start: e.Span().Start, End: closeT.End}), Callee: e, Args: args}
		case p.check(token.LBRACKET):
			p.advance()
			idx, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			closeT, err := p.expect(token.RBRACKET, "']'")
			if err != nil {
				return nil, err
			}
			e = ast.Index{Node: ast.N(ast.Span{Start: e.Span().Start, End: closeT.End}), Target: e, Index: idx}
		case p.check(token.DOT):
			p.advance()
			nameTok, err := p.expect(token.IDENTIFIER, "method name")
			if err != nil {
				return nil, err
			}
			if _, err := p.expect(token.LPAREN, "'('"); err != nil {
				return nil, err
			}
			args, err := p.parseArgs(token.RPAREN)
			if err != nil {
				return nil, err
			}
			closeT, err := p.expect(token.RPAREN, "')'")
			if err != nil {
				return nil, err
			}
			e = ast.MethodCall{Node: ast.N(ast.Span{Start: e.Span().Start, End: closeT.End}), Receiver: e, Name: nameTok.Lexeme, Args: args}
		default:
			return e, nil
		}
	}
}

func (p *Parser) parseArgs(end token.TokenType) ([]ast.Expr, error) {
	var args []ast.Expr
	if p.check(end) {
		return args, nil
	}
	for {
		a, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		args = append(args, a)
		if !p.match(token.COMMA) {
			break
		}
		if p.check(end) {
			break
		}
	}
	return args, nil
}

func (p *Parser) parsePrimary() (ast.Expr, error) {
	t := p.cur()
	switch t.Type {
	case token.NULL:
		p.advance()
		return ast.NullLit{Node: ast.N(spanOf(t))}, nil
	case token.TRUE:
		p.advance()
		return ast.BoolLit{Node: ast.N(spanOf(t)), Value: true}, nil
	case token.FALSE:
		p.advance()
		return ast.BoolLit{Node: ast.N(spanOf(t)), Value: false}, nil
	case token.INT:
		p.advance()
		return ast.IntLit{Node: ast.N(spanOf(t)), Value: t.Literal.(int64)}, nil
	case token.FLOAT:
		p.advance()
		return ast.FloatLit{Node: ast.N(spanOf(t)), Value: t.Literal.(float64)}, nil
	case token.STRING:
		p.advance()
		return ast.StringLit{Node: ast.N(spanOf(t)), Value: t.Literal.(string)}, nil
	case token.IDENTIFIER:
		if t.Lexeme == "re" && p.tokens[p.pos+1].Type == token.STRING {
			return p.parseRegex()
		}
		p.advance()
		return ast.Ident{Node: ast.N(spanOf(t)), Name: t.Lexeme}, nil
	case token.LPAREN:
		return p.parseParenOrTuple()
	case token.LBRACKET:
		return p.parseListOrComprehension()
	case token.LBRACE:
		return p.parseBrace()
	case token.IF:
		return p.parseIf()
	case token.WHILE:
		return p.parseWhile()
	case token.FOR:
		return p.parseFor()
	case token.BREAK:
		p.advance()
		if p.exprStarts() {
			v, err := p.parseAssignment()
			if err != nil {
				return nil, err
			}
			return ast.Break{Node: ast.N(ast.Span{Start: t.Start, End: v.Span().End}), Value: v}, nil
		}
		return ast.Break{Node: ast.N(spanOf(t))}, nil
	case token.CONTINUE:
		p.advance()
		return ast.Continue{Node: ast.N(spanOf(t))}, nil
	case token.RETURN:
		p.advance()
		if p.exprStarts() {
			v, err := p.parseAssignment()
			if err != nil {
				return nil, err
			}
			return ast.Return{Node: ast.N(ast.Span{Start: t.Start, End: v.Span().End}), Value: v}, nil
		}
		return ast.Return{Node: ast.N(spanOf(t))}, nil
	case token.MATCH:
		return p.parseMatch()
	case token.FN:
		return p.parseFn(false)
	case token.MEMOIZED:
		p.advance()
		if _, err := p.expect(token.FN, "'fn'"); err != nil {
			return nil, err
		}
		return p.parseFnAfterKeyword(t, true)
	}
	return nil, p.errAt(t, "unexpected token %q", t.Lexeme)
}

func spanOf(t token.Token) ast.Span { return ast.Span{Start: t.Start, End: t.End} }

func (p *Parser) exprStarts() bool {
	switch p.cur().Type {
	case token.SEMI, token.RBRACE, token.RPAREN, token.RBRACKET, token.COMMA, token.EOF, token.ELSE, token.IF:
		return false
	default:
		return true
	}
}

func (p *Parser) parseRegex() (ast.Expr, error) {
	start := p.advance() // "re"
	strTok := p.advance() // string literal
	flags := ""
	endTok := strTok
	if p.check(token.IDENTIFIER) && allFlagChars(p.cur().Lexeme) {
		flagTok := p.advance()
		flags = flagTok.Lexeme
		endTok = flagTok
	}
	return ast.RegexLit{
		Node: ast.N(ast.Span{Start: start.Start, End: endTok.End}),
		Pattern: strTok.Literal.(string),
		Flags:   flags,
	}, nil
}

func allFlagChars(s string) bool {
	for _, c := range s {
		if c != 'i' && c != 'n' {
			return false
		}
	}
	return len(s) > 0
}

func (p *Parser) parseParenOrTuple() (ast.Expr, error) {
	open := p.advance() // (
	if p.check(token.RPAREN) {
		closeT := p.advance()
		return ast.TupleLit{Node: ast.N(span(open, closeT))}, nil
	}
	first, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if p.check(token.COMMA) {
		elems := []ast.Expr{first}
		for p.match(token.COMMA) {
			if p.check(token.RPAREN) {
				break
			}
			e, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			elems = append(elems, e)
		}
		closeT, err := p.expect(token.RPAREN, "')'")
		if err != nil {
			return nil, err
		}
		return ast.TupleLit{Node: ast.N(span(open, closeT)), Elems: elems}, nil
	}
	closeT, err := p.expect(token.RPAREN, "')'")
	if err != nil {
		return nil, err
	}
	_ = closeT
	return first, nil
}

func (p *Parser) parseListOrComprehension() (ast.Expr, error) {
	open := p.advance() // [
	if p.check(token.RBRACKET) {
		closeT := p.advance()
		return ast.ListLit{Node: ast.N(span(open, closeT))}, nil
	}
	first, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if p.check(token.FOR) {
		p.advance()
		pat, err := p.parsePattern()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(token.IN, "'in'"); err != nil {
			return nil, err
		}
		iterable, err := p.parseAssignment()
		if err != nil {
			return nil, err
		}
		var filter ast.Expr
		if p.check(token.IF) {
			p.advance()
			filter, err = p.parseExpr()
			if err != nil {
				return nil, err
			}
		}
		closeT, err := p.expect(token.RBRACKET, "']'")
		if err != nil {
			return nil, err
		}
		return ast.ListComp{Node: ast.N(span(open, closeT)), Body: first, Pattern: pat, Iterable: iterable, Filter: filter}, nil
	}
	elems := []ast.Expr{first}
	for p.match(token.COMMA) {
		if p.check(token.RBRACKET) {
			break
		}
		e, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		elems = append(elems, e)
	}
	closeT, err := p.expect(token.RBRACKET, "']'")
	if err != nil {
		return nil, err
	}
	return ast.ListLit{Node: ast.N(span(open, closeT)), Elems: elems}, nil
}

// parseBrace disambiguates block `{ e; e }`, map `{ k:v, k:v }`, and set
// `{ e, e }` by looking at the separator following the first element.
func (p *Parser) parseBrace() (ast.Expr, error) {
	open := p.advance() // {
	if p.check(token.RBRACE) {
		closeT := p.advance()
		return ast.Block{Node: ast.N(span(open, closeT))}, nil
	}
	first, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	switch {
	case p.check(token.COLON):
		p.advance()
		firstVal, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		keys := []ast.Expr{first}
		values := []ast.Expr{firstVal}
		for p.match(token.COMMA) {
			if p.check(token.RBRACE) {
				break
			}
			k, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			if _, err := p.expect(token.COLON, "':'"); err != nil {
				return nil, err
			}
			v, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			keys = append(keys, k)
			values = append(values, v)
		}
		closeT, err := p.expect(token.RBRACE, "'}'")
		if err != nil {
			return nil, err
		}
		return ast.MapLit{Node: ast.N(span(open, closeT)), Keys: keys, Values: values}, nil
	case p.check(token.COMMA):
		elems := []ast.Expr{first}
		for p.match(token.COMMA) {
			if p.check(token.RBRACE) {
				break
			}
			e, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			elems = append(elems, e)
		}
		closeT, err := p.expect(token.RBRACE, "'}'")
		if err != nil {
			return nil, err
		}
		return ast.SetLit{Node: ast.N(span(open, closeT)), Elems: elems}, nil
	default:
		exprs := []ast.Expr{first}
		for p.match(token.SEMI) {
			if p.check(token.RBRACE) {
				break
			}
			e, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			exprs = append(exprs, e)
		}
		closeT, err := p.expect(token.RBRACE, "'}'")
		if err != nil {
			return nil, err
		}
		var inner ast.Expr
		if len(exprs) == 1 {
			inner = exprs[0]
		} else {
			inner = ast.Sequence{Node: ast.N(span(open, closeT)), Exprs: exprs}
		}
		return ast.Block{Node: ast.N(span(open, closeT)), Inner: inner}, nil
	}
}

func (p *Parser) parseIf() (ast.Expr, error) {
	start := p.advance() // if
	cond, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	then, err := p.parseBrace()
	if err != nil {
		return nil, err
	}
	var elseExpr ast.Expr
	endSpan := then.Span()
	if p.check(token.ELSE) {
		p.advance()
		if p.check(token.IF) {
			elseExpr, err = p.parseIf()
		} else {
			elseExpr, err = p.parseBrace()
		}
		if err != nil {
			return nil, err
		}
		endSpan = elseExpr.Span()
	}
	return ast.If{Node: ast.N(ast.Span{Start: start.Start, End: endSpan.End}), Cond: cond, Then: then, Else: elseExpr}, nil
}

func (p *Parser) parseWhile() (ast.Expr, error) {
	start := p.advance() // while
	cond, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	body, err := p.parseBrace()
	if err != nil {
		return nil, err
	}
	return ast.While{Node: ast.N(ast.Span{Start: start.Start, End: body.Span().End}), Cond: cond, Body: body}, nil
}

func (p *Parser) parseFor() (ast.Expr, error) {
	start := p.advance() // for
	pat, err := p.parsePattern()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(token.IN, "'in'"); err != nil {
		return nil, err
	}
	iterable, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	body, err := p.parseBrace()
	if err != nil {
		return nil, err
	}
	return ast.For{Node: ast.N(ast.Span{Start: start.Start, End: body.Span().End}), Pattern: pat, Iterable: iterable, Body: body}, nil
}

func (p *Parser) parseMatch() (ast.Expr, error) {
	start := p.advance() // match
	value, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(token.LBRACE, "'{'"); err != nil {
		return nil, err
	}
	var arms []ast.MatchArm
	for !p.check(token.RBRACE) {
		pat, err := p.parseMatchPattern()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(token.ARROW, "'=>'"); err != nil {
			return nil, err
		}
		body, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		arms = append(arms, ast.MatchArm{Pattern: pat, Body: body})
		if !p.match(token.COMMA) {
			break
		}
	}
	closeT, err := p.expect(token.RBRACE, "'}'")
	if err != nil {
		return nil, err
	}
	return ast.Match{Node: ast.N(ast.Span{Start: start.Start, End: closeT.End}), Value: value, Arms: arms}, nil
}

func (p *Parser) parseMatchPattern() (ast.Pattern, error) {
	if p.check(token.IDENTIFIER) {
		t := p.advance()
		return ast.IdentPattern{Node: ast.N(spanOf(t)), Name: t.Lexeme}, nil
	}
	e, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	return ast.LiteralPattern{Node: ast.N(e.Span()), Value: e}, nil
}

func (p *Parser) parsePattern() (ast.Pattern, error) {
	if p.check(token.LPAREN) {
		open := p.advance()
		var elems []ast.Pattern
		for !p.check(token.RPAREN) {
			e, err := p.parsePattern()
			if err != nil {
				return nil, err
			}
			elems = append(elems, e)
			if !p.match(token.COMMA) {
				break
			}
		}
		closeT, err := p.expect(token.RPAREN, "')'")
		if err != nil {
			return nil, err
		}
		return ast.SeqPattern{Node: ast.N(span(open, closeT)), Elems: elems}, nil
	}
	t, err := p.expect(token.IDENTIFIER, "pattern")
	if err != nil {
		return nil, err
	}
	return ast.IdentPattern{Node: ast.N(spanOf(t)), Name: t.Lexeme}, nil
}

func (p *Parser) parseFn(anonymous bool) (ast.Expr, error) {
	start := p.advance() // fn
	return p.parseFnAfterKeyword(start, false)
}

func (p *Parser) parseFnAfterKeyword(start token.Token, memoized bool) (ast.Expr, error) {
	var name string
	if p.check(token.IDENTIFIER) {
		name = p.advance().Lexeme
	}
	if _, err := p.expect(token.LPAREN, "'('"); err != nil {
		return nil, err
	}
	var params []string
	for !p.check(token.RPAREN) {
		pt, err := p.expect(token.IDENTIFIER, "parameter name")
		if err != nil {
			return nil, err
		}
		params = append(params, pt.Lexeme)
		if !p.match(token.COMMA) {
			break
		}
	}
	if _, err := p.expect(token.RPAREN, "')'"); err != nil {
		return nil, err
	}
	body, err := p.parseBrace()
	if err != nil {
		return nil, err
	}
	fnSpan := ast.Span{Start: start.Start, End: body.Span().End}
	lit := ast.FuncLit{Node: ast.N(fnSpan), Params: params, Memoized: memoized, Body: body}
	if name == "" {
		return lit, nil
	}
	return ast.Assign{
		Node: ast.N(fnSpan),
		Target: ast.IdentPattern{Node: ast.N(fnSpan), Name: name},
		Value:  lit,
	}, nil
}

func mkBinary(left ast.Expr, op string, right ast.Expr, _ token.Token) ast.Expr {
	return ast.Binary{
		Node: ast.N(ast.Span{Start: left.Span().Start, End: right.Span().End}),
		Op:   op, Left: left, Right: right,
	}
}

func exprToPattern(e ast.Expr) (ast.Pattern, error) {
	switch v := e.(type) {
	case ast.Ident:
		return ast.IdentPattern{Node: ast.N(v.Span()), Name: v.Name}, nil
	case ast.Index:
		return ast.IndexPattern{Node: ast.N(v.Span()), Target: v.Target, Index: v.Index}, nil
	case ast.TupleLit:
		elems := make([]ast.Pattern, len(v.Elems))
		for i, el := range v.Elems {
			p, err := exprToPattern(el)
			if err != nil {
				return nil, err
			}
			elems[i] = p
		}
		return ast.SeqPattern{Node: ast.N(v.Span()), Elems: elems}, nil
	case ast.ListLit:
		elems := make([]ast.Pattern, len(v.Elems))
		for i, el := range v.Elems {
			p, err := exprToPattern(el)
			if err != nil {
				return nil, err
			}
			elems[i] = p
		}
		return ast.SeqPattern{Node: ast.N(v.Span()), Elems: elems}, nil
	default:
		return nil, fmt.Errorf("invalid assignment target: %s", strings.TrimSpace(fmt.Sprintf("%T", e)))
	}
}
