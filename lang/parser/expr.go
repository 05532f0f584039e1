package parser

import (
	"github.com/sbsvm/sbs/lang/ast"
	"github.com/sbsvm/sbs/lang/token"
)

// parseExpr is the single entry point for expression parsing; it
// delegates down through the fixed precedence cascade in SPEC_FULL.md
// §4.2, from lowest (assignment) to highest (postfix call/index/field).
//
// The grammar defines no concrete literal syntax for `StructLiteral`
// (only struct *access* and *assignment* via the postfix `.` rule in
// `call`), so this parser never produces an ast.StructLiteralExpr node;
// struct values only ever arise at run time (see DESIGN.md).
func (p *parser) parseExpr() ast.Expr {
	return p.parseAssignment()
}

func (p *parser) parseAssignment() ast.Expr {
	left := p.parseLogicalOr()
	if !p.check(token.EQ) {
		return left
	}
	p.advance() // '='
	value := p.parseAssignment()

	switch t := left.(type) {
	case *ast.IdentExpr:
		return &ast.AssignExpr{Target: t, Value: value}
	case *ast.ArrayAccessExpr:
		return &ast.ArrayAssignExpr{Array: t.Array, Index: t.Index, Value: value}
	case *ast.StructAccessExpr:
		return &ast.StructAssignExpr{Object: t.Object, Field: t.Field, Value: value}
	default:
		p.errorAt(left.Pos(), "Invalid assignment target")
		return left
	}
}

func (p *parser) parseLogicalOr() ast.Expr {
	left := p.parseLogicalAnd()
	for p.check(token.PIPEPIPE) {
		op := p.advance()
		right := p.parseLogicalAnd()
		left = &ast.BinaryExpr{Left: left, Op: op, Right: right}
	}
	return left
}

func (p *parser) parseLogicalAnd() ast.Expr {
	left := p.parseBitwiseOr()
	for p.check(token.AMPAMP) {
		op := p.advance()
		right := p.parseBitwiseOr()
		left = &ast.BinaryExpr{Left: left, Op: op, Right: right}
	}
	return left
}

func (p *parser) parseBitwiseOr() ast.Expr {
	left := p.parseBitwiseXor()
	for p.check(token.PIPE) {
		op := p.advance()
		right := p.parseBitwiseXor()
		left = &ast.BinaryExpr{Left: left, Op: op, Right: right}
	}
	return left
}

func (p *parser) parseBitwiseXor() ast.Expr {
	left := p.parseBitwiseAnd()
	for p.check(token.CARET) {
		op := p.advance()
		right := p.parseBitwiseAnd()
		left = &ast.BinaryExpr{Left: left, Op: op, Right: right}
	}
	return left
}

func (p *parser) parseBitwiseAnd() ast.Expr {
	left := p.parseEquality()
	for p.check(token.AMP) {
		op := p.advance()
		right := p.parseEquality()
		left = &ast.BinaryExpr{Left: left, Op: op, Right: right}
	}
	return left
}

func (p *parser) parseEquality() ast.Expr {
	left := p.parseComparison()
	for p.check(token.EQEQ) || p.check(token.BANGEQ) {
		op := p.advance()
		right := p.parseComparison()
		left = &ast.BinaryExpr{Left: left, Op: op, Right: right}
	}
	return left
}

func (p *parser) parseComparison() ast.Expr {
	left := p.parseTerm()
	for p.check(token.LT) || p.check(token.LE) || p.check(token.GT) || p.check(token.GE) {
		op := p.advance()
		right := p.parseTerm()
		left = &ast.BinaryExpr{Left: left, Op: op, Right: right}
	}
	return left
}

func (p *parser) parseTerm() ast.Expr {
	left := p.parseFactor()
	for p.check(token.PLUS) || p.check(token.MINUS) {
		op := p.advance()
		right := p.parseFactor()
		left = &ast.BinaryExpr{Left: left, Op: op, Right: right}
	}
	return left
}

func (p *parser) parseFactor() ast.Expr {
	left := p.parseUnary()
	for p.check(token.STAR) || p.check(token.SLASH) || p.check(token.PERCENT) {
		op := p.advance()
		right := p.parseUnary()
		left = &ast.BinaryExpr{Left: left, Op: op, Right: right}
	}
	return left
}

// parseUnary implements `unary := ('!'|'-'|'~') unary | call`. Unary
// operators are right-associative by recursing into parseUnary again,
// matching §4.2's precedence table.
func (p *parser) parseUnary() ast.Expr {
	if p.check(token.BANG) || p.check(token.MINUS) || p.check(token.TILDE) {
		op := p.advance()
		right := p.parseUnary()
		return &ast.UnaryExpr{Op: op, Right: right}
	}
	return p.parseCall()
}

// parseCall implements `call := primary (('(' args? ')') | ('[' expr ']') | ('.' IDENT))*`.
func (p *parser) parseCall() ast.Expr {
	expr := p.parsePrimary()
	for {
		switch {
		case p.check(token.LPAREN):
			p.advance()
			var args []ast.Expr
			if !p.check(token.RPAREN) {
				for {
					args = append(args, p.parseExpr())
					if !p.match(token.COMMA) {
						break
					}
				}
			}
			p.expect(token.RPAREN, "after call arguments")
			expr = &ast.CallExpr{Callee: expr, Args: args}
		case p.check(token.LBRACK):
			p.advance()
			index := p.parseExpr()
			p.expect(token.RBRACK, "after index expression")
			expr = &ast.ArrayAccessExpr{Array: expr, Index: index}
		case p.check(token.DOT):
			p.advance()
			field := p.expect(token.IDENT, "as field name")
			expr = &ast.StructAccessExpr{Object: expr, Field: field.Lexeme}
		default:
			return expr
		}
	}
}

// parsePrimary implements `primary := NUMBER | STRING | 'true' | 'false'
// | 'nil' | IDENT | '(' expr ')' | arrayLit | '(' type ')' unary`.
func (p *parser) parsePrimary() ast.Expr {
	switch {
	case p.check(token.NUMBER), p.check(token.STRING), p.check(token.TRUE),
		p.check(token.FALSE), p.check(token.NIL):
		tok := p.advance()
		return &ast.LiteralExpr{Tok: tok}
	case p.check(token.IDENT):
		return &ast.IdentExpr{Tok: p.advance()}
	case p.check(token.LBRACK):
		return p.parseArrayLiteral(token.LBRACK, token.RBRACK)
	case p.check(token.LBRACE):
		return p.parseArrayLiteral(token.LBRACE, token.RBRACE)
	case p.check(token.LPAREN):
		return p.parseParenOrCast()
	default:
		p.errorAt(p.cur().Pos, "Expected an expression but got %s", p.cur().Kind)
		panic(errPanicMode)
	}
}

func (p *parser) parseArrayLiteral(open, close token.Kind) ast.Expr {
	start := p.expect(open, "to start array literal").Pos
	lit := &ast.ArrayLiteralExpr{Lbrack: start}
	if !p.check(close) {
		for {
			lit.Elems = append(lit.Elems, p.parseExpr())
			if !p.match(token.COMMA) {
				break
			}
		}
	}
	p.expect(close, "to close array literal")
	return lit
}

// parseParenOrCast disambiguates `'(' expr ')'` from `'(' type ')' unary`
// by looking ahead: if the token after '(' is a type keyword and the
// token after that (and any "[]" suffixes) is ')', it is a cast.
func (p *parser) parseParenOrCast() ast.Expr {
	if p.looksLikeCast() {
		start := p.cur().Pos
		p.advance() // '('
		ty := p.parseType()
		p.expect(token.RPAREN, "to close type cast")
		x := p.parseUnary()
		return &ast.TypeCastExpr{Start: start, TargetType: ty, X: x}
	}
	p.advance() // '('
	x := p.parseExpr()
	p.expect(token.RPAREN, "to close parenthesized expression")
	return &ast.ParenExpr{X: x}
}

func (p *parser) looksLikeCast() bool {
	i := p.pos
	if p.toks[i].Kind != token.LPAREN {
		return false
	}
	i++
	if i >= len(p.toks) || !p.toks[i].Kind.IsTypeKeyword() {
		return false
	}
	i++
	for i+1 < len(p.toks) && p.toks[i].Kind == token.LBRACK && p.toks[i+1].Kind == token.RBRACK {
		i += 2
	}
	return i < len(p.toks) && p.toks[i].Kind == token.RPAREN
}
