package parser

import (
	"github.com/sbsvm/sbs/lang/ast"
	"github.com/sbsvm/sbs/lang/token"
)

// parseStmtSafe wraps parseStmt with the panic-mode recover() boundary:
// a statement that fails to parse is discarded (not replaced by a "bad
// statement" placeholder node — nil is simply omitted by the caller) and
// parsing resumes at the next synchronization point.
func (p *parser) parseStmtSafe() (st ast.Stmt) {
	defer func() {
		if r := recover(); r != nil {
			if r == errPanicMode {
				p.synchronize()
				st = nil
				return
			}
			panic(r)
		}
	}()
	return p.parseStmt()
}

func (p *parser) parseStmt() ast.Stmt {
	switch {
	case p.check(token.LBRACE):
		return p.parseBlock()
	case p.check(token.IF):
		return p.parseIfStmt()
	case p.check(token.WHILE):
		return p.parseWhileStmt()
	case p.check(token.FOR):
		return p.parseForStmt()
	case p.check(token.SWITCH):
		return p.parseSwitchStmt()
	case p.check(token.RETURN):
		return p.parseReturnStmt()
	case p.check(token.BREAK):
		start := p.advance().Pos
		p.expect(token.SEMI, "after break")
		return &ast.BreakStmt{Start: start}
	case p.check(token.CONTINUE):
		start := p.advance().Pos
		p.expect(token.SEMI, "after continue")
		return &ast.ContinueStmt{Start: start}
	case p.check(token.IMPORT):
		return p.parseImportStmt()
	case p.cur().Kind.IsTypeKeyword():
		return p.parseVarDeclStmt()
	default:
		return p.parseExprStmt()
	}
}

func (p *parser) parseBlock() *ast.BlockStmt {
	lbrace := p.expect(token.LBRACE, "to start block")
	blk := &ast.BlockStmt{Lbrace: lbrace.Pos}
	for !p.check(token.RBRACE) && !p.atEnd() {
		if st := p.parseStmtSafe(); st != nil {
			blk.Stmts = append(blk.Stmts, st)
		}
	}
	p.expect(token.RBRACE, "to close block")
	return blk
}

func (p *parser) parseVarDeclStmt() ast.Stmt {
	start := p.cur().Pos
	ty := p.parseType()
	name := p.expect(token.IDENT, "as variable name")
	var init ast.Expr
	if p.match(token.EQ) {
		init = p.parseExpr()
	}
	p.expect(token.SEMI, "after variable declaration")
	return &ast.VarDeclStmt{Start: start, Type: ty, Name: name.Lexeme, Init: init}
}

func (p *parser) parseIfStmt() ast.Stmt {
	start := p.advance().Pos // 'if'
	p.expect(token.LPAREN, "after if")
	cond := p.parseExpr()
	p.expect(token.RPAREN, "after if condition")
	then := p.parseStmt()
	var elseBranch ast.Stmt
	if p.match(token.ELSE) {
		elseBranch = p.parseStmt()
	}
	return &ast.IfStmt{Start: start, Cond: cond, Then: then, Else: elseBranch}
}

func (p *parser) parseWhileStmt() ast.Stmt {
	start := p.advance().Pos // 'while'
	p.expect(token.LPAREN, "after while")
	cond := p.parseExpr()
	p.expect(token.RPAREN, "after while condition")
	body := p.parseStmt()
	return &ast.WhileStmt{Start: start, Cond: cond, Body: body}
}

// parseForStmt implements `for (init; cond?; incr?) body` where init is
// a varDecl, an exprStmt, or the empty `;`.
func (p *parser) parseForStmt() ast.Stmt {
	start := p.advance().Pos // 'for'
	p.expect(token.LPAREN, "after for")

	var init ast.Stmt
	switch {
	case p.check(token.SEMI):
		p.advance()
	case p.cur().Kind.IsTypeKeyword():
		init = p.parseVarDeclStmt()
	default:
		init = p.parseExprStmt()
	}

	var cond ast.Expr
	if !p.check(token.SEMI) {
		cond = p.parseExpr()
	}
	p.expect(token.SEMI, "after for condition")

	var incr ast.Expr
	if !p.check(token.RPAREN) {
		incr = p.parseExpr()
	}
	p.expect(token.RPAREN, "after for clauses")

	body := p.parseStmt()
	return &ast.ForStmt{Start: start, Init: init, Cond: cond, Incr: incr, Body: body}
}

func (p *parser) parseSwitchStmt() ast.Stmt {
	start := p.advance().Pos // 'switch'
	p.expect(token.LPAREN, "after switch")
	tag := p.parseExpr()
	p.expect(token.RPAREN, "after switch expression")
	p.expect(token.LBRACE, "to start switch body")

	sw := &ast.SwitchStmt{Start: start, Tag: tag}
	sawDefault := false
	for p.check(token.CASE) || p.check(token.DEFAULT) {
		if p.match(token.CASE) {
			val := p.parseExpr()
			p.expect(token.COLON, "after case expression")
			body := p.parseCaseBody()
			sw.Cases = append(sw.Cases, ast.SwitchCase{Value: val, Body: body})
			continue
		}
		p.advance() // 'default'
		p.expect(token.COLON, "after default")
		sawDefault = true
		sw.Default = p.parseCaseBody()
	}
	_ = sawDefault
	p.expect(token.RBRACE, "to close switch body")
	return sw
}

// parseCaseBody collects statements until the next 'case', 'default', or
// closing '}'.
func (p *parser) parseCaseBody() []ast.Stmt {
	var body []ast.Stmt
	for !p.check(token.CASE) && !p.check(token.DEFAULT) && !p.check(token.RBRACE) && !p.atEnd() {
		if st := p.parseStmtSafe(); st != nil {
			body = append(body, st)
		}
	}
	return body
}

func (p *parser) parseReturnStmt() ast.Stmt {
	start := p.advance().Pos // 'return'
	var val ast.Expr
	if !p.check(token.SEMI) {
		val = p.parseExpr()
	}
	p.expect(token.SEMI, "after return value")
	return &ast.ReturnStmt{Start: start, Value: val}
}

func (p *parser) parseImportStmt() ast.Stmt {
	start := p.advance().Pos // 'import'
	path := p.expect(token.STRING, "as import path")
	p.expect(token.SEMI, "after import")
	return &ast.ImportStmt{Start: start, Path: path.Lexeme}
}

func (p *parser) parseExprStmt() ast.Stmt {
	x := p.parseExpr()
	p.expect(token.SEMI, "after expression")
	return &ast.ExprStmt{X: x}
}
