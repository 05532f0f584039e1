// Package parser implements a recursive-descent, operator-precedence
// parser over the token stream produced by lang/scanner, following the
// grammar in SPEC_FULL.md §4.2 literally: one method per precedence
// level rather than a generic priority table, since the grammar already
// fixes the exact cascade. Error recovery is panic-mode: on an
// unexpected token the parser records a diagnostic, raises a sentinel
// panic, and a recover() at the statement boundary resynchronizes to a
// known-good token before continuing, so one bad statement does not
// blank out the rest of the file's diagnostics.
package parser

import (
	"fmt"

	"github.com/sbsvm/sbs/lang/ast"
	"github.com/sbsvm/sbs/lang/token"
)

// Error is a single parser diagnostic.
type Error struct {
	Pos     token.Pos
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("[%s] %s", e.Pos, e.Message)
}

// errPanicMode is the sentinel panicked with by expect() on an
// unexpected token; it is recovered at the statement boundary and never
// escapes Parse.
var errPanicMode = fmt.Errorf("parser: panic mode")

// Parse parses src's token stream into a Program. It never returns a nil
// Program; on error it returns as much of the tree as could be
// recovered, together with the accumulated diagnostics.
func Parse(toks []token.Token) (*ast.Program, []*Error) {
	p := &parser{toks: toks}
	prog := p.parseProgram()
	return prog, p.errs
}

type parser struct {
	toks      []token.Token
	pos       int
	errs      []*Error
	panicMode bool
}

func (p *parser) cur() token.Token  { return p.toks[p.pos] }
func (p *parser) atEnd() bool       { return p.cur().Kind == token.EOF }
func (p *parser) check(k token.Kind) bool {
	return p.cur().Kind == k
}

func (p *parser) advance() token.Token {
	t := p.toks[p.pos]
	if p.pos < len(p.toks)-1 {
		p.pos++
	}
	return t
}

func (p *parser) match(kinds ...token.Kind) bool {
	for _, k := range kinds {
		if p.check(k) {
			p.advance()
			return true
		}
	}
	return false
}

// expect consumes and returns the current token if it has kind k;
// otherwise it records a diagnostic and unwinds via panic(errPanicMode)
// to the nearest statement-level recover().
func (p *parser) expect(k token.Kind, context string) token.Token {
	if p.check(k) {
		return p.advance()
	}
	p.errorAt(p.cur().Pos, "Expected %s %s but got %s", k, context, p.cur().Kind)
	panic(errPanicMode)
}

// errorAt records a diagnostic. Once panicMode is set, further errors
// are swallowed until synchronize() clears it, so a single malformed
// construct does not flood the error list with cascading complaints.
func (p *parser) errorAt(pos token.Pos, format string, args ...any) {
	if p.panicMode {
		return
	}
	p.panicMode = true
	p.errs = append(p.errs, &Error{Pos: pos, Message: fmt.Sprintf(format, args...)})
}

// synchronize discards tokens until a ';' is consumed or the next token
// is one of '{', '}', 'if', 'while', 'for', 'return', 'function', 'var',
// or a type keyword (SPEC_FULL.md §4.2).
func (p *parser) synchronize() {
	p.panicMode = false
	for !p.atEnd() {
		if p.check(token.SEMI) {
			p.advance()
			return
		}
		switch p.cur().Kind {
		case token.LBRACE, token.RBRACE, token.IF, token.WHILE, token.FOR,
			token.RETURN, token.FUNCTION, token.VAR:
			return
		}
		if p.cur().Kind.IsTypeKeyword() {
			return
		}
		p.advance()
	}
}

// HasErrors reports whether any diagnostic was recorded.
func HasErrors(errs []*Error) bool { return len(errs) > 0 }

// parseProgram implements `program := (funcDecl | stmt)*`.
func (p *parser) parseProgram() *ast.Program {
	prog := &ast.Program{}
	for !p.atEnd() {
		if p.startsFuncDecl() {
			if fn := p.parseFuncDeclSafe(); fn != nil {
				prog.Funcs = append(prog.Funcs, fn)
			}
			continue
		}
		if st := p.parseStmtSafe(); st != nil {
			prog.Stmts = append(prog.Stmts, st)
		}
	}
	return prog
}

// startsFuncDecl looks ahead, without consuming, to tell a funcDecl
// (`type IDENT '('`) apart from a varDecl/exprStmt that merely begins
// with a type keyword.
func (p *parser) startsFuncDecl() bool {
	i := p.pos
	if i >= len(p.toks) || !p.toks[i].Kind.IsTypeKeyword() {
		return false
	}
	i++
	for i+1 < len(p.toks) && p.toks[i].Kind == token.LBRACK && p.toks[i+1].Kind == token.RBRACK {
		i += 2
	}
	if i >= len(p.toks) || p.toks[i].Kind != token.IDENT {
		return false
	}
	i++
	return i < len(p.toks) && p.toks[i].Kind == token.LPAREN
}

func (p *parser) parseFuncDeclSafe() (fn *ast.FuncDecl) {
	defer func() {
		if r := recover(); r != nil {
			if r == errPanicMode {
				p.synchronize()
				fn = nil
				return
			}
			panic(r)
		}
	}()
	return p.parseFuncDecl()
}

func (p *parser) parseFuncDecl() *ast.FuncDecl {
	start := p.cur().Pos
	retType := p.parseType()
	name := p.expect(token.IDENT, "as function name")
	p.expect(token.LPAREN, "after function name")

	var params []ast.Param
	if !p.check(token.RPAREN) {
		for {
			pt := p.parseType()
			pn := p.expect(token.IDENT, "as parameter name")
			params = append(params, ast.Param{Type: pt, Name: pn.Lexeme})
			if !p.match(token.COMMA) {
				break
			}
		}
	}
	p.expect(token.RPAREN, "after parameters")
	body := p.parseBlock()
	return &ast.FuncDecl{Start: start, Name: name.Lexeme, Params: params, Body: body, ReturnType: retType}
}

// parseType implements `type := 'void'|'int'|'float'|'string'|'bool' | type '[' ']'`.
func (p *parser) parseType() ast.Type {
	var base ast.BaseType
	switch p.cur().Kind {
	case token.VOID:
		base = ast.Void
	case token.INT:
		base = ast.Int
	case token.FLOAT:
		base = ast.Float
	case token.STRING_KW:
		base = ast.StringType
	case token.BOOL:
		base = ast.Bool
	default:
		p.errorAt(p.cur().Pos, "Expected a type but got %s", p.cur().Kind)
		panic(errPanicMode)
	}
	p.advance()
	isArray := false
	for p.check(token.LBRACK) {
		p.advance()
		p.expect(token.RBRACK, "to close array type")
		isArray = true
	}
	return ast.Type{Base: base, IsArray: isArray}
}
