package compiler

import (
	"github.com/sbsvm/sbs/lang/ast"
	"github.com/sbsvm/sbs/lang/token"
	"github.com/sbsvm/sbs/lang/value"
)

func (c *compiler) compileExpr(e ast.Expr) {
	c.line = e.Pos().Line
	switch x := e.(type) {
	case *ast.LiteralExpr:
		c.compileLiteral(x)
	case *ast.IdentExpr:
		c.compileIdentRead(x.Tok.Lexeme)
	case *ast.ParenExpr:
		c.compileExpr(x.X)
	case *ast.ArrayLiteralExpr:
		for _, el := range x.Elems {
			c.compileExpr(el)
		}
		c.emitOp(OpCreateArray)
		c.emit(byte(len(x.Elems)))
	case *ast.ArrayAccessExpr:
		c.compileExpr(x.Array)
		c.compileExpr(x.Index)
		c.emitOp(OpGetElement)
	case *ast.ArrayAssignExpr:
		c.compileExpr(x.Array)
		c.compileExpr(x.Index)
		c.compileExpr(x.Value)
		// Same copy-on-bind rule as AssignExpr: storing a value into an
		// element creates a new binding for it, so it must not alias
		// x.Value's own backing storage if that value is itself an
		// array or struct.
		c.emitOp(OpClone)
		c.emitOp(OpSetElement)
	case *ast.StructAccessExpr:
		c.compileExpr(x.Object)
		idx := c.stringConstant(x.Field)
		c.emitOp(OpGetField)
		c.emitU16(idx)
	case *ast.StructAssignExpr:
		c.compileExpr(x.Object)
		c.compileExpr(x.Value)
		// Same copy-on-bind rule as ArrayAssignExpr above.
		c.emitOp(OpClone)
		idx := c.stringConstant(x.Field)
		c.emitOp(OpSetField)
		c.emitU16(idx)
	case *ast.BinaryExpr:
		c.compileBinary(x)
	case *ast.UnaryExpr:
		c.compileUnary(x)
	case *ast.AssignExpr:
		c.compileExpr(x.Value)
		// CLONE: §3.3 gives arrays/structs copy-by-value semantics, so a
		// plain reassignment must not let the target alias the source's
		// backing storage (unlike arr[i]=v, which deliberately mutates
		// through the shared reference — see compileVarDecl).
		c.emitOp(OpClone)
		c.compileIdentWrite(x.Target.Tok.Lexeme)
	case *ast.CallExpr:
		c.compileCall(x)
	case *ast.TypeCastExpr:
		c.compileExpr(x.X)
		c.emitCast(x.TargetType)
	case *ast.StructLiteralExpr:
		// Never produced by this repo's parser (no concrete grammar
		// production for it); kept only so the AST node type exists for
		// completeness. A future front end that does synthesize one
		// would need struct construction opcodes this VM does not have.
		c.errorf(KindInvalidDeclaration, "struct literals have no compiled form")
	default:
		c.errorf(KindInvalidDeclaration, "unsupported expression node")
	}
}

func (c *compiler) compileLiteral(x *ast.LiteralExpr) {
	switch x.Tok.Kind {
	case token.NUMBER:
		idx, err := c.chunk.addConstant(value.NewNumber(x.Tok.NumberValue))
		c.emitConstant(idx, err)
	case token.STRING:
		idx, err := c.chunk.addConstant(value.NewString(x.Tok.Lexeme))
		c.emitConstant(idx, err)
	case token.TRUE:
		c.emitOp(OpTrue)
	case token.FALSE:
		c.emitOp(OpFalse)
	case token.NIL:
		c.emitOp(OpNil)
	default:
		c.errorf(KindInvalidDeclaration, "unsupported literal token %s", x.Tok.Kind)
	}
}

func (c *compiler) emitConstant(idx int, err error) {
	if err != nil {
		c.errs = append(c.errs, err.(*Error))
		return
	}
	c.emitOp(OpConstant)
	c.emit(byte(idx))
}

// compileIdentRead implements §4.3.4: locals first, then globals.
func (c *compiler) compileIdentRead(name string) {
	if slot, ok := c.resolveLocal(name); ok {
		c.emitOp(OpGetLocal)
		c.emit(byte(slot))
		return
	}
	idx := c.stringConstant(name)
	c.emitOp(OpGetGlobal)
	c.emit(byte(idx))
}

func (c *compiler) compileIdentWrite(name string) {
	if slot, ok := c.resolveLocal(name); ok {
		c.emitOp(OpSetLocal)
		c.emit(byte(slot))
		return
	}
	idx := c.stringConstant(name)
	c.emitOp(OpSetGlobal)
	c.emit(byte(idx))
}

func (c *compiler) compileBinary(x *ast.BinaryExpr) {
	c.compileExpr(x.Left)
	c.compileExpr(x.Right)
	switch x.Op.Kind {
	case token.PLUS:
		c.emitOp(OpAdd)
	case token.MINUS:
		c.emitOp(OpSub)
	case token.STAR:
		c.emitOp(OpMul)
	case token.SLASH:
		c.emitOp(OpDiv)
	case token.PERCENT:
		c.emitOp(OpMod)
	case token.EQEQ:
		c.emitOp(OpEqual)
	case token.BANGEQ:
		c.emitOp(OpNotEqual)
	case token.GT:
		c.emitOp(OpGreater)
	case token.GE:
		c.emitOp(OpGreaterEqual)
	case token.LT:
		c.emitOp(OpLess)
	case token.LE:
		c.emitOp(OpLessEqual)
	case token.AMPAMP:
		c.emitOp(OpAnd)
	case token.PIPEPIPE:
		c.emitOp(OpOr)
	case token.AMP:
		c.emitOp(OpBitAnd)
	case token.PIPE:
		c.emitOp(OpBitOr)
	case token.CARET:
		c.emitOp(OpBitXor)
	default:
		c.errorf(KindInvalidDeclaration, "unsupported binary operator %s", x.Op.Kind)
	}
}

func (c *compiler) compileUnary(x *ast.UnaryExpr) {
	c.compileExpr(x.Right)
	switch x.Op.Kind {
	case token.MINUS:
		c.emitOp(OpNegate)
	case token.BANG:
		c.emitOp(OpNot)
	case token.TILDE:
		c.emitOp(OpBitNot)
	default:
		c.errorf(KindInvalidDeclaration, "unsupported unary operator %s", x.Op.Kind)
	}
}

// compileCall resolves the callee by name: a user function by index,
// the built-in Print, or otherwise a native by name, matching §4.3.4's
// "unresolved names become CALL_NATIVE, checked only at run time"
// policy. Print is the one exception: it has its own opcode (PRINT)
// rather than going through the host's native registry, since it is
// part of the language itself rather than something an embedder
// provides.
func (c *compiler) compileCall(x *ast.CallExpr) {
	ident, ok := x.Callee.(*ast.IdentExpr)
	if !ok {
		c.errorf(KindInvalidDeclaration, "call target must be a function name")
		return
	}
	if _, isFn := c.resolveFunction(ident.Tok.Lexeme); !isFn && ident.Tok.Lexeme == "Print" {
		if len(x.Args) != 1 {
			c.errorf(KindArityMismatch, "Print expects exactly 1 argument, got %d", len(x.Args))
			return
		}
		c.compileExpr(x.Args[0])
		c.emitOp(OpPrint)
		return
	}
	fnIdx, isUserFn := c.resolveFunction(ident.Tok.Lexeme)
	for _, a := range x.Args {
		c.compileExpr(a)
		if isUserFn {
			// A parameter is a fresh local binding, so it gets the same
			// copy-on-bind treatment as compileVarDecl's initializer.
			// Native args are left sharing the caller's storage: natives
			// are host-trusted (§1's Non-goals), so this is not a
			// script-visible aliasing hazard the way two script
			// functions would be.
			c.emitOp(OpClone)
		}
	}
	if isUserFn {
		c.emitOp(OpCall)
		c.emit(byte(len(x.Args)))
		c.emitU16(fnIdx)
		return
	}
	nameIdx := c.stringConstant(ident.Tok.Lexeme)
	c.emitOp(OpCallNative)
	c.emit(byte(len(x.Args)))
	c.emitU16(nameIdx)
}

func (c *compiler) emitCast(t ast.Type) {
	switch t.Base {
	case ast.Int:
		c.emitOp(OpCastInt)
	case ast.Float:
		c.emitOp(OpCastFloat)
	case ast.StringType:
		c.emitOp(OpCastString)
	case ast.Bool:
		// No dedicated CAST_BOOL opcode exists in §4.3.1's instruction
		// set; boolean casts rely on the VM's truthiness coercion
		// (§3.3), so nothing further needs emitting here.
	default:
		c.errorf(KindInvalidDeclaration, "unsupported cast target type %s", t)
	}
}
