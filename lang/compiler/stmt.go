package compiler

import (
	"github.com/sbsvm/sbs/lang/ast"
	"github.com/sbsvm/sbs/lang/parser"
	"github.com/sbsvm/sbs/lang/scanner"
)

func (c *compiler) compileStmt(st ast.Stmt) {
	switch s := st.(type) {
	case *ast.ExprStmt:
		c.line = s.X.Pos().Line
		c.compileExpr(s.X)
		c.emitOp(OpPop)
	case *ast.VarDeclStmt:
		c.compileVarDecl(s)
	case *ast.BlockStmt:
		c.beginScope()
		for _, inner := range s.Stmts {
			c.compileStmt(inner)
		}
		c.endScope()
	case *ast.IfStmt:
		c.compileIf(s)
	case *ast.WhileStmt:
		c.compileWhile(s)
	case *ast.ForStmt:
		c.compileFor(s)
	case *ast.SwitchStmt:
		c.compileSwitch(s)
	case *ast.ReturnStmt:
		c.compileReturn(s)
	case *ast.BreakStmt:
		c.compileBreak(s)
	case *ast.ContinueStmt:
		c.compileContinue(s)
	case *ast.ImportStmt:
		c.compileImport(s)
	default:
		c.errorf(KindInvalidDeclaration, "unsupported statement node")
	}
}

const KindInvalidDeclaration = "InvalidDeclaration"

// compileVarDecl treats a declaration at scope depth 0 (outside any
// function and outside any block) as a global, and anything nested
// inside a function body or block as a local slot, per §4.3.4.
func (c *compiler) compileVarDecl(s *ast.VarDeclStmt) {
	c.line = s.Start.Line
	if s.Init != nil {
		c.compileExpr(s.Init)
	} else {
		c.emitOp(OpNil)
	}
	// CLONE here, not at every read: a declaration binds a new variable
	// to an independent copy of its initializer's value (§3.3), while
	// GET_LOCAL/GET_GLOBAL elsewhere stay reference-sharing so arr[i]=v
	// can mutate the original through SET_ELEMENT.
	c.emitOp(OpClone)
	if c.scopeDepth == 0 {
		idx := c.stringConstant(s.Name)
		c.emitOp(OpDefineGlobal)
		c.emit(byte(idx))
		return
	}
	// Locals are values already sitting on the stack in slot order; no
	// SET_LOCAL is needed for the initializer, it simply becomes slot N.
	c.addLocal(s.Name)
}

func (c *compiler) compileIf(s *ast.IfStmt) {
	c.line = s.Start.Line
	c.compileExpr(s.Cond)
	thenJump := c.emitJump(OpJumpIfFalse)
	c.emitOp(OpPop)
	c.compileStmt(s.Then)

	// JUMP_IF_FALSE only peeks the condition, so both the fall-through
	// (then) and jump-target (else, even when absent) paths need their
	// own POP. The else jump/patch pair is emitted unconditionally so
	// the no-else case still pops the condition on the false path.
	elseJump := c.emitJump(OpJump)
	c.patchJump(thenJump)
	c.emitOp(OpPop)
	if s.Else != nil {
		c.compileStmt(s.Else)
	}
	c.patchJump(elseJump)
}

func (c *compiler) compileWhile(s *ast.WhileStmt) {
	c.line = s.Start.Line
	start := len(c.chunk.Code)
	c.compileExpr(s.Cond)
	exitJump := c.emitJump(OpJumpIfFalse)
	c.emitOp(OpPop)

	c.loopStack = append(c.loopStack, loopContext{start: start})
	c.compileStmt(s.Body)

	lc := c.loopStack[len(c.loopStack)-1]
	c.loopStack = c.loopStack[:len(c.loopStack)-1]

	// continue re-enters right here, falling straight into the back
	// edge so the condition is re-checked exactly as on a normal pass.
	for _, site := range lc.continueSites {
		c.patchJump(site)
	}
	c.emitLoop(start)

	c.patchJump(exitJump)
	c.emitOp(OpPop)
	for _, site := range lc.breakSites {
		c.patchJump(site)
	}
}

// compileFor desugars `for (init; cond; incr) body` into the equivalent
// `{ init; while (cond) { body; incr; } }`, per §4.3.2.
func (c *compiler) compileFor(s *ast.ForStmt) {
	c.line = s.Start.Line
	c.beginScope()
	if s.Init != nil {
		c.compileStmt(s.Init)
	}

	start := len(c.chunk.Code)
	var exitJump int
	hasCond := s.Cond != nil
	if hasCond {
		c.compileExpr(s.Cond)
		exitJump = c.emitJump(OpJumpIfFalse)
		c.emitOp(OpPop)
	}

	c.loopStack = append(c.loopStack, loopContext{start: start})
	c.compileStmt(s.Body)

	lc := c.loopStack[len(c.loopStack)-1]
	c.loopStack = c.loopStack[:len(c.loopStack)-1]

	// continue jumps here, then falls through into the increment, so a
	// `for (init; cond; incr) body` never skips incr on continue, per
	// its desugaring into `while (cond) { body; incr; }`.
	for _, site := range lc.continueSites {
		c.patchJump(site)
	}
	if s.Incr != nil {
		c.compileExpr(s.Incr)
		c.emitOp(OpPop)
	}
	c.emitLoop(start)

	if hasCond {
		c.patchJump(exitJump)
		c.emitOp(OpPop)
	}
	for _, site := range lc.breakSites {
		c.patchJump(site)
	}
	c.endScope()
}

// compileSwitch follows §4.3.2's protocol, plus the extra POPs below: the discriminant is
// evaluated once, duplicated per case for comparison, and popped before
// falling into the matched body.
//
// JUMP_IF_FALSE only peeks its operand, so the comparison result needs
// an explicit POP on both the matched and unmatched path of every case;
// the discriminant itself is popped once a case matches (its body is
// about to run and no further case will re-test it) and once more if
// no case matches at all (right before the default body).
func (c *compiler) compileSwitch(s *ast.SwitchStmt) {
	c.line = s.Start.Line
	c.compileExpr(s.Tag)

	c.loopStack = append(c.loopStack, loopContext{start: -1})
	var endJumps []int
	for _, cs := range s.Cases {
		c.emitOp(OpDuplicate)
		c.compileExpr(cs.Value)
		c.emitOp(OpEqual)
		next := c.emitJump(OpJumpIfFalse)
		c.emitOp(OpPop) // comparison result, matched path
		c.emitOp(OpPop) // discriminant, matched path
		for _, st := range cs.Body {
			c.compileStmt(st)
		}
		endJumps = append(endJumps, c.emitJump(OpJump))
		c.patchJump(next)
		c.emitOp(OpPop) // comparison result, unmatched path
	}
	c.emitOp(OpPop) // discriminant, no case matched
	for _, st := range s.Default {
		c.compileStmt(st)
	}
	for _, j := range endJumps {
		c.patchJump(j)
	}

	lc := c.loopStack[len(c.loopStack)-1]
	c.loopStack = c.loopStack[:len(c.loopStack)-1]
	for _, site := range lc.breakSites {
		c.patchJump(site)
	}
}

func (c *compiler) compileReturn(s *ast.ReturnStmt) {
	c.line = s.Start.Line
	if c.inFunc {
		if c.curFuncRet.Base == ast.Void && s.Value != nil {
			c.errorf(KindInvalidReturnType, "function %q is void but returns a value", c.curFuncName)
		} else if c.curFuncRet.Base != ast.Void && s.Value == nil {
			c.errorf(KindInvalidReturnType, "function %q must return a %s value", c.curFuncName, c.curFuncRet)
		}
	}
	if s.Value != nil {
		c.compileExpr(s.Value)
	} else {
		c.emitOp(OpNil)
	}
	c.emitOp(OpReturn)
}

func (c *compiler) compileBreak(s *ast.BreakStmt) {
	c.line = s.Start.Line
	if len(c.loopStack) == 0 {
		c.errorf(KindBreakOutsideLoop, "break outside loop")
		return
	}
	site := c.emitJump(OpJump)
	top := len(c.loopStack) - 1
	c.loopStack[top].breakSites = append(c.loopStack[top].breakSites, site)
}

// compileContinue emits a forward jump rather than looping back
// directly: the jump target (the loop's increment, for a for-loop, or
// its back edge, for a while-loop) is only known once the rest of the
// body has been compiled, so the site is patched later by whichever of
// compileWhile/compileFor owns this loopContext.
func (c *compiler) compileContinue(s *ast.ContinueStmt) {
	c.line = s.Start.Line
	if len(c.loopStack) == 0 {
		c.errorf(KindContinueOutsideLoop, "continue outside loop")
		return
	}
	top := len(c.loopStack) - 1
	if c.loopStack[top].start < 0 {
		c.errorf(KindContinueOutsideLoop, "continue outside loop")
		return
	}
	site := c.emitJump(OpJump)
	c.loopStack[top].continueSites = append(c.loopStack[top].continueSites, site)
}

// compileImport implements §4.3.7: textual, header-style inclusion into
// the same chunk, with cycle detection by normalized path and
// once-per-program semantics.
func (c *compiler) compileImport(s *ast.ImportStmt) {
	c.line = s.Start.Line
	path := s.Path
	if c.imported[path] {
		return
	}
	if c.importing[path] {
		c.errorf(KindCircularImport, "circular import of %q", path)
		return
	}
	src, ok := c.host.ResolveInclude(path)
	if !ok {
		c.errorf(KindUnresolvedImport, "cannot resolve import %q", path)
		return
	}
	if c.importing == nil {
		c.importing = map[string]bool{}
	}
	c.importing[path] = true
	defer func() {
		delete(c.importing, path)
		c.imported[path] = true
	}()

	toks, scanErrs := scanner.Scan(src)
	for _, e := range scanErrs {
		c.errs = append(c.errs, newError("UnexpectedCharacter", e.Pos.Line, e.Pos.Column, "%s", e.Message))
	}
	prog, parseErrs := parser.Parse(toks)
	for _, e := range parseErrs {
		c.errs = append(c.errs, newError("ExpectedToken", e.Pos.Line, e.Pos.Column, "%s", e.Message))
	}
	if len(scanErrs) > 0 || len(parseErrs) > 0 {
		return
	}

	// Function bodies discovered here are only registered in the table
	// and queued on c.pending, never compiled in place: this statement
	// is processed in the middle of the top-level code region, before
	// HALT, and a body laid out here would be reachable by falling
	// straight through from the previous top-level statement.
	// compileProgram drains c.pending after emitting HALT, the same as
	// for functions declared at the top of the program.
	seen := map[string]bool{}
	for _, fn := range prog.Funcs {
		if _, exists := c.resolveFunction(fn.Name); exists || seen[fn.Name] {
			c.errorf(KindDuplicateFunction, "function %q already declared", fn.Name)
			continue
		}
		seen[fn.Name] = true
		idx := len(c.chunk.Functions)
		c.chunk.Functions = append(c.chunk.Functions, FuncInfo{Name: fn.Name, Arity: len(fn.Params)})
		c.pending = append(c.pending, pendingFunc{index: idx, decl: fn})
	}
	for _, st := range prog.Stmts {
		c.compileStmt(st)
	}
}
