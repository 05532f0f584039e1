// Package compiler translates a parsed AST (lang/ast) into a linear
// bytecode Chunk following SPEC_FULL.md §4.3: one method per AST node
// kind, direct backpatch emission for control structures (emitJump/
// patchJump/emitLoop, grounded on the original engine plugin's
// FScriptCompiler), and local-variable tracking via a flat Locals stack
// with scope depths, mirroring that same design.
package compiler

import (
	"github.com/sbsvm/sbs/lang/ast"
	"github.com/sbsvm/sbs/lang/host"
	"github.com/sbsvm/sbs/lang/parser"
	"github.com/sbsvm/sbs/lang/scanner"
	"github.com/sbsvm/sbs/lang/value"
)

type local struct {
	name        string
	depth       int
	initialized bool
}

type loopContext struct {
	start         int
	breakSites    []int
	continueSites []int
}

// pendingFunc is a function body not yet laid out in Code: its table
// entry exists (so CALL can reference it by index) but compileFunction
// hasn't run for it yet. compileProgram drains this queue only after
// emitting HALT, so a function body — whether declared at the top of
// the program or discovered through an import partway through the
// top-level statement sequence — is never reachable by falling through
// top-level code (§4.3.3).
type pendingFunc struct {
	index int
	decl  *ast.FuncDecl
}

type compiler struct {
	host  *host.Host
	opts  Options
	chunk *Chunk

	locals     []local
	scopeDepth int
	loopStack  []loopContext
	pending    []pendingFunc

	imported  map[string]bool
	importing map[string]bool

	errs        []*Error
	line        int
	curFuncName string
	curFuncRet  ast.Type
	inFunc      bool
}

// Compile lexes, parses, and compiles src into a Chunk. On error it
// returns the accumulated diagnostics and a possibly-partial Chunk is
// discarded (callers must check len(errs) == 0 before using the result,
// matching the corpus's stage-boundary propagation policy in §7).
func Compile(src string, h *host.Host, opts Options) (*Chunk, []*Error) {
	if h == nil {
		h = host.New()
	}
	c := &compiler{
		host:     h,
		opts:     opts,
		chunk:    NewChunk(),
		imported: map[string]bool{},
	}
	c.chunk.emitLineMap = opts.EmitLineMap
	c.chunk.Metadata.CompilerType = opts.CompilerType
	c.chunk.Metadata.SourceFileName = opts.SourceFileName
	c.chunk.Metadata.SourceFileSize = uint32(len(src))
	c.chunk.Metadata.AuthorName = h.AuthorName
	c.chunk.Metadata.OperatingSystem = h.OperatingSystem
	c.chunk.Metadata.MachineName = h.MachineName
	if h.CompilerName != "" {
		c.chunk.Metadata.CompilerName = h.CompilerName
	}
	c.chunk.Metadata.CompilerVersion = h.CompilerVersion

	toks, scanErrs := scanner.Scan(src)
	for _, e := range scanErrs {
		c.errs = append(c.errs, newError("UnexpectedCharacter", e.Pos.Line, e.Pos.Column, "%s", e.Message))
	}
	prog, parseErrs := parser.Parse(toks)
	for _, e := range parseErrs {
		c.errs = append(c.errs, newError("ExpectedToken", e.Pos.Line, e.Pos.Column, "%s", e.Message))
	}
	if len(c.errs) > 0 {
		return nil, c.errs
	}

	c.compileProgram(prog)
	if len(c.errs) > 0 {
		return nil, c.errs
	}
	return c.chunk, nil
}

func (c *compiler) errorf(kind string, format string, args ...any) {
	c.errs = append(c.errs, newError(kind, c.line, 0, format, args...))
}

func (c *compiler) emit(b byte)         { c.chunk.write(b, c.line) }
func (c *compiler) emitOp(op OpCode)    { c.emit(byte(op)) }
func (c *compiler) emitU16(v int) {
	c.emit(byte(v >> 8))
	c.emit(byte(v))
}

// emitJump writes a jump opcode with a placeholder 2-byte operand and
// returns the operand's offset for a later patchJump.
func (c *compiler) emitJump(op OpCode) int {
	c.emitOp(op)
	c.emit(0xFF)
	c.emit(0xFF)
	return len(c.chunk.Code) - 2
}

// patchJump backfills a previously emitted jump's operand with the
// distance from just after the operand to the current code position.
func (c *compiler) patchJump(operandOffset int) {
	dist := len(c.chunk.Code) - (operandOffset + 2)
	c.chunk.Code[operandOffset] = byte(dist >> 8)
	c.chunk.Code[operandOffset+1] = byte(dist)
}

// emitLoop emits a backward LOOP to loopStart.
func (c *compiler) emitLoop(loopStart int) {
	c.emitOp(OpLoop)
	dist := (len(c.chunk.Code) + 2) - loopStart
	c.emitU16(dist)
}

func (c *compiler) beginScope() { c.scopeDepth++ }

func (c *compiler) endScope() {
	c.scopeDepth--
	for len(c.locals) > 0 && c.locals[len(c.locals)-1].depth > c.scopeDepth {
		c.emitOp(OpPop)
		c.locals = c.locals[:len(c.locals)-1]
	}
}

func (c *compiler) addLocal(name string) (int, bool) {
	if len(c.locals) >= 256 {
		c.errorf(KindTooManyLocals, "too many local variables in function (limit 256)")
		return 0, false
	}
	c.locals = append(c.locals, local{name: name, depth: c.scopeDepth, initialized: true})
	return len(c.locals) - 1, true
}

// resolveLocal searches locals from the end, matching §4.3.4.
func (c *compiler) resolveLocal(name string) (int, bool) {
	for i := len(c.locals) - 1; i >= 0; i-- {
		if c.locals[i].name == name {
			return i, true
		}
	}
	return 0, false
}

func (c *compiler) resolveFunction(name string) (int, bool) {
	for i, fn := range c.chunk.Functions {
		if fn.Name == name {
			return i, true
		}
	}
	return 0, false
}

func (c *compiler) stringConstant(s string) int {
	idx, err := c.chunk.addConstant(value.NewString(s))
	if err != nil {
		c.errs = append(c.errs, err.(*Error))
		return 0
	}
	return idx
}

// compileProgram registers every top-level function (so forward
// references resolve by index before any body is compiled), then
// follows §4.3.3's layout literally: global code first, then HALT,
// then function bodies. A CALL only ever references its target by
// function index, never by code offset, so top-level code can call a
// function whose body has not been laid out yet.
//
// Compiling the top-level statements can itself discover more
// functions (an `import` pulls in another file's declarations), so
// c.pending is drained with an index-based loop rather than range:
// compileImport appends to it while this very loop may still be
// running.
func (c *compiler) compileProgram(prog *ast.Program) {
	seen := map[string]bool{}
	for _, fn := range prog.Funcs {
		if seen[fn.Name] {
			c.errorf(KindDuplicateFunction, "function %q already declared", fn.Name)
			continue
		}
		seen[fn.Name] = true
		idx := len(c.chunk.Functions)
		c.chunk.Functions = append(c.chunk.Functions, FuncInfo{Name: fn.Name, Arity: len(fn.Params)})
		c.pending = append(c.pending, pendingFunc{index: idx, decl: fn})
	}

	c.chunk.EntryPoint = 0
	for _, st := range prog.Stmts {
		c.compileStmt(st)
	}
	c.emitOp(OpHalt)

	for i := 0; i < len(c.pending); i++ {
		pf := c.pending[i]
		c.compileFunction(pf.index, pf.decl)
	}
}

func (c *compiler) compileFunction(index int, fn *ast.FuncDecl) {
	c.chunk.Functions[index].Address = uint32(len(c.chunk.Code))
	c.line = fn.Start.Line

	savedLocals := c.locals
	savedDepth := c.scopeDepth
	savedRet, savedInFunc, savedName := c.curFuncRet, c.inFunc, c.curFuncName
	c.locals = nil
	c.scopeDepth = 0
	c.curFuncRet = fn.ReturnType
	c.inFunc = true
	c.curFuncName = fn.Name

	c.scopeDepth++
	for _, p := range fn.Params {
		c.addLocal(p.Name)
	}
	for _, st := range fn.Body.Stmts {
		c.compileStmt(st)
	}
	// Implicit `return;` for a function whose body falls off the end.
	// No explicit scope-pop is emitted here: RETURN unwinds the whole
	// frame, so cleanup code for the outermost function scope would
	// only ever be dead code.
	c.emitOp(OpNil)
	c.emitOp(OpReturn)

	c.locals = savedLocals
	c.scopeDepth = savedDepth
	c.curFuncRet, c.inFunc, c.curFuncName = savedRet, savedInFunc, savedName
}
