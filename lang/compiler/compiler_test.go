package compiler_test

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sbsvm/sbs/lang/compiler"
	"github.com/sbsvm/sbs/lang/host"
	"github.com/sbsvm/sbs/lang/machine"
)

func mustCompile(t *testing.T, src string) *compiler.Chunk {
	t.Helper()
	chunk, errs := compiler.Compile(src, host.New(), compiler.DefaultOptions())
	require.Empty(t, errs)
	require.NotNil(t, chunk)
	return chunk
}

func TestCompileArithmeticEndsWithHalt(t *testing.T) {
	chunk := mustCompile(t, `int x = 1 + 2 * 3;`)
	dis := compiler.Disassemble(chunk, "test")
	assert.Contains(t, dis, "CONSTANT")
	assert.Contains(t, dis, "ADD")
	assert.Contains(t, dis, "MUL")
	assert.Contains(t, dis, "HALT")
	assert.Equal(t, byte(compiler.OpHalt), chunk.Code[len(chunk.Code)-1])
}

func TestCompileFunctionCallResolvesByIndex(t *testing.T) {
	chunk := mustCompile(t, `
		int Add(int a, int b) { return a + b; }
		int r = Add(1, 2);
	`)
	require.Len(t, chunk.Functions, 1)
	assert.Equal(t, "Add", chunk.Functions[0].Name)
	assert.Equal(t, 2, chunk.Functions[0].Arity)
	dis := compiler.Disassemble(chunk, "test")
	assert.Contains(t, dis, "CALL")
	assert.Contains(t, dis, "Add")
}

func TestCompileUnknownCallIsNative(t *testing.T) {
	chunk := mustCompile(t, `Log("hi");`)
	dis := compiler.Disassemble(chunk, "test")
	assert.Contains(t, dis, "CALL_NATIVE")
}

func TestCompilePrintEmitsDedicatedOpcode(t *testing.T) {
	chunk := mustCompile(t, `Print("hi");`)
	dis := compiler.Disassemble(chunk, "test")
	assert.Contains(t, dis, "PRINT")
	assert.NotContains(t, dis, "CALL_NATIVE")
}

func TestCompileIfElseBranches(t *testing.T) {
	chunk := mustCompile(t, `
		int x = 0;
		if (x == 0) { x = 1; } else { x = 2; }
	`)
	dis := compiler.Disassemble(chunk, "test")
	assert.Contains(t, dis, "JUMP_IF_FALSE")
	assert.Contains(t, dis, "JUMP")
}

func TestCompileWhileLoopBreakAndContinue(t *testing.T) {
	chunk := mustCompile(t, `
		int i = 0;
		while (i < 10) {
			i = i + 1;
			if (i == 5) { break; }
			continue;
		}
	`)
	dis := compiler.Disassemble(chunk, "test")
	assert.Contains(t, dis, "LOOP")
}

func TestCompileForLoopContinueRunsIncrement(t *testing.T) {
	chunk := mustCompile(t, `
		int i;
		for (i = 0; i < 10; i = i + 1) {
			if (i == 5) { continue; }
		}
	`)
	dis := compiler.Disassemble(chunk, "test")
	// The increment must sit between where continue lands and the back
	// edge, not be skippable by it; disassembly shows exactly one ADD
	// per iteration body regardless, so assert on instruction shape
	// instead: a JUMP (continue's forward jump) followed later by the
	// increment's ADD before the LOOP back edge.
	assert.Contains(t, dis, "JUMP ")
	assert.Contains(t, dis, "LOOP")
	addIdx := strings.Index(dis, "ADD")
	loopIdx := strings.LastIndex(dis, "LOOP")
	require.True(t, addIdx >= 0 && addIdx < loopIdx, "increment's ADD must precede the loop's back edge")
}

func TestCompileSwitch(t *testing.T) {
	chunk := mustCompile(t, `
		int x = 1;
		switch (x) {
			case 1: x = 10;
			case 2: x = 20;
			default: x = 0;
		}
	`)
	dis := compiler.Disassemble(chunk, "test")
	assert.Contains(t, dis, "DUPLICATE")
	assert.Contains(t, dis, "EQUAL")
}

func TestCompileBreakOutsideLoopIsError(t *testing.T) {
	_, errs := compiler.Compile(`break;`, host.New(), compiler.DefaultOptions())
	require.NotEmpty(t, errs)
	assert.Equal(t, compiler.KindBreakOutsideLoop, errs[0].Kind())
}

func TestCompileDuplicateFunctionIsError(t *testing.T) {
	_, errs := compiler.Compile(`
		int F() { return 1; }
		int F() { return 2; }
	`, host.New(), compiler.DefaultOptions())
	require.NotEmpty(t, errs)
	var found bool
	for _, e := range errs {
		if e.Kind() == compiler.KindDuplicateFunction {
			found = true
		}
	}
	assert.True(t, found)
}

func TestCompileConstantPoolDeduplicatesStrings(t *testing.T) {
	chunk := mustCompile(t, `
		Print("same");
		Print("same");
	`)
	count := 0
	for _, c := range chunk.Constants {
		if c.Tag().String() == "string" && c.Str() == "same" {
			count++
		}
	}
	assert.Equal(t, 1, count)
}

func TestCompileImportResolvesViaHost(t *testing.T) {
	h := host.New()
	h.Resolver = func(name string) (string, bool) {
		if name == "util.sh" {
			return `int Double(int x) { return x * 2; }`, true
		}
		return "", false
	}
	chunk, errs := compiler.Compile(`
		import "util.sh";
		int y = Double(21);
		Print(y);
	`, h, compiler.DefaultOptions())
	require.Empty(t, errs)
	require.Len(t, chunk.Functions, 1)
	assert.Equal(t, "Double", chunk.Functions[0].Name)

	// Regression: an imported function's body must not be laid out
	// in the middle of the top-level code region, where it would be
	// reachable by falling straight through instead of via CALL.
	var logged []string
	h.Sink = func(level host.LogLevel, msg string) { logged = append(logged, msg) }
	vm := machine.New(h, host.DefaultLimits())
	ok := vm.Execute(context.Background(), chunk)
	require.True(t, ok, "errors: %v", vm.Errors())
	require.Len(t, logged, 1)
	assert.Equal(t, "42", logged[0])
}

func TestCompileUnresolvedImportIsError(t *testing.T) {
	_, errs := compiler.Compile(`import "missing.sh";`, host.New(), compiler.DefaultOptions())
	require.NotEmpty(t, errs)
	assert.Equal(t, compiler.KindUnresolvedImport, errs[0].Kind())
}

func TestDisassembleListsAddresses(t *testing.T) {
	chunk := mustCompile(t, `int x = 1;`)
	dis := compiler.Disassemble(chunk, "main")
	lines := strings.Split(strings.TrimSpace(dis), "\n")
	assert.True(t, len(lines) > 1)
	assert.Equal(t, "== main ==", lines[0])
}
