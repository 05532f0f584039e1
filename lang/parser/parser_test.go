package parser_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sbsvm/sbs/lang/ast"
	"github.com/sbsvm/sbs/lang/parser"
	"github.com/sbsvm/sbs/lang/scanner"
)

func mustParse(t *testing.T, src string) *ast.Program {
	t.Helper()
	toks, scanErrs := scanner.Scan(src)
	require.Empty(t, scanErrs)
	prog, errs := parser.Parse(toks)
	require.Empty(t, errs, "unexpected parse errors")
	require.True(t, prog.Valid())
	return prog
}

func TestParseFuncDeclAndCall(t *testing.T) {
	prog := mustParse(t, `
		int Add(int a, int b) { return a + b; }
		void Main() { Print((string)Add(2, 3)); }
		Main();
	`)
	require.Len(t, prog.Funcs, 2)
	assert.Equal(t, "Add", prog.Funcs[0].Name)
	assert.Len(t, prog.Funcs[0].Params, 2)
	assert.Equal(t, ast.Void, prog.Funcs[1].ReturnType.Base)
	require.Len(t, prog.Stmts, 1)
	_, ok := prog.Stmts[0].(*ast.ExprStmt)
	assert.True(t, ok)
}

func TestParseVarDeclAndArray(t *testing.T) {
	prog := mustParse(t, `int[] a = [3, 1, 4, 1, 5];`)
	require.Len(t, prog.Stmts, 1)
	decl, ok := prog.Stmts[0].(*ast.VarDeclStmt)
	require.True(t, ok)
	assert.True(t, decl.Type.IsArray)
	lit, ok := decl.Init.(*ast.ArrayLiteralExpr)
	require.True(t, ok)
	assert.Len(t, lit.Elems, 5)
}

func TestParseIfWhileForSwitch(t *testing.T) {
	prog := mustParse(t, `
		void Run() {
			int i = 0;
			while (i < 10) { if (i == 5) break; else continue; }
			for (int j = 0; j < 3; j = j + 1) { }
			switch (i) {
				case 1: Print("one");
				default: Print("other");
			}
		}
	`)
	require.Len(t, prog.Funcs, 1)
}

func TestParseAssignmentTargets(t *testing.T) {
	prog := mustParse(t, `
		void Run(int[] a) {
			a[0] = 1;
			a.field = 2;
		}
	`)
	body := prog.Funcs[0].Body.Stmts
	require.Len(t, body, 2)
	_, ok := body[0].(*ast.ExprStmt).X.(*ast.ArrayAssignExpr)
	assert.True(t, ok)
	_, ok = body[1].(*ast.ExprStmt).X.(*ast.StructAssignExpr)
	assert.True(t, ok)
}

func TestParseCastExpression(t *testing.T) {
	prog := mustParse(t, `string s = (string)42;`)
	decl := prog.Stmts[0].(*ast.VarDeclStmt)
	cast, ok := decl.Init.(*ast.TypeCastExpr)
	require.True(t, ok)
	assert.Equal(t, ast.StringType, cast.TargetType.Base)
}

func TestParseErrorRecoverySkipsBadStatementOnly(t *testing.T) {
	toks, scanErrs := scanner.Scan(`
		int a = 1;
		int b = ;
		int c = 3;
	`)
	require.Empty(t, scanErrs)
	prog, errs := parser.Parse(toks)
	require.NotEmpty(t, errs)
	// The malformed "int b = ;" statement is dropped, but statements
	// before and after it still parse.
	var names []string
	for _, st := range prog.Stmts {
		if decl, ok := st.(*ast.VarDeclStmt); ok {
			names = append(names, decl.Name)
		}
	}
	assert.Equal(t, []string{"a", "c"}, names)
}
