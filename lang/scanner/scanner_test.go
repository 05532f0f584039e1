package scanner_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sbsvm/sbs/lang/scanner"
	"github.com/sbsvm/sbs/lang/token"
)

func kinds(toks []token.Token) []token.Kind {
	out := make([]token.Kind, len(toks))
	for i, t := range toks {
		out[i] = t.Kind
	}
	return out
}

func TestScanPunctuationAndOperators(t *testing.T) {
	toks, errs := scanner.Scan(`!= == <= >= && || & | ^ ~ = < >`)
	require.Empty(t, errs)
	assert.Equal(t, []token.Kind{
		token.BANGEQ, token.EQEQ, token.LE, token.GE, token.AMPAMP, token.PIPEPIPE,
		token.AMP, token.PIPE, token.CARET, token.TILDE, token.EQ, token.LT, token.GT,
		token.EOF,
	}, kinds(toks))
}

func TestScanKeywordsAndIdentifiers(t *testing.T) {
	toks, errs := scanner.Scan(`int x nil null true false foo_bar`)
	require.Empty(t, errs)
	require.Len(t, toks, 8)
	assert.Equal(t, token.INT, toks[0].Kind)
	assert.Equal(t, token.IDENT, toks[1].Kind)
	assert.Equal(t, token.NIL, toks[2].Kind)
	assert.Equal(t, token.NIL, toks[3].Kind, "null must lex to the same keyword as nil")
	assert.Equal(t, token.TRUE, toks[4].Kind)
	assert.Equal(t, token.FALSE, toks[5].Kind)
	assert.Equal(t, token.IDENT, toks[6].Kind)
	assert.Equal(t, "foo_bar", toks[6].Lexeme)
}

func TestScanNumbers(t *testing.T) {
	toks, errs := scanner.Scan(`42 3.14 0`)
	require.Empty(t, errs)
	require.Len(t, toks, 4)
	assert.Equal(t, float64(42), toks[0].NumberValue)
	assert.Equal(t, 3.14, toks[1].NumberValue)
	assert.Equal(t, float64(0), toks[2].NumberValue)
}

func TestScanStringEscapes(t *testing.T) {
	toks, errs := scanner.Scan(`"a\nb\tc\\d\"e\qf"`)
	require.Empty(t, errs)
	require.Len(t, toks, 2)
	assert.Equal(t, "a\nb\tc\\d\"e\\qf", toks[0].Lexeme)
}

func TestScanUnterminatedString(t *testing.T) {
	toks, errs := scanner.Scan(`"abc`)
	require.Len(t, errs, 1)
	assert.Equal(t, "Unterminated string", errs[0].Message)
	assert.Equal(t, token.ERROR, toks[0].Kind)
	assert.Equal(t, token.EOF, toks[len(toks)-1].Kind)
}

func TestScanComments(t *testing.T) {
	toks, errs := scanner.Scan("int x; // trailing comment\n/* block /* nested */ still-comment */ float y;")
	require.Empty(t, errs)
	assert.Equal(t, []token.Kind{
		token.INT, token.IDENT, token.SEMI, token.FLOAT, token.IDENT, token.SEMI, token.EOF,
	}, kinds(toks))
}

func TestScanAlwaysTerminatesWithEOF(t *testing.T) {
	toks, _ := scanner.Scan(``)
	require.Len(t, toks, 1)
	assert.Equal(t, token.EOF, toks[0].Kind)
}

func TestScanLineColumnTracking(t *testing.T) {
	toks, errs := scanner.Scan("int x;\nfloat y;")
	require.Empty(t, errs)
	// "float" starts on line 2, column 1.
	idx := -1
	for i, tok := range toks {
		if tok.Kind == token.FLOAT {
			idx = i
		}
	}
	require.NotEqual(t, -1, idx)
	assert.Equal(t, 2, toks[idx].Pos.Line)
	assert.Equal(t, 1, toks[idx].Pos.Column)
}
