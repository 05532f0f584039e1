package maincmd_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mna/mainer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sbsvm/sbs/internal/maincmd"
	"github.com/sbsvm/sbs/lang/container"
)

func TestMainNoInputIsInvalidArgs(t *testing.T) {
	c := &maincmd.Cmd{}
	code := c.Main([]string{}, mainer.Stdio{Stdout: os.Stdout, Stderr: os.Stderr, Stdin: os.Stdin})
	assert.Equal(t, mainer.InvalidArgs, code)
}

func TestMainHelpPrintsUsage(t *testing.T) {
	c := &maincmd.Cmd{}
	var out strings.Builder
	code := c.Main([]string{"--help"}, mainer.Stdio{Stdout: &out, Stderr: os.Stderr, Stdin: os.Stdin})
	assert.Equal(t, mainer.Success, code)
	assert.Contains(t, out.String(), "usage: script-compiler")
}

func TestMainCompilesSourceToContainer(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "hello.scr")
	require.NoError(t, os.WriteFile(input, []byte(`void main() { Print("hi"); }`), 0o644))

	c := &maincmd.Cmd{BuildVersion: "1.0", BuildDate: "2026-07-30"}
	var out, errOut strings.Builder
	code := c.Main([]string{"-v", input}, mainer.Stdio{Stdout: &out, Stderr: &errOut, Stdin: os.Stdin})
	require.Equal(t, mainer.Success, code, "stderr: %s", errOut.String())

	outputPath := filepath.Join(dir, "hello.scc")
	data, err := os.ReadFile(outputPath)
	require.NoError(t, err)

	chunk, err := container.Read(data)
	require.NoError(t, err)
	assert.NotEmpty(t, chunk.Code)
	assert.Contains(t, out.String(), "wrote")
}

func TestMainDecompileFlagWritesListing(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "hello.scr")
	require.NoError(t, os.WriteFile(input, []byte(`void main() { Print("hi"); }`), 0o644))
	output := filepath.Join(dir, "out.scc")

	c := &maincmd.Cmd{}
	var out, errOut strings.Builder
	code := c.Main([]string{"-o", output, "-d", input}, mainer.Stdio{Stdout: &out, Stderr: &errOut, Stdin: os.Stdin})
	require.Equal(t, mainer.Success, code, "stderr: %s", errOut.String())

	dis, err := os.ReadFile(output + ".decompiled.txt")
	require.NoError(t, err)
	assert.Contains(t, string(dis), "PRINT")
}

func TestMainCompileErrorExitsFailure(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "bad.scr")
	require.NoError(t, os.WriteFile(input, []byte(`void main() { break; }`), 0o644))

	c := &maincmd.Cmd{}
	var out, errOut strings.Builder
	code := c.Main([]string{input}, mainer.Stdio{Stdout: &out, Stderr: &errOut, Stdin: os.Stdin})
	assert.Equal(t, mainer.Failure, code)
	assert.Contains(t, errOut.String(), "BreakOutsideLoop")
}

func TestMainMissingFileIsFailure(t *testing.T) {
	c := &maincmd.Cmd{}
	var errOut strings.Builder
	code := c.Main([]string{"/no/such/file.scr"}, mainer.Stdio{Stdout: os.Stdout, Stderr: &errOut, Stdin: os.Stdin})
	assert.Equal(t, mainer.Failure, code)
	assert.Contains(t, errOut.String(), "reading")
}
