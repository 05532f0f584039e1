// Package maincmd implements the script-compiler command line tool
// described in SPEC_FULL.md §6.3: it reads a source file, runs it
// through the lexer/parser/compiler pipeline, and writes a signed
// bytecode container.
package maincmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/mna/mainer"

	"github.com/sbsvm/sbs/lang/compiler"
	"github.com/sbsvm/sbs/lang/container"
	"github.com/sbsvm/sbs/lang/host"
)

const binName = "script-compiler"

var (
	shortUsage = fmt.Sprintf(`
usage: %s <input> [-o <output>] [-d] [-v] [--help]
Run '%[1]s --help' for details.
`, binName)

	longUsage = fmt.Sprintf(`usage: %s <input> [-o <output>] [-d] [-v] [--help]

Compiles a script source file into a signed, versioned bytecode
container (SPEC_FULL.md §4.4).

Valid flag options are:
       -o <output>               Output container path (default:
                                  the input file's name with its
                                  extension replaced by .scc).
       -d                        Also write a decompiled instruction
                                  listing next to the output, named
                                  <output>.decompiled.txt.
       -v                        Print progress to stdout.
       -h --help                 Show this help and exit.
`, binName)
)

// Cmd is the script-compiler command, driven by mainer.Parser.
type Cmd struct {
	BuildVersion string
	BuildDate    string

	Help      bool   `flag:"h,help"`
	Output    string `flag:"o,output"`
	Decompile bool   `flag:"d,decompile"`
	Verbose   bool   `flag:"v,verbose"`

	args []string
}

func (c *Cmd) SetArgs(args []string)          { c.args = args }
func (c *Cmd) SetFlags(flags map[string]bool) {}

// Validate checks the positional <input> argument. Flag-level validation
// (unknown flags, missing values) is mainer.Parser's job.
func (c *Cmd) Validate() error {
	if c.Help {
		return nil
	}
	if len(c.args) == 0 {
		return errors.New("no input file specified")
	}
	if len(c.args) > 1 {
		return fmt.Errorf("unexpected extra arguments: %v", c.args[1:])
	}
	return nil
}

// Main implements mainer.Cmd. It returns Success only when the input
// compiled and its container was written without error.
func (c *Cmd) Main(args []string, stdio mainer.Stdio) mainer.ExitCode {
	p := mainer.Parser{EnvVars: false}
	if err := p.Parse(args, c); err != nil {
		fmt.Fprintf(stdio.Stderr, "invalid arguments: %s\n%s", err, shortUsage)
		return mainer.InvalidArgs
	}

	if c.Help {
		fmt.Fprint(stdio.Stdout, longUsage)
		return mainer.Success
	}

	ctx := mainer.CancelOnSignal(context.Background(), os.Interrupt)
	if err := c.compile(ctx, stdio); err != nil {
		fmt.Fprintf(stdio.Stderr, "%s\n", err)
		return mainer.Failure
	}
	return mainer.Success
}

func (c *Cmd) compile(_ context.Context, stdio mainer.Stdio) error {
	input := c.args[0]

	src, err := os.ReadFile(input)
	if err != nil {
		return fmt.Errorf("reading %s: %w", input, err)
	}

	output := c.Output
	if output == "" {
		output = strings.TrimSuffix(input, filepath.Ext(input)) + ".scc"
	}

	if c.Verbose {
		fmt.Fprintf(stdio.Stdout, "compiling %s\n", input)
	}

	h := host.New()
	h.OperatingSystem = operatingSystemName()

	opts := compiler.DefaultOptions()
	opts.SourceFileName = filepath.Base(input)

	chunk, errs := compiler.Compile(string(src), h, opts)
	if len(errs) > 0 {
		for _, e := range errs {
			fmt.Fprintf(stdio.Stderr, "%s: %s\n", e.Kind(), e)
		}
		return fmt.Errorf("%s: %d compile error(s)", input, len(errs))
	}

	chunk.Metadata.SourceFileName = opts.SourceFileName
	chunk.Metadata.SourceFileSize = uint32(len(src))
	chunk.Metadata.OperatingSystem = h.OperatingSystem
	chunk.Metadata.CompilerName = binName
	chunk.Metadata.CompilerVersion = c.BuildVersion

	data, err := container.Write(chunk)
	if err != nil {
		return fmt.Errorf("encoding container: %w", err)
	}
	if err := os.WriteFile(output, data, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", output, err)
	}
	if c.Verbose {
		fmt.Fprintf(stdio.Stdout, "wrote %s (%d bytes)\n", output, len(data))
	}

	if c.Decompile {
		disPath := output + ".decompiled.txt"
		dis := compiler.Disassemble(chunk, filepath.Base(input))
		if err := os.WriteFile(disPath, []byte(dis), 0o644); err != nil {
			return fmt.Errorf("writing %s: %w", disPath, err)
		}
		if c.Verbose {
			fmt.Fprintf(stdio.Stdout, "wrote %s\n", disPath)
		}
	}
	return nil
}

func operatingSystemName() string {
	switch runtime.GOOS {
	case "darwin":
		return "macOS"
	case "windows":
		return "Windows"
	case "linux":
		return "Linux"
	default:
		return runtime.GOOS
	}
}
