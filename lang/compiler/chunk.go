package compiler

import (
	"github.com/sbsvm/sbs/lang/value"
)

// CompilerType tags who produced a chunk, consumed by host trust policy.
type CompilerType uint8

const (
	HostIntegrated CompilerType = 0
	Standalone     CompilerType = 1
	External       CompilerType = 2
	UnknownCompiler CompilerType = 255
)

// Flag bits for Metadata.Flags.
type Flag uint32

const (
	OfficialBuild Flag = 1 << iota
	EditorCompiled
	DevelopmentBuild
	ShippingBuild
	IncludesSource
	DebugSymbols
	TrustedSigned
	SecurityVerified
)

// Metadata captures who built a chunk, for host policy decisions; it is
// opaque to the VM's dispatch loop.
type Metadata struct {
	CompilerType     CompilerType
	Flags            Flag
	CompilerName     string
	CompilerVersion  string
	EngineVersion    string
	GameName         string
	GameVersion      string
	AuthorName       string
	OperatingSystem  string
	MachineName      string
	CompilationTime  uint64 // ticks since epoch
	SourceFileName   string
	SourceFileSize   uint32
	SourceChecksum   string
	IsMission        bool
}

// FuncInfo is one entry of a chunk's function table.
type FuncInfo struct {
	Name    string
	Address uint32
	Arity   int
}

// Chunk is the compiler's output: code, constants, function table, and
// metadata. It is mutable while being built and treated as immutable
// once handed to the container package for serialization.
type Chunk struct {
	Version    uint32
	Metadata   Metadata
	Code       []byte
	Constants  []value.Value
	Functions  []FuncInfo
	LineMap    []uint32 // parallel to Code; empty when line maps are disabled
	SourceHash string

	// EntryPoint is the offset into Code where top-level (non-function)
	// execution begins. Per §4.3.3, global code is emitted first,
	// followed by a HALT, with function bodies laid out after — so
	// EntryPoint is always 0. A CALL's target is resolved by function
	// index through Functions at run time, so top-level code can
	// reference a function before its body has been laid out.
	EntryPoint uint32

	emitLineMap bool
}

// NewChunk returns an empty chunk ready for emission.
func NewChunk() *Chunk {
	return &Chunk{Version: 2}
}

// addConstant implements SPEC_FULL.md §4.3.5's deduplication: numbers use
// a tight near-equality tolerance, strings match byte-for-byte, and nil
// is a single shared slot. Arrays and structs are never placed in the
// pool (see DESIGN.md) so they are always appended fresh.
func (c *Chunk) addConstant(v value.Value) (int, error) {
	for i, existing := range c.Constants {
		if existing.Tag() != v.Tag() {
			continue
		}
		switch v.Tag() {
		case value.Nil:
			return i, nil
		case value.Bool:
			if existing.Bool() == v.Bool() {
				return i, nil
			}
		case value.Number:
			if value.NearlyEqualNumbers(existing.Number(), v.Number()) {
				return i, nil
			}
		case value.String:
			if existing.Str() == v.Str() {
				return i, nil
			}
		}
	}
	if len(c.Constants) >= 256 {
		return 0, newError(KindTooManyConstants, 0, 0, "constant pool exceeds 256 entries")
	}
	c.Constants = append(c.Constants, v)
	return len(c.Constants) - 1, nil
}

func (c *Chunk) write(b byte, line int) {
	c.Code = append(c.Code, b)
	if c.emitLineMap {
		c.LineMap = append(c.LineMap, uint32(line))
	}
}
