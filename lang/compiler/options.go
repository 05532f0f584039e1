package compiler

// Options configures a single Compile call (SPEC_FULL.md §3.7). The zero
// Options emits no line map and tags the chunk HostIntegrated;
// DefaultOptions turns on the line map and the Standalone tag.
type Options struct {
	SourceFileName string
	EmitLineMap    bool
	CompilerType   CompilerType
}

// DefaultOptions returns the options the standalone CLI uses.
func DefaultOptions() Options {
	return Options{EmitLineMap: true, CompilerType: Standalone}
}
