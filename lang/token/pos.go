package token

import "fmt"

// Pos is a 1-based line and column in a single source file. The toolchain
// only ever compiles one file at a time (imports are textually inlined
// during compilation, §4.3.7), so unlike a multi-file token.FileSet this
// is deliberately just two integers.
type Pos struct {
	Line, Column int
}

func (p Pos) String() string {
	return fmt.Sprintf("%d:%d", p.Line, p.Column)
}

// IsValid reports whether p refers to a real source location.
func (p Pos) IsValid() bool {
	return p.Line > 0 && p.Column > 0
}
