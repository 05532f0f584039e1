// Package ast defines the syntax tree produced by the parser: a sum of
// expression and statement node kinds, plus the top-level Program and
// FuncDecl shapes. Every node exposes a Valid method, a cheap recursive
// "are all my children present and themselves valid" check used as a
// post-parse sanity gate before compilation begins.
package ast

import "fmt"

// BaseType is the scalar part of a ScriptType tag.
type BaseType uint8

const (
	Void BaseType = iota
	Int
	Float
	StringType
	Bool
	Auto
)

func (b BaseType) String() string {
	switch b {
	case Void:
		return "void"
	case Int:
		return "int"
	case Float:
		return "float"
	case StringType:
		return "string"
	case Bool:
		return "bool"
	case Auto:
		return "auto"
	default:
		return fmt.Sprintf("BaseType(%d)", int(b))
	}
}

// Type is the full ScriptType tag: a base scalar type plus whether it is
// an array of that base (int_array, float_array, string_array,
// bool_array in the distilled vocabulary).
type Type struct {
	Base    BaseType
	IsArray bool
}

func (t Type) String() string {
	if t.IsArray {
		return t.Base.String() + "[]"
	}
	return t.Base.String()
}

// IsAuto reports whether t is the inference placeholder that the
// compiler must resolve before emitting code (§3.2).
func (t Type) IsAuto() bool { return t.Base == Auto }
