// Package value implements the runtime Value tagged union shared by the
// compiler's constant pool and the virtual machine: nil, bool, number,
// string, array, and struct. It is its own package (rather than living
// inside lang/machine, as the corpus's own VM value model does) so that
// lang/compiler and lang/machine can both depend on it without a cycle.
package value

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/dolthub/swiss"
)

// Tag identifies which variant of the union a Value holds.
type Tag uint8

const (
	Nil Tag = iota
	Bool
	Number
	String
	Array
	Struct
)

func (t Tag) String() string {
	switch t {
	case Nil:
		return "nil"
	case Bool:
		return "bool"
	case Number:
		return "number"
	case String:
		return "string"
	case Array:
		return "array"
	case Struct:
		return "struct"
	default:
		return "unknown"
	}
}

// Value is a single dynamically-typed script value. The zero Value is
// Nil. Values are copied by value; New* constructors are the only way to
// build a non-nil one, so callers never poke at the unexported fields
// directly.
type Value struct {
	tag     Tag
	boolean bool
	number  float64
	str     string
	array   []Value
	strct   *StructValue
}

// StructValue is a name-keyed bag of fields. Field storage uses the same
// swiss-table map type the corpus reaches for elsewhere as a hot,
// hash-keyed collection, rather than a plain map[string]Value.
type StructValue struct {
	Name   string
	fields *swiss.Map[string, Value]
}

// NewStruct returns an empty struct value with the given type name.
func NewStruct(name string) *StructValue {
	return &StructValue{Name: name, fields: swiss.NewMap[string, Value](4)}
}

// Get returns the field's value, or Nil if the field has never been set.
func (s *StructValue) Get(field string) Value {
	v, _ := s.fields.Get(field)
	return v
}

// Lookup is Get plus whether the field has ever been set, for callers
// that must distinguish a field holding Nil from a field that does not
// exist at all (§4.5.4's UnknownField error).
func (s *StructValue) Lookup(field string) (Value, bool) {
	return s.fields.Get(field)
}

// Set stores a field's value, creating the field if it did not exist.
func (s *StructValue) Set(field string, v Value) { s.fields.Put(field, v) }

// Len reports the number of fields currently set.
func (s *StructValue) Len() int { return int(s.fields.Count()) }

// Each calls fn once per field in unspecified order.
func (s *StructValue) Each(fn func(field string, v Value)) {
	it := s.fields.Iterator()
	for it.Next() {
		k, v := it.Pair()
		fn(k, v)
	}
}

func NewNil() Value           { return Value{} }
func NewBool(b bool) Value    { return Value{tag: Bool, boolean: b} }
func NewNumber(n float64) Value { return Value{tag: Number, number: n} }
func NewString(s string) Value  { return Value{tag: String, str: s} }
func NewArray(elems []Value) Value {
	return Value{tag: Array, array: elems}
}
func NewStructValue(s *StructValue) Value { return Value{tag: Struct, strct: s} }

func (v Value) Tag() Tag      { return v.tag }
func (v Value) IsNil() bool   { return v.tag == Nil }
func (v Value) Bool() bool    { return v.boolean }
func (v Value) Number() float64 { return v.number }
// Str returns the string payload (meaningful only when Tag() == String).
// It is named Str, not String, so Value does not accidentally satisfy
// fmt.Stringer with a payload that is empty for every other tag; use
// Render for a tag-aware display form.
func (v Value) Str() string { return v.str }
func (v Value) Array() []Value  { return v.array }
func (v Value) Struct() *StructValue { return v.strct }

// Truthy implements the truthiness table: nil -> false, bool -> itself,
// number -> != 0, string/array -> non-empty, struct -> always true.
func (v Value) Truthy() bool {
	switch v.tag {
	case Nil:
		return false
	case Bool:
		return v.boolean
	case Number:
		return v.number != 0
	case String:
		return v.str != ""
	case Array:
		return len(v.array) > 0
	case Struct:
		return true
	default:
		return false
	}
}

// Equal implements tag+content equality. Values of different tags are
// never equal (never an error). Struct equality requires identical
// names and identical field sets/values; fields are compared one by
// one, recursing into each field's value.
func Equal(a, b Value) bool {
	if a.tag != b.tag {
		return false
	}
	switch a.tag {
	case Nil:
		return true
	case Bool:
		return a.boolean == b.boolean
	case Number:
		return a.number == b.number
	case String:
		return a.str == b.str
	case Array:
		if len(a.array) != len(b.array) {
			return false
		}
		for i := range a.array {
			if !Equal(a.array[i], b.array[i]) {
				return false
			}
		}
		return true
	case Struct:
		if a.strct.Name != b.strct.Name || a.strct.Len() != b.strct.Len() {
			return false
		}
		eq := true
		a.strct.Each(func(field string, av Value) {
			bv, ok := b.strct.fields.Get(field)
			if !ok || !Equal(av, bv) {
				eq = false
			}
		})
		return eq
	default:
		return false
	}
}

// Clone deep-copies an Array or Struct payload; every other tag is
// already copied by Go's struct-assignment semantics. Use it at the
// points where the language creates a new binding (a declaration, a
// plain assignment, a function parameter) so that binding does not
// alias the source's backing storage, per §3.3's "arrays and structs
// copy deeply on assignment". Reads that feed a mutation in place
// (arr[i] = v) deliberately skip Clone so the write reaches the
// original storage.
func (v Value) Clone() Value {
	switch v.tag {
	case Array:
		cp := make([]Value, len(v.array))
		for i, e := range v.array {
			cp[i] = e.Clone()
		}
		return Value{tag: Array, array: cp}
	case Struct:
		cp := NewStruct(v.strct.Name)
		v.strct.Each(func(field string, fv Value) {
			cp.Set(field, fv.Clone())
		})
		return Value{tag: Struct, strct: cp}
	default:
		return v
	}
}

// NearlyEqualNumbers is the constant-pool deduplication tolerance from
// SPEC_FULL.md §4.3.5: |a-b| <= 1e-9 * max(1, |a|).
func NearlyEqualNumbers(a, b float64) bool {
	tol := 1e-9 * math.Max(1, math.Abs(a))
	return math.Abs(a-b) <= tol
}

// Render formats a Value the way the disassembler and PRINT opcode do.
func (v Value) Render() string {
	switch v.tag {
	case Nil:
		return "nil"
	case Bool:
		if v.boolean {
			return "true"
		}
		return "false"
	case Number:
		return strconv.FormatFloat(v.number, 'g', -1, 64)
	case String:
		return v.str
	case Array:
		parts := make([]string, len(v.array))
		for i, e := range v.array {
			parts[i] = e.Render()
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case Struct:
		return fmt.Sprintf("%s{...}", v.strct.Name)
	default:
		return "?"
	}
}
