package ast

import "github.com/sbsvm/sbs/lang/token"

// Expr is implemented by every expression node.
type Expr interface {
	Pos() token.Pos
	// Valid reports whether the node and all of its children are
	// structurally well-formed: every required child pointer is non-nil
	// and itself Valid. It is a cheap post-parse sanity check, not a type
	// checker.
	Valid() bool
	exprNode()
}

// LiteralExpr is a NUMBER, STRING, true, false, or nil token used as a
// value.
type LiteralExpr struct {
	Tok token.Token
}

func (e *LiteralExpr) Pos() token.Pos { return e.Tok.Pos }
func (e *LiteralExpr) Valid() bool    { return true }
func (*LiteralExpr) exprNode()        {}

// IdentExpr references a variable, parameter, or function by name.
type IdentExpr struct {
	Tok token.Token
}

func (e *IdentExpr) Pos() token.Pos { return e.Tok.Pos }
func (e *IdentExpr) Valid() bool    { return e.Tok.Lexeme != "" }
func (*IdentExpr) exprNode()        {}

// ArrayLiteralExpr is `[e1, e2, ...]` or `{e1, e2, ...}`.
type ArrayLiteralExpr struct {
	Lbrack  token.Pos
	Elems   []Expr
}

func (e *ArrayLiteralExpr) Pos() token.Pos { return e.Lbrack }
func (e *ArrayLiteralExpr) Valid() bool {
	for _, el := range e.Elems {
		if el == nil || !el.Valid() {
			return false
		}
	}
	return true
}
func (*ArrayLiteralExpr) exprNode() {}

// ArrayAccessExpr is `arr[index]` used as a value.
type ArrayAccessExpr struct {
	Array Expr
	Index Expr
}

func (e *ArrayAccessExpr) Pos() token.Pos { return e.Array.Pos() }
func (e *ArrayAccessExpr) Valid() bool {
	return e.Array != nil && e.Index != nil && e.Array.Valid() && e.Index.Valid()
}
func (*ArrayAccessExpr) exprNode() {}

// ArrayAssignExpr is `arr[index] = value`.
type ArrayAssignExpr struct {
	Array Expr
	Index Expr
	Value Expr
}

func (e *ArrayAssignExpr) Pos() token.Pos { return e.Array.Pos() }
func (e *ArrayAssignExpr) Valid() bool {
	return e.Array != nil && e.Index != nil && e.Value != nil &&
		e.Array.Valid() && e.Index.Valid() && e.Value.Valid()
}
func (*ArrayAssignExpr) exprNode() {}

// FieldInit is one `name: expr` entry of a StructLiteralExpr.
type FieldInit struct {
	Name  string
	Value Expr
}

// StructLiteralExpr is a name-keyed struct literal.
type StructLiteralExpr struct {
	Start  token.Pos
	Name   string
	Fields []FieldInit
}

func (e *StructLiteralExpr) Pos() token.Pos { return e.Start }
func (e *StructLiteralExpr) Valid() bool {
	for _, f := range e.Fields {
		if f.Value == nil || !f.Value.Valid() {
			return false
		}
	}
	return true
}
func (*StructLiteralExpr) exprNode() {}

// StructAccessExpr is `obj.field` used as a value.
type StructAccessExpr struct {
	Object Expr
	Field  string
}

func (e *StructAccessExpr) Pos() token.Pos { return e.Object.Pos() }
func (e *StructAccessExpr) Valid() bool    { return e.Object != nil && e.Object.Valid() && e.Field != "" }
func (*StructAccessExpr) exprNode()        {}

// StructAssignExpr is `obj.field = value`.
type StructAssignExpr struct {
	Object Expr
	Field  string
	Value  Expr
}

func (e *StructAssignExpr) Pos() token.Pos { return e.Object.Pos() }
func (e *StructAssignExpr) Valid() bool {
	return e.Object != nil && e.Value != nil && e.Field != "" && e.Object.Valid() && e.Value.Valid()
}
func (*StructAssignExpr) exprNode() {}

// BinaryExpr is `left op right` for any of the binary operators in §4.2's
// precedence table (including logical `&&`/`||`).
type BinaryExpr struct {
	Left  Expr
	Op    token.Token
	Right Expr
}

func (e *BinaryExpr) Pos() token.Pos { return e.Left.Pos() }
func (e *BinaryExpr) Valid() bool {
	return e.Left != nil && e.Right != nil && e.Left.Valid() && e.Right.Valid()
}
func (*BinaryExpr) exprNode() {}

// UnaryExpr is `!right`, `-right`, or `~right`.
type UnaryExpr struct {
	Op    token.Token
	Right Expr
}

func (e *UnaryExpr) Pos() token.Pos { return e.Op.Pos }
func (e *UnaryExpr) Valid() bool    { return e.Right != nil && e.Right.Valid() }
func (*UnaryExpr) exprNode()        {}

// AssignExpr is `identifier = value`. Array and struct assignment targets
// have their own node kinds (ArrayAssignExpr, StructAssignExpr) because
// they compile to different opcodes; this node is reserved for the plain
// local/global identifier target.
type AssignExpr struct {
	Target *IdentExpr
	Value  Expr
}

func (e *AssignExpr) Pos() token.Pos { return e.Target.Pos() }
func (e *AssignExpr) Valid() bool {
	return e.Target != nil && e.Value != nil && e.Target.Valid() && e.Value.Valid()
}
func (*AssignExpr) exprNode() {}

// CallExpr is `callee(arg1, ..., argN)`.
type CallExpr struct {
	Callee Expr
	Args   []Expr
}

func (e *CallExpr) Pos() token.Pos { return e.Callee.Pos() }
func (e *CallExpr) Valid() bool {
	if e.Callee == nil || !e.Callee.Valid() {
		return false
	}
	for _, a := range e.Args {
		if a == nil || !a.Valid() {
			return false
		}
	}
	return true
}
func (*CallExpr) exprNode() {}

// ParenExpr is `(expr)`, kept distinct from its inner expression so
// re-rendering source preserves the parentheses; it compiles to exactly
// the same code as its child.
type ParenExpr struct {
	X Expr
}

func (e *ParenExpr) Pos() token.Pos { return e.X.Pos() }
func (e *ParenExpr) Valid() bool    { return e.X != nil && e.X.Valid() }
func (*ParenExpr) exprNode()        {}

// TypeCastExpr is `(type) expr`.
type TypeCastExpr struct {
	Start      token.Pos
	TargetType Type
	X          Expr
}

func (e *TypeCastExpr) Pos() token.Pos { return e.Start }
func (e *TypeCastExpr) Valid() bool    { return e.X != nil && e.X.Valid() }
func (*TypeCastExpr) exprNode()        {}
