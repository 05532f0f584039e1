package ast

import "github.com/sbsvm/sbs/lang/token"

// Stmt is implemented by every statement node.
type Stmt interface {
	Pos() token.Pos
	Valid() bool
	stmtNode()
}

// ExprStmt is an expression evaluated for its side effects, e.g. a bare
// call or assignment followed by `;`.
type ExprStmt struct {
	X Expr
}

func (s *ExprStmt) Pos() token.Pos { return s.X.Pos() }
func (s *ExprStmt) Valid() bool    { return s.X != nil && s.X.Valid() }
func (*ExprStmt) stmtNode()        {}

// VarDeclStmt is `type name (= init)? ;`.
type VarDeclStmt struct {
	Start token.Pos
	Type  Type
	Name  string
	Init  Expr // nil if no initializer
}

func (s *VarDeclStmt) Pos() token.Pos { return s.Start }
func (s *VarDeclStmt) Valid() bool {
	if s.Name == "" {
		return false
	}
	return s.Init == nil || s.Init.Valid()
}
func (*VarDeclStmt) stmtNode() {}

// BlockStmt is `{ stmt* }`.
type BlockStmt struct {
	Lbrace token.Pos
	Stmts  []Stmt
}

func (s *BlockStmt) Pos() token.Pos { return s.Lbrace }
func (s *BlockStmt) Valid() bool {
	for _, st := range s.Stmts {
		if st == nil || !st.Valid() {
			return false
		}
	}
	return true
}
func (*BlockStmt) stmtNode() {}

// IfStmt is `if (cond) then (else elseBranch)?`.
type IfStmt struct {
	Start token.Pos
	Cond  Expr
	Then  Stmt
	Else  Stmt // nil if no else branch
}

func (s *IfStmt) Pos() token.Pos { return s.Start }
func (s *IfStmt) Valid() bool {
	if s.Cond == nil || s.Then == nil || !s.Cond.Valid() || !s.Then.Valid() {
		return false
	}
	return s.Else == nil || s.Else.Valid()
}
func (*IfStmt) stmtNode() {}

// WhileStmt is `while (cond) body`.
type WhileStmt struct {
	Start token.Pos
	Cond  Expr
	Body  Stmt
}

func (s *WhileStmt) Pos() token.Pos { return s.Start }
func (s *WhileStmt) Valid() bool {
	return s.Cond != nil && s.Body != nil && s.Cond.Valid() && s.Body.Valid()
}
func (*WhileStmt) stmtNode() {}

// ForStmt is `for (init; cond; incr) body`; each clause is optional.
type ForStmt struct {
	Start token.Pos
	Init  Stmt // nil if omitted
	Cond  Expr // nil if omitted
	Incr  Expr // nil if omitted
	Body  Stmt
}

func (s *ForStmt) Pos() token.Pos { return s.Start }
func (s *ForStmt) Valid() bool {
	if s.Body == nil || !s.Body.Valid() {
		return false
	}
	if s.Init != nil && !s.Init.Valid() {
		return false
	}
	if s.Cond != nil && !s.Cond.Valid() {
		return false
	}
	if s.Incr != nil && !s.Incr.Valid() {
		return false
	}
	return true
}
func (*ForStmt) stmtNode() {}

// SwitchCase is one `case expr: stmt*` arm of a SwitchStmt.
type SwitchCase struct {
	Value Expr
	Body  []Stmt
}

// SwitchStmt is `switch (tag) { case ...: ... default: ... }`.
type SwitchStmt struct {
	Start   token.Pos
	Tag     Expr
	Cases   []SwitchCase
	Default []Stmt // nil if no default clause
}

func (s *SwitchStmt) Pos() token.Pos { return s.Start }
func (s *SwitchStmt) Valid() bool {
	if s.Tag == nil || !s.Tag.Valid() {
		return false
	}
	for _, c := range s.Cases {
		if c.Value == nil || !c.Value.Valid() {
			return false
		}
		for _, st := range c.Body {
			if st == nil || !st.Valid() {
				return false
			}
		}
	}
	for _, st := range s.Default {
		if st == nil || !st.Valid() {
			return false
		}
	}
	return true
}
func (*SwitchStmt) stmtNode() {}

// ReturnStmt is `return expr? ;`.
type ReturnStmt struct {
	Start token.Pos
	Value Expr // nil for a bare `return;`
}

func (s *ReturnStmt) Pos() token.Pos { return s.Start }
func (s *ReturnStmt) Valid() bool    { return s.Value == nil || s.Value.Valid() }
func (*ReturnStmt) stmtNode()        {}

// BreakStmt is `break;`.
type BreakStmt struct{ Start token.Pos }

func (s *BreakStmt) Pos() token.Pos { return s.Start }
func (s *BreakStmt) Valid() bool    { return true }
func (*BreakStmt) stmtNode()        {}

// ContinueStmt is `continue;`.
type ContinueStmt struct{ Start token.Pos }

func (s *ContinueStmt) Pos() token.Pos { return s.Start }
func (s *ContinueStmt) Valid() bool    { return true }
func (*ContinueStmt) stmtNode()        {}

// ImportStmt is `import "path";`.
type ImportStmt struct {
	Start token.Pos
	Path  string
}

func (s *ImportStmt) Pos() token.Pos { return s.Start }
func (s *ImportStmt) Valid() bool    { return s.Path != "" }
func (*ImportStmt) stmtNode()        {}

// Param is one `type name` entry of a FuncDecl's parameter list.
type Param struct {
	Type Type
	Name string
}

// FuncDecl is a top-level function declaration.
type FuncDecl struct {
	Start      token.Pos
	Name       string
	Params     []Param
	Body       *BlockStmt
	ReturnType Type // defaults to Void when omitted by the parser
}

func (d *FuncDecl) Pos() token.Pos { return d.Start }
func (d *FuncDecl) Valid() bool {
	return d.Name != "" && d.Body != nil && d.Body.Valid()
}

// Program is the top-level node: the function declarations and the
// top-level statements that run at script startup, in source order
// relative to each other (a call to a function declared later in the
// same file is still resolved, since the compiler emits function bodies
// after all top-level code regardless of declaration order — see
// DESIGN.md).
type Program struct {
	Funcs []*FuncDecl
	Stmts []Stmt
}

func (p *Program) Valid() bool {
	for _, f := range p.Funcs {
		if f == nil || !f.Valid() {
			return false
		}
	}
	for _, s := range p.Stmts {
		if s == nil || !s.Valid() {
			return false
		}
	}
	return true
}
