// Copyright (c) 2020-2023 Ozan Hacıbekiroğlu.
// Use of this source code is governed by a MIT License
// that can be found in the LICENSE file.

package parser

import (
	"strings"
)

// ----------------------------------------------------------------------------
// Definitions

type (
	// Def node represents a top level or module level definition.
	Def interface {
		Node
		defNode()
	}

	// BadDef node is a placeholder for a definition containing syntax errors.
	BadDef struct {
		From, To Pos
	}

	// ModuleDef groups definitions under a module name.
	ModuleDef struct {
		ModulePos Pos
		Name      *Ident
		Doc       *StringLit
		LBrace    Pos
		Body      []Def
		RBrace    Pos
	}

	// FuncDef node represents a defun.
	FuncDef struct {
		DefunPos Pos
		Name     *Ident
		Doc      *StringLit
		LParen   Pos
		Params   []*Param
		RParen   Pos
		Ret      TypeExpr
		Body     Expr
	}

	// Param is a "name:type" pair used by parameters and schema fields.
	Param struct {
		Name *Ident
		Type TypeExpr
	}

	// SchemaDef node represents a defschema.
	SchemaDef struct {
		DefPos Pos
		Name   *Ident
		Doc    *StringLit
		LBrace Pos
		Fields []*Param
		RBrace Pos
	}

	// TableDef node represents a deftable bound to a schema.
	TableDef struct {
		DefPos Pos
		Name   *Ident
		Schema *Ident
		Doc    *StringLit
	}

	// ConstDef node represents a defconst.
	ConstDef struct {
		DefPos Pos
		Name   *Ident
		Type   TypeExpr
		Value  Expr
	}

	// ExprDef wraps an expression written at the top level.
	ExprDef struct {
		Expr Expr
	}
)

func (*BadDef) defNode()    {}
func (*ModuleDef) defNode() {}
func (*FuncDef) defNode()   {}
func (*SchemaDef) defNode() {}
func (*TableDef) defNode()  {}
func (*ConstDef) defNode()  {}
func (*ExprDef) defNode()   {}

// Pos returns the position of first character belonging to the node.
func (d *BadDef) Pos() Pos { return d.From }

// Pos returns the position of first character belonging to the node.
func (d *ModuleDef) Pos() Pos { return d.ModulePos }

// Pos returns the position of first character belonging to the node.
func (d *FuncDef) Pos() Pos { return d.DefunPos }

// Pos returns the position of first character belonging to the node.
func (d *SchemaDef) Pos() Pos { return d.DefPos }

// Pos returns the position of first character belonging to the node.
func (d *TableDef) Pos() Pos { return d.DefPos }

// Pos returns the position of first character belonging to the node.
func (d *ConstDef) Pos() Pos { return d.DefPos }

// Pos returns the position of first character belonging to the node.
func (d *ExprDef) Pos() Pos { return d.Expr.Pos() }

// Pos returns the position of first character belonging to the node.
func (p *Param) Pos() Pos { return p.Name.Pos() }

// End returns the position of first character immediately after the node.
func (d *BadDef) End() Pos { return d.To }

// End returns the position of first character immediately after the node.
func (d *ModuleDef) End() Pos { return d.RBrace + 1 }

// End returns the position of first character immediately after the node.
func (d *FuncDef) End() Pos { return d.Body.End() }

// End returns the position of first character immediately after the node.
func (d *SchemaDef) End() Pos { return d.RBrace + 1 }

// End returns the position of first character immediately after the node.
func (d *TableDef) End() Pos {
	if d.Doc != nil {
		return d.Doc.End()
	}
	return d.Schema.End()
}

// End returns the position of first character immediately after the node.
func (d *ConstDef) End() Pos { return d.Value.End() }

// End returns the position of first character immediately after the node.
func (d *ExprDef) End() Pos { return d.Expr.End() }

// End returns the position of first character immediately after the node.
func (p *Param) End() Pos { return p.Type.End() }

func (d *BadDef) String() string { return "<bad definition>" }

func (d *ModuleDef) String() string {
	var defs []string
	for _, def := range d.Body {
		defs = append(defs, def.String())
	}
	return "module " + d.Name.String() + docString(d.Doc) +
		" { " + strings.Join(defs, "; ") + " }"
}

func (d *FuncDef) String() string {
	return "defun " + d.Name.String() + docString(d.Doc) +
		"(" + joinParams(d.Params) + ") -> " + d.Ret.String() +
		" " + d.Body.String()
}

func (d *SchemaDef) String() string {
	return "defschema " + d.Name.String() + docString(d.Doc) +
		" {" + joinParams(d.Fields) + "}"
}

func (d *TableDef) String() string {
	return "deftable " + d.Name.String() + ":" + d.Schema.String() +
		docString(d.Doc)
}

func (d *ConstDef) String() string {
	return "defconst " + d.Name.String() + ":" + d.Type.String() +
		" = " + d.Value.String()
}

func (d *ExprDef) String() string { return d.Expr.String() }

func (p *Param) String() string {
	return p.Name.String() + ":" + p.Type.String()
}

// ----------------------------------------------------------------------------
// Type annotations

type (
	// TypeExpr node represents a type annotation.
	TypeExpr interface {
		Node
		typeNode()
	}

	// NamedType is a builtin type name or a schema name.
	NamedType struct {
		Name    string
		NamePos Pos
	}

	// ListType represents "[T]".
	ListType struct {
		LBrack Pos
		Elem   TypeExpr
		RBrack Pos
	}

	// ObjectType represents "object{f:T, ...}".
	ObjectType struct {
		ObjectPos Pos
		LBrace    Pos
		Fields    []*Param
		RBrace    Pos
	}
)

func (*NamedType) typeNode()  {}
func (*ListType) typeNode()   {}
func (*ObjectType) typeNode() {}

// Pos returns the position of first character belonging to the node.
func (t *NamedType) Pos() Pos { return t.NamePos }

// Pos returns the position of first character belonging to the node.
func (t *ListType) Pos() Pos { return t.LBrack }

// Pos returns the position of first character belonging to the node.
func (t *ObjectType) Pos() Pos { return t.ObjectPos }

// End returns the position of first character immediately after the node.
func (t *NamedType) End() Pos { return Pos(int(t.NamePos) + len(t.Name)) }

// End returns the position of first character immediately after the node.
func (t *ListType) End() Pos { return t.RBrack + 1 }

// End returns the position of first character immediately after the node.
func (t *ObjectType) End() Pos { return t.RBrace + 1 }

func (t *NamedType) String() string { return t.Name }

func (t *ListType) String() string { return "[" + t.Elem.String() + "]" }

func (t *ObjectType) String() string {
	return "object{" + joinParams(t.Fields) + "}"
}

func joinParams(params []*Param) string {
	var s []string
	for _, p := range params {
		s = append(s, p.String())
	}
	return strings.Join(s, ", ")
}

func docString(doc *StringLit) string {
	if doc == nil {
		return ""
	}
	return " " + doc.String()
}
