// Copyright (c) 2020-2023 Ozan Hacıbekiroğlu.
// Use of this source code is governed by a MIT License
// that can be found in the LICENSE file.

package parser

import (
	"math/big"
	"strconv"
	"strings"

	"github.com/slvr-lang/slvr/token"
)

// Node represents a node in the AST.
type Node interface {
	// Pos returns the position of first character belonging to the node.
	Pos() Pos
	// End returns the position of first character immediately after the node.
	End() Pos
	// String returns a string representation of the node.
	String() string
}

// Expr represents an expression node in the AST.
type Expr interface {
	Node
	exprNode()
}

// BadExpr represents a bad expression.
type BadExpr struct {
	From Pos
	To   Pos
}

func (e *BadExpr) exprNode() {}

// Pos returns the position of first character belonging to the node.
func (e *BadExpr) Pos() Pos {
	return e.From
}

// End returns the position of first character immediately after the node.
func (e *BadExpr) End() Pos {
	return e.To
}

func (e *BadExpr) String() string {
	return "<bad expression>"
}

// Ident represents an identifier.
type Ident struct {
	Name    string
	NamePos Pos
}

func (e *Ident) exprNode() {}

// Pos returns the position of first character belonging to the node.
func (e *Ident) Pos() Pos {
	return e.NamePos
}

// End returns the position of first character immediately after the node.
func (e *Ident) End() Pos {
	return Pos(int(e.NamePos) + len(e.Name))
}

func (e *Ident) String() string {
	if e != nil {
		return e.Name
	}
	return "<nil>"
}

// IntLit represents an integer literal. Value holds the magnitude of the
// literal, negation is a separate UnaryExpr.
type IntLit struct {
	Value    *big.Int
	ValuePos Pos
	Literal  string
}

func (e *IntLit) exprNode() {}

// Pos returns the position of first character belonging to the node.
func (e *IntLit) Pos() Pos {
	return e.ValuePos
}

// End returns the position of first character immediately after the node.
func (e *IntLit) End() Pos {
	return Pos(int(e.ValuePos) + len(e.Literal))
}

func (e *IntLit) String() string {
	return e.Literal
}

// DecimalLit represents a decimal literal.
type DecimalLit struct {
	Value    float64
	ValuePos Pos
	Literal  string
}

func (e *DecimalLit) exprNode() {}

// Pos returns the position of first character belonging to the node.
func (e *DecimalLit) Pos() Pos {
	return e.ValuePos
}

// End returns the position of first character immediately after the node.
func (e *DecimalLit) End() Pos {
	return Pos(int(e.ValuePos) + len(e.Literal))
}

func (e *DecimalLit) String() string {
	return e.Literal
}

// StringLit represents a string literal.
type StringLit struct {
	Value    string
	ValuePos Pos
	EndPos   Pos
}

func (e *StringLit) exprNode() {}

// Pos returns the position of first character belonging to the node.
func (e *StringLit) Pos() Pos {
	return e.ValuePos
}

// End returns the position of first character immediately after the node.
func (e *StringLit) End() Pos {
	return e.EndPos
}

func (e *StringLit) String() string {
	return strconv.Quote(e.Value)
}

// BoolLit represents a boolean literal.
type BoolLit struct {
	Value    bool
	ValuePos Pos
	Literal  string
}

func (e *BoolLit) exprNode() {}

// Pos returns the position of first character belonging to the node.
func (e *BoolLit) Pos() Pos {
	return e.ValuePos
}

// End returns the position of first character immediately after the node.
func (e *BoolLit) End() Pos {
	return Pos(int(e.ValuePos) + len(e.Literal))
}

func (e *BoolLit) String() string {
	return e.Literal
}

// NullLit represents the null literal.
type NullLit struct {
	TokenPos Pos
}

func (e *NullLit) exprNode() {}

// Pos returns the position of first character belonging to the node.
func (e *NullLit) Pos() Pos {
	return e.TokenPos
}

// End returns the position of first character immediately after the node.
func (e *NullLit) End() Pos {
	return e.TokenPos + 4 // len(null) == 4
}

func (e *NullLit) String() string {
	return "null"
}

// UnitLit represents the unit literal "()".
type UnitLit struct {
	LParen Pos
	RParen Pos
}

func (e *UnitLit) exprNode() {}

// Pos returns the position of first character belonging to the node.
func (e *UnitLit) Pos() Pos {
	return e.LParen
}

// End returns the position of first character immediately after the node.
func (e *UnitLit) End() Pos {
	return e.RParen + 1
}

func (e *UnitLit) String() string {
	return "()"
}

// BinaryExpr represents a binary operator expression.
type BinaryExpr struct {
	LHS      Expr
	RHS      Expr
	Token    token.Token
	TokenPos Pos
}

func (e *BinaryExpr) exprNode() {}

// Pos returns the position of first character belonging to the node.
func (e *BinaryExpr) Pos() Pos {
	return e.LHS.Pos()
}

// End returns the position of first character immediately after the node.
func (e *BinaryExpr) End() Pos {
	return e.RHS.End()
}

func (e *BinaryExpr) String() string {
	return "(" + e.LHS.String() + " " + e.Token.String() +
		" " + e.RHS.String() + ")"
}

// UnaryExpr represents an unary operator expression.
type UnaryExpr struct {
	Expr     Expr
	Token    token.Token
	TokenPos Pos
}

func (e *UnaryExpr) exprNode() {}

// Pos returns the position of first character belonging to the node.
func (e *UnaryExpr) Pos() Pos {
	return e.TokenPos
}

// End returns the position of first character immediately after the node.
func (e *UnaryExpr) End() Pos {
	return e.Expr.End()
}

func (e *UnaryExpr) String() string {
	return "(" + e.Token.String() + e.Expr.String() + ")"
}

// ParenExpr represents a parenthesis wrapped expression.
type ParenExpr struct {
	Expr   Expr
	LParen Pos
	RParen Pos
}

func (e *ParenExpr) exprNode() {}

// Pos returns the position of first character belonging to the node.
func (e *ParenExpr) Pos() Pos {
	return e.LParen
}

// End returns the position of first character immediately after the node.
func (e *ParenExpr) End() Pos {
	return e.RParen + 1
}

func (e *ParenExpr) String() string {
	return "(" + e.Expr.String() + ")"
}

// CallExpr represents a function call expression.
type CallExpr struct {
	Func   Expr
	LParen Pos
	Args   []Expr
	RParen Pos
}

func (e *CallExpr) exprNode() {}

// Pos returns the position of first character belonging to the node.
func (e *CallExpr) Pos() Pos {
	return e.Func.Pos()
}

// End returns the position of first character immediately after the node.
func (e *CallExpr) End() Pos {
	return e.RParen + 1
}

func (e *CallExpr) String() string {
	return e.Func.String() + "(" + joinExprs(e.Args, ", ") + ")"
}

// IfExpr represents an if expression. Else is nil when omitted.
type IfExpr struct {
	IfPos Pos
	Cond  Expr
	Then  Expr
	Else  Expr
}

func (e *IfExpr) exprNode() {}

// Pos returns the position of first character belonging to the node.
func (e *IfExpr) Pos() Pos {
	return e.IfPos
}

// End returns the position of first character immediately after the node.
func (e *IfExpr) End() Pos {
	if e.Else != nil {
		return e.Else.End()
	}
	return e.Then.End()
}

func (e *IfExpr) String() string {
	s := "if " + e.Cond.String() + " then " + e.Then.String()
	if e.Else != nil {
		s += " else " + e.Else.String()
	}
	return s
}

// LetExpr represents a single let binding and its body.
type LetExpr struct {
	LetPos Pos
	Name   *Ident
	Value  Expr
	Body   Expr
}

func (e *LetExpr) exprNode() {}

// Pos returns the position of first character belonging to the node.
func (e *LetExpr) Pos() Pos {
	return e.LetPos
}

// End returns the position of first character immediately after the node.
func (e *LetExpr) End() Pos {
	return e.Body.End()
}

func (e *LetExpr) String() string {
	return "let " + e.Name.String() + " = " + e.Value.String() +
		" " + e.Body.String()
}

// ListLit represents a list literal.
type ListLit struct {
	LBrack   Pos
	Elements []Expr
	RBrack   Pos
}

func (e *ListLit) exprNode() {}

// Pos returns the position of first character belonging to the node.
func (e *ListLit) Pos() Pos {
	return e.LBrack
}

// End returns the position of first character immediately after the node.
func (e *ListLit) End() Pos {
	return e.RBrack + 1
}

func (e *ListLit) String() string {
	return "[" + joinExprs(e.Elements, ", ") + "]"
}

// ObjectElementLit represents a key/value pair of an object literal.
type ObjectElementLit struct {
	Key      string
	KeyPos   Pos
	ColonPos Pos
	Value    Expr
}

// Pos returns the position of first character belonging to the node.
func (e *ObjectElementLit) Pos() Pos {
	return e.KeyPos
}

// End returns the position of first character immediately after the node.
func (e *ObjectElementLit) End() Pos {
	return e.Value.End()
}

func (e *ObjectElementLit) String() string {
	return strconv.Quote(e.Key) + ": " + e.Value.String()
}

// ObjectLit represents an object literal.
type ObjectLit struct {
	LBrace   Pos
	Elements []*ObjectElementLit
	RBrace   Pos
}

func (e *ObjectLit) exprNode() {}

// Pos returns the position of first character belonging to the node.
func (e *ObjectLit) Pos() Pos {
	return e.LBrace
}

// End returns the position of first character immediately after the node.
func (e *ObjectLit) End() Pos {
	return e.RBrace + 1
}

func (e *ObjectLit) String() string {
	var elements []string
	for _, m := range e.Elements {
		elements = append(elements, m.String())
	}
	return "{" + strings.Join(elements, ", ") + "}"
}

// FieldExpr represents a field access expression.
type FieldExpr struct {
	Expr  Expr
	Field *Ident
}

func (e *FieldExpr) exprNode() {}

// Pos returns the position of first character belonging to the node.
func (e *FieldExpr) Pos() Pos {
	return e.Expr.Pos()
}

// End returns the position of first character immediately after the node.
func (e *FieldExpr) End() Pos {
	return e.Field.End()
}

func (e *FieldExpr) String() string {
	return e.Expr.String() + "." + e.Field.String()
}

// IndexExpr represents an index expression.
type IndexExpr struct {
	Expr   Expr
	LBrack Pos
	Index  Expr
	RBrack Pos
}

func (e *IndexExpr) exprNode() {}

// Pos returns the position of first character belonging to the node.
func (e *IndexExpr) Pos() Pos {
	return e.Expr.Pos()
}

// End returns the position of first character immediately after the node.
func (e *IndexExpr) End() Pos {
	return e.RBrack + 1
}

func (e *IndexExpr) String() string {
	return e.Expr.String() + "[" + e.Index.String() + "]"
}

// BlockExpr represents a sequence of expressions, the last one is its value.
type BlockExpr struct {
	LBrace Pos
	Exprs  []Expr
	RBrace Pos
}

func (e *BlockExpr) exprNode() {}

// Pos returns the position of first character belonging to the node.
func (e *BlockExpr) Pos() Pos {
	return e.LBrace
}

// End returns the position of first character immediately after the node.
func (e *BlockExpr) End() Pos {
	return e.RBrace + 1
}

func (e *BlockExpr) String() string {
	return "{ " + joinExprs(e.Exprs, " ") + " }"
}

// TableName is the table operand of a table operation, either an identifier
// or a string literal.
type TableName struct {
	Name    string
	NamePos Pos
	Quoted  bool
}

// Pos returns the position of first character belonging to the node.
func (e *TableName) Pos() Pos {
	return e.NamePos
}

// End returns the position of first character immediately after the node.
func (e *TableName) End() Pos {
	n := len(e.Name)
	if e.Quoted {
		n += 2
	}
	return Pos(int(e.NamePos) + n)
}

func (e *TableName) String() string {
	if e.Quoted {
		return strconv.Quote(e.Name)
	}
	return e.Name
}

// ReadExpr reads the value stored under a key of a table.
type ReadExpr struct {
	TokenPos Pos
	Table    *TableName
	Key      Expr
}

func (e *ReadExpr) exprNode() {}

// Pos returns the position of first character belonging to the node.
func (e *ReadExpr) Pos() Pos {
	return e.TokenPos
}

// End returns the position of first character immediately after the node.
func (e *ReadExpr) End() Pos {
	return e.Key.End()
}

func (e *ReadExpr) String() string {
	return "read " + e.Table.String() + " " + e.Key.String()
}

// WriteExpr stores a value under a key of a table.
type WriteExpr struct {
	TokenPos Pos
	Table    *TableName
	Key      Expr
	Value    Expr
}

func (e *WriteExpr) exprNode() {}

// Pos returns the position of first character belonging to the node.
func (e *WriteExpr) Pos() Pos {
	return e.TokenPos
}

// End returns the position of first character immediately after the node.
func (e *WriteExpr) End() Pos {
	return e.Value.End()
}

func (e *WriteExpr) String() string {
	return "write " + e.Table.String() + " " + e.Key.String() +
		" " + e.Value.String()
}

// UpdateExpr replaces the value under a key with the given fields.
type UpdateExpr struct {
	TokenPos Pos
	Table    *TableName
	Key      Expr
	Fields   *ObjectLit
}

func (e *UpdateExpr) exprNode() {}

// Pos returns the position of first character belonging to the node.
func (e *UpdateExpr) Pos() Pos {
	return e.TokenPos
}

// End returns the position of first character immediately after the node.
func (e *UpdateExpr) End() Pos {
	return e.Fields.End()
}

func (e *UpdateExpr) String() string {
	return "update " + e.Table.String() + " " + e.Key.String() +
		" " + e.Fields.String()
}

// DeleteExpr removes a key from a table.
type DeleteExpr struct {
	TokenPos Pos
	Table    *TableName
	Key      Expr
}

func (e *DeleteExpr) exprNode() {}

// Pos returns the position of first character belonging to the node.
func (e *DeleteExpr) Pos() Pos {
	return e.TokenPos
}

// End returns the position of first character immediately after the node.
func (e *DeleteExpr) End() Pos {
	return e.Key.End()
}

func (e *DeleteExpr) String() string {
	return "delete " + e.Table.String() + " " + e.Key.String()
}

func joinExprs(list []Expr, sep string) string {
	var s []string
	for _, e := range list {
		s = append(s, e.String())
	}
	return strings.Join(s, sep)
}
