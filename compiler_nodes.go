// Copyright (c) 2020-2023 Ozan Hacıbekiroğlu.
// Use of this source code is governed by a MIT License
// that can be found in the LICENSE file.

package slvr

import (
	"math/big"

	"github.com/slvr-lang/slvr/parser"
	"github.com/slvr-lang/slvr/token"
)

// Intrinsic names compiled to instructions when no function of the same
// name is declared.
const (
	IntrinsicTypeOf = "typeof"
	IntrinsicThrow  = "throw"
)

var binaryOpcodes = map[token.Token]Opcode{
	token.Add:       OpAdd,
	token.Sub:       OpSubtract,
	token.Mul:       OpMultiply,
	token.Quo:       OpDivide,
	token.Rem:       OpModulo,
	token.Pow:       OpPower,
	token.Equal:     OpEqual,
	token.NotEqual:  OpNotEqual,
	token.Less:      OpLess,
	token.LessEq:    OpLessEqual,
	token.Greater:   OpGreater,
	token.GreaterEq: OpGreaterEqual,
	token.LAnd:      OpAnd,
	token.LOr:       OpOr,
	token.Concat:    OpConcat,
}

// compileExpr emits the instructions of an expression which leave exactly
// one value on the stack and returns its static type, TAny if unknown.
func (c *Compiler) compileExpr(node parser.Expr) (Type, error) {
	if c.trace != nil {
		defer untracec(tracec(c, nodeName(node)))
	}

	switch node := node.(type) {
	case *parser.IntLit:
		v, ok := Int128FromBig(node.Value)
		if !ok {
			return nil, c.error(node, ErrInvalidArgument.NewError(
				"integer literal "+node.Literal+" is out of 128-bit range"))
		}
		c.emit(node, OpPushInt, v)
		return TInteger, nil
	case *parser.DecimalLit:
		c.emit(node, OpPushDecimal, node.Value)
		return TDecimal, nil
	case *parser.StringLit:
		c.emit(node, OpPushString, node.Value)
		return TString, nil
	case *parser.BoolLit:
		c.emit(node, OpPushBool, node.Value)
		return TBoolean, nil
	case *parser.NullLit:
		c.emit(node, OpPushNull)
		return TAny, nil
	case *parser.UnitLit:
		c.emit(node, OpPushUnit)
		return TUnit, nil
	case *parser.Ident:
		sym, ok := c.env.Resolve(node.Name)
		if !ok {
			return nil, c.error(node, &UndefinedVariableError{Name: node.Name})
		}
		if sym.Scope == ScopeLocal {
			c.emit(node, OpLoadLocal, sym.Index)
		} else {
			c.emit(node, OpLoadGlobal, sym.Name)
		}
		return sym.Type, nil
	case *parser.ParenExpr:
		return c.compileExpr(node.Expr)
	case *parser.UnaryExpr:
		return c.compileUnary(node)
	case *parser.BinaryExpr:
		return c.compileBinary(node)
	case *parser.CallExpr:
		return c.compileCall(node)
	case *parser.IfExpr:
		return c.compileIf(node)
	case *parser.LetExpr:
		return c.compileLet(node)
	case *parser.ListLit:
		var elem Type
		for i, e := range node.Elements {
			t, err := c.compileExpr(e)
			if err != nil {
				return nil, err
			}
			if i == 0 {
				elem = t
			} else if !elem.Equal(t) {
				elem = TAny
			}
		}
		if elem == nil {
			elem = TAny
		}
		c.emit(node, OpMakeList, len(node.Elements))
		return &ListType{Elem: elem}, nil
	case *parser.ObjectLit:
		return c.compileObject(node)
	case *parser.FieldExpr:
		t, err := c.compileExpr(node.Expr)
		if err != nil {
			return nil, err
		}
		c.emit(node, OpGetField, node.Field.Name)
		return fieldType(t, node.Field.Name), nil
	case *parser.IndexExpr:
		t, err := c.compileExpr(node.Expr)
		if err != nil {
			return nil, err
		}
		if _, err := c.compileExpr(node.Index); err != nil {
			return nil, err
		}
		c.emit(node, OpGetIndex)
		if l, ok := t.(*ListType); ok {
			return l.Elem, nil
		}
		return TAny, nil
	case *parser.BlockExpr:
		var typ Type = TUnit
		for i, e := range node.Exprs {
			if i > 0 {
				c.emit(node, OpPop)
			}
			t, err := c.compileExpr(e)
			if err != nil {
				return nil, err
			}
			typ = t
		}
		if len(node.Exprs) == 0 {
			c.emit(node, OpPushUnit)
		}
		return typ, nil
	case *parser.ReadExpr:
		if _, err := c.compileExpr(node.Key); err != nil {
			return nil, err
		}
		c.emit(node, OpRead, node.Table.Name)
		return TAny, nil
	case *parser.WriteExpr:
		if _, err := c.compileExpr(node.Key); err != nil {
			return nil, err
		}
		t, err := c.compileExpr(node.Value)
		if err != nil {
			return nil, err
		}
		c.emit(node, OpWrite, node.Table.Name)
		return t, nil
	case *parser.UpdateExpr:
		if _, err := c.compileExpr(node.Key); err != nil {
			return nil, err
		}
		t, err := c.compileObject(node.Fields)
		if err != nil {
			return nil, err
		}
		c.emit(node, OpUpdate, node.Table.Name, len(node.Fields.Elements))
		return t, nil
	case *parser.DeleteExpr:
		if _, err := c.compileExpr(node.Key); err != nil {
			return nil, err
		}
		c.emit(node, OpDelete, node.Table.Name)
		return TAny, nil
	case *parser.BadExpr:
		return nil, c.errorf(node, "bad expression")
	}
	return nil, c.errorf(node, "%[1]T \"%[1]v\" not implemented", node)
}

func (c *Compiler) compileUnary(node *parser.UnaryExpr) (Type, error) {
	if node.Token == token.Sub {
		if lit, ok := node.Expr.(*parser.IntLit); ok {
			v, ok := Int128FromBig(new(big.Int).Neg(lit.Value))
			if !ok {
				return nil, c.error(node, ErrInvalidArgument.NewError(
					"integer literal -"+lit.Literal+
						" is out of 128-bit range"))
			}
			c.emit(node, OpPushInt, v)
			return TInteger, nil
		}
	}

	t, err := c.compileExpr(node.Expr)
	if err != nil {
		return nil, err
	}
	switch node.Token {
	case token.Not:
		c.emit(node, OpNot)
		return TBoolean, nil
	case token.Sub:
		c.emit(node, OpNegate)
		switch t.Kind() {
		case KindInteger, KindDecimal:
			return t, nil
		}
		return TAny, nil
	}
	return nil, c.errorf(node, "invalid unary operator: %s", node.Token.String())
}

func (c *Compiler) compileBinary(node *parser.BinaryExpr) (Type, error) {
	op, ok := binaryOpcodes[node.Token]
	if !ok {
		return nil, c.errorf(node, "invalid binary operator: %s",
			node.Token.String())
	}
	lt, err := c.compileExpr(node.LHS)
	if err != nil {
		return nil, err
	}
	rt, err := c.compileExpr(node.RHS)
	if err != nil {
		return nil, err
	}
	c.emit(node, op)
	return binaryType(op, lt, rt), nil
}

func binaryType(op Opcode, lt, rt Type) Type {
	switch op {
	case OpEqual, OpNotEqual, OpLess, OpLessEqual, OpGreater, OpGreaterEqual,
		OpAnd, OpOr:
		return TBoolean
	case OpConcat:
		return TString
	}
	lk, rk := lt.Kind(), rt.Kind()
	switch {
	case lk == KindInteger && rk == KindInteger:
		if op == OpPower {
			// negative exponents give decimals
			return TAny
		}
		return TInteger
	case op == OpModulo:
		return TAny
	case (lk == KindDecimal && (rk == KindDecimal || rk == KindInteger)) ||
		(rk == KindDecimal && lk == KindInteger):
		return TDecimal
	}
	return TAny
}

func fieldType(t Type, name string) Type {
	var fields map[string]Type
	switch t := t.(type) {
	case *ObjectType:
		fields = t.Fields
	case *SchemaType:
		fields = t.Fields
	}
	if f, ok := fields[name]; ok {
		return f
	}
	return TAny
}

func (c *Compiler) compileObject(node *parser.ObjectLit) (Type, error) {
	fields := make(map[string]Type, len(node.Elements))
	for _, e := range node.Elements {
		c.emit(e, OpPushString, e.Key)
		t, err := c.compileExpr(e.Value)
		if err != nil {
			return nil, err
		}
		fields[e.Key] = t
	}
	c.emit(node, OpMakeObject, len(node.Elements))
	return &ObjectType{Fields: fields}, nil
}

func (c *Compiler) compileCall(node *parser.CallExpr) (Type, error) {
	ident, ok := node.Func.(*parser.Ident)
	if !ok {
		return nil, c.errorf(node, "malformed function call: %s", node.Func)
	}

	sig, ok := c.env.LookupFunc(ident.Name)
	if !ok {
		switch ident.Name {
		case IntrinsicTypeOf:
			return c.compileTypeOf(node)
		case IntrinsicThrow:
			return c.compileThrow(node)
		}
		return nil, c.error(node, &UndefinedFunctionError{Name: ident.Name})
	}

	if len(node.Args) != len(sig.Params) {
		return nil, c.error(node, ErrInvalidArgument.Errorf(
			"wrong number of arguments for '%s': want=%d got=%d",
			ident.Name, len(sig.Params), len(node.Args)))
	}
	for i, arg := range node.Args {
		t, err := c.compileExpr(arg)
		if err != nil {
			return nil, err
		}
		if !t.CompatibleWith(sig.Params[i].Type) {
			return nil, c.error(arg, NewArgumentTypeError(
				sig.Params[i].Name, sig.Params[i].Type.String(), t.String()))
		}
	}
	c.emit(node, OpCall, ident.Name, len(node.Args))
	return sig.Ret, nil
}

func (c *Compiler) compileTypeOf(node *parser.CallExpr) (Type, error) {
	if len(node.Args) != 1 {
		return nil, c.error(node, ErrInvalidArgument.Errorf(
			"wrong number of arguments for '%s': want=1 got=%d",
			IntrinsicTypeOf, len(node.Args)))
	}
	if _, err := c.compileExpr(node.Args[0]); err != nil {
		return nil, err
	}
	c.emit(node, OpTypeOf)
	return TString, nil
}

func (c *Compiler) compileThrow(node *parser.CallExpr) (Type, error) {
	if len(node.Args) != 1 {
		return nil, c.error(node, ErrInvalidArgument.Errorf(
			"wrong number of arguments for '%s': want=1 got=%d",
			IntrinsicThrow, len(node.Args)))
	}
	msg, ok := node.Args[0].(*parser.StringLit)
	if !ok {
		return nil, c.error(node.Args[0], ErrInvalidArgument.NewError(
			"throw requires a string literal"))
	}
	c.emit(node, OpThrow, msg.Value)
	return TAny, nil
}

func (c *Compiler) compileIf(node *parser.IfExpr) (Type, error) {
	open := c.open
	if _, err := c.compileExpr(node.Cond); err != nil {
		return nil, err
	}
	// first jump placeholder
	jumpPos1 := c.emitJump(node, OpJumpIfFalse)
	tt, err := c.compileExpr(node.Then)
	if err != nil {
		return nil, err
	}
	// second jump placeholder
	jumpPos2 := c.emitJump(node, OpJump)
	c.patchJump(jumpPos1)

	var et Type = TUnit
	if node.Else != nil {
		if et, err = c.compileExpr(node.Else); err != nil {
			return nil, err
		}
	} else {
		c.emit(node, OpPushUnit)
	}
	c.patchJump(jumpPos2)

	if c.open != open {
		return nil, c.error(node, ErrInternal.NewError(
			"unresolved jump placeholder"))
	}
	if tt.Equal(et) {
		return tt, nil
	}
	return TAny, nil
}

func (c *Compiler) compileLet(node *parser.LetExpr) (Type, error) {
	vt, err := c.compileExpr(node.Value)
	if err != nil {
		return nil, err
	}
	c.env.PushScope()
	sym := c.env.DefineVar(node.Name.Name, vt)
	c.emit(node, OpStoreLocal, sym.Index)
	bt, err := c.compileExpr(node.Body)
	if err != nil {
		return nil, err
	}
	if err := c.env.PopScope(); err != nil {
		return nil, c.error(node, err)
	}
	return bt, nil
}
