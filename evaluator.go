// Copyright (c) 2020-2023 Ozan Hacıbekiroğlu.
// Use of this source code is governed by a MIT License
// that can be found in the LICENSE file.

package slvr

import (
	"math/big"

	log "github.com/inconshreveable/log15"

	"github.com/slvr-lang/slvr/parser"
	"github.com/slvr-lang/slvr/token"
)

// binding is a single let or parameter binding. Lookups walk to the root.
type binding struct {
	name   string
	value  Value
	parent *binding
}

func (b *binding) lookup(name string) (Value, bool) {
	for ; b != nil; b = b.parent {
		if b.name == name {
			return b.value, true
		}
	}
	return nil, false
}

// Evaluator executes the AST directly against a Runtime. It shares the value
// model with the VM so both produce the same results and errors.
type Evaluator struct {
	rt       *Runtime
	funcs    map[string]*parser.FuncDef
	globals  map[string]Value
	maxDepth int
	depth    int
	log      log.Logger
}

// NewEvaluator creates an Evaluator.
func NewEvaluator(rt *Runtime) *Evaluator {
	logger := log.New()
	logger.SetHandler(log.DiscardHandler())
	return &Evaluator{
		rt:       rt,
		funcs:    make(map[string]*parser.FuncDef),
		globals:  make(map[string]Value),
		maxDepth: MaxCallDepth,
		log:      logger,
	}
}

// SetMaxDepth sets the nesting limit of expressions and calls.
func (e *Evaluator) SetMaxDepth(n int) *Evaluator {
	if n > 0 {
		e.maxDepth = n
	}
	return e
}

// SetLogger sets the debug logger.
func (e *Evaluator) SetLogger(logger log.Logger) *Evaluator {
	e.log = logger
	return e
}

// Globals returns a copy of the constants defined so far.
func (e *Evaluator) Globals() map[string]Value {
	out := make(map[string]Value, len(e.globals))
	for k, v := range e.globals {
		out[k] = v
	}
	return out
}

// EvalFile declares the definitions of file, then evaluates constants and
// top level expressions in source order. The value of the last expression is
// returned, or Unit if there is none.
func (e *Evaluator) EvalFile(file *parser.File) (Value, error) {
	c := NewCompiler(file.InputFile, CompilerOptions{})
	if err := c.declare(file); err != nil {
		return nil, err
	}
	e.rt.RegisterTables(c.env.TableSchemas())

	file.Walk(func(def parser.Def, _ *parser.ModuleDef) {
		if fn, ok := def.(*parser.FuncDef); ok {
			e.funcs[fn.Name.Name] = fn
		}
	})

	var result Value = Unit
	var err error
	file.Walk(func(def parser.Def, _ *parser.ModuleDef) {
		if err != nil {
			return
		}
		switch def := def.(type) {
		case *parser.ExprDef:
			var v Value
			if v, err = e.eval(def.Expr, nil); err == nil {
				result = v
			}
		case *parser.ConstDef:
			var v Value
			if v, err = e.eval(def.Value, nil); err == nil {
				e.globals[def.Name.Name] = v
			}
		case *parser.BadDef:
			err = ErrCompilation.NewError("bad definition")
		}
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// EvalExpr evaluates a single expression with the functions and constants
// known to the Evaluator.
func (e *Evaluator) EvalExpr(expr parser.Expr) (Value, error) {
	return e.eval(expr, nil)
}

func (e *Evaluator) charge(n uint64) error {
	return e.rt.ConsumeFuel(n)
}

func (e *Evaluator) enter() error {
	e.depth++
	if e.depth > e.maxDepth {
		return &RecursionDepthError{Depth: e.depth}
	}
	return nil
}

func (e *Evaluator) leave() {
	e.depth--
}

func (e *Evaluator) eval(node parser.Expr, env *binding) (Value, error) {
	if err := e.enter(); err != nil {
		return nil, err
	}
	defer e.leave()

	switch node := node.(type) {
	case *parser.ParenExpr:
		return e.eval(node.Expr, env)
	case *parser.UnaryExpr:
		return e.evalUnary(node, env)
	case *parser.BinaryExpr:
		return e.evalBinary(node, env)
	case *parser.CallExpr:
		return e.evalCall(node, env)
	case *parser.IfExpr:
		return e.evalIf(node, env)
	case *parser.LetExpr:
		v, err := e.eval(node.Value, env)
		if err != nil {
			return nil, err
		}
		if err := e.charge(FuelBaseline); err != nil {
			return nil, err
		}
		return e.eval(node.Body, &binding{name: node.Name.Name, value: v, parent: env})
	case *parser.BlockExpr:
		var v Value = Unit
		for _, x := range node.Exprs {
			var err error
			if v, err = e.eval(x, env); err != nil {
				return nil, err
			}
		}
		return v, nil
	}

	if err := e.charge(FuelBaseline); err != nil {
		return nil, err
	}
	switch node := node.(type) {
	case *parser.IntLit:
		v, ok := Int128FromBig(node.Value)
		if !ok {
			return nil, ErrInvalidArgument.NewError(
				"integer literal " + node.Literal + " is out of 128-bit range")
		}
		return Integer(v), nil
	case *parser.DecimalLit:
		return Decimal(node.Value), nil
	case *parser.StringLit:
		return String(node.Value), nil
	case *parser.BoolLit:
		return Boolean(node.Value), nil
	case *parser.NullLit:
		return Null, nil
	case *parser.UnitLit:
		return Unit, nil
	case *parser.Ident:
		if v, ok := env.lookup(node.Name); ok {
			return v, nil
		}
		if v, ok := e.globals[node.Name]; ok {
			return v, nil
		}
		if v, ok := e.rt.Read(node.Name); ok {
			return v, nil
		}
		return nil, &UndefinedVariableError{Name: node.Name}
	case *parser.ListLit:
		items := make(List, 0, len(node.Elements))
		for _, x := range node.Elements {
			v, err := e.eval(x, env)
			if err != nil {
				return nil, err
			}
			items = append(items, v)
		}
		return items, nil
	case *parser.ObjectLit:
		return e.evalObject(node, env)
	case *parser.FieldExpr:
		v, err := e.eval(node.Expr, env)
		if err != nil {
			return nil, err
		}
		return GetField(v, node.Field.Name)
	case *parser.IndexExpr:
		v, err := e.eval(node.Expr, env)
		if err != nil {
			return nil, err
		}
		index, err := e.eval(node.Index, env)
		if err != nil {
			return nil, err
		}
		return v.IndexGet(index)
	case *parser.ReadExpr:
		key, err := e.eval(node.Key, env)
		if err != nil {
			return nil, err
		}
		return e.rt.ReadRow(node.Table.Name, key), nil
	case *parser.WriteExpr:
		key, err := e.eval(node.Key, env)
		if err != nil {
			return nil, err
		}
		v, err := e.eval(node.Value, env)
		if err != nil {
			return nil, err
		}
		if err := e.charge(FuelWrite - FuelBaseline); err != nil {
			return nil, err
		}
		if err := e.rt.WriteRow(node.Table.Name, key, v); err != nil {
			return nil, err
		}
		return v, nil
	case *parser.UpdateExpr:
		key, err := e.eval(node.Key, env)
		if err != nil {
			return nil, err
		}
		v, err := e.evalObject(node.Fields, env)
		if err != nil {
			return nil, err
		}
		if err := e.charge(FuelUpdate - FuelBaseline); err != nil {
			return nil, err
		}
		if err := e.rt.UpdateRow(node.Table.Name, key, v); err != nil {
			return nil, err
		}
		return v, nil
	case *parser.DeleteExpr:
		key, err := e.eval(node.Key, env)
		if err != nil {
			return nil, err
		}
		if err := e.charge(FuelDelete - FuelBaseline); err != nil {
			return nil, err
		}
		return e.rt.DeleteRow(node.Table.Name, key)
	case *parser.BadExpr:
		return nil, ErrCompilation.NewError("bad expression")
	}
	return nil, ErrInternal.Errorf("%T not implemented", node)
}

func (e *Evaluator) evalObject(node *parser.ObjectLit, env *binding) (Object, error) {
	obj := make(Object, len(node.Elements))
	for _, el := range node.Elements {
		v, err := e.eval(el.Value, env)
		if err != nil {
			return nil, err
		}
		obj[el.Key] = v
	}
	return obj, nil
}

func (e *Evaluator) evalUnary(node *parser.UnaryExpr, env *binding) (Value, error) {
	if node.Token == token.Sub {
		if lit, ok := node.Expr.(*parser.IntLit); ok {
			if err := e.charge(FuelBaseline); err != nil {
				return nil, err
			}
			v, ok := Int128FromBig(new(big.Int).Neg(lit.Value))
			if !ok {
				return nil, ErrInvalidArgument.NewError(
					"integer literal -" + lit.Literal + " is out of 128-bit range")
			}
			return Integer(v), nil
		}
	}
	v, err := e.eval(node.Expr, env)
	if err != nil {
		return nil, err
	}
	if err := e.charge(FuelBaseline); err != nil {
		return nil, err
	}
	switch node.Token {
	case token.Not:
		return Boolean(v.IsFalsy()), nil
	case token.Sub:
		return Negate(v)
	}
	return nil, ErrInvalidArgument.Errorf("invalid unary operator: %s",
		node.Token.String())
}

func (e *Evaluator) evalBinary(node *parser.BinaryExpr, env *binding) (Value, error) {
	left, err := e.eval(node.LHS, env)
	if err != nil {
		return nil, err
	}
	right, err := e.eval(node.RHS, env)
	if err != nil {
		return nil, err
	}
	if err := e.charge(FuelBaseline); err != nil {
		return nil, err
	}
	switch node.Token {
	case token.Equal:
		return Boolean(left.Equal(right)), nil
	case token.NotEqual:
		return Boolean(!left.Equal(right)), nil
	case token.LAnd:
		return Boolean(ToBool(left) && ToBool(right)), nil
	case token.LOr:
		return Boolean(ToBool(left) || ToBool(right)), nil
	case token.Concat:
		return String(ToString(left) + ToString(right)), nil
	case token.Add, token.Sub, token.Mul, token.Quo, token.Rem, token.Pow,
		token.Less, token.LessEq, token.Greater, token.GreaterEq:
		return left.BinaryOp(node.Token, right)
	}
	return nil, ErrInvalidArgument.Errorf("invalid binary operator: %s",
		node.Token.String())
}

func (e *Evaluator) evalIf(node *parser.IfExpr, env *binding) (Value, error) {
	cond, err := e.eval(node.Cond, env)
	if err != nil {
		return nil, err
	}
	if err := e.charge(FuelBaseline); err != nil {
		return nil, err
	}
	if !cond.IsFalsy() {
		return e.eval(node.Then, env)
	}
	if node.Else == nil {
		return Unit, nil
	}
	return e.eval(node.Else, env)
}

func (e *Evaluator) evalCall(node *parser.CallExpr, env *binding) (Value, error) {
	ident, ok := node.Func.(*parser.Ident)
	if !ok {
		return nil, ErrCompilation.NewError("malformed function call: " +
			node.Func.String())
	}
	fn, ok := e.funcs[ident.Name]
	if !ok {
		switch ident.Name {
		case IntrinsicTypeOf:
			if len(node.Args) != 1 {
				break
			}
			v, err := e.eval(node.Args[0], env)
			if err != nil {
				return nil, err
			}
			if err := e.charge(FuelBaseline); err != nil {
				return nil, err
			}
			return String(v.TypeName()), nil
		case IntrinsicThrow:
			if len(node.Args) != 1 {
				break
			}
			msg, ok := node.Args[0].(*parser.StringLit)
			if !ok {
				return nil, ErrInvalidArgument.NewError(
					"throw requires a string literal")
			}
			if err := e.charge(FuelBaseline); err != nil {
				return nil, err
			}
			return nil, ErrThrown.NewError(msg.Value)
		default:
			return nil, &UndefinedFunctionError{Name: ident.Name}
		}
		return nil, ErrInvalidArgument.Errorf(
			"wrong number of arguments for '%s': want=1 got=%d",
			ident.Name, len(node.Args))
	}
	if len(node.Args) != len(fn.Params) {
		return nil, ErrInvalidArgument.Errorf(
			"wrong number of arguments for '%s': want=%d got=%d",
			ident.Name, len(fn.Params), len(node.Args))
	}

	var scope *binding
	for i, arg := range node.Args {
		v, err := e.eval(arg, env)
		if err != nil {
			return nil, err
		}
		scope = &binding{name: fn.Params[i].Name.Name, value: v, parent: scope}
	}
	if err := e.charge(FuelBaseline); err != nil {
		return nil, err
	}
	e.log.Debug("eval call", "fn", ident.Name, "depth", e.depth)
	return e.eval(fn.Body, scope)
}
