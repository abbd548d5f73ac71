package slvr_test

import (
	"errors"
	"testing"

	log "github.com/inconshreveable/log15"
	"github.com/stretchr/testify/require"

	. "github.com/slvr-lang/slvr"
	"github.com/slvr-lang/slvr/parser"
)

func expectEval(t *testing.T, script string, expect Value) {
	t.Helper()
	ret, err := EvalSource([]byte(script), NewRuntime(1_000_000))
	require.NoError(t, err, "script: %s", script)
	requireValue(t, expect, ret, script)
}

func expectEvalErrIs(t *testing.T, script string, expectErr error) {
	t.Helper()
	_, err := EvalSource([]byte(script), NewRuntime(1_000_000))
	require.Error(t, err, "script: %s", script)
	require.Truef(t, errors.Is(err, expectErr),
		"script: %s\nexpected error: %v, got: %v", script, expectErr, err)
}

func parseFile(t *testing.T, script string) *parser.File {
	t.Helper()
	file, err := parser.Parse("(main)", []byte(script), nil)
	require.NoError(t, err)
	return file
}

func TestEvaluator(t *testing.T) {
	expectEval(t, ``, Unit)
	expectEval(t, `1 + 2 * 3`, Int(7))
	expectEval(t, `-3`, Int(-3))
	expectEval(t, `-(1.5)`, Decimal(-1.5))
	expectEval(t, `2 ^ 3 ^ 2`, Int(512))
	expectEval(t, `"a" ++ 1`, String("a1"))
	expectEval(t, `!true || 1 == 1`, True)
	expectEval(t, `[1, [2]][1][0]`, Int(2))
	expectEval(t, `{a: 1, a: 2}.a`, Int(2))
	expectEval(t, `if 0 then 1 else 2`, Int(2))
	expectEval(t, `if false 1`, Unit)
	expectEval(t, `let x = 10 x + 5`, Int(15))
	expectEval(t, `let x = 1 let x = "s" x`, String("s"))
	expectEval(t, `{let a = 2 let b = 3 a * b}`, Int(6))
	expectEval(t, `typeof({})`, String("object"))
	expectEval(t, `
	defun fact(n:integer) -> integer if n <= 1 then 1 else n * fact(n - 1)
	fact(20)`, Int(2432902008176640000))
	expectEval(t, `
	even(3)
	defun even(n:integer) -> boolean if n == 0 then true else odd(n - 1)
	defun odd(n:integer) -> boolean if n == 0 then false else even(n - 1)
	`, False)
	expectEval(t, `
	module m {
		defun twice(x:integer) -> integer x * 2
	}
	twice(4)`, Int(8))

	expectEvalErrIs(t, `1 / 0`, ErrDivisionByZero)
	expectEvalErrIs(t, `[1][3]`, ErrIndexOutOfBounds)
	expectEvalErrIs(t, `{a: 1}.b`, ErrKeyNotFound)
	expectEvalErrIs(t, `throw("x")`, ErrThrown)
	expectEvalErrIs(t, `throw(1)`, ErrInvalidArgument)
	expectEvalErrIs(t, `typeof(1, 2)`, ErrInvalidArgument)
	expectEvalErrIs(t, `nope`, ErrUndefinedVariable)
	expectEvalErrIs(t, `nope(1)`, ErrUndefinedFunction)
	expectEvalErrIs(t, `(1)(2)`, ErrCompilation)
	expectEvalErrIs(t, `defun f(a:integer) -> integer a
	f(1, 2)`, ErrInvalidArgument)
	expectEvalErrIs(t, `deftable t:missing`, ErrUnknownSchema)
	expectEvalErrIs(t, `defun f() -> integer 1
	defun f() -> integer 2`, ErrCompilation)
	expectEvalErrIs(t, `170141183460469231731687303715884105727 + 1`,
		ErrInvalidArgument)

	// errors are not wrapped in RuntimeError
	_, err := EvalSource([]byte(`1 / 0`), NewRuntime(100))
	var rerr *RuntimeError
	require.False(t, errors.As(err, &rerr))

	_, err = EvalSource([]byte(`1 +`), NewRuntime(100))
	require.True(t, errors.Is(err, ErrParse))
}

func TestEvaluatorGlobals(t *testing.T) {
	rt := NewRuntime(1000)
	e := NewEvaluator(rt)
	ret, err := e.EvalFile(parseFile(t, `
	defconst a:integer = 2
	defconst b:integer = a * 10
	defun sq(x:integer) -> integer x * x
	`))
	require.NoError(t, err)
	requireValue(t, Unit, ret)
	globals := e.Globals()
	requireValue(t, Int(2), globals["a"])
	requireValue(t, Int(20), globals["b"])

	file := parseFile(t, `sq(b)`)
	ret, err = e.EvalExpr(file.Defs[0].(*parser.ExprDef).Expr)
	require.NoError(t, err)
	requireValue(t, Int(400), ret)

	// store keys are visible as variables
	require.NoError(t, rt.Write("limit", Int(5)))
	file = parseFile(t, `limit + a`)
	ret, err = e.EvalExpr(file.Defs[0].(*parser.ExprDef).Expr)
	require.NoError(t, err)
	requireValue(t, Int(7), ret)
}

func TestEvaluatorTables(t *testing.T) {
	rt := NewRuntime(10_000)
	ret, err := NewEvaluator(rt).EvalFile(parseFile(t, `
	defschema account { balance:integer owner:string }
	deftable accounts:account
	write accounts "a" {balance: 10, owner: "o"}
	let a = read accounts "a"
	update accounts "a" {balance: a.balance + 5, owner: a.owner}
	write "free" 1 [1]
	delete "free" 1
	`))
	require.NoError(t, err)
	requireValue(t, List{Int(1)}, ret)
	requireValue(t, Object{"balance": Int(15), "owner": String("o")},
		rt.ReadOr("accounts:a", Null))
	require.False(t, rt.Exists("free:1"))
	_, ok := rt.TableSchema("accounts")
	require.True(t, ok)

	_, err = NewEvaluator(rt).EvalFile(parseFile(t, `
	defschema account { balance:integer owner:string }
	deftable accounts:account
	write accounts "b" {balance: "x", owner: "o"}`))
	require.True(t, errors.Is(err, ErrTypeMismatch))
	require.False(t, rt.Exists("accounts:b"))

	rt = NewRuntime(1000)
	ret, err = EvalSource([]byte(`update "t" "k" {v: 1}`), rt)
	require.NoError(t, err)
	requireValue(t, Object{"v": Int(1)}, ret)
	requireValue(t, Object{"v": Int(1)}, rt.ReadOr("t:k", Null))
}

func TestEvaluatorLimits(t *testing.T) {
	file := parseFile(t, `
	defun down(n:integer) -> integer down(n + 1)
	down(0)`)
	e := NewEvaluator(NewRuntime(1_000_000)).SetMaxDepth(50)
	_, err := e.EvalFile(file)
	var derr *RecursionDepthError
	require.True(t, errors.As(err, &derr))
	require.Equal(t, 51, derr.Depth)

	// the depth is restored after a failure
	file = parseFile(t, `1 + 1`)
	ret, err := e.EvalExpr(file.Defs[0].(*parser.ExprDef).Expr)
	require.NoError(t, err)
	requireValue(t, Int(2), ret)

	rt := NewRuntime(5)
	_, err = EvalSource([]byte(`1 + 2 + 3 + 4 + 5`), rt)
	var ferr *FuelExceededError
	require.True(t, errors.As(err, &ferr))
	require.Equal(t, uint64(5), ferr.Limit)
	require.LessOrEqual(t, rt.FuelUsed(), uint64(5))

	// a write is charged before the store is touched
	rt = NewRuntime(50)
	_, err = EvalSource([]byte(`write "t" "k" 1`), rt)
	require.True(t, errors.Is(err, ErrFuelExceeded))
	require.False(t, rt.Exists("t:k"))
}

func TestEvaluatorLogger(t *testing.T) {
	var calls int
	logger := log.New()
	logger.SetHandler(log.FuncHandler(func(r *log.Record) error {
		if r.Msg == "eval call" {
			calls++
		}
		return nil
	}))
	e := NewEvaluator(NewRuntime(1000)).SetLogger(logger)
	_, err := e.EvalFile(parseFile(t, `
	defun one() -> integer 1
	one() + one()`))
	require.NoError(t, err)
	require.Equal(t, 2, calls)
}
