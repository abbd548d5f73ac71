package slvr_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	. "github.com/slvr-lang/slvr"
)

func TestEval(t *testing.T) {
	type scriptResult struct {
		script string
		result Value
	}
	testCases := []struct {
		name   string
		sr     []scriptResult
		global map[string]Value
	}{
		{
			name: "simple",
			sr: []scriptResult{
				{`1 + 2`, Int(3)},
				{`"a" ++ "b"`, String("ab")},
				{``, Unit},
			},
			global: map[string]Value{},
		},
		{
			name: "constants",
			sr: []scriptResult{
				{`defconst a:integer = 1`, Unit},
				{`defconst b:integer = a + 1`, Unit},
				{`a + b`, Int(3)},
			},
			global: map[string]Value{"a": Int(1), "b": Int(2)},
		},
		{
			name: "functions",
			sr: []scriptResult{
				{`defun sq(x:integer) -> integer x * x`, Unit},
				{`sq(3)`, Int(9)},
				{`defun quad(x:integer) -> integer sq(sq(x))`, Unit},
				{`quad(2)`, Int(16)},
			},
			global: map[string]Value{},
		},
		{
			name: "store",
			sr: []scriptResult{
				{`write "t" "k" {n: 1}`, Object{"n": Int(1)}},
				{`read "t" "k"`, Object{"n": Int(1)}},
				{`update "t" "k" {n: 2}`, Object{"n": Int(2)}},
				{`(read "t" "k").n`, Int(2)},
			},
			global: map[string]Value{},
		},
	}
	for _, tC := range testCases {
		t.Run(tC.name, func(t *testing.T) {
			eval := NewEval(DefaultCompilerOptions, NewRuntime(1_000_000))
			for _, sr := range tC.sr {
				ret, bc, err := eval.Run(context.Background(), []byte(sr.script))
				require.NoError(t, err, sr.script)
				require.NotNil(t, bc)
				requireValue(t, sr.result, ret, sr.script)
			}
			require.Equal(t, len(tC.global), len(eval.Globals))
			for k, v := range tC.global {
				requireValue(t, v, eval.Globals[k], k)
			}
		})
	}
}

func TestEvalErrors(t *testing.T) {
	eval := NewEval(DefaultCompilerOptions, NewRuntime(1_000_000))
	_, _, err := eval.Run(context.Background(), []byte(`defconst a:integer = 1`))
	require.NoError(t, err)

	// a failed run does not change the session
	_, bc, err := eval.Run(context.Background(),
		[]byte(`defconst b:integer = 1 / 0`))
	require.True(t, errors.Is(err, ErrDivisionByZero))
	require.NotNil(t, bc)
	require.NotContains(t, eval.Globals, "b")

	_, bc, err = eval.Run(context.Background(), []byte(`a +`))
	require.True(t, errors.Is(err, ErrParse))
	require.Nil(t, bc)

	_, _, err = eval.Run(context.Background(), []byte(`defconst a:integer = 2`))
	require.True(t, errors.Is(err, ErrCompilation))

	ret, _, err := eval.Run(context.Background(), []byte(`a`))
	require.NoError(t, err)
	requireValue(t, Int(1), ret)

	eval.Reset()
	_, _, err = eval.Run(context.Background(), []byte(`a`))
	require.True(t, errors.Is(err, ErrUndefinedVariable))
}

func TestEvalContext(t *testing.T) {
	eval := NewEval(DefaultCompilerOptions, NewRuntime(1_000_000))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, _, err := eval.Run(ctx, []byte(`1`))
	require.True(t, errors.Is(err, context.Canceled))

	ctx, cancel = context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	ret, _, err := eval.Run(ctx, []byte(`1`))
	require.NoError(t, err)
	requireValue(t, Int(1), ret)
	require.Equal(t, StateCompleted, eval.VM.State())
}

func TestRunAndEvalSource(t *testing.T) {
	rt := NewRuntime(1000)
	ret, vm, err := Run(context.Background(),
		[]byte(`defconst x:integer = 6 x * 7`), rt, DefaultCompilerOptions)
	require.NoError(t, err)
	requireValue(t, Int(42), ret)
	requireValue(t, Int(6), vm.Globals()["x"])
	require.Equal(t, vm.FuelUsed(), rt.FuelUsed())

	_, vm, err = Run(context.Background(), []byte(`1 +`), rt,
		DefaultCompilerOptions)
	require.Nil(t, vm)
	require.True(t, errors.Is(err, ErrParse))

	ret, err = EvalSource([]byte(`defconst x:integer = 6 x * 7`),
		NewRuntime(1000))
	require.NoError(t, err)
	requireValue(t, Int(42), ret)
}
