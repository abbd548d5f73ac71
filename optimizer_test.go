package slvr_test

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	. "github.com/slvr-lang/slvr"
)

func TestOptimizer(t *testing.T) {
	expectOptimize(t, insts(
		inst(OpPushInt, 1),
		inst(OpPop),
		inst(OpPushInt, 2),
	), insts(
		inst(OpPushInt, 2),
	))

	// only pushes are removed
	expectOptimize(t, insts(
		inst(OpLoadLocal, 0),
		inst(OpPop),
		inst(OpCall, "f", 0),
		inst(OpPop),
	), insts(
		inst(OpLoadLocal, 0),
		inst(OpPop),
		inst(OpCall, "f", 0),
		inst(OpPop),
	))

	// jump targets are remapped
	expectOptimize(t, insts(
		inst(OpPushBool, true),
		inst(OpJumpIfFalse, 5),
		inst(OpPushInt, 1),
		inst(OpPop),
		inst(OpPushInt, 2),
		inst(OpPushInt, 3),
	), insts(
		inst(OpPushBool, true),
		inst(OpJumpIfFalse, 3),
		inst(OpPushInt, 2),
		inst(OpPushInt, 3),
	))

	// a target at the end of the stream stays at the end
	expectOptimize(t, insts(
		inst(OpPushBool, true),
		inst(OpJumpIfFalse, 4),
		inst(OpPushInt, 1),
		inst(OpPop),
	), insts(
		inst(OpPushBool, true),
		inst(OpJumpIfFalse, 2),
	))

	// a Pop which is a jump target is kept with its push
	expectOptimize(t, insts(
		inst(OpPushInt, 1),
		inst(OpPushBool, true),
		inst(OpJumpIfTrue, 4),
		inst(OpPushInt, 2),
		inst(OpPop),
	), insts(
		inst(OpPushInt, 1),
		inst(OpPushBool, true),
		inst(OpJumpIfTrue, 4),
		inst(OpPushInt, 2),
		inst(OpPop),
	))

	// removals cascade
	expectOptimize(t, insts(
		inst(OpPushInt, 1),
		inst(OpPushString, "a"),
		inst(OpPop),
		inst(OpPop),
	), nil)

	expectOptimize(t, nil, nil)
}

func TestOptimizerStats(t *testing.T) {
	in := insts(
		inst(OpPushInt, 1),
		inst(OpPushNull),
		inst(OpPop),
		inst(OpPop),
	)
	orig := append([]Instruction(nil), in...)

	var trace bytes.Buffer
	opt := NewOptimizer(&trace)
	out := opt.Optimize(in)
	require.Empty(t, out)
	require.Equal(t, 4, opt.Total())
	require.Equal(t, 3, opt.Cycles())
	require.Equal(t, orig, in)
	require.Contains(t, trace.String(), "REMOVE 0001: PushNull; 0002: Pop")
	require.Contains(t, trace.String(), "REMOVE 0000: PushInt 1; 0001: Pop")

	bc := bytecode(insts(
		inst(OpPushInt, 1),
		inst(OpPop),
		inst(OpPushInt, 2),
	), withFunc(&FunctionDef{
		Name: "f",
		Ret:  TInteger,
		Instructions: insts(
			inst(OpPushUnit),
			inst(OpPop),
			inst(OpPushInt, 3),
			inst(OpReturn),
		),
	}))
	trace.Reset()
	opt = OptimizeBytecode(bc, &trace)
	require.Equal(t, 4, opt.Total())
	require.Equal(t, insts(inst(OpPushInt, 2)), bc.Main)
	require.Equal(t, insts(inst(OpPushInt, 3), inst(OpReturn)),
		bc.Functions["f"].Instructions)
	require.Contains(t, trace.String(), "<Optimizer main>")
	require.Contains(t, trace.String(), "<Optimizer function f>")
}

// Optimized and unoptimized programs leave the same result and store.
func TestOptimizerEquivalence(t *testing.T) {
	scripts := []string{
		`1 2 3`,
		`"a" "b" "a" ++ "b"`,
		`let x = 1 x 2`,
		`if true then 1 else 2`,
		`if false then 1`,
		`1 if true then 2 else 3 4`,
		`write "t" "a" 1
		"ignored"
		write "t" "b" [1, 2]
		read "t" "a"`,
		`defun f(x:integer) -> integer { 1 2 x * 2 }
		f(21)`,
		`defconst c:integer = 5
		c c c`,
		`defun pick(b:boolean) -> string if b then "y" else "n"
		let r = [pick(true), pick(false)] r`,
	}
	for _, script := range scripts {
		results := make([]Value, 0, 2)
		snaps := make([]Snapshot, 0, 2)
		fuel := make([]uint64, 0, 2)
		for _, optimize := range []bool{false, true} {
			bc, err := Compile([]byte(script), CompilerOptions{Optimize: optimize})
			require.NoError(t, err, script)
			require.NoError(t, bc.Validate(), script)
			rt := NewRuntime(1_000_000)
			ret, err := NewVM(bc, rt).Run()
			require.NoError(t, err, script)
			results = append(results, ret)
			snaps = append(snaps, rt.Snapshot())
			fuel = append(fuel, rt.FuelUsed())
		}
		requireValue(t, results[0], results[1], script)
		require.True(t, snaps[0].Equal(snaps[1]), script)
		require.LessOrEqual(t, fuel[1], fuel[0], script)
	}
}

func expectOptimize(t *testing.T, in, expected []Instruction) {
	t.Helper()
	got := Optimize(in)
	if len(expected) == 0 {
		require.Empty(t, got)
		return
	}
	require.Equal(t, FormatInstructions(expected, 0),
		FormatInstructions(got, 0))
}
