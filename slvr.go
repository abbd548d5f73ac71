// Copyright (c) 2020 Ozan Hacıbekiroğlu.
// Use of this source code is governed by a MIT License
// that can be found in the LICENSE file.

// Package slvr implements a typed and fuel metered scripting language. Source
// is compiled to Bytecode which is executed by a VM against a Runtime, a
// concurrent key value store with a fuel budget. An Evaluator executes the
// AST directly with the same semantics.
package slvr

import (
	"context"

	"github.com/slvr-lang/slvr/parser"
)

// Run compiles src and executes it against rt. The VM is returned with the
// result so callers can inspect its state, fuel and globals.
func Run(ctx context.Context, src []byte, rt *Runtime,
	opts CompilerOptions) (Value, *VM, error) {

	bc, err := Compile(src, opts)
	if err != nil {
		return nil, nil, err
	}
	vm := NewVM(bc, rt)
	if ctx == nil {
		ctx = context.Background()
	}
	ret, err := vm.RunContext(ctx)
	return ret, vm, err
}

// EvalSource parses src and evaluates it with the Evaluator.
func EvalSource(src []byte, rt *Runtime) (Value, error) {
	file, err := parser.Parse("(main)", src, nil)
	if err != nil {
		return nil, err
	}
	return NewEvaluator(rt).EvalFile(file)
}
