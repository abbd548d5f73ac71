// Copyright (c) 2020-2023 Ozan Hacıbekiroğlu.
// Use of this source code is governed by a MIT License
// that can be found in the LICENSE file.

package slvr

import (
	"context"
)

// Eval compiles and runs scripts within same session. Constants and
// functions of a successful run are visible to the following runs, and all
// runs share the Runtime.
// Warning: Eval is not safe to use concurrently.
type Eval struct {
	Runtime   *Runtime
	Globals   map[string]Value
	Functions map[string]*FunctionDef
	Opts      CompilerOptions
	VMOpts    VMOptions
	// VM is the VM of the last run.
	VM *VM
}

// NewEval returns new Eval object.
func NewEval(opts CompilerOptions, rt *Runtime) *Eval {
	return &Eval{
		Runtime:   rt,
		Globals:   make(map[string]Value),
		Functions: make(map[string]*FunctionDef),
		Opts:      opts,
		VMOpts:    DefaultVMOptions,
	}
}

// Reset forgets the constants and functions of previous runs. The Runtime is
// kept.
func (r *Eval) Reset() {
	r.Globals = make(map[string]Value)
	r.Functions = make(map[string]*FunctionDef)
	r.VM = nil
}

// Run compiles, runs given script and returns the last value on stack.
func (r *Eval) Run(ctx context.Context, script []byte) (Value, *Bytecode, error) {
	opts := r.Opts
	opts.Globals = make(map[string]Type, len(r.Globals))
	for name, v := range r.Globals {
		opts.Globals[name] = TypeOfValue(v)
	}
	opts.Functions = r.Functions

	bytecode, err := Compile(script, opts)
	if err != nil {
		return nil, nil, err
	}
	for name, fn := range r.Functions {
		if _, ok := bytecode.Functions[name]; !ok {
			bytecode.Functions[name] = fn
		}
	}

	vmOpts := r.VMOpts
	vmOpts.Globals = r.Globals
	r.VM = NewVMWithOptions(bytecode, r.Runtime, vmOpts)

	if ctx == nil {
		ctx = context.Background()
	}
	ret, err := r.run(ctx)
	if err != nil {
		return nil, bytecode, err
	}
	r.Globals = r.VM.Globals()
	for name, fn := range bytecode.Functions {
		r.Functions[name] = fn
	}
	return ret, bytecode, nil
}

func (r *Eval) run(ctx context.Context) (ret Value, err error) {
	ret = Unit
	doneCh := make(chan struct{})
	// Check whether context is done before running VM because compiler may
	// take longer than expected, so use two selects.
	select {
	case <-ctx.Done():
		r.VM.Abort()
		err = ctx.Err()
	default:
		go func() {
			defer close(doneCh)
			ret, err = r.VM.Run()
		}()

		select {
		case <-ctx.Done():
			r.VM.Abort()
			<-doneCh
			if err == nil {
				err = ctx.Err()
			}
		case <-doneCh:
		}
	}
	return
}
