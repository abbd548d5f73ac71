// Copyright (c) 2020 Ozan Hacıbekiroğlu.
// Use of this source code is governed by a MIT License
// that can be found in the LICENSE file.

package slvr

import (
	"fmt"
	"io"
	"time"
)

// PeepholeOptimizer removes "Push*; Pop" pairs from instruction streams.
// A pair is kept when its Pop is the target of a jump. Jump targets are
// remapped after every removal cycle.
type PeepholeOptimizer struct {
	count    int
	total    int
	cycles   int
	duration time.Duration
	trace    io.Writer
}

// NewOptimizer creates a PeepholeOptimizer which writes trace output to
// trace if it is not nil.
func NewOptimizer(trace io.Writer) *PeepholeOptimizer {
	return &PeepholeOptimizer{trace: trace}
}

// Optimize is a shorthand for NewOptimizer(nil).Optimize(insts).
func Optimize(insts []Instruction) []Instruction {
	return NewOptimizer(nil).Optimize(insts)
}

// OptimizeBytecode optimizes the main stream and every function of bc in
// place.
func OptimizeBytecode(bc *Bytecode, trace io.Writer) *PeepholeOptimizer {
	opt := NewOptimizer(trace)
	if trace != nil {
		_, _ = fmt.Fprintln(trace, "<Optimizer main>")
	}
	bc.Main = opt.Optimize(bc.Main)
	for _, name := range bc.FunctionNames() {
		fn := bc.Functions[name]
		if trace != nil {
			_, _ = fmt.Fprintf(trace, "<Optimizer function %s>\n", name)
		}
		fn.Instructions = opt.Optimize(fn.Instructions)
	}
	return opt
}

// Total returns the number of removed instructions.
func (opt *PeepholeOptimizer) Total() int {
	return opt.total
}

// Cycles returns the number of passes made over all streams.
func (opt *PeepholeOptimizer) Cycles() int {
	return opt.cycles
}

// Duration returns the total time spent in Optimize.
func (opt *PeepholeOptimizer) Duration() time.Duration {
	return opt.duration
}

// Optimize returns a new stream without removable pairs. insts is not
// modified.
func (opt *PeepholeOptimizer) Optimize(insts []Instruction) []Instruction {
	start := time.Now()
	defer func() { opt.duration += time.Since(start) }()

	out := make([]Instruction, len(insts))
	copy(out, insts)
	for {
		opt.count = 0
		out = opt.cycle(out)
		opt.cycles++
		opt.total += opt.count
		if opt.count == 0 {
			return out
		}
	}
}

func (opt *PeepholeOptimizer) cycle(insts []Instruction) []Instruction {
	targets := make(map[int]struct{})
	for _, inst := range insts {
		if IsJump(inst.Op) {
			targets[inst.N] = struct{}{}
		}
	}

	remove := make([]bool, len(insts))
	for i := 0; i+1 < len(insts); i++ {
		if !IsPush(insts[i].Op) || insts[i+1].Op != OpPop {
			continue
		}
		if _, ok := targets[i+1]; ok {
			continue
		}
		remove[i], remove[i+1] = true, true
		opt.count += 2
		if opt.trace != nil {
			_, _ = fmt.Fprintf(opt.trace, "REMOVE %04d: %s; %04d: %s\n",
				i, insts[i], i+1, insts[i+1])
		}
		i++
	}
	if opt.count == 0 {
		return insts
	}

	// newPos[i] is the position of the first kept instruction at or after i.
	newPos := make([]int, len(insts)+1)
	n := 0
	for i := range insts {
		newPos[i] = n
		if !remove[i] {
			n++
		}
	}
	newPos[len(insts)] = n

	out := make([]Instruction, 0, n)
	for i, inst := range insts {
		if remove[i] {
			continue
		}
		if IsJump(inst.Op) && inst.N >= 0 && inst.N <= len(insts) {
			inst.N = newPos[inst.N]
		}
		out = append(out, inst)
	}
	return out
}
