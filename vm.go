// Copyright (c) 2020 Ozan Hacıbekiroğlu.
// Use of this source code is governed by a MIT License
// that can be found in the LICENSE file.

package slvr

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"

	log "github.com/inconshreveable/log15"
	"go.uber.org/atomic"

	"github.com/slvr-lang/slvr/token"
)

// MaxCallDepth is the default limit of nested function calls.
const MaxCallDepth = 1024

// State is the execution state of a VM.
type State int

// List of VM states
const (
	StateReady State = iota
	StateRunning
	StateCompleted
	StateFaulted
	StateOutOfFuel
)

var stateNames = [...]string{
	StateReady:     "Ready",
	StateRunning:   "Running",
	StateCompleted: "Completed",
	StateFaulted:   "Faulted",
	StateOutOfFuel: "OutOfFuel",
}

func (s State) String() string {
	if s >= 0 && int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// VMOptions represents customizable options of a VM.
type VMOptions struct {
	MaxCallDepth int
	Logger       log.Logger
	// Globals seed the VM globals, like the constants of a previous run.
	Globals map[string]Value
}

// DefaultVMOptions holds default VM options.
var DefaultVMOptions = VMOptions{
	MaxCallDepth: MaxCallDepth,
}

var arithmeticTokens = [...]token.Token{
	OpAdd:          token.Add,
	OpSubtract:     token.Sub,
	OpMultiply:     token.Mul,
	OpDivide:       token.Quo,
	OpModulo:       token.Rem,
	OpPower:        token.Pow,
	OpLess:         token.Less,
	OpLessEqual:    token.LessEq,
	OpGreater:      token.Greater,
	OpGreaterEqual: token.GreaterEq,
}

type frame struct {
	name   string
	insts  []Instruction
	locals []Value
	// retIP is the caller position to resume at.
	retIP int
}

// VM executes the instructions in Bytecode against a Runtime. A VM runs once.
type VM struct {
	abort     *atomic.Bool
	mu        sync.Mutex
	bytecode  *Bytecode
	rt        *Runtime
	functions map[string]*FunctionDef
	globals   map[string]Value
	stack     []Value
	frames    []frame
	curFrame  *frame
	ip        int
	state     State
	fuelUsed  uint64
	maxDepth  int
	noPanic   bool
	log       log.Logger
}

// NewVM creates a VM with DefaultVMOptions.
func NewVM(bc *Bytecode, rt *Runtime) *VM {
	return NewVMWithOptions(bc, rt, DefaultVMOptions)
}

// NewVMWithOptions creates a VM. Functions of bc are loaded into the
// function table and its table schemas are registered to rt.
func NewVMWithOptions(bc *Bytecode, rt *Runtime, opts VMOptions) *VM {
	logger := opts.Logger
	if logger == nil {
		logger = log.New()
		logger.SetHandler(log.DiscardHandler())
	}
	if opts.MaxCallDepth <= 0 {
		opts.MaxCallDepth = MaxCallDepth
	}
	vm := &VM{
		abort:     atomic.NewBool(false),
		bytecode:  bc,
		rt:        rt,
		functions: make(map[string]*FunctionDef),
		globals:   make(map[string]Value, len(opts.Globals)),
		maxDepth:  opts.MaxCallDepth,
		noPanic:   true,
		log:       logger,
	}
	for k, v := range opts.Globals {
		vm.globals[k] = v
	}
	if bc != nil {
		for name, fn := range bc.Functions {
			vm.functions[name] = fn
		}
		if rt != nil {
			rt.RegisterTables(bc.Tables)
		}
	}
	return vm
}

// SetRecover recovers panic when Run panics and returns panic as an
// ErrInternal error. It is enabled by default.
func (vm *VM) SetRecover(v bool) *VM {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	vm.noPanic = v
	return vm
}

// SetLogger sets the logger which receives state transitions and faults at
// debug level.
func (vm *VM) SetLogger(logger log.Logger) *VM {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	vm.log = logger
	return vm
}

// Register adds a function to the function table.
func (vm *VM) Register(fn *FunctionDef) error {
	if fn == nil || fn.Name == "" {
		return ErrInvalidArgument.NewError("invalid function")
	}
	vm.mu.Lock()
	defer vm.mu.Unlock()
	if _, ok := vm.functions[fn.Name]; ok {
		return ErrInvalidArgument.NewError(
			"function '" + fn.Name + "' already registered")
	}
	vm.functions[fn.Name] = fn
	return nil
}

// Abort aborts the VM execution before the next instruction.
func (vm *VM) Abort() {
	vm.abort.Store(true)
}

// State returns the execution state.
func (vm *VM) State() State {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	return vm.state
}

// IP returns the position of the next instruction, or of the failed
// instruction after a fault.
func (vm *VM) IP() int {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	return vm.ip
}

// FuelUsed returns the fuel charged by this VM.
func (vm *VM) FuelUsed() uint64 {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	return vm.fuelUsed
}

// Stack returns a copy of the operand stack.
func (vm *VM) Stack() []Value {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	out := make([]Value, len(vm.stack))
	copy(out, vm.stack)
	return out
}

// Globals returns a copy of the VM globals.
func (vm *VM) Globals() map[string]Value {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	out := make(map[string]Value, len(vm.globals))
	for k, v := range vm.globals {
		out[k] = v
	}
	return out
}

// Run runs the main stream to completion and returns the top of the stack,
// or Unit if the stack is empty.
func (vm *VM) Run() (Value, error) {
	return vm.RunContext(context.Background())
}

// RunContext is Run which aborts when ctx is done.
func (vm *VM) RunContext(ctx context.Context) (Value, error) {
	vm.mu.Lock()
	defer vm.mu.Unlock()

	switch {
	case vm.bytecode == nil:
		return nil, ErrInvalidArgument.NewError("invalid Bytecode")
	case vm.rt == nil:
		return nil, ErrInvalidArgument.NewError("invalid Runtime")
	}
	switch vm.state {
	case StateFaulted, StateOutOfFuel:
		return nil, ErrVMFaulted.NewError("vm is " + vm.state.String())
	case StateCompleted:
		return nil, ErrVMFaulted.NewError("vm already completed")
	}

	if ctx.Err() != nil {
		vm.Abort()
	} else if done := ctx.Done(); done != nil {
		finished := make(chan struct{})
		defer close(finished)
		go func() {
			select {
			case <-done:
				vm.Abort()
			case <-finished:
			}
		}()
	}

	vm.setState(StateRunning)
	vm.frames = append(vm.frames[:0], frame{
		insts:  vm.bytecode.Main,
		locals: make([]Value, vm.bytecode.NumLocals),
	})
	vm.curFrame = &vm.frames[0]
	vm.ip = 0

	var err error
	func() {
		defer func() {
			if vm.noPanic {
				if r := recover(); r != nil {
					err = vm.handlePanic(r)
				}
			}
		}()
		err = vm.run(ctx)
	}()

	if err != nil {
		return nil, err
	}
	vm.setState(StateCompleted)
	if len(vm.stack) == 0 {
		return Unit, nil
	}
	return vm.stack[len(vm.stack)-1], nil
}

func (vm *VM) setState(s State) {
	vm.state = s
	vm.log.Debug("vm state", "state", s, "ip", vm.ip, "fuel", vm.fuelUsed)
}

func (vm *VM) run(ctx context.Context) error {
	for {
		if vm.abort.Load() {
			msg := "aborted"
			if err := ctx.Err(); err != nil {
				msg = err.Error()
			}
			return vm.fault(StateFaulted, ErrVMAborted.NewError(msg))
		}

		if vm.ip >= len(vm.curFrame.insts) {
			if len(vm.frames) == 1 {
				return nil
			}
			vm.popFrame()
			continue
		}

		inst := vm.curFrame.insts[vm.ip]
		cost := inst.Cost()
		if err := vm.rt.ConsumeFuel(cost); err != nil {
			return vm.fault(StateOutOfFuel, err)
		}
		vm.fuelUsed += cost

		ip := vm.ip
		vm.ip++
		if err := vm.exec(inst); err != nil {
			vm.ip = ip
			return vm.fault(StateFaulted, err)
		}
		if vm.ip < 0 {
			// Return from main
			vm.ip = ip + 1
			return nil
		}
	}
}

func (vm *VM) fault(s State, err error) error {
	var inst Instruction
	if vm.ip >= 0 && vm.ip < len(vm.curFrame.insts) {
		inst = vm.curFrame.insts[vm.ip]
	}
	rerr := &RuntimeError{
		Err:         err,
		IP:          vm.ip,
		Instruction: inst,
		Function:    vm.curFrame.name,
	}
	for i := 0; i < len(vm.frames)-1; i++ {
		rerr.Trace = append(rerr.Trace, Frame{
			Function: vm.frames[i].name,
			IP:       vm.frames[i+1].retIP - 1,
		})
	}
	vm.log.Debug("vm fault", "ip", vm.ip, "inst", inst.String(),
		"fuel", vm.fuelUsed, "err", err)
	vm.setState(s)
	return rerr
}

func (vm *VM) handlePanic(r interface{}) error {
	gostack := debug.Stack()
	return vm.fault(StateFaulted, ErrInternal.NewError(
		fmt.Sprintf("panic: %v\nGo Stack:\n%s", r, gostack)))
}

func (vm *VM) push(v Value) {
	vm.stack = append(vm.stack, v)
}

func (vm *VM) pop() (Value, error) {
	n := len(vm.stack)
	if n == 0 {
		return nil, ErrInternal.NewError("stack underflow")
	}
	v := vm.stack[n-1]
	vm.stack[n-1] = nil
	vm.stack = vm.stack[:n-1]
	return v, nil
}

func (vm *VM) pop2() (left, right Value, err error) {
	if right, err = vm.pop(); err != nil {
		return
	}
	left, err = vm.pop()
	return
}

func (vm *VM) popN(n int) ([]Value, error) {
	if n < 0 || n > len(vm.stack) {
		return nil, ErrInternal.NewError("stack underflow")
	}
	start := len(vm.stack) - n
	out := make([]Value, n)
	copy(out, vm.stack[start:])
	for i := start; i < len(vm.stack); i++ {
		vm.stack[i] = nil
	}
	vm.stack = vm.stack[:start]
	return out, nil
}

func (vm *VM) jump(target int) error {
	if target < 0 || target > len(vm.curFrame.insts) {
		return ErrInternal.Errorf("jump target %d out of range", target)
	}
	vm.ip = target
	return nil
}

func (vm *VM) popFrame() {
	retIP := vm.curFrame.retIP
	vm.frames[len(vm.frames)-1] = frame{}
	vm.frames = vm.frames[:len(vm.frames)-1]
	vm.curFrame = &vm.frames[len(vm.frames)-1]
	vm.ip = retIP
}

func (vm *VM) exec(inst Instruction) error {
	switch op := inst.Op; op {
	case OpPushInt:
		vm.push(Integer(inst.Int))
	case OpPushDecimal:
		vm.push(Decimal(inst.Dec))
	case OpPushString:
		vm.push(String(inst.Str))
	case OpPushBool:
		vm.push(Boolean(inst.N != 0))
	case OpPushUnit:
		vm.push(Unit)
	case OpPushNull:
		vm.push(Null)
	case OpPop:
		_, err := vm.pop()
		return err
	case OpDup:
		if len(vm.stack) == 0 {
			return ErrInternal.NewError("stack underflow")
		}
		vm.push(vm.stack[len(vm.stack)-1])
	case OpAdd, OpSubtract, OpMultiply, OpDivide, OpModulo, OpPower,
		OpLess, OpLessEqual, OpGreater, OpGreaterEqual:
		left, right, err := vm.pop2()
		if err != nil {
			return err
		}
		v, err := left.BinaryOp(arithmeticTokens[op], right)
		if err != nil {
			return err
		}
		vm.push(v)
	case OpNegate:
		v, err := vm.pop()
		if err != nil {
			return err
		}
		if v, err = Negate(v); err != nil {
			return err
		}
		vm.push(v)
	case OpEqual, OpNotEqual:
		left, right, err := vm.pop2()
		if err != nil {
			return err
		}
		vm.push(Boolean(left.Equal(right) == (op == OpEqual)))
	case OpAnd, OpOr:
		left, right, err := vm.pop2()
		if err != nil {
			return err
		}
		if op == OpAnd {
			vm.push(Boolean(ToBool(left) && ToBool(right)))
		} else {
			vm.push(Boolean(ToBool(left) || ToBool(right)))
		}
	case OpNot:
		v, err := vm.pop()
		if err != nil {
			return err
		}
		vm.push(Boolean(v.IsFalsy()))
	case OpConcat:
		left, right, err := vm.pop2()
		if err != nil {
			return err
		}
		vm.push(String(ToString(left) + ToString(right)))
	case OpJump:
		return vm.jump(inst.N)
	case OpJumpIfFalse, OpJumpIfTrue:
		cond, err := vm.pop()
		if err != nil {
			return err
		}
		if cond.IsFalsy() == (op == OpJumpIfFalse) {
			return vm.jump(inst.N)
		}
	case OpReturn:
		if len(vm.frames) == 1 {
			vm.ip = -1
			return nil
		}
		vm.popFrame()
	case OpLoadLocal:
		locals := vm.curFrame.locals
		if inst.N < 0 || inst.N >= len(locals) || locals[inst.N] == nil {
			return ErrInternal.Errorf("invalid local slot %d", inst.N)
		}
		vm.push(locals[inst.N])
	case OpStoreLocal:
		if inst.N < 0 {
			return ErrInternal.Errorf("invalid local slot %d", inst.N)
		}
		v, err := vm.pop()
		if err != nil {
			return err
		}
		for inst.N >= len(vm.curFrame.locals) {
			vm.curFrame.locals = append(vm.curFrame.locals, nil)
		}
		vm.curFrame.locals[inst.N] = v
	case OpLoadGlobal:
		if v, ok := vm.globals[inst.Str]; ok {
			vm.push(v)
			return nil
		}
		if v, ok := vm.rt.Read(inst.Str); ok {
			vm.push(v)
			return nil
		}
		return &UndefinedVariableError{Name: inst.Str}
	case OpStoreGlobal:
		v, err := vm.pop()
		if err != nil {
			return err
		}
		vm.globals[inst.Str] = v
	case OpCall:
		return vm.execCall(inst)
	case OpMakeList:
		items, err := vm.popN(inst.N)
		if err != nil {
			return err
		}
		vm.push(List(items))
	case OpMakeObject:
		pairs, err := vm.popN(2 * inst.N)
		if err != nil {
			return err
		}
		obj := make(Object, inst.N)
		for i := len(pairs) - 2; i >= 0; i -= 2 {
			k, ok := pairs[i].(String)
			if !ok {
				return &TypeMismatchError{Expected: "string",
					Actual: pairs[i].TypeName()}
			}
			if _, ok := obj[string(k)]; !ok {
				obj[string(k)] = pairs[i+1]
			}
		}
		vm.push(obj)
	case OpGetField:
		v, err := vm.pop()
		if err != nil {
			return err
		}
		if v, err = GetField(v, inst.Str); err != nil {
			return err
		}
		vm.push(v)
	case OpGetIndex:
		v, index, err := vm.pop2()
		if err != nil {
			return err
		}
		if v, err = v.IndexGet(index); err != nil {
			return err
		}
		vm.push(v)
	case OpSetField:
		obj, v, err := vm.pop2()
		if err != nil {
			return err
		}
		if obj, err = SetField(obj, inst.Str, v); err != nil {
			return err
		}
		vm.push(obj)
	case OpSetIndex:
		args, err := vm.popN(3)
		if err != nil {
			return err
		}
		v, err := SetIndex(args[0], args[1], args[2])
		if err != nil {
			return err
		}
		vm.push(v)
	case OpRead:
		key, err := vm.pop()
		if err != nil {
			return err
		}
		vm.push(vm.rt.ReadRow(inst.Str, key))
	case OpWrite, OpUpdate:
		key, v, err := vm.pop2()
		if err != nil {
			return err
		}
		if op == OpWrite {
			err = vm.rt.WriteRow(inst.Str, key, v)
		} else {
			err = vm.rt.UpdateRow(inst.Str, key, v)
		}
		if err != nil {
			return err
		}
		vm.push(v)
	case OpDelete:
		key, err := vm.pop()
		if err != nil {
			return err
		}
		v, err := vm.rt.DeleteRow(inst.Str, key)
		if err != nil {
			return err
		}
		vm.push(v)
	case OpTypeOf:
		v, err := vm.pop()
		if err != nil {
			return err
		}
		vm.push(String(v.TypeName()))
	case OpCast:
		if len(vm.stack) == 0 {
			return ErrInternal.NewError("stack underflow")
		}
	case OpThrow:
		return ErrThrown.NewError(inst.Str)
	case OpConsumeFuel:
		// charged with the instruction cost
	default:
		return ErrInternal.Errorf("invalid opcode %d", op)
	}
	return nil
}

func (vm *VM) execCall(inst Instruction) error {
	fn, ok := vm.functions[inst.Str]
	if !ok {
		return &UndefinedFunctionError{Name: inst.Str}
	}
	if len(fn.Params) != inst.N {
		return ErrInvalidArgument.Errorf(
			"wrong number of arguments for '%s': want=%d got=%d",
			fn.Name, len(fn.Params), inst.N)
	}
	if depth := len(vm.frames); depth > vm.maxDepth {
		return &RecursionDepthError{Depth: depth}
	}
	args, err := vm.popN(inst.N)
	if err != nil {
		return err
	}

	n := fn.NumLocals
	if n < len(args) {
		n = len(args)
	}
	locals := make([]Value, n)
	copy(locals, args)
	vm.frames = append(vm.frames, frame{
		name:   fn.Name,
		insts:  fn.Instructions,
		locals: locals,
		retIP:  vm.ip,
	})
	vm.curFrame = &vm.frames[len(vm.frames)-1]
	vm.ip = 0
	return nil
}
