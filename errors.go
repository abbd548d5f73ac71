// Copyright (c) 2020-2023 Ozan Hacıbekiroğlu.
// Use of this source code is governed by a MIT License
// that can be found in the LICENSE file.

package slvr

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/slvr-lang/slvr/parser"
)

var (
	// ErrLexer matches lexical errors returned by the parser.
	ErrLexer = parser.ErrLexical

	// ErrParse matches syntax errors returned by the parser.
	ErrParse = parser.ErrSyntax

	// ErrType is the parent of static and dynamic type errors.
	ErrType = &Error{Name: "TypeError"}

	// ErrRuntime is the parent of errors raised while executing a program.
	ErrRuntime = &Error{Name: "RuntimeError"}

	// ErrFuelExceeded represents an exhausted fuel budget.
	ErrFuelExceeded = &Error{Name: "FuelExceededError", Cause: ErrRuntime}

	// ErrRecursionDepthExceeded represents a call or nesting depth overflow.
	ErrRecursionDepthExceeded = &Error{
		Name:  "RecursionDepthExceededError",
		Cause: ErrRuntime,
	}

	// ErrDivisionByZero is an error where divisor is zero.
	ErrDivisionByZero = &Error{Name: "DivisionByZeroError", Cause: ErrRuntime}

	// ErrIndexOutOfBounds represents an out of bounds index error.
	ErrIndexOutOfBounds = &Error{Name: "IndexOutOfBoundsError", Cause: ErrRuntime}

	// ErrKeyNotFound represents a missing object field or store key.
	ErrKeyNotFound = &Error{Name: "KeyNotFoundError", Cause: ErrRuntime}

	// ErrUndefinedVariable represents a reference to an unknown variable.
	ErrUndefinedVariable = &Error{Name: "UndefinedVariableError"}

	// ErrUndefinedFunction represents a call to an unknown function.
	ErrUndefinedFunction = &Error{Name: "UndefinedFunctionError"}

	// ErrUnknownSchema represents a table bound to an unregistered schema.
	ErrUnknownSchema = &Error{Name: "UnknownSchemaError", Cause: ErrType}

	// ErrTypeMismatch represents a value or type that is not the expected one.
	ErrTypeMismatch = &Error{Name: "TypeMismatchError", Cause: ErrType}

	// ErrInvalidArgument represents an invalid operand or argument.
	ErrInvalidArgument = &Error{Name: "InvalidArgumentError"}

	// ErrCompilation represents a malformed program found by the compiler.
	ErrCompilation = &Error{Name: "CompilationError"}

	// ErrIO represents a failure of a storage or file operation.
	ErrIO = &Error{Name: "IOError"}

	// ErrInternal represents a broken internal invariant.
	ErrInternal = &Error{Name: "InternalError"}

	// ErrThrown is returned by the throw intrinsic.
	ErrThrown = &Error{Name: "ThrownError", Cause: ErrRuntime}

	// ErrVMFaulted is returned when a faulted VM is run again.
	ErrVMFaulted = &Error{Name: "VMFaultedError"}

	// ErrVMAborted represents a VM aborted error.
	ErrVMAborted = &Error{Name: "VMAbortedError"}
)

// Error represents an error with a name. Errors created with NewError keep
// the original as their cause so errors.Is matches the sentinel.
type Error struct {
	Name    string
	Message string
	Cause   error
}

func (o *Error) Unwrap() error {
	return o.Cause
}

// Error implements error interface.
func (o *Error) Error() string {
	name := o.Name
	if name == "" {
		name = "error"
	}
	if o.Message == "" {
		return name
	}
	return fmt.Sprintf("%s: %s", name, o.Message)
}

// NewError creates a new Error and sets original Error as its cause which can be unwrapped.
func (o *Error) NewError(messages ...string) *Error {
	return &Error{
		Name:    o.Name,
		Message: strings.Join(messages, " "),
		Cause:   o,
	}
}

// Errorf is NewError with a format string.
func (o *Error) Errorf(format string, args ...interface{}) *Error {
	return o.NewError(fmt.Sprintf(format, args...))
}

// FuelExceededError reports the consumed fuel and the budget.
type FuelExceededError struct {
	Used  uint64
	Limit uint64
}

func (e *FuelExceededError) Error() string {
	return fmt.Sprintf("%s: used %d of limit %d",
		ErrFuelExceeded.Name, e.Used, e.Limit)
}

func (e *FuelExceededError) Unwrap() error { return ErrFuelExceeded }

// RecursionDepthError reports the depth that could not be entered.
type RecursionDepthError struct {
	Depth int
}

func (e *RecursionDepthError) Error() string {
	return fmt.Sprintf("%s: depth %d", ErrRecursionDepthExceeded.Name, e.Depth)
}

func (e *RecursionDepthError) Unwrap() error { return ErrRecursionDepthExceeded }

// IndexOutOfBoundsError reports an index outside of a list.
type IndexOutOfBoundsError struct {
	Index  string
	Length int
}

func (e *IndexOutOfBoundsError) Error() string {
	return fmt.Sprintf("%s: index %s, length %d",
		ErrIndexOutOfBounds.Name, e.Index, e.Length)
}

func (e *IndexOutOfBoundsError) Unwrap() error { return ErrIndexOutOfBounds }

// KeyNotFoundError reports a missing field or store key.
type KeyNotFoundError struct {
	Key string
}

func (e *KeyNotFoundError) Error() string {
	return fmt.Sprintf("%s: %s", ErrKeyNotFound.Name, strconv.Quote(e.Key))
}

func (e *KeyNotFoundError) Unwrap() error { return ErrKeyNotFound }

// UndefinedVariableError reports an unknown variable name.
type UndefinedVariableError struct {
	Name string
}

func (e *UndefinedVariableError) Error() string {
	return fmt.Sprintf("%s: %s", ErrUndefinedVariable.Name, e.Name)
}

func (e *UndefinedVariableError) Unwrap() error { return ErrUndefinedVariable }

// UndefinedFunctionError reports an unknown function name.
type UndefinedFunctionError struct {
	Name string
}

func (e *UndefinedFunctionError) Error() string {
	return fmt.Sprintf("%s: %s", ErrUndefinedFunction.Name, e.Name)
}

func (e *UndefinedFunctionError) Unwrap() error { return ErrUndefinedFunction }

// TypeMismatchError reports the expected and the actual type names.
type TypeMismatchError struct {
	Expected string
	Actual   string
}

func (e *TypeMismatchError) Error() string {
	return fmt.Sprintf("%s: expected %s, found %s",
		ErrTypeMismatch.Name, e.Expected, e.Actual)
}

func (e *TypeMismatchError) Unwrap() error { return ErrTypeMismatch }

// NewOperandTypeError creates a new Error from ErrTypeMismatch.
func NewOperandTypeError(op, leftType, rightType string) *Error {
	return ErrTypeMismatch.NewError(
		fmt.Sprintf("unsupported operand types for '%s': '%s' and '%s'",
			op, leftType, rightType))
}

// NewArgumentTypeError creates a new Error from ErrTypeMismatch.
func NewArgumentTypeError(pos, expectType, foundType string) *Error {
	return ErrTypeMismatch.NewError(
		fmt.Sprintf("invalid type for argument '%s': expected %s, found %s",
			pos, expectType, foundType))
}

func newIntegerOverflowError(op string) *Error {
	return ErrInvalidArgument.NewError("integer overflow in '" + op + "'")
}

// Frame is a call frame position recorded in a RuntimeError trace.
type Frame struct {
	Function string
	IP       int
}

func (f Frame) String() string {
	if f.Function == "" {
		return fmt.Sprintf("<main> ip %d", f.IP)
	}
	return fmt.Sprintf("%s ip %d", f.Function, f.IP)
}

// RuntimeError represents a failure of an executing program. Err is the
// wrapped cause, IP and Instruction locate the failing instruction in the
// stream of Function, empty for the main stream.
type RuntimeError struct {
	Err         error
	IP          int
	Instruction Instruction
	Function    string
	Trace       []Frame
}

func (o *RuntimeError) Unwrap() error {
	return o.Err
}

func (o *RuntimeError) Error() string {
	if o.Err == nil {
		return "<nil>"
	}
	return o.Err.Error()
}

// Format implements fmt.Formater interface.
func (o *RuntimeError) Format(s fmt.State, verb rune) {
	switch verb {
	case 'v', 's':
		_, _ = io.WriteString(s, o.Error())
		if s.Flag('+') {
			_, _ = fmt.Fprintf(s, "\n\tat ip %d (%s)", o.IP, o.Instruction)
			if o.Function != "" {
				_, _ = fmt.Fprintf(s, " in %s", o.Function)
			}
			for i := len(o.Trace) - 1; i >= 0; i-- {
				_, _ = fmt.Fprintf(s, "\n\t   %s", o.Trace[i])
			}
		}
	case 'q':
		_, _ = io.WriteString(s, strconv.Quote(o.Error()))
	}
}
