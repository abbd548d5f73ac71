// Copyright (c) 2020 Ozan Hacıbekiroğlu.
// Use of this source code is governed by a MIT License
// that can be found in the LICENSE file.

package slvr

import (
	"bytes"
	"fmt"
	"io"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/slvr-lang/slvr/parser"
)

// Instruction is a single VM instruction. Fields which are not listed in
// OpcodeOperands for Op are zero.
type Instruction struct {
	Op   Opcode
	Int  Int128
	Dec  float64
	Str  string
	N    int
	Type Type
}

// MakeInstruction returns an instruction for an opcode and the operands in
// OpcodeOperands order. Int operands accept Int128, Integer, int and int64.
func MakeInstruction(op Opcode, args ...interface{}) (Instruction, error) {
	if op >= numOpcodes {
		return Instruction{}, fmt.Errorf("MakeInstruction: unknown Opcode %d", op)
	}
	operands := OpcodeOperands[op]
	if len(operands) != len(args) {
		return Instruction{}, fmt.Errorf(
			"MakeInstruction: %s expected %d operands, but got %d",
			OpcodeNames[op], len(operands), len(args))
	}

	inst := Instruction{Op: op}
	for i, operand := range operands {
		var ok bool
		switch operand {
		case OperandInt:
			switch v := args[i].(type) {
			case Int128:
				inst.Int, ok = v, true
			case Integer:
				inst.Int, ok = Int128(v), true
			case int:
				inst.Int, ok = Int128From64(int64(v)), true
			case int64:
				inst.Int, ok = Int128From64(v), true
			}
		case OperandDecimal:
			inst.Dec, ok = args[i].(float64)
		case OperandString:
			inst.Str, ok = args[i].(string)
		case OperandBool:
			var b bool
			if b, ok = args[i].(bool); ok && b {
				inst.N = 1
			}
		case OperandN:
			inst.N, ok = args[i].(int)
		case OperandType:
			inst.Type, ok = args[i].(Type)
		}
		if !ok {
			return Instruction{}, fmt.Errorf(
				"MakeInstruction: %s invalid operand %d type %T",
				OpcodeNames[op], i, args[i])
		}
	}
	return inst, nil
}

// MustMakeInstruction is MakeInstruction which panics on error.
func MustMakeInstruction(op Opcode, args ...interface{}) Instruction {
	inst, err := MakeInstruction(op, args...)
	if err != nil {
		panic(err)
	}
	return inst
}

// Cost returns the fuel charged before the instruction executes.
func (inst Instruction) Cost() uint64 {
	switch inst.Op {
	case OpWrite:
		return FuelWrite
	case OpUpdate:
		return FuelUpdate
	case OpDelete:
		return FuelDelete
	case OpConsumeFuel:
		if inst.N > 0 {
			return FuelBaseline + uint64(inst.N)
		}
	}
	return FuelBaseline
}

func (inst Instruction) String() string {
	if inst.Op >= numOpcodes {
		return "Opcode(" + strconv.Itoa(int(inst.Op)) + ")"
	}
	var sb strings.Builder
	sb.WriteString(OpcodeNames[inst.Op])
	for _, operand := range OpcodeOperands[inst.Op] {
		sb.WriteByte(' ')
		switch operand {
		case OperandInt:
			sb.WriteString(inst.Int.String())
		case OperandDecimal:
			sb.WriteString(formatDecimal(inst.Dec))
		case OperandString:
			if inst.Op == OpPushString || inst.Op == OpThrow ||
				!isPlainName(inst.Str) {
				sb.WriteString(quoteString(inst.Str))
			} else {
				sb.WriteString(inst.Str)
			}
		case OperandBool:
			sb.WriteString(strconv.FormatBool(inst.N != 0))
		case OperandN:
			sb.WriteString(strconv.Itoa(inst.N))
		case OperandType:
			if inst.Type == nil {
				sb.WriteString(TAny.String())
			} else {
				sb.WriteString(inst.Type.String())
			}
		}
	}
	return sb.String()
}

// Equal reports whether the instructions have equal opcodes and operands.
func (inst Instruction) Equal(other Instruction) bool {
	if inst.Op != other.Op || inst.Int != other.Int || inst.N != other.N ||
		inst.Str != other.Str {
		return false
	}
	if inst.Dec != other.Dec &&
		!(math.IsNaN(inst.Dec) && math.IsNaN(other.Dec)) {
		return false
	}
	switch {
	case inst.Type == nil && other.Type == nil:
		return true
	case inst.Type == nil || other.Type == nil:
		return false
	}
	return inst.Type.Equal(other.Type)
}

// FormatInstructions returns "NNNN: OPCODE <operands>" lines of insts.
func FormatInstructions(insts []Instruction, posOffset int) []string {
	out := make([]string, len(insts))
	for i := range insts {
		out[i] = fmt.Sprintf("%04d: %s", posOffset+i, insts[i])
	}
	return out
}

// Disassemble returns the listing of insts, one instruction per line.
func Disassemble(insts []Instruction) string {
	var sb strings.Builder
	for _, s := range FormatInstructions(insts, 0) {
		sb.WriteString(s)
		sb.WriteByte('\n')
	}
	return sb.String()
}

// FunctionDef is a compiled function.
type FunctionDef struct {
	Name         string
	Params       []Param
	Ret          Type
	NumLocals    int
	Instructions []Instruction
	Doc          string
}

// Signature returns "name(params) -> ret".
func (fn *FunctionDef) Signature() string {
	params := make([]string, len(fn.Params))
	for i := range fn.Params {
		params[i] = fn.Params[i].String()
	}
	ret := TAny
	if fn.Ret != nil {
		ret = fn.Ret
	}
	return fn.Name + "(" + strings.Join(params, ", ") + ") -> " + ret.String()
}

// Fprint writes the header and the instructions to given Writer.
func (fn *FunctionDef) Fprint(w io.Writer) {
	_, _ = fmt.Fprintf(w, "Function %s\n", fn.Signature())
	_, _ = fmt.Fprintf(w, "Locals:%d\n", fn.NumLocals)
	for _, s := range FormatInstructions(fn.Instructions, 0) {
		_, _ = fmt.Fprintln(w, s)
	}
}

// Bytecode holds the compiled program.
type Bytecode struct {
	FileSet *parser.SourceFileSet
	// Main is the global initializer stream.
	Main []Instruction
	// NumLocals is the number of local slots of Main.
	NumLocals int
	Functions map[string]*FunctionDef
	// Tables maps declared tables to their schema fields.
	Tables map[string]map[string]Type
}

// FunctionNames returns sorted names of the functions.
func (bc *Bytecode) FunctionNames() []string {
	names := make([]string, 0, len(bc.Functions))
	for k := range bc.Functions {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// Fprint writes the main stream and functions to given Writer in a human
// readable form.
func (bc *Bytecode) Fprint(w io.Writer) {
	_, _ = fmt.Fprintln(w, "Bytecode")
	_, _ = fmt.Fprintf(w, "Main Locals:%d\n", bc.NumLocals)
	for _, s := range FormatInstructions(bc.Main, 0) {
		_, _ = fmt.Fprintln(w, s)
	}
	for _, name := range bc.FunctionNames() {
		bc.Functions[name].Fprint(w)
	}
	if len(bc.Tables) > 0 {
		names := make([]string, 0, len(bc.Tables))
		for k := range bc.Tables {
			names = append(names, k)
		}
		sort.Strings(names)
		_, _ = fmt.Fprintln(w, "Tables:")
		for _, name := range names {
			_, _ = fmt.Fprintf(w, "\t%s: schema{%s}\n", name,
				formatFields(bc.Tables[name]))
		}
	}
}

func (bc *Bytecode) String() string {
	var buf bytes.Buffer
	bc.Fprint(&buf)
	return buf.String()
}

// Validate checks that every jump target is in [0, len] of its stream and
// every Call names a function with exactly as many parameters as arguments.
func (bc *Bytecode) Validate() error {
	if err := bc.validateStream("", bc.Main); err != nil {
		return err
	}
	for _, name := range bc.FunctionNames() {
		fn := bc.Functions[name]
		if err := bc.validateStream(name, fn.Instructions); err != nil {
			return err
		}
	}
	return nil
}

func (bc *Bytecode) validateStream(fn string, insts []Instruction) error {
	where := "main"
	if fn != "" {
		where = "function " + fn
	}
	for i, inst := range insts {
		switch {
		case inst.Op >= numOpcodes:
			return ErrCompilation.NewError(fmt.Sprintf(
				"invalid opcode %d at %s:%d", inst.Op, where, i))
		case IsJump(inst.Op):
			if inst.N < 0 || inst.N > len(insts) {
				return ErrCompilation.NewError(fmt.Sprintf(
					"jump target %d out of range at %s:%d", inst.N, where, i))
			}
		case inst.Op == OpCall:
			f, ok := bc.Functions[inst.Str]
			if !ok {
				return &UndefinedFunctionError{Name: inst.Str}
			}
			if len(f.Params) != inst.N {
				return ErrInvalidArgument.NewError(fmt.Sprintf(
					"function '%s' takes %d arguments, called with %d at %s:%d",
					inst.Str, len(f.Params), inst.N, where, i))
			}
		}
	}
	return nil
}

// Equal reports whether bc and other are identical programs. FileSet is
// ignored.
func (bc *Bytecode) Equal(other *Bytecode) bool {
	if bc.NumLocals != other.NumLocals ||
		!instructionsEqual(bc.Main, other.Main) ||
		len(bc.Functions) != len(other.Functions) ||
		len(bc.Tables) != len(other.Tables) {
		return false
	}
	for name, fn := range bc.Functions {
		o, ok := other.Functions[name]
		if !ok || !fn.Equal(o) {
			return false
		}
	}
	for name, fields := range bc.Tables {
		o, ok := other.Tables[name]
		if !ok || !fieldsEqual(fields, o) {
			return false
		}
	}
	return true
}

// Equal reports whether fn and other are identical functions.
func (fn *FunctionDef) Equal(other *FunctionDef) bool {
	if fn.Name != other.Name || fn.NumLocals != other.NumLocals ||
		fn.Doc != other.Doc || len(fn.Params) != len(other.Params) ||
		!instructionsEqual(fn.Instructions, other.Instructions) {
		return false
	}
	if (fn.Ret == nil) != (other.Ret == nil) ||
		(fn.Ret != nil && !fn.Ret.Equal(other.Ret)) {
		return false
	}
	for i := range fn.Params {
		if fn.Params[i].Name != other.Params[i].Name ||
			!fn.Params[i].Type.Equal(other.Params[i].Type) {
			return false
		}
	}
	return true
}

func instructionsEqual(a, b []Instruction) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !a[i].Equal(b[i]) {
			return false
		}
	}
	return true
}

// isPlainName reports whether s is spelled like an identifier.
func isPlainName(s string) bool {
	for i, c := range s {
		switch {
		case 'a' <= c && c <= 'z', 'A' <= c && c <= 'Z', c == '_':
		case i > 0 && ('0' <= c && c <= '9' || c == '-'):
		default:
			return false
		}
	}
	return s != ""
}
