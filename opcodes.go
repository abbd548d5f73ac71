// Copyright (c) 2020-2023 Ozan Hacıbekiroğlu.
// Use of this source code is governed by a MIT License
// that can be found in the LICENSE file.

package slvr

// Opcode represents a single byte operation code.
type Opcode = byte

// List of opcodes
const (
	OpPushInt Opcode = iota
	OpPushDecimal
	OpPushString
	OpPushBool
	OpPushUnit
	OpPushNull
	OpPop
	OpDup
	OpAdd
	OpSubtract
	OpMultiply
	OpDivide
	OpModulo
	OpPower
	OpNegate
	OpEqual
	OpNotEqual
	OpLess
	OpLessEqual
	OpGreater
	OpGreaterEqual
	OpAnd
	OpOr
	OpNot
	OpConcat
	OpJump
	OpJumpIfFalse
	OpJumpIfTrue
	OpReturn
	OpLoadLocal
	OpStoreLocal
	OpLoadGlobal
	OpStoreGlobal
	OpCall
	OpMakeList
	OpMakeObject
	OpGetField
	OpGetIndex
	OpSetField
	OpSetIndex
	OpRead
	OpWrite
	OpUpdate
	OpDelete
	OpTypeOf
	OpCast
	OpThrow
	OpConsumeFuel
	numOpcodes
)

// OpcodeNames are string representation of opcodes.
var OpcodeNames = [...]string{
	OpPushInt:      "PushInt",
	OpPushDecimal:  "PushDecimal",
	OpPushString:   "PushString",
	OpPushBool:     "PushBool",
	OpPushUnit:     "PushUnit",
	OpPushNull:     "PushNull",
	OpPop:          "Pop",
	OpDup:          "Dup",
	OpAdd:          "Add",
	OpSubtract:     "Subtract",
	OpMultiply:     "Multiply",
	OpDivide:       "Divide",
	OpModulo:       "Modulo",
	OpPower:        "Power",
	OpNegate:       "Negate",
	OpEqual:        "Equal",
	OpNotEqual:     "NotEqual",
	OpLess:         "Less",
	OpLessEqual:    "LessEqual",
	OpGreater:      "Greater",
	OpGreaterEqual: "GreaterEqual",
	OpAnd:          "And",
	OpOr:           "Or",
	OpNot:          "Not",
	OpConcat:       "Concat",
	OpJump:         "Jump",
	OpJumpIfFalse:  "JumpIfFalse",
	OpJumpIfTrue:   "JumpIfTrue",
	OpReturn:       "Return",
	OpLoadLocal:    "LoadLocal",
	OpStoreLocal:   "StoreLocal",
	OpLoadGlobal:   "LoadGlobal",
	OpStoreGlobal:  "StoreGlobal",
	OpCall:         "Call",
	OpMakeList:     "MakeList",
	OpMakeObject:   "MakeObject",
	OpGetField:     "GetField",
	OpGetIndex:     "GetIndex",
	OpSetField:     "SetField",
	OpSetIndex:     "SetIndex",
	OpRead:         "Read",
	OpWrite:        "Write",
	OpUpdate:       "Update",
	OpDelete:       "Delete",
	OpTypeOf:       "TypeOf",
	OpCast:         "Cast",
	OpThrow:        "Throw",
	OpConsumeFuel:  "ConsumeFuel",
}

// Operand is an Instruction field used by an opcode.
type Operand byte

// List of operands
const (
	OperandInt Operand = iota + 1
	OperandDecimal
	OperandString
	OperandBool
	OperandN
	OperandType
)

// OpcodeOperands lists the Instruction fields of each opcode in print order.
var OpcodeOperands = [...][]Operand{
	OpPushInt:      {OperandInt},
	OpPushDecimal:  {OperandDecimal},
	OpPushString:   {OperandString},
	OpPushBool:     {OperandBool},
	OpPushUnit:     {},
	OpPushNull:     {},
	OpPop:          {},
	OpDup:          {},
	OpAdd:          {},
	OpSubtract:     {},
	OpMultiply:     {},
	OpDivide:       {},
	OpModulo:       {},
	OpPower:        {},
	OpNegate:       {},
	OpEqual:        {},
	OpNotEqual:     {},
	OpLess:         {},
	OpLessEqual:    {},
	OpGreater:      {},
	OpGreaterEqual: {},
	OpAnd:          {},
	OpOr:           {},
	OpNot:          {},
	OpConcat:       {},
	OpJump:         {OperandN}, // position
	OpJumpIfFalse:  {OperandN}, // position
	OpJumpIfTrue:   {OperandN}, // position
	OpReturn:       {},
	OpLoadLocal:    {OperandN}, // local slot
	OpStoreLocal:   {OperandN}, // local slot
	OpLoadGlobal:   {OperandString},
	OpStoreGlobal:  {OperandString},
	OpCall:         {OperandString, OperandN}, // function, number of arguments
	OpMakeList:     {OperandN},                // number of items
	OpMakeObject:   {OperandN},                // number of key value pairs
	OpGetField:     {OperandString},
	OpGetIndex:     {},
	OpSetField:     {OperandString},
	OpSetIndex:     {},
	OpRead:         {OperandString}, // table
	OpWrite:        {OperandString}, // table
	OpUpdate:       {OperandString, OperandN},
	OpDelete:       {OperandString}, // table
	OpTypeOf:       {},
	OpCast:         {OperandType},
	OpThrow:        {OperandString}, // message
	OpConsumeFuel:  {OperandN},      // amount
}

// Fuel costs of instructions.
const (
	FuelBaseline uint64 = 1
	FuelWrite    uint64 = 100
	FuelUpdate   uint64 = 100
	FuelDelete   uint64 = 50
)

// IsJump returns true for opcodes whose N operand is a jump target.
func IsJump(op Opcode) bool {
	return op == OpJump || op == OpJumpIfFalse || op == OpJumpIfTrue
}

// IsPush returns true for opcodes which only push a constant.
func IsPush(op Opcode) bool {
	return op <= OpPushNull
}
