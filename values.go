// Copyright (c) 2020-2023 Ozan Hacıbekiroğlu.
// Use of this source code is governed by a MIT License
// that can be found in the LICENSE file.

package slvr

import (
	"fmt"
	"math"
	"math/big"
	"sort"
	"strconv"
	"strings"

	"github.com/slvr-lang/slvr/token"
)

// DecimalEpsilon is the relative tolerance of Decimal equality.
const DecimalEpsilon = 2.220446049250313e-16

// Value represents a runtime value.
type Value interface {
	// TypeName should return the name of the type.
	TypeName() string

	// String should return a string representation of the type's value.
	String() string

	// Equal checks equality of values structurally.
	Equal(right Value) bool

	// IsFalsy returns true if value is falsy.
	IsFalsy() bool

	// BinaryOp handles arithmetic and ordering operators. Equality, logical
	// and concatenation operators are handled by the callers for all values.
	BinaryOp(tok token.Token, right Value) (Value, error)

	// IndexGet returns the element of a list or the field of an object.
	IndexGet(index Value) (Value, error)
}

var (
	_ Value = Integer{}
	_ Value = Decimal(0)
	_ Value = String("")
	_ Value = Boolean(false)
	_ Value = List(nil)
	_ Value = Object(nil)
	_ Value = UnitType{}
	_ Value = NullType{}
)

// Singletons of the unit, null and boolean values.
var (
	Unit  = UnitType{}
	Null  = NullType{}
	True  = Boolean(true)
	False = Boolean(false)
)

// valueImpl is embedded in values which do not support operators or
// indexing.
type valueImpl struct{}

func (valueImpl) binaryOp(self Value, tok token.Token, right Value) (Value, error) {
	return nil, NewOperandTypeError(tok.String(), self.TypeName(),
		right.TypeName())
}

func (valueImpl) indexGet(self Value, _ Value) (Value, error) {
	return nil, ErrInvalidArgument.NewError(self.TypeName() +
		" is not indexable")
}

// Integer represents a 128-bit signed integer value.
type Integer Int128

// Int creates an Integer from an int64.
func Int(v int64) Integer {
	return Integer(Int128From64(v))
}

// Int128 returns the underlying integer.
func (o Integer) Int128() Int128 {
	return Int128(o)
}

// TypeName implements Value interface.
func (Integer) TypeName() string {
	return "integer"
}

func (o Integer) String() string {
	return Int128(o).String()
}

// Equal implements Value interface.
func (o Integer) Equal(right Value) bool {
	if v, ok := right.(Integer); ok {
		return o == v
	}
	return false
}

// IsFalsy implements Value interface.
func (o Integer) IsFalsy() bool { return Int128(o).IsZero() }

// BinaryOp implements Value interface.
func (o Integer) BinaryOp(tok token.Token, right Value) (Value, error) {
	switch v := right.(type) {
	case Integer:
		a, b := Int128(o), Int128(v)
		switch tok {
		case token.Add:
			return intResult(a.Add(b))(tok)
		case token.Sub:
			return intResult(a.Sub(b))(tok)
		case token.Mul:
			return intResult(a.Mul(b))(tok)
		case token.Quo:
			if b.IsZero() {
				return nil, ErrDivisionByZero.NewError("division by zero")
			}
			return intResult(a.Quo(b))(tok)
		case token.Rem:
			if b.IsZero() {
				return nil, ErrDivisionByZero.NewError("modulo by zero")
			}
			return Integer(a.Rem(b)), nil
		case token.Pow:
			if b.Sign() < 0 {
				return Decimal(math.Pow(a.Float64(), b.Float64())), nil
			}
			return intResult(a.Pow(b))(tok)
		case token.Less, token.LessEq, token.Greater, token.GreaterEq:
			return compareResult(tok, a.Cmp(b)), nil
		}
	case Decimal:
		if tok == token.Rem {
			return nil, &TypeMismatchError{Expected: "integer",
				Actual: v.TypeName()}
		}
		return Decimal(Int128(o).Float64()).BinaryOp(tok, right)
	}
	return nil, NewOperandTypeError(tok.String(), o.TypeName(),
		right.TypeName())
}

func intResult(r Int128, ok bool) func(token.Token) (Value, error) {
	return func(tok token.Token) (Value, error) {
		if !ok {
			return nil, newIntegerOverflowError(tok.String())
		}
		return Integer(r), nil
	}
}

// IndexGet implements Value interface.
func (o Integer) IndexGet(index Value) (Value, error) {
	return valueImpl{}.indexGet(o, index)
}

// Decimal represents a float64 value.
type Decimal float64

// TypeName implements Value interface.
func (Decimal) TypeName() string {
	return "decimal"
}

func (o Decimal) String() string {
	return formatDecimal(float64(o))
}

// formatDecimal prints f so that it scans back as a decimal literal.
func formatDecimal(f float64) string {
	switch {
	case math.IsNaN(f):
		return "NaN"
	case math.IsInf(f, 1):
		return "+Inf"
	case math.IsInf(f, -1):
		return "-Inf"
	}
	s := strconv.FormatFloat(f, 'f', -1, 64)
	if !strings.ContainsRune(s, '.') {
		s += ".0"
	}
	return s
}

// Equal implements Value interface.
func (o Decimal) Equal(right Value) bool {
	if v, ok := right.(Decimal); ok {
		return decimalEqual(float64(o), float64(v))
	}
	return false
}

func decimalEqual(a, b float64) bool {
	if a == b {
		return true
	}
	scale := math.Max(1, math.Max(math.Abs(a), math.Abs(b)))
	return math.Abs(a-b) <= DecimalEpsilon*scale
}

// IsFalsy implements Value interface.
func (o Decimal) IsFalsy() bool { return o == 0 }

// BinaryOp implements Value interface.
func (o Decimal) BinaryOp(tok token.Token, right Value) (Value, error) {
	var b float64
	switch v := right.(type) {
	case Decimal:
		b = float64(v)
	case Integer:
		b = Int128(v).Float64()
	default:
		return nil, NewOperandTypeError(tok.String(), o.TypeName(),
			right.TypeName())
	}

	a := float64(o)
	switch tok {
	case token.Add:
		return Decimal(a + b), nil
	case token.Sub:
		return Decimal(a - b), nil
	case token.Mul:
		return Decimal(a * b), nil
	case token.Quo:
		if b == 0 {
			return nil, ErrDivisionByZero.NewError("division by zero")
		}
		return Decimal(a / b), nil
	case token.Rem:
		return nil, &TypeMismatchError{Expected: "integer",
			Actual: o.TypeName()}
	case token.Pow:
		return Decimal(math.Pow(a, b)), nil
	case token.Less, token.LessEq, token.Greater, token.GreaterEq:
		c := 0
		if a < b {
			c = -1
		} else if a > b {
			c = 1
		}
		return compareResult(tok, c), nil
	}
	return nil, NewOperandTypeError(tok.String(), o.TypeName(),
		right.TypeName())
}

// IndexGet implements Value interface.
func (o Decimal) IndexGet(index Value) (Value, error) {
	return valueImpl{}.indexGet(o, index)
}

// String represents a string value.
type String string

// TypeName implements Value interface.
func (String) TypeName() string {
	return "string"
}

func (o String) String() string {
	return quoteString(string(o))
}

var stringEscaper = strings.NewReplacer(
	`\`, `\\`, `"`, `\"`, "\n", `\n`, "\t", `\t`, "\r", `\r`,
)

// quoteString quotes s with the escapes understood by the scanner.
func quoteString(s string) string {
	return `"` + stringEscaper.Replace(s) + `"`
}

// Equal implements Value interface.
func (o String) Equal(right Value) bool {
	if v, ok := right.(String); ok {
		return o == v
	}
	return false
}

// IsFalsy implements Value interface.
func (o String) IsFalsy() bool { return len(o) == 0 }

// BinaryOp implements Value interface.
func (o String) BinaryOp(tok token.Token, right Value) (Value, error) {
	if v, ok := right.(String); ok {
		switch tok {
		case token.Less, token.LessEq, token.Greater, token.GreaterEq:
			return compareResult(tok, strings.Compare(string(o), string(v))), nil
		}
	}
	return nil, NewOperandTypeError(tok.String(), o.TypeName(),
		right.TypeName())
}

// IndexGet implements Value interface.
func (o String) IndexGet(index Value) (Value, error) {
	return valueImpl{}.indexGet(o, index)
}

// Boolean represents a boolean value.
type Boolean bool

// TypeName implements Value interface.
func (Boolean) TypeName() string {
	return "boolean"
}

func (o Boolean) String() string {
	if o {
		return "true"
	}
	return "false"
}

// Equal implements Value interface.
func (o Boolean) Equal(right Value) bool {
	if v, ok := right.(Boolean); ok {
		return o == v
	}
	return false
}

// IsFalsy implements Value interface.
func (o Boolean) IsFalsy() bool { return !bool(o) }

// BinaryOp implements Value interface.
func (o Boolean) BinaryOp(tok token.Token, right Value) (Value, error) {
	return valueImpl{}.binaryOp(o, tok, right)
}

// IndexGet implements Value interface.
func (o Boolean) IndexGet(index Value) (Value, error) {
	return valueImpl{}.indexGet(o, index)
}

// List represents an ordered list of values.
type List []Value

// TypeName implements Value interface.
func (List) TypeName() string {
	return "list"
}

func (o List) String() string {
	var sb strings.Builder
	sb.WriteByte('[')
	last := len(o) - 1

	for i := range o {
		sb.WriteString(o[i].String())
		if i != last {
			sb.WriteString(", ")
		}
	}

	sb.WriteByte(']')
	return sb.String()
}

// Copy returns a shallow copy of the list.
func (o List) Copy() List {
	cp := make(List, len(o))
	copy(cp, o)
	return cp
}

// Equal implements Value interface.
func (o List) Equal(right Value) bool {
	v, ok := right.(List)
	if !ok || len(o) != len(v) {
		return false
	}
	for i := range o {
		if !o[i].Equal(v[i]) {
			return false
		}
	}
	return true
}

// IsFalsy implements Value interface.
func (o List) IsFalsy() bool { return len(o) == 0 }

// BinaryOp implements Value interface.
func (o List) BinaryOp(tok token.Token, right Value) (Value, error) {
	return valueImpl{}.binaryOp(o, tok, right)
}

// IndexGet implements Value interface.
func (o List) IndexGet(index Value) (Value, error) {
	i, ok := index.(Integer)
	if !ok {
		return nil, ErrInvalidArgument.NewError(
			"list index must be an integer, found " + index.TypeName())
	}
	n, ok := Int128(i).Int64()
	if !ok || n < 0 || n >= int64(len(o)) {
		return nil, &IndexOutOfBoundsError{Index: i.String(), Length: len(o)}
	}
	return o[n], nil
}

// Object represents a map of string keys to values.
type Object map[string]Value

// TypeName implements Value interface.
func (Object) TypeName() string {
	return "object"
}

// Keys returns the sorted keys.
func (o Object) Keys() []string {
	keys := make([]string, 0, len(o))
	for k := range o {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// String returns the fields sorted by key.
func (o Object) String() string {
	var sb strings.Builder
	sb.WriteByte('{')
	keys := o.Keys()
	last := len(keys) - 1

	for i, k := range keys {
		sb.WriteString(quoteString(k))
		sb.WriteString(": ")
		sb.WriteString(o[k].String())
		if i != last {
			sb.WriteString(", ")
		}
	}

	sb.WriteByte('}')
	return sb.String()
}

// Copy returns a shallow copy of the object.
func (o Object) Copy() Object {
	cp := make(Object, len(o))
	for k, v := range o {
		cp[k] = v
	}
	return cp
}

// Equal implements Value interface.
func (o Object) Equal(right Value) bool {
	v, ok := right.(Object)
	if !ok || len(o) != len(v) {
		return false
	}
	for k, x := range o {
		y, ok := v[k]
		if !ok || !x.Equal(y) {
			return false
		}
	}
	return true
}

// IsFalsy implements Value interface.
func (o Object) IsFalsy() bool { return len(o) == 0 }

// BinaryOp implements Value interface.
func (o Object) BinaryOp(tok token.Token, right Value) (Value, error) {
	return valueImpl{}.binaryOp(o, tok, right)
}

// IndexGet implements Value interface.
func (o Object) IndexGet(index Value) (Value, error) {
	k, ok := index.(String)
	if !ok {
		return nil, ErrInvalidArgument.NewError(
			"object index must be a string, found " + index.TypeName())
	}
	v, ok := o[string(k)]
	if !ok {
		return nil, &KeyNotFoundError{Key: string(k)}
	}
	return v, nil
}

// UnitType represents the unit value "()".
type UnitType struct {
	valueImpl
}

// TypeName implements Value interface.
func (UnitType) TypeName() string {
	return "unit"
}

func (UnitType) String() string {
	return "()"
}

// Equal implements Value interface.
func (UnitType) Equal(right Value) bool {
	_, ok := right.(UnitType)
	return ok
}

// IsFalsy implements Value interface.
func (UnitType) IsFalsy() bool { return true }

// BinaryOp implements Value interface.
func (o UnitType) BinaryOp(tok token.Token, right Value) (Value, error) {
	return o.binaryOp(o, tok, right)
}

// IndexGet implements Value interface.
func (o UnitType) IndexGet(index Value) (Value, error) {
	return o.indexGet(o, index)
}

// NullType represents the null value.
type NullType struct {
	valueImpl
}

// TypeName implements Value interface.
func (NullType) TypeName() string {
	return "null"
}

func (NullType) String() string {
	return "null"
}

// Equal implements Value interface.
func (NullType) Equal(right Value) bool {
	_, ok := right.(NullType)
	return ok
}

// IsFalsy implements Value interface.
func (NullType) IsFalsy() bool { return true }

// BinaryOp implements Value interface.
func (o NullType) BinaryOp(tok token.Token, right Value) (Value, error) {
	return o.binaryOp(o, tok, right)
}

// IndexGet implements Value interface.
func (o NullType) IndexGet(index Value) (Value, error) {
	return o.indexGet(o, index)
}

func compareResult(tok token.Token, c int) Boolean {
	switch tok {
	case token.Less:
		return c < 0
	case token.LessEq:
		return c <= 0
	case token.Greater:
		return c > 0
	}
	return c >= 0
}

// Negate returns -v for numeric values.
func Negate(v Value) (Value, error) {
	switch v := v.(type) {
	case Integer:
		r, ok := Int128(v).Neg()
		if !ok {
			return nil, newIntegerOverflowError("-")
		}
		return Integer(r), nil
	case Decimal:
		return -v, nil
	}
	return nil, ErrTypeMismatch.NewError(
		fmt.Sprintf("unsupported operand type for unary '-': '%s'",
			v.TypeName()))
}

// GetField returns the named field of an object.
func GetField(v Value, name string) (Value, error) {
	o, ok := v.(Object)
	if !ok {
		return nil, ErrInvalidArgument.NewError(
			"field access on " + v.TypeName())
	}
	f, ok := o[name]
	if !ok {
		return nil, &KeyNotFoundError{Key: name}
	}
	return f, nil
}

// SetField returns a copy of the object with the field set.
func SetField(v Value, name string, value Value) (Value, error) {
	o, ok := v.(Object)
	if !ok {
		return nil, ErrInvalidArgument.NewError(
			"field assignment on " + v.TypeName())
	}
	cp := o.Copy()
	cp[name] = value
	return cp, nil
}

// SetIndex returns a copy of a list with the element replaced, or a copy
// of an object with the field set.
func SetIndex(v, index, value Value) (Value, error) {
	switch o := v.(type) {
	case List:
		i, ok := index.(Integer)
		if !ok {
			return nil, ErrInvalidArgument.NewError(
				"list index must be an integer, found " + index.TypeName())
		}
		n, ok := Int128(i).Int64()
		if !ok || n < 0 || n >= int64(len(o)) {
			return nil, &IndexOutOfBoundsError{Index: i.String(),
				Length: len(o)}
		}
		cp := o.Copy()
		cp[n] = value
		return cp, nil
	case Object:
		k, ok := index.(String)
		if !ok {
			return nil, ErrInvalidArgument.NewError(
				"object index must be a string, found " + index.TypeName())
		}
		return SetField(o, string(k), value)
	}
	return nil, ErrInvalidArgument.NewError(
		"index assignment on " + v.TypeName())
}

// ToString returns the concatenation form of v, strings are not quoted.
func ToString(v Value) string {
	if s, ok := v.(String); ok {
		return string(s)
	}
	return v.String()
}

// ToBool returns the truthiness of v.
func ToBool(v Value) bool {
	return !v.IsFalsy()
}

// ToInteger converts numeric, boolean and numeric string values.
func ToInteger(v Value) (Integer, bool) {
	switch v := v.(type) {
	case Integer:
		return v, true
	case Decimal:
		r, ok := Int128FromFloat64(float64(v))
		return Integer(r), ok
	case Boolean:
		if v {
			return Int(1), true
		}
		return Int(0), true
	case String:
		r, err := ParseInt128(strings.TrimSpace(string(v)))
		return Integer(r), err == nil
	}
	return Integer{}, false
}

// ToDecimal converts numeric, boolean and numeric string values.
func ToDecimal(v Value) (Decimal, bool) {
	switch v := v.(type) {
	case Integer:
		return Decimal(Int128(v).Float64()), true
	case Decimal:
		return v, true
	case Boolean:
		if v {
			return 1, true
		}
		return 0, true
	case String:
		f, err := strconv.ParseFloat(strings.TrimSpace(string(v)), 64)
		return Decimal(f), err == nil
	}
	return 0, false
}

// ToValue converts a Go value decoded from YAML or JSON into a Value.
func ToValue(v interface{}) (Value, error) {
	switch v := v.(type) {
	case nil:
		return Null, nil
	case Value:
		return v, nil
	case bool:
		return Boolean(v), nil
	case int:
		return Int(int64(v)), nil
	case int64:
		return Int(v), nil
	case uint64:
		return Integer(Int128FromParts(0, v)), nil
	case *big.Int:
		r, ok := Int128FromBig(v)
		if !ok {
			return nil, ErrInvalidArgument.NewError(
				"integer " + v.String() + " is out of 128-bit range")
		}
		return Integer(r), nil
	case float64:
		return Decimal(v), nil
	case string:
		return String(v), nil
	case []interface{}:
		list := make(List, len(v))
		for i, x := range v {
			e, err := ToValue(x)
			if err != nil {
				return nil, err
			}
			list[i] = e
		}
		return list, nil
	case map[string]interface{}:
		obj := make(Object, len(v))
		for k, x := range v {
			e, err := ToValue(x)
			if err != nil {
				return nil, err
			}
			obj[k] = e
		}
		return obj, nil
	}
	return nil, ErrInvalidArgument.NewError(
		fmt.Sprintf("unsupported Go type %T", v))
}

// ToInterface converts a Value into plain Go values. Integers outside of the
// int64 range become *big.Int, Unit and Null become nil.
func ToInterface(v Value) interface{} {
	switch v := v.(type) {
	case Integer:
		if n, ok := Int128(v).Int64(); ok {
			return n
		}
		return Int128(v).Big()
	case Decimal:
		return float64(v)
	case String:
		return string(v)
	case Boolean:
		return bool(v)
	case List:
		out := make([]interface{}, len(v))
		for i := range v {
			out[i] = ToInterface(v[i])
		}
		return out
	case Object:
		out := make(map[string]interface{}, len(v))
		for k, x := range v {
			out[k] = ToInterface(x)
		}
		return out
	}
	return nil
}
