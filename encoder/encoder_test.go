package encoder_test

import (
	"bytes"
	"io"
	"math"
	"strconv"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/slvr-lang/slvr"

	. "github.com/slvr-lang/slvr/encoder"
)

var testValues = []slvr.Value{
	slvr.Unit,
	slvr.Null,
	slvr.True,
	slvr.False,
	slvr.Int(0), slvr.Int(-1), slvr.Int(1), slvr.Int(math.MaxInt64),
	slvr.Integer(slvr.MaxInt128), slvr.Integer(slvr.MinInt128),
	slvr.Integer(slvr.Int128FromParts(-2, 1<<63)),
	slvr.Decimal(0), slvr.Decimal(-1.25), slvr.Decimal(math.Inf(1)),
	slvr.Decimal(math.SmallestNonzeroFloat64),
	slvr.String(""), slvr.String("abc"), slvr.String("ünïcödé\x00"),
	slvr.List{},
	slvr.List{slvr.Int(1), slvr.String("a"), slvr.List{slvr.Null}},
	slvr.Object{},
	slvr.Object{
		"balance": slvr.Int(10),
		"owner":   slvr.String("alice"),
		"tags":    slvr.List{slvr.String("x")},
		"meta":    slvr.Object{"ok": slvr.True, "rate": slvr.Decimal(0.5)},
	},
}

func TestEncDecValues(t *testing.T) {
	for _, v := range testValues {
		data, err := MarshalValue(v)
		require.NoError(t, err, v.String())

		got, err := UnmarshalValue(data)
		require.NoError(t, err, v.String())
		require.Equal(t, v, got)
		require.Equal(t, v.TypeName(), got.TypeName())

		got, err = DecodeValue(bytes.NewReader(data))
		require.NoError(t, err)
		require.Equal(t, v, got)
	}

	data, err := MarshalValue(slvr.Decimal(math.NaN()))
	require.NoError(t, err)
	got, err := UnmarshalValue(data)
	require.NoError(t, err)
	require.True(t, math.IsNaN(float64(got.(slvr.Decimal))))
}

func TestEncDecValuesSequence(t *testing.T) {
	var buf bytes.Buffer
	for _, v := range testValues {
		data, err := MarshalValue(v)
		require.NoError(t, err)
		buf.Write(data)
	}
	rd := bytes.NewReader(buf.Bytes())
	for _, v := range testValues {
		got, err := DecodeValue(rd)
		require.NoError(t, err)
		require.Equal(t, v, got)
	}
	_, err := DecodeValue(rd)
	require.Equal(t, io.EOF, err)
}

func TestEncodeValueDeterministic(t *testing.T) {
	a := slvr.Object{"b": slvr.Int(1), "a": slvr.Int(2), "c": slvr.Null}
	first, err := MarshalValue(a)
	require.NoError(t, err)
	for i := 0; i < 20; i++ {
		data, err := MarshalValue(a.Copy())
		require.NoError(t, err)
		require.Equal(t, first, data)
	}

	// keys are written in sorted order
	ia := bytes.Index(first, []byte("a"))
	ib := bytes.Index(first, []byte("b"))
	ic := bytes.Index(first, []byte("c"))
	require.True(t, ia < ib && ib < ic)
}

func TestEncDecValueErrors(t *testing.T) {
	_, err := MarshalValue(nil)
	require.EqualError(t, err, "encoder.MarshalValue: unsupported value type:nil")

	_, err = UnmarshalValue(nil)
	require.Equal(t, io.EOF, err)

	_, err = UnmarshalValue([]byte{200})
	require.EqualError(t, err, "decode error: unknown encoding type:200")

	data, err := MarshalValue(slvr.String("abcdef"))
	require.NoError(t, err)
	_, err = UnmarshalValue(data[:len(data)-2])
	require.Error(t, err)
	_, err = UnmarshalValue(append(data, 0))
	require.EqualError(t, err, "unread bytes")

	data, err = MarshalValue(slvr.List{slvr.Int(1), slvr.Int(2)})
	require.NoError(t, err)
	_, err = UnmarshalValue(data[:len(data)-1])
	require.Error(t, err)

	var deep slvr.Value = slvr.Unit
	for i := 0; i < 10_010; i++ {
		deep = slvr.List{deep}
	}
	data, err = MarshalValue(deep)
	require.NoError(t, err)
	_, err = UnmarshalValue(data)
	require.EqualError(t, err, "decode error: nesting too deep")
}

func TestEncDecTypes(t *testing.T) {
	account := &slvr.SchemaType{
		Name: "account",
		Fields: map[string]slvr.Type{
			"balance": slvr.TInteger,
			"owner":   slvr.TString,
		},
	}
	types := []slvr.Type{
		slvr.TInteger, slvr.TDecimal, slvr.TString, slvr.TBoolean,
		slvr.TUnit, slvr.TAny,
		&slvr.ListType{Elem: slvr.TInteger},
		&slvr.ListType{Elem: &slvr.ListType{Elem: slvr.TAny}},
		&slvr.ObjectType{Fields: map[string]slvr.Type{}},
		&slvr.ObjectType{Fields: map[string]slvr.Type{
			"a": slvr.TDecimal,
			"b": &slvr.ListType{Elem: slvr.TString},
		}},
		&slvr.FunctionType{Args: []slvr.Type{slvr.TInteger, account},
			Ret: slvr.TBoolean},
		&slvr.FunctionType{Ret: slvr.TUnit},
		&slvr.CustomType{Name: "account"},
		account,
		&slvr.TableType{Schema: account},
	}
	for _, typ := range types {
		data, err := MarshalType(typ)
		require.NoError(t, err, typ.String())
		got, err := UnmarshalType(data)
		require.NoError(t, err, typ.String())
		require.True(t, typ.Equal(got), "want %s, got %s", typ, got)
		require.Equal(t, typ.String(), got.String())
	}

	data, err := MarshalType(nil)
	require.NoError(t, err)
	got, err := UnmarshalType(data)
	require.NoError(t, err)
	require.Nil(t, got)

	_, err = UnmarshalType([]byte{99})
	require.EqualError(t, err, "decode error: unknown type encoding:99")
}

func TestEncDecInstructions(t *testing.T) {
	typ := &slvr.ListType{Elem: &slvr.CustomType{Name: "account"}}
	for op := range slvr.OpcodeOperands {
		inst := slvr.Instruction{Op: slvr.Opcode(op)}
		for _, operand := range slvr.OpcodeOperands[op] {
			switch operand {
			case slvr.OperandInt:
				inst.Int = slvr.Int128FromParts(-5, 7)
			case slvr.OperandDecimal:
				inst.Dec = 2.5
			case slvr.OperandString:
				inst.Str = "name"
			case slvr.OperandBool:
				inst.N = 1
			case slvr.OperandN:
				inst.N = 42
			case slvr.OperandType:
				inst.Type = typ
			}
		}

		data, err := Instruction(inst).MarshalBinary()
		require.NoError(t, err, inst.String())
		var got Instruction
		require.NoError(t, got.UnmarshalBinary(data), inst.String())
		require.True(t, inst.Equal(slvr.Instruction(got)),
			"want %s, got %s", inst, slvr.Instruction(got))
	}

	var got Instruction
	require.EqualError(t, got.UnmarshalBinary([]byte{byte(len(slvr.OpcodeOperands))}),
		"decode error: invalid opcode:"+strconv.Itoa(len(slvr.OpcodeOperands)))
}

func TestEncDecFunctionDef(t *testing.T) {
	fn := &slvr.FunctionDef{
		Name: "transfer",
		Doc:  "Move funds.",
		Params: []slvr.Param{
			{Name: "from", Type: slvr.TString},
			{Name: "amount", Type: slvr.TInteger},
		},
		Ret:       slvr.TBoolean,
		NumLocals: 3,
		Instructions: []slvr.Instruction{
			slvr.MustMakeInstruction(slvr.OpLoadLocal, 1),
			slvr.MustMakeInstruction(slvr.OpPushInt, 0),
			slvr.MustMakeInstruction(slvr.OpGreater),
			slvr.MustMakeInstruction(slvr.OpReturn),
		},
	}
	data, err := (*FunctionDef)(fn).MarshalBinary()
	require.NoError(t, err)
	var got FunctionDef
	require.NoError(t, got.UnmarshalBinary(data))
	require.True(t, fn.Equal((*slvr.FunctionDef)(&got)))
	require.Equal(t, fn.Signature(), (*slvr.FunctionDef)(&got).Signature())

	require.Error(t, got.UnmarshalBinary(data[:len(data)-1]))
	require.EqualError(t, got.UnmarshalBinary(append(data, 1)), "unread bytes")
}
