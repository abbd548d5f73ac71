package encoder_test

import (
	"bytes"
	"encoding/binary"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/slvr-lang/slvr"
	"github.com/slvr-lang/slvr/parser"

	. "github.com/slvr-lang/slvr/encoder"
)

var testScripts = []string{
	``,
	`1 + 2`,
	`"a" ++ "b" ++ 1.5`,
	`let x = [1, {a: 2}] x[1].a`,
	`170141183460469231731687303715884105727 - 1`,
	`defconst rate:decimal = 0.25
	defun fee(x:integer) -> decimal x * rate
	fee(8)`,
	`defun fib(n:integer) -> integer if n < 2 then n else fib(n - 1) + fib(n - 2)
	fib(10)`,
	`defschema account
		"An account."
		{ balance:integer owner:string }
	deftable accounts:account
	write accounts "a" {balance: 1, owner: "o"}
	update accounts "a" {balance: 2, owner: "o"}
	let a = read accounts "a" {
		delete accounts "a"
		a.balance
	}`,
	`defun f(xs:[integer], o:object) -> any { typeof(xs) ++ typeof(o) }
	f([1], {})`,
}

func TestBytecode_Encode(t *testing.T) {
	for _, script := range testScripts {
		for _, optimize := range []bool{false, true} {
			bc, err := slvr.Compile([]byte(script),
				slvr.CompilerOptions{Optimize: optimize})
			require.NoError(t, err, script)
			testBytecodeSerialization(t, bc)
		}
	}

	testBytecodeSerialization(t, &slvr.Bytecode{})
	testBytecodeSerialization(t, &slvr.Bytecode{
		Main: []slvr.Instruction{
			slvr.MustMakeInstruction(slvr.OpPushInt, slvr.MinInt128),
			slvr.MustMakeInstruction(slvr.OpPushDecimal, -0.5),
			slvr.MustMakeInstruction(slvr.OpCast,
				&slvr.ListType{Elem: &slvr.CustomType{Name: "account"}}),
		},
		NumLocals: 3,
	})
}

func TestBytecode_file(t *testing.T) {
	bc, err := slvr.Compile([]byte(testScripts[6]), slvr.DefaultCompilerOptions)
	require.NoError(t, err)

	f, err := os.Create(filepath.Join(t.TempDir(), "fib.slvrc"))
	require.NoError(t, err)
	defer f.Close()

	require.NoError(t, EncodeBytecodeTo(bc, f))

	_, err = f.Seek(0, io.SeekStart)
	require.NoError(t, err)

	got, err := DecodeBytecodeFrom(f)
	require.NoError(t, err)
	testBytecodesEqual(t, bc, got)

	ret, err := slvr.NewVM(got, slvr.NewRuntime(100_000)).Run()
	require.NoError(t, err)
	require.True(t, slvr.Int(55).Equal(ret))
}

func TestBytecode_Compress(t *testing.T) {
	bc, err := slvr.Compile([]byte(testScripts[7]), slvr.DefaultCompilerOptions)
	require.NoError(t, err)

	plain, err := MarshalBytecode(bc)
	require.NoError(t, err)
	require.False(t, IsCompressed(plain))

	data, err := CompressBytecode(bc)
	require.NoError(t, err)
	require.True(t, IsCompressed(data))

	got, err := DecompressBytecode(data)
	require.NoError(t, err)
	testBytecodesEqual(t, bc, got)

	for _, d := range [][]byte{plain, data} {
		got, err = LoadBytecode(d)
		require.NoError(t, err)
		testBytecodesEqual(t, bc, got)
	}

	_, err = DecompressBytecode(plain)
	require.Error(t, err)
}

// The decoded program behaves like the original one.
func TestBytecode_Run(t *testing.T) {
	for _, script := range testScripts {
		bc, err := slvr.Compile([]byte(script), slvr.DefaultCompilerOptions)
		require.NoError(t, err)
		data, err := MarshalBytecode(bc)
		require.NoError(t, err)
		got, err := UnmarshalBytecode(data)
		require.NoError(t, err)

		rt1, rt2 := slvr.NewRuntime(1_000_000), slvr.NewRuntime(1_000_000)
		ret1, err1 := slvr.NewVM(bc, rt1).Run()
		ret2, err2 := slvr.NewVM(got, rt2).Run()
		require.NoError(t, err1, script)
		require.NoError(t, err2, script)
		require.True(t, ret1.Equal(ret2), script)
		require.Equal(t, rt1.FuelUsed(), rt2.FuelUsed(), script)
		require.True(t, rt1.Snapshot().Equal(rt2.Snapshot()), script)
	}
}

func TestBytecode_Errors(t *testing.T) {
	_, err := MarshalBytecode(nil)
	require.Error(t, err)

	_, err = UnmarshalBytecode([]byte{1, 2})
	require.EqualError(t, err, "encoder.Bytecode.UnmarshalBinary: invalid data")

	_, err = UnmarshalBytecode([]byte{0, 0, 0, 0, 0, 1})
	require.EqualError(t, err,
		"encoder.Bytecode.UnmarshalBinary: signature mismatch")

	header := make([]byte, 6)
	binary.BigEndian.PutUint32(header, BytecodeSignature)
	binary.BigEndian.PutUint16(header[4:], BytecodeVersion+1)
	_, err = UnmarshalBytecode(header)
	require.EqualError(t, err,
		"encoder.Bytecode.UnmarshalBinary: unsupported version:2")

	binary.BigEndian.PutUint16(header[4:], BytecodeVersion)
	bc, err := UnmarshalBytecode(header)
	require.NoError(t, err)
	require.Empty(t, bc.Main)

	_, err = UnmarshalBytecode(append(header, 9))
	require.EqualError(t, err, "unknown field:9")

	bc, err = slvr.Compile([]byte(`1 + 2`), slvr.DefaultCompilerOptions)
	require.NoError(t, err)
	data, err := MarshalBytecode(bc)
	require.NoError(t, err)
	// main is the last field
	_, err = UnmarshalBytecode(data[:len(data)-1])
	require.Error(t, err)

	bc.Main = append(bc.Main, slvr.Instruction{Op: 250})
	_, err = MarshalBytecode(bc)
	require.EqualError(t, err, "encode error: invalid opcode:250")
}

func TestSourceFileSet(t *testing.T) {
	fs := parser.NewFileSet()
	f1 := fs.AddFile("a.slvr", -1, 10)
	f1.AddLine(4)
	f1.AddLine(8)
	f2 := fs.AddFile("b.slvr", -1, 3)

	data, err := (*SourceFileSet)(fs).MarshalBinary()
	require.NoError(t, err)

	var got SourceFileSet
	require.NoError(t, got.UnmarshalBinary(data))
	require.Equal(t, fs.Base, got.Base)
	require.Len(t, got.Files, 2)
	for i, f := range []*parser.SourceFile{f1, f2} {
		require.Equal(t, f.Name, got.Files[i].Name)
		require.Equal(t, f.Base, got.Files[i].Base)
		require.Equal(t, f.Size, got.Files[i].Size)
		require.Equal(t, f.Lines, got.Files[i].Lines)
	}

	pos := f1.Pos(9)
	require.Equal(t, fs.Position(pos),
		(*parser.SourceFileSet)(&got).Position(pos))
	require.Equal(t, "a.slvr:3:2", fs.Position(pos).String())
}

func testBytecodeSerialization(t *testing.T, bc *slvr.Bytecode) {
	t.Helper()

	var buf bytes.Buffer
	require.NoError(t, (*Bytecode)(bc).Encode(&buf))
	data := append([]byte(nil), buf.Bytes()...)

	got, err := UnmarshalBytecode(data)
	require.NoError(t, err)
	testBytecodesEqual(t, bc, got)

	// encoding is deterministic
	again, err := MarshalBytecode(got)
	require.NoError(t, err)
	require.Equal(t, data, again)
}

func testBytecodesEqual(t *testing.T, want, got *slvr.Bytecode) {
	t.Helper()

	require.True(t, want.Equal(got), "want:\n%s\ngot:\n%s", want, got)
	require.Equal(t, want.String(), got.String())
	require.NoError(t, got.Validate())

	if want.FileSet == nil {
		require.Nil(t, got.FileSet)
		return
	}
	require.NotNil(t, got.FileSet)
	require.Equal(t, want.FileSet.Base, got.FileSet.Base)
	require.Equal(t, len(want.FileSet.Files), len(got.FileSet.Files))
	for i, f := range got.FileSet.Files {
		require.Equal(t, want.FileSet.Files[i].Name, f.Name)
		require.Equal(t, want.FileSet.Files[i].Lines, f.Lines)
		require.Same(t, got.FileSet, f.Set())
	}
}
