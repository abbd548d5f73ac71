// Copyright (c) 2020-2023 Ozan Hacıbekiroğlu.
// Use of this source code is governed by a MIT License
// that can be found in the LICENSE file.

package encoder

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"math"
	"sort"
	"strconv"

	"github.com/slvr-lang/slvr"
	"github.com/slvr-lang/slvr/parser"
)

// Bytecode signature and version are written to the header of encoded Bytecode.
// Bytecode is encoded with current BytecodeVersion and its format.
const (
	BytecodeSignature uint32 = 0x534C5652 // "SLVR"
	BytecodeVersion   uint16 = 1
)

// maxDecodeDepth bounds nesting of decoded values and types.
const maxDecodeDepth = 10000

// Types implementing encoding.BinaryMarshaler encoding.BinaryUnmarshaler.
type (
	Bytecode      slvr.Bytecode
	FunctionDef   slvr.FunctionDef
	Instruction   slvr.Instruction
	SourceFileSet parser.SourceFileSet
	SourceFile    parser.SourceFile
)

// Value tags.
const (
	binUnitV1 byte = iota
	binNullV1
	binTrueV1
	binFalseV1
	binIntegerV1
	binDecimalV1
	binStringV1
	binListV1
	binObjectV1
)

// Type tags.
const (
	binTypeNilV1 byte = iota
	binTypeBasicV1
	binTypeListV1
	binTypeObjectV1
	binTypeFunctionV1
	binTypeCustomV1
	binTypeTableV1
	binTypeSchemaV1
)

var (
	errVarintTooSmall = errors.New("read varint error: buf too small")
	errVarintOverflow = errors.New("read varint error: value larger than 64 bits (overflow)")
	errTooDeep        = errors.New("decode error: nesting too deep")
)

func newError(name, msg string) error {
	return &slvr.Error{Name: name, Message: msg}
}

// MarshalBinary implements encoding.BinaryMarshaler
func (bc *Bytecode) MarshalBinary() (data []byte, err error) {
	switch BytecodeVersion {
	case 1:
		var buf bytes.Buffer
		if err = bc.bytecodeV1Encoder(&buf); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	default:
		panic("invalid Bytecode version:" + strconv.Itoa(int(BytecodeVersion)))
	}
}

// UnmarshalBinary implements encoding.BinaryUnmarshaler
func (bc *Bytecode) UnmarshalBinary(data []byte) error {
	if len(data) < 6 {
		return newError("encoder.Bytecode.UnmarshalBinary", "invalid data")
	}

	sig := binary.BigEndian.Uint32(data[0:4])
	if sig != BytecodeSignature {
		return newError("encoder.Bytecode.UnmarshalBinary", "signature mismatch")
	}

	version := binary.BigEndian.Uint16(data[4:6])
	switch version {
	case BytecodeVersion:
		*bc = Bytecode{}
		return bc.bytecodeV1Decoder(bytes.NewReader(data[6:]))
	default:
		return newError("encoder.Bytecode.UnmarshalBinary",
			"unsupported version:"+strconv.Itoa(int(version)))
	}
}

func putBytecodeHeader(w io.Writer) (err error) {
	hdr := make([]byte, 6)
	binary.BigEndian.PutUint32(hdr, BytecodeSignature)
	binary.BigEndian.PutUint16(hdr[4:], BytecodeVersion)
	_, err = w.Write(hdr)
	return
}

func (bc *Bytecode) bytecodeV1Encoder(w *bytes.Buffer) (err error) {
	if err = putBytecodeHeader(w); err != nil {
		return
	}
	var vi varintConv

	// FileSet, field #0
	if bc.FileSet != nil {
		_ = writeByteTo(w, 0)
		var data []byte
		if data, err = (*SourceFileSet)(bc.FileSet).MarshalBinary(); err != nil {
			return
		}
		w.Write(vi.toBytes(int64(len(data))))
		w.Write(data)
	}

	// Main, field #1
	if len(bc.Main) > 0 {
		_ = writeByteTo(w, 1)
		if err = writeInstructions(w, bc.Main); err != nil {
			return
		}
	}

	// NumLocals, field #2
	if bc.NumLocals > 0 {
		_ = writeByteTo(w, 2)
		w.Write(vi.toBytes(int64(bc.NumLocals)))
	}

	// Functions, field #3
	if len(bc.Functions) > 0 {
		_ = writeByteTo(w, 3)
		names := (*slvr.Bytecode)(bc).FunctionNames()
		w.Write(vi.toBytes(int64(len(names))))
		for _, name := range names {
			var data []byte
			if data, err = (*FunctionDef)(bc.Functions[name]).MarshalBinary(); err != nil {
				return
			}
			w.Write(vi.toBytes(int64(len(data))))
			w.Write(data)
		}
	}

	// Tables, field #4
	if len(bc.Tables) > 0 {
		_ = writeByteTo(w, 4)
		names := make([]string, 0, len(bc.Tables))
		for k := range bc.Tables {
			names = append(names, k)
		}
		sort.Strings(names)
		w.Write(vi.toBytes(int64(len(names))))
		for _, name := range names {
			writeString(w, name)
			if err = writeFields(w, bc.Tables[name]); err != nil {
				return
			}
		}
	}
	return nil
}

func (bc *Bytecode) bytecodeV1Decoder(r *bytes.Reader) error {
	vi := varintConv{reader: r}
	for {
		field, err := r.ReadByte()
		if err != nil {
			if err == io.EOF {
				return nil
			}
			return err
		}

		switch field {
		case 0:
			data, err := readSized(&vi)
			if err != nil {
				return err
			}
			if bc.FileSet, err = decodeFileSet(data); err != nil {
				return err
			}
		case 1:
			if bc.Main, err = readInstructions(r); err != nil {
				return err
			}
		case 2:
			v, err := vi.read()
			if err != nil {
				return err
			}
			bc.NumLocals = int(v)
		case 3:
			n, err := readLen(&vi)
			if err != nil {
				return err
			}
			bc.Functions = make(map[string]*slvr.FunctionDef, n)
			for i := 0; i < n; i++ {
				data, err := readSized(&vi)
				if err != nil {
					return err
				}
				var fn FunctionDef
				if err = fn.UnmarshalBinary(data); err != nil {
					return err
				}
				bc.Functions[fn.Name] = (*slvr.FunctionDef)(&fn)
			}
		case 4:
			n, err := readLen(&vi)
			if err != nil {
				return err
			}
			bc.Tables = make(map[string]map[string]slvr.Type, n)
			for i := 0; i < n; i++ {
				name, err := readString(&vi)
				if err != nil {
					return err
				}
				if bc.Tables[name], err = readFields(r, 0); err != nil {
					return err
				}
			}
		default:
			return errors.New("unknown field:" + strconv.Itoa(int(field)))
		}
	}
}

// MarshalBinary implements encoding.BinaryMarshaler
func (fn *FunctionDef) MarshalBinary() ([]byte, error) {
	var buf bytes.Buffer
	var vi varintConv
	writeString(&buf, fn.Name)
	writeString(&buf, fn.Doc)
	buf.Write(vi.toBytes(int64(len(fn.Params))))
	for _, p := range fn.Params {
		writeString(&buf, p.Name)
		if err := writeType(&buf, p.Type); err != nil {
			return nil, err
		}
	}
	if err := writeType(&buf, fn.Ret); err != nil {
		return nil, err
	}
	buf.Write(vi.toBytes(int64(fn.NumLocals)))
	if err := writeInstructions(&buf, fn.Instructions); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// UnmarshalBinary implements encoding.BinaryUnmarshaler
func (fn *FunctionDef) UnmarshalBinary(data []byte) (err error) {
	rd := bytes.NewReader(data)
	vi := varintConv{reader: rd}
	*fn = FunctionDef{}
	if fn.Name, err = readString(&vi); err != nil {
		return
	}
	if fn.Doc, err = readString(&vi); err != nil {
		return
	}
	n, err := readLen(&vi)
	if err != nil {
		return
	}
	if n > 0 {
		fn.Params = make([]slvr.Param, n)
	}
	for i := 0; i < n; i++ {
		if fn.Params[i].Name, err = readString(&vi); err != nil {
			return
		}
		if fn.Params[i].Type, err = readType(rd, 0); err != nil {
			return
		}
	}
	if fn.Ret, err = readType(rd, 0); err != nil {
		return
	}
	v, err := vi.read()
	if err != nil {
		return
	}
	fn.NumLocals = int(v)
	if fn.Instructions, err = readInstructions(rd); err != nil {
		return
	}
	if rd.Len() > 0 {
		return errors.New("unread bytes")
	}
	return nil
}

// MarshalBinary implements encoding.BinaryMarshaler
func (inst Instruction) MarshalBinary() ([]byte, error) {
	var buf bytes.Buffer
	if err := writeInstruction(&buf, slvr.Instruction(inst)); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// UnmarshalBinary implements encoding.BinaryUnmarshaler
func (inst *Instruction) UnmarshalBinary(data []byte) error {
	rd := bytes.NewReader(data)
	v, err := readInstruction(rd)
	if err != nil {
		return err
	}
	if rd.Len() > 0 {
		return errors.New("unread bytes")
	}
	*inst = Instruction(v)
	return nil
}

func writeInstructions(w *bytes.Buffer, insts []slvr.Instruction) error {
	var vi varintConv
	w.Write(vi.toBytes(int64(len(insts))))
	for i := range insts {
		if err := writeInstruction(w, insts[i]); err != nil {
			return err
		}
	}
	return nil
}

func readInstructions(r *bytes.Reader) ([]slvr.Instruction, error) {
	vi := varintConv{reader: r}
	n, err := readLen(&vi)
	if err != nil || n == 0 {
		return nil, err
	}
	insts := make([]slvr.Instruction, n)
	for i := range insts {
		if insts[i], err = readInstruction(r); err != nil {
			return nil, err
		}
	}
	return insts, nil
}

// writeInstruction writes the opcode followed by its operands in
// OpcodeOperands order.
func writeInstruction(w *bytes.Buffer, inst slvr.Instruction) error {
	if int(inst.Op) >= len(slvr.OpcodeOperands) {
		return errors.New("encode error: invalid opcode:" +
			strconv.Itoa(int(inst.Op)))
	}
	var vi varintConv
	w.WriteByte(byte(inst.Op))
	for _, operand := range slvr.OpcodeOperands[inst.Op] {
		switch operand {
		case slvr.OperandInt:
			writeInt128(w, inst.Int)
		case slvr.OperandDecimal:
			writeFloat(w, inst.Dec)
		case slvr.OperandString:
			writeString(w, inst.Str)
		case slvr.OperandBool:
			w.WriteByte(byte(inst.N))
		case slvr.OperandN:
			w.Write(vi.toBytes(int64(inst.N)))
		case slvr.OperandType:
			if err := writeType(w, inst.Type); err != nil {
				return err
			}
		}
	}
	return nil
}

func readInstruction(r *bytes.Reader) (inst slvr.Instruction, err error) {
	op, err := r.ReadByte()
	if err != nil {
		return
	}
	if int(op) >= len(slvr.OpcodeOperands) {
		err = errors.New("decode error: invalid opcode:" + strconv.Itoa(int(op)))
		return
	}
	inst.Op = slvr.Opcode(op)
	vi := varintConv{reader: r}
	for _, operand := range slvr.OpcodeOperands[op] {
		switch operand {
		case slvr.OperandInt:
			inst.Int, err = readInt128(&vi)
		case slvr.OperandDecimal:
			inst.Dec, err = readFloat(r)
		case slvr.OperandString:
			inst.Str, err = readString(&vi)
		case slvr.OperandBool:
			var b byte
			b, err = r.ReadByte()
			inst.N = int(b)
		case slvr.OperandN:
			var v int64
			v, err = vi.read()
			inst.N = int(v)
		case slvr.OperandType:
			inst.Type, err = readType(r, 0)
		}
		if err != nil {
			return
		}
	}
	return
}

// MarshalValue encodes v with the binary value codec.
func MarshalValue(v slvr.Value) ([]byte, error) {
	var buf bytes.Buffer
	if err := writeValue(&buf, v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// UnmarshalValue decodes data encoded by MarshalValue.
func UnmarshalValue(data []byte) (slvr.Value, error) {
	rd := bytes.NewReader(data)
	v, err := DecodeValue(rd)
	if err != nil {
		return nil, err
	}
	if rd.Len() > 0 {
		return nil, errors.New("unread bytes")
	}
	return v, nil
}

// DecodeValue decodes and returns a Value from a bytes.Reader which is encoded
// with MarshalValue.
func DecodeValue(r *bytes.Reader) (slvr.Value, error) {
	return readValue(r, 0)
}

func writeValue(w *bytes.Buffer, v slvr.Value) error {
	var vi varintConv
	switch v := v.(type) {
	case slvr.UnitType:
		w.WriteByte(binUnitV1)
	case slvr.NullType:
		w.WriteByte(binNullV1)
	case slvr.Boolean:
		if v {
			w.WriteByte(binTrueV1)
		} else {
			w.WriteByte(binFalseV1)
		}
	case slvr.Integer:
		w.WriteByte(binIntegerV1)
		writeInt128(w, slvr.Int128(v))
	case slvr.Decimal:
		w.WriteByte(binDecimalV1)
		writeFloat(w, float64(v))
	case slvr.String:
		w.WriteByte(binStringV1)
		writeString(w, string(v))
	case slvr.List:
		w.WriteByte(binListV1)
		w.Write(vi.toBytes(int64(len(v))))
		for _, item := range v {
			if err := writeValue(w, item); err != nil {
				return err
			}
		}
	case slvr.Object:
		w.WriteByte(binObjectV1)
		keys := v.Keys()
		w.Write(vi.toBytes(int64(len(keys))))
		for _, k := range keys {
			writeString(w, k)
			if err := writeValue(w, v[k]); err != nil {
				return err
			}
		}
	default:
		return newError("encoder.MarshalValue",
			"unsupported value type:"+typeName(v))
	}
	return nil
}

func typeName(v slvr.Value) string {
	if v == nil {
		return "nil"
	}
	return v.TypeName()
}

func readValue(r *bytes.Reader, depth int) (slvr.Value, error) {
	if depth > maxDecodeDepth {
		return nil, errTooDeep
	}
	btype, err := r.ReadByte()
	if err != nil {
		return nil, err
	}
	vi := varintConv{reader: r}

	switch btype {
	case binUnitV1:
		return slvr.Unit, nil
	case binNullV1:
		return slvr.Null, nil
	case binTrueV1:
		return slvr.True, nil
	case binFalseV1:
		return slvr.False, nil
	case binIntegerV1:
		v, err := readInt128(&vi)
		if err != nil {
			return nil, err
		}
		return slvr.Integer(v), nil
	case binDecimalV1:
		f, err := readFloat(r)
		if err != nil {
			return nil, err
		}
		return slvr.Decimal(f), nil
	case binStringV1:
		s, err := readString(&vi)
		if err != nil {
			return nil, err
		}
		return slvr.String(s), nil
	case binListV1:
		n, err := readLen(&vi)
		if err != nil {
			return nil, err
		}
		list := make(slvr.List, n)
		for i := range list {
			if list[i], err = readValue(r, depth+1); err != nil {
				return nil, err
			}
		}
		return list, nil
	case binObjectV1:
		n, err := readLen(&vi)
		if err != nil {
			return nil, err
		}
		obj := make(slvr.Object, n)
		for i := 0; i < n; i++ {
			k, err := readString(&vi)
			if err != nil {
				return nil, err
			}
			if obj[k], err = readValue(r, depth+1); err != nil {
				return nil, err
			}
		}
		return obj, nil
	}
	return nil, errors.New(
		"decode error: unknown encoding type:" + strconv.Itoa(int(btype)),
	)
}

// MarshalType encodes a static type. A nil Type is allowed.
func MarshalType(t slvr.Type) ([]byte, error) {
	var buf bytes.Buffer
	if err := writeType(&buf, t); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// UnmarshalType decodes data encoded by MarshalType.
func UnmarshalType(data []byte) (slvr.Type, error) {
	rd := bytes.NewReader(data)
	t, err := readType(rd, 0)
	if err != nil {
		return nil, err
	}
	if rd.Len() > 0 {
		return nil, errors.New("unread bytes")
	}
	return t, nil
}

func writeType(w *bytes.Buffer, t slvr.Type) error {
	var vi varintConv
	switch t := t.(type) {
	case nil:
		w.WriteByte(binTypeNilV1)
	case slvr.BasicType:
		w.WriteByte(binTypeBasicV1)
		w.Write(vi.toBytes(int64(t)))
	case *slvr.ListType:
		w.WriteByte(binTypeListV1)
		return writeType(w, t.Elem)
	case *slvr.ObjectType:
		w.WriteByte(binTypeObjectV1)
		return writeFields(w, t.Fields)
	case *slvr.FunctionType:
		w.WriteByte(binTypeFunctionV1)
		w.Write(vi.toBytes(int64(len(t.Args))))
		for _, arg := range t.Args {
			if err := writeType(w, arg); err != nil {
				return err
			}
		}
		return writeType(w, t.Ret)
	case *slvr.CustomType:
		w.WriteByte(binTypeCustomV1)
		writeString(w, t.Name)
	case *slvr.TableType:
		w.WriteByte(binTypeTableV1)
		return writeType(w, t.Schema)
	case *slvr.SchemaType:
		w.WriteByte(binTypeSchemaV1)
		writeString(w, t.Name)
		return writeFields(w, t.Fields)
	default:
		return newError("encoder.MarshalType", "unsupported type:"+t.String())
	}
	return nil
}

func readType(r *bytes.Reader, depth int) (slvr.Type, error) {
	if depth > maxDecodeDepth {
		return nil, errTooDeep
	}
	btype, err := r.ReadByte()
	if err != nil {
		return nil, err
	}
	vi := varintConv{reader: r}

	switch btype {
	case binTypeNilV1:
		return nil, nil
	case binTypeBasicV1:
		k, err := vi.read()
		if err != nil {
			return nil, err
		}
		return slvr.BasicType(k), nil
	case binTypeListV1:
		elem, err := readType(r, depth+1)
		if err != nil {
			return nil, err
		}
		return &slvr.ListType{Elem: elem}, nil
	case binTypeObjectV1:
		fields, err := readFields(r, depth+1)
		if err != nil {
			return nil, err
		}
		return &slvr.ObjectType{Fields: fields}, nil
	case binTypeFunctionV1:
		n, err := readLen(&vi)
		if err != nil {
			return nil, err
		}
		ft := &slvr.FunctionType{}
		if n > 0 {
			ft.Args = make([]slvr.Type, n)
		}
		for i := 0; i < n; i++ {
			if ft.Args[i], err = readType(r, depth+1); err != nil {
				return nil, err
			}
		}
		if ft.Ret, err = readType(r, depth+1); err != nil {
			return nil, err
		}
		return ft, nil
	case binTypeCustomV1:
		name, err := readString(&vi)
		if err != nil {
			return nil, err
		}
		return &slvr.CustomType{Name: name}, nil
	case binTypeTableV1:
		schema, err := readType(r, depth+1)
		if err != nil {
			return nil, err
		}
		return &slvr.TableType{Schema: schema}, nil
	case binTypeSchemaV1:
		name, err := readString(&vi)
		if err != nil {
			return nil, err
		}
		fields, err := readFields(r, depth+1)
		if err != nil {
			return nil, err
		}
		return &slvr.SchemaType{Name: name, Fields: fields}, nil
	}
	return nil, errors.New(
		"decode error: unknown type encoding:" + strconv.Itoa(int(btype)),
	)
}

func writeFields(w *bytes.Buffer, fields map[string]slvr.Type) error {
	var vi varintConv
	names := make([]string, 0, len(fields))
	for k := range fields {
		names = append(names, k)
	}
	sort.Strings(names)
	w.Write(vi.toBytes(int64(len(names))))
	for _, name := range names {
		writeString(w, name)
		if err := writeType(w, fields[name]); err != nil {
			return err
		}
	}
	return nil
}

func readFields(r *bytes.Reader, depth int) (map[string]slvr.Type, error) {
	vi := varintConv{reader: r}
	n, err := readLen(&vi)
	if err != nil {
		return nil, err
	}
	fields := make(map[string]slvr.Type, n)
	for i := 0; i < n; i++ {
		name, err := readString(&vi)
		if err != nil {
			return nil, err
		}
		if fields[name], err = readType(r, depth+1); err != nil {
			return nil, err
		}
	}
	return fields, nil
}

// MarshalBinary implements encoding.BinaryMarshaler
func (sf *SourceFile) MarshalBinary() ([]byte, error) {
	var buf bytes.Buffer
	writeString(&buf, sf.Name)

	var vi varintConv
	buf.Write(vi.toBytes(int64(sf.Base)))
	buf.Write(vi.toBytes(int64(sf.Size)))
	buf.Write(vi.toBytes(int64(len(sf.Lines))))
	for _, v := range sf.Lines {
		buf.Write(vi.toBytes(int64(v)))
	}
	return buf.Bytes(), nil
}

// UnmarshalBinary implements encoding.BinaryUnmarshaler
func (sf *SourceFile) UnmarshalBinary(data []byte) (err error) {
	rd := bytes.NewReader(data)
	vi := varintConv{reader: rd}

	if sf.Name, err = readString(&vi); err != nil {
		return
	}
	v, err := vi.read()
	if err != nil {
		return
	}
	sf.Base = int(v)

	if v, err = vi.read(); err != nil {
		return
	}
	sf.Size = int(v)

	length, err := readLen(&vi)
	if err != nil {
		return
	}
	lines := make([]int, length)
	for i := 0; i < length; i++ {
		if v, err = vi.read(); err != nil {
			return
		}
		lines[i] = int(v)
	}

	if rd.Len() > 0 {
		return errors.New("unread bytes")
	}
	sf.Lines = lines
	return nil
}

// MarshalBinary implements encoding.BinaryMarshaler
func (sfs *SourceFileSet) MarshalBinary() ([]byte, error) {
	var buf bytes.Buffer
	var vi varintConv
	buf.Write(vi.toBytes(int64(sfs.Base)))

	files := make([]*parser.SourceFile, 0, len(sfs.Files))
	for _, f := range sfs.Files {
		if f != nil {
			files = append(files, f)
		}
	}
	buf.Write(vi.toBytes(int64(len(files))))
	for _, f := range files {
		d, err := (*SourceFile)(f).MarshalBinary()
		if err != nil {
			return nil, err
		}
		buf.Write(vi.toBytes(int64(len(d))))
		buf.Write(d)
	}
	return buf.Bytes(), nil
}

// UnmarshalBinary implements encoding.BinaryUnmarshaler
func (sfs *SourceFileSet) UnmarshalBinary(data []byte) error {
	set, err := decodeFileSet(data)
	if err != nil {
		return err
	}
	*sfs = SourceFileSet(*set)
	return nil
}

// decodeFileSet returns a new set whose files are attached to it.
func decodeFileSet(data []byte) (*parser.SourceFileSet, error) {
	rd := bytes.NewReader(data)
	vi := varintConv{reader: rd}
	base, err := vi.read()
	if err != nil {
		return nil, err
	}

	length, err := readLen(&vi)
	if err != nil {
		return nil, err
	}

	set := parser.NewFileSet()
	for i := 0; i < length; i++ {
		data, err := readSized(&vi)
		if err != nil {
			return nil, err
		}
		var file SourceFile
		if err = file.UnmarshalBinary(data); err != nil {
			return nil, err
		}
		if file.Base < set.Base || file.Size < 0 {
			return nil, errors.New("decode error: invalid source file base")
		}
		f := set.AddFile(file.Name, file.Base, file.Size)
		f.Lines = file.Lines
	}

	if rd.Len() > 0 {
		return nil, errors.New("unread bytes")
	}
	if int(base) > set.Base {
		set.Base = int(base)
	}
	return set, nil
}

func writeInt128(w *bytes.Buffer, v slvr.Int128) {
	var vi varintConv
	w.Write(vi.toBytes(v.Hi()))
	w.Write(vi.toUbytes(v.Lo()))
}

func readInt128(vi *varintConv) (slvr.Int128, error) {
	hi, err := vi.read()
	if err != nil {
		return slvr.Int128{}, err
	}
	lo, err := vi.readU()
	if err != nil {
		return slvr.Int128{}, err
	}
	return slvr.Int128FromParts(hi, lo), nil
}

func writeFloat(w *bytes.Buffer, f float64) {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], math.Float64bits(f))
	w.Write(b[:])
}

func readFloat(r *bytes.Reader) (float64, error) {
	var b [8]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, err
	}
	return math.Float64frombits(binary.BigEndian.Uint64(b[:])), nil
}

func writeString(w *bytes.Buffer, s string) {
	var vi varintConv
	w.Write(vi.toBytes(int64(len(s))))
	w.WriteString(s)
}

func readString(vi *varintConv) (string, error) {
	data, err := readSized(vi)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// readSized reads a varint length followed by that many bytes.
func readSized(vi *varintConv) ([]byte, error) {
	n, err := readLen(vi)
	if err != nil || n == 0 {
		return nil, err
	}
	data := make([]byte, n)
	if _, err = io.ReadFull(vi.reader, data); err != nil {
		return nil, err
	}
	return data, nil
}

// readLen reads a length which must not exceed the unread bytes.
func readLen(vi *varintConv) (int, error) {
	v, err := vi.read()
	if err != nil {
		return 0, err
	}
	if v < 0 {
		return 0, errors.New("negative value")
	}
	if v > int64(vi.reader.Len()) {
		return 0, io.ErrUnexpectedEOF
	}
	return int(v), nil
}

func writeByteTo(w io.Writer, b byte) error {
	if bw, ok := w.(io.ByteWriter); ok {
		return bw.WriteByte(b)
	}

	n, err := w.Write([]byte{b})
	if err != nil {
		return err
	}

	if n != 1 {
		return errors.New("byte write error")
	}
	return nil
}

type varintConv struct {
	buf    [1 + binary.MaxVarintLen64]byte
	reader *bytes.Reader
}

func (vi *varintConv) toBytes(v int64) []byte {
	n := binary.PutVarint(vi.buf[1:], v)
	vi.buf[0] = byte(n)
	return vi.buf[:n+1]
}

func (vi *varintConv) toUbytes(v uint64) []byte {
	n := binary.PutUvarint(vi.buf[1:], v)
	vi.buf[0] = byte(n)
	return vi.buf[:n+1]
}

func (vi *varintConv) next() (data []byte, err error) {
	var n byte
	n, err = vi.reader.ReadByte()
	if err != nil {
		return
	}

	if int(n) > binary.MaxVarintLen64 {
		return nil, errVarintOverflow
	}

	data = vi.buf[:n]
	if n == 0 {
		return
	}

	_, err = io.ReadFull(vi.reader, data)
	return
}

func (vi *varintConv) read() (value int64, err error) {
	data, err := vi.next()
	if err != nil || len(data) == 0 {
		return
	}

	var offset int
	value, offset = binary.Varint(data)
	return value, varintErr(offset)
}

func (vi *varintConv) readU() (value uint64, err error) {
	data, err := vi.next()
	if err != nil || len(data) == 0 {
		return
	}

	var offset int
	value, offset = binary.Uvarint(data)
	return value, varintErr(offset)
}

func varintErr(offset int) error {
	if offset < 1 {
		if offset == 0 {
			return errVarintTooSmall
		}
		return errVarintOverflow
	}
	return nil
}
