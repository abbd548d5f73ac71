// Copyright (c) 2020-2023 Ozan Hacıbekiroğlu.
// Use of this source code is governed by a MIT License
// that can be found in the LICENSE file.

package encoder

import (
	"bytes"
	"errors"
	"io"

	"github.com/klauspost/compress/zstd"

	"github.com/slvr-lang/slvr"
)

// zstdMagic starts every zstd frame.
var zstdMagic = []byte{0x28, 0xb5, 0x2f, 0xfd}

// MarshalBytecode encodes bc in the binary bytecode format.
func MarshalBytecode(bc *slvr.Bytecode) ([]byte, error) {
	if bc == nil {
		return nil, errors.New("nil bytecode")
	}
	return (*Bytecode)(bc).MarshalBinary()
}

// UnmarshalBytecode decodes data encoded by MarshalBytecode.
func UnmarshalBytecode(data []byte) (*slvr.Bytecode, error) {
	var bc Bytecode
	if err := bc.UnmarshalBinary(data); err != nil {
		return nil, err
	}
	return (*slvr.Bytecode)(&bc), nil
}

// EncodeBytecodeTo encodes given bc to w io.Writer.
func EncodeBytecodeTo(bc *slvr.Bytecode, w io.Writer) error {
	return (*Bytecode)(bc).Encode(w)
}

// DecodeBytecodeFrom decodes *slvr.Bytecode from given r io.Reader.
func DecodeBytecodeFrom(r io.Reader) (*slvr.Bytecode, error) {
	var bc Bytecode
	if err := bc.Decode(r); err != nil {
		return nil, err
	}
	return (*slvr.Bytecode)(&bc), nil
}

// Encode writes encoded data of Bytecode to writer.
func (bc *Bytecode) Encode(w io.Writer) error {
	data, err := bc.MarshalBinary()
	if err != nil {
		return err
	}

	n, err := w.Write(data)
	if err != nil {
		return err
	}

	if n != len(data) {
		return errors.New("short write")
	}
	return nil
}

// Decode decodes Bytecode data from the reader.
func (bc *Bytecode) Decode(r io.Reader) error {
	dst := bytes.NewBuffer(nil)
	if _, err := io.Copy(dst, r); err != nil {
		return err
	}
	return bc.UnmarshalBinary(dst.Bytes())
}

// CompressBytecode encodes bc and wraps the result in a zstd frame.
func CompressBytecode(bc *slvr.Bytecode) ([]byte, error) {
	data, err := MarshalBytecode(bc)
	if err != nil {
		return nil, err
	}
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedBestCompression))
	if err != nil {
		return nil, err
	}
	defer enc.Close()
	return enc.EncodeAll(data, make([]byte, 0, len(data)/2)), nil
}

// DecompressBytecode decodes data created by CompressBytecode.
func DecompressBytecode(data []byte) (*slvr.Bytecode, error) {
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, err
	}
	defer dec.Close()
	raw, err := dec.DecodeAll(data, nil)
	if err != nil {
		return nil, err
	}
	return UnmarshalBytecode(raw)
}

// IsCompressed reports whether data starts with a zstd frame.
func IsCompressed(data []byte) bool {
	return bytes.HasPrefix(data, zstdMagic)
}

// LoadBytecode decodes plain or compressed bytecode.
func LoadBytecode(data []byte) (*slvr.Bytecode, error) {
	if IsCompressed(data) {
		return DecompressBytecode(data)
	}
	return UnmarshalBytecode(data)
}
