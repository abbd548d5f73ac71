// Copyright (c) 2020-2023 Ozan Hacıbekiroğlu.
// Use of this source code is governed by a MIT License
// that can be found in the LICENSE file.

package slvr

import (
	"math"
	"math/big"
	"math/bits"
	"strconv"
)

// Int128 is a signed 128-bit two's complement integer.
type Int128 struct {
	hi int64
	lo uint64
}

var (
	// MaxInt128 is the largest Int128 value.
	MaxInt128 = Int128{hi: math.MaxInt64, lo: math.MaxUint64}
	// MinInt128 is the smallest Int128 value.
	MinInt128 = Int128{hi: math.MinInt64}

	bigMaxInt128 = MaxInt128.Big()
	bigMinInt128 = MinInt128.Big()
	bigMask64    = new(big.Int).SetUint64(math.MaxUint64)
)

// Int128From64 converts an int64.
func Int128From64(v int64) Int128 {
	if v < 0 {
		return Int128{hi: -1, lo: uint64(v)}
	}
	return Int128{lo: uint64(v)}
}

// Int128FromParts creates an Int128 from its high and low words.
func Int128FromParts(hi int64, lo uint64) Int128 {
	return Int128{hi: hi, lo: lo}
}

// Int128FromBig converts a big.Int, ok is false if v does not fit.
func Int128FromBig(v *big.Int) (r Int128, ok bool) {
	if v.Cmp(bigMinInt128) < 0 || v.Cmp(bigMaxInt128) > 0 {
		return
	}
	lo := new(big.Int).And(v, bigMask64)
	hi := new(big.Int).Sub(v, lo)
	hi.Rsh(hi, 64)
	return Int128{hi: hi.Int64(), lo: lo.Uint64()}, true
}

// Int128FromFloat64 truncates f toward zero, ok is false for NaN, infinities
// and values out of range.
func Int128FromFloat64(f float64) (Int128, bool) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return Int128{}, false
	}
	if f >= math.MinInt64 && f < math.MaxInt64 {
		return Int128From64(int64(f)), true
	}
	v, _ := big.NewFloat(math.Trunc(f)).Int(nil)
	return Int128FromBig(v)
}

// ParseInt128 parses a base 10 integer.
func ParseInt128(s string) (Int128, error) {
	if v, err := strconv.ParseInt(s, 10, 64); err == nil {
		return Int128From64(v), nil
	}
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return Int128{}, ErrInvalidArgument.NewError("invalid integer " +
			strconv.Quote(s))
	}
	r, ok := Int128FromBig(v)
	if !ok {
		return Int128{}, ErrInvalidArgument.NewError("integer " + s +
			" is out of 128-bit range")
	}
	return r, nil
}

// Hi returns the high word.
func (a Int128) Hi() int64 { return a.hi }

// Lo returns the low word.
func (a Int128) Lo() uint64 { return a.lo }

// IsZero returns true if a is 0.
func (a Int128) IsZero() bool { return a.hi == 0 && a.lo == 0 }

// Sign returns -1, 0 or 1.
func (a Int128) Sign() int {
	switch {
	case a.hi < 0:
		return -1
	case a.IsZero():
		return 0
	}
	return 1
}

// Cmp compares a and b and returns -1, 0 or 1.
func (a Int128) Cmp(b Int128) int {
	switch {
	case a.hi < b.hi:
		return -1
	case a.hi > b.hi:
		return 1
	case a.lo < b.lo:
		return -1
	case a.lo > b.lo:
		return 1
	}
	return 0
}

// Int64 returns a as int64, ok is false if it does not fit.
func (a Int128) Int64() (int64, bool) {
	if (a.hi == 0 && a.lo <= math.MaxInt64) ||
		(a.hi == -1 && a.lo > math.MaxInt64) {
		return int64(a.lo), true
	}
	return 0, false
}

// Big returns a as a new big.Int.
func (a Int128) Big() *big.Int {
	v := big.NewInt(a.hi)
	v.Lsh(v, 64)
	return v.Add(v, new(big.Int).SetUint64(a.lo))
}

// Float64 returns the nearest float64 value.
func (a Int128) Float64() float64 {
	if v, ok := a.Int64(); ok {
		return float64(v)
	}
	f, _ := new(big.Float).SetInt(a.Big()).Float64()
	return f
}

func (a Int128) String() string {
	if v, ok := a.Int64(); ok {
		return strconv.FormatInt(v, 10)
	}
	return a.Big().String()
}

// Add returns a+b, ok is false on overflow.
func (a Int128) Add(b Int128) (Int128, bool) {
	lo, carry := bits.Add64(a.lo, b.lo, 0)
	hi, _ := bits.Add64(uint64(a.hi), uint64(b.hi), carry)
	r := Int128{hi: int64(hi), lo: lo}
	if (a.hi >= 0) == (b.hi >= 0) && (r.hi >= 0) != (a.hi >= 0) {
		return r, false
	}
	return r, true
}

// Sub returns a-b, ok is false on overflow.
func (a Int128) Sub(b Int128) (Int128, bool) {
	lo, borrow := bits.Sub64(a.lo, b.lo, 0)
	hi, _ := bits.Sub64(uint64(a.hi), uint64(b.hi), borrow)
	r := Int128{hi: int64(hi), lo: lo}
	if (a.hi >= 0) != (b.hi >= 0) && (r.hi >= 0) != (a.hi >= 0) {
		return r, false
	}
	return r, true
}

// Neg returns -a, ok is false for MinInt128.
func (a Int128) Neg() (Int128, bool) {
	return Int128{}.Sub(a)
}

// Mul returns a*b, ok is false on overflow.
func (a Int128) Mul(b Int128) (Int128, bool) {
	if x, ok := a.Int64(); ok {
		if y, ok := b.Int64(); ok {
			hi, lo := bits.Mul64(abs64(x), abs64(y))
			if hi == 0 && lo <= math.MaxInt64 {
				v := int64(lo)
				if (x < 0) != (y < 0) {
					v = -v
				}
				return Int128From64(v), true
			}
		}
	}
	return Int128FromBig(new(big.Int).Mul(a.Big(), b.Big()))
}

// Quo returns a/b truncated toward zero. b must not be zero, ok is false
// for MinInt128 / -1.
func (a Int128) Quo(b Int128) (Int128, bool) {
	if x, ok := a.Int64(); ok && x != math.MinInt64 {
		if y, ok := b.Int64(); ok {
			return Int128From64(x / y), true
		}
	}
	return Int128FromBig(new(big.Int).Quo(a.Big(), b.Big()))
}

// Rem returns the remainder of a/b with the sign of a. b must not be zero.
func (a Int128) Rem(b Int128) Int128 {
	if x, ok := a.Int64(); ok && x != math.MinInt64 {
		if y, ok := b.Int64(); ok {
			return Int128From64(x % y)
		}
	}
	r, _ := Int128FromBig(new(big.Int).Rem(a.Big(), b.Big()))
	return r
}

// Pow returns a**e for a non-negative e, ok is false on overflow.
func (a Int128) Pow(e Int128) (Int128, bool) {
	if e.Sign() < 0 {
		return Int128{}, false
	}
	// |a| <= 1 never overflows, other bases overflow before e reaches 128
	switch {
	case a.IsZero():
		if e.IsZero() {
			return Int128From64(1), true
		}
		return Int128{}, true
	case a.Cmp(Int128From64(1)) == 0:
		return a, true
	case a.Cmp(Int128From64(-1)) == 0:
		if e.lo&1 == 0 {
			return Int128From64(1), true
		}
		return a, true
	}
	if e.Cmp(Int128From64(128)) >= 0 {
		return Int128{}, false
	}
	return Int128FromBig(new(big.Int).Exp(a.Big(), e.Big(), nil))
}

func abs64(v int64) uint64 {
	if v < 0 {
		return uint64(-v)
	}
	return uint64(v)
}
