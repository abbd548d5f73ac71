package slvr_test

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	. "github.com/slvr-lang/slvr"
)

func TestInt128Parse(t *testing.T) {
	max, err := ParseInt128("170141183460469231731687303715884105727")
	require.NoError(t, err)
	require.Equal(t, MaxInt128, max)
	require.Equal(t, "170141183460469231731687303715884105727", max.String())

	min, err := ParseInt128("-170141183460469231731687303715884105728")
	require.NoError(t, err)
	require.Equal(t, MinInt128, min)
	require.Equal(t, "-170141183460469231731687303715884105728", min.String())

	_, err = ParseInt128("170141183460469231731687303715884105728")
	require.True(t, errors.Is(err, ErrInvalidArgument))
	_, err = ParseInt128("12x")
	require.True(t, errors.Is(err, ErrInvalidArgument))

	require.Equal(t, Int128From64(-1), Int128FromParts(-1, math.MaxUint64))
	require.Equal(t, int64(-1), Int128From64(-1).Hi())
	require.Equal(t, uint64(math.MaxUint64), Int128From64(-1).Lo())

	v, ok := Int128From64(-42).Int64()
	require.True(t, ok)
	require.Equal(t, int64(-42), v)
	_, ok = MaxInt128.Int64()
	require.False(t, ok)
}

func TestInt128Arithmetic(t *testing.T) {
	i := Int128From64
	one := i(1)

	_, ok := MaxInt128.Add(one)
	require.False(t, ok)
	_, ok = MinInt128.Sub(one)
	require.False(t, ok)
	_, ok = MinInt128.Neg()
	require.False(t, ok)
	r, ok := i(-5).Neg()
	require.True(t, ok)
	require.Equal(t, i(5), r)

	r, ok = i(math.MaxInt64).Add(one)
	require.True(t, ok)
	require.Equal(t, "9223372036854775808", r.String())
	r, ok = r.Sub(one)
	require.True(t, ok)
	require.Equal(t, i(math.MaxInt64), r)

	r, ok = i(math.MaxInt64).Mul(i(2))
	require.True(t, ok)
	require.Equal(t, "18446744073709551614", r.String())
	r, ok = i(math.MinInt64).Mul(i(-1))
	require.True(t, ok)
	require.Equal(t, "9223372036854775808", r.String())
	_, ok = MaxInt128.Mul(i(2))
	require.False(t, ok)

	r, ok = i(-7).Quo(i(2))
	require.True(t, ok)
	require.Equal(t, i(-3), r)
	require.Equal(t, i(-1), i(-7).Rem(i(2)))
	require.Equal(t, i(1), i(7).Rem(i(-2)))
	_, ok = MinInt128.Quo(i(-1))
	require.False(t, ok)
	r, ok = MinInt128.Quo(i(2))
	require.True(t, ok)
	require.Equal(t, "-85070591730234615865843651857942052864", r.String())

	r, ok = i(2).Pow(i(126))
	require.True(t, ok)
	require.Equal(t, "85070591730234615865843651857942052864", r.String())
	_, ok = i(2).Pow(i(127))
	require.False(t, ok)
	_, ok = i(2).Pow(i(1000))
	require.False(t, ok)
	_, ok = i(2).Pow(i(-1))
	require.False(t, ok)
	r, _ = i(0).Pow(i(0))
	require.Equal(t, one, r)
	r, _ = i(-1).Pow(i(3))
	require.Equal(t, i(-1), r)
	r, _ = i(-1).Pow(i(4))
	require.Equal(t, one, r)

	require.Equal(t, -1, MinInt128.Cmp(MaxInt128))
	require.Equal(t, 1, i(0).Cmp(i(-1)))
	require.Equal(t, 0, i(3).Cmp(i(3)))
	require.Equal(t, -1, i(-3).Sign())
	require.Equal(t, 0, i(0).Sign())
	require.Equal(t, 1, MaxInt128.Sign())
}

func TestInt128Float(t *testing.T) {
	r, ok := Int128FromFloat64(1e20)
	require.True(t, ok)
	require.Equal(t, "100000000000000000000", r.String())
	require.Equal(t, 1e20, r.Float64())

	r, ok = Int128FromFloat64(-2.5)
	require.True(t, ok)
	require.Equal(t, Int128From64(-2), r)

	for _, f := range []float64{math.NaN(), math.Inf(1), math.Inf(-1), 1e40} {
		_, ok = Int128FromFloat64(f)
		require.False(t, ok, "%v", f)
	}
}

func TestValueConversions(t *testing.T) {
	v, ok := ToInteger(Decimal(2.9))
	require.True(t, ok)
	require.Equal(t, Int(2), v)
	v, ok = ToInteger(String(" 42 "))
	require.True(t, ok)
	require.Equal(t, Int(42), v)
	v, ok = ToInteger(True)
	require.True(t, ok)
	require.Equal(t, Int(1), v)
	_, ok = ToInteger(String("x"))
	require.False(t, ok)
	_, ok = ToInteger(Null)
	require.False(t, ok)

	d, ok := ToDecimal(Int(2))
	require.True(t, ok)
	require.Equal(t, Decimal(2), d)
	d, ok = ToDecimal(String("1.5"))
	require.True(t, ok)
	require.Equal(t, Decimal(1.5), d)
	_, ok = ToDecimal(List{})
	require.False(t, ok)

	require.Equal(t, "a", ToString(String("a")))
	require.Equal(t, `"a"`, String("a").String())
	require.Equal(t, "3", ToString(Int(3)))

	require.True(t, ToBool(True))
	require.True(t, ToBool(Int(-1)))
	require.True(t, ToBool(List{Null}))
	for _, v := range []Value{False, Int(0), Decimal(0), String(""), List{},
		Object{}, Null, Unit} {
		require.False(t, ToBool(v), "%s", v)
	}
}

// Decimal equality is relative to the larger magnitude and absolute below 1.
func TestDecimalEqualityTolerance(t *testing.T) {
	next := func(f float64, n int) float64 {
		for ; n > 0; n-- {
			f = math.Nextafter(f, math.Inf(1))
		}
		return f
	}

	require.True(t, Decimal(1e20).Equal(Decimal(next(1e20, 1))))
	require.False(t, Decimal(1e20).Equal(Decimal(next(1e20, 4))))
	require.True(t, Decimal(1).Equal(Decimal(next(1, 1))))
	require.False(t, Decimal(1).Equal(Decimal(next(1, 2))))
	require.True(t, Decimal(1e-17).Equal(Decimal(2e-17)))
	require.False(t, Decimal(0).Equal(Decimal(1e-15)))
	require.True(t, Decimal(-1e20).Equal(Decimal(-next(1e20, 1))))
	require.False(t, Decimal(math.NaN()).Equal(Decimal(math.NaN())))
	require.True(t, Decimal(math.Inf(1)).Equal(Decimal(math.Inf(1))))
}

func TestValueEquality(t *testing.T) {
	require.True(t, Decimal(0.1+0.2).Equal(Decimal(0.3)))
	require.False(t, Decimal(1).Equal(Decimal(1.0001)))
	require.False(t, Int(1).Equal(Decimal(1)))
	require.True(t, Null.Equal(Null))

	a := Object{"l": List{Int(1), String("x")}, "o": Object{"n": Null}}
	b := Object{"o": Object{"n": Null}, "l": List{Int(1), String("x")}}
	require.True(t, a.Equal(b))
	b["l"] = List{Int(1)}
	require.False(t, a.Equal(b))
	require.Equal(t, `{"l": [1, "x"], "o": {"n": null}}`, a.String())
}
