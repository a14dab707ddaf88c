// Copyright 2022 VectisDB
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package colexec

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vectisdb/vectis/pkg/common/verr"
	"github.com/vectisdb/vectis/pkg/container/sel"
	"github.com/vectisdb/vectis/pkg/container/types"
	"github.com/vectisdb/vectis/pkg/container/vector"
	"github.com/vectisdb/vectis/pkg/testutil"
)

func decimalWitness(t *testing.T, precision, scale int32, length int) *vector.Vector {
	mp := testutil.TestMPool()
	vec, err := vector.NewConstFixed(types.New(types.T_decimal64, precision, scale), types.Decimal64(0), length, mp)
	require.NoError(t, err)
	return vec
}

func TestCheckOverflowNullOnOverflow(t *testing.T) {
	mp := testutil.TestMPool()
	in := testutil.NewDecimal64Vector(mp, 10, 2, []int64{12345, 99999999999})
	ctx, _ := newTestCtx(t, in)

	args := []*vector.Vector{
		in,
		testutil.NewConstBool(mp, true, 2),
		decimalWitness(t, 6, 2, 2),
	}
	var result *vector.Vector
	fn := &CheckOverflowFunction{}
	require.NoError(t, fn.Apply(sel.New(2), args, *args[2].GetType(), ctx, &result))

	out := vector.MustFixedCol[types.Decimal64](result)
	require.Equal(t, types.Decimal64(12345), out[0])
	require.False(t, result.IsNullAt(0))
	require.True(t, result.IsNullAt(1))
	require.Nil(t, ctx.Errors())
}

func TestCheckOverflowRaises(t *testing.T) {
	mp := testutil.TestMPool()
	in := testutil.NewDecimal64Vector(mp, 10, 2, []int64{12345, 99999999999})
	ctx, _ := newTestCtx(t, in)

	args := []*vector.Vector{
		in,
		testutil.NewConstBool(mp, false, 2),
		decimalWitness(t, 6, 2, 2),
	}
	var result *vector.Vector
	fn := &CheckOverflowFunction{}
	require.NoError(t, fn.Apply(sel.New(2), args, *args[2].GetType(), ctx, &result))

	require.False(t, ctx.Errors().HasErrorAt(0))
	require.True(t, ctx.Errors().HasErrorAt(1))

	// Under throwOnError the driver surfaces the failure for surviving rows.
	require.True(t, ctx.ThrowOnError())
	err := ctx.Errors().ThrowFirstError(sel.New(2))
	require.Error(t, err)
	require.True(t, verr.IsErrCode(err, verr.ErrOutOfRange))

	// A selection that drops row 1 surfaces nothing.
	survivors := sel.NewEmpty(2)
	survivors.SetValid(0, true)
	survivors.UpdateBounds()
	require.NoError(t, ctx.Errors().ThrowFirstError(survivors))
}

func TestCheckOverflowUnderTry(t *testing.T) {
	mp := testutil.TestMPool()
	in := testutil.NewDecimal64Vector(mp, 10, 2, []int64{12345, 99999999999})
	ctx, _ := newTestCtx(t, in)

	witness := decimalWitness(t, 6, 2, 2)
	expr := NewTryExpr(NewFuncExpr(&CheckOverflowFunction{}, *witness.GetType(),
		NewFieldExpr(0, *in.GetType()),
		NewConstExpr(testutil.NewConstBool(mp, false, 2)),
		NewConstExpr(witness)))

	result := evalSingle(t, expr, ctx, sel.New(2))
	require.False(t, result.IsNullAt(0))
	require.True(t, result.IsNullAt(1))
	// TRY swallowed the error.
	require.Nil(t, ctx.Errors())
}

func TestCheckOverflowLongToShort(t *testing.T) {
	mp := testutil.TestMPool()
	in := testutil.NewDecimal128Vector(mp, 20, 2, []types.Decimal128{
		types.FromInt64ToDecimal128(12345),
		types.FromInt64ToDecimal128(-99999999),
	})
	ctx, _ := newTestCtx(t, in)

	args := []*vector.Vector{
		in,
		testutil.NewConstBool(mp, true, 2),
		decimalWitness(t, 6, 2, 2),
	}
	var result *vector.Vector
	fn := &CheckOverflowFunction{}
	require.NoError(t, fn.Apply(sel.New(2), args, *args[2].GetType(), ctx, &result))

	out := vector.MustFixedCol[types.Decimal64](result)
	require.Equal(t, types.Decimal64(12345), out[0])
	require.True(t, result.IsNullAt(1))
}

func TestMakeDecimalShort(t *testing.T) {
	mp := testutil.TestMPool()
	unscaled := testutil.NewInt64Vector(mp, []int64{123, -9999999, 10000000})
	ctx, _ := newTestCtx(t, unscaled)

	args := []*vector.Vector{
		unscaled,
		decimalWitness(t, 7, 1, 3),
		testutil.NewConstBool(mp, true, 3),
	}
	var result *vector.Vector
	fn := &MakeDecimalFunction{}
	require.NoError(t, fn.Apply(sel.New(3), args, *args[1].GetType(), ctx, &result))

	out := vector.MustFixedCol[types.Decimal64](result)
	require.Equal(t, types.Decimal64(123), out[0])
	require.Equal(t, types.Decimal64(-9999999), out[1])
	require.True(t, result.IsNullAt(2), "10^7 has too many digits for precision 7")
}

func TestMakeDecimalShortRaises(t *testing.T) {
	mp := testutil.TestMPool()
	unscaled := testutil.NewInt64Vector(mp, []int64{10000000})
	ctx, _ := newTestCtx(t, unscaled)

	args := []*vector.Vector{
		unscaled,
		decimalWitness(t, 7, 1, 1),
		testutil.NewConstBool(mp, false, 1),
	}
	var result *vector.Vector
	fn := &MakeDecimalFunction{}
	require.NoError(t, fn.Apply(sel.New(1), args, *args[1].GetType(), ctx, &result))
	require.True(t, ctx.Errors().HasErrorAt(0))
}

func TestMakeDecimalLongWidens(t *testing.T) {
	mp := testutil.TestMPool()
	unscaled := testutil.NewInt64Vector(mp, []int64{123456789012345678, -42})
	ctx, _ := newTestCtx(t, unscaled)

	witness := vector.NewConstNull(types.New(types.T_decimal128, 20, 0), 2)
	args := []*vector.Vector{
		unscaled,
		witness,
		testutil.NewConstBool(mp, false, 2),
	}
	var result *vector.Vector
	fn := &MakeDecimalFunction{}
	require.NoError(t, fn.Apply(sel.New(2), args, *witness.GetType(), ctx, &result))

	out := vector.MustFixedCol[types.Decimal128](result)
	require.Equal(t, types.FromInt64ToDecimal128(123456789012345678), out[0])
	require.Equal(t, types.FromInt64ToDecimal128(-42), out[1])
	require.Nil(t, ctx.Errors())
}

func TestRoundDecimalResultTypeRule(t *testing.T) {
	// (5,3) rounded to scale 1 -> (4,1)
	got := RoundDecimalResultType(types.New(types.T_decimal64, 5, 3), 1)
	require.Equal(t, int32(4), got.Width)
	require.Equal(t, int32(1), got.Scale)

	// Negative scale zeroes the fraction.
	got = RoundDecimalResultType(types.New(types.T_decimal64, 10, 2), -1)
	require.Equal(t, int32(9), got.Width)
	require.Equal(t, int32(0), got.Scale)

	// Precision never exceeds 38.
	got = RoundDecimalResultType(types.New(types.T_decimal128, 38, 10), 20)
	require.Equal(t, int32(38), got.Width)
	require.Equal(t, int32(10), got.Scale)
}

func TestRoundDecimal(t *testing.T) {
	mp := testutil.TestMPool()
	in := testutil.NewDecimal64Vector(mp, 5, 3, []int64{12345})
	ctx, _ := newTestCtx(t, in)

	args := []*vector.Vector{in, testutil.NewConstInt32(mp, 1, 1)}
	var result *vector.Vector
	fn := &RoundDecimalFunction{}
	require.NoError(t, fn.Apply(sel.New(1), args, types.Type{}, ctx, &result))

	require.Equal(t, int32(4), result.GetType().Width)
	require.Equal(t, int32(1), result.GetType().Scale)
	out := vector.MustFixedCol[types.Decimal64](result)
	require.Equal(t, types.Decimal64(123), out[0])
}

func TestUnscaledValue(t *testing.T) {
	mp := testutil.TestMPool()
	in := testutil.NewDecimal64Vector(mp, 10, 2, []int64{1234, -5})
	ctx, _ := newTestCtx(t, in)

	var result *vector.Vector
	fn := &UnscaledValueFunction{}
	require.NoError(t, fn.Apply(sel.New(2), []*vector.Vector{in}, types.Type{}, ctx, &result))

	require.Equal(t, types.T_int64, result.GetType().Oid)
	out := vector.MustFixedCol[int64](result)
	require.Equal(t, int64(1234), out[0])
	require.Equal(t, int64(-5), out[1])
	// The result shares the argument's buffer.
	require.True(t, in.Shared())
}

func TestUnscaledValueRequiresShortDecimal(t *testing.T) {
	mp := testutil.TestMPool()
	in := testutil.NewDecimal128Vector(mp, 20, 2, []types.Decimal128{types.FromInt64ToDecimal128(1)})
	ctx, _ := newTestCtx(t, in)

	var result *vector.Vector
	fn := &UnscaledValueFunction{}
	err := fn.Apply(sel.New(1), []*vector.Vector{in}, types.Type{}, ctx, &result)
	require.Error(t, err)
	require.True(t, verr.IsErrCode(err, verr.ErrInvalidState))
}
