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

package types

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseDecimal64(t *testing.T) {
	x, err := ParseDecimal64("99999.99999999999999999999999999999999", 12, 6)
	require.NoError(t, err)
	require.Equal(t, Decimal64(100000000000), x)

	x, err = ParseDecimal64("12.345", 5, 3)
	require.NoError(t, err)
	require.Equal(t, Decimal64(12345), x)

	x, err = ParseDecimal64("-12.3456", 5, 3)
	require.NoError(t, err)
	require.Equal(t, Decimal64(-12346), x)

	_, err = ParseDecimal64("abc", 5, 3)
	require.Error(t, err)

	_, err = ParseDecimal64("99999", 4, 0)
	require.Error(t, err)
}

func TestParseDecimal128(t *testing.T) {
	x, err := ParseDecimal128("99999.999999999999999999999999999999999", 12, 6)
	require.NoError(t, err)
	require.Equal(t, uint64(100000000000), x.B0_63)
	require.Equal(t, uint64(0), x.B64_127)

	x, err = ParseDecimal128("-1.5", 38, 1)
	require.NoError(t, err)
	require.Equal(t, -1, x.Sign())
	v, ok := x.ToDecimal64()
	require.True(t, ok)
	require.Equal(t, Decimal64(-15), v)
}

func TestCompare(t *testing.T) {
	require.Equal(t, 1, CompareDecimal64(Decimal64(10), Decimal64(-10)))
	require.Equal(t, -1, CompareDecimal64(Decimal64(-10), Decimal64(10)))
	require.Equal(t, 0, CompareDecimal64(Decimal64(7), Decimal64(7)))

	a := FromInt64ToDecimal128(-5)
	b := FromInt64ToDecimal128(3)
	require.Equal(t, -1, CompareDecimal128(a, b))
	require.Equal(t, 1, CompareDecimal128(b, a))
	require.Equal(t, 0, CompareDecimal128(a, a))
}

func TestMinus(t *testing.T) {
	x := FromInt64ToDecimal128(-42)
	y := x.Minus()
	v, ok := y.ToDecimal64()
	require.True(t, ok)
	require.Equal(t, Decimal64(42), v)
	require.Equal(t, 1, y.Sign())
}

func TestRescaleUp(t *testing.T) {
	// 12.345 at scale 3 -> scale 5.
	v, ok := RescaleDecimal64(Decimal64(12345), 3, 10, 5)
	require.True(t, ok)
	require.Equal(t, Decimal64(1234500), v)

	// Overflow the target precision.
	_, ok = RescaleDecimal64(Decimal64(12345), 3, 5, 5)
	require.False(t, ok)
}

func TestRescaleDownHalfUp(t *testing.T) {
	// 12.345 at scale 3 -> scale 1 rounds half up on the dropped 45.
	v, ok := RescaleDecimal64(Decimal64(12345), 3, 4, 1)
	require.True(t, ok)
	require.Equal(t, Decimal64(123), v)

	// 12.35 -> 12.4 at scale 1.
	v, ok = RescaleDecimal64(Decimal64(1235), 2, 4, 1)
	require.True(t, ok)
	require.Equal(t, Decimal64(124), v)

	// Negative values round by magnitude.
	v, ok = RescaleDecimal64(Decimal64(-1235), 2, 4, 1)
	require.True(t, ok)
	require.Equal(t, Decimal64(-124), v)
}

func TestRescaleSameScaleChecksPrecision(t *testing.T) {
	v, ok := RescaleDecimal64(Decimal64(12345), 2, 6, 2)
	require.True(t, ok)
	require.Equal(t, Decimal64(12345), v)

	_, ok = RescaleDecimal64(Decimal64(99999999999), 2, 6, 2)
	require.False(t, ok)
}

func TestRescale128Wide(t *testing.T) {
	// 10^20 at scale 0 -> scale 2.
	big, err := ParseDecimal128("100000000000000000000", 38, 0)
	require.NoError(t, err)
	v, ok := RescaleDecimal128(big, 0, 38, 2)
	require.True(t, ok)
	require.Equal(t, "10000000000000000000000", u128String(v.abs()))

	// Scale down by more than 18 digits in one go.
	v, ok = RescaleDecimal128(big, 20, 38, 0)
	require.True(t, ok)
	got, ok2 := v.ToDecimal64()
	require.True(t, ok2)
	require.Equal(t, Decimal64(1), got)
}

func TestNarrowTo64(t *testing.T) {
	big, err := ParseDecimal128("10000000000000000000", 38, 0)
	require.NoError(t, err)
	_, ok := big.ToDecimal64()
	require.False(t, ok)
}

func TestFitsPrecision(t *testing.T) {
	require.True(t, Decimal64(99999).FitsPrecision(5))
	require.False(t, Decimal64(100000).FitsPrecision(5))
	require.True(t, Decimal64(-99999).FitsPrecision(5))
	require.False(t, Decimal64(-100000).FitsPrecision(5))
}

func TestFormat(t *testing.T) {
	require.Equal(t, "12.345", Decimal64(12345).Format(3))
	require.Equal(t, "-0.05", Decimal64(-5).Format(2))
	require.Equal(t, "42", Decimal64(42).Format(0))
	require.Equal(t, "1.5", FromInt64ToDecimal128(15).Format(1))
}
