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
	"context"
	"fmt"
	"math/bits"
	"strings"

	"github.com/vectisdb/vectis/pkg/common/verr"
)

// Decimal64 is the unscaled value of a short decimal. Decimal128 is the
// unscaled value of a long decimal, stored as a two's-complement 128-bit
// integer in two little-endian words.
type Decimal64 int64

type Decimal128 struct {
	B0_63   uint64
	B64_127 uint64
}

// pow10i64[i] = 10^i. 10^18 is the largest power of ten an int64 holds
// with one decimal digit to spare.
var pow10i64 = [19]int64{
	1, 10, 100, 1000, 10000, 100000, 1000000, 10000000, 100000000,
	1000000000, 10000000000, 100000000000, 1000000000000, 10000000000000,
	100000000000000, 1000000000000000, 10000000000000000, 100000000000000000,
	1000000000000000000,
}

// pow10u128[i] = magnitude of 10^i as a (hi, lo) pair, i in [0, 38].
var pow10u128 [39][2]uint64

func init() {
	hi, lo := uint64(0), uint64(1)
	for i := 0; i <= 38; i++ {
		pow10u128[i] = [2]uint64{hi, lo}
		h1, l1 := bits.Mul64(lo, 10)
		hi = hi*10 + h1
		lo = l1
	}
}

func Pow10Int64(n int32) int64 {
	return pow10i64[n]
}

func FromInt64ToDecimal128(v int64) Decimal128 {
	d := Decimal128{B0_63: uint64(v)}
	if v < 0 {
		d.B64_127 = ^uint64(0)
	}
	return d
}

func (x Decimal64) Sign() int {
	switch {
	case x < 0:
		return -1
	case x > 0:
		return 1
	}
	return 0
}

func (x Decimal64) Minus() Decimal64 {
	return -x
}

func CompareDecimal64(x, y Decimal64) int {
	switch {
	case x < y:
		return -1
	case x > y:
		return 1
	}
	return 0
}

func (x Decimal128) Sign() int {
	if x.B64_127>>63 != 0 {
		return -1
	}
	if x.B64_127 == 0 && x.B0_63 == 0 {
		return 0
	}
	return 1
}

func (x Decimal128) Minus() Decimal128 {
	lo := ^x.B0_63 + 1
	hi := ^x.B64_127
	if lo == 0 {
		hi++
	}
	return Decimal128{B0_63: lo, B64_127: hi}
}

func (x Decimal128) abs() (hi, lo uint64) {
	if x.Sign() < 0 {
		m := x.Minus()
		return m.B64_127, m.B0_63
	}
	return x.B64_127, x.B0_63
}

func CompareDecimal128(x, y Decimal128) int {
	xs, ys := x.Sign(), y.Sign()
	if xs != ys {
		if xs < ys {
			return -1
		}
		return 1
	}
	// Same sign: two's-complement words compare like unsigned.
	if x.B64_127 != y.B64_127 {
		if x.B64_127 < y.B64_127 {
			return -1
		}
		return 1
	}
	if x.B0_63 != y.B0_63 {
		if x.B0_63 < y.B0_63 {
			return -1
		}
		return 1
	}
	return 0
}

func cmpU128(ahi, alo, bhi, blo uint64) int {
	if ahi != bhi {
		if ahi < bhi {
			return -1
		}
		return 1
	}
	if alo != blo {
		if alo < blo {
			return -1
		}
		return 1
	}
	return 0
}

// mulU128by64 multiplies a 128-bit magnitude by m. ok is false when the
// product does not fit in 127 bits.
func mulU128by64(hi, lo, m uint64) (rhi, rlo uint64, ok bool) {
	h1, l1 := bits.Mul64(lo, m)
	h2, l2 := bits.Mul64(hi, m)
	if h2 != 0 {
		return 0, 0, false
	}
	rhi = l2 + h1
	if rhi < l2 || rhi>>63 != 0 {
		return 0, 0, false
	}
	return rhi, l1, true
}

// divU128by64 divides a 128-bit magnitude by d, returning quotient and
// remainder. d must be nonzero and hi < d is not required.
func divU128by64(hi, lo, d uint64) (qhi, qlo, rem uint64) {
	qhi = hi / d
	r := hi % d
	qlo, rem = bits.Div64(r, lo, d)
	return
}

// scaleUpU128 multiplies by 10^n, n in [0, 38]. ok false on overflow.
func scaleUpU128(hi, lo uint64, n int32) (uint64, uint64, bool) {
	for n > 0 {
		step := n
		if step > 19 {
			step = 19
		}
		var ok bool
		var m uint64
		if step == 19 {
			m = 10000000000000000000
		} else {
			m = uint64(pow10i64[step])
		}
		hi, lo, ok = mulU128by64(hi, lo, m)
		if !ok {
			return 0, 0, false
		}
		n -= step
	}
	return hi, lo, true
}

// scaleDownU128 divides by 10^n with round half up, n in [0, 38].
func scaleDownU128(hi, lo uint64, n int32) (uint64, uint64) {
	for n > 0 {
		step := n
		// Round only on the last chunk; earlier chunks truncate whole
		// powers that later chunks keep dividing.
		if step > 18 {
			step = 18
			d := uint64(pow10i64[step])
			hi, lo, _ = divU128by64(hi, lo, d)
			n -= step
			continue
		}
		d := uint64(pow10i64[step])
		qhi, qlo, rem := divU128by64(hi, lo, d)
		if rem >= (d+1)/2 && d > 1 {
			qlo++
			if qlo == 0 {
				qhi++
			}
		}
		return qhi, qlo
	}
	return hi, lo
}

func makeDecimal128(neg bool, hi, lo uint64) Decimal128 {
	d := Decimal128{B0_63: lo, B64_127: hi}
	if neg {
		return d.Minus()
	}
	return d
}

// fitsPrecision128 reports |(hi,lo)| < 10^precision.
func fitsPrecision128(hi, lo uint64, precision int32) bool {
	bound := pow10u128[precision]
	return cmpU128(hi, lo, bound[0], bound[1]) < 0
}

// RescaleDecimal128 converts v from fromScale to (toPrecision, toScale)
// with round half up. ok is false when the result does not fit.
func RescaleDecimal128(v Decimal128, fromScale, toPrecision, toScale int32) (Decimal128, bool) {
	neg := v.Sign() < 0
	hi, lo := v.abs()
	if diff := toScale - fromScale; diff >= 0 {
		var ok bool
		hi, lo, ok = scaleUpU128(hi, lo, diff)
		if !ok {
			return Decimal128{}, false
		}
	} else {
		hi, lo = scaleDownU128(hi, lo, -diff)
	}
	if !fitsPrecision128(hi, lo, toPrecision) {
		return Decimal128{}, false
	}
	return makeDecimal128(neg, hi, lo), true
}

// RescaleDecimal64 is the short-to-short fast path.
func RescaleDecimal64(v Decimal64, fromScale, toPrecision, toScale int32) (Decimal64, bool) {
	d, ok := RescaleDecimal64To128(v, fromScale, toPrecision, toScale)
	if !ok {
		return 0, false
	}
	return d.ToDecimal64()
}

func RescaleDecimal64To128(v Decimal64, fromScale, toPrecision, toScale int32) (Decimal128, bool) {
	return RescaleDecimal128(FromInt64ToDecimal128(int64(v)), fromScale, toPrecision, toScale)
}

func RescaleDecimal128To64(v Decimal128, fromScale, toPrecision, toScale int32) (Decimal64, bool) {
	d, ok := RescaleDecimal128(v, fromScale, toPrecision, toScale)
	if !ok {
		return 0, false
	}
	return d.ToDecimal64()
}

// ToDecimal64 narrows to 64 bits. ok is false when the value does not
// fit an int64.
func (x Decimal128) ToDecimal64() (Decimal64, bool) {
	v := int64(x.B0_63)
	if x.Sign() < 0 {
		if x.B64_127 != ^uint64(0) || v >= 0 {
			return 0, false
		}
	} else {
		if x.B64_127 != 0 || v < 0 {
			return 0, false
		}
	}
	return Decimal64(v), true
}

// FitsPrecision reports |x| < 10^precision.
func (x Decimal64) FitsPrecision(precision int32) bool {
	if precision >= MaxDecimal64Precision+1 {
		return true
	}
	bound := pow10i64[precision]
	return x > Decimal64(-bound) && x < Decimal64(bound)
}

func (x Decimal128) FitsPrecision(precision int32) bool {
	hi, lo := x.abs()
	return fitsPrecision128(hi, lo, precision)
}

// Format renders the unscaled value with a decimal point at scale.
func (x Decimal64) Format(scale int32) string {
	return formatDecimalString(fmt.Sprintf("%d", int64(x)), scale)
}

func (x Decimal128) Format(scale int32) string {
	neg := x.Sign() < 0
	hi, lo := x.abs()
	digits := u128String(hi, lo)
	if neg {
		digits = "-" + digits
	}
	return formatDecimalString(digits, scale)
}

func u128String(hi, lo uint64) string {
	if hi == 0 {
		return fmt.Sprintf("%d", lo)
	}
	var out []byte
	for hi != 0 || lo != 0 {
		var rem uint64
		hi, lo, rem = divU128by64(hi, lo, 10)
		out = append(out, byte('0'+rem))
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return string(out)
}

func formatDecimalString(digits string, scale int32) string {
	neg := strings.HasPrefix(digits, "-")
	if neg {
		digits = digits[1:]
	}
	if scale > 0 {
		for int32(len(digits)) <= scale {
			digits = "0" + digits
		}
		point := int32(len(digits)) - scale
		digits = digits[:point] + "." + digits[point:]
	}
	if neg {
		digits = "-" + digits
	}
	return digits
}

// ParseDecimal64 parses a decimal literal into an unscaled value at the
// requested scale, rounding half up, and checks it against width digits.
func ParseDecimal64(s string, width, scale int32) (Decimal64, error) {
	d, err := ParseDecimal128(s, width, scale)
	if err != nil {
		return 0, err
	}
	v, ok := d.ToDecimal64()
	if !ok {
		return 0, verr.NewOutOfRange(context.Background(), "decimal64", "value %s", s)
	}
	return v, nil
}

func ParseDecimal128(s string, width, scale int32) (Decimal128, error) {
	ctx := context.Background()
	str := strings.TrimSpace(s)
	neg := false
	if strings.HasPrefix(str, "-") {
		neg = true
		str = str[1:]
	} else if strings.HasPrefix(str, "+") {
		str = str[1:]
	}
	intPart, fracPart := str, ""
	if idx := strings.IndexByte(str, '.'); idx >= 0 {
		intPart, fracPart = str[:idx], str[idx+1:]
	}
	if intPart == "" && fracPart == "" {
		return Decimal128{}, verr.NewInvalidInput(ctx, "invalid decimal literal %s", s)
	}

	var hi, lo uint64
	digit := func(c byte) (uint64, error) {
		if c < '0' || c > '9' {
			return 0, verr.NewInvalidInput(ctx, "invalid decimal literal %s", s)
		}
		return uint64(c - '0'), nil
	}
	push := func(d uint64) error {
		var ok bool
		hi, lo, ok = mulU128by64(hi, lo, 10)
		if !ok {
			return verr.NewOutOfRange(ctx, "decimal", "value %s", s)
		}
		lo += d
		if lo < d {
			hi++
		}
		return nil
	}
	for i := 0; i < len(intPart); i++ {
		d, err := digit(intPart[i])
		if err != nil {
			return Decimal128{}, err
		}
		if err := push(d); err != nil {
			return Decimal128{}, err
		}
	}
	kept := fracPart
	if int32(len(kept)) > scale {
		kept = kept[:scale]
	}
	for i := 0; i < len(kept); i++ {
		d, err := digit(kept[i])
		if err != nil {
			return Decimal128{}, err
		}
		if err := push(d); err != nil {
			return Decimal128{}, err
		}
	}
	for i := int32(len(kept)); i < scale; i++ {
		if err := push(0); err != nil {
			return Decimal128{}, err
		}
	}
	// Round half up on the first dropped fractional digit.
	if int32(len(fracPart)) > scale {
		d, err := digit(fracPart[scale])
		if err != nil {
			return Decimal128{}, err
		}
		if d >= 5 {
			lo++
			if lo == 0 {
				hi++
			}
		}
	}
	if width > MaxDecimal128Precision {
		width = MaxDecimal128Precision
	}
	if !fitsPrecision128(hi, lo, width) {
		return Decimal128{}, verr.NewOutOfRange(ctx, "decimal", "value %s", s)
	}
	return makeDecimal128(neg, hi, lo), nil
}
