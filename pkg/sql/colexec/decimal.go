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
	"github.com/vectisdb/vectis/pkg/common/verr"
	"github.com/vectisdb/vectis/pkg/container/sel"
	"github.com/vectisdb/vectis/pkg/container/types"
	"github.com/vectisdb/vectis/pkg/container/vector"
)

// CheckOverflowFunction rescales a decimal input to the precision and
// scale of the witness output type with round half up. On overflow the
// row goes null when nullOnOverflow, or raises a user error otherwise.
//
// args: (decimal, nullOnOverflow const bool, witness of the out type).
type CheckOverflowFunction struct{}

func (*CheckOverflowFunction) IsDefaultNull() bool {
	return true
}

func (*CheckOverflowFunction) SupportsFlatNoNullsFastPath() bool {
	return false
}

func (*CheckOverflowFunction) Apply(rows *sel.Selection, args []*vector.Vector, _ types.Type, ctx *EvalCtx, result **vector.Vector) error {
	if len(args) != 3 {
		return verr.NewInvalidArg(ctx.Proc().Ctx(), "check_overflow arg count", len(args))
	}
	fromType := *args[0].GetType()
	toType := *args[2].GetType()
	if err := ctx.EnsureWritable(rows, toType, result); err != nil {
		return err
	}
	clearStaleNulls(*result, rows)

	d0, err := NewLocalDecodedWith(ctx, args[0], rows)
	if err != nil {
		return err
	}
	defer d0.Release()
	d1, err := NewLocalDecodedWith(ctx, args[1], rows)
	if err != nil {
		return err
	}
	defer d1.Release()
	if !d1.Decoded().IsConstantMapping() {
		return verr.NewInvalidState(ctx.Proc().Ctx(), "check_overflow nullOnOverflow must be constant")
	}
	nullOnOverflow := vector.DecodedValueAt[bool](d1.Decoded(), 0)

	arg := d0.Decoded()
	overflow := func(row int) error {
		if nullOnOverflow {
			(*result).SetNull(row, true)
			return nil
		}
		return verr.NewOutOfRange(ctx.Proc().Ctx(), toType.String(),
			"value at row %d does not fit", row)
	}

	if toType.IsShortDecimal() {
		out := vector.MustFixedCol[types.Decimal64](*result)
		if fromType.IsShortDecimal() {
			return ctx.ApplyToSelectedNoThrow(rows, func(row int) error {
				v, ok := types.RescaleDecimal64(
					vector.DecodedValueAt[types.Decimal64](arg, row),
					fromType.Scale, toType.Width, toType.Scale)
				if !ok {
					return overflow(row)
				}
				out[row] = v
				return nil
			})
		}
		return ctx.ApplyToSelectedNoThrow(rows, func(row int) error {
			v, ok := types.RescaleDecimal128To64(
				vector.DecodedValueAt[types.Decimal128](arg, row),
				fromType.Scale, toType.Width, toType.Scale)
			if !ok {
				return overflow(row)
			}
			out[row] = v
			return nil
		})
	}

	out := vector.MustFixedCol[types.Decimal128](*result)
	if fromType.IsShortDecimal() {
		return ctx.ApplyToSelectedNoThrow(rows, func(row int) error {
			v, ok := types.RescaleDecimal64To128(
				vector.DecodedValueAt[types.Decimal64](arg, row),
				fromType.Scale, toType.Width, toType.Scale)
			if !ok {
				return overflow(row)
			}
			out[row] = v
			return nil
		})
	}
	return ctx.ApplyToSelectedNoThrow(rows, func(row int) error {
		v, ok := types.RescaleDecimal128(
			vector.DecodedValueAt[types.Decimal128](arg, row),
			fromType.Scale, toType.Width, toType.Scale)
		if !ok {
			return overflow(row)
		}
		out[row] = v
		return nil
	})
}

// MakeDecimalFunction turns an int64 unscaled value into a decimal of
// the witness type. For short-decimal output a value with more digits
// than the precision goes null or raises a user error.
//
// args: (unscaled int64, witness decimal, nullOnOverflow const bool).
type MakeDecimalFunction struct{}

func (*MakeDecimalFunction) IsDefaultNull() bool {
	return true
}

func (*MakeDecimalFunction) SupportsFlatNoNullsFastPath() bool {
	return false
}

func (*MakeDecimalFunction) Apply(rows *sel.Selection, args []*vector.Vector, _ types.Type, ctx *EvalCtx, result **vector.Vector) error {
	if len(args) != 3 {
		return verr.NewInvalidArg(ctx.Proc().Ctx(), "make_decimal arg count", len(args))
	}
	outType := *args[1].GetType()
	if err := ctx.EnsureWritable(rows, outType, result); err != nil {
		return err
	}
	clearStaleNulls(*result, rows)

	d0, err := NewLocalDecodedWith(ctx, args[0], rows)
	if err != nil {
		return err
	}
	defer d0.Release()
	d2, err := NewLocalDecodedWith(ctx, args[2], rows)
	if err != nil {
		return err
	}
	defer d2.Release()
	if !d2.Decoded().IsConstantMapping() {
		return verr.NewInvalidState(ctx.Proc().Ctx(), "make_decimal nullOnOverflow must be constant")
	}
	nullOnOverflow := vector.DecodedValueAt[bool](d2.Decoded(), 0)

	arg := d0.Decoded()
	if outType.IsShortDecimal() {
		out := vector.MustFixedCol[types.Decimal64](*result)
		return ctx.ApplyToSelectedNoThrow(rows, func(row int) error {
			unscaled := types.Decimal64(vector.DecodedValueAt[int64](arg, row))
			if !unscaled.FitsPrecision(outType.Width) {
				if nullOnOverflow {
					(*result).SetNull(row, true)
					return nil
				}
				return verr.NewOutOfRange(ctx.Proc().Ctx(), outType.String(),
					"unscaled value too large for precision")
			}
			out[row] = unscaled
			return nil
		})
	}

	// Long-decimal output: every int64 widens.
	out := vector.MustFixedCol[types.Decimal128](*result)
	rows.ApplyToSelected(func(row int) {
		out[row] = types.FromInt64ToDecimal128(vector.DecodedValueAt[int64](arg, row))
	})
	return nil
}

// RoundDecimalFunction rounds a decimal to the given scale, deriving
// the output type the way spark does. Overflow nulls the row.
//
// args: (decimal, scale const int32).
type RoundDecimalFunction struct{}

func (*RoundDecimalFunction) IsDefaultNull() bool {
	return true
}

func (*RoundDecimalFunction) SupportsFlatNoNullsFastPath() bool {
	return false
}

// RoundDecimalResultType derives the output (precision, scale).
func RoundDecimalResultType(fromType types.Type, scale int32) types.Type {
	fromPrecision, fromScale := fromType.Width, fromType.Scale
	integralDigits := fromPrecision - fromScale + 1
	var toPrecision, toScale int32
	if scale < 0 {
		newPrecision := integralDigits
		if v := -fromScale + 1; v > newPrecision {
			newPrecision = v
		}
		toPrecision = min32(newPrecision, types.MaxDecimal128Precision)
		toScale = 0
	} else {
		toScale = min32(fromScale, scale)
		toPrecision = min32(integralDigits+toScale, types.MaxDecimal128Precision)
	}
	return types.NewDecimal(toPrecision, toScale)
}

func min32(a, b int32) int32 {
	if a < b {
		return a
	}
	return b
}

func (*RoundDecimalFunction) Apply(rows *sel.Selection, args []*vector.Vector, _ types.Type, ctx *EvalCtx, result **vector.Vector) error {
	if len(args) != 2 {
		return verr.NewInvalidArg(ctx.Proc().Ctx(), "round_decimal arg count", len(args))
	}
	fromType := *args[0].GetType()

	d1, err := NewLocalDecodedWith(ctx, args[1], rows)
	if err != nil {
		return err
	}
	defer d1.Release()
	if !d1.Decoded().IsConstantMapping() {
		return verr.NewInvalidState(ctx.Proc().Ctx(), "round_decimal scale must be constant")
	}
	scale := vector.DecodedValueAt[int32](d1.Decoded(), 0)

	toType := RoundDecimalResultType(fromType, scale)
	if err := ctx.EnsureWritable(rows, toType, result); err != nil {
		return err
	}
	clearStaleNulls(*result, rows)

	d0, err := NewLocalDecodedWith(ctx, args[0], rows)
	if err != nil {
		return err
	}
	defer d0.Release()
	arg := d0.Decoded()

	readAt := func(row int) types.Decimal128 {
		if fromType.IsShortDecimal() {
			return types.FromInt64ToDecimal128(int64(vector.DecodedValueAt[types.Decimal64](arg, row)))
		}
		return vector.DecodedValueAt[types.Decimal128](arg, row)
	}

	if toType.IsShortDecimal() {
		out := vector.MustFixedCol[types.Decimal64](*result)
		rows.ApplyToSelected(func(row int) {
			v, ok := types.RescaleDecimal128To64(readAt(row), fromType.Scale, toType.Width, toType.Scale)
			if !ok {
				(*result).SetNull(row, true)
				return
			}
			out[row] = v
		})
		return nil
	}
	out := vector.MustFixedCol[types.Decimal128](*result)
	rows.ApplyToSelected(func(row int) {
		v, ok := types.RescaleDecimal128(readAt(row), fromType.Scale, toType.Width, toType.Scale)
		if !ok {
			(*result).SetNull(row, true)
			return
		}
		out[row] = v
	})
	return nil
}

// UnscaledValueFunction exposes the raw unscaled int64 of a short
// decimal. The result is the argument vector itself, reinterpreted.
type UnscaledValueFunction struct{}

func (*UnscaledValueFunction) IsDefaultNull() bool {
	return true
}

func (*UnscaledValueFunction) SupportsFlatNoNullsFastPath() bool {
	return false
}

func (*UnscaledValueFunction) Apply(rows *sel.Selection, args []*vector.Vector, _ types.Type, ctx *EvalCtx, result **vector.Vector) error {
	if len(args) != 1 {
		return verr.NewInvalidArg(ctx.Proc().Ctx(), "unscaled_value arg count", len(args))
	}
	if !args[0].GetType().IsShortDecimal() {
		return verr.NewInvalidState(ctx.Proc().Ctx(),
			"unscaled_value requires a short decimal, got "+args[0].GetType().String())
	}
	*result = args[0].ReinterpretFixed(types.New(types.T_int64, 0, 0))
	return nil
}
