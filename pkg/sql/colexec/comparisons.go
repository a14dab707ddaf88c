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
	"context"

	"github.com/vectisdb/vectis/pkg/common/verr"
	"github.com/vectisdb/vectis/pkg/container/sel"
	"github.com/vectisdb/vectis/pkg/container/types"
	"github.com/vectisdb/vectis/pkg/container/vector"
)

type CompareOp int

const (
	EQ CompareOp = iota
	LT
	GT
	LE
	GE
)

// comparisonFunction binds a comparator to a scalar type at
// construction. It never records errors; null handling is left to the
// default null behavior of the driver.
type comparisonFunction[T types.FixedSizeT] struct {
	cmp func(a, b T) bool
}

func (c *comparisonFunction[T]) IsDefaultNull() bool {
	return true
}

func (c *comparisonFunction[T]) SupportsFlatNoNullsFastPath() bool {
	return true
}

func (c *comparisonFunction[T]) Apply(rows *sel.Selection, args []*vector.Vector, _ types.Type, ctx *EvalCtx, result **vector.Vector) error {
	if len(args) != 2 {
		return verr.NewInvalidArg(ctx.Proc().Ctx(), "comparison arg count", len(args))
	}
	if err := ctx.EnsureWritable(rows, types.New(types.T_bool, 0, 0), result); err != nil {
		return err
	}
	out := vector.MustFixedCol[bool](*result)
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

	arg0, arg1 := d0.Decoded(), d1.Decoded()
	switch {
	case arg0.IsIdentityMapping() && arg1.IsConstantMapping():
		c1 := vector.DecodedValueAt[T](arg1, 0)
		rows.ApplyToSelected(func(row int) {
			out[row] = c.cmp(vector.DecodedValueAt[T](arg0, row), c1)
		})
	case arg0.IsConstantMapping() && arg1.IsIdentityMapping():
		c0 := vector.DecodedValueAt[T](arg0, 0)
		rows.ApplyToSelected(func(row int) {
			out[row] = c.cmp(c0, vector.DecodedValueAt[T](arg1, row))
		})
	default:
		rows.ApplyToSelected(func(row int) {
			out[row] = c.cmp(
				vector.DecodedValueAt[T](arg0, row),
				vector.DecodedValueAt[T](arg1, row))
		})
	}
	return nil
}

// clearStaleNulls unsets null flags left over from a reused result slot
// on the rows the kernel is about to write.
func clearStaleNulls(result *vector.Vector, rows *sel.Selection) {
	if !result.GetNulls().Any() {
		return
	}
	rows.ApplyToSelected(func(row int) {
		result.SetNull(row, false)
	})
}

func orderedCmp[T types.OrderedT](op CompareOp) func(a, b T) bool {
	switch op {
	case EQ:
		return func(a, b T) bool { return a == b }
	case LT:
		return func(a, b T) bool { return a < b }
	case GT:
		return func(a, b T) bool { return a > b }
	case LE:
		return func(a, b T) bool { return a <= b }
	case GE:
		return func(a, b T) bool { return a >= b }
	}
	return nil
}

func cmpFromCompare[T types.FixedSizeT](op CompareOp, compare func(a, b T) int) func(a, b T) bool {
	switch op {
	case EQ:
		return func(a, b T) bool { return compare(a, b) == 0 }
	case LT:
		return func(a, b T) bool { return compare(a, b) < 0 }
	case GT:
		return func(a, b T) bool { return compare(a, b) > 0 }
	case LE:
		return func(a, b T) bool { return compare(a, b) <= 0 }
	case GE:
		return func(a, b T) bool { return compare(a, b) >= 0 }
	}
	return nil
}

// NewComparisonFunction builds the kernel for op over the scalar type
// tag. The comparator is monomorphised on the value type here, once,
// not per row.
func NewComparisonFunction(op CompareOp, tag types.T) (VectorFunction, error) {
	switch tag {
	case types.T_int8:
		return &comparisonFunction[int8]{cmp: orderedCmp[int8](op)}, nil
	case types.T_int16:
		return &comparisonFunction[int16]{cmp: orderedCmp[int16](op)}, nil
	case types.T_int32:
		return &comparisonFunction[int32]{cmp: orderedCmp[int32](op)}, nil
	case types.T_int64:
		return &comparisonFunction[int64]{cmp: orderedCmp[int64](op)}, nil
	case types.T_uint8:
		return &comparisonFunction[uint8]{cmp: orderedCmp[uint8](op)}, nil
	case types.T_uint16:
		return &comparisonFunction[uint16]{cmp: orderedCmp[uint16](op)}, nil
	case types.T_uint32:
		return &comparisonFunction[uint32]{cmp: orderedCmp[uint32](op)}, nil
	case types.T_uint64:
		return &comparisonFunction[uint64]{cmp: orderedCmp[uint64](op)}, nil
	case types.T_float32:
		return &comparisonFunction[float32]{cmp: orderedCmp[float32](op)}, nil
	case types.T_float64:
		return &comparisonFunction[float64]{cmp: orderedCmp[float64](op)}, nil
	case types.T_bool:
		if op != EQ {
			return nil, verr.NewNotSupported(context.Background(), "comparison %d on BOOL", int(op))
		}
		return &comparisonFunction[bool]{cmp: func(a, b bool) bool { return a == b }}, nil
	case types.T_decimal64:
		return &comparisonFunction[types.Decimal64]{
			cmp: cmpFromCompare[types.Decimal64](op, types.CompareDecimal64),
		}, nil
	case types.T_decimal128:
		return &comparisonFunction[types.Decimal128]{
			cmp: cmpFromCompare[types.Decimal128](op, types.CompareDecimal128),
		}, nil
	}
	return nil, verr.NewNotSupported(context.Background(), "comparison on type "+tag.String())
}
