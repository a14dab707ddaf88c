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
	"github.com/vectisdb/vectis/pkg/common/bitmap"
	"github.com/vectisdb/vectis/pkg/container/sel"
	"github.com/vectisdb/vectis/pkg/container/types"
	"github.com/vectisdb/vectis/pkg/container/vector"
)

// VectorFunction is the kernel contract. A kernel receives the rows it
// must produce, its argument vectors, and a mutable result slot it
// publishes into through the context.
type VectorFunction interface {
	// IsDefaultNull reports that a null in any argument produces a null
	// result without invoking the kernel.
	IsDefaultNull() bool
	// SupportsFlatNoNullsFastPath reports that the kernel can run
	// without null checks when the whole input batch is flat and
	// null-free.
	SupportsFlatNoNullsFastPath() bool

	Apply(rows *sel.Selection, args []*vector.Vector, outType types.Type, ctx *EvalCtx, result **vector.Vector) error
}

// Expr is a compiled expression node.
type Expr interface {
	Type() types.Type
	Eval(ctx *EvalCtx, rows *sel.Selection, result **vector.Vector) error
}

// FieldExpr reads a column of the batch.
type FieldExpr struct {
	index int
	typ   types.Type
}

func NewFieldExpr(index int, typ types.Type) *FieldExpr {
	return &FieldExpr{index: index, typ: typ}
}

func (e *FieldExpr) Type() types.Type {
	return e.typ
}

func (e *FieldExpr) Eval(ctx *EvalCtx, rows *sel.Selection, result **vector.Vector) error {
	vec, err := ctx.EnsureFieldLoaded(e.index, rows)
	if err != nil {
		return err
	}
	return ctx.MoveOrCopyResult(vec, rows, result)
}

// ConstExpr produces a constant for every selected row.
type ConstExpr struct {
	vec *vector.Vector
}

func NewConstExpr(vec *vector.Vector) *ConstExpr {
	return &ConstExpr{vec: vec}
}

func (e *ConstExpr) Type() types.Type {
	return *e.vec.GetType()
}

func (e *ConstExpr) Eval(ctx *EvalCtx, rows *sel.Selection, result **vector.Vector) error {
	return ctx.MoveOrCopyResult(e.vec.ToConst(0, rows.End()), rows, result)
}

// FuncExpr applies a kernel to argument expressions.
type FuncExpr struct {
	fn   VectorFunction
	args []Expr
	typ  types.Type
}

func NewFuncExpr(fn VectorFunction, typ types.Type, args ...Expr) *FuncExpr {
	return &FuncExpr{fn: fn, args: args, typ: typ}
}

func (e *FuncExpr) Type() types.Type {
	return e.typ
}

func (e *FuncExpr) Eval(ctx *EvalCtx, rows *sel.Selection, result **vector.Vector) error {
	argVecs := make([]*vector.Vector, len(e.args))
	for i, arg := range e.args {
		if err := arg.Eval(ctx, rows, &argVecs[i]); err != nil {
			return err
		}
	}

	if !e.fn.IsDefaultNull() || (ctx.InputFlatNoNulls() && e.fn.SupportsFlatNoNullsFastPath()) {
		var local *vector.Vector
		if err := e.fn.Apply(rows, argVecs, e.typ, ctx, &local); err != nil {
			return err
		}
		return ctx.MoveOrCopyResult(local, rows, result)
	}

	// Default null behavior: rows with a null argument never reach the
	// kernel and come out null.
	nullRows := collectNullRows(argVecs, rows)
	if nullRows == nil {
		var local *vector.Vector
		if err := e.fn.Apply(rows, argVecs, e.typ, ctx, &local); err != nil {
			return err
		}
		return ctx.MoveOrCopyResult(local, rows, result)
	}

	remaining := NewLocalSelectionFrom(ctx, rows)
	defer remaining.Release()
	nullRows.ForEachSet(func(row uint64) bool {
		remaining.Sel().SetValid(int(row), false)
		return true
	})
	remaining.Sel().UpdateBounds()

	var local *vector.Vector
	if remaining.Sel().HasSelections() {
		setter := NewScopedFinalSelectionSetter(ctx, rows, true, false)
		err := e.fn.Apply(remaining.Sel(), argVecs, e.typ, ctx, &local)
		setter.Exit()
		if err != nil {
			return err
		}
	}

	nulled := NewLocalSelection(ctx, rows.End())
	defer nulled.Release()
	nulledSel := nulled.Sel()
	nulledSel.ClearAll()
	nullRows.ForEachSet(func(row uint64) bool {
		nulledSel.SetValid(int(row), true)
		return true
	})
	nulledSel.UpdateBounds()
	if err := AddNulls(nulledSel, nullRows, ctx, e.typ, &local); err != nil {
		return err
	}
	return ctx.MoveOrCopyResult(local, rows, result)
}

// collectNullRows returns the selected rows where any argument is null,
// nil when there are none.
func collectNullRows(args []*vector.Vector, rows *sel.Selection) *bitmap.Bitmap {
	var nullRows *bitmap.Bitmap
	for _, arg := range args {
		if !arg.HasNulls() {
			continue
		}
		rows.ApplyToSelected(func(row int) {
			if arg.IsNullAt(row) {
				if nullRows == nil {
					nullRows = bitmap.New(rows.End())
				}
				nullRows.Add(uint64(row))
			}
		})
	}
	return nullRows
}

// TryExpr absorbs per-row failures of its input: errored rows come out
// null instead of failing the batch.
type TryExpr struct {
	inner Expr
}

func NewTryExpr(inner Expr) *TryExpr {
	return &TryExpr{inner: inner}
}

func (e *TryExpr) Type() types.Type {
	return e.inner.Type()
}

func (e *TryExpr) Eval(ctx *EvalCtx, rows *sel.Selection, result **vector.Vector) error {
	oldThrow := ctx.ThrowOnError()
	oldCapture := ctx.CaptureErrorDetails()
	ctx.SetThrowOnError(false)
	// TRY only needs to know whether a row failed.
	ctx.SetCaptureErrorDetails(false)

	// Stash outer errors so TRY only sees its own.
	var stash *EvalErrors
	ctx.SwapErrors(&stash)

	err := e.inner.Eval(ctx, rows, result)

	ctx.SetThrowOnError(oldThrow)
	ctx.SetCaptureErrorDetails(oldCapture)
	ctx.SwapErrors(&stash)
	innerErrors := stash

	if err != nil {
		return err
	}
	if innerErrors == nil || !innerErrors.HasError() {
		return nil
	}
	errRowsBits := bitmap.New(innerErrors.Size())
	errRows := sel.NewEmpty(innerErrors.Size())
	for row := 0; row < innerErrors.Size(); row++ {
		if innerErrors.HasErrorAt(row) && rows.IsValid(row) {
			errRowsBits.Add(uint64(row))
			errRows.SetValid(row, true)
		}
	}
	errRows.UpdateBounds()
	if !errRows.HasSelections() {
		return nil
	}
	return AddNulls(errRows, errRowsBits, ctx, e.inner.Type(), result)
}

// ExprSet is a list of compiled expressions evaluated together against
// a batch, with an optional bounded memo for shared subexpression
// results keyed by the identity of the batch's first column.
type ExprSet struct {
	exprs []Expr
	memo  []map[*vector.Vector]*vector.Vector
}

func NewExprSet(exprs ...Expr) *ExprSet {
	return &ExprSet{
		exprs: exprs,
		memo:  make([]map[*vector.Vector]*vector.Vector, len(exprs)),
	}
}

func (es *ExprSet) Exprs() []Expr {
	return es.exprs
}

// CachedResults reports how many distinct inputs expression i holds
// memoized results for.
func (es *ExprSet) CachedResults(i int) int {
	return len(es.memo[i])
}

// Eval evaluates every expression over rows. Under ThrowOnError, any
// error recorded for a surviving row surfaces here, smallest row first.
func (es *ExprSet) Eval(ctx *EvalCtx, rows *sel.Selection, results []*vector.Vector) error {
	var memoKey *vector.Vector
	if ctx.CacheEnabled() && rows.IsAllSelected() && ctx.Batch() != nil && len(ctx.Batch().Vecs) > 0 &&
		rows.CountSelected() == ctx.Batch().RowCount() {
		memoKey = ctx.Batch().Vecs[0]
	}

	for i, expr := range es.exprs {
		if memoKey != nil {
			if cached, ok := es.memo[i][memoKey]; ok {
				results[i] = cached
				continue
			}
		}
		if err := expr.Eval(ctx, rows, &results[i]); err != nil {
			return err
		}
		if ctx.ThrowOnError() && ctx.Errors() != nil {
			if err := ctx.Errors().ThrowFirstError(rows); err != nil {
				return err
			}
		}
		if memoKey != nil && len(es.memo[i]) < ctx.MaxSharedSubexprResultsCached() {
			if es.memo[i] == nil {
				es.memo[i] = make(map[*vector.Vector]*vector.Vector)
			}
			results[i].Ref()
			es.memo[i][memoKey] = results[i]
		}
	}
	return nil
}
