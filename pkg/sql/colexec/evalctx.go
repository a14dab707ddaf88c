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
	"github.com/vectisdb/vectis/pkg/common/verr"
	"github.com/vectisdb/vectis/pkg/container/batch"
	"github.com/vectisdb/vectis/pkg/container/sel"
	"github.com/vectisdb/vectis/pkg/container/types"
	"github.com/vectisdb/vectis/pkg/container/vector"
	"github.com/vectisdb/vectis/pkg/vm/process"
)

// EvalCtx holds the batch under evaluation, error state and the flags
// the expression interpreter threads through nested sub-evaluations. An
// EvalCtx is bound to one evaluator at a time; it is not safe for
// concurrent use.
type EvalCtx struct {
	proc    *process.Process
	exprSet *ExprSet
	bat     *batch.Batch

	cacheEnabled                  bool
	maxSharedSubexprResultsCached int
	inputFlatNoNulls              bool

	// Corresponds 1:1 to columns of bat. Set to an inner vector after
	// removing dictionary wrappers.
	peeledFields   []*vector.Vector
	peeledEncoding *PeeledEncoding

	// True if nulls in the input vectors were pruned from the current
	// selection. Only possible when all expressions have default null
	// behavior.
	nullsPruned bool

	throwOnError        bool
	captureErrorDetails bool

	// False while under an IF or OR where expressions run on a subset
	// of rows; finalSelection is then the widest row set whose results
	// must be preserved. nil finalSelection means "not narrowed".
	isFinalSelection bool
	finalSelection   *sel.Selection

	errors *EvalErrors
}

func NewEvalCtx(proc *process.Process, exprSet *ExprSet, bat *batch.Batch) *EvalCtx {
	ctx := &EvalCtx{
		proc:                          proc,
		exprSet:                       exprSet,
		bat:                           bat,
		cacheEnabled:                  proc.CacheEnabled(),
		maxSharedSubexprResultsCached: proc.MaxSharedSubexprResultsCached(),
		throwOnError:                  true,
		captureErrorDetails:           true,
		isFinalSelection:              true,
	}
	ctx.inputFlatNoNulls = computeInputFlatNoNulls(bat)
	return ctx
}

func computeInputFlatNoNulls(bat *batch.Batch) bool {
	if bat == nil {
		return false
	}
	for _, vec := range bat.Vecs {
		if vec == nil {
			return false
		}
		if !vec.IsFlat() && !vec.IsConst() {
			return false
		}
		if vec.HasNulls() {
			return false
		}
	}
	return true
}

func (ctx *EvalCtx) Proc() *process.Process {
	return ctx.proc
}

func (ctx *EvalCtx) ExprSet() *ExprSet {
	return ctx.exprSet
}

func (ctx *EvalCtx) Batch() *batch.Batch {
	return ctx.bat
}

// InputFlatNoNulls returns true if all input vectors are flat or
// constant and have no nulls.
func (ctx *EvalCtx) InputFlatNoNulls() bool {
	return ctx.inputFlatNoNulls
}

// GetField returns the index-th column of the effective batch: the
// peeled vector when wrappers were peeled off, the batch column
// otherwise.
func (ctx *EvalCtx) GetField(index int) *vector.Vector {
	if index < len(ctx.peeledFields) && ctx.peeledFields[index] != nil {
		return ctx.peeledFields[index]
	}
	return ctx.bat.Vecs[index]
}

// EnsureFieldLoaded materializes a lazy column over rows and returns
// the column with lazy wrappers resolved.
func (ctx *EvalCtx) EnsureFieldLoaded(index int, rows *sel.Selection) (*vector.Vector, error) {
	field := ctx.GetField(index)
	if !field.IsLazy() {
		return field, nil
	}
	loadRows := rows
	if !ctx.isFinalSelection && ctx.finalSelection != nil {
		loadRows = ctx.finalSelection
	}
	return field.Load(loadRows)
}

func (ctx *EvalCtx) SetPeeled(index int, vec *vector.Vector) {
	if len(ctx.peeledFields) <= index {
		grown := make([]*vector.Vector, index+1)
		copy(grown, ctx.peeledFields)
		ctx.peeledFields = grown
	}
	ctx.peeledFields[index] = vec
}

func (ctx *EvalCtx) PeeledFields() []*vector.Vector {
	return ctx.peeledFields
}

func (ctx *EvalCtx) SetPeeledEncoding(peel *PeeledEncoding) {
	ctx.peeledEncoding = peel
}

func (ctx *EvalCtx) GetPeeledEncoding() *PeeledEncoding {
	return ctx.peeledEncoding
}

// WrapEncoding returns the encoding class a published result must be
// wrapped back into.
func (ctx *EvalCtx) WrapEncoding() int {
	if ctx.peeledEncoding != nil {
		return ctx.peeledEncoding.Kind()
	}
	return vector.FLAT
}

// ContextSaver is the snapshot a peeling or sub-expression scope takes
// before narrowing the context. ctx is nil until SaveAndReset runs.
type ContextSaver struct {
	ctx            *EvalCtx
	peeled         []*vector.Vector
	peeledEncoding *PeeledEncoding
	nullsPruned    bool
	// The selection of the context being saved.
	rows           *sel.Selection
	finalSelection *sel.Selection
	errors         *EvalErrors
}

// SaveAndReset snapshots peeled state, the final selection and the
// current errors into saver, then clears peeled state, moves errors out
// and narrows the final selection to rows.
func (ctx *EvalCtx) SaveAndReset(saver *ContextSaver, rows *sel.Selection) {
	saver.ctx = ctx
	saver.peeled = ctx.peeledFields
	ctx.peeledFields = nil
	saver.peeledEncoding = ctx.peeledEncoding
	ctx.peeledEncoding = nil
	saver.nullsPruned = ctx.nullsPruned
	ctx.nullsPruned = false
	saver.rows = rows
	saver.finalSelection = ctx.finalSelection
	ctx.finalSelection = rows
	saver.errors = ctx.errors
	ctx.errors = nil
}

// Restore reinstates the snapshot and folds errors accumulated inside
// the scope into the restored outer error set. Outer errors win.
func (ctx *EvalCtx) Restore(saver *ContextSaver) {
	inner := ctx.errors
	ctx.peeledFields = saver.peeled
	ctx.peeledEncoding = saver.peeledEncoding
	ctx.nullsPruned = saver.nullsPruned
	ctx.finalSelection = saver.finalSelection
	ctx.errors = saver.errors
	saver.ctx = nil
	if inner != nil && inner.HasError() {
		if ctx.errors == nil {
			ctx.errors = NewEvalErrors(inner.Size())
		}
		inner.TakeInto(ctx.errors)
	}
}

// WithContextSaver runs fn and restores the context if fn took a
// snapshot, on every exit path.
func (ctx *EvalCtx) WithContextSaver(fn func(saver *ContextSaver) error) error {
	var saver ContextSaver
	defer func() {
		if saver.ctx != nil {
			saver.ctx.Restore(&saver)
		}
	}()
	return fn(&saver)
}

func (ctx *EvalCtx) ensureErrors(size int) {
	if ctx.errors == nil {
		ctx.errors = NewEvalErrors(size)
		return
	}
	ctx.errors.EnsureCapacity(size)
}

// EnsureErrorsVectorSize makes the error set addressable up to size-1,
// initializing new positions to "no error".
func (ctx *EvalCtx) EnsureErrorsVectorSize(size int) {
	ctx.ensureErrors(size)
}

// SetError records an error for row. Detail is stored only when
// CaptureErrorDetails() is true. Foreign errors are wrapped first.
func (ctx *EvalCtx) SetError(row int, err error) {
	ctx.ensureErrors(row + 1)
	if !ctx.captureErrorDetails {
		ctx.errors.SetError(row)
		return
	}
	ctx.errors.SetErrorDetail(row, verr.DowncastError(verr.ConvertGoError(ctx.proc.Ctx(), err)))
}

// SetVerrError is SetError for callers that already hold a classified
// *verr.Error, skipping the conversion.
func (ctx *EvalCtx) SetVerrError(row int, err *verr.Error) {
	ctx.ensureErrors(row + 1)
	if !ctx.captureErrorDetails {
		ctx.errors.SetError(row)
		return
	}
	ctx.errors.SetErrorDetail(row, err)
}

// SetErrors records the same error for every selected row.
func (ctx *EvalCtx) SetErrors(rows *sel.Selection, err error) {
	if rows.CountSelected() == 0 {
		return
	}
	converted := verr.DowncastError(verr.ConvertGoError(ctx.proc.Ctx(), err))
	rows.ApplyToSelected(func(row int) {
		ctx.SetVerrError(row, converted)
	})
}

// SetStatus converts a non-nil status error into a captured failure at
// row. A nil status is an internal misuse.
func (ctx *EvalCtx) SetStatus(row int, status error) {
	if status == nil {
		panic(verr.NewInvalidState(ctx.proc.Ctx(), "SetStatus called with ok status"))
	}
	ctx.SetError(row, status)
}

// AddError records an error into an external error set, allocating and
// resizing it as needed. The first writer wins.
func (ctx *EvalCtx) AddError(row int, err error, errs **EvalErrors) {
	if *errs == nil {
		*errs = NewEvalErrors(row + 1)
	} else {
		(*errs).EnsureCapacity(row + 1)
	}
	(*errs).SetErrorDetail(row, verr.DowncastError(verr.ConvertGoError(ctx.proc.Ctx(), err)))
}

// AddErrors copies errors of from at rows into to without overwriting.
func (ctx *EvalCtx) AddErrors(rows *sel.Selection, from *EvalErrors, to **EvalErrors) {
	if from == nil || !from.HasError() {
		return
	}
	if *to == nil {
		*to = NewEvalErrors(from.Size())
	}
	(*to).CopyErrors(rows, from)
}

// AddErrorAt copies a single row's error of from into to without
// overwriting.
func (ctx *EvalCtx) AddErrorAt(row int, from *EvalErrors, to **EvalErrors) {
	if from == nil || !from.HasErrorAt(row) {
		return
	}
	if *to == nil {
		*to = NewEvalErrors(row + 1)
	}
	(*to).CopyError(from, row, row)
}

// AddElementErrorsToTopLevel projects element-level errors in the
// context onto top-level rows through elementToTopLevelRows, without
// overwriting existing top-level errors.
func (ctx *EvalCtx) AddElementErrorsToTopLevel(
	elementRows *sel.Selection, elementToTopLevelRows []int32, topLevelErrors **EvalErrors) {
	if ctx.errors == nil {
		return
	}
	elementRows.ApplyToSelected(func(row int) {
		if !ctx.errors.HasErrorAt(row) {
			return
		}
		top := int(elementToTopLevelRows[row])
		if *topLevelErrors == nil {
			*topLevelErrors = NewEvalErrors(top + 1)
		}
		(*topLevelErrors).CopyError(ctx.errors, row, top)
	})
}

// ConvertElementErrorsToTopLevelNulls nulls the top-level rows whose
// elements recorded errors, clearing those element errors.
func (ctx *EvalCtx) ConvertElementErrorsToTopLevelNulls(
	elementRows *sel.Selection, elementToTopLevelRows []int32, result **vector.Vector) error {
	if ctx.errors == nil {
		return nil
	}
	var nullRows *bitmap.Bitmap
	elementRows.ApplyToSelected(func(row int) {
		if !ctx.errors.HasErrorAt(row) {
			return
		}
		top := uint64(elementToTopLevelRows[row])
		if nullRows == nil {
			nullRows = bitmap.New(0)
		}
		nullRows.TryExpandWithSize(int(top) + 1)
		nullRows.Add(top)
		ctx.errors.ClearError(row)
	})
	if nullRows == nil {
		return nil
	}
	rows := sel.NewEmpty(int(nullRows.Len()))
	nullRows.ForEachSet(func(row uint64) bool {
		rows.SetValid(int(row), true)
		return true
	})
	rows.UpdateBounds()
	return AddNulls(rows, nullRows, ctx, *(*result).GetType(), result)
}

// DeselectErrors unsets rows that already recorded an error. AND/OR use
// it to stop propagating rows that already failed.
func (ctx *EvalCtx) DeselectErrors(rows *sel.Selection) {
	if ctx.errors == nil {
		return
	}
	size := ctx.errors.Size()
	changed := false
	rows.TestSelected(func(row int) bool {
		if row >= size {
			return false
		}
		if ctx.errors.HasErrorAt(row) {
			rows.SetValid(row, false)
			changed = true
		}
		return true
	})
	if changed {
		rows.UpdateBounds()
	}
}

// Errors returns the error set or nil. Callers must not retain it past
// the next SaveAndReset/Restore.
func (ctx *EvalCtx) Errors() *EvalErrors {
	return ctx.errors
}

func (ctx *EvalCtx) ErrorsPtr() **EvalErrors {
	return &ctx.errors
}

func (ctx *EvalCtx) SwapErrors(other **EvalErrors) {
	ctx.errors, *other = *other, ctx.errors
}

// MoveAppendErrors merges the context's errors into other, first writer
// wins, and leaves the context with no errors.
func (ctx *EvalCtx) MoveAppendErrors(other **EvalErrors) {
	if ctx.errors == nil {
		return
	}
	if *other == nil {
		*other = ctx.errors
		ctx.errors = nil
		return
	}
	ctx.errors.TakeInto(*other)
	ctx.errors = nil
}

// ApplyToSelectedNoThrow invokes fn on each selected row, funnelling
// per-row failures into the error set. User-level errors are recorded;
// internal errors abort the batch and propagate.
func (ctx *EvalCtx) ApplyToSelectedNoThrow(rows *sel.Selection, fn func(row int) error) error {
	return rows.ApplyToSelectedErr(func(row int) error {
		err := fn(row)
		if err == nil {
			return nil
		}
		if ve, ok := err.(*verr.Error); ok {
			if !ve.IsUserError() {
				return ve
			}
			ctx.SetVerrError(row, ve)
			return nil
		}
		ctx.SetError(row, err)
		return nil
	})
}

// ThrowOnError indicates whether failures should surface directly
// rather than being saved for later processing.
func (ctx *EvalCtx) ThrowOnError() bool {
	return ctx.throwOnError
}

func (ctx *EvalCtx) SetThrowOnError(v bool) {
	ctx.throwOnError = v
}

// CaptureErrorDetails indicates whether stored failures keep the error
// value. Conjuncts need details; TRY only needs presence.
func (ctx *EvalCtx) CaptureErrorDetails() bool {
	return ctx.captureErrorDetails
}

func (ctx *EvalCtx) SetCaptureErrorDetails(v bool) {
	ctx.captureErrorDetails = v
}

func (ctx *EvalCtx) NullsPruned() bool {
	return ctx.nullsPruned
}

func (ctx *EvalCtx) SetNullsPruned(v bool) {
	ctx.nullsPruned = v
}

// IsFinalSelection returns true if the rows being evaluated are
// complete, i.e. not a branch subset of an IF or OR.
func (ctx *EvalCtx) IsFinalSelection() bool {
	return ctx.isFinalSelection
}

func (ctx *EvalCtx) SetIsFinalSelection(v bool) {
	ctx.isFinalSelection = v
}

func (ctx *EvalCtx) FinalSelection() *sel.Selection {
	return ctx.finalSelection
}

func (ctx *EvalCtx) SetFinalSelection(s *sel.Selection) {
	ctx.finalSelection = s
}

// ResultShouldBePreserved reports whether rows outside the current
// selection hold live data that a result publish must not clobber. An
// unset final selection means nothing is narrowed.
func (ctx *EvalCtx) ResultShouldBePreserved(result *vector.Vector, rows *sel.Selection) bool {
	if result == nil || ctx.isFinalSelection || ctx.finalSelection == nil {
		return false
	}
	return !ctx.finalSelection.Equals(rows)
}

// MoveOrCopyResult copies rows of localResult into result when result
// is partially populated and must be preserved; moves the handle
// otherwise.
func (ctx *EvalCtx) MoveOrCopyResult(localResult *vector.Vector, rows *sel.Selection, result **vector.Vector) error {
	if ctx.ResultShouldBePreserved(*result, rows) {
		if err := ctx.EnsureWritable(rows, *(*result).GetType(), result); err != nil {
			return err
		}
		mp := ctx.proc.Mp()
		var copyErr error
		rows.TestSelected(func(row int) bool {
			copyErr = (*result).Copy(localResult, int64(row), int64(row), mp)
			return copyErr == nil
		})
		return copyErr
	}
	*result = localResult
	return nil
}

// AddNulls adds nulls from rawNulls at rows to result, ensuring result
// is writable, of the right type, sized for rows and able to carry
// nulls. A nil rawNulls nulls every selected row.
func AddNulls(rows *sel.Selection, rawNulls *bitmap.Bitmap, ctx *EvalCtx, typ types.Type, result **vector.Vector) error {
	if *result == nil {
		fresh := vector.NewConstNull(typ, rows.End())
		*result = fresh
		return nil
	}
	if (*result).IsConstNull() && (*result).GetType().Eq(typ) {
		if (*result).Length() < rows.End() {
			(*result).SetLength(rows.End())
		}
		return nil
	}
	if err := ctx.EnsureWritable(rows, typ, result); err != nil {
		return err
	}
	rows.ApplyToSelected(func(row int) {
		if rawNulls == nil || rawNulls.Contains(uint64(row)) {
			(*result).SetNull(row, true)
		}
	})
	return nil
}

// GetVector takes a recyclable vector from the process pool.
func (ctx *EvalCtx) GetVector(typ types.Type, size int) (*vector.Vector, error) {
	return ctx.proc.GetVector(typ, size)
}

// ReleaseVector returns true if the vector was moved to the pool.
func (ctx *EvalCtx) ReleaseVector(vec *vector.Vector) bool {
	if vec == nil {
		return false
	}
	return ctx.proc.ReleaseVector(vec)
}

func (ctx *EvalCtx) ReleaseVectors(vecs []*vector.Vector) int {
	return ctx.proc.ReleaseVectors(vecs)
}

// EnsureWritable makes *result writable for rows, reusing the process
// vector pool when allocation is needed.
func (ctx *EvalCtx) EnsureWritable(rows *sel.Selection, typ types.Type, result **vector.Vector) error {
	return vector.EnsureWritable(rows, typ, ctx.proc.Mp(), result, ctx.proc)
}

// CacheEnabled returns true if shared-subexpression caching is on.
func (ctx *EvalCtx) CacheEnabled() bool {
	return ctx.cacheEnabled
}

// MaxSharedSubexprResultsCached returns the maximum number of distinct
// inputs to cache results for in a shared subexpression.
func (ctx *EvalCtx) MaxSharedSubexprResultsCached() int {
	return ctx.maxSharedSubexprResultsCached
}

// ScopedFinalSelectionSetter installs finalSelection for the duration
// of a narrowed-selection scope. It only sets when checkCondition holds
// and no narrowing is active yet, unless override forces it. Exit must
// run on every path, typically via defer.
type ScopedFinalSelectionSetter struct {
	ctx                 *EvalCtx
	oldFinalSelection   *sel.Selection
	oldIsFinalSelection bool
	set                 bool
}

func NewScopedFinalSelectionSetter(ctx *EvalCtx, finalSelection *sel.Selection, checkCondition, override bool) *ScopedFinalSelectionSetter {
	s := &ScopedFinalSelectionSetter{ctx: ctx}
	if override || (checkCondition && ctx.isFinalSelection) {
		s.oldFinalSelection = ctx.finalSelection
		s.oldIsFinalSelection = ctx.isFinalSelection
		ctx.finalSelection = finalSelection
		ctx.isFinalSelection = false
		s.set = true
	}
	return s
}

func (s *ScopedFinalSelectionSetter) Exit() {
	if s.set {
		s.ctx.finalSelection = s.oldFinalSelection
		s.ctx.isFinalSelection = s.oldIsFinalSelection
		s.set = false
	}
}
