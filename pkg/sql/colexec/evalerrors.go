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

	"github.com/vectisdb/vectis/pkg/common/bitmap"
	"github.com/vectisdb/vectis/pkg/common/verr"
	"github.com/vectisdb/vectis/pkg/container/sel"
)

// EvalErrors tracks per-row errors that occurred during expression
// evaluation. Used when EvalCtx.ThrowOnError() is false, and by
// conjuncts that defer raising until the surviving rows are known.
//
// okMask is inverted relative to a null bitmap: a SET bit means the row
// has NO error. Detail storage is allocated lazily; in the common case
// where most rows succeed, no detail slice exists at all.
type EvalErrors struct {
	size    int
	okMask  bitmap.Bitmap
	details []*verr.Error
}

func NewEvalErrors(capacityHint int) *EvalErrors {
	e := &EvalErrors{}
	e.EnsureCapacity(capacityHint)
	return e
}

func (e *EvalErrors) Size() int {
	return e.size
}

// EnsureCapacity grows internal storage to fit at least size rows. New
// positions start as "no error". No-op if already at or beyond size.
func (e *EvalErrors) EnsureCapacity(size int) {
	if e.size >= size {
		return
	}
	oldSize := e.size
	e.okMask.TryExpandWithSize(size)
	e.okMask.AddRange(uint64(oldSize), uint64(size))
	e.size = size
	if e.details != nil {
		grown := make([]*verr.Error, size)
		copy(grown, e.details)
		e.details = grown
	}
}

// HasError returns true if at least one row has an error.
func (e *EvalErrors) HasError() bool {
	return e.firstError(0) >= 0
}

// HasErrorAt returns true if row has an error.
func (e *EvalErrors) HasErrorAt(row int) bool {
	return row >= 0 && row < e.size && !e.okMask.Contains(uint64(row))
}

// CountErrors returns the number of rows with errors.
func (e *EvalErrors) CountErrors() int {
	return e.size - e.okMask.CountRange(0, uint64(e.size))
}

// firstError returns the smallest errored row at or after from, -1 if
// there is none.
func (e *EvalErrors) firstError(from int) int {
	for row := from; row < e.size; row++ {
		if !e.okMask.Contains(uint64(row)) {
			return row
		}
	}
	return -1
}

// SetError marks row as having an error without detail.
func (e *EvalErrors) SetError(row int) {
	e.EnsureCapacity(row + 1)
	e.okMask.Remove(uint64(row))
}

// SetErrorDetail marks row as having an error and stores the detail.
// No-op if row already has an error: the first writer wins.
func (e *EvalErrors) SetErrorDetail(row int, err *verr.Error) {
	e.EnsureCapacity(row + 1)
	if !e.okMask.Contains(uint64(row)) {
		return
	}
	e.okMask.Remove(uint64(row))
	if e.details == nil {
		e.details = make([]*verr.Error, e.size)
	}
	e.details[row] = err
}

// ClearError marks row as having no error.
func (e *EvalErrors) ClearError(row int) {
	if row < e.size {
		e.okMask.Add(uint64(row))
		if e.details != nil {
			e.details[row] = nil
		}
	}
}

// ErrorAt returns (detail, present). present is true when the row has
// an error; detail is nil when the error was recorded without detail.
func (e *EvalErrors) ErrorAt(row int) (*verr.Error, bool) {
	if !e.HasErrorAt(row) {
		return nil, false
	}
	return e.detailAt(row), true
}

func (e *EvalErrors) detailAt(row int) *verr.Error {
	if e.details == nil || row >= len(e.details) {
		return nil
	}
	return e.details[row]
}

// CopyError copies the error of from at fromRow into this at toRow.
// No-op if from has no error at fromRow or this already has an error at
// toRow.
func (e *EvalErrors) CopyError(from *EvalErrors, fromRow, toRow int) {
	if from == nil || !from.HasErrorAt(fromRow) {
		return
	}
	e.EnsureCapacity(toRow + 1)
	if !e.okMask.Contains(uint64(toRow)) {
		return
	}
	e.okMask.Remove(uint64(toRow))
	if d := from.detailAt(fromRow); d != nil {
		if e.details == nil {
			e.details = make([]*verr.Error, e.size)
		}
		e.details[toRow] = d
	}
}

// CopyErrors copies errors of from at rows to the corresponding rows in
// this. Existing errors are preserved.
func (e *EvalErrors) CopyErrors(rows *sel.Selection, from *EvalErrors) {
	if from == nil {
		return
	}
	fromSize := from.Size()
	rows.TestSelected(func(row int) bool {
		if row >= fromSize {
			return false
		}
		e.CopyError(from, row, row)
		return true
	})
}

// CopyAllErrors copies every error of from into this. Existing errors
// are preserved.
func (e *EvalErrors) CopyAllErrors(from *EvalErrors) {
	if from == nil {
		return
	}
	for row := from.firstError(0); row >= 0; row = from.firstError(row + 1) {
		e.CopyError(from, row, row)
	}
}

// TakeInto merges this into sink with first-writer-wins on each row, and
// clears this.
func (e *EvalErrors) TakeInto(sink *EvalErrors) {
	sink.CopyAllErrors(e)
	e.okMask.AddRange(0, uint64(e.size))
	e.details = nil
}

// ThrowFirstError returns the error of the smallest row in rows that
// has one, nil if none. The caller must ensure details were captured;
// an error recorded without detail surfaces as an internal error.
func (e *EvalErrors) ThrowFirstError(rows *sel.Selection) error {
	var out error
	rows.TestSelected(func(row int) bool {
		if row >= e.size {
			return false
		}
		if !e.HasErrorAt(row) {
			return true
		}
		if d := e.detailAt(row); d != nil {
			out = d
		} else {
			out = verr.NewInternalError(context.Background(),
				"error at row %d recorded without detail", row)
		}
		return false
	})
	return out
}

// ErrorFlags exposes the raw inverted mask: a CLEAR bit means the row
// has an error. Only the first Size() bits are valid.
func (e *EvalErrors) ErrorFlags() []uint64 {
	return e.okMask.Words()
}
