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
	"github.com/vectisdb/vectis/pkg/container/sel"
	"github.com/vectisdb/vectis/pkg/container/vector"
	"github.com/vectisdb/vectis/pkg/vm/process"
)

// LocalSelection borrows a selection from the process pool for the
// duration of a scope. Release must run on every exit path; pair the
// constructor with a defer.
type LocalSelection struct {
	proc *process.Process
	s    *sel.Selection
}

// NewLocalSelection grabs a pooled selection resized to size with all
// rows selected.
func NewLocalSelection(ctx *EvalCtx, size int) *LocalSelection {
	return &LocalSelection{
		proc: ctx.Proc(),
		s:    ctx.Proc().GetSelectionVector(size),
	}
}

// NewLocalSelectionLazy defers acquisition to the first Get.
func NewLocalSelectionLazy(ctx *EvalCtx) *LocalSelection {
	return &LocalSelection{proc: ctx.Proc()}
}

// NewLocalSelectionFrom grabs a pooled selection initialized from value.
func NewLocalSelectionFrom(ctx *EvalCtx, value *sel.Selection) *LocalSelection {
	l := NewLocalSelection(ctx, value.Len())
	l.s.CopyFrom(value)
	return l
}

// Get returns the held selection, acquiring one of the given size on
// first use.
func (l *LocalSelection) Get(size int) *sel.Selection {
	if l.s == nil {
		l.s = l.proc.GetSelectionVector(size)
	}
	return l.s
}

// GetFill returns a selection with size rows all set to value.
func (l *LocalSelection) GetFill(size int, value bool) *sel.Selection {
	s := l.Get(size)
	s.ResizeFill(size, value)
	return s
}

// Sel returns the held selection. Get must have run first when the
// handle was constructed lazily.
func (l *LocalSelection) Sel() *sel.Selection {
	return l.s
}

// Allocate swaps the held selection for a freshly sized one, releasing
// the old handle first.
func (l *LocalSelection) Allocate(size int) *sel.Selection {
	if l.s != nil {
		l.proc.ReleaseSelectionVector(l.s)
	}
	l.s = l.proc.GetSelectionVector(size)
	return l.s
}

func (l *LocalSelection) Release() {
	if l.s != nil {
		l.proc.ReleaseSelectionVector(l.s)
		l.s = nil
	}
}

// LocalSingleRow borrows a selection with exactly one row set.
type LocalSingleRow struct {
	proc *process.Process
	s    *sel.Selection
}

func NewLocalSingleRow(ctx *EvalCtx, row int) *LocalSingleRow {
	s := ctx.Proc().GetSelectionVector(row + 1)
	s.ClearAll()
	s.SetValid(row, true)
	s.UpdateBounds()
	return &LocalSingleRow{proc: ctx.Proc(), s: s}
}

func (l *LocalSingleRow) Sel() *sel.Selection {
	return l.s
}

func (l *LocalSingleRow) Release() {
	if l.s != nil {
		l.proc.ReleaseSelectionVector(l.s)
		l.s = nil
	}
}

// LocalDecoded borrows a decoded-vector wrapper from the process pool.
type LocalDecoded struct {
	proc *process.Process
	d    *vector.DecodedVector
}

// NewLocalDecoded defers acquisition to the first Get.
func NewLocalDecoded(ctx *EvalCtx) *LocalDecoded {
	return &LocalDecoded{proc: ctx.Proc()}
}

// NewLocalDecodedWith acquires and decodes vec over rows.
func NewLocalDecodedWith(ctx *EvalCtx, vec *vector.Vector, rows *sel.Selection) (*LocalDecoded, error) {
	l := NewLocalDecoded(ctx)
	if err := l.Get().Decode(vec, rows); err != nil {
		l.Release()
		return nil, err
	}
	return l, nil
}

func (l *LocalDecoded) Get() *vector.DecodedVector {
	if l.d == nil {
		l.d = l.proc.GetDecodedVector()
	}
	return l.d
}

func (l *LocalDecoded) Decoded() *vector.DecodedVector {
	return l.d
}

func (l *LocalDecoded) Release() {
	if l.d != nil {
		l.proc.ReleaseDecodedVector(l.d)
		l.d = nil
	}
}
