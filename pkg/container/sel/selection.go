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

// Package sel provides Selection, a bitmap over the rows of a batch that
// an evaluation step applies to, with cached bounds and cardinality.
package sel

import (
	"fmt"

	"github.com/vectisdb/vectis/pkg/common/bitmap"
)

// Selection marks which rows of a batch a step must produce. begin/end
// bound the set rows, count caches cardinality; both are refreshed by
// UpdateBounds and invalidated by single-bit mutation.
type Selection struct {
	bits  bitmap.Bitmap
	size  int
	begin int
	end   int
	count int

	boundsDirty bool
}

// New returns a Selection of the given size with every row selected.
func New(size int) *Selection {
	s := &Selection{}
	s.ResizeFill(size, true)
	return s
}

// NewEmpty returns a Selection of the given size with no row selected.
func NewEmpty(size int) *Selection {
	s := &Selection{}
	s.ResizeFill(size, false)
	return s
}

// NewRange returns a Selection of size end with [start, end) selected.
func NewRange(start, end int) *Selection {
	s := NewEmpty(end)
	s.bits.AddRange(uint64(start), uint64(end))
	s.UpdateBounds()
	return s
}

func (s *Selection) Len() int {
	return s.size
}

// ResizeFill reinitializes to size rows, all set to value.
func (s *Selection) ResizeFill(size int, value bool) {
	s.bits.Reset()
	s.bits.InitWithSize(int64(size))
	s.size = size
	if value && size > 0 {
		s.bits.AddRange(0, uint64(size))
	}
	s.UpdateBounds()
}

func (s *Selection) CopyFrom(other *Selection) {
	s.bits.Reset()
	s.bits.InitWith(&other.bits)
	s.size = other.size
	s.begin = other.begin
	s.end = other.end
	s.count = other.count
	s.boundsDirty = other.boundsDirty
}

func (s *Selection) Clone() *Selection {
	ret := &Selection{}
	ret.CopyFrom(s)
	return ret
}

func (s *Selection) SetValid(row int, valid bool) {
	if valid {
		s.bits.Add(uint64(row))
	} else {
		s.bits.Remove(uint64(row))
	}
	s.boundsDirty = true
}

func (s *Selection) IsValid(row int) bool {
	return row >= 0 && row < s.size && s.bits.Contains(uint64(row))
}

func (s *Selection) ClearAll() {
	s.bits.Clear()
	s.UpdateBounds()
}

func (s *Selection) SelectAll() {
	s.bits.Clear()
	if s.size > 0 {
		s.bits.AddRange(0, uint64(s.size))
	}
	s.UpdateBounds()
}

// UpdateBounds refreshes the cached begin/end/count.
func (s *Selection) UpdateBounds() {
	first := s.bits.FindFirst(0)
	if first < 0 {
		s.begin, s.end, s.count = 0, 0, 0
		s.boundsDirty = false
		return
	}
	s.begin = int(first)
	s.end = int(s.bits.FindLast()) + 1
	s.count = s.bits.Count()
	s.boundsDirty = false
}

func (s *Selection) refresh() {
	if s.boundsDirty {
		s.UpdateBounds()
	}
}

// Begin returns the first selected row.
func (s *Selection) Begin() int {
	s.refresh()
	return s.begin
}

// End returns one past the last selected row.
func (s *Selection) End() int {
	s.refresh()
	return s.end
}

// CountSelected returns the number of selected rows.
func (s *Selection) CountSelected() int {
	s.refresh()
	return s.count
}

func (s *Selection) HasSelections() bool {
	return s.CountSelected() > 0
}

func (s *Selection) IsAllSelected() bool {
	return s.CountSelected() == s.size
}

// ApplyToSelected invokes fn on every selected row in ascending order.
func (s *Selection) ApplyToSelected(fn func(row int)) {
	s.bits.ForEachSet(func(row uint64) bool {
		fn(int(row))
		return true
	})
}

// TestSelected invokes fn on every selected row in ascending order until
// fn returns false.
func (s *Selection) TestSelected(fn func(row int) bool) {
	s.bits.ForEachSet(func(row uint64) bool {
		return fn(int(row))
	})
}

// ApplyToSelectedErr is ApplyToSelected with error propagation; the
// first non-nil error stops the loop.
func (s *Selection) ApplyToSelectedErr(fn func(row int) error) error {
	var err error
	s.bits.ForEachSet(func(row uint64) bool {
		err = fn(int(row))
		return err == nil
	})
	return err
}

// Intersect narrows s to rows also selected in other.
func (s *Selection) Intersect(other *Selection) {
	s.bits.And(&other.bits)
	s.UpdateBounds()
}

// Union widens s with the rows selected in other.
func (s *Selection) Union(other *Selection) {
	s.bits.Or(&other.bits)
	if s.size < other.size {
		s.size = other.size
	}
	s.UpdateBounds()
}

// Equals reports whether both selections select exactly the same rows.
func (s *Selection) Equals(other *Selection) bool {
	if s == other {
		return true
	}
	if s == nil || other == nil {
		return false
	}
	a, b := s, other
	if a.CountSelected() != b.CountSelected() {
		return false
	}
	equal := true
	a.TestSelected(func(row int) bool {
		if !b.IsValid(row) {
			equal = false
			return false
		}
		return true
	})
	return equal
}

// Bits exposes the underlying bitmap.
func (s *Selection) Bits() *bitmap.Bitmap {
	return &s.bits
}

func (s *Selection) String() string {
	return fmt.Sprintf("Selection(size=%d, count=%d, range=[%d,%d))",
		s.size, s.CountSelected(), s.Begin(), s.End())
}
