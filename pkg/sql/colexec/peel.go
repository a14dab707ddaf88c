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
	"github.com/RoaringBitmap/roaring"

	"github.com/vectisdb/vectis/pkg/container/sel"
	"github.com/vectisdb/vectis/pkg/container/vector"
)

// PeeledEncoding describes the wrapper peeled off a set of inputs that
// share a common encoding. A sub-expression then runs against the bases
// over translated inner rows; Wrap re-applies the encoding when the
// result is published.
type PeeledEncoding struct {
	kind    int // vector.DICT or vector.CONSTANT
	indices []int32
	baseLen int
}

func (p *PeeledEncoding) Kind() int {
	return p.kind
}

func (p *PeeledEncoding) Indices() []int32 {
	return p.indices
}

// PeelEncodings inspects fields over rows and, when they share a common
// wrapper, returns the peeled encoding and the peeled bases aligned
// with fields. Beside dictionaries, constants pass through untouched;
// when every field is constant, the encoding is CONSTANT and each base
// is a single-row constant. Returns ok=false when no common wrapper
// exists.
func PeelEncodings(fields []*vector.Vector, rows *sel.Selection) (*PeeledEncoding, []*vector.Vector, bool) {
	if len(fields) == 0 {
		return nil, nil, false
	}

	allConst := true
	var indices []int32
	var baseLen int
	for _, field := range fields {
		if field.IsConst() {
			continue
		}
		allConst = false
		if !field.IsDict() {
			return nil, nil, false
		}
		fieldIndices := field.DictIndices()
		if indices == nil {
			indices = fieldIndices
			baseLen = field.DictBase().Length()
			continue
		}
		// A common wrapper means the very same index mapping.
		if len(fieldIndices) != len(indices) || &fieldIndices[0] != &indices[0] {
			return nil, nil, false
		}
	}

	if allConst {
		peeled := make([]*vector.Vector, len(fields))
		for i, field := range fields {
			peeled[i] = field.ToConst(rows.Begin(), 1)
		}
		return &PeeledEncoding{kind: vector.CONSTANT}, peeled, true
	}
	if indices == nil {
		return nil, nil, false
	}

	peeled := make([]*vector.Vector, len(fields))
	for i, field := range fields {
		if field.IsConst() {
			peeled[i] = field
			continue
		}
		// Wrapper-level nulls block peeling: the base has no slot to
		// represent them.
		if field.GetNulls().Any() {
			return nil, nil, false
		}
		peeled[i] = field.DictBase()
	}
	return &PeeledEncoding{kind: vector.DICT, indices: indices, baseLen: baseLen}, peeled, true
}

// TranslateToInnerRows maps an outer selection through the peeled
// indices into the distinct set of base rows a sub-expression must
// produce.
func (p *PeeledEncoding) TranslateToInnerRows(rows *sel.Selection, inner *sel.Selection) *sel.Selection {
	if p.kind == vector.CONSTANT {
		inner.ResizeFill(1, true)
		return inner
	}
	distinct := roaring.New()
	rows.ApplyToSelected(func(row int) {
		distinct.Add(uint32(p.indices[row]))
	})
	inner.ResizeFill(p.baseLen, false)
	it := distinct.Iterator()
	for it.HasNext() {
		inner.SetValid(int(it.Next()), true)
	}
	inner.UpdateBounds()
	return inner
}

// Wrap re-applies the peeled encoding to a result computed over base
// rows, returning a vector in outer-row coordinates.
func (p *PeeledEncoding) Wrap(vec *vector.Vector, rows *sel.Selection) *vector.Vector {
	if p.kind == vector.CONSTANT {
		return vec.ToConst(0, rows.End())
	}
	return vector.NewDict(p.indices, vec, nil)
}
