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

package vector

import (
	"github.com/vectisdb/vectis/pkg/container/nulls"
	"github.com/vectisdb/vectis/pkg/container/sel"
	"github.com/vectisdb/vectis/pkg/container/types"
)

// DecodedVector is a read-side view of a vector over a selection that
// resolves dictionary indirection and lazy loading. The variant is
// classified once per Decode call; value access afterwards is a direct
// base read.
type DecodedVector struct {
	vec  *Vector
	base *Vector

	// indices maps source rows to base rows. nil means identity.
	indices []int32
	// nullAt overlays wrapper-level nulls in source-row coordinates.
	nullAt *nulls.Nulls

	constant bool
}

// Decode classifies v over rows. Dictionary chains collapse into a
// single index mapping; lazy vectors materialize first.
func (d *DecodedVector) Decode(v *Vector, rows *sel.Selection) error {
	d.vec = v
	d.indices = nil
	d.nullAt = nil
	d.constant = false

	cur := v
	for {
		switch cur.class {
		case LAZY:
			loaded, err := cur.Load(rows)
			if err != nil {
				return err
			}
			cur = loaded
		case DICT:
			if nulls.Any(cur.nsp) {
				// Wrapper nulls live in cur-row coordinates; translate
				// them through the mapping collected so far.
				var overlay *nulls.Nulls
				if d.indices == nil {
					overlay = cur.nsp
				} else {
					overlay = &nulls.Nulls{}
					for i, idx := range d.indices {
						if cur.nsp.Contains(uint64(idx)) {
							overlay.Set(uint64(i))
						}
					}
				}
				if d.nullAt == nil {
					d.nullAt = overlay
				} else {
					merged := d.nullAt.Clone()
					nulls.Set(merged, overlay)
					d.nullAt = merged
				}
			}
			if d.indices == nil {
				d.indices = cur.indices
			} else {
				merged := make([]int32, len(d.indices))
				for i, idx := range d.indices {
					merged[i] = cur.indices[idx]
				}
				d.indices = merged
			}
			cur = cur.base
		case CONSTANT:
			d.constant = true
			d.base = cur
			return nil
		default:
			d.base = cur
			return nil
		}
	}
}

// Vector returns the vector this view was decoded from.
func (d *DecodedVector) Vector() *Vector {
	return d.vec
}

func (d *DecodedVector) Base() *Vector {
	return d.base
}

// IsIdentityMapping reports that source rows read the base directly.
func (d *DecodedVector) IsIdentityMapping() bool {
	return !d.constant && d.indices == nil
}

// IsConstantMapping reports that every row reads the same value.
func (d *DecodedVector) IsConstantMapping() bool {
	return d.constant
}

// Index translates a source row into a base row.
func (d *DecodedVector) Index(row int) int {
	if d.constant {
		return 0
	}
	if d.indices == nil {
		return row
	}
	return int(d.indices[row])
}

func (d *DecodedVector) IsNullAt(row int) bool {
	if d.nullAt != nil && d.nullAt.Contains(uint64(row)) {
		return true
	}
	return d.base.IsNullAt(d.Index(row))
}

func (d *DecodedVector) HasNulls() bool {
	if d.nullAt != nil && d.nullAt.Any() {
		return true
	}
	return d.base.HasNulls()
}

// DecodedValueAt reads the value for a source row. The caller must know
// the row is not null.
func DecodedValueAt[T types.FixedSizeT](d *DecodedVector, row int) T {
	return GetFixedAt[T](d.base, d.Index(row))
}

// BytesAt reads a varlen value for a source row.
func (d *DecodedVector) BytesAt(row int) []byte {
	return d.base.GetBytes(d.Index(row))
}
