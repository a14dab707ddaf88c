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
	"github.com/vectisdb/vectis/pkg/common/mpool"
	"github.com/vectisdb/vectis/pkg/container/sel"
	"github.com/vectisdb/vectis/pkg/container/types"
)

// Allocator hands out recyclable flat vectors. *process.Process
// implements it; EnsureWritable falls back to fresh allocation when the
// allocator is nil.
type Allocator interface {
	GetVector(typ types.Type, size int) (*Vector, error)
}

// EnsureWritable guarantees that *result points at a flat vector of typ
// that is safely mutable over rows: uniquely owned, sized to at least
// rows.End(), with values outside rows preserved from the old *result.
// A new vector is taken from alloc (or built fresh) when the old one is
// missing, shared, or not flat.
func EnsureWritable(rows *sel.Selection, typ types.Type, mp *mpool.MPool, result **Vector, alloc Allocator) error {
	need := rows.End()
	old := *result
	if old != nil && old.IsFlat() && !old.Shared() && old.typ.Eq(typ) {
		if old.length < need {
			if err := old.PreExtend(need, mp); err != nil {
				return err
			}
			old.length = need
		}
		return nil
	}

	var fresh *Vector
	var err error
	if alloc != nil {
		fresh, err = alloc.GetVector(typ, need)
		if err != nil {
			return err
		}
	} else {
		fresh = NewVec(typ)
		if err = fresh.PreExtend(need, mp); err != nil {
			return err
		}
		fresh.length = need
	}

	// Keep rows outside the selection readable from the old result.
	if old != nil {
		outside := false
		for row := 0; row < old.Length() && row < need; row++ {
			if !rows.IsValid(row) {
				outside = true
				break
			}
		}
		if outside {
			for row := 0; row < old.Length() && row < need; row++ {
				if rows.IsValid(row) {
					continue
				}
				if err := fresh.Copy(old, int64(row), int64(row), mp); err != nil {
					return err
				}
			}
		}
		old.Unref()
	}
	*result = fresh
	return nil
}
