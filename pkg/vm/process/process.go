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

package process

import (
	"github.com/google/btree"
	"go.uber.org/zap"

	"github.com/vectisdb/vectis/pkg/container/nulls"
	"github.com/vectisdb/vectis/pkg/container/sel"
	"github.com/vectisdb/vectis/pkg/container/types"
	"github.com/vectisdb/vectis/pkg/container/vector"
)

// GetVector returns a flat vector of typ with length size, reusing the
// smallest pooled vector whose buffer fits.
func (proc *Process) GetVector(typ types.Type, size int) (*vector.Vector, error) {
	need := size * typ.TypeSize()
	var hit *pooledVector
	proc.vecPool.tree.AscendGreaterOrEqual(&pooledVector{capBytes: need}, func(item btree.Item) bool {
		hit = item.(*pooledVector)
		return false
	})
	if hit != nil {
		proc.vecPool.tree.Delete(hit)
		proc.vecPool.count--
		vec := hit.vec
		vec.Reset(typ)
		if err := vec.PreExtend(size, proc.Mp()); err != nil {
			return nil, err
		}
		vec.SetLength(size)
		return vec, nil
	}
	vec := vector.NewVec(typ)
	if err := vec.PreExtend(size, proc.Mp()); err != nil {
		return nil, err
	}
	vec.SetLength(size)
	return vec, nil
}

// ReleaseVector moves the vector into the pool. Returns false when the
// pool is full or the vector is still shared; the vector is freed then.
func (proc *Process) ReleaseVector(vec *vector.Vector) bool {
	if vec == nil {
		return false
	}
	if vec.Shared() || !vec.IsFlat() || proc.vecPool.count >= proc.vecPool.limit {
		vec.Free(proc.Mp())
		return false
	}
	proc.vecPool.seq++
	capBytes := vec.Capacity() * vec.GetType().TypeSize()
	proc.vecPool.tree.ReplaceOrInsert(&pooledVector{
		capBytes: capBytes,
		seq:      proc.vecPool.seq,
		vec:      vec,
	})
	proc.vecPool.count++
	return true
}

func (proc *Process) ReleaseVectors(vecs []*vector.Vector) int {
	var released int
	for _, vec := range vecs {
		if proc.ReleaseVector(vec) {
			released++
		}
	}
	return released
}

// GetSelectionVector returns a pooled selection resized to size with
// every row selected.
func (proc *Process) GetSelectionVector(size int) *sel.Selection {
	if n := len(proc.selPool); n > 0 {
		s := proc.selPool[n-1]
		proc.selPool = proc.selPool[:n-1]
		s.ResizeFill(size, true)
		return s
	}
	return sel.New(size)
}

func (proc *Process) ReleaseSelectionVector(s *sel.Selection) {
	if s == nil {
		return
	}
	proc.selPool = append(proc.selPool, s)
}

func (proc *Process) GetDecodedVector() *vector.DecodedVector {
	if n := len(proc.decodedPool); n > 0 {
		d := proc.decodedPool[n-1]
		proc.decodedPool = proc.decodedPool[:n-1]
		return d
	}
	return &vector.DecodedVector{}
}

func (proc *Process) ReleaseDecodedVector(d *vector.DecodedVector) {
	if d == nil {
		return
	}
	proc.decodedPool = append(proc.decodedPool, d)
}

// AllocVectorOfRows allocates a flat vector of typ with nele rows,
// seeding nulls from nsp.
func (proc *Process) AllocVectorOfRows(typ types.Type, nele int, nsp *nulls.Nulls) (*vector.Vector, error) {
	vec, err := proc.GetVector(typ, nele)
	if err != nil {
		return nil, err
	}
	if nsp != nil {
		nulls.Set(vec.GetNulls(), nsp)
	}
	return vec, nil
}

func (proc *Process) Info(msg string, fields ...zap.Field) {
	proc.logger.Info(msg, fields...)
}

func (proc *Process) Error(msg string, fields ...zap.Field) {
	proc.logger.Error(msg, fields...)
}

func (proc *Process) Warn(msg string, fields ...zap.Field) {
	proc.logger.Warn(msg, fields...)
}

func (proc *Process) Debug(msg string, fields ...zap.Field) {
	proc.logger.Debug(msg, fields...)
}

func (proc *Process) Infof(msg string, args ...any) {
	proc.logger.Sugar().Infof(msg, args...)
}

func (proc *Process) Errorf(msg string, args ...any) {
	proc.logger.Sugar().Errorf(msg, args...)
}

func (proc *Process) Warnf(msg string, args ...any) {
	proc.logger.Sugar().Warnf(msg, args...)
}

func (proc *Process) Debugf(msg string, args ...any) {
	proc.logger.Sugar().Debugf(msg, args...)
}
