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

package batch

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"

	"github.com/pierrec/lz4"

	"github.com/vectisdb/vectis/pkg/common/mpool"
	"github.com/vectisdb/vectis/pkg/common/verr"
	"github.com/vectisdb/vectis/pkg/container/vector"
)

// Batch represents a part of a relationship: a tuple of column vectors
// evaluated together.
//  (Attrs) - list of attributes
//  (Vecs)  - column data
type Batch struct {
	// Ro if true, Attrs is read only.
	Ro bool
	// reference count, default is 1.
	Cnt int64
	// Attrs column name list.
	Attrs []string
	// Vecs col data.
	Vecs []*vector.Vector

	rowCount int
}

func New(ro bool, attrs []string) *Batch {
	return &Batch{
		Ro:    ro,
		Cnt:   1,
		Attrs: attrs,
		Vecs:  make([]*vector.Vector, len(attrs)),
	}
}

func NewWithSize(n int) *Batch {
	return &Batch{
		Cnt:  1,
		Vecs: make([]*vector.Vector, n),
	}
}

func (bat *Batch) RowCount() int {
	return bat.rowCount
}

func (bat *Batch) SetRowCount(n int) {
	bat.rowCount = n
}

func (bat *Batch) VectorCount() int {
	return len(bat.Vecs)
}

func (bat *Batch) GetVector(pos int32) *vector.Vector {
	return bat.Vecs[pos]
}

func (bat *Batch) SetVector(pos int32, vec *vector.Vector) {
	bat.Vecs[pos] = vec
}

func (bat *Batch) Clean(mp *mpool.MPool) {
	bat.Cnt--
	if bat.Cnt > 0 {
		return
	}
	for _, vec := range bat.Vecs {
		if vec != nil {
			vec.Free(mp)
		}
	}
	bat.Attrs = nil
	bat.Vecs = nil
	bat.rowCount = 0
}

func (bat *Batch) String() string {
	var buf bytes.Buffer
	buf.WriteString(fmt.Sprintf("Batch(rows=%d)", bat.rowCount))
	for i, vec := range bat.Vecs {
		buf.WriteString(fmt.Sprintf("\n\t%d: %s", i, vec.String()))
	}
	return buf.String()
}

// MarshalBinary serializes the batch with lz4 block compression, the
// ship and spill format.
func (bat *Batch) MarshalBinary() ([]byte, error) {
	var raw bytes.Buffer
	var scratch [8]byte

	binary.LittleEndian.PutUint64(scratch[:], uint64(bat.rowCount))
	raw.Write(scratch[:])
	binary.LittleEndian.PutUint64(scratch[:], uint64(len(bat.Attrs)))
	raw.Write(scratch[:])
	for _, attr := range bat.Attrs {
		binary.LittleEndian.PutUint64(scratch[:], uint64(len(attr)))
		raw.Write(scratch[:])
		raw.WriteString(attr)
	}
	binary.LittleEndian.PutUint64(scratch[:], uint64(len(bat.Vecs)))
	raw.Write(scratch[:])
	for _, vec := range bat.Vecs {
		data, err := vec.MarshalBinary()
		if err != nil {
			return nil, err
		}
		binary.LittleEndian.PutUint64(scratch[:], uint64(len(data)))
		raw.Write(scratch[:])
		raw.Write(data)
	}

	src := raw.Bytes()
	dst := make([]byte, lz4.CompressBlockBound(len(src))+8)
	binary.LittleEndian.PutUint64(dst[:8], uint64(len(src)))
	n, err := lz4.CompressBlock(src, dst[8:], nil)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		// Incompressible payload, store raw with a zero marker.
		out := make([]byte, 8+len(src))
		binary.LittleEndian.PutUint64(out[:8], 0)
		copy(out[8:], src)
		return out, nil
	}
	return dst[:8+n], nil
}

func (bat *Batch) UnmarshalBinary(data []byte) error {
	if len(data) < 8 {
		return verr.NewInvalidInput(context.Background(), "short batch payload")
	}
	rawLen := int(binary.LittleEndian.Uint64(data[:8]))
	data = data[8:]

	var src []byte
	if rawLen == 0 {
		src = data
	} else {
		src = make([]byte, rawLen)
		if _, err := lz4.UncompressBlock(data, src); err != nil {
			return err
		}
	}

	bat.rowCount = int(binary.LittleEndian.Uint64(src[:8]))
	src = src[8:]
	nattrs := int(binary.LittleEndian.Uint64(src[:8]))
	src = src[8:]
	bat.Attrs = make([]string, nattrs)
	for i := 0; i < nattrs; i++ {
		sz := int(binary.LittleEndian.Uint64(src[:8]))
		src = src[8:]
		bat.Attrs[i] = string(src[:sz])
		src = src[sz:]
	}
	nvecs := int(binary.LittleEndian.Uint64(src[:8]))
	src = src[8:]
	bat.Vecs = make([]*vector.Vector, nvecs)
	for i := 0; i < nvecs; i++ {
		sz := int(binary.LittleEndian.Uint64(src[:8]))
		src = src[8:]
		vec := new(vector.Vector)
		if err := vec.UnmarshalBinary(src[:sz]); err != nil {
			return err
		}
		bat.Vecs[i] = vec
		src = src[sz:]
	}
	bat.Cnt = 1
	return nil
}
