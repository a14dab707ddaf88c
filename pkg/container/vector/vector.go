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
	"bytes"
	"context"
	"fmt"

	"github.com/vectisdb/vectis/pkg/common/mpool"
	"github.com/vectisdb/vectis/pkg/common/verr"
	"github.com/vectisdb/vectis/pkg/container/nulls"
	"github.com/vectisdb/vectis/pkg/container/sel"
	"github.com/vectisdb/vectis/pkg/container/types"
)

const (
	FLAT     = iota // flat vector represents dense values plus a null bitmap
	CONSTANT        // const vector, a single value replicated length times
	DICT            // dictionary vector, indices into a base vector
	LAZY            // deferred materialization, resolved through a Loader
)

// Loader materializes a lazy vector over the given rows.
type Loader interface {
	Load(rows *sel.Selection) (*Vector, error)
}

// Vector represents a column.
type Vector struct {
	// vector's class
	class int
	// typ represents the type of the column
	typ types.Type
	nsp *nulls.Nulls // nulls list

	// data of fixed length elements, in case of varlen, the Varlena
	col  any
	data []byte

	// area for holding large strings.
	area []byte

	capacity int
	length   int

	// dictionary class only: indices into base.
	indices []int32
	base    *Vector

	// lazy class only.
	loader Loader
	loaded *Vector

	// refs counts handles that may read this vector. A vector is only
	// mutable in place while refs == 1.
	refs int32
}

func NewVec(typ types.Type) *Vector {
	return &Vector{class: FLAT, typ: typ, nsp: &nulls.Nulls{}, refs: 1}
}

func NewConstNull(typ types.Type, length int) *Vector {
	return &Vector{
		class:  CONSTANT,
		typ:    typ,
		nsp:    nulls.Build(1, 0),
		length: length,
		refs:   1,
	}
}

func NewConstFixed[T types.FixedSizeT](typ types.Type, val T, length int, mp *mpool.MPool) (*Vector, error) {
	vec := &Vector{class: CONSTANT, typ: typ, nsp: &nulls.Nulls{}, refs: 1}
	if err := extend(vec, 1, mp); err != nil {
		return nil, err
	}
	col := MustFixedCol[T](vec)
	col[0] = val
	vec.length = length
	return vec, nil
}

func NewConstBytes(typ types.Type, val []byte, length int, mp *mpool.MPool) (*Vector, error) {
	vec := &Vector{class: CONSTANT, typ: typ, nsp: &nulls.Nulls{}, refs: 1}
	if err := extend(vec, 1, mp); err != nil {
		return nil, err
	}
	col := MustFixedCol[types.Varlena](vec)
	col[0], vec.area = types.BuildVarlena(val, vec.area)
	vec.length = length
	return vec, nil
}

// NewDict wraps base behind an index mapping. nsp marks positions that
// are null regardless of what the index points at.
func NewDict(indices []int32, base *Vector, nsp *nulls.Nulls) *Vector {
	if nsp == nil {
		nsp = &nulls.Nulls{}
	}
	base.Ref()
	return &Vector{
		class:   DICT,
		typ:     *base.GetType(),
		nsp:     nsp,
		indices: indices,
		base:    base,
		length:  len(indices),
		refs:    1,
	}
}

func NewLazy(typ types.Type, length int, loader Loader) *Vector {
	return &Vector{
		class:  LAZY,
		typ:    typ,
		nsp:    &nulls.Nulls{},
		length: length,
		loader: loader,
		refs:   1,
	}
}

func (v *Vector) Class() int {
	return v.class
}

func (v *Vector) Length() int {
	return v.length
}

func (v *Vector) SetLength(n int) {
	v.length = n
}

func (v *Vector) Capacity() int {
	return v.capacity
}

func (v *Vector) GetType() *types.Type {
	return &v.typ
}

func (v *Vector) SetType(typ types.Type) {
	v.typ = typ
}

func (v *Vector) GetNulls() *nulls.Nulls {
	return v.nsp
}

func (v *Vector) SetNulls(nsp *nulls.Nulls) {
	v.nsp = nsp
}

func (v *Vector) IsConst() bool {
	return v.class == CONSTANT
}

func (v *Vector) IsConstNull() bool {
	return v.class == CONSTANT && nulls.Contains(v.nsp, 0)
}

func (v *Vector) IsFlat() bool {
	return v.class == FLAT
}

func (v *Vector) IsDict() bool {
	return v.class == DICT
}

func (v *Vector) IsLazy() bool {
	return v.class == LAZY
}

// DictIndices returns the index mapping of a dictionary vector.
func (v *Vector) DictIndices() []int32 {
	return v.indices
}

// DictBase returns the base of a dictionary vector.
func (v *Vector) DictBase() *Vector {
	return v.base
}

// Ref marks one more handle reading this vector.
func (v *Vector) Ref() {
	v.refs++
}

// Unref drops a handle, reporting whether the vector became unowned.
func (v *Vector) Unref() bool {
	v.refs--
	return v.refs <= 0
}

// Shared reports whether in-place mutation is unsafe.
func (v *Vector) Shared() bool {
	return v.refs > 1
}

// Load resolves a lazy vector over rows, caching the materialized form.
func (v *Vector) Load(rows *sel.Selection) (*Vector, error) {
	if v.class != LAZY {
		return v, nil
	}
	if v.loaded != nil {
		return v.loaded, nil
	}
	loaded, err := v.loader.Load(rows)
	if err != nil {
		return nil, err
	}
	v.loaded = loaded
	return loaded, nil
}

// IsNullAt resolves nullness through the encoding.
func (v *Vector) IsNullAt(row int) bool {
	switch v.class {
	case CONSTANT:
		return nulls.Contains(v.nsp, 0)
	case DICT:
		if nulls.Contains(v.nsp, uint64(row)) {
			return true
		}
		return v.base.IsNullAt(int(v.indices[row]))
	case LAZY:
		if v.loaded != nil {
			return v.loaded.IsNullAt(row)
		}
		return false
	default:
		return nulls.Contains(v.nsp, uint64(row))
	}
}

// SetNull marks row null (or not) on a flat vector, growing the null
// bitmap as needed.
func (v *Vector) SetNull(row int, isNull bool) {
	if isNull {
		nulls.Add(v.nsp, uint64(row))
	} else {
		nulls.Del(v.nsp, uint64(row))
	}
}

func (v *Vector) HasNulls() bool {
	if v.class == LAZY && v.loaded != nil {
		return v.loaded.HasNulls()
	}
	if v.class == DICT {
		return nulls.Any(v.nsp) || v.base.HasNulls()
	}
	return nulls.Any(v.nsp)
}

// MustFixedCol returns the typed view over a vector's data buffer.
func MustFixedCol[T types.FixedSizeT](v *Vector) []T {
	if v.col == nil {
		return nil
	}
	return v.col.([]T)
}

// GetFixedAt reads one value, resolving constant replication.
func GetFixedAt[T types.FixedSizeT](v *Vector, idx int) T {
	if v.IsConst() {
		idx = 0
	}
	return v.col.([]T)[idx]
}

// SetFixedAt writes one value of a flat vector in place.
func SetFixedAt[T types.FixedSizeT](v *Vector, idx int, t T) error {
	if idx < 0 || idx >= v.length {
		return verr.NewInvalidArg(context.Background(), "vector index", idx)
	}
	col := v.col.([]T)
	col[idx] = t
	return nil
}

func (v *Vector) GetBytes(i int) []byte {
	if v.IsConst() {
		i = 0
	}
	bs := v.col.([]types.Varlena)
	return bs[i].GetByteSlice(v.area)
}

func (v *Vector) GetString(i int) string {
	return string(v.GetBytes(i))
}

// GetArea returns the overflow area of a varlen vector.
func (v *Vector) GetArea() []byte {
	return v.area
}

// TryExpandNulls makes the null bitmap addressable up to n rows.
func (v *Vector) TryExpandNulls(n int) {
	nulls.TryExpand(v.nsp, n)
}

// PreExtend reserves capacity for rows elements.
func (v *Vector) PreExtend(rows int, mp *mpool.MPool) error {
	if v.class != FLAT {
		return verr.NewInvalidState(context.Background(), "extend a non-flat vector")
	}
	return extend(v, rows, mp)
}

func extend(v *Vector, rows int, mp *mpool.MPool) error {
	if rows <= v.capacity {
		return nil
	}
	sz := v.typ.TypeSize()
	newCap := rows
	if newCap < v.capacity*2 {
		newCap = v.capacity * 2
	}
	data, err := mp.Grow(v.data, newCap*sz)
	if err != nil {
		return err
	}
	usable := (cap(data) / sz) * sz
	v.data = data[:usable]
	v.capacity = usable / sz
	v.setupColFromData()
	return nil
}

func (v *Vector) setupColFromData() {
	switch v.typ.Oid {
	case types.T_bool:
		v.col = types.DecodeSlice[bool](v.data)
	case types.T_int8:
		v.col = types.DecodeSlice[int8](v.data)
	case types.T_int16:
		v.col = types.DecodeSlice[int16](v.data)
	case types.T_int32:
		v.col = types.DecodeSlice[int32](v.data)
	case types.T_int64:
		v.col = types.DecodeSlice[int64](v.data)
	case types.T_uint8:
		v.col = types.DecodeSlice[uint8](v.data)
	case types.T_uint16:
		v.col = types.DecodeSlice[uint16](v.data)
	case types.T_uint32:
		v.col = types.DecodeSlice[uint32](v.data)
	case types.T_uint64:
		v.col = types.DecodeSlice[uint64](v.data)
	case types.T_float32:
		v.col = types.DecodeSlice[float32](v.data)
	case types.T_float64:
		v.col = types.DecodeSlice[float64](v.data)
	case types.T_decimal64:
		v.col = types.DecodeSlice[types.Decimal64](v.data)
	case types.T_decimal128:
		v.col = types.DecodeSlice[types.Decimal128](v.data)
	case types.T_char, types.T_varchar:
		v.col = types.DecodeSlice[types.Varlena](v.data)
	default:
		panic(fmt.Sprintf("unexpected vector type %s", v.typ.Oid))
	}
}

// AppendFixed appends one value, growing as needed.
func AppendFixed[T types.FixedSizeT](v *Vector, val T, isNull bool, mp *mpool.MPool) error {
	if v.class != FLAT {
		return verr.NewInvalidState(context.Background(), "append to a non-flat vector")
	}
	if err := extend(v, v.length+1, mp); err != nil {
		return err
	}
	col := MustFixedCol[T](v)
	if isNull {
		nulls.Add(v.nsp, uint64(v.length))
	} else {
		col[v.length] = val
	}
	v.length++
	return nil
}

func AppendBytes(v *Vector, val []byte, isNull bool, mp *mpool.MPool) error {
	if v.class != FLAT {
		return verr.NewInvalidState(context.Background(), "append to a non-flat vector")
	}
	if err := extend(v, v.length+1, mp); err != nil {
		return err
	}
	col := MustFixedCol[types.Varlena](v)
	if isNull {
		nulls.Add(v.nsp, uint64(v.length))
	} else {
		col[v.length], v.area = types.BuildVarlena(val, v.area)
	}
	v.length++
	return nil
}

func AppendFixedList[T types.FixedSizeT](v *Vector, vals []T, isNulls []bool, mp *mpool.MPool) error {
	for i, val := range vals {
		isNull := isNulls != nil && isNulls[i]
		if err := AppendFixed(v, val, isNull, mp); err != nil {
			return err
		}
	}
	return nil
}

func AppendStringList(v *Vector, vals []string, isNulls []bool, mp *mpool.MPool) error {
	for i, val := range vals {
		isNull := isNulls != nil && isNulls[i]
		if err := AppendBytes(v, []byte(val), isNull, mp); err != nil {
			return err
		}
	}
	return nil
}

// Copy copies the wi-th row of w into the vi-th row of v. Both must be
// flat vectors of the same type.
func (v *Vector) Copy(w *Vector, vi, wi int64, mp *mpool.MPool) error {
	if v.class != FLAT {
		return verr.NewInvalidState(context.Background(), "copy into a non-flat vector")
	}
	if w.IsNullAt(int(wi)) {
		v.SetNull(int(vi), true)
		return nil
	}
	v.SetNull(int(vi), false)
	if v.typ.IsVarlen() {
		dstCol := MustFixedCol[types.Varlena](v)
		dstCol[vi], v.area = types.BuildVarlena(w.resolveBytes(int(wi)), v.area)
		return nil
	}
	sz := v.typ.TypeSize()
	src := w.resolveRawAt(int(wi))
	copy(v.data[int(vi)*sz:(int(vi)+1)*sz], src)
	return nil
}

// resolveBytes reads the varlen value at row, resolving encodings.
func (v *Vector) resolveBytes(row int) []byte {
	switch v.class {
	case DICT:
		return v.base.resolveBytes(int(v.indices[row]))
	case LAZY:
		return v.loaded.resolveBytes(row)
	default:
		return v.GetBytes(row)
	}
}

func (v *Vector) resolveRawAt(row int) []byte {
	switch v.class {
	case CONSTANT:
		row = 0
	case DICT:
		return v.base.resolveRawAt(int(v.indices[row]))
	case LAZY:
		return v.loaded.resolveRawAt(row)
	}
	sz := v.typ.TypeSize()
	return v.data[row*sz : (row+1)*sz]
}

// ReinterpretFixed returns a vector of typ sharing this vector's data
// buffer. Both types must have the same fixed size. The receiver counts
// as read-shared afterwards.
func (v *Vector) ReinterpretFixed(typ types.Type) *Vector {
	v.Ref()
	ret := &Vector{
		class:    v.class,
		typ:      typ,
		nsp:      v.nsp,
		data:     v.data,
		area:     v.area,
		capacity: v.capacity,
		length:   v.length,
		refs:     1,
	}
	ret.setupColFromData()
	return ret
}

// ToConst returns a constant view replicating the row-th value length
// times. Storage is shared with v.
func (v *Vector) ToConst(row, length int) *Vector {
	if v.IsNullAt(row) {
		return NewConstNull(v.typ, length)
	}
	if v.class == DICT {
		return v.base.ToConst(int(v.indices[row]), length)
	}
	if v.class == LAZY {
		return v.loaded.ToConst(row, length)
	}
	if v.class == CONSTANT {
		row = 0
	}
	v.Ref()
	ret := &Vector{
		class:  CONSTANT,
		typ:    v.typ,
		nsp:    &nulls.Nulls{},
		length: length,
		refs:   1,
	}
	sz := v.typ.TypeSize()
	ret.data = v.data[row*sz : (row+1)*sz]
	ret.area = v.area
	ret.capacity = 1
	ret.setupColFromData()
	return ret
}

// Dup deep-copies a vector into a fresh flat handle.
func (v *Vector) Dup(mp *mpool.MPool) (*Vector, error) {
	ret := NewVec(v.typ)
	if err := extend(ret, v.length, mp); err != nil {
		return nil, err
	}
	ret.length = v.length
	for row := 0; row < v.length; row++ {
		if err := ret.Copy(v, int64(row), int64(row), mp); err != nil {
			return nil, err
		}
	}
	return ret, nil
}

// Reset empties a flat vector for reuse, keeping its buffers.
func (v *Vector) Reset(typ types.Type) {
	v.class = FLAT
	v.length = 0
	v.area = v.area[:0]
	v.nsp = &nulls.Nulls{}
	v.indices = nil
	v.base = nil
	v.loader = nil
	v.loaded = nil
	v.refs = 1
	if !v.typ.Eq(typ) {
		v.typ = typ
		if v.data != nil {
			sz := typ.TypeSize()
			usable := (cap(v.data) / sz) * sz
			v.data = v.data[:usable]
			v.capacity = usable / sz
			v.setupColFromData()
		}
	}
}

func (v *Vector) Free(mp *mpool.MPool) {
	if v == nil {
		return
	}
	mp.Free(v.data)
	v.data = nil
	v.col = nil
	v.area = nil
	v.capacity = 0
	v.length = 0
	if v.base != nil {
		if v.base.Unref() {
			v.base.Free(mp)
		}
		v.base = nil
	}
}

func (v *Vector) String() string {
	var buf bytes.Buffer
	buf.WriteString(v.typ.String())
	switch v.class {
	case CONSTANT:
		buf.WriteString(fmt.Sprintf("-const(len=%d)", v.length))
	case DICT:
		buf.WriteString(fmt.Sprintf("-dict(len=%d)", v.length))
	case LAZY:
		buf.WriteString(fmt.Sprintf("-lazy(len=%d)", v.length))
	default:
		buf.WriteString(fmt.Sprintf("-flat(len=%d, nulls=%s)", v.length, nulls.String(v.nsp)))
	}
	return buf.String()
}
