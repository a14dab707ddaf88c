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
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vectisdb/vectis/pkg/common/mpool"
	"github.com/vectisdb/vectis/pkg/container/nulls"
	"github.com/vectisdb/vectis/pkg/container/sel"
	"github.com/vectisdb/vectis/pkg/container/types"
)

func testMp() *mpool.MPool {
	return mpool.MustNewNoFixed("vector_test")
}

func TestAppendFixed(t *testing.T) {
	mp := testMp()
	vec := NewVec(types.New(types.T_int64, 0, 0))
	for i := int64(0); i < 100; i++ {
		require.NoError(t, AppendFixed(vec, i, false, mp))
	}
	require.NoError(t, AppendFixed(vec, int64(0), true, mp))

	require.Equal(t, 101, vec.Length())
	col := MustFixedCol[int64](vec)
	require.Equal(t, int64(42), col[42])
	require.True(t, vec.IsNullAt(100))
	require.False(t, vec.IsNullAt(42))
}

func TestAppendBytes(t *testing.T) {
	mp := testMp()
	vec := NewVec(types.New(types.T_varchar, 0, 0))
	small := "abc"
	big := "this string is long enough to overflow the inline varlena storage"
	require.NoError(t, AppendBytes(vec, []byte(small), false, mp))
	require.NoError(t, AppendBytes(vec, []byte(big), false, mp))
	require.NoError(t, AppendBytes(vec, nil, true, mp))

	require.Equal(t, small, vec.GetString(0))
	require.Equal(t, big, vec.GetString(1))
	require.True(t, vec.IsNullAt(2))
}

func TestConstVector(t *testing.T) {
	mp := testMp()
	vec, err := NewConstFixed(types.New(types.T_int64, 0, 0), int64(7), 10, mp)
	require.NoError(t, err)
	require.True(t, vec.IsConst())
	require.False(t, vec.IsConstNull())
	require.Equal(t, 10, vec.Length())
	require.Equal(t, int64(7), GetFixedAt[int64](vec, 5))

	nv := NewConstNull(types.New(types.T_int64, 0, 0), 4)
	require.True(t, nv.IsConstNull())
	require.True(t, nv.IsNullAt(3))
}

func TestDictVector(t *testing.T) {
	mp := testMp()
	base := NewVec(types.New(types.T_int64, 0, 0))
	require.NoError(t, AppendFixedList(base, []int64{100, 200, 300}, nil, mp))
	base.SetNull(2, true)

	dict := NewDict([]int32{2, 0, 1, 0}, base, nil)
	require.True(t, dict.IsDict())
	require.Equal(t, 4, dict.Length())
	require.True(t, dict.IsNullAt(0))
	require.False(t, dict.IsNullAt(1))

	rows := sel.New(4)
	var d DecodedVector
	require.NoError(t, d.Decode(dict, rows))
	require.False(t, d.IsIdentityMapping())
	require.False(t, d.IsConstantMapping())
	require.Equal(t, int64(100), DecodedValueAt[int64](&d, 1))
	require.Equal(t, int64(200), DecodedValueAt[int64](&d, 2))
	require.True(t, d.IsNullAt(0))
}

func TestDecodeNestedDict(t *testing.T) {
	mp := testMp()
	base := NewVec(types.New(types.T_int64, 0, 0))
	require.NoError(t, AppendFixedList(base, []int64{10, 20, 30}, nil, mp))

	inner := NewDict([]int32{2, 1, 0}, base, nil)
	outer := NewDict([]int32{0, 0, 2}, inner, nil)

	rows := sel.New(3)
	var d DecodedVector
	require.NoError(t, d.Decode(outer, rows))
	require.Equal(t, int64(30), DecodedValueAt[int64](&d, 0))
	require.Equal(t, int64(30), DecodedValueAt[int64](&d, 1))
	require.Equal(t, int64(10), DecodedValueAt[int64](&d, 2))
}

func TestDecodeConst(t *testing.T) {
	mp := testMp()
	vec, err := NewConstFixed(types.New(types.T_int64, 0, 0), int64(3), 8, mp)
	require.NoError(t, err)

	rows := sel.New(8)
	var d DecodedVector
	require.NoError(t, d.Decode(vec, rows))
	require.True(t, d.IsConstantMapping())
	require.Equal(t, int64(3), DecodedValueAt[int64](&d, 0))
}

type sliceLoader struct {
	vals []int64
}

func (l *sliceLoader) Load(rows *sel.Selection) (*Vector, error) {
	vec := NewVec(types.New(types.T_int64, 0, 0))
	if err := AppendFixedList(vec, l.vals, nil, mpool.MustNewNoFixed("loader")); err != nil {
		return nil, err
	}
	return vec, nil
}

func TestLazyVector(t *testing.T) {
	lazy := NewLazy(types.New(types.T_int64, 0, 0), 3, &sliceLoader{vals: []int64{5, 6, 7}})
	require.True(t, lazy.IsLazy())

	rows := sel.New(3)
	var d DecodedVector
	require.NoError(t, d.Decode(lazy, rows))
	require.True(t, d.IsIdentityMapping())
	require.Equal(t, int64(6), DecodedValueAt[int64](&d, 1))
}

func TestToConst(t *testing.T) {
	mp := testMp()
	vec := NewVec(types.New(types.T_int64, 0, 0))
	require.NoError(t, AppendFixedList(vec, []int64{1, 2, 3}, nil, mp))

	c := vec.ToConst(1, 5)
	require.True(t, c.IsConst())
	require.Equal(t, 5, c.Length())
	require.Equal(t, int64(2), GetFixedAt[int64](c, 4))

	vec.SetNull(0, true)
	cn := vec.ToConst(0, 5)
	require.True(t, cn.IsConstNull())
}

func TestCopyRow(t *testing.T) {
	mp := testMp()
	dst := NewVec(types.New(types.T_int64, 0, 0))
	require.NoError(t, AppendFixedList(dst, []int64{1, 2, 3}, nil, mp))
	src := NewVec(types.New(types.T_int64, 0, 0))
	require.NoError(t, AppendFixedList(src, []int64{9, 8, 7}, []bool{false, true, false}, mp))

	require.NoError(t, dst.Copy(src, 0, 0, mp))
	require.NoError(t, dst.Copy(src, 1, 1, mp))
	col := MustFixedCol[int64](dst)
	require.Equal(t, int64(9), col[0])
	require.True(t, dst.IsNullAt(1))
	require.Equal(t, int64(3), col[2])
}

func TestEnsureWritableFresh(t *testing.T) {
	mp := testMp()
	rows := sel.New(4)
	var result *Vector
	require.NoError(t, EnsureWritable(rows, types.New(types.T_bool, 0, 0), mp, &result, nil))
	require.NotNil(t, result)
	require.True(t, result.IsFlat())
	require.Equal(t, 4, result.Length())
}

func TestEnsureWritablePreservesOutsideRows(t *testing.T) {
	mp := testMp()
	old := NewVec(types.New(types.T_int64, 0, 0))
	require.NoError(t, AppendFixedList(old, []int64{10, 20, 30, 40}, nil, mp))
	old.Ref() // simulate another reader, forcing reallocation

	rows := sel.NewEmpty(4)
	rows.SetValid(1, true)
	rows.SetValid(3, true)
	rows.UpdateBounds()

	result := old
	require.NoError(t, EnsureWritable(rows, types.New(types.T_int64, 0, 0), mp, &result, nil))
	require.NotSame(t, old, result)
	col := MustFixedCol[int64](result)
	require.Equal(t, int64(10), col[0])
	require.Equal(t, int64(30), col[2])
}

func TestReinterpretFixed(t *testing.T) {
	mp := testMp()
	vec := NewVec(types.New(types.T_decimal64, 10, 2))
	require.NoError(t, AppendFixedList(vec, []types.Decimal64{1234, -5}, nil, mp))

	asInt := vec.ReinterpretFixed(types.New(types.T_int64, 0, 0))
	require.Equal(t, 2, asInt.Length())
	col := MustFixedCol[int64](asInt)
	require.Equal(t, int64(1234), col[0])
	require.Equal(t, int64(-5), col[1])
	require.True(t, vec.Shared())
}

func TestNullsOr(t *testing.T) {
	a := nulls.Build(10, 1, 3)
	b := nulls.Build(10, 3, 5)
	var r nulls.Nulls
	nulls.Or(a, b, &r)
	require.True(t, r.Contains(1))
	require.True(t, r.Contains(3))
	require.True(t, r.Contains(5))
	require.False(t, r.Contains(0))
}
