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

package testutil

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vectisdb/vectis/pkg/container/types"
	"github.com/vectisdb/vectis/pkg/container/vector"
)

func TestBatchFromCSV(t *testing.T) {
	mp := TestMPool()
	bat, err := BatchFromCSV(mp, "1,foo,1.50\n2,,\n-3,bar,0.05\n", []types.Type{
		types.New(types.T_int64, 0, 0),
		types.New(types.T_varchar, 0, 0),
		types.New(types.T_decimal64, 10, 2),
	})
	require.NoError(t, err)
	require.Equal(t, 3, bat.RowCount())
	require.Equal(t, 3, bat.VectorCount())

	ids := vector.MustFixedCol[int64](bat.GetVector(0))
	require.Equal(t, []int64{1, 2, -3}, ids[:3])

	names := bat.GetVector(1)
	require.Equal(t, "foo", names.GetString(0))
	require.True(t, names.IsNullAt(1))
	require.Equal(t, "bar", names.GetString(2))

	decs := vector.MustFixedCol[types.Decimal64](bat.GetVector(2))
	require.Equal(t, types.Decimal64(150), decs[0])
	require.True(t, bat.GetVector(2).IsNullAt(1))
	require.Equal(t, types.Decimal64(5), decs[2])
}

func TestBatchFromCSVBadRow(t *testing.T) {
	mp := TestMPool()
	_, err := BatchFromCSV(mp, "1,2\n3\n", []types.Type{
		types.New(types.T_int64, 0, 0),
		types.New(types.T_int64, 0, 0),
	})
	require.Error(t, err)
}

func TestVectorBuilders(t *testing.T) {
	mp := TestMPool()
	v := NewInt64Vector(mp, []int64{1, 2, 3}, 2)
	require.Equal(t, 3, v.Length())
	require.True(t, v.IsNullAt(2))

	b := NewBoolVector(mp, []bool{true, false})
	require.Equal(t, 2, b.Length())

	s := NewStringVector(mp, []string{"x", "y"})
	require.Equal(t, "y", s.GetString(1))

	bat := NewBatch(v, NewInt64Vector(mp, []int64{9, 9, 9}))
	require.Equal(t, 3, bat.RowCount())
	require.Equal(t, 2, bat.VectorCount())
}
