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

package bitmap

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAddRemoveContains(t *testing.T) {
	bm := New(100)
	require.True(t, bm.IsEmpty())

	bm.Add(0)
	bm.Add(63)
	bm.Add(64)
	bm.Add(99)
	require.False(t, bm.IsEmpty())
	require.Equal(t, 4, bm.Count())
	require.True(t, bm.Contains(63))
	require.True(t, bm.Contains(64))
	require.False(t, bm.Contains(65))
	require.False(t, bm.Contains(1000))

	bm.Remove(63)
	require.False(t, bm.Contains(63))
	require.Equal(t, 3, bm.Count())
}

func TestRanges(t *testing.T) {
	bm := New(256)
	bm.AddRange(10, 200)
	require.Equal(t, 190, bm.Count())
	bm.RemoveRange(50, 150)
	require.Equal(t, 90, bm.Count())
	require.True(t, bm.Contains(49))
	require.False(t, bm.Contains(50))
	require.False(t, bm.Contains(149))
	require.True(t, bm.Contains(150))
}

func TestFindFirstLast(t *testing.T) {
	bm := New(200)
	require.Equal(t, int64(-1), bm.FindFirst(0))
	require.Equal(t, int64(-1), bm.FindLast())

	bm.Add(7)
	bm.Add(130)
	require.Equal(t, int64(7), bm.FindFirst(0))
	require.Equal(t, int64(130), bm.FindFirst(8))
	require.Equal(t, int64(-1), bm.FindFirst(131))
	require.Equal(t, int64(130), bm.FindLast())
}

func TestIterator(t *testing.T) {
	bm := New(300)
	want := []uint64{1, 63, 64, 65, 128, 255}
	bm.AddMany(want)

	var got []uint64
	itr := bm.Iterator()
	for itr.HasNext() {
		got = append(got, itr.Next())
	}
	require.Equal(t, want, got)
	require.Equal(t, want, bm.ToArray())
}

func TestForEachSetStops(t *testing.T) {
	bm := New(100)
	bm.AddRange(0, 100)
	var visited int
	bm.ForEachSet(func(row uint64) bool {
		visited++
		return visited < 10
	})
	require.Equal(t, 10, visited)
}

func TestOrAndNegate(t *testing.T) {
	a := New(128)
	b := New(128)
	a.AddRange(0, 64)
	b.AddRange(32, 96)

	c := a.Clone()
	c.Or(b)
	require.Equal(t, 96, c.Count())

	d := a.Clone()
	d.And(b)
	require.Equal(t, 32, d.Count())

	e := New(65)
	e.Add(0)
	e.Negate()
	require.False(t, e.Contains(0))
	require.Equal(t, 64, e.Count())
}

func TestExpand(t *testing.T) {
	bm := New(10)
	bm.Add(9)
	bm.TryExpandWithSize(1000)
	require.Equal(t, int64(1000), bm.Len())
	require.True(t, bm.Contains(9))
	require.False(t, bm.Contains(999))
	bm.Add(999)
	require.True(t, bm.Contains(999))
}

func TestMarshalRoundtrip(t *testing.T) {
	bm := New(150)
	bm.AddMany([]uint64{0, 3, 77, 149})

	var got Bitmap
	got.Unmarshal(bm.Marshal())
	require.Equal(t, bm.Len(), got.Len())
	require.True(t, bm.IsSame(&got))
}
