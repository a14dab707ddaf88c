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
	"encoding/binary"

	"github.com/vectisdb/vectis/pkg/common/verr"
	"github.com/vectisdb/vectis/pkg/container/nulls"
	"github.com/vectisdb/vectis/pkg/container/types"
)

// MarshalBinary serializes a flat or constant vector. Dictionary and
// lazy vectors are transient evaluation shapes and do not ship.
func (v *Vector) MarshalBinary() ([]byte, error) {
	if v.class != FLAT && v.class != CONSTANT {
		return nil, verr.NewNotSupported(context.Background(),
			"marshal of encoded vector class %d", v.class)
	}
	var buf bytes.Buffer
	var scratch [8]byte

	buf.WriteByte(byte(v.class))
	buf.Write(types.EncodeType(&v.typ))

	binary.LittleEndian.PutUint64(scratch[:], uint64(v.length))
	buf.Write(scratch[:])

	rows := v.length
	if v.class == CONSTANT {
		rows = 1
	}
	dataLen := 0
	if v.data != nil {
		dataLen = rows * v.typ.TypeSize()
		if dataLen > len(v.data) {
			dataLen = len(v.data)
		}
	}
	binary.LittleEndian.PutUint64(scratch[:], uint64(dataLen))
	buf.Write(scratch[:])
	buf.Write(v.data[:dataLen])

	binary.LittleEndian.PutUint64(scratch[:], uint64(len(v.area)))
	buf.Write(scratch[:])
	buf.Write(v.area)

	nspData, err := v.nsp.Show()
	if err != nil {
		return nil, err
	}
	binary.LittleEndian.PutUint64(scratch[:], uint64(len(nspData)))
	buf.Write(scratch[:])
	buf.Write(nspData)

	return buf.Bytes(), nil
}

func (v *Vector) UnmarshalBinary(data []byte) error {
	v.class = int(data[0])
	data = data[1:]
	v.typ = types.DecodeType(data[:types.TSize])
	data = data[types.TSize:]

	v.length = int(binary.LittleEndian.Uint64(data[:8]))
	data = data[8:]

	dataLen := int(binary.LittleEndian.Uint64(data[:8]))
	data = data[8:]
	if dataLen > 0 {
		v.data = append([]byte(nil), data[:dataLen]...)
		v.capacity = dataLen / v.typ.TypeSize()
		v.setupColFromData()
	} else {
		v.data = nil
		v.col = nil
		v.capacity = 0
	}
	data = data[dataLen:]

	areaLen := int(binary.LittleEndian.Uint64(data[:8]))
	data = data[8:]
	if areaLen > 0 {
		v.area = append([]byte(nil), data[:areaLen]...)
	} else {
		v.area = nil
	}
	data = data[areaLen:]

	nspLen := int(binary.LittleEndian.Uint64(data[:8]))
	data = data[8:]
	v.nsp = &nulls.Nulls{}
	if nspLen > 0 {
		if err := v.nsp.Read(data[:nspLen]); err != nil {
			return err
		}
	}
	v.refs = 1
	return nil
}
