// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package storage

import (
	"encoding/binary"
	"fmt"
	"math"
	"time"

	"github.com/mus-format/mus-go/ord"
	"github.com/mus-format/mus-go/raw"
	"github.com/mus-format/mus-go/varint"
	"github.com/poiesic/mnemo/core"
)

type unmarshaler[T any] interface {
	Unmarshal(bs []byte) (T, int, error)
}

// decoder walks a value field by field and keeps the first error.
type decoder struct {
	bs  []byte
	off int
	err error
}

func decode[T any](d *decoder, u unmarshaler[T]) T {
	var v T
	if d.err != nil {
		return v
	}
	v, n, err := u.Unmarshal(d.bs[d.off:])
	if err != nil {
		d.err = err
		return v
	}
	d.off += n
	return v
}

func (d *decoder) micros() time.Time {
	if d.err == nil && len(d.bs)-d.off < 8 {
		d.err = ErrTruncatedData
	}
	return time.UnixMicro(decode[int64](d, raw.Int64)).UTC()
}

func (d *decoder) role() core.Role {
	role := core.Role(decode[int](d, varint.Int))
	if d.err != nil {
		return 0
	}
	if _, err := core.ParseRole(role.String()); err != nil {
		d.err = err
	}
	return role
}

func (d *decoder) finish() error {
	if d.err == nil && d.off != len(d.bs) {
		d.err = fmt.Errorf("%d trailing bytes", len(d.bs)-d.off)
	}
	if d.err != nil {
		return fmt.Errorf("%w: %w", ErrSerializationFailed, d.err)
	}
	return nil
}

// MarshalID serializes an ID to bytes.
func MarshalID(id core.ID) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, uint64(id))
	return buf
}

// UnmarshalID deserializes an ID from bytes.
func UnmarshalID(data []byte) (core.ID, error) {
	if len(data) != 8 {
		return 0, fmt.Errorf("%w: id has %d bytes", ErrTruncatedData, len(data))
	}
	return core.ID(binary.BigEndian.Uint64(data)), nil
}

// MarshalMemory serializes a MemoryRecord without its embedding.
// Fields are written in order: content, role, source, timestamp in
// microseconds, embedder name.
func MarshalMemory(record *core.MemoryRecord) []byte {
	ts := record.Timestamp.UnixMicro()
	role := int(record.Role)
	size := ord.String.Size(record.Content) +
		varint.Int.Size(role) +
		ord.String.Size(record.Source) +
		raw.Int64.Size(ts) +
		ord.String.Size(record.EmbedderName)
	buf := make([]byte, size)
	n := ord.String.Marshal(record.Content, buf)
	n += varint.Int.Marshal(role, buf[n:])
	n += ord.String.Marshal(record.Source, buf[n:])
	n += raw.Int64.Marshal(ts, buf[n:])
	ord.String.Marshal(record.EmbedderName, buf[n:])
	return buf
}

// UnmarshalMemory deserializes a MemoryRecord. The embedding is left nil.
func UnmarshalMemory(id core.ID, data []byte) (*core.MemoryRecord, error) {
	d := &decoder{bs: data}
	record := &core.MemoryRecord{ID: id}
	record.Content = decode[string](d, ord.String)
	record.Role = d.role()
	record.Source = decode[string](d, ord.String)
	record.Timestamp = d.micros()
	record.EmbedderName = decode[string](d, ord.String)
	if err := d.finish(); err != nil {
		return nil, err
	}
	return record, nil
}

// MarshalTurn serializes a ConversationTurn as role, timestamp, content.
func MarshalTurn(turn *core.ConversationTurn) []byte {
	ts := turn.Timestamp.UnixMicro()
	role := int(turn.Role)
	buf := make([]byte, varint.Int.Size(role)+raw.Int64.Size(ts)+ord.String.Size(turn.Content))
	n := varint.Int.Marshal(role, buf)
	n += raw.Int64.Marshal(ts, buf[n:])
	ord.String.Marshal(turn.Content, buf[n:])
	return buf
}

// UnmarshalTurn deserializes a ConversationTurn.
func UnmarshalTurn(id core.ID, data []byte) (*core.ConversationTurn, error) {
	d := &decoder{bs: data}
	turn := &core.ConversationTurn{ID: id}
	turn.Role = d.role()
	turn.Timestamp = d.micros()
	turn.Content = decode[string](d, ord.String)
	if err := d.finish(); err != nil {
		return nil, err
	}
	return turn, nil
}

// MarshalEmbedderInfo serializes the recorded embedder identity.
func MarshalEmbedderInfo(info EmbedderInfo) []byte {
	ts := info.RecordedAt.UnixMicro()
	buf := make([]byte, ord.String.Size(info.Name)+varint.Int.Size(info.Dimensions)+raw.Int64.Size(ts))
	n := ord.String.Marshal(info.Name, buf)
	n += varint.Int.Marshal(info.Dimensions, buf[n:])
	raw.Int64.Marshal(ts, buf[n:])
	return buf
}

// UnmarshalEmbedderInfo deserializes a value written by MarshalEmbedderInfo.
func UnmarshalEmbedderInfo(data []byte) (EmbedderInfo, error) {
	d := &decoder{bs: data}
	var info EmbedderInfo
	info.Name = decode[string](d, ord.String)
	info.Dimensions = decode[int](d, varint.Int)
	info.RecordedAt = d.micros()
	if err := d.finish(); err != nil {
		return EmbedderInfo{}, err
	}
	return info, nil
}

// EncodeVector packs a vector as little-endian float32 values.
func EncodeVector(vec []float32) []byte {
	buf := make([]byte, 4*len(vec))
	for i, v := range vec {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	return buf
}

// DecodeVector unpacks a vector written by EncodeVector.
func DecodeVector(data []byte) ([]float32, error) {
	if len(data)%4 != 0 {
		return nil, fmt.Errorf("%w: vector has %d bytes", ErrTruncatedData, len(data))
	}
	vec := make([]float32, len(data)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return vec, nil
}

// NextTimestamp returns now truncated to microseconds, never earlier than last.
// Stores call it under their writer lock to keep timestamps non-decreasing.
func NextTimestamp(last time.Time) time.Time {
	now := time.Now().UTC().Truncate(time.Microsecond)
	if now.Before(last) {
		return last
	}
	return now
}
