// Copyright 2023 The GridKV Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or
// implied. See the License for the specific language governing
// permissions and limitations under the License.

package proto

import (
	"google.golang.org/protobuf/encoding/protowire"

	apierrors "github.com/gridkv/gridkv/errors"
)

// Entry is one key/value pair of a cache, plus the expirable metadata the
// grid keeps per entry. Created and LastUsed are unix milliseconds;
// Lifespan and MaxIdle are seconds, negative meaning immortal.
type Entry struct {
	Key      []byte
	Value    []byte
	Created  int64
	LastUsed int64
	Lifespan int32
	MaxIdle  int32
}

const (
	entryFieldKey      = 1
	entryFieldValue    = 2
	entryFieldCreated  = 3
	entryFieldLastUsed = 4
	entryFieldLifespan = 5
	entryFieldMaxIdle  = 6
)

// Marshal encodes the entry in protobuf wire format.
func (e *Entry) Marshal() []byte {
	return e.MarshalTo(make([]byte, 0, e.SizeHint()))
}

// SizeHint over-estimates the encoded size, for buffer pooling.
func (e *Entry) SizeHint() int {
	return len(e.Key) + len(e.Value) + 48
}

// MarshalTo appends the encoded entry to b and returns the result.
func (e *Entry) MarshalTo(b []byte) []byte {
	b = protowire.AppendTag(b, entryFieldKey, protowire.BytesType)
	b = protowire.AppendBytes(b, e.Key)
	if len(e.Value) > 0 {
		b = protowire.AppendTag(b, entryFieldValue, protowire.BytesType)
		b = protowire.AppendBytes(b, e.Value)
	}
	if e.Created != 0 {
		b = protowire.AppendTag(b, entryFieldCreated, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(e.Created))
	}
	if e.LastUsed != 0 {
		b = protowire.AppendTag(b, entryFieldLastUsed, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(e.LastUsed))
	}
	if e.Lifespan != 0 {
		b = protowire.AppendTag(b, entryFieldLifespan, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(uint32(e.Lifespan)))
	}
	if e.MaxIdle != 0 {
		b = protowire.AppendTag(b, entryFieldMaxIdle, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(uint32(e.MaxIdle)))
	}
	return b
}

// Unmarshal decodes an entry from protobuf wire format. Any malformed
// input yields ErrCorruptedData, never a partial entry.
func (e *Entry) Unmarshal(b []byte) error {
	entry := Entry{}
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return apierrors.ErrCorruptedData
		}
		b = b[n:]
		switch typ {
		case protowire.BytesType:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return apierrors.ErrCorruptedData
			}
			b = b[n:]
			switch num {
			case entryFieldKey:
				entry.Key = append([]byte(nil), v...)
			case entryFieldValue:
				entry.Value = append([]byte(nil), v...)
			}
		case protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return apierrors.ErrCorruptedData
			}
			b = b[n:]
			switch num {
			case entryFieldCreated:
				entry.Created = int64(v)
			case entryFieldLastUsed:
				entry.LastUsed = int64(v)
			case entryFieldLifespan:
				entry.Lifespan = int32(v)
			case entryFieldMaxIdle:
				entry.MaxIdle = int32(v)
			}
		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return apierrors.ErrCorruptedData
			}
			b = b[n:]
		}
	}
	if entry.Key == nil {
		return apierrors.ErrCorruptedData
	}
	*e = entry
	return nil
}

// Clone returns a shallow copy sharing key/value byte slices.
func (e *Entry) Clone() *Entry {
	cloned := *e
	return &cloned
}
