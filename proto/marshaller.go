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
	"github.com/gridkv/gridkv/util"
)

// Marshaller converts filter/converter constructor parameters between
// their wire form and in-process values. Raw parameters bypass it.
type Marshaller interface {
	MarshalParam(v interface{}) ([]byte, error)
	UnmarshalParam(b []byte) (interface{}, error)
}

const (
	paramFieldString = 1
	paramFieldInt    = 2
	paramFieldBytes  = 3
)

// WireMarshaller encodes parameters as a single tagged protobuf field,
// the tag number carrying the type. Strings, signed integers and raw
// byte slices are supported.
type WireMarshaller struct{}

func (WireMarshaller) MarshalParam(v interface{}) ([]byte, error) {
	var b []byte
	switch v := v.(type) {
	case string:
		b = protowire.AppendTag(b, paramFieldString, protowire.BytesType)
		b = protowire.AppendBytes(b, util.StringsToBytes(v))
	case int64:
		b = protowire.AppendTag(b, paramFieldInt, protowire.VarintType)
		b = protowire.AppendVarint(b, protowire.EncodeZigZag(v))
	case int:
		return WireMarshaller{}.MarshalParam(int64(v))
	case []byte:
		b = protowire.AppendTag(b, paramFieldBytes, protowire.BytesType)
		b = protowire.AppendBytes(b, v)
	default:
		return nil, apierrors.ErrUnsupportedParam
	}
	return b, nil
}

func (WireMarshaller) UnmarshalParam(b []byte) (interface{}, error) {
	num, typ, n := protowire.ConsumeTag(b)
	if n < 0 {
		return nil, apierrors.ErrCorruptedData
	}
	b = b[n:]
	switch {
	case num == paramFieldString && typ == protowire.BytesType:
		v, n := protowire.ConsumeBytes(b)
		if n < 0 {
			return nil, apierrors.ErrCorruptedData
		}
		return string(v), nil
	case num == paramFieldInt && typ == protowire.VarintType:
		v, n := protowire.ConsumeVarint(b)
		if n < 0 {
			return nil, apierrors.ErrCorruptedData
		}
		return protowire.DecodeZigZag(v), nil
	case num == paramFieldBytes && typ == protowire.BytesType:
		v, n := protowire.ConsumeBytes(b)
		if n < 0 {
			return nil, apierrors.ErrCorruptedData
		}
		return append([]byte(nil), v...), nil
	default:
		return nil, apierrors.ErrCorruptedData
	}
}
