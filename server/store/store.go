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

package store

import (
	"context"
	"time"

	"github.com/gridkv/gridkv/proto"
)

type (
	// ScanOptions tunes a full scan. Keys are always produced; values
	// and expirable metadata only on request, letting key-only scans
	// skip value materialization.
	ScanOptions struct {
		FetchValues   bool
		FetchMetadata bool
	}

	// Batch buffers writes for one prepare/commit round.
	Batch interface {
		Put(entry *proto.Entry)
		Delete(key []byte)
		Commit(ctx context.Context) error
		Close()
	}

	// Store is the persistence collaborator of a local data view. The
	// iteration layer needs only Scan; the rest is the usual entry
	// lifecycle. Scan stops early when the callback returns false.
	Store interface {
		Write(ctx context.Context, entry *proto.Entry) error
		Load(ctx context.Context, key []byte) (*proto.Entry, error)
		Contains(ctx context.Context, key []byte) (bool, error)
		Delete(ctx context.Context, key []byte) (bool, error)
		Purge(ctx context.Context, deadline time.Time) error
		Scan(ctx context.Context, opts ScanOptions, fn func(entry *proto.Entry) bool) error
		Size(ctx context.Context) (int, error)
		NewBatch() Batch
		Close()
	}
)

// expired reports whether the entry's lifespan had elapsed at deadline.
func expired(entry *proto.Entry, deadline time.Time) bool {
	if entry.Lifespan <= 0 {
		return false
	}
	expiry := entry.Created + int64(entry.Lifespan)*1000
	return expiry <= deadline.UnixNano()/int64(time.Millisecond)
}
