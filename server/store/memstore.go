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
	"bytes"
	"context"
	"sync"
	"time"

	"github.com/cubefs/cubefs/util/btree"

	apierrors "github.com/gridkv/gridkv/errors"
	"github.com/gridkv/gridkv/proto"
)

type entryItem struct {
	entry *proto.Entry
}

func (e *entryItem) Less(than btree.Item) bool {
	return bytes.Compare(e.entry.Key, than.(*entryItem).entry.Key) < 0
}

func (e *entryItem) Copy() btree.Item {
	return &entryItem{entry: e.entry}
}

// MemStore is a btree-ordered in-memory store, the default local data
// view and the store used by tests. Scans walk keys in ascending order.
type MemStore struct {
	tree   btree.BTree
	closed bool
	lock   sync.RWMutex
}

func NewMemStore() *MemStore {
	return &MemStore{}
}

func (m *MemStore) Write(ctx context.Context, entry *proto.Entry) error {
	m.lock.Lock()
	defer m.lock.Unlock()
	if m.closed {
		return apierrors.ErrStoreClosed
	}
	m.tree.ReplaceOrInsert(&entryItem{entry: entry.Clone()})
	return nil
}

func (m *MemStore) Load(ctx context.Context, key []byte) (*proto.Entry, error) {
	m.lock.RLock()
	defer m.lock.RUnlock()
	if m.closed {
		return nil, apierrors.ErrStoreClosed
	}
	found := m.tree.Get(&entryItem{entry: &proto.Entry{Key: key}})
	if found == nil {
		return nil, nil
	}
	return found.(*entryItem).entry.Clone(), nil
}

func (m *MemStore) Contains(ctx context.Context, key []byte) (bool, error) {
	entry, err := m.Load(ctx, key)
	return entry != nil, err
}

func (m *MemStore) Delete(ctx context.Context, key []byte) (bool, error) {
	m.lock.Lock()
	defer m.lock.Unlock()
	if m.closed {
		return false, apierrors.ErrStoreClosed
	}
	removed := m.tree.Delete(&entryItem{entry: &proto.Entry{Key: key}})
	return removed != nil, nil
}

func (m *MemStore) Purge(ctx context.Context, deadline time.Time) error {
	m.lock.Lock()
	defer m.lock.Unlock()
	if m.closed {
		return apierrors.ErrStoreClosed
	}
	var stale []*entryItem
	m.tree.Ascend(func(i btree.Item) bool {
		item := i.(*entryItem)
		if expired(item.entry, deadline) {
			stale = append(stale, item)
		}
		return true
	})
	for _, item := range stale {
		m.tree.Delete(item)
	}
	return nil
}

func (m *MemStore) Scan(ctx context.Context, opts ScanOptions, fn func(entry *proto.Entry) bool) error {
	m.lock.RLock()
	if m.closed {
		m.lock.RUnlock()
		return apierrors.ErrStoreClosed
	}
	// snapshot under the read lock so the callback can write back
	entries := make([]*proto.Entry, 0, m.tree.Len())
	m.tree.Ascend(func(i btree.Item) bool {
		entries = append(entries, i.(*entryItem).entry)
		return true
	})
	m.lock.RUnlock()

	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return err
		}
		produced := &proto.Entry{Key: entry.Key}
		if opts.FetchValues {
			produced.Value = entry.Value
		}
		if opts.FetchMetadata {
			produced.Created = entry.Created
			produced.LastUsed = entry.LastUsed
			produced.Lifespan = entry.Lifespan
			produced.MaxIdle = entry.MaxIdle
		}
		if !fn(produced) {
			return nil
		}
	}
	return nil
}

func (m *MemStore) Size(ctx context.Context) (int, error) {
	m.lock.RLock()
	defer m.lock.RUnlock()
	if m.closed {
		return 0, apierrors.ErrStoreClosed
	}
	return m.tree.Len(), nil
}

func (m *MemStore) NewBatch() Batch {
	return &memBatch{store: m}
}

func (m *MemStore) Close() {
	m.lock.Lock()
	m.closed = true
	m.lock.Unlock()
}

type memBatch struct {
	store   *MemStore
	puts    []*proto.Entry
	deletes [][]byte
}

func (b *memBatch) Put(entry *proto.Entry) {
	b.puts = append(b.puts, entry.Clone())
}

func (b *memBatch) Delete(key []byte) {
	b.deletes = append(b.deletes, key)
}

func (b *memBatch) Commit(ctx context.Context) error {
	b.store.lock.Lock()
	defer b.store.lock.Unlock()
	if b.store.closed {
		return apierrors.ErrStoreClosed
	}
	for _, entry := range b.puts {
		b.store.tree.ReplaceOrInsert(&entryItem{entry: entry})
	}
	for _, key := range b.deletes {
		b.store.tree.Delete(&entryItem{entry: &proto.Entry{Key: key}})
	}
	return nil
}

func (b *memBatch) Close() {
	b.puts = nil
	b.deletes = nil
}
