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
	"os"
	"strconv"
	"time"

	rdb "github.com/tecbot/gorocksdb"

	"github.com/gridkv/gridkv/proto"
	"github.com/gridkv/gridkv/util"
)

type RocksConfig struct {
	Path            string `json:"path"`
	CreateIfMissing bool   `json:"create_if_missing"`
	WriteBufferSize int    `json:"write_buffer_size"`
	Sync            bool   `json:"sync"`
}

// RocksStore persists entries in a single rocksdb instance, the value
// holding the wire-encoded entry. Scans ride a rocksdb iterator, so the
// iteration layer sees a consistent ordered pass per scan.
type RocksStore struct {
	path     string
	db       *rdb.DB
	opt      *rdb.Options
	readOpt  *rdb.ReadOptions
	writeOpt *rdb.WriteOptions
}

func OpenRocksStore(ctx context.Context, cfg *RocksConfig) (*RocksStore, error) {
	if cfg.CreateIfMissing {
		if err := os.MkdirAll(cfg.Path, 0o755); err != nil {
			return nil, err
		}
	}

	opt := rdb.NewDefaultOptions()
	opt.SetCreateIfMissing(cfg.CreateIfMissing)
	if cfg.WriteBufferSize > 0 {
		opt.SetWriteBufferSize(cfg.WriteBufferSize)
	}

	db, err := rdb.OpenDb(opt, cfg.Path)
	if err != nil {
		opt.Destroy()
		return nil, err
	}

	wo := rdb.NewDefaultWriteOptions()
	wo.SetSync(cfg.Sync)
	ro := rdb.NewDefaultReadOptions()

	return &RocksStore{
		path:     cfg.Path,
		db:       db,
		opt:      opt,
		readOpt:  ro,
		writeOpt: wo,
	}, nil
}

func (s *RocksStore) Write(ctx context.Context, entry *proto.Entry) error {
	buf := util.GetBuffer(entry.SizeHint())
	defer util.PutBuffer(buf)
	return s.db.Put(s.writeOpt, entry.Key, entry.MarshalTo(buf[:0]))
}

func (s *RocksStore) Load(ctx context.Context, key []byte) (*proto.Entry, error) {
	v, err := s.db.Get(s.readOpt, key)
	if err != nil {
		return nil, err
	}
	defer v.Free()
	if !v.Exists() {
		return nil, nil
	}
	entry := &proto.Entry{}
	if err = entry.Unmarshal(v.Data()); err != nil {
		return nil, err
	}
	return entry, nil
}

func (s *RocksStore) Contains(ctx context.Context, key []byte) (bool, error) {
	v, err := s.db.Get(s.readOpt, key)
	if err != nil {
		return false, err
	}
	defer v.Free()
	return v.Exists(), nil
}

func (s *RocksStore) Delete(ctx context.Context, key []byte) (bool, error) {
	present, err := s.Contains(ctx, key)
	if err != nil || !present {
		return false, err
	}
	if err = s.db.Delete(s.writeOpt, key); err != nil {
		return false, err
	}
	return true, nil
}

func (s *RocksStore) Purge(ctx context.Context, deadline time.Time) error {
	batch := rdb.NewWriteBatch()
	defer batch.Destroy()

	err := s.Scan(ctx, ScanOptions{FetchMetadata: true}, func(entry *proto.Entry) bool {
		if expired(entry, deadline) {
			batch.Delete(entry.Key)
		}
		return true
	})
	if err != nil {
		return err
	}
	if batch.Count() == 0 {
		return nil
	}
	return s.db.Write(s.writeOpt, batch)
}

func (s *RocksStore) Scan(ctx context.Context, opts ScanOptions, fn func(entry *proto.Entry) bool) error {
	it := s.db.NewIterator(s.readOpt)
	defer it.Close()

	for it.SeekToFirst(); it.Valid(); it.Next() {
		if err := ctx.Err(); err != nil {
			return err
		}
		key := it.Key()
		value := it.Value()
		entry := &proto.Entry{}
		err := entry.Unmarshal(value.Data())
		if err == nil {
			produced := &proto.Entry{Key: append([]byte(nil), key.Data()...)}
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
				key.Free()
				value.Free()
				return nil
			}
		}
		key.Free()
		value.Free()
		if err != nil {
			return err
		}
	}
	return it.Err()
}

func (s *RocksStore) Size(ctx context.Context) (int, error) {
	n, err := strconv.Atoi(s.db.GetProperty("rocksdb.estimate-num-keys"))
	if err != nil {
		return 0, err
	}
	return n, nil
}

func (s *RocksStore) NewBatch() Batch {
	return &rocksBatch{store: s, batch: rdb.NewWriteBatch()}
}

func (s *RocksStore) Close() {
	s.writeOpt.Destroy()
	s.readOpt.Destroy()
	s.opt.Destroy()
	s.db.Close()
}

type rocksBatch struct {
	store *RocksStore
	batch *rdb.WriteBatch
}

func (b *rocksBatch) Put(entry *proto.Entry) {
	b.batch.Put(entry.Key, entry.Marshal())
}

func (b *rocksBatch) Delete(key []byte) {
	b.batch.Delete(key)
}

func (b *rocksBatch) Commit(ctx context.Context) error {
	return b.store.db.Write(b.store.writeOpt, b.batch)
}

func (b *rocksBatch) Close() {
	b.batch.Destroy()
}
