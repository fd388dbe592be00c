// Package iteration is the server-side cursor registry: it opens
// resumable cursors over a cache's entry sequence, serves bounded
// batches, and reports segment-completion progress batch by batch so a
// remote caller can resume correctly across topology changes.
package iteration

import (
	"context"
	"sync"

	"github.com/cubefs/cubefs/blobstore/common/trace"
	"github.com/cubefs/cubefs/blobstore/util/taskpool"
	"github.com/google/uuid"

	"github.com/gridkv/gridkv/common/hashing"
	"github.com/gridkv/gridkv/common/sets"
	apierrors "github.com/gridkv/gridkv/errors"
	"github.com/gridkv/gridkv/metrics"
	"github.com/gridkv/gridkv/proto"
	"github.com/gridkv/gridkv/server/stream"
	"github.com/gridkv/gridkv/util/limiter"
)

const defaultTaskPoolNum = 8

type (
	// SupplierResolver maps a cache name to the stream supplier and hash
	// snapshot of its local data view.
	SupplierResolver interface {
		ResolveSupplier(ctx context.Context, cacheName string, fetchMetadata bool) (stream.Supplier, hashing.ConsistentHash, error)
	}

	StartRequest struct {
		CacheName     string
		Segments      *sets.SegmentSet
		FilterFactory string
		FilterParams  [][]byte
		ParamsRaw     bool
		BatchSize     int
		Metadata      bool
	}

	IterationResult struct {
		State     proto.IterationState
		Entries   []*proto.Entry
		Completed *sets.SegmentSet
		Metadata  bool
	}

	NextResult struct {
		Result *IterationResult
		Err    error
	}

	Config struct {
		TaskPoolNum int `json:"task_pool_num"`
		MaxCursors  int `json:"max_cursors"`
	}

	// Registry owns the live cursors and the named filter/converter
	// factory table of one server process.
	Registry struct {
		resolver   SupplierResolver
		marshaller proto.Marshaller
		cursors    sync.Map

		factories     map[string]FilterConverterFactory
		factoriesLock sync.RWMutex

		cursorLimit limiter.CountLimit
		taskPool    taskpool.TaskPool
	}
)

func NewRegistry(cfg *Config, resolver SupplierResolver, marshaller proto.Marshaller) *Registry {
	if cfg.TaskPoolNum <= 0 {
		cfg.TaskPoolNum = defaultTaskPoolNum
	}
	r := &Registry{
		resolver:   resolver,
		marshaller: marshaller,
		factories:  make(map[string]FilterConverterFactory),
		taskPool:   taskpool.New(cfg.TaskPoolNum, cfg.TaskPoolNum),
	}
	if cfg.MaxCursors > 0 {
		r.cursorLimit = limiter.NewCountLimit(cfg.MaxCursors)
	}
	return r
}

func (r *Registry) AddFactory(name string, factory FilterConverterFactory) {
	r.factoriesLock.Lock()
	r.factories[name] = factory
	r.factoriesLock.Unlock()
}

func (r *Registry) RemoveFactory(name string) {
	r.factoriesLock.Lock()
	delete(r.factories, name)
	r.factoriesLock.Unlock()
}

func (r *Registry) getFactory(name string) FilterConverterFactory {
	r.factoriesLock.RLock()
	defer r.factoriesLock.RUnlock()
	return r.factories[name]
}

// Start opens a cursor over the named cache. An unresolvable filter
// factory reference fails the call; it is never silently ignored.
func (r *Registry) Start(ctx context.Context, req *StartRequest) (string, error) {
	span := trace.SpanFromContextSafe(ctx)

	if r.cursorLimit != nil {
		if !r.cursorLimit.Acquire() {
			span.Warnf("iteration rejected, %d cursors already open", r.cursorLimit.Running())
			return "", apierrors.ErrTooManyIterations
		}
	}
	stored := false
	defer func() {
		if !stored && r.cursorLimit != nil {
			r.cursorLimit.Release()
		}
	}()

	supplier, hash, err := r.resolver.ResolveSupplier(ctx, req.CacheName, req.Metadata)
	if err != nil {
		return "", err
	}

	var converter KeyValueFilterConverter
	if req.FilterFactory != "" {
		factory := r.getFactory(req.FilterFactory)
		if factory == nil {
			span.Errorf("filter converter factory[%s] not registered", req.FilterFactory)
			return "", apierrors.ErrFilterFactoryNotFound
		}
		params, err := r.decodeParams(req)
		if err != nil {
			return "", err
		}
		if converter, err = factory.New(params); err != nil {
			return "", err
		}
	}

	numSegments := 0
	if hash != nil {
		numSegments = hash.NumSegments()
	}
	tracker := NewSegmentCompletionTracker(numSegments)

	it, err := supplier.BuildIterator(ctx, req.Segments, nil, tracker.SegmentCompleted)
	if err != nil {
		return "", err
	}

	batchSize := req.BatchSize
	if batchSize <= 0 {
		batchSize = 1
	}
	c := &cursor{
		id:        uuid.NewString(),
		it:        it,
		converter: converter,
		batchSize: batchSize,
		metadata:  req.Metadata,
		tracker:   tracker,
	}
	r.cursors.Store(c.id, c)
	stored = true
	metrics.OpenCursors.Inc()
	span.Debugf("started iteration[%s] over cache[%s] batch %d", c.id, req.CacheName, batchSize)
	return c.id, nil
}

// Next drains up to the cursor's batch size. An unknown cursor id yields
// the InvalidIteration state with an empty batch, not an error.
func (r *Registry) Next(ctx context.Context, cursorId string) (*IterationResult, error) {
	v, ok := r.cursors.Load(cursorId)
	if !ok {
		trace.SpanFromContextSafe(ctx).Warnf("next on unknown iteration[%s]", cursorId)
		return &IterationResult{State: proto.IterInvalid}, nil
	}
	result, err := v.(*cursor).next(ctx)
	if err == nil {
		metrics.IterationBatches.Inc()
	}
	return result, err
}

// NextAsync runs Next on the registry's worker pool. Cancellation while
// queued or draining surfaces as ErrIterationInterrupted.
func (r *Registry) NextAsync(ctx context.Context, cursorId string) <-chan NextResult {
	ch := make(chan NextResult, 1)
	r.taskPool.Run(func() {
		if err := ctx.Err(); err != nil {
			ch <- NextResult{Err: apierrors.ErrIterationInterrupted}
			return
		}
		result, err := r.Next(ctx, cursorId)
		ch <- NextResult{Result: result, Err: err}
	})
	return ch
}

// Close releases the cursor's sequence and removes it; the second call
// on one id reports false.
func (r *Registry) Close(ctx context.Context, cursorId string) bool {
	v, ok := r.cursors.LoadAndDelete(cursorId)
	if !ok {
		return false
	}
	v.(*cursor).close()
	if r.cursorLimit != nil {
		r.cursorLimit.Release()
	}
	metrics.OpenCursors.Dec()
	trace.SpanFromContextSafe(ctx).Debugf("closed iteration[%s]", cursorId)
	return true
}

// Shutdown closes every live cursor and stops the worker pool.
func (r *Registry) Shutdown(ctx context.Context) {
	r.cursors.Range(func(key, value interface{}) bool {
		r.Close(ctx, key.(string))
		return true
	})
	r.taskPool.Close()
}

func (r *Registry) decodeParams(req *StartRequest) ([]interface{}, error) {
	params := make([]interface{}, 0, len(req.FilterParams))
	for _, raw := range req.FilterParams {
		if req.ParamsRaw {
			params = append(params, raw)
			continue
		}
		v, err := r.marshaller.UnmarshalParam(raw)
		if err != nil {
			return nil, err
		}
		params = append(params, v)
	}
	return params, nil
}

// cursor is driven by one logical caller at a time; the mutex only keeps
// racing next/close calls from corrupting state, result ordering between
// such races is undefined.
type cursor struct {
	id        string
	mu        sync.Mutex
	it        stream.Iterator
	converter KeyValueFilterConverter
	batchSize int
	metadata  bool
	tracker   *SegmentCompletionTracker
	exhausted bool
}

func (c *cursor) next(ctx context.Context) (*IterationResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entries := make([]*proto.Entry, 0, c.batchSize)
	for !c.exhausted && len(entries) < c.batchSize {
		entry, err := c.it.Next(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil, apierrors.ErrIterationInterrupted
			}
			return nil, err
		}
		if entry == nil {
			c.exhausted = true
			break
		}
		if c.converter != nil {
			converted, ok := c.converter.Accept(entry.Key, entry.Value, entry)
			if !ok {
				continue
			}
			if converted != nil {
				entry = entry.Clone()
				entry.Value = converted
			}
		}
		entries = append(entries, entry)
	}

	result := &IterationResult{
		State:    proto.IterSuccess,
		Entries:  entries,
		Metadata: c.metadata,
	}
	if c.exhausted {
		// terminal: report the full cumulative set, even when empty
		result.Completed = c.tracker.Cumulative()
	} else {
		result.Completed = c.tracker.Delta()
	}
	return result, nil
}

func (c *cursor) close() {
	c.mu.Lock()
	c.it.Close()
	c.exhausted = true
	c.mu.Unlock()
}
