package server

import (
	"context"
	"sync"

	"github.com/cubefs/cubefs/blobstore/common/trace"

	"github.com/gridkv/gridkv/common/hashing"
	"github.com/gridkv/gridkv/common/sets"
	apierrors "github.com/gridkv/gridkv/errors"
	"github.com/gridkv/gridkv/proto"
	"github.com/gridkv/gridkv/server/iteration"
	"github.com/gridkv/gridkv/server/store"
	"github.com/gridkv/gridkv/server/stream"
)

type Config struct {
	Iteration iteration.Config `json:"iteration"`
}

// view is one locally-hosted cache: its backing store, the hash snapshot
// assigning keys to segments, and optionally the subset of segments this
// node owns.
type view struct {
	name          string
	store         store.Store
	hash          hashing.ConsistentHash
	ownedSegments *sets.SegmentSet
}

// Service hosts the local data views of one grid server and exposes the
// distributed iteration surface over them.
type Service struct {
	views     sync.Map
	iteration *iteration.Registry
}

func NewService(cfg *Config) *Service {
	s := &Service{}
	s.iteration = iteration.NewRegistry(&cfg.Iteration, s, proto.WireMarshaller{})
	return s
}

// RegisterView attaches a named local data view. ownedSegments, when not
// nil, pre-restricts every iteration of the view to this node's segments.
func (s *Service) RegisterView(name string, st store.Store, hash hashing.ConsistentHash, ownedSegments *sets.SegmentSet) {
	s.views.Store(name, &view{
		name:          name,
		store:         st,
		hash:          hash,
		ownedSegments: ownedSegments,
	})
}

func (s *Service) getView(name string) (*view, error) {
	v, ok := s.views.Load(name)
	if !ok {
		return nil, apierrors.ErrViewDoesNotExist
	}
	return v.(*view), nil
}

// ResolveSupplier implements iteration.SupplierResolver.
func (s *Service) ResolveSupplier(ctx context.Context, cacheName string, fetchMetadata bool) (stream.Supplier, hashing.ConsistentHash, error) {
	v, err := s.getView(cacheName)
	if err != nil {
		trace.SpanFromContextSafe(ctx).Errorf("resolve view[%s] failed: %s", cacheName, err)
		return nil, nil, err
	}
	return stream.NewEntrySupplier(v.store, v.hash, fetchMetadata), v.hash, nil
}

// StartIteration opens a cursor over one view, intersecting the request's
// segment filter with the view's owned segments when both are present.
func (s *Service) StartIteration(ctx context.Context, req *iteration.StartRequest) (string, error) {
	v, err := s.getView(req.CacheName)
	if err != nil {
		return "", err
	}
	if v.ownedSegments != nil {
		if req.Segments != nil {
			req.Segments = req.Segments.Intersect(v.ownedSegments)
		} else {
			req.Segments = v.ownedSegments.Clone()
		}
	}
	return s.iteration.Start(ctx, req)
}

func (s *Service) NextIteration(ctx context.Context, cursorId string) (*iteration.IterationResult, error) {
	return s.iteration.Next(ctx, cursorId)
}

func (s *Service) NextIterationAsync(ctx context.Context, cursorId string) <-chan iteration.NextResult {
	return s.iteration.NextAsync(ctx, cursorId)
}

func (s *Service) CloseIteration(ctx context.Context, cursorId string) bool {
	return s.iteration.Close(ctx, cursorId)
}

func (s *Service) AddFilterFactory(name string, factory iteration.FilterConverterFactory) {
	s.iteration.AddFactory(name, factory)
}

func (s *Service) RemoveFilterFactory(name string) {
	s.iteration.RemoveFactory(name)
}

func (s *Service) Close() {
	ctx := context.Background()
	s.iteration.Shutdown(ctx)
	s.views.Range(func(key, value interface{}) bool {
		value.(*view).store.Close()
		return true
	})
}
