package stream

import (
	"context"

	apierrors "github.com/gridkv/gridkv/errors"
	"github.com/gridkv/gridkv/proto"
	"github.com/gridkv/gridkv/server/store"
)

// removableIterator adds element removal on top of a sequence whose
// underlying type cannot remove in place: Remove deletes the last
// returned key from the owning store.
type removableIterator struct {
	Iterator
	store store.Store
	last  *proto.Entry
}

func (r *removableIterator) Next(ctx context.Context) (*proto.Entry, error) {
	entry, err := r.Iterator.Next(ctx)
	if err == nil && entry != nil {
		r.last = entry
	}
	return entry, err
}

func (r *removableIterator) Remove(ctx context.Context) error {
	if r.last == nil {
		return apierrors.ErrKeyDoesNotExist
	}
	removed, err := r.store.Delete(ctx, r.last.Key)
	if err != nil {
		return err
	}
	if !removed {
		return apierrors.ErrKeyDoesNotExist
	}
	r.last = nil
	return nil
}
