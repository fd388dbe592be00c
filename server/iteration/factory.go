package iteration

import (
	"github.com/gridkv/gridkv/proto"
)

// KeyValueFilterConverter filters and transforms one entry at a time.
// Returning ok=false drops the entry; a non-nil converted value replaces
// the entry's value in the batch.
type KeyValueFilterConverter interface {
	Accept(key, value []byte, metadata *proto.Entry) (converted []byte, ok bool)
}

// FilterConverterFactory builds a filter/converter from the constructor
// parameters sent with an iteration start request. Factories register
// process-wide under a name; a cursor resolves its factory once, at
// start, so later registry changes never affect a live cursor.
type FilterConverterFactory interface {
	New(params []interface{}) (KeyValueFilterConverter, error)
}

// FilterConverterFunc adapts a plain function to KeyValueFilterConverter.
type FilterConverterFunc func(key, value []byte, metadata *proto.Entry) ([]byte, bool)

func (f FilterConverterFunc) Accept(key, value []byte, metadata *proto.Entry) ([]byte, bool) {
	return f(key, value, metadata)
}
