package nodecodec

import (
	"io"

	"github.com/go-logr/logr"
)

// Lenient wraps c so that a corrupt or unreadable stream is logged and then
// reported as a clean end of stream. Readers that treat a damaged node as a
// truncated one use this instead of handling ErrCorrupt.
func Lenient[K, V any](c Codec[K, V], log logr.Logger) Codec[K, V] {
	return &lenientCodec[K, V]{Codec: c, log: log}
}

type lenientCodec[K, V any] struct {
	Codec[K, V]
	log logr.Logger
}

func (l *lenientCodec[K, V]) DecodeLeafEntry(r Reader, prevKey *K, prevValue *V) (Leaf[K, V], error) {
	e, err := l.Codec.DecodeLeafEntry(r, prevKey, prevValue)
	if err != nil && err != io.EOF {
		l.log.Error(err, "leaf entry unreadable, treating as end of stream")
		return Leaf[K, V]{}, io.EOF
	}
	return e, err
}

func (l *lenientCodec[K, V]) DecodeInnerEntry(r Reader, prevKey *K) (Inner[K], error) {
	e, err := l.Codec.DecodeInnerEntry(r, prevKey)
	if err != nil && err != io.EOF {
		l.log.Error(err, "inner entry unreadable, treating as end of stream")
		return Inner[K]{}, io.EOF
	}
	return e, err
}
