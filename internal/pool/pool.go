// Package pool provides bucketed sync.Pool instances of bytes.Buffer for the
// encode and assemble paths. Buffers are organized by capacity class so that a
// trial encoding a large frame does not hand a huge buffer to a trial encoding
// a tiny one.
package pool

import (
	"bytes"
	"sync"
)

// Capacity classes for bucketed pools.
const (
	Size4K   = 4096
	Size64K  = 65536
	Size1M   = 1048576
	Size16M  = 16777216
	maxClass = 3
)

var sizes = [maxClass + 1]int{Size4K, Size64K, Size1M, Size16M}

var pools [maxClass + 1]sync.Pool

func init() {
	for i := range pools {
		sz := sizes[i]
		pools[i] = sync.Pool{
			New: func() any {
				return bytes.NewBuffer(make([]byte, 0, sz))
			},
		}
	}
}

// bucketIndex returns the pool index for a given capacity, or -1 if the
// capacity exceeds the largest class.
func bucketIndex(size int) int {
	switch {
	case size <= Size4K:
		return 0
	case size <= Size64K:
		return 1
	case size <= Size1M:
		return 2
	case size <= Size16M:
		return 3
	default:
		return -1
	}
}

// Get returns an empty buffer whose capacity is at least sizeHint when the
// hint fits a class. The caller must call Put when done, typically with defer.
func Get(sizeHint int) *bytes.Buffer {
	idx := bucketIndex(sizeHint)
	if idx < 0 {
		return bytes.NewBuffer(make([]byte, 0, sizeHint))
	}
	b := pools[idx].Get().(*bytes.Buffer)
	b.Reset()
	if b.Cap() < sizeHint {
		b.Grow(sizeHint)
	}
	return b
}

// Put returns a buffer to the pool matching its capacity. Buffers that grew
// beyond the largest class are dropped.
func Put(b *bytes.Buffer) {
	if b == nil {
		return
	}
	idx := bucketIndex(b.Cap())
	if idx < 0 {
		return
	}
	b.Reset()
	pools[idx].Put(b)
}

// Bytes returns a copy of the buffer contents that stays valid after the
// buffer is returned with Put.
func Bytes(b *bytes.Buffer) []byte {
	out := make([]byte, b.Len())
	copy(out, b.Bytes())
	return out
}
