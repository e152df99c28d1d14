// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package msgq

import (
	"code.hybscloud.com/atomix"
	"code.hybscloud.com/msgq/mpool"
)

// DefaultCapacity is the queue depth used when none is configured.
const DefaultCapacity = 1000

// Options configures queue creation.
type Options struct {
	capacity int

	// Pool parameters (see mpool.SelectMode)
	poolCap   int
	blockSize int
	external  []byte
	extMode   bool // External was selected, even with a nil buf
	mapped    bool

	copier    Copier
	comparer  Comparer
	destroyer Destroyer
	strict    bool
}

// Builder creates queues with fluent configuration.
//
// Example:
//
//	// 64 pre-allocated 256-byte message slots, no heap churn on Send
//	q, err := msgq.New(64).Fixed(64, 256).Build()
//
//	// Unbounded pool of 1 KiB blocks behind a 1000-deep queue
//	q, err := msgq.New(1000).Dynamic(1024).Build()
//
//	// Caller-owned backing memory
//	q, err := msgq.New(16).External(buf, 128).Build()
type Builder struct {
	opts Options
}

// New creates a queue builder with the given capacity (maximum number of
// queued messages). The pool defaults to pass-through.
//
// Panics if capacity < 1.
func New(capacity int) *Builder {
	if capacity < 1 {
		panic("msgq: capacity must be >= 1")
	}
	return &Builder{opts: Options{
		capacity: capacity,
		copier:   RawCopy,
		comparer: PrefixMatch,
	}}
}

// Pool selects the pool mode from (blocks, blockSize) as [mpool.Pool.Init]
// does. Panics on negative parameters.
func (b *Builder) Pool(blocks, blockSize int) *Builder {
	if blocks < 0 || blockSize < 0 {
		panic("msgq: pool parameters must be >= 0")
	}
	b.opts.poolCap, b.opts.blockSize, b.opts.external = blocks, blockSize, nil
	b.opts.extMode = false
	return b
}

// PassThrough backs every message with its own heap allocation.
func (b *Builder) PassThrough() *Builder {
	return b.Pool(0, 0)
}

// Dynamic backs messages with blockSize blocks allocated on demand and kept
// for reuse. Panics if blockSize < 1.
func (b *Builder) Dynamic(blockSize int) *Builder {
	if blockSize < 1 {
		panic("msgq: block size must be >= 1")
	}
	return b.Pool(0, blockSize)
}

// Fixed pre-allocates blocks message slots of blockSize bytes.
// Panics if blocks < 1 or blockSize < 1.
func (b *Builder) Fixed(blocks, blockSize int) *Builder {
	if blocks < 1 || blockSize < 1 {
		panic("msgq: fixed pool requires blocks >= 1 and block size >= 1")
	}
	return b.Pool(blocks, blockSize)
}

// External carves buf into blockSize message slots. The caller keeps
// ownership of buf and must not touch it while the queue is open.
func (b *Builder) External(buf []byte, blockSize int) *Builder {
	b.opts.poolCap, b.opts.blockSize, b.opts.external = 0, blockSize, buf
	b.opts.extMode = true
	return b
}

// MappedRegion backs a Fixed pool with memory mapped outside the Go heap
// where supported.
func (b *Builder) MappedRegion() *Builder {
	b.opts.mapped = true
	return b
}

// Copier installs the payload copy strategy. Default: [RawCopy].
func (b *Builder) Copier(c Copier) *Builder {
	if c == nil {
		c = RawCopy
	}
	b.opts.copier = c
	return b
}

// Comparer installs the Find strategy. Default: [PrefixMatch].
func (b *Builder) Comparer(c Comparer) *Builder {
	if c == nil {
		c = PrefixMatch
	}
	b.opts.comparer = c
	return b
}

// Destroyer installs a callback for payloads leaving the queue.
func (b *Builder) Destroyer(d Destroyer) *Builder {
	b.opts.destroyer = d
	return b
}

// StrictReceive makes Receive fail with io.ErrShortBuffer, leaving the
// message queued, instead of truncating it into a smaller buffer.
func (b *Builder) StrictReceive() *Builder {
	b.opts.strict = true
	return b
}

// Build creates the queue and its pool.
//
// Returns ErrOutOfMemory if a Fixed region cannot be allocated, or
// mpool.ErrInvalidConfig if an External buffer is nil or holds no block.
func (b *Builder) Build() (*Queue, error) {
	q := newQueue(b.opts)
	opts := []mpool.Option{mpool.WithLocker(&q.mu)}
	if b.opts.mapped {
		opts = append(opts, mpool.WithMappedRegion())
	}

	var err error
	if b.opts.extMode {
		q.pool, err = mpool.New(0, 0, opts...)
		if err == nil {
			err = q.pool.SupplyExternal(b.opts.external, b.opts.blockSize)
		}
	} else {
		q.pool, err = mpool.New(b.opts.poolCap, b.opts.blockSize, opts...)
	}
	if err != nil {
		return nil, err
	}
	return q, nil
}

// NewQueue creates a queue of the given capacity with a pass-through pool.
// Panics if capacity < 1.
func NewQueue(capacity int) *Queue {
	q, err := New(capacity).Build()
	if err != nil {
		panic("msgq: " + err.Error())
	}
	return q
}

// queueSeq orders queue ids for Concat's lock acquisition.
var queueSeq atomix.Uint64

func newQueue(o Options) *Queue {
	return &Queue{
		id:        queueSeq.Add(1),
		capacity:  o.capacity,
		copier:    o.copier,
		comparer:  o.comparer,
		destroyer: o.destroyer,
		strict:    o.strict,
	}
}
