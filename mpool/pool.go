// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package mpool provides a block allocator with selectable strategies.
//
// A [Pool] hands out [Block] handles whose payload regions are reused
// instead of being returned to the garbage collector. The strategy is
// chosen from two parameters, capacity (block count) and block size:
//
//	blockSize == 0                 → ModePassThrough (plain heap slices)
//	capacity == 0, blockSize > 0   → ModeDynamic (grow on demand, never shrink)
//	capacity > 0,  blockSize > 0   → ModeFixed (one region, hard ceiling)
//
// [Pool.SupplyExternal] switches to ModeExternal, carving a caller-owned
// buffer. [Pool.Reset] switches to ModeDisabled. Mode transitions are only
// permitted while no block is in use; otherwise they fail with
// [ErrPoolBusy] and leave the pool unchanged.
//
// # Example
//
//	p, err := mpool.New(64, 256)
//	if err != nil {
//	    return err
//	}
//	b, err := p.Allocate(len(msg))
//	if mpool.IsExhausted(err) {
//	    // backpressure
//	}
//	copy(b.Bytes(), msg)
//	_ = p.Release(b)
//
// # Thread Safety
//
// Every entry point runs under the pool's lock. By default the pool owns a
// reentrant [mux.Mutex]; [WithLocker] folds the pool's critical section into
// a lock the caller already holds around its own state.
package mpool

import (
	"errors"
	"fmt"
	"math"
	"sync"

	"code.hybscloud.com/atomix"
	"code.hybscloud.com/iox"
	"code.hybscloud.com/msgq/mux"
)

// Pool is a block allocator. The zero value is a disabled pool.
type Pool struct {
	own    mux.Mutex
	locker sync.Locker
	mapped bool

	mode      Mode
	blockSize int
	capacity  int
	epoch     uint64
	blocks    []*Block // arena, indexed by Block.index
	free      freeList
	region    region

	// Counters are written under the lock and read without it by Stats.
	modeWord atomix.Int64
	inUse    atomix.Int64
	total    atomix.Int64
	allocs   atomix.Uint64
	releases atomix.Uint64
	backing  atomix.Uint64
	failures atomix.Uint64
}

// Option configures a Pool.
type Option func(*Pool)

// WithLocker makes the pool guard its state with l instead of its own lock.
// Use it when every call into the pool is already made under l. If l is not
// reentrant, callers must not hold it while calling into the pool.
func WithLocker(l sync.Locker) Option {
	return func(p *Pool) {
		p.locker = l
	}
}

// WithMappedRegion backs fixed regions with anonymous memory mapped outside
// the Go heap, where the platform supports it. The region is unmapped on
// Reset or re-initialization.
func WithMappedRegion() Option {
	return func(p *Pool) {
		p.mapped = true
	}
}

// New creates a pool and initializes it with [Pool.Init].
func New(capacity, blockSize int, opts ...Option) (*Pool, error) {
	p := &Pool{}
	for _, opt := range opts {
		opt(p)
	}
	if err := p.Init(capacity, blockSize); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *Pool) lock() sync.Locker {
	if p.locker != nil {
		return p.locker
	}
	return &p.own
}

// Init selects the mode for (capacity, blockSize) and prepares the backing
// store. Fixed mode allocates capacity*blockSize bytes up front and returns
// ErrOutOfMemory if that fails, leaving the pool disabled.
//
// Returns ErrPoolBusy if blocks are in use, ErrInvalidConfig for negative
// parameters.
func (p *Pool) Init(capacity, blockSize int) error {
	if capacity < 0 || blockSize < 0 {
		return fmt.Errorf("%w: capacity=%d block_size=%d", ErrInvalidConfig, capacity, blockSize)
	}
	l := p.lock()
	l.Lock()
	defer l.Unlock()

	if err := p.teardown(); err != nil {
		return err
	}
	mode := SelectMode(capacity, blockSize)
	switch mode {
	case ModeDynamic:
		p.free = newGrowable()
	case ModeFixed:
		if capacity > math.MaxInt/blockSize {
			p.setMode(ModeDisabled)
			return fmt.Errorf("%w: %d blocks of %d bytes", ErrOutOfMemory, capacity, blockSize)
		}
		r, err := allocRegion(capacity*blockSize, p.mapped)
		if err != nil {
			p.setMode(ModeDisabled)
			return err
		}
		p.backing.Add(1)
		p.carve(r, capacity, blockSize)
	}
	p.blockSize = blockSize
	p.setMode(mode)
	return nil
}

// SupplyExternal switches the pool to ModeExternal, carving buf into as many
// blockSize blocks as fit. The pool never frees buf; the caller must keep it
// alive and untouched until the pool is reset or re-initialized.
//
// Returns ErrPoolBusy if blocks are in use, ErrInvalidConfig if buf holds
// no block.
func (p *Pool) SupplyExternal(buf []byte, blockSize int) error {
	if blockSize <= 0 || len(buf)/blockSize == 0 {
		return fmt.Errorf("%w: %d byte buffer, block_size=%d", ErrInvalidConfig, len(buf), blockSize)
	}
	l := p.lock()
	l.Lock()
	defer l.Unlock()

	if err := p.teardown(); err != nil {
		return err
	}
	p.carve(region{buf: buf}, len(buf)/blockSize, blockSize)
	p.blockSize = blockSize
	p.setMode(ModeExternal)
	return nil
}

// Reset disables the pool and releases the memory it owns. Caller-owned
// external buffers are left untouched. Returns ErrPoolBusy if blocks are in
// use.
func (p *Pool) Reset() error {
	l := p.lock()
	l.Lock()
	defer l.Unlock()

	if err := p.teardown(); err != nil {
		return err
	}
	p.setMode(ModeDisabled)
	return nil
}

// Allocate returns a block holding size bytes.
//
// Returns:
//   - ErrDisabled if the pool is disabled
//   - ErrOversizedRequest if size is negative or exceeds the block size
//   - ErrPoolExhausted if a fixed or external pool has no free block
//   - ErrOutOfMemory if a pass-through or dynamic allocation fails
func (p *Pool) Allocate(size int) (*Block, error) {
	l := p.lock()
	l.Lock()
	defer l.Unlock()

	b, err := p.allocate(size)
	if err != nil {
		p.failures.Add(1)
		return nil, err
	}
	b.used = true
	b.n = size
	p.inUse.Add(1)
	p.allocs.Add(1)
	return b, nil
}

func (p *Pool) allocate(size int) (*Block, error) {
	switch p.mode {
	case ModeDisabled:
		return nil, ErrDisabled
	case ModePassThrough:
		if size < 0 {
			return nil, fmt.Errorf("%w: %d", ErrOversizedRequest, size)
		}
		r, err := heapRegion(size)
		if err != nil {
			return nil, err
		}
		p.backing.Add(1)
		return &Block{pool: p, epoch: p.epoch, index: -1, buf: r.buf}, nil
	}

	if size < 0 || size > p.blockSize {
		return nil, fmt.Errorf("%w: %d > %d", ErrOversizedRequest, size, p.blockSize)
	}
	idx, ok := p.free.pop()
	if ok {
		return p.blocks[idx], nil
	}
	if p.mode != ModeDynamic {
		return nil, ErrPoolExhausted
	}
	return p.grow()
}

// grow appends one heap block to a dynamic pool's arena.
func (p *Pool) grow() (*Block, error) {
	r, err := heapRegion(p.blockSize)
	if err != nil {
		return nil, err
	}
	b := &Block{pool: p, epoch: p.epoch, index: len(p.blocks), buf: r.buf}
	p.blocks = append(p.blocks, b)
	p.backing.Add(1)
	p.total.Add(1)
	return b, nil
}

// Release returns b to the pool. Its payload must not be used afterwards.
//
// Returns ErrForeignBlock, without changing any state, if b is nil, already
// free, owned by another pool, or was allocated before the pool's last
// mode transition.
func (p *Pool) Release(b *Block) error {
	l := p.lock()
	l.Lock()
	defer l.Unlock()

	if b == nil || b.pool != p || b.epoch != p.epoch || !b.used {
		return ErrForeignBlock
	}
	b.used = false
	b.n = 0
	p.inUse.Add(-1)
	p.releases.Add(1)
	if b.index < 0 {
		b.buf = nil
		return nil
	}
	p.free.push(b.index)
	return nil
}

// carve splits r into n blocks of size bs and queues all of them as free.
func (p *Pool) carve(r region, n, bs int) {
	p.region = r
	p.capacity = n
	p.blocks = make([]*Block, n)
	ring := newRing(n)
	for i := range n {
		lo, hi := i*bs, (i+1)*bs
		p.blocks[i] = &Block{pool: p, epoch: p.epoch, index: i, buf: r.buf[lo:hi:hi]}
		ring.push(i)
	}
	p.free = ring
	p.total.Store(int64(n))
}

// teardown drops the current backing store and starts a new epoch.
// Caller holds the lock.
func (p *Pool) teardown() error {
	if p.inUse.Load() > 0 {
		return fmt.Errorf("%w: %d blocks", ErrPoolBusy, p.inUse.Load())
	}
	var err error
	if p.mode != ModeExternal {
		err = p.region.free()
	}
	p.region = region{}
	p.blocks = nil
	p.free = nil
	p.capacity = 0
	p.blockSize = 0
	p.epoch++
	p.total.Store(0)
	p.setMode(ModeDisabled)
	if err != nil {
		return fmt.Errorf("mpool: release region: %w", err)
	}
	return nil
}

func (p *Pool) setMode(m Mode) {
	p.mode = m
	p.modeWord.Store(int64(m))
}

// Mode returns the current allocation mode.
func (p *Pool) Mode() Mode {
	return Mode(p.modeWord.Load())
}

// BlockSize returns the payload capacity of a block, 0 in pass-through mode.
func (p *Pool) BlockSize() int {
	l := p.lock()
	l.Lock()
	defer l.Unlock()
	return p.blockSize
}

// Cap returns the block ceiling of a bounded pool, 0 otherwise.
func (p *Pool) Cap() int {
	l := p.lock()
	l.Lock()
	defer l.Unlock()
	return p.capacity
}

// InUse returns the number of allocated, unreleased blocks.
func (p *Pool) InUse() int {
	return int(p.inUse.Load())
}

// Stats is a point-in-time snapshot of pool activity.
type Stats struct {
	Mode          Mode
	Blocks        int    // blocks owned by the arena (0 in pass-through mode)
	Free          int    // arena blocks ready for reuse
	InUse         int    // allocated, unreleased blocks
	Allocs        uint64 // successful Allocate calls
	Releases      uint64 // successful Release calls
	BackingAllocs uint64 // requests for new backing memory
	Failures      uint64 // failed Allocate calls
}

// Stats returns counters without taking the pool lock. Fields are
// individually consistent; the snapshot as a whole may straddle concurrent
// operations.
func (p *Pool) Stats() Stats {
	s := Stats{
		Mode:          p.Mode(),
		Blocks:        int(p.total.Load()),
		InUse:         int(p.inUse.Load()),
		Allocs:        p.allocs.Load(),
		Releases:      p.releases.Load(),
		BackingAllocs: p.backing.Load(),
		Failures:      p.failures.Load(),
	}
	if s.Mode != ModePassThrough && s.Blocks > s.InUse {
		s.Free = s.Blocks - s.InUse
	}
	return s
}

// IsExhausted reports whether err is pool exhaustion (backpressure).
func IsExhausted(err error) bool {
	return errors.Is(err, ErrPoolExhausted)
}

// IsWouldBlock reports whether err indicates the allocation may succeed
// later. Delegates to [iox.IsWouldBlock].
func IsWouldBlock(err error) bool {
	return iox.IsWouldBlock(err)
}
