// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package msgq

import (
	"fmt"
	"io"
	"time"

	"code.hybscloud.com/msgq/mpool"
	"code.hybscloud.com/msgq/mux"
)

// Queue is a bounded, lock-protected FIFO of byte messages.
//
// Payloads are copied into blocks of the queue's pool on insert and copied
// out on receive; the application never holds a reference to queue storage
// beyond the duration of a callback.
//
// All methods are safe for concurrent use. The lock is reentrant, so
// methods may be called from inside [Queue.Locked] and from Copier,
// Comparer and Destroyer callbacks. Blocking receives from there fail with
// ErrLockHeld.
type Queue struct {
	mu   mux.Mutex
	pool *mpool.Pool
	id   uint64

	head     *node
	tail     *node
	count    int
	capacity int
	spare    []*node

	waiters []chan struct{} // FIFO of parked receivers
	closed  bool

	copier    Copier
	comparer  Comparer
	destroyer Destroyer
	strict    bool
}

type node struct {
	prev *node
	next *node
	q    *Queue // nil once removed
	gen  uint64 // bumped on removal
	blk  *mpool.Block
}

// Elem is a handle to a queued message.
//
// A handle stays valid until the message leaves the queue. Operations given
// a handle that was removed, or that belongs to another queue, fail with
// ErrNotFound. The zero Elem is never valid.
type Elem struct {
	n   *node
	gen uint64
}

func (q *Queue) live(e Elem) bool {
	return e.n != nil && e.n.q == q && e.n.gen == e.gen
}

func (q *Queue) handle(n *node) Elem {
	return Elem{n: n, gen: n.gen}
}

// =============================================================================
// Insert
// =============================================================================

// InsertHead stores a copy of data at the head of the queue.
//
// Returns:
//   - ErrEmptyPayload if data is empty
//   - ErrQueueFull if the queue is at capacity
//   - a pool error (ErrPoolExhausted, ErrOversizedRequest, ...) if no block
//     could be allocated
func (q *Queue) InsertHead(data []byte) (Elem, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	n, err := q.newNode(data)
	if err != nil {
		return Elem{}, err
	}
	q.linkAfter(nil, n)
	return q.handle(n), nil
}

// InsertTail stores a copy of data at the tail of the queue. It does not
// wake waiting receivers; use [Queue.Send] for that.
// Errors are those of [Queue.InsertHead].
func (q *Queue) InsertTail(data []byte) (Elem, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	n, err := q.newNode(data)
	if err != nil {
		return Elem{}, err
	}
	q.linkAfter(q.tail, n)
	return q.handle(n), nil
}

// InsertBefore stores a copy of data immediately before anchor.
// Returns ErrNotFound if anchor is not a live member of q, otherwise the
// errors of [Queue.InsertHead].
func (q *Queue) InsertBefore(anchor Elem, data []byte) (Elem, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if !q.live(anchor) {
		return Elem{}, ErrNotFound
	}
	n, err := q.newNode(data)
	if err != nil {
		return Elem{}, err
	}
	q.linkAfter(anchor.n.prev, n)
	return q.handle(n), nil
}

// InsertAfter stores a copy of data immediately after anchor.
// Returns ErrNotFound if anchor is not a live member of q, otherwise the
// errors of [Queue.InsertHead].
func (q *Queue) InsertAfter(anchor Elem, data []byte) (Elem, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if !q.live(anchor) {
		return Elem{}, ErrNotFound
	}
	n, err := q.newNode(data)
	if err != nil {
		return Elem{}, err
	}
	q.linkAfter(anchor.n, n)
	return q.handle(n), nil
}

// Send appends a copy of data at the tail and wakes the longest-waiting
// receiver. The wake happens after the message is linked, so the woken
// receiver observes a non-empty queue unless another consumer wins it.
func (q *Queue) Send(data []byte) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	n, err := q.newNode(data)
	if err != nil {
		return err
	}
	q.linkAfter(q.tail, n)
	q.wakeOne()
	return nil
}

// newNode checks admission, allocates a block and copies data into it.
// Caller holds the lock.
func (q *Queue) newNode(data []byte) (*node, error) {
	switch {
	case q.closed:
		return nil, ErrClosed
	case len(data) == 0:
		return nil, ErrEmptyPayload
	case q.count >= q.capacity:
		return nil, ErrQueueFull
	}
	blk, err := q.pool.Allocate(len(data))
	if err != nil {
		return nil, err
	}
	if err := blk.SetLen(q.copier.Copy(blk.Bytes(), data)); err != nil {
		_ = q.pool.Release(blk)
		return nil, err
	}

	var n *node
	if k := len(q.spare); k > 0 {
		n, q.spare = q.spare[k-1], q.spare[:k-1]
	} else {
		n = &node{}
	}
	n.q, n.blk = q, blk
	return n, nil
}

// linkAfter links n after at, or at the head when at is nil.
func (q *Queue) linkAfter(at, n *node) {
	n.prev = at
	if at == nil {
		n.next = q.head
		q.head = n
	} else {
		n.next = at.next
		at.next = n
	}
	if n.next == nil {
		q.tail = n
	} else {
		n.next.prev = n
	}
	q.count++
}

// =============================================================================
// Remove
// =============================================================================

// Remove deletes the message e refers to, notifying the Destroyer and
// returning its block to the pool.
// Returns ErrNotFound if e is not a live member of q.
func (q *Queue) Remove(e Elem) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if !q.live(e) {
		return ErrNotFound
	}
	return q.drop(e.n, true)
}

// Clear removes every message, notifying the Destroyer for each.
func (q *Queue) Clear() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.clear()
}

func (q *Queue) clear() error {
	for q.head != nil {
		if err := q.drop(q.head, true); err != nil {
			return err
		}
	}
	return nil
}

// drop unlinks n, releases its block and recycles it.
// Caller holds the lock.
func (q *Queue) drop(n *node, destroy bool) error {
	if n.prev == nil {
		q.head = n.next
	} else {
		n.prev.next = n.next
	}
	if n.next == nil {
		q.tail = n.prev
	} else {
		n.next.prev = n.prev
	}
	q.count--

	blk := n.blk
	if destroy && q.destroyer != nil {
		q.destroyer.Destroy(blk.Bytes())
	}
	*n = node{gen: n.gen + 1}
	if len(q.spare) < q.capacity {
		q.spare = append(q.spare, n)
	}
	if err := blk.Pool().Release(blk); err != nil {
		return fmt.Errorf("msgq: release block: %w", err)
	}
	return nil
}

// =============================================================================
// Receive
// =============================================================================

// Receive waits until a message is available or timeout elapses, then
// copies the head message into buf, removes it and returns the number of
// bytes copied. A timeout <= 0 waits indefinitely.
//
// A message longer than buf is truncated to len(buf), unless the queue was
// built with StrictReceive, in which case io.ErrShortBuffer is returned and
// the message stays queued.
//
// Returns ErrTimeout if the deadline passes with the queue still empty,
// ErrClosed if the queue is closed while waiting, ErrLockHeld if the
// caller holds the queue lock and would have to wait.
func (q *Queue) Receive(buf []byte, timeout time.Duration) (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if err := q.await(timeout); err != nil {
		return 0, err
	}
	return q.consume(buf)
}

// ReceiveBytes is Receive returning a fresh copy of the whole message.
func (q *Queue) ReceiveBytes(timeout time.Duration) ([]byte, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if err := q.await(timeout); err != nil {
		return nil, err
	}
	buf := make([]byte, q.head.blk.Len())
	n, err := q.consume(buf)
	return buf[:n], err
}

// TryReceive is Receive without waiting.
// Returns ErrWouldBlock if the queue is empty.
func (q *Queue) TryReceive(buf []byte) (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.count == 0 {
		if q.closed {
			return 0, ErrClosed
		}
		return 0, ErrWouldBlock
	}
	return q.consume(buf)
}

// await returns with the lock held and q.count > 0, or with an error.
// The lock is released while parked.
func (q *Queue) await(timeout time.Duration) error {
	var timer *time.Timer
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for q.count == 0 {
		if q.closed {
			return ErrClosed
		}
		if q.mu.Depth() > 1 {
			return ErrLockHeld
		}

		w := make(chan struct{})
		q.waiters = append(q.waiters, w)
		q.mu.Unlock()

		expired := false
		if timeout > 0 {
			if timer == nil {
				timer = time.NewTimer(timeout)
			}
			select {
			case <-w:
			case <-timer.C:
				expired = true
			}
		} else {
			<-w
		}

		q.mu.Lock()
		if expired {
			// A wake may have raced the timer; count decides.
			q.dropWaiter(w)
			if q.count == 0 {
				if q.closed {
					return ErrClosed
				}
				return ErrTimeout
			}
		}
	}
	return nil
}

// consume copies the head payload into buf and removes it.
// Caller holds the lock and has checked q.count > 0.
func (q *Queue) consume(buf []byte) (int, error) {
	n := q.head
	data := n.blk.Bytes()
	if q.strict && len(buf) < len(data) {
		return 0, fmt.Errorf("msgq: %w: %d byte message, %d byte buffer", io.ErrShortBuffer, len(data), len(buf))
	}
	k := q.copier.Copy(buf, data)
	return k, q.drop(n, true)
}

// wakeOne releases the longest-parked receiver. Caller holds the lock.
func (q *Queue) wakeOne() {
	if len(q.waiters) == 0 {
		return
	}
	w := q.waiters[0]
	q.waiters[0] = nil
	q.waiters = q.waiters[1:]
	close(w)
}

// wakeAll releases every parked receiver. Caller holds the lock.
func (q *Queue) wakeAll() {
	for _, w := range q.waiters {
		close(w)
	}
	q.waiters = nil
}

func (q *Queue) dropWaiter(w chan struct{}) {
	for i, x := range q.waiters {
		if x == w {
			q.waiters = append(q.waiters[:i], q.waiters[i+1:]...)
			return
		}
	}
}

// =============================================================================
// Find and Navigation
// =============================================================================

// Find returns the first message matching key under the queue's Comparer.
// Returns ErrNotFound if none matches.
//
// The result may be stale as soon as Find returns. To find and act
// atomically, call Find and the follow-up operation inside [Queue.Locked].
func (q *Queue) Find(key []byte) (Elem, error) {
	return q.FindFunc(key, q.comparer)
}

// FindFunc is Find with an explicit Comparer.
func (q *Queue) FindFunc(key []byte, c Comparer) (Elem, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for n := q.head; n != nil; n = n.next {
		if c.Match(n.blk.Bytes(), key) {
			return q.handle(n), nil
		}
	}
	return Elem{}, ErrNotFound
}

// First returns the head message, if any.
func (q *Queue) First() (Elem, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.head == nil {
		return Elem{}, false
	}
	return q.handle(q.head), true
}

// Last returns the tail message, if any.
func (q *Queue) Last() (Elem, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.tail == nil {
		return Elem{}, false
	}
	return q.handle(q.tail), true
}

// Next returns the message after e. ok is false at the tail or if e is not
// a live member of q.
func (q *Queue) Next(e Elem) (next Elem, ok bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if !q.live(e) || e.n.next == nil {
		return Elem{}, false
	}
	return q.handle(e.n.next), true
}

// Prev returns the message before e. ok is false at the head or if e is not
// a live member of q.
func (q *Queue) Prev(e Elem) (prev Elem, ok bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if !q.live(e) || e.n.prev == nil {
		return Elem{}, false
	}
	return q.handle(e.n.prev), true
}

// Read copies the payload of e into buf without removing it.
// Returns ErrNotFound if e is not a live member of q.
func (q *Queue) Read(e Elem, buf []byte) (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if !q.live(e) {
		return 0, ErrNotFound
	}
	return q.copier.Copy(buf, e.n.blk.Bytes()), nil
}

// Range calls fn for each message from head to tail until fn returns false.
// data is valid only during the call. fn may remove the element it is
// given; iteration stops if it removes any other element.
func (q *Queue) Range(fn func(e Elem, data []byte) bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for n := q.head; n != nil; {
		next := n.next
		var gen uint64
		if next != nil {
			gen = next.gen
		}
		if !fn(q.handle(n), n.blk.Bytes()) {
			return
		}
		if next != nil && (next.q != q || next.gen != gen) {
			return
		}
		n = next
	}
}

// Locked runs fn while holding the queue lock. Every non-blocking queue
// method may be called from fn, which makes find-then-mutate sequences
// atomic:
//
//	q.Locked(func() {
//	    if e, err := q.Find(key); err == nil {
//	        _ = q.Remove(e)
//	    }
//	})
func (q *Queue) Locked(fn func()) {
	q.mu.Do(fn)
}

// =============================================================================
// Whole-Queue Operations
// =============================================================================

// Concat moves every message of other to the tail of q, in order, leaving
// other empty. Payloads are re-homed into q's pool; the Destroyer is not
// called for moved messages.
//
// Both locks are held for the duration, acquired in ascending queue id
// order so that concurrent a.Concat(b) and b.Concat(a) cannot deadlock.
//
// Returns ErrQueueFull if q cannot take every message, or a pool error if
// q's pool cannot supply the blocks; in both cases nothing is moved.
// Concatenating a queue with itself is a no-op.
func (q *Queue) Concat(other *Queue) error {
	if other == q {
		return nil
	}
	first, second := q, other
	if second.id < first.id {
		first, second = second, first
	}
	first.mu.Lock()
	defer first.mu.Unlock()
	second.mu.Lock()
	defer second.mu.Unlock()

	if q.closed || other.closed {
		return ErrClosed
	}
	if other.count == 0 {
		return nil
	}
	if q.count+other.count > q.capacity {
		return ErrQueueFull
	}

	blks := make([]*mpool.Block, 0, other.count)
	for n := other.head; n != nil; n = n.next {
		blk, err := q.pool.Allocate(n.blk.Len())
		if err == nil {
			blks = append(blks, blk)
			err = blk.SetLen(q.copier.Copy(blk.Bytes(), n.blk.Bytes()))
		}
		if err != nil {
			for _, b := range blks {
				_ = q.pool.Release(b)
			}
			return err
		}
	}

	for _, blk := range blks {
		if err := other.drop(other.head, false); err != nil {
			return err
		}
		var n *node
		if k := len(q.spare); k > 0 {
			n, q.spare = q.spare[k-1], q.spare[:k-1]
		} else {
			n = &node{}
		}
		n.q, n.blk = q, blk
		q.linkAfter(q.tail, n)
	}
	return nil
}

// Close removes every message, wakes all waiting receivers with ErrClosed
// and releases the pool's memory. Further operations return ErrClosed.
// Closing a closed queue is a no-op.
func (q *Queue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return nil
	}
	err := q.clear()
	q.closed = true
	q.wakeAll()
	if err != nil {
		return err
	}
	return q.pool.Reset()
}

// =============================================================================
// Configuration and State
// =============================================================================

// SetCapacity changes the maximum number of queued messages.
// Returns ErrInvalidConfig if n < 1 or n is below the current count.
func (q *Queue) SetCapacity(n int) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if n < 1 || n < q.count {
		return fmt.Errorf("%w: capacity %d with %d queued", ErrInvalidConfig, n, q.count)
	}
	q.capacity = n
	if len(q.spare) > n {
		clear(q.spare[n:])
		q.spare = q.spare[:n]
	}
	return nil
}

// SetPool re-initializes the pool with (blocks, blockSize), selecting the
// mode as [mpool.Pool.Init] does. Returns ErrPoolBusy unless the queue is
// empty.
func (q *Queue) SetPool(blocks, blockSize int) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return ErrClosed
	}
	return q.pool.Init(blocks, blockSize)
}

// SupplyExternal switches the pool to carve buf into blockSize blocks.
// Returns ErrPoolBusy unless the queue is empty.
func (q *Queue) SupplyExternal(buf []byte, blockSize int) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return ErrClosed
	}
	return q.pool.SupplyExternal(buf, blockSize)
}

// Len returns the number of queued messages.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.count
}

// Cap returns the queue capacity.
func (q *Queue) Cap() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.capacity
}

// Empty reports whether the queue holds no message.
func (q *Queue) Empty() bool {
	return q.Len() == 0
}

// PoolStats returns a snapshot of the queue's pool counters.
func (q *Queue) PoolStats() mpool.Stats {
	return q.pool.Stats()
}
