// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package mpool

import "github.com/eapache/queue"

// freeList holds the arena indices of free blocks in release order.
// Callers hold the pool lock.
type freeList interface {
	push(idx int)
	pop() (int, bool)
	len() int
}

// ring is a bounded FIFO of block indices for pools with a fixed block
// count. It never overflows: every index pushed was popped before.
type ring struct {
	head   uint64
	tail   uint64
	buffer []int32
	mask   uint64
}

func newRing(capacity int) *ring {
	n := uint64(roundToPow2(capacity))
	return &ring{
		buffer: make([]int32, n),
		mask:   n - 1,
	}
}

func (r *ring) push(idx int) {
	r.buffer[r.tail&r.mask] = int32(idx)
	r.tail++
}

func (r *ring) pop() (int, bool) {
	if r.head == r.tail {
		return 0, false
	}
	idx := r.buffer[r.head&r.mask]
	r.head++
	return int(idx), true
}

func (r *ring) len() int {
	return int(r.tail - r.head)
}

// growable is an unbounded FIFO of block indices for dynamic pools.
type growable struct {
	q *queue.Queue
}

func newGrowable() *growable {
	return &growable{q: queue.New()}
}

func (g *growable) push(idx int) {
	g.q.Add(idx)
}

func (g *growable) pop() (int, bool) {
	if g.q.Length() == 0 {
		return 0, false
	}
	return g.q.Remove().(int), true
}

func (g *growable) len() int {
	return g.q.Length()
}

// roundToPow2 rounds n up to the next power of 2.
func roundToPow2(n int) int {
	if n < 2 {
		return 2
	}
	n--
	n |= n >> 1
	n |= n >> 2
	n |= n >> 4
	n |= n >> 8
	n |= n >> 16
	n |= n >> 32
	return n + 1
}
