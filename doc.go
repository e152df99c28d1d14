// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package msgq provides a bounded, thread-safe FIFO message queue with
// blocking and timed receive, backed by a block pool.
//
// Messages are variable-length byte payloads. Each message is copied into
// a block from the queue's [mpool.Pool] on insert and copied out on receive,
// so steady-state traffic through a Fixed or Dynamic pool does not allocate.
//
// # Quick Start
//
// Direct constructor (pass-through pool, one heap allocation per message):
//
//	q := msgq.NewQueue(1000)
//
// Builder API selects the pool strategy:
//
//	q, err := msgq.New(64).Fixed(64, 256).Build()     // 64 pre-allocated slots
//	q, err := msgq.New(1000).Dynamic(512).Build()     // grow, then reuse
//	q, err := msgq.New(16).External(buf, 128).Build() // caller-owned memory
//
// # Basic Usage
//
//	// Producer
//	if err := q.Send(msg); msgq.IsWouldBlock(err) {
//	    // Queue full or pool exhausted - handle backpressure
//	}
//
//	// Consumer
//	buf := make([]byte, 256)
//	n, err := q.Receive(buf, time.Second)
//	switch {
//	case err == nil:
//	    handle(buf[:n])
//	case errors.Is(err, msgq.ErrTimeout):
//	    // Nothing arrived - poll again
//	}
//
// # Pool Modes
//
//	PassThrough()     - one heap allocation per message, no ceiling
//	Dynamic(bs)       - blocks of bs bytes allocated on demand, kept for reuse
//	Fixed(n, bs)      - n blocks of bs bytes allocated once; ErrPoolExhausted
//	External(buf, bs) - like Fixed, carved from the caller's buf
//
// Messages longer than the block size are rejected with
// [ErrOversizedRequest]. The queue capacity and the pool ceiling are
// independent; an insert fails with [ErrQueueFull] or [ErrPoolExhausted]
// depending on which is reached first.
//
// # Ordering
//
// [Queue.Send] and [Queue.InsertTail] append; [Queue.Receive] takes from the
// head, so messages sent by one producer are received in order.
// [Queue.InsertHead], [Queue.InsertBefore] and [Queue.InsertAfter] place a
// message out of arrival order on purpose.
//
// Only Send wakes a parked receiver. A message added with an Insert method
// or by [Queue.Concat] is picked up by the next Receive call or the next
// receiver woken by Send.
//
// # Error Handling
//
// Every failure is returned, never logged. Backpressure and polling
// outcomes wrap [ErrWouldBlock] from [code.hybscloud.com/iox]:
//
//	msgq.IsWouldBlock(err)  // ErrQueueFull, ErrPoolExhausted, ErrTimeout, ErrWouldBlock
//	msgq.IsSemantic(err)    // true if control flow signal
//	msgq.IsNonFailure(err)  // true if nil or a control flow signal
//
// Stale element handles fail with [ErrNotFound] instead of touching memory
// that was handed to another message.
//
// # Truncation
//
// Receive copies at most len(buf) bytes and silently drops the rest. Build
// with StrictReceive to get io.ErrShortBuffer instead, or use
// [Queue.ReceiveBytes] to receive the whole message.
//
// # Thread Safety
//
// All methods are safe for concurrent use by multiple producers and
// consumers. Mutations and pool calls run under one reentrant [mux.Mutex].
// Receive parks outside the lock and re-checks the queue when woken, so a
// wake that another consumer beat it to only costs another wait.
//
// Callbacks (Copier, Comparer, Destroyer) and functions passed to
// [Queue.Locked] or [Queue.Range] run with the lock held. They may call
// non-blocking queue methods; a Receive that would need to wait fails with
// [ErrLockHeld].
//
// # Dependencies
//
// This package uses [code.hybscloud.com/iox] for semantic errors,
// [code.hybscloud.com/atomix] for atomic primitives with explicit
// memory ordering, and [code.hybscloud.com/spin] for lock spinning.
package msgq
