// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package msgq

import (
	"errors"
	"fmt"

	"code.hybscloud.com/iox"
	"code.hybscloud.com/msgq/mpool"
)

// ErrWouldBlock indicates the operation cannot proceed immediately.
//
// For TryReceive: the queue is empty.
//
// [ErrQueueFull], [ErrPoolExhausted] and [ErrTimeout] wrap it, so
// [IsWouldBlock] is true for every backpressure and polling outcome:
//
//	backoff := iox.Backoff{}
//	for {
//	    err := q.Send(msg)
//	    if err == nil {
//	        backoff.Reset()
//	        break
//	    }
//	    if msgq.IsWouldBlock(err) {
//	        backoff.Wait()
//	        continue
//	    }
//	    return err
//	}
//
// This is an alias for [iox.ErrWouldBlock] for ecosystem consistency.
var ErrWouldBlock = iox.ErrWouldBlock

var (
	// ErrQueueFull indicates an insert on a queue at capacity.
	// The queue never blocks producers; handling the signal is up to them.
	ErrQueueFull = fmt.Errorf("msgq: queue full: %w", iox.ErrWouldBlock)

	// ErrTimeout indicates Receive's deadline elapsed with the queue empty.
	// It is an expected outcome for polling loops, not a failure.
	ErrTimeout = fmt.Errorf("msgq: receive timed out: %w", iox.ErrWouldBlock)

	// ErrNotFound indicates a failed Find, or an element handle that is not
	// a live member of the queue.
	ErrNotFound = errors.New("msgq: element not found")

	// ErrEmptyPayload indicates an insert of zero bytes.
	ErrEmptyPayload = errors.New("msgq: empty payload")

	// ErrClosed indicates an operation on a closed queue.
	ErrClosed = errors.New("msgq: queue closed")

	// ErrLockHeld indicates a blocking receive from a goroutine that holds
	// the queue lock (inside Locked or a callback). Waiting there would
	// deadlock.
	ErrLockHeld = errors.New("msgq: blocking receive while holding the queue lock")

	// ErrInvalidConfig indicates an invalid capacity.
	ErrInvalidConfig = errors.New("msgq: invalid configuration")
)

// Pool errors surfaced by queue inserts and pool reconfiguration.
var (
	ErrPoolExhausted    = mpool.ErrPoolExhausted
	ErrOversizedRequest = mpool.ErrOversizedRequest
	ErrOutOfMemory      = mpool.ErrOutOfMemory
	ErrPoolBusy         = mpool.ErrPoolBusy
)

// IsWouldBlock reports whether err indicates the operation would block.
// Delegates to [iox.IsWouldBlock] for wrapped error support.
func IsWouldBlock(err error) bool {
	return iox.IsWouldBlock(err)
}

// IsSemantic reports whether err is a control flow signal (not a failure).
// Delegates to [iox.IsSemantic].
func IsSemantic(err error) bool {
	return iox.IsSemantic(err)
}

// IsNonFailure reports whether err represents a non-failure condition.
// Returns true for nil, ErrWouldBlock, or ErrMore.
// Delegates to [iox.IsNonFailure].
func IsNonFailure(err error) bool {
	return iox.IsNonFailure(err)
}
