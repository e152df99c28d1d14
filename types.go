// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package msgq

import (
	"bytes"
	"time"
)

// Sender is the producer side of a message queue.
type Sender interface {
	// Send appends a copy of data at the tail and wakes one waiting
	// receiver. Returns ErrQueueFull or a pool error without blocking.
	Send(data []byte) error
}

// Receiver is the consumer side of a message queue.
type Receiver interface {
	// Receive waits up to timeout for a message, copies it into buf and
	// removes it. A timeout <= 0 waits indefinitely.
	Receive(buf []byte, timeout time.Duration) (int, error)

	// TryReceive is Receive without waiting.
	// Returns ErrWouldBlock if the queue is empty.
	TryReceive(buf []byte) (int, error)
}

var (
	_ Sender   = (*Queue)(nil)
	_ Receiver = (*Queue)(nil)
)

// Copier moves payload bytes into and out of queue storage.
//
// Copy copies min(len(dst), len(src)) bytes and returns the count. Custom
// copiers may normalize or transform payloads but must not retain dst or
// src, and must not block on the queue they are installed in.
type Copier interface {
	Copy(dst, src []byte) int
}

// CopyFunc adapts a function to the [Copier] interface.
type CopyFunc func(dst, src []byte) int

// Copy calls f(dst, src).
func (f CopyFunc) Copy(dst, src []byte) int { return f(dst, src) }

// Comparer decides whether a stored payload matches a search key.
type Comparer interface {
	Match(stored, key []byte) bool
}

// MatchFunc adapts a function to the [Comparer] interface.
type MatchFunc func(stored, key []byte) bool

// Match calls f(stored, key).
func (f MatchFunc) Match(stored, key []byte) bool { return f(stored, key) }

// Destroyer is notified of every payload leaving the queue by Remove,
// Receive, Clear or Close. data is only valid for the duration of the call.
type Destroyer interface {
	Destroy(data []byte)
}

// DestroyFunc adapts a function to the [Destroyer] interface.
type DestroyFunc func(data []byte)

// Destroy calls f(data).
func (f DestroyFunc) Destroy(data []byte) { f(data) }

var (
	// RawCopy is the default Copier: a plain byte copy.
	RawCopy Copier = CopyFunc(func(dst, src []byte) int { return copy(dst, src) })

	// PrefixMatch is the default Comparer: byte equality over the shorter
	// of the two lengths.
	PrefixMatch Comparer = MatchFunc(func(stored, key []byte) bool {
		n := min(len(stored), len(key))
		return bytes.Equal(stored[:n], key[:n])
	})
)
