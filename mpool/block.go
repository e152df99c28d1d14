// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package mpool

import "fmt"

// Block is a handle to one allocation unit of a [Pool].
//
// The payload region is capacity-limited: appending to Bytes never spills
// into a neighbouring block. A Block must not be used after it has been
// released.
type Block struct {
	pool  *Pool
	epoch uint64
	index int // arena slot, -1 in pass-through mode
	buf   []byte
	n     int
	used  bool
}

// Bytes returns the stored payload.
func (b *Block) Bytes() []byte {
	return b.buf[:b.n]
}

// Len returns the stored payload length.
func (b *Block) Len() int {
	return b.n
}

// Cap returns the payload capacity of the block.
func (b *Block) Cap() int {
	return len(b.buf)
}

// SetLen sets the stored payload length.
// Returns ErrOversizedRequest if n is negative or exceeds Cap.
func (b *Block) SetLen(n int) error {
	if n < 0 || n > len(b.buf) {
		return fmt.Errorf("%w: %d not in [0, %d]", ErrOversizedRequest, n, len(b.buf))
	}
	b.n = n
	return nil
}

// Pool returns the pool the block was allocated from.
func (b *Block) Pool() *Pool {
	return b.pool
}
