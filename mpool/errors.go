// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package mpool

import (
	"errors"
	"fmt"

	"code.hybscloud.com/iox"
)

var (
	// ErrPoolExhausted indicates a bounded pool has no free block.
	//
	// It wraps [iox.ErrWouldBlock]: exhaustion is backpressure, and the
	// caller decides whether to retry, drop or escalate.
	ErrPoolExhausted = fmt.Errorf("mpool: pool exhausted: %w", iox.ErrWouldBlock)

	// ErrOversizedRequest indicates a request larger than the block size.
	ErrOversizedRequest = errors.New("mpool: request exceeds block size")

	// ErrOutOfMemory indicates backing memory could not be obtained.
	ErrOutOfMemory = errors.New("mpool: out of memory")

	// ErrPoolBusy indicates a mode transition was attempted while blocks
	// are in use.
	ErrPoolBusy = errors.New("mpool: pool has blocks in use")

	// ErrDisabled indicates an allocation from a reset or uninitialized pool.
	ErrDisabled = errors.New("mpool: pool disabled")

	// ErrForeignBlock indicates a release of a block that is already free,
	// belongs to another pool, or predates the pool's last mode transition.
	ErrForeignBlock = errors.New("mpool: foreign or stale block")

	// ErrInvalidConfig indicates invalid pool parameters.
	ErrInvalidConfig = errors.New("mpool: invalid configuration")
)
