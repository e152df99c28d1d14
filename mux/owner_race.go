// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

//go:build race

package mux

import "sync/atomic"

// ownerWord holds the goroutine id of the lock holder, 0 when free.
//
// atomix compiles acquire loads and release stores to plain moves on
// amd64, which the race detector reports against the holder's store.
// Race builds use sync/atomic, which the detector models.
type ownerWord struct {
	v atomic.Int64
}

func (w *ownerWord) load() int64 { return w.v.Load() }

func (w *ownerWord) store(id int64) { w.v.Store(id) }
