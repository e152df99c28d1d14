// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

//go:build !race

package mux

import "code.hybscloud.com/atomix"

// ownerWord holds the goroutine id of the lock holder, 0 when free.
type ownerWord struct {
	v atomix.Int64
}

func (w *ownerWord) load() int64 { return w.v.LoadAcquire() }

func (w *ownerWord) store(id int64) { w.v.StoreRelease(id) }
