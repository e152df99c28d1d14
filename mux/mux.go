// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package mux provides a reentrant mutual-exclusion lock.
//
// A [Mutex] is owned by the goroutine that acquired it. The owner may
// acquire it again any number of times and must release it the same number
// of times before another goroutine can enter. The lock is process-private.
//
// Prefer the scoped form, which cannot release a lock it does not hold:
//
//	var mu mux.Mutex
//	mu.Do(func() {
//	    mu.Do(func() { /* nested entry by the same goroutine */ })
//	})
//
// [Mutex.Unlock] panics with [ErrNotOwner] when called by a goroutine that
// does not hold the lock. [Mutex.Release] reports the same condition as an
// error instead.
package mux

import (
	"errors"
	"sync"

	"code.hybscloud.com/msgq/internal/goid"
	"code.hybscloud.com/spin"
)

// ErrNotOwner is reported when a goroutine releases a lock it does not hold.
var ErrNotOwner = errors.New("mux: release by non-owner goroutine")

// spinRounds bounds the optimistic acquisition attempts before parking.
const spinRounds = 16

// Mutex is a reentrant mutual-exclusion lock.
// The zero value is an unlocked Mutex. A Mutex must not be copied after
// first use.
type Mutex struct {
	owner ownerWord
	depth int // written by the holder only
	mu    sync.Mutex
}

var _ sync.Locker = (*Mutex)(nil)

// Lock acquires m, blocking until it is available.
// If the calling goroutine already holds m, the hold depth is incremented.
func (m *Mutex) Lock() {
	id := goid.Get()
	if m.owner.load() == id {
		m.depth++
		return
	}
	if !m.spinLock() {
		m.mu.Lock()
	}
	m.owner.store(id)
	m.depth = 1
}

// TryLock acquires m without blocking and reports whether it succeeded.
// Reentrant acquisition by the holder always succeeds.
func (m *Mutex) TryLock() bool {
	id := goid.Get()
	if m.owner.load() == id {
		m.depth++
		return true
	}
	if !m.mu.TryLock() {
		return false
	}
	m.owner.store(id)
	m.depth = 1
	return true
}

// Unlock releases one level of m.
// Panics with ErrNotOwner if the calling goroutine does not hold m.
func (m *Mutex) Unlock() {
	if err := m.Release(); err != nil {
		panic(err)
	}
}

// Release releases one level of m.
// Returns ErrNotOwner, leaving m untouched, if the calling goroutine does
// not hold m.
func (m *Mutex) Release() error {
	if m.owner.load() != goid.Get() || m.depth == 0 {
		return ErrNotOwner
	}
	m.depth--
	if m.depth > 0 {
		return nil
	}
	m.owner.store(0)
	m.mu.Unlock()
	return nil
}

// Do runs fn while holding m. The lock is released when fn returns or
// panics.
func (m *Mutex) Do(fn func()) {
	m.Lock()
	defer m.Unlock()
	fn()
}

// Held reports whether the calling goroutine holds m.
func (m *Mutex) Held() bool {
	return m.owner.load() == goid.Get()
}

// Depth returns how many times the calling goroutine has acquired m
// without releasing it. It is 0 for any other goroutine.
func (m *Mutex) Depth() int {
	if !m.Held() {
		return 0
	}
	return m.depth
}

func (m *Mutex) spinLock() bool {
	sw := spin.Wait{}
	for range spinRounds {
		if m.mu.TryLock() {
			return true
		}
		sw.Once()
	}
	return false
}
