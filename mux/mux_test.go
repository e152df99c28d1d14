// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package mux_test

import (
	"sync"
	"testing"
	"time"

	"code.hybscloud.com/msgq/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReentrant(t *testing.T) {
	var m mux.Mutex

	m.Lock()
	m.Lock()
	m.Lock()
	assert.True(t, m.Held())
	assert.Equal(t, 3, m.Depth())

	m.Unlock()
	m.Unlock()
	assert.Equal(t, 1, m.Depth())
	m.Unlock()

	assert.False(t, m.Held())
	assert.Equal(t, 0, m.Depth())
}

func TestReleaseWithoutAcquire(t *testing.T) {
	var m mux.Mutex
	require.ErrorIs(t, m.Release(), mux.ErrNotOwner)

	m.Lock()
	require.NoError(t, m.Release())
	require.ErrorIs(t, m.Release(), mux.ErrNotOwner)
}

func TestUnlockByOtherGoroutinePanics(t *testing.T) {
	var m mux.Mutex
	m.Lock()
	defer m.Unlock()

	done := make(chan any)
	go func() {
		defer func() { done <- recover() }()
		m.Unlock()
	}()
	assert.Equal(t, mux.ErrNotOwner, <-done)
	assert.True(t, m.Held(), "owner must keep the lock after a rejected unlock")
}

func TestExclusion(t *testing.T) {
	var m mux.Mutex
	m.Lock()

	acquired := make(chan struct{})
	go func() {
		m.Lock()
		close(acquired)
		m.Unlock()
	}()

	select {
	case <-acquired:
		t.Fatal("second goroutine entered a held lock")
	case <-time.After(20 * time.Millisecond):
	}

	m.Unlock()
	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatal("second goroutine never acquired the released lock")
	}
}

func TestNestedReleaseKeepsExclusion(t *testing.T) {
	var m mux.Mutex
	m.Lock()
	m.Lock()
	m.Unlock()

	got := make(chan bool)
	go func() { got <- m.TryLock() }()
	assert.False(t, <-got, "lock must stay held until the outermost release")

	m.Unlock()
	go func() {
		ok := m.TryLock()
		if ok {
			m.Unlock()
		}
		got <- ok
	}()
	assert.True(t, <-got)
}

func TestDoReleasesOnPanic(t *testing.T) {
	var m mux.Mutex
	func() {
		defer func() { _ = recover() }()
		m.Do(func() {
			m.Do(func() { panic("boom") })
		})
	}()
	assert.False(t, m.Held())
	assert.True(t, m.TryLock())
	m.Unlock()
}

func TestCounter(t *testing.T) {
	const goroutines, rounds = 8, 500
	var (
		m  mux.Mutex
		n  int
		wg sync.WaitGroup
	)
	for range goroutines {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range rounds {
				m.Do(func() {
					m.Do(func() { n++ })
				})
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, goroutines*rounds, n)
}

// TestOwnershipHandoff passes the lock back and forth between goroutines
// while each side polls Held and Depth from outside. Under -race this
// checks the owner word is read and written with detector-visible atomics.
func TestOwnershipHandoff(t *testing.T) {
	const rounds = 200
	var (
		m    mux.Mutex
		wg   sync.WaitGroup
		errs = make(chan string, 4)
	)
	for range 2 {
		wg.Add(2)
		go func() {
			defer wg.Done()
			for range rounds {
				m.Lock()
				if !m.Held() || m.Depth() != 1 {
					select {
					case errs <- "holder does not see its own hold":
					default:
					}
				}
				m.Unlock()
			}
		}()
		go func() {
			defer wg.Done()
			for range rounds {
				if m.Held() || m.Depth() != 0 {
					select {
					case errs <- "observer sees itself as holder":
					default:
					}
				}
			}
		}()
	}
	wg.Wait()
	close(errs)
	for msg := range errs {
		t.Fatal(msg)
	}
}
