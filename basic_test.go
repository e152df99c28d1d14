// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package msgq_test

import (
	"bytes"
	"errors"
	"io"
	"testing"

	"code.hybscloud.com/msgq"
)

// =============================================================================
// Test Helpers
// =============================================================================

// contents returns the queued payloads from head to tail.
func contents(q *msgq.Queue) []string {
	var out []string
	q.Range(func(_ msgq.Elem, data []byte) bool {
		out = append(out, string(data))
		return true
	})
	return out
}

func wantContents(t *testing.T, q *msgq.Queue, want ...string) {
	t.Helper()
	got := contents(q)
	if len(got) != len(want) {
		t.Fatalf("contents: got %q, want %q", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("contents: got %q, want %q", got, want)
		}
	}
	if q.Len() != len(want) {
		t.Fatalf("Len: got %d, want %d", q.Len(), len(want))
	}
}

// =============================================================================
// FIFO and Count
// =============================================================================

// TestFIFO checks that InsertTail followed by TryReceive returns messages in
// insertion order and that Len tracks inserts minus removes.
func TestFIFO(t *testing.T) {
	q := msgq.NewQueue(8)

	for i := range 8 {
		if _, err := q.InsertTail([]byte{byte('a' + i)}); err != nil {
			t.Fatalf("InsertTail(%d): %v", i, err)
		}
		if q.Len() != i+1 {
			t.Fatalf("Len after %d inserts: got %d", i+1, q.Len())
		}
	}

	buf := make([]byte, 4)
	for i := range 8 {
		n, err := q.TryReceive(buf)
		if err != nil {
			t.Fatalf("TryReceive(%d): %v", i, err)
		}
		if n != 1 || buf[0] != byte('a'+i) {
			t.Fatalf("TryReceive(%d): got %q, want %q", i, buf[:n], 'a'+i)
		}
		if q.Len() != 8-i-1 {
			t.Fatalf("Len after %d removes: got %d", i+1, q.Len())
		}
	}

	if _, err := q.TryReceive(buf); !errors.Is(err, msgq.ErrWouldBlock) {
		t.Fatalf("TryReceive on empty: got %v, want ErrWouldBlock", err)
	}
	if !q.Empty() {
		t.Fatal("Empty: got false, want true")
	}
}

// TestQueueFull checks the capacity boundary.
func TestQueueFull(t *testing.T) {
	q := msgq.NewQueue(2)
	if q.Cap() != 2 {
		t.Fatalf("Cap: got %d, want 2", q.Cap())
	}

	for i := range 2 {
		if err := q.Send([]byte{byte(i)}); err != nil {
			t.Fatalf("Send(%d): %v", i, err)
		}
	}
	for _, insert := range []func() error{
		func() error { return q.Send([]byte("x")) },
		func() error { _, err := q.InsertHead([]byte("x")); return err },
		func() error { _, err := q.InsertTail([]byte("x")); return err },
	} {
		err := insert()
		if !errors.Is(err, msgq.ErrQueueFull) {
			t.Fatalf("insert on full: got %v, want ErrQueueFull", err)
		}
		if !msgq.IsWouldBlock(err) || !msgq.IsSemantic(err) {
			t.Fatalf("ErrQueueFull must classify as would-block: %v", err)
		}
	}
	if q.Len() != 2 {
		t.Fatalf("Len after rejected inserts: got %d, want 2", q.Len())
	}
}

func TestEmptyPayload(t *testing.T) {
	q := msgq.NewQueue(2)
	if err := q.Send(nil); !errors.Is(err, msgq.ErrEmptyPayload) {
		t.Fatalf("Send(nil): got %v, want ErrEmptyPayload", err)
	}
	if _, err := q.InsertHead([]byte{}); !errors.Is(err, msgq.ErrEmptyPayload) {
		t.Fatalf("InsertHead(empty): got %v, want ErrEmptyPayload", err)
	}
	if q.Len() != 0 {
		t.Fatalf("Len: got %d, want 0", q.Len())
	}
}

func TestNewPanicsOnZeroCapacity(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("New(0): expected panic")
		}
	}()
	msgq.New(0)
}

// =============================================================================
// Positional Inserts and Handles
// =============================================================================

func TestInsertPositions(t *testing.T) {
	q := msgq.NewQueue(10)

	c, _ := q.InsertTail([]byte("c"))
	if _, err := q.InsertHead([]byte("a")); err != nil {
		t.Fatalf("InsertHead: %v", err)
	}
	if _, err := q.InsertBefore(c, []byte("b")); err != nil {
		t.Fatalf("InsertBefore: %v", err)
	}
	e, err := q.InsertAfter(c, []byte("e"))
	if err != nil {
		t.Fatalf("InsertAfter: %v", err)
	}
	if _, err := q.InsertBefore(e, []byte("d")); err != nil {
		t.Fatalf("InsertBefore: %v", err)
	}
	if _, err := q.InsertAfter(e, []byte("f")); err != nil {
		t.Fatalf("InsertAfter tail: %v", err)
	}
	wantContents(t, q, "a", "b", "c", "d", "e", "f")

	last, ok := q.Last()
	if !ok {
		t.Fatal("Last: empty")
	}
	buf := make([]byte, 1)
	if n, _ := q.Read(last, buf); n != 1 || buf[0] != 'f' {
		t.Fatalf("Read(Last): got %q, want f", buf[:n])
	}
	if _, ok := q.Next(last); ok {
		t.Fatal("Next(Last): got ok, want end")
	}

	first, _ := q.First()
	if _, ok := q.Prev(first); ok {
		t.Fatal("Prev(First): got ok, want end")
	}
	var walked []byte
	for e, ok := first, true; ok; e, ok = q.Next(e) {
		q.Read(e, buf)
		walked = append(walked, buf[0])
	}
	if string(walked) != "abcdef" {
		t.Fatalf("walk: got %q, want abcdef", walked)
	}
}

func TestRemove(t *testing.T) {
	var destroyed []string
	q, err := msgq.New(4).
		Destroyer(msgq.DestroyFunc(func(data []byte) { destroyed = append(destroyed, string(data)) })).
		Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	q.InsertTail([]byte("x"))
	y, _ := q.InsertTail([]byte("y"))
	q.InsertTail([]byte("z"))

	if err := q.Remove(y); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	wantContents(t, q, "x", "z")
	if len(destroyed) != 1 || destroyed[0] != "y" {
		t.Fatalf("destroyed: got %q, want [y]", destroyed)
	}

	// Stale handle: removed, and its node may be recycled for a new message.
	if err := q.Remove(y); !errors.Is(err, msgq.ErrNotFound) {
		t.Fatalf("Remove(stale): got %v, want ErrNotFound", err)
	}
	q.InsertTail([]byte("w"))
	if err := q.Remove(y); !errors.Is(err, msgq.ErrNotFound) {
		t.Fatalf("Remove(stale after reuse): got %v, want ErrNotFound", err)
	}
	if _, err := q.InsertAfter(y, []byte("v")); !errors.Is(err, msgq.ErrNotFound) {
		t.Fatalf("InsertAfter(stale): got %v, want ErrNotFound", err)
	}
	if _, err := q.Read(y, make([]byte, 1)); !errors.Is(err, msgq.ErrNotFound) {
		t.Fatalf("Read(stale): got %v, want ErrNotFound", err)
	}
	if err := q.Remove(msgq.Elem{}); !errors.Is(err, msgq.ErrNotFound) {
		t.Fatalf("Remove(zero): got %v, want ErrNotFound", err)
	}
	wantContents(t, q, "x", "z", "w")

	if err := q.Clear(); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	wantContents(t, q)
	if len(destroyed) != 4 {
		t.Fatalf("destroyed after Clear: got %q", destroyed)
	}
}

func TestForeignHandle(t *testing.T) {
	a, b := msgq.NewQueue(2), msgq.NewQueue(2)
	e, _ := a.InsertTail([]byte("a"))

	if err := b.Remove(e); !errors.Is(err, msgq.ErrNotFound) {
		t.Fatalf("Remove(foreign): got %v, want ErrNotFound", err)
	}
	if _, err := b.InsertBefore(e, []byte("b")); !errors.Is(err, msgq.ErrNotFound) {
		t.Fatalf("InsertBefore(foreign): got %v, want ErrNotFound", err)
	}
	if a.Len() != 1 || b.Len() != 0 {
		t.Fatalf("Len: got %d/%d, want 1/0", a.Len(), b.Len())
	}
}

// =============================================================================
// Find
// =============================================================================

func TestFind(t *testing.T) {
	q := msgq.NewQueue(4)
	q.InsertTail([]byte("alpha"))
	q.InsertTail([]byte("beta"))
	q.InsertTail([]byte("betamax"))

	e, err := q.Find([]byte("beta"))
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	buf := make([]byte, 16)
	if n, _ := q.Read(e, buf); string(buf[:n]) != "beta" {
		t.Fatalf("Find: got %q, want beta", buf[:n])
	}

	// The default comparer matches over the shorter length.
	if e, err = q.Find([]byte("al")); err != nil {
		t.Fatalf("Find(prefix): %v", err)
	}
	if n, _ := q.Read(e, buf); string(buf[:n]) != "alpha" {
		t.Fatalf("Find(prefix): got %q, want alpha", buf[:n])
	}

	if _, err := q.Find([]byte("gamma")); !errors.Is(err, msgq.ErrNotFound) {
		t.Fatalf("Find(missing): got %v, want ErrNotFound", err)
	}

	exact := msgq.MatchFunc(bytes.Equal)
	if e, err = q.FindFunc([]byte("betamax"), exact); err != nil {
		t.Fatalf("FindFunc: %v", err)
	}
	if n, _ := q.Read(e, buf); string(buf[:n]) != "betamax" {
		t.Fatalf("FindFunc: got %q, want betamax", buf[:n])
	}
}

func TestCustomComparer(t *testing.T) {
	// Match on the first byte only (a message "type" tag).
	q, err := msgq.New(4).
		Comparer(msgq.MatchFunc(func(stored, key []byte) bool { return stored[0] == key[0] })).
		Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	q.InsertTail([]byte{1, 'a'})
	q.InsertTail([]byte{2, 'b'})

	e, err := q.Find([]byte{2})
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	buf := make([]byte, 2)
	q.Read(e, buf)
	if buf[1] != 'b' {
		t.Fatalf("Find: got %q, want tag 2", buf)
	}
}

// TestLockedFindRemove checks that find-then-remove is atomic inside Locked.
func TestLockedFindRemove(t *testing.T) {
	q := msgq.NewQueue(4)
	q.InsertTail([]byte("keep"))
	q.InsertTail([]byte("drop"))

	var removeErr error
	q.Locked(func() {
		e, err := q.Find([]byte("drop"))
		if err != nil {
			removeErr = err
			return
		}
		removeErr = q.Remove(e)
	})
	if removeErr != nil {
		t.Fatalf("Locked find/remove: %v", removeErr)
	}
	wantContents(t, q, "keep")
}

func TestRangeRemoveCurrent(t *testing.T) {
	q := msgq.NewQueue(8)
	for _, s := range []string{"1", "2", "3", "4"} {
		q.InsertTail([]byte(s))
	}
	q.Range(func(e msgq.Elem, data []byte) bool {
		if (data[0]-'0')%2 == 0 {
			if err := q.Remove(e); err != nil {
				t.Fatalf("Remove in Range: %v", err)
			}
		}
		return true
	})
	wantContents(t, q, "1", "3")
}

// TestRangeStopsOnRecycledNext removes the next element from inside fn and
// inserts a new one, which reuses the removed element's storage. Range must
// stop instead of continuing from the reused element's new position.
func TestRangeStopsOnRecycledNext(t *testing.T) {
	q := msgq.NewQueue(8)
	for _, s := range []string{"1", "2", "3", "4"} {
		q.InsertTail([]byte(s))
	}
	var visited []string
	q.Range(func(e msgq.Elem, data []byte) bool {
		visited = append(visited, string(data))
		if string(data) == "1" {
			next, ok := q.Next(e)
			if !ok {
				t.Fatal("Next: no element after 1")
			}
			if err := q.Remove(next); err != nil {
				t.Fatalf("Remove in Range: %v", err)
			}
			if _, err := q.InsertTail([]byte("5")); err != nil {
				t.Fatalf("InsertTail in Range: %v", err)
			}
		}
		return true
	})
	if len(visited) != 1 || visited[0] != "1" {
		t.Fatalf("Range visited %q, want [1]", visited)
	}
	wantContents(t, q, "1", "3", "4", "5")
}

// =============================================================================
// Receive Variants
// =============================================================================

func TestReceiveTruncates(t *testing.T) {
	q := msgq.NewQueue(2)
	q.Send([]byte("hello world"))

	buf := make([]byte, 5)
	n, err := q.Receive(buf, 0)
	if err != nil {
		t.Fatalf("Receive: %v", err)
	}
	if string(buf[:n]) != "hello" {
		t.Fatalf("Receive: got %q, want hello", buf[:n])
	}
	if q.Len() != 0 {
		t.Fatalf("Len: got %d, want 0", q.Len())
	}
}

func TestStrictReceive(t *testing.T) {
	q, err := msgq.New(2).StrictReceive().Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	q.Send([]byte("hello world"))

	if _, err := q.Receive(make([]byte, 5), 0); !errors.Is(err, io.ErrShortBuffer) {
		t.Fatalf("Receive(short): got %v, want io.ErrShortBuffer", err)
	}
	if q.Len() != 1 {
		t.Fatalf("Len after short receive: got %d, want 1", q.Len())
	}

	got, err := q.ReceiveBytes(0)
	if err != nil {
		t.Fatalf("ReceiveBytes: %v", err)
	}
	if string(got) != "hello world" {
		t.Fatalf("ReceiveBytes: got %q", got)
	}
}

func TestCustomCopier(t *testing.T) {
	upper := msgq.CopyFunc(func(dst, src []byte) int {
		n := copy(dst, src)
		copy(dst, bytes.ToUpper(dst[:n]))
		return n
	})
	q, err := msgq.New(2).Copier(upper).Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	q.Send([]byte("abc"))
	got, err := q.ReceiveBytes(0)
	if err != nil {
		t.Fatalf("ReceiveBytes: %v", err)
	}
	if string(got) != "ABC" {
		t.Fatalf("ReceiveBytes: got %q, want ABC", got)
	}
}

// =============================================================================
// Reconfiguration
// =============================================================================

func TestSetCapacity(t *testing.T) {
	q := msgq.NewQueue(4)
	q.Send([]byte("a"))
	q.Send([]byte("b"))

	if err := q.SetCapacity(1); !errors.Is(err, msgq.ErrInvalidConfig) {
		t.Fatalf("SetCapacity below count: got %v, want ErrInvalidConfig", err)
	}
	if err := q.SetCapacity(0); !errors.Is(err, msgq.ErrInvalidConfig) {
		t.Fatalf("SetCapacity(0): got %v, want ErrInvalidConfig", err)
	}
	if err := q.SetCapacity(2); err != nil {
		t.Fatalf("SetCapacity(2): %v", err)
	}
	if err := q.Send([]byte("c")); !errors.Is(err, msgq.ErrQueueFull) {
		t.Fatalf("Send after shrink: got %v, want ErrQueueFull", err)
	}
}

func TestSetPoolRequiresEmptyQueue(t *testing.T) {
	q := msgq.NewQueue(4)
	q.Send([]byte("a"))

	if err := q.SetPool(2, 8); !errors.Is(err, msgq.ErrPoolBusy) {
		t.Fatalf("SetPool with queued data: got %v, want ErrPoolBusy", err)
	}
	if err := q.SupplyExternal(make([]byte, 64), 8); !errors.Is(err, msgq.ErrPoolBusy) {
		t.Fatalf("SupplyExternal with queued data: got %v, want ErrPoolBusy", err)
	}

	q.Clear()
	if err := q.SetPool(2, 8); err != nil {
		t.Fatalf("SetPool: %v", err)
	}
	if err := q.Send(make([]byte, 9)); !errors.Is(err, msgq.ErrOversizedRequest) {
		t.Fatalf("Send oversized: got %v, want ErrOversizedRequest", err)
	}
	q.Send([]byte("a"))
	q.Send([]byte("b"))
	if err := q.Send([]byte("c")); !errors.Is(err, msgq.ErrPoolExhausted) {
		t.Fatalf("Send past pool: got %v, want ErrPoolExhausted", err)
	}
	if q.Len() != 2 {
		t.Fatalf("Len: got %d, want 2", q.Len())
	}
}

func TestClose(t *testing.T) {
	q, err := msgq.New(4).Fixed(4, 8).Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	q.Send([]byte("a"))

	if err := q.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := q.Close(); err != nil {
		t.Fatalf("Close twice: %v", err)
	}
	if q.Len() != 0 {
		t.Fatalf("Len after Close: got %d, want 0", q.Len())
	}
	if err := q.Send([]byte("b")); !errors.Is(err, msgq.ErrClosed) {
		t.Fatalf("Send after Close: got %v, want ErrClosed", err)
	}
	if _, err := q.Receive(make([]byte, 1), 0); !errors.Is(err, msgq.ErrClosed) {
		t.Fatalf("Receive after Close: got %v, want ErrClosed", err)
	}
	if _, err := q.TryReceive(make([]byte, 1)); !errors.Is(err, msgq.ErrClosed) {
		t.Fatalf("TryReceive after Close: got %v, want ErrClosed", err)
	}
	if st := q.PoolStats(); st.Blocks != 0 {
		t.Fatalf("pool after Close: got %d blocks, want 0", st.Blocks)
	}
}
