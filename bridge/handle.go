// Copyright (c) 2026 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package bridge

import (
	"sort"
	"sync"
)

// Handle is an opaque reference to a bridge owned object.  Handles are drawn
// from a per-kind counter starting at 1 and are never reused, so a stale
// handle can never resolve to a newer object.
type Handle uint64

// NullHandle is the handle written on failure and treated as uninitialized.
const NullHandle Handle = 0

// handleTable owns the objects of one kind until their handle is deleted.
type handleTable[T any] struct {
	mu    sync.Mutex
	last  Handle
	items map[Handle]T
}

func newHandleTable[T any]() *handleTable[T] {
	return &handleTable[T]{items: make(map[Handle]T)}
}

// insert takes ownership of v and returns its new handle.
func (t *handleTable[T]) insert(v T) Handle {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.last++
	t.items[t.last] = v

	return t.last
}

func (t *handleTable[T]) get(h Handle) (T, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	v, ok := t.items[h]
	return v, ok
}

// remove gives ownership of the object back to the caller.  Only the first
// remove of a handle succeeds.
func (t *handleTable[T]) remove(h Handle) (T, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	v, ok := t.items[h]
	if ok {
		delete(t.items, h)
	}

	return v, ok
}

// handles returns the live handles, newest first.
func (t *handleTable[T]) handles() []Handle {
	t.mu.Lock()
	defer t.mu.Unlock()

	hs := make([]Handle, 0, len(t.items))
	for h := range t.items {
		hs = append(hs, h)
	}
	sort.Slice(hs, func(i, j int) bool {
		return hs[i] > hs[j]
	})

	return hs
}

func (t *handleTable[T]) len() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	return len(t.items)
}
