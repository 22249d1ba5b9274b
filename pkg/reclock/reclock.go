// Copyright 2026 The ulock Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package reclock provides a re-entrant exclusive lock built on the native
// mutex, which is not itself recursive.
//
// A goroutine that already owns the lock re-acquires it without touching the
// native mutex at all, so recursive acquisition is essentially free. The
// ownership test relies only on goroutine IDs being unique and stable, and
// on the owner field being written only by the goroutine that just became
// the sole holder: a non-owner reading a stale owner/count pair can at worst
// miss the fast path and fall back to the native mutex, never conclude that
// it owns a lock it doesn't.
//
// Every lock type in this module is built on this core. Non-recursive lock
// types catch unwanted recursion and panic rather than deadlock.
package reclock

import (
	"fmt"

	"ulock.dev/ulock/pkg/atomicbitops"
	"ulock.dev/ulock/pkg/goid"
	"ulock.dev/ulock/pkg/native"
)

// MaxRecDepth bounds the recursion depth of a single lock. Exceeding it is
// an invariant violation, not a queueing condition.
const MaxRecDepth = 16

// RecursiveLock is a re-entrant exclusive lock.
//
// A RecursiveLock must be initialized with Init before first use and
// destroyed with Destroy after last use. It must not be copied.
type RecursiveLock struct {
	// native is owned exclusively by this lock.
	native native.Mutex

	// referenceCount and owner are written only while the native mutex is
	// held (or, for owner, immediately before releasing it). Atomic
	// accesses keep the re-entrant fast path race-clean for readers that
	// do not hold the lock.
	referenceCount atomicbitops.Uint32
	owner          atomicbitops.Int64
}

// Init prepares the lock for use, creating the native mutex. It must be
// called exactly once before any other operation.
func (l *RecursiveLock) Init() error {
	m := native.New()
	if err := m.Init(); err != nil {
		return fmt.Errorf("initializing native mutex: %w", err)
	}
	l.native = m
	l.owner.Store(goid.None)
	l.referenceCount.Store(0)
	return nil
}

// Destroy releases the native mutex. Destroying a lock that is still held is
// a fatal programming error: it means a native-level invariant was violated.
func (l *RecursiveLock) Destroy() {
	if err := l.native.Destroy(); err != nil {
		panic(fmt.Sprintf("reclock: Destroy of %p failed: %v", l, err))
	}
}

// IsOwner returns whether the calling goroutine currently holds l.
func (l *RecursiveLock) IsOwner() bool {
	return l.referenceCount.Load() > 0 && l.owner.Load() == goid.Get()
}

// Count returns the current recursion depth. It is observational; the value
// is only stable if the caller holds l.
func (l *RecursiveLock) Count() uint32 {
	return l.referenceCount.Load()
}

// incCount bumps the recursion depth, taking ownership if this is the first
// acquisition.
func (l *RecursiveLock) incCount() {
	c := l.referenceCount.Load()
	if c == 0 {
		l.owner.Store(goid.Get())
	}
	if c+1 >= MaxRecDepth {
		panic(fmt.Sprintf("reclock: recursion depth %d exceeds limit %d", c+1, MaxRecDepth))
	}
	l.referenceCount.Store(c + 1)
}

// Acquire takes l, blocking if necessary, and returns whether the
// acquisition was contended: whether it had to block or retry rather than
// succeeding immediately.
func (l *RecursiveLock) Acquire() bool {
	if l.referenceCount.Load() > 0 && l.owner.Load() == goid.Get() {
		// Re-entrant acquisition; the native mutex is already ours
		// and stays untouched.
		l.incCount()
		return false
	}

	contended := false
	if err := l.native.TryLock(); err != nil {
		if err != native.ErrBusy {
			panic(fmt.Sprintf("reclock: native TryLock failed: %v", err))
		}
		if err := l.native.Lock(); err != nil {
			panic(fmt.Sprintf("reclock: native Lock failed: %v", err))
		}
		contended = true
	}

	// The native mutex admits exactly one logical owner, and re-entrant
	// callers never reach this branch.
	if c := l.referenceCount.Load(); c != 0 {
		panic(fmt.Sprintf("reclock: acquired native mutex with recursion depth %d", c))
	}

	l.incCount()
	return contended
}

// TryAcquire takes l without blocking and returns whether it succeeded.
//
// Unlike Acquire there is no re-entrant fast path: trying to take a lock the
// caller already owns reports failure, exactly as the native mutex would.
func (l *RecursiveLock) TryAcquire() bool {
	if err := l.native.TryLock(); err != nil {
		if err != native.ErrBusy {
			panic(fmt.Sprintf("reclock: native TryLock failed: %v", err))
		}
		return false
	}

	l.incCount()
	return true
}

// Release undoes one acquisition. When the recursion depth reaches zero the
// owner is cleared and the native mutex released.
func (l *RecursiveLock) Release() {
	c := l.referenceCount.Load()
	if c == 0 || c >= MaxRecDepth {
		panic(fmt.Sprintf("reclock: Release with recursion depth %d", c))
	}
	if l.owner.Load() != goid.Get() {
		panic(fmt.Sprintf("reclock: Release by goroutine %d, owner is %d", goid.Get(), l.owner.Load()))
	}

	l.referenceCount.Store(c - 1)
	if c-1 == 0 {
		l.owner.Store(goid.None)
		if err := l.native.Unlock(); err != nil {
			panic(fmt.Sprintf("reclock: native Unlock failed: %v", err))
		}
	}
}

// ReleaseAll drops the lock from its full recursion depth to zero and
// returns the depth that was held. It exists for condition-variable waits,
// which must give the lock up entirely and later restore it with
// AcquireDepth.
func (l *RecursiveLock) ReleaseAll() uint32 {
	c := l.referenceCount.Load()
	if c == 0 || c >= MaxRecDepth {
		panic(fmt.Sprintf("reclock: ReleaseAll with recursion depth %d", c))
	}
	if l.owner.Load() != goid.Get() {
		panic(fmt.Sprintf("reclock: ReleaseAll by goroutine %d, owner is %d", goid.Get(), l.owner.Load()))
	}

	l.referenceCount.Store(0)
	l.owner.Store(goid.None)
	if err := l.native.Unlock(); err != nil {
		panic(fmt.Sprintf("reclock: native Unlock failed: %v", err))
	}
	return c
}

// AcquireDepth re-takes the lock and restores a recursion depth previously
// captured by ReleaseAll. It returns whether the acquisition was contended.
func (l *RecursiveLock) AcquireDepth(depth uint32) bool {
	if depth == 0 || depth >= MaxRecDepth {
		panic(fmt.Sprintf("reclock: AcquireDepth of %d", depth))
	}

	contended := false
	if err := l.native.TryLock(); err != nil {
		if err != native.ErrBusy {
			panic(fmt.Sprintf("reclock: native TryLock failed: %v", err))
		}
		if err := l.native.Lock(); err != nil {
			panic(fmt.Sprintf("reclock: native Lock failed: %v", err))
		}
		contended = true
	}

	if c := l.referenceCount.Load(); c != 0 {
		panic(fmt.Sprintf("reclock: acquired native mutex with recursion depth %d", c))
	}
	l.owner.Store(goid.Get())
	l.referenceCount.Store(depth)
	return contended
}
