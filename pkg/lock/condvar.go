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

package lock

import (
	"errors"
	"time"

	"ulock.dev/ulock/pkg/reclock"
	"ulock.dev/ulock/pkg/sync"
)

// ErrNilLock is returned when a condition variable is created without a
// backing lock.
var ErrNilLock = errors.New("condvar: nil lock")

// A CondVar is a condition variable bound to one recursive lock. Waiters
// must hold the lock; Wait releases it fully for the duration of the wait
// and restores the original recursion depth before returning, so a waiter
// that entered the lock recursively comes back at the same depth.
//
// Unlike sync.Cond, Wait supports a timeout and reports whether the waiter
// was woken by a signal or by the clock running out.
type CondVar struct {
	header *Header
	lock   *reclock.RecursiveLock

	mu        sync.Mutex
	waiters   []chan struct{}
	destroyed bool
}

// CreateCondVar builds a condition variable over the given lock. header
// identifies the owning lock for diagnostics and may not be nil.
func CreateCondVar(header *Header, lock *reclock.RecursiveLock) (*CondVar, error) {
	if lock == nil || header == nil {
		return nil, ErrNilLock
	}
	return &CondVar{header: header, lock: lock}, nil
}

// Wait blocks until the condition variable is signaled or timeout elapses.
// A timeout of zero or less waits forever. The calling goroutine must hold
// the backing lock; Wait releases it while blocked and reacquires it, at
// the same recursion depth, before returning. Returns true if woken by
// Signal or Broadcast, false on timeout.
//
// As with any condition variable, the condition must be rechecked on
// return; a wakeup is a hint, not a guarantee.
func (c *CondVar) Wait(timeout time.Duration) bool {
	if !c.lock.IsOwner() {
		DumpAndPanic(c.header, "condition variable wait on %q without holding its lock", c.header.LockName())
	}

	w := make(chan struct{})
	c.mu.Lock()
	if c.destroyed {
		c.mu.Unlock()
		DumpAndPanic(c.header, "wait on destroyed condition variable for %q", c.header.LockName())
	}
	c.waiters = append(c.waiters, w)
	c.mu.Unlock()

	// The waiter is registered while the lock is still held, so a signal
	// sent after the release below cannot be lost.
	depth := c.lock.ReleaseAll()

	signaled := true
	if timeout > 0 {
		t := time.NewTimer(timeout)
		select {
		case <-w:
			t.Stop()
		case <-t.C:
			c.mu.Lock()
			removed := c.removeWaiter(w)
			c.mu.Unlock()
			// If the timer and a signal raced and the signal got to our
			// entry first, the wakeup belongs to us.
			signaled = !removed
		}
	} else {
		<-w
	}

	c.lock.AcquireDepth(depth)
	return signaled
}

// Signal wakes one waiter, if any.
func (c *CondVar) Signal() {
	c.mu.Lock()
	if len(c.waiters) > 0 {
		close(c.waiters[0])
		c.waiters = c.waiters[1:]
	}
	c.mu.Unlock()
}

// Broadcast wakes every waiter.
func (c *CondVar) Broadcast() {
	c.mu.Lock()
	for _, w := range c.waiters {
		close(w)
	}
	c.waiters = nil
	c.mu.Unlock()
}

// Destroy marks the condition variable unusable. It panics if any waiter
// is still blocked on it.
func (c *CondVar) Destroy() {
	c.mu.Lock()
	if len(c.waiters) > 0 {
		c.mu.Unlock()
		DumpAndPanic(c.header, "destroying condition variable for %q with %d waiters", c.header.LockName(), len(c.waiters))
	}
	c.destroyed = true
	c.mu.Unlock()
}

// removeWaiter drops w from the waiter list, returning false if a signal
// already consumed it. Caller holds c.mu.
func (c *CondVar) removeWaiter(w chan struct{}) bool {
	for i, cur := range c.waiters {
		if cur == w {
			c.waiters = append(c.waiters[:i], c.waiters[i+1:]...)
			return true
		}
	}
	return false
}
