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

//go:build linux
// +build linux

package native

import (
	"fmt"
	"sync/atomic"
	"unsafe"

	"golang.org/x/sys/unix"
)

// Futex operations, from include/uapi/linux/futex.h. x/sys/unix exports the
// syscall number but not the operation codes.
const (
	futexWaitOp        = 0
	futexWakeOp        = 1
	futexPrivateFlag   = 0x80
	futexWaitPrivateOp = futexWaitOp | futexPrivateFlag
	futexWakePrivateOp = futexWakeOp | futexPrivateFlag
)

// FutexMutex is a Mutex backed directly by the kernel futex. Waiters park in
// the kernel instead of on a channel, keeping the uncontended path to a
// single compare-and-swap.
//
// The state word is 0 when unlocked, 1 when locked and uncontended, and 2
// when locked with (possible) waiters.
type FutexMutex struct {
	state uint32
}

// Init implements Mutex.Init.
func (m *FutexMutex) Init() error {
	atomic.StoreUint32(&m.state, 0)
	return nil
}

// Destroy implements Mutex.Destroy.
func (m *FutexMutex) Destroy() error {
	if atomic.LoadUint32(&m.state) != 0 {
		return ErrBusy
	}
	return nil
}

// Lock implements Mutex.Lock.
func (m *FutexMutex) Lock() error {
	if atomic.CompareAndSwapUint32(&m.state, 0, 1) {
		return nil
	}
	for {
		// Announce contention, then sleep until the word changes.
		if v := atomic.LoadUint32(&m.state); v == 2 || (v == 1 && atomic.CompareAndSwapUint32(&m.state, 1, 2)) {
			if err := m.futexWait(2); err != nil {
				return err
			}
		}
		// Anyone we race with may also have seen contention, so take
		// the lock in the contended state; the eventual unlock will
		// wake the next waiter.
		if atomic.CompareAndSwapUint32(&m.state, 0, 2) {
			return nil
		}
	}
}

// TryLock implements Mutex.TryLock.
func (m *FutexMutex) TryLock() error {
	if atomic.CompareAndSwapUint32(&m.state, 0, 1) {
		return nil
	}
	return ErrBusy
}

// Unlock implements Mutex.Unlock.
func (m *FutexMutex) Unlock() error {
	switch atomic.SwapUint32(&m.state, 0) {
	case 0:
		return ErrNotOwned
	case 1:
		// No waiters.
		return nil
	}
	return m.futexWake(1)
}

func (m *FutexMutex) futexWait(val uint32) error {
	_, _, errno := unix.Syscall6(
		unix.SYS_FUTEX,
		uintptr(unsafe.Pointer(&m.state)),
		uintptr(futexWaitPrivateOp),
		uintptr(val),
		0, 0, 0)
	switch errno {
	case 0, unix.EAGAIN, unix.EINTR:
		// The word changed before we slept, or we were interrupted.
		// Either way the caller re-examines the state.
		return nil
	default:
		return fmt.Errorf("FUTEX_WAIT: %w", errno)
	}
}

func (m *FutexMutex) futexWake(n int) error {
	_, _, errno := unix.Syscall6(
		unix.SYS_FUTEX,
		uintptr(unsafe.Pointer(&m.state)),
		uintptr(futexWakePrivateOp),
		uintptr(n),
		0, 0, 0)
	if errno != 0 {
		return fmt.Errorf("FUTEX_WAKE: %w", errno)
	}
	return nil
}
