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

package native

import (
	"ulock.dev/ulock/pkg/atomicbitops"
)

// ChannelMutex is a Mutex built on an atomic word and a wake channel. It is
// portable to every target Go supports and is the fallback where no faster
// platform primitive is wired up.
//
// The state word v is 1 when unlocked, 0 when locked and uncontended, and
// negative when locked with waiters.
type ChannelMutex struct {
	v  atomicbitops.Int32
	ch chan struct{}
}

// Init implements Mutex.Init.
func (m *ChannelMutex) Init() error {
	m.v.Store(1)
	m.ch = make(chan struct{}, 1)
	return nil
}

// Destroy implements Mutex.Destroy.
func (m *ChannelMutex) Destroy() error {
	if m.v.Load() != 1 {
		return ErrBusy
	}
	m.ch = nil
	return nil
}

// Lock implements Mutex.Lock.
func (m *ChannelMutex) Lock() error {
	// Uncontended case.
	if m.v.Add(-1) == 0 {
		return nil
	}

	for {
		// Try to acquire the mutex again, at the same time making sure
		// that v is negative, which indicates to the owner of the lock
		// that it is contended, forcing it to try to wake someone up
		// when it releases the mutex.
		if v := m.v.Load(); v >= 0 && m.v.Swap(-1) == 1 {
			return nil
		}

		// Wait for the mutex to be released before trying again.
		<-m.ch
	}
}

// TryLock implements Mutex.TryLock.
func (m *ChannelMutex) TryLock() error {
	v := m.v.Load()
	if v <= 0 {
		return ErrBusy
	}
	if m.v.CompareAndSwap(1, 0) {
		return nil
	}
	return ErrBusy
}

// Unlock implements Mutex.Unlock.
func (m *ChannelMutex) Unlock() error {
	switch m.v.Swap(1) {
	case 1:
		return ErrNotOwned
	case 0:
		// There were no pending waiters.
		return nil
	}

	// Wake some waiter up.
	select {
	case m.ch <- struct{}{}:
	default:
	}
	return nil
}
