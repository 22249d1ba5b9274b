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
	"sync/atomic"

	"ulock.dev/ulock/pkg/atomicbitops"
	"ulock.dev/ulock/pkg/ilist"
	"ulock.dev/ulock/pkg/log"
	"ulock.dev/ulock/pkg/reclock"
)

// Process-wide registry of live lock headers. The list only grows and
// shrinks with lock construction and destruction; there is no teardown at
// process exit.
var (
	registryGuard atomic.Pointer[reclock.RecursiveLock]
	registryList  ilist.List

	// nextID is shared by every lock instance in the process.
	nextID atomicbitops.Uint64
)

// AllocID returns a process-unique lock identifier. It never returns 0,
// which is reserved as "unassigned".
func AllocID() uint64 {
	return nextID.Add(1)
}

// guardLock returns the lock protecting the registry list, creating it on
// first use. The guard is built with the same recursive lock core it
// protects registrations of, so it cannot depend on static initialization
// order; instead the first caller to win the compare-and-swap publishes a
// fully-constructed lock and everyone else reuses it.
func guardLock() *reclock.RecursiveLock {
	if l := registryGuard.Load(); l != nil {
		return l
	}
	l := &reclock.RecursiveLock{}
	if err := l.Init(); err != nil {
		panic("lock: cannot initialize registry guard: " + err.Error())
	}
	if registryGuard.CompareAndSwap(nil, l) {
		return l
	}
	// Somebody else won the construction race.
	l.Destroy()
	return registryGuard.Load()
}

// register adds h to the process-wide registry. It is a no-op when
// instrumentation is compiled out of the build.
func register(h *Header) {
	if !instrumentationEnabled {
		return
	}
	g := guardLock()
	g.Acquire()
	registryList.PushBack(h)
	g.Release()
}

// unregister removes h from the process-wide registry.
func unregister(h *Header) {
	if !instrumentationEnabled {
		return
	}
	g := guardLock()
	g.Acquire()
	registryList.Remove(h)
	g.Release()
}

// ForEachHeader calls fn for every live lock header, holding the registry
// guard throughout. fn must not construct or destroy locks.
func ForEachHeader(fn func(*Header)) {
	if !instrumentationEnabled {
		return
	}
	g := guardLock()
	g.Acquire()
	for e := registryList.Front(); e != nil; e = e.Next() {
		fn(e.(*Header))
	}
	g.Release()
}

// DumpAllLocks logs the statistics of every live lock through the given
// logger.
func DumpAllLocks(logger log.Logger) {
	ForEachHeader(func(h *Header) {
		h.DumpStats(logger)
	})
}
