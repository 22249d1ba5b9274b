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

// Package lock provides the identity, registry, rank-checking and
// instrumentation machinery that every lock type in this module is built
// from.
//
// A lock type embeds one Header next to its reclock.RecursiveLock and routes
// every acquire and release through the tracking and sampling hooks here.
// With the locknostats build tag the hooks compile down to nothing, so a
// production build that doesn't want instrumentation pays nothing for it.
//
// Rank checking validates that locks are taken in a consistent global order.
// Each lock may carry a rank; before a ranked lock is acquired, the ranks
// already held by the calling goroutine are checked against the configured
// policy, and a violation dumps the offending lock and panics. A deadlock
// that is about to happen is loud; one that did happen is silent.
package lock

import (
	"fmt"

	"ulock.dev/ulock/pkg/ilist"
	"ulock.dev/ulock/pkg/log"
)

// Rank is an ordering value used for deadlock-avoidance checking. Ranks
// impose a partial order: a goroutine may only acquire locks in increasing
// rank order, per the configured RankPolicy.
type Rank uint32

// RankUnranked marks a lock that does not participate in rank checking.
const RankUnranked Rank = 0

// Signature builds a lock type tag from four characters, used for runtime
// type validation when a lock pointer crosses an API boundary.
func Signature(a, b, c, d byte) uint32 {
	return uint32(a) | uint32(b)<<8 | uint32(c)<<16 | uint32(d)<<24
}

// A Header carries the identity and metadata common to every lock instance.
// It must be constructed with NewHeader and torn down with Teardown.
type Header struct {
	ilist.Entry

	signature  uint32
	rank       Rank
	name       string
	identifier uint64
	dump       func(*Header)

	// stats is non-nil only when instrumentation is compiled in.
	stats *Stats
}

// NewHeader constructs a header for a lock of the given type signature,
// rank (RankUnranked to opt out of rank checking), and display name. dump
// renders the owning lock's state for fatal diagnostics; nil selects a
// default that renders the header alone. The header is registered in the
// process-wide lock registry when instrumentation is enabled.
func NewHeader(signature uint32, rank Rank, name string, dump func(*Header)) *Header {
	h := &Header{
		signature:  signature,
		rank:       rank,
		name:       name,
		identifier: AllocID(),
		dump:       dump,
	}
	if h.dump == nil {
		h.dump = (*Header).dumpSelf
	}
	if instrumentationEnabled {
		h.stats = newStats()
	}
	register(h)
	return h
}

// Teardown releases the header's owned state and removes it from the
// registry. It must be called exactly once, when the owning lock is
// destroyed.
func (h *Header) Teardown() {
	unregister(h)
	if h.stats != nil {
		h.stats.tearDown()
		h.stats = nil
	}
	h.name = ""
	h.dump = nil
}

// Signature returns the header's type tag.
func (h *Header) Signature() uint32 {
	return h.signature
}

// BadSignature panics if the header does not carry the expected type tag.
// Lock types call this when a caller hands them a pointer of uncertain
// provenance.
func (h *Header) BadSignature(want uint32) {
	if h.signature != want {
		DumpAndPanic(h, "signature check failed: got %#x, want %#x", h.signature, want)
	}
}

// Rank returns the header's rank.
func (h *Header) Rank() Rank {
	return h.rank
}

// LockName implements lockstats.Describer.LockName.
func (h *Header) LockName() string {
	return h.name
}

// LockID implements lockstats.Describer.LockID.
func (h *Header) LockID() uint64 {
	return h.identifier
}

// Dump renders the lock's state through its dump capability.
func (h *Header) Dump() {
	h.dump(h)
}

func (h *Header) dumpSelf() {
	log.Warningf("lock %q: id=%d rank=%d signature=%#x", h.name, h.identifier, h.rank, h.signature)
}

// DumpAndPanic renders the offending lock's state and terminates with the
// given message. Fatal lock conditions indicate corrupted shared state and
// are never recoverable.
func DumpAndPanic(header *Header, format string, v ...any) {
	msg := fmt.Sprintf(format, v...)
	if header != nil {
		header.Dump()
	}
	log.Warningf("fatal lock error: %s", msg)
	panic(msg)
}
