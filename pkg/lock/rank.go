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

	"ulock.dev/ulock/pkg/goid"
	"ulock.dev/ulock/pkg/sync"
)

// RankPolicy selects how held ranks constrain new acquisitions.
type RankPolicy int32

const (
	// RankPolicyStrict requires every newly acquired ranked lock to have a
	// rank strictly greater than all ranks already held.
	RankPolicyStrict RankPolicy = iota

	// RankPolicyAllowEqual additionally permits acquiring a lock whose rank
	// equals the highest rank held. Useful when a set of peer locks shares
	// one rank and is never acquired together.
	RankPolicyAllowEqual
)

var rankPolicy atomic.Int32

// SetRankPolicy installs the process-wide rank checking policy. The default
// is RankPolicyStrict.
func SetRankPolicy(p RankPolicy) {
	rankPolicy.Store(int32(p))
}

// heldEntry records one lock held by a goroutine. count tracks recursive
// acquisitions so that releases only drop the entry at depth zero.
type heldEntry struct {
	header *Header
	count  int
}

// held maps goroutine id to the stack of locks that goroutine currently
// holds. Entries are created on first acquisition and removed when the
// goroutine's last lock is released, so the map does not accumulate
// entries for dead goroutines.
var held sync.Map // int64 -> *[]heldEntry

// AcquisitionTracking records that the calling goroutine is acquiring h and
// validates h's rank against the locks already held. A rank violation dumps
// both locks involved and panics. Locks with RankUnranked are tracked but
// not checked. No-op when instrumentation is compiled out.
func AcquisitionTracking(h *Header) {
	if !instrumentationEnabled {
		return
	}
	gid := goid.Get()
	var locks *[]heldEntry
	if v, ok := held.Load(gid); ok {
		locks = v.(*[]heldEntry)
	} else {
		locks = &[]heldEntry{}
		held.Store(gid, locks)
	}

	// A recursive acquisition of a lock already held by this goroutine is
	// always rank-safe; only bump its count.
	for i := range *locks {
		if (*locks)[i].header == h {
			(*locks)[i].count++
			return
		}
	}

	if h.rank != RankUnranked {
		policy := RankPolicy(rankPolicy.Load())
		for _, e := range *locks {
			other := e.header.rank
			if other == RankUnranked {
				continue
			}
			if other > h.rank || (other == h.rank && policy == RankPolicyStrict) {
				e.header.Dump()
				DumpAndPanic(h, "rank violation: acquiring %q (rank %d) while holding %q (rank %d)",
					h.name, h.rank, e.header.name, other)
			}
		}
	}

	*locks = append(*locks, heldEntry{header: h, count: 1})
}

// ReleaseTracking records that the calling goroutine has released h. It
// panics if the goroutine does not hold h, which indicates an unbalanced
// release. No-op when instrumentation is compiled out.
func ReleaseTracking(h *Header) {
	if !instrumentationEnabled {
		return
	}
	gid := goid.Get()
	v, ok := held.Load(gid)
	if !ok {
		DumpAndPanic(h, "releasing %q on a goroutine that holds no locks", h.name)
	}
	locks := v.(*[]heldEntry)
	for i := range *locks {
		if (*locks)[i].header != h {
			continue
		}
		(*locks)[i].count--
		if (*locks)[i].count == 0 {
			*locks = append((*locks)[:i], (*locks)[i+1:]...)
			if len(*locks) == 0 {
				held.Delete(gid)
			}
		}
		return
	}
	DumpAndPanic(h, "releasing %q, which the calling goroutine does not hold", h.name)
}

// HeldCount returns how many distinct locks the calling goroutine holds.
// Always zero when instrumentation is compiled out.
func HeldCount() int {
	if !instrumentationEnabled {
		return 0
	}
	if v, ok := held.Load(goid.Get()); ok {
		return len(*v.(*[]heldEntry))
	}
	return 0
}
