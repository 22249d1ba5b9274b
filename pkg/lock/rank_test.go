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
	"strings"
	"testing"
)

// mustNotViolate runs fn and fails the test if rank tracking panics.
func mustNotViolate(t *testing.T, fn func()) {
	t.Helper()
	defer func() {
		if r := recover(); r != nil {
			t.Fatalf("unexpected rank panic: %v", r)
		}
	}()
	fn()
}

// mustViolate runs fn and fails the test unless rank tracking panics with a
// rank violation.
func mustViolate(t *testing.T, fn func()) {
	t.Helper()
	defer func() {
		r := recover()
		if r == nil {
			t.Fatal("expected a rank violation panic")
		}
		if msg, ok := r.(string); !ok || !strings.Contains(msg, "rank violation") {
			t.Fatalf("panic value = %v, want a rank violation", r)
		}
	}()
	fn()
}

func TestRankIncreasingOrder(t *testing.T) {
	low := NewHeader(testSignature, 1, "low", nil)
	defer low.Teardown()
	high := NewHeader(testSignature, 2, "high", nil)
	defer high.Teardown()

	mustNotViolate(t, func() {
		AcquisitionTracking(low)
		AcquisitionTracking(high)
		ReleaseTracking(high)
		ReleaseTracking(low)
	})
	if got := HeldCount(); got != 0 {
		t.Errorf("HeldCount() = %d after balanced releases, want 0", got)
	}
}

func TestRankViolation(t *testing.T) {
	low := NewHeader(testSignature, 1, "low", nil)
	defer low.Teardown()
	high := NewHeader(testSignature, 2, "high", nil)
	defer high.Teardown()

	defer func() {
		// The violating acquisition was never recorded; unwind the one
		// successful acquisition so later tests start clean.
		ReleaseTracking(high)
	}()
	mustViolate(t, func() {
		AcquisitionTracking(high)
		AcquisitionTracking(low)
	})
}

func TestRankEqualPolicy(t *testing.T) {
	a := NewHeader(testSignature, 5, "peer-a", nil)
	defer a.Teardown()
	b := NewHeader(testSignature, 5, "peer-b", nil)
	defer b.Teardown()

	// Strict policy rejects equal ranks.
	SetRankPolicy(RankPolicyStrict)
	func() {
		defer ReleaseTracking(a)
		mustViolate(t, func() {
			AcquisitionTracking(a)
			AcquisitionTracking(b)
		})
	}()

	// AllowEqual permits them.
	SetRankPolicy(RankPolicyAllowEqual)
	defer SetRankPolicy(RankPolicyStrict)
	mustNotViolate(t, func() {
		AcquisitionTracking(a)
		AcquisitionTracking(b)
		ReleaseTracking(b)
		ReleaseTracking(a)
	})
}

func TestRankUnrankedExempt(t *testing.T) {
	ranked := NewHeader(testSignature, 3, "ranked", nil)
	defer ranked.Teardown()
	unranked := NewHeader(testSignature, RankUnranked, "unranked", nil)
	defer unranked.Teardown()

	// Unranked locks may be acquired in any order relative to ranked ones.
	mustNotViolate(t, func() {
		AcquisitionTracking(ranked)
		AcquisitionTracking(unranked)
		ReleaseTracking(unranked)
		ReleaseTracking(ranked)

		AcquisitionTracking(unranked)
		AcquisitionTracking(ranked)
		ReleaseTracking(ranked)
		ReleaseTracking(unranked)
	})
}

func TestRankRecursiveExempt(t *testing.T) {
	outer := NewHeader(testSignature, 2, "outer", nil)
	defer outer.Teardown()
	inner := NewHeader(testSignature, 1, "inner", nil)
	defer inner.Teardown()

	// Reacquiring a lock this goroutine already holds is never a rank
	// violation, even though its rank is not greater than itself.
	mustNotViolate(t, func() {
		AcquisitionTracking(outer)
		AcquisitionTracking(outer)
		if got := HeldCount(); got != 1 {
			t.Errorf("HeldCount() = %d during recursion, want 1", got)
		}
		ReleaseTracking(outer)
		ReleaseTracking(outer)
	})

	// But a different lower-ranked lock still violates.
	defer func() { ReleaseTracking(outer) }()
	mustViolate(t, func() {
		AcquisitionTracking(outer)
		AcquisitionTracking(inner)
	})
}

func TestUnbalancedRelease(t *testing.T) {
	h := NewHeader(testSignature, RankUnranked, "unheld", nil)
	defer h.Teardown()

	defer func() {
		if recover() == nil {
			t.Error("expected panic on releasing an unheld lock")
		}
	}()
	ReleaseTracking(h)
}
