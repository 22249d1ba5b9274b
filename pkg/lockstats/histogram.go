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

package lockstats

import (
	"runtime"
	"sync/atomic"

	"ulock.dev/ulock/pkg/log"
)

// Histogram counts duration samples in logarithmic buckets: one bucket per
// decade, starting at a configured minimum value. Each bucket also remembers
// the most recent call site that landed in it, which is usually enough to
// find the slow path responsible for a tail.
type Histogram struct {
	typeName string

	// lowerBounds[i] is the inclusive lower bound of bucket i, in
	// nanoseconds. Samples below lowerBounds[0] land in bucket 0 and
	// samples beyond the last decade land in the final bucket.
	lowerBounds []uint64

	counts      []uint64
	lastCallers []uintptr

	totalSamples uint64
}

// HistoSetUp returns a histogram spanning the given number of decades above
// minValue (in nanoseconds).
func HistoSetUp(typeName string, minValue uint64, decades uint32) *Histogram {
	if minValue == 0 {
		minValue = 1
	}
	if decades == 0 {
		decades = 1
	}
	h := &Histogram{
		typeName:    typeName,
		lowerBounds: make([]uint64, decades),
		counts:      make([]uint64, decades),
		lastCallers: make([]uintptr, decades),
	}
	bound := minValue
	for i := range h.lowerBounds {
		h.lowerBounds[i] = bound
		bound *= 10
	}
	return h
}

// bucketIndex returns the bucket for a value. Like the exponential bucketers
// elsewhere, it binary-searches precomputed lower bounds; for the handful of
// decades involved that beats computing a logarithm.
func (h *Histogram) bucketIndex(value uint64) int {
	if value < h.lowerBounds[0] {
		return 0
	}
	lowIndex := 0
	highIndex := len(h.lowerBounds)
	for highIndex-lowIndex > 1 {
		pivotIndex := (highIndex + lowIndex) >> 1
		if value >= h.lowerBounds[pivotIndex] {
			lowIndex = pivotIndex
		} else {
			highIndex = pivotIndex
		}
	}
	return lowIndex
}

// Sample adds a value (in nanoseconds) to the histogram. caller is the
// program counter of the call site responsible for the sample, typically
// obtained with Caller.
func (h *Histogram) Sample(value uint64, caller uintptr) {
	i := h.bucketIndex(value)
	h.counts[i]++
	h.lastCallers[i] = caller
	h.totalSamples++
}

// NumSamples returns the number of samples recorded.
func (h *Histogram) NumSamples() uint64 {
	return h.totalSamples
}

// Dump logs all non-empty buckets, including the most recent caller per
// bucket. A freshly set-up histogram dumps as empty.
func (h *Histogram) Dump(d Describer, logger log.Logger) {
	if h.totalSamples == 0 {
		logger.Infof("lock %q (id %d) histo %s: empty", d.LockName(), d.LockID(), h.typeName)
		return
	}
	logger.Infof("lock %q (id %d) histo %s: %d samples", d.LockName(), d.LockID(), h.typeName, h.totalSamples)
	for i, count := range h.counts {
		if count == 0 {
			continue
		}
		caller := "unknown"
		if fn := runtime.FuncForPC(h.lastCallers[i]); fn != nil {
			caller = fn.Name()
		}
		logger.Infof("  >= %dns: %d (last caller %s)", h.lowerBounds[i], count, caller)
	}
}

// TearDown releases the histogram's resources. It is symmetric with
// HistoSetUp.
func (h *Histogram) TearDown() {
	h.lowerBounds = nil
	h.counts = nil
	h.lastCallers = nil
	h.totalSamples = 0
}

// Caller returns the program counter of the caller skip frames up the
// stack, for use as a Sample call site.
func Caller(skip int) uintptr {
	pc, _, _, ok := runtime.Caller(skip + 1)
	if !ok {
		return 0
	}
	return pc
}

// ForceHisto atomically attaches a histogram to slot if none is present,
// and returns whichever histogram the slot ends up holding. It allows a
// diagnostic path to start collecting a histogram on a live lock without
// coordinating with the lock's owner.
func ForceHisto(slot *atomic.Pointer[Histogram], typeName string, minValue uint64, decades uint32) *Histogram {
	h := HistoSetUp(typeName, minValue, decades)
	if slot.CompareAndSwap(nil, h) {
		return h
	}
	return slot.Load()
}
