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
	"time"

	"ulock.dev/ulock/pkg/lockstats"
	"ulock.dev/ulock/pkg/log"
)

// Default histogram shapes when a caller forces one on without sizing it.
const (
	defaultHistoMinValue = 1000 // 1us, in nanoseconds
	defaultHistoDecades  = 7
)

// Stats aggregates everything the instrumented build records per lock:
// acquisition outcomes and latency, hold times, and optional histograms of
// either. The histograms start nil and are attached on demand, so the
// common lock pays for two counters and some arithmetic per operation.
type Stats struct {
	acquisition lockstats.AcquisitionStats
	release     lockstats.ReleaseStats

	acquisitionHisto atomic.Pointer[lockstats.Histogram]
	heldHisto        atomic.Pointer[lockstats.Histogram]
}

func newStats() *Stats {
	s := &Stats{}
	s.acquisition.SetUp()
	s.release.SetUp()
	return s
}

func (s *Stats) tearDown() {
	s.acquisition.TearDown()
	s.release.TearDown()
	if h := s.acquisitionHisto.Swap(nil); h != nil {
		h.TearDown()
	}
	if h := s.heldHisto.Swap(nil); h != nil {
		h.TearDown()
	}
}

// SampleAcquisition records the outcome of one acquisition attempt against
// the header's statistics. elapsed is the time spent acquiring, caller the
// PC of the acquisition site. No-op when instrumentation is compiled out or
// the header has been torn down.
func (h *Header) SampleAcquisition(wasAcquired, wasContended bool, elapsed time.Duration, caller uintptr) {
	if !instrumentationEnabled || h.stats == nil {
		return
	}
	h.stats.acquisition.Sample(wasAcquired, wasContended, elapsed)
	if wasAcquired && wasContended {
		if histo := h.stats.acquisitionHisto.Load(); histo != nil {
			histo.Sample(uint64(elapsed.Nanoseconds()), caller)
		}
	}
}

// SampleHeld records how long the lock was held before one release, along
// with the PC of the release site.
func (h *Header) SampleHeld(held time.Duration, caller uintptr) {
	if !instrumentationEnabled || h.stats == nil {
		return
	}
	h.stats.release.Sample(held)
	if histo := h.stats.heldHisto.Load(); histo != nil {
		histo.Sample(uint64(held.Nanoseconds()), caller)
	}
}

// AcquisitionStats exposes the header's acquisition counters, or nil when
// instrumentation is compiled out.
func (h *Header) AcquisitionStats() *lockstats.AcquisitionStats {
	if h.stats == nil {
		return nil
	}
	return &h.stats.acquisition
}

// Kitchen reports whether the lock looks contended enough to be worth
// attention. A lock is hot once it has seen a meaningful number of
// successful acquisitions and too many of them were contended; doLog asks
// the caller to mention it, and the caller is expected to rate-limit.
func (h *Header) Kitchen() (contentionRatio float64, isHot, doLog bool) {
	if h.stats == nil {
		return 0, false, false
	}
	return h.stats.acquisition.Kitchen()
}

// ForceAcquisitionHisto attaches a histogram of contended acquisition
// latencies to the lock, if one isn't already attached. minValue is the
// lower bound of the first bucket in nanoseconds; decades the number of
// power-of-ten buckets. Zero values select defaults.
func (h *Header) ForceAcquisitionHisto(minValue uint64, decades uint32) {
	if !instrumentationEnabled || h.stats == nil {
		return
	}
	if minValue == 0 {
		minValue = defaultHistoMinValue
	}
	if decades == 0 {
		decades = defaultHistoDecades
	}
	lockstats.ForceHisto(&h.stats.acquisitionHisto, "acquisition", minValue, decades)
}

// ForceHeldHisto attaches a histogram of hold times to the lock, if one
// isn't already attached. Parameters follow ForceAcquisitionHisto.
func (h *Header) ForceHeldHisto(minValue uint64, decades uint32) {
	if !instrumentationEnabled || h.stats == nil {
		return
	}
	if minValue == 0 {
		minValue = defaultHistoMinValue
	}
	if decades == 0 {
		decades = defaultHistoDecades
	}
	lockstats.ForceHisto(&h.stats.heldHisto, "held", minValue, decades)
}

// DumpStats logs the lock's accumulated statistics and any attached
// histograms through the given logger.
func (h *Header) DumpStats(logger log.Logger) {
	if h.stats == nil {
		logger.Infof("lock %q (id %d): instrumentation disabled", h.name, h.identifier)
		return
	}
	h.stats.acquisition.Dump(h, logger)
	h.stats.release.Dump(h, logger)
	if histo := h.stats.acquisitionHisto.Load(); histo != nil {
		histo.Dump(h, logger)
	}
	if histo := h.stats.heldHisto.Load(); histo != nil {
		histo.Dump(h, logger)
	}
}
