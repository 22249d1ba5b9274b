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

// Package lockstats collects per-lock acquisition, contention and hold-time
// statistics.
//
// Stats blocks are owned by a lock and updated only by the goroutine
// performing the acquire or release on that lock, so they need no internal
// synchronization; a lock type that admits concurrent readers must serialize
// its own stats updates. Dump paths take a log.Logger so that callers decide
// where output goes and how it is rate limited.
package lockstats

import (
	"math"
	"time"

	"ulock.dev/ulock/pkg/log"
)

// Describer identifies the lock a stats block belongs to in dump output.
// It is implemented by the lock header.
type Describer interface {
	// LockName returns the lock's display name.
	LockName() string

	// LockID returns the lock's process-unique identifier.
	LockID() uint64
}

// BasicStats is a running aggregate over a population of durations,
// sufficient to derive mean and standard deviation without retaining the
// individual samples.
type BasicStats struct {
	typeName       string
	numSamples     uint64
	minTime        uint64 // nanoseconds
	maxTime        uint64 // nanoseconds
	timeSum        uint64 // nanoseconds
	timeSquaredSum float64
}

// SetUp initializes s for a population with the given display name.
func (s *BasicStats) SetUp(typeName string) {
	*s = BasicStats{
		typeName: typeName,
		minTime:  math.MaxUint64,
	}
}

// Sample folds one duration into the aggregate.
func (s *BasicStats) Sample(elapsed time.Duration) {
	v := uint64(elapsed.Nanoseconds())
	s.numSamples++
	s.timeSum += v
	s.timeSquaredSum += float64(v) * float64(v)
	if v < s.minTime {
		s.minTime = v
	}
	if v > s.maxTime {
		s.maxTime = v
	}
}

// NumSamples returns the population size.
func (s *BasicStats) NumSamples() uint64 {
	return s.numSamples
}

// Mean returns the mean of the population, or 0 when it is empty.
func (s *BasicStats) Mean() float64 {
	if s.numSamples == 0 {
		return 0
	}
	return float64(s.timeSum) / float64(s.numSamples)
}

// StdDev returns the standard deviation of the population, or 0 when it is
// empty.
func (s *BasicStats) StdDev() float64 {
	if s.numSamples == 0 {
		return 0
	}
	mean := s.Mean()
	variance := s.timeSquaredSum/float64(s.numSamples) - mean*mean
	if variance < 0 {
		// Rounding artifact on a near-constant population.
		return 0
	}
	return math.Sqrt(variance)
}

// Dump logs the aggregate for the lock described by d.
func (s *BasicStats) Dump(d Describer, logger log.Logger) {
	if s.numSamples == 0 {
		logger.Infof("lock %q (id %d) %s: no samples", d.LockName(), d.LockID(), s.typeName)
		return
	}
	logger.Infof("lock %q (id %d) %s: samples=%d min=%dns max=%dns mean=%.1fns stddev=%.1fns",
		d.LockName(), d.LockID(), s.typeName, s.numSamples, s.minTime, s.maxTime, s.Mean(), s.StdDev())
}

// TearDown releases anything the aggregate owns. It is symmetric with SetUp.
func (s *BasicStats) TearDown() {
	*s = BasicStats{}
}

// AcquisitionStats aggregates acquisition attempts, successes and contention
// for one lock.
type AcquisitionStats struct {
	numAttempts           uint64
	numSuccesses          uint64
	numSuccessesContended uint64

	// successContentionTime sums wait time over contended successful
	// acquisitions; totalContentionTime sums elapsed time over every
	// attempt, giving a denominator for the overall contention ratio.
	successContentionTime uint64 // nanoseconds
	totalContentionTime   uint64 // nanoseconds

	basic BasicStats
}

// SetUp initializes s.
func (s *AcquisitionStats) SetUp() {
	*s = AcquisitionStats{}
	s.basic.SetUp("acquisition")
}

// Sample records one acquisition attempt. elapsed is the time the attempt
// took, whether or not it succeeded.
func (s *AcquisitionStats) Sample(wasAcquired, wasContended bool, elapsed time.Duration) {
	v := uint64(elapsed.Nanoseconds())
	s.numAttempts++
	if wasAcquired {
		s.numSuccesses++
		s.basic.Sample(elapsed)
		if wasContended {
			s.numSuccessesContended++
			s.successContentionTime += v
		}
	}
	s.totalContentionTime += v
}

// Attempts returns the number of acquisition attempts recorded.
func (s *AcquisitionStats) Attempts() uint64 {
	return s.numAttempts
}

// Successes returns the number of successful acquisitions recorded.
func (s *AcquisitionStats) Successes() uint64 {
	return s.numSuccesses
}

// ContendedSuccesses returns the number of contended successful
// acquisitions recorded.
func (s *AcquisitionStats) ContendedSuccesses() uint64 {
	return s.numSuccessesContended
}

// Latency returns the embedded per-acquisition latency aggregate.
func (s *AcquisitionStats) Latency() *BasicStats {
	return &s.basic
}

// Dump logs the acquisition aggregates for the lock described by d.
func (s *AcquisitionStats) Dump(d Describer, logger log.Logger) {
	logger.Infof("lock %q (id %d) acquisition: attempts=%d successes=%d contended=%d contentionTime=%dns/%dns",
		d.LockName(), d.LockID(), s.numAttempts, s.numSuccesses, s.numSuccessesContended,
		s.successContentionTime, s.totalContentionTime)
	s.basic.Dump(d, logger)
}

// TearDown releases anything the aggregate owns.
func (s *AcquisitionStats) TearDown() {
	s.basic.TearDown()
	*s = AcquisitionStats{}
}

// Hot lock classification. A lock is hot when a meaningful share of its
// successful acquisitions had to wait.
const (
	// kitchenMinSuccesses is the minimum population before the ratio
	// means anything.
	kitchenMinSuccesses = 100

	// kitchenHotRatio is the contended-success ratio beyond which a lock
	// is classified hot.
	kitchenHotRatio = 0.25
)

// Kitchen classifies the lock: "if you can't stand the heat, get out of the
// kitchen". It returns the contention ratio (0 when there are no successes
// yet), whether the lock is hot, and whether a diagnostic line should be
// logged. Rate limiting of that logging is the caller's business; this
// package embeds no time source.
func (s *AcquisitionStats) Kitchen() (contentionRatio float64, isHot, doLog bool) {
	if s.numSuccesses == 0 {
		return 0, false, false
	}
	contentionRatio = float64(s.numSuccessesContended) / float64(s.numSuccesses)
	if s.numSuccesses >= kitchenMinSuccesses && contentionRatio > kitchenHotRatio {
		isHot = true
		doLog = true
	}
	return contentionRatio, isHot, doLog
}

// ReleaseStats aggregates hold times for one lock.
type ReleaseStats struct {
	basic BasicStats
}

// SetUp initializes s.
func (s *ReleaseStats) SetUp() {
	s.basic.SetUp("held")
}

// Sample records the duration one holder kept the lock.
func (s *ReleaseStats) Sample(held time.Duration) {
	s.basic.Sample(held)
}

// Held returns the hold-time aggregate.
func (s *ReleaseStats) Held() *BasicStats {
	return &s.basic
}

// Dump logs the hold-time aggregates for the lock described by d.
func (s *ReleaseStats) Dump(d Describer, logger log.Logger) {
	s.basic.Dump(d, logger)
}

// TearDown releases anything the aggregate owns.
func (s *ReleaseStats) TearDown() {
	s.basic.TearDown()
}
