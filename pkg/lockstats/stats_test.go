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
	"fmt"
	"math/rand"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"ulock.dev/ulock/pkg/log"
)

type testDescriber struct{}

func (testDescriber) LockName() string { return "test" }
func (testDescriber) LockID() uint64   { return 7 }

// captureLogger records every line logged through it.
type captureLogger struct {
	lines []string
}

func (c *captureLogger) Debugf(format string, v ...any)   { c.append(format, v...) }
func (c *captureLogger) Infof(format string, v ...any)    { c.append(format, v...) }
func (c *captureLogger) Warningf(format string, v ...any) { c.append(format, v...) }
func (c *captureLogger) IsLogging(log.Level) bool         { return true }

func (c *captureLogger) append(format string, v ...any) {
	c.lines = append(c.lines, fmt.Sprintf(format, v...))
}

func TestBasicStats(t *testing.T) {
	var s BasicStats
	s.SetUp("acquisition")

	for _, d := range []time.Duration{time.Microsecond, 2 * time.Microsecond, 3 * time.Microsecond} {
		s.Sample(d)
	}

	if got := s.NumSamples(); got != 3 {
		t.Errorf("NumSamples = %d, want 3", got)
	}
	if got, want := s.Mean(), 2000.0; got != want {
		t.Errorf("Mean = %v, want %v", got, want)
	}
	if s.minTime != 1000 || s.maxTime != 3000 {
		t.Errorf("min/max = %d/%d, want 1000/3000", s.minTime, s.maxTime)
	}
	// Population stddev of {1000, 2000, 3000} is sqrt(2/3)*1000.
	if got := s.StdDev(); got < 816 || got > 817 {
		t.Errorf("StdDev = %v, want ~816.5", got)
	}
}

func TestBasicStatsEmpty(t *testing.T) {
	var s BasicStats
	s.SetUp("held")

	if got := s.Mean(); got != 0 {
		t.Errorf("Mean of empty population = %v, want 0", got)
	}
	if got := s.StdDev(); got != 0 {
		t.Errorf("StdDev of empty population = %v, want 0", got)
	}
}

func TestAcquisitionConservation(t *testing.T) {
	var s AcquisitionStats
	s.SetUp()

	rng := rand.New(rand.NewSource(1))
	for i := 0; i < 10000; i++ {
		acquired := rng.Intn(4) != 0
		contended := acquired && rng.Intn(3) == 0
		s.Sample(acquired, contended, time.Duration(rng.Intn(1000))*time.Nanosecond)
	}

	if s.numAttempts < s.numSuccesses {
		t.Errorf("attempts %d < successes %d", s.numAttempts, s.numSuccesses)
	}
	if s.numSuccesses < s.numSuccessesContended {
		t.Errorf("successes %d < contended successes %d", s.numSuccesses, s.numSuccessesContended)
	}
	if s.successContentionTime > s.totalContentionTime {
		t.Errorf("successContentionTime %d > totalContentionTime %d",
			s.successContentionTime, s.totalContentionTime)
	}
	if s.basic.NumSamples() != s.numSuccesses {
		t.Errorf("latency samples %d != successes %d", s.basic.NumSamples(), s.numSuccesses)
	}
}

func TestKitchen(t *testing.T) {
	var s AcquisitionStats
	s.SetUp()

	// No successes: the ratio is defined as zero.
	ratio, isHot, doLog := s.Kitchen()
	if ratio != 0 || isHot || doLog {
		t.Errorf("Kitchen on empty stats = (%v, %v, %v), want (0, false, false)", ratio, isHot, doLog)
	}

	// A small population is never hot, however contended.
	for i := 0; i < 10; i++ {
		s.Sample(true, true, time.Microsecond)
	}
	if _, isHot, _ := s.Kitchen(); isHot {
		t.Errorf("hot with only 10 successes")
	}

	// Push past the minimum population with a 40% contended share.
	s.SetUp()
	for i := 0; i < 200; i++ {
		s.Sample(true, i%5 < 2, time.Microsecond)
	}
	ratio, isHot, doLog = s.Kitchen()
	if ratio != 0.4 {
		t.Errorf("ratio = %v, want 0.4", ratio)
	}
	if !isHot || !doLog {
		t.Errorf("Kitchen = (%v, %v), want hot and logging", isHot, doLog)
	}

	// A mostly-uncontended lock is not hot.
	s.SetUp()
	for i := 0; i < 200; i++ {
		s.Sample(true, i%10 == 0, time.Microsecond)
	}
	if _, isHot, _ := s.Kitchen(); isHot {
		t.Errorf("hot at 10%% contention")
	}
}

func TestAcquisitionDump(t *testing.T) {
	var s AcquisitionStats
	s.SetUp()
	s.Sample(true, false, time.Microsecond)
	s.Sample(true, true, 2*time.Microsecond)
	s.Sample(false, true, 3*time.Microsecond)

	cl := &captureLogger{}
	s.Dump(testDescriber{}, cl)

	if len(cl.lines) != 2 {
		t.Fatalf("Dump logged %d lines, want 2: %v", len(cl.lines), cl.lines)
	}
	if !strings.Contains(cl.lines[0], "attempts=3 successes=2 contended=1") {
		t.Errorf("unexpected dump line: %q", cl.lines[0])
	}
	if !strings.Contains(cl.lines[0], "contentionTime=2000ns/6000ns") {
		t.Errorf("unexpected contention times: %q", cl.lines[0])
	}
}

func TestTearDownSymmetry(t *testing.T) {
	var s AcquisitionStats
	s.SetUp()
	s.Sample(true, true, time.Millisecond)
	s.TearDown()

	var fresh AcquisitionStats
	fresh.SetUp()
	fresh.TearDown()
	if diff := cmp.Diff(fresh, s, cmp.AllowUnexported(AcquisitionStats{}, BasicStats{})); diff != "" {
		t.Errorf("TearDown did not reset stats (-want +got):\n%s", diff)
	}
}

func TestReleaseStats(t *testing.T) {
	var s ReleaseStats
	s.SetUp()
	s.Sample(5 * time.Microsecond)
	s.Sample(15 * time.Microsecond)

	if got := s.Held().NumSamples(); got != 2 {
		t.Errorf("NumSamples = %d, want 2", got)
	}
	if got, want := s.Held().Mean(), 10000.0; got != want {
		t.Errorf("Mean = %v, want %v", got, want)
	}
}
