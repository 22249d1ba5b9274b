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

package log

import (
	"fmt"
	"strings"
	"testing"
	"time"
)

type testWriter struct {
	lines []string
	fail  bool
}

func (w *testWriter) Write(bytes []byte) (int, error) {
	if w.fail {
		return 0, fmt.Errorf("simulated failure")
	}
	w.lines = append(w.lines, string(bytes))
	return len(bytes), nil
}

func TestDropMessages(t *testing.T) {
	tw := &testWriter{}
	w := Writer{Next: tw}
	if _, err := w.Write([]byte("line 1\n")); err != nil {
		t.Fatalf("Write failed, err: %v", err)
	}

	tw.fail = true
	if _, err := w.Write([]byte("error\n")); err == nil {
		t.Fatalf("Write should have failed")
	}
	if _, err := w.Write([]byte("error\n")); err == nil {
		t.Fatalf("Write should have failed")
	}

	tw.fail = false
	w.Emit(0, Info, time.Now(), "line 2\n")

	expected := []string{
		"line 1\n",
		"\n*** Dropped 2 log messages ***\n",
		"line 2\n",
	}
	if len(tw.lines) != len(expected) {
		t.Fatalf("Writer should have logged %d lines, got: %v, expected: %v", len(expected), tw.lines, expected)
	}
	for i, l := range tw.lines {
		if l != expected[i] {
			t.Fatalf("line %d doesn't match, got: %v, expected: %v", i, l, expected[i])
		}
	}
}

func TestLevels(t *testing.T) {
	tw := &testWriter{}
	logger := BasicLogger{Level: Info, Emitter: &Writer{Next: tw}}

	logger.Debugf("should be dropped")
	if len(tw.lines) != 0 {
		t.Fatalf("debug line logged at info level: %v", tw.lines)
	}

	logger.Infof("should be logged")
	logger.Warningf("should be logged")
	if len(tw.lines) != 2 {
		t.Fatalf("expected 2 lines, got: %v", tw.lines)
	}

	logger.SetLevel(Debug)
	if !logger.IsLogging(Debug) {
		t.Fatalf("IsLogging(Debug) = false after SetLevel(Debug)")
	}
	logger.Debugf("now visible")
	if len(tw.lines) != 3 {
		t.Fatalf("expected 3 lines, got: %v", tw.lines)
	}
}

func TestJSONEmitter(t *testing.T) {
	tw := &testWriter{}
	e := JSONEmitter{&Writer{Next: tw}}
	e.Emit(0, Info, time.Now(), "hello %d", 42)

	if len(tw.lines) != 1 {
		t.Fatalf("expected 1 line, got: %v", tw.lines)
	}
	if !strings.Contains(tw.lines[0], `"msg":"hello 42"`) {
		t.Errorf("message missing from %q", tw.lines[0])
	}
	if !strings.Contains(tw.lines[0], `"level":"info"`) {
		t.Errorf("level missing from %q", tw.lines[0])
	}
	if !strings.Contains(tw.lines[0], `"where":"log_test.go:`) {
		t.Errorf("emission site missing from %q", tw.lines[0])
	}
	if !strings.HasSuffix(tw.lines[0], "\n") {
		t.Errorf("line %q not newline terminated", tw.lines[0])
	}
}

func TestEmitSingleWrite(t *testing.T) {
	tw := &testWriter{}
	w := Writer{Next: tw}

	// A statement without a trailing newline still arrives as exactly one
	// write, so concurrent emitters cannot interleave mid-line.
	w.Emit(0, Info, time.Now(), "no newline")
	if len(tw.lines) != 1 {
		t.Fatalf("expected 1 write, got: %v", tw.lines)
	}
	if tw.lines[0] != "no newline\n" {
		t.Errorf("line = %q, want %q", tw.lines[0], "no newline\n")
	}
}

func TestRateLimitedLogger(t *testing.T) {
	tw := &testWriter{}
	logger := BasicLogger{Level: Info, Emitter: &Writer{Next: tw}}
	rl := RateLimitedLogger(&logger, time.Hour)

	rl.Infof("first")
	rl.Infof("second")
	rl.Infof("third")

	// Only the first message fits in the rate budget.
	if len(tw.lines) != 1 {
		t.Fatalf("expected 1 line, got: %v", tw.lines)
	}
}
