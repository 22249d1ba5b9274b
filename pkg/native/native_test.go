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
	"fmt"
	"runtime"
	"sync"
	"testing"
	"time"
)

// mutexes returns one instance of every Mutex implementation compiled on
// this platform, plus whatever New picks.
func mutexes(t *testing.T) map[string]Mutex {
	t.Helper()
	ms := map[string]Mutex{
		"channel": &ChannelMutex{},
		"default": New(),
	}
	addPlatformMutexes(ms)
	for name, m := range ms {
		if err := m.Init(); err != nil {
			t.Fatalf("%s: Init failed: %v", name, err)
		}
	}
	return ms
}

func TestBasicLock(t *testing.T) {
	for name, m := range mutexes(t) {
		t.Run(name, func(t *testing.T) {
			if err := m.Lock(); err != nil {
				t.Fatalf("Lock failed: %v", err)
			}

			// Try blocking lock the mutex from a different
			// goroutine. This must not succeed because the mutex
			// is held.
			ch := make(chan struct{}, 1)
			go func() {
				m.Lock()
				ch <- struct{}{}
				m.Unlock()
				ch <- struct{}{}
			}()

			select {
			case <-ch:
				t.Fatalf("Lock succeeded on locked mutex")
			case <-time.After(100 * time.Millisecond):
			}

			// Unlock the mutex and make sure that the goroutine
			// waiting on Lock() unblocks and succeeds.
			if err := m.Unlock(); err != nil {
				t.Fatalf("Unlock failed: %v", err)
			}

			select {
			case <-ch:
			case <-time.After(100 * time.Millisecond):
				t.Fatalf("Lock failed to acquire unlocked mutex")
			}

			// Make sure we can lock and unlock again.
			<-ch
			m.Lock()
			m.Unlock()
		})
	}
}

func TestTryLock(t *testing.T) {
	for name, m := range mutexes(t) {
		t.Run(name, func(t *testing.T) {
			// Try to lock. It should succeed.
			if err := m.TryLock(); err != nil {
				t.Fatalf("TryLock failed on unlocked mutex: %v", err)
			}

			// Try to lock again, it should now fail.
			if err := m.TryLock(); err != ErrBusy {
				t.Fatalf("TryLock on locked mutex: got %v, want ErrBusy", err)
			}

			if err := m.Unlock(); err != nil {
				t.Fatalf("Unlock failed: %v", err)
			}

			if err := m.TryLock(); err != nil {
				t.Fatalf("TryLock failed after Unlock: %v", err)
			}
			m.Unlock()
		})
	}
}

func TestUnlockNotHeld(t *testing.T) {
	for name, m := range mutexes(t) {
		t.Run(name, func(t *testing.T) {
			if err := m.Unlock(); err != ErrNotOwned {
				t.Fatalf("Unlock of unlocked mutex: got %v, want ErrNotOwned", err)
			}
		})
	}
}

func TestDestroyBusy(t *testing.T) {
	for name, m := range mutexes(t) {
		t.Run(name, func(t *testing.T) {
			m.Lock()
			if err := m.Destroy(); err != ErrBusy {
				t.Fatalf("Destroy of locked mutex: got %v, want ErrBusy", err)
			}
			m.Unlock()
			if err := m.Destroy(); err != nil {
				t.Fatalf("Destroy failed: %v", err)
			}
		})
	}
}

func TestMutualExclusion(t *testing.T) {
	for name, m := range mutexes(t) {
		t.Run(name, func(t *testing.T) {
			// Test mutual exclusion by running "gr" goroutines
			// concurrently, and have each one increment a counter
			// "iters" times within the critical section
			// established by the mutex.
			//
			// If at the end the counter is not gr * iters, then we
			// know that goroutines ran concurrently within the
			// critical section.
			const gr = 100
			const iters = 10000
			v := 0
			var wg sync.WaitGroup
			for i := 0; i < gr; i++ {
				wg.Add(1)
				go func() {
					for j := 0; j < iters; j++ {
						m.Lock()
						v++
						m.Unlock()
					}
					wg.Done()
				}()
			}

			wg.Wait()

			if v != gr*iters {
				t.Fatalf("Bad count: got %v, want %v", v, gr*iters)
			}
		})
	}
}

// BenchmarkNativeMutex is the contention scaling benchmark from the channel
// mutex's ancestry, run against the platform default.
func BenchmarkNativeMutex(b *testing.B) {
	for n, max := 1, 4*runtime.GOMAXPROCS(0); n > 0 && n <= max; n *= 2 {
		b.Run(fmt.Sprintf("%d", n), func(b *testing.B) {
			m := New()
			m.Init()

			var ready sync.WaitGroup
			begin := make(chan struct{})
			var end sync.WaitGroup
			for i := 0; i < n; i++ {
				ready.Add(1)
				end.Add(1)
				go func() {
					ready.Done()
					<-begin
					for j := 0; j < b.N; j++ {
						m.Lock()
						m.Unlock()
					}
					end.Done()
				}()
			}

			ready.Wait()
			b.ResetTimer()
			close(begin)
			end.Wait()
		})
	}
}
