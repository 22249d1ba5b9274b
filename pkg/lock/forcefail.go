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

import "sync/atomic"

// tryAcquireForceFail, when set, is consulted on every try-acquire so that
// tests can exercise the failure path of callers that normally always win
// the lock.
var tryAcquireForceFail atomic.Pointer[func(name string) bool]

// SetTryAcquireForceFail installs fn as the try-acquire fault injector.
// When fn returns true for a lock name, that try-acquire fails without
// touching the lock. Passing nil removes the injector. Intended for tests;
// the hook costs one atomic load per try-acquire when unset.
func SetTryAcquireForceFail(fn func(name string) bool) {
	if fn == nil {
		tryAcquireForceFail.Store(nil)
		return
	}
	tryAcquireForceFail.Store(&fn)
}

// TryAcquireFail reports whether a try-acquire of the named lock should be
// artificially failed.
func TryAcquireFail(name string) bool {
	if !instrumentationEnabled {
		return false
	}
	fn := tryAcquireForceFail.Load()
	return fn != nil && (*fn)(name)
}
