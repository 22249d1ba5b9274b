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

// Package goid provides the ID of the current goroutine.
//
// Goroutine IDs are unique and stable for the life of a goroutine and are
// never reused, which is exactly the contract lock ownership and rank
// tracking need from a caller identity.
package goid

import (
	"github.com/petermattis/goid"
)

// None is a reserved value that is never a valid goroutine ID. It is used as
// the "no owner" sentinel.
const None int64 = 0

// Get returns the ID of the current goroutine.
//
//go:nosplit
func Get() int64 {
	return goid.Get()
}
