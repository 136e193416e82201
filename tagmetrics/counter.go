// Copyright 2026 Palantir Technologies, Inc.
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

package tagmetrics

import (
	"sync/atomic"

	"github.com/palantir/go-tagmetrics/tags"
)

// CounterValue is the set of integer types a Counter can hold.
type CounterValue interface {
	int64 | uint64
}

// Counter is an atomic integer shared by every holder of the metric.
type Counter[T CounterValue] struct {
	tags tags.Tags

	// both value types are stored as two's complement bits, so one atomic
	// add implements increments and decrements for either
	v atomic.Uint64
}

func newCounter[T CounterValue](t tags.Tags) *Counter[T] {
	return &Counter[T]{tags: t}
}

func (c *Counter[T]) Inc() {
	c.Add(1)
}

// Dec subtracts one from the counter. Unsigned counters wrap around zero.
func (c *Counter[T]) Dec() {
	c.v.Add(^uint64(0))
}

func (c *Counter[T]) Add(n T) {
	c.v.Add(uint64(n))
}

func (c *Counter[T]) Load() T {
	return T(c.v.Load())
}

func (c *Counter[T]) Store(n T) {
	c.v.Store(uint64(n))
}

func (c *Counter[T]) Tags() tags.Tags { return c.tags }
func (c *Counter[T]) Kind() Kind      { return KindCounter }
func (c *Counter[T]) tagged()         {}
