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

package accumulator

import (
	"container/heap"
	"math"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// ExpDecay is a fixed-size reservoir that uses forward decay to favor recent
// samples. Each sample is assigned the weight exp(alpha * age), where age is
// measured from a reference time, divided by a uniform random number. When
// the reservoir is full a new sample replaces the entry with the lowest
// priority if its own priority is higher.
//
// Priorities are stored as logarithms so that moving the reference time
// forward is a subtraction that keeps every priority finite and leaves their
// relative order unchanged.
type ExpDecay struct {
	clock            clockwork.Clock
	size             int
	alpha            float64
	rescaleThreshold time.Duration

	mu          sync.Mutex
	rand        *rand.Rand
	anchor      time.Time
	nextRescale time.Time
	entries     priorityHeap
}

// NewExpDecay returns a reservoir holding at most size samples with decay
// factor alpha. Non-positive arguments are replaced by DefaultSize and
// DefaultAlpha.
func NewExpDecay(size int, alpha float64, opts ...Option) *ExpDecay {
	if size <= 0 {
		size = DefaultSize
	}
	if alpha <= 0 {
		alpha = DefaultAlpha
	}

	o := applyOptions(opts)
	now := o.clock.Now()
	return &ExpDecay{
		clock:            o.clock,
		size:             size,
		alpha:            alpha,
		rescaleThreshold: o.rescaleThreshold,
		rand:             rand.New(o.source),
		anchor:           now,
		nextRescale:      now.Add(o.rescaleThreshold),
		entries:          make(priorityHeap, 0, size),
	}
}

func (s *ExpDecay) Update(v int64) {
	now := s.clock.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	if !now.Before(s.nextRescale) {
		s.rescale(now)
	}

	// 1-Float64 is in (0, 1], so the logarithm is finite
	u := 1 - s.rand.Float64()
	p := s.alpha*now.Sub(s.anchor).Seconds() - math.Log(u)

	if len(s.entries) < s.size {
		heap.Push(&s.entries, entry{priority: p, value: v})
		return
	}
	if p > s.entries[0].priority {
		s.entries[0] = entry{priority: p, value: v}
		heap.Fix(&s.entries, 0)
	}
}

func (s *ExpDecay) Snapshot() Snapshot {
	s.mu.Lock()
	values := make([]int64, len(s.entries))
	for i, e := range s.entries {
		values[i] = e.value
	}
	s.mu.Unlock()

	return NewSnapshot(values)
}

// Size returns the number of retained samples.
func (s *ExpDecay) Size() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// rescale moves the reference time to now. Scaling every weight by
// exp(-alpha * delta) is a constant shift of the log priorities. Callers must
// hold the lock.
func (s *ExpDecay) rescale(now time.Time) {
	shift := s.alpha * now.Sub(s.anchor).Seconds()
	for i := range s.entries {
		s.entries[i].priority -= shift
	}
	s.anchor = now
	s.nextRescale = now.Add(s.rescaleThreshold)
}

type entry struct {
	priority float64
	value    int64
}

// priorityHeap is a min-heap on priority.
type priorityHeap []entry

func (h priorityHeap) Len() int           { return len(h) }
func (h priorityHeap) Less(i, j int) bool { return h[i].priority < h[j].priority }
func (h priorityHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }

func (h *priorityHeap) Push(x any) {
	*h = append(*h, x.(entry))
}

func (h *priorityHeap) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	*h = old[:n-1]
	return e
}
