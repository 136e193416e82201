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
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

type sample struct {
	at    time.Time
	value int64
}

// SlidingWindow retains the most recent samples. It always keeps at most
// size samples; when created with WithWindow it also drops samples older
// than the window.
type SlidingWindow struct {
	clock  clockwork.Clock
	window time.Duration

	mu    sync.Mutex
	ring  []sample
	start int
	n     int
}

// NewSlidingWindow returns a window that keeps the last size samples. If size
// is not positive, DefaultSize is used.
func NewSlidingWindow(size int, opts ...Option) *SlidingWindow {
	if size <= 0 {
		size = DefaultSize
	}
	o := applyOptions(opts)
	return &SlidingWindow{
		clock:  o.clock,
		window: o.window,
		ring:   make([]sample, size),
	}
}

// NewSlidingTimeWindow returns a window that keeps samples recorded in the
// last d, up to DefaultSize samples.
func NewSlidingTimeWindow(d time.Duration, opts ...Option) *SlidingWindow {
	return NewSlidingWindow(DefaultSize, append(opts, WithWindow(d))...)
}

func (w *SlidingWindow) Update(v int64) {
	now := w.clock.Now()

	w.mu.Lock()
	defer w.mu.Unlock()

	w.evict(now)
	if w.n == len(w.ring) {
		w.ring[w.start] = sample{at: now, value: v}
		w.start = (w.start + 1) % len(w.ring)
		return
	}
	w.ring[(w.start+w.n)%len(w.ring)] = sample{at: now, value: v}
	w.n++
}

func (w *SlidingWindow) Snapshot() Snapshot {
	now := w.clock.Now()

	w.mu.Lock()
	w.evict(now)
	values := make([]int64, w.n)
	for i := range values {
		values[i] = w.ring[(w.start+i)%len(w.ring)].value
	}
	w.mu.Unlock()

	return NewSnapshot(values)
}

// Size returns the number of retained samples.
func (w *SlidingWindow) Size() int {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.evict(w.clock.Now())
	return w.n
}

// evict drops samples that fall outside the time window. Callers must hold
// the lock.
func (w *SlidingWindow) evict(now time.Time) {
	if w.window <= 0 {
		return
	}
	cutoff := now.Add(-w.window)
	for w.n > 0 && w.ring[w.start].at.Before(cutoff) {
		w.ring[w.start] = sample{}
		w.start = (w.start + 1) % len(w.ring)
		w.n--
	}
}
