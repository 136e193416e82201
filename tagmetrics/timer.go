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
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/palantir/go-tagmetrics/accumulator"
	"github.com/palantir/go-tagmetrics/tags"
)

// Histogram counts samples and keeps a distribution of them in an
// accumulator.
type Histogram[A accumulator.Accumulator] struct {
	count atomic.Int64
	acc   A
}

// HistogramSnapshot is a point-in-time copy of a Histogram. Count is the
// total number of samples ever recorded; Sample only covers the samples the
// accumulator retains.
type HistogramSnapshot struct {
	Count  int64
	Sample accumulator.Snapshot
}

func NewHistogram[A accumulator.Accumulator](acc A) *Histogram[A] {
	return &Histogram[A]{acc: acc}
}

func (h *Histogram[A]) Update(v int64) {
	h.count.Add(1)
	h.acc.Update(v)
}

func (h *Histogram[A]) Count() int64 {
	return h.count.Load()
}

func (h *Histogram[A]) Snapshot() HistogramSnapshot {
	return HistogramSnapshot{
		Count:  h.Count(),
		Sample: h.acc.Snapshot(),
	}
}

// Accumulator returns the accumulator backing the histogram.
func (h *Histogram[A]) Accumulator() A {
	return h.acc
}

// TimerMetric is implemented by every Timer instantiation. Exporters use it to
// read timers without knowing their accumulator type.
type TimerMetric interface {
	Tagged
	Snapshot() TimerSnapshot
}

// Timer measures the rate and the distribution of durations of an event.
// Durations are recorded in nanoseconds.
type Timer[A accumulator.Accumulator] struct {
	tags      tags.Tags
	clock     clockwork.Clock
	meter     *Meter
	histogram *Histogram[A]
}

// TimerSnapshot is a point-in-time copy of a Timer.
type TimerSnapshot struct {
	Rate      MeterSnapshot
	Durations HistogramSnapshot
}

func newTimer[A accumulator.Accumulator](t tags.Tags, clock clockwork.Clock, windows []time.Duration, acc A) *Timer[A] {
	return &Timer[A]{
		tags:      t,
		clock:     clock,
		meter:     newMeter(t, clock, windows),
		histogram: NewHistogram(acc),
	}
}

// Record adds one event that took d.
func (t *Timer[A]) Record(d time.Duration) {
	t.histogram.Update(int64(d))
	t.meter.Mark(1)
}

// Time calls fn and records how long it took.
func (t *Timer[A]) Time(fn func()) {
	start := t.clock.Now()
	defer func() { t.Record(t.clock.Since(start)) }()
	fn()
}

// Start returns a Stopwatch that records into the timer when stopped.
func (t *Timer[A]) Start() Stopwatch {
	return Stopwatch{start: t.clock.Now(), clock: t.clock, record: t.Record}
}

func (t *Timer[A]) Meter() *Meter {
	return t.meter
}

func (t *Timer[A]) Histogram() *Histogram[A] {
	return t.histogram
}

func (t *Timer[A]) Snapshot() TimerSnapshot {
	return TimerSnapshot{
		Rate:      t.meter.Snapshot(),
		Durations: t.histogram.Snapshot(),
	}
}

func (t *Timer[A]) tick() {
	t.meter.tick()
}

func (t *Timer[A]) Tags() tags.Tags { return t.tags }
func (t *Timer[A]) Kind() Kind      { return KindTimer }
func (t *Timer[A]) tagged()         {}

// Stopwatch measures a single event for a Timer.
type Stopwatch struct {
	start  time.Time
	clock  clockwork.Clock
	record func(time.Duration)
}

// Stop records the time since the stopwatch was started and returns it.
func (s Stopwatch) Stop() time.Duration {
	d := s.clock.Since(s.start)
	s.record(d)
	return d
}
