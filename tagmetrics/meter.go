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
	"math"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/palantir/go-tagmetrics/tags"
)

// Meter counts events and tracks their rate as exponentially-weighted moving
// averages over one or more windows. Marking is lock-free; the averages only
// change when the registry's processor ticks the meter. Until the first tick,
// rates report the events marked so far divided by the time since creation.
type Meter struct {
	tags  tags.Tags
	clock clockwork.Clock
	start time.Time

	count     atomic.Int64
	uncounted atomic.Int64

	mu       sync.Mutex
	lastTick time.Time
	rates    []ewma
}

// MeterSnapshot is a point-in-time copy of a Meter.
type MeterSnapshot struct {
	Count    int64
	MeanRate float64
	Windows  []time.Duration
	Rates    []float64
}

// Rate returns the average rate for window, or zero if the meter does not
// track that window.
func (s MeterSnapshot) Rate(window time.Duration) float64 {
	if i := slices.Index(s.Windows, window); i >= 0 {
		return s.Rates[i]
	}
	return 0
}

func newMeter(t tags.Tags, clock clockwork.Clock, windows []time.Duration) *Meter {
	now := clock.Now()
	m := &Meter{
		tags:     t,
		clock:    clock,
		start:    now,
		lastTick: now,
		rates:    make([]ewma, len(windows)),
	}
	for i, w := range windows {
		m.rates[i].window = w
	}
	return m
}

// Mark records n events.
func (m *Meter) Mark(n int64) {
	m.count.Add(n)
	m.uncounted.Add(n)
}

// Count returns the total number of events.
func (m *Meter) Count() int64 {
	return m.count.Load()
}

// MeanRate returns the number of events per second since the meter was
// created.
func (m *Meter) MeanRate() float64 {
	elapsed := m.clock.Since(m.start).Seconds()
	if elapsed <= 0 {
		return 0
	}
	return float64(m.Count()) / elapsed
}

// Rate returns the moving average events per second over window, or zero if
// the meter does not track that window.
func (m *Meter) Rate(window time.Duration) float64 {
	now := m.clock.Now()

	m.mu.Lock()
	defer m.mu.Unlock()

	for _, r := range m.rates {
		if r.window == window {
			return m.currentRate(r, now)
		}
	}
	return 0
}

func (m *Meter) Rate1() float64  { return m.Rate(time.Minute) }
func (m *Meter) Rate5() float64  { return m.Rate(5 * time.Minute) }
func (m *Meter) Rate15() float64 { return m.Rate(15 * time.Minute) }

func (m *Meter) Snapshot() MeterSnapshot {
	s := MeterSnapshot{
		Count:    m.Count(),
		MeanRate: m.MeanRate(),
	}
	now := m.clock.Now()

	m.mu.Lock()
	defer m.mu.Unlock()

	s.Windows = make([]time.Duration, len(m.rates))
	s.Rates = make([]float64, len(m.rates))
	for i, r := range m.rates {
		s.Windows[i] = r.window
		s.Rates[i] = m.currentRate(r, now)
	}
	return s
}

// currentRate returns the average of r, or the pending instantaneous rate if
// r has not been ticked yet. The caller must hold m.mu.
func (m *Meter) currentRate(r ewma, now time.Time) float64 {
	if r.init {
		return r.rate
	}
	elapsed := now.Sub(m.lastTick).Seconds()
	if elapsed <= 0 {
		return 0
	}
	return float64(m.uncounted.Load()) / elapsed
}

// tick folds the events marked since the previous tick into the moving
// averages. It does nothing if no time has passed.
func (m *Meter) tick() {
	now := m.clock.Now()

	m.mu.Lock()
	defer m.mu.Unlock()

	elapsed := now.Sub(m.lastTick)
	if elapsed <= 0 {
		return
	}

	instant := float64(m.uncounted.Swap(0)) / elapsed.Seconds()
	for i := range m.rates {
		m.rates[i].update(instant, elapsed)
	}
	m.lastTick = now
}

func (m *Meter) Tags() tags.Tags { return m.tags }
func (m *Meter) Kind() Kind      { return KindMeter }
func (m *Meter) tagged()         {}

type ewma struct {
	window time.Duration
	rate   float64
	init   bool
}

func (e *ewma) update(instant float64, elapsed time.Duration) {
	if !e.init {
		e.rate = instant
		e.init = true
		return
	}
	alpha := 1 - math.Exp(-elapsed.Seconds()/e.window.Seconds())
	e.rate += alpha * (instant - e.rate)
}
