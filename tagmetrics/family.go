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
	"github.com/pkg/errors"

	"github.com/palantir/go-tagmetrics/accumulator"
	"github.com/palantir/go-tagmetrics/tags"
)

var (
	// ErrNotFound is returned when a lookup finds no live metric.
	ErrNotFound = errors.New("metric not found")
)

var (
	Int64Counters  = CounterFamily[int64]{newFamily(KindCounter, func(r *Registry) *bucket[Counter[int64]] { return &r.int64Counters })}
	Uint64Counters = CounterFamily[uint64]{newFamily(KindCounter, func(r *Registry) *bucket[Counter[uint64]] { return &r.uint64Counters })}

	Int64Gauges   = GaugeFamily[int64]{newFamily(KindGauge, func(r *Registry) *bucket[Gauge[int64]] { return &r.int64Gauges })}
	Uint64Gauges  = GaugeFamily[uint64]{newFamily(KindGauge, func(r *Registry) *bucket[Gauge[uint64]] { return &r.uint64Gauges })}
	Float64Gauges = GaugeFamily[float64]{newFamily(KindGauge, func(r *Registry) *bucket[Gauge[float64]] { return &r.float64Gauges })}
	StringGauges  = GaugeFamily[string]{newFamily(KindGauge, func(r *Registry) *bucket[Gauge[string]] { return &r.stringGauges })}

	Meters = MeterFamily{newFamily(KindMeter, func(r *Registry) *bucket[Meter] { return &r.meters })}

	SlidingTimers = TimerFamily[*accumulator.SlidingWindow]{
		Family:         newFamily(KindTimer, func(r *Registry) *bucket[Timer[*accumulator.SlidingWindow]] { return &r.slidingTimers }),
		newAccumulator: (*Registry).newSlidingWindow,
	}
	DecayingTimers = TimerFamily[*accumulator.ExpDecay]{
		Family:         newFamily(KindTimer, func(r *Registry) *bucket[Timer[*accumulator.ExpDecay]] { return &r.decayingTimers }),
		newAccumulator: (*Registry).newExpDecay,
	}
)

// families lists every family in the order Select reports them.
var families = []interface {
	appendTagged(r *Registry, pred Predicate, out []Tagged) []Tagged
}{
	Int64Gauges,
	Uint64Gauges,
	Float64Gauges,
	StringGauges,
	Int64Counters,
	Uint64Counters,
	Meters,
	SlidingTimers,
	DecayingTimers,
}

type metric[M any] interface {
	*M
	Tagged
}

// Family identifies the registry bucket that holds one type of metric and
// provides the operations common to every metric type. The package-level
// family variables are the only valid values.
type Family[M any, P metric[M]] struct {
	kind   Kind
	bucket func(*Registry) *bucket[M]
}

func newFamily[M any, P metric[M]](kind Kind, bucket func(*Registry) *bucket[M]) Family[M, P] {
	return Family[M, P]{kind: kind, bucket: bucket}
}

func (f Family[M, P]) Kind() Kind {
	return f.kind
}

// Tags returns the complete tag set for a metric of this family.
func (f Family[M, P]) Tags(name string, extra map[string]string) tags.Tags {
	return tags.New(name, extra).With(tags.TypeKey, string(f.kind))
}

// Get returns the live metric with the given name and tags. It returns an
// error wrapping ErrNotFound if the metric was never created, was removed, or
// has been released by every holder.
func (f Family[M, P]) Get(r *Registry, name string, extra map[string]string) (P, error) {
	t := f.Tags(name, extra)
	if m := f.bucket(r).get(t); m != nil {
		return P(m), nil
	}
	return nil, errors.Wrapf(ErrNotFound, "%s", t)
}

// Remove deletes the registry entry for the metric and reports whether one
// existed. Callers that hold the metric may continue to use it.
func (f Family[M, P]) Remove(r *Registry, name string, extra map[string]string) bool {
	return f.bucket(r).remove(f.Tags(name, extra))
}

// Query returns the live metrics that match pred, ordered by tags. Entries
// for released metrics are deleted as a side effect.
func (f Family[M, P]) Query(r *Registry, pred Predicate) []P {
	ms := f.bucket(r).collect()

	out := make([]P, 0, len(ms))
	for _, m := range ms {
		if p := P(m); pred.match(p) {
			out = append(out, p)
		}
	}
	return out
}

// All returns every live metric in the family.
func (f Family[M, P]) All(r *Registry) []P {
	return f.Query(r, nil)
}

func (f Family[M, P]) appendTagged(r *Registry, pred Predicate, out []Tagged) []Tagged {
	for _, m := range f.Query(r, pred) {
		out = append(out, m)
	}
	return out
}

func (f Family[M, P]) getOrCreate(r *Registry, name string, extra map[string]string, create func(tags.Tags) *M) P {
	t := f.Tags(name, extra)
	return P(f.bucket(r).getOrCreate(t, func() *M { return create(t) }))
}

type CounterFamily[T CounterValue] struct {
	Family[Counter[T], *Counter[T]]
}

// GetOrCreate returns the counter with the given name and tags, creating it
// if necessary.
func (f CounterFamily[T]) GetOrCreate(r *Registry, name string, extra map[string]string) *Counter[T] {
	return f.getOrCreate(r, name, extra, newCounter[T])
}

type GaugeFamily[T GaugeValue] struct {
	Family[Gauge[T], *Gauge[T]]
}

// Register returns the gauge with the given name and tags, creating it with
// fn if necessary. If a live gauge already exists, it is returned unchanged
// and fn is ignored.
func (f GaugeFamily[T]) Register(r *Registry, name string, extra map[string]string, fn GaugeFunc[T]) (*Gauge[T], error) {
	if fn == nil {
		return nil, errors.Errorf("gauge %s: function must not be nil", name)
	}
	return f.getOrCreate(r, name, extra, func(t tags.Tags) *Gauge[T] {
		return newGauge(t, fn)
	}), nil
}

type MeterFamily struct {
	Family[Meter, *Meter]
}

// GetOrCreate returns the meter with the given name and tags, creating it if
// necessary.
func (f MeterFamily) GetOrCreate(r *Registry, name string, extra map[string]string) *Meter {
	return f.getOrCreate(r, name, extra, func(t tags.Tags) *Meter {
		return newMeter(t, r.clock, r.config.MeterWindows)
	})
}

type TimerFamily[A accumulator.Accumulator] struct {
	Family[Timer[A], *Timer[A]]
	newAccumulator func(*Registry) A
}

// GetOrCreate returns the timer with the given name and tags, creating it if
// necessary.
func (f TimerFamily[A]) GetOrCreate(r *Registry, name string, extra map[string]string) *Timer[A] {
	return f.getOrCreate(r, name, extra, func(t tags.Tags) *Timer[A] {
		return newTimer(t, r.clock, r.config.MeterWindows, f.newAccumulator(r))
	})
}
