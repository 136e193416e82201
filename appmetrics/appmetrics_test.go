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

package appmetrics

import (
	"runtime"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/palantir/go-tagmetrics/accumulator"
	"github.com/palantir/go-tagmetrics/tagmetrics"
)

type SimpleMetrics struct {
	FooCount *tagmetrics.Counter[int64]                    `metric:"foo.count"`
	BarCount *tagmetrics.Counter[uint64]                   `metric:"bar.count" metric-tags:"role:server, primary"`
	Requests *tagmetrics.Meter                             `metric:"requests"`
	Latency  *tagmetrics.Timer[*accumulator.SlidingWindow] `metric:"latency"`
	Decaying *tagmetrics.Timer[*accumulator.ExpDecay]      `metric:"latency.decaying"`

	Untagged *tagmetrics.Counter[int64]
}

type FunctionalMetrics struct {
	ActiveWorkers *tagmetrics.Gauge[int64]   `metric:"active_workers"`
	Load          *tagmetrics.Gauge[float64] `metric:"load"`
	Version       *tagmetrics.Gauge[string]  `metric:"version"`

	ComputeVersion func() string

	workers int64
}

func (m *FunctionalMetrics) ComputeActiveWorkers() int64 {
	m.workers++
	return m.workers
}

func (m *FunctionalMetrics) ComputeLoad() (float64, error) {
	if m.workers == 0 {
		return 0, errors.New("no workers")
	}
	return float64(m.workers) / 2, nil
}

type TaggedMetrics struct {
	Responses Tagged[*tagmetrics.Counter[int64]]                    `metric:"responses" metric-tags:"service:api"`
	Durations Tagged[*tagmetrics.Timer[*accumulator.SlidingWindow]] `metric:"durations"`
}

type MissingFunctionMetrics struct {
	Queue *tagmetrics.Gauge[int64] `metric:"queue"`
}

type WrongFunctionMetrics struct {
	Queue *tagmetrics.Gauge[int64] `metric:"queue"`
}

func (m *WrongFunctionMetrics) ComputeQueue() float64 {
	return 0
}

type InvalidTypeMetrics struct {
	Count int64 `metric:"count"`
}

type TaggedGaugeMetrics struct {
	Queue Tagged[*tagmetrics.Gauge[int64]] `metric:"queue"`
}

func newTestRegistry(t *testing.T) *tagmetrics.Registry {
	r := tagmetrics.NewRegistry(tagmetrics.WithClock(clockwork.NewFakeClock()))
	t.Cleanup(func() { _ = r.Close() })
	return r
}

func TestNew(t *testing.T) {
	t.Run("simple", func(t *testing.T) {
		r := newTestRegistry(t)
		m := New[SimpleMetrics](r)

		m.FooCount.Inc()
		m.BarCount.Add(2)
		m.Requests.Mark(1)
		m.Latency.Record(time.Millisecond)
		m.Decaying.Record(time.Millisecond)
		assert.Nil(t, m.Untagged)

		assert.Same(t, m.FooCount, r.Counter("foo.count", nil))
		assert.Same(t, m.BarCount, r.Uint64Counter("bar.count", map[string]string{"role": "server", "primary": ""}))
		assert.Same(t, m.Requests, r.Meter("requests", nil))
		assert.Same(t, m.Latency, r.Timer("latency", nil))
		assert.Same(t, m.Decaying, r.DecayingTimer("latency.decaying", nil))

		assert.Equal(t, "bar.count[primary,role:server,type:counter]", m.BarCount.Tags().String())
	})

	t.Run("sharedRegistry", func(t *testing.T) {
		r := newTestRegistry(t)
		a := New[SimpleMetrics](r)
		b := New[SimpleMetrics](r)

		a.FooCount.Inc()
		b.FooCount.Inc()
		assert.Same(t, a.FooCount, b.FooCount)
		assert.Equal(t, int64(2), a.FooCount.Load())
	})

	t.Run("functional", func(t *testing.T) {
		r := newTestRegistry(t)
		m := New[FunctionalMetrics](r)

		_, err := m.Load.Value()
		assert.ErrorContains(t, err, "no workers")

		v, err := m.ActiveWorkers.Value()
		require.NoError(t, err)
		assert.Equal(t, int64(1), v)

		v, err = m.ActiveWorkers.Value()
		require.NoError(t, err)
		assert.Equal(t, int64(2), v)

		load, err := m.Load.Value()
		require.NoError(t, err)
		assert.Equal(t, 1.0, load)
	})

	t.Run("functionalField", func(t *testing.T) {
		r := newTestRegistry(t)
		m := New[FunctionalMetrics](r)

		_, err := m.Version.Value()
		assert.ErrorContains(t, err, "function is not set")

		m.ComputeVersion = func() string { return "1.2.0" }
		v, err := m.Version.Value()
		require.NoError(t, err)
		assert.Equal(t, "1.2.0", v)
	})

	t.Run("tagged", func(t *testing.T) {
		r := newTestRegistry(t)
		m := New[TaggedMetrics](r)

		ok := m.Responses.Tag("status:200")
		ok.Inc()
		assert.Same(t, ok, m.Responses.Tag(" status:200 ", ""))
		assert.NotSame(t, ok, m.Responses.Tag("status:500"))
		assert.Same(t, ok, m.Responses.Tag("status:200", "type:histogram"))

		assert.Equal(t, "responses[service:api,status:200,type:counter]", ok.Tags().String())
		assert.Same(t, ok, r.Counter("responses", map[string]string{"service": "api", "status": "200"}))

		m.Durations.Tag("route:/", "cached").Record(time.Second)
		assert.Equal(t, "durations[cached,route:/,type:timer]", m.Durations.Tag("cached", "route:/").Tags().String())
	})

	t.Run("taggedBareMetric", func(t *testing.T) {
		r := newTestRegistry(t)
		m := New[TaggedMetrics](r)

		var names []string
		for _, metric := range r.Select(nil) {
			names = append(names, metric.Tags().String())
		}
		assert.Equal(t, []string{"responses[service:api,type:counter]", "durations[type:timer]"}, names)
		runtime.KeepAlive(m)
	})

	t.Run("keepsMetricsAlive", func(t *testing.T) {
		r := newTestRegistry(t)
		m := New[TaggedMetrics](r)
		m.Responses.Tag("status:200").Add(3)

		runtime.GC()
		runtime.GC()

		c, err := tagmetrics.Int64Counters.Get(r, "responses", map[string]string{"service": "api", "status": "200"})
		require.NoError(t, err)
		assert.Equal(t, int64(3), c.Load())
		runtime.KeepAlive(m)
	})

	t.Run("invalid", func(t *testing.T) {
		r := newTestRegistry(t)

		assert.PanicsWithValue(t, "appmetrics.New: type is not a struct", func() { New[int](r) })
		assert.Panics(t, func() { New[MissingFunctionMetrics](r) })
		assert.Panics(t, func() { New[WrongFunctionMetrics](r) })
		assert.Panics(t, func() { New[InvalidTypeMetrics](r) })
		assert.Panics(t, func() { New[TaggedGaugeMetrics](r) })
	})
}

func TestUnregister(t *testing.T) {
	r := newTestRegistry(t)

	simple := New[SimpleMetrics](r)
	tagged := New[TaggedMetrics](r)
	tagged.Responses.Tag("status:200").Inc()
	tagged.Responses.Tag("status:500").Inc()
	require.Len(t, r.Select(nil), 9)

	Unregister(r, tagged)
	assert.Len(t, r.Select(nil), 5)

	_, err := tagmetrics.Int64Counters.Get(r, "responses", map[string]string{"service": "api", "status": "200"})
	assert.ErrorIs(t, err, tagmetrics.ErrNotFound)

	Unregister(r, simple)
	assert.Empty(t, r.Select(nil))

	// metrics stay usable after they are unregistered
	simple.FooCount.Inc()
	assert.Equal(t, int64(1), simple.FooCount.Load())

	// and tagged metrics are registered again on the next use
	tagged.Responses.Tag("status:200").Inc()
	assert.Len(t, r.Select(nil), 1)
	runtime.KeepAlive(tagged)
}

func TestParseTags(t *testing.T) {
	tests := map[string]struct {
		Input  []string
		Output map[string]string
	}{
		"empty": {
			Output: map[string]string{},
		},
		"keyValue": {
			Input:  []string{"status:200", "route:/api"},
			Output: map[string]string{"status": "200", "route": "/api"},
		},
		"plain": {
			Input:  []string{"cached"},
			Output: map[string]string{"cached": ""},
		},
		"whitespace": {
			Input:  []string{"  status : 200 ", "", "   "},
			Output: map[string]string{"status": "200"},
		},
		"lastWins": {
			Input:  []string{"status:200", "status:500"},
			Output: map[string]string{"status": "500"},
		},
		"colonInValue": {
			Input:  []string{"addr:localhost:8080"},
			Output: map[string]string{"addr": "localhost:8080"},
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, test.Output, parseTags(test.Input))
		})
	}
}
