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
	"bytes"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/palantir/go-tagmetrics/tags"
)

type panickingMetric struct {
	tags  tags.Tags
	value any
}

func (m *panickingMetric) Tags() tags.Tags { return m.tags }
func (m *panickingMetric) Kind() Kind      { return KindMeter }
func (m *panickingMetric) tagged()         {}
func (m *panickingMetric) tick()           { panic(m.value) }

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestProcessorLifecycle(t *testing.T) {
	var out syncBuffer
	logger := zerolog.New(&out).Level(zerolog.DebugLevel)

	p := newProcessor(time.Second, clockwork.NewFakeClock(), logger, func() []tickable { return nil })
	assert.Equal(t, "stopped", p.currentState().String())

	p.start()
	assert.Equal(t, stateRunning, p.currentState())

	p.start()
	assert.Equal(t, stateRunning, p.currentState(), "second start should do nothing")

	p.shutdown()
	assert.Equal(t, stateStopped, p.currentState())

	p.shutdown()
	assert.Equal(t, stateStopped, p.currentState(), "second shutdown should do nothing")

	assert.Contains(t, out.String(), "Started metrics processor")
	assert.Contains(t, out.String(), "Stopped metrics processor")
}

func TestProcessorTicks(t *testing.T) {
	r := NewRegistry(WithConfig(Config{TickInterval: 10 * time.Millisecond}))
	defer func() { _ = r.Close() }()

	m := r.Meter("events", nil)
	tm := r.Timer("latency", nil)

	m.Mark(100)
	tm.Record(time.Millisecond)

	require.Eventually(t, func() bool {
		return m.uncounted.Load() == 0 && tm.Meter().uncounted.Load() == 0
	}, 5*time.Second, 10*time.Millisecond, "processor never ticked the metrics")
}

func TestProcessorFaultIsolation(t *testing.T) {
	clock := clockwork.NewFakeClock()
	var out syncBuffer
	logger := zerolog.New(&out)

	healthy := newMeter(tags.New("healthy", nil), clock, DefaultMeterWindows)
	broken := []tickable{
		&panickingMetric{tags: tags.New("broken", map[string]string{"cause": "error"}), value: errors.New("tick failed")},
		&panickingMetric{tags: tags.New("broken", map[string]string{"cause": "value"}), value: "not an error"},
	}

	p := newProcessor(time.Second, clock, logger, func() []tickable {
		return []tickable{broken[0], healthy, broken[1]}
	})

	healthy.Mark(10)
	clock.Advance(5 * time.Second)

	assert.Equal(t, 2, p.tickAll())
	assert.InDelta(t, 2.0, healthy.Rate1(), 1e-9, "healthy metric should still tick")

	logs := out.String()
	assert.Contains(t, logs, "Failed to tick metric")
	assert.Contains(t, logs, "broken[cause:error]")
	assert.Contains(t, logs, "tick failed")
	assert.Contains(t, logs, "panic: not an error")

	// the processor keeps working on later ticks
	healthy.Mark(10)
	clock.Advance(5 * time.Second)
	assert.Equal(t, 2, p.tickAll())
	assert.InDelta(t, 2.0, healthy.Rate1(), 1e-9)
}

func TestProcessorDoesNotPrune(t *testing.T) {
	r := newTestRegistry(t)

	createAndRelease(r, "released")
	eventuallyCollected(t, func() error {
		_, err := Int64Counters.Get(r, "released", nil)
		return err
	})

	tm := r.Timer("kept", nil)
	m := r.Meter("kept", nil)
	createAndReleaseMeter(r, "released")
	eventuallyCollected(t, func() error {
		_, err := Meters.Get(r, "released", nil)
		return err
	})

	require.Equal(t, 2, r.meters.len())
	assert.Equal(t, []tickable{m, tm}, r.tickables())
	assert.Equal(t, 2, r.meters.len(), "ticking must not remove entries")
	assert.Equal(t, 1, r.int64Counters.len())
}

//go:noinline
func createAndReleaseMeter(r *Registry, name string) {
	r.Meter(name, nil).Mark(1)
}
