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
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"

	"github.com/palantir/go-tagmetrics/accumulator"
)

// Registry holds weak references to tagged metrics, one bucket per metric
// type. Each bucket has its own lock, so creating or querying metrics of one
// type never blocks callers working with another.
//
// A Registry starts a background goroutine that ticks meters and timers.
// Call Close to stop it.
type Registry struct {
	config Config
	clock  clockwork.Clock
	logger zerolog.Logger

	int64Counters  bucket[Counter[int64]]
	uint64Counters bucket[Counter[uint64]]

	int64Gauges   bucket[Gauge[int64]]
	uint64Gauges  bucket[Gauge[uint64]]
	float64Gauges bucket[Gauge[float64]]
	stringGauges  bucket[Gauge[string]]

	meters bucket[Meter]

	slidingTimers  bucket[Timer[*accumulator.SlidingWindow]]
	decayingTimers bucket[Timer[*accumulator.ExpDecay]]

	processor *processor
}

type Option func(*Registry)

// WithConfig sets the registry configuration. Zero values in c are replaced
// by defaults.
func WithConfig(c Config) Option {
	return func(r *Registry) {
		r.config = c
	}
}

// WithClock sets the clock used by the registry's metrics and processor.
func WithClock(c clockwork.Clock) Option {
	return func(r *Registry) {
		r.clock = c
	}
}

// WithLogger sets the logger used to report processor failures. The default
// discards all messages.
func WithLogger(logger zerolog.Logger) Option {
	return func(r *Registry) {
		r.logger = logger
	}
}

// NewRegistry creates a registry and starts its processor.
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		clock:  clockwork.NewRealClock(),
		logger: zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.config = r.config.WithDefaults()

	r.processor = newProcessor(r.config.TickInterval, r.clock, r.logger, r.tickables)
	r.processor.start()
	return r
}

// Close stops the processor and waits for it to exit. Metrics obtained from
// the registry remain usable after Close.
func (r *Registry) Close() error {
	r.processor.shutdown()
	return nil
}

// Config returns the configuration of the registry, with defaults applied.
func (r *Registry) Config() Config {
	return r.config
}

// Counter returns the signed counter with the given name and tags, creating
// it if necessary.
func (r *Registry) Counter(name string, extra map[string]string) *Counter[int64] {
	return Int64Counters.GetOrCreate(r, name, extra)
}

// Uint64Counter returns the unsigned counter with the given name and tags,
// creating it if necessary.
func (r *Registry) Uint64Counter(name string, extra map[string]string) *Counter[uint64] {
	return Uint64Counters.GetOrCreate(r, name, extra)
}

// Meter returns the meter with the given name and tags, creating it if
// necessary.
func (r *Registry) Meter(name string, extra map[string]string) *Meter {
	return Meters.GetOrCreate(r, name, extra)
}

// Timer returns the timer with the given name and tags, creating it if
// necessary. The timer keeps durations in a sliding window.
func (r *Registry) Timer(name string, extra map[string]string) *Timer[*accumulator.SlidingWindow] {
	return SlidingTimers.GetOrCreate(r, name, extra)
}

// DecayingTimer returns the timer with the given name and tags, creating it
// if necessary. The timer keeps durations in an exponentially decaying
// reservoir.
func (r *Registry) DecayingTimer(name string, extra map[string]string) *Timer[*accumulator.ExpDecay] {
	return DecayingTimers.GetOrCreate(r, name, extra)
}

// Select returns the live metrics of every type that match pred. Gauges come
// first, followed by counters, meters, and timers; within a type, metrics are
// ordered by tags.
func (r *Registry) Select(pred Predicate) []Tagged {
	var out []Tagged
	for _, f := range families {
		out = f.appendTagged(r, pred, out)
	}
	return out
}

// tickables returns the live meters and timers. Unlike Select, it never
// removes entries.
func (r *Registry) tickables() []tickable {
	var out []tickable
	for _, m := range r.meters.snapshot() {
		out = append(out, m)
	}
	for _, t := range r.slidingTimers.snapshot() {
		out = append(out, t)
	}
	for _, t := range r.decayingTimers.snapshot() {
		out = append(out, t)
	}
	return out
}

func (r *Registry) newSlidingWindow() *accumulator.SlidingWindow {
	return accumulator.NewSlidingWindow(
		r.config.SlidingWindowSize,
		accumulator.WithWindow(r.config.SlidingWindowDuration),
		accumulator.WithClock(r.clock),
	)
}

func (r *Registry) newExpDecay() *accumulator.ExpDecay {
	return accumulator.NewExpDecay(
		r.config.ReservoirSize,
		r.config.DecayAlpha,
		accumulator.WithRescaleThreshold(r.config.RescaleThreshold),
		accumulator.WithClock(r.clock),
	)
}
