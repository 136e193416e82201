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
	"math/rand/v2"
	"time"

	"github.com/jonboulle/clockwork"
)

const (
	DefaultRescaleThreshold = time.Hour
)

type options struct {
	clock            clockwork.Clock
	window           time.Duration
	rescaleThreshold time.Duration
	source           rand.Source
}

// Option configures an accumulator.
type Option func(*options)

// WithClock sets the clock used to timestamp samples. The default is the
// system clock.
func WithClock(c clockwork.Clock) Option {
	return func(o *options) {
		if c != nil {
			o.clock = c
		}
	}
}

// WithWindow bounds a SlidingWindow by age in addition to count: samples
// older than d are discarded. It has no effect on other accumulators.
func WithWindow(d time.Duration) Option {
	return func(o *options) {
		o.window = d
	}
}

// WithRescaleThreshold sets how often an ExpDecay reservoir moves its
// reference time forward.
func WithRescaleThreshold(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.rescaleThreshold = d
		}
	}
}

// WithSeed makes the random choices of an ExpDecay reservoir reproducible.
func WithSeed(seed uint64) Option {
	return func(o *options) {
		o.source = rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)
	}
}

func applyOptions(opts []Option) options {
	o := options{
		clock:            clockwork.NewRealClock(),
		rescaleThreshold: DefaultRescaleThreshold,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	if o.source == nil {
		o.source = rand.NewPCG(rand.Uint64(), rand.Uint64())
	}
	return o
}
