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

// Package accumulator provides the sample reservoirs that back histograms
// and timers.
//
// Two strategies are available. A SlidingWindow keeps the most recent
// samples, bounded by count and optionally by age, and computes exact
// statistics over them. An ExpDecay reservoir keeps a fixed number of samples
// chosen with a bias towards recent values; its statistics approximate the
// full distribution at a cost that does not depend on the sample rate.
package accumulator

import (
	"slices"

	"github.com/rcrowley/go-metrics"
)

const (
	DefaultSize  = 1028
	DefaultAlpha = 0.015
)

// Accumulator collects samples and computes statistics over the samples it
// currently retains. Implementations are safe for concurrent use.
type Accumulator interface {
	Update(v int64)
	Snapshot() Snapshot
}

// Snapshot is an immutable view of the samples retained by an Accumulator.
type Snapshot struct {
	values []int64
}

// NewSnapshot returns a snapshot of the given values. The slice is copied.
func NewSnapshot(values []int64) Snapshot {
	sorted := slices.Clone(values)
	slices.Sort(sorted)
	return Snapshot{values: sorted}
}

// Size returns the number of samples in the snapshot.
func (s Snapshot) Size() int {
	return len(s.values)
}

func (s Snapshot) Min() int64 {
	return metrics.SampleMin(s.values)
}

func (s Snapshot) Max() int64 {
	return metrics.SampleMax(s.values)
}

func (s Snapshot) Sum() int64 {
	return metrics.SampleSum(s.values)
}

func (s Snapshot) Mean() float64 {
	return metrics.SampleMean(s.values)
}

func (s Snapshot) StdDev() float64 {
	return metrics.SampleStdDev(s.values)
}

func (s Snapshot) Variance() float64 {
	return metrics.SampleVariance(s.values)
}

// Percentile returns the interpolated value at quantile p, where p is in the
// range [0, 1].
func (s Snapshot) Percentile(p float64) float64 {
	return s.Percentiles([]float64{p})[0]
}

func (s Snapshot) Percentiles(ps []float64) []float64 {
	// the values are already sorted, but the library sorts its argument in
	// place so give it a private copy
	return metrics.SamplePercentiles(slices.Clone(s.values), ps)
}

// Values returns a sorted copy of the samples.
func (s Snapshot) Values() []int64 {
	return slices.Clone(s.values)
}
