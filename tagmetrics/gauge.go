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

	"github.com/palantir/go-tagmetrics/tags"
)

// GaugeValue is the set of types a Gauge can report.
type GaugeValue interface {
	int64 | uint64 | float64 | string
}

// GaugeFunc produces the current value of a gauge.
type GaugeFunc[T GaugeValue] func() (T, error)

// Infallible adapts a function that cannot fail to a GaugeFunc.
func Infallible[T GaugeValue](fn func() T) GaugeFunc[T] {
	return func() (T, error) {
		return fn(), nil
	}
}

// Gauge reports a value computed by a function on every read. Values are
// never cached.
type Gauge[T GaugeValue] struct {
	tags tags.Tags
	fn   GaugeFunc[T]
}

func newGauge[T GaugeValue](t tags.Tags, fn GaugeFunc[T]) *Gauge[T] {
	return &Gauge[T]{tags: t, fn: fn}
}

// Value calls the gauge function. An error from the function is returned
// with the gauge tags added; the gauge remains usable.
func (g *Gauge[T]) Value() (T, error) {
	v, err := g.fn()
	if err != nil {
		var zero T
		return zero, errors.Wrapf(err, "gauge %s", g.tags)
	}
	return v, nil
}

func (g *Gauge[T]) Tags() tags.Tags { return g.tags }
func (g *Gauge[T]) Kind() Kind      { return KindGauge }
func (g *Gauge[T]) tagged()         {}
