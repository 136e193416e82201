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
	"github.com/palantir/go-tagmetrics/tags"
)

// Kind identifies the type of a metric. It is the value of the "type" tag
// injected by the registry.
type Kind string

const (
	KindCounter Kind = "counter"
	KindGauge   Kind = "gauge"
	KindMeter   Kind = "meter"
	KindTimer   Kind = "timer"
)

// Tagged is implemented by every metric held in a Registry. It is a closed
// set: the only implementations are *Counter, *Gauge, *Meter, and *Timer
// instantiations from this package. Use a type switch to access values.
type Tagged interface {
	// Tags returns the complete tag set of the metric, including the "name"
	// and "type" tags.
	Tags() tags.Tags

	// Kind returns the kind of the metric.
	Kind() Kind

	tagged()
}

// Predicate selects metrics in queries. A nil Predicate selects every
// metric.
type Predicate func(Tagged) bool

func (p Predicate) match(m Tagged) bool {
	return p == nil || p(m)
}

// All matches every metric.
func All(Tagged) bool {
	return true
}

// ByName matches metrics with the given name.
func ByName(name string) Predicate {
	return func(m Tagged) bool {
		return m.Tags().Name() == name
	}
}

// HasTag matches metrics with a tag key set to value.
func HasTag(key, value string) Predicate {
	return func(m Tagged) bool {
		v, ok := m.Tags().Tag(key)
		return ok && v == value
	}
}

// OfKind matches metrics of the given kind.
func OfKind(k Kind) Predicate {
	return func(m Tagged) bool {
		return m.Kind() == k
	}
}

// And matches metrics that match every predicate.
func And(ps ...Predicate) Predicate {
	return func(m Tagged) bool {
		for _, p := range ps {
			if !p.match(m) {
				return false
			}
		}
		return true
	}
}
