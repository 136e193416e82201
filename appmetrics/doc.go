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

// Package appmetrics creates metrics structs bound to a registry.
//
// Applications that report metrics often want to define those metrics in a
// common type or package so they are easy to use in other parts of the
// application. The appmetrics package provides a way to easily define and
// initialize these shared metric structs.
//
// A metrics struct contains one or more fields of a supported metric type
// that have the "metric" tag giving the metric's name. The optional
// "metric-tags" tag adds static tags to the metric, using the same format as
// [Tagged]. The metric types and the registry are defined by the [tagmetrics]
// package. Supported field types are pointers to:
//
//   - tagmetrics.Counter[int64] and tagmetrics.Counter[uint64]
//   - tagmetrics.Gauge[int64], [uint64], [float64], and [string]
//   - tagmetrics.Meter
//   - tagmetrics.Timer[*accumulator.SlidingWindow] and
//     tagmetrics.Timer[*accumulator.ExpDecay]
//
// Gauge fields compute their value with a method or function field named
// "Compute" followed by the field name.
//
// For global metrics, this struct is often exported as a variable:
//
//	// in the app's "metrics" package
//	type Metrics struct {
//		Errors        *tagmetrics.Counter[int64] `metric:"errors" metric-tags:"subsystem:worker"`
//		ActiveWorkers *tagmetrics.Gauge[int64]   `metric:"active_workers"`
//
//		pool *Pool
//	}
//
//	func (m *Metrics) ComputeActiveWorkers() int64 {
//		return int64(m.pool.Active())
//	}
//
//	var M *Metrics
//
//	func Init(r *tagmetrics.Registry, pool *Pool) {
//		M = appmetrics.New[Metrics](r)
//		M.pool = pool
//	}
//
//	// in a different package
//	metrics.M.Errors.Inc()
//
// The registry keeps weak references, so the metrics in a struct remain
// registered for as long as the struct is reachable.
package appmetrics
