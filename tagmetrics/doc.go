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

// Package tagmetrics is an in-process registry of tagged metrics.
//
// Application code obtains a metric from a Registry once and then updates it
// directly; updates never touch the registry. Metrics are identified by a
// name, optional tags, and a "type" tag that the registry adds, so a counter
// and a meter with the same name and tags are distinct:
//
//	r := tagmetrics.NewRegistry()
//	defer r.Close()
//
//	requests := r.Counter("requests", map[string]string{"route": "/api"})
//	requests.Inc()
//
//	latency := r.Timer("latency", nil)
//	latency.Time(handle)
//
// The registry does not own its metrics. It keeps a weak reference to each
// one, so a metric lives exactly as long as some caller holds it. Once every
// caller has released a metric, lookups report ErrNotFound and the next
// GetOrCreate returns a fresh instance. Hold metrics in long-lived values,
// such as the structs created by the appmetrics package, rather than
// re-creating them on every use.
//
// Each metric type and parametrization has a Family variable, such as
// Int64Counters or DecayingTimers, that provides typed lookup, removal, and
// queries. Registry.Select merges every family into a single list of Tagged
// metrics for exporters.
//
// A background processor ticks every live Meter and Timer at the configured
// interval to update their moving averages.
package tagmetrics
