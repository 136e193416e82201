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

// Package datadog defines configuration and functions for emitting metrics to
// Datadog using the DogStatsD protocol.
//
// Metrics are reported with their name and every tag except "name" and
// "type". Global tags for all metrics can be set in the configuration. When
// metrics of different kinds share a name, the first kind reported keeps the
// name and later kinds get the kind as a suffix, like "requests.counter".
// Gauges are reported first, then counters, meters, and timers.
package datadog

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/DataDog/datadog-go/v5/statsd"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/palantir/go-tagmetrics/tagmetrics"
	"github.com/palantir/go-tagmetrics/tags"
)

const (
	DefaultAddress  = "127.0.0.1:8125"
	DefaultInterval = 10 * time.Second
)

type Config struct {
	Address  string        `yaml:"address" json:"address"`
	Interval time.Duration `yaml:"interval" json:"interval"`
	Tags     []string      `yaml:"tags" json:"tags"`
}

// Client is the subset of the DogStatsD client used by the emitter.
type Client interface {
	Gauge(name string, value float64, tags []string, rate float64) error
	Count(name string, value int64, tags []string, rate float64) error
}

// StartEmitter starts a goroutine that emits metrics from the registry to the
// configured DogStatsD endpoint until ctx is canceled.
func StartEmitter(ctx context.Context, r *tagmetrics.Registry, c Config, logger zerolog.Logger) error {
	if c.Address == "" {
		c.Address = DefaultAddress
	}
	if c.Interval == 0 {
		c.Interval = DefaultInterval
	}

	client, err := statsd.New(c.Address, statsd.WithTags(c.Tags))
	if err != nil {
		return errors.Wrap(err, "datadog: failed to create client")
	}

	emitter := NewEmitter(client, r, logger)
	go func() {
		defer func() { _ = client.Close() }()
		emitter.Emit(ctx, c.Interval)
	}()

	return nil
}

type Emitter struct {
	client   Client
	registry *tagmetrics.Registry
	logger   zerolog.Logger

	mu     sync.Mutex
	counts map[string]int64
}

func NewEmitter(client Client, registry *tagmetrics.Registry, logger zerolog.Logger) *Emitter {
	return &Emitter{
		client:   client,
		registry: registry,
		logger:   logger,
		counts:   make(map[string]int64),
	}
}

func (e *Emitter) Emit(ctx context.Context, interval time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()

	for {
		select {
		case <-t.C:
			e.EmitOnce()
		case <-ctx.Done():
			return
		}
	}
}

// EmitOnce sends the current value of every metric in the registry. Counters
// are sent as the change since the previous call.
func (e *Emitter) EmitOnce() {
	e.mu.Lock()
	defer e.mu.Unlock()

	counts := make(map[string]int64, len(e.counts))
	kinds := make(map[string]tagmetrics.Kind)
	for _, metric := range e.registry.Select(nil) {
		t := metric.Tags()
		name, tags := metricName(kinds, t.Name(), metric.Kind()), tagsForMetric(t)

		switch m := metric.(type) {
		case *tagmetrics.Counter[int64]:
			key := "int64:" + t.Key()
			v := m.Load()
			e.count(name, v-e.counts[key], tags)
			counts[key] = v

		case *tagmetrics.Counter[uint64]:
			key := "uint64:" + t.Key()
			v := int64(m.Load())
			e.count(name, v-e.counts[key], tags)
			counts[key] = v

		case *tagmetrics.Gauge[int64]:
			if v, ok := readGauge(e, m); ok {
				e.gauge(name, float64(v), tags)
			}

		case *tagmetrics.Gauge[uint64]:
			if v, ok := readGauge(e, m); ok {
				e.gauge(name, float64(v), tags)
			}

		case *tagmetrics.Gauge[float64]:
			if v, ok := readGauge(e, m); ok {
				e.gauge(name, v, tags)
			}

		case *tagmetrics.Gauge[string]:
			// Report string values as a tag on a constant gauge
			if v, ok := readGauge(e, m); ok {
				e.gauge(name, 1, append(tags, "value:"+v))
			}

		case *tagmetrics.Meter:
			e.meter(name, m.Snapshot(), tags)

		case tagmetrics.TimerMetric:
			s := m.Snapshot()
			e.histogram(name, s.Durations, tags)
			e.meter(name+".rate", s.Rate, tags)
		}
	}
	e.counts = counts
}

func (e *Emitter) count(name string, delta int64, tags []string) {
	if err := e.client.Count(name, delta, tags, 1); err != nil {
		e.logger.Debug().Err(err).Str("metric", name).Msg("Failed to send count")
	}
}

func (e *Emitter) gauge(name string, value float64, tags []string) {
	if err := e.client.Gauge(name, value, tags, 1); err != nil {
		e.logger.Debug().Err(err).Str("metric", name).Msg("Failed to send gauge")
	}
}

func (e *Emitter) meter(name string, s tagmetrics.MeterSnapshot, tags []string) {
	e.gauge(name+".avg", s.MeanRate, tags)
	e.gauge(name+".count", float64(s.Count), tags)
	for i, w := range s.Windows {
		e.gauge(name+"."+rateSuffix(w), s.Rates[i], tags)
	}
}

func (e *Emitter) histogram(name string, s tagmetrics.HistogramSnapshot, tags []string) {
	e.gauge(name+".avg", s.Sample.Mean(), tags)
	e.gauge(name+".count", float64(s.Count), tags)
	e.gauge(name+".max", float64(s.Sample.Max()), tags)
	e.gauge(name+".median", s.Sample.Percentile(0.5), tags)
	e.gauge(name+".min", float64(s.Sample.Min()), tags)
	e.gauge(name+".sum", float64(s.Sample.Sum()), tags)
	e.gauge(name+".95percentile", s.Sample.Percentile(0.95), tags)
}

func readGauge[T tagmetrics.GaugeValue](e *Emitter, g *tagmetrics.Gauge[T]) (T, bool) {
	v, err := g.Value()
	if err != nil {
		e.logger.Warn().Err(err).Str("metric", g.Tags().String()).Msg("Failed to read gauge")
		return v, false
	}
	return v, true
}

// metricName returns the name to send for a metric of kind k. The first kind
// to use a name in an emit keeps it; other kinds get the kind as a suffix so
// that a counter and a gauge with the same name do not mix in one series.
func metricName(kinds map[string]tagmetrics.Kind, name string, k tagmetrics.Kind) string {
	if owner, ok := kinds[name]; ok && owner != k {
		return name + "." + string(k)
	}
	kinds[name] = k
	return name
}

// rateSuffix names a moving average rate by its window, using minutes when
// the window is a whole number of minutes.
func rateSuffix(window time.Duration) string {
	if window%time.Minute == 0 {
		return "rate" + strconv.FormatInt(int64(window/time.Minute), 10)
	}
	return "rate" + strconv.FormatInt(int64(window/time.Second), 10) + "s"
}

func tagsForMetric(t tags.Tags) []string {
	var out []string
	for _, tag := range t.Slice() {
		if tag.Key == tags.NameKey || tag.Key == tags.TypeKey {
			continue
		}
		if tag.Value == "" {
			out = append(out, tag.Key)
		} else {
			out = append(out, tag.Key+":"+tag.Value)
		}
	}
	return out
}
