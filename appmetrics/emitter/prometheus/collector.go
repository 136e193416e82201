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

// Package prometheus exposes the metrics in a tagmetrics registry as a
// Prometheus collector.
//
// Metric names are sanitized to valid Prometheus names. Every tag except
// "name" and "type" becomes a label; tags without a value become labels with
// the value "true". Counters are reported as untyped values, gauges as gauges,
// meters as an untyped count, and timers as a summary in seconds with
// separate minimum and maximum values.
//
// When metrics of different kinds share a name, the first kind reported keeps
// the name and later kinds get the kind as a suffix, like "requests_counter".
// Gauges are reported first, then counters, meters, and timers. When two
// metrics of the same kind map to the same name and labels, such as an int64
// and a uint64 counter with equal tags, only the first is reported.
package prometheus

import (
	"maps"
	"regexp"
	"slices"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/palantir/go-tagmetrics/tagmetrics"
	"github.com/palantir/go-tagmetrics/tags"
)

var (
	DefaultTimerQuantiles = []float64{0.5, 0.95}
)

var (
	invalidNameChars  = regexp.MustCompile(`[^a-zA-Z0-9_:]+`)
	invalidLabelChars = regexp.MustCompile(`[^a-zA-Z0-9_]+`)
)

var helpText = map[tagmetrics.Kind]string{
	tagmetrics.KindCounter: "tagmetrics.Counter",
	tagmetrics.KindGauge:   "tagmetrics.Gauge",
	tagmetrics.KindMeter:   "tagmetrics.Meter",
	tagmetrics.KindTimer:   "tagmetrics.Timer",
}

type Option func(*Collector)

// WithLabels sets labels that are added to every metric. Tags on a metric
// take precedence over these labels.
func WithLabels(labels map[string]string) Option {
	return func(c *Collector) {
		c.labels = labels
	}
}

// WithTimerQuantiles sets the quantiles reported for timers.
func WithTimerQuantiles(quantiles []float64) Option {
	return func(c *Collector) {
		c.timerQuantiles = quantiles
	}
}

// WithLogger sets the logger used to report gauges that fail to read.
func WithLogger(logger zerolog.Logger) Option {
	return func(c *Collector) {
		c.logger = logger
	}
}

// Collector is an unchecked prometheus.Collector that reports every metric
// in a registry at collection time.
type Collector struct {
	registry       *tagmetrics.Registry
	labels         map[string]string
	timerQuantiles []float64
	logger         zerolog.Logger
}

func NewCollector(r *tagmetrics.Registry, opts ...Option) *Collector {
	c := &Collector{
		registry:       r,
		timerQuantiles: DefaultTimerQuantiles,
		logger:         zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Describe sends no descriptors, which makes the collector unchecked.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {}

func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	b := &batch{
		ch:     ch,
		logger: c.logger,
		kinds:  make(map[string]tagmetrics.Kind),
		series: make(map[string]struct{}),
	}

	for _, metric := range c.registry.Select(nil) {
		t := metric.Tags()
		kind := metric.Kind()
		name := sanitizeName(t.Name())
		labels := c.labelsFor(t)
		help := helpText[kind]

		switch m := metric.(type) {
		case *tagmetrics.Counter[int64]:
			b.send(b.name(name, kind), help, prometheus.UntypedValue, float64(m.Load()), labels)

		case *tagmetrics.Counter[uint64]:
			b.send(b.name(name, kind), help, prometheus.UntypedValue, float64(m.Load()), labels)

		case *tagmetrics.Gauge[int64]:
			if v, ok := readGauge(c, m); ok {
				b.send(b.name(name, kind), help, prometheus.GaugeValue, float64(v), labels)
			}

		case *tagmetrics.Gauge[uint64]:
			if v, ok := readGauge(c, m); ok {
				b.send(b.name(name, kind), help, prometheus.GaugeValue, float64(v), labels)
			}

		case *tagmetrics.Gauge[float64]:
			if v, ok := readGauge(c, m); ok {
				b.send(b.name(name, kind), help, prometheus.GaugeValue, v, labels)
			}

		case *tagmetrics.Gauge[string]:
			if v, ok := readGauge(c, m); ok {
				labels["value"] = v
				b.send(b.name(name, kind), help, prometheus.GaugeValue, 1, labels)
			}

		case *tagmetrics.Meter:
			b.send(b.name(name+"_count", kind), help, prometheus.UntypedValue, float64(m.Count()), labels)

		case tagmetrics.TimerMetric:
			c.timer(b, name, help, m.Snapshot().Durations, labels)
		}
	}
}

func (c *Collector) timer(b *batch, name, help string, s tagmetrics.HistogramSnapshot, labels prometheus.Labels) {
	summaryName := b.name(name+"_seconds", tagmetrics.KindTimer)
	if summaryName != "" && b.claim(summaryName, labels) {
		quantiles := make(map[float64]float64, len(c.timerQuantiles))
		for i, v := range s.Sample.Percentiles(c.timerQuantiles) {
			quantiles[c.timerQuantiles[i]] = seconds(v)
		}

		desc := prometheus.NewDesc(summaryName, help, nil, labels)
		m, err := prometheus.NewConstSummary(desc, uint64(s.Count), seconds(float64(s.Sample.Sum())), quantiles)
		if err != nil {
			b.ch <- prometheus.NewInvalidMetric(desc, err)
		} else {
			b.ch <- m
		}
	}

	b.send(b.name(name+"_min_seconds", tagmetrics.KindTimer), help, prometheus.UntypedValue, seconds(float64(s.Sample.Min())), labels)
	b.send(b.name(name+"_max_seconds", tagmetrics.KindTimer), help, prometheus.UntypedValue, seconds(float64(s.Sample.Max())), labels)
}

// batch tracks the names and series sent by one call to Collect. A registry
// may hold metrics of different kinds, or of different value types, that map
// to the same Prometheus name and labels, which a Prometheus registry rejects.
type batch struct {
	ch     chan<- prometheus.Metric
	logger zerolog.Logger
	kinds  map[string]tagmetrics.Kind
	series map[string]struct{}
}

// name returns the name to use for a metric of kind k. If another kind
// already uses name, the kind is appended to it. It returns an empty string
// if the suffixed name is also taken by another kind.
func (b *batch) name(name string, k tagmetrics.Kind) string {
	if owner, ok := b.kinds[name]; ok && owner != k {
		name = name + "_" + string(k)
		if owner, ok := b.kinds[name]; ok && owner != k {
			b.logger.Warn().Str("metric", name).Msg("Skipping metric with a name used by another kind")
			return ""
		}
	}
	b.kinds[name] = k
	return name
}

// claim reports whether the series is new in this batch.
func (b *batch) claim(name string, labels prometheus.Labels) bool {
	var key strings.Builder
	key.WriteString(name)
	for _, k := range slices.Sorted(maps.Keys(labels)) {
		key.WriteString("\xff" + k + "=" + labels[k])
	}

	if _, ok := b.series[key.String()]; ok {
		b.logger.Warn().Str("metric", key.String()).Msg("Skipping duplicate metric series")
		return false
	}
	b.series[key.String()] = struct{}{}
	return true
}

func (b *batch) send(name, help string, typ prometheus.ValueType, value float64, labels prometheus.Labels) {
	if name == "" || !b.claim(name, labels) {
		return
	}

	desc := prometheus.NewDesc(name, help, nil, labels)
	m, err := prometheus.NewConstMetric(desc, typ, value)
	if err != nil {
		b.ch <- prometheus.NewInvalidMetric(desc, err)
		return
	}
	b.ch <- m
}

func (c *Collector) labelsFor(t tags.Tags) prometheus.Labels {
	labels := make(prometheus.Labels, len(c.labels)+t.Len())
	for k, v := range c.labels {
		labels[k] = v
	}
	for _, tag := range t.Slice() {
		if tag.Key == tags.NameKey || tag.Key == tags.TypeKey {
			continue
		}
		v := tag.Value
		if v == "" {
			v = "true"
		}
		labels[sanitizeLabel(tag.Key)] = v
	}
	return labels
}

func readGauge[T tagmetrics.GaugeValue](c *Collector, g *tagmetrics.Gauge[T]) (T, bool) {
	v, err := g.Value()
	if err != nil {
		c.logger.Warn().Err(err).Str("metric", g.Tags().String()).Msg("Failed to read gauge")
		return v, false
	}
	return v, true
}

func seconds(nanos float64) float64 {
	return nanos / float64(time.Second)
}

func sanitizeName(name string) string {
	return strings.TrimLeft(invalidNameChars.ReplaceAllString(name, "_"), "_")
}

func sanitizeLabel(name string) string {
	return strings.TrimLeft(invalidLabelChars.ReplaceAllString(name, "_"), "_")
}
