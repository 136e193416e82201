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

package appmetrics

import (
	"fmt"
	"reflect"

	"github.com/pkg/errors"

	"github.com/palantir/go-tagmetrics/accumulator"
	"github.com/palantir/go-tagmetrics/tagmetrics"
)

const (
	MetricTag     = "metric"
	MetricTagsTag = "metric-tags"
)

type registerFunc func(r *tagmetrics.Registry, name string, extra map[string]string, v reflect.Value, field string) (any, error)
type removeFunc func(r *tagmetrics.Registry, name string, extra map[string]string) bool

// fieldType describes how to create and remove the metric stored in a field
// of one supported type.
type fieldType struct {
	register registerFunc
	remove   removeFunc

	// newTagged is nil for types that cannot be used with Tagged
	newTagged func(r *tagmetrics.Registry, name string, extra map[string]string) any
}

var fieldTypes = map[reflect.Type]fieldType{
	reflect.TypeFor[*tagmetrics.Counter[int64]]():  metricField(tagmetrics.Int64Counters.GetOrCreate, tagmetrics.Int64Counters.Remove),
	reflect.TypeFor[*tagmetrics.Counter[uint64]](): metricField(tagmetrics.Uint64Counters.GetOrCreate, tagmetrics.Uint64Counters.Remove),
	reflect.TypeFor[*tagmetrics.Meter]():           metricField(tagmetrics.Meters.GetOrCreate, tagmetrics.Meters.Remove),

	reflect.TypeFor[*tagmetrics.Timer[*accumulator.SlidingWindow]](): metricField(tagmetrics.SlidingTimers.GetOrCreate, tagmetrics.SlidingTimers.Remove),
	reflect.TypeFor[*tagmetrics.Timer[*accumulator.ExpDecay]]():      metricField(tagmetrics.DecayingTimers.GetOrCreate, tagmetrics.DecayingTimers.Remove),

	reflect.TypeFor[*tagmetrics.Gauge[int64]]():   gaugeField(tagmetrics.Int64Gauges),
	reflect.TypeFor[*tagmetrics.Gauge[uint64]]():  gaugeField(tagmetrics.Uint64Gauges),
	reflect.TypeFor[*tagmetrics.Gauge[float64]](): gaugeField(tagmetrics.Float64Gauges),
	reflect.TypeFor[*tagmetrics.Gauge[string]]():  gaugeField(tagmetrics.StringGauges),
}

func metricField[M tagmetrics.Tagged](getOrCreate func(*tagmetrics.Registry, string, map[string]string) M, remove removeFunc) fieldType {
	return fieldType{
		register: func(r *tagmetrics.Registry, name string, extra map[string]string, _ reflect.Value, _ string) (any, error) {
			return getOrCreate(r, name, extra), nil
		},
		remove: remove,
		newTagged: func(r *tagmetrics.Registry, name string, extra map[string]string) any {
			return newTaggedMetric(r, name, extra, getOrCreate, remove)
		},
	}
}

func gaugeField[T tagmetrics.GaugeValue](family tagmetrics.GaugeFamily[T]) fieldType {
	return fieldType{
		register: func(r *tagmetrics.Registry, name string, extra map[string]string, v reflect.Value, field string) (any, error) {
			fn, err := getGaugeFunction[T](v, field)
			if err != nil {
				return nil, err
			}
			return family.Register(r, name, extra, fn)
		},
		remove: family.Remove,
	}
}

type boundField struct {
	reflect.StructField
	name   string
	extra  map[string]string
	typ    fieldType
	tagged bool
}

// New creates a new metrics struct and binds its metric fields to metrics in
// r. M must be a struct type. New panics if any field with a "metric" tag has
// an unsupported type or if a gauge field has no matching compute function.
//
// The registry only keeps weak references to metrics, so the metrics in the
// struct stay registered for as long as the struct is reachable.
func New[M any](r *tagmetrics.Registry) *M {
	m := new(M)

	v := reflect.ValueOf(m).Elem()
	if v.Kind() != reflect.Struct {
		panic("appmetrics.New: type is not a struct")
	}

	fields, err := getMetricFields(v.Type())
	if err != nil {
		panic("appmetrics.New: " + err.Error())
	}

	for _, f := range fields {
		if err := createField(r, v, f); err != nil {
			panic(fmt.Sprintf("appmetrics.New: field %s: %v", f.Name, err))
		}
	}
	return m
}

// Unregister removes the metrics of a struct created by New from r, including
// every instance created by its Tagged fields. The metrics in the struct
// remain usable but are no longer visible to emitters.
func Unregister[M any](r *tagmetrics.Registry, m *M) {
	v := reflect.ValueOf(m).Elem()
	if v.Kind() != reflect.Struct {
		panic("appmetrics.Unregister: type is not a struct pointer")
	}

	fields, err := getMetricFields(v.Type())
	if err != nil {
		panic("appmetrics.Unregister: " + err.Error())
	}

	for _, f := range fields {
		if f.tagged {
			if t, ok := v.FieldByIndex(f.Index).Interface().(unregisterer); ok {
				t.unregister(r)
			}
			continue
		}
		f.typ.remove(r, f.name, f.extra)
	}
}

func getMetricFields(typ reflect.Type) ([]boundField, error) {
	var fields []boundField
	for _, f := range reflect.VisibleFields(typ) {
		name := f.Tag.Get(MetricTag)
		if name == "" {
			continue
		}
		if !f.IsExported() {
			return nil, errors.Errorf("field %s: metric tag appears on unexported field", f.Name)
		}

		mf := boundField{
			StructField: f,
			name:        name,
			extra:       parseTags(splitTags(f.Tag.Get(MetricTagsTag))),
		}

		if ok, elem := isTagged(f.Type); ok {
			typ, ok := fieldTypes[elem]
			if !ok || typ.newTagged == nil {
				return nil, errors.Errorf("field %s: metric tag appears on unsupported tagged type %s", f.Name, f.Type)
			}
			mf.typ = typ
			mf.tagged = true
		} else {
			typ, ok := fieldTypes[f.Type]
			if !ok {
				return nil, errors.Errorf("field %s: metric tag appears on non-metric type %s", f.Name, f.Type)
			}
			mf.typ = typ
		}
		fields = append(fields, mf)
	}
	return fields, nil
}

func createField(r *tagmetrics.Registry, v reflect.Value, f boundField) error {
	var value any
	if f.tagged {
		value = f.typ.newTagged(r, f.name, f.extra)
	} else {
		var err error
		if value, err = f.typ.register(r, f.name, f.extra, v, f.Name); err != nil {
			return err
		}
	}

	v.FieldByIndex(f.Index).Set(reflect.ValueOf(value))
	return nil
}
