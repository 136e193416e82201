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
	"reflect"

	"github.com/pkg/errors"

	"github.com/palantir/go-tagmetrics/tagmetrics"
)

const (
	GaugeFunctionPrefix = "Compute"
)

var (
	errorType = reflect.TypeFor[error]()
)

// getGaugeFunction finds the function that computes the value of a gauge
// field. The function is either a method or a field of the struct named by
// GaugeFunctionPrefix followed by the field name. It must take no parameters
// and return either a value of type T or a value of type T and an error.
func getGaugeFunction[T tagmetrics.GaugeValue](v reflect.Value, fieldName string) (tagmetrics.GaugeFunc[T], error) {
	name := GaugeFunctionPrefix + fieldName
	isField := false

	m := v.Addr().MethodByName(name)
	if !m.IsValid() {
		// A method does not exist, look for a field with the name instead
		m = v.FieldByName(name)
		if !m.IsValid() {
			return nil, errors.Errorf("%s: method or field does not exist", name)
		}
		if m.Type().Kind() != reflect.Func {
			return nil, errors.Errorf("%s: field must be a function", name)
		}
		isField = true
	}

	typ := m.Type()
	if typ.NumIn() != 0 {
		return nil, errors.Errorf("%s: function must take no parameters", name)
	}
	if typ.NumOut() < 1 || typ.NumOut() > 2 {
		return nil, errors.Errorf("%s: function must return a value and an optional error", name)
	}
	if typ.Out(0) != reflect.TypeFor[T]() {
		var zero T
		return nil, errors.Errorf("%s: function must return a value of type %T", name, zero)
	}
	fallible := typ.NumOut() == 2
	if fallible && typ.Out(1) != errorType {
		return nil, errors.Errorf("%s: second return value must be an error", name)
	}

	if !isField {
		if fallible {
			return m.Interface().(func() (T, error)), nil
		}
		return tagmetrics.Infallible(m.Interface().(func() T)), nil
	}

	// If the function is a field, call the current field value at the time of
	// the call. The field is usually nil when New discovers it.
	return func() (T, error) {
		if m.IsNil() {
			var zero T
			return zero, errors.Errorf("%s: function is not set", name)
		}
		out := m.Call(nil)
		if fallible && !out[1].IsNil() {
			var zero T
			return zero, out[1].Interface().(error)
		}
		return out[0].Interface().(T), nil
	}, nil
}
