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
	"maps"
	"reflect"
	"strings"
	"sync"

	"github.com/palantir/go-tagmetrics/tagmetrics"
	"github.com/palantir/go-tagmetrics/tags"
)

var (
	strSliceType = reflect.TypeFor[[]string]()
)

// Tagged is a metric with dynamic tags. The type M must be a counter, meter,
// or timer type from the tagmetrics package. Tags are strings that can either
// be plain values or key-value pairs where the key and value are separated by
// a colon.
//
// While Tagged metrics can be used directly, it's helpful to wrap them in a
// function that accepts the expected tag values using the correct types. For
// example:
//
//	struct M {
//		Responses Tagged[*tagmetrics.Counter[int64]] `metric:"responses"`
//	}
//
//	func (m *M) ResponsesByRouteAndStatus(route string, status int) *tagmetrics.Counter[int64] {
//		return m.Responses.Tag("route:" + route, "status:" + strconv.Itoa(status))
//	}
//
// Dynamic tags are added to the static tags of the field. Using the previous
// example, the tag sets of the metrics might be:
//
//   - "responses[route:api,status:200,type:counter]"
//   - "responses[route:file,status:404,type:counter]"
//
// A "type" tag passed to Tag is replaced by the registry.
//
// Each unique combination of tags produces a separate metric in the registry,
// and the Tagged value keeps every metric it creates alive. For this reason
// avoid tags that can take many values, like IDs.
type Tagged[M any] interface {
	// Tag returns an instance of the metric that reports with the given tags.
	// Tags may be either plain values or key-value pairs separated by a colon.
	// Tag trims whitespace from each tag and ignores any empty tags.
	Tag(tags ...string) M
}

type unregisterer interface {
	unregister(r *tagmetrics.Registry)
}

type taggedMetric[M tagmetrics.Tagged] struct {
	r           *tagmetrics.Registry
	name        string
	extra       map[string]string
	getOrCreate func(*tagmetrics.Registry, string, map[string]string) M
	remove      removeFunc

	mu        sync.Mutex
	instances map[string]instance[M]
}

type instance[M any] struct {
	extra  map[string]string
	metric M
}

func newTaggedMetric[M tagmetrics.Tagged](
	r *tagmetrics.Registry,
	name string,
	extra map[string]string,
	getOrCreate func(*tagmetrics.Registry, string, map[string]string) M,
	remove removeFunc,
) *taggedMetric[M] {
	m := &taggedMetric[M]{
		r:           r,
		name:        name,
		extra:       extra,
		getOrCreate: getOrCreate,
		remove:      remove,
		instances:   make(map[string]instance[M]),
	}

	// Add the bare metric immediately so emitters can find it in the registry
	m.Tag()
	return m
}

func (m *taggedMetric[M]) Tag(tagValues ...string) M {
	extra := maps.Clone(m.extra)
	if extra == nil {
		extra = make(map[string]string)
	}
	maps.Copy(extra, parseTags(tagValues))
	delete(extra, tags.TypeKey)

	key := tags.New(m.name, extra).Key()

	m.mu.Lock()
	defer m.mu.Unlock()

	if i, ok := m.instances[key]; ok {
		return i.metric
	}

	metric := m.getOrCreate(m.r, m.name, extra)
	m.instances[key] = instance[M]{extra: extra, metric: metric}
	return metric
}

func (m *taggedMetric[M]) unregister(r *tagmetrics.Registry) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for key, i := range m.instances {
		m.remove(r, m.name, i.extra)
		delete(m.instances, key)
	}
}

// isTagged determines if typ is a Tagged instantiation and returns the
// parameter type. As of Go 1.24, the reflect package does not support direct
// access to type parameters.
func isTagged(typ reflect.Type) (bool, reflect.Type) {
	if typ.Kind() != reflect.Interface {
		return false, nil
	}

	m, ok := typ.MethodByName("Tag")
	if !ok {
		return false, nil
	}

	mt := m.Type
	if !mt.IsVariadic() || mt.NumIn() != 1 || mt.In(0) != strSliceType {
		return false, nil
	}
	if mt.NumOut() != 1 {
		return false, nil
	}
	return true, mt.Out(0)
}

func splitTags(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, ",")
}

// parseTags converts tag strings to a map. Plain values become keys with an
// empty value.
func parseTags(tagValues []string) map[string]string {
	extra := make(map[string]string, len(tagValues))
	for _, t := range tagValues {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		k, v, _ := strings.Cut(t, ":")
		extra[strings.TrimSpace(k)] = strings.TrimSpace(v)
	}
	return extra
}
