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

// Package tags defines the immutable tag sets that identify metrics.
//
// A tag set is an ordered collection of string keys and values. Every tag set
// contains a "name" entry; registries add a "type" entry before storing a
// metric so that metrics of different kinds never share an identity.
//
// Tag sets render in the bracketed form used by emitters and logs:
//
//	requests[method:GET,status:2xx,type:timer]
//
// Tags without a value render as the bare key.
package tags

import (
	"slices"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

const (
	NameKey = "name"
	TypeKey = "type"
)

// Tag is a single key-value pair in a tag set.
type Tag struct {
	Key   string
	Value string
}

// Tags is an immutable, ordered set of tags. The zero value is an empty set
// with no name.
type Tags struct {
	tags []Tag
	key  string
}

// New returns a tag set containing the extra tags and a "name" tag with the
// given value. A "name" entry in extra is overridden.
func New(name string, extra map[string]string) Tags {
	tags := make([]Tag, 0, len(extra)+1)
	for k, v := range extra {
		if k == NameKey {
			continue
		}
		tags = append(tags, Tag{Key: k, Value: v})
	}
	tags = append(tags, Tag{Key: NameKey, Value: name})
	return build(tags)
}

// FromSlice returns a tag set containing the given tags. When a key appears
// more than once, the last value wins.
func FromSlice(in []Tag) Tags {
	seen := make(map[string]int, len(in))
	tags := make([]Tag, 0, len(in))
	for _, t := range in {
		if i, ok := seen[t.Key]; ok {
			tags[i].Value = t.Value
			continue
		}
		seen[t.Key] = len(tags)
		tags = append(tags, t)
	}
	return build(tags)
}

func build(tags []Tag) Tags {
	slices.SortFunc(tags, func(a, b Tag) int {
		return strings.Compare(a.Key, b.Key)
	})

	var key strings.Builder
	for _, t := range tags {
		key.WriteString(strconv.Itoa(len(t.Key)))
		key.WriteByte(':')
		key.WriteString(t.Key)
		key.WriteString(strconv.Itoa(len(t.Value)))
		key.WriteByte(':')
		key.WriteString(t.Value)
	}
	return Tags{tags: tags, key: key.String()}
}

// Name returns the value of the "name" tag.
func (t Tags) Name() string {
	v, _ := t.Tag(NameKey)
	return v
}

// Type returns the value of the "type" tag, or the empty string if the set
// has not been stored in a registry.
func (t Tags) Type() string {
	v, _ := t.Tag(TypeKey)
	return v
}

// Tag returns the value for key and whether the key is present.
func (t Tags) Tag(key string) (string, bool) {
	i, ok := slices.BinarySearchFunc(t.tags, key, func(tag Tag, key string) int {
		return strings.Compare(tag.Key, key)
	})
	if !ok {
		return "", false
	}
	return t.tags[i].Value, true
}

// With returns a copy of the set with key set to value.
func (t Tags) With(key, value string) Tags {
	tags := make([]Tag, 0, len(t.tags)+1)
	for _, tag := range t.tags {
		if tag.Key != key {
			tags = append(tags, tag)
		}
	}
	tags = append(tags, Tag{Key: key, Value: value})
	return build(tags)
}

// Len returns the number of tags in the set.
func (t Tags) Len() int {
	return len(t.tags)
}

// Slice returns a copy of the tags ordered by key.
func (t Tags) Slice() []Tag {
	return slices.Clone(t.tags)
}

// Map returns a copy of the tags as a map.
func (t Tags) Map() map[string]string {
	m := make(map[string]string, len(t.tags))
	for _, tag := range t.tags {
		m[tag.Key] = tag.Value
	}
	return m
}

// Key returns a string that is equal for two tag sets if and only if the sets
// are equal. It is suitable for use as a map key.
func (t Tags) Key() string {
	return t.key
}

func (t Tags) Equal(other Tags) bool {
	return t.key == other.key
}

// Compare orders tag sets by comparing tags pairwise in key order, then by
// length.
func (t Tags) Compare(other Tags) int {
	return slices.CompareFunc(t.tags, other.tags, func(a, b Tag) int {
		if c := strings.Compare(a.Key, b.Key); c != 0 {
			return c
		}
		return strings.Compare(a.Value, b.Value)
	})
}

// String renders the set as the name followed by the remaining tags in
// square brackets.
func (t Tags) String() string {
	var s strings.Builder
	s.WriteString(t.Name())

	n := 0
	for _, tag := range t.tags {
		if tag.Key == NameKey {
			continue
		}
		if n == 0 {
			s.WriteByte('[')
		} else {
			s.WriteByte(',')
		}
		s.WriteString(tag.Key)
		if tag.Value != "" {
			s.WriteByte(':')
			s.WriteString(tag.Value)
		}
		n++
	}
	if n > 0 {
		s.WriteByte(']')
	}
	return s.String()
}

// Parse is the inverse of String. Whitespace around each tag is trimmed and
// empty tags are ignored.
func Parse(s string) (Tags, error) {
	start := strings.IndexByte(s, '[')
	if start < 0 {
		if strings.ContainsRune(s, ']') {
			return Tags{}, errors.Errorf("invalid tags %q: unexpected ']'", s)
		}
		return New(s, nil), nil
	}
	if !strings.HasSuffix(s, "]") {
		return Tags{}, errors.Errorf("invalid tags %q: missing closing ']'", s)
	}

	extra := make(map[string]string)
	for _, part := range strings.Split(s[start+1:len(s)-1], ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		k, v, _ := strings.Cut(part, ":")
		extra[k] = v
	}
	return New(s[:start], extra), nil
}
