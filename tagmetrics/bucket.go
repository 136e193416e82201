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
	"slices"
	"sync"
	"weak"

	"github.com/palantir/go-tagmetrics/tags"
)

// bucket maps tag sets to metrics of a single type. It only holds weak
// references: a metric stays in the bucket while some caller holds it, and
// its entry is treated as absent once it has been collected.
type bucket[M any] struct {
	mu        sync.Mutex
	instances map[string]ref[M]
}

type ref[M any] struct {
	tags tags.Tags
	ptr  weak.Pointer[M]
}

// getOrCreate returns the live metric for t or stores the result of create.
// The check and the insert happen under the lock, so concurrent callers
// always agree on one instance.
func (b *bucket[M]) getOrCreate(t tags.Tags, create func() *M) *M {
	b.mu.Lock()
	defer b.mu.Unlock()

	if r, ok := b.instances[t.Key()]; ok {
		if m := r.ptr.Value(); m != nil {
			return m
		}
	}

	if b.instances == nil {
		b.instances = make(map[string]ref[M])
	}
	m := create()
	b.instances[t.Key()] = ref[M]{tags: t, ptr: weak.Make(m)}
	return m
}

func (b *bucket[M]) get(t tags.Tags) *M {
	b.mu.Lock()
	defer b.mu.Unlock()

	if r, ok := b.instances[t.Key()]; ok {
		return r.ptr.Value()
	}
	return nil
}

// remove deletes the entry for t, live or not, and reports whether there was
// one.
func (b *bucket[M]) remove(t tags.Tags) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.instances[t.Key()]; !ok {
		return false
	}
	delete(b.instances, t.Key())
	return true
}

// collect returns the live metrics ordered by tags and deletes the entries of
// collected metrics.
func (b *bucket[M]) collect() []*M {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.live(true)
}

// snapshot returns the live metrics ordered by tags without modifying the
// bucket.
func (b *bucket[M]) snapshot() []*M {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.live(false)
}

// len returns the number of entries, including entries of collected metrics.
func (b *bucket[M]) len() int {
	b.mu.Lock()
	defer b.mu.Unlock()

	return len(b.instances)
}

func (b *bucket[M]) live(prune bool) []*M {
	type pair struct {
		tags   tags.Tags
		metric *M
	}

	pairs := make([]pair, 0, len(b.instances))
	for k, r := range b.instances {
		m := r.ptr.Value()
		if m == nil {
			if prune {
				delete(b.instances, k)
			}
			continue
		}
		pairs = append(pairs, pair{tags: r.tags, metric: m})
	}

	slices.SortFunc(pairs, func(a, b pair) int {
		return a.tags.Compare(b.tags)
	})

	out := make([]*M, len(pairs))
	for i, p := range pairs {
		out[i] = p.metric
	}
	return out
}
