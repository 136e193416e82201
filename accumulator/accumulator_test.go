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

package accumulator

import (
	"math"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

var (
	_ Accumulator = &SlidingWindow{}
	_ Accumulator = &ExpDecay{}
)

func TestSnapshot(t *testing.T) {
	t.Run("empty", func(t *testing.T) {
		s := NewSnapshot(nil)
		assert.Equal(t, 0, s.Size())
		assert.Equal(t, int64(0), s.Min())
		assert.Equal(t, int64(0), s.Max())
		assert.Equal(t, 0.0, s.Mean())
		assert.Equal(t, []float64{0, 0}, s.Percentiles([]float64{0.5, 0.99}))
	})

	t.Run("statistics", func(t *testing.T) {
		s := NewSnapshot([]int64{5, 3, 1, 4, 2})
		assert.Equal(t, []int64{1, 2, 3, 4, 5}, s.Values())
		assert.Equal(t, int64(15), s.Sum())
		assert.Equal(t, 3.0, s.Mean())
		assert.Equal(t, 2.0, s.Variance())
		assert.InDelta(t, math.Sqrt2, s.StdDev(), 1e-9)
		assert.Equal(t, 3.0, s.Percentile(0.5))
	})

	t.Run("inputCopied", func(t *testing.T) {
		values := []int64{2, 1}
		s := NewSnapshot(values)
		values[0] = 100
		assert.Equal(t, int64(2), s.Max())
	})
}

func TestSlidingWindow(t *testing.T) {
	t.Run("exact", func(t *testing.T) {
		w := NewSlidingWindow(5)
		for _, v := range []int64{1, 2, 3, 4, 5} {
			w.Update(v)
		}

		s := w.Snapshot()
		assert.Equal(t, 3.0, s.Mean())
		assert.Equal(t, int64(1), s.Min())
		assert.Equal(t, int64(5), s.Max())
	})

	t.Run("evictsOldest", func(t *testing.T) {
		w := NewSlidingWindow(3)
		for v := int64(1); v <= 10; v++ {
			w.Update(v)
		}

		assert.Equal(t, 3, w.Size())
		assert.Equal(t, []int64{8, 9, 10}, w.Snapshot().Values())
	})

	t.Run("timeWindow", func(t *testing.T) {
		clock := clockwork.NewFakeClock()
		w := NewSlidingTimeWindow(time.Minute, WithClock(clock))

		w.Update(1)
		clock.Advance(30 * time.Second)
		w.Update(2)
		clock.Advance(45 * time.Second)
		w.Update(3)

		assert.Equal(t, []int64{2, 3}, w.Snapshot().Values())

		clock.Advance(2 * time.Minute)
		assert.Equal(t, 0, w.Snapshot().Size())
	})

	t.Run("defaultSize", func(t *testing.T) {
		w := NewSlidingWindow(0)
		for v := 0; v < 2*DefaultSize; v++ {
			w.Update(int64(v))
		}
		assert.Equal(t, DefaultSize, w.Size())
	})

	t.Run("exactProperty", func(t *testing.T) {
		rapid.Check(t, func(rt *rapid.T) {
			values := rapid.SliceOfN(rapid.Int64Range(-1e6, 1e6), 1, 200).Draw(rt, "values")

			w := NewSlidingWindow(len(values))
			var sum int64
			minV, maxV := values[0], values[0]
			for _, v := range values {
				w.Update(v)
				sum += v
				minV = min(minV, v)
				maxV = max(maxV, v)
			}

			s := w.Snapshot()
			assert.Equal(rt, len(values), s.Size())
			assert.Equal(rt, minV, s.Min())
			assert.Equal(rt, maxV, s.Max())
			assert.InDelta(rt, float64(sum)/float64(len(values)), s.Mean(), 1e-6)
		})
	})
}

func TestExpDecay(t *testing.T) {
	t.Run("bounded", func(t *testing.T) {
		s := NewExpDecay(100, 0.99, WithSeed(1))
		for v := 0; v < 10000; v++ {
			s.Update(int64(v))
			require.LessOrEqual(t, s.Size(), 100)
		}

		snapshot := s.Snapshot()
		assert.Equal(t, 100, snapshot.Size())
		assert.GreaterOrEqual(t, snapshot.Min(), int64(0))
		assert.Less(t, snapshot.Max(), int64(10000))
	})

	t.Run("underCapacity", func(t *testing.T) {
		s := NewExpDecay(10, DefaultAlpha, WithSeed(1))
		for _, v := range []int64{1, 2, 3, 4, 5} {
			s.Update(v)
		}

		snapshot := s.Snapshot()
		assert.Equal(t, []int64{1, 2, 3, 4, 5}, snapshot.Values())
		assert.Equal(t, 3.0, snapshot.Mean())
	})

	t.Run("favorsRecent", func(t *testing.T) {
		clock := clockwork.NewFakeClock()
		s := NewExpDecay(100, DefaultAlpha, WithClock(clock), WithSeed(7))

		for v := 0; v < 1000; v++ {
			s.Update(10)
		}
		clock.Advance(10 * time.Minute)
		for v := 0; v < 1000; v++ {
			s.Update(1000)
		}

		// after ten minutes the new samples outweigh the old ones by exp(9)
		assert.Greater(t, s.Snapshot().Mean(), 900.0)
	})

	t.Run("rescaleAfterIdle", func(t *testing.T) {
		clock := clockwork.NewFakeClock()
		s := NewExpDecay(10, DefaultAlpha, WithClock(clock), WithSeed(3))
		for v := int64(0); v < 20; v++ {
			s.Update(v)
		}

		before := make(map[int64]float64)
		for _, e := range s.entries {
			before[e.value] = e.priority
		}

		clock.Advance(365 * 24 * time.Hour)
		s.Update(100)

		assert.Equal(t, 10, s.Size())
		assert.Equal(t, clock.Now(), s.anchor)
		for _, e := range s.entries {
			assert.False(t, math.IsInf(e.priority, 0) || math.IsNaN(e.priority), "priority is not finite: %v", e.priority)
		}

		// relative order of surviving samples is unchanged
		var survivors []entry
		for _, e := range s.entries {
			if _, ok := before[e.value]; ok {
				survivors = append(survivors, e)
			}
		}
		for i := range survivors {
			for j := range survivors {
				a, b := survivors[i], survivors[j]
				if before[a.value] < before[b.value] {
					assert.Less(t, a.priority, b.priority)
				}
			}
		}
	})

	t.Run("periodicRescale", func(t *testing.T) {
		clock := clockwork.NewFakeClock()
		s := NewExpDecay(10, DefaultAlpha, WithClock(clock), WithRescaleThreshold(time.Minute), WithSeed(5))

		s.Update(1)
		clock.Advance(90 * time.Second)
		s.Update(2)

		assert.Equal(t, clock.Now(), s.anchor)
		assert.Equal(t, clock.Now().Add(time.Minute), s.nextRescale)
	})
}

func TestConcurrentSnapshot(t *testing.T) {
	accumulators := map[string]Accumulator{
		"sliding":  NewSlidingWindow(64),
		"decaying": NewExpDecay(64, DefaultAlpha),
	}

	for name, acc := range accumulators {
		t.Run(name, func(t *testing.T) {
			var wg sync.WaitGroup
			for w := 0; w < 4; w++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					for v := 0; v < 1000; v++ {
						acc.Update(42)
					}
				}()
			}

			for i := 0; i < 100; i++ {
				s := acc.Snapshot()
				if s.Size() > 0 {
					assert.Equal(t, int64(42), s.Min())
					assert.Equal(t, int64(42), s.Max())
				}
			}
			wg.Wait()

			assert.Equal(t, 64, acc.Snapshot().Size())
		})
	}
}
