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
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v2"

	"github.com/palantir/go-tagmetrics/accumulator"
)

const (
	DefaultTickInterval = 5 * time.Second
)

var (
	DefaultMeterWindows = []time.Duration{time.Minute, 5 * time.Minute, 15 * time.Minute}
)

// Config controls the metrics created by a Registry and its background
// processor. Zero values are replaced by defaults.
type Config struct {
	TickInterval          time.Duration   `yaml:"tick_interval" json:"tick_interval"`
	MeterWindows          []time.Duration `yaml:"meter_windows" json:"meter_windows"`
	SlidingWindowSize     int             `yaml:"sliding_window_size" json:"sliding_window_size"`
	SlidingWindowDuration time.Duration   `yaml:"sliding_window_duration" json:"sliding_window_duration"`
	ReservoirSize         int             `yaml:"reservoir_size" json:"reservoir_size"`
	DecayAlpha            float64         `yaml:"decay_alpha" json:"decay_alpha"`
	RescaleThreshold      time.Duration   `yaml:"rescale_threshold" json:"rescale_threshold"`

	Logging LoggingConfig `yaml:"logging" json:"logging"`
}

type LoggingConfig struct {
	Level string `yaml:"level" json:"level"`
	Text  bool   `yaml:"text" json:"text"`
}

// ParseConfig reads a YAML configuration and fills in defaults.
func ParseConfig(b []byte) (Config, error) {
	var c Config
	if err := yaml.UnmarshalStrict(b, &c); err != nil {
		return c, errors.Wrap(err, "failed to parse metrics configuration")
	}
	return c.WithDefaults(), nil
}

// WithDefaults returns a copy of c with zero values replaced by defaults.
// Non-positive meter windows are dropped.
func (c Config) WithDefaults() Config {
	if c.TickInterval <= 0 {
		c.TickInterval = DefaultTickInterval
	}
	// windows must be positive for the moving averages to decay
	var windows []time.Duration
	for _, w := range c.MeterWindows {
		if w > 0 {
			windows = append(windows, w)
		}
	}
	if len(windows) == 0 {
		windows = append(windows, DefaultMeterWindows...)
	}
	c.MeterWindows = windows
	if c.SlidingWindowSize <= 0 {
		c.SlidingWindowSize = accumulator.DefaultSize
	}
	if c.ReservoirSize <= 0 {
		c.ReservoirSize = accumulator.DefaultSize
	}
	if c.DecayAlpha <= 0 {
		c.DecayAlpha = accumulator.DefaultAlpha
	}
	if c.RescaleThreshold <= 0 {
		c.RescaleThreshold = accumulator.DefaultRescaleThreshold
	}
	return c
}

// SetValuesFromEnv sets values in the configuration from corresponding
// environment variables, if they exist. The optional prefix is added to the
// start of the environment variable names. Values that fail to parse are
// ignored.
func (c *Config) SetValuesFromEnv(prefix string) {
	setDuration(&c.TickInterval, prefix+"TICK_INTERVAL")
	setDuration(&c.SlidingWindowDuration, prefix+"SLIDING_WINDOW_DURATION")
	setDuration(&c.RescaleThreshold, prefix+"RESCALE_THRESHOLD")
	setInt(&c.SlidingWindowSize, prefix+"SLIDING_WINDOW_SIZE")
	setInt(&c.ReservoirSize, prefix+"RESERVOIR_SIZE")

	if v, ok := os.LookupEnv(prefix + "METER_WINDOWS"); ok {
		var windows []time.Duration
		for _, s := range strings.Split(v, ",") {
			if d, err := time.ParseDuration(strings.TrimSpace(s)); err == nil {
				windows = append(windows, d)
			}
		}
		c.MeterWindows = windows
	}
	if v, ok := os.LookupEnv(prefix + "DECAY_ALPHA"); ok {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			c.DecayAlpha = f
		}
	}

	c.Logging.SetValuesFromEnv(prefix + "LOG_")
}

func (c *LoggingConfig) SetValuesFromEnv(prefix string) {
	if v, ok := os.LookupEnv(prefix + "LEVEL"); ok {
		c.Level = v
	}
	if v, ok := os.LookupEnv(prefix + "TEXT"); ok {
		if b, err := strconv.ParseBool(v); err == nil {
			c.Text = b
		}
	}
}

func setDuration(d *time.Duration, key string) {
	if v, ok := os.LookupEnv(key); ok {
		if parsed, err := time.ParseDuration(v); err == nil {
			*d = parsed
		}
	}
}

func setInt(i *int, key string) {
	if v, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.Atoi(v); err == nil {
			*i = parsed
		}
	}
}
