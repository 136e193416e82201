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

package main

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v2"

	"github.com/palantir/go-tagmetrics/appmetrics"
	"github.com/palantir/go-tagmetrics/appmetrics/emitter/datadog"
	promemitter "github.com/palantir/go-tagmetrics/appmetrics/emitter/prometheus"
	"github.com/palantir/go-tagmetrics/httpmetrics"
	"github.com/palantir/go-tagmetrics/tagmetrics"
)

type Config struct {
	Server  ServerConfig      `yaml:"server"`
	Metrics tagmetrics.Config `yaml:"metrics"`
	Datadog datadog.Config    `yaml:"datadog"`
	App     AppConfig         `yaml:"app"`
}

type ServerConfig struct {
	Address string `yaml:"address"`
	Port    int    `yaml:"port"`
}

type AppConfig struct {
	Message string `yaml:"message"`
}

func ReadConfig(path string) (Config, error) {
	var c Config

	b, err := os.ReadFile(path)
	if err != nil {
		return c, errors.Wrapf(err, "failed reading server config file: %s", path)
	}
	if err := yaml.UnmarshalStrict(b, &c); err != nil {
		return c, errors.Wrap(err, "failed parsing configuration file")
	}

	c.Metrics.SetValuesFromEnv("EXAMPLE_METRICS_")
	c.Metrics = c.Metrics.WithDefaults()
	return c, nil
}

// AppMetrics are the metrics reported by MessageHandler.
type AppMetrics struct {
	Messages       appmetrics.Tagged[*tagmetrics.Counter[int64]] `metric:"example.messages" metric-tags:"handler:message"`
	MessageLength  *tagmetrics.Gauge[int64]                      `metric:"example.message.length"`
	ConfiguredText *tagmetrics.Gauge[string]                     `metric:"example.message.text"`

	message string
}

func (m *AppMetrics) ComputeMessageLength() int64 {
	return int64(len(m.message))
}

func (m *AppMetrics) ComputeConfiguredText() string {
	return m.message
}

type MessageHandler struct {
	Message string
	Metrics *AppMetrics
}

func (h *MessageHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := zerolog.Ctx(ctx)

	// Logging example
	logger.Info().Str("user-agent", r.Header.Get("User-Agent")).Msg("Received request")

	// Metrics example
	h.Metrics.Messages.Tag("format:json").Inc()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"message": h.Message,
	})
}

// type assertion
var _ http.Handler = &MessageHandler{}

func main() {
	// Load your configuration from a file
	config, err := ReadConfig("example/config.yml")
	if err != nil {
		panic(err)
	}

	// Configure a root logger for everything to use
	logger, err := tagmetrics.ConfigureDefaultLogger(config.Metrics.Logging)
	if err != nil {
		panic(err)
	}

	// Create a registry that ticks meters and timers in the background
	registry := tagmetrics.NewRegistry(
		tagmetrics.WithConfig(config.Metrics),
		tagmetrics.WithLogger(logger),
	)
	defer registry.Close()

	// Bind application metrics to the registry
	appMetrics := appmetrics.New[AppMetrics](registry)
	appMetrics.message = config.App.Message

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Start a goroutine to emit metrics to Datadog
	if err := datadog.StartEmitter(ctx, registry, config.Datadog, logger); err != nil {
		panic(err)
	}

	// Expose the same metrics to Prometheus
	promRegistry := prometheus.NewRegistry()
	promRegistry.MustRegister(promemitter.NewCollector(registry, promemitter.WithLogger(logger)))

	mux := http.NewServeMux()
	mux.Handle("GET /api/message", &MessageHandler{Message: config.App.Message, Metrics: appMetrics})
	mux.HandleFunc("GET /api/health", func(w http.ResponseWriter, r *http.Request) {
		httpmetrics.Ignore(r, httpmetrics.IgnoreRule{Logs: true, Metrics: true})
		w.WriteHeader(http.StatusOK)
	})
	mux.Handle("GET /metrics", promhttp.HandlerFor(promRegistry, promhttp.HandlerOpts{}))

	server := &http.Server{
		Addr:              config.Server.Address + ":" + strconv.Itoa(config.Server.Port),
		Handler:           httpmetrics.Chain(mux, httpmetrics.DefaultMiddleware(logger, registry)...),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	logger.Info().Str("address", server.Addr).Msg("Server listening")
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error().Err(err).Msg("Server failed")
	}
}
