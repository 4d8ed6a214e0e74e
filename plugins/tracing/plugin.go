/*
   Copyright The Zero OS Authors.

   Licensed under the Apache License, Version 2.0 (the "License");
   you may not use this file except in compliance with the License.
   You may obtain a copy of the License at

       http://www.apache.org/licenses/LICENSE-2.0

   Unless required by applicable law or agreed to in writing, software
   distributed under the License is distributed on an "AS IS" BASIS,
   WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
   See the License for the specific language governing permissions and
   limitations under the License.
*/

// Package plugin wires an otel TracerProvider for the Gateway's Dispatch
// spans. It is off by default (Config.Exporter == ""): the kernel never
// needs tracing to operate correctly, only to diagnose it, so the plugin
// degrades to a no-op provider rather than failing boot when no
// collector endpoint is configured.
package plugin

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/containerd/plugin"
	"github.com/containerd/plugin/registry"

	zplugins "github.com/zeroos-project/zeroos/plugins"
)

// Config is the TOML-visible tracing configuration.
type Config struct {
	// Exporter selects the span exporter: "", "otlpgrpc", or "otlphttp".
	// An empty value disables tracing entirely.
	Exporter string `toml:"exporter"`
	Endpoint string `toml:"endpoint"`
}

func init() {
	registry.Register(&plugin.Registration{
		Type:   zplugins.TracingPlugin,
		ID:     "otel",
		Config: &Config{},
		InitFn: func(ic *plugin.InitContext) (interface{}, error) {
			cfg := ic.Config.(*Config)
			return newProvider(ic.Context, cfg)
		},
	})
}

func newProvider(ctx context.Context, cfg *Config) (trace.TracerProvider, error) {
	if cfg.Exporter == "" {
		return trace.NewNoopTracerProvider(), nil
	}

	exp, err := newExporter(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("constructing %s span exporter: %w", cfg.Exporter, err)
	}

	res, err := resource.New(ctx, resource.WithAttributes(semconv.ServiceName("zeroosd")))
	if err != nil {
		return nil, fmt.Errorf("building trace resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exp),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)
	return tp, nil
}

func newExporter(ctx context.Context, cfg *Config) (sdktrace.SpanExporter, error) {
	switch cfg.Exporter {
	case "otlpgrpc":
		return otlptracegrpc.New(ctx, otlptracegrpc.WithEndpoint(cfg.Endpoint), otlptracegrpc.WithInsecure())
	case "otlphttp":
		return otlptracehttp.New(ctx, otlptracehttp.WithEndpoint(cfg.Endpoint), otlptracehttp.WithInsecure())
	default:
		return nil, fmt.Errorf("unknown tracing exporter %q", cfg.Exporter)
	}
}
