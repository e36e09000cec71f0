// Copyright 2026 Blink Labs Software
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
package node

import (
	"context"
	"fmt"

	"github.com/blinklabs-io/squadgov/internal/config"
	"github.com/blinklabs-io/squadgov/internal/version"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

type shutdownFunc func(context.Context) error

// setupTracing installs a global tracer provider. The OTLP exporter is
// configured with the standard OTEL_EXPORTER_OTLP_* environment variables.
func setupTracing(
	ctx context.Context,
	exporterType config.TracingExporter,
) (shutdownFunc, error) {
	var exporter sdktrace.SpanExporter
	var err error
	switch exporterType {
	case config.TracingNone:
		return func(context.Context) error { return nil }, nil
	case config.TracingStdout:
		exporter, err = stdouttrace.New()
	case config.TracingOtlp:
		exporter, err = otlptracehttp.New(ctx)
	default:
		return nil, fmt.Errorf("unknown tracing exporter: %s", exporterType)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create trace exporter: %w", err)
	}
	res, err := resource.Merge(
		resource.Default(),
		resource.NewSchemaless(
			attribute.String("service.name", programName),
			attribute.String("service.version", version.GetVersionString()),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to build trace resource: %w", err)
	}
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)
	return tp.Shutdown, nil
}
