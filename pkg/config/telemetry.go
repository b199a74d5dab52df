package config

import (
	"context"
	"errors"
	"os"
	"time"

	otlpruntime "go.opentelemetry.io/contrib/instrumentation/runtime"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/mpapenbr/zenride/version"
)

type Telemetry struct {
	meterProvider  *metric.MeterProvider
	tracerProvider *sdktrace.TracerProvider
}

func (t *Telemetry) Shutdown(ctx context.Context) error {
	if t == nil {
		return nil
	}
	var errs []error
	if t.tracerProvider != nil {
		errs = append(errs, t.tracerProvider.Shutdown(ctx))
	}
	if t.meterProvider != nil {
		errs = append(errs, t.meterProvider.Shutdown(ctx))
	}
	return errors.Join(errs...)
}

func newResource() (*resource.Resource, error) {
	res, err := resource.Merge(resource.Default(),
		resource.NewSchemaless(
			attribute.String("service.name", "zenride"),
			attribute.String("service.version", version.Version),
		))
	if err != nil && !errors.Is(err, resource.ErrPartialResource) {
		return nil, err
	}
	return res, nil
}

// SetupTelemetry registers global meter and tracer providers and starts
// collecting runtime metrics.
// Data is exported via OTLP/gRPC to TelemetryEndpoint.
// If TelemetryEndpoint is "stdout" it is written to stdout instead.
func SetupTelemetry(ctx context.Context) (*Telemetry, error) {
	res, err := newResource()
	if err != nil {
		return nil, err
	}
	mp, err := newMeterProvider(ctx, res)
	if err != nil {
		return nil, err
	}
	tp, err := newTracerProvider(ctx, res)
	if err != nil {
		//nolint:errcheck // already failing
		mp.Shutdown(ctx)
		return nil, err
	}
	otel.SetMeterProvider(mp)
	otel.SetTracerProvider(tp)
	if err := otlpruntime.Start(
		otlpruntime.WithMinimumReadMemStatsInterval(time.Second)); err != nil {
		return nil, err
	}
	return &Telemetry{meterProvider: mp, tracerProvider: tp}, nil
}

//nolint:whitespace // editor/linter issue
func newMeterProvider(
	ctx context.Context,
	res *resource.Resource,
) (*metric.MeterProvider, error) {
	var exporter metric.Exporter
	var err error
	if TelemetryEndpoint == "stdout" {
		exporter, err = stdoutmetric.New(stdoutmetric.WithWriter(os.Stdout))
	} else {
		exporter, err = otlpmetricgrpc.New(ctx,
			otlpmetricgrpc.WithEndpoint(TelemetryEndpoint),
			otlpmetricgrpc.WithInsecure())
	}
	if err != nil {
		return nil, err
	}
	return metric.NewMeterProvider(
		metric.WithResource(res),
		metric.WithReader(metric.NewPeriodicReader(exporter,
			metric.WithInterval(15*time.Second))),
	), nil
}

//nolint:whitespace // editor/linter issue
func newTracerProvider(
	ctx context.Context,
	res *resource.Resource,
) (*sdktrace.TracerProvider, error) {
	var exporter sdktrace.SpanExporter
	var err error
	if TelemetryEndpoint == "stdout" {
		exporter, err = stdouttrace.New(stdouttrace.WithWriter(os.Stdout))
	} else {
		exporter, err = otlptracegrpc.New(ctx,
			otlptracegrpc.WithEndpoint(TelemetryEndpoint),
			otlptracegrpc.WithInsecure())
	}
	if err != nil {
		return nil, err
	}
	return sdktrace.NewTracerProvider(
		sdktrace.WithResource(res),
		sdktrace.WithBatcher(exporter),
	), nil
}
