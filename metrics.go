// Copyright (C) 2025 MyCastle Ltd. All rights reserved.
//
// adminrpc is licensed under the Apache License Version 2.0.

package adminrpc

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/mycastle/adminrpc"

// serverMetrics holds the instruments recorded around every processed
// request. Attributes stay low-cardinality: method names come from the closed
// method enum and error codes from the closed taxonomy.
type serverMetrics struct {
	requestCounter metric.Int64Counter
	errorCounter   metric.Int64Counter
	latencyHist    metric.Float64Histogram
	inFlightGauge  metric.Int64UpDownCounter
	tracer         trace.Tracer
}

// newServerMetrics builds instruments from the given providers. Nil providers
// fall back to the globals, which default to no-ops, so an unconfigured
// server records nothing without branching at call sites.
func newServerMetrics(mp metric.MeterProvider, tp trace.TracerProvider) *serverMetrics {
	if mp == nil {
		mp = otel.GetMeterProvider()
	}
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	meter := mp.Meter(instrumentationName)

	requestCounter, _ := meter.Int64Counter("adminrpc_requests_total",
		metric.WithDescription("Total number of processed requests"))
	errorCounter, _ := meter.Int64Counter("adminrpc_errors_total",
		metric.WithDescription("Total number of error responses"))
	latencyHist, _ := meter.Float64Histogram("adminrpc_request_duration_ms",
		metric.WithDescription("Request latency in ms"), metric.WithUnit("ms"))
	inFlightGauge, _ := meter.Int64UpDownCounter("adminrpc_requests_in_flight",
		metric.WithDescription("Number of requests in flight"))

	return &serverMetrics{
		requestCounter: requestCounter,
		errorCounter:   errorCounter,
		latencyHist:    latencyHist,
		inFlightGauge:  inFlightGauge,
		tracer:         tp.Tracer(instrumentationName),
	}
}

func (m *serverMetrics) recordRequest(ctx context.Context, method string) {
	m.requestCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("method", method)))
}

func (m *serverMetrics) recordError(ctx context.Context, method string, code int) {
	m.errorCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("method", method),
		attribute.Int("code", code),
	))
}

func (m *serverMetrics) recordLatency(ctx context.Context, method string, latencyMs float64) {
	m.latencyHist.Record(ctx, latencyMs, metric.WithAttributes(attribute.String("method", method)))
}

func (m *serverMetrics) recordInFlight(ctx context.Context, method string, count int64) {
	m.inFlightGauge.Add(ctx, count, metric.WithAttributes(attribute.String("method", method)))
}

// startSpan opens a span for one request. The method attribute is attached at
// start; the error code, if any, is attached by the processor before End.
func (m *serverMetrics) startSpan(ctx context.Context, method string) (context.Context, trace.Span) {
	return m.tracer.Start(ctx, "adminrpc.request",
		trace.WithAttributes(attribute.String("method", method)))
}
