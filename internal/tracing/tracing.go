// Package tracing sets up the OpenTelemetry tracer used around scraping runs.
// Finished spans are written to the application log at debug level.
package tracing

import (
	"context"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

// InstrumentationName names the tracer of the scraping pipeline
const InstrumentationName = "github.com/amaumene/geowatch"

// NewProvider creates a tracer provider that logs every finished span
func NewProvider(logger *logrus.Logger) *sdktrace.TracerProvider {
	return sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
		sdktrace.WithSpanProcessor(&logProcessor{logger: logger}),
	)
}

// Tracer returns the pipeline tracer of a provider
func Tracer(provider trace.TracerProvider) trace.Tracer {
	return provider.Tracer(InstrumentationName)
}

type logProcessor struct {
	logger *logrus.Logger
}

func (p *logProcessor) OnStart(context.Context, sdktrace.ReadWriteSpan) {}

func (p *logProcessor) OnEnd(span sdktrace.ReadOnlySpan) {
	if !p.logger.IsLevelEnabled(logrus.DebugLevel) {
		return
	}

	fields := logrus.Fields{
		"span":     span.Name(),
		"trace_id": span.SpanContext().TraceID().String(),
		"duration": span.EndTime().Sub(span.StartTime()).String(),
	}
	for _, attr := range span.Attributes() {
		fields[string(attr.Key)] = attr.Value.Emit()
	}

	entry := p.logger.WithFields(fields)
	if status := span.Status(); status.Code == codes.Error {
		entry.WithField("error", status.Description).Debug("Span failed")
		return
	}
	entry.Debug("Span finished")
}

func (p *logProcessor) Shutdown(context.Context) error { return nil }

func (p *logProcessor) ForceFlush(context.Context) error { return nil }
