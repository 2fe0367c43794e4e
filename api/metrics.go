package api

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	tracerName = "github.com/technicalkuldeep/blood-dapp/api"

	webhookRoute       = "/api/events"
	webhookSpanName    = "webhook.ingest"
	webhookEventName   = "webhook.request"
	webhookEventDomain = "blooddapp.events"
)

// webhookRequestMetrics gathers per-request observability for the
// ingestion path and emits it as one structured log entry plus one span
// when the request finishes.
type webhookRequestMetrics struct {
	logger *log.Logger
	span   trace.Span
	start  time.Time

	decodeDuration  time.Duration
	publishDuration time.Duration
	delivered       int
	donorDrift      bool
	errorStage      string
}

func newWebhookRequestMetrics(ctx context.Context, logger *log.Logger) (*webhookRequestMetrics, context.Context) {
	spanCtx, span := otel.Tracer(tracerName).Start(ctx, webhookSpanName,
		trace.WithSpanKind(trace.SpanKindServer))
	return &webhookRequestMetrics{
		logger:    logger,
		span:      span,
		start:     time.Now(),
		delivered: -1,
	}, spanCtx
}

func (m *webhookRequestMetrics) ObserveDecode(d time.Duration) {
	if d <= 0 {
		return
	}
	m.decodeDuration = d
}

func (m *webhookRequestMetrics) ObservePublish(d time.Duration) {
	if d <= 0 {
		return
	}
	m.publishDuration = d
}

func (m *webhookRequestMetrics) SetDelivered(count int) {
	if count < 0 {
		count = 0
	}
	m.delivered = count
}

func (m *webhookRequestMetrics) SetDonorDrift(drift bool) {
	m.donorDrift = drift
}

func (m *webhookRequestMetrics) SetErrorStage(stage string) {
	if stage == "" {
		return
	}
	m.errorStage = stage
}

// Log finalizes the request: it records the observability event on the
// span, sets span status, ends the span and writes the matching logrus
// entry.
func (m *webhookRequestMetrics) Log(status int, err error) {
	if m == nil {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.String("http.route", webhookRoute),
		attribute.Float64("blood.webhook.total_ms", durationToMillis(time.Since(m.start))),
		attribute.Bool("blood.webhook.donor_drift", m.donorDrift),
	}
	if m.decodeDuration > 0 {
		attrs = append(attrs, attribute.Float64("blood.webhook.decode_ms", durationToMillis(m.decodeDuration)))
	}
	if m.publishDuration > 0 {
		attrs = append(attrs, attribute.Float64("blood.webhook.publish_ms", durationToMillis(m.publishDuration)))
	}
	if m.delivered >= 0 {
		attrs = append(attrs, attribute.Int("blood.webhook.delivered", m.delivered))
	}
	if m.errorStage != "" {
		attrs = append(attrs, attribute.String("blood.webhook.error_stage", m.errorStage))
	}

	severityText, severityNumber := severityForStatus(status, err)
	eventAttrs := append([]attribute.KeyValue{
		attribute.String("event.name", webhookEventName),
		attribute.String("event.domain", webhookEventDomain),
		attribute.String("severity_text", severityText),
		attribute.Int("severity_number", severityNumber),
	}, attrs...)
	if err != nil {
		eventAttrs = append(eventAttrs, attribute.String("error.message", err.Error()))
	}

	if m.span != nil {
		m.span.SetAttributes(append(attrs, attribute.Int("http.status_code", status))...)
		m.span.AddEvent("observability.event", trace.WithAttributes(eventAttrs...))
		if err != nil || status >= 500 {
			desc := "internal failure"
			if err != nil {
				desc = err.Error()
			}
			m.span.SetStatus(codes.Error, desc)
		} else {
			m.span.SetStatus(codes.Ok, "")
		}
		m.span.End()
	}

	if m.logger == nil {
		return
	}
	fields := log.Fields{
		"event.name":      webhookEventName,
		"event.domain":    webhookEventDomain,
		"attributes":      attributesToFields(attrs),
		"severity_text":   severityText,
		"severity_number": severityNumber,
		"status":          status,
	}
	if m.span != nil {
		if sc := m.span.SpanContext(); sc.HasTraceID() {
			fields["trace_id"] = sc.TraceID().String()
		}
	}
	if err != nil {
		fields["error"] = err.Error()
	}
	entry := m.logger.WithFields(fields)
	switch {
	case severityNumber >= 17:
		entry.Error("observability.event")
	case severityNumber >= 13:
		entry.Warn("observability.event")
	default:
		entry.Info("observability.event")
	}
}

func severityForStatus(status int, err error) (string, int) {
	switch {
	case err != nil || status >= 500:
		return "ERROR", 17
	case status >= 400:
		return "WARN", 13
	default:
		return "INFO", 9
	}
}

func attributesToFields(attrs []attribute.KeyValue) map[string]any {
	out := make(map[string]any, len(attrs))
	for _, kv := range attrs {
		out[string(kv.Key)] = kv.Value.AsInterface()
	}
	return out
}

func durationToMillis(d time.Duration) float64 {
	if d <= 0 {
		return 0
	}
	return float64(d) / float64(time.Millisecond)
}
