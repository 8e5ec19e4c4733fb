package api

import (
	"context"
	"net/http"
	"time"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	tracerName         = "roadmap-planner/roadmap-api"
	requestSpanName    = "roadmap.request"
	requestEventName   = "request.metrics"
	requestEventDomain = "roadmap"
)

type requestMetrics struct {
	logger          *log.Logger
	span            trace.Span
	start           time.Time
	method          string
	route           string
	roadmapID       string
	permission      string
	op              string
	authDuration    time.Duration
	loadDuration    time.Duration
	persistDuration time.Duration
	encodeDuration  time.Duration
	errorStage      string
}

func newRequestMetrics(ctx context.Context, logger *log.Logger, method, route string) (*requestMetrics, context.Context) {
	spanCtx, span := otel.Tracer(tracerName).Start(ctx, requestSpanName, trace.WithSpanKind(trace.SpanKindServer))
	return &requestMetrics{
		logger: logger,
		span:   span,
		start:  time.Now(),
		method: method,
		route:  route,
	}, spanCtx
}

func (m *requestMetrics) ObserveAuth(d time.Duration) {
	if m == nil || d <= 0 {
		return
	}
	m.authDuration = d
}

func (m *requestMetrics) ObserveLoad(d time.Duration) {
	if m == nil || d <= 0 {
		return
	}
	m.loadDuration += d
}

func (m *requestMetrics) ObservePersist(d time.Duration) {
	if m == nil || d <= 0 {
		return
	}
	m.persistDuration += d
}

func (m *requestMetrics) ObserveEncode(d time.Duration) {
	if m == nil || d <= 0 {
		return
	}
	m.encodeDuration = d
}

func (m *requestMetrics) SetRoadmap(id string, perm string) {
	if m == nil {
		return
	}
	m.roadmapID = id
	m.permission = perm
}

func (m *requestMetrics) SetOp(op string) {
	if m == nil {
		return
	}
	m.op = op
}

func (m *requestMetrics) SetErrorStage(stage string) {
	if m == nil || stage == "" {
		return
	}
	m.errorStage = stage
}

// severityForStatus maps a response to OpenTelemetry log severity text and
// number.
func severityForStatus(status int, err error) (string, int) {
	switch {
	case err != nil || status >= http.StatusInternalServerError:
		return "ERROR", 17
	case status >= http.StatusBadRequest:
		return "WARN", 13
	default:
		return "INFO", 9
	}
}

// Log ends the request span and writes one structured entry for the request.
func (m *requestMetrics) Log(status int, err error) {
	if m == nil {
		return
	}
	total := durationToMillis(time.Since(m.start))
	severityText, severityNumber := severityForStatus(status, err)

	attrs := []attribute.KeyValue{
		attribute.String("http.route", m.route),
		attribute.String("http.method", m.method),
		attribute.Int("http.status_code", status),
		attribute.Float64("roadmap.total_ms", total),
	}
	fields := log.Fields{
		"event.name":      requestEventName,
		"event.domain":    requestEventDomain,
		"route":           m.route,
		"method":          m.method,
		"status":          status,
		"total_ms":        total,
		"severity_text":   severityText,
		"severity_number": severityNumber,
	}
	if m.roadmapID != "" {
		attrs = append(attrs, attribute.String("roadmap.id", m.roadmapID))
		fields["roadmap_id"] = m.roadmapID
	}
	if m.permission != "" {
		attrs = append(attrs, attribute.String("roadmap.permission", m.permission))
		fields["permission"] = m.permission
	}
	if m.op != "" {
		attrs = append(attrs, attribute.String("roadmap.op", m.op))
		fields["op"] = m.op
	}
	for name, d := range map[string]time.Duration{
		"auth_ms":    m.authDuration,
		"load_ms":    m.loadDuration,
		"persist_ms": m.persistDuration,
		"encode_ms":  m.encodeDuration,
	} {
		if d > 0 {
			attrs = append(attrs, attribute.Float64("roadmap."+name, durationToMillis(d)))
			fields[name] = durationToMillis(d)
		}
	}
	if m.errorStage != "" {
		attrs = append(attrs, attribute.String("roadmap.error_stage", m.errorStage))
		fields["error_stage"] = m.errorStage
	}
	if err != nil {
		attrs = append(attrs, attribute.String("error.message", err.Error()))
		fields["error"] = err.Error()
	}

	if m.span != nil {
		m.span.SetAttributes(attrs...)
		m.span.AddEvent(requestEventName, trace.WithAttributes(append(attrs,
			attribute.String("severity_text", severityText),
			attribute.Int("severity_number", severityNumber),
		)...))
		switch {
		case err != nil:
			m.span.SetStatus(codes.Error, err.Error())
		case status >= http.StatusInternalServerError:
			m.span.SetStatus(codes.Error, http.StatusText(status))
		default:
			m.span.SetStatus(codes.Ok, "")
		}
		if sc := m.span.SpanContext(); sc.HasTraceID() {
			fields["trace_id"] = sc.TraceID().String()
			fields["span_id"] = sc.SpanID().String()
		}
		m.span.End()
	}

	if m.logger == nil {
		return
	}
	entry := m.logger.WithFields(fields)
	switch severityText {
	case "ERROR":
		entry.Error(requestEventName)
	case "WARN":
		entry.Warn(requestEventName)
	default:
		entry.Info(requestEventName)
	}
}

func durationToMillis(d time.Duration) float64 {
	if d <= 0 {
		return 0
	}
	return float64(d) / float64(time.Millisecond)
}
