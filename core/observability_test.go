package core

import (
	"context"
	"errors"
	"testing"
	"time"
)

type recordedMetric struct {
	name  string
	value float64
	tags  map[string]string
}

type recordingMetrics struct {
	counters   []recordedMetric
	histograms []recordedMetric
}

func (m *recordingMetrics) IncCounter(_ context.Context, name string, value int64, tags map[string]string) {
	m.counters = append(m.counters, recordedMetric{name: name, value: float64(value), tags: tags})
}

func (m *recordingMetrics) ObserveHistogram(_ context.Context, name string, value float64, tags map[string]string) {
	m.histograms = append(m.histograms, recordedMetric{name: name, value: value, tags: tags})
}

func (m *recordingMetrics) histogram(name string) (recordedMetric, bool) {
	for _, metric := range m.histograms {
		if metric.name == name {
			return metric, true
		}
	}
	return recordedMetric{}, false
}

type capturedLine struct {
	level   string
	message string
	args    []any
}

type capturingLogger struct {
	lines []capturedLine
}

func (l *capturingLogger) Trace(string, ...any) {}
func (l *capturingLogger) Debug(string, ...any) {}
func (l *capturingLogger) Fatal(string, ...any) {}

func (l *capturingLogger) Info(message string, args ...any) {
	l.lines = append(l.lines, capturedLine{level: "info", message: message, args: args})
}

func (l *capturingLogger) Warn(message string, args ...any) {
	l.lines = append(l.lines, capturedLine{level: "warn", message: message, args: args})
}

func (l *capturingLogger) Error(message string, args ...any) {
	l.lines = append(l.lines, capturedLine{level: "error", message: message, args: args})
}

func (l *capturingLogger) WithContext(context.Context) Logger { return l }

func (l *capturingLogger) last() (capturedLine, bool) {
	if len(l.lines) == 0 {
		return capturedLine{}, false
	}
	return l.lines[len(l.lines)-1], true
}

func (line capturedLine) field(key string) (any, bool) {
	for i := 0; i+1 < len(line.args); i += 2 {
		if line.args[i] == key {
			return line.args[i+1], true
		}
	}
	return nil, false
}

func newObservedRuntime(t *testing.T, logger Logger, metrics MetricsRecorder) *Runtime {
	t.Helper()
	runtime, err := NewRuntime(DefaultConfig(),
		WithSecretSource(staticKeySource{keys: [][]byte{[]byte("k")}}),
		WithLogger(logger),
		WithMetricsRecorder(metrics),
	)
	if err != nil {
		t.Fatalf("new runtime: %v", err)
	}
	return runtime
}

func TestObserveDispatch_EmitsHistogramAndRedactsSensitiveFields(t *testing.T) {
	logger := &capturingLogger{}
	metrics := &recordingMetrics{}
	runtime := newObservedRuntime(t, logger, metrics)

	runtime.ObserveDispatch(context.Background(),
		time.Now().Add(-25*time.Millisecond),
		DispatchResult{
			Outcome:    OutcomeProcessed,
			StatusCode: 200,
			EventType:  EventTypeUserCreated,
			EventID:    "evt-500",
		},
		nil,
		map[string]any{
			"delivery_id": "dlv-1",
			"signing_key": "whsec_live_material",
		},
	)

	histogram, ok := metrics.histogram("webhooks.dispatch.duration_ms")
	if !ok {
		t.Fatalf("expected a duration histogram, got %#v", metrics.histograms)
	}
	if histogram.value < 0 {
		t.Fatalf("expected non-negative duration, got %v", histogram.value)
	}
	if histogram.tags["outcome"] != string(OutcomeProcessed) {
		t.Fatalf("expected outcome tag on the histogram, got %#v", histogram.tags)
	}
	if len(metrics.counters) != 1 || metrics.counters[0].name != "webhooks.dispatch.total" {
		t.Fatalf("expected the dispatch counter, got %#v", metrics.counters)
	}

	line, ok := logger.last()
	if !ok {
		t.Fatalf("expected a log line per observation")
	}
	if line.level != "info" || line.message != "webhook delivery processed" {
		t.Fatalf("expected an info processed line, got %q %q", line.level, line.message)
	}
	if got, _ := line.field("signing_key"); got != RedactedValue {
		t.Fatalf("expected signing_key to be redacted, got %v", got)
	}
	if got, _ := line.field("delivery_id"); got != "dlv-1" {
		t.Fatalf("expected traceability fields to survive redaction, got %v", got)
	}
	if got, _ := line.field("event_id"); got != "evt-500" {
		t.Fatalf("expected event_id on the log line, got %v", got)
	}
}

func TestObserveDispatch_LogsRejectionsAtWarn(t *testing.T) {
	logger := &capturingLogger{}
	metrics := &recordingMetrics{}
	runtime := newObservedRuntime(t, logger, metrics)

	runtime.ObserveDispatch(context.Background(),
		time.Now(),
		DispatchResult{Outcome: OutcomeUnauthenticated, StatusCode: 401},
		errors.New("signature verification failed"),
		nil,
	)

	line, ok := logger.last()
	if !ok {
		t.Fatalf("expected a log line for the rejection")
	}
	if line.level != "warn" || line.message != "webhook delivery rejected" {
		t.Fatalf("expected a warn rejected line, got %q %q", line.level, line.message)
	}
	if got, _ := line.field("error"); got != "signature verification failed" {
		t.Fatalf("expected the verification error on the line, got %v", got)
	}
	if got, _ := line.field("status_code"); got != 401 {
		t.Fatalf("expected status_code 401, got %v", got)
	}
}
