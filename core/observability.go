package core

import (
	"context"
	"sort"
	"strings"
	"time"
)

// ObserveDispatch records the terminal outcome of one inbound delivery:
// a structured log line plus outcome-tagged counters and a duration
// histogram. Sensitive keys are redacted before anything is emitted.
func (r *Runtime) ObserveDispatch(
	ctx context.Context,
	startedAt time.Time,
	result DispatchResult,
	err error,
	fields map[string]any,
) {
	if r == nil {
		return
	}
	outcome := string(result.Outcome)
	if outcome == "" {
		outcome = "unknown"
	}

	contextFields := cloneFields(fields)
	contextFields["outcome"] = outcome
	contextFields["status_code"] = result.StatusCode
	contextFields["duration_ms"] = time.Since(startedAt).Milliseconds()
	if result.EventType != "" {
		contextFields["event_type"] = result.EventType
	}
	if result.EventID != "" {
		contextFields["event_id"] = result.EventID
	}
	if err != nil {
		contextFields["error"] = err.Error()
	}
	contextFields = RedactSensitiveMap(contextFields)

	tags := map[string]string{"outcome": outcome}
	if result.EventType != "" {
		tags["event_type"] = result.EventType
	}
	r.recordCounter(ctx, "webhooks.dispatch.total", 1, tags)
	r.recordHistogram(ctx, "webhooks.dispatch.duration_ms", float64(time.Since(startedAt).Milliseconds()), tags)

	switch result.Outcome {
	case OutcomeUnauthenticated, OutcomeMalformed:
		r.logWithLevel(ctx, "warn", "webhook delivery rejected", contextFields)
	case OutcomeHandlerFailed:
		r.logWithLevel(ctx, "error", "webhook handler failed", contextFields)
	case OutcomeIgnored:
		r.logWithLevel(ctx, "info", "webhook delivery ignored", contextFields)
	default:
		r.logWithLevel(ctx, "info", "webhook delivery processed", contextFields)
	}
}

func (r *Runtime) LogInfo(ctx context.Context, message string, fields map[string]any) {
	r.logWithLevel(ctx, "info", message, fields)
}

func (r *Runtime) LogError(ctx context.Context, message string, fields map[string]any) {
	r.logWithLevel(ctx, "error", message, fields)
}

func (r *Runtime) logWithLevel(ctx context.Context, level string, message string, fields map[string]any) {
	if r == nil || r.logger == nil {
		return
	}
	logger := r.logger
	if ctx != nil {
		logger = logger.WithContext(ctx)
	}
	if fieldsLogger, ok := logger.(FieldsLogger); ok {
		logger = fieldsLogger.WithFields(cloneFields(fields))
	}
	args := flattenFields(fields)
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "error":
		logger.Error(message, args...)
	case "warn":
		logger.Warn(message, args...)
	default:
		logger.Info(message, args...)
	}
}

func (r *Runtime) recordCounter(ctx context.Context, name string, value int64, tags map[string]string) {
	if r == nil || r.metricsRecorder == nil {
		return
	}
	r.metricsRecorder.IncCounter(ctx, strings.TrimSpace(name), value, cloneTags(tags))
}

func (r *Runtime) recordHistogram(ctx context.Context, name string, value float64, tags map[string]string) {
	if r == nil || r.metricsRecorder == nil {
		return
	}
	r.metricsRecorder.ObserveHistogram(ctx, strings.TrimSpace(name), value, cloneTags(tags))
}

func cloneFields(fields map[string]any) map[string]any {
	if len(fields) == 0 {
		return map[string]any{}
	}
	copied := make(map[string]any, len(fields))
	for key, value := range fields {
		copied[key] = value
	}
	return copied
}

func flattenFields(fields map[string]any) []any {
	if len(fields) == 0 {
		return nil
	}
	keys := make([]string, 0, len(fields))
	for key := range fields {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	args := make([]any, 0, len(keys)*2)
	for _, key := range keys {
		args = append(args, key, fields[key])
	}
	return args
}
