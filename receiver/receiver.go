package receiver

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	goerrors "github.com/goliatone/go-errors"
	glog "github.com/goliatone/go-logger/glog"

	"github.com/goliatone/go-identity-webhooks/core"
)

// EnvelopeDispatcher routes a parsed event after the sender was
// acknowledged.
type EnvelopeDispatcher interface {
	Dispatch(ctx context.Context, env core.Envelope) (core.DispatchResult, error)
}

// Receiver is the HTTP endpoint for inbound identity webhooks.
//
// Request handling is strictly ordered: capture raw bytes, verify the
// signature over exactly those bytes, parse the envelope, write and flush
// the acknowledgement, then dispatch. Dispatch runs on its own goroutine
// detached from the request context unless SyncDispatch is set.
type Receiver struct {
	Source          string
	Verifier        core.Verifier
	Dispatcher      EnvelopeDispatcher
	Burst           BurstController
	MaxBodyBytes    int64
	DispatchTimeout time.Duration
	// SyncDispatch runs the handler on the request goroutine, after the
	// acknowledgement is flushed. The response does not change; only the
	// goroutine does.
	SyncDispatch bool
	Logger       core.Logger
	Metrics      core.MetricsRecorder
	ErrorMapper  core.ErrorMapper
	// Observer, when set, receives every terminal delivery outcome with
	// timing. The facade wires the runtime here.
	Observer core.DispatchObserver

	inflight sync.WaitGroup
}

func New(source string, verifier core.Verifier, dispatcher EnvelopeDispatcher) *Receiver {
	return &Receiver{
		Source:       strings.TrimSpace(source),
		Verifier:     verifier,
		Dispatcher:   dispatcher,
		MaxBodyBytes: core.DefaultMaxBodyBytes,
		Logger:       glog.Nop(),
	}
}

// FromConfig applies receiver settings from resolved configuration.
func (rc *Receiver) FromConfig(cfg core.Config) *Receiver {
	if rc == nil {
		return nil
	}
	if cfg.Receiver.MaxBodyBytes > 0 {
		rc.MaxBodyBytes = cfg.Receiver.MaxBodyBytes
	}
	if strings.TrimSpace(cfg.Dispatch.Source) != "" {
		rc.Source = strings.TrimSpace(cfg.Dispatch.Source)
	}
	return rc
}

func (rc *Receiver) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if rc == nil {
		http.Error(w, "receiver not configured", http.StatusInternalServerError)
		return
	}
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		rc.writeError(w, goerrors.New("receiver: method not allowed", goerrors.CategoryBadInput).
			WithCode(http.StatusMethodNotAllowed).
			WithTextCode(core.WebhookErrorBadPayload))
		return
	}
	startedAt := time.Now().UTC()

	body, err := rc.readBody(w, r)
	if err != nil {
		status := rc.writeError(w, err)
		rc.observeTerminal(r.Context(), startedAt, core.DispatchResult{
			Outcome:    core.OutcomeMalformed,
			StatusCode: status,
		}, err)
		return
	}

	req := core.InboundRequest{
		Source:      rc.source(),
		Headers:     flattenHeaders(r.Header),
		ContentType: r.Header.Get("Content-Type"),
		Body:        body,
		Metadata: map[string]any{
			"remote_addr": r.RemoteAddr,
			"path":        r.URL.Path,
		},
	}

	if rc.Verifier != nil {
		if verifyErr := rc.Verifier.Verify(r.Context(), req); verifyErr != nil {
			rc.logWarn(r.Context(), "webhook signature rejected",
				"source", req.Source, "remote_addr", r.RemoteAddr)
			status := rc.writeError(w, verifyErr)
			rc.observeTerminal(r.Context(), startedAt, core.DispatchResult{
				Outcome:    core.OutcomeUnauthenticated,
				StatusCode: status,
			}, verifyErr)
			return
		}
	}

	env, err := core.DecodeEnvelope(body)
	if err != nil {
		rc.logWarn(r.Context(), "webhook payload rejected",
			"source", req.Source, "error", err.Error())
		status := rc.writeError(w, err)
		rc.observeTerminal(r.Context(), startedAt, core.DispatchResult{
			Outcome:    core.OutcomeMalformed,
			StatusCode: status,
		}, err)
		return
	}

	if rc.Burst != nil {
		decision, burstErr := rc.Burst.Allow(r.Context(), env)
		if burstErr != nil {
			rc.logError(r.Context(), "burst controller failed",
				"source", req.Source, "error", burstErr.Error())
		} else if !decision.Allow {
			rc.logInfo(r.Context(), "webhook delivery coalesced",
				"source", req.Source, "event_type", env.Type, "event_id", env.ID)
			rc.observeTerminal(r.Context(), startedAt, core.DispatchResult{
				Outcome:    core.OutcomeIgnored,
				StatusCode: http.StatusOK,
				EventType:  env.Type,
				EventID:    env.ID,
				Metadata:   map[string]any{"coalesced": true},
			}, nil)
			rc.writeAck(w, env)
			return
		}
	}

	// The sender gets its 200 here. Everything after this line is local
	// processing and must never reach the response.
	rc.writeAck(w, env)

	if rc.SyncDispatch {
		rc.dispatch(r.Context(), startedAt, env)
		return
	}
	dispatchCtx := context.WithoutCancel(r.Context())
	rc.inflight.Add(1)
	go func() {
		defer rc.inflight.Done()
		rc.dispatch(dispatchCtx, startedAt, env)
	}()
}

// Wait blocks until all in-flight dispatches finish. Shutdown hooks and
// tests use it to drain the receiver.
func (rc *Receiver) Wait() {
	if rc != nil {
		rc.inflight.Wait()
	}
}

func (rc *Receiver) dispatch(ctx context.Context, startedAt time.Time, env core.Envelope) {
	defer func() {
		if recovered := recover(); recovered != nil {
			rc.logError(ctx, "webhook dispatch panicked",
				"event_type", env.Type, "event_id", env.ID, "panic", recovered)
		}
	}()
	if rc.Dispatcher == nil {
		rc.logInfo(ctx, "no dispatcher configured, event dropped",
			"event_type", env.Type, "event_id", env.ID)
		return
	}
	if rc.DispatchTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, rc.DispatchTimeout)
		defer cancel()
	}

	result, err := rc.Dispatcher.Dispatch(ctx, env)
	rc.observeTerminal(ctx, startedAt, result, err)
	if err != nil {
		rc.logError(ctx, "webhook dispatch failed",
			"event_type", env.Type, "event_id", env.ID,
			"outcome", string(result.Outcome), "error", err.Error())
		return
	}
	rc.logInfo(ctx, "webhook dispatched",
		"event_type", env.Type, "event_id", env.ID, "outcome", string(result.Outcome))
}

func (rc *Receiver) readBody(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	limit := rc.MaxBodyBytes
	if limit <= 0 {
		limit = core.DefaultMaxBodyBytes
	}
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, limit))
	if err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			return nil, goerrors.New("receiver: request body exceeds limit", goerrors.CategoryBadInput).
				WithCode(http.StatusRequestEntityTooLarge).
				WithTextCode(core.WebhookErrorBadPayload).
				WithMetadata(map[string]any{"limit_bytes": limit})
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryBadInput, "receiver: read request body").
			WithCode(http.StatusBadRequest).
			WithTextCode(core.WebhookErrorBadPayload)
	}
	return body, nil
}

type ackResponse struct {
	Status    string `json:"status"`
	EventType string `json:"event_type,omitempty"`
	EventID   string `json:"event_id,omitempty"`
}

func (rc *Receiver) writeAck(w http.ResponseWriter, env core.Envelope) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(ackResponse{
		Status:    "accepted",
		EventType: env.Type,
		EventID:   env.ID,
	})
	if flusher, ok := w.(http.Flusher); ok {
		flusher.Flush()
	}
}

type errorResponse struct {
	Error errorBody `json:"error"`
}

type errorBody struct {
	Message  string `json:"message"`
	TextCode string `json:"text_code,omitempty"`
}

func (rc *Receiver) writeError(w http.ResponseWriter, err error) int {
	status := http.StatusInternalServerError
	message := "An unexpected error occurred"
	textCode := core.WebhookErrorInternal

	mapper := rc.ErrorMapper
	if mapper == nil {
		mapper = core.MapWebhookError
	}
	if richErr := mapper(err); richErr != nil {
		if richErr.Code > 0 {
			status = richErr.Code
		}
		if strings.TrimSpace(richErr.Message) != "" {
			message = richErr.Message
		}
		if strings.TrimSpace(richErr.TextCode) != "" {
			textCode = richErr.TextCode
		}
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(errorResponse{Error: errorBody{
		Message:  message,
		TextCode: textCode,
	}})
	return status
}

// observeTerminal emits the per-delivery counter and hands the full result
// to the configured observer exactly once per delivery.
func (rc *Receiver) observeTerminal(ctx context.Context, startedAt time.Time, result core.DispatchResult, err error) {
	rc.observe(ctx, result.Outcome, result.EventType)
	if rc == nil || rc.Observer == nil {
		return
	}
	rc.Observer.ObserveDispatch(ctx, startedAt, result, err, map[string]any{
		"source": rc.source(),
	})
}

func (rc *Receiver) observe(ctx context.Context, outcome core.DispatchOutcome, eventType string) {
	if rc == nil || rc.Metrics == nil {
		return
	}
	tags := map[string]string{
		"source":  rc.source(),
		"outcome": string(outcome),
	}
	if eventType != "" {
		tags["event_type"] = eventType
	}
	rc.Metrics.IncCounter(ctx, "webhooks.receiver.total", 1, tags)
}

func (rc *Receiver) source() string {
	if rc != nil && strings.TrimSpace(rc.Source) != "" {
		return strings.TrimSpace(rc.Source)
	}
	return "identity"
}

func (rc *Receiver) logInfo(ctx context.Context, message string, args ...any) {
	rc.log(ctx, func(l core.Logger) { l.Info(message, args...) })
}

func (rc *Receiver) logWarn(ctx context.Context, message string, args ...any) {
	rc.log(ctx, func(l core.Logger) { l.Warn(message, args...) })
}

func (rc *Receiver) logError(ctx context.Context, message string, args ...any) {
	rc.log(ctx, func(l core.Logger) { l.Error(message, args...) })
}

func (rc *Receiver) log(ctx context.Context, emit func(core.Logger)) {
	if rc == nil || rc.Logger == nil {
		return
	}
	logger := rc.Logger
	if ctx != nil {
		logger = logger.WithContext(ctx)
	}
	emit(logger)
}

func flattenHeaders(header http.Header) map[string]string {
	if len(header) == 0 {
		return nil
	}
	flat := make(map[string]string, len(header))
	for key, values := range header {
		if len(values) == 0 {
			continue
		}
		flat[key] = values[0]
	}
	return flat
}
