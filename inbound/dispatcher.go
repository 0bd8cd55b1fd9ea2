package inbound

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	goerrors "github.com/goliatone/go-errors"
	glog "github.com/goliatone/go-logger/glog"
	"github.com/goliatone/go-identity-webhooks/core"
)

// RetryPolicy decides how long a failed delivery waits before it becomes
// claimable again.
type RetryPolicy interface {
	NextDelay(attempt int) time.Duration
}

type ExponentialRetryPolicy struct {
	Initial time.Duration
	Max     time.Duration
}

func (p ExponentialRetryPolicy) NextDelay(attempt int) time.Duration {
	initial := p.Initial
	if initial <= 0 {
		initial = time.Second
	}
	maximum := p.Max
	if maximum <= 0 {
		maximum = 30 * time.Second
	}
	delay := initial
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= maximum {
			return maximum
		}
	}
	if delay > maximum {
		return maximum
	}
	return delay
}

// Dispatcher routes one envelope to exactly one handler by event type.
// Several discriminators may alias to the same handler; unrecognized
// discriminators go to the fallback, which defaults to log-only.
//
// Either Ledger (durable, payload-retaining) or Store (lightweight) may
// provide dedupe; with neither configured every delivery dispatches,
// which leaves duplicate tolerance entirely to handlers.
type Dispatcher struct {
	Source      string
	Store       core.IdempotencyClaimStore
	Ledger      core.DeliveryLedger
	Fallback    core.EventHandler
	RetryPolicy RetryPolicy
	ClaimLease  time.Duration
	MaxAttempts int
	Logger      core.Logger
	Now         func() time.Time

	mu       sync.RWMutex
	handlers map[string]core.EventHandler
}

func NewDispatcher(source string) *Dispatcher {
	return &Dispatcher{
		Source:      strings.TrimSpace(source),
		RetryPolicy: ExponentialRetryPolicy{},
		ClaimLease:  core.DefaultClaimLease,
		MaxAttempts: core.DefaultMaxAttempts,
		Logger:      glog.Nop(),
		Now: func() time.Time {
			return time.Now().UTC()
		},
		handlers: map[string]core.EventHandler{},
	}
}

// Register binds handler to every discriminator it reports. Registering a
// discriminator twice is a conflict: exactly one handler may own a type.
func (d *Dispatcher) Register(handler core.EventHandler) error {
	if d == nil {
		return inboundInternal("inbound: dispatcher is nil", nil)
	}
	if handler == nil {
		return inboundBadInput("inbound: handler is nil", nil)
	}
	types := handler.EventTypes()
	if len(types) == 0 {
		return inboundBadInput("inbound: handler reports no event types", nil)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.handlers == nil {
		d.handlers = map[string]core.EventHandler{}
	}
	for _, eventType := range types {
		eventType = normalizeEventType(eventType)
		if eventType == "" {
			return inboundBadInput("inbound: handler reports a blank event type", nil)
		}
		if _, exists := d.handlers[eventType]; exists {
			return inboundError(
				fmt.Sprintf("inbound: handler already registered for event type %q", eventType),
				goerrors.CategoryConflict,
				http.StatusConflict,
				core.WebhookErrorConflict,
				map[string]any{"event_type": eventType},
			)
		}
	}
	for _, eventType := range types {
		d.handlers[normalizeEventType(eventType)] = handler
	}
	return nil
}

// RegisterFunc registers fn for the given discriminators.
func (d *Dispatcher) RegisterFunc(fn func(ctx context.Context, env core.Envelope) error, types ...string) error {
	return d.Register(core.EventHandlerFunc{Types: types, Func: fn})
}

// Dispatch routes env. The returned error reports handler or store
// failures for observability; callers that already acknowledged the
// sender must not let it alter the response.
func (d *Dispatcher) Dispatch(ctx context.Context, env core.Envelope) (core.DispatchResult, error) {
	if d == nil {
		return core.DispatchResult{}, inboundInternal("inbound: dispatcher is nil", nil)
	}
	env.Type = normalizeEventType(env.Type)
	if env.Type == "" {
		return core.DispatchResult{
			Outcome:    core.OutcomeMalformed,
			StatusCode: http.StatusBadRequest,
		}, inboundBadInput("inbound: event type discriminator is required", nil)
	}

	claim, deduped, err := d.claimDelivery(ctx, env)
	if err != nil {
		return core.DispatchResult{}, err
	}
	if deduped {
		return core.DispatchResult{
			Outcome:    core.OutcomeIgnored,
			StatusCode: http.StatusOK,
			EventType:  env.Type,
			EventID:    env.ID,
			Metadata:   map[string]any{"deduped": true},
		}, nil
	}

	handler := d.handlerFor(env.Type)
	if handler == nil {
		handler = d.Fallback
	}
	if handler == nil {
		d.logInfo(ctx, "no handler registered for event type",
			"event_type", env.Type, "event_id", env.ID, "known_type", env.Known())
		if err := d.completeClaim(ctx, claim); err != nil {
			return core.DispatchResult{}, err
		}
		return core.DispatchResult{
			Outcome:    core.OutcomeIgnored,
			StatusCode: http.StatusOK,
			EventType:  env.Type,
			EventID:    env.ID,
		}, nil
	}

	if handlerErr := d.invoke(ctx, handler, env); handlerErr != nil {
		d.logError(ctx, "event handler failed",
			"event_type", env.Type, "event_id", env.ID, "error", handlerErr.Error())
		if failErr := d.failClaim(ctx, claim, handlerErr); failErr != nil {
			d.logError(ctx, "mark delivery claim failed",
				"event_type", env.Type, "event_id", env.ID, "error", failErr.Error())
		}
		return core.DispatchResult{
				Outcome:    core.OutcomeHandlerFailed,
				StatusCode: http.StatusOK,
				EventType:  env.Type,
				EventID:    env.ID,
			}, inboundWrapError(
				handlerErr,
				goerrors.CategoryOperation,
				"inbound: handler execution failed",
				http.StatusBadGateway,
				core.WebhookErrorHandlerFailed,
				map[string]any{"event_type": env.Type, "event_id": env.ID},
			)
	}

	if err := d.completeClaim(ctx, claim); err != nil {
		return core.DispatchResult{}, err
	}
	return core.DispatchResult{
		Outcome:    core.OutcomeProcessed,
		StatusCode: http.StatusOK,
		EventType:  env.Type,
		EventID:    env.ID,
	}, nil
}

// invoke runs the handler with panic containment: a panicking handler is
// a handler failure, not a process crash.
func (d *Dispatcher) invoke(ctx context.Context, handler core.EventHandler, env core.Envelope) (err error) {
	defer func() {
		if recovered := recover(); recovered != nil {
			err = fmt.Errorf("inbound: handler panicked: %v", recovered)
		}
	}()
	return handler.Handle(ctx, env)
}

type deliveryClaim struct {
	claimID   string
	useLedger bool
	attempts  int
}

func (d *Dispatcher) claimDelivery(ctx context.Context, env core.Envelope) (deliveryClaim, bool, error) {
	if env.ID == "" {
		return deliveryClaim{}, false, nil
	}
	if d.Ledger != nil {
		record, claimed, err := d.Ledger.Claim(ctx, d.source(), env.ID, env.Payload, d.claimLease())
		if err != nil {
			return deliveryClaim{}, false, inboundWrapError(
				err,
				goerrors.CategoryOperation,
				"inbound: delivery ledger claim failed",
				http.StatusInternalServerError,
				core.WebhookErrorInternal,
				map[string]any{"event_type": env.Type, "event_id": env.ID},
			)
		}
		if !claimed {
			return deliveryClaim{}, true, nil
		}
		return deliveryClaim{claimID: record.ClaimID, useLedger: true, attempts: record.Attempts}, false, nil
	}
	if d.Store != nil {
		claimID, accepted, err := d.Store.Claim(ctx, d.source()+":"+env.ID, d.claimLease())
		if err != nil {
			return deliveryClaim{}, false, inboundWrapError(
				err,
				goerrors.CategoryOperation,
				"inbound: idempotency claim failed",
				http.StatusInternalServerError,
				core.WebhookErrorInternal,
				map[string]any{"event_type": env.Type, "event_id": env.ID},
			)
		}
		if !accepted {
			return deliveryClaim{}, true, nil
		}
		return deliveryClaim{claimID: claimID}, false, nil
	}
	return deliveryClaim{}, false, nil
}

func (d *Dispatcher) completeClaim(ctx context.Context, claim deliveryClaim) error {
	if claim.claimID == "" {
		return nil
	}
	var err error
	if claim.useLedger {
		err = d.Ledger.Complete(ctx, claim.claimID)
	} else {
		err = d.Store.Complete(ctx, claim.claimID)
	}
	if err != nil {
		return inboundWrapError(
			err,
			goerrors.CategoryOperation,
			"inbound: complete delivery claim",
			http.StatusInternalServerError,
			core.WebhookErrorInternal,
			map[string]any{"claim_id": claim.claimID},
		)
	}
	return nil
}

func (d *Dispatcher) failClaim(ctx context.Context, claim deliveryClaim, cause error) error {
	if claim.claimID == "" {
		return nil
	}
	retryAt := d.now().Add(d.retryPolicy().NextDelay(claim.attempts))
	if claim.useLedger {
		return d.Ledger.Fail(ctx, claim.claimID, cause, retryAt, d.maxAttempts())
	}
	return d.Store.Fail(ctx, claim.claimID, cause, retryAt)
}

func (d *Dispatcher) handlerFor(eventType string) core.EventHandler {
	if d == nil {
		return nil
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.handlers[normalizeEventType(eventType)]
}

func (d *Dispatcher) source() string {
	if d != nil && strings.TrimSpace(d.Source) != "" {
		return strings.TrimSpace(d.Source)
	}
	return "identity"
}

func (d *Dispatcher) claimLease() time.Duration {
	if d != nil && d.ClaimLease > 0 {
		return d.ClaimLease
	}
	return core.DefaultClaimLease
}

func (d *Dispatcher) maxAttempts() int {
	if d != nil && d.MaxAttempts > 0 {
		return d.MaxAttempts
	}
	return core.DefaultMaxAttempts
}

func (d *Dispatcher) retryPolicy() RetryPolicy {
	if d != nil && d.RetryPolicy != nil {
		return d.RetryPolicy
	}
	return ExponentialRetryPolicy{}
}

func (d *Dispatcher) now() time.Time {
	if d != nil && d.Now != nil {
		return d.Now().UTC()
	}
	return time.Now().UTC()
}

func (d *Dispatcher) logInfo(ctx context.Context, message string, args ...any) {
	if d == nil || d.Logger == nil {
		return
	}
	logger := d.Logger
	if ctx != nil {
		logger = logger.WithContext(ctx)
	}
	logger.Info(message, args...)
}

func (d *Dispatcher) logError(ctx context.Context, message string, args ...any) {
	if d == nil || d.Logger == nil {
		return
	}
	logger := d.Logger
	if ctx != nil {
		logger = logger.WithContext(ctx)
	}
	logger.Error(message, args...)
}

func normalizeEventType(eventType string) string {
	return strings.TrimSpace(strings.ToLower(eventType))
}
