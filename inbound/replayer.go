package inbound

import (
	"context"
	"net/http"
	"strings"

	goerrors "github.com/goliatone/go-errors"
	glog "github.com/goliatone/go-logger/glog"

	"github.com/goliatone/go-identity-webhooks/core"
)

// Replayer re-runs failed deliveries from the ledger. The sender was
// acknowledged long ago, so replay is a purely local operation: it decodes
// the retained payload and pushes it back through the dispatcher, which
// re-applies claim semantics.
type Replayer struct {
	Ledger     core.DeliveryLedger
	Dispatcher *Dispatcher
	Logger     core.Logger
}

func NewReplayer(ledger core.DeliveryLedger, dispatcher *Dispatcher) *Replayer {
	return &Replayer{
		Ledger:     ledger,
		Dispatcher: dispatcher,
		Logger:     glog.Nop(),
	}
}

// Replay re-dispatches one delivery by id. Deliveries that are processed,
// dead, or still under lease come back as OutcomeIgnored.
func (r *Replayer) Replay(ctx context.Context, source, deliveryID string) (core.DispatchResult, error) {
	if r == nil || r.Ledger == nil || r.Dispatcher == nil {
		return core.DispatchResult{}, inboundInternal("inbound: replayer requires a ledger and a dispatcher", nil)
	}
	source = strings.TrimSpace(source)
	deliveryID = strings.TrimSpace(deliveryID)
	if deliveryID == "" {
		return core.DispatchResult{}, inboundBadInput("inbound: delivery id is required", nil)
	}

	record, err := r.Ledger.Get(ctx, source, deliveryID)
	if err != nil {
		return core.DispatchResult{}, err
	}
	if len(record.Payload) == 0 {
		return core.DispatchResult{}, inboundError(
			"inbound: delivery has no retained payload",
			goerrors.CategoryBadInput,
			http.StatusUnprocessableEntity,
			core.WebhookErrorBadPayload,
			map[string]any{"source": source, "delivery_id": deliveryID},
		)
	}

	env, err := core.DecodeEnvelope(record.Payload)
	if err != nil {
		return core.DispatchResult{}, inboundWrapError(
			err,
			goerrors.CategoryBadInput,
			"inbound: retained payload is not a valid envelope",
			http.StatusUnprocessableEntity,
			core.WebhookErrorBadPayload,
			map[string]any{"source": source, "delivery_id": deliveryID},
		)
	}
	if env.ID == "" {
		env.ID = record.DeliveryID
	}

	result, dispatchErr := r.Dispatcher.Dispatch(ctx, env)
	if dispatchErr != nil {
		r.logError(ctx, "replay dispatch failed",
			"source", source, "delivery_id", deliveryID, "error", dispatchErr.Error())
	}
	return result, dispatchErr
}

// ReplayRetryReady drains deliveries whose retry time has arrived. It keeps
// going past individual failures and reports how many replays processed.
func (r *Replayer) ReplayRetryReady(ctx context.Context, source string, limit int) (int, error) {
	if r == nil || r.Ledger == nil || r.Dispatcher == nil {
		return 0, inboundInternal("inbound: replayer requires a ledger and a dispatcher", nil)
	}
	records, err := r.Ledger.ListRetryReady(ctx, strings.TrimSpace(source), limit)
	if err != nil {
		return 0, inboundWrapError(
			err,
			goerrors.CategoryOperation,
			"inbound: list retry ready deliveries",
			http.StatusInternalServerError,
			core.WebhookErrorInternal,
			map[string]any{"source": source},
		)
	}

	processed := 0
	for _, record := range records {
		result, replayErr := r.Replay(ctx, record.Source, record.DeliveryID)
		if replayErr != nil {
			continue
		}
		if result.Outcome == core.OutcomeProcessed {
			processed++
		}
	}
	return processed, nil
}

// MarkDead retires a delivery from the retry cycle.
func (r *Replayer) MarkDead(ctx context.Context, source, deliveryID, reason string) error {
	if r == nil || r.Ledger == nil {
		return inboundInternal("inbound: replayer requires a ledger", nil)
	}
	return r.Ledger.MarkDead(ctx, strings.TrimSpace(source), strings.TrimSpace(deliveryID), reason)
}

func (r *Replayer) logError(ctx context.Context, message string, args ...any) {
	if r == nil || r.Logger == nil {
		return
	}
	logger := r.Logger
	if ctx != nil {
		logger = logger.WithContext(ctx)
	}
	logger.Error(message, args...)
}
