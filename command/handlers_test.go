package command

import (
	"context"
	"errors"
	"testing"

	gocmd "github.com/goliatone/go-command"

	"github.com/goliatone/go-identity-webhooks/core"
)

type stubReplayService struct {
	replayFn           func(ctx context.Context, source, deliveryID string) (core.DispatchResult, error)
	replayRetryReadyFn func(ctx context.Context, source string, limit int) (int, error)
	markDeadFn         func(ctx context.Context, source, deliveryID, reason string) error
}

func (s stubReplayService) Replay(ctx context.Context, source, deliveryID string) (core.DispatchResult, error) {
	if s.replayFn == nil {
		return core.DispatchResult{}, errors.New("unexpected Replay call")
	}
	return s.replayFn(ctx, source, deliveryID)
}

func (s stubReplayService) ReplayRetryReady(ctx context.Context, source string, limit int) (int, error) {
	if s.replayRetryReadyFn == nil {
		return 0, errors.New("unexpected ReplayRetryReady call")
	}
	return s.replayRetryReadyFn(ctx, source, limit)
}

func (s stubReplayService) MarkDead(ctx context.Context, source, deliveryID, reason string) error {
	if s.markDeadFn == nil {
		return errors.New("unexpected MarkDead call")
	}
	return s.markDeadFn(ctx, source, deliveryID, reason)
}

func TestReplayDeliveryCommand_ExecuteDelegatesAndStoresResult(t *testing.T) {
	expected := core.DispatchResult{
		Outcome:   core.OutcomeProcessed,
		EventType: core.EventTypeUserCreated,
		EventID:   "evt-1",
	}
	called := false

	svc := stubReplayService{
		replayFn: func(_ context.Context, source, deliveryID string) (core.DispatchResult, error) {
			called = true
			if source != "identity" || deliveryID != "evt-1" {
				t.Fatalf("unexpected replay payload: %q %q", source, deliveryID)
			}
			return expected, nil
		},
	}

	cmd := NewReplayDeliveryCommand(svc)
	collector := gocmd.NewResult[core.DispatchResult]()
	ctx := gocmd.ContextWithResult(context.Background(), collector)

	if err := cmd.Execute(ctx, ReplayDeliveryMessage{Source: "identity", DeliveryID: "evt-1"}); err != nil {
		t.Fatalf("execute replay: %v", err)
	}
	if !called {
		t.Fatalf("expected replay service invocation")
	}
	result, ok := collector.Load()
	if !ok {
		t.Fatalf("expected result to be stored")
	}
	if result.Outcome != expected.Outcome || result.EventID != expected.EventID {
		t.Fatalf("unexpected result: %#v", result)
	}
}

func TestReplayRetryReadyCommand_StoresProcessedCount(t *testing.T) {
	svc := stubReplayService{
		replayRetryReadyFn: func(_ context.Context, source string, limit int) (int, error) {
			if source != "identity" || limit != 25 {
				t.Fatalf("unexpected drain payload: %q %d", source, limit)
			}
			return 3, nil
		},
	}

	cmd := NewReplayRetryReadyCommand(svc)
	collector := gocmd.NewResult[int]()
	ctx := gocmd.ContextWithResult(context.Background(), collector)

	if err := cmd.Execute(ctx, ReplayRetryReadyMessage{Source: "identity", Limit: 25}); err != nil {
		t.Fatalf("execute drain: %v", err)
	}
	processed, ok := collector.Load()
	if !ok {
		t.Fatalf("expected processed count to be stored")
	}
	if processed != 3 {
		t.Fatalf("expected 3 processed, got %d", processed)
	}
}

func TestMarkDeliveryDeadCommand_DelegatesToService(t *testing.T) {
	called := false
	svc := stubReplayService{
		markDeadFn: func(_ context.Context, source, deliveryID, reason string) error {
			called = true
			if source != "identity" || deliveryID != "evt-9" || reason != "manual" {
				t.Fatalf("unexpected mark dead payload: %q %q %q", source, deliveryID, reason)
			}
			return nil
		},
	}

	cmd := NewMarkDeliveryDeadCommand(svc)
	if err := cmd.Execute(context.Background(), MarkDeliveryDeadMessage{
		Source:     "identity",
		DeliveryID: "evt-9",
		Reason:     "manual",
	}); err != nil {
		t.Fatalf("execute mark dead: %v", err)
	}
	if !called {
		t.Fatalf("expected mark dead service invocation")
	}
}

func TestCommands_RequireService(t *testing.T) {
	if err := (&ReplayDeliveryCommand{}).Execute(context.Background(), ReplayDeliveryMessage{DeliveryID: "evt-1"}); err == nil {
		t.Fatalf("expected dependency error without service")
	}
	if err := (&MarkDeliveryDeadCommand{}).Execute(context.Background(), MarkDeliveryDeadMessage{DeliveryID: "evt-1", Reason: "x"}); err == nil {
		t.Fatalf("expected dependency error without service")
	}
}

func TestMessages_Validate(t *testing.T) {
	if err := (ReplayDeliveryMessage{}).Validate(); err == nil {
		t.Fatalf("expected missing delivery id to fail validation")
	}
	if err := (ReplayDeliveryMessage{DeliveryID: "evt-1"}).Validate(); err != nil {
		t.Fatalf("expected valid replay message, got %v", err)
	}
	if err := (ReplayRetryReadyMessage{Limit: -1}).Validate(); err == nil {
		t.Fatalf("expected negative limit to fail validation")
	}
	if err := (MarkDeliveryDeadMessage{DeliveryID: "evt-1"}).Validate(); err == nil {
		t.Fatalf("expected missing reason to fail validation")
	}
}
