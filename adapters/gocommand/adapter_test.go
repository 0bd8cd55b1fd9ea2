package gocommand

import (
	"context"
	"errors"
	"testing"

	"github.com/goliatone/go-command"
	commanddispatcher "github.com/goliatone/go-command/dispatcher"
	webhookcommand "github.com/goliatone/go-identity-webhooks/command"
	"github.com/goliatone/go-identity-webhooks/core"
	webhookquery "github.com/goliatone/go-identity-webhooks/query"
	jobqueuecommand "github.com/goliatone/go-job/queue/command"
)

type okMessage struct{}

func (okMessage) Type() string { return "webhooks.command.ok" }

type invalidMessage struct{}

func (invalidMessage) Type() string { return "" }

type failingMessage struct{}

func (failingMessage) Type() string { return "webhooks.command.fail" }

func (failingMessage) Validate() error { return errors.New("invalid payload") }

type stubReplayService struct {
	replayCalls   int
	lastSource    string
	lastDelivery  string
	markDeadCalls int
}

func (s *stubReplayService) Replay(_ context.Context, source string, deliveryID string) (core.DispatchResult, error) {
	s.replayCalls++
	s.lastSource = source
	s.lastDelivery = deliveryID
	return core.DispatchResult{Outcome: core.OutcomeProcessed}, nil
}

func (s *stubReplayService) ReplayRetryReady(context.Context, string, int) (int, error) {
	return 0, nil
}

func (s *stubReplayService) MarkDead(context.Context, string, string, string) error {
	s.markDeadCalls++
	return nil
}

type stubDeliveryReader struct {
	record core.DeliveryRecord
}

func (s *stubDeliveryReader) Get(context.Context, string, string) (core.DeliveryRecord, error) {
	return s.record, nil
}

func (s *stubDeliveryReader) ListRetryReady(context.Context, string, int) ([]core.DeliveryRecord, error) {
	return []core.DeliveryRecord{s.record}, nil
}

func TestValidateMessageContract(t *testing.T) {
	if err := ValidateMessageContract(okMessage{}); err != nil {
		t.Fatalf("expected valid message, got %v", err)
	}
	if err := ValidateMessageContract(invalidMessage{}); err == nil {
		t.Fatalf("expected empty type to fail contract validation")
	}
	if err := ValidateMessageContract(failingMessage{}); err == nil {
		t.Fatalf("expected Validate() failure to bubble")
	}
}

func TestRegisterReplaySurface_RequiresRegistry(t *testing.T) {
	if _, err := RegisterReplaySurface(nil, &stubReplayService{}, &stubDeliveryReader{}, nil); err == nil {
		t.Fatalf("expected nil adapter to fail registration")
	}
}

func TestRegisterReplaySurface_DispatchesThroughProcessDispatcher(t *testing.T) {
	adapter := NewRegistryAdapter(command.NewRegistry())
	service := &stubReplayService{}
	reader := &stubDeliveryReader{record: core.DeliveryRecord{Status: core.DeliveryStatusProcessed}}

	surface, err := RegisterReplaySurface(adapter, service, reader, nil)
	if err != nil {
		t.Fatalf("register replay surface: %v", err)
	}
	surface.Subscribe()
	defer surface.Unsubscribe()

	msg := webhookcommand.ReplayDeliveryMessage{Source: "identity", DeliveryID: "dlv-7"}
	if err := commanddispatcher.Dispatch(context.Background(), msg); err != nil {
		t.Fatalf("dispatch replay command: %v", err)
	}
	if service.replayCalls != 1 {
		t.Fatalf("expected one replay call, got %d", service.replayCalls)
	}
	if service.lastSource != "identity" || service.lastDelivery != "dlv-7" {
		t.Fatalf("expected message fields to reach the service, got %q %q",
			service.lastSource, service.lastDelivery)
	}
}

func TestRegisterReplaySurface_QueriesAnswerThroughReader(t *testing.T) {
	adapter := NewRegistryAdapter(command.NewRegistry())
	reader := &stubDeliveryReader{record: core.DeliveryRecord{Status: core.DeliveryStatusRetryReady}}

	surface, err := RegisterReplaySurface(adapter, &stubReplayService{}, reader, nil)
	if err != nil {
		t.Fatalf("register replay surface: %v", err)
	}

	status, err := surface.GetDeliveryStatus.Query(context.Background(),
		webhookquery.GetDeliveryStatusMessage{Source: "identity", DeliveryID: "dlv-8"})
	if err != nil {
		t.Fatalf("delivery status query: %v", err)
	}
	if status != core.DeliveryStatusRetryReady {
		t.Fatalf("expected retry_ready status, got %s", status)
	}
}

func TestRegisterReplaySurface_MirrorsCommandsIntoQueueRegistry(t *testing.T) {
	adapter := NewRegistryAdapter(command.NewRegistry())
	queueRegistry := jobqueuecommand.NewRegistry()

	if _, err := RegisterReplaySurface(adapter, &stubReplayService{}, &stubDeliveryReader{}, queueRegistry); err != nil {
		t.Fatalf("register replay surface: %v", err)
	}
	if !adapter.HasResolver(ReplayQueueKey) {
		t.Fatalf("expected the replay queue resolver to be installed")
	}
	for _, messageType := range []string{
		webhookcommand.TypeReplayDelivery,
		webhookcommand.TypeReplayRetryReady,
		webhookcommand.TypeMarkDeliveryDead,
	} {
		if _, ok := queueRegistry.Get(messageType); !ok {
			t.Fatalf("expected %s to be mirrored into the queue registry", messageType)
		}
	}
}
