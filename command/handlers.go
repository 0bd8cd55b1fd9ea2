package command

import (
	"context"

	gocmd "github.com/goliatone/go-command"

	"github.com/goliatone/go-identity-webhooks/core"
)

// ReplayService is the mutating surface commands drive. *inbound.Replayer
// satisfies it.
type ReplayService interface {
	Replay(ctx context.Context, source string, deliveryID string) (core.DispatchResult, error)
	ReplayRetryReady(ctx context.Context, source string, limit int) (int, error)
	MarkDead(ctx context.Context, source string, deliveryID string, reason string) error
}

type ReplayDeliveryCommand struct {
	service ReplayService
}

func NewReplayDeliveryCommand(service ReplayService) *ReplayDeliveryCommand {
	return &ReplayDeliveryCommand{service: service}
}

func (c *ReplayDeliveryCommand) Execute(ctx context.Context, msg ReplayDeliveryMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: replay service is required")
	}
	out, err := c.service.Replay(ctx, msg.Source, msg.DeliveryID)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type ReplayRetryReadyCommand struct {
	service ReplayService
}

func NewReplayRetryReadyCommand(service ReplayService) *ReplayRetryReadyCommand {
	return &ReplayRetryReadyCommand{service: service}
}

func (c *ReplayRetryReadyCommand) Execute(ctx context.Context, msg ReplayRetryReadyMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: replay service is required")
	}
	processed, err := c.service.ReplayRetryReady(ctx, msg.Source, msg.Limit)
	if err != nil {
		return err
	}
	storeResult(ctx, processed)
	return nil
}

type MarkDeliveryDeadCommand struct {
	service ReplayService
}

func NewMarkDeliveryDeadCommand(service ReplayService) *MarkDeliveryDeadCommand {
	return &MarkDeliveryDeadCommand{service: service}
}

func (c *MarkDeliveryDeadCommand) Execute(ctx context.Context, msg MarkDeliveryDeadMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: replay service is required")
	}
	return c.service.MarkDead(ctx, msg.Source, msg.DeliveryID, msg.Reason)
}

func storeResult[T any](ctx context.Context, value T) {
	collector := gocmd.ResultFromContext[T](ctx)
	if collector == nil {
		return
	}
	collector.Store(value)
}
