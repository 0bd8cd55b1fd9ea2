package command

import (
	"fmt"
	"strings"
)

const (
	TypeReplayDelivery   = "webhooks.command.delivery.replay"
	TypeReplayRetryReady = "webhooks.command.delivery.replay_retry_ready"
	TypeMarkDeliveryDead = "webhooks.command.delivery.mark_dead"
)

// ReplayDeliveryMessage requests a local re-dispatch of one acknowledged
// delivery from the ledger.
type ReplayDeliveryMessage struct {
	Source     string
	DeliveryID string
}

func (ReplayDeliveryMessage) Type() string { return TypeReplayDelivery }

func (m ReplayDeliveryMessage) Validate() error {
	if strings.TrimSpace(m.DeliveryID) == "" {
		return fmt.Errorf("command: delivery id is required")
	}
	return nil
}

// ReplayRetryReadyMessage drains deliveries whose retry time has arrived.
type ReplayRetryReadyMessage struct {
	Source string
	Limit  int
}

func (ReplayRetryReadyMessage) Type() string { return TypeReplayRetryReady }

func (m ReplayRetryReadyMessage) Validate() error {
	if m.Limit < 0 {
		return fmt.Errorf("command: limit must be >= 0")
	}
	return nil
}

// MarkDeliveryDeadMessage retires a delivery from the retry cycle.
type MarkDeliveryDeadMessage struct {
	Source     string
	DeliveryID string
	Reason     string
}

func (MarkDeliveryDeadMessage) Type() string { return TypeMarkDeliveryDead }

func (m MarkDeliveryDeadMessage) Validate() error {
	if strings.TrimSpace(m.DeliveryID) == "" {
		return fmt.Errorf("command: delivery id is required")
	}
	if strings.TrimSpace(m.Reason) == "" {
		return fmt.Errorf("command: a reason is required to retire a delivery")
	}
	return nil
}
