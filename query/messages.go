package query

import (
	"fmt"
	"strings"
)

const (
	TypeGetDelivery       = "webhooks.query.delivery.get"
	TypeListRetryReady    = "webhooks.query.delivery.list_retry_ready"
	TypeGetDeliveryStatus = "webhooks.query.delivery.status"
)

type GetDeliveryMessage struct {
	Source     string
	DeliveryID string
}

func (GetDeliveryMessage) Type() string { return TypeGetDelivery }

func (m GetDeliveryMessage) Validate() error {
	if strings.TrimSpace(m.DeliveryID) == "" {
		return fmt.Errorf("query: delivery id is required")
	}
	return nil
}

type ListRetryReadyMessage struct {
	Source string
	Limit  int
}

func (ListRetryReadyMessage) Type() string { return TypeListRetryReady }

func (m ListRetryReadyMessage) Validate() error {
	if m.Limit < 0 {
		return fmt.Errorf("query: limit must be >= 0")
	}
	return nil
}

// GetDeliveryStatusMessage resolves just the lifecycle status of a delivery,
// for callers that poll without needing the retained payload.
type GetDeliveryStatusMessage struct {
	Source     string
	DeliveryID string
}

func (GetDeliveryStatusMessage) Type() string { return TypeGetDeliveryStatus }

func (m GetDeliveryStatusMessage) Validate() error {
	if strings.TrimSpace(m.DeliveryID) == "" {
		return fmt.Errorf("query: delivery id is required")
	}
	return nil
}
