package query

import (
	gocmd "github.com/goliatone/go-command"

	"github.com/goliatone/go-identity-webhooks/core"
)

var (
	_ gocmd.Querier[GetDeliveryMessage, core.DeliveryRecord]       = (*GetDeliveryQuery)(nil)
	_ gocmd.Querier[ListRetryReadyMessage, []core.DeliveryRecord]  = (*ListRetryReadyQuery)(nil)
	_ gocmd.Querier[GetDeliveryStatusMessage, core.DeliveryStatus] = (*GetDeliveryStatusQuery)(nil)
)
