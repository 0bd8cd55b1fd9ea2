package sqlstore

import "github.com/goliatone/go-identity-webhooks/core"

var (
	_ core.DeliveryLedger = (*DeliveryStore)(nil)
	_ core.DeliveryLedger = (*CachedDeliveryStore)(nil)
)
