package inbound

import "github.com/goliatone/go-identity-webhooks/core"

var (
	_ core.IdempotencyClaimStore = (*InMemoryClaimStore)(nil)
	_ core.DeliveryLedger        = (*InMemoryDeliveryLedger)(nil)
	_ RetryPolicy                = ExponentialRetryPolicy{}
)
