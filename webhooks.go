package identitywebhooks

import "github.com/goliatone/go-identity-webhooks/core"

type Config = core.Config

type ReceiverConfig = core.ReceiverConfig

type DispatchConfig = core.DispatchConfig

type Option = core.Option

type Runtime = core.Runtime

type Envelope = core.Envelope
type InboundRequest = core.InboundRequest
type DispatchResult = core.DispatchResult
type DispatchOutcome = core.DispatchOutcome
type DeliveryRecord = core.DeliveryRecord
type DeliveryStatus = core.DeliveryStatus

type Verifier = core.Verifier
type EventHandler = core.EventHandler
type EventHandlerFunc = core.EventHandlerFunc
type SecretSource = core.SecretSource
type IdempotencyClaimStore = core.IdempotencyClaimStore
type DeliveryLedger = core.DeliveryLedger
type MetricsRecorder = core.MetricsRecorder

var (
	WithLogger          = core.WithLogger
	WithLoggerProvider  = core.WithLoggerProvider
	WithMetricsRecorder = core.WithMetricsRecorder
	WithErrorFactory    = core.WithErrorFactory
	WithErrorMapper     = core.WithErrorMapper
	WithConfigProvider  = core.WithConfigProvider
	WithOptionsResolver = core.WithOptionsResolver
	WithSecretSource    = core.WithSecretSource
	WithClaimStore      = core.WithClaimStore
	WithDeliveryLedger  = core.WithDeliveryLedger
	WithVerifier        = core.WithVerifier
)

func DefaultConfig() Config {
	return core.DefaultConfig()
}

func NewRuntime(cfg Config, opts ...Option) (*Runtime, error) {
	return core.NewRuntime(cfg, opts...)
}
