package core

import (
	"context"
	"time"

	glog "github.com/goliatone/go-logger/glog"
)

type Logger = glog.Logger

type LoggerProvider = glog.LoggerProvider

type FieldsLogger = glog.FieldsLogger

// Verifier authenticates a raw inbound delivery before any structural
// parsing happens.
type Verifier interface {
	Verify(ctx context.Context, req InboundRequest) error
}

// EventHandler processes one parsed, authenticated event. Handlers must be
// duplicate-tolerant: the sender retries any delivery it considers failed,
// and acknowledgement happens before handler execution.
type EventHandler interface {
	EventTypes() []string
	Handle(ctx context.Context, env Envelope) error
}

// EventHandlerFunc adapts a function to EventHandler for a fixed set of
// discriminators.
type EventHandlerFunc struct {
	Types []string
	Func  func(ctx context.Context, env Envelope) error
}

func (h EventHandlerFunc) EventTypes() []string {
	return append([]string(nil), h.Types...)
}

func (h EventHandlerFunc) Handle(ctx context.Context, env Envelope) error {
	if h.Func == nil {
		return nil
	}
	return h.Func(ctx, env)
}

// IdempotencyClaimStore tracks delivery claims so retried deliveries are
// suppressed instead of reprocessed. Claim returns accepted=false when the
// key is already held or completed within its lease.
type IdempotencyClaimStore interface {
	Claim(ctx context.Context, key string, lease time.Duration) (claimID string, accepted bool, err error)
	Complete(ctx context.Context, claimID string) error
	Fail(ctx context.Context, claimID string, cause error, retryAt time.Time) error
}

// SecretSource supplies the signing keys a verifier accepts for inbound
// deliveries, in precedence order. More than one key is live only inside a
// rotation window. Keys are loaded once at construction and never logged.
type SecretSource interface {
	SigningKeys(ctx context.Context) ([][]byte, error)
}

type MetricsRecorder interface {
	IncCounter(ctx context.Context, name string, value int64, tags map[string]string)
	ObserveHistogram(ctx context.Context, name string, value float64, tags map[string]string)
}

// DispatchObserver records the terminal outcome of one inbound delivery.
// *Runtime satisfies it: structured log line, outcome counters, duration
// histogram, sensitive fields redacted.
type DispatchObserver interface {
	ObserveDispatch(ctx context.Context, startedAt time.Time, result DispatchResult, err error, fields map[string]any)
}

// DeliveryLedger persists webhook deliveries with claim/complete/fail
// semantics plus the raw payload for local replay.
type DeliveryLedger interface {
	Claim(ctx context.Context, source string, deliveryID string, payload []byte, lease time.Duration) (DeliveryRecord, bool, error)
	Get(ctx context.Context, source string, deliveryID string) (DeliveryRecord, error)
	ListRetryReady(ctx context.Context, source string, limit int) ([]DeliveryRecord, error)
	Complete(ctx context.Context, claimID string) error
	Fail(ctx context.Context, claimID string, cause error, nextAttemptAt time.Time, maxAttempts int) error
	MarkDead(ctx context.Context, source string, deliveryID string, reason string) error
}

// ConfigProvider loads external configuration over supplied defaults.
type ConfigProvider interface {
	Load(ctx context.Context, defaults Config) (Config, error)
}

type RawConfigLoader interface {
	LoadRaw(ctx context.Context) (map[string]any, error)
}

// OptionsResolver merges defaults, loaded config, and runtime overrides.
type OptionsResolver interface {
	Resolve(defaults Config, loaded Config, runtime Config) (Config, error)
}

// JobExecutionMessage mirrors the queue execution contract used when
// redelivery of failed claims is scheduled on a background queue.
type JobExecutionMessage struct {
	JobID          string
	ScriptPath     string
	Parameters     map[string]any
	IdempotencyKey string
	DedupPolicy    string
}

// JobNackOptions captures how a failed queue execution should be retried.
type JobNackOptions struct {
	Requeue    bool
	DeadLetter bool
	Delay      time.Duration
	Reason     string
}

// JobEnqueuer schedules a replay execution on a background queue.
type JobEnqueuer interface {
	Enqueue(ctx context.Context, msg *JobExecutionMessage) error
}

// JobDelivery is one dequeued replay execution awaiting ack or nack.
type JobDelivery interface {
	Message() *JobExecutionMessage
	Ack(ctx context.Context) error
	Nack(ctx context.Context, opts JobNackOptions) error
}

type JobDequeuer interface {
	Dequeue(ctx context.Context) (JobDelivery, error)
}

// JobWorkerEvent describes one lifecycle transition of a queued replay.
type JobWorkerEvent struct {
	Message   *JobExecutionMessage
	Attempt   int
	Delay     time.Duration
	Err       error
	StartedAt time.Time
	Duration  time.Duration
}

// JobWorkerHook observes queued replay executions without being able to
// change their outcome.
type JobWorkerHook interface {
	OnStart(ctx context.Context, event JobWorkerEvent)
	OnSuccess(ctx context.Context, event JobWorkerEvent)
	OnFailure(ctx context.Context, event JobWorkerEvent)
	OnRetry(ctx context.Context, event JobWorkerEvent)
}
