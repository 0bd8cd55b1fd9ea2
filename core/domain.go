package core

import (
	"strings"
	"time"
)

// InboundRequest carries an inbound webhook delivery exactly as received.
// Body holds the unmodified transport bytes; signature verification operates
// on Body and nothing else, so no structural parse may happen before it.
type InboundRequest struct {
	Source      string
	Headers     map[string]string
	ContentType string
	Body        []byte
	Metadata    map[string]any
}

// HeaderValue performs a case-insensitive header lookup.
func (r InboundRequest) HeaderValue(key string) string {
	if len(r.Headers) == 0 {
		return ""
	}
	for existing, value := range r.Headers {
		if strings.EqualFold(strings.TrimSpace(existing), strings.TrimSpace(key)) {
			return strings.TrimSpace(value)
		}
	}
	return ""
}

type DispatchOutcome string

const (
	// OutcomeProcessed: authenticated, parsed, and the handler completed.
	OutcomeProcessed DispatchOutcome = "processed"
	// OutcomeHandlerFailed: authenticated and acknowledged, but the handler
	// returned an error or panicked. The acknowledgement is unaffected.
	OutcomeHandlerFailed DispatchOutcome = "handler_failed"
	// OutcomeUnauthenticated: signature missing or invalid.
	OutcomeUnauthenticated DispatchOutcome = "unauthenticated"
	// OutcomeMalformed: signature passed but the body was not a valid
	// event envelope.
	OutcomeMalformed DispatchOutcome = "malformed"
	// OutcomeIgnored: valid envelope with an unrecognized event type, or a
	// delivery suppressed as a duplicate. Not an error.
	OutcomeIgnored DispatchOutcome = "ignored"
)

// DispatchResult reports what happened to a delivery. StatusCode is the
// HTTP status owed to the sender; Outcome may diverge from it because the
// acknowledgement is written before handler execution completes.
type DispatchResult struct {
	Outcome    DispatchOutcome
	StatusCode int
	EventType  string
	EventID    string
	Metadata   map[string]any
}

type DeliveryStatus string

const (
	DeliveryStatusPending    DeliveryStatus = "pending"
	DeliveryStatusProcessing DeliveryStatus = "processing"
	DeliveryStatusProcessed  DeliveryStatus = "processed"
	DeliveryStatusRetryReady DeliveryStatus = "retry_ready"
	DeliveryStatusDead       DeliveryStatus = "dead"
)

// DeliveryRecord is a ledger row for a claimed webhook delivery. The raw
// payload is retained so failed handler executions can be replayed locally
// after the sender was already acknowledged.
type DeliveryRecord struct {
	ID            string
	ClaimID       string
	Source        string
	DeliveryID    string
	EventType     string
	Status        DeliveryStatus
	Attempts      int
	LastError     string
	NextAttemptAt *time.Time
	Payload       []byte
	CreatedAt     time.Time
	UpdatedAt     time.Time
}
