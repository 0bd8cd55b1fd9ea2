// Package inbound routes authenticated event envelopes to handlers.
//
// Dispatch uses claim/complete/fail idempotency semantics when a claim
// store or delivery ledger is configured, so retried deliveries are
// suppressed and transient handler failures remain replayable. Handler
// failures are contained at the dispatch boundary; they never reach the
// sender, whose acknowledgement was written before handling began.
package inbound
