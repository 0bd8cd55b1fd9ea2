// Package signature authenticates inbound webhook deliveries.
//
// Verifiers operate on the raw request bytes exactly as transmitted;
// nothing here parses or normalizes the payload. All comparisons against
// supplied signature material are constant time.
package signature
