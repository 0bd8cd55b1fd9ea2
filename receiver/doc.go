// Package receiver exposes the inbound webhook endpoint. It reads the raw
// request body exactly once, verifies the signature over those bytes,
// parses the event envelope, acknowledges the sender, and only then hands
// the event to the dispatcher. The acknowledgement is flushed before the
// handler runs, so a failing or slow handler can never turn a delivered
// webhook into a sender-side retry storm.
package receiver
