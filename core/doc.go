// Package core contains the shared contracts, configuration, and domain
// types for receiving identity-service webhooks.
//
// The receiving pipeline is verify -> acknowledge -> dispatch: the raw
// request bytes are authenticated against a shared signing secret, the
// sender is acknowledged, and only then does event handling run. Handler
// failures never change an acknowledgement that was already written.
package core
