// Package security provides signing-key sources for webhook verification.
//
// Key material is captured once at construction and treated as read-only
// for the life of the process. Sources never expose keys through logging
// or error text.
package security
