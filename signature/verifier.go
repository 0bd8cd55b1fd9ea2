package signature

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/goliatone/go-identity-webhooks/core"
)

const (
	EncodingHex    = "hex"
	EncodingBase64 = "base64"
)

// HeaderHMACVerifier checks an HMAC-SHA256 signature carried in a request
// header against the raw request body. The identity service sends
// lowercase hex prefixed with "sha256="; base64 is supported for senders
// that use it.
type HeaderHMACVerifier struct {
	Header   string
	Prefix   string
	Secret   string
	Encoding string // hex | base64
}

func (v HeaderHMACVerifier) Verify(_ context.Context, req core.InboundRequest) error {
	secret := strings.TrimSpace(v.Secret)
	if secret == "" {
		return fmt.Errorf("signature: signing secret is required")
	}
	return verifyHMAC(req, v.Header, v.Prefix, [][]byte{[]byte(secret)}, v.Encoding)
}

// SourceHMACVerifier is HeaderHMACVerifier backed by a SecretSource, so a
// rotating source can keep the previous key verifiable inside its rotation
// window. The delivery is valid if any live key matches.
type SourceHMACVerifier struct {
	Header   string
	Prefix   string
	Source   core.SecretSource
	Encoding string
}

func (v SourceHMACVerifier) Verify(ctx context.Context, req core.InboundRequest) error {
	if v.Source == nil {
		return fmt.Errorf("signature: secret source is required")
	}
	keys, err := v.Source.SigningKeys(ctx)
	if err != nil {
		return fmt.Errorf("signature: load signing keys: %w", err)
	}
	live := make([][]byte, 0, len(keys))
	for _, key := range keys {
		if len(key) > 0 {
			live = append(live, key)
		}
	}
	if len(live) == 0 {
		return fmt.Errorf("signature: no live signing keys")
	}
	return verifyHMAC(req, v.Header, v.Prefix, live, v.Encoding)
}

func verifyHMAC(req core.InboundRequest, header string, prefix string, keys [][]byte, encoding string) error {
	value := strings.TrimSpace(req.HeaderValue(header))
	if value == "" {
		return fmt.Errorf("signature: %s signature header is required", strings.TrimSpace(header))
	}
	// A configured prefix is part of the contract: a bare digest without it
	// does not verify.
	if trimmedPrefix := strings.TrimSpace(prefix); trimmedPrefix != "" {
		if !strings.HasPrefix(value, trimmedPrefix) {
			return fmt.Errorf("signature: signature value must carry the %q prefix", trimmedPrefix)
		}
		value = value[len(trimmedPrefix):]
	}
	supplied := strings.TrimSpace(value)
	if supplied == "" {
		return fmt.Errorf("signature: signature value is required")
	}

	var decoded []byte
	var err error
	switch strings.ToLower(strings.TrimSpace(encoding)) {
	case EncodingBase64:
		decoded, err = base64.StdEncoding.DecodeString(supplied)
		if err != nil {
			return fmt.Errorf("signature: decode base64 signature: %w", err)
		}
	default:
		decoded, err = hex.DecodeString(supplied)
		if err != nil {
			return fmt.Errorf("signature: decode hex signature: %w", err)
		}
	}

	for _, key := range keys {
		mac := hmac.New(sha256.New, key)
		_, _ = mac.Write(req.Body)
		expected := mac.Sum(nil)
		if subtle.ConstantTimeCompare(decoded, expected) == 1 {
			return nil
		}
	}
	return fmt.Errorf("signature: signature verification failed")
}

// Compute returns the signature value the sender is expected to transmit
// for body under key: prefix + lowercase hex of HMAC-SHA256(body, key).
func Compute(body []byte, key []byte, prefix string) string {
	mac := hmac.New(sha256.New, key)
	_, _ = mac.Write(body)
	return strings.TrimSpace(prefix) + hex.EncodeToString(mac.Sum(nil))
}

// HeaderTokenVerifier checks a static verification token header in
// constant time. Some senders use this instead of payload signing.
type HeaderTokenVerifier struct {
	Header string
	Token  string
}

func (v HeaderTokenVerifier) Verify(_ context.Context, req core.InboundRequest) error {
	expected := strings.TrimSpace(v.Token)
	if expected == "" {
		return fmt.Errorf("signature: verification token is required")
	}
	actual := strings.TrimSpace(req.HeaderValue(v.Header))
	if actual == "" {
		return fmt.Errorf("signature: %s verification header is required", strings.TrimSpace(v.Header))
	}
	if subtle.ConstantTimeCompare([]byte(actual), []byte(expected)) != 1 {
		return fmt.Errorf("signature: verification token mismatch")
	}
	return nil
}

// InsecureSkipVerifier accepts every delivery. Constructing one requires a
// non-empty reason so disabling verification is always a deliberate,
// auditable act and never the result of a missing secret.
type InsecureSkipVerifier struct {
	reason string
}

func NewInsecureSkipVerifier(reason string) (InsecureSkipVerifier, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return InsecureSkipVerifier{}, fmt.Errorf("signature: a reason is required to disable verification")
	}
	return InsecureSkipVerifier{reason: reason}, nil
}

func (v InsecureSkipVerifier) Reason() string {
	return v.reason
}

func (v InsecureSkipVerifier) Verify(context.Context, core.InboundRequest) error {
	if strings.TrimSpace(v.reason) == "" {
		return fmt.Errorf("signature: skip verifier constructed without a reason")
	}
	return nil
}
