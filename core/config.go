package core

import (
	"fmt"
	"strings"
	"time"
)

const (
	DefaultSignatureHeader = "X-Webhook-Signature"
	DefaultSignaturePrefix = "sha256="
	DefaultMaxBodyBytes    = 1 << 20
	DefaultClaimLease      = 10 * time.Minute
	DefaultMaxAttempts     = 8
)

type ReceiverConfig struct {
	SignatureHeader string `koanf:"signature_header" mapstructure:"signature_header"`
	SignaturePrefix string `koanf:"signature_prefix" mapstructure:"signature_prefix"`
	MaxBodyBytes    int64  `koanf:"max_body_bytes" mapstructure:"max_body_bytes"`
	// AllowUnsigned disables signature verification entirely. This is an
	// explicit operator decision for local development; the receiver logs
	// loudly when it is set. A missing secret with AllowUnsigned unset is a
	// hard startup error, never a silent pass-through.
	AllowUnsigned bool `koanf:"allow_unsigned" mapstructure:"allow_unsigned"`
}

type DispatchConfig struct {
	Source      string        `koanf:"source" mapstructure:"source"`
	ClaimLease  time.Duration `koanf:"claim_lease" mapstructure:"claim_lease"`
	MaxAttempts int           `koanf:"max_attempts" mapstructure:"max_attempts"`
}

type Config struct {
	ServiceName string         `koanf:"service_name" mapstructure:"service_name"`
	Receiver    ReceiverConfig `koanf:"receiver" mapstructure:"receiver"`
	Dispatch    DispatchConfig `koanf:"dispatch" mapstructure:"dispatch"`
}

func DefaultConfig() Config {
	return Config{
		ServiceName: "identity-webhooks",
		Receiver: ReceiverConfig{
			SignatureHeader: DefaultSignatureHeader,
			SignaturePrefix: DefaultSignaturePrefix,
			MaxBodyBytes:    DefaultMaxBodyBytes,
		},
		Dispatch: DispatchConfig{
			Source:      "identity",
			ClaimLease:  DefaultClaimLease,
			MaxAttempts: DefaultMaxAttempts,
		},
	}
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.ServiceName) == "" {
		return fmt.Errorf("core: service_name is required")
	}
	if strings.TrimSpace(c.Receiver.SignatureHeader) == "" {
		return fmt.Errorf("core: receiver.signature_header is required")
	}
	if c.Receiver.MaxBodyBytes < 0 {
		return fmt.Errorf("core: receiver.max_body_bytes must be >= 0")
	}
	if strings.TrimSpace(c.Dispatch.Source) == "" {
		return fmt.Errorf("core: dispatch.source is required")
	}
	if c.Dispatch.ClaimLease < 0 {
		return fmt.Errorf("core: dispatch.claim_lease must be >= 0")
	}
	if c.Dispatch.MaxAttempts < 0 {
		return fmt.Errorf("core: dispatch.max_attempts must be >= 0")
	}
	return nil
}
