package security

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/goliatone/go-identity-webhooks/core"
)

// StaticSecretSource serves one fixed signing key.
type StaticSecretSource struct {
	key []byte
}

func NewStaticSecretSource(key []byte) (*StaticSecretSource, error) {
	trimmed := bytes.TrimSpace(key)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("security: signing key material is required")
	}
	return &StaticSecretSource{key: append([]byte(nil), trimmed...)}, nil
}

func (s *StaticSecretSource) SigningKeys(context.Context) ([][]byte, error) {
	if s == nil || len(s.key) == 0 {
		return nil, fmt.Errorf("security: secret source is not configured")
	}
	return [][]byte{append([]byte(nil), s.key...)}, nil
}

// NewEnvSecretSource reads the signing key from the named environment
// variable once, at construction. A missing or empty variable is a
// construction error so misconfiguration surfaces at startup, not on the
// first delivery.
func NewEnvSecretSource(name string) (*StaticSecretSource, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("security: environment variable name is required")
	}
	value := strings.TrimSpace(os.Getenv(name))
	if value == "" {
		return nil, fmt.Errorf("security: environment variable %s is not set", name)
	}
	return NewStaticSecretSource([]byte(value))
}

// RotatingSecretSource serves the current signing key plus the previous
// key while the rotation window is open, so the external service's secret
// rollover does not reject in-flight deliveries signed under the old key.
type RotatingSecretSource struct {
	current  []byte
	previous []byte
	window   KeyRotationWindow
	now      func() time.Time
}

type RotatingOption func(*RotatingSecretSource)

func WithRotationWindow(window KeyRotationWindow) RotatingOption {
	return func(s *RotatingSecretSource) {
		s.window = window
	}
}

func WithRotationClock(now func() time.Time) RotatingOption {
	return func(s *RotatingSecretSource) {
		if now != nil {
			s.now = now
		}
	}
}

func NewRotatingSecretSource(current []byte, previous []byte, opts ...RotatingOption) (*RotatingSecretSource, error) {
	trimmedCurrent := bytes.TrimSpace(current)
	if len(trimmedCurrent) == 0 {
		return nil, fmt.Errorf("security: current signing key is required")
	}
	source := &RotatingSecretSource{
		current:  append([]byte(nil), trimmedCurrent...),
		previous: append([]byte(nil), bytes.TrimSpace(previous)...),
		now: func() time.Time {
			return time.Now().UTC()
		},
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(source)
	}
	return source, nil
}

func (s *RotatingSecretSource) SigningKeys(context.Context) ([][]byte, error) {
	if s == nil || len(s.current) == 0 {
		return nil, fmt.Errorf("security: secret source is not configured")
	}
	keys := [][]byte{append([]byte(nil), s.current...)}
	if len(s.previous) > 0 && s.window.Allows(s.now()) {
		keys = append(keys, append([]byte(nil), s.previous...))
	}
	return keys, nil
}

// FailoverSecretSource consults sources in order and serves keys from the
// first one that succeeds.
type FailoverSecretSource struct {
	sources []core.SecretSource
}

func NewFailoverSecretSource(sources ...core.SecretSource) (*FailoverSecretSource, error) {
	kept := make([]core.SecretSource, 0, len(sources))
	for _, source := range sources {
		if source != nil {
			kept = append(kept, source)
		}
	}
	if len(kept) == 0 {
		return nil, fmt.Errorf("security: at least one secret source is required")
	}
	return &FailoverSecretSource{sources: kept}, nil
}

func (s *FailoverSecretSource) SigningKeys(ctx context.Context) ([][]byte, error) {
	if s == nil || len(s.sources) == 0 {
		return nil, fmt.Errorf("security: secret source is not configured")
	}
	var lastErr error
	for _, source := range s.sources {
		keys, err := source.SigningKeys(ctx)
		if err == nil && len(keys) > 0 {
			return keys, nil
		}
		if err != nil {
			lastErr = err
		}
	}
	if lastErr != nil {
		return nil, fmt.Errorf("security: all secret sources failed: %w", lastErr)
	}
	return nil, fmt.Errorf("security: no secret source produced keys")
}
