package security

import (
	"context"
	"fmt"
	"testing"
	"time"
)

func TestStaticSecretSource(t *testing.T) {
	if _, err := NewStaticSecretSource([]byte("  ")); err == nil {
		t.Fatalf("expected blank key material to be rejected")
	}

	source, err := NewStaticSecretSource([]byte("signing-key"))
	if err != nil {
		t.Fatalf("new static source: %v", err)
	}
	keys, err := source.SigningKeys(context.Background())
	if err != nil {
		t.Fatalf("signing keys: %v", err)
	}
	if len(keys) != 1 || string(keys[0]) != "signing-key" {
		t.Fatalf("unexpected keys %q", keys)
	}
}

func TestEnvSecretSource(t *testing.T) {
	t.Setenv("WEBHOOK_SIGNING_SECRET", "from-env")
	source, err := NewEnvSecretSource("WEBHOOK_SIGNING_SECRET")
	if err != nil {
		t.Fatalf("new env source: %v", err)
	}
	keys, err := source.SigningKeys(context.Background())
	if err != nil || len(keys) != 1 || string(keys[0]) != "from-env" {
		t.Fatalf("unexpected env keys %q err %v", keys, err)
	}

	t.Setenv("WEBHOOK_SIGNING_SECRET", "")
	if _, err := NewEnvSecretSource("WEBHOOK_SIGNING_SECRET"); err == nil {
		t.Fatalf("expected unset variable to fail at construction")
	}
}

func TestRotatingSecretSource_WindowGatesPreviousKey(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	source, err := NewRotatingSecretSource(
		[]byte("current"),
		[]byte("previous"),
		WithRotationWindow(KeyRotationWindow{NotAfter: now.Add(time.Hour)}),
		WithRotationClock(func() time.Time { return now }),
	)
	if err != nil {
		t.Fatalf("new rotating source: %v", err)
	}

	keys, err := source.SigningKeys(context.Background())
	if err != nil {
		t.Fatalf("signing keys: %v", err)
	}
	if len(keys) != 2 || string(keys[0]) != "current" || string(keys[1]) != "previous" {
		t.Fatalf("expected both keys inside window, got %q", keys)
	}

	now = now.Add(2 * time.Hour)
	keys, err = source.SigningKeys(context.Background())
	if err != nil {
		t.Fatalf("signing keys after window: %v", err)
	}
	if len(keys) != 1 || string(keys[0]) != "current" {
		t.Fatalf("expected only current key after window close, got %q", keys)
	}
}

type failingSource struct{}

func (failingSource) SigningKeys(context.Context) ([][]byte, error) {
	return nil, fmt.Errorf("unavailable")
}

func TestFailoverSecretSource(t *testing.T) {
	static, err := NewStaticSecretSource([]byte("fallback"))
	if err != nil {
		t.Fatalf("new static source: %v", err)
	}
	source, err := NewFailoverSecretSource(failingSource{}, static)
	if err != nil {
		t.Fatalf("new failover source: %v", err)
	}
	keys, err := source.SigningKeys(context.Background())
	if err != nil {
		t.Fatalf("signing keys: %v", err)
	}
	if len(keys) != 1 || string(keys[0]) != "fallback" {
		t.Fatalf("expected fallback key, got %q", keys)
	}

	broken, err := NewFailoverSecretSource(failingSource{})
	if err != nil {
		t.Fatalf("new failover source: %v", err)
	}
	if _, err := broken.SigningKeys(context.Background()); err == nil {
		t.Fatalf("expected failure when every source fails")
	}
}
