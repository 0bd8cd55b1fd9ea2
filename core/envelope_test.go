package core

import (
	"strings"
	"testing"
)

func TestDecodeEnvelope_NestedEventWrapper(t *testing.T) {
	body := []byte(`{"event":{"type":"user.create","id":"e1","user":{"id":"u1","email":"a@b.com"}}}`)

	env, err := DecodeEnvelope(body)
	if err != nil {
		t.Fatalf("decode envelope: %v", err)
	}
	if env.Type != EventTypeUserCreated {
		t.Fatalf("expected user.create discriminator, got %q", env.Type)
	}
	if env.ID != "e1" {
		t.Fatalf("expected event id e1, got %q", env.ID)
	}
	if env.User == nil || env.User.ID != "u1" || env.User.Email != "a@b.com" {
		t.Fatalf("expected embedded user record, got %#v", env.User)
	}
	if !env.Known() {
		t.Fatalf("expected user.create to be a known discriminator")
	}
}

func TestDecodeEnvelope_FlatBody(t *testing.T) {
	body := []byte(`{"type":"token.revoke","id":"e2","timestamp":"2026-02-13T12:00:00Z","token":{"token_id":"t1","user_id":"u1"}}`)

	env, err := DecodeEnvelope(body)
	if err != nil {
		t.Fatalf("decode envelope: %v", err)
	}
	if env.Type != EventTypeTokenRevoked {
		t.Fatalf("expected token.revoke discriminator, got %q", env.Type)
	}
	if env.Token == nil || env.Token.TokenID != "t1" {
		t.Fatalf("expected token revocation payload, got %#v", env.Token)
	}
	if env.Timestamp.IsZero() {
		t.Fatalf("expected parsed timestamp")
	}
}

func TestDecodeEnvelope_UnknownTypeIsNotAnError(t *testing.T) {
	body := []byte(`{"event":{"type":"x.unknown","id":"e3","anything":{"nested":true}}}`)

	env, err := DecodeEnvelope(body)
	if err != nil {
		t.Fatalf("unknown discriminator must decode, got %v", err)
	}
	if env.Known() {
		t.Fatalf("expected x.unknown to be unrecognized")
	}
	if env.User != nil || env.Token != nil {
		t.Fatalf("expected no typed payload for unknown discriminator")
	}
	if len(env.Payload) == 0 {
		t.Fatalf("expected raw payload to be preserved for unknown discriminator")
	}
}

func TestDecodeEnvelope_RejectsMissingDiscriminator(t *testing.T) {
	if _, err := DecodeEnvelope([]byte(`{"event":{"id":"e4"}}`)); err == nil {
		t.Fatalf("expected missing discriminator to be rejected")
	}
}

func TestDecodeEnvelope_RejectsInvalidJSON(t *testing.T) {
	_, err := DecodeEnvelope([]byte(`not valid json`))
	if err == nil {
		t.Fatalf("expected invalid json to be rejected")
	}
	if !strings.Contains(err.Error(), "decode") {
		t.Fatalf("expected decode error, got %v", err)
	}
}

func TestDecodeEnvelope_RejectsEmptyBody(t *testing.T) {
	if _, err := DecodeEnvelope(nil); err == nil {
		t.Fatalf("expected empty payload to be rejected")
	}
}
