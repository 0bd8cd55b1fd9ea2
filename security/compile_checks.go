package security

import "github.com/goliatone/go-identity-webhooks/core"

var (
	_ core.SecretSource = (*StaticSecretSource)(nil)
	_ core.SecretSource = (*RotatingSecretSource)(nil)
	_ core.SecretSource = (*FailoverSecretSource)(nil)
)
