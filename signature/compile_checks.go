package signature

import "github.com/goliatone/go-identity-webhooks/core"

var (
	_ core.Verifier = HeaderHMACVerifier{}
	_ core.Verifier = SourceHMACVerifier{}
	_ core.Verifier = HeaderTokenVerifier{}
	_ core.Verifier = InsecureSkipVerifier{}
)
