package api

import "crypto/subtle"

// SecretHeader carries the shared secret the webhook producer was
// configured with.
const SecretHeader = "X-Webhook-Secret"

// SecretGate authorizes webhook producers by exact match against a
// configured shared secret. An empty secret disables the check entirely
// (open mode), which deployments opt into knowingly.
type SecretGate struct {
	secret string
}

// NewSecretGate returns a gate for the configured secret.
func NewSecretGate(secret string) *SecretGate {
	return &SecretGate{secret: secret}
}

// Enabled reports whether a secret is configured.
func (g *SecretGate) Enabled() bool {
	return g != nil && g.secret != ""
}

// Allow reports whether the presented header value matches the configured
// secret. Comparison is constant time; the endpoint is a public target.
func (g *SecretGate) Allow(presented string) bool {
	if !g.Enabled() {
		return true
	}
	return subtle.ConstantTimeCompare([]byte(presented), []byte(g.secret)) == 1
}
