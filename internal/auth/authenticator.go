package auth

import (
	"context"
	"crypto/sha256"
	"sync"
)

// AdminPrincipal names callers that used the ADMIN_API_KEY.
const AdminPrincipal = "admin"

// Result is the outcome of an authentication attempt.
type Result struct {
	Authenticated bool
	// Principal is the key name, or AdminPrincipal.
	Principal string
	// Missing is set when no bearer token was sent at all.
	Missing bool
	Error   string
}

// Authenticator checks bearer tokens against the admin key and a set of
// bcrypt-hashed keys.
type Authenticator struct {
	adminKey string
	keys     []Key

	// sha256(token) -> key name, so a key pays bcrypt once per process
	verified sync.Map
}

// NewAuthenticator creates an Authenticator. An empty adminKey disables the
// plain text key.
func NewAuthenticator(adminKey string, keys []Key) *Authenticator {
	return &Authenticator{adminKey: adminKey, keys: keys}
}

// Authenticate checks the token of an Authorization header.
func (a *Authenticator) Authenticate(authHeader string) Result {
	token := ExtractBearerToken(authHeader)
	if token == "" {
		return Result{Missing: true, Error: "missing bearer token"}
	}

	if a.adminKey != "" && VerifyAPIKeyConstantTime(token, a.adminKey) {
		return Result{Authenticated: true, Principal: AdminPrincipal}
	}

	digest := sha256.Sum256([]byte(token))
	if name, ok := a.verified.Load(digest); ok {
		return Result{Authenticated: true, Principal: name.(string)}
	}

	// bcrypt hashes are salted, so every key has to be tried
	for _, k := range a.keys {
		if VerifyAPIKey(token, k.Hash) {
			a.verified.Store(digest, k.Name)
			return Result{Authenticated: true, Principal: k.Name}
		}
	}
	return Result{Error: "invalid token"}
}

type principalKey struct{}

// WithPrincipal stores the authenticated principal in ctx.
func WithPrincipal(ctx context.Context, principal string) context.Context {
	return context.WithValue(ctx, principalKey{}, principal)
}

// PrincipalFromContext returns the principal stored by WithPrincipal.
func PrincipalFromContext(ctx context.Context) (string, bool) {
	p, ok := ctx.Value(principalKey{}).(string)
	return p, ok
}
