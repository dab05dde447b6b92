// ABOUTME: Verified principal type and context propagation helpers
// ABOUTME: Provides WithPrincipal/FromContext for carrying identity through handlers

package auth

import (
	"context"
)

// TokenClass distinguishes the provider's two token kinds. They carry
// different claim sets and are not interchangeable.
type TokenClass string

const (
	// TokenClassID is an identity-assertion token. Required for credential
	// federation; carries an audience claim.
	TokenClassID TokenClass = "id"

	// TokenClassAccess is an API-authorization token. Carries no audience
	// claim by design.
	TokenClassAccess TokenClass = "access"
)

// Principal is the trusted result of token verification. It is constructed
// only after every required claim has been validated, created fresh per
// request, and never persisted.
type Principal struct {
	Username string     // human-readable principal name
	Subject  string     // stable provider-assigned identifier
	Scope    string     // optional OAuth scope string
	Groups   []string   // optional group memberships, nil means none
	Class    TokenClass // class of the token this principal came from

	// RawToken is the verified token exactly as presented, retained for
	// pass-through to the credential federation exchange.
	RawToken string
}

// InGroup reports whether the principal belongs to the named group.
// Case-sensitive; an absent group list means no groups.
func (p *Principal) InGroup(name string) bool {
	for _, g := range p.Groups {
		if g == name {
			return true
		}
	}
	return false
}

// principalKey is the key type for storing a Principal in context.Context.
type principalKey struct{}

// WithPrincipal returns a new context with the Principal attached.
func WithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// FromContext retrieves the Principal from the context, returning nil if not present.
func FromContext(ctx context.Context) *Principal {
	val := ctx.Value(principalKey{})
	if val == nil {
		return nil
	}
	p, ok := val.(*Principal)
	if !ok {
		return nil
	}
	return p
}

// MustFromContext retrieves the Principal from the context, panicking if not present.
func MustFromContext(ctx context.Context) *Principal {
	p := FromContext(ctx)
	if p == nil {
		panic("auth: Principal not found in context")
	}
	return p
}
