package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"
)

// Decision is the vote of one authenticator.
type Decision int

const (
	// Yes means credentials are valid. The chain stops and the identity is used.
	Yes Decision = iota

	// No means credentials are present but invalid. The chain stops and the
	// request is rejected.
	No

	// Abstain means the authenticator does not handle these credentials.
	Abstain
)

func (d Decision) String() string {
	switch d {
	case Yes:
		return "yes"
	case No:
		return "no"
	default:
		return "abstain"
	}
}

// Result carries the outcome of an authentication attempt.
type Result struct {
	Decision Decision
	Identity *Identity // set only when Decision == Yes
	Err      error     // set only when Decision == No
}

// Identity is an authenticated caller.
type Identity struct {
	// Subject is the unique caller name. It keys the rate limiter.
	Subject string

	// ServiceTier selects the rate limit.
	ServiceTier string

	// TenantID scopes the attempt journal. Empty means unscoped.
	TenantID string
}

// Authenticator examines request credentials and votes.
type Authenticator interface {
	Authenticate(ctx context.Context, r *http.Request) Result
}

// Sentinel errors.
var (
	ErrUnauthenticated = errors.New("authentication required")
	ErrTooManyRequests = errors.New("rate limit exceeded")
)

// Anonymous is the identity granted when every authenticator abstains and
// the chain defaults to Yes.
var Anonymous = Identity{Subject: "anonymous", ServiceTier: "default"}

// Chain evaluates authenticators in order.
type Chain struct {
	Authenticators []Authenticator

	// DefaultDecision applies when all authenticators abstain. Yes grants
	// the Anonymous identity.
	DefaultDecision Decision
}

// Authenticate stops at the first Yes or No.
func (c *Chain) Authenticate(ctx context.Context, r *http.Request) Result {
	for _, authn := range c.Authenticators {
		if res := authn.Authenticate(ctx, r); res.Decision != Abstain {
			return res
		}
	}

	if c.DefaultDecision == Yes {
		id := Anonymous
		return Result{Decision: Yes, Identity: &id}
	}
	return Result{Decision: No, Err: ErrUnauthenticated}
}

// BearerToken returns the token of an "Authorization: Bearer" header. ok is
// false when the header is missing or uses another scheme.
func BearerToken(r *http.Request) (token string, ok bool) {
	header := r.Header.Get("Authorization")
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	return strings.TrimSpace(token), true
}
