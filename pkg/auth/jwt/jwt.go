// Package jwt authenticates HS256 or RS256 signed bearer tokens.
//
// The subject comes from the "sub" claim; tenant and service tier come
// from configurable claims.
package jwt

import (
	"context"
	"crypto/rsa"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"

	"github.com/rhuss/schach/pkg/auth"
)

// Config holds the JWT authenticator configuration. Exactly one of Secret
// and PublicKey must be set.
type Config struct {
	// Issuer is the expected iss claim. Empty skips the check.
	Issuer string

	// Audience is the expected aud claim. Empty skips the check.
	Audience string

	// Secret verifies HS256 tokens.
	Secret []byte

	// PublicKey verifies RS256 tokens.
	PublicKey *rsa.PublicKey

	// TenantClaim defaults to "tenant_id".
	TenantClaim string

	// TierClaim defaults to "tier".
	TierClaim string

	// Leeway tolerates clock skew on exp and nbf. Default: 30s.
	Leeway time.Duration
}

// Authenticator validates bearer tokens.
type Authenticator struct {
	cfg    Config
	method string
	key    any
}

// New creates an authenticator.
func New(cfg Config) (*Authenticator, error) {
	if (len(cfg.Secret) == 0) == (cfg.PublicKey == nil) {
		return nil, errors.New("jwt: exactly one of Secret and PublicKey is required")
	}
	if cfg.TenantClaim == "" {
		cfg.TenantClaim = "tenant_id"
	}
	if cfg.TierClaim == "" {
		cfg.TierClaim = "tier"
	}
	if cfg.Leeway == 0 {
		cfg.Leeway = 30 * time.Second
	}

	a := &Authenticator{cfg: cfg}
	if cfg.PublicKey != nil {
		a.method, a.key = jwtlib.SigningMethodRS256.Alg(), cfg.PublicKey
	} else {
		a.method, a.key = jwtlib.SigningMethodHS256.Alg(), cfg.Secret
	}
	return a, nil
}

// LoadPublicKey reads a PEM encoded RSA public key.
func LoadPublicKey(path string) (*rsa.PublicKey, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	key, err := jwtlib.ParseRSAPublicKeyFromPEM(data)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return key, nil
}

// Authenticate abstains without a bearer token or for tokens that are not
// JWTs, so an API key authenticator later in the chain can vote. Invalid
// JWTs get No.
func (a *Authenticator) Authenticate(_ context.Context, r *http.Request) auth.Result {
	tokenStr, ok := auth.BearerToken(r)
	if !ok || strings.Count(tokenStr, ".") != 2 {
		return auth.Result{Decision: auth.Abstain}
	}

	token, err := jwtlib.Parse(tokenStr, func(*jwtlib.Token) (any, error) {
		return a.key, nil
	}, a.parserOptions()...)
	if err != nil {
		slog.Debug("JWT validation failed", "error", err)
		return auth.Result{Decision: auth.No, Err: fmt.Errorf("invalid JWT: %w", err)}
	}

	claims, ok := token.Claims.(jwtlib.MapClaims)
	if !ok || !token.Valid {
		return auth.Result{Decision: auth.No, Err: errors.New("invalid JWT claims")}
	}

	subject, err := claims.GetSubject()
	if err != nil || subject == "" {
		return auth.Result{Decision: auth.No, Err: errors.New("JWT missing sub claim")}
	}

	return auth.Result{
		Decision: auth.Yes,
		Identity: &auth.Identity{
			Subject:     subject,
			TenantID:    claimString(claims, a.cfg.TenantClaim),
			ServiceTier: claimString(claims, a.cfg.TierClaim),
		},
	}
}

func (a *Authenticator) parserOptions() []jwtlib.ParserOption {
	opts := []jwtlib.ParserOption{
		jwtlib.WithValidMethods([]string{a.method}),
		jwtlib.WithExpirationRequired(),
		jwtlib.WithLeeway(a.cfg.Leeway),
	}
	if a.cfg.Issuer != "" {
		opts = append(opts, jwtlib.WithIssuer(a.cfg.Issuer))
	}
	if a.cfg.Audience != "" {
		opts = append(opts, jwtlib.WithAudience(a.cfg.Audience))
	}
	return opts
}

func claimString(claims jwtlib.MapClaims, key string) string {
	s, _ := claims[key].(string)
	return s
}
