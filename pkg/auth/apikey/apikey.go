// Package apikey authenticates bearer tokens against a static key list.
// Keys are hashed with SHA-256 at construction and compared in constant
// time.
package apikey

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"net/http"

	"github.com/rhuss/schach/pkg/auth"
)

// Entry is one configured key.
type Entry struct {
	Key      string
	Identity auth.Identity
}

type hashedEntry struct {
	hash     [sha256.Size]byte
	identity auth.Identity
}

// Authenticator validates bearer tokens.
type Authenticator struct {
	keys []hashedEntry
}

// New hashes entries. Plaintext keys are not retained; entries with an
// empty key are skipped.
func New(entries []Entry) *Authenticator {
	a := &Authenticator{}
	for _, e := range entries {
		if e.Key == "" {
			continue
		}
		a.keys = append(a.keys, hashedEntry{hash: sha256.Sum256([]byte(e.Key)), identity: e.Identity})
	}
	return a
}

// Authenticate abstains without a bearer token and votes No for unknown
// keys.
func (a *Authenticator) Authenticate(_ context.Context, r *http.Request) auth.Result {
	token, ok := auth.BearerToken(r)
	if !ok {
		return auth.Result{Decision: auth.Abstain}
	}
	if token == "" {
		return auth.Result{Decision: auth.No, Err: auth.ErrUnauthenticated}
	}

	sum := sha256.Sum256([]byte(token))
	match := -1
	for i := range a.keys {
		// Every entry is compared so timing does not reveal the position.
		if subtle.ConstantTimeCompare(sum[:], a.keys[i].hash[:]) == 1 && match < 0 {
			match = i
		}
	}
	if match < 0 {
		return auth.Result{Decision: auth.No, Err: auth.ErrUnauthenticated}
	}
	id := a.keys[match].identity
	return auth.Result{Decision: auth.Yes, Identity: &id}
}
