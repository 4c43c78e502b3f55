// Package auth authenticates callers of the move API.
//
// Authenticators vote Yes, No or Abstain; a Chain stops at the first
// non-abstaining vote and falls back to a default decision. The HTTP
// middleware also applies per-subject rate limits and scopes the attempt
// journal to the caller's tenant.
package auth
