package auth

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"slices"

	"github.com/rhuss/schach/pkg/api"
	"github.com/rhuss/schach/pkg/journal"
	"github.com/rhuss/schach/pkg/observability"
)

// DefaultBypassEndpoints lists endpoints that skip authentication.
var DefaultBypassEndpoints = []string{"/healthz", "/metrics"}

// Middleware authenticates every request not in bypass, applies limiter
// when non-nil, and stores the identity and tenant in the request context.
func Middleware(chain *Chain, limiter RateLimiter, bypass []string) func(http.Handler) http.Handler {
	bypass = slices.Clone(bypass)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if slices.Contains(bypass, r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}

			res := chain.Authenticate(r.Context(), r)
			if res.Decision != Yes || res.Identity == nil {
				slog.Warn("authentication failed",
					"path", r.URL.Path,
					"remote_addr", r.RemoteAddr,
					"decision", res.Decision,
					"error", res.Err,
				)
				writeError(w, http.StatusUnauthorized, api.KindAuthentication, "authentication required")
				return
			}
			if res.Identity.Subject == "" {
				slog.Error("authenticator returned identity with empty subject")
				writeError(w, http.StatusInternalServerError, api.KindConfiguration, "internal authentication error")
				return
			}

			if limiter != nil {
				if err := limiter.Allow(r.Context(), res.Identity); err != nil {
					tier := tierOf(res.Identity)
					slog.Warn("rate limit exceeded", "subject", res.Identity.Subject, "tier", tier)
					observability.RateLimitRejectedTotal.WithLabelValues(tier).Inc()
					w.Header().Set("Retry-After", "60")
					writeError(w, http.StatusTooManyRequests, api.KindRateLimited, err.Error())
					return
				}
			}

			ctx := SetIdentity(r.Context(), res.Identity)
			if res.Identity.TenantID != "" {
				ctx = journal.SetTenant(ctx, res.Identity.TenantID)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func writeError(w http.ResponseWriter, status int, kind api.ErrorKind, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(api.ErrorResponse{Error: &api.Error{Kind: kind, Message: msg}})
}
