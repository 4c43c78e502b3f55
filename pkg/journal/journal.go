package journal

import (
	"context"
	"errors"
	"time"

	"github.com/rhuss/schach/pkg/api"
)

// Sentinel errors for journal operations.
var (
	// ErrNotFound is returned when an attempt or resolution does not exist.
	ErrNotFound = errors.New("attempt not found")

	// ErrConflict is returned when an attempt with the given ID already exists.
	ErrConflict = errors.New("attempt already exists")
)

// ResultAccepted marks an attempt whose candidate was played.
const ResultAccepted = "accepted"

// Attempt is one vendor round trip within a resolution.
type Attempt struct {
	ID           string         `json:"id"`
	ResolutionID string         `json:"resolution_id"`
	TenantID     string         `json:"-"`
	Attempt      int            `json:"attempt"`
	Provider     api.ProviderID `json:"provider"`
	Model        string         `json:"model"`
	Position     string         `json:"position"`

	Temperature float64 `json:"temperature"`
	TokenBudget int     `json:"token_budget"`
	Enriched    bool    `json:"enriched"`

	RawText   string `json:"raw_text,omitempty"`
	Reasoning string `json:"reasoning,omitempty"`

	Candidate  string         `json:"candidate,omitempty"`
	Confidence api.Confidence `json:"confidence,omitempty"`

	// Result is ResultAccepted or the kind of the rejection.
	Result    string `json:"result"`
	Rejection string `json:"rejection,omitempty"`
	ErrorBody string `json:"error_body,omitempty"`

	LatencyMS int64     `json:"latency_ms"`
	CreatedAt time.Time `json:"created_at"`
}

// Store persists attempts.
type Store interface {
	// Record saves a. ID and CreatedAt are filled in when empty; the tenant
	// comes from ctx.
	Record(ctx context.Context, a *Attempt) error

	// ListAttempts returns the attempts of a resolution ordered by attempt
	// number. A resolution without attempts yields ErrNotFound.
	ListAttempts(ctx context.Context, resolutionID string) ([]*Attempt, error)

	// Get returns a single attempt.
	Get(ctx context.Context, id string) (*Attempt, error)

	HealthCheck(ctx context.Context) error
	Close() error
}

// Prepare fills generated fields and the tenant before a backend stores a.
func Prepare(ctx context.Context, a *Attempt) {
	if a.ID == "" {
		a.ID = api.NewAttemptID()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	if a.TenantID == "" {
		a.TenantID = GetTenant(ctx)
	}
}

// Visible reports whether an entry owned by owner may be read from ctx.
// Contexts without a tenant see everything.
func Visible(ctx context.Context, owner string) bool {
	tenant := GetTenant(ctx)
	return tenant == "" || tenant == owner
}
