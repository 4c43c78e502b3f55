package engine

import (
	"log/slog"

	"github.com/rhuss/schach/pkg/journal"
	"github.com/rhuss/schach/pkg/retry"
)

// Option configures an Engine.
type Option func(*Engine)

// WithPolicy sets the retry policy. The default is retry.DefaultPolicy().
func WithPolicy(p retry.Policy) Option {
	return func(e *Engine) { e.policy = p }
}

// WithJournal records every attempt in store.
func WithJournal(store journal.Store) Option {
	return func(e *Engine) { e.journal = store }
}

// WithLogger sets the logger. The default is slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}
