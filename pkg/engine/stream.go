package engine

import (
	"context"

	"github.com/rhuss/schach/pkg/api"
)

// Stream is the channel form of ResolveMove. Updates arrive on the first
// channel, which is closed before the single outcome is sent on the second.
// The caller must drain updates or cancel ctx; req.OnUpdate, if set, is
// still invoked for every update.
func (e *Engine) Stream(ctx context.Context, req Request) (<-chan Update, <-chan api.Outcome) {
	updates := make(chan Update, 16)
	outcome := make(chan api.Outcome, 1)

	observer := req.OnUpdate
	req.OnUpdate = func(u Update) {
		if observer != nil {
			observer(u)
		}
		select {
		case updates <- u:
		case <-ctx.Done():
		}
	}

	go func() {
		defer close(outcome)
		out := e.ResolveMove(ctx, req)
		close(updates)
		outcome <- out
	}()

	return updates, outcome
}
