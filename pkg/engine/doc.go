// Package engine resolves one chess move from an AI player.
//
// [Engine.ResolveMove] wires the pieces together: the provider adapter
// renders the vendor request, the transport executes it (surfacing streamed
// snapshots to the caller), the extractor derives a candidate move, the
// caller's board checks legality, and the retry controller decides whether
// to accept, try again with an enriched prompt and escalated parameters, or
// give up. The engine never mutates the board; applying an accepted move is
// the caller's job.
//
// An Engine holds no per-resolution state and is safe for concurrent use
// across games. Within one game, at most one resolution may be in flight.
package engine
