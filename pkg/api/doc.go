// Package api defines the core types shared by every layer of the move
// resolution engine.
//
// The package holds plain data and performs no I/O. It covers provider and
// model identity, the per-attempt request context, the canonical response
// every vendor adapter produces, extracted move candidates, the terminal
// outcome of a resolution, the canonical error taxonomy, and ID generation.
//
// Core types:
//   - [MoveRequestContext]: Everything an adapter needs to build one vendor request
//   - [CanonicalResponse]: Vendor-neutral text output (plus optional reasoning)
//   - [MoveCandidate]: Unvalidated move notation pulled from free text
//   - [Outcome]: Accepted, Exhausted, or Fatal result of one ply
//   - [Error]: Classified failure carrying an [ErrorKind]
package api
