// Package retry implements the per-ply escalation controller.
//
// A [Controller] owns the attempt counter for one ply. The caller asks it for
// the next request context with [Controller.Begin], runs the attempt, and
// hands the extracted candidate (or the failure) back to
// [Controller.Evaluate], which decides between accepting the move, scheduling
// another attempt, or ending the ply. Scheduled attempts carry an enriched
// prompt listing the legal moves and the piece inventory; from the second
// retry onward the sampling temperature and token budget are raised by fixed
// steps, clamped to configured ceilings.
//
// The controller does not know which vendor is being called. It only sees
// canonical candidates and classified errors.
package retry
