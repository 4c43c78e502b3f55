// Package journal records every resolution attempt for diagnostics: the
// parameters sent, the raw vendor text, the extracted candidate, and why the
// attempt was accepted or rejected.
//
// Backends (memory, postgres) implement [Store]. Entries are scoped by the
// tenant found in the context, when one is set. Credentials are never part
// of an [Attempt].
package journal
