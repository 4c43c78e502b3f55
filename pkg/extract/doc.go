// Package extract pulls a candidate chess move out of free-form AI output.
//
// [Extract] is a pure function: it runs a fixed, ordered cascade of checks
// (error-phrase guard, direct match, pattern scan, contextual phrases,
// legal-move filtering, fallbacks) and keeps no state between calls.
package extract
