// Package mockvendor is a scripted Chat Completions server for tests,
// demos and offline play. It reads the position out of the prompt, so its
// "legal" answers are legal for whatever game is being played.
package mockvendor
