// Package rules adapts github.com/notnil/chess to the narrow board interface
// the resolution engine consumes: position as FEN, legal moves in SAN, a
// legality check, move application with check/mate/draw reporting, and
// reset. Chess rules are never re-implemented here.
package rules
