// Package game plays matches between two AI players. It asks the
// resolution engine for each ply, applies accepted moves to the board and
// pauses when a player cannot produce a legal move.
package game
