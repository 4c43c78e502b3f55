// Command schach plays chess between language models.
//
//	schach play --white openai/gpt-4o --black gemini/gemini-2.0-flash --stream
//	schach move --player anthropic/claude-3-5-sonnet-latest --fen "<fen>"
//	schach models --probe
//	schach mock --addr :9090
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
