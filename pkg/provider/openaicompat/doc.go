// Package openaicompat implements the Chat Completions dialect shared by
// OpenAI and the vendors that copy its wire format (DeepSeek, xAI, vLLM,
// LiteLLM, Ollama).
//
// The [Adapter] is configured per vendor with a base URL, a model catalog,
// and an optional reasoning-model predicate that switches the token-limit
// field and drops the temperature field. Vendor packages wrap it with their
// own defaults.
package openaicompat
