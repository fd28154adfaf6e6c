// Package openaicompat implements the adapter for every OpenAI-compatible
// Chat Completions backend: OpenAI itself plus Groq, SambaNova,
// OpenRouter, Cerebras, Mistral and any generic endpoint speaking the
// same protocol. It handles request serialization and decoding of both
// SSE chunks and whole response bodies into canonical deltas.
package openaicompat
