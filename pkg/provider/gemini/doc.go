// Package gemini implements the adapter for the Gemini generateContent
// API. Function calls arrive whole inside a single part, so each is
// emitted as a complete tool call delta; Gemini does not always assign
// call ids, and the continuation controller fills them in.
package gemini
