// Package mockbackend serves deterministic fake completions in the
// OpenAI chat completions, Anthropic Messages and Gemini generateContent
// wire formats, streaming and non-streaming.
//
// Routes:
//
//	POST /v1/chat/completions                     OpenAI compatible
//	POST /v1/messages                             Anthropic
//	POST /v1beta/models/{model}:generateContent   Gemini
//	POST /v1beta/models/{model}:streamGenerateContent?alt=sse
//	GET  /v1/models
//	GET  /healthz
//
// Replies are scripted from the conversation:
//   - tools offered and no tool result yet: one get_weather call (or the
//     first offered tool) with arguments {"city":"Paris"}, streamed in two
//     argument fragments
//   - a tool result present: text that echoes the results
//   - last user message containing "mock:status=NNN": an error response
//     with that HTTP status
//   - last user message containing "count from 1 to 5": "1, 2, 3, 4, 5"
//   - a system prompt: a pirate greeting
//   - otherwise: "Hello, nice day!"
package mockbackend
