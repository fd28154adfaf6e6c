// Package anthropic implements the adapter for the Anthropic Messages API.
// Streaming responses arrive as typed events (content_block_start,
// content_block_delta, message_delta, ...) whose payload "type" field
// selects the mapping to canonical deltas.
package anthropic
