// Package api defines the provider-neutral types shared across strom:
// conversation messages, tool definitions, token usage, the error
// taxonomy, and identifier generation.
//
// Core types:
//   - [Message]: One turn in a conversation (system, user, assistant, tool)
//   - [Conversation]: Ordered message list owned by a single call
//   - [ToolDefinition]: Name, description, and JSON schema of a callable tool
//   - [Error]: Typed error with a [ErrorKind] and optional HTTP status
//
// The package performs no I/O.
package api
