// Package afc implements automatic function calling on top of the dispatch
// engine.
//
// A Controller drives one call through a sequence of provider rounds. Each
// round streams text straight to the caller and collects tool call
// fragments. When a round ends with tool calls, the controller executes
// them concurrently, appends the assistant turn and one tool message per
// call to the conversation, and submits the next round. The call is done
// when a round ends without tool calls or the round limit is reached.
//
// Per round the controller moves through these states:
//
//	STREAMING_TEXT -> ACCUMULATING_TOOLCALLS -> EXECUTING_TOOLS -> CONTINUING
//	CONTINUING -> STREAMING_TEXT | DONE
package afc
