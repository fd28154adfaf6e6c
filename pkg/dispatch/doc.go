// Package dispatch runs provider requests concurrently under a bounded
// number of slots and streams their decoded deltas back to callers.
//
// Submitted requests wait in a FIFO queue until a slot is free. Each
// running request owns its HTTP response, a read buffer sized by the
// buffer package, and the framer and decoder selected by its provider
// tag. Deltas are delivered on the request's Handle in arrival order,
// and every stream ends with exactly one terminal delta: a completion or
// an error. The engine never retries.
package dispatch
