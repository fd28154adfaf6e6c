// Package provider defines the contract between the dispatch engine and
// the per-provider wire formats. An [Adapter] turns a provider-neutral
// [ChatRequest] into an HTTP [Request] and supplies a [Decoder] that maps
// framed response bytes to canonical [Delta] values.
//
// Adapters are pure data transformation: they perform no I/O and hold no
// per-request state, so a single adapter serves every concurrent request
// for its provider. Decoders are stateless per frame: decoding the same
// frame twice yields the same deltas.
package provider
