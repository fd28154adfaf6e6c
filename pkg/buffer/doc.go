// Package buffer sizes read buffers for response streams.
//
// Initial capacity comes from an optional learned [Archive]: a table of
// quantized request descriptors mapped to buffer sizes that performed
// well. An exact descriptor match returns the recorded size; otherwise the
// nearest entry is used, and without a usable archive the configured
// default applies.
//
// During a stream, a per-connection [State] adapts the size from the
// rolling mean of recent chunk sizes, always staying within its bounds.
package buffer
