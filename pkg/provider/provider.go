package provider

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/rhuss/strom/pkg/api"
	"github.com/rhuss/strom/pkg/provider/sse"
)

// Tag identifies a provider family. The tag selects both the request
// builder and the stream decoder, once per request.
type Tag string

const (
	TagOpenAI     Tag = "openai"
	TagAnthropic  Tag = "anthropic"
	TagGemini     Tag = "gemini"
	TagGroq       Tag = "groq"
	TagSambaNova  Tag = "sambanova"
	TagOpenRouter Tag = "openrouter"
	TagCerebras   Tag = "cerebras"
	TagMistral    Tag = "mistral"
	TagGeneric    Tag = "generic"
)

// Adapter converts between the provider-neutral request shape and one
// provider's wire format.
//
// Implementations must be safe for concurrent use by multiple goroutines.
type Adapter interface {
	// Tag returns the provider identifier.
	Tag() Tag

	// Capabilities returns what this provider supports.
	Capabilities() Capabilities

	// BuildRequest serializes req into an HTTP request description.
	BuildRequest(req *ChatRequest) (*Request, error)

	// Decoder returns the frame decoder for this provider's responses.
	// The same decoder handles streaming frames and whole bodies.
	Decoder() Decoder
}

// Decoder maps one frame to zero or more canonical deltas. Decode must
// not retain state between calls. Malformed frames yield no deltas.
type Decoder interface {
	Decode(f sse.Frame) []Delta
}

// DecoderFunc adapts a function to the Decoder interface.
type DecoderFunc func(f sse.Frame) []Delta

// Decode calls fn(f).
func (fn DecoderFunc) Decode(f sse.Frame) []Delta {
	return fn(f)
}

// Options configure an adapter instance.
type Options struct {
	// BaseURL overrides the provider's default API root.
	BaseURL string

	// APIKey is sent in the provider's auth header shape.
	APIKey string

	// Headers are added to every request.
	Headers map[string]string

	// Timeout is the default per-request deadline, zero for the engine default.
	Timeout time.Duration

	// MaxTokens is used when the request does not set one. Anthropic
	// requires an explicit value.
	MaxTokens int
}

// ChatRequest is the provider-neutral description of one round of a chat
// completion.
type ChatRequest struct {
	Model    string
	Messages []api.Message
	Tools    []api.ToolDefinition

	Temperature *float64
	MaxTokens   int
	Stream      bool

	// ResponseSchema asks the provider for JSON output matching the
	// given schema. Providers without native support ignore it.
	ResponseSchema json.RawMessage
	SchemaName     string

	// SizeHint is the expected response size in bytes, used for buffer
	// descriptor lookup.
	SizeHint int

	// Timeout overrides the adapter default for this request.
	Timeout time.Duration

	// Extra fields are merged into the JSON body verbatim, keyed by
	// gjson/sjson path.
	Extra map[string]any
}

// Request is an immutable, fully serialized HTTP request ready for
// submission to the dispatch engine.
type Request struct {
	ID       string
	Provider Tag
	Method   string
	Endpoint string
	Header   http.Header
	Body     []byte
	Stream   bool

	// SizeHint feeds the buffer descriptor.
	SizeHint int

	// Timeout bounds the whole request including streaming. Zero means
	// the engine default.
	Timeout time.Duration
}

// NewRequest builds a POST request with a fresh ID and JSON content type.
func NewRequest(tag Tag, endpoint string, body []byte, stream bool) *Request {
	h := make(http.Header)
	h.Set("Content-Type", "application/json")
	if stream {
		h.Set("Accept", "text/event-stream")
	}
	return &Request{
		ID:       api.NewRequestID(),
		Provider: tag,
		Method:   http.MethodPost,
		Endpoint: endpoint,
		Header:   h,
		Body:     body,
		Stream:   stream,
	}
}

// ApplyHeaders sets every configured header on r.
func (r *Request) ApplyHeaders(headers map[string]string) {
	for k, v := range headers {
		r.Header.Set(k, v)
	}
}
