package anthropic

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rhuss/strom/pkg/api"
	"github.com/rhuss/strom/pkg/provider"
)

// Adapter speaks the Anthropic Messages protocol.
type Adapter struct {
	baseURL string
	opts    provider.Options
	decoder provider.Decoder
}

// Ensure Adapter implements provider.Adapter at compile time.
var _ provider.Adapter = (*Adapter)(nil)

// New creates an Anthropic adapter.
func New(opts provider.Options) *Adapter {
	baseURL := opts.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Adapter{
		baseURL: strings.TrimRight(baseURL, "/"),
		opts:    opts,
		decoder: NewDecoder(),
	}
}

// Tag implements provider.Adapter.
func (a *Adapter) Tag() provider.Tag {
	return provider.TagAnthropic
}

// Capabilities implements provider.Adapter. Structured output is not
// native; a response schema is ignored.
func (a *Adapter) Capabilities() provider.Capabilities {
	return provider.Capabilities{Streaming: true, ToolCalling: true}
}

// Decoder implements provider.Adapter.
func (a *Adapter) Decoder() provider.Decoder {
	return a.decoder
}

// BuildRequest implements provider.Adapter.
func (a *Adapter) BuildRequest(req *provider.ChatRequest) (*provider.Request, error) {
	if err := a.Capabilities().Check(req); err != nil {
		return nil, err
	}

	body, err := json.Marshal(translateRequest(req, a.opts.MaxTokens))
	if err != nil {
		return nil, api.NewInvalidRequestError("", fmt.Sprintf("failed to marshal request: %s", err.Error()))
	}
	if len(req.Extra) > 0 {
		if body, err = provider.ApplyExtra(body, req.Extra); err != nil {
			return nil, api.NewInvalidRequestError("extra", err.Error())
		}
	}

	r := provider.NewRequest(provider.TagAnthropic, a.baseURL+"/messages", body, req.Stream)
	r.ApplyHeaders(a.opts.Headers)
	r.Header.Set("anthropic-version", APIVersion)
	if a.opts.APIKey != "" {
		r.Header.Set("x-api-key", a.opts.APIKey)
	}
	r.SizeHint = req.SizeHint
	r.Timeout = req.Timeout
	if r.Timeout == 0 {
		r.Timeout = a.opts.Timeout
	}
	return r, nil
}
