package openaicompat

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rhuss/strom/pkg/api"
	"github.com/rhuss/strom/pkg/provider"
)

// preset holds the defaults for a known OpenAI-compatible provider.
type preset struct {
	baseURL string
	headers map[string]string
}

var presets = map[provider.Tag]preset{
	provider.TagOpenAI:     {baseURL: "https://api.openai.com/v1"},
	provider.TagGroq:       {baseURL: "https://api.groq.com/openai/v1"},
	provider.TagSambaNova:  {baseURL: "https://api.sambanova.ai/v1"},
	provider.TagOpenRouter: {baseURL: "https://openrouter.ai/api/v1", headers: map[string]string{"X-Title": "strom"}},
	provider.TagCerebras:   {baseURL: "https://api.cerebras.ai/v1"},
	provider.TagMistral:    {baseURL: "https://api.mistral.ai/v1"},
}

// Supports reports whether tag is served by this package.
func Supports(tag provider.Tag) bool {
	_, ok := presets[tag]
	return ok || tag == provider.TagGeneric
}

// Adapter speaks the Chat Completions protocol for one provider tag.
type Adapter struct {
	tag     provider.Tag
	baseURL string
	apiKey  string
	headers map[string]string
	opts    provider.Options
	decoder provider.Decoder
}

// Ensure Adapter implements provider.Adapter at compile time.
var _ provider.Adapter = (*Adapter)(nil)

// New creates an adapter for tag. Known tags start from their preset base
// URL; the generic tag requires opts.BaseURL.
func New(tag provider.Tag, opts provider.Options) (*Adapter, error) {
	p, known := presets[tag]
	if !known && tag != provider.TagGeneric {
		return nil, fmt.Errorf("provider %q is not OpenAI-compatible", tag)
	}

	baseURL := p.baseURL
	if opts.BaseURL != "" {
		baseURL = opts.BaseURL
	}
	if baseURL == "" {
		return nil, fmt.Errorf("provider %q requires a base_url", tag)
	}

	headers := make(map[string]string, len(p.headers)+len(opts.Headers))
	for k, v := range p.headers {
		headers[k] = v
	}
	for k, v := range opts.Headers {
		headers[k] = v
	}

	a := &Adapter{
		tag:     tag,
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  opts.APIKey,
		headers: headers,
		opts:    opts,
	}
	a.decoder = NewDecoder(tag)
	return a, nil
}

// Tag implements provider.Adapter.
func (a *Adapter) Tag() provider.Tag {
	return a.tag
}

// Capabilities implements provider.Adapter.
func (a *Adapter) Capabilities() provider.Capabilities {
	return provider.Capabilities{
		Streaming:        true,
		ToolCalling:      true,
		StructuredOutput: true,
	}
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

	r := provider.NewRequest(a.tag, a.baseURL+"/chat/completions", body, req.Stream)
	r.ApplyHeaders(a.headers)
	if a.apiKey != "" {
		r.Header.Set("Authorization", "Bearer "+a.apiKey)
	}
	r.SizeHint = req.SizeHint
	r.Timeout = req.Timeout
	if r.Timeout == 0 {
		r.Timeout = a.opts.Timeout
	}
	return r, nil
}
