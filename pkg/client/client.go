// Package client is the call surface of strom. A Client resolves a
// "provider/model" string to an adapter and runs the conversation through
// the automatic function calling controller, which submits each round to
// the shared dispatch engine.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/rhuss/strom/pkg/afc"
	"github.com/rhuss/strom/pkg/api"
	"github.com/rhuss/strom/pkg/buffer"
	"github.com/rhuss/strom/pkg/config"
	"github.com/rhuss/strom/pkg/dispatch"
	"github.com/rhuss/strom/pkg/provider"
	"github.com/rhuss/strom/pkg/provider/anthropic"
	"github.com/rhuss/strom/pkg/provider/gemini"
	"github.com/rhuss/strom/pkg/provider/openaicompat"
	"github.com/rhuss/strom/pkg/tools/mcp"
	"github.com/rhuss/strom/pkg/tools/registry"
	"github.com/rhuss/strom/pkg/tools/websearch"
)

// Request is one call. Model is "provider/model", or a bare model name
// when Provider is set. An empty Model uses the client's default model.
type Request struct {
	Model    string
	Provider provider.Tag
	Messages []api.Message

	// Tools overrides the tool set's definitions offered to the model.
	Tools []api.ToolDefinition

	Temperature *float64
	MaxTokens   int

	// SizeHint is the expected response size in bytes.
	SizeHint int

	// Timeout bounds each round. Zero uses the provider default.
	Timeout time.Duration

	// Extra fields are merged into the request body, keyed by path.
	Extra map[string]any

	schema     json.RawMessage
	schemaName string
}

// Response is the aggregated outcome of a call.
type Response struct {
	// Text is the assistant text of every round, concatenated.
	Text         string
	FinishReason provider.FinishReason

	// ToolCalls were requested and executed during the call.
	ToolCalls []api.ToolCall

	// Pending holds calls requested in the last round that were not
	// executed because the round limit was reached.
	Pending []api.ToolCall

	// Messages is the full conversation including the assistant and
	// tool messages added by the call.
	Messages []api.Message
	Rounds   int
	Usage    api.Usage
}

// Options configure a Client built with New.
type Options struct {
	// DefaultModel is used for requests without a model.
	DefaultModel string

	AFC afc.Config
}

// Client issues chat completions against the configured providers.
// It is safe for concurrent use.
type Client struct {
	adapters     *provider.Registry
	controller   *afc.Controller
	defaultModel string
	closers      []io.Closer
}

// New creates a Client over existing components. toolSet may be nil.
// Components that implement io.Closer are closed by Close.
func New(adapters *provider.Registry, engine afc.Dispatcher, toolSet afc.ToolSet, opts Options) *Client {
	c := &Client{
		adapters:     adapters,
		controller:   afc.New(opts.AFC, engine, toolSet),
		defaultModel: opts.DefaultModel,
	}
	for _, v := range []any{toolSet, engine} {
		if closer, ok := v.(io.Closer); ok {
			c.closers = append(c.closers, closer)
		}
	}
	return c
}

// NewFromConfig builds adapters, the buffer sizer, the dispatch engine
// and the tool registry from cfg, including MCP tools and the web search
// tool when configured. MCP servers that cannot be reached are logged and
// skipped. Tools registered on the returned registry are
// offered to every call.
func NewFromConfig(ctx context.Context, cfg *config.Config) (*Client, *registry.Registry, error) {
	if len(cfg.Providers) == 0 {
		return nil, nil, errors.New("no providers configured")
	}

	adapters := provider.NewRegistry()
	for _, pc := range cfg.Providers {
		a, err := NewAdapter(pc)
		if err != nil {
			return nil, nil, fmt.Errorf("provider %s: %w", pc.Name, err)
		}
		adapters.Register(a)
	}

	sizer := buffer.NewSizerFromFile(cfg.BufferSettings(), cfg.Buffer.ArchivePath)
	engine := dispatch.New(cfg.DispatchSettings(), adapters, sizer)

	reg := registry.New()
	if len(cfg.MCP.Servers) > 0 {
		src, err := mcp.Connect(ctx, cfg.MCPSettings())
		if err != nil {
			slog.Warn("some MCP servers are unavailable", "error", err)
		}
		reg.AddProvider(src)
	}
	if ws := cfg.Tools.WebSearch; ws.URL != "" {
		if err := websearch.Register(reg, websearch.NewSearXNG(ws.URL, nil), ws.MaxResults); err != nil {
			return nil, nil, fmt.Errorf("registering web search: %w", err)
		}
	}

	c := New(adapters, engine, reg, Options{
		DefaultModel: cfg.DefaultModel,
		AFC:          cfg.AFCSettings(),
	})
	slog.Info("client ready",
		"providers", adapters.Tags(),
		"default_model", cfg.DefaultModel,
		"mcp_servers", len(cfg.MCP.Servers),
	)
	return c, reg, nil
}

// NewAdapter creates the adapter for one configured provider.
func NewAdapter(pc config.ProviderConfig) (provider.Adapter, error) {
	opts := provider.Options{
		BaseURL:   pc.BaseURL,
		APIKey:    pc.APIKey,
		Headers:   pc.Headers,
		Timeout:   pc.Timeout,
		MaxTokens: pc.MaxTokens,
	}
	switch tag := provider.Tag(pc.Name); tag {
	case provider.TagAnthropic:
		return anthropic.New(opts), nil
	case provider.TagGemini:
		return gemini.New(opts), nil
	default:
		return openaicompat.New(tag, opts)
	}
}

// Complete runs the call to completion without streaming and returns the
// aggregated result.
func (c *Client) Complete(ctx context.Context, req Request) (*Response, error) {
	adapter, chat, err := c.resolve(req)
	if err != nil {
		return nil, err
	}
	res, err := c.controller.Run(ctx, adapter, chat, nil)
	if err != nil {
		return nil, err
	}
	return newResponse(res), nil
}

// Stream returns a lazy text stream for the call. Nothing is sent until
// the first Recv.
func (c *Client) Stream(ctx context.Context, req Request) *TextStream {
	adapter, chat, err := c.resolve(req)
	if err != nil {
		return failedStream(err)
	}
	chat.Stream = true
	return newTextStream(ctx, func(ctx context.Context, emit afc.EmitFunc) (*afc.Result, error) {
		return c.controller.Run(ctx, adapter, chat, emit)
	})
}

// Close closes the tool set and the dispatch engine.
func (c *Client) Close() error {
	var errs []error
	for _, closer := range c.closers {
		if err := closer.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// resolve selects the adapter and builds the provider-neutral request.
func (c *Client) resolve(req Request) (provider.Adapter, provider.ChatRequest, error) {
	model := req.Model
	if model == "" {
		model = c.defaultModel
	}
	if model == "" {
		return nil, provider.ChatRequest{}, api.NewInvalidRequestError("model", "model is required")
	}
	if len(req.Messages) == 0 {
		return nil, provider.ChatRequest{}, api.NewInvalidRequestError("messages", "at least one message is required")
	}

	tag := req.Provider
	if tag == "" {
		var err error
		tag, model, err = provider.ParseModel(model)
		if err != nil {
			return nil, provider.ChatRequest{}, err
		}
	}

	adapter, err := c.adapters.Get(tag)
	if err != nil {
		return nil, provider.ChatRequest{}, api.NewInvalidRequestError("model", err.Error())
	}

	return adapter, provider.ChatRequest{
		Model:          model,
		Messages:       req.Messages,
		Tools:          req.Tools,
		Temperature:    req.Temperature,
		MaxTokens:      req.MaxTokens,
		ResponseSchema: req.schema,
		SchemaName:     req.schemaName,
		SizeHint:       req.SizeHint,
		Timeout:        req.Timeout,
		Extra:          req.Extra,
	}, nil
}

func newResponse(res *afc.Result) *Response {
	return &Response{
		Text:         res.Text,
		FinishReason: res.FinishReason,
		ToolCalls:    res.ToolCalls,
		Pending:      res.Pending,
		Messages:     res.Messages,
		Rounds:       res.Rounds,
		Usage:        res.Usage,
	}
}
