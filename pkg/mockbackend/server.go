package mockbackend

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/tidwall/gjson"

	"github.com/rhuss/strom/pkg/observability"
)

// Options tunes the mock.
type Options struct {
	// ChunkDelay is slept between streamed chunks.
	ChunkDelay time.Duration

	// FailFirst makes the first N completion requests answer 503.
	FailFirst int
}

// Server is the mock provider backend.
type Server struct {
	opts     Options
	mux      *http.ServeMux
	requests atomic.Int64
}

// New creates a mock backend.
func New(opts Options) *Server {
	s := &Server{opts: opts, mux: http.NewServeMux()}
	s.mux.HandleFunc("POST /v1/chat/completions", s.handleOpenAI)
	s.mux.HandleFunc("POST /v1/messages", s.handleAnthropic)
	s.mux.HandleFunc("POST /v1beta/models/{call}", s.handleGemini)
	s.mux.HandleFunc("GET /v1/models", handleModels)
	s.mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	return s
}

// Handler returns the routes wrapped in the request metrics middleware.
func (s *Server) Handler() http.Handler {
	return observability.InstrumentHandler(s.mux)
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.Handler().ServeHTTP(w, r)
}

// Requests returns the number of completion requests received.
func (s *Server) Requests() int {
	return int(s.requests.Load())
}

// admit counts a completion request and reports whether it should fail.
func (s *Server) admit() bool {
	n := s.requests.Add(1)
	return n <= int64(s.opts.FailFirst)
}

func readBody(w http.ResponseWriter, r *http.Request) (gjson.Result, bool) {
	data, err := io.ReadAll(r.Body)
	if err != nil || !gjson.ValidBytes(data) {
		http.Error(w, "invalid JSON body", http.StatusBadRequest)
		return gjson.Result{}, false
	}
	return gjson.ParseBytes(data), true
}

func handleModels(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"object": "list",
		"data": []map[string]any{
			{"id": "mock-model", "object": "model", "owned_by": "mock"},
		},
	})
}

// --- OpenAI ---

func (s *Server) handleOpenAI(w http.ResponseWriter, r *http.Request) {
	body, ok := readBody(w, r)
	if !ok {
		return
	}
	if s.admit() {
		writeOpenAIError(w, http.StatusServiceUnavailable)
		return
	}

	c := openAIConversation(body)
	rep := plan(c)
	slog.Debug("mock request", "format", "openai", "model", c.model, "stream", c.stream, "tool_call", rep.isToolCall())
	if rep.status != 0 {
		writeOpenAIError(w, rep.status)
		return
	}
	if c.stream {
		s.streamOpenAI(w, c.model, rep)
		return
	}

	msg := map[string]any{"role": "assistant", "content": nil}
	finish := "stop"
	if rep.isToolCall() {
		msg["tool_calls"] = []map[string]any{{
			"id":   ToolCallID,
			"type": "function",
			"function": map[string]any{
				"name":      rep.toolName,
				"arguments": ToolArguments,
			},
		}}
		finish = "tool_calls"
	} else {
		msg["content"] = rep.text()
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"id":      "chatcmpl-mock",
		"object":  "chat.completion",
		"created": time.Now().Unix(),
		"model":   c.model,
		"choices": []map[string]any{{"index": 0, "message": msg, "finish_reason": finish}},
		"usage":   openAIUsage(rep),
	})
}

func (s *Server) streamOpenAI(w http.ResponseWriter, model string, rep reply) {
	sw, ok := newStreamWriter(w, s.opts.ChunkDelay)
	if !ok {
		return
	}

	chunk := func(delta map[string]any, finish any) map[string]any {
		return map[string]any{
			"id":      "chatcmpl-mock",
			"object":  "chat.completion.chunk",
			"created": time.Now().Unix(),
			"model":   model,
			"choices": []map[string]any{{"index": 0, "delta": delta, "finish_reason": finish}},
		}
	}

	sw.data(chunk(map[string]any{"role": "assistant", "content": ""}, nil))

	finish := "stop"
	if rep.isToolCall() {
		for i, frag := range toolArgumentFragments {
			call := map[string]any{"index": 0, "function": map[string]any{"arguments": frag}}
			if i == 0 {
				call["id"] = ToolCallID
				call["type"] = "function"
				call["function"] = map[string]any{"name": rep.toolName, "arguments": frag}
			}
			sw.data(chunk(map[string]any{"tool_calls": []map[string]any{call}}, nil))
		}
		finish = "tool_calls"
	} else {
		for _, token := range rep.tokens {
			sw.data(chunk(map[string]any{"content": token}, nil))
		}
	}

	final := chunk(map[string]any{}, finish)
	final["usage"] = openAIUsage(rep)
	sw.data(final)
	sw.raw("[DONE]")
}

func openAIConversation(body gjson.Result) conversation {
	c := conversation{
		model:  body.Get("model").Str,
		stream: body.Get("stream").Bool(),
	}
	body.Get("messages").ForEach(func(_, m gjson.Result) bool {
		switch m.Get("role").Str {
		case "system", "developer":
			c.system += textOf(m.Get("content"))
		case "user":
			c.lastUser = textOf(m.Get("content"))
		case "tool":
			c.toolResults = append(c.toolResults, textOf(m.Get("content")))
		}
		return true
	})
	body.Get("tools.#.function.name").ForEach(func(_, n gjson.Result) bool {
		c.tools = append(c.tools, n.Str)
		return true
	})
	return c
}

func openAIUsage(rep reply) map[string]int {
	return map[string]int{
		"prompt_tokens":     rep.usageIn,
		"completion_tokens": rep.usageOut,
		"total_tokens":      rep.usageIn + rep.usageOut,
	}
}

func writeOpenAIError(w http.ResponseWriter, status int) {
	writeJSON(w, status, map[string]any{
		"error": map[string]any{
			"message": fmt.Sprintf("mock error %d", status),
			"type":    errorType(status),
		},
	})
}

// --- Anthropic ---

func (s *Server) handleAnthropic(w http.ResponseWriter, r *http.Request) {
	body, ok := readBody(w, r)
	if !ok {
		return
	}
	if s.admit() {
		writeAnthropicError(w, http.StatusServiceUnavailable)
		return
	}

	c := anthropicConversation(body)
	rep := plan(c)
	slog.Debug("mock request", "format", "anthropic", "model", c.model, "stream", c.stream, "tool_call", rep.isToolCall())
	if rep.status != 0 {
		writeAnthropicError(w, rep.status)
		return
	}
	if c.stream {
		s.streamAnthropic(w, c.model, rep)
		return
	}

	var content []map[string]any
	stop := "end_turn"
	if rep.isToolCall() {
		content = append(content, map[string]any{
			"type":  "tool_use",
			"id":    ToolCallID,
			"name":  rep.toolName,
			"input": json.RawMessage(ToolArguments),
		})
		stop = "tool_use"
	} else {
		content = append(content, map[string]any{"type": "text", "text": rep.text()})
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"id":          "msg_mock",
		"type":        "message",
		"role":        "assistant",
		"model":       c.model,
		"content":     content,
		"stop_reason": stop,
		"usage":       map[string]int{"input_tokens": rep.usageIn, "output_tokens": rep.usageOut},
	})
}

func (s *Server) streamAnthropic(w http.ResponseWriter, model string, rep reply) {
	sw, ok := newStreamWriter(w, s.opts.ChunkDelay)
	if !ok {
		return
	}

	sw.event("message_start", map[string]any{
		"type": "message_start",
		"message": map[string]any{
			"id":      "msg_mock",
			"type":    "message",
			"role":    "assistant",
			"model":   model,
			"content": []any{},
			"usage":   map[string]int{"input_tokens": rep.usageIn, "output_tokens": 0},
		},
	})

	stop := "end_turn"
	if rep.isToolCall() {
		sw.event("content_block_start", map[string]any{
			"type":  "content_block_start",
			"index": 0,
			"content_block": map[string]any{
				"type":  "tool_use",
				"id":    ToolCallID,
				"name":  rep.toolName,
				"input": map[string]any{},
			},
		})
		for _, frag := range toolArgumentFragments {
			sw.event("content_block_delta", map[string]any{
				"type":  "content_block_delta",
				"index": 0,
				"delta": map[string]any{"type": "input_json_delta", "partial_json": frag},
			})
		}
		stop = "tool_use"
	} else {
		sw.event("content_block_start", map[string]any{
			"type":          "content_block_start",
			"index":         0,
			"content_block": map[string]any{"type": "text", "text": ""},
		})
		for _, token := range rep.tokens {
			sw.event("content_block_delta", map[string]any{
				"type":  "content_block_delta",
				"index": 0,
				"delta": map[string]any{"type": "text_delta", "text": token},
			})
		}
	}
	sw.event("content_block_stop", map[string]any{"type": "content_block_stop", "index": 0})
	sw.event("message_delta", map[string]any{
		"type":  "message_delta",
		"delta": map[string]any{"stop_reason": stop},
		"usage": map[string]int{"input_tokens": rep.usageIn, "output_tokens": rep.usageOut},
	})
	sw.event("message_stop", map[string]any{"type": "message_stop"})
}

func anthropicConversation(body gjson.Result) conversation {
	c := conversation{
		model:  body.Get("model").Str,
		stream: body.Get("stream").Bool(),
		system: textOf(body.Get("system")),
	}
	body.Get("messages").ForEach(func(_, m gjson.Result) bool {
		if m.Get("role").Str != "user" {
			return true
		}
		content := m.Get("content")
		if content.Type == gjson.String {
			c.lastUser = content.Str
			return true
		}
		var text strings.Builder
		content.ForEach(func(_, block gjson.Result) bool {
			switch block.Get("type").Str {
			case "text":
				text.WriteString(block.Get("text").Str)
			case "tool_result":
				c.toolResults = append(c.toolResults, textOf(block.Get("content")))
			}
			return true
		})
		if text.Len() > 0 {
			c.lastUser = text.String()
		}
		return true
	})
	body.Get("tools.#.name").ForEach(func(_, n gjson.Result) bool {
		c.tools = append(c.tools, n.Str)
		return true
	})
	return c
}

func writeAnthropicError(w http.ResponseWriter, status int) {
	writeJSON(w, status, map[string]any{
		"type": "error",
		"error": map[string]any{
			"type":    errorType(status),
			"message": fmt.Sprintf("mock error %d", status),
		},
	})
}

// --- Gemini ---

func (s *Server) handleGemini(w http.ResponseWriter, r *http.Request) {
	model, method, found := strings.Cut(r.PathValue("call"), ":")
	if !found || (method != "generateContent" && method != "streamGenerateContent") {
		http.NotFound(w, r)
		return
	}
	body, ok := readBody(w, r)
	if !ok {
		return
	}
	if s.admit() {
		writeGeminiError(w, http.StatusServiceUnavailable)
		return
	}

	c := geminiConversation(body)
	c.model = model
	c.stream = method == "streamGenerateContent"
	rep := plan(c)
	slog.Debug("mock request", "format", "gemini", "model", c.model, "stream", c.stream, "tool_call", rep.isToolCall())
	if rep.status != 0 {
		writeGeminiError(w, rep.status)
		return
	}
	if c.stream {
		s.streamGemini(w, c.model, rep)
		return
	}

	var parts []map[string]any
	if rep.isToolCall() {
		parts = append(parts, geminiCallPart(rep))
	} else {
		parts = append(parts, map[string]any{"text": rep.text()})
	}
	writeJSON(w, http.StatusOK, geminiResponse(model, parts, "STOP", &rep))
}

func (s *Server) streamGemini(w http.ResponseWriter, model string, rep reply) {
	sw, ok := newStreamWriter(w, s.opts.ChunkDelay)
	if !ok {
		return
	}
	if rep.isToolCall() {
		sw.data(geminiResponse(model, []map[string]any{geminiCallPart(rep)}, "STOP", &rep))
		return
	}
	for _, token := range rep.tokens {
		sw.data(geminiResponse(model, []map[string]any{{"text": token}}, "", nil))
	}
	sw.data(geminiResponse(model, nil, "STOP", &rep))
}

func geminiCallPart(rep reply) map[string]any {
	return map[string]any{
		"functionCall": map[string]any{
			"name": rep.toolName,
			"args": json.RawMessage(ToolArguments),
		},
	}
}

func geminiResponse(model string, parts []map[string]any, finish string, usage *reply) map[string]any {
	cand := map[string]any{"index": 0}
	if parts != nil {
		cand["content"] = map[string]any{"role": "model", "parts": parts}
	}
	if finish != "" {
		cand["finishReason"] = finish
	}
	resp := map[string]any{
		"candidates":   []map[string]any{cand},
		"modelVersion": model,
	}
	if usage != nil {
		resp["usageMetadata"] = map[string]int{
			"promptTokenCount":     usage.usageIn,
			"candidatesTokenCount": usage.usageOut,
			"totalTokenCount":      usage.usageIn + usage.usageOut,
		}
	}
	return resp
}

func geminiConversation(body gjson.Result) conversation {
	c := conversation{system: textOf(body.Get("systemInstruction.parts"))}
	body.Get("contents").ForEach(func(_, m gjson.Result) bool {
		if m.Get("role").Str == "model" {
			return true
		}
		var text strings.Builder
		m.Get("parts").ForEach(func(_, p gjson.Result) bool {
			if fr := p.Get("functionResponse"); fr.Exists() {
				c.toolResults = append(c.toolResults, fr.Get("response.content").String())
				return true
			}
			text.WriteString(p.Get("text").Str)
			return true
		})
		if text.Len() > 0 {
			c.lastUser = text.String()
		}
		return true
	})
	body.Get("tools").ForEach(func(_, t gjson.Result) bool {
		t.Get("functionDeclarations.#.name").ForEach(func(_, n gjson.Result) bool {
			c.tools = append(c.tools, n.Str)
			return true
		})
		return true
	})
	return c
}

func writeGeminiError(w http.ResponseWriter, status int) {
	writeJSON(w, status, map[string]any{
		"error": map[string]any{
			"code":    status,
			"message": fmt.Sprintf("mock error %d", status),
			"status":  strings.ToUpper(strings.ReplaceAll(http.StatusText(status), " ", "_")),
		},
	})
}

// --- helpers ---

// textOf flattens a string, an array of {"text": ...} parts or blocks, or
// any other JSON value into plain text.
func textOf(v gjson.Result) string {
	switch {
	case !v.Exists():
		return ""
	case v.Type == gjson.String:
		return v.Str
	case v.IsArray():
		var b strings.Builder
		v.ForEach(func(_, item gjson.Result) bool {
			if item.Type == gjson.String {
				b.WriteString(item.Str)
			} else {
				b.WriteString(item.Get("text").Str)
			}
			return true
		})
		return b.String()
	default:
		return v.Raw
	}
}

func errorType(status int) string {
	switch {
	case status == http.StatusUnauthorized:
		return "authentication_error"
	case status == http.StatusTooManyRequests:
		return "rate_limit_error"
	case status >= 500:
		return "api_error"
	default:
		return "invalid_request_error"
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Debug("mock write failed", "error", err)
	}
}

// streamWriter writes SSE frames and flushes after each one.
type streamWriter struct {
	w       http.ResponseWriter
	flusher http.Flusher
	delay   time.Duration
}

func newStreamWriter(w http.ResponseWriter, delay time.Duration) (*streamWriter, bool) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return nil, false
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	return &streamWriter{w: w, flusher: flusher, delay: delay}, true
}

func (s *streamWriter) data(v any) {
	b, _ := json.Marshal(v)
	s.raw(string(b))
}

func (s *streamWriter) raw(payload string) {
	fmt.Fprintf(s.w, "data: %s\n\n", payload)
	s.flush()
}

func (s *streamWriter) event(name string, v any) {
	b, _ := json.Marshal(v)
	fmt.Fprintf(s.w, "event: %s\ndata: %s\n\n", name, b)
	s.flush()
}

func (s *streamWriter) flush() {
	s.flusher.Flush()
	if s.delay > 0 {
		time.Sleep(s.delay)
	}
}
