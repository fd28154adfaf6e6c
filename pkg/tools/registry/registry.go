package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/rhuss/strom/pkg/api"
	"github.com/rhuss/strom/pkg/observability"
	"github.com/rhuss/strom/pkg/tools"
)

var toolDuration = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "strom_tool_duration_seconds",
		Help:    "Tool execution duration",
		Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30, 60},
	},
	[]string{"tool_name"},
)

func init() {
	prometheus.MustRegister(toolDuration)
}

// Func is an in-process tool. args is the JSON object the model produced;
// the returned string is sent back to the model as the tool result.
type Func func(ctx context.Context, args json.RawMessage) (string, error)

type function struct {
	def    api.ToolDefinition
	fn     Func
	schema *jsonschema.Resolved
}

// Registry holds registered functions and providers. It is safe for
// concurrent use; registration normally happens before the first call.
type Registry struct {
	mu sync.RWMutex

	functions map[string]*function
	order     []string

	// providers stores registered providers in insertion order.
	providers      []Provider
	toolToProvider map[string]Provider
}

// Ensure Registry implements tools.ToolExecutor at compile time.
var _ tools.ToolExecutor = (*Registry)(nil)

// New creates an empty Registry.
func New() *Registry {
	return &Registry{
		functions:      make(map[string]*function),
		toolToProvider: make(map[string]Provider),
	}
}

// Register adds an in-process tool. parameters is the JSON schema of the
// argument object and may be nil for a tool without arguments. When a
// schema is given, arguments are validated against it before fn runs.
func (r *Registry) Register(name string, fn Func, description string, parameters json.RawMessage) error {
	if name == "" {
		return api.NewInvalidRequestError("name", "tool name is required")
	}
	if fn == nil {
		return api.NewInvalidRequestError("fn", "tool "+name+" has no function")
	}

	var resolved *jsonschema.Resolved
	if len(parameters) > 0 {
		var s jsonschema.Schema
		if err := json.Unmarshal(parameters, &s); err != nil {
			return api.NewInvalidRequestError("parameters", fmt.Sprintf("tool %s: invalid schema: %v", name, err))
		}
		rs, err := s.Resolve(nil)
		if err != nil {
			return api.NewInvalidRequestError("parameters", fmt.Sprintf("tool %s: unresolvable schema: %v", name, err))
		}
		resolved = rs
	}

	return r.add(&function{
		def: api.ToolDefinition{
			Name:        name,
			Description: description,
			Parameters:  parameters,
		},
		fn:     fn,
		schema: resolved,
	})
}

func (r *Registry) add(f *function) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := f.def.Name
	if _, exists := r.functions[name]; exists {
		return api.NewInvalidRequestError("name", "tool "+name+" is already registered")
	}
	if p, exists := r.toolToProvider[name]; exists {
		slog.Warn("function shadows provider tool",
			"tool", name,
			"provider", p.Name(),
		)
	}
	r.functions[name] = f
	r.order = append(r.order, name)
	return nil
}

// AddProvider adds a tool provider. Tool names are resolved on a
// first-come, first-served basis: if two providers supply a tool with the
// same name, the first registered provider wins and a warning is logged.
// Registered functions always win over provider tools.
func (r *Registry) AddProvider(p Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.providers = append(r.providers, p)

	defs := p.Tools()
	for _, td := range defs {
		if existing, ok := r.toolToProvider[td.Name]; ok {
			slog.Warn("tool name conflict, keeping first provider",
				"tool", td.Name,
				"winner", existing.Name(),
				"loser", p.Name(),
			)
			continue
		}
		r.toolToProvider[td.Name] = p
	}

	slog.Info("registered tool provider",
		"provider", p.Name(),
		"tools", len(defs),
	)
}

// Kind returns ToolKindFunction.
func (r *Registry) Kind() tools.ToolKind {
	return tools.ToolKindFunction
}

// CanExecute returns true if a function or provider handles the named tool.
func (r *Registry) CanExecute(toolName string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if _, ok := r.functions[toolName]; ok {
		return true
	}
	_, ok := r.toolToProvider[toolName]
	return ok
}

// Definitions returns every tool the model may call: registered functions
// in registration order, then provider tools in provider order.
func (r *Registry) Definitions() []api.ToolDefinition {
	r.mu.RLock()
	defer r.mu.RUnlock()

	defs := make([]api.ToolDefinition, 0, len(r.order))
	for _, name := range r.order {
		defs = append(defs, r.functions[name].def)
	}
	for _, p := range r.providers {
		for _, td := range p.Tools() {
			if _, shadowed := r.functions[td.Name]; shadowed {
				continue
			}
			if r.toolToProvider[td.Name] != p {
				continue
			}
			defs = append(defs, td)
		}
	}
	return defs
}

// Names returns the sorted names of all executable tools.
func (r *Registry) Names() []string {
	defs := r.Definitions()
	names := make([]string, len(defs))
	for i, d := range defs {
		names[i] = d.Name
	}
	slices.Sort(names)
	return names
}

// Execute runs the named tool. Unknown tools, invalid arguments, tool
// errors and panics all come back as an error result; the returned error
// is always nil so one failing call never aborts its siblings.
func (r *Registry) Execute(ctx context.Context, call tools.ToolCall) (result *tools.ToolResult, err error) {
	r.mu.RLock()
	f := r.functions[call.Name]
	p := r.toolToProvider[call.Name]
	r.mu.RUnlock()

	if f == nil && p == nil {
		observability.ToolExecutionsTotal.WithLabelValues(call.Name, "unknown").Inc()
		return tools.ErrorResult(call.ID, "unknown tool %q", call.Name), nil
	}

	start := time.Now()

	// Recover from panics inside tool code.
	defer func() {
		if rec := recover(); rec != nil {
			slog.Error("tool panicked",
				"tool", call.Name,
				"call_id", call.ID,
				"panic", rec,
			)
			result = tools.ErrorResult(call.ID, "internal error: tool %q panicked", call.Name)
			err = nil

			observability.ToolExecutionsTotal.WithLabelValues(call.Name, "panic").Inc()
			toolDuration.WithLabelValues(call.Name).Observe(time.Since(start).Seconds())
		}
	}()

	if f != nil {
		result = f.call(ctx, call)
	} else {
		result, err = p.Execute(ctx, call)
		if err != nil {
			result = tools.ErrorResult(call.ID, "tool %q failed: %v", call.Name, err)
			err = nil
		} else if result == nil {
			result = &tools.ToolResult{CallID: call.ID}
		}
	}

	status := "success"
	if result.IsError {
		status = "tool_error"
	}
	observability.ToolExecutionsTotal.WithLabelValues(call.Name, status).Inc()
	toolDuration.WithLabelValues(call.Name).Observe(time.Since(start).Seconds())

	return result, nil
}

func (f *function) call(ctx context.Context, call tools.ToolCall) *tools.ToolResult {
	args := json.RawMessage(call.Arguments)
	if len(args) == 0 {
		args = json.RawMessage("{}")
	}

	if f.schema != nil {
		var instance any
		if err := json.Unmarshal(args, &instance); err != nil {
			return tools.ErrorResult(call.ID, "invalid arguments for %s: %v", call.Name, err)
		}
		if err := f.schema.Validate(instance); err != nil {
			return tools.ErrorResult(call.ID, "invalid arguments for %s: %v", call.Name, err)
		}
	}

	out, err := f.fn(ctx, args)
	if err != nil {
		slog.Warn("tool returned an error",
			"tool", call.Name,
			"call_id", call.ID,
			"error", api.NewToolExecutionError(call.Name, err),
		)
		return tools.ErrorResult(call.ID, "tool %s failed: %v", call.Name, err)
	}
	return &tools.ToolResult{CallID: call.ID, Output: out}
}

// Close closes all registered providers, returning the last error encountered.
func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var lastErr error
	for _, p := range r.providers {
		if err := p.Close(); err != nil {
			slog.Warn("failed to close tool provider", "provider", p.Name(), "error", err)
			lastErr = err
		}
	}
	return lastErr
}
