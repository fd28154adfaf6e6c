package afc

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/rhuss/strom/pkg/api"
	"github.com/rhuss/strom/pkg/dispatch"
	"github.com/rhuss/strom/pkg/observability"
	"github.com/rhuss/strom/pkg/provider"
	"github.com/rhuss/strom/pkg/retry"
	"github.com/rhuss/strom/pkg/tools"
)

// DefaultMaxRounds bounds the number of provider rounds per call.
const DefaultMaxRounds = 10

// State is the controller's position within a round.
type State int

const (
	StateStreamingText State = iota
	StateAccumulatingToolCalls
	StateExecutingTools
	StateContinuing
	StateDone
)

func (s State) String() string {
	switch s {
	case StateStreamingText:
		return "STREAMING_TEXT"
	case StateAccumulatingToolCalls:
		return "ACCUMULATING_TOOLCALLS"
	case StateExecutingTools:
		return "EXECUTING_TOOLS"
	case StateContinuing:
		return "CONTINUING"
	case StateDone:
		return "DONE"
	default:
		return "UNKNOWN"
	}
}

// Dispatcher submits serialized provider requests.
type Dispatcher interface {
	Submit(ctx context.Context, req *provider.Request) (*dispatch.Handle, error)
}

var _ Dispatcher = (*dispatch.Engine)(nil)

// ToolSet offers tool definitions to the model and runs the calls it
// makes. The tool registry implements it.
type ToolSet interface {
	Definitions() []api.ToolDefinition
	Execute(ctx context.Context, call tools.ToolCall) (*tools.ToolResult, error)
}

// Config controls the continuation loop.
type Config struct {
	// MaxRounds bounds the provider rounds of one call. A call that is
	// still requesting tools in its last round ends with FinishMaxRounds.
	MaxRounds int `yaml:"max_rounds" json:"max_rounds"`

	// MaxParallelTools limits concurrent tool executions within a round.
	// Zero means no limit, 1 runs calls one at a time.
	MaxParallelTools int `yaml:"max_parallel_tools" json:"max_parallel_tools"`

	// AllowedTools restricts which tools may run. Empty allows all.
	AllowedTools []string `yaml:"allowed_tools" json:"allowed_tools"`

	// Retry resubmits a round that failed before any text reached the
	// caller.
	Retry retry.Policy `yaml:"retry" json:"retry"`

	// OnTransition, if set, is called on every state change.
	OnTransition func(from, to State) `yaml:"-" json:"-"`
}

// DefaultConfig returns the default loop settings.
func DefaultConfig() Config {
	return Config{
		MaxRounds: DefaultMaxRounds,
		Retry:     retry.DefaultPolicy(),
	}
}

// EmitFunc receives text fragments as they stream in. Returning an error
// aborts the call.
type EmitFunc func(text string) error

// Result is the outcome of one controller run.
type Result struct {
	// Text is the assistant text of every round, concatenated in the
	// order it was emitted.
	Text string

	// Messages is the final conversation: the input messages followed
	// by every assistant turn and tool message the run produced.
	Messages []api.Message

	// ToolCalls lists the executed calls of all rounds.
	ToolCalls []api.ToolCall

	// Pending holds the calls of the last round when the round limit
	// stopped the run before they could run.
	Pending []api.ToolCall

	FinishReason provider.FinishReason
	Rounds       int
	Usage        api.Usage
}

// Controller runs calls with automatic function calling. It is safe for
// concurrent use; each Run owns its own conversation and state.
type Controller struct {
	cfg    Config
	engine Dispatcher
	tools  ToolSet
	allow  tools.AllowList
}

// New creates a controller. toolSet may be nil, in which case every tool
// call the model makes comes back to it as an error result.
func New(cfg Config, engine Dispatcher, toolSet ToolSet) *Controller {
	if cfg.MaxRounds <= 0 {
		cfg.MaxRounds = DefaultMaxRounds
	}
	return &Controller{
		cfg:    cfg,
		engine: engine,
		tools:  toolSet,
		allow:  tools.NewAllowList(cfg.AllowedTools),
	}
}

// Run drives req through as many rounds as the model needs. Text is
// passed to emit as it arrives; emit may be nil. When req carries no tool
// definitions the controller offers the tool set's definitions.
func (c *Controller) Run(ctx context.Context, adapter provider.Adapter, req provider.ChatRequest, emit EmitFunc) (*Result, error) {
	if adapter == nil {
		return nil, api.NewInvalidRequestError("provider", "adapter is required")
	}
	ctx = observability.WithProvider(ctx, string(adapter.Tag()))

	if len(req.Tools) == 0 && c.tools != nil {
		req.Tools = c.tools.Definitions()
	}

	r := &run{
		c:       c,
		adapter: adapter,
		req:     req,
		conv:    api.NewConversation(req.Messages...),
		emit:    emit,
	}

	res, err := r.loop(ctx)
	observability.AFCRounds.Observe(float64(r.rounds))
	if err != nil {
		return nil, err
	}
	return res, nil
}

// run is the state of one call. It is owned by a single goroutine.
type run struct {
	c       *Controller
	adapter provider.Adapter
	req     provider.ChatRequest
	conv    *api.Conversation
	emit    EmitFunc

	state  State
	rounds int
}

// roundOutcome is what one provider round produced.
type roundOutcome struct {
	text    string
	calls   []api.ToolCall
	reason  provider.FinishReason
	usage   *api.Usage
	emitted bool
}

func (r *run) loop(ctx context.Context) (*Result, error) {
	res := &Result{}
	var text strings.Builder

	for {
		r.rounds++
		res.Rounds = r.rounds

		out, err := r.round(ctx)
		if err != nil {
			return nil, fmt.Errorf("round %d: %w", r.rounds, err)
		}
		res.Usage.Add(out.usage)
		text.WriteString(out.text)

		if len(out.calls) == 0 {
			if out.text != "" {
				r.conv.Append(api.Message{Role: api.RoleAssistant, Content: out.text})
			}
			res.FinishReason = out.reason
			if res.FinishReason == "" {
				res.FinishReason = provider.FinishStop
			}
			break
		}

		if r.rounds >= r.c.cfg.MaxRounds {
			slog.Warn("automatic function calling reached the round limit",
				"max_rounds", r.c.cfg.MaxRounds,
				"pending_calls", len(out.calls),
			)
			r.conv.Append(assistantMessage(out.text, out.calls))
			res.Pending = out.calls
			res.FinishReason = provider.FinishMaxRounds
			break
		}

		r.transition(StateExecutingTools)
		results := r.execute(ctx, out.calls)

		r.transition(StateContinuing)
		r.conv.Append(assistantMessage(out.text, out.calls))
		for i, call := range out.calls {
			r.conv.Append(results[i].Message(call))
		}
		res.ToolCalls = append(res.ToolCalls, out.calls...)

		if err := ctx.Err(); err != nil {
			return nil, provider.MapNetworkError(ctx, err)
		}
	}

	r.transition(StateDone)
	res.Text = text.String()
	res.Messages = r.conv.Snapshot()
	return res, nil
}

// round runs one provider round under the retry policy. A round that
// already passed text to the caller is never resubmitted.
func (r *run) round(ctx context.Context) (*roundOutcome, error) {
	var out *roundOutcome
	err := r.c.cfg.Retry.Do(ctx, func(ctx context.Context) error {
		var err error
		out, err = r.stream(ctx)
		if err != nil && out.emitted {
			return retry.Stop(err)
		}
		return err
	})
	return out, err
}

func (r *run) stream(ctx context.Context) (*roundOutcome, error) {
	out := &roundOutcome{}
	r.transition(StateStreamingText)

	chatReq := r.req
	chatReq.Messages = r.conv.Snapshot()
	preq, err := r.adapter.BuildRequest(&chatReq)
	if err != nil {
		return out, retry.Stop(fmt.Errorf("building %s request: %w", r.adapter.Tag(), err))
	}

	handle, err := r.c.engine.Submit(ctx, preq)
	if err != nil {
		if errors.Is(err, dispatch.ErrClosed) {
			return out, retry.Stop(err)
		}
		return out, err
	}
	defer handle.Cancel()

	acc := newAccumulator()
	var text strings.Builder
	for {
		d, err := handle.Poll(ctx)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return out, provider.MapNetworkError(ctx, err)
		}

		switch d.Kind {
		case provider.DeltaText:
			if d.Text == "" {
				continue
			}
			text.WriteString(d.Text)
			if r.emit != nil {
				if err := r.emit(d.Text); err != nil {
					return out, retry.Stop(err)
				}
				out.emitted = true
			}
		case provider.DeltaToolCall:
			r.transition(StateAccumulatingToolCalls)
			acc.add(d)
		case provider.DeltaCompletion:
			out.reason = d.Reason
			out.usage = d.Usage
		case provider.DeltaError:
			return out, d.Err
		}
	}

	out.text = text.String()
	if acc.pending() {
		out.calls = acc.finish()
	}
	return out, nil
}

// execute runs every call of a round concurrently. Each failure becomes
// the result text of its own call; siblings are never aborted. Results
// are returned in call order.
func (r *run) execute(ctx context.Context, calls []api.ToolCall) []tools.ToolResult {
	results := make([]tools.ToolResult, len(calls))
	var g errgroup.Group
	if r.c.cfg.MaxParallelTools > 0 {
		g.SetLimit(r.c.cfg.MaxParallelTools)
	}

	for i, c := range calls {
		call := tools.CallFromAPI(c)
		if !r.c.allow.Allows(call.Name) {
			results[i] = *tools.Rejection(call)
			observability.ToolExecutionsTotal.WithLabelValues(call.Name, "rejected").Inc()
			continue
		}
		g.Go(func() error {
			results[i] = r.executeOne(ctx, call)
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func (r *run) executeOne(ctx context.Context, call tools.ToolCall) tools.ToolResult {
	if r.c.tools == nil {
		observability.ToolExecutionsTotal.WithLabelValues(call.Name, "unknown").Inc()
		return *tools.ErrorResult(call.ID, "unknown tool %q", call.Name)
	}

	res, err := r.c.tools.Execute(ctx, call)
	if err != nil {
		slog.Warn("tool execution error",
			"tool", call.Name,
			"call_id", call.ID,
			"error", err.Error(),
		)
		return *tools.ErrorResult(call.ID, "tool %q failed: %v", call.Name, err)
	}
	if res == nil {
		return tools.ToolResult{CallID: call.ID}
	}
	if res.CallID == "" {
		res.CallID = call.ID
	}
	return *res
}

func (r *run) transition(to State) {
	if r.state == to {
		return
	}
	from := r.state
	r.state = to
	slog.Debug("afc state change",
		"from", from.String(),
		"to", to.String(),
		"round", r.rounds,
	)
	if r.c.cfg.OnTransition != nil {
		r.c.cfg.OnTransition(from, to)
	}
}

func assistantMessage(text string, calls []api.ToolCall) api.Message {
	return api.Message{
		Role:      api.RoleAssistant,
		Content:   text,
		ToolCalls: calls,
	}
}
