package afc

import (
	"log/slog"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/rhuss/strom/pkg/api"
	"github.com/rhuss/strom/pkg/provider"
)

// pendingCall collects the fragments of one tool call.
type pendingCall struct {
	index    int
	id       string
	name     string
	args     strings.Builder
	complete bool
}

// accumulator assembles tool call fragments of one round, keyed by the
// provider's tool call index. It is owned by a single round.
type accumulator struct {
	byIndex map[int]*pendingCall
	order   []*pendingCall
}

func newAccumulator() *accumulator {
	return &accumulator{byIndex: make(map[int]*pendingCall)}
}

// add routes a DeltaToolCall fragment to its call. Whole calls always get
// a slot of their own. A fragment carrying a new id for an index that
// already has a different id starts a new call, since some providers
// reuse index 0 for every call.
func (a *accumulator) add(d provider.Delta) {
	if d.Complete {
		p := &pendingCall{index: d.ToolCallIndex, id: d.ToolCallID, name: d.FunctionName, complete: true}
		p.args.WriteString(d.Arguments)
		a.order = append(a.order, p)
		return
	}

	p := a.byIndex[d.ToolCallIndex]
	if p == nil || (d.ToolCallID != "" && p.id != "" && d.ToolCallID != p.id) {
		p = &pendingCall{index: d.ToolCallIndex}
		a.byIndex[d.ToolCallIndex] = p
		a.order = append(a.order, p)
	}
	if p.id == "" {
		p.id = d.ToolCallID
	}
	if p.name == "" {
		p.name = d.FunctionName
	}
	p.args.WriteString(d.Arguments)
}

// pending reports whether any fragment has been collected.
func (a *accumulator) pending() bool {
	return len(a.order) > 0
}

// finish validates every collected call and returns them in arrival
// order. Calls without a name are dropped. Missing ids are generated and
// arguments that are not a JSON object become "{}".
func (a *accumulator) finish() []api.ToolCall {
	calls := make([]api.ToolCall, 0, len(a.order))
	for _, p := range a.order {
		if p.name == "" {
			slog.Warn("dropping tool call without a name",
				"index", p.index,
				"call_id", p.id,
			)
			continue
		}
		id := p.id
		if id == "" {
			id = api.NewCallID()
		}
		calls = append(calls, api.ToolCall{
			ID:        id,
			Name:      p.name,
			Arguments: normalizeArguments(p.name, p.args.String()),
		})
	}
	return calls
}

// normalizeArguments parses tool arguments leniently. Empty, malformed or
// truncated JSON and non-object values all become "{}".
func normalizeArguments(name, raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "{}"
	}
	if !gjson.Valid(raw) || !gjson.Parse(raw).IsObject() {
		slog.Warn("malformed tool call arguments, using empty object",
			"tool", name,
			"arguments", provider.Truncate(raw, 200),
		)
		return "{}"
	}
	return raw
}
