package tools

// AllowList restricts which tools a conversation may run. The zero value
// allows every tool.
type AllowList struct {
	names map[string]struct{}
}

// NewAllowList builds an AllowList from tool names. An empty list allows
// every tool.
func NewAllowList(names []string) AllowList {
	if len(names) == 0 {
		return AllowList{}
	}
	m := make(map[string]struct{}, len(names))
	for _, n := range names {
		m[n] = struct{}{}
	}
	return AllowList{names: m}
}

// Allows reports whether a tool called name may run.
func (a AllowList) Allows(name string) bool {
	if a.names == nil {
		return true
	}
	_, ok := a.names[name]
	return ok
}

// Rejection is the error result sent to the model in place of the output
// of a refused call.
func Rejection(call ToolCall) *ToolResult {
	return ErrorResult(call.ID, "tool %s is not in the allowed tools list", call.Name)
}
