package provider

import "github.com/rhuss/strom/pkg/api"

// Capabilities lists the request features an adapter can honour.
type Capabilities struct {
	Streaming   bool
	ToolCalling bool

	// StructuredOutput means ResponseSchema is enforced by the provider.
	// Adapters without it send the request unconstrained.
	StructuredOutput bool
}

// Check rejects req before it is sent if it is incomplete or asks for a
// feature c lacks.
func (c Capabilities) Check(req *ChatRequest) *api.Error {
	switch {
	case req.Model == "":
		return api.NewInvalidRequestError("model", "model is required")
	case len(req.Messages) == 0:
		return api.NewInvalidRequestError("messages", "at least one message is required")
	case req.Stream && !c.Streaming:
		return api.NewInvalidRequestError("stream", "provider cannot stream responses")
	case len(req.Tools) > 0 && !c.ToolCalling:
		return api.NewInvalidRequestError("tools", "provider cannot call tools")
	}
	return nil
}
