package client

import (
	"context"

	"github.com/rhuss/strom/pkg/api"
	"github.com/rhuss/strom/pkg/structured"
)

// CompleteStructured asks for a response matching the JSON schema of T
// and parses the final assistant message into a T. Providers without
// native schema support still get the parse and validation step.
func CompleteStructured[T any](ctx context.Context, c *Client, req Request) (T, *Response, error) {
	var zero T
	parser, err := structured.NewParser[T]()
	if err != nil {
		return zero, nil, err
	}
	req.schema = parser.Schema()
	req.schemaName = structured.SchemaName[T]()

	resp, err := c.Complete(ctx, req)
	if err != nil {
		return zero, nil, err
	}
	v, err := parser.Parse(finalText(resp))
	if err != nil {
		return zero, resp, err
	}
	return v, resp, nil
}

// finalText returns the content of the last assistant message, falling
// back to the aggregated text.
func finalText(resp *Response) string {
	for i := len(resp.Messages) - 1; i >= 0; i-- {
		if m := resp.Messages[i]; m.Role == api.RoleAssistant {
			return m.Content
		}
	}
	return resp.Text
}
