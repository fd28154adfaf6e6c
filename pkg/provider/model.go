package provider

import (
	"strings"

	"github.com/rhuss/strom/pkg/api"
)

// ParseModel splits a "provider/model" string into its tag and the
// provider's model name. Only the first slash separates the tag, so
// "openrouter/meta-llama/llama-3-70b" keeps its nested model path.
func ParseModel(s string) (Tag, string, error) {
	tag, model, ok := strings.Cut(s, "/")
	if !ok || tag == "" || model == "" {
		return "", "", api.NewInvalidRequestError("model",
			`model must be of the form "provider/model", got "`+s+`"`)
	}
	return Tag(strings.ToLower(tag)), model, nil
}
