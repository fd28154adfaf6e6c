package mockbackend

import (
	"regexp"
	"strconv"
	"strings"
)

// Fixed tool call produced on the first round of a conversation that
// offers tools.
const (
	ToolCallID    = "call_mock_1"
	WeatherTool   = "get_weather"
	ToolArguments = `{"city":"Paris"}`
)

// toolArgumentFragments is ToolArguments split the way streaming
// providers deliver it.
var toolArgumentFragments = []string{`{"city":`, `"Paris"}`}

// conversation is the part of a request the script looks at, extracted
// from any of the three wire formats.
type conversation struct {
	model       string
	stream      bool
	system      string
	lastUser    string
	tools       []string
	toolResults []string
}

// reply is what the mock answers, independent of the wire format.
type reply struct {
	tokens   []string
	toolName string
	status   int
	usageIn  int
	usageOut int
}

func (r reply) isToolCall() bool { return r.toolName != "" }

func (r reply) text() string { return strings.Join(r.tokens, "") }

var statusTrigger = regexp.MustCompile(`mock:status=(\d{3})`)

// plan picks the scripted reply for a conversation.
func plan(c conversation) reply {
	if m := statusTrigger.FindStringSubmatch(c.lastUser); m != nil {
		code, _ := strconv.Atoi(m[1])
		return reply{status: code}
	}

	r := reply{usageIn: 10}
	switch {
	case len(c.toolResults) > 0:
		r.tokens = tokenize("The tool returned " + strings.Join(c.toolResults, "; ") + ".")
	case len(c.tools) > 0:
		r.toolName = c.tools[0]
		for _, name := range c.tools {
			if name == WeatherTool {
				r.toolName = name
			}
		}
		r.usageOut = 5
		return r
	case strings.Contains(strings.ToLower(c.lastUser), "count from 1 to 5"):
		r.tokens = []string{"1", ", ", "2", ", ", "3", ", ", "4", ", ", "5"}
	case c.system != "":
		r.tokens = []string{"Ahoy", " there", ", ", "matey", "!"}
	default:
		r.tokens = []string{"Hello", ", ", "nice", " ", "day", "!"}
	}
	r.usageOut = len(r.tokens)
	return r
}

// tokenize splits text after each space so the pieces rejoin exactly.
func tokenize(text string) []string {
	return strings.SplitAfter(text, " ")
}
