// Package sse splits raw response bytes into frames for the provider
// decoders. EventStream handles incremental text/event-stream bodies
// where a frame may span several network reads. Body treats a whole
// non-streaming response as one frame.
package sse

import "bytes"

// Frame is one dispatched server-sent event, or a whole response body.
type Frame struct {
	// Event is the value of the last "event:" field, empty if none.
	Event string

	// Data is the concatenation of all "data:" lines, joined by "\n".
	Data []byte
}

// Framer turns a sequence of reads into frames.
type Framer interface {
	// Feed consumes p and returns every frame completed by it. The
	// returned frames do not alias p.
	Feed(p []byte) []Frame

	// Flush is called once at end of input and returns any frame still
	// pending.
	Flush() []Frame
}

// EventStream is an incremental text/event-stream parser. Partial lines
// and partial frames are buffered across Feed calls until a blank line
// terminates the event.
type EventStream struct {
	line    []byte
	event   string
	data    [][]byte
	hasData bool
}

// NewEventStream creates an empty event-stream framer.
func NewEventStream() *EventStream {
	return &EventStream{}
}

// Feed implements Framer.
func (s *EventStream) Feed(p []byte) []Frame {
	var frames []Frame
	for len(p) > 0 {
		i := bytes.IndexByte(p, '\n')
		if i < 0 {
			s.line = append(s.line, p...)
			break
		}
		s.line = append(s.line, p[:i]...)
		p = p[i+1:]

		line := bytes.TrimSuffix(s.line, []byte("\r"))
		if f, ok := s.processLine(line); ok {
			frames = append(frames, f)
		}
		s.line = s.line[:0]
	}
	return frames
}

// Flush implements Framer. A trailing event without its terminating
// blank line is still dispatched.
func (s *EventStream) Flush() []Frame {
	var frames []Frame
	if len(s.line) > 0 {
		line := bytes.TrimSuffix(s.line, []byte("\r"))
		if f, ok := s.processLine(line); ok {
			frames = append(frames, f)
		}
		s.line = s.line[:0]
	}
	if f, ok := s.dispatch(); ok {
		frames = append(frames, f)
	}
	return frames
}

func (s *EventStream) processLine(line []byte) (Frame, bool) {
	if len(line) == 0 {
		return s.dispatch()
	}
	if line[0] == ':' {
		return Frame{}, false
	}

	field, value := line, []byte(nil)
	if i := bytes.IndexByte(line, ':'); i >= 0 {
		field = line[:i]
		value = line[i+1:]
		if len(value) > 0 && value[0] == ' ' {
			value = value[1:]
		}
	}

	switch string(field) {
	case "data":
		s.data = append(s.data, bytes.Clone(value))
		s.hasData = true
	case "event":
		s.event = string(value)
	}
	// id and retry carry no meaning for chat completions.
	return Frame{}, false
}

func (s *EventStream) dispatch() (Frame, bool) {
	if !s.hasData {
		s.event = ""
		return Frame{}, false
	}
	f := Frame{
		Event: s.event,
		Data:  bytes.Join(s.data, []byte("\n")),
	}
	s.event = ""
	s.data = s.data[:0]
	s.hasData = false
	return f, true
}

// Body collects an entire response body and emits it as a single frame
// on Flush. It is the degenerate single-chunk case of EventStream.
type Body struct {
	buf bytes.Buffer
}

// NewBody creates an empty whole-body framer.
func NewBody() *Body {
	return &Body{}
}

// Feed implements Framer. It never completes a frame.
func (b *Body) Feed(p []byte) []Frame {
	b.buf.Write(p)
	return nil
}

// Flush implements Framer.
func (b *Body) Flush() []Frame {
	data := bytes.TrimSpace(b.buf.Bytes())
	if len(data) == 0 {
		return nil
	}
	f := Frame{Data: bytes.Clone(data)}
	b.buf.Reset()
	return []Frame{f}
}
