package client

import (
	"context"
	"io"
	"sync"

	"github.com/rhuss/strom/pkg/afc"
	"github.com/rhuss/strom/pkg/api"
)

type runFunc func(ctx context.Context, emit afc.EmitFunc) (*afc.Result, error)

// TextStream yields the assistant text of one call as it arrives. The
// call starts on the first Recv. A TextStream is not resumable; start a
// new call with Client.Stream instead.
//
// Recv must not be called concurrently.
type TextStream struct {
	ctx    context.Context
	cancel context.CancelFunc
	run    runFunc

	once   sync.Once
	chunks chan string
	done   chan struct{}

	// result and err are written before chunks is closed.
	result *afc.Result
	err    error
}

func newTextStream(ctx context.Context, run runFunc) *TextStream {
	ctx, cancel := context.WithCancel(ctx)
	return &TextStream{
		ctx:    ctx,
		cancel: cancel,
		run:    run,
		chunks: make(chan string),
		done:   make(chan struct{}),
	}
}

func failedStream(err error) *TextStream {
	s := newTextStream(context.Background(), nil)
	s.once.Do(func() { s.finish(nil, err) })
	return s
}

// Recv returns the next text fragment. It returns io.EOF after the last
// fragment, or the error that ended the call.
func (s *TextStream) Recv() (string, error) {
	s.once.Do(s.start)
	if text, ok := <-s.chunks; ok {
		return text, nil
	}
	<-s.done
	if s.err != nil {
		return "", s.err
	}
	return "", io.EOF
}

// Result returns the aggregated response once Recv has returned io.EOF.
// It returns nil while the call is running or if it failed.
func (s *TextStream) Result() *Response {
	select {
	case <-s.done:
	default:
		return nil
	}
	if s.result == nil || s.err != nil {
		return nil
	}
	return newResponse(s.result)
}

// Close cancels the call and waits for it to stop. Recv after Close
// returns a cancellation error unless the call had already finished.
func (s *TextStream) Close() error {
	s.cancel()
	s.once.Do(func() {
		s.finish(nil, api.NewCancelledError("stream closed before first receive"))
	})
	<-s.done
	return nil
}

func (s *TextStream) start() {
	go func() {
		res, err := s.run(s.ctx, s.emit)
		s.finish(res, err)
	}()
}

func (s *TextStream) emit(text string) error {
	select {
	case s.chunks <- text:
		return nil
	case <-s.ctx.Done():
		return api.NewCancelledError("stream closed")
	}
}

func (s *TextStream) finish(res *afc.Result, err error) {
	s.result, s.err = res, err
	close(s.chunks)
	close(s.done)
	s.cancel()
}
