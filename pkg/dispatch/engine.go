package dispatch

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"

	"github.com/rhuss/strom/pkg/api"
	"github.com/rhuss/strom/pkg/buffer"
	"github.com/rhuss/strom/pkg/observability"
	"github.com/rhuss/strom/pkg/provider"
	"github.com/rhuss/strom/pkg/provider/sse"
)

// ErrClosed is returned by Submit after Close.
var ErrClosed = errors.New("dispatch: engine closed")

// maxErrorBody limits how much of a non-2xx body is read for the message.
const maxErrorBody = 64 << 10

// Engine owns network I/O for all provider requests.
type Engine struct {
	cfg      Config
	adapters *provider.Registry
	sizer    *buffer.Sizer
	client   *http.Client
	slots    *semaphore.Weighted
	limiter  *rate.Limiter
	inflight *inFlightRegistry
	outcomes outcomes

	queue    chan *job
	active   atomic.Int64
	pending  atomic.Int64
	ctx      context.Context
	shutdown context.CancelFunc

	mu     sync.RWMutex
	closed bool

	dispatcherDone chan struct{}
	workers        sync.WaitGroup
}

// Job states. A job leaves jobQueued exactly once: to jobRunning when the
// dispatcher gives it a slot, or to jobAbandoned when its context ends
// first.
const (
	jobQueued int32 = iota
	jobRunning
	jobAbandoned
)

// job is one submitted request travelling from the queue to a worker.
type job struct {
	req     *provider.Request
	decoder provider.Decoder
	ctx     context.Context
	cancel  context.CancelFunc
	handle  *Handle
	state   atomic.Int32
	holding bool
}

// New creates an engine and starts its dispatcher. adapters supplies the
// decoder for each request's provider tag; sizer supplies buffer sizes
// and may be nil for the built-in defaults.
func New(cfg Config, adapters *provider.Registry, sizer *buffer.Sizer) *Engine {
	cfg = cfg.withDefaults()
	if sizer == nil {
		sizer = buffer.NewSizer(buffer.DefaultConfig(), nil)
	}

	ctx, cancel := context.WithCancel(context.Background())
	e := &Engine{
		cfg:            cfg,
		adapters:       adapters,
		sizer:          sizer,
		client:         newHTTPClient(cfg),
		slots:          semaphore.NewWeighted(int64(cfg.MaxConcurrent)),
		inflight:       newInFlightRegistry(),
		queue:          make(chan *job, cfg.QueueSize),
		ctx:            ctx,
		shutdown:       cancel,
		dispatcherDone: make(chan struct{}),
	}
	if cfg.RateLimit > 0 {
		e.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.RateBurst)
	}

	go e.dispatch()
	return e
}

// Submit enqueues req and returns its handle. The request is bound to
// ctx: cancelling ctx cancels the request. Submit blocks while the queue
// is full.
func (e *Engine) Submit(ctx context.Context, req *provider.Request) (*Handle, error) {
	if req == nil {
		return nil, api.NewInvalidRequestError("request", "request is required")
	}
	if req.ID == "" {
		return nil, api.NewInvalidRequestError("id", "request id is required")
	}
	adapter, err := e.adapters.Get(req.Provider)
	if err != nil {
		return nil, api.NewInvalidRequestError("provider", err.Error())
	}

	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.closed {
		return nil, ErrClosed
	}

	jctx, cancel := context.WithCancel(ctx)
	stop := context.AfterFunc(e.ctx, cancel)
	timeout := req.Timeout
	if timeout <= 0 {
		timeout = e.cfg.RequestTimeout
	}
	cancelAll := func() {
		stop()
		cancel()
	}
	if timeout > 0 {
		var cancelTimeout context.CancelFunc
		jctx, cancelTimeout = context.WithTimeout(jctx, timeout)
		cancelAll = func() {
			stop()
			cancelTimeout()
			cancel()
		}
	}

	if !e.inflight.register(req.ID, cancelAll) {
		cancelAll()
		return nil, api.NewInvalidRequestError("id", "request "+req.ID+" is already in flight")
	}

	j := &job{
		req:     req,
		decoder: adapter.Decoder(),
		ctx:     jctx,
		cancel:  cancelAll,
		handle:  newHandle(req.ID, e.cfg.DeltaBuffer, cancelAll),
	}

	e.pending.Add(1)
	observability.DispatchQueued.Inc()
	select {
	case e.queue <- j:
		// A queued request ends as soon as its own deadline or cancel
		// fires, even while other requests hold every slot.
		context.AfterFunc(jctx, func() { e.abandon(j, jctx.Err()) })
		return j.handle, nil
	case <-jctx.Done():
		e.pending.Add(-1)
		observability.DispatchQueued.Dec()
		e.inflight.remove(req.ID)
		cancelAll()
		if errors.Is(e.ctx.Err(), context.Canceled) {
			return nil, ErrClosed
		}
		return nil, provider.MapNetworkError(jctx, jctx.Err())
	}
}

// Cancel cancels the request with the given ID. It reports whether the
// request was still in flight.
func (e *Engine) Cancel(id string) bool {
	return e.inflight.cancel(id)
}

// InFlight returns the number of requests holding a slot.
func (e *Engine) InFlight() int {
	return int(e.active.Load())
}

// Queued returns the number of submitted requests waiting for a slot.
func (e *Engine) Queued() int {
	return int(e.pending.Load())
}

// Idle reports whether no request is queued or running.
func (e *Engine) Idle() bool {
	return e.active.Load() == 0 && e.pending.Load() == 0
}

// Sizer returns the buffer sizer used for new connections.
func (e *Engine) Sizer() *buffer.Sizer {
	return e.sizer
}

// Close stops accepting submissions, cancels queued and running requests
// and waits for every worker to finish.
func (e *Engine) Close() error {
	e.shutdown()

	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.closed = true
	close(e.queue)
	e.mu.Unlock()

	<-e.dispatcherDone
	e.workers.Wait()
	e.client.CloseIdleConnections()
	return nil
}

// dispatch takes jobs in FIFO order and starts each one as soon as a
// slot (and the rate limiter) allows.
func (e *Engine) dispatch() {
	defer close(e.dispatcherDone)

	for j := range e.queue {
		if err := e.admit(j); err != nil {
			e.abandon(j, err)
			<-j.handle.Done()
			continue
		}
		if !j.state.CompareAndSwap(jobQueued, jobRunning) {
			// Abandoned while waiting for the slot.
			e.slots.Release(1)
			<-j.handle.Done()
			continue
		}
		e.leaveQueue()

		j.holding = true
		e.active.Add(1)
		observability.DispatchInFlight.Inc()

		e.workers.Add(1)
		go func() {
			defer e.workers.Done()
			e.finish(j, e.run(j))
		}()
	}
}

// admit waits for the rate limiter and a slot. On success the caller
// holds one slot.
func (e *Engine) admit(j *job) error {
	if e.limiter != nil {
		if err := e.limiter.Wait(j.ctx); err != nil {
			return err
		}
	}
	// A request cancelled while queued never takes a slot.
	if err := j.ctx.Err(); err != nil {
		return err
	}
	if err := e.slots.Acquire(j.ctx, 1); err != nil {
		return err
	}
	if err := j.ctx.Err(); err != nil {
		e.slots.Release(1)
		return err
	}
	return nil
}

// abandon ends a job that never started with the error delta for err. It
// does nothing once the job is running or already abandoned.
func (e *Engine) abandon(j *job, err error) {
	if !j.state.CompareAndSwap(jobQueued, jobAbandoned) {
		return
	}
	e.leaveQueue()
	e.finish(j, provider.ErrorDelta(provider.MapNetworkError(j.ctx, err)))
}

func (e *Engine) leaveQueue() {
	e.pending.Add(-1)
	observability.DispatchQueued.Dec()
}

// finish releases the job's slot, then publishes its terminal delta.
func (e *Engine) finish(j *job, tail provider.Delta) {
	if j.holding {
		j.holding = false
		e.active.Add(-1)
		observability.DispatchInFlight.Dec()
		e.slots.Release(1)
	}
	e.inflight.remove(j.req.ID)
	j.cancel()

	failed := tail.Kind == provider.DeltaError
	e.outcomes.record(failed)
	if failed {
		slog.Debug("request failed",
			"request_id", j.req.ID,
			"provider", string(j.req.Provider),
			"error", tail.Err,
		)
	}
	j.handle.finish(tail)
}

// run performs the HTTP exchange for j and returns its terminal delta.
// Non-terminal deltas are sent on the handle as they are decoded.
func (e *Engine) run(j *job) provider.Delta {
	req := j.req
	ctx := observability.WithProvider(j.ctx, string(req.Provider))

	state := e.sizer.NewState(e.sizer.Descriptor(buffer.Features{
		Concurrent:    e.InFlight(),
		ExpectedBytes: req.SizeHint,
		ErrorRate:     e.outcomes.rate(),
	}))

	method := req.Method
	if method == "" {
		method = http.MethodPost
	}
	httpReq, err := http.NewRequestWithContext(ctx, method, req.Endpoint, bytes.NewReader(req.Body))
	if err != nil {
		return provider.ErrorDelta(api.NewInvalidRequestError("endpoint", err.Error()))
	}
	httpReq.Header = req.Header.Clone()
	if httpReq.Header == nil {
		httpReq.Header = make(http.Header)
	}

	resp, err := e.client.Do(httpReq)
	if err != nil {
		return provider.ErrorDelta(provider.MapNetworkError(ctx, err))
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return provider.ErrorDelta(provider.MapHTTPError(resp.StatusCode, body))
	}

	s := &stream{
		ctx:     ctx,
		handle:  j.handle,
		decoder: j.decoder,
		framer:  framerFor(req, resp),
	}

	buf := make([]byte, state.Size())
	for !s.ended {
		n, rerr := resp.Body.Read(buf)
		if n > 0 {
			observability.BufferChunkBytes.Observe(float64(n))
			if err := s.feed(buf[:n]); err != nil {
				return provider.ErrorDelta(err)
			}
			if size := state.Adjust(n); size != len(buf) {
				direction := "grow"
				if size < len(buf) {
					direction = "shrink"
				}
				observability.BufferResizes.WithLabelValues(direction).Inc()
				buf = make([]byte, size)
			}
		}
		if rerr == io.EOF {
			if err := s.flush(); err != nil {
				return provider.ErrorDelta(err)
			}
			break
		}
		if rerr != nil {
			return provider.ErrorDelta(provider.MapNetworkError(ctx, rerr))
		}
	}

	if s.failure != nil {
		return *s.failure
	}
	if ctx.Err() != nil {
		return provider.ErrorDelta(provider.MapNetworkError(ctx, ctx.Err()))
	}
	return s.completion(req.Provider)
}

// framerFor picks the event-stream framer for streamed responses and the
// whole-body framer otherwise. A streamed request answered with plain
// JSON is framed as a body.
func framerFor(req *provider.Request, resp *http.Response) sse.Framer {
	ct := resp.Header.Get("Content-Type")
	if req.Stream && !strings.HasPrefix(ct, "application/json") {
		return sse.NewEventStream()
	}
	return sse.NewBody()
}
