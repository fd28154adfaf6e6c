package dispatch

import (
	"context"

	"github.com/rhuss/strom/pkg/api"
	"github.com/rhuss/strom/pkg/observability"
	"github.com/rhuss/strom/pkg/provider"
	"github.com/rhuss/strom/pkg/provider/sse"
)

// stream turns response bytes into deltas for one request. Completion
// deltas are held back and merged so the handle sees a single completion
// as the terminal delta, whatever order the provider sent finish reason,
// usage and end sentinel in.
type stream struct {
	ctx     context.Context
	handle  *Handle
	decoder provider.Decoder
	framer  sse.Framer

	done    *provider.Delta
	failure *provider.Delta
	ended   bool
}

func (s *stream) feed(p []byte) error {
	return s.emit(s.framer.Feed(p))
}

func (s *stream) flush() error {
	return s.emit(s.framer.Flush())
}

func (s *stream) emit(frames []sse.Frame) error {
	for _, f := range frames {
		for _, d := range s.decoder.Decode(f) {
			switch d.Kind {
			case provider.DeltaCompletion:
				s.merge(d)
				if d.End {
					s.ended = true
					return nil
				}
			case provider.DeltaError:
				s.failure = &d
				s.ended = true
				return nil
			default:
				select {
				case s.handle.deltas <- d:
				case <-s.ctx.Done():
					return provider.MapNetworkError(s.ctx, s.ctx.Err())
				}
			}
		}
	}
	return nil
}

// merge keeps the first non-empty finish reason. Usage is combined per
// field so a later report that omits input tokens keeps the earlier count.
func (s *stream) merge(d provider.Delta) {
	if s.done == nil {
		s.done = &provider.Delta{Kind: provider.DeltaCompletion}
	}
	if s.done.Reason == "" {
		s.done.Reason = d.Reason
	}
	if d.Usage != nil {
		s.done.Usage = mergeUsage(s.done.Usage, d.Usage)
	}
}

// mergeUsage overlays the non-zero counts of next onto prev.
func mergeUsage(prev, next *api.Usage) *api.Usage {
	if prev == nil {
		u := *next
		return &u
	}
	u := *prev
	if next.InputTokens > 0 {
		u.InputTokens = next.InputTokens
	}
	if next.OutputTokens > 0 {
		u.OutputTokens = next.OutputTokens
	}
	u.TotalTokens = max(next.TotalTokens, u.InputTokens+u.OutputTokens)
	return &u
}

// completion returns the terminal completion, synthesizing a stop when
// the provider ended the stream without one.
func (s *stream) completion(tag provider.Tag) provider.Delta {
	d := provider.CompletionDelta(provider.FinishStop)
	if s.done != nil {
		d.Usage = s.done.Usage
		if s.done.Reason != "" {
			d.Reason = s.done.Reason
		}
	}
	recordUsage(tag, d.Usage)
	return d
}

func recordUsage(tag provider.Tag, u *api.Usage) {
	if u == nil {
		return
	}
	observability.ProviderTokensTotal.WithLabelValues(string(tag), "input").Add(float64(u.InputTokens))
	observability.ProviderTokensTotal.WithLabelValues(string(tag), "output").Add(float64(u.OutputTokens))
}
