package dispatch

import (
	"net"
	"net/http"
	"time"

	"github.com/rhuss/strom/pkg/observability"
)

// Config holds engine limits and HTTP transport tuning.
type Config struct {
	// MaxConcurrent is the number of requests that may hold a slot.
	MaxConcurrent int

	// QueueSize is the capacity of the submission queue. Submit blocks
	// while the queue is full.
	QueueSize int

	// RequestTimeout bounds a request from submission to its terminal
	// delta when the request carries no timeout of its own. Zero
	// disables the default deadline.
	RequestTimeout time.Duration

	// RateLimit is the number of dispatches per second, zero for
	// unlimited. RateBurst defaults to 1.
	RateLimit float64
	RateBurst int

	// DeltaBuffer is the capacity of each handle's delta channel.
	DeltaBuffer int

	// Transport tuning for the shared connection pool.
	MaxIdleConns        int
	MaxIdleConnsPerHost int
	IdleConnTimeout     time.Duration
	DialTimeout         time.Duration
	KeepAlive           time.Duration
	TLSHandshakeTimeout time.Duration
}

// DefaultConfig returns the engine defaults.
func DefaultConfig() Config {
	return Config{
		MaxConcurrent:       30,
		QueueSize:           256,
		RequestTimeout:      60 * time.Second,
		DeltaBuffer:         64,
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 30,
		IdleConnTimeout:     90 * time.Second,
		DialTimeout:         10 * time.Second,
		KeepAlive:           30 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.MaxConcurrent <= 0 {
		c.MaxConcurrent = d.MaxConcurrent
	}
	if c.QueueSize <= 0 {
		c.QueueSize = d.QueueSize
	}
	if c.RequestTimeout < 0 {
		c.RequestTimeout = 0
	}
	if c.RateBurst <= 0 {
		c.RateBurst = 1
	}
	if c.DeltaBuffer <= 0 {
		c.DeltaBuffer = d.DeltaBuffer
	}
	if c.MaxIdleConns <= 0 {
		c.MaxIdleConns = d.MaxIdleConns
	}
	if c.MaxIdleConnsPerHost <= 0 {
		c.MaxIdleConnsPerHost = c.MaxConcurrent
	}
	if c.IdleConnTimeout <= 0 {
		c.IdleConnTimeout = d.IdleConnTimeout
	}
	if c.DialTimeout <= 0 {
		c.DialTimeout = d.DialTimeout
	}
	if c.KeepAlive <= 0 {
		c.KeepAlive = d.KeepAlive
	}
	if c.TLSHandshakeTimeout <= 0 {
		c.TLSHandshakeTimeout = d.TLSHandshakeTimeout
	}
	return c
}

// newHTTPClient builds the shared, connection reusing client. It has no
// client level timeout; each request's context bounds its lifetime.
func newHTTPClient(c Config) *http.Client {
	dialer := &net.Dialer{
		Timeout:   c.DialTimeout,
		KeepAlive: c.KeepAlive,
	}
	base := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           dialer.DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          c.MaxIdleConns,
		MaxIdleConnsPerHost:   c.MaxIdleConnsPerHost,
		IdleConnTimeout:       c.IdleConnTimeout,
		TLSHandshakeTimeout:   c.TLSHandshakeTimeout,
		ExpectContinueTimeout: 1 * time.Second,
	}
	return &http.Client{
		Transport: observability.NewTransport(base),
	}
}
