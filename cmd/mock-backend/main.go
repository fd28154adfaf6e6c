// Command mock-backend runs a deterministic provider server speaking the
// OpenAI, Anthropic and Gemini wire formats, for local testing of strom.
//
// Configuration:
//
//	MOCK_PORT        - Listen port (default: 9090)
//	MOCK_CHUNK_DELAY - Delay between streamed chunks (default: 0)
//	MOCK_FAIL_FIRST  - Answer the first N completion requests with 503
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/rhuss/strom/pkg/mockbackend"
)

func main() {
	port := os.Getenv("MOCK_PORT")
	if port == "" {
		port = "9090"
	}

	var opts mockbackend.Options
	if v := os.Getenv("MOCK_CHUNK_DELAY"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			slog.Error("invalid MOCK_CHUNK_DELAY", "value", v, "error", err)
			os.Exit(1)
		}
		opts.ChunkDelay = d
	}
	if v := os.Getenv("MOCK_FAIL_FIRST"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			slog.Error("invalid MOCK_FAIL_FIRST", "value", v, "error", err)
			os.Exit(1)
		}
		opts.FailFirst = n
	}

	srv := &http.Server{Addr: ":" + port, Handler: mockbackend.New(opts).Handler()}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		slog.Info("mock backend starting", "port", port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("mock backend failed", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	slog.Info("mock backend shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	srv.Shutdown(shutdownCtx)
}
