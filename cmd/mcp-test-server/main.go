// Command mcp-test-server runs a small MCP server for trying out strom's
// automatic function calling against MCP tools. It offers "get_weather",
// "get_time" and "echo" over streamable HTTP at /mcp.
//
// Configuration:
//
//	MCP_PORT - Listen port (default: 8081)
//
// Point strom at it with:
//
//	STROM_MCP_SERVERS='[{"name":"test","transport":"streamable-http","url":"http://localhost:8081/mcp"}]'
package main

import (
	"context"
	"fmt"
	"hash/fnv"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

type weatherInput struct {
	City string `json:"city" jsonschema:"the city to report on"`
}

type echoInput struct {
	Message string `json:"message" jsonschema:"the message to echo back"`
}

var conditions = []string{"sunny", "cloudy", "rainy", "windy", "foggy"}

// weatherFor derives a stable report from the city name.
func weatherFor(city string) string {
	h := fnv.New32a()
	h.Write([]byte(city))
	n := h.Sum32()
	return fmt.Sprintf("%s: %s, %d°C", city, conditions[n%uint32(len(conditions))], 5+int(n%25))
}

func textResult(format string, args ...any) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: fmt.Sprintf(format, args...)}},
	}
}

func newServer() *mcp.Server {
	server := mcp.NewServer(&mcp.Implementation{Name: "strom-test-mcp", Version: "v1.0.0"}, nil)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "get_weather",
		Description: "Current weather for a city",
	}, func(_ context.Context, _ *mcp.CallToolRequest, in weatherInput) (*mcp.CallToolResult, any, error) {
		if in.City == "" {
			return nil, nil, fmt.Errorf("city is required")
		}
		return textResult("%s", weatherFor(in.City)), nil, nil
	})

	mcp.AddTool(server, &mcp.Tool{
		Name:        "get_time",
		Description: "Returns the current UTC time",
	}, func(_ context.Context, _ *mcp.CallToolRequest, _ struct{}) (*mcp.CallToolResult, any, error) {
		return textResult("Current time: %s", time.Now().UTC().Format(time.RFC3339)), nil, nil
	})

	mcp.AddTool(server, &mcp.Tool{
		Name:        "echo",
		Description: "Echoes the provided message back",
	}, func(_ context.Context, _ *mcp.CallToolRequest, in echoInput) (*mcp.CallToolResult, any, error) {
		return textResult("Echo: %s", in.Message), nil, nil
	})

	return server
}

func main() {
	port := os.Getenv("MCP_PORT")
	if port == "" {
		port = "8081"
	}

	server := newServer()
	mux := http.NewServeMux()
	mux.Handle("/mcp", mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server { return server }, nil))
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok\n"))
	})

	srv := &http.Server{Addr: ":" + port, Handler: mux}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		slog.Info("MCP test server starting", "port", port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("MCP test server failed", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	srv.Shutdown(shutdownCtx)
}
