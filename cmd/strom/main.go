// Command strom sends one prompt to a configured provider and prints the
// reply as it streams. Tools from configured MCP servers are offered to
// the model and executed automatically.
//
// Usage:
//
//	strom [flags] <prompt...>
//	echo "prompt" | strom [flags]
//
// Configuration is read from the YAML file given with --config (or the
// usual discovery locations), environment variables and an optional
// .env file. See package config for the layering.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/pflag"

	"github.com/rhuss/strom/pkg/api"
	"github.com/rhuss/strom/pkg/client"
	"github.com/rhuss/strom/pkg/config"
)

func main() {
	if err := run(); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		configPath string
		envFile    string
		model      string
		system     string
		logLevel   string
		noStream   bool
		showUsage  bool
	)

	flags := pflag.NewFlagSet("strom", pflag.ContinueOnError)
	flags.StringVarP(&configPath, "config", "c", "", "path to the YAML config file")
	flags.StringVar(&envFile, "env-file", ".env", "dotenv file to load before reading the environment")
	flags.StringVarP(&model, "model", "m", "", `model as "provider/model" (default: default_model from config)`)
	flags.StringVarP(&system, "system", "s", "", "system prompt")
	flags.StringVar(&logLevel, "log-level", "", "override logging.level (debug, info, warn, error)")
	flags.BoolVar(&noStream, "no-stream", false, "wait for the full reply instead of streaming")
	flags.BoolVar(&showUsage, "usage", false, "print token usage to stderr when done")
	flags.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: strom [flags] <prompt...>\n\nFlags:\n%s", flags.FlagUsages())
	}
	if err := flags.Parse(os.Args[1:]); err != nil {
		return err
	}

	// A missing .env file is fine; a malformed one is not.
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("loading %s: %w", envFile, err)
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	slog.SetDefault(slog.New(newLogHandler(cfg.Logging, os.Stderr)))

	prompt, err := readPrompt(flags.Args(), os.Stdin)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Observability.Metrics.Enabled {
		srv := startMetricsServer(cfg.Observability.Metrics)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			srv.Shutdown(shutdownCtx)
		}()
	}

	c, _, err := client.NewFromConfig(ctx, cfg)
	if err != nil {
		return fmt.Errorf("creating client: %w", err)
	}
	defer c.Close()

	var msgs []api.Message
	if system != "" {
		msgs = append(msgs, api.SystemMessage(system))
	}
	msgs = append(msgs, api.UserMessage(prompt))
	req := client.Request{Model: model, Messages: msgs}

	var resp *client.Response
	if noStream {
		if resp, err = c.Complete(ctx, req); err != nil {
			return err
		}
		fmt.Println(resp.Text)
	} else {
		if resp, err = streamTo(ctx, c, req, os.Stdout); err != nil {
			return err
		}
	}

	if len(resp.Pending) > 0 {
		slog.Warn("round limit reached with tool calls pending", "pending", len(resp.Pending))
	}
	if showUsage {
		fmt.Fprintf(os.Stderr, "rounds=%d input_tokens=%d output_tokens=%d finish=%s\n",
			resp.Rounds, resp.Usage.InputTokens, resp.Usage.OutputTokens, resp.FinishReason)
	}
	return nil
}

// streamTo prints fragments as they arrive and ends with a newline.
func streamTo(ctx context.Context, c *client.Client, req client.Request, w io.Writer) (*client.Response, error) {
	s := c.Stream(ctx, req)
	defer s.Close()
	for {
		text, err := s.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			fmt.Fprintln(w)
			return nil, err
		}
		fmt.Fprint(w, text)
	}
	fmt.Fprintln(w)
	return s.Result(), nil
}

// readPrompt joins the positional arguments, or reads stdin when there
// are none or the only argument is "-".
func readPrompt(args []string, stdin io.Reader) (string, error) {
	if len(args) > 0 && !(len(args) == 1 && args[0] == "-") {
		return strings.Join(args, " "), nil
	}
	data, err := io.ReadAll(stdin)
	if err != nil {
		return "", fmt.Errorf("reading prompt from stdin: %w", err)
	}
	prompt := strings.TrimSpace(string(data))
	if prompt == "" {
		return "", errors.New("no prompt given")
	}
	return prompt, nil
}

func newLogHandler(cfg config.LoggingConfig, w io.Writer) slog.Handler {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if cfg.Format == "json" {
		return slog.NewJSONHandler(w, opts)
	}
	return slog.NewTextHandler(w, opts)
}

func startMetricsServer(cfg config.MetricsConfig) *http.Server {
	mux := http.NewServeMux()
	mux.Handle(cfg.Path, promhttp.Handler())
	srv := &http.Server{Addr: cfg.Addr, Handler: mux}
	go func() {
		slog.Info("metrics endpoint starting", "addr", cfg.Addr, "path", cfg.Path)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("metrics endpoint failed", "error", err)
		}
	}()
	return srv
}
