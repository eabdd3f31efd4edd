package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	infraconfig "github.com/felixgeelhaar/heapscope/infrastructure/config"
	"github.com/felixgeelhaar/heapscope/infrastructure/logging"
	api "github.com/felixgeelhaar/heapscope/interfaces/api"
)

// shutdownTimeout bounds the final flush and transport teardown.
const shutdownTimeout = 10 * time.Second

// serveOptions holds options for the serve command.
type serveOptions struct {
	connectionOptions
	profile  bool
	watch    bool
	duration time.Duration
}

// newServeCmd creates the serve command.
func (a *App) newServeCmd() *cobra.Command {
	opts := &serveOptions{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run an agent in this process until interrupted",
		Long: `Run a heapscope agent inside the heapscope process itself. This is
useful for trying clients against a live agent without embedding it.

Examples:
  # Serve on the default ports 5555 (publish) and 5556 (request)
  heapscope serve

  # Serve with allocation tracing on and reload the log level on change
  heapscope serve -c heapscope.yaml --profile --watch

  # Serve over Redis
  heapscope serve --transport redis --redis-addr localhost:6379`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.serve(cmd.Context(), opts)
		},
	}

	opts.register(cmd)
	cmd.Flags().BoolVar(&opts.profile, "profile", false, "Enable allocation tracing on start")
	cmd.Flags().BoolVar(&opts.watch, "watch", false, "Reload the log level when the config file changes")
	cmd.Flags().DurationVar(&opts.duration, "duration", 0, "Stop after this long (0 = until interrupted)")

	return cmd
}

// serve starts the agent and blocks until ctx is done or the duration
// elapses.
func (a *App) serve(ctx context.Context, opts *serveOptions) (err error) {
	cfg, err := opts.load()
	if err != nil {
		return err
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: a.stderr,
	})

	if err := api.Configure(ctx, cfg); err != nil {
		return fmt.Errorf("configure agent: %w", err)
	}

	start := api.StartServer
	if opts.profile || cfg.Profiling.EnableOnStart {
		start = api.StartProfiling
	}
	if err := start(ctx, api.Ports{}); err != nil {
		return fmt.Errorf("start agent: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		if shutdownErr := api.Shutdown(shutdownCtx); shutdownErr != nil && err == nil {
			err = fmt.Errorf("shutdown: %w", shutdownErr)
		}
	}()

	if opts.watch && opts.configPath != "" {
		stop, err := watchConfig(ctx, opts.configPath)
		if err != nil {
			return err
		}
		defer stop()
	}

	endpoints := api.Endpoints(cfg, api.Ports{})
	fmt.Fprintf(a.stdout, "heapscope agent %q serving over %s\n", cfg.Name, cfg.Transport.Kind)
	fmt.Fprintf(a.stdout, "  Publish: %s\n", endpoints.Publish)
	fmt.Fprintf(a.stdout, "  Request: %s\n", endpoints.Request)

	if opts.duration > 0 {
		select {
		case <-ctx.Done():
		case <-time.After(opts.duration):
		}
	} else {
		<-ctx.Done()
	}
	return nil
}

// watchConfig reloads the log level whenever path changes. The returned
// function stops the watcher and waits for it.
func watchConfig(ctx context.Context, path string) (func(), error) {
	w, err := infraconfig.NewWatcher(path, infraconfig.NewLoader(), infraconfig.ApplyLogLevel)
	if err != nil {
		return nil, fmt.Errorf("watch config: %w", err)
	}

	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := w.Run(ctx); err != nil {
			logging.Warn().
				Add(logging.Component("cli")).
				Add(logging.ErrorField(err)).
				Msg("config watcher stopped")
		}
	}()

	return func() {
		cancel()
		<-done
		_ = w.Close()
	}, nil
}
