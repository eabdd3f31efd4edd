package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	infraconfig "github.com/felixgeelhaar/heapscope/infrastructure/config"
)

// validateOptions holds options for the validate command.
type validateOptions struct {
	configPath string
	strict     bool
}

// newValidateCmd creates the validate command.
func (a *App) newValidateCmd() *cobra.Command {
	opts := &validateOptions{}

	cmd := &cobra.Command{
		Use:   "validate [config]",
		Short: "Validate a configuration file",
		Long: `Validate an agent configuration file for correctness.

This command checks:
  - File format (YAML or JSON)
  - Transport kind, ports and Redis keys
  - Schedule intervals and buffer sizes
  - Logging and tracing settings
  - Environment variable references (in strict mode)

Examples:
  # Validate a configuration file
  heapscope validate heapscope.yaml

  # Strict validation (fail on missing env vars)
  heapscope validate -c heapscope.yaml --strict`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) > 0 {
				opts.configPath = args[0]
			}
			return a.validateConfig(opts)
		},
	}

	cmd.Flags().StringVarP(&opts.configPath, "config", "c", "", "Path to configuration file")
	cmd.Flags().BoolVar(&opts.strict, "strict", false, "Enable strict validation (fail on missing env vars)")

	return cmd
}

// validateConfig validates the configuration file.
func (a *App) validateConfig(opts *validateOptions) error {
	if opts.configPath == "" {
		return fmt.Errorf("configuration file path is required")
	}

	loader := infraconfig.NewLoaderWithOptions(
		infraconfig.WithValidation(true),
		infraconfig.WithStrictEnv(opts.strict),
	)
	cfg, err := loader.LoadFile(opts.configPath)
	if err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	fmt.Fprintf(a.stdout, "✓ Configuration is valid\n")
	fmt.Fprintf(a.stdout, "  Name: %s\n", cfg.Name)

	fmt.Fprintf(a.stdout, "\nConfiguration summary:\n")
	fmt.Fprintf(a.stdout, "  Transport: %s\n", cfg.Transport.Kind)
	fmt.Fprintf(a.stdout, "  Publish endpoint: %s\n", cfg.Transport.PublishEndpoint())
	fmt.Fprintf(a.stdout, "  Request endpoint: %s\n", cfg.Transport.RequestEndpoint())
	fmt.Fprintf(a.stdout, "  Tick interval: %s\n", cfg.Schedule.TickInterval.Duration())
	fmt.Fprintf(a.stdout, "  Stats interval: %s\n", cfg.Schedule.StatsInterval.Duration())
	fmt.Fprintf(a.stdout, "  Flush interval: %s\n", cfg.Schedule.FlushInterval.Duration())
	fmt.Fprintf(a.stdout, "  Outbound buffer: %d\n", cfg.Outbound.BufferSize)
	if cfg.Profiling.EnableOnStart {
		fmt.Fprintf(a.stdout, "  Profiling: enabled on start\n")
	}
	if cfg.Observability.Tracing.Exporter != "noop" {
		fmt.Fprintf(a.stdout, "  Tracing: %s %s\n", cfg.Observability.Tracing.Exporter, cfg.Observability.Tracing.Endpoint)
	}

	return nil
}
