package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/heapscope/domain/agent"
	api "github.com/felixgeelhaar/heapscope/interfaces/api"
)

// sendOptions holds options for the send command.
type sendOptions struct {
	connectionOptions
	timeout time.Duration
}

// newSendCmd creates the send command.
func (a *App) newSendCmd() *cobra.Command {
	opts := &sendOptions{}

	cmd := &cobra.Command{
		Use:   "send <command>",
		Short: "Send a command to a running agent",
		Long: `Send one command token to a running agent's request endpoint.

Commands:
  start_memory_profile   enable allocation tracing
  stop_memory_profile    disable allocation tracing
  trigger_gc             run a garbage collection
  objectspace_snapshot   publish a heap profile

Examples:
  heapscope send trigger_gc
  heapscope send objectspace_snapshot --host 10.0.0.5 --request-port 6000`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.send(cmd.Context(), opts, agent.ParseCommand(args[0]))
		},
	}

	opts.register(cmd)
	cmd.Flags().DurationVar(&opts.timeout, "timeout", 5*time.Second, "Connection and reply timeout")

	return cmd
}

func (a *App) send(ctx context.Context, opts *sendOptions, cmd agent.Command) error {
	if cmd.IsNone() {
		return fmt.Errorf("command is empty")
	}
	if !cmd.IsKnown() {
		fmt.Fprintf(a.stderr, "warning: %q is not a known command; the agent will ignore it\n", cmd)
	}

	cfg, err := opts.load()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, opts.timeout)
	defer cancel()

	client := api.NewClient(cfg, api.Ports{}, opts.timeout)
	defer client.Close()

	reply, err := client.SendCommand(ctx, cmd)
	if err != nil {
		return fmt.Errorf("send %s: %w", cmd, err)
	}
	fmt.Fprintf(a.stdout, "%s: %s\n", cmd, reply)
	return nil
}
