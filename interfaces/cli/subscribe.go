package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	api "github.com/felixgeelhaar/heapscope/interfaces/api"
)

// subscribeOptions holds options for the subscribe command.
type subscribeOptions struct {
	connectionOptions
	event   string
	count   int
	timeout time.Duration
}

// newSubscribeCmd creates the subscribe command.
func (a *App) newSubscribeCmd() *cobra.Command {
	opts := &subscribeOptions{}

	cmd := &cobra.Command{
		Use:   "subscribe",
		Short: "Print events published by a running agent",
		Long: `Connect to a running agent's publish endpoint and print each event as
one JSON line.

Examples:
  # Print everything until interrupted
  heapscope subscribe

  # Print the next three gc_stats samples
  heapscope subscribe --event gc_stats --count 3`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.subscribe(cmd.Context(), opts)
		},
	}

	opts.register(cmd)
	cmd.Flags().StringVar(&opts.event, "event", "", "Only print events with this name")
	cmd.Flags().IntVar(&opts.count, "count", 0, "Stop after this many events (0 = unlimited)")
	cmd.Flags().DurationVar(&opts.timeout, "timeout", 5*time.Second, "Connection timeout")

	return cmd
}

func (a *App) subscribe(ctx context.Context, opts *subscribeOptions) error {
	cfg, err := opts.load()
	if err != nil {
		return err
	}

	client := api.NewClient(cfg, api.Ports{}, opts.timeout)
	defer client.Close()

	enc := json.NewEncoder(a.stdout)
	seen := 0
	err = client.Subscribe(ctx, func(env api.Envelope) error {
		if opts.event != "" && env.Event != opts.event {
			return nil
		}
		if err := enc.Encode(env); err != nil {
			return err
		}
		seen++
		if opts.count > 0 && seen >= opts.count {
			return api.ErrStopSubscription
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}
	return nil
}
