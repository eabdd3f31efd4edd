package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/heapscope/domain/config"
	infraconfig "github.com/felixgeelhaar/heapscope/infrastructure/config"
)

// connectionOptions are shared by commands that talk to an agent.
type connectionOptions struct {
	configPath string
	transport  string
	host       string
	pubPort    int
	reqPort    int
	redisAddr  string
}

func (o *connectionOptions) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&o.configPath, "config", "c", "", "Path to configuration file")
	cmd.Flags().StringVar(&o.transport, "transport", "", "Transport kind: websocket or redis (overrides config)")
	cmd.Flags().StringVar(&o.host, "host", "", "Agent host (overrides config)")
	cmd.Flags().IntVar(&o.pubPort, "pub-port", 0, "Publish port (overrides config)")
	cmd.Flags().IntVar(&o.reqPort, "request-port", 0, "Request port (overrides config)")
	cmd.Flags().StringVar(&o.redisAddr, "redis-addr", "", "Redis address (overrides config)")
}

// load reads the configuration file, if any, and applies flag overrides.
func (o *connectionOptions) load() (config.AgentConfig, error) {
	cfg := config.Default()
	if o.configPath != "" {
		loaded, err := infraconfig.NewLoader().LoadFile(o.configPath)
		if err != nil {
			return cfg, fmt.Errorf("load config: %w", err)
		}
		cfg = *loaded
	}

	if o.transport != "" {
		cfg.Transport.Kind = o.transport
	}
	if o.host != "" {
		cfg.Transport.Host = o.host
	}
	if o.pubPort > 0 {
		cfg.Transport.PubPort = o.pubPort
	}
	if o.reqPort > 0 {
		cfg.Transport.RequestPort = o.reqPort
	}
	if o.redisAddr != "" {
		cfg.Transport.Redis.Address = o.redisAddr
	}

	if errs := config.NewValidator().Validate(&cfg); errs.HasErrors() {
		return cfg, fmt.Errorf("%w: %w", config.ErrValidationFailed, errs)
	}
	return cfg, nil
}
