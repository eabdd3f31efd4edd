// Package main runs a batch job with an agent attached only for the
// duration of the job.
package main

import (
	"context"
	"log"
	"strings"
	"time"

	"github.com/felixgeelhaar/heapscope/domain/config"
	"github.com/felixgeelhaar/heapscope/infrastructure/logging"
	"github.com/felixgeelhaar/heapscope/interfaces/api"
)

func main() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	logging.Init(logging.Config{Level: "debug", Format: "console"})

	cfg := config.Default()
	cfg.Name = "batch-job"
	cfg.Schedule.StatsInterval = config.Duration(time.Second)
	cfg.Observability.Tracing.Exporter = "stdout"
	if err := api.Configure(ctx, cfg); err != nil {
		log.Fatalf("configure: %v", err)
	}
	defer func() { _ = api.Shutdown(context.Background()) }()

	err := api.Run(ctx, api.Ports{Publish: 7000, Request: 7001}, true, func(ctx context.Context) error {
		var sb strings.Builder
		for i := 0; i < 50; i++ {
			sb.WriteString(strings.Repeat("x", 1<<16))
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(100 * time.Millisecond):
			}
		}
		log.Printf("built %d bytes", sb.Len())
		return nil
	})
	if err != nil {
		log.Fatalf("job: %v", err)
	}
}
