// Package main embeds a heapscope agent in a small allocating program.
//
// Run it, then in another terminal:
//
//	heapscope subscribe --event gc_stats
//	heapscope send objectspace_snapshot
package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/felixgeelhaar/heapscope/interfaces/api"
)

func main() {
	ctx := context.Background()

	if err := api.StartProfiling(ctx, api.Ports{}); err != nil {
		log.Fatalf("start agent: %v", err)
	}
	defer func() {
		if err := api.Shutdown(context.Background()); err != nil {
			log.Printf("shutdown: %v", err)
		}
	}()

	// Exit hooks stop the agent when the process is interrupted.
	done := make(chan struct{})
	go func() {
		defer close(done)
		sig := api.Hooks().Watch(ctx)
		fmt.Printf("received %v, stopping\n", sig)
	}()

	var retained [][]byte
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			retained = append(retained, make([]byte, 64<<10))
			if len(retained) > 256 {
				retained = retained[128:]
			}
		}
	}
}
