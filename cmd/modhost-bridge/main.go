// Command modhost-bridge runs the ZeroMQ front end over a single mod-host
// instance: plugin registry, audio-system pass-through, and feedback
// event relay.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/shaban/modhost-bridge/config"
	"github.com/shaban/modhost-bridge/internal/stub"
	"github.com/shaban/modhost-bridge/logging"
	"github.com/shaban/modhost-bridge/orchestrator"
)

func main() {
	os.Exit(run())
}

func run() int {
	cfg, err := config.Load()
	if err != nil {
		log.Printf("modhost-bridge: config: %v", err)
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errs := logging.DefaultErrorHandler{}

	// NoopDiscovery/NoopAudioSystem stand in for the real external LV2
	// scanner and JACK-like audio library; wire the real implementations
	// here once available.
	o := orchestrator.New(cfg, stub.NoopDiscovery{}, stub.NoopAudioSystem{}, errs)

	if err := o.Run(ctx); err != nil {
		log.Printf("modhost-bridge: %v", err)
		return 1
	}
	return 0
}
