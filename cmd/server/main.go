// Command server runs one authoritative match: it listens for two
// WebSocket peers, binds them into sessions, drives the fixed-timestep
// tick loop, and writes the replay artifact when the match ends.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"duelmatch/server/internal/app"
	"duelmatch/server/internal/config"
	"duelmatch/server/internal/kernel"
)

func main() {
	defer func() {
		if r := recover(); r != nil {
			if perr, ok := r.(*kernel.PreconditionError); ok {
				log.Fatalf("server: precondition violation: %v", perr)
			}
			panic(r)
		}
	}()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	cfg := config.FromEnv(func(format string, args ...any) {
		log.Printf(format, args...)
	})

	if err := app.Run(ctx, cfg, app.Deps{}); err != nil {
		log.Fatalf("server: %v", err)
	}
}
