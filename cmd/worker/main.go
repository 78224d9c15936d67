// The worker binary drains post-payment side effects: preview
// materialization, confirmation emails and tracking emails. It can run as a
// long-lived poller or, with -once, process a single batch and exit (for
// cron-style deployments).
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/printforge/server/internal/app"
	"github.com/printforge/server/internal/shared/config"
)

func main() {
	once := flag.Bool("once", false, "process one batch and exit")
	interval := flag.Duration("interval", 30*time.Second, "poll interval")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	application, err := app.New(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize application: %v", err)
	}
	defer application.Stop()

	if *once {
		n := application.Worker().RunBatch(context.Background())
		log.Printf("Processed %d orders", n)
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit
		log.Println("Shutting down worker...")
		cancel()
	}()

	log.Printf("Starting worker, polling every %s", *interval)
	application.Worker().Run(ctx, *interval)
	log.Println("Worker exited")
}
