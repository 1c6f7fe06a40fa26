package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, cleanup, err := initializeApp()
	if err != nil {
		log.Fatalf("failed to start faq search: %v", err)
	}

	err = app.Run(ctx)
	cleanup()
	if err != nil {
		log.Fatalf("application stopped with error: %v", err)
	}
}
