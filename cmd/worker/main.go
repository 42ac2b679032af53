package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/wise-old-man/wise-old-man-sub005/app/worker"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)

	defer cancel()

	app := worker.Initialize(ctx)

	app.Start(ctx)
}
