package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/prettyirrelevant/kizami/app/kizami"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	app := kizami.Initialize(ctx)
	app.Start(ctx)
}
