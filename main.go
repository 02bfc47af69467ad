package main

import (
	"context"
	"os"
	"os/signal"

	"github.com/bundlekit/passctl/cmd"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := cmd.RootCommand.ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}
