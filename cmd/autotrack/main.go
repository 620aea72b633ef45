package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/autotrack/autotrack/internal/app"
	"github.com/autotrack/autotrack/internal/config"
)

func main() {
	configPath := flag.String("config", "", "path to a config file (optional, env vars apply regardless)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}

	ctx := context.Background()
	a, err := app.Build(ctx, cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "startup error: %v\n", err)
		os.Exit(1)
	}

	if err := a.Run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "runtime error: %v\n", err)
		os.Exit(1)
	}
}
