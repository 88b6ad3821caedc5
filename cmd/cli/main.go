package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"timer-tracker/internal/client"
	"timer-tracker/internal/client/cli"
	"timer-tracker/internal/config"
)

func main() {
	logger := logrus.New()
	logger.SetOutput(os.Stderr)
	logger.SetLevel(logrus.WarnLevel)

	cfg, err := config.LoadClient()
	if err != nil {
		logger.Fatalf("load config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app := cli.NewApp(
		client.NewAPIClient(cfg.Server.URL, nil),
		client.NewSessionStore(cfg.Session.File),
		os.Stdin,
		os.Stdout,
		logger,
	)

	if err := app.Run(ctx, os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		if errors.Is(err, cli.ErrUsage) {
			app.Usage()
		}
		os.Exit(1)
	}
}
