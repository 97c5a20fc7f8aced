package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/dmitrijs2005/tripdesk/internal/buildinfo"
	"github.com/dmitrijs2005/tripdesk/internal/client/cli"
	"github.com/dmitrijs2005/tripdesk/internal/client/config"
	"github.com/dmitrijs2005/tripdesk/internal/logging"
)

func main() {
	buildinfo.PrintBuildData(os.Stdout)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := config.LoadConfig()
	logger := logging.NewDefault(slog.LevelInfo)

	app := cli.NewApp(cfg, logger)
	defer func() {
		if err := app.Close(); err != nil {
			log.Printf("close: %v", err)
		}
	}()

	app.Start(ctx)

	root := cli.NewRootCmd(app)
	if err := root.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}
