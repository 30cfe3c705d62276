package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/iamgilwell/proctopo/internal/config"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the engine and HTTP API without a UI",
	Long:  `Runs the engine headless with its refresh sources and the HTTP API until SIGINT or SIGTERM.`,
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := config.Global
	cfg.Server.Enabled = true

	rt, err := newRuntime(cfg, true)
	if err != nil {
		return err
	}
	defer rt.close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	if err := rt.start(ctx, g); err != nil {
		stop()
		_ = g.Wait()
		return err
	}

	rt.logger.Info("proctopo serving", "name", cfg.Server.Name, "info_file", cfg.Server.InfoFile)
	err = ignoreCanceled(g.Wait())
	rt.logger.Info("shutting down")
	return err
}
