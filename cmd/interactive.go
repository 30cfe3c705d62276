package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/iamgilwell/proctopo/internal/config"
	"github.com/iamgilwell/proctopo/internal/ui"
)

var interactiveCmd = &cobra.Command{
	Use:   "interactive",
	Short: "Launch the interactive TUI",
	Long: `Launches the terminal UI with the process table, the process tree and the
graph detail of the selection, all kept in sync. The HTTP server runs
alongside when server.enabled is set.`,
	RunE: runInteractive,
}

func runInteractive(cmd *cobra.Command, args []string) error {
	// Console logging would draw over the TUI.
	rt, err := newRuntime(config.Global, false)
	if err != nil {
		return err
	}
	defer rt.close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	app := ui.NewApp(rt.eng, rt.bus, rt.controller.State, rt.logger.Logger)
	g.Go(func() error {
		defer stop()
		return app.Run(ctx)
	})
	if err := rt.start(ctx, g); err != nil {
		stop()
		_ = g.Wait()
		return err
	}

	return ignoreCanceled(g.Wait())
}
