package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/iamgilwell/proctopo/internal/config"
	"github.com/iamgilwell/proctopo/internal/notify"
	"github.com/iamgilwell/proctopo/internal/server"
)

var refreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Ask the running instance to refresh",
	RunE:  runRefresh,
}

func runRefresh(cmd *cobra.Command, args []string) error {
	client, err := server.Dial(config.Global.Server.InfoFile)
	if err != nil {
		return err
	}
	if err := client.Notify(cmd.Context(), notify.CmdRefresh); err != nil {
		return err
	}
	fmt.Printf("Refresh requested from %s (PID: %d)\n", client.Info().Name, client.Info().PID)
	return nil
}
