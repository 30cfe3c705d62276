package cmd

import (
	"fmt"
	"os"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/iamgilwell/proctopo/internal/config"
	"github.com/iamgilwell/proctopo/internal/server"
)

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the running instance",
	RunE:  runStop,
}

func runStop(cmd *cobra.Command, args []string) error {
	infoFile := config.Global.Server.InfoFile

	info, err := server.ReadInfo(infoFile)
	if err != nil {
		return fmt.Errorf("proctopo is not running: %w", err)
	}

	process, err := os.FindProcess(info.PID)
	if err != nil {
		return fmt.Errorf("finding process %d: %w", info.PID, err)
	}

	if err := process.Signal(syscall.SIGTERM); err != nil {
		// Process might already be dead
		server.RemoveInfo(infoFile)
		return fmt.Errorf("sending SIGTERM to PID %d: %w (info file cleaned up)", info.PID, err)
	}

	server.RemoveInfo(infoFile)
	fmt.Printf("proctopo stopped (PID: %d)\n", info.PID)
	return nil
}
