package cmd

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/iamgilwell/proctopo/internal/config"
	"github.com/iamgilwell/proctopo/internal/notification"
	"github.com/iamgilwell/proctopo/internal/server"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the running instance's status",
	RunE:  runStatus,
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg := config.Global

	fmt.Println("╔══════════════════════════════════════════╗")
	fmt.Println("║     proctopo - process topology          ║")
	fmt.Println("╚══════════════════════════════════════════╝")
	fmt.Println()

	client, err := server.Dial(cfg.Server.InfoFile)
	if errors.Is(err, server.ErrNotRunning) {
		fmt.Println("Server:     Not running")
		return nil
	}
	if err != nil {
		return err
	}

	st, err := client.Status(cmd.Context())
	if err != nil {
		fmt.Printf("Server:     Unreachable at %s (%v)\n", client.Info().BaseURL(), err)
		return nil
	}

	fmt.Printf("Server:     %s running (PID: %d) at %s\n", st.Name, st.PID, client.Info().BaseURL())
	fmt.Println()

	fetched := "never"
	if st.Loaded {
		fetched = notification.FormatTimestamp(st.FetchedAt)
	}
	fmt.Println("Engine:")
	fmt.Printf("  State:        %s\n", st.State)
	fmt.Printf("  Generation:   %d\n", st.Generation)
	fmt.Printf("  Fetched:      %s\n", fetched)
	fmt.Printf("  Stale:        %v\n", st.Stale)
	fmt.Printf("  Processes:    %d\n", st.Processes)
	fmt.Printf("  Sockets:      %d\n", st.Sockets)
	fmt.Printf("  Nodes:        %d (%d placeholders, %d cycles broken)\n", st.Nodes, st.Placeholders, st.CyclesBroken)
	fmt.Printf("  Sort:         %s\n", strings.Join(st.Order, ", "))
	fmt.Printf("  WS clients:   %d\n", st.Clients)
	if st.LastError != "" {
		fmt.Printf("  Last error:   %s\n", st.LastError)
	}
	fmt.Println()

	if st.Selection.Selected {
		fmt.Printf("Selection:  PID %d (found: %v)\n", st.Selection.PID, st.Selection.Found)
	} else {
		fmt.Println("Selection:  none")
	}
	return nil
}
