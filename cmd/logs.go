package cmd

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/iamgilwell/proctopo/internal/config"
	"github.com/iamgilwell/proctopo/internal/notification"
)

var (
	followLogs bool
	auditLogs  bool
)

var logsCmd = &cobra.Command{
	Use:   "logs",
	Short: "View proctopo log files",
	RunE:  runLogs,
}

func init() {
	logsCmd.Flags().BoolVar(&followLogs, "follow", false, "follow log output (like tail -f)")
	logsCmd.Flags().BoolVar(&auditLogs, "audit", false, "print the audit trail instead of the log")
}

func runLogs(cmd *cobra.Command, args []string) error {
	cfg := config.Global
	if auditLogs {
		return printAudit(os.Stdout, cfg.Notifications.AuditFile)
	}

	logFile := cfg.Notifications.LogFile
	f, err := os.Open(logFile)
	if err != nil {
		return fmt.Errorf("opening log file %s: %w", logFile, err)
	}
	defer f.Close()

	if !followLogs {
		scanner := bufio.NewScanner(f)
		for scanner.Scan() {
			fmt.Println(scanner.Text())
		}
		return scanner.Err()
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return followFile(ctx, os.Stdout, f)
}

// followFile copies f to w, then keeps copying whatever is appended until
// ctx is done.
func followFile(ctx context.Context, w io.Writer, f *os.File) error {
	if _, err := io.Copy(w, f); err != nil {
		return err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	defer watcher.Close()
	if err := watcher.Add(f.Name()); err != nil {
		return fmt.Errorf("watching %s: %w", f.Name(), err)
	}

	fmt.Fprintln(os.Stderr, "--- Following log output (Ctrl+C to stop) ---")

	for {
		select {
		case <-ctx.Done():
			return nil
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			return err
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if ev.Has(fsnotify.Write) {
				if _, err := io.Copy(w, f); err != nil {
					return err
				}
			}
		}
	}
}

func printAudit(w io.Writer, path string) error {
	entries, err := notification.ReadAudit(path)
	if err != nil {
		return err
	}
	for _, e := range entries {
		line := fmt.Sprintf("%s %-16s gen=%d", notification.FormatTimestamp(e.Timestamp), e.Event, e.Generation)
		if e.PID != 0 {
			line += fmt.Sprintf(" pid=%d", e.PID)
		}
		if e.Details != "" {
			line += " " + e.Details
		}
		fmt.Fprintln(w, line)
	}
	return nil
}
