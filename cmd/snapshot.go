package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/iamgilwell/proctopo/internal/config"
	"github.com/iamgilwell/proctopo/internal/engine"
	"github.com/iamgilwell/proctopo/internal/notification"
	"github.com/iamgilwell/proctopo/internal/ordering"
	"github.com/iamgilwell/proctopo/internal/query"
	"github.com/iamgilwell/proctopo/internal/refresh"
	"github.com/iamgilwell/proctopo/internal/view"
)

var (
	snapshotView   string
	snapshotFormat string
	snapshotSort   []string
)

var snapshotCmd = &cobra.Command{
	Use:   "snapshot",
	Short: "Fetch once and print a view",
	Long:  `Fetches processes and sockets once, builds the forest and prints the table, tree or graph projection.`,
	RunE:  runSnapshot,
}

func init() {
	snapshotCmd.Flags().StringVar(&snapshotView, "view", "table", "view to print: table, tree or graph")
	snapshotCmd.Flags().StringVar(&snapshotFormat, "format", "text", "output format: text, json or yaml")
	snapshotCmd.Flags().StringArrayVar(&snapshotSort, "sort", nil, "table sort key field[:asc|desc], repeatable (default: table.sort)")
}

func runSnapshot(cmd *cobra.Command, args []string) error {
	cfg := config.Global

	order, err := cfg.SortKeys()
	if err != nil {
		return err
	}
	if len(snapshotSort) > 0 {
		if order, err = ordering.ParseKeys(snapshotSort); err != nil {
			return err
		}
	}

	logger, err := notification.NewLogger(cfg.Notifications.LogFile, cfg.Notifications.ColorEnabled, cfg.Notifications.Verbose, false)
	if err != nil {
		return err
	}
	defer logger.Close()

	svc, err := query.NewSystemService(cfg.Query.Protocols, cfg.Query.Sockets, logger.With("component", "query"))
	if err != nil {
		return err
	}
	eng, err := engine.New(order, logger.With("component", "engine"), nil)
	if err != nil {
		return err
	}
	ctrl := refresh.New(svc, eng, refresh.Options{Timeout: cfg.Query.Timeout, Logger: logger.With("component", "refresh")})

	out := <-ctrl.Refresh(cmd.Context())
	if out.Err != nil {
		return out.Err
	}
	return renderSnapshot(os.Stdout, eng.Snapshot(), snapshotView, snapshotFormat)
}

func renderSnapshot(w io.Writer, snap *engine.Snapshot, viewName, format string) error {
	var data any
	switch viewName {
	case "table":
		data = snap.Views.Table.Rows()
	case "tree":
		data = snap.Views.Tree.Items(0, snap.Views.Tree.Len())
	case "graph":
		data = snap.Views.Graph
	default:
		return fmt.Errorf("unknown view %q (want table, tree or graph)", viewName)
	}

	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(data)
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		defer enc.Close()
		return enc.Encode(data)
	case "text":
	default:
		return fmt.Errorf("unknown format %q (want text, json or yaml)", format)
	}

	switch viewName {
	case "table":
		return writeTableText(w, snap.Views.Table)
	case "tree":
		return writeTreeText(w, snap.Views.Tree)
	default:
		return writeGraphText(w, snap.Views.Graph)
	}
}

func writeTableText(w io.Writer, t *view.Table) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "PID\tPPID\tNAME\tLOCAL\tPORT\tMEM\tUPTIME")
	for _, r := range t.Rows() {
		port := ""
		if r.HasSocket {
			port = strconv.Itoa(r.LocalPort)
		}
		ppid := ""
		if r.ParentPID > 0 {
			ppid = strconv.Itoa(r.ParentPID)
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\t%s\n",
			r.PID, ppid, r.Name, r.LocalAddr, port, view.FormatMemory(r.MemoryBytes), view.FormatUptime(r.UptimeSeconds))
	}
	return tw.Flush()
}

func writeTreeText(w io.Writer, t *view.Tree) error {
	var err error
	t.Walk(0, func(it view.TreeItem) bool {
		name := it.Name
		if it.Placeholder {
			name = "(unknown)"
		}
		_, err = fmt.Fprintf(w, "%s%d %s\n", strings.Repeat("  ", it.Depth), it.PID, name)
		return err == nil
	})
	return err
}

func writeGraphText(w io.Writer, g *view.Graph) error {
	for _, n := range g.Nodes {
		if _, err := fmt.Fprintf(w, "node %s [%s] %s\n", n.ID, n.Category, n.Label); err != nil {
			return err
		}
	}
	for _, e := range g.Edges {
		if _, err := fmt.Fprintf(w, "edge %s %d -> %d\n", e.ID, e.Source, e.Target); err != nil {
			return err
		}
	}
	return nil
}
