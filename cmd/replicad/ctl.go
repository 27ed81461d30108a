package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/cuemby/replicad/pkg/client"
	"github.com/cuemby/replicad/pkg/types"
)

var roleCmd = &cobra.Command{
	Use:   "role init|primary|secondary all|NAME...",
	Short: "Change the role of resources",
	Long: `Change the role of one or more resources.

Examples:
  # Make data0 primary
  replicad role primary data0

  # Demote every resource
  replicad role secondary all`,
	Args: cobra.MinimumNArgs(2),
	RunE: runRole,
}

var statusCmd = &cobra.Command{
	Use:   "status [all|NAME...]",
	Short: "Show the status of resources",
	RunE:  runStatus,
}

func runRole(cmd *cobra.Command, args []string) error {
	role, err := types.ParseRole(args[0])
	if err != nil {
		return err
	}

	results, err := client.NewClient(global.controlSocket()).SetRole(context.Background(), role, args[1:]...)
	if err != nil {
		return fmt.Errorf("role change failed: %w", err)
	}

	failed := 0
	for _, r := range results {
		if r.Err != nil {
			failed++
			fmt.Fprintf(os.Stderr, "%s: %v\n", r.Resource, r.Err)
			if r.PreviousRole == "" {
				continue
			}
		}
		fmt.Printf("%s: %s -> %s\n", r.Resource, r.PreviousRole, role)
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d resources failed", failed, len(results))
	}
	return nil
}

func runStatus(cmd *cobra.Command, args []string) error {
	if len(args) == 0 {
		args = []string{"all"}
	}

	results, err := client.NewClient(global.controlSocket()).Status(context.Background(), args...)
	if err != nil {
		return fmt.Errorf("status query failed: %w", err)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tROLE\tSTATUS\tDIRTY\tEXTENT\tKEEPDIRTY\tREPLICATION\tLOCAL\tREMOTE")
	failed := 0
	for _, r := range results {
		status, dirty, extent, keep := "-", "-", "-", "-"
		if r.Report != nil {
			status = r.Report.Status
			dirty = fmt.Sprintf("%d", r.Report.Dirty)
			extent = fmt.Sprintf("%d", r.Report.ExtentSize)
			keep = fmt.Sprintf("%d", r.Report.KeepDirty)
		}
		if r.Err != nil {
			failed++
			status = r.Err.Error()
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			r.Resource, dash(r.Role), status, dirty, extent, keep,
			dash(r.Replication), dash(r.LocalPath), dash(r.RemoteAddress))
	}
	w.Flush()

	if failed > 0 {
		return &exitError{code: 1, err: fmt.Errorf("%d resources failed", failed)}
	}
	return nil
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
