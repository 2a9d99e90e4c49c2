package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/wskit/ws/internal/ui"
	"github.com/wskit/ws/workspace"
)

var restoreCmd = &cobra.Command{
	Use:   "restore <trashed-name> <target>",
	Short: "Move trashed workspace content into an existing workspace",
	Long: `Restore a released workspace into a live one.

The target workspace must be allocated first; the trashed content appears
inside it under its tagged trash name. The trashed record is consumed.`,
	Args: cobra.ExactArgs(2),
	RunE: runRestore,
}

var restorableCmd = &cobra.Command{
	Use:   "restorable",
	Short: "List your released workspaces that can still be restored",
	Args:  cobra.NoArgs,
	RunE:  runRestorable,
}

var (
	restoreFilesystem    string
	restoreUser          string
	restorableFilesystem string
)

func init() {
	rootCmd.AddCommand(restoreCmd, restorableCmd)

	restoreCmd.Flags().StringVarP(&restoreFilesystem, "filesystem", "F", "", "Filesystem the workspace lives on")
	restoreCmd.Flags().StringVarP(&restoreUser, "user", "u", "", "Act on this user's workspaces (requires root)")
	restorableCmd.Flags().StringVarP(&restorableFilesystem, "filesystem", "F", "", "Filesystem to list")
}

func runRestore(cmd *cobra.Command, args []string) error {
	mgr, err := newManager()
	if err != nil {
		return err
	}

	result, err := mgr.Restore(workspace.RestoreOptions{
		TrashedName: args[0],
		Target:      args[1],
		Filesystem:  restoreFilesystem,
		User:        restoreUser,
	})
	if err != nil {
		return err
	}

	fmt.Fprintf(os.Stderr, "Info: workspace restored to %s\n", result.Directory)
	return nil
}

func runRestorable(cmd *cobra.Command, args []string) error {
	mgr, err := newManager()
	if err != nil {
		return err
	}

	entries, err := mgr.Restorable(restorableFilesystem)
	if err != nil {
		return err
	}

	now := time.Now()
	rows := make([][]string, 0, len(entries))
	for _, entry := range entries {
		rows = append(rows, []string{entry.Name, ui.FormatTimeAgo(entry.ReleasedAt, now)})
	}

	fmt.Print(ui.FormatTable([]string{"NAME", "RELEASED"}, rows))
	return nil
}
