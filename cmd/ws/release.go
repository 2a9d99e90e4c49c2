package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/wskit/ws/workspace"
)

var releaseCmd = &cobra.Command{
	Use:   "release <name>",
	Short: "Move a workspace and its record into the trash namespace",
	Args:  cobra.ExactArgs(1),
	RunE:  runRelease,
}

var releaseFilesystem string

func init() {
	rootCmd.AddCommand(releaseCmd)

	releaseCmd.Flags().StringVarP(&releaseFilesystem, "filesystem", "F", "", "Filesystem the workspace lives on")
}

func runRelease(cmd *cobra.Command, args []string) error {
	mgr, err := newManager()
	if err != nil {
		return err
	}

	result, err := mgr.Release(workspace.ReleaseOptions{
		Name:       args[0],
		Filesystem: releaseFilesystem,
	})
	if err != nil {
		return err
	}

	fmt.Fprintf(os.Stderr, "Info: workspace released as %s\n", result.TrashedName)
	return nil
}
