package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/wskit/ws/internal/ui"
	"github.com/wskit/ws/workspace"
)

var allocateCmd = &cobra.Command{
	Use:   "allocate <name>",
	Short: "Create a workspace, or reuse or extend an existing one",
	Long: `Create a time-limited workspace directory, or report an existing one.

The workspace path is printed on stdout and nothing else is; all
diagnostics go to stderr so scripts can capture the path directly.`,
	Args: cobra.ExactArgs(1),
	RunE: runAllocate,
}

var (
	allocateDuration   int
	allocateFilesystem string
	allocateExtend     bool
	allocateReminder   int
	allocateMail       string
	allocateUser       string
)

func init() {
	rootCmd.AddCommand(allocateCmd)

	allocateCmd.Flags().IntVarP(&allocateDuration, "duration", "d", 0, "Duration in days (0 = maximum allowed)")
	allocateCmd.Flags().StringVarP(&allocateFilesystem, "filesystem", "F", "", "Filesystem to allocate on")
	allocateCmd.Flags().BoolVarP(&allocateExtend, "extend", "x", false, "Consume one extension of an existing workspace")
	allocateCmd.Flags().IntVarP(&allocateReminder, "reminder", "r", 0, "Days before expiry to send a reminder mail")
	allocateCmd.Flags().StringVarP(&allocateMail, "mailaddress", "m", "", "Address for the reminder mail")
	allocateCmd.Flags().StringVarP(&allocateUser, "user", "u", "", "Act on this user's workspace (allocation requires root)")
}

func runAllocate(cmd *cobra.Command, args []string) error {
	mgr, err := newManager()
	if err != nil {
		return err
	}

	result, err := mgr.Allocate(workspace.AllocateOptions{
		Name:         args[0],
		Filesystem:   allocateFilesystem,
		DurationDays: allocateDuration,
		Extend:       allocateExtend,
		ReminderDays: allocateReminder,
		Mailaddress:  allocateMail,
		User:         allocateUser,
	})
	if err != nil {
		return err
	}

	fmt.Println(result.Directory)
	fmt.Fprintf(os.Stderr, "remaining extensions  : %d\n", result.Extensions)
	fmt.Fprintf(os.Stderr, "remaining time in days: %d\n", ui.RemainingDays(result.Remaining))
	return nil
}
