// Package main implements the ws CLI tool.
package main

import (
	"errors"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/sys/unix"

	"github.com/wskit/ws/internal/config"
	"github.com/wskit/ws/internal/identity"
	"github.com/wskit/ws/internal/privs"
	"github.com/wskit/ws/workspace"
)

// Exit codes are a contract with scripting callers: access denial and
// missing records must stay distinguishable from generic failure.
const (
	exitFailure      = 1
	exitNotFound     = 3
	exitAccessDenied = 4
)

func main() {
	// Group-readable record files; the db account's group may include
	// reporting tools.
	unix.Umask(0002)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(exitCode(err))
	}
}

var rootCmd = &cobra.Command{
	Use:          "ws",
	Short:        "Manage time-limited workspace directories on shared filesystems",
	SilenceUsage: true,
}

func exitCode(err error) int {
	var exitErr interface{ ExitCode() int }
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}
	switch {
	case errors.Is(err, workspace.ErrAccessDenied):
		return exitAccessDenied
	case errors.Is(err, workspace.ErrRecordNotFound), errors.Is(err, workspace.ErrTargetNotFound):
		return exitNotFound
	}
	return exitFailure
}

// newManager loads configuration, drops privilege to the baseline, and
// wires up a lifecycle manager. Config problems are fatal here, before any
// request input is looked at: the process must never proceed in an
// undefined privilege state.
func newManager() (*workspace.Manager, error) {
	cfg, err := config.Load(config.Path())
	if err != nil {
		return nil, err
	}

	broker, err := privs.NewBroker(cfg.DBUID)
	if err != nil {
		return nil, err
	}
	if err := broker.Drop(); err != nil {
		return nil, err
	}

	// The exception config may sit somewhere ordinary users cannot
	// read.
	var ucfg *config.UserConfig
	err = broker.With(privs.DACOverride, func() error {
		var err error
		ucfg, err = config.LoadUser(config.UserPath())
		return err
	})
	if err != nil {
		return nil, err
	}

	id, err := identity.Current()
	if err != nil {
		return nil, err
	}

	return workspace.New(workspace.Options{
		Config:     cfg,
		UserConfig: ucfg,
		Identity:   id,
		Broker:     broker,
	}), nil
}
