package main

// Shared help plumbing for the subcommands.

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

// handleHelpArg prints command help when the first positional argument is
// "help", mirroring `s7dip help <command>`.
func handleHelpArg(cmd *cobra.Command, args []string) bool {
	if len(args) == 0 {
		return false
	}
	if strings.EqualFold(args[0], "help") {
		_ = cmd.Help()
		return true
	}
	return false
}

// missingFlagError prints the command help and returns an error naming the
// command and the flag so the failure stays visible above the help text.
func missingFlagError(cmd *cobra.Command, flag string) error {
	_ = cmd.Help()
	return fmt.Errorf("%s: required flag %s not set", cmd.Name(), flag)
}
