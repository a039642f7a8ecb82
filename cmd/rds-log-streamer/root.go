package main

import (
	"github.com/spf13/cobra"
)

const version = "0.1.0"

func newRootCommand() *cobra.Command {
	flags := &cliFlags{}

	rootCmd := &cobra.Command{
		Use:           "rds-log-streamer",
		Short:         "Stream RDS database log files as JSON records",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStreamer(cmd, flags)
		},
	}
	flags.register(rootCmd)

	rootCmd.AddCommand(newRunCommand(flags))
	rootCmd.AddCommand(newStateCommand(flags))

	return rootCmd
}
