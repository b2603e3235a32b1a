package main

import (
	"github.com/spf13/cobra"
)

// globalFlags holds the flags every subcommand shares.
type globalFlags struct {
	dataDir   string
	logPretty bool
}

func newRootCommand() *cobra.Command {
	flags := &globalFlags{}
	root := &cobra.Command{
		Use:   "pulsevmd",
		Short: "pulsevm transaction execution core",
	}
	root.PersistentFlags().StringVar(&flags.dataDir, "data-dir", "./data", "path to the chain's goleveldb data directory")
	root.PersistentFlags().BoolVar(&flags.logPretty, "log-pretty", false, "write console-formatted logs instead of JSON")

	root.AddCommand(newRunCommand(flags))
	root.AddCommand(newInitGenesisCommand(flags))
	root.AddCommand(newInspectBlockCommand(flags))
	root.AddCommand(newBenchCommand())
	return root
}
