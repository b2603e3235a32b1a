package main

import (
	"fmt"

	"github.com/pulsevm/pulsevm/internal/bench"
	"github.com/spf13/cobra"
)

func newBenchCommand() *cobra.Command {
	var count int
	cmd := &cobra.Command{
		Use:   "bench",
		Short: "Run the synthetic newaccount throughput benchmark against an in-memory store",
		RunE: func(cmd *cobra.Command, args []string) error {
			result, err := bench.Run(count)
			if err != nil {
				return err
			}
			fmt.Printf("accounts=%d elapsed=%s actions/sec=%.1f\n", result.Accounts, result.Elapsed, result.ActionsPerSecond())
			return nil
		},
	}
	cmd.Flags().IntVar(&count, "accounts", 10000, "number of synthetic newaccount actions to execute")
	return cmd
}
