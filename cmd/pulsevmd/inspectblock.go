package main

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/pulsevm/pulsevm/internal/chainerr"
	"github.com/pulsevm/pulsevm/internal/controller"
	"github.com/spf13/cobra"
)

func newInspectBlockCommand(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "inspect-block <num>",
		Short: "Print a block stored at --data-dir as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			num, err := strconv.ParseUint(args[0], 10, 32)
			if err != nil {
				return chainerr.Wrap(chainerr.Parse, err, "parse block number %q", args[0])
			}

			ctrl, err := controller.Open(flags.dataDir)
			if err != nil {
				return err
			}
			defer ctrl.Close()

			block, err := ctrl.GetBlockByHeight(uint32(num))
			if err != nil {
				return err
			}

			view := struct {
				ID               string `json:"id"`
				BlockNum         uint32 `json:"block_num"`
				Previous         string `json:"previous"`
				Timestamp        string `json:"timestamp"`
				TransactionCount int    `json:"transaction_count"`
				TransactionMroot string `json:"transaction_mroot"`
			}{
				ID:               block.ID().String(),
				BlockNum:         block.BlockNum(),
				Previous:         block.PreviousID().String(),
				Timestamp:        block.Timestamp().String(),
				TransactionCount: len(block.Transactions),
				TransactionMroot: block.Header.TransactionMroot.String(),
			}

			out, err := json.MarshalIndent(view, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(out))
			return nil
		},
	}
}
