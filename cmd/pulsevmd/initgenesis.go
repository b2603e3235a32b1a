package main

import (
	"os"

	"github.com/pulsevm/pulsevm/internal/controller"
	"github.com/pulsevm/pulsevm/internal/logging"
	"github.com/spf13/cobra"
)

func newInitGenesisCommand(flags *globalFlags) *cobra.Command {
	var genesisPath string
	cmd := &cobra.Command{
		Use:   "init-genesis",
		Short: "Bootstrap the chain at --data-dir from a genesis file, or verify it if already bootstrapped",
		RunE: func(cmd *cobra.Command, args []string) error {
			log := logging.New("init-genesis", flags.logPretty)

			genesisBytes, err := os.ReadFile(genesisPath)
			if err != nil {
				return err
			}

			ctrl, err := controller.Open(flags.dataDir)
			if err != nil {
				return err
			}
			defer ctrl.Close()

			if err := ctrl.Initialize(genesisBytes); err != nil {
				return err
			}
			log.Info().
				Str("chain_id", ctrl.ChainID().String()).
				Uint32("head", ctrl.LastAcceptedBlock().BlockNum()).
				Msg("chain initialized")
			return nil
		},
	}
	cmd.Flags().StringVar(&genesisPath, "genesis", "./genesis.yaml", "path to the genesis file")
	return cmd
}
