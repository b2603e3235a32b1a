package main

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/pulsevm/pulsevm/internal/controller"
	"github.com/pulsevm/pulsevm/internal/logging"
	"github.com/pulsevm/pulsevm/internal/metrics"
	"github.com/pulsevm/pulsevm/internal/name"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
)

func newRunCommand(flags *globalFlags) *cobra.Command {
	var genesisPath string
	var metricsAddr string
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the chain at --data-dir, bootstrapping it from --genesis if it hasn't been initialized yet",
		RunE: func(cmd *cobra.Command, args []string) error {
			log := logging.New("pulsevmd", flags.logPretty)

			ctrl, err := controller.Open(flags.dataDir)
			if err != nil {
				return err
			}
			defer ctrl.Close()

			if genesisBytes, err := os.ReadFile(genesisPath); err == nil {
				if err := ctrl.Initialize(genesisBytes); err != nil {
					return err
				}
			} else if !os.IsNotExist(err) {
				return err
			}
			log.Info().
				Str("chain_id", ctrl.ChainID().String()).
				Uint32("head", ctrl.LastAcceptedBlock().BlockNum()).
				Msg("chain open")

			reg := prometheus.NewRegistry()
			ctrl.SetMetrics(metrics.NewRegistry(reg))
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
			mux.HandleFunc("/v1/chain/get_account", getAccountHandler(ctrl))
			server := &http.Server{Addr: metricsAddr, Handler: mux}

			go func() {
				log.Info().Str("addr", metricsAddr).Msg("metrics server listening")
				if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					log.Error().Err(err).Msg("metrics server exited")
				}
			}()

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			<-ctx.Done()

			log.Info().Msg("shutting down")
			return server.Shutdown(context.Background())
		},
	}
	cmd.Flags().StringVar(&genesisPath, "genesis", "./genesis.yaml", "path to the genesis file, used only if the chain at --data-dir isn't initialized yet")
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", ":9102", "address to serve Prometheus metrics on")
	return cmd
}

// getAccountHandler reports an account's windowed NET/CPU usage,
// maximum, and available headroom, a query wallets and explorers poll
// before submitting a transaction.
func getAccountHandler(ctrl *controller.Controller) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		account, err := name.Parse(r.URL.Query().Get("account_name"))
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		netLimit, cpuLimit, err := ctrl.AccountResourceLimits(account)
		if err != nil {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(struct {
			AccountName string `json:"account_name"`
			NetLimit    any    `json:"net_limit"`
			CPULimit    any    `json:"cpu_limit"`
		}{
			AccountName: account.String(),
			NetLimit:    netLimit,
			CPULimit:    cpuLimit,
		})
	}
}
