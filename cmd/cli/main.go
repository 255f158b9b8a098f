package main

import (
	"log"

	"github.com/absmach/fedavg/cli"
	"github.com/absmach/fedavg/pkg/sdk"
	"github.com/spf13/cobra"
)

const (
	defStrategyURL     = "http://localhost:7070"
	defTLSVerification = false
)

func main() {
	var strategyURL string

	rootCmd := &cobra.Command{
		Use:   "fedavg-cli",
		Short: "FedAvg CLI",
		Long:  `FedAvg CLI is a command line interface for the federated averaging strategy service.`,
		PersistentPreRun: func(_ *cobra.Command, _ []string) {
			sdkConf := sdk.Config{
				StrategyURL:     strategyURL,
				TLSVerification: defTLSVerification,
			}
			cli.SetSDK(sdk.NewSDK(sdkConf))
		},
	}
	rootCmd.PersistentFlags().StringVarP(&strategyURL, "strategy-url", "s", defStrategyURL, "Strategy service URL")

	rootCmd.AddCommand(
		cli.NewParamsCmd(),
		cli.NewRoundsCmd(),
		cli.NewCheckpointsCmd(),
		cli.NewClientsCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		log.Fatal(err)
	}
}
