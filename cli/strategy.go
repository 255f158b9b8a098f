package cli

import (
	"encoding/json"
	"os"

	"github.com/absmach/fedavg/pkg/sdk"
	"github.com/spf13/cobra"
)

var fsdk sdk.SDK

func SetSDK(s sdk.SDK) {
	fsdk = s
}

func NewParamsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "params [init]",
		Short: "Global model parameters",
		Long:  `Fetch the global model parameters.`,
	}

	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize parameters",
		Long:  `Ask the strategy for the parameters the first round starts from.`,
		Run: func(cmd *cobra.Command, args []string) {
			if len(args) != 0 {
				logUsageCmd(*cmd, cmd.Use)

				return
			}

			p, err := fsdk.InitializeParameters()
			if err != nil {
				logErrorCmd(*cmd, err)

				return
			}
			logJSONCmd(*cmd, p)
		},
	}

	cmd.AddCommand(initCmd)

	return cmd
}

func NewRoundsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rounds [fit|evaluate]",
		Short: "Round aggregation",
		Long:  `Submit client results of a round for aggregation.`,
	}

	fitCmd := &cobra.Command{
		Use:   "fit <round> <results_file>",
		Short: "Aggregate fit results",
		Long: `Aggregate the training results stored in a JSON file.

Example:
  fedavg-cli rounds fit 1 fit.json`,
		Run: func(cmd *cobra.Command, args []string) {
			if len(args) != 2 {
				logUsageCmd(*cmd, cmd.Use)

				return
			}

			round, err := parseRound(args[0])
			if err != nil {
				logErrorCmd(*cmd, err)

				return
			}

			var req sdk.FitRequest
			if err := readJSON(args[1], &req); err != nil {
				logErrorCmd(*cmd, err)

				return
			}

			agg, err := fsdk.AggregateFit(round, req)
			if err != nil {
				logErrorCmd(*cmd, err)

				return
			}
			logJSONCmd(*cmd, agg)
		},
	}

	evaluateCmd := &cobra.Command{
		Use:   "evaluate <round> <results_file>",
		Short: "Aggregate evaluate results",
		Long: `Aggregate the evaluation results stored in a JSON file.

Example:
  fedavg-cli rounds evaluate 1 evaluate.json`,
		Run: func(cmd *cobra.Command, args []string) {
			if len(args) != 2 {
				logUsageCmd(*cmd, cmd.Use)

				return
			}

			round, err := parseRound(args[0])
			if err != nil {
				logErrorCmd(*cmd, err)

				return
			}

			var req sdk.EvaluateRequest
			if err := readJSON(args[1], &req); err != nil {
				logErrorCmd(*cmd, err)

				return
			}

			agg, err := fsdk.AggregateEvaluate(round, req)
			if err != nil {
				logErrorCmd(*cmd, err)

				return
			}
			logJSONCmd(*cmd, agg)
		},
	}

	cmd.AddCommand(fitCmd, evaluateCmd)

	return cmd
}

func NewCheckpointsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "checkpoints [list|view]",
		Short: "Round checkpoints",
		Long:  `List and view aggregated round checkpoints.`,
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List checkpoints",
		Long:  `List checkpoints ordered by round.`,
		Run: func(cmd *cobra.Command, _ []string) {
			page, err := fsdk.ListCheckpoints(offset, limit)
			if err != nil {
				logErrorCmd(*cmd, err)

				return
			}
			logJSONCmd(*cmd, page)
		},
	}
	listCmd.Flags().Uint64VarP(&offset, "offset", "o", defOffset, "Offset")
	listCmd.Flags().Uint64VarP(&limit, "limit", "l", defLimit, "Limit")

	viewCmd := &cobra.Command{
		Use:   "view <round>",
		Short: "View checkpoint",
		Long:  `View the checkpoint of a round.`,
		Run: func(cmd *cobra.Command, args []string) {
			if len(args) != 1 {
				logUsageCmd(*cmd, cmd.Use)

				return
			}

			round, err := parseRound(args[0])
			if err != nil {
				logErrorCmd(*cmd, err)

				return
			}

			cp, err := fsdk.GetCheckpoint(round)
			if err != nil {
				logErrorCmd(*cmd, err)

				return
			}
			logJSONCmd(*cmd, cp)
		},
	}

	cmd.AddCommand(listCmd, viewCmd)

	return cmd
}

func NewClientsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "clients [list]",
		Short: "Training clients",
		Long:  `List the clients registered with the strategy.`,
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List clients",
		Long:  `List clients.`,
		Run: func(cmd *cobra.Command, _ []string) {
			page, err := fsdk.ListClients(offset, limit)
			if err != nil {
				logErrorCmd(*cmd, err)

				return
			}
			logJSONCmd(*cmd, page)
		},
	}
	listCmd.Flags().Uint64VarP(&offset, "offset", "o", defOffset, "Offset")
	listCmd.Flags().Uint64VarP(&limit, "limit", "l", defLimit, "Limit")

	cmd.AddCommand(listCmd)

	return cmd
}

func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	return json.Unmarshal(data, v)
}
