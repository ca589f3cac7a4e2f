package cli

import (
	"github.com/spf13/cobra"

	"github.com/faisalnazir/rllab/pkg/sdk"
)

var rsdk sdk.SDK

func SetSDK(s sdk.SDK) {
	rsdk = s
}

func NewJobCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "job [status|cancel]",
		Short: "Training job",
		Long:  `View the training job status or cancel it.`,
	}

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Job status",
		Long:  `Show the job state, iteration and episode counters.`,
		Run: func(cmd *cobra.Command, args []string) {
			if len(args) != 0 {
				logUsageCmd(*cmd, cmd.Use)

				return
			}

			j, err := rsdk.Job()
			if err != nil {
				logErrorCmd(*cmd, err)

				return
			}
			logJSONCmd(*cmd, j)
		},
	}

	cancelCmd := &cobra.Command{
		Use:   "cancel",
		Short: "Cancel job",
		Long:  `Raise the cancellation signal; the trainer observes it at the next iteration boundary.`,
		Run: func(cmd *cobra.Command, args []string) {
			if len(args) != 0 {
				logUsageCmd(*cmd, cmd.Use)

				return
			}

			if err := rsdk.Cancel(); err != nil {
				logErrorCmd(*cmd, err)

				return
			}
			logOKCmd(*cmd)
		},
	}

	cmd.AddCommand(statusCmd)
	cmd.AddCommand(cancelCmd)

	return cmd
}

func NewPolicyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "policy [view]",
		Short: "Policy versions",
		Long:  `Inspect the latest published policy version.`,
	}

	viewCmd := &cobra.Command{
		Use:   "view",
		Short: "View latest policy",
		Long:  `View the latest published policy version and its weights.`,
		Run: func(cmd *cobra.Command, args []string) {
			if len(args) != 0 {
				logUsageCmd(*cmd, cmd.Use)

				return
			}

			v, err := rsdk.Policy()
			if err != nil {
				logErrorCmd(*cmd, err)

				return
			}
			logJSONCmd(*cmd, v)
		},
	}

	cmd.AddCommand(viewCmd)

	return cmd
}

func NewMetricsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "metrics [export]",
		Short: "Training metrics",
		Long:  `Export the aggregated metric records.`,
	}

	exportCmd := &cobra.Command{
		Use:   "export",
		Short: "Export metrics",
		Long:  `Print the flat metric record list consumed by plotting tools.`,
		Run: func(cmd *cobra.Command, args []string) {
			if len(args) != 0 {
				logUsageCmd(*cmd, cmd.Use)

				return
			}

			data, err := rsdk.ExportMetrics()
			if err != nil {
				logErrorCmd(*cmd, err)

				return
			}
			cmd.Println(string(data))
		},
	}

	cmd.AddCommand(exportCmd)

	return cmd
}
