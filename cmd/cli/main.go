package main

import (
	"log"

	"github.com/spf13/cobra"

	"github.com/faisalnazir/rllab/cli"
	"github.com/faisalnazir/rllab/pkg/sdk"
)

const defTrainerURL = "http://localhost:7070"

func main() {
	trainerURL := defTrainerURL

	rootCmd := &cobra.Command{
		Use:   "rllab-cli",
		Short: "RL Lab CLI",
		Long:  `RL Lab CLI is a command line interface for interacting with the training job.`,
		PersistentPreRun: func(_ *cobra.Command, _ []string) {
			s := sdk.NewSDK(sdk.Config{
				TrainerURL: trainerURL,
			})
			cli.SetSDK(s)
		},
	}
	rootCmd.PersistentFlags().StringVarP(&trainerURL, "trainer-url", "t", defTrainerURL, "Trainer API URL")

	rootCmd.AddCommand(cli.NewJobCmd())
	rootCmd.AddCommand(cli.NewPolicyCmd())
	rootCmd.AddCommand(cli.NewMetricsCmd())

	if err := rootCmd.Execute(); err != nil {
		log.Fatal(err)
	}
}
