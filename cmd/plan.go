package cmd

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func newPlanCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "plan",
		Short: "Show what a seed would write, without touching Firestore",
		Long: `
Parse the fixture, resolve every document path and run the seed against an
in-memory store. No credentials are loaded and nothing leaves the machine.

Examples:
  fireseed plan
  fireseed plan --file ./seed.yaml --logLevel debug`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSeed(cmd, v, true)
		},
	}
}
