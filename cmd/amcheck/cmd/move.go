package cmd

import (
	"github.com/spf13/cobra"
)

var moveCmd = &cobra.Command{
	Use:   "move",
	Short: "Move matching inbox mail into the storage mailbox",
	Args:  cobra.NoArgs,
	RunE:  runMove,
}

func init() {
	rootCmd.AddCommand(moveCmd)
	moveCmd.Flags().Bool("dry-run", false, "select and report without moving anything")
}

func runMove(cmd *cobra.Command, args []string) error {
	env, err := setup(cmd)
	if err != nil {
		return err
	}
	ruleCfg, err := env.loadRules()
	if err != nil {
		return err
	}
	dryRun, _ := cmd.Flags().GetBool("dry-run")
	return env.run(cmd.Context(), ruleCfg, dryRun, moveRun)
}
