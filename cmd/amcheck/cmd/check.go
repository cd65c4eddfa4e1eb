package cmd

import (
	"github.com/spf13/cobra"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Evaluate the check rule-sets against the storage mailbox",
	Args:  cobra.NoArgs,
	RunE:  runCheck,
}

func init() {
	rootCmd.AddCommand(checkCmd)
	checkCmd.Flags().Bool("dry-run", false, "evaluate and report without deleting anything")
	checkCmd.Flags().Bool("fail-on-alert", false, "exit non-zero when any rule-set raised an alert")
}

func runCheck(cmd *cobra.Command, args []string) error {
	env, err := setup(cmd)
	if err != nil {
		return err
	}
	ruleCfg, err := env.loadRules()
	if err != nil {
		return err
	}
	dryRun, _ := cmd.Flags().GetBool("dry-run")
	failOnAlert, _ := cmd.Flags().GetBool("fail-on-alert")
	return env.run(cmd.Context(), ruleCfg, dryRun, checkRun(failOnAlert))
}
