package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/solatis/amcheck/internal/rules"
)

var rulesCmd = &cobra.Command{
	Use:   "rules [file]",
	Short: "Validate a rule file and print its rule-sets as a tree",
	Long: `Compiles the rule file and prints the move filters and every check
rule-set with an estimate of the store round trips its tree needs. Without an
argument the configured rules_file is used. No store is contacted.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runRules,
}

func init() {
	rootCmd.AddCommand(rulesCmd)
}

func runRules(cmd *cobra.Command, args []string) error {
	var path string
	if len(args) == 1 {
		path = args[0]
	} else {
		env, err := setup(cmd)
		if err != nil {
			return err
		}
		path = env.cfg.RulesFile
	}

	ruleCfg, err := rules.LoadFile(path)
	if err != nil {
		return fmt.Errorf("failed to load rules: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, rules.Render(ruleCfg))
	for _, rs := range ruleCfg.Check {
		c := rules.EstimateCost(rs.Tree)
		fmt.Fprintf(out, "%s: %d nodes, depth %d, %d body queries, %d bulk fetches, %d delete commands\n",
			rs.Name, c.NodeCount, c.MaxDepth, c.BodyQueries, c.BulkFetches, c.DeleteCommands)
	}
	return nil
}
