package cmd

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"

	"github.com/solatis/amcheck/internal/store/sqlstore"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply schema migrations to the SQL archive store",
	Args:  cobra.NoArgs,
	RunE:  runMigrate,
}

func init() {
	rootCmd.AddCommand(migrateCmd)
	migrateCmd.Flags().String("db-url", "", "database connection URL (sqlite://path or postgres://...), overrides sql.url")
	migrateCmd.Flags().Bool("status", false, "list migrations and whether they are applied, without applying")
}

func runMigrate(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	dbURL, _ := cmd.Flags().GetString("db-url")
	if dbURL == "" {
		env, err := setup(cmd)
		if err != nil {
			return err
		}
		dbURL = env.cfg.SQLURL
	}
	if dbURL == "" {
		return fmt.Errorf("--db-url or sql.url required")
	}

	database, err := sqlstore.Open(dbURL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer database.Close()

	out := cmd.OutOrStdout()
	if status, _ := cmd.Flags().GetBool("status"); status {
		statuses, err := sqlstore.MigrateStatus(ctx, database)
		if err != nil {
			return err
		}
		w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "MIGRATION\tAPPLIED\tAPPLIED AT")
		for _, s := range statuses {
			at := "-"
			if s.AppliedAt != nil {
				at = s.AppliedAt.Format("2006-01-02 15:04:05")
			}
			fmt.Fprintf(w, "%s\t%t\t%s\n", s.ID, s.Applied, at)
		}
		return w.Flush()
	}

	ran, err := sqlstore.MigrateUp(ctx, database)
	if err != nil {
		return err
	}
	if len(ran) == 0 {
		fmt.Fprintln(out, "schema up to date")
	}
	for _, id := range ran {
		fmt.Fprintf(out, "applied %s\n", id)
	}
	return nil
}

// requireMigrated refuses to run triage against an archive with pending
// migrations.
func requireMigrated(ctx context.Context, database *sqlx.DB) error {
	statuses, err := sqlstore.MigrateStatus(ctx, database)
	if err != nil {
		return fmt.Errorf("failed to check migrations: %w", err)
	}
	for _, s := range statuses {
		if !s.Applied {
			return fmt.Errorf("migration %s not applied - run 'amcheck migrate' first", s.ID)
		}
	}
	return nil
}
