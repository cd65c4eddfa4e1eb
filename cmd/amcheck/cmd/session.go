package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/solatis/amcheck/internal/core/config"
	"github.com/solatis/amcheck/internal/core/logging"
	"github.com/solatis/amcheck/internal/mailbox"
	"github.com/solatis/amcheck/internal/rules"
	"github.com/solatis/amcheck/internal/store/imapstore"
	"github.com/solatis/amcheck/internal/store/sqlstore"
	"github.com/solatis/amcheck/internal/triage"
	"github.com/solatis/amcheck/internal/types"
)

// logOutput receives every log line; commands print results to stdout.
var logOutput io.Writer = os.Stderr

// environment is the resolved configuration and logger of one command.
type environment struct {
	cfg    *config.Settings
	logger *slog.Logger
}

// setup loads configuration, applies explicitly set flags on top and builds
// the logger.
func setup(cmd *cobra.Command) (*environment, error) {
	cfg, err := config.LoadConfig(configFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if cmd.Flags().Changed("log-level") {
		cfg.LogLevel = logLevel
	}
	if cmd.Flags().Changed("log-format") {
		cfg.LogFormat = logFormat
	}

	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat, logOutput)
	if err != nil {
		return nil, err
	}
	return &environment{cfg: cfg, logger: logger}, nil
}

// loadRules compiles the configured rule file.
func (e *environment) loadRules() (*rules.Config, error) {
	ruleCfg, err := rules.LoadFile(e.cfg.RulesFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load rules: %w", err)
	}
	return ruleCfg, nil
}

// openStore opens a session against the configured backend.
func (e *environment) openStore(ctx context.Context, logger *slog.Logger) (mailbox.Store, error) {
	switch e.cfg.StoreKind {
	case config.StoreIMAP:
		password, err := config.IMAPPassword()
		if err != nil {
			return nil, err
		}
		var debug io.Writer
		if logger.Enabled(ctx, slog.LevelDebug) {
			debug = logOutput
		}
		return imapstore.Dial(imapstore.Config{
			Server:             e.cfg.IMAP.Server,
			Port:               e.cfg.IMAP.Port,
			Login:              e.cfg.IMAP.Login,
			Password:           password,
			InsecureSkipVerify: e.cfg.IMAP.InsecureSkipVerify,
			Debug:              debug,
		}, logger)

	case config.StoreSQL:
		database, err := sqlstore.Open(e.cfg.SQLURL)
		if err != nil {
			return nil, err
		}
		if err := requireMigrated(ctx, database); err != nil {
			database.Close()
			return nil, err
		}
		store, err := sqlstore.New(database, logger)
		if err != nil {
			database.Close()
			return nil, err
		}
		return store, nil

	default:
		return nil, fmt.Errorf("unsupported store kind %q", e.cfg.StoreKind)
	}
}

// options maps settings onto a triage run.
func (e *environment) options(dryRun bool) triage.Options {
	return triage.Options{
		Inbox:           e.cfg.IMAP.Inbox,
		Storage:         e.cfg.IMAP.StorageMailbox,
		DaysBack:        e.cfg.DaysBack,
		TestEnv:         e.cfg.IsTest(),
		MaxMessages:     e.cfg.MaxMessages,
		MaxAlertDetails: e.cfg.MaxAlertDetails,
		DryRun:          dryRun,
	}
}

// runFunc is one workflow against an open service.
type runFunc func(ctx context.Context, svc *triage.Service, logger *slog.Logger) error

// run opens a store session tagged with a fresh run id, executes fn and
// closes the session.
func (e *environment) run(ctx context.Context, ruleCfg *rules.Config, dryRun bool, fn runFunc) error {
	runID := types.NewRunID()
	logger := e.logger.With("run_id", string(runID))

	store, err := e.openStore(ctx, logger)
	if err != nil {
		return fmt.Errorf("failed to open %s store: %w", e.cfg.StoreKind, err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Warn("closing store failed", "error", err)
		}
	}()

	svc, err := triage.NewService(store, ruleCfg, e.options(dryRun), logger)
	if err != nil {
		return fmt.Errorf("failed to create service: %w", err)
	}
	return fn(ctx, svc, logger)
}

func moveRun(ctx context.Context, svc *triage.Service, logger *slog.Logger) error {
	res, err := svc.Move(ctx)
	if err != nil {
		return fmt.Errorf("move: %w", err)
	}
	logger.Debug("move finished", "examined", res.Examined, "selected", len(res.Selected), "moved", res.Moved)
	return nil
}

// checkRun returns a runFunc that reports alerts as an error when failOnAlert
// is set.
func checkRun(failOnAlert bool) runFunc {
	return func(ctx context.Context, svc *triage.Service, logger *slog.Logger) error {
		sum, err := svc.Check(ctx)
		if err != nil {
			return fmt.Errorf("check: %w", err)
		}
		if failOnAlert && sum.Alerted() {
			return fmt.Errorf("%w: %d alerts on %d messages", types.ErrAlertsRaised, sum.Total.Alerts, sum.Total.AlertedItems)
		}
		return nil
	}
}
