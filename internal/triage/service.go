// Package triage runs the move and check workflows against one store session.
package triage

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/solatis/amcheck/internal/mailbox"
	"github.com/solatis/amcheck/internal/rules"
	"github.com/solatis/amcheck/internal/types"
)

// Options tunes one triage run.
type Options struct {
	// Inbox is where move looks for new mail.
	Inbox string
	// Storage is where move puts matched mail and where check looks.
	Storage string
	// DaysBack bounds the move search outside the test environment.
	DaysBack int
	// TestEnv replaces the relative move window with a fixed early date.
	TestEnv bool
	// MaxMessages caps how many stored messages check examines.
	MaxMessages int
	// MaxAlertDetails caps per-item lines in one alert.
	MaxAlertDetails int
	// DryRun suppresses every store mutation.
	DryRun bool
}

// DefaultOptions returns the production defaults.
func DefaultOptions() Options {
	return Options{
		Inbox:           "INBOX",
		Storage:         "amcheck_storage",
		DaysBack:        types.DefaultMoveDaysBack,
		MaxMessages:     types.DefaultMaxCheckMessages,
		MaxAlertDetails: types.DefaultMaxAlertDetails,
	}
}

// Service orchestrates a store session, compiled rules and the evaluator.
// Thin layer: selection lives here, routing lives in package rules.
type Service struct {
	store  mailbox.Store
	rules  *rules.Config
	opts   Options
	logger *slog.Logger
	now    func() time.Time
}

// NewService creates a service. The store session is borrowed; the caller
// closes it.
func NewService(store mailbox.Store, cfg *rules.Config, opts Options, logger *slog.Logger) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("store cannot be nil")
	}
	if cfg == nil {
		return nil, fmt.Errorf("rules cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	if opts.MaxMessages <= 0 {
		opts.MaxMessages = types.DefaultMaxCheckMessages
	}
	if opts.MaxAlertDetails < 0 {
		opts.MaxAlertDetails = types.DefaultMaxAlertDetails
	}
	return &Service{
		store:  store,
		rules:  cfg,
		opts:   opts,
		logger: logger,
		now:    time.Now,
	}, nil
}

// SetClock replaces time.Now, for tests.
func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}
