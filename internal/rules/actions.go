// internal/rules/actions.go
package rules

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/solatis/amcheck/internal/mailbox"
	"github.com/solatis/amcheck/internal/types"
)

/*
 * Terminal node side effects.
 *
 * Actions:
 *   - nothing: no effect
 *   - success: info log "check passed"
 *   - alert:   warn log "CHECK FAILED" plus per-item details, capped
 *   - delete:  flag and expunge the set as one batch
 *
 * Every action runs for empty sets too. Delete on an empty set is a no-op
 * that never reaches the store.
 *
 * Dry-run: delete logs what it would remove and alert logs at info instead
 * of warn. Nothing in the store changes. Outcomes are still counted so the
 * caller can report what a live run would have done.
 *
 * Deleted UIDs, and in dry-run the UIDs a delete would remove, are
 * remembered so later rule-sets never see them (Remaining).
 */

// Outcome counts action results.
type Outcome struct {
	Successes    int
	Alerts       int
	AlertedItems int
	Deleted      int
	WouldDelete  int
}

func (o *Outcome) add(other Outcome) {
	o.Successes += other.Successes
	o.Alerts += other.Alerts
	o.AlertedItems += other.AlertedItems
	o.Deleted += other.Deleted
	o.WouldDelete += other.WouldDelete
}

// Summary aggregates outcomes for one run.
type Summary struct {
	Total     Outcome
	ByRuleSet map[string]Outcome
	// Order lists rule-sets in the order their first action ran.
	Order []string
}

// Alerted reports whether any alert fired.
func (s Summary) Alerted() bool {
	return s.Total.Alerts > 0
}

// Executor performs terminal actions against a store session.
type Executor struct {
	store      mailbox.Deleter
	dryRun     bool
	logger     *slog.Logger
	maxDetails int
	summary    Summary
	removed    map[types.UID]struct{}
}

// ExecutorOption configures an Executor.
type ExecutorOption func(*Executor)

// WithDryRun suppresses every store mutation.
func WithDryRun(dryRun bool) ExecutorOption {
	return func(e *Executor) { e.dryRun = dryRun }
}

// WithMaxAlertDetails caps the per-item detail lines of one alert.
func WithMaxAlertDetails(n int) ExecutorOption {
	return func(e *Executor) {
		if n >= 0 {
			e.maxDetails = n
		}
	}
}

// NewExecutor creates an executor. store may be nil in dry-run mode.
func NewExecutor(store mailbox.Deleter, logger *slog.Logger, opts ...ExecutorOption) *Executor {
	e := &Executor{
		store:      store,
		logger:     logger,
		maxDetails: types.DefaultMaxAlertDetails,
		summary:    Summary{ByRuleSet: make(map[string]Outcome)},
		removed:    make(map[types.UID]struct{}),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Summary returns a copy of the outcomes recorded so far.
func (e *Executor) Summary() Summary {
	out := Summary{
		Total:     e.summary.Total,
		ByRuleSet: make(map[string]Outcome, len(e.summary.ByRuleSet)),
		Order:     append([]string(nil), e.summary.Order...),
	}
	for k, v := range e.summary.ByRuleSet {
		out.ByRuleSet[k] = v
	}
	return out
}

// Remaining returns the items no delete action has removed so far.
func (e *Executor) Remaining(items []mailbox.Item) []mailbox.Item {
	if len(e.removed) == 0 {
		return items
	}
	out := make([]mailbox.Item, 0, len(items))
	for _, item := range items {
		if _, gone := e.removed[item.UID]; !gone {
			out = append(out, item)
		}
	}
	return out
}

// Execute performs kind on items for ruleSet.
func (e *Executor) Execute(ctx context.Context, ruleSet string, kind ActionKind, items []mailbox.Item) error {
	logger := e.logger.With("check", ruleSet)

	var delta Outcome
	switch kind {
	case ActionNothing:
		logger.Debug("nothing to do", "count", len(items))

	case ActionSuccess:
		logger.Info("check passed", "count", len(items))
		delta.Successes = 1

	case ActionAlert:
		delta.Alerts = 1
		delta.AlertedItems = len(items)
		e.alert(ctx, logger, items)

	case ActionDelete:
		n, err := e.delete(ctx, logger, items)
		if err != nil {
			return err
		}
		if e.dryRun {
			delta.WouldDelete = n
		} else {
			delta.Deleted = n
		}

	default:
		return fmt.Errorf("%w: %v", types.ErrUnknownAction, kind)
	}

	e.record(ruleSet, delta)
	return nil
}

func (e *Executor) record(ruleSet string, delta Outcome) {
	cur, ok := e.summary.ByRuleSet[ruleSet]
	if !ok {
		e.summary.Order = append(e.summary.Order, ruleSet)
	}
	cur.add(delta)
	e.summary.ByRuleSet[ruleSet] = cur
	e.summary.Total.add(delta)
}

func (e *Executor) alert(ctx context.Context, logger *slog.Logger, items []mailbox.Item) {
	level := slog.LevelWarn
	msg := "CHECK FAILED"
	if e.dryRun {
		level = slog.LevelInfo
		msg = "would alert"
	}
	logger.Log(ctx, level, msg, "count", len(items))

	details, omitted := alertDetails(items, e.maxDetails)
	for _, d := range details {
		logger.Log(ctx, level, "alerted message",
			"uid", d.UID,
			"from", d.Sender,
			"date", d.Date,
			"subject", d.Subject)
	}
	if omitted > 0 {
		logger.Log(ctx, level, "further alerted messages not shown", "omitted", omitted)
	}
}

func (e *Executor) delete(ctx context.Context, logger *slog.Logger, items []mailbox.Item) (int, error) {
	if len(items) == 0 {
		logger.Debug("delete with no messages")
		return 0, nil
	}
	uids := uidsOf(items)
	if e.dryRun {
		logger.Info("would delete", "count", len(uids), "uids", types.JoinUIDs(uids))
		e.forget(uids)
		return len(uids), nil
	}
	if e.store == nil {
		return 0, errors.New("delete requires a store")
	}
	if err := e.store.Delete(ctx, uids); err != nil {
		return 0, fmt.Errorf("delete %d messages: %w", len(uids), err)
	}
	e.forget(uids)
	logger.Info("deleted", "count", len(uids), "uids", types.JoinUIDs(uids))
	return len(uids), nil
}

func (e *Executor) forget(uids []types.UID) {
	for _, uid := range uids {
		e.removed[uid] = struct{}{}
	}
}
