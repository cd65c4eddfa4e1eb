package triage

import (
	"context"
	"fmt"

	"github.com/solatis/amcheck/internal/mailbox"
	"github.com/solatis/amcheck/internal/rules"
	"github.com/solatis/amcheck/internal/types"
)

// Check evaluates every rule-set against the newest stored messages and
// returns the action summary. Rule-sets run in file order; the first fatal
// error stops the run.
func (s *Service) Check(ctx context.Context) (rules.Summary, error) {
	exec := rules.NewExecutor(s.store, s.logger,
		rules.WithDryRun(s.opts.DryRun),
		rules.WithMaxAlertDetails(s.opts.MaxAlertDetails))
	eval := rules.NewEvaluator(s.store, exec, s.logger, rules.WithClock(s.now))

	if err := s.store.Select(ctx, s.opts.Storage); err != nil {
		return exec.Summary(), fmt.Errorf("select %s: %w", s.opts.Storage, err)
	}

	uids, err := s.store.Search(ctx, mailbox.Query{})
	if err != nil {
		return exec.Summary(), fmt.Errorf("search %s: %w", s.opts.Storage, err)
	}
	types.SortUIDsDescending(uids)
	if len(uids) > s.opts.MaxMessages {
		s.logger.Debug("search results too long, trimming to most recent", "count", len(uids), "keep", s.opts.MaxMessages)
		uids = uids[:s.opts.MaxMessages]
	}
	s.logger.Debug("check search results", "count", len(uids), "uids", types.JoinUIDs(uids))

	var items []mailbox.Item
	if len(uids) > 0 {
		envs, err := s.store.FetchEnvelopes(ctx, uids)
		if err != nil {
			return exec.Summary(), fmt.Errorf("fetch envelopes: %w", err)
		}
		items = mailbox.BuildItems(s.logger, orderBy(envs, uids))
	}
	examined := len(items)

	for _, rs := range s.rules.Check {
		logger := s.logger.With("check", rs.Name)

		selected, err := s.selectFor(ctx, rs, items)
		if err != nil {
			return exec.Summary(), fmt.Errorf("check %q: %w", rs.Name, err)
		}
		if len(selected) == 0 {
			logger.Info("no mails to check")
		}
		cost := rules.EstimateCost(rs.Tree)
		logger.Debug("evaluating", "count", len(selected), "cost", cost.Score(len(selected)))

		if err := eval.Evaluate(ctx, rs.Name, rs.Tree, selected); err != nil {
			return exec.Summary(), fmt.Errorf("check %q: %w", rs.Name, err)
		}
		// Expunged UIDs are gone from the mailbox.
		items = exec.Remaining(items)
	}

	sum := exec.Summary()
	for _, name := range sum.Order {
		o := sum.ByRuleSet[name]
		s.logger.Info("rule-set outcome",
			"check", name,
			"successes", o.Successes,
			"alerts", o.Alerts,
			"alerted_messages", o.AlertedItems,
			"deleted", o.Deleted,
			"would_delete", o.WouldDelete)
	}
	s.logger.Info("check complete",
		"rule_sets", len(s.rules.Check),
		"messages", examined,
		"successes", sum.Total.Successes,
		"alerts", sum.Total.Alerts,
		"deleted", sum.Total.Deleted,
		"would_delete", sum.Total.WouldDelete,
		"dry_run", s.opts.DryRun)
	return sum, nil
}

// selectFor applies a rule-set's filters. An empty list selects every item.
func (s *Service) selectFor(ctx context.Context, rs rules.RuleSet, items []mailbox.Item) ([]mailbox.Item, error) {
	if len(rs.Filters) == 0 {
		return items, nil
	}
	selected := make([]mailbox.Item, 0, len(items))
	for _, item := range items {
		ok, err := rules.Matches(ctx, rs.Filters, item, s.store)
		if err != nil {
			return nil, fmt.Errorf("filter on uid %v: %w", item.UID, err)
		}
		if ok {
			selected = append(selected, item)
		}
	}
	return selected, nil
}

// orderBy returns envs in the order of uids. Stores may answer a fetch in
// any order; check works newest first.
func orderBy(envs []mailbox.Envelope, uids []types.UID) []mailbox.Envelope {
	byUID := make(map[types.UID]mailbox.Envelope, len(envs))
	for _, env := range envs {
		byUID[env.UID] = env
	}
	out := make([]mailbox.Envelope, 0, len(envs))
	for _, uid := range uids {
		if env, ok := byUID[uid]; ok {
			out = append(out, env)
		}
	}
	return out
}
