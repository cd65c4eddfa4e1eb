package triage

import (
	"context"
	"fmt"
	"time"

	"github.com/solatis/amcheck/internal/mailbox"
	"github.com/solatis/amcheck/internal/rules"
	"github.com/solatis/amcheck/internal/types"
)

// MoveResult reports what one move run selected.
type MoveResult struct {
	Examined int
	Selected []types.UID
	Moved    bool
}

// Move selects recent inbox messages matched by any non-empty move filter
// list and moves them into the storage mailbox as one batch.
//
// An empty filter list never selects anything here, unlike check where an
// empty list selects everything. Existing rule files rely on both.
func (s *Service) Move(ctx context.Context) (MoveResult, error) {
	var res MoveResult

	if err := s.store.Select(ctx, s.opts.Inbox); err != nil {
		return res, fmt.Errorf("select %s: %w", s.opts.Inbox, err)
	}

	since, err := s.moveSince()
	if err != nil {
		return res, err
	}
	s.logger.Debug("move search", "mailbox", s.opts.Inbox, "since", since.Format("02-Jan-2006"))

	uids, err := s.store.Search(ctx, mailbox.Query{Since: since})
	if err != nil {
		return res, fmt.Errorf("search %s: %w", s.opts.Inbox, err)
	}
	s.logger.Debug("move search results", "count", len(uids), "uids", types.JoinUIDs(uids))
	if len(uids) == 0 {
		s.logger.Info("no mails to move")
		return res, nil
	}

	envs, err := s.store.FetchEnvelopes(ctx, uids)
	if err != nil {
		return res, fmt.Errorf("fetch envelopes: %w", err)
	}
	items := mailbox.BuildItems(s.logger, envs)
	res.Examined = len(items)

	for _, item := range items {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		ok, err := s.moveMatches(ctx, item)
		if err != nil {
			return res, err
		}
		if ok {
			res.Selected = append(res.Selected, item.UID)
		}
	}

	switch {
	case len(res.Selected) == 0:
		s.logger.Info("no mails to move")
		return res, nil
	case s.opts.DryRun:
		s.logger.Info("dry run, not moving mails", "count", len(res.Selected), "uids", types.JoinUIDs(res.Selected))
		return res, nil
	}

	if err := s.store.EnsureMailbox(ctx, s.opts.Storage); err != nil {
		return res, fmt.Errorf("ensure mailbox %s: %w", s.opts.Storage, err)
	}
	s.logger.Info("moving mails to storage", "count", len(res.Selected), "mailbox", s.opts.Storage)
	if err := s.store.Move(ctx, res.Selected, s.opts.Storage); err != nil {
		return res, fmt.Errorf("move to %s: %w", s.opts.Storage, err)
	}
	res.Moved = true
	return res, nil
}

// moveSince is the lower bound of the move search.
func (s *Service) moveSince() (time.Time, error) {
	if s.opts.TestEnv {
		return types.TestEnvironmentSince, nil
	}
	days := int64(s.opts.DaysBack)
	if days < 0 || days > types.MaxThresholdDays {
		return time.Time{}, fmt.Errorf("%w: %d", types.ErrDateSubtraction, days)
	}
	return s.now().Add(-time.Duration(days) * 24 * time.Hour), nil
}

// moveMatches reports whether any non-empty move list matches item. The
// first matching list wins.
func (s *Service) moveMatches(ctx context.Context, item mailbox.Item) (bool, error) {
	for _, conds := range s.rules.Move {
		if len(conds) == 0 {
			continue
		}
		ok, err := rules.Matches(ctx, conds, item, s.store)
		if err != nil {
			return false, fmt.Errorf("move filter on uid %v: %w", item.UID, err)
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}
