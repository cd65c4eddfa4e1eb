// internal/rules/evaluate.go
package rules

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/solatis/amcheck/internal/mailbox"
)

/*
 * Decision tree evaluation.
 *
 * Walks a compiled tree depth-first against a working set of items. Split
 * nodes partition the set and recurse into each side; count nodes pick one
 * child for the whole set; action nodes hand the set to the Executor.
 *
 * Empty-set semantics:
 *   - Action nodes always run, including with zero items. "Alert when
 *     nothing arrived" depends on this.
 *   - A split side that came out empty is skipped unless the node's
 *     EmptyPolicy names that side.
 *   - Count nodes have no policy: exactly one child always runs.
 *
 * Concurrency: single goroutine, siblings in order. Body nodes and delete
 * actions share one stateful store session that does not tolerate
 * concurrent commands.
 *
 * Errors are fatal for the rule-set: store failures, body fetch count
 * mismatches, undecodable bodies and date underflow abort the walk and are
 * returned wrapped with the node path.
 */

// Evaluator walks decision trees.
type Evaluator struct {
	oracle mailbox.ContentOracle
	exec   *Executor
	logger *slog.Logger
	now    func() time.Time
}

// Option configures an Evaluator.
type Option func(*Evaluator)

// WithClock replaces time.Now as the reference point for date nodes.
func WithClock(now func() time.Time) Option {
	return func(e *Evaluator) { e.now = now }
}

// NewEvaluator creates an evaluator. oracle may be nil when no tree uses
// body predicates.
func NewEvaluator(oracle mailbox.ContentOracle, exec *Executor, logger *slog.Logger, opts ...Option) *Evaluator {
	e := &Evaluator{
		oracle: oracle,
		exec:   exec,
		logger: logger,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Evaluate routes items through tree on behalf of the named rule-set.
func (e *Evaluator) Evaluate(ctx context.Context, ruleSet string, tree Node, items []mailbox.Item) error {
	w := walk{Evaluator: e, ruleSet: ruleSet, logger: e.logger.With("check", ruleSet)}
	return w.visit(ctx, tree, items, "tree")
}

// walk carries per-evaluation state.
type walk struct {
	*Evaluator
	ruleSet string
	logger  *slog.Logger
}

func (w walk) visit(ctx context.Context, n Node, items []mailbox.Item, path string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	switch node := n.(type) {
	case nil, Empty:
		return nil

	case Action:
		w.logger.Debug("action", "path", path, "action", node.Kind, "count", len(items))
		if err := w.exec.Execute(ctx, w.ruleSet, node.Kind, items); err != nil {
			return fmt.Errorf("%s: %s: %w", path, node.Kind, err)
		}
		return nil

	case *MatchNode:
		a, b, err := partition(items, func(item mailbox.Item) (bool, error) {
			return Matches(ctx, node.Conditions, item, w.oracle)
		})
		if err != nil {
			return fmt.Errorf("%s.match: %w", path, err)
		}
		return w.split(ctx, path+".match", node.Empty, a, b, node.Matched, node.Unmatched, "matched", "unmatched")

	case *DateNode:
		cutoff, err := threshold(w.now(), node.Days)
		if err != nil {
			return fmt.Errorf("%s.date: %w", path, err)
		}
		w.logger.Debug("date cutoff", "path", path, "days", node.Days, "cutoff", cutoff)
		older, younger, _ := partition(items, func(item mailbox.Item) (bool, error) {
			return item.Date.Before(cutoff), nil
		})
		return w.split(ctx, path+".date", node.Empty, older, younger, node.Older, node.Younger, "older", "younger")

	case *CountNode:
		cmp := compareCount(len(items), node.Threshold)
		next, label := node.Equal, "equal"
		switch cmp {
		case 1:
			next, label = node.Greater, "greater"
		case -1:
			next, label = node.Less, "less"
		}
		w.logger.Debug("count", "path", path, "count", len(items), "threshold", node.Threshold, "branch", label)
		return w.visit(ctx, next, items, path+".count."+label)

	case *BodyTermsNode:
		return w.bodyTerms(ctx, node, items, path)

	case *BodyRegexNode:
		return w.bodyRegex(ctx, node, items, path)

	default:
		return fmt.Errorf("%s: unknown node type %T", path, n)
	}
}

// split recurses into each side that is non-empty or forced by policy.
func (w walk) split(ctx context.Context, path string, policy EmptyPolicy, a, b []mailbox.Item, childA, childB Node, labelA, labelB string) error {
	w.logger.Debug("partition", "path", path, labelA, len(a), labelB, len(b), "descend_empty", policy)

	if len(a) > 0 || policy == EmptyDescendA {
		if err := w.visit(ctx, childA, a, path+"."+labelA); err != nil {
			return err
		}
	}
	if len(b) > 0 || policy == EmptyDescendB {
		if err := w.visit(ctx, childB, b, path+"."+labelB); err != nil {
			return err
		}
	}
	return nil
}
