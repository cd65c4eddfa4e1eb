package rules

import (
	"context"
	"fmt"
	"unicode/utf8"

	"github.com/solatis/amcheck/internal/mailbox"
	"github.com/solatis/amcheck/internal/types"
)

// bodyTerms resolves a body_any/body_all node with one store-side query
// scoped to the incoming UIDs. No body is transferred.
func (w walk) bodyTerms(ctx context.Context, node *BodyTermsNode, items []mailbox.Item, path string) error {
	path = fmt.Sprintf("%s.body_%s", path, node.Mode)

	// Trees built outside Compile can still carry an empty list; skip the
	// subtree instead of guessing whether that means all or nothing.
	if len(node.Terms) == 0 {
		w.logger.Warn("body node has no terms, skipping subtree", "path", path)
		return nil
	}
	if w.oracle == nil {
		return fmt.Errorf("%s: %w", path, types.ErrNoContentOracle)
	}

	var found map[types.UID]struct{}
	if len(items) > 0 {
		cond := mailbox.TextCondition{Mode: node.Mode, Terms: node.Terms}
		uids, err := w.oracle.SearchBodies(ctx, uidsOf(items), cond)
		if err != nil {
			return fmt.Errorf("%s: search bodies: %w", path, err)
		}
		found = uidSet(uids)
	}

	matched, unmatched, _ := partition(items, func(item mailbox.Item) (bool, error) {
		_, ok := found[item.UID]
		return ok, nil
	})
	return w.split(ctx, path, node.Empty, matched, unmatched, node.Matched, node.Unmatched, "matched", "unmatched")
}

// bodyRegex fetches every incoming body in one batch and applies the regex
// locally.
func (w walk) bodyRegex(ctx context.Context, node *BodyRegexNode, items []mailbox.Item, path string) error {
	path += ".body_regex"
	if w.oracle == nil {
		return fmt.Errorf("%s: %w", path, types.ErrNoContentOracle)
	}

	var bodies map[types.UID][]byte
	if len(items) > 0 {
		var err error
		bodies, err = w.oracle.FetchBodies(ctx, uidsOf(items))
		if err != nil {
			return fmt.Errorf("%s: fetch bodies: %w", path, err)
		}
		if len(bodies) < len(items) {
			return fmt.Errorf("%s: %w: got %d of %d", path, types.ErrBodyCountMismatch, len(bodies), len(items))
		}
	}

	matched, unmatched, err := partition(items, func(item mailbox.Item) (bool, error) {
		raw, ok := bodies[item.UID]
		if !ok {
			return false, fmt.Errorf("%w: uid %v from %q subject %q", types.ErrBodyCountMismatch, item.UID, item.Sender, item.Subject)
		}
		if !utf8.Valid(raw) {
			return false, fmt.Errorf("%w: uid %v from %q subject %q", types.ErrBodyNotText, item.UID, item.Sender, item.Subject)
		}
		ok = node.Pattern.Match(raw)
		if !ok {
			w.logger.Debug("non-matching message body", "uid", item.UID, "pattern", node.Pattern.String())
		}
		return ok, nil
	})
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	return w.split(ctx, path, node.Empty, matched, unmatched, node.Matched, node.Unmatched, "matched", "unmatched")
}
