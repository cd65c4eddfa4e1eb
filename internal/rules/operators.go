// internal/rules/operators.go
package rules

import (
	"fmt"
	"time"

	"github.com/solatis/amcheck/internal/mailbox"
	"github.com/solatis/amcheck/internal/types"
)

/*
 * Partition and comparison primitives used by the evaluator.
 *
 *   - partition: stable, total, disjoint split of a working set
 *   - compareCount: three-way comparison for count nodes (-1/0/1)
 *   - threshold: "now minus N days" with explicit overflow detection
 *   - uidSet / uidsOf: correlate oracle answers back to items
 */

// partition splits items into those satisfying pred (side A) and the rest
// (side B). Relative order is preserved on both sides. Every item lands on
// exactly one side unless pred fails, in which case nothing is returned.
func partition(items []mailbox.Item, pred func(mailbox.Item) (bool, error)) (a, b []mailbox.Item, err error) {
	a = make([]mailbox.Item, 0, len(items))
	b = make([]mailbox.Item, 0, len(items))
	for _, item := range items {
		ok, err := pred(item)
		if err != nil {
			return nil, nil, err
		}
		if ok {
			a = append(a, item)
		} else {
			b = append(b, item)
		}
	}
	return a, b, nil
}

// compareCount performs a three-way comparison of n against threshold.
func compareCount(n, threshold int) int {
	switch {
	case n < threshold:
		return -1
	case n > threshold:
		return 1
	default:
		return 0
	}
}

// threshold returns now minus days. Day counts whose duration does not fit
// in time.Duration fail with ErrDateSubtraction.
func threshold(now time.Time, days int64) (time.Time, error) {
	if days < 0 || days > types.MaxThresholdDays {
		return time.Time{}, fmt.Errorf("%w: %d", types.ErrDateSubtraction, days)
	}
	cutoff := now.Add(-time.Duration(days) * 24 * time.Hour)
	if cutoff.After(now) {
		return time.Time{}, fmt.Errorf("%w: %d", types.ErrDateSubtraction, days)
	}
	return cutoff, nil
}

func uidsOf(items []mailbox.Item) []types.UID {
	uids := make([]types.UID, len(items))
	for i, item := range items {
		uids[i] = item.UID
	}
	return uids
}

func uidSet(uids []types.UID) map[types.UID]struct{} {
	set := make(map[types.UID]struct{}, len(uids))
	for _, u := range uids {
		set[u] = struct{}{}
	}
	return set
}
