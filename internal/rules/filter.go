// internal/rules/filter.go
package rules

import (
	"context"
	"fmt"
	"regexp"
	"unicode/utf8"

	"github.com/solatis/amcheck/internal/mailbox"
	"github.com/solatis/amcheck/internal/types"
)

/*
 * Filter predicate engine.
 *
 * A filter is a list of conditions with AND semantics: every Positive
 * condition must match and every Negated condition must not. Mixed polarity
 * in one list is how "match A but not B" is written.
 *
 * Evaluation follows list order and short-circuits on the first failing
 * condition. A body condition fetches the single message body from the
 * content oracle, one round trip per item.
 *
 * The empty list matches everything.
 */

// Field selects the item field a condition applies to.
type Field int

const (
	FieldFrom Field = iota
	FieldSubject
	FieldBody
)

func (f Field) String() string {
	switch f {
	case FieldFrom:
		return "from"
	case FieldSubject:
		return "subject"
	case FieldBody:
		return "body"
	default:
		return fmt.Sprintf("field(%d)", int(f))
	}
}

// Polarity distinguishes match from unmatch conditions.
type Polarity int

const (
	Positive Polarity = iota
	Negated
)

// Condition is one compiled predicate.
type Condition struct {
	Polarity Polarity
	Field    Field
	Regex    *regexp.Regexp
}

func (c Condition) String() string {
	verb := "match"
	if c.Polarity == Negated {
		verb = "unmatch"
	}
	return fmt.Sprintf("%s(%s ~ %q)", verb, c.Field, c.Regex.String())
}

// Matches reports whether item satisfies every condition.
// bodies may be nil when no condition targets the body.
func Matches(ctx context.Context, conditions []Condition, item mailbox.Item, bodies mailbox.ContentOracle) (bool, error) {
	for _, cond := range conditions {
		holds, err := conditionHolds(ctx, cond, item, bodies)
		if err != nil {
			return false, err
		}
		if cond.Polarity == Positive && !holds {
			return false, nil
		}
		if cond.Polarity == Negated && holds {
			return false, nil
		}
	}
	return true, nil
}

// conditionHolds applies the regex to the field, ignoring polarity.
func conditionHolds(ctx context.Context, cond Condition, item mailbox.Item, bodies mailbox.ContentOracle) (bool, error) {
	switch cond.Field {
	case FieldFrom:
		return cond.Regex.MatchString(item.Sender), nil
	case FieldSubject:
		return cond.Regex.MatchString(item.Subject), nil
	case FieldBody:
		body, err := fetchBody(ctx, item, bodies)
		if err != nil {
			return false, err
		}
		return cond.Regex.MatchString(body), nil
	default:
		return false, fmt.Errorf("unknown condition field %v", cond.Field)
	}
}

// fetchBody loads one message body through the oracle.
func fetchBody(ctx context.Context, item mailbox.Item, bodies mailbox.ContentOracle) (string, error) {
	if bodies == nil {
		return "", types.ErrNoContentOracle
	}
	got, err := bodies.FetchBodies(ctx, []types.UID{item.UID})
	if err != nil {
		return "", fmt.Errorf("fetch body of uid %v: %w", item.UID, err)
	}
	raw, ok := got[item.UID]
	if !ok {
		return "", fmt.Errorf("%w: uid %v from %q subject %q", types.ErrBodyCountMismatch, item.UID, item.Sender, item.Subject)
	}
	if !utf8.Valid(raw) {
		return "", fmt.Errorf("%w: uid %v from %q subject %q", types.ErrBodyNotText, item.UID, item.Sender, item.Subject)
	}
	return string(raw), nil
}

// needsBodies reports whether any condition targets the body.
func needsBodies(conditions []Condition) bool {
	for _, c := range conditions {
		if c.Field == FieldBody {
			return true
		}
	}
	return false
}
