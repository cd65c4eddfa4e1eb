// internal/rules/compile.go
package rules

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/solatis/amcheck/internal/mailbox"
	"github.com/solatis/amcheck/internal/types"
)

/*
 * Rule compilation and validation.
 *
 * Compiles types.RuleFile into a Config of executable trees: regexes are
 * compiled once, node kinds resolved, empty-descend sides mapped onto the
 * node's A/B sides, and resource limits enforced.
 *
 * Compilation workflow:
 *   1. Compile move filter lists (empty lists kept; the runner ignores them)
 *   2. For each check rule-set: require a unique name, compile its filters
 *   3. Compile the tree depth-first, rejecting nodes that declare zero or
 *      several kinds, negative thresholds, empty body term lists, and trees
 *      deeper than MaxTreeDepth
 *
 * Missing children compile to Empty; a tree that only cares about one side
 * of a split simply omits the other.
 */

// Compile validates and pre-processes a rule file.
func Compile(file *types.RuleFile) (*Config, error) {
	cfg := &Config{
		Move:  make([][]Condition, 0, len(file.Move)),
		Check: make([]RuleSet, 0, len(file.Check)),
	}

	for i, defs := range file.Move {
		conds, err := compileConditions(defs)
		if err != nil {
			return nil, fmt.Errorf("move[%d]: %w", i, err)
		}
		cfg.Move = append(cfg.Move, conds)
	}

	seen := make(map[string]bool, len(file.Check))
	for i, def := range file.Check {
		if strings.TrimSpace(def.Name) == "" {
			return nil, fmt.Errorf("check[%d]: %w", i, types.ErrUnnamedRuleSet)
		}
		if seen[def.Name] {
			return nil, fmt.Errorf("check[%d] %q: %w", i, def.Name, types.ErrDuplicateRuleSet)
		}
		seen[def.Name] = true

		rs, err := compileRuleSet(def)
		if err != nil {
			return nil, fmt.Errorf("check %q: %w", def.Name, err)
		}
		cfg.Check = append(cfg.Check, rs)
	}

	return cfg, nil
}

func compileRuleSet(def types.RuleSetDef) (RuleSet, error) {
	filters, err := compileConditions(def.Filters)
	if err != nil {
		return RuleSet{}, fmt.Errorf("filters: %w", err)
	}
	tree, err := compileNode(def.Tree, 1, "tree")
	if err != nil {
		return RuleSet{}, err
	}
	return RuleSet{Name: def.Name, Filters: filters, Tree: tree}, nil
}

// compileConditions compiles a condition list, preserving order.
func compileConditions(defs []types.ConditionDef) ([]Condition, error) {
	conds := make([]Condition, 0, len(defs))
	for i, def := range defs {
		c, err := compileCondition(def)
		if err != nil {
			return nil, fmt.Errorf("condition %d: %w", i, err)
		}
		conds = append(conds, c)
	}
	return conds, nil
}

func compileCondition(def types.ConditionDef) (Condition, error) {
	var polarity Polarity
	var fp *types.FieldPattern
	switch {
	case def.Match != nil && def.Unmatch == nil:
		polarity, fp = Positive, def.Match
	case def.Unmatch != nil && def.Match == nil:
		polarity, fp = Negated, def.Unmatch
	default:
		return Condition{}, types.ErrConditionPolarity
	}

	var field Field
	var pattern string
	set := 0
	if fp.From != nil {
		field, pattern = FieldFrom, *fp.From
		set++
	}
	if fp.Subject != nil {
		field, pattern = FieldSubject, *fp.Subject
		set++
	}
	if fp.Body != nil {
		field, pattern = FieldBody, *fp.Body
		set++
	}
	if set != 1 {
		return Condition{}, types.ErrConditionField
	}

	re, err := regexp.Compile(pattern)
	if err != nil {
		return Condition{}, fmt.Errorf("%s pattern %q: %w", field, pattern, err)
	}
	return Condition{Polarity: polarity, Field: field, Regex: re}, nil
}

// compileNode compiles def and its subtree. A nil def is the empty tree.
func compileNode(def *types.NodeDef, depth int, path string) (Node, error) {
	if def == nil {
		return Empty{}, nil
	}
	if depth > types.MaxTreeDepth {
		return nil, fmt.Errorf("%s: %w", path, types.ErrTreeTooDeep)
	}

	kinds := 0
	for _, set := range []bool{
		def.Action != "", def.Match != nil, def.Date != nil, def.Count != nil,
		def.BodyAny != nil, def.BodyAll != nil, def.BodyRegex != nil,
	} {
		if set {
			kinds++
		}
	}
	if kinds != 1 {
		return nil, fmt.Errorf("%s: %w (found %d)", path, types.ErrNodeKind, kinds)
	}

	child := func(d *types.NodeDef, name string) (Node, error) {
		return compileNode(d, depth+1, path+"."+name)
	}

	switch {
	case def.Action != "":
		kind, err := ParseActionKind(def.Action)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		return Action{Kind: kind}, nil

	case def.Match != nil:
		m := def.Match
		conds, err := compileConditions(m.Conditions)
		if err != nil {
			return nil, fmt.Errorf("%s.match: %w", path, err)
		}
		policy, err := parseEmptyPolicy(m.DescendEmpty, "matched", "unmatched")
		if err != nil {
			return nil, fmt.Errorf("%s.match: %w", path, err)
		}
		matched, err := child(m.Matched, "matched")
		if err != nil {
			return nil, err
		}
		unmatched, err := child(m.Unmatched, "unmatched")
		if err != nil {
			return nil, err
		}
		return &MatchNode{Conditions: conds, Empty: policy, Matched: matched, Unmatched: unmatched}, nil

	case def.Date != nil:
		d := def.Date
		if d.Days < 0 {
			return nil, fmt.Errorf("%s.date: days %d: %w", path, d.Days, types.ErrNegativeThreshold)
		}
		policy, err := parseEmptyPolicy(d.DescendEmpty, "older", "younger")
		if err != nil {
			return nil, fmt.Errorf("%s.date: %w", path, err)
		}
		older, err := child(d.Older, "older")
		if err != nil {
			return nil, err
		}
		younger, err := child(d.Younger, "younger")
		if err != nil {
			return nil, err
		}
		return &DateNode{Days: d.Days, Empty: policy, Older: older, Younger: younger}, nil

	case def.Count != nil:
		c := def.Count
		if c.Threshold < 0 {
			return nil, fmt.Errorf("%s.count: threshold %d: %w", path, c.Threshold, types.ErrNegativeThreshold)
		}
		greater, err := child(c.Greater, "greater")
		if err != nil {
			return nil, err
		}
		less, err := child(c.Less, "less")
		if err != nil {
			return nil, err
		}
		equal, err := child(c.Equal, "equal")
		if err != nil {
			return nil, err
		}
		return &CountNode{Threshold: c.Threshold, Greater: greater, Less: less, Equal: equal}, nil

	case def.BodyAny != nil:
		return compileBodyTerms(def.BodyAny, mailbox.MatchAny, path+".body_any", child)

	case def.BodyAll != nil:
		return compileBodyTerms(def.BodyAll, mailbox.MatchAll, path+".body_all", child)

	default:
		b := def.BodyRegex
		re, err := regexp.Compile(b.Pattern)
		if err != nil {
			return nil, fmt.Errorf("%s.body_regex pattern %q: %w", path, b.Pattern, err)
		}
		policy, err := parseEmptyPolicy(b.DescendEmpty, "matched", "unmatched")
		if err != nil {
			return nil, fmt.Errorf("%s.body_regex: %w", path, err)
		}
		matched, err := child(b.Matched, "matched")
		if err != nil {
			return nil, err
		}
		unmatched, err := child(b.Unmatched, "unmatched")
		if err != nil {
			return nil, err
		}
		return &BodyRegexNode{Pattern: re, Empty: policy, Matched: matched, Unmatched: unmatched}, nil
	}
}

func compileBodyTerms(b *types.BodyTermsDef, mode mailbox.TextMode, path string, child func(*types.NodeDef, string) (Node, error)) (Node, error) {
	if len(b.Terms) == 0 {
		return nil, fmt.Errorf("%s: %w", path, types.ErrEmptyBodyTerms)
	}
	if len(b.Terms) > types.MaxBodyTerms {
		return nil, fmt.Errorf("%s: %w (%d > %d)", path, types.ErrTooManyBodyTerms, len(b.Terms), types.MaxBodyTerms)
	}
	policy, err := parseEmptyPolicy(b.DescendEmpty, "matched", "unmatched")
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	matched, err := child(b.Matched, "matched")
	if err != nil {
		return nil, err
	}
	unmatched, err := child(b.Unmatched, "unmatched")
	if err != nil {
		return nil, err
	}
	return &BodyTermsNode{
		Mode:      mode,
		Terms:     append([]string(nil), b.Terms...),
		Empty:     policy,
		Matched:   matched,
		Unmatched: unmatched,
	}, nil
}

// parseEmptyPolicy maps a descend_empty value onto the node's sides.
func parseEmptyPolicy(value, sideA, sideB string) (EmptyPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "", "none":
		return EmptySkip, nil
	case sideA:
		return EmptyDescendA, nil
	case sideB:
		return EmptyDescendB, nil
	default:
		return EmptySkip, fmt.Errorf("%w: %q (want %s or %s)", types.ErrUnknownEmptyPolicy, value, sideA, sideB)
	}
}

// ParseActionKind converts an action name from a rule file.
func ParseActionKind(s string) (ActionKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "nothing":
		return ActionNothing, nil
	case "success":
		return ActionSuccess, nil
	case "alert":
		return ActionAlert, nil
	case "delete":
		return ActionDelete, nil
	default:
		return ActionNothing, fmt.Errorf("%w: %q", types.ErrUnknownAction, s)
	}
}
