package rules

import (
	"fmt"
	"regexp"

	"github.com/solatis/amcheck/internal/mailbox"
)

// Node is one decision tree node. The set of node kinds is closed; every
// implementation lives in this file. Trees are immutable once compiled and
// each node exclusively owns its children.
type Node interface {
	node()
}

// EmptyPolicy says which side of a split node, if any, is visited even when
// the partition left it empty. By default empty sides are skipped.
type EmptyPolicy int

const (
	EmptySkip EmptyPolicy = iota
	// EmptyDescendA always visits the first side (matched / older).
	EmptyDescendA
	// EmptyDescendB always visits the second side (unmatched / younger).
	EmptyDescendB
)

func (p EmptyPolicy) String() string {
	switch p {
	case EmptyDescendA:
		return "descend-a"
	case EmptyDescendB:
		return "descend-b"
	default:
		return "skip"
	}
}

// ActionKind is the side effect of a terminal node.
type ActionKind int

const (
	ActionNothing ActionKind = iota
	ActionSuccess
	ActionAlert
	ActionDelete
)

func (k ActionKind) String() string {
	switch k {
	case ActionNothing:
		return "nothing"
	case ActionSuccess:
		return "success"
	case ActionAlert:
		return "alert"
	case ActionDelete:
		return "delete"
	default:
		return fmt.Sprintf("action(%d)", int(k))
	}
}

// Empty is the terminal no-op. A nil Node is treated the same way.
type Empty struct{}

// Action performs Kind on every item that reaches it, including none.
type Action struct {
	Kind ActionKind
}

// MatchNode splits by a filter condition list.
type MatchNode struct {
	Conditions []Condition
	Empty      EmptyPolicy
	Matched    Node
	Unmatched  Node
}

// DateNode splits by age: items strictly older than now minus Days go to
// Older, everything else to Younger.
type DateNode struct {
	Days    int64
	Empty   EmptyPolicy
	Older   Node
	Younger Node
}

// CountNode sends the whole, unsplit set to one child chosen by comparing
// its size with Threshold.
type CountNode struct {
	Threshold int
	Greater   Node
	Less      Node
	Equal     Node
}

// BodyTermsNode splits by substring terms searched store-side. Mode
// MatchAny is the body_any node, MatchAll the body_all node.
type BodyTermsNode struct {
	Mode      mailbox.TextMode
	Terms     []string
	Empty     EmptyPolicy
	Matched   Node
	Unmatched Node
}

// BodyRegexNode splits by a regex over bodies fetched in one batch.
type BodyRegexNode struct {
	Pattern   *regexp.Regexp
	Empty     EmptyPolicy
	Matched   Node
	Unmatched Node
}

func (Empty) node()          {}
func (Action) node()         {}
func (*MatchNode) node()     {}
func (*DateNode) node()      {}
func (*CountNode) node()     {}
func (*BodyTermsNode) node() {}
func (*BodyRegexNode) node() {}

// RuleSet is a named check: a selection filter and the tree its working set
// is routed through.
type RuleSet struct {
	Name    string
	Filters []Condition
	Tree    Node
}

// Config is a compiled rule file.
type Config struct {
	// Move holds the filter lists of the move command. A message is moved
	// when any non-empty list matches it.
	Move [][]Condition
	// Check holds the rule-sets of the check command, in file order.
	Check []RuleSet
}
