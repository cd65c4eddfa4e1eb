// internal/types/rules.go
package types

/*
 * Rule file definitions.
 *
 * Provides the YAML shapes of a rule file: the move filter lists, the check
 * rule-sets and their decision trees. These types are declarative only;
 * internal/rules compiles them into executable trees with compiled regexes.
 *
 * Key types:
 *   - RuleFile: top-level document with move and check sections
 *   - RuleSetDef: named filter list plus one decision tree
 *   - ConditionDef: one match/unmatch predicate over one field
 *   - NodeDef: one tree node; exactly one kind field is set
 *
 * A nil *NodeDef is the empty tree.
 */

// RuleFile is the top-level rule document.
type RuleFile struct {
	Move  [][]ConditionDef `yaml:"move"`
	Check []RuleSetDef     `yaml:"check"`
}

// RuleSetDef is a named rule-set evaluated by the check command.
type RuleSetDef struct {
	Name    string         `yaml:"name"`
	Filters []ConditionDef `yaml:"filters"`
	Tree    *NodeDef       `yaml:"tree"`
}

// ConditionDef holds exactly one of Match or Unmatch.
type ConditionDef struct {
	Match   *FieldPattern `yaml:"match,omitempty"`
	Unmatch *FieldPattern `yaml:"unmatch,omitempty"`
}

// FieldPattern names exactly one field and the regex applied to it.
type FieldPattern struct {
	From    *string `yaml:"from,omitempty"`
	Subject *string `yaml:"subject,omitempty"`
	Body    *string `yaml:"body,omitempty"`
}

// NodeDef is one decision tree node. Exactly one field is set.
type NodeDef struct {
	Action    string        `yaml:"action,omitempty"`
	Match     *MatchDef     `yaml:"match,omitempty"`
	Date      *DateDef      `yaml:"date,omitempty"`
	Count     *CountDef     `yaml:"count,omitempty"`
	BodyAny   *BodyTermsDef `yaml:"body_any,omitempty"`
	BodyAll   *BodyTermsDef `yaml:"body_all,omitempty"`
	BodyRegex *BodyRegexDef `yaml:"body_regex,omitempty"`
}

// MatchDef splits by a filter condition list.
type MatchDef struct {
	Conditions   []ConditionDef `yaml:"conditions"`
	DescendEmpty string         `yaml:"descend_empty,omitempty"` // "matched" or "unmatched"
	Matched      *NodeDef       `yaml:"matched,omitempty"`
	Unmatched    *NodeDef       `yaml:"unmatched,omitempty"`
}

// DateDef splits by message age.
type DateDef struct {
	Days         int64    `yaml:"days"`
	DescendEmpty string   `yaml:"descend_empty,omitempty"` // "older" or "younger"
	Older        *NodeDef `yaml:"older,omitempty"`
	Younger      *NodeDef `yaml:"younger,omitempty"`
}

// CountDef dispatches the whole set by its size.
type CountDef struct {
	Threshold int      `yaml:"threshold"`
	Greater   *NodeDef `yaml:"greater,omitempty"`
	Less      *NodeDef `yaml:"less,omitempty"`
	Equal     *NodeDef `yaml:"equal,omitempty"`
}

// BodyTermsDef splits by substring terms searched in message bodies.
type BodyTermsDef struct {
	Terms        []string `yaml:"terms"`
	DescendEmpty string   `yaml:"descend_empty,omitempty"` // "matched" or "unmatched"
	Matched      *NodeDef `yaml:"matched,omitempty"`
	Unmatched    *NodeDef `yaml:"unmatched,omitempty"`
}

// BodyRegexDef splits by a regex over fetched message bodies.
type BodyRegexDef struct {
	Pattern      string   `yaml:"pattern"`
	DescendEmpty string   `yaml:"descend_empty,omitempty"` // "matched" or "unmatched"
	Matched      *NodeDef `yaml:"matched,omitempty"`
	Unmatched    *NodeDef `yaml:"unmatched,omitempty"`
}
